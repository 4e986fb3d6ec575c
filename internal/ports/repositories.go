package ports

import (
	"context"
	"errors"
)

var (
	ErrIssueNotFound      = errors.New("issue not found")
	ErrTestResultNotFound = errors.New("test result not found")
)

// IssueRecord is the mirrored view of a tracker issue held in the warehouse.
// Timestamps are RFC3339 strings, stored as received from the tracker.
type IssueRecord struct {
	IssueID       string
	IssueType     string
	Title         string
	Description   string
	Priority      string
	Status        string
	Assignee      *string
	CreatedAt     string
	UpdatedAt     string
	SyncTimestamp string
}

// IssueRepository owns the mirrored issues table. Only the inbound sync path
// writes to it.
type IssueRepository interface {
	// UpsertIssue inserts or overwrites the row for record.IssueID as a
	// single atomic statement. Last write wins on conflicting fields;
	// created_at is preserved on update.
	UpsertIssue(ctx context.Context, record IssueRecord) error
	GetIssue(ctx context.Context, issueID string) (IssueRecord, error)
}

// FailureDetail is a failed test result joined with its test case and the
// requirement it traces back to.
type FailureDetail struct {
	TestResultID       string
	TestCaseID         string
	TestName           string
	TestDesc           string
	ExpectedResult     string
	ActualResult       string
	FailureReason      string
	Status             string
	ExecutionTimestamp string
	RequirementKey     string
	RequirementTitle   string
	DefectID           *string
}

// TestResultRepository reads test outcomes and owns exactly the defect
// linkage columns of the test_results table.
type TestResultRepository interface {
	// GetFailureDetail loads a failed or errored result with its test case
	// and requirement. Returns ErrTestResultNotFound when no such row
	// exists.
	GetFailureDetail(ctx context.Context, testResultID string) (FailureDetail, error)
	// AttachDefect sets defect_id and defect_created_timestamp only when
	// defect_id is still NULL. Returns false when another attempt already
	// linked a defect; the write is conditional at the storage layer, not a
	// read-then-write.
	AttachDefect(ctx context.Context, testResultID string, defectKey string, createdAt string) (bool, error)
	// ListUnlinkedFailures returns ids of failed results without a linked
	// defect, newest first.
	ListUnlinkedFailures(ctx context.Context, limit int) ([]string, error)
}

// LedgerEntry is one audited sync attempt.
type LedgerEntry struct {
	SyncID       string
	EntityType   string
	EntityID     string
	TrackerKey   *string
	Direction    string
	Status       string
	ErrorMessage string
	RetryCount   int
	CreatedAt    string
	CompletedAt  *string
}

// LedgerBegin starts an attempt record.
type LedgerBegin struct {
	EntityType string
	EntityID   string
	TrackerKey string
	Direction  string
}

// SyncLedger is the append-style audit trail. Entries move from pending to a
// terminal status and are never deleted.
type SyncLedger interface {
	// Begin records a pending attempt and returns its sync id. RetryCount
	// is derived from prior attempts for the same entity and direction.
	Begin(ctx context.Context, input LedgerBegin) (string, error)
	// Complete sets the terminal status for a pending attempt.
	Complete(ctx context.Context, syncID string, status string, trackerKey string, errorMessage string) error
	Recent(ctx context.Context, limit int) ([]LedgerEntry, error)
	HistoryFor(ctx context.Context, entityID string) ([]LedgerEntry, error)
}
