package sync

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	domainsync "almsync/internal/domain/sync"
	"almsync/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "almsync/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "almsync/internal/infrastructure/persistence/sqlite/uow"
	"almsync/internal/ports"
)

type stubTracker struct {
	mu sync.Mutex

	issues        map[string]ports.TrackerIssue
	projectIssues []ports.TrackerIssue
	byLabelJQL    map[string][]ports.TrackerIssue

	created []ports.CreateIssueRequest
	links   [][3]string

	createErr error
	searchErr error
	linkErr   error
}

func newStubTracker() *stubTracker {
	return &stubTracker{
		issues:     make(map[string]ports.TrackerIssue),
		byLabelJQL: make(map[string][]ports.TrackerIssue),
	}
}

func (s *stubTracker) GetIssue(_ context.Context, key string) (ports.TrackerIssue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	issue, ok := s.issues[key]
	if !ok {
		return ports.TrackerIssue{}, domainsync.NewNotFoundError("tracker issue", key)
	}
	return issue, nil
}

func (s *stubTracker) CreateIssue(_ context.Context, req ports.CreateIssueRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.createErr != nil {
		return "", s.createErr
	}
	s.created = append(s.created, req)
	return fmt.Sprintf("%s-%d", req.Project, 100+len(s.created)), nil
}

func (s *stubTracker) LinkIssues(_ context.Context, inwardKey string, outwardKey string, linkType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.linkErr != nil {
		return s.linkErr
	}
	s.links = append(s.links, [3]string{inwardKey, outwardKey, linkType})
	return nil
}

func (s *stubTracker) SearchIssues(_ context.Context, jql string, startAt int, maxResults int) ([]ports.TrackerIssue, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.searchErr != nil {
		return nil, 0, s.searchErr
	}
	if matches, ok := s.byLabelJQL[jql]; ok {
		return matches, len(matches), nil
	}

	total := len(s.projectIssues)
	if startAt >= total {
		return nil, total, nil
	}
	end := startAt + maxResults
	if maxResults <= 0 || end > total {
		end = total
	}
	page := make([]ports.TrackerIssue, end-startAt)
	copy(page, s.projectIssues[startAt:end])
	return page, total, nil
}

func (s *stubTracker) createCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.created)
}

type publishedEvent struct {
	subject string
	event   domainsync.Event
}

type captureBus struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (b *captureBus) Publish(_ context.Context, subject string, event domainsync.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.err != nil {
		return b.err
	}
	b.events = append(b.events, publishedEvent{subject: subject, event: event})
	return nil
}

func (b *captureBus) published() []publishedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]publishedEvent, len(b.events))
	copy(out, b.events)
	return out
}

func setupServiceWithDB(t *testing.T) (*Service, *stubTracker, *captureBus, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	if err := db.AutoMigrate(
		&model.Issue{},
		&model.TestCase{},
		&model.TestResult{},
		&model.SyncStatus{},
	); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	tracker := newStubTracker()
	bus := &captureBus{}
	svc := NewService(
		sqliterepo.NewIssueRepository(db),
		sqliterepo.NewTestResultRepository(db),
		sqliterepo.NewSyncLedgerRepository(db),
		sqliteuow.NewUnitOfWork(db),
		bus,
		tracker,
		Options{
			ProjectKey:         "HEALTH",
			ResyncJQL:          "project = HEALTH",
			RequirementSubject: "sync.requirement.updated",
			Profile:            DefaultDefectProfile(),
		},
	)
	return svc, tracker, bus, db
}

func setupService(t *testing.T) (*Service, *stubTracker, *captureBus) {
	t.Helper()
	svc, tracker, bus, _ := setupServiceWithDB(t)
	return svc, tracker, bus
}

func seedFailure(t *testing.T, db *gorm.DB, testResultID string) {
	t.Helper()

	if err := db.Create(&model.Issue{
		IssueID:       "HEALTH-7",
		IssueType:     "Requirement",
		Title:         "Patient data must be encrypted at rest",
		Status:        "Approved",
		SyncTimestamp: "2026-08-30T10:00:00Z",
	}).Error; err != nil {
		t.Fatalf("seed issue: %v", err)
	}
	if err := db.Create(&model.TestCase{
		TestCaseID:     "TC-1",
		IssueID:        "HEALTH-7",
		TestName:       "encryption at rest",
		TestDesc:       "verify patient records are stored encrypted",
		ExpectedResult: "ciphertext on disk",
	}).Error; err != nil {
		t.Fatalf("seed test case: %v", err)
	}
	if err := db.Create(&model.TestResult{
		TestResultID:       testResultID,
		TestCaseID:         "TC-1",
		Status:             "failed",
		FailureReason:      "records stored in plaintext",
		ActualResult:       "plaintext on disk",
		ExecutionTimestamp: "2026-08-30T11:30:00Z",
	}).Error; err != nil {
		t.Fatalf("seed test result: %v", err)
	}
}

func ledgerRows(t *testing.T, db *gorm.DB, direction string) []model.SyncStatus {
	t.Helper()

	var rows []model.SyncStatus
	if err := db.Where("direction = ?", direction).Order("created_at asc").Find(&rows).Error; err != nil {
		t.Fatalf("query ledger: %v", err)
	}
	return rows
}
