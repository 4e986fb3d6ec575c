package sync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"almsync/internal/bootstrap/logging"
	domainsync "almsync/internal/domain/sync"
	"almsync/internal/errs"
	"almsync/internal/ports"
)

// Service implements both synchronization directions on top of the
// repository, bus, and tracker ports. Invocations are stateless; every piece
// of coordination state lives in the warehouse tables.
type Service struct {
	issues  ports.IssueRepository
	results ports.TestResultRepository
	ledger  ports.SyncLedger
	uow     ports.UnitOfWork
	bus     ports.EventBus
	tracker ports.TrackerClient
	opts    Options
}

// Options is per-process sync configuration, resolved once at startup.
type Options struct {
	ProjectKey         string
	ResyncJQL          string
	RequirementSubject string
	Profile            DefectProfile
}

func NewService(
	issues ports.IssueRepository,
	results ports.TestResultRepository,
	ledger ports.SyncLedger,
	uow ports.UnitOfWork,
	bus ports.EventBus,
	tracker ports.TrackerClient,
	opts Options,
) *Service {
	if opts.Profile.DefaultPriority == "" {
		opts.Profile = opts.Profile.withDefaults()
	}
	return &Service{
		issues:  issues,
		results: results,
		ledger:  ledger,
		uow:     uow,
		bus:     bus,
		tracker: tracker,
		opts:    opts,
	}
}

// IngestResult reports the outcome of one webhook delivery.
type IngestResult struct {
	IssueID   string
	EventType string
	Ignored   bool
}

// BatchResult is the partial-success report of a bulk operation.
type BatchResult struct {
	Succeeded []string
	Failed    []string
}

func (s *Service) guard(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.issues == nil || s.results == nil || s.ledger == nil {
		return errors.New("sync repositories are required")
	}
	if s.uow == nil {
		return errors.New("unit of work is required")
	}
	return nil
}

// beginAttempt opens a pending ledger row. The ledger is observability, not
// control flow: a failed write is logged and the sync proceeds.
func (s *Service) beginAttempt(ctx context.Context, input ports.LedgerBegin) string {
	syncID, err := s.ledger.Begin(ctx, input)
	if err != nil {
		logging.Warn(
			logging.WithAttrs(ctx, slog.String("component", "usecase.sync")),
			"ledger begin failed",
			slog.String("entity_id", input.EntityID),
			slog.String("direction", input.Direction),
			slog.Any("err", errs.Loggable(err)),
		)
		return ""
	}
	return syncID
}

func (s *Service) completeAttempt(ctx context.Context, syncID string, status string, trackerKey string, errorMessage string) {
	if syncID == "" {
		return
	}
	if err := s.ledger.Complete(ctx, syncID, status, trackerKey, errorMessage); err != nil {
		logging.Warn(
			logging.WithAttrs(ctx, slog.String("component", "usecase.sync")),
			"ledger complete failed",
			slog.String("sync_id", syncID),
			slog.String("status", status),
			slog.Any("err", errs.Loggable(err)),
		)
	}
}

// recordFailedAttempt writes a terminal failed ledger row in one step, for
// failures that happen before a pending attempt exists.
func (s *Service) recordFailedAttempt(ctx context.Context, input ports.LedgerBegin, cause error) {
	syncID := s.beginAttempt(ctx, input)
	s.completeAttempt(ctx, syncID, domainsync.StatusFailed, "", cause.Error())
}

// RecentAttempts returns the newest ledger entries for audit and manual
// reconciliation.
func (s *Service) RecentAttempts(ctx context.Context, limit int) ([]ports.LedgerEntry, error) {
	if err := s.guard(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	return s.ledger.Recent(ctx, limit)
}

// AttemptHistory returns every recorded attempt for one entity, oldest
// first.
func (s *Service) AttemptHistory(ctx context.Context, entityID string) ([]ports.LedgerEntry, error) {
	if err := s.guard(ctx); err != nil {
		return nil, err
	}
	return s.ledger.HistoryFor(ctx, entityID)
}

func nowUTCString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
