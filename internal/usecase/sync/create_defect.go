package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"almsync/internal/bootstrap/logging"
	domainsync "almsync/internal/domain/sync"
	"almsync/internal/errs"
	"almsync/internal/ports"
)

const defectBatchLimit = 100

// HandleTestFailure consumes one test-failure event from the bus. A nil
// return acknowledges the event; an error asks the broker to redeliver.
// Vanished results and already-linked results are acknowledged, not retried.
func (s *Service) HandleTestFailure(ctx context.Context, event domainsync.Event) error {
	if err := s.guard(ctx); err != nil {
		return err
	}

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "usecase.sync"),
		slog.String("test_result_id", event.EntityID),
	)

	if event.EventType != domainsync.EventTestFailure {
		logging.Warn(logCtx, "ignoring unexpected event type", slog.String("event_type", event.EventType))
		return nil
	}

	testResultID := strings.TrimSpace(event.EntityID)
	if testResultID == "" {
		logging.Warn(logCtx, "test failure event without entity id, acknowledging")
		return nil
	}

	if _, err := s.processFailure(ctx, testResultID); err != nil {
		if domainsync.IsNotFound(err) {
			logging.Info(logCtx, "test result not found or not failed, acknowledging")
			return nil
		}
		return err
	}
	return nil
}

// CreateMissingDefects is the manual batch variant: explicit ids, or every
// failed result still lacking a linked defect. Per-id outcomes are
// aggregated instead of failing the batch atomically.
func (s *Service) CreateMissingDefects(ctx context.Context, testResultIDs []string) (BatchResult, error) {
	if err := s.guard(ctx); err != nil {
		return BatchResult{}, err
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "usecase.sync"))

	ids := make([]string, 0, len(testResultIDs))
	for _, raw := range testResultIDs {
		if id := strings.TrimSpace(raw); id != "" {
			ids = append(ids, id)
		}
	}

	if len(ids) == 0 {
		unlinked, err := s.results.ListUnlinkedFailures(ctx, defectBatchLimit)
		if err != nil {
			return BatchResult{}, &domainsync.RepositoryError{Op: "list unlinked failures", Err: err}
		}
		ids = unlinked
	}

	var out BatchResult
	for _, id := range ids {
		if _, err := s.processFailure(ctx, id); err != nil {
			logging.Error(logCtx, "defect creation failed",
				slog.String("test_result_id", id),
				slog.Any("err", errs.Loggable(err)),
			)
			out.Failed = append(out.Failed, id)
			continue
		}
		out.Succeeded = append(out.Succeeded, id)
	}

	logging.Info(logCtx, "defect batch finished",
		slog.Int("succeeded", len(out.Succeeded)),
		slog.Int("failed", len(out.Failed)),
	)
	return out, nil
}

// processFailure runs the four outbound steps for one test result: lookup,
// idempotency check, tracker create, conditional link-back.
func (s *Service) processFailure(ctx context.Context, testResultID string) (string, error) {
	if s.tracker == nil {
		return "", errors.New("tracker client is required")
	}

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "usecase.sync"),
		slog.String("test_result_id", testResultID),
	)

	detail, err := s.results.GetFailureDetail(ctx, testResultID)
	if err != nil {
		if errors.Is(err, ports.ErrTestResultNotFound) {
			return "", domainsync.NewNotFoundError("test result", testResultID)
		}
		return "", &domainsync.RepositoryError{Op: "load failure detail", Err: err}
	}

	// At-most-one defect per result: a linked row means a previous delivery
	// already completed, regardless of how many times the event arrives.
	if detail.DefectID != nil && *detail.DefectID != "" {
		logging.Info(logCtx, "defect already linked, skipping", slog.String("defect_id", *detail.DefectID))
		return *detail.DefectID, nil
	}

	syncID := s.beginAttempt(ctx, ports.LedgerBegin{
		EntityType: domainsync.EntityDefect,
		EntityID:   testResultID,
		Direction:  domainsync.DirectionOutbound,
	})

	defectKey, err := s.findOrCreateDefect(ctx, detail)
	if err != nil {
		s.completeAttempt(ctx, syncID, domainsync.StatusFailed, "", err.Error())
		return "", err
	}

	linked, err := s.results.AttachDefect(ctx, testResultID, defectKey, nowUTCString())
	if err != nil {
		// The defect exists but the linkage write failed. The correlation
		// label makes the retry find the same defect instead of minting a
		// second one.
		repoErr := &domainsync.RepositoryError{Op: "attach defect", Err: err}
		s.completeAttempt(ctx, syncID, domainsync.StatusFailed, defectKey, repoErr.Error())
		return "", repoErr
	}
	if !linked {
		logging.Info(logCtx, "concurrent attempt already linked a defect")
	}

	if key := strings.TrimSpace(detail.RequirementKey); key != "" {
		if err := s.tracker.LinkIssues(ctx, defectKey, key, s.opts.Profile.LinkType); err != nil {
			logging.Warn(logCtx, "requirement link failed",
				slog.String("defect_key", defectKey),
				slog.String("requirement_key", key),
				slog.Any("err", errs.Loggable(err)),
			)
		}
	}

	s.completeAttempt(ctx, syncID, domainsync.StatusSuccess, defectKey, "")
	logging.Info(logCtx, "defect created", slog.String("defect_key", defectKey))
	return defectKey, nil
}

// findOrCreateDefect first searches the tracker for a defect already carrying
// this result's correlation label. That recovers the window where a create
// succeeded but the link-back write did not.
func (s *Service) findOrCreateDefect(ctx context.Context, detail ports.FailureDetail) (string, error) {
	correlation := correlationLabel(detail.TestResultID)

	existing, _, err := s.tracker.SearchIssues(ctx, fmt.Sprintf("labels = %q", correlation), 0, 1)
	if err != nil {
		return "", errs.Wrap(err, "search existing defect")
	}
	if len(existing) > 0 {
		return existing[0].Key, nil
	}

	labels := append([]string{}, s.opts.Profile.Labels...)
	labels = append(labels, correlation)

	return s.tracker.CreateIssue(ctx, ports.CreateIssueRequest{
		Project:     s.opts.ProjectKey,
		IssueType:   "Bug",
		Summary:     "Test Failure: " + detail.TestName,
		Description: buildDefectDescription(detail),
		Priority:    s.opts.Profile.PriorityFor(detail.Status),
		Labels:      labels,
	})
}

// correlationLabel derives a stable client-side idempotency key from the
// test result id, so every attempt for one result names the same label.
func correlationLabel(testResultID string) string {
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte("almsync:test-result:"+testResultID))
	return "almsync-" + id.String()
}
