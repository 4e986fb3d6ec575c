package sync

import (
	"context"
	"log/slog"
	"strings"

	"almsync/internal/bootstrap/logging"
	domainsync "almsync/internal/domain/sync"
	"almsync/internal/errs"
	"almsync/internal/ports"
)

// IngestWebhook handles one tracker change notification: strict parse,
// atomic upsert of the mirrored row, then event publication. Re-applying the
// same payload converges on the same row, so the tracker may redeliver
// freely. No retry happens here; a returned error tells the tracker to
// redeliver the webhook.
func (s *Service) IngestWebhook(ctx context.Context, payload []byte) (IngestResult, error) {
	if err := s.guard(ctx); err != nil {
		return IngestResult{}, err
	}

	notification, err := domainsync.ParseWebhook(payload)
	if err != nil {
		s.recordFailedAttempt(ctx, ports.LedgerBegin{
			EntityType: domainsync.EntityRequirement,
			EntityID:   "unknown",
			Direction:  domainsync.DirectionInbound,
		}, err)
		return IngestResult{}, err
	}

	if !notification.Synced() {
		logging.Info(
			logging.WithAttrs(ctx, slog.String("component", "usecase.sync")),
			"ignoring webhook event",
			slog.String("event_type", notification.EventType),
		)
		return IngestResult{EventType: notification.EventType, Ignored: true}, nil
	}

	if err := s.syncIssue(ctx, notification.Issue); err != nil {
		return IngestResult{}, err
	}
	return IngestResult{IssueID: notification.Issue.IssueID, EventType: notification.EventType}, nil
}

// syncIssue is the shared upsert-and-publish path behind webhook ingestion
// and bulk resync.
func (s *Service) syncIssue(ctx context.Context, fields domainsync.IssueFields) error {
	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "usecase.sync"),
		slog.String("issue_id", fields.IssueID),
	)

	syncID := s.beginAttempt(ctx, ports.LedgerBegin{
		EntityType: domainsync.EntityRequirement,
		EntityID:   fields.IssueID,
		TrackerKey: fields.IssueID,
		Direction:  domainsync.DirectionInbound,
	})

	now := nowUTCString()
	record := issueRecordFromFields(fields, now)

	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		return s.issues.UpsertIssue(txCtx, record)
	}); err != nil {
		repoErr := &domainsync.RepositoryError{Op: "upsert issue", Err: err}
		s.completeAttempt(ctx, syncID, domainsync.StatusFailed, "", repoErr.Error())
		return repoErr
	}

	event := domainsync.Event{
		EventType: domainsync.EventRequirementUpdated,
		EntityID:  fields.IssueID,
		Timestamp: now,
	}
	if s.bus != nil {
		if err := s.bus.Publish(ctx, s.opts.RequirementSubject, event); err != nil {
			wrapped := errs.Wrap(err, "publish requirement event")
			s.completeAttempt(ctx, syncID, domainsync.StatusFailed, "", wrapped.Error())
			return wrapped
		}
	}

	s.completeAttempt(ctx, syncID, domainsync.StatusSuccess, fields.IssueID, "")
	logging.Info(logCtx, "issue synced", slog.String("status", fields.Status))
	return nil
}

func issueRecordFromFields(fields domainsync.IssueFields, syncTimestamp string) ports.IssueRecord {
	record := ports.IssueRecord{
		IssueID:       fields.IssueID,
		IssueType:     fields.IssueType,
		Title:         fields.Title,
		Description:   fields.Description,
		Priority:      fields.Priority,
		Status:        fields.Status,
		CreatedAt:     fields.Created,
		UpdatedAt:     fields.Updated,
		SyncTimestamp: syncTimestamp,
	}
	if assignee := strings.TrimSpace(fields.Assignee); assignee != "" {
		record.Assignee = &assignee
	}
	return record
}
