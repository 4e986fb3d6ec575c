package sync

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"almsync/internal/bootstrap/logging"
	domainsync "almsync/internal/domain/sync"
	"almsync/internal/errs"
	"almsync/internal/ports"
)

const resyncPageSize = 50

// Resync pulls issues from the tracker and applies the regular upsert per
// issue. With explicit keys it fetches each one; without, it pages through
// the configured resync filter. Individual failures never stop the batch.
func (s *Service) Resync(ctx context.Context, keys []string) (BatchResult, error) {
	if err := s.guard(ctx); err != nil {
		return BatchResult{}, err
	}
	if s.tracker == nil {
		return BatchResult{}, errors.New("tracker client is required")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "usecase.sync"))

	var out BatchResult
	if len(keys) > 0 {
		for _, raw := range keys {
			key := strings.TrimSpace(raw)
			if key == "" {
				continue
			}
			s.resyncOne(ctx, key, &out)
		}
		logging.Info(logCtx, "resync finished",
			slog.Int("succeeded", len(out.Succeeded)),
			slog.Int("failed", len(out.Failed)),
		)
		return out, nil
	}

	startAt := 0
	for {
		page, total, err := s.tracker.SearchIssues(ctx, s.opts.ResyncJQL, startAt, resyncPageSize)
		if err != nil {
			// Nothing fetched yet means the whole operation failed, not a
			// partial batch.
			if startAt == 0 {
				return BatchResult{}, errs.Wrap(err, "search tracker issues")
			}
			logging.Error(logCtx, "resync page fetch failed, stopping early",
				slog.Int("start_at", startAt),
				slog.Any("err", errs.Loggable(err)),
			)
			break
		}
		if len(page) == 0 {
			break
		}

		for _, issue := range page {
			if err := s.syncIssue(ctx, trackerIssueToFields(issue)); err != nil {
				out.Failed = append(out.Failed, issue.Key)
				continue
			}
			out.Succeeded = append(out.Succeeded, issue.Key)
		}

		startAt += len(page)
		if startAt >= total {
			break
		}
	}

	logging.Info(logCtx, "resync finished",
		slog.Int("succeeded", len(out.Succeeded)),
		slog.Int("failed", len(out.Failed)),
	)
	return out, nil
}

func (s *Service) resyncOne(ctx context.Context, key string, out *BatchResult) {
	issue, err := s.tracker.GetIssue(ctx, key)
	if err != nil {
		s.recordFailedAttempt(ctx, ports.LedgerBegin{
			EntityType: domainsync.EntityRequirement,
			EntityID:   key,
			TrackerKey: key,
			Direction:  domainsync.DirectionInbound,
		}, err)
		out.Failed = append(out.Failed, key)
		return
	}

	if err := s.syncIssue(ctx, trackerIssueToFields(issue)); err != nil {
		out.Failed = append(out.Failed, key)
		return
	}
	out.Succeeded = append(out.Succeeded, key)
}

func trackerIssueToFields(issue ports.TrackerIssue) domainsync.IssueFields {
	return domainsync.IssueFields{
		IssueID:     issue.Key,
		IssueType:   issue.IssueType,
		Title:       issue.Summary,
		Description: issue.Description,
		Priority:    issue.Priority,
		Status:      issue.Status,
		Assignee:    issue.Assignee,
		Created:     issue.Created,
		Updated:     issue.Updated,
	}
}
