package ports

import (
	"context"

	domainsync "almsync/internal/domain/sync"
)

// EventBus publishes sync events with at-least-once semantics. Subscription,
// redelivery, and fan-out belong to the hosting worker, not to the usecases,
// so the port is publish-only.
type EventBus interface {
	Publish(ctx context.Context, subject string, event domainsync.Event) error
}
