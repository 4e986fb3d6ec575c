package bus

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"

	"almsync/internal/bootstrap/config"
	"almsync/internal/bootstrap/logging"
	domainsync "almsync/internal/domain/sync"
	"almsync/internal/errs"
)

// Bus is the NATS JetStream adapter behind ports.EventBus. The broker owns
// redelivery and backoff; this adapter only publishes, subscribes, and maps
// handler results to ack/nak.
type Bus struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	cfg  config.BusConfig
}

// Connect dials NATS and makes sure the sync stream exists. An empty URL
// yields a disabled bus whose Publish is a logged no-op, which keeps
// commands that never touch the bus usable without a broker.
func Connect(ctx context.Context, cfg config.BusConfig) (*Bus, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bus"))

	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		logging.Warn(logCtx, "bus url is empty, event publishing disabled")
		return &Bus{cfg: cfg}, nil
	}

	conn, err := nats.Connect(url,
		nats.Name("almsync"),
		nats.Timeout(cfg.Timeout()),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, errs.Wrap(err, "connect nats")
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, errs.Wrap(err, "open jetstream context")
	}

	b := &Bus{conn: conn, js: js, cfg: cfg}
	if err := b.ensureStream(); err != nil {
		conn.Close()
		return nil, err
	}

	logging.Info(logCtx, "bus connected", slog.String("url", url), slog.String("stream", cfg.Stream))
	return b, nil
}

func (b *Bus) ensureStream() error {
	if _, err := b.js.StreamInfo(b.cfg.Stream); err == nil {
		return nil
	} else if !errors.Is(err, nats.ErrStreamNotFound) {
		return errs.Wrap(err, "stream info")
	}

	if _, err := b.js.AddStream(&nats.StreamConfig{
		Name:     b.cfg.Stream,
		Subjects: []string{b.cfg.RequirementSubject, b.cfg.FailureSubject},
	}); err != nil {
		return errs.Wrap(err, "add stream")
	}
	return nil
}

func (b *Bus) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

// Publish marshals the envelope and publishes it with a bounded deadline.
func (b *Bus) Publish(ctx context.Context, subject string, event domainsync.Event) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	if b.js == nil {
		logging.Warn(
			logging.WithAttrs(ctx, slog.String("component", "bus")),
			"bus disabled, dropping event",
			slog.String("subject", subject),
			slog.String("event_type", event.EventType),
			slog.String("entity_id", event.EntityID),
		)
		return nil
	}

	raw, err := json.Marshal(event)
	if err != nil {
		return errs.Wrap(err, "marshal event")
	}

	pubCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout())
	defer cancel()

	if _, err := b.js.Publish(subject, raw, nats.Context(pubCtx)); err != nil {
		return errs.Wrapf(err, "publish %s", subject)
	}
	return nil
}

// Handler processes one delivered event. A nil return acknowledges the
// message; an error naks it and the broker redelivers on its own schedule.
type Handler func(ctx context.Context, event domainsync.Event) error

// Subscribe attaches a durable queue consumer so concurrent workers share
// one subscription and redeliveries survive restarts.
func (b *Bus) Subscribe(ctx context.Context, subject string, handler Handler) (*nats.Subscription, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if b.js == nil {
		return nil, errors.New("bus is disabled: no broker url configured")
	}
	if handler == nil {
		return nil, errors.New("handler is required")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bus"), slog.String("subject", subject))

	sub, err := b.js.QueueSubscribe(subject, b.cfg.Queue, func(msg *nats.Msg) {
		var event domainsync.Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			// Malformed envelopes can never succeed; stop redelivery.
			logging.Error(logCtx, "drop undecodable event", slog.Any("err", errs.Loggable(err)))
			_ = msg.Term()
			return
		}

		handlerCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout())
		defer cancel()

		if err := handler(handlerCtx, event); err != nil {
			logging.Error(
				logCtx,
				"event handler failed, nak for redelivery",
				slog.String("event_type", event.EventType),
				slog.String("entity_id", event.EntityID),
				slog.Any("err", errs.Loggable(err)),
			)
			_ = msg.Nak()
			return
		}

		_ = msg.Ack()
	}, nats.ManualAck(), nats.AckWait(b.cfg.Timeout()), nats.Durable(b.cfg.Queue))
	if err != nil {
		return nil, errs.Wrapf(err, "subscribe %s", subject)
	}

	logging.Info(logCtx, "subscribed", slog.String("queue", b.cfg.Queue))
	return sub, nil
}
