package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	audit "dealdesk/pkg/platform/audit"
)

// Publisher writes audit events to a Store, synchronously by default or
// through a bounded async buffer when configured. Async mode never blocks
// the caller: if the buffer is full the event is dropped and counted, on
// the principle that a stalled audit sink must not stall deal processing.
// (The postgres store's own transactional writes are the durable path;
// the publisher serves in-process emitters.)
type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	inbox   chan audit.Event
	done    chan struct{}
	closeMu sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer switches to async emission with the given buffer size.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan audit.Event, size)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store: store,
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		go p.drain()
	}
	return p
}

// Emit records an audit event. Sets the timestamp if the caller left it
// zero.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if p.inbox == nil {
		return p.store.Append(ctx, event)
	}

	select {
	case p.inbox <- event:
	default:
		if p.logger != nil {
			p.logger.WarnContext(ctx, "audit buffer full, event dropped",
				"entity_type", event.EntityType,
				"entity_id", event.EntityID,
				"action", event.Action,
			)
		}
	}
	return nil
}

// List exposes the store's entity query for callers holding only the
// publisher.
func (p *Publisher) List(ctx context.Context, entityType audit.EntityType, entityID string) ([]audit.Event, error) {
	return p.store.ListByEntity(ctx, entityType, entityID)
}

func (p *Publisher) drain() {
	for event := range p.inbox {
		if err := p.store.Append(context.Background(), event); err != nil && p.logger != nil {
			p.logger.Warn("failed to persist audit event", "action", event.Action, "error", err)
		}
	}
	close(p.done)
}

// Close drains any buffered events before returning.
func (p *Publisher) Close() {
	p.closeMu.Do(func() {
		if p.inbox == nil {
			close(p.done)
			return
		}
		close(p.inbox)
		<-p.done
	})
}
