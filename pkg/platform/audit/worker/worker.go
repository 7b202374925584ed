// Package worker ships audit outbox entries to Kafka. The audit_events
// table stays the queryable source of truth; the Kafka topic exists for
// downstream consumers (reporting, alerting) that want a stream.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	pgstore "dealdesk/pkg/platform/audit/store/postgres"
)

// DefaultTopic is the audit stream topic.
const DefaultTopic = "dealdesk.audit.events"

// Worker polls the outbox and publishes pending entries.
type Worker struct {
	store    *pgstore.Store
	client   *kgo.Client
	topic    string
	interval time.Duration
	batch    int
	logger   *slog.Logger
}

type Option func(*Worker)

func WithTopic(topic string) Option {
	return func(w *Worker) { w.topic = topic }
}

func WithInterval(d time.Duration) Option {
	return func(w *Worker) { w.interval = d }
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

func New(store *pgstore.Store, client *kgo.Client, opts ...Option) *Worker {
	w := &Worker{
		store:    store,
		client:   client,
		topic:    DefaultTopic,
		interval: time.Second,
		batch:    100,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// EnsureTopic creates the audit topic if it does not exist yet. Safe to
// call on every startup.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	adm := kadm.NewClient(client)
	existing, err := adm.ListTopics(ctx)
	if err != nil {
		return fmt.Errorf("list topics: %w", err)
	}
	if existing.Has(topic) {
		return nil
	}
	if _, err := adm.CreateTopic(ctx, 1, 1, nil, topic); err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	return nil
}

// Run polls until the context is cancelled. Publish failures leave the
// entries unpublished; they are retried on the next tick.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.publishPending(ctx); err != nil {
				w.logger.WarnContext(ctx, "audit outbox publish failed", "error", err)
			}
		}
	}
}

func (w *Worker) publishPending(ctx context.Context) error {
	entries, err := w.store.ClaimPending(ctx, w.batch)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	records := make([]*kgo.Record, 0, len(entries))
	for _, e := range entries {
		records = append(records, &kgo.Record{
			Topic: w.topic,
			Key:   []byte(e.EventID.String()),
			Value: e.Payload,
		})
	}

	if err := w.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce audit records: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	if err := w.store.MarkPublished(ctx, ids); err != nil {
		return err
	}

	w.logger.DebugContext(ctx, "published audit events", "count", len(entries))
	return nil
}
