package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	audit "dealdesk/pkg/platform/audit"
)

// Store persists audit events in PostgreSQL. Append writes the queryable
// audit_events row and a transactional-outbox row in one transaction; the
// outbox worker ships outbox rows to Kafka for downstream consumers.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append inserts the event and its outbox entry atomically.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_events (
			id, entity_type, entity_id, action, from_state, to_state,
			decision, reason, actor, metrics, request_id, occurred_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`,
		event.ID,
		string(event.EntityType),
		event.EntityID,
		string(event.Action),
		event.FromState,
		event.ToState,
		event.Decision,
		event.Reason,
		event.Actor,
		nullableJSON(event.Metrics),
		event.RequestID,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_outbox (id, event_id, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`,
		uuid.New(),
		event.ID,
		payload,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit audit tx: %w", err)
	}
	return nil
}

func (s *Store) ListByEntity(ctx context.Context, entityType audit.EntityType, entityID string) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_type, entity_id, action, from_state, to_state,
		       decision, reason, actor, metrics, request_id, occurred_at
		FROM audit_events
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY occurred_at ASC
	`, string(entityType), entityID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_type, entity_id, action, from_state, to_state,
		       decision, reason, actor, metrics, request_id, occurred_at
		FROM audit_events
		ORDER BY occurred_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// OutboxEntry is one pending Kafka publish.
type OutboxEntry struct {
	ID      uuid.UUID
	EventID uuid.UUID
	Payload []byte
}

// ClaimPending returns up to limit unpublished outbox entries, oldest
// first. One worker runs per deployment; MarkPublished keeps redelivery
// idempotent on the consumer side either way.
func (s *Store) ClaimPending(ctx context.Context, limit int) ([]OutboxEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_id, payload
		FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("claim outbox entries: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ID, &e.EventID, &e.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MarkPublished stamps entries as shipped. Entries stay in the table for
// traceability; a retention job can prune them later.
func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, id := range ids {
		if _, err := s.db.ExecContext(ctx,
			`UPDATE audit_outbox SET published_at = $1 WHERE id = $2`, now, id,
		); err != nil {
			return fmt.Errorf("mark outbox entry published: %w", err)
		}
	}
	return nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var (
			event      audit.Event
			entityType string
			action     string
			metrics    []byte
		)
		err := rows.Scan(
			&event.ID,
			&entityType,
			&event.EntityID,
			&action,
			&event.FromState,
			&event.ToState,
			&event.Decision,
			&event.Reason,
			&event.Actor,
			&metrics,
			&event.RequestID,
			&event.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.EntityType = audit.EntityType(entityType)
		event.Action = audit.Action(action)
		event.Metrics = metrics
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
