// Package ports defines shared interfaces for the pipeline module.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks PropertyStore,AuditPublisher,IdempotencyCache

import (
	"context"
	"log/slog"
	"time"

	"dealdesk/internal/pipeline/models"
	domain "dealdesk/pkg/domain"
	audit "dealdesk/pkg/platform/audit"
)

// PropertyStore persists properties, their transitions and inspections.
//
// ApplyTransition is the single write path for stage changes: the updated
// property, the transition record and the audit event must be committed
// together or not at all, guarded by expectedVersion. Implementations
// return sentinel.ErrVersionConflict when the stored version moved.
type PropertyStore interface {
	Create(ctx context.Context, property *models.Property) error
	Get(ctx context.Context, id domain.PropertyID) (*models.Property, error)
	// Update persists non-stage field changes (documents, ARV) with the
	// same optimistic version check, without writing a transition.
	Update(ctx context.Context, property *models.Property, expectedVersion int64) error
	ApplyTransition(ctx context.Context, property *models.Property, expectedVersion int64, transition *models.StageTransition, event audit.Event) error
	SaveInspection(ctx context.Context, result *models.InspectionResult) error
	LatestInspection(ctx context.Context, id domain.PropertyID) (*models.InspectionResult, error)
	ListTransitions(ctx context.Context, id domain.PropertyID) ([]models.StageTransition, error)
}

// AuditPublisher emits audit entries that are not part of an atomic stage
// write, such as rejected transition attempts.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// IdempotencyCache remembers recently applied transition fingerprints so
// retried orchestrator calls short-circuit before touching the store. A
// cache miss is not authoritative; the stored inputs hash is.
type IdempotencyCache interface {
	Seen(ctx context.Context, key string) (bool, error)
	Remember(ctx context.Context, key string, ttl time.Duration) error
}

// LogAudit logs an audit-relevant event and forwards it to the publisher
// when one is configured.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher AuditPublisher, event audit.Event, attrs ...any) {
	args := append(attrs,
		"entity_type", string(event.EntityType),
		"entity_id", event.EntityID,
		"action", string(event.Action),
		"log_type", "audit",
	)
	if logger != nil {
		logger.InfoContext(ctx, string(event.Action), args...)
	}
	if publisher == nil {
		return
	}
	if err := publisher.Emit(ctx, event); err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to emit audit event", "action", event.Action, "error", err)
	}
}
