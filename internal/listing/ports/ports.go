// Package ports defines shared interfaces for the listing module.
package ports

import (
	"context"
	"log/slog"

	"dealdesk/internal/listing/models"
	domain "dealdesk/pkg/domain"
	audit "dealdesk/pkg/platform/audit"
)

// ListFilter narrows a listing query. Nil fields match everything.
type ListFilter struct {
	Qualified *bool
	Status    *models.Status
}

// ListingStore persists market listings. Update is guarded by optimistic
// versioning; implementations return sentinel.ErrVersionConflict when the
// stored version moved. The qualification sub-flags and the derived
// IsQualified travel in the same row, so one Update is the whole atomic
// recomputation.
type ListingStore interface {
	Create(ctx context.Context, listing *models.MarketListing) error
	Get(ctx context.Context, id domain.ListingID) (*models.MarketListing, error)
	Update(ctx context.Context, listing *models.MarketListing, expectedVersion int64) error
	List(ctx context.Context, filter ListFilter) ([]*models.MarketListing, error)
}

// AuditPublisher emits qualification flips and status changes.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
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
