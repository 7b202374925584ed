// Package audit defines the append-only decision trail. Every stage
// transition (accepted or rejected) and every listing qualification flip
// produces one entry. Entries are never updated or deleted by normal
// operation.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EntityType scopes audit queries.
type EntityType string

const (
	EntityProperty EntityType = "property"
	EntityListing  EntityType = "listing"
)

// IsValid checks the entity type against the supported values.
func (t EntityType) IsValid() bool {
	return t == EntityProperty || t == EntityListing
}

// Action names the kind of decision that was recorded.
type Action string

const (
	// ActionStageTransition: a property moved between acquisition stages.
	ActionStageTransition Action = "stage_transition"
	// ActionTransitionRejected: a requested transition was refused; the
	// refusal itself must be explainable after the fact.
	ActionTransitionRejected Action = "transition_rejected"
	// ActionListingQualificationChanged: a listing's derived qualification flipped.
	ActionListingQualificationChanged Action = "listing_qualification_changed"
	// ActionListingStatusChanged: a listing moved along its lifecycle axis.
	ActionListingStatusChanged Action = "listing_status_changed"
)

// Event is one immutable audit entry. Metrics holds the decision-metrics
// snapshot as produced by the owning service, serialized so the trail
// stays readable after rule sets change.
type Event struct {
	ID         uuid.UUID       `json:"id"`
	EntityType EntityType      `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Action     Action          `json:"action"`
	FromState  string          `json:"from_state,omitempty"`
	ToState    string          `json:"to_state,omitempty"`
	Decision   string          `json:"decision,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	Actor      string          `json:"actor,omitempty"`
	Metrics    json.RawMessage `json:"metrics,omitempty"`
	RequestID  string          `json:"request_id,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Store persists audit events. Implementations must be append-only.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByEntity(ctx context.Context, entityType EntityType, entityID string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
