package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"dealdesk/internal/inspection"
	"dealdesk/internal/qualify"
	domain "dealdesk/pkg/domain"
)

// DecisionMetrics snapshots the inputs and rule outputs behind one stage
// decision. The snapshot is stored with the transition and serialized into
// the audit entry, so a decision stays explainable after thresholds
// change. ThresholdVersions pin the configuration that was in force.
type DecisionMetrics struct {
	AskingPrice domain.Money  `json:"asking_price,omitempty"`
	MarketValue domain.Money  `json:"market_value,omitempty"`
	ARV         *domain.Money `json:"arv,omitempty"`
	RepairCosts *domain.Money `json:"repair_costs,omitempty"`

	Checks []qualify.RuleResult `json:"checks,omitempty"`

	// Inspection holds the aggregation for inspection-driven transitions.
	Inspection *inspection.Aggregation `json:"inspection,omitempty"`

	// Justification carries the human note behind an override or the
	// accepted action plan for a title review.
	Justification string `json:"justification,omitempty"`

	RuleSetVersion   string `json:"rule_set_version,omitempty"`
	CostTableVersion string `json:"cost_table_version,omitempty"`
}

// Hash fingerprints the snapshot. json.Marshal is deterministic for this
// struct (map keys are sorted), so identical inputs always produce the
// same hash; the stage machine uses it to detect retried calls.
func (m DecisionMetrics) Hash() string {
	raw, err := json.Marshal(m)
	if err != nil {
		// Marshal of this struct cannot fail; keep the signature clean.
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// MarshalJSONRaw returns the snapshot as raw JSON for audit storage.
func (m DecisionMetrics) MarshalJSONRaw() json.RawMessage {
	raw, _ := json.Marshal(m)
	return raw
}

// StageTransition is one immutable audit record of a stage change.
type StageTransition struct {
	ID         uuid.UUID         `json:"id"`
	PropertyID domain.PropertyID `json:"property_id"`
	FromStage  Stage             `json:"from_stage"`
	ToStage    Stage             `json:"to_stage"`
	Metrics    DecisionMetrics   `json:"metrics"`
	InputsHash string            `json:"inputs_hash"`
	Reason     string            `json:"reason"`
	Actor      string            `json:"actor"`
	CreatedAt  time.Time         `json:"created_at"`
}
