package models

import (
	"time"

	"dealdesk/internal/inspection"
	domain "dealdesk/pkg/domain"
)

// InspectionResult records one inspection submission. Only the latest
// result is authoritative for a property; earlier results are kept for
// history and never mutated.
type InspectionResult struct {
	ID          domain.InspectionID    `json:"id"`
	PropertyID  domain.PropertyID      `json:"property_id"`
	DefectKeys  []string               `json:"defect_keys"`
	TitleStatus domain.TitleStatus     `json:"title_status"`
	Aggregation inspection.Aggregation `json:"aggregation"`
	Notes       string                 `json:"notes,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}
