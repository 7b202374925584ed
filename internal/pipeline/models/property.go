package models

import (
	"time"

	domain "dealdesk/pkg/domain"
	dErrors "dealdesk/pkg/domain-errors"
)

// DocumentType names a document required before underwriting starts.
type DocumentType string

const (
	DocumentTitle          DocumentType = "title"
	DocumentTaxCertificate DocumentType = "tax_certificate"
	DocumentSellerID       DocumentType = "seller_id"
)

// RequiredDocuments lists the document types that must be on file before
// a property leaves documents_pending.
func RequiredDocuments() []DocumentType {
	return []DocumentType{DocumentTitle, DocumentTaxCertificate, DocumentSellerID}
}

// ParseDocumentType validates external document type input.
func ParseDocumentType(s string) (DocumentType, error) {
	d := DocumentType(s)
	switch d {
	case DocumentTitle, DocumentTaxCertificate, DocumentSellerID:
		return d, nil
	}
	return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown document type %q", s)
}

// Location is either a city/state pair or a coordinate, depending on what
// the source provided.
type Location struct {
	City  string   `json:"city,omitempty"`
	State string   `json:"state,omitempty"`
	Lat   *float64 `json:"lat,omitempty"`
	Lon   *float64 `json:"lon,omitempty"`
}

// Property is a mobile home moving through the acquisition pipeline.
//
// Invariants:
//   - RepairEstimate is set only after an inspection has been submitted.
//   - ARV must be present before the investment rule runs.
//   - Stage and the decision metrics behind it are owned exclusively by
//     the pipeline service; no other code path writes them.
type Property struct {
	ID          domain.PropertyID `json:"id"`
	Stage       Stage             `json:"stage"`
	AskingPrice domain.Money      `json:"asking_price"`
	MarketValue domain.Money      `json:"market_value"`
	// ARV is the after-repair value; nil until an estimate exists.
	ARV *domain.Money `json:"arv,omitempty"`
	// RepairEstimate is nil until inspection submission.
	RepairEstimate *domain.Money      `json:"repair_estimate,omitempty"`
	TitleStatus    domain.TitleStatus `json:"title_status,omitempty"`
	DefectKeys     []string           `json:"defect_keys,omitempty"`
	Location       Location           `json:"location"`
	Documents      []DocumentType     `json:"documents,omitempty"`

	// LastInputsHash fingerprints the inputs behind the most recent
	// accepted transition; retried orchestrator calls are detected by
	// comparing against it.
	LastInputsHash string `json:"last_inputs_hash,omitempty"`

	// Version backs the optimistic concurrency check in the stores.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate enforces construction invariants for a new property.
func (p *Property) Validate() error {
	if p.ID.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "property id is required")
	}
	if p.AskingPrice < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "asking_price cannot be negative")
	}
	if p.MarketValue < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "market_value cannot be negative")
	}
	if !p.Stage.IsValid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "invalid stage %q", p.Stage)
	}
	return nil
}

// HasRequiredDocuments reports whether every required document type is on
// file.
func (p *Property) HasRequiredDocuments() bool {
	present := make(map[DocumentType]bool, len(p.Documents))
	for _, d := range p.Documents {
		present[d] = true
	}
	for _, required := range RequiredDocuments() {
		if !present[required] {
			return false
		}
	}
	return true
}

// AddDocument records a document type, deduplicating.
func (p *Property) AddDocument(doc DocumentType) {
	for _, d := range p.Documents {
		if d == doc {
			return
		}
	}
	p.Documents = append(p.Documents, doc)
}

// Clone returns a deep copy so callers can mutate a candidate state
// without touching the stored one.
func (p *Property) Clone() *Property {
	cp := *p
	if p.ARV != nil {
		arv := *p.ARV
		cp.ARV = &arv
	}
	if p.RepairEstimate != nil {
		re := *p.RepairEstimate
		cp.RepairEstimate = &re
	}
	cp.DefectKeys = append([]string(nil), p.DefectKeys...)
	cp.Documents = append([]DocumentType(nil), p.Documents...)
	if p.Location.Lat != nil {
		lat := *p.Location.Lat
		cp.Location.Lat = &lat
	}
	if p.Location.Lon != nil {
		lon := *p.Location.Lon
		cp.Location.Lon = &lon
	}
	return &cp
}
