// Package models defines the market listing entity and its lifecycle.
package models

import (
	"time"

	"dealdesk/internal/qualify"
	domain "dealdesk/pkg/domain"
	dErrors "dealdesk/pkg/domain-errors"
)

// PriceType distinguishes a full asking price from a down-payment-only
// figure scraped from seller-financing listings.
type PriceType string

const (
	PriceFull        PriceType = "full"
	PriceDownPayment PriceType = "down_payment"
)

// ParsePriceType validates external price type input.
func ParsePriceType(s string) (PriceType, error) {
	p := PriceType(s)
	switch p {
	case PriceFull, PriceDownPayment:
		return p, nil
	}
	return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown price_type %q", s)
}

// Status is the listing's position in the outreach lifecycle. It is a
// separate axis from qualification: a dismissed listing keeps its
// qualification flags, and re-qualification never touches the status.
type Status string

const (
	StatusAvailable      Status = "available"
	StatusContacted      Status = "contacted"
	StatusVisitScheduled Status = "visit_scheduled"
	StatusPurchased      Status = "purchased"
	StatusDismissed      Status = "dismissed"
)

var allowedStatusTransitions = map[Status][]Status{
	StatusAvailable:      {StatusContacted, StatusDismissed},
	StatusContacted:      {StatusVisitScheduled, StatusPurchased, StatusDismissed},
	StatusVisitScheduled: {StatusPurchased, StatusDismissed},
}

// ParseStatus validates external status input.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusAvailable, StatusContacted, StatusVisitScheduled, StatusPurchased, StatusDismissed:
		return st, nil
	}
	return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown status %q", s)
}

// IsTerminal reports whether the status accepts no further changes.
func (s Status) IsTerminal() bool {
	return s == StatusPurchased || s == StatusDismissed
}

func (s Status) String() string { return string(s) }

// StatusTransitionAllowed reports whether the lifecycle lists from -> to.
func StatusTransitionAllowed(from, to Status) bool {
	for _, next := range allowedStatusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// MarketListing is a scraped listing under continuous qualification.
//
// SubFlags is keyed by predicate name rather than fixed columns so a
// predicate can be added or removed by config alone; flags for predicates
// no longer in the active set simply stop being written.
type MarketListing struct {
	ID     domain.ListingID `json:"id"`
	Source string           `json:"source"`

	Price                domain.Money `json:"price"`
	PriceType            PriceType    `json:"price_type"`
	EstimatedMarketValue domain.Money `json:"estimated_market_value"`

	State string   `json:"state,omitempty"`
	Lat   *float64 `json:"lat,omitempty"`
	Lon   *float64 `json:"lon,omitempty"`

	SubFlags       map[qualify.PredicateName]bool `json:"sub_flags,omitempty"`
	IsQualified    bool                           `json:"is_qualified"`
	Score          float64                        `json:"score"`
	Reasoning      []string                       `json:"reasoning,omitempty"`
	RuleSetVersion string                         `json:"rule_set_version,omitempty"`

	Status Status `json:"status"`

	// PropertyID links the listing to an acquired property once purchased.
	PropertyID *domain.PropertyID `json:"property_id,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate enforces construction invariants for a new listing.
func (l *MarketListing) Validate() error {
	if l.ID.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "listing id is required")
	}
	if l.Source == "" {
		return dErrors.New(dErrors.CodeMissingInput, "source is required")
	}
	if l.Price < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "price cannot be negative")
	}
	if l.EstimatedMarketValue < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "estimated_market_value cannot be negative")
	}
	if _, err := ParsePriceType(string(l.PriceType)); err != nil {
		return err
	}
	return nil
}

// HasCoordinates reports whether the listing carries a usable lat/lon.
func (l *MarketListing) HasCoordinates() bool {
	return l.Lat != nil && l.Lon != nil
}

// Clone returns a deep copy.
func (l *MarketListing) Clone() *MarketListing {
	cp := *l
	if l.Lat != nil {
		lat := *l.Lat
		cp.Lat = &lat
	}
	if l.Lon != nil {
		lon := *l.Lon
		cp.Lon = &lon
	}
	if l.PropertyID != nil {
		pid := *l.PropertyID
		cp.PropertyID = &pid
	}
	cp.Reasoning = append([]string(nil), l.Reasoning...)
	if l.SubFlags != nil {
		cp.SubFlags = make(map[qualify.PredicateName]bool, len(l.SubFlags))
		for k, v := range l.SubFlags {
			cp.SubFlags[k] = v
		}
	}
	return &cp
}
