package qualify

import (
	domain "dealdesk/pkg/domain"
)

// PredicateName identifies a listing qualification predicate. Names are
// stable identifiers recorded in audit snapshots, so decisions stay
// interpretable after the active rule set changes.
type PredicateName string

const (
	PredicatePriceRatio PredicateName = "price_ratio"
	PredicatePriceRange PredicateName = "price_range"
	PredicateGeo        PredicateName = "geo"
)

// PredicateConfig is one named, independently toggleable predicate.
// Thresholds live here rather than in code because every one of them has
// been changed at least once (ratio 0.70 -> 0.60, an age predicate added
// and later removed, the absolute price window added, the location rule
// widened from one state to hub radii). Disabling a predicate is a config
// edit, not a schema change.
type PredicateConfig struct {
	Name    PredicateName `json:"name"`
	Enabled bool          `json:"enabled"`
	// Weight contributes to the ranking score only; it never affects
	// pass/fail.
	Weight float64 `json:"weight"`

	// price_ratio parameters.
	Ratio float64 `json:"ratio,omitempty"`

	// price_range parameters.
	MinPrice domain.Money `json:"min_price,omitempty"`
	MaxPrice domain.Money `json:"max_price,omitempty"`

	// geo parameters. States is the fallback for listings that carry no
	// coordinates: membership passes the predicate.
	Hubs        []Hub    `json:"hubs,omitempty"`
	RadiusMiles float64  `json:"radius_miles,omitempty"`
	States      []string `json:"states,omitempty"`
}

// RuleSet is the ordered list of predicates applied to market listings.
// Version is recorded into every decision snapshot.
type RuleSet struct {
	Version    string            `json:"version"`
	Predicates []PredicateConfig `json:"predicates"`
}

// Predicate returns the named predicate config, enabled or not.
func (rs RuleSet) Predicate(name PredicateName) (PredicateConfig, bool) {
	for _, p := range rs.Predicates {
		if p.Name == name {
			return p, true
		}
	}
	return PredicateConfig{}, false
}

// Active returns the enabled predicates in configured order.
func (rs RuleSet) Active() []PredicateConfig {
	out := make([]PredicateConfig, 0, len(rs.Predicates))
	for _, p := range rs.Predicates {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

// DealThresholds configures the two acquisition rules. Like the listing
// predicates these are inputs, not constants.
type DealThresholds struct {
	// PurchaseRatio caps asking price against as-is market value
	// (the "70% rule").
	PurchaseRatio float64 `json:"purchase_ratio"`
	// InvestmentRatio caps price plus repairs against ARV
	// (the "80% rule").
	InvestmentRatio float64 `json:"investment_ratio"`
}

// DefaultDealThresholds returns the thresholds currently in force.
func DefaultDealThresholds() DealThresholds {
	return DealThresholds{
		PurchaseRatio:   0.70,
		InvestmentRatio: 0.80,
	}
}

// DefaultRuleSet returns the listing rule set currently in force.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		Version: "2024-06",
		Predicates: []PredicateConfig{
			{
				Name:    PredicatePriceRatio,
				Enabled: true,
				Weight:  1.0,
				Ratio:   0.60,
			},
			{
				Name:     PredicatePriceRange,
				Enabled:  true,
				Weight:   1.0,
				MinPrice: 0,
				MaxPrice: 80_000_00,
			},
			{
				Name:        PredicateGeo,
				Enabled:     true,
				Weight:      1.0,
				RadiusMiles: 100,
				States:      []string{"TX"},
				Hubs: []Hub{
					{Name: "Dallas", Point: Point{Lat: 32.7767, Lon: -96.7970}},
					{Name: "Fort Worth", Point: Point{Lat: 32.7555, Lon: -97.3308}},
					{Name: "Austin", Point: Point{Lat: 30.2672, Lon: -97.7431}},
					{Name: "San Antonio", Point: Point{Lat: 29.4241, Lon: -98.4936}},
					{Name: "Houston", Point: Point{Lat: 29.7604, Lon: -95.3698}},
				},
			},
		},
	}
}
