package service

import (
	"fmt"

	"dealdesk/internal/listing/models"
	"dealdesk/internal/qualify"
)

// Outcome is the result of applying a rule set to one listing. IsQualified
// is the AND of the enabled predicates; Score is the weighted count of
// passing predicates and is used only for ranking.
type Outcome struct {
	IsQualified    bool                           `json:"is_qualified"`
	Score          float64                        `json:"score"`
	SubFlags       map[qualify.PredicateName]bool `json:"sub_flags"`
	Results        []qualify.RuleResult           `json:"results"`
	Reasoning      []string                       `json:"reasoning,omitempty"`
	RuleSetVersion string                         `json:"rule_set_version"`
}

// EvaluateListing applies the rule set's enabled predicates in order.
// Pure: no I/O, no mutation of the listing. A predicate that cannot be
// evaluated (missing market value, unknown predicate name) fails with its
// reason rather than erroring the whole evaluation; scraped listings are
// routinely incomplete and an incomplete listing is an unqualified one.
// Reasoning cites failures only.
func EvaluateListing(l *models.MarketListing, rs qualify.RuleSet) Outcome {
	out := Outcome{
		IsQualified:    true,
		SubFlags:       make(map[qualify.PredicateName]bool),
		RuleSetVersion: rs.Version,
	}

	for _, cfg := range rs.Active() {
		passed, result, reason := evaluatePredicate(l, cfg)
		out.SubFlags[cfg.Name] = passed
		if result != nil {
			out.Results = append(out.Results, *result)
		}
		if passed {
			out.Score += cfg.Weight
		} else {
			out.IsQualified = false
			out.Reasoning = append(out.Reasoning, reason)
		}
	}
	return out
}

func evaluatePredicate(l *models.MarketListing, cfg qualify.PredicateConfig) (bool, *qualify.RuleResult, string) {
	switch cfg.Name {
	case qualify.PredicatePriceRatio:
		result, err := qualify.EvaluateRatioRule(l.Price, l.EstimatedMarketValue, cfg.Ratio)
		if err != nil {
			return false, nil, fmt.Sprintf("price_ratio: %v", err)
		}
		if !result.Passed {
			return false, &result, fmt.Sprintf("price_ratio: price %s exceeds %s (%.0f%% of estimated value %s)",
				l.Price, result.Detail.MaxAllowed, cfg.Ratio*100, l.EstimatedMarketValue)
		}
		return true, &result, ""

	case qualify.PredicatePriceRange:
		result, err := qualify.EvaluateRangeRule(l.Price, cfg.MinPrice, cfg.MaxPrice)
		if err != nil {
			return false, nil, fmt.Sprintf("price_range: %v", err)
		}
		if !result.Passed {
			return false, &result, fmt.Sprintf("price_range: price %s outside [%s, %s]",
				l.Price, cfg.MinPrice, cfg.MaxPrice)
		}
		return true, &result, ""

	case qualify.PredicateGeo:
		if !l.HasCoordinates() {
			for _, state := range cfg.States {
				if l.State == state {
					return true, nil, ""
				}
			}
			return false, nil, fmt.Sprintf("geo: no coordinates and state %q is not served", l.State)
		}
		result, err := qualify.EvaluateGeoRule(qualify.Point{Lat: *l.Lat, Lon: *l.Lon}, cfg.Hubs, cfg.RadiusMiles)
		if err != nil {
			return false, nil, fmt.Sprintf("geo: %v", err)
		}
		if !result.Passed {
			return false, &result, fmt.Sprintf("geo: nearest hub %s is %.1f miles away (radius %.0f)",
				result.Detail.NearestHub, result.Detail.DistanceMiles, cfg.RadiusMiles)
		}
		return true, &result, ""
	}

	return false, nil, fmt.Sprintf("unknown predicate %q", cfg.Name)
}
