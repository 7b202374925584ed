// Package qualify evaluates the numeric qualification rules applied to
// property deals and market listings. Every function here is pure: no I/O,
// no stage knowledge, no persistence. Callers get structured results they
// can render or test deterministically; a rule that fails is a result,
// never an error.
package qualify

import (
	"math"

	domain "dealdesk/pkg/domain"
	dErrors "dealdesk/pkg/domain-errors"
)

// RuleName identifies which rule produced a result.
type RuleName string

const (
	RulePurchaseRatio RuleName = "purchase_ratio"
	RuleInvestment    RuleName = "investment"
	RulePriceRange    RuleName = "price_range"
	RuleGeo           RuleName = "geo"
)

// RuleResult is the structured outcome of a single rule evaluation.
type RuleResult struct {
	Rule   RuleName `json:"rule"`
	Passed bool     `json:"passed"`
	Detail Detail   `json:"detail"`
}

// Detail carries the numbers behind a decision. Only the fields relevant
// to the producing rule are populated.
type Detail struct {
	Price           domain.Money `json:"price,omitempty"`
	BaselineValue   domain.Money `json:"baseline_value,omitempty"`
	Ratio           float64      `json:"ratio,omitempty"`
	ExtraCosts      domain.Money `json:"extra_costs,omitempty"`
	TotalInvestment domain.Money `json:"total_investment,omitempty"`
	MaxAllowed      domain.Money `json:"max_allowed,omitempty"`
	// Margin is MaxAllowed minus the evaluated amount; negative when the
	// rule failed.
	Margin domain.Money `json:"margin,omitempty"`

	MinPrice domain.Money `json:"min_price,omitempty"`
	MaxPrice domain.Money `json:"max_price,omitempty"`

	NearestHub    string  `json:"nearest_hub,omitempty"`
	DistanceMiles float64 `json:"distance_miles,omitempty"`
	RadiusMiles   float64 `json:"radius_miles,omitempty"`
}

func validRatio(ratio float64) error {
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) || ratio <= 0 || ratio > 1 {
		return dErrors.Newf(dErrors.CodeInvalidInput, "ratio must be in (0, 1], got %v", ratio)
	}
	return nil
}

func validAmount(name string, m domain.Money) error {
	if m < 0 {
		return dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be negative", name)
	}
	return nil
}

// EvaluateRatioRule applies the purchase-price rule: price must not exceed
// baseline * ratio, with the cap rounded down to the cent (conservative
// for the buyer). Equality passes.
func EvaluateRatioRule(price, baselineValue domain.Money, ratio float64) (RuleResult, error) {
	if err := validRatio(ratio); err != nil {
		return RuleResult{}, err
	}
	if err := validAmount("price", price); err != nil {
		return RuleResult{}, err
	}
	if baselineValue <= 0 {
		return RuleResult{}, dErrors.New(dErrors.CodeMissingInput, "baseline value is required and must be positive")
	}

	maxAllowed := baselineValue.MulRatio(ratio)
	return RuleResult{
		Rule:   RulePurchaseRatio,
		Passed: price <= maxAllowed,
		Detail: Detail{
			Price:         price,
			BaselineValue: baselineValue,
			Ratio:         ratio,
			MaxAllowed:    maxAllowed,
			Margin:        maxAllowed - price,
		},
	}, nil
}

// EvaluateInvestmentRule applies the total-investment rule: price plus
// extra costs must not exceed baseline * ratio. Same rounding and equality
// semantics as EvaluateRatioRule.
func EvaluateInvestmentRule(price, extraCosts, baselineValue domain.Money, ratio float64) (RuleResult, error) {
	if err := validRatio(ratio); err != nil {
		return RuleResult{}, err
	}
	if err := validAmount("price", price); err != nil {
		return RuleResult{}, err
	}
	if err := validAmount("extra_costs", extraCosts); err != nil {
		return RuleResult{}, err
	}
	if baselineValue <= 0 {
		return RuleResult{}, dErrors.New(dErrors.CodeMissingInput, "baseline value is required and must be positive")
	}

	total := price + extraCosts
	maxAllowed := baselineValue.MulRatio(ratio)
	return RuleResult{
		Rule:   RuleInvestment,
		Passed: total <= maxAllowed,
		Detail: Detail{
			Price:           price,
			ExtraCosts:      extraCosts,
			TotalInvestment: total,
			BaselineValue:   baselineValue,
			Ratio:           ratio,
			MaxAllowed:      maxAllowed,
			Margin:          maxAllowed - total,
		},
	}, nil
}

// EvaluateRangeRule checks that price falls inside [min, max] inclusive.
func EvaluateRangeRule(price, min, max domain.Money) (RuleResult, error) {
	if err := validAmount("price", price); err != nil {
		return RuleResult{}, err
	}
	if min > max {
		return RuleResult{}, dErrors.Newf(dErrors.CodeInvalidInput, "price range is inverted: min %s > max %s", min, max)
	}

	return RuleResult{
		Rule:   RulePriceRange,
		Passed: price >= min && price <= max,
		Detail: Detail{
			Price:    price,
			MinPrice: min,
			MaxPrice: max,
		},
	}, nil
}

// EvaluateGeoRule passes when the point lies within radiusMiles of any
// hub. The nearest hub and its distance are always reported so a failure
// can say how far off the listing is.
func EvaluateGeoRule(point Point, hubs []Hub, radiusMiles float64) (RuleResult, error) {
	if len(hubs) == 0 {
		return RuleResult{}, dErrors.New(dErrors.CodeMissingInput, "geo rule requires at least one hub")
	}
	if math.IsNaN(radiusMiles) || radiusMiles <= 0 {
		return RuleResult{}, dErrors.Newf(dErrors.CodeInvalidInput, "radius must be positive, got %v", radiusMiles)
	}

	nearest := hubs[0]
	nearestDist := distanceMiles(point, hubs[0].Point)
	for _, hub := range hubs[1:] {
		if d := distanceMiles(point, hub.Point); d < nearestDist {
			nearest, nearestDist = hub, d
		}
	}

	return RuleResult{
		Rule:   RuleGeo,
		Passed: nearestDist <= radiusMiles,
		Detail: Detail{
			NearestHub:    nearest.Name,
			DistanceMiles: math.Round(nearestDist*10) / 10,
			RadiusMiles:   radiusMiles,
		},
	}, nil
}
