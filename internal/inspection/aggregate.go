// Package inspection turns a set of inspection defect keys into a repair
// cost estimate. Pure and idempotent: the estimate is always computed from
// the full current key set, never by adding deltas, so resubmitting the
// same set yields the same number.
package inspection

import (
	"sort"

	domain "dealdesk/pkg/domain"
)

// Aggregation is the outcome of pricing a defect set.
type Aggregation struct {
	RepairEstimate domain.Money                      `json:"repair_estimate"`
	Breakdown      map[domain.DefectKey]domain.Money `json:"breakdown"`
	// UnknownKeys lists inputs that matched neither the defect enumeration
	// nor the cost table. They are reported, not guessed into a cost.
	UnknownKeys []string `json:"unknown_keys,omitempty"`
	// HighRisk is set when the title is not clean. It routes the property
	// into title review; it never blocks the cost computation.
	HighRisk bool `json:"high_risk"`
}

// Aggregate prices the given defect keys against the cost table. Duplicate
// keys count once; input order is irrelevant. Title status is independent
// of the cost sum.
func Aggregate(defectKeys []string, title domain.TitleStatus, table CostTable) Aggregation {
	agg := Aggregation{
		Breakdown: make(map[domain.DefectKey]domain.Money),
		HighRisk:  !title.IsClean(),
	}

	seen := make(map[string]bool, len(defectKeys))
	for _, raw := range defectKeys {
		if seen[raw] {
			continue
		}
		seen[raw] = true

		key, ok := domain.ParseDefectKey(raw)
		if !ok {
			agg.UnknownKeys = append(agg.UnknownKeys, raw)
			continue
		}
		cost, priced := table.Costs[key]
		if !priced {
			agg.UnknownKeys = append(agg.UnknownKeys, raw)
			continue
		}
		agg.Breakdown[key] = cost
		agg.RepairEstimate += cost
	}

	sort.Strings(agg.UnknownKeys)
	return agg
}
