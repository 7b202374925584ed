package inspection

import domain "dealdesk/pkg/domain"

// CostTable maps defect categories to estimated repair cost. The table is
// versioned configuration: estimates get re-priced as contractor quotes
// change, and historical aggregations must name the version they used.
type CostTable struct {
	Version string                         `json:"version"`
	Costs   map[domain.DefectKey]domain.Money `json:"costs"`
}

// DefaultCostTable returns the repair cost table currently in force.
func DefaultCostTable() CostTable {
	return CostTable{
		Version: "2024-06",
		Costs: map[domain.DefectKey]domain.Money{
			domain.DefectRoof:        3_000_00,
			domain.DefectHVAC:        2_500_00,
			domain.DefectPlumbing:    1_500_00,
			domain.DefectElectrical:  1_800_00,
			domain.DefectFlooring:    1_200_00,
			domain.DefectSubfloor:    2_000_00,
			domain.DefectWindows:     800_00,
			domain.DefectDoors:       400_00,
			domain.DefectSiding:      1_000_00,
			domain.DefectSkirting:    600_00,
			domain.DefectWaterHeater: 700_00,
			domain.DefectDeck:        900_00,
			domain.DefectPaint:       500_00,
			domain.DefectAppliances:  1_100_00,
		},
	}
}
