package inspection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "dealdesk/pkg/domain"
)

func TestAggregate(t *testing.T) {
	table := DefaultCostTable()

	t.Run("sums matched costs", func(t *testing.T) {
		// roof $3,000 + hvac $2,500 = $5,500
		agg := Aggregate([]string{"roof", "hvac"}, domain.TitleClean, table)
		assert.Equal(t, domain.Money(5_500_00), agg.RepairEstimate)
		assert.Equal(t, domain.Money(3_000_00), agg.Breakdown[domain.DefectRoof])
		assert.Equal(t, domain.Money(2_500_00), agg.Breakdown[domain.DefectHVAC])
		assert.Empty(t, agg.UnknownKeys)
		assert.False(t, agg.HighRisk)
	})

	t.Run("identical key set is idempotent", func(t *testing.T) {
		first := Aggregate([]string{"roof", "hvac"}, domain.TitleClean, table)
		second := Aggregate([]string{"hvac", "roof"}, domain.TitleClean, table)
		assert.Equal(t, first.RepairEstimate, second.RepairEstimate)
		assert.Equal(t, first.Breakdown, second.Breakdown)
	})

	t.Run("duplicates count once", func(t *testing.T) {
		agg := Aggregate([]string{"roof", "roof", "roof"}, domain.TitleClean, table)
		assert.Equal(t, table.Costs[domain.DefectRoof], agg.RepairEstimate)
	})

	t.Run("unknown keys reported not priced", func(t *testing.T) {
		agg := Aggregate([]string{"roof", "haunted", "leaky vibes"}, domain.TitleClean, table)
		assert.Equal(t, table.Costs[domain.DefectRoof], agg.RepairEstimate)
		assert.Equal(t, []string{"haunted", "leaky vibes"}, agg.UnknownKeys)
	})

	t.Run("known key absent from cost table reported", func(t *testing.T) {
		partial := CostTable{
			Version: "test",
			Costs: map[domain.DefectKey]domain.Money{
				domain.DefectRoof: 3_000_00,
			},
		}
		agg := Aggregate([]string{"roof", "hvac"}, domain.TitleClean, partial)
		assert.Equal(t, domain.Money(3_000_00), agg.RepairEstimate)
		assert.Equal(t, []string{"hvac"}, agg.UnknownKeys)
	})

	t.Run("non-clean title sets high risk without blocking the sum", func(t *testing.T) {
		for _, title := range []domain.TitleStatus{domain.TitleMissing, domain.TitleLien, domain.TitleOther} {
			agg := Aggregate([]string{"roof"}, title, table)
			assert.True(t, agg.HighRisk, "title %s should flag high risk", title)
			assert.Equal(t, domain.Money(3_000_00), agg.RepairEstimate)
		}
	})

	t.Run("empty defect set prices to zero", func(t *testing.T) {
		agg := Aggregate(nil, domain.TitleClean, table)
		assert.Equal(t, domain.Money(0), agg.RepairEstimate)
		require.Empty(t, agg.Breakdown)
	})
}
