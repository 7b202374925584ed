package qualify

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "dealdesk/pkg/domain"
	dErrors "dealdesk/pkg/domain-errors"
)

func TestEvaluateRatioRule(t *testing.T) {
	t.Run("passes under the cap", func(t *testing.T) {
		// asking 20,000 against 30,000 market value at 70% -> cap 21,000
		res, err := EvaluateRatioRule(20_000_00, 30_000_00, 0.70)
		require.NoError(t, err)
		assert.True(t, res.Passed)
		assert.Equal(t, RulePurchaseRatio, res.Rule)
		assert.Equal(t, domain.Money(21_000_00), res.Detail.MaxAllowed)
		assert.Equal(t, domain.Money(1_000_00), res.Detail.Margin)
	})

	t.Run("fails over the cap", func(t *testing.T) {
		// asking 40,000 against 50,000 at 70% -> cap 35,000
		res, err := EvaluateRatioRule(40_000_00, 50_000_00, 0.70)
		require.NoError(t, err)
		assert.False(t, res.Passed)
		assert.Equal(t, domain.Money(35_000_00), res.Detail.MaxAllowed)
		assert.Equal(t, domain.Money(-5_000_00), res.Detail.Margin)
	})

	t.Run("equality passes", func(t *testing.T) {
		res, err := EvaluateRatioRule(21_000_00, 30_000_00, 0.70)
		require.NoError(t, err)
		assert.True(t, res.Passed)
		assert.Equal(t, domain.Money(0), res.Detail.Margin)
	})

	t.Run("cap rounds down to the cent", func(t *testing.T) {
		// 333.33 * 0.70 = 233.331 -> 233.33, not 233.34
		res, err := EvaluateRatioRule(0, 333_33, 0.70)
		require.NoError(t, err)
		assert.Equal(t, domain.Money(233_33), res.Detail.MaxAllowed)
	})

	t.Run("rejects negative price", func(t *testing.T) {
		_, err := EvaluateRatioRule(-1, 30_000_00, 0.70)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects NaN ratio", func(t *testing.T) {
		_, err := EvaluateRatioRule(20_000_00, 30_000_00, math.NaN())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("missing baseline reported as missing input", func(t *testing.T) {
		_, err := EvaluateRatioRule(20_000_00, 0, 0.70)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeMissingInput))
	})
}

func TestEvaluateInvestmentRule(t *testing.T) {
	t.Run("passes under the ARV cap", func(t *testing.T) {
		// 30,000 price + 5,500 repairs against 65,000 ARV at 80% -> cap 52,000
		res, err := EvaluateInvestmentRule(30_000_00, 5_500_00, 65_000_00, 0.80)
		require.NoError(t, err)
		assert.True(t, res.Passed)
		assert.Equal(t, domain.Money(35_500_00), res.Detail.TotalInvestment)
		assert.Equal(t, domain.Money(52_000_00), res.Detail.MaxAllowed)
	})

	t.Run("fails when repairs push total over the cap", func(t *testing.T) {
		res, err := EvaluateInvestmentRule(30_000_00, 25_000_00, 65_000_00, 0.80)
		require.NoError(t, err)
		assert.False(t, res.Passed)
	})

	t.Run("monotonic in extra costs", func(t *testing.T) {
		// Increasing repair costs with everything else fixed can only
		// flip PASS -> FAIL, never the other way.
		prevPassed := true
		for extra := domain.Money(0); extra <= 30_000_00; extra += 1_000_00 {
			res, err := EvaluateInvestmentRule(30_000_00, extra, 65_000_00, 0.80)
			require.NoError(t, err)
			if res.Passed {
				assert.True(t, prevPassed, "pass must not reappear as costs grow (extra=%s)", extra)
			}
			prevPassed = res.Passed
		}
		assert.False(t, prevPassed, "sweep should end in failure")
	})

	t.Run("missing ARV reported as missing input", func(t *testing.T) {
		_, err := EvaluateInvestmentRule(30_000_00, 5_500_00, 0, 0.80)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeMissingInput))
	})

	t.Run("rejects negative extra costs", func(t *testing.T) {
		_, err := EvaluateInvestmentRule(30_000_00, -1, 65_000_00, 0.80)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestEvaluateRangeRule(t *testing.T) {
	t.Run("inclusive bounds", func(t *testing.T) {
		for _, price := range []domain.Money{0, 40_000_00, 80_000_00} {
			res, err := EvaluateRangeRule(price, 0, 80_000_00)
			require.NoError(t, err)
			assert.True(t, res.Passed, "price %s should be in range", price)
		}
	})

	t.Run("outside the window fails", func(t *testing.T) {
		res, err := EvaluateRangeRule(80_000_01, 0, 80_000_00)
		require.NoError(t, err)
		assert.False(t, res.Passed)
	})

	t.Run("inverted range rejected", func(t *testing.T) {
		_, err := EvaluateRangeRule(10_000_00, 50_000_00, 40_000_00)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestEvaluateGeoRule(t *testing.T) {
	hubs := []Hub{
		{Name: "Dallas", Point: Point{Lat: 32.7767, Lon: -96.7970}},
		{Name: "Houston", Point: Point{Lat: 29.7604, Lon: -95.3698}},
	}

	t.Run("inside radius of one hub passes", func(t *testing.T) {
		// Plano sits ~20 miles from downtown Dallas.
		res, err := EvaluateGeoRule(Point{Lat: 33.0198, Lon: -96.6989}, hubs, 100)
		require.NoError(t, err)
		assert.True(t, res.Passed)
		assert.Equal(t, "Dallas", res.Detail.NearestHub)
		assert.Less(t, res.Detail.DistanceMiles, 30.0)
	})

	t.Run("outside every radius fails with nearest hub reported", func(t *testing.T) {
		// Denver is nowhere near Texas.
		res, err := EvaluateGeoRule(Point{Lat: 39.7392, Lon: -104.9903}, hubs, 100)
		require.NoError(t, err)
		assert.False(t, res.Passed)
		assert.Equal(t, "Dallas", res.Detail.NearestHub)
		assert.Greater(t, res.Detail.DistanceMiles, 100.0)
	})

	t.Run("no hubs configured is missing input", func(t *testing.T) {
		_, err := EvaluateGeoRule(Point{}, nil, 100)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeMissingInput))
	})

	t.Run("zero radius rejected", func(t *testing.T) {
		_, err := EvaluateGeoRule(Point{}, hubs, 0)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestRuleSetActive(t *testing.T) {
	rs := DefaultRuleSet()
	require.Len(t, rs.Active(), 3)

	// Disabling a predicate is a config edit; the engine never hardcodes
	// the active set.
	for i := range rs.Predicates {
		if rs.Predicates[i].Name == PredicateGeo {
			rs.Predicates[i].Enabled = false
		}
	}
	active := rs.Active()
	require.Len(t, active, 2)
	for _, p := range active {
		assert.NotEqual(t, PredicateGeo, p.Name)
	}
}
