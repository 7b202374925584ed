package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealdesk/internal/listing/models"
	"dealdesk/internal/qualify"
)

func ptr[T any](v T) *T { return &v }

// listingNear returns a qualified baseline listing close to the Dallas
// hub; tests perturb one field at a time.
func listingNear() *models.MarketListing {
	return &models.MarketListing{
		Source:               "scraper-test",
		Price:                24_000_00,
		PriceType:            models.PriceFull,
		EstimatedMarketValue: 45_000_00,
		Lat:                  ptr(33.0198), // Plano, ~17 miles from Dallas
		Lon:                  ptr(-96.6989),
	}
}

func TestEvaluateListing(t *testing.T) {
	rs := qualify.DefaultRuleSet()

	t.Run("baseline passes every predicate", func(t *testing.T) {
		out := EvaluateListing(listingNear(), rs)
		assert.True(t, out.IsQualified)
		assert.Empty(t, out.Reasoning)
		assert.Equal(t, 3.0, out.Score)
		assert.Equal(t, rs.Version, out.RuleSetVersion)
		for name, passed := range out.SubFlags {
			assert.True(t, passed, "predicate %s", name)
		}
	})

	t.Run("geo failure alone is the only cited reason", func(t *testing.T) {
		l := listingNear()
		l.Price = 76_000_00
		l.EstimatedMarketValue = 130_000_00 // ratio still passes
		l.Lat = ptr(39.7392)                // Denver
		l.Lon = ptr(-104.9903)

		out := EvaluateListing(l, rs)
		assert.False(t, out.IsQualified)
		assert.True(t, out.SubFlags[qualify.PredicatePriceRange], "price 76000 is inside [0, 80000]")
		assert.False(t, out.SubFlags[qualify.PredicateGeo])
		require.Len(t, out.Reasoning, 1)
		assert.Contains(t, out.Reasoning[0], "geo:")
		assert.Equal(t, 2.0, out.Score)
	})

	t.Run("toggling one field flips exactly that sub-flag", func(t *testing.T) {
		before := EvaluateListing(listingNear(), rs)

		l := listingNear()
		l.Price = 95_000_00
		l.EstimatedMarketValue = 200_000_00 // ratio keeps passing
		after := EvaluateListing(l, rs)

		assert.True(t, before.SubFlags[qualify.PredicatePriceRange])
		assert.False(t, after.SubFlags[qualify.PredicatePriceRange])
		assert.Equal(t, before.SubFlags[qualify.PredicatePriceRatio], after.SubFlags[qualify.PredicatePriceRatio])
		assert.Equal(t, before.SubFlags[qualify.PredicateGeo], after.SubFlags[qualify.PredicateGeo])
		assert.False(t, after.IsQualified)
	})

	t.Run("disabled predicate is not evaluated", func(t *testing.T) {
		modified := qualify.DefaultRuleSet()
		for i := range modified.Predicates {
			if modified.Predicates[i].Name == qualify.PredicateGeo {
				modified.Predicates[i].Enabled = false
			}
		}

		l := listingNear()
		l.Lat = ptr(39.7392) // Denver: would fail geo
		l.Lon = ptr(-104.9903)

		out := EvaluateListing(l, modified)
		assert.True(t, out.IsQualified)
		_, evaluated := out.SubFlags[qualify.PredicateGeo]
		assert.False(t, evaluated)
		assert.Equal(t, 2.0, out.Score)
	})

	t.Run("missing market value fails ratio with its reason", func(t *testing.T) {
		l := listingNear()
		l.EstimatedMarketValue = 0

		out := EvaluateListing(l, rs)
		assert.False(t, out.IsQualified)
		assert.False(t, out.SubFlags[qualify.PredicatePriceRatio])
		require.NotEmpty(t, out.Reasoning)
		assert.Contains(t, out.Reasoning[0], "price_ratio:")
	})

	t.Run("state fallback serves listings without coordinates", func(t *testing.T) {
		l := listingNear()
		l.Lat, l.Lon = nil, nil
		l.State = "TX"
		assert.True(t, EvaluateListing(l, rs).IsQualified)

		l.State = "OK"
		out := EvaluateListing(l, rs)
		assert.False(t, out.IsQualified)
		assert.Contains(t, out.Reasoning[0], "not served")
	})

	t.Run("score weights passing predicates only", func(t *testing.T) {
		weighted := qualify.DefaultRuleSet()
		for i := range weighted.Predicates {
			if weighted.Predicates[i].Name == qualify.PredicatePriceRatio {
				weighted.Predicates[i].Weight = 2.5
			}
		}

		out := EvaluateListing(listingNear(), weighted)
		assert.InDelta(t, 4.5, out.Score, 1e-9)
	})
}
