//go:build integration

package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"dealdesk/internal/listing/models"
	"dealdesk/internal/listing/ports"
	"dealdesk/internal/listing/store/postgres"
	"dealdesk/internal/qualify"
	domain "dealdesk/pkg/domain"
	"dealdesk/pkg/platform/sentinel"
	"dealdesk/pkg/testutil/containers"
)

type ListingStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *postgres.ListingStore
}

func TestListingStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ListingStoreSuite))
}

func (s *ListingStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.pg = mgr.GetPostgres(s.T())
	s.store = postgres.New(s.pg.Pool)
}

func (s *ListingStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(context.Background(), "market_listings"))
}

func (s *ListingStoreSuite) newListing(score float64) *models.MarketListing {
	lat, lon := 33.0198, -96.6989
	return &models.MarketListing{
		ID:                   domain.NewListingID(),
		Source:               "scraper-it",
		Price:                domain.Money(24_000_00),
		PriceType:            models.PriceFull,
		EstimatedMarketValue: domain.Money(45_000_00),
		State:                "TX",
		Lat:                  &lat,
		Lon:                  &lon,
		SubFlags: map[qualify.PredicateName]bool{
			qualify.PredicatePriceRatio: true,
			qualify.PredicatePriceRange: true,
			qualify.PredicateGeo:        true,
		},
		IsQualified:    true,
		Score:          score,
		Reasoning:      nil,
		RuleSetVersion: "default-1",
		Status:         models.StatusAvailable,
	}
}

func (s *ListingStoreSuite) TestCreateAndGet() {
	ctx := context.Background()
	l := s.newListing(3.0)

	s.Require().NoError(s.store.Create(ctx, l))
	s.Equal(int64(1), l.Version)

	loaded, err := s.store.Get(ctx, l.ID)
	s.Require().NoError(err)
	s.Equal(l.Price, loaded.Price)
	s.Equal(l.SubFlags, loaded.SubFlags)
	s.True(loaded.IsQualified)
	s.Equal(models.StatusAvailable, loaded.Status)
	s.Nil(loaded.PropertyID)
}

func (s *ListingStoreSuite) TestUpdateChecksVersion() {
	ctx := context.Background()
	l := s.newListing(3.0)
	s.Require().NoError(s.store.Create(ctx, l))

	updated := l.Clone()
	updated.Price = domain.Money(95_000_00)
	updated.IsQualified = false
	updated.SubFlags[qualify.PredicatePriceRange] = false
	s.Require().NoError(s.store.Update(ctx, updated, 1))

	loaded, err := s.store.Get(ctx, l.ID)
	s.Require().NoError(err)
	s.Equal(int64(2), loaded.Version)
	s.False(loaded.IsQualified)
	s.False(loaded.SubFlags[qualify.PredicatePriceRange])

	stale := l.Clone()
	s.ErrorIs(s.store.Update(ctx, stale, 1), sentinel.ErrVersionConflict)
}

func (s *ListingStoreSuite) TestUpdateUnknownIsNotFound() {
	l := s.newListing(1.0)
	s.ErrorIs(s.store.Update(context.Background(), l, 1), sentinel.ErrNotFound)
}

func (s *ListingStoreSuite) TestPurchaseLinksProperty() {
	ctx := context.Background()
	l := s.newListing(3.0)
	s.Require().NoError(s.store.Create(ctx, l))

	pid := domain.NewPropertyID()
	updated := l.Clone()
	updated.Status = models.StatusPurchased
	updated.PropertyID = &pid
	s.Require().NoError(s.store.Update(ctx, updated, 1))

	loaded, err := s.store.Get(ctx, l.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPurchased, loaded.Status)
	s.Require().NotNil(loaded.PropertyID)
	s.Equal(pid, *loaded.PropertyID)
}

func (s *ListingStoreSuite) TestListFiltersAndOrders() {
	ctx := context.Background()

	high := s.newListing(3.0)
	low := s.newListing(1.5)
	unqualified := s.newListing(0.0)
	unqualified.IsQualified = false
	unqualified.Status = models.StatusDismissed

	for _, l := range []*models.MarketListing{low, high, unqualified} {
		s.Require().NoError(s.store.Create(ctx, l))
	}

	qualified := true
	listings, err := s.store.List(ctx, ports.ListFilter{Qualified: &qualified})
	s.Require().NoError(err)
	s.Require().Len(listings, 2)
	// Ordered by score, best candidates first.
	s.Equal(high.ID, listings[0].ID)
	s.Equal(low.ID, listings[1].ID)

	dismissed := models.StatusDismissed
	listings, err = s.store.List(ctx, ports.ListFilter{Status: &dismissed})
	s.Require().NoError(err)
	s.Require().Len(listings, 1)
	s.Equal(unqualified.ID, listings[0].ID)

	all, err := s.store.List(ctx, ports.ListFilter{})
	s.Require().NoError(err)
	s.Len(all, 3)
}
