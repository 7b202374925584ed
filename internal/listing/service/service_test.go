package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"dealdesk/internal/listing/models"
	"dealdesk/internal/listing/ports"
	"dealdesk/internal/listing/store/memory"
	domain "dealdesk/pkg/domain"
	dErrors "dealdesk/pkg/domain-errors"
	audit "dealdesk/pkg/platform/audit"
	auditMemory "dealdesk/pkg/platform/audit/store/memory"
	"dealdesk/pkg/platform/audit/publisher"
)

// =============================================================================
// Listing Service Test Suite
// =============================================================================

type ListingServiceSuite struct {
	suite.Suite
	store     *memory.InMemoryListingStore
	auditSink *auditMemory.InMemoryStore
	service   *Service
}

func TestListingServiceSuite(t *testing.T) {
	suite.Run(t, new(ListingServiceSuite))
}

func (s *ListingServiceSuite) SetupTest() {
	s.store = memory.NewInMemoryListingStore()
	s.auditSink = auditMemory.NewInMemoryStore()

	var err error
	s.service, err = New(s.store,
		WithAuditPublisher(publisher.NewPublisher(s.auditSink)),
	)
	s.Require().NoError(err)
}

func (s *ListingServiceSuite) ingestNearDallas() *models.MarketListing {
	l, err := s.service.Ingest(context.Background(), IngestRequest{
		Source:               "scraper-test",
		Price:                24_000_00,
		EstimatedMarketValue: 45_000_00,
		Lat:                  ptr(33.0198),
		Lon:                  ptr(-96.6989),
	})
	s.Require().NoError(err)
	return l
}

// =============================================================================
// Constructor Tests
// =============================================================================

func (s *ListingServiceSuite) TestNew() {
	s.Run("nil store returns error", func() {
		_, err := New(nil)
		s.Error(err)
		s.Contains(err.Error(), "listing store is required")
	})
}

// =============================================================================
// Ingest Tests
// =============================================================================

func (s *ListingServiceSuite) TestIngest() {
	ctx := context.Background()

	s.Run("stores the listing with qualification computed", func() {
		l := s.ingestNearDallas()
		s.True(l.IsQualified)
		s.Equal(models.StatusAvailable, l.Status)
		s.Equal(int64(1), l.Version)
		s.NotEmpty(l.RuleSetVersion)
		s.Len(l.SubFlags, 3)
	})

	s.Run("missing source is refused", func() {
		_, err := s.service.Ingest(ctx, IngestRequest{
			Price:                10_000_00,
			EstimatedMarketValue: 30_000_00,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeMissingInput))
	})

	s.Run("price type defaults to full", func() {
		l, err := s.service.Ingest(ctx, IngestRequest{
			Source:               "scraper-test",
			Price:                3_000_00,
			EstimatedMarketValue: 40_000_00,
			State:                "tx",
		})
		s.Require().NoError(err)
		s.Equal(models.PriceFull, l.PriceType)
		s.Equal("TX", l.State)
	})
}

// =============================================================================
// Reevaluate Tests
// =============================================================================

func (s *ListingServiceSuite) TestReevaluate() {
	ctx := context.Background()

	s.Run("field change recomputes flags atomically", func() {
		l := s.ingestNearDallas()

		price := domain.Money(95_000_00)
		market := domain.Money(200_000_00)
		updated, err := s.service.Reevaluate(ctx, l.ID, UpdateFields{
			Price:                &price,
			EstimatedMarketValue: &market,
		})
		s.NoError(err)
		s.False(updated.IsQualified)
		s.False(updated.SubFlags["price_range"])
		s.True(updated.SubFlags["price_ratio"])
		s.True(updated.SubFlags["geo"])
		s.Equal(int64(2), updated.Version)
	})

	s.Run("qualification flip emits one audit entry", func() {
		l := s.ingestNearDallas()

		price := domain.Money(95_000_00)
		market := domain.Money(200_000_00)
		_, err := s.service.Reevaluate(ctx, l.ID, UpdateFields{
			Price:                &price,
			EstimatedMarketValue: &market,
		})
		s.Require().NoError(err)

		events, err := s.auditSink.ListByEntity(ctx, audit.EntityListing, l.ID.String())
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(audit.ActionListingQualificationChanged, events[0].Action)
		s.Equal("qualified", events[0].FromState)
		s.Equal("unqualified", events[0].ToState)
		s.Contains(events[0].Reason, "price_range")
	})

	s.Run("recomputation without a flip is silent", func() {
		l := s.ingestNearDallas()

		price := domain.Money(25_000_00) // still qualified
		_, err := s.service.Reevaluate(ctx, l.ID, UpdateFields{Price: &price})
		s.Require().NoError(err)

		events, err := s.auditSink.ListByEntity(ctx, audit.EntityListing, l.ID.String())
		s.NoError(err)
		s.Empty(events)
	})

	s.Run("unknown listing is not found", func() {
		_, err := s.service.Reevaluate(ctx, domain.NewListingID(), UpdateFields{})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("negative price is invalid", func() {
		l := s.ingestNearDallas()
		price := domain.Money(-1)
		_, err := s.service.Reevaluate(ctx, l.ID, UpdateFields{Price: &price})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("concurrent re-evaluations of one listing serialize", func() {
		l := s.ingestNearDallas()

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			price := domain.Money(20_000_00 + int64(i)*100_00)
			go func() {
				defer wg.Done()
				_, err := s.service.Reevaluate(ctx, l.ID, UpdateFields{Price: &price})
				s.NoError(err)
			}()
		}
		wg.Wait()

		final, err := s.service.GetListing(ctx, l.ID)
		s.Require().NoError(err)
		// 1 create + 16 serialized updates, none lost to conflicts.
		s.Equal(int64(17), final.Version)
		// Flags are consistent with the final price.
		out := s.service.Qualify(final)
		s.Equal(out.IsQualified, final.IsQualified)
		s.Equal(out.SubFlags, final.SubFlags)
	})
}

// =============================================================================
// Lifecycle Status Tests
// =============================================================================

func (s *ListingServiceSuite) TestUpdateStatus() {
	ctx := context.Background()

	s.Run("walks the outreach lifecycle", func() {
		l := s.ingestNearDallas()

		for _, status := range []models.Status{
			models.StatusContacted,
			models.StatusVisitScheduled,
			models.StatusPurchased,
		} {
			updated, err := s.service.UpdateStatus(ctx, l.ID, UpdateStatusRequest{Status: status})
			s.Require().NoError(err, "to %s", status)
			s.Equal(status, updated.Status)
		}
	})

	s.Run("unlisted status change is refused", func() {
		l := s.ingestNearDallas()

		_, err := s.service.UpdateStatus(ctx, l.ID, UpdateStatusRequest{
			Status: models.StatusPurchased,
		})
		s.True(dErrors.HasCode(err, dErrors.CodePreconditionNotMet))
	})

	s.Run("terminal statuses accept no changes", func() {
		l := s.ingestNearDallas()
		_, err := s.service.UpdateStatus(ctx, l.ID, UpdateStatusRequest{Status: models.StatusDismissed})
		s.Require().NoError(err)

		_, err = s.service.UpdateStatus(ctx, l.ID, UpdateStatusRequest{Status: models.StatusContacted})
		s.True(dErrors.HasCode(err, dErrors.CodePreconditionNotMet))
	})

	s.Run("same status is a no-op", func() {
		l := s.ingestNearDallas()
		updated, err := s.service.UpdateStatus(ctx, l.ID, UpdateStatusRequest{Status: models.StatusAvailable})
		s.NoError(err)
		s.Equal(l.Version, updated.Version)
	})

	s.Run("purchase links the property", func() {
		l := s.ingestNearDallas()
		_, err := s.service.UpdateStatus(ctx, l.ID, UpdateStatusRequest{Status: models.StatusContacted})
		s.Require().NoError(err)

		pid := domain.NewPropertyID()
		updated, err := s.service.UpdateStatus(ctx, l.ID, UpdateStatusRequest{
			Status:     models.StatusPurchased,
			PropertyID: &pid,
		})
		s.NoError(err)
		s.Require().NotNil(updated.PropertyID)
		s.Equal(pid, *updated.PropertyID)
	})

	s.Run("property link outside purchase is invalid", func() {
		l := s.ingestNearDallas()
		pid := domain.NewPropertyID()
		_, err := s.service.UpdateStatus(ctx, l.ID, UpdateStatusRequest{
			Status:     models.StatusContacted,
			PropertyID: &pid,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("status change is audited", func() {
		l := s.ingestNearDallas()
		_, err := s.service.UpdateStatus(ctx, l.ID, UpdateStatusRequest{
			Status: models.StatusContacted,
			Actor:  "sourcing-agent",
		})
		s.Require().NoError(err)

		events, err := s.auditSink.ListByEntity(ctx, audit.EntityListing, l.ID.String())
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(audit.ActionListingStatusChanged, events[0].Action)
		s.Equal("available", events[0].FromState)
		s.Equal("contacted", events[0].ToState)
		s.Equal("sourcing-agent", events[0].Actor)
	})
}

// =============================================================================
// List Tests
// =============================================================================

func (s *ListingServiceSuite) TestListListings() {
	ctx := context.Background()

	s.Run("filters by qualification and orders by score", func() {
		s.ingestNearDallas()
		_, err := s.service.Ingest(ctx, IngestRequest{
			Source:               "scraper-test",
			Price:                95_000_00, // outside the price window
			EstimatedMarketValue: 200_000_00,
			State:                "TX",
		})
		s.Require().NoError(err)

		qualified := true
		listings, err := s.service.ListListings(ctx, ports.ListFilter{Qualified: &qualified})
		s.Require().NoError(err)
		s.Require().Len(listings, 1)
		s.True(listings[0].IsQualified)
	})
}
