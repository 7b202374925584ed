// Package service implements continuous qualification of market listings.
// It owns the qualification flags and the lifecycle status; nothing else
// writes them.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"dealdesk/internal/listing/metrics"
	"dealdesk/internal/listing/models"
	"dealdesk/internal/listing/ports"
	"dealdesk/internal/qualify"
	domain "dealdesk/pkg/domain"
	dErrors "dealdesk/pkg/domain-errors"
	audit "dealdesk/pkg/platform/audit"
	"dealdesk/pkg/platform/sentinel"
)

type Service struct {
	store          ports.ListingStore
	auditPublisher ports.AuditPublisher
	ruleSet        qualify.RuleSet
	metrics        *metrics.Metrics
	logger         *slog.Logger

	// locks serializes re-evaluations per listing so two concurrent field
	// updates never interleave their flag writes. Different listings
	// proceed in parallel.
	locks *keyedLocks
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(s *Service) { s.auditPublisher = publisher }
}

func WithRuleSet(rs qualify.RuleSet) Option {
	return func(s *Service) { s.ruleSet = rs }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(store ports.ListingStore, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("listing store is required")
	}

	svc := &Service{
		store:   store,
		ruleSet: qualify.DefaultRuleSet(),
		locks:   newKeyedLocks(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Qualify evaluates the given listing against the active rule set without
// persisting anything. This is the stateless entry point for callers that
// hold listing data the store has not seen.
func (s *Service) Qualify(l *models.MarketListing) Outcome {
	return EvaluateListing(l, s.ruleSet)
}

// IngestRequest registers a scraped listing.
type IngestRequest struct {
	Source               string
	Price                domain.Money
	PriceType            models.PriceType
	EstimatedMarketValue domain.Money
	State                string
	Lat                  *float64
	Lon                  *float64
}

// Ingest stores a new listing with its initial qualification computed.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*models.MarketListing, error) {
	l := &models.MarketListing{
		ID:                   domain.NewListingID(),
		Source:               req.Source,
		Price:                req.Price,
		PriceType:            req.PriceType,
		EstimatedMarketValue: req.EstimatedMarketValue,
		State:                strings.ToUpper(strings.TrimSpace(req.State)),
		Lat:                  req.Lat,
		Lon:                  req.Lon,
		Status:               models.StatusAvailable,
	}
	if l.PriceType == "" {
		l.PriceType = models.PriceFull
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}

	applyOutcome(l, s.Qualify(l))

	if err := s.store.Create(ctx, l); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create listing")
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "listing ingested",
			"listing_id", l.ID.String(),
			"source", l.Source,
			"is_qualified", l.IsQualified,
		)
	}
	return l, nil
}

// GetListing returns the current listing state.
func (s *Service) GetListing(ctx context.Context, id domain.ListingID) (*models.MarketListing, error) {
	l, err := s.store.Get(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "listing %s not found", id)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load listing")
	}
	return l, nil
}

// ListListings returns listings matching the filter.
func (s *Service) ListListings(ctx context.Context, filter ports.ListFilter) ([]*models.MarketListing, error) {
	listings, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list listings")
	}
	return listings, nil
}

// UpdateFields carries field changes that trigger re-qualification. Nil
// fields are left unchanged.
type UpdateFields struct {
	Price                *domain.Money
	PriceType            *models.PriceType
	EstimatedMarketValue *domain.Money
	State                *string
	Lat                  *float64
	Lon                  *float64
}

func (u UpdateFields) empty() bool {
	return u.Price == nil && u.PriceType == nil && u.EstimatedMarketValue == nil &&
		u.State == nil && u.Lat == nil && u.Lon == nil
}

// Reevaluate applies field changes and recomputes qualification in one
// atomic write. The per-listing lock means a reader never observes
// sub-flags from one evaluation combined with is_qualified from another.
// A flip of is_qualified emits an audit entry; a recomputation that lands
// on the same answer does not.
func (s *Service) Reevaluate(ctx context.Context, id domain.ListingID, updates UpdateFields) (*models.MarketListing, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	l, err := s.GetListing(ctx, id)
	if err != nil {
		return nil, err
	}

	next := l.Clone()
	if updates.Price != nil {
		if *updates.Price < 0 {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "price cannot be negative")
		}
		next.Price = *updates.Price
	}
	if updates.PriceType != nil {
		pt, perr := models.ParsePriceType(string(*updates.PriceType))
		if perr != nil {
			return nil, perr
		}
		next.PriceType = pt
	}
	if updates.EstimatedMarketValue != nil {
		if *updates.EstimatedMarketValue < 0 {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "estimated_market_value cannot be negative")
		}
		next.EstimatedMarketValue = *updates.EstimatedMarketValue
	}
	if updates.State != nil {
		next.State = strings.ToUpper(strings.TrimSpace(*updates.State))
	}
	if updates.Lat != nil {
		lat := *updates.Lat
		next.Lat = &lat
	}
	if updates.Lon != nil {
		lon := *updates.Lon
		next.Lon = &lon
	}

	wasQualified := l.IsQualified
	outcome := s.Qualify(next)
	applyOutcome(next, outcome)

	// The lock serializes writers for this listing, so a version conflict
	// here means an out-of-band write; surface it rather than retry.
	if err := s.store.Update(ctx, next, l.Version); err != nil {
		if errors.Is(err, sentinel.ErrVersionConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "concurrent modification, retry the call")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update listing")
	}

	if s.metrics != nil {
		s.metrics.IncrementReevaluation()
	}

	if next.IsQualified != wasQualified {
		if s.metrics != nil {
			s.metrics.IncrementFlip()
		}
		ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
			EntityType: audit.EntityListing,
			EntityID:   next.ID.String(),
			Action:     audit.ActionListingQualificationChanged,
			FromState:  qualifiedLabel(wasQualified),
			ToState:    qualifiedLabel(next.IsQualified),
			Reason:     strings.Join(outcome.Reasoning, "; "),
		})
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "listing re-evaluated",
			"listing_id", next.ID.String(),
			"is_qualified", next.IsQualified,
			"score", next.Score,
			"changed", updates.empty() == false,
		)
	}
	return next, nil
}

// UpdateStatusRequest moves a listing along the outreach lifecycle.
type UpdateStatusRequest struct {
	Status models.Status
	// PropertyID links the listing to the acquired property; set when the
	// status moves to purchased.
	PropertyID *domain.PropertyID
	Actor      string
}

// UpdateStatus validates and applies a lifecycle change. Purchased and
// dismissed are terminal.
func (s *Service) UpdateStatus(ctx context.Context, id domain.ListingID, req UpdateStatusRequest) (*models.MarketListing, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	l, err := s.GetListing(ctx, id)
	if err != nil {
		return nil, err
	}

	if l.Status == req.Status {
		return l, nil
	}
	if !models.StatusTransitionAllowed(l.Status, req.Status) {
		return nil, dErrors.Newf(dErrors.CodePreconditionNotMet,
			"status change %s -> %s is not listed", l.Status, req.Status)
	}
	if req.PropertyID != nil && req.Status != models.StatusPurchased {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "property_id may only be linked on purchase")
	}

	next := l.Clone()
	next.Status = req.Status
	if req.PropertyID != nil {
		next.PropertyID = req.PropertyID
	}

	if err := s.store.Update(ctx, next, l.Version); err != nil {
		if errors.Is(err, sentinel.ErrVersionConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "concurrent modification, retry the call")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update listing status")
	}

	if s.metrics != nil {
		s.metrics.IncrementStatus(req.Status.String())
	}
	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
		EntityType: audit.EntityListing,
		EntityID:   next.ID.String(),
		Action:     audit.ActionListingStatusChanged,
		FromState:  l.Status.String(),
		ToState:    req.Status.String(),
		Actor:      req.Actor,
	})
	return next, nil
}

// applyOutcome writes the qualification outcome onto the listing.
func applyOutcome(l *models.MarketListing, o Outcome) {
	l.SubFlags = o.SubFlags
	l.IsQualified = o.IsQualified
	l.Score = o.Score
	l.Reasoning = o.Reasoning
	l.RuleSetVersion = o.RuleSetVersion
}

func qualifiedLabel(q bool) string {
	if q {
		return "qualified"
	}
	return "unqualified"
}
