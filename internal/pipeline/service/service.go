// Package service implements the acquisition stage machine. It is the only
// code path that writes a property's stage or decision metrics; rule math
// is delegated to the pure qualify and inspection packages.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"dealdesk/internal/inspection"
	"dealdesk/internal/pipeline/metrics"
	"dealdesk/internal/pipeline/models"
	"dealdesk/internal/pipeline/ports"
	"dealdesk/internal/qualify"
	domain "dealdesk/pkg/domain"
	dErrors "dealdesk/pkg/domain-errors"
	audit "dealdesk/pkg/platform/audit"
	"dealdesk/pkg/platform/sentinel"
)

// maxTransitionRetries bounds the optimistic-lock retry loop. Conflicts on
// the same property are rare (the orchestrator is effectively
// single-writer per deal); past this we surface CodeConflict and let the
// caller retry.
const maxTransitionRetries = 3

// idempotencyTTL bounds how long a transition fingerprint stays in the
// cache. Orchestrator retries happen within seconds.
const idempotencyTTL = 24 * time.Hour

type Service struct {
	store          ports.PropertyStore
	auditPublisher ports.AuditPublisher
	idempotency    ports.IdempotencyCache
	thresholds     qualify.DealThresholds
	costTable      inspection.CostTable
	metrics        *metrics.Metrics
	logger         *slog.Logger
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(s *Service) { s.auditPublisher = publisher }
}

func WithIdempotencyCache(cache ports.IdempotencyCache) Option {
	return func(s *Service) { s.idempotency = cache }
}

func WithThresholds(t qualify.DealThresholds) Option {
	return func(s *Service) { s.thresholds = t }
}

func WithCostTable(table inspection.CostTable) Option {
	return func(s *Service) { s.costTable = table }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(store ports.PropertyStore, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("property store is required")
	}

	svc := &Service{
		store:      store,
		thresholds: qualify.DefaultDealThresholds(),
		costTable:  inspection.DefaultCostTable(),
		tracer:     otel.Tracer("dealdesk/internal/pipeline"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CreatePropertyRequest registers a sourced property with the pipeline.
type CreatePropertyRequest struct {
	AskingPrice domain.Money
	MarketValue domain.Money
	TitleStatus domain.TitleStatus
	Location    models.Location
}

// CreateProperty registers a new property in documents_pending.
func (s *Service) CreateProperty(ctx context.Context, req CreatePropertyRequest) (*models.Property, error) {
	p := &models.Property{
		ID:          domain.NewPropertyID(),
		Stage:       models.StageDocumentsPending,
		AskingPrice: req.AskingPrice,
		MarketValue: req.MarketValue,
		TitleStatus: req.TitleStatus,
		Location:    req.Location,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create property")
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "property registered",
			"property_id", p.ID.String(),
			"stage", p.Stage.String(),
		)
	}
	return p, nil
}

// GetProperty returns the current property state.
func (s *Service) GetProperty(ctx context.Context, id domain.PropertyID) (*models.Property, error) {
	p, err := s.store.Get(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "property %s not found", id)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load property")
	}
	return p, nil
}

// ListTransitions returns the property's transition history, oldest first.
func (s *Service) ListTransitions(ctx context.Context, id domain.PropertyID) ([]models.StageTransition, error) {
	transitions, err := s.store.ListTransitions(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list transitions")
	}
	return transitions, nil
}

// transitionAttempt is a fully decided transition ready to commit.
type transitionAttempt struct {
	target   models.Stage
	reason   string
	actor    string
	decision string
	metrics  models.DecisionMetrics
	mutate   func(p *models.Property)
}

// transition is the single-writer critical section: load, guard, decide,
// commit stage + metrics + audit atomically, with optimistic-lock retry.
// build runs against the freshly loaded property on every attempt. The
// returned bool reports whether a new transition was written (false for
// an absorbed retry).
func (s *Service) transition(
	ctx context.Context,
	id domain.PropertyID,
	operation string,
	allowedFrom []models.Stage,
	build func(p *models.Property) (*transitionAttempt, error),
) (*models.Property, bool, error) {
	ctx, span := s.tracer.Start(ctx, "pipeline."+operation,
		trace.WithAttributes(attribute.String("property_id", id.String())))
	defer span.End()

	var lastErr error
	for attempt := 0; attempt < maxTransitionRetries; attempt++ {
		p, err := s.GetProperty(ctx, id)
		if err != nil {
			return nil, false, err
		}

		if !stageAllowed(p.Stage, allowedFrom) {
			// A retried call finds the property already in the target
			// stage, which is outside allowedFrom. Detect it before
			// refusing so retries stay idempotent.
			if ta, berr := build(p); berr == nil && p.Stage == ta.target && s.isDuplicate(ctx, p, ta.metrics.Hash()) {
				return s.absorbDuplicate(ctx, p, operation), false, nil
			}
			return nil, false, s.refuse(ctx, p, operation,
				fmt.Sprintf("operation %s not permitted from stage %s", operation, p.Stage))
		}

		ta, err := build(p)
		if err != nil {
			return nil, false, err
		}

		hash := ta.metrics.Hash()

		if p.Stage == ta.target && s.isDuplicate(ctx, p, hash) {
			return s.absorbDuplicate(ctx, p, operation), false, nil
		}

		if !models.TransitionAllowed(p.Stage, ta.target) {
			return nil, false, s.refuse(ctx, p, operation,
				fmt.Sprintf("transition %s -> %s is not listed", p.Stage, ta.target))
		}

		next := p.Clone()
		if ta.mutate != nil {
			ta.mutate(next)
		}
		next.Stage = ta.target
		next.LastInputsHash = hash

		tr := &models.StageTransition{
			PropertyID: p.ID,
			FromStage:  p.Stage,
			ToStage:    ta.target,
			Metrics:    ta.metrics,
			InputsHash: hash,
			Reason:     ta.reason,
			Actor:      ta.actor,
		}

		event := audit.Event{
			EntityType: audit.EntityProperty,
			EntityID:   p.ID.String(),
			Action:     audit.ActionStageTransition,
			FromState:  p.Stage.String(),
			ToState:    ta.target.String(),
			Decision:   ta.decision,
			Reason:     ta.reason,
			Actor:      ta.actor,
			Metrics:    ta.metrics.MarshalJSONRaw(),
		}

		err = s.store.ApplyTransition(ctx, next, p.Version, tr, event)
		if errors.Is(err, sentinel.ErrVersionConflict) {
			if s.metrics != nil {
				s.metrics.IncrementConflict()
			}
			lastErr = err
			continue
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, false, dErrors.Newf(dErrors.CodeNotFound, "property %s not found", id)
		}
		if err != nil {
			return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to apply transition")
		}

		if s.idempotency != nil {
			key := p.ID.String() + ":" + hash
			if cerr := s.idempotency.Remember(ctx, key, idempotencyTTL); cerr != nil && s.logger != nil {
				s.logger.WarnContext(ctx, "idempotency cache write failed", "error", cerr)
			}
		}
		if s.metrics != nil {
			s.metrics.IncrementApplied(ta.target.String())
		}
		if s.logger != nil {
			s.logger.InfoContext(ctx, "stage transition applied",
				"property_id", p.ID.String(),
				"from", p.Stage.String(),
				"to", ta.target.String(),
				"reason", ta.reason,
			)
		}
		return next, true, nil
	}

	return nil, false, dErrors.Wrap(lastErr, dErrors.CodeConflict,
		"concurrent modification, retry the call")
}

// refuse audits and returns a PreconditionNotMet failure. The stage
// machine never guesses an adjacent valid state; it records why the
// request was refused and reports it.
func (s *Service) refuse(ctx context.Context, p *models.Property, operation, reason string) error {
	if s.metrics != nil {
		s.metrics.IncrementRejected()
	}
	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
		EntityType: audit.EntityProperty,
		EntityID:   p.ID.String(),
		Action:     audit.ActionTransitionRejected,
		FromState:  p.Stage.String(),
		Decision:   "rejected",
		Reason:     reason,
	}, "operation", operation)
	return dErrors.New(dErrors.CodePreconditionNotMet, reason)
}

// isDuplicate reports whether the property already absorbed a transition
// with the same inputs fingerprint. The stored hash is authoritative; the
// cache covers the case where a later update already moved
// LastInputsHash on.
func (s *Service) isDuplicate(ctx context.Context, p *models.Property, hash string) bool {
	if p.LastInputsHash == hash {
		return true
	}
	if s.idempotency != nil {
		if seen, err := s.idempotency.Seen(ctx, p.ID.String()+":"+hash); err == nil && seen {
			return true
		}
	}
	return false
}

// absorbDuplicate records a retried call and returns the current state
// unchanged, without a second audit entry.
func (s *Service) absorbDuplicate(ctx context.Context, p *models.Property, operation string) *models.Property {
	if s.metrics != nil {
		s.metrics.IncrementDuplicate()
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "duplicate transition absorbed",
			"property_id", p.ID.String(),
			"operation", operation,
			"stage", p.Stage.String(),
		)
	}
	return p
}

func stageAllowed(stage models.Stage, allowed []models.Stage) bool {
	for _, a := range allowed {
		if stage == a {
			return true
		}
	}
	return false
}
