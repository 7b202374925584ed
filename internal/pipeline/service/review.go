package service

import (
	"context"
	"fmt"

	"dealdesk/internal/pipeline/models"
	domain "dealdesk/pkg/domain"
	dErrors "dealdesk/pkg/domain-errors"
)

// OverrideRequest approves a deal that failed a numeric rule. The
// justification is mandatory; overrides without a recorded reason are
// refused.
type OverrideRequest struct {
	Justification string
	Actor         string
}

// Override moves a property out of a numeric review stage: review_required
// advances to passed_70_rule, review_required_80 to passed_80_rule. The
// original rule numbers stay in the transition history; the override adds
// a new entry, it never rewrites the failed one.
func (s *Service) Override(ctx context.Context, id domain.PropertyID, req OverrideRequest) (*models.Property, error) {
	if req.Justification == "" {
		return nil, dErrors.New(dErrors.CodeMissingInput, "a justification is required to override a review")
	}

	allowedFrom := []models.Stage{models.StageReviewRequired, models.StageReviewRequired80}

	p, _, err := s.transition(ctx, id, "override_review", allowedFrom, func(p *models.Property) (*transitionAttempt, error) {
		var target models.Stage
		switch p.Stage {
		case models.StageReviewRequired, models.StagePassed70Rule:
			target = models.StagePassed70Rule
		case models.StageReviewRequired80, models.StagePassed80Rule:
			target = models.StagePassed80Rule
		default:
			return nil, dErrors.Newf(dErrors.CodePreconditionNotMet,
				"override not permitted from stage %s", p.Stage)
		}

		metrics := models.DecisionMetrics{
			AskingPrice:   p.AskingPrice,
			MarketValue:   p.MarketValue,
			ARV:           p.ARV,
			RepairCosts:   p.RepairEstimate,
			Justification: req.Justification,
		}
		return &transitionAttempt{
			target:   target,
			reason:   fmt.Sprintf("review overridden: %s", req.Justification),
			actor:    req.Actor,
			decision: "overridden",
			metrics:  metrics,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// RejectRequest takes a property out of the pipeline.
type RejectRequest struct {
	Reason string
	Actor  string
}

// rejectableStages lists every non-terminal stage; rejection is allowed
// from any of them.
var rejectableStages = []models.Stage{
	models.StageDocumentsPending,
	models.StageInitial,
	models.StageReviewRequired,
	models.StagePassed70Rule,
	models.StageReviewRequiredTitle,
	models.StageInspectionDone,
	models.StageReviewRequired80,
	models.StagePassed80Rule,
}

// Reject moves any non-terminal property to rejected. Rejected is
// terminal; nothing moves a property out of it.
func (s *Service) Reject(ctx context.Context, id domain.PropertyID, req RejectRequest) (*models.Property, error) {
	if req.Reason == "" {
		return nil, dErrors.New(dErrors.CodeMissingInput, "a reason is required to reject a property")
	}

	p, _, err := s.transition(ctx, id, "reject", rejectableStages, func(p *models.Property) (*transitionAttempt, error) {
		metrics := models.DecisionMetrics{
			AskingPrice:   p.AskingPrice,
			MarketValue:   p.MarketValue,
			ARV:           p.ARV,
			RepairCosts:   p.RepairEstimate,
			Justification: req.Reason,
		}
		return &transitionAttempt{
			target:   models.StageRejected,
			reason:   req.Reason,
			actor:    req.Actor,
			decision: "rejected",
			metrics:  metrics,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}
