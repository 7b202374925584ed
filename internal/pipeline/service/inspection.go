package service

import (
	"context"
	"fmt"

	"dealdesk/internal/inspection"
	"dealdesk/internal/pipeline/models"
	domain "dealdesk/pkg/domain"
	dErrors "dealdesk/pkg/domain-errors"
)

// SubmitInspectionRequest carries an inspector's findings. DefectKeys is
// the full current defect set, not a delta; TitleStatus falls back to the
// stored value when empty.
type SubmitInspectionRequest struct {
	DefectKeys  []string
	TitleStatus domain.TitleStatus
	Notes       string
	Actor       string
}

// SubmitInspectionResult reports the aggregation and where the property
// landed.
type SubmitInspectionResult struct {
	Property    *models.Property       `json:"property"`
	NewStage    models.Stage           `json:"new_stage"`
	Aggregation inspection.Aggregation `json:"aggregation"`
}

// SubmitInspection prices the defect set, stores the repair estimate on
// the property and advances it to inspection_done, or to
// review_required_title when the title is not clean. Resubmitting the
// same findings is absorbed without a second transition.
func (s *Service) SubmitInspection(ctx context.Context, id domain.PropertyID, req SubmitInspectionRequest) (*SubmitInspectionResult, error) {
	var agg inspection.Aggregation

	allowedFrom := []models.Stage{models.StagePassed70Rule, models.StageReviewRequiredTitle}

	p, applied, err := s.transition(ctx, id, "submit_inspection", allowedFrom, func(p *models.Property) (*transitionAttempt, error) {
		title := req.TitleStatus
		if title == "" {
			title = p.TitleStatus
		}
		if !title.IsValid() {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown title status %q", title)
		}

		agg = inspection.Aggregate(req.DefectKeys, title, s.costTable)
		estimate := agg.RepairEstimate

		target := models.StageInspectionDone
		decision := "inspection_recorded"
		reason := fmt.Sprintf("inspection priced at %s across %d defects", estimate, len(agg.Breakdown))
		if agg.HighRisk {
			target = models.StageReviewRequiredTitle
			decision = "title_review_required"
			reason = fmt.Sprintf("title status %s requires review before underwriting continues", title)
		}

		metrics := models.DecisionMetrics{
			AskingPrice:      p.AskingPrice,
			MarketValue:      p.MarketValue,
			ARV:              p.ARV,
			RepairCosts:      &estimate,
			Inspection:       &agg,
			CostTableVersion: s.costTable.Version,
		}

		return &transitionAttempt{
			target:   target,
			reason:   reason,
			actor:    req.Actor,
			decision: decision,
			metrics:  metrics,
			mutate: func(next *models.Property) {
				next.RepairEstimate = &estimate
				next.DefectKeys = append([]string(nil), req.DefectKeys...)
				next.TitleStatus = title
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}

	if applied {
		result := &models.InspectionResult{
			PropertyID:  p.ID,
			DefectKeys:  append([]string(nil), req.DefectKeys...),
			TitleStatus: p.TitleStatus,
			Aggregation: agg,
			Notes:       req.Notes,
		}
		if serr := s.store.SaveInspection(ctx, result); serr != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "failed to save inspection result",
				"property_id", p.ID.String(), "error", serr)
		}
	}

	return &SubmitInspectionResult{Property: p, NewStage: p.Stage, Aggregation: agg}, nil
}

// AcceptActionPlanRequest records the plan that resolves a title review.
type AcceptActionPlanRequest struct {
	Plan  string
	Actor string
}

// AcceptActionPlan moves a title-flagged property onward to
// inspection_done. The plan text is mandatory; it is the audit record of
// why an unclean title was accepted.
func (s *Service) AcceptActionPlan(ctx context.Context, id domain.PropertyID, req AcceptActionPlanRequest) (*models.Property, error) {
	if req.Plan == "" {
		return nil, dErrors.New(dErrors.CodeMissingInput, "an action plan is required to resolve a title review")
	}

	p, _, err := s.transition(ctx, id, "accept_action_plan",
		[]models.Stage{models.StageReviewRequiredTitle},
		func(p *models.Property) (*transitionAttempt, error) {
			metrics := models.DecisionMetrics{
				AskingPrice:   p.AskingPrice,
				MarketValue:   p.MarketValue,
				ARV:           p.ARV,
				RepairCosts:   p.RepairEstimate,
				Justification: req.Plan,
			}
			return &transitionAttempt{
				target:   models.StageInspectionDone,
				reason:   fmt.Sprintf("title action plan accepted: %s", req.Plan),
				actor:    req.Actor,
				decision: "action_plan_accepted",
				metrics:  metrics,
			}, nil
		})
	if err != nil {
		return nil, err
	}
	return p, nil
}
