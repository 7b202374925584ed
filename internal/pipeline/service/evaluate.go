package service

import (
	"context"
	"fmt"

	"dealdesk/internal/pipeline/models"
	"dealdesk/internal/qualify"
	domain "dealdesk/pkg/domain"
	dErrors "dealdesk/pkg/domain-errors"
)

// EvaluateDealRequest carries the numbers for a qualification pass. Any
// zero/nil field falls back to the value already stored on the property.
type EvaluateDealRequest struct {
	AskingPrice domain.Money
	MarketValue domain.Money
	ARV         *domain.Money
	Actor       string
}

// EvaluateResult reports the outcome of one qualification pass.
type EvaluateResult struct {
	Property *models.Property       `json:"property"`
	NewStage models.Stage           `json:"new_stage"`
	Passed   bool                   `json:"passed"`
	Checks   []qualify.RuleResult   `json:"checks"`
	Metrics  models.DecisionMetrics `json:"metrics"`
	// Reasoning explains a non-passing outcome; empty when the deal passed.
	Reasoning string `json:"reasoning,omitempty"`
}

// EvaluateDeal runs the qualification rule for the property's current
// phase. From initial it applies the purchase-price rule and moves the
// property to passed_70_rule or review_required. From inspection_done it
// applies the total-investment rule against the ARV and the inspection's
// repair estimate, moving to passed_80_rule or review_required_80.
func (s *Service) EvaluateDeal(ctx context.Context, id domain.PropertyID, req EvaluateDealRequest) (*EvaluateResult, error) {
	var result *EvaluateResult

	allowedFrom := []models.Stage{models.StageInitial, models.StageInspectionDone}

	p, _, err := s.transition(ctx, id, "evaluate_deal", allowedFrom, func(p *models.Property) (*transitionAttempt, error) {
		ta, res, err := s.buildEvaluation(p, req)
		if err != nil {
			return nil, err
		}
		result = res
		return ta, nil
	})
	if err != nil {
		return nil, err
	}

	result.Property = p
	result.NewStage = p.Stage
	return result, nil
}

func (s *Service) buildEvaluation(p *models.Property, req EvaluateDealRequest) (*transitionAttempt, *EvaluateResult, error) {
	price := req.AskingPrice
	if price == 0 {
		price = p.AskingPrice
	}
	market := req.MarketValue
	if market == 0 {
		market = p.MarketValue
	}
	arv := req.ARV
	if arv == nil {
		arv = p.ARV
	}

	switch p.Stage {
	case models.StageInitial, models.StagePassed70Rule, models.StageReviewRequired:
		return s.buildPurchaseEvaluation(p, req, price, market, arv)
	case models.StageInspectionDone, models.StagePassed80Rule, models.StageReviewRequired80:
		return s.buildInvestmentEvaluation(p, req, price, arv)
	}
	return nil, nil, dErrors.Newf(dErrors.CodePreconditionNotMet,
		"evaluate_deal not permitted from stage %s", p.Stage)
}

func (s *Service) buildPurchaseEvaluation(p *models.Property, req EvaluateDealRequest, price, market domain.Money, arv *domain.Money) (*transitionAttempt, *EvaluateResult, error) {
	check, err := qualify.EvaluateRatioRule(price, market, s.thresholds.PurchaseRatio)
	if err != nil {
		return nil, nil, err
	}
	checks := []qualify.RuleResult{check}

	// When an ARV estimate already exists the investment check is run
	// informationally; only the inspection-phase evaluation acts on it.
	if arv != nil && p.RepairEstimate != nil {
		if inv, invErr := qualify.EvaluateInvestmentRule(price, *p.RepairEstimate, *arv, s.thresholds.InvestmentRatio); invErr == nil {
			checks = append(checks, inv)
		}
	}

	target := models.StagePassed70Rule
	decision := "passed"
	reasoning := ""
	if !check.Passed {
		target = models.StageReviewRequired
		decision = "review_required"
		reasoning = fmt.Sprintf("asking price %s exceeds the %.0f%% cap %s of market value %s",
			price, s.thresholds.PurchaseRatio*100, check.Detail.MaxAllowed, market)
	}

	metrics := models.DecisionMetrics{
		AskingPrice:    price,
		MarketValue:    market,
		ARV:            arv,
		Checks:         checks,
		RuleSetVersion: fmt.Sprintf("purchase_ratio=%.2f", s.thresholds.PurchaseRatio),
	}

	ta := &transitionAttempt{
		target:   target,
		reason:   nonEmpty(reasoning, "purchase price within cap"),
		actor:    req.Actor,
		decision: decision,
		metrics:  metrics,
		mutate: func(next *models.Property) {
			next.AskingPrice = price
			next.MarketValue = market
			if arv != nil {
				next.ARV = arv
			}
		},
	}
	return ta, &EvaluateResult{Passed: check.Passed, Checks: checks, Metrics: metrics, Reasoning: reasoning}, nil
}

func (s *Service) buildInvestmentEvaluation(p *models.Property, req EvaluateDealRequest, price domain.Money, arv *domain.Money) (*transitionAttempt, *EvaluateResult, error) {
	if arv == nil {
		return nil, nil, dErrors.New(dErrors.CodeMissingInput,
			"arv is required for the investment evaluation")
	}
	var repairs domain.Money
	if p.RepairEstimate != nil {
		repairs = *p.RepairEstimate
	}

	check, err := qualify.EvaluateInvestmentRule(price, repairs, *arv, s.thresholds.InvestmentRatio)
	if err != nil {
		return nil, nil, err
	}
	checks := []qualify.RuleResult{check}

	target := models.StagePassed80Rule
	decision := "passed"
	reasoning := ""
	if !check.Passed {
		target = models.StageReviewRequired80
		decision = "review_required"
		reasoning = fmt.Sprintf("total investment %s exceeds the %.0f%% cap %s of ARV %s",
			check.Detail.TotalInvestment, s.thresholds.InvestmentRatio*100, check.Detail.MaxAllowed, *arv)
	}

	metrics := models.DecisionMetrics{
		AskingPrice:    price,
		MarketValue:    p.MarketValue,
		ARV:            arv,
		RepairCosts:    &repairs,
		Checks:         checks,
		RuleSetVersion: fmt.Sprintf("investment_ratio=%.2f", s.thresholds.InvestmentRatio),
	}

	ta := &transitionAttempt{
		target:   target,
		reason:   nonEmpty(reasoning, "total investment within cap"),
		actor:    req.Actor,
		decision: decision,
		metrics:  metrics,
		mutate: func(next *models.Property) {
			next.AskingPrice = price
			next.ARV = arv
		},
	}
	return ta, &EvaluateResult{Passed: check.Passed, Checks: checks, Metrics: metrics, Reasoning: reasoning}, nil
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
