package service

import (
	"context"
	"fmt"
	"strings"

	"dealdesk/internal/pipeline/models"
	domain "dealdesk/pkg/domain"
	dErrors "dealdesk/pkg/domain-errors"
)

// RequestContractRequest asks for contract generation on a fully
// qualified deal.
type RequestContractRequest struct {
	Actor string
}

// ContractResult carries the final deal numbers the contract is drawn
// from.
type ContractResult struct {
	Property        *models.Property `json:"property"`
	PurchasePrice   domain.Money     `json:"purchase_price"`
	RepairEstimate  domain.Money     `json:"repair_estimate"`
	ARV             domain.Money     `json:"arv"`
	TotalInvestment domain.Money     `json:"total_investment"`
}

// RequestContract moves a passed_80_rule property to contract_generated,
// the terminal success stage. Every underwriting input must be on file;
// a deal cannot reach contract with holes in its record.
func (s *Service) RequestContract(ctx context.Context, id domain.PropertyID, req RequestContractRequest) (*ContractResult, error) {
	var result *ContractResult

	p, _, err := s.transition(ctx, id, "request_contract",
		[]models.Stage{models.StagePassed80Rule},
		func(p *models.Property) (*transitionAttempt, error) {
			if missing := contractInputsMissing(p); len(missing) > 0 {
				return nil, dErrors.Newf(dErrors.CodeMissingInput,
					"contract generation requires: %s", strings.Join(missing, ", "))
			}

			result = &ContractResult{
				PurchasePrice:   p.AskingPrice,
				RepairEstimate:  *p.RepairEstimate,
				ARV:             *p.ARV,
				TotalInvestment: p.AskingPrice + *p.RepairEstimate,
			}

			metrics := models.DecisionMetrics{
				AskingPrice: p.AskingPrice,
				MarketValue: p.MarketValue,
				ARV:         p.ARV,
				RepairCosts: p.RepairEstimate,
			}
			return &transitionAttempt{
				target:   models.StageContractGenerated,
				reason:   fmt.Sprintf("contract requested at purchase price %s, total investment %s", p.AskingPrice, result.TotalInvestment),
				actor:    req.Actor,
				decision: "contract_generated",
				metrics:  metrics,
			}, nil
		})
	if err != nil {
		return nil, err
	}

	result.Property = p
	return result, nil
}

func contractInputsMissing(p *models.Property) []string {
	var missing []string
	if !p.HasRequiredDocuments() {
		missing = append(missing, "all required documents")
	}
	if p.ARV == nil {
		missing = append(missing, "arv")
	}
	if p.RepairEstimate == nil {
		missing = append(missing, "repair estimate")
	}
	return missing
}
