package handler

import (
	"strings"

	"dealdesk/internal/pipeline/models"
	domain "dealdesk/pkg/domain"
	dErrors "dealdesk/pkg/domain-errors"
)

// CreatePropertyRequest is the HTTP request body for POST /properties.
type CreatePropertyRequest struct {
	AskingPrice float64         `json:"asking_price"`
	MarketValue float64         `json:"market_value"`
	TitleStatus string          `json:"title_status,omitempty"`
	Location    models.Location `json:"location"`

	// Parsed values (populated by Validate)
	parsedAsking domain.Money
	parsedMarket domain.Money
	parsedTitle  domain.TitleStatus
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *CreatePropertyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	asking, err := domain.NewMoneyFromDollars(r.AskingPrice)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "asking_price")
	}
	market, err := domain.NewMoneyFromDollars(r.MarketValue)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "market_value")
	}
	r.parsedAsking = asking
	r.parsedMarket = market

	r.parsedTitle = domain.TitleClean
	if r.TitleStatus != "" {
		title, terr := domain.ParseTitleStatus(r.TitleStatus)
		if terr != nil {
			return terr
		}
		r.parsedTitle = title
	}
	return nil
}

// EvaluateRequest is the HTTP request body for POST /properties/{id}/evaluate.
// All fields are optional; absent values fall back to the stored property.
type EvaluateRequest struct {
	AskingPrice *float64 `json:"asking_price,omitempty"`
	MarketValue *float64 `json:"market_value,omitempty"`
	ARV         *float64 `json:"arv,omitempty"`

	parsedAsking domain.Money
	parsedMarket domain.Money
	parsedARV    *domain.Money
}

func (r *EvaluateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	if r.AskingPrice != nil {
		m, err := domain.NewMoneyFromDollars(*r.AskingPrice)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvalidInput, "asking_price")
		}
		r.parsedAsking = m
	}
	if r.MarketValue != nil {
		m, err := domain.NewMoneyFromDollars(*r.MarketValue)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvalidInput, "market_value")
		}
		r.parsedMarket = m
	}
	if r.ARV != nil {
		m, err := domain.NewMoneyFromDollars(*r.ARV)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvalidInput, "arv")
		}
		r.parsedARV = &m
	}
	return nil
}

// SubmitDocumentsRequest is the HTTP request body for POST
// /properties/{id}/documents.
type SubmitDocumentsRequest struct {
	Documents []string `json:"documents"`
}

func (r *SubmitDocumentsRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Documents) == 0 {
		return dErrors.New(dErrors.CodeMissingInput, "documents is required")
	}
	return nil
}

// SubmitInspectionRequest is the HTTP request body for POST
// /properties/{id}/inspection.
type SubmitInspectionRequest struct {
	DefectKeys  []string `json:"defect_keys"`
	TitleStatus string   `json:"title_status,omitempty"`
	Notes       string   `json:"notes,omitempty"`

	parsedTitle domain.TitleStatus
}

func (r *SubmitInspectionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.TitleStatus != "" {
		title, err := domain.ParseTitleStatus(r.TitleStatus)
		if err != nil {
			return err
		}
		r.parsedTitle = title
	}
	return nil
}

// ActionPlanRequest is the HTTP request body for POST
// /properties/{id}/action-plan.
type ActionPlanRequest struct {
	Plan string `json:"plan"`
}

func (r *ActionPlanRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Plan = strings.TrimSpace(r.Plan)
	if r.Plan == "" {
		return dErrors.New(dErrors.CodeMissingInput, "plan is required")
	}
	return nil
}

// OverrideRequest is the HTTP request body for POST
// /properties/{id}/override.
type OverrideRequest struct {
	Justification string `json:"justification"`
}

func (r *OverrideRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Justification = strings.TrimSpace(r.Justification)
	if r.Justification == "" {
		return dErrors.New(dErrors.CodeMissingInput, "justification is required")
	}
	return nil
}

// RejectRequest is the HTTP request body for POST /properties/{id}/reject.
type RejectRequest struct {
	Reason string `json:"reason"`
}

func (r *RejectRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Reason = strings.TrimSpace(r.Reason)
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeMissingInput, "reason is required")
	}
	return nil
}
