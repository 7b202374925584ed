package handler

import (
	"strings"

	"dealdesk/internal/listing/models"
	domain "dealdesk/pkg/domain"
	dErrors "dealdesk/pkg/domain-errors"
)

// ListingPayload is the listing shape shared by ingest and the stateless
// qualify endpoint.
type ListingPayload struct {
	Source               string   `json:"source"`
	Price                float64  `json:"price"`
	PriceType            string   `json:"price_type,omitempty"`
	EstimatedMarketValue float64  `json:"estimated_market_value"`
	State                string   `json:"state,omitempty"`
	Lat                  *float64 `json:"lat,omitempty"`
	Lon                  *float64 `json:"lon,omitempty"`

	parsedPrice  domain.Money
	parsedMarket domain.Money
	parsedType   models.PriceType
}

func (r *ListingPayload) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	price, err := domain.NewMoneyFromDollars(r.Price)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "price")
	}
	market, err := domain.NewMoneyFromDollars(r.EstimatedMarketValue)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "estimated_market_value")
	}
	r.parsedPrice = price
	r.parsedMarket = market

	r.parsedType = models.PriceFull
	if r.PriceType != "" {
		pt, perr := models.ParsePriceType(r.PriceType)
		if perr != nil {
			return perr
		}
		r.parsedType = pt
	}

	if (r.Lat == nil) != (r.Lon == nil) {
		return dErrors.New(dErrors.CodeInvalidInput, "lat and lon must be provided together")
	}
	return nil
}

// IngestRequest is the HTTP request body for POST /listings.
type IngestRequest struct {
	ListingPayload
}

func (r *IngestRequest) Validate() error {
	if err := r.ListingPayload.Validate(); err != nil {
		return err
	}
	r.Source = strings.TrimSpace(r.Source)
	if r.Source == "" {
		return dErrors.New(dErrors.CodeMissingInput, "source is required")
	}
	return nil
}

// ReevaluateRequest is the HTTP request body for POST
// /listings/{id}/reevaluate. All fields optional; present fields are
// applied before recomputation.
type ReevaluateRequest struct {
	Price                *float64 `json:"price,omitempty"`
	PriceType            *string  `json:"price_type,omitempty"`
	EstimatedMarketValue *float64 `json:"estimated_market_value,omitempty"`
	State                *string  `json:"state,omitempty"`
	Lat                  *float64 `json:"lat,omitempty"`
	Lon                  *float64 `json:"lon,omitempty"`

	parsedPrice  *domain.Money
	parsedMarket *domain.Money
	parsedType   *models.PriceType
}

func (r *ReevaluateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	if r.Price != nil {
		m, err := domain.NewMoneyFromDollars(*r.Price)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvalidInput, "price")
		}
		r.parsedPrice = &m
	}
	if r.EstimatedMarketValue != nil {
		m, err := domain.NewMoneyFromDollars(*r.EstimatedMarketValue)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvalidInput, "estimated_market_value")
		}
		r.parsedMarket = &m
	}
	if r.PriceType != nil {
		pt, err := models.ParsePriceType(*r.PriceType)
		if err != nil {
			return err
		}
		r.parsedType = &pt
	}
	return nil
}

// UpdateStatusRequest is the HTTP request body for POST
// /listings/{id}/status.
type UpdateStatusRequest struct {
	Status     string  `json:"status"`
	PropertyID *string `json:"property_id,omitempty"`

	parsedStatus     models.Status
	parsedPropertyID *domain.PropertyID
}

func (r *UpdateStatusRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	status, err := models.ParseStatus(r.Status)
	if err != nil {
		return err
	}
	r.parsedStatus = status

	if r.PropertyID != nil {
		pid, perr := domain.ParsePropertyID(*r.PropertyID)
		if perr != nil {
			return perr
		}
		r.parsedPropertyID = &pid
	}
	return nil
}
