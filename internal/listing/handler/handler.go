// Package handler wires the listing qualification endpoints to the
// listing service.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"dealdesk/internal/listing/models"
	"dealdesk/internal/listing/ports"
	"dealdesk/internal/listing/service"
	domain "dealdesk/pkg/domain"
	"dealdesk/pkg/platform/httputil"
	"dealdesk/pkg/requestcontext"
)

// Service defines the listing operations the handler depends on.
type Service interface {
	Qualify(l *models.MarketListing) service.Outcome
	Ingest(ctx context.Context, req service.IngestRequest) (*models.MarketListing, error)
	GetListing(ctx context.Context, id domain.ListingID) (*models.MarketListing, error)
	ListListings(ctx context.Context, filter ports.ListFilter) ([]*models.MarketListing, error)
	Reevaluate(ctx context.Context, id domain.ListingID, updates service.UpdateFields) (*models.MarketListing, error)
	UpdateStatus(ctx context.Context, id domain.ListingID, req service.UpdateStatusRequest) (*models.MarketListing, error)
}

// Handler exposes listing qualification over HTTP.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a listing handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts listing endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/listings", func(r chi.Router) {
		r.Post("/", h.HandleIngest)
		r.Get("/", h.HandleList)
		r.Post("/qualify", h.HandleQualify)
		r.Route("/{listingID}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Post("/reevaluate", h.HandleReevaluate)
			r.Post("/status", h.HandleUpdateStatus)
		})
	})
}

func (h *Handler) listingID(w http.ResponseWriter, r *http.Request) (domain.ListingID, bool) {
	id, err := domain.ParseListingID(chi.URLParam(r, "listingID"))
	if err != nil {
		httputil.WriteError(w, err)
		return domain.ListingID{}, false
	}
	return id, true
}

// HandleIngest handles POST /listings requests.
func (h *Handler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[IngestRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	l, err := h.service.Ingest(ctx, service.IngestRequest{
		Source:               req.Source,
		Price:                req.parsedPrice,
		PriceType:            req.parsedType,
		EstimatedMarketValue: req.parsedMarket,
		State:                req.State,
		Lat:                  req.Lat,
		Lon:                  req.Lon,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, l)
}

// HandleQualify handles POST /listings/qualify: a stateless evaluation of
// the submitted listing data against the active rule set. Nothing is
// persisted.
func (h *Handler) HandleQualify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[ListingPayload](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	l := &models.MarketListing{
		Price:                req.parsedPrice,
		PriceType:            req.parsedType,
		EstimatedMarketValue: req.parsedMarket,
		State:                req.State,
		Lat:                  req.Lat,
		Lon:                  req.Lon,
	}
	httputil.WriteJSON(w, http.StatusOK, h.service.Qualify(l))
}

// HandleGet handles GET /listings/{listingID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.listingID(w, r)
	if !ok {
		return
	}

	l, err := h.service.GetListing(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, l)
}

// HandleList handles GET /listings. Supports ?qualified=true|false and
// ?status=<status>.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	var filter ports.ListFilter

	switch r.URL.Query().Get("qualified") {
	case "true":
		v := true
		filter.Qualified = &v
	case "false":
		v := false
		filter.Qualified = &v
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		filter.Status = &status
	}

	listings, err := h.service.ListListings(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"listings": listings})
}

// HandleReevaluate handles POST /listings/{listingID}/reevaluate.
func (h *Handler) HandleReevaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.listingID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ReevaluateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	l, err := h.service.Reevaluate(ctx, id, service.UpdateFields{
		Price:                req.parsedPrice,
		PriceType:            req.parsedType,
		EstimatedMarketValue: req.parsedMarket,
		State:                req.State,
		Lat:                  req.Lat,
		Lon:                  req.Lon,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, l)
}

// HandleUpdateStatus handles POST /listings/{listingID}/status.
func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.listingID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateStatusRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	l, err := h.service.UpdateStatus(ctx, id, service.UpdateStatusRequest{
		Status:     req.parsedStatus,
		PropertyID: req.parsedPropertyID,
		Actor:      requestcontext.Actor(ctx),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, l)
}
