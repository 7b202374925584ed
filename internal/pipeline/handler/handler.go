// Package handler wires the acquisition pipeline endpoints to the
// pipeline service.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"dealdesk/internal/pipeline/models"
	"dealdesk/internal/pipeline/service"
	domain "dealdesk/pkg/domain"
	dErrors "dealdesk/pkg/domain-errors"
	"dealdesk/pkg/platform/httputil"
	"dealdesk/pkg/requestcontext"
)

// Service defines the pipeline operations the handler depends on.
type Service interface {
	CreateProperty(ctx context.Context, req service.CreatePropertyRequest) (*models.Property, error)
	GetProperty(ctx context.Context, id domain.PropertyID) (*models.Property, error)
	ListTransitions(ctx context.Context, id domain.PropertyID) ([]models.StageTransition, error)
	SubmitDocuments(ctx context.Context, id domain.PropertyID, req service.SubmitDocumentsRequest) (*models.Property, error)
	EvaluateDeal(ctx context.Context, id domain.PropertyID, req service.EvaluateDealRequest) (*service.EvaluateResult, error)
	SubmitInspection(ctx context.Context, id domain.PropertyID, req service.SubmitInspectionRequest) (*service.SubmitInspectionResult, error)
	AcceptActionPlan(ctx context.Context, id domain.PropertyID, req service.AcceptActionPlanRequest) (*models.Property, error)
	Override(ctx context.Context, id domain.PropertyID, req service.OverrideRequest) (*models.Property, error)
	Reject(ctx context.Context, id domain.PropertyID, req service.RejectRequest) (*models.Property, error)
	RequestContract(ctx context.Context, id domain.PropertyID, req service.RequestContractRequest) (*service.ContractResult, error)
}

// Handler exposes the pipeline over HTTP.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a pipeline handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts pipeline endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/properties", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Route("/{propertyID}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Get("/transitions", h.HandleListTransitions)
			r.Post("/documents", h.HandleSubmitDocuments)
			r.Post("/evaluate", h.HandleEvaluate)
			r.Post("/inspection", h.HandleSubmitInspection)
			r.Post("/action-plan", h.HandleAcceptActionPlan)
			r.Post("/override", h.HandleOverride)
			r.Post("/reject", h.HandleReject)
			r.Post("/contract", h.HandleRequestContract)
		})
	})
}

func (h *Handler) propertyID(w http.ResponseWriter, r *http.Request) (domain.PropertyID, bool) {
	id, err := domain.ParsePropertyID(chi.URLParam(r, "propertyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return domain.PropertyID{}, false
	}
	return id, true
}

// HandleCreate handles POST /properties requests.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreatePropertyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	p, err := h.service.CreateProperty(ctx, service.CreatePropertyRequest{
		AskingPrice: req.parsedAsking,
		MarketValue: req.parsedMarket,
		TitleStatus: req.parsedTitle,
		Location:    req.Location,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "property creation failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, p)
}

// HandleGet handles GET /properties/{propertyID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.propertyID(w, r)
	if !ok {
		return
	}

	p, err := h.service.GetProperty(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

// HandleListTransitions handles GET /properties/{propertyID}/transitions.
func (h *Handler) HandleListTransitions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.propertyID(w, r)
	if !ok {
		return
	}

	transitions, err := h.service.ListTransitions(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"transitions": transitions})
}

// HandleSubmitDocuments handles POST /properties/{propertyID}/documents.
func (h *Handler) HandleSubmitDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.propertyID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SubmitDocumentsRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	p, err := h.service.SubmitDocuments(ctx, id, service.SubmitDocumentsRequest{
		Documents: req.Documents,
		Actor:     requestcontext.Actor(ctx),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

// HandleEvaluate handles POST /properties/{propertyID}/evaluate requests.
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	id, ok := h.propertyID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[EvaluateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.EvaluateDeal(ctx, id, service.EvaluateDealRequest{
		AskingPrice: req.parsedAsking,
		MarketValue: req.parsedMarket,
		ARV:         req.parsedARV,
		Actor:       requestcontext.Actor(ctx),
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "deal evaluation failed",
			"request_id", requestID,
			"property_id", id.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "deal evaluated",
		"request_id", requestID,
		"property_id", id.String(),
		"new_stage", result.NewStage.String(),
		"passed", result.Passed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleSubmitInspection handles POST /properties/{propertyID}/inspection.
func (h *Handler) HandleSubmitInspection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.propertyID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SubmitInspectionRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	result, err := h.service.SubmitInspection(ctx, id, service.SubmitInspectionRequest{
		DefectKeys:  req.DefectKeys,
		TitleStatus: req.parsedTitle,
		Notes:       req.Notes,
		Actor:       requestcontext.Actor(ctx),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleAcceptActionPlan handles POST /properties/{propertyID}/action-plan.
func (h *Handler) HandleAcceptActionPlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.propertyID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ActionPlanRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	p, err := h.service.AcceptActionPlan(ctx, id, service.AcceptActionPlanRequest{
		Plan:  req.Plan,
		Actor: requestcontext.Actor(ctx),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

// HandleOverride handles POST /properties/{propertyID}/override.
func (h *Handler) HandleOverride(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.propertyID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[OverrideRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	actor := requestcontext.Actor(ctx)
	if actor == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "an authenticated actor is required to override a review"))
		return
	}

	p, err := h.service.Override(ctx, id, service.OverrideRequest{
		Justification: req.Justification,
		Actor:         actor,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

// HandleReject handles POST /properties/{propertyID}/reject.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.propertyID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RejectRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	p, err := h.service.Reject(ctx, id, service.RejectRequest{
		Reason: req.Reason,
		Actor:  requestcontext.Actor(ctx),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

// HandleRequestContract handles POST /properties/{propertyID}/contract.
// The request carries no body; everything the contract needs is on file.
func (h *Handler) HandleRequestContract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.propertyID(w, r)
	if !ok {
		return
	}

	result, err := h.service.RequestContract(ctx, id, service.RequestContractRequest{
		Actor: requestcontext.Actor(ctx),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
