// Package handler exposes the audit trail over HTTP for compliance
// review.
package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	dErrors "dealdesk/pkg/domain-errors"
	audit "dealdesk/pkg/platform/audit"
	"dealdesk/pkg/platform/httputil"
)

const defaultRecentLimit = 100

// Handler serves read-only audit queries.
type Handler struct {
	store  audit.Store
	logger *slog.Logger
}

// New constructs an audit handler over the given store.
func New(store audit.Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// Register mounts audit endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/audit", func(r chi.Router) {
		r.Get("/recent", h.HandleRecent)
		r.Get("/{entityType}/{entityID}", h.HandleListByEntity)
	})
}

// HandleListByEntity handles GET /audit/{entityType}/{entityID}: the
// full decision history for one entity, oldest first.
func (h *Handler) HandleListByEntity(w http.ResponseWriter, r *http.Request) {
	entityType := audit.EntityType(chi.URLParam(r, "entityType"))
	if !entityType.IsValid() {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeBadRequest, "unknown entity type %q", entityType))
		return
	}
	entityID := chi.URLParam(r, "entityID")

	events, err := h.store.ListByEntity(r.Context(), entityType, entityID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}

// HandleRecent handles GET /audit/recent?limit=N.
func (h *Handler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer"))
			return
		}
		limit = n
	}

	events, err := h.store.ListRecent(r.Context(), limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}
