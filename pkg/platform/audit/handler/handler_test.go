package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	audit "dealdesk/pkg/platform/audit"
	"dealdesk/pkg/platform/audit/store/memory"
)

type AuditHandlerSuite struct {
	suite.Suite
	store  *memory.InMemoryStore
	router chi.Router
}

func TestAuditHandlerSuite(t *testing.T) {
	suite.Run(t, new(AuditHandlerSuite))
}

func (s *AuditHandlerSuite) SetupTest() {
	s.store = memory.NewInMemoryStore()
	h := New(s.store, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *AuditHandlerSuite) get(path string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var body map[string]any
	if rec.Body.Len() > 0 {
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func (s *AuditHandlerSuite) TestListByEntity() {
	ctx := context.Background()
	s.Require().NoError(s.store.Append(ctx, audit.Event{
		EntityType: audit.EntityProperty,
		EntityID:   "prop-1",
		Action:     audit.ActionStageTransition,
		FromState:  "initial",
		ToState:    "passed_70_rule",
	}))

	s.Run("returns the entity history", func() {
		rec, body := s.get("/audit/property/prop-1")
		s.Equal(http.StatusOK, rec.Code)
		events := body["events"].([]any)
		s.Require().Len(events, 1)
		first := events[0].(map[string]any)
		s.Equal("stage_transition", first["action"])
		s.Equal("passed_70_rule", first["to_state"])
	})

	s.Run("unknown entity type is a bad request", func() {
		rec, _ := s.get("/audit/widget/prop-1")
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("entity without history returns an empty list", func() {
		rec, body := s.get("/audit/property/prop-none")
		s.Equal(http.StatusOK, rec.Code)
		s.Empty(body["events"])
	})
}

func (s *AuditHandlerSuite) TestRecent() {
	ctx := context.Background()
	for range 3 {
		s.Require().NoError(s.store.Append(ctx, audit.Event{
			EntityType: audit.EntityListing,
			EntityID:   "listing-1",
			Action:     audit.ActionListingStatusChanged,
		}))
	}

	s.Run("caps results at the limit", func() {
		rec, body := s.get("/audit/recent?limit=2")
		s.Equal(http.StatusOK, rec.Code)
		s.Len(body["events"], 2)
	})

	s.Run("rejects a non-numeric limit", func() {
		rec, _ := s.get("/audit/recent?limit=abc")
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}
