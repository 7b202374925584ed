package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"dealdesk/internal/pipeline/service"
	"dealdesk/internal/pipeline/store/memory"
	"dealdesk/pkg/requestcontext"
)

// HandlerSuite exercises HTTP concerns (routing, parsing, status mapping)
// against the real service on the in-memory store.
type HandlerSuite struct {
	suite.Suite
	router http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	store := memory.NewInMemoryPropertyStore(nil)
	svc, err := service.New(store)
	require.NoError(s.T(), err)

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	handler := New(svc, logger)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(requestcontext.WithActor(req.Context(), "test-operator")))
		})
	})
	handler.Register(r)
	s.router = r
}

func (s *HandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.T(), err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader([]byte("{}"))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) createProperty(asking, market float64) string {
	rec := s.do(http.MethodPost, "/properties", map[string]any{
		"asking_price": asking,
		"market_value": market,
	})
	require.Equal(s.T(), http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		ID string `json:"id"`
	}
	require.NoError(s.T(), json.NewDecoder(rec.Body).Decode(&resp))
	return resp.ID
}

func (s *HandlerSuite) submitDocuments(id string) {
	rec := s.do(http.MethodPost, "/properties/"+id+"/documents", map[string]any{
		"documents": []string{"title", "tax_certificate", "seller_id"},
	})
	require.Equal(s.T(), http.StatusOK, rec.Code, rec.Body.String())
}

func (s *HandlerSuite) TestCreateProperty() {
	s.Run("valid request returns 201 with documents_pending", func() {
		rec := s.do(http.MethodPost, "/properties", map[string]any{
			"asking_price": 20000,
			"market_value": 30000,
		})
		s.Equal(http.StatusCreated, rec.Code)

		var resp struct {
			Stage string `json:"stage"`
		}
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		s.Equal("documents_pending", resp.Stage)
	})

	s.Run("negative price returns 400", func() {
		rec := s.do(http.MethodPost, "/properties", map[string]any{
			"asking_price": -5,
			"market_value": 30000,
		})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("invalid JSON returns 400", func() {
		req := httptest.NewRequest(http.MethodPost, "/properties", bytes.NewReader([]byte("not json")))
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestGetProperty() {
	s.Run("malformed id returns 400", func() {
		rec := s.do(http.MethodGet, "/properties/not-a-uuid", nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unknown id returns 404", func() {
		rec := s.do(http.MethodGet, "/properties/6ba7b810-9dad-11d1-80b4-00c04fd430c8", nil)
		s.Equal(http.StatusNotFound, rec.Code)
	})
}

func (s *HandlerSuite) TestEvaluate() {
	s.Run("passing evaluation returns new stage and checks", func() {
		id := s.createProperty(20000, 30000)
		s.submitDocuments(id)

		rec := s.do(http.MethodPost, "/properties/"+id+"/evaluate", nil)
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

		var resp struct {
			NewStage string `json:"new_stage"`
			Passed   bool   `json:"passed"`
			Checks   []struct {
				Rule   string `json:"rule"`
				Detail struct {
					MaxAllowed float64 `json:"max_allowed"`
				} `json:"detail"`
			} `json:"checks"`
		}
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		s.Equal("passed_70_rule", resp.NewStage)
		s.True(resp.Passed)
		s.Require().Len(resp.Checks, 1)
		s.Equal("purchase_ratio", resp.Checks[0].Rule)
		s.InDelta(21000.0, resp.Checks[0].Detail.MaxAllowed, 0.001)
	})

	s.Run("failing evaluation reports reasoning", func() {
		id := s.createProperty(40000, 50000)
		s.submitDocuments(id)

		rec := s.do(http.MethodPost, "/properties/"+id+"/evaluate", nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var resp struct {
			NewStage  string `json:"new_stage"`
			Reasoning string `json:"reasoning"`
		}
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		s.Equal("review_required", resp.NewStage)
		s.Contains(resp.Reasoning, "exceeds")
	})

	s.Run("evaluation before documents returns 422", func() {
		id := s.createProperty(20000, 30000)

		rec := s.do(http.MethodPost, "/properties/"+id+"/evaluate", nil)
		s.Equal(http.StatusUnprocessableEntity, rec.Code)
	})
}

func (s *HandlerSuite) TestFullAcquisitionFlow() {
	id := s.createProperty(30000, 45000)
	s.submitDocuments(id)

	rec := s.do(http.MethodPost, "/properties/"+id+"/evaluate", nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/properties/"+id+"/inspection", map[string]any{
		"defect_keys": []string{"roof", "hvac"},
	})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var inspResp struct {
		NewStage    string `json:"new_stage"`
		Aggregation struct {
			RepairEstimate float64 `json:"repair_estimate"`
		} `json:"aggregation"`
	}
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&inspResp))
	s.Equal("inspection_done", inspResp.NewStage)
	s.InDelta(5500.0, inspResp.Aggregation.RepairEstimate, 0.001)

	rec = s.do(http.MethodPost, "/properties/"+id+"/evaluate", map[string]any{
		"arv": 65000,
	})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/properties/"+id+"/contract", nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var contractResp struct {
		TotalInvestment float64 `json:"total_investment"`
		Property        struct {
			Stage string `json:"stage"`
		} `json:"property"`
	}
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&contractResp))
	s.Equal("contract_generated", contractResp.Property.Stage)
	s.InDelta(35500.0, contractResp.TotalInvestment, 0.001)

	rec = s.do(http.MethodGet, "/properties/"+id+"/transitions", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var trResp struct {
		Transitions []json.RawMessage `json:"transitions"`
	}
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&trResp))
	s.Len(trResp.Transitions, 5)
}

func (s *HandlerSuite) TestOverride() {
	s.Run("missing justification returns 400", func() {
		id := s.createProperty(40000, 50000)
		s.submitDocuments(id)
		rec := s.do(http.MethodPost, "/properties/"+id+"/evaluate", nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		rec = s.do(http.MethodPost, "/properties/"+id+"/override", map[string]any{})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("justified override advances the stage", func() {
		id := s.createProperty(40000, 50000)
		s.submitDocuments(id)
		rec := s.do(http.MethodPost, "/properties/"+id+"/evaluate", nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		rec = s.do(http.MethodPost, "/properties/"+id+"/override", map[string]any{
			"justification": "appraisal supports the price",
		})
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

		var resp struct {
			Stage string `json:"stage"`
		}
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		s.Equal("passed_70_rule", resp.Stage)
	})
}

func (s *HandlerSuite) TestReject() {
	id := s.createProperty(20000, 30000)

	rec := s.do(http.MethodPost, "/properties/"+id+"/reject", map[string]any{
		"reason": "park closing next year",
	})
	s.Require().Equal(http.StatusOK, rec.Code)

	// Terminal: further operations are refused.
	rec = s.do(http.MethodPost, fmt.Sprintf("/properties/%s/documents", id), map[string]any{
		"documents": []string{"title"},
	})
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
}
