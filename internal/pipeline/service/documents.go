package service

import (
	"context"
	"errors"
	"fmt"

	"dealdesk/internal/pipeline/models"
	domain "dealdesk/pkg/domain"
	dErrors "dealdesk/pkg/domain-errors"
	"dealdesk/pkg/platform/sentinel"
)

// SubmitDocumentsRequest records received documents for a property in
// intake.
type SubmitDocumentsRequest struct {
	Documents []string
	Actor     string
}

// SubmitDocuments records one or more received documents. While the
// required set is incomplete the property stays in documents_pending;
// the submission that completes the set moves it to initial. Duplicate
// document types are recorded once.
func (s *Service) SubmitDocuments(ctx context.Context, id domain.PropertyID, req SubmitDocumentsRequest) (*models.Property, error) {
	if len(req.Documents) == 0 {
		return nil, dErrors.New(dErrors.CodeMissingInput, "at least one document is required")
	}
	docs := make([]models.DocumentType, 0, len(req.Documents))
	for _, raw := range req.Documents {
		d, err := models.ParseDocumentType(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}

	// Partial submissions are plain field updates; only the submission
	// that completes the required set is a stage transition.
	for attempt := 0; attempt < maxTransitionRetries; attempt++ {
		p, err := s.GetProperty(ctx, id)
		if err != nil {
			return nil, err
		}

		if p.Stage != models.StageDocumentsPending {
			// Retried call after the completing submission already landed.
			if p.Stage == models.StageInitial && p.HasRequiredDocuments() {
				return s.absorbDuplicate(ctx, p, "submit_documents"), nil
			}
			return nil, s.refuse(ctx, p, "submit_documents",
				fmt.Sprintf("documents cannot be submitted from stage %s", p.Stage))
		}

		next := p.Clone()
		for _, d := range docs {
			next.AddDocument(d)
		}

		if next.HasRequiredDocuments() {
			return s.completeDocuments(ctx, id, docs, req.Actor)
		}

		err = s.store.Update(ctx, next, p.Version)
		if errors.Is(err, sentinel.ErrVersionConflict) {
			if s.metrics != nil {
				s.metrics.IncrementConflict()
			}
			continue
		}
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record documents")
		}
		if s.logger != nil {
			s.logger.InfoContext(ctx, "documents recorded",
				"property_id", p.ID.String(),
				"documents", req.Documents,
			)
		}
		return next, nil
	}

	return nil, dErrors.New(dErrors.CodeConflict, "concurrent modification, retry the call")
}

func (s *Service) completeDocuments(ctx context.Context, id domain.PropertyID, docs []models.DocumentType, actor string) (*models.Property, error) {
	p, _, err := s.transition(ctx, id, "submit_documents",
		[]models.Stage{models.StageDocumentsPending},
		func(p *models.Property) (*transitionAttempt, error) {
			metrics := models.DecisionMetrics{
				AskingPrice:   p.AskingPrice,
				MarketValue:   p.MarketValue,
				Justification: "all required documents on file",
			}
			return &transitionAttempt{
				target:   models.StageInitial,
				reason:   "required document set complete",
				actor:    actor,
				decision: "documents_complete",
				metrics:  metrics,
				mutate: func(next *models.Property) {
					for _, d := range docs {
						next.AddDocument(d)
					}
				},
			}, nil
		})
	if err != nil {
		return nil, err
	}
	return p, nil
}
