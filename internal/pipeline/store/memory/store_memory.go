package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"dealdesk/internal/pipeline/models"
	domain "dealdesk/pkg/domain"
	audit "dealdesk/pkg/platform/audit"
	"dealdesk/pkg/platform/sentinel"
)

// InMemoryPropertyStore keeps pipeline state in process memory. One mutex
// covers properties, transitions, inspections and the audit sink, which
// makes ApplyTransition trivially atomic; the postgres store gets the
// same guarantee from a transaction.
type InMemoryPropertyStore struct {
	mu          sync.RWMutex
	properties  map[domain.PropertyID]*models.Property
	transitions map[domain.PropertyID][]models.StageTransition
	inspections map[domain.PropertyID][]models.InspectionResult
	auditSink   audit.Store
}

// NewInMemoryPropertyStore creates a store. auditSink may be nil when the
// caller does not need audit entries (some unit tests).
func NewInMemoryPropertyStore(auditSink audit.Store) *InMemoryPropertyStore {
	return &InMemoryPropertyStore{
		properties:  make(map[domain.PropertyID]*models.Property),
		transitions: make(map[domain.PropertyID][]models.StageTransition),
		inspections: make(map[domain.PropertyID][]models.InspectionResult),
		auditSink:   auditSink,
	}
}

func (s *InMemoryPropertyStore) Create(_ context.Context, property *models.Property) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.properties[property.ID]; exists {
		return sentinel.ErrConflict
	}

	now := time.Now().UTC()
	property.Version = 1
	property.CreatedAt = now
	property.UpdatedAt = now
	s.properties[property.ID] = property.Clone()
	return nil
}

func (s *InMemoryPropertyStore) Get(_ context.Context, id domain.PropertyID) (*models.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.properties[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *InMemoryPropertyStore) Update(_ context.Context, property *models.Property, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.properties[property.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return sentinel.ErrVersionConflict
	}

	property.Version = expectedVersion + 1
	property.UpdatedAt = time.Now().UTC()
	s.properties[property.ID] = property.Clone()
	return nil
}

func (s *InMemoryPropertyStore) ApplyTransition(ctx context.Context, property *models.Property, expectedVersion int64, transition *models.StageTransition, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.properties[property.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return sentinel.ErrVersionConflict
	}

	now := time.Now().UTC()
	if transition.ID == uuid.Nil {
		transition.ID = uuid.New()
	}
	transition.CreatedAt = now

	property.Version = expectedVersion + 1
	property.UpdatedAt = now
	s.properties[property.ID] = property.Clone()
	s.transitions[property.ID] = append(s.transitions[property.ID], *transition)

	if s.auditSink != nil {
		if err := s.auditSink.Append(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

func (s *InMemoryPropertyStore) SaveInspection(_ context.Context, result *models.InspectionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if result.ID.IsNil() {
		result.ID = domain.NewInspectionID()
	}
	result.CreatedAt = time.Now().UTC()
	s.inspections[result.PropertyID] = append(s.inspections[result.PropertyID], *result)
	return nil
}

func (s *InMemoryPropertyStore) LatestInspection(_ context.Context, id domain.PropertyID) (*models.InspectionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := s.inspections[id]
	if len(results) == 0 {
		return nil, sentinel.ErrNotFound
	}
	latest := results[len(results)-1]
	return &latest, nil
}

func (s *InMemoryPropertyStore) ListTransitions(_ context.Context, id domain.PropertyID) ([]models.StageTransition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.StageTransition{}, s.transitions[id]...), nil
}
