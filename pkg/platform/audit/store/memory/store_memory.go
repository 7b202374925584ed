package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	audit "dealdesk/pkg/platform/audit"
)

type entityKey struct {
	entityType audit.EntityType
	entityID   string
}

// InMemoryStore keeps audit events in process memory. Used by unit tests
// and single-node development runs.
type InMemoryStore struct {
	mu     sync.RWMutex
	all    []audit.Event
	events map[entityKey][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[entityKey][]audit.Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	key := entityKey{entityType: event.EntityType, entityID: event.EntityID}
	s.events[key] = append(s.events[key], event)
	s.all = append(s.all, event)
	return nil
}

func (s *InMemoryStore) ListByEntity(_ context.Context, entityType audit.EntityType, entityID string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := entityKey{entityType: entityType, entityID: entityID}
	return append([]audit.Event{}, s.events[key]...), nil
}

func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := len(s.all) - limit
	if start < 0 {
		start = 0
	}
	return append([]audit.Event{}, s.all[start:]...), nil
}

// Clear resets the store between tests.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.all = nil
	s.events = make(map[entityKey][]audit.Event)
}
