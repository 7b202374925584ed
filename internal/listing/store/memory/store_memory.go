package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"dealdesk/internal/listing/models"
	"dealdesk/internal/listing/ports"
	domain "dealdesk/pkg/domain"
	"dealdesk/pkg/platform/sentinel"
)

// InMemoryListingStore keeps listings in process memory.
type InMemoryListingStore struct {
	mu       sync.RWMutex
	listings map[domain.ListingID]*models.MarketListing
}

func NewInMemoryListingStore() *InMemoryListingStore {
	return &InMemoryListingStore{
		listings: make(map[domain.ListingID]*models.MarketListing),
	}
}

func (s *InMemoryListingStore) Create(_ context.Context, listing *models.MarketListing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.listings[listing.ID]; exists {
		return sentinel.ErrConflict
	}

	now := time.Now().UTC()
	listing.Version = 1
	listing.CreatedAt = now
	listing.UpdatedAt = now
	s.listings[listing.ID] = listing.Clone()
	return nil
}

func (s *InMemoryListingStore) Get(_ context.Context, id domain.ListingID) (*models.MarketListing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.listings[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return l.Clone(), nil
}

func (s *InMemoryListingStore) Update(_ context.Context, listing *models.MarketListing, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.listings[listing.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return sentinel.ErrVersionConflict
	}

	listing.Version = expectedVersion + 1
	listing.UpdatedAt = time.Now().UTC()
	s.listings[listing.ID] = listing.Clone()
	return nil
}

func (s *InMemoryListingStore) List(_ context.Context, filter ports.ListFilter) ([]*models.MarketListing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.MarketListing, 0, len(s.listings))
	for _, l := range s.listings {
		if filter.Qualified != nil && l.IsQualified != *filter.Qualified {
			continue
		}
		if filter.Status != nil && l.Status != *filter.Status {
			continue
		}
		out = append(out, l.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
