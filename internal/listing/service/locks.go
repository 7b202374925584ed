package service

import (
	"sync"

	domain "dealdesk/pkg/domain"
)

// keyedLocks serializes work per listing ID. Entries are never removed;
// the set of listings under concurrent re-evaluation is small and a stale
// mutex costs a few bytes.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[domain.ListingID]*sync.Mutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[domain.ListingID]*sync.Mutex)}
}

func (k *keyedLocks) lock(id domain.ListingID) func() {
	k.mu.Lock()
	m, ok := k.locks[id]
	if !ok {
		m = &sync.Mutex{}
		k.locks[id] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
