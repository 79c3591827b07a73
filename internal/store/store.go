// Package store keeps completed trend runs so the API can serve the latest one.
package store

import (
	"context"
	"sync"

	"github.com/wonny/polltrend/internal/contracts"
)

// Store persists trend runs
type Store interface {
	SaveRun(ctx context.Context, run *contracts.TrendRun) error
	LatestRun(ctx context.Context) (*contracts.TrendRun, error)
	GetRun(ctx context.Context, id string) (*contracts.TrendRun, error)
	ListRuns(ctx context.Context, limit int) ([]contracts.RunSummary, error)
}

// DefaultMemoryCapacity is how many runs the in-memory store retains
const DefaultMemoryCapacity = 20

// MemoryStore keeps the most recent runs in process memory
type MemoryStore struct {
	mu       sync.RWMutex
	runs     []*contracts.TrendRun // oldest first
	capacity int
}

// NewMemoryStore creates a store that keeps up to capacity runs
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryStore{capacity: capacity}
}

// SaveRun appends run, evicting the oldest beyond capacity
func (s *MemoryStore) SaveRun(_ context.Context, run *contracts.TrendRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs = append(s.runs, run)
	if over := len(s.runs) - s.capacity; over > 0 {
		s.runs = append([]*contracts.TrendRun(nil), s.runs[over:]...)
	}
	return nil
}

// LatestRun returns the most recently saved run
func (s *MemoryStore) LatestRun(_ context.Context) (*contracts.TrendRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.runs) == 0 {
		return nil, contracts.ErrRunNotFound
	}
	return s.runs[len(s.runs)-1], nil
}

// GetRun finds a run by id
func (s *MemoryStore) GetRun(_ context.Context, id string) (*contracts.TrendRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, contracts.ErrRunNotFound
}

// ListRuns returns up to limit summaries, newest first
func (s *MemoryStore) ListRuns(_ context.Context, limit int) ([]contracts.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]contracts.RunSummary, 0, len(s.runs))
	for i := len(s.runs) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, s.runs[i].Summary())
	}
	return out, nil
}
