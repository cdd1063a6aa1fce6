package inmemdb

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/mahudhurio/core/attendance"
)

type throttleRepository struct {
	mu      sync.Mutex
	entries []attendance.ThrottleEntry
}

var _ attendance.ThrottleRepository = (*throttleRepository)(nil)

func NewThrottleRepository() *throttleRepository {
	return &throttleRepository{entries: make([]attendance.ThrottleEntry, 0)}
}

func (repo *throttleRepository) CountCallsSince(_ context.Context, identifier, endpoint string, since time.Time) (int, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	var count int
	for _, e := range repo.entries {
		if e.Identifier == identifier && e.Endpoint == endpoint && e.CreatedAt.After(since) {
			count++
		}
	}
	return count, nil
}

func (repo *throttleRepository) LogCall(_ context.Context, entry attendance.ThrottleEntry) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	repo.entries = append(repo.entries, entry)
	return nil
}

func (repo *throttleRepository) DeleteCallsBefore(_ context.Context, cutoff time.Time) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	kept := repo.entries[:0]
	for _, e := range repo.entries {
		if !e.CreatedAt.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	repo.entries = kept
	return nil
}
