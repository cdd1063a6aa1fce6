package inmemdb

import (
	"context"
	"sync"

	"github.com/trezcool/mahudhurio/core/attendance"
)

type locationRepository struct {
	mu  sync.RWMutex
	loc *attendance.SchoolLocation
}

var _ attendance.LocationRepository = (*locationRepository)(nil)

func NewLocationRepository() *locationRepository {
	return &locationRepository{}
}

func (repo *locationRepository) GetSchoolLocation(_ context.Context) (attendance.SchoolLocation, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	if repo.loc == nil {
		return attendance.SchoolLocation{}, attendance.ErrLocationNotSet
	}
	return *repo.loc, nil
}

func (repo *locationRepository) SetSchoolLocation(_ context.Context, loc attendance.SchoolLocation) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	repo.loc = &loc
	return nil
}
