package inmemdb

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core/attendance"
)

type attendanceRepository struct {
	mu       sync.RWMutex
	sessions map[string]*attendance.Session
	checkins map[string]map[string]attendance.CheckIn // sessionID -> studentID -> row
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository() *attendanceRepository {
	return &attendanceRepository{
		sessions: make(map[string]*attendance.Session),
		checkins: make(map[string]map[string]attendance.CheckIn),
	}
}

func (repo *attendanceRepository) CreateSession(_ context.Context, sess attendance.Session) (attendance.Session, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	repo.sessions[sess.ID] = &sess
	repo.checkins[sess.ID] = make(map[string]attendance.CheckIn)
	return sess, nil
}

func (repo *attendanceRepository) GetSessionByID(_ context.Context, id string) (attendance.Session, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	if sess, ok := repo.sessions[id]; ok {
		return *sess, nil
	}
	return attendance.Session{}, attendance.ErrSessionNotFound
}

func (repo *attendanceRepository) EndSession(_ context.Context, id string, at time.Time) (attendance.Session, bool, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	sess, ok := repo.sessions[id]
	if !ok {
		return attendance.Session{}, false, attendance.ErrSessionNotFound
	}
	var transitioned bool
	if sess.Status == attendance.StatusActive {
		sess.Status = attendance.StatusExpired
		sess.EndedAt = null.TimeFrom(at)
		sess.UpdatedAt = at
		transitioned = true
	}
	return *sess, transitioned, nil
}

func (repo *attendanceRepository) AddCheckIn(_ context.Context, ci attendance.CheckIn) (bool, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	ledger, ok := repo.checkins[ci.SessionID]
	if !ok {
		return false, attendance.ErrSessionNotFound
	}
	if _, present := ledger[ci.StudentID]; present {
		return false, nil
	}
	ledger[ci.StudentID] = ci
	return true, nil
}

func (repo *attendanceRepository) CountCheckIns(_ context.Context, sessionID string) (int, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()
	return len(repo.checkins[sessionID]), nil
}

func (repo *attendanceRepository) ListCheckIns(_ context.Context, sessionID string) ([]attendance.CheckIn, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	ledger := repo.checkins[sessionID]
	cis := make([]attendance.CheckIn, 0, len(ledger))
	for _, ci := range ledger {
		cis = append(cis, ci)
	}
	sort.Slice(cis, func(i, j int) bool { return cis[i].CreatedAt.Before(cis[j].CreatedAt) })
	return cis, nil
}
