package schedule

import (
	"context"
	"sync"
	"time"

	appLog "docappt/internal/log"
	"docappt/internal/model"
)

// Source delivers the raw schedule list. *Fetcher is the production Source.
type Source interface {
	Fetch(ctx context.Context) (FetchResult, error)
}

// Status is a snapshot of the store's load state.
type Status struct {
	Loading   bool      `json:"loading"`
	Error     string    `json:"error,omitempty"`
	Entries   int       `json:"entries"`
	Doctors   int       `json:"doctors"`
	// UpdatedAt is nil until the first successful load.
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Store owns the current schedule list and the doctors derived from it.
// The list is replaced wholesale; the last successful refresh wins.
type Store struct {
	mu        sync.RWMutex
	schedules []model.ScheduleEntry
	doctors   []model.Doctor
	loading   bool
	errMsg    string
	updatedAt time.Time
}

func NewStore() *Store {
	return &Store{
		schedules: []model.ScheduleEntry{},
		doctors:   []model.Doctor{},
	}
}

// Replace swaps in a new schedule list and rebuilds the doctor list.
func (s *Store) Replace(entries []model.ScheduleEntry) {
	cp := append([]model.ScheduleEntry{}, entries...)
	doctors := Normalize(cp)

	s.mu.Lock()
	s.schedules = cp
	s.doctors = doctors
	s.updatedAt = time.Now()
	s.mu.Unlock()
}

func (s *Store) Schedules() []model.ScheduleEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.ScheduleEntry{}, s.schedules...)
}

func (s *Store) Doctors() []model.Doctor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Doctor{}, s.doctors...)
}

// DoctorByName looks a doctor up by exact, case-sensitive name.
func (s *Store) DoctorByName(name string) (model.Doctor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return FindDoctor(s.doctors, name)
}

func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Status{
		Loading: s.loading,
		Error:   s.errMsg,
		Entries: len(s.schedules),
		Doctors: len(s.doctors),
	}
	if !s.updatedAt.IsZero() {
		updated := s.updatedAt
		st.UpdatedAt = &updated
	}
	return st
}

// Refresh loads the schedule list from src. On failure the error message is
// recorded in Status and the current list is kept. The error is returned for
// the caller to log; it is never fatal.
func (s *Store) Refresh(ctx context.Context, src Source) error {
	s.mu.Lock()
	s.loading = true
	s.errMsg = ""
	s.mu.Unlock()

	res, err := src.Fetch(ctx)

	if err == nil && !res.NotModified {
		s.Replace(res.Entries)
	}

	s.mu.Lock()
	if err != nil {
		s.errMsg = err.Error()
	}
	s.loading = false
	s.mu.Unlock()

	if err != nil {
		appLog.Error("error fetching schedules", err)
		return err
	}
	return nil
}
