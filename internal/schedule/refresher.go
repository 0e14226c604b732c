package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "docappt/internal/log"
)

// Refresher re-fetches the schedule feed on a cron schedule.
type Refresher struct {
	store   *Store
	src     Source
	timeout time.Duration
	cron    *cron.Cron
}

// NewRefresher validates spec (standard 5-field cron syntax, or descriptors
// such as "@every 10m") and prepares a job that refreshes store from src.
func NewRefresher(store *Store, src Source, spec string, timeout time.Duration) (*Refresher, error) {
	r := &Refresher{
		store:   store,
		src:     src,
		timeout: timeout,
		cron:    cron.New(),
	}
	if _, err := r.cron.AddFunc(spec, r.runOnce); err != nil {
		return nil, fmt.Errorf("parse refresh schedule %q: %w", spec, err)
	}
	return r, nil
}

// Start runs the scheduler in the background until ctx is cancelled.
func (r *Refresher) Start(ctx context.Context) {
	r.cron.Start()
	appLog.Info("schedule refresher started", "jobs", len(r.cron.Entries()))

	go func() {
		<-ctx.Done()
		stopped := r.cron.Stop()
		<-stopped.Done()
		appLog.Info("schedule refresher stopped")
	}()
}

func (r *Refresher) runOnce() {
	ctx := context.Background()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	if err := r.store.Refresh(ctx, r.src); err == nil {
		st := r.store.Status()
		appLog.Info("scheduled refresh done", "entries", st.Entries, "doctors", st.Doctors)
	}
}
