// Package jobwatch follows a sync job until it reaches a terminal state.
package jobwatch

import (
	"context"
	"errors"
	"time"

	"github.com/mrlokans/webinarsync/internal/database/jobs"
	"github.com/mrlokans/webinarsync/internal/entities"
)

const (
	DefaultInterval = 2 * time.Second
	MinInterval     = 1500 * time.Millisecond
)

// JobGetter loads a job by id.
type JobGetter interface {
	Get(ctx context.Context, id string) (*entities.SyncJob, error)
}

// Update is one observation of the watched job. Err is set when the poll failed.
type Update struct {
	Job *entities.SyncJob
	Err error
}

// Watcher polls job rows at a fixed interval.
type Watcher struct {
	jobs     JobGetter
	interval time.Duration
}

func New(getter JobGetter, interval time.Duration) *Watcher {
	if interval < MinInterval {
		interval = DefaultInterval
	}
	return &Watcher{jobs: getter, interval: interval}
}

// Watch polls the job and sends every observation on the returned channel.
// The channel is closed once the job is completed or failed, the job no
// longer exists, or ctx is cancelled. Unchanged observations are not repeated.
func (w *Watcher) Watch(ctx context.Context, jobID string) <-chan Update {
	updates := make(chan Update, 1)

	go func() {
		defer close(updates)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		var lastVersion int
		for {
			job, err := w.jobs.Get(ctx, jobID)
			switch {
			case err != nil:
				if ctx.Err() != nil {
					return
				}
				if !send(ctx, updates, Update{Err: err}) || errors.Is(err, jobs.ErrJobNotFound) {
					return
				}
			case job.Version != lastVersion:
				lastVersion = job.Version
				if !send(ctx, updates, Update{Job: job}) || job.Status.IsTerminal() {
					return
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return updates
}

// Wait blocks until the job reaches a terminal state and returns it.
func (w *Watcher) Wait(ctx context.Context, jobID string) (*entities.SyncJob, error) {
	var last *entities.SyncJob
	var lastErr error
	for u := range w.Watch(ctx, jobID) {
		if u.Err != nil {
			lastErr = u.Err
			if errors.Is(u.Err, jobs.ErrJobNotFound) {
				return nil, u.Err
			}
			continue
		}
		last, lastErr = u.Job, nil
	}
	if last != nil && last.Status.IsTerminal() {
		return last, nil
	}
	if err := ctx.Err(); err != nil {
		return last, err
	}
	return last, lastErr
}

func send(ctx context.Context, ch chan<- Update, u Update) bool {
	select {
	case ch <- u:
		return true
	case <-ctx.Done():
		return false
	}
}
