package recovery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mrlokans/webinarsync/internal/database/jobs"
	"github.com/mrlokans/webinarsync/internal/entities"
)

// StuckJobStore is the part of the jobs repository the sweep needs.
type StuckJobStore interface {
	FindStuck(ctx context.Context, organizationID string, cutoff time.Time) ([]entities.SyncJob, error)
	ResetStuck(ctx context.Context, job *entities.SyncJob, reason string) error
}

// SweepReport lists what a sweep did.
type SweepReport struct {
	Found     int      `json:"found"`
	Reset     []string `json:"reset"`
	Conflicts int      `json:"conflicts"`
}

// Sweeper resets jobs that have been running longer than the threshold,
// assuming their runner died.
type Sweeper struct {
	jobs      StuckJobStore
	threshold time.Duration
	now       func() time.Time
}

func NewSweeper(store StuckJobStore, threshold time.Duration) *Sweeper {
	if threshold <= 0 {
		threshold = entities.DefaultStuckThreshold
	}
	return &Sweeper{jobs: store, threshold: threshold, now: time.Now}
}

// Sweep resets stuck jobs of an organization, or of every organization when
// organizationID is empty. A job modified concurrently is skipped.
func (s *Sweeper) Sweep(ctx context.Context, organizationID string) (SweepReport, error) {
	var report SweepReport

	cutoff := s.now().Add(-s.threshold)
	stuck, err := s.jobs.FindStuck(ctx, organizationID, cutoff)
	if err != nil {
		return report, err
	}
	report.Found = len(stuck)

	reason := fmt.Sprintf("reset after running longer than %s", s.threshold)
	for i := range stuck {
		job := &stuck[i]
		if err := s.jobs.ResetStuck(ctx, job, reason); err != nil {
			if errors.Is(err, jobs.ErrVersionConflict) {
				report.Conflicts++
				continue
			}
			return report, err
		}
		log.Printf("Recovery: reset stuck %s job %s (started %s)", job.Kind, job.ID, formatStarted(stuck[i]))
		report.Reset = append(report.Reset, job.ID)
	}

	if len(report.Reset) > 0 {
		log.Printf("Recovery: sweep reset %d stuck jobs", len(report.Reset))
	}
	return report, nil
}

func formatStarted(job entities.SyncJob) string {
	if job.StartedAt == nil {
		return "never"
	}
	return job.StartedAt.Format(time.RFC3339)
}
