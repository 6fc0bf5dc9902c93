package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/webinarsync/internal/recovery"
)

// StuckJobSweeper resets jobs whose runner died.
type StuckJobSweeper interface {
	Sweep(ctx context.Context, organizationID string) (recovery.SweepReport, error)
}

// SweepStuckJobsTask resets jobs that have been running past the stuck threshold.
type SweepStuckJobsTask struct {
	// OrganizationID limits the sweep to one organization (empty = all)
	OrganizationID string `json:"organization_id,omitempty"`
}

// Config returns the queue configuration for stuck job sweeps.
func (t SweepStuckJobsTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "sweep_stuck_jobs",
		MaxAttempts: 3,
		Backoff:     time.Minute,
		Timeout:     time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: true,
		},
	}
}

// SweepStuckJobsProcessor creates a processor function for SweepStuckJobsTask.
func SweepStuckJobsProcessor(sweeper StuckJobSweeper) backlite.QueueProcessor[SweepStuckJobsTask] {
	return func(ctx context.Context, task SweepStuckJobsTask) error {
		if sweeper == nil {
			return fmt.Errorf("stuck job sweeper not configured")
		}

		report, err := sweeper.Sweep(ctx, task.OrganizationID)
		if err != nil {
			return fmt.Errorf("sweep stuck jobs: %w", err)
		}

		if len(report.Reset) > 0 || report.Conflicts > 0 {
			log.Printf("[TASK] Swept stuck jobs: %d reset, %d modified concurrently", len(report.Reset), report.Conflicts)
		}
		return nil
	}
}

// NewSweepStuckJobsQueue creates a backlite queue for stuck job sweeps.
func NewSweepStuckJobsQueue(sweeper StuckJobSweeper) backlite.Queue {
	return backlite.NewQueue(SweepStuckJobsProcessor(sweeper))
}
