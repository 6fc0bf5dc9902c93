package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/webinarsync/internal/recovery"
)

// RecoveryRunner executes a prepared recovery job.
type RecoveryRunner interface {
	RunJob(ctx context.Context, jobID string) (*recovery.RunOutput, error)
}

// RecoveryRunTask runs an attendee or registration recovery job in the background.
// The job is created before enqueueing so callers can poll it by id.
type RecoveryRunTask struct {
	JobID string `json:"job_id"`
}

// Config returns the queue configuration for recovery runs. A failed run is
// not retried: the job row records the failure and a new run must be requested.
func (t RecoveryRunTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "recovery_run",
		MaxAttempts: 1,
		Backoff:     time.Minute,
		Timeout:     2 * time.Hour,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// RecoveryRunProcessor creates a processor function for RecoveryRunTask.
func RecoveryRunProcessor(runner RecoveryRunner) backlite.QueueProcessor[RecoveryRunTask] {
	return func(ctx context.Context, task RecoveryRunTask) error {
		if runner == nil {
			return fmt.Errorf("recovery runner not configured")
		}

		out, err := runner.RunJob(ctx, task.JobID)
		if err != nil {
			if out != nil {
				log.Printf("[TASK] Recovery job %s stopped after %d webinars: %s",
					task.JobID, len(out.Results), out.Message)
			}
			return fmt.Errorf("recovery job %s: %w", task.JobID, err)
		}

		log.Printf("[TASK] Recovery job %s complete: %s", task.JobID, out.Message)
		for _, rec := range out.Diagnostics.Recommendations {
			log.Printf("[TASK] Recovery job %s: %s", task.JobID, rec)
		}
		return nil
	}
}

// NewRecoveryRunQueue creates a backlite queue for recovery runs.
func NewRecoveryRunQueue(runner RecoveryRunner) backlite.Queue {
	return backlite.NewQueue(RecoveryRunProcessor(runner))
}
