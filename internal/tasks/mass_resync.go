package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/webinarsync/internal/chunked"
)

// ChunkDriver drives a chunked job until it completes.
type ChunkDriver interface {
	Run(ctx context.Context, start chunked.Request) (*chunked.Response, error)
}

// ChunkProgressReader reports where a chunked job stands.
type ChunkProgressReader interface {
	Progress(ctx context.Context, jobID string) (*chunked.Response, error)
}

// MassResyncTask drives a chunked mass resync server-side, so the run keeps
// going after the client that started it goes away.
type MassResyncTask struct {
	JobID          string `json:"job_id"`
	OrganizationID string `json:"organization_id"`
	UserID         string `json:"user_id,omitempty"`
}

// Config returns the queue configuration for mass resync tasks. Retries
// resume from the job's last completed chunk.
func (t MassResyncTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "mass_resync",
		MaxAttempts: 3,
		Backoff:     time.Minute,
		Timeout:     2 * time.Hour,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// MassResyncProcessor creates a processor function for MassResyncTask.
func MassResyncProcessor(progress ChunkProgressReader, driver ChunkDriver) backlite.QueueProcessor[MassResyncTask] {
	return func(ctx context.Context, task MassResyncTask) error {
		if progress == nil || driver == nil {
			return fmt.Errorf("chunked resync not configured")
		}

		current, err := progress.Progress(ctx, task.JobID)
		if err != nil {
			return fmt.Errorf("load resync job %s: %w", task.JobID, err)
		}
		if current.Completed || !current.Success {
			log.Printf("[TASK] Resync job %s already finished (%d%%)", task.JobID, current.Progress.ProgressPercentage)
			return nil
		}

		resp, err := driver.Run(ctx, chunked.Request{
			OrganizationID: task.OrganizationID,
			UserID:         task.UserID,
			JobID:          task.JobID,
			ChunkIndex:     current.Progress.CurrentChunk,
		})
		if err != nil {
			return fmt.Errorf("resync job %s: %w", task.JobID, err)
		}

		log.Printf("[TASK] Resync job %s finished: %d of %d webinars, %d failed",
			task.JobID, resp.Progress.ProcessedWebinars, resp.Progress.TotalWebinars, resp.Progress.Failed)
		return nil
	}
}

// NewMassResyncQueue creates a backlite queue for mass resync tasks.
func NewMassResyncQueue(progress ChunkProgressReader, driver ChunkDriver) backlite.Queue {
	return backlite.NewQueue(MassResyncProcessor(progress, driver))
}
