package http

import (
	"context"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/webinarsync/internal/chunked"
	"github.com/mrlokans/webinarsync/internal/entities"
	"github.com/mrlokans/webinarsync/internal/recovery"
)

// Each controller depends on the narrow interface it needs, so tests can
// swap in fakes for the orchestrator, the chunk processor or the task queue.

// RecoveryRunner runs recovery jobs, either inline or by preparing a job for
// the task queue.
type RecoveryRunner interface {
	Run(ctx context.Context, req recovery.RunRequest) (*recovery.RunOutput, error)
	Prepare(ctx context.Context, req recovery.RunRequest) (*entities.SyncJob, error)
}

// ChunkProcessor executes one chunk of a mass resync.
type ChunkProcessor interface {
	Start(ctx context.Context, organizationID, userID string) (*chunked.Response, error)
	ProcessChunk(ctx context.Context, req chunked.Request) (*chunked.Response, error)
	Progress(ctx context.Context, jobID string) (*chunked.Response, error)
}

// TaskEnqueuer hands work to the background task queue.
type TaskEnqueuer interface {
	Enqueue(ctx context.Context, task backlite.Task) (string, error)
}

// TaskStatusReader reports the status of a queued task.
type TaskStatusReader interface {
	Status(ctx context.Context, taskID string) (backlite.TaskStatus, error)
}

// JobReader provides read access to sync jobs.
type JobReader interface {
	Get(ctx context.Context, id string) (*entities.SyncJob, error)
	ListForOrganization(ctx context.Context, organizationID string, limit int) ([]entities.SyncJob, error)
}

// StuckJobSweeper resets jobs whose runner died.
type StuckJobSweeper interface {
	Sweep(ctx context.Context, organizationID string) (recovery.SweepReport, error)
}

// WebinarDiscoverer imports an organization's webinar list from upstream.
type WebinarDiscoverer interface {
	Discover(ctx context.Context, organizationID string) (recovery.Discovery, error)
}
