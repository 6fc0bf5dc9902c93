package http

import (
	"github.com/mrlokans/webinarsync/internal/database"
	"github.com/mrlokans/webinarsync/internal/jobwatch"
)

// RouterConfig contains all dependencies needed to create the HTTP router.
// Optional dependencies left nil disable their endpoints.
type RouterConfig struct {
	Database *database.Database
	Version  string

	// Recovery triggers
	Recovery RecoveryRunner
	Resync   ChunkProcessor
	Webinars WebinarDiscoverer

	// Job polling
	Jobs    JobReader
	Sweeper StuckJobSweeper
	Watcher *jobwatch.Watcher

	// Task queue (optional)
	TaskQueue  TaskEnqueuer
	TaskStatus TaskStatusReader

	// Extra health checks, keyed by name
	HealthChecks map[string]CheckFunc
}
