package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/webinarsync/internal/chunked"
	"github.com/mrlokans/webinarsync/internal/database"
	"github.com/mrlokans/webinarsync/internal/database/jobs"
	"github.com/mrlokans/webinarsync/internal/http"
	"github.com/mrlokans/webinarsync/internal/jobwatch"
	"github.com/mrlokans/webinarsync/internal/recovery"
	"github.com/mrlokans/webinarsync/internal/scheduler"
	"github.com/mrlokans/webinarsync/internal/tasks"
	"github.com/mrlokans/webinarsync/internal/zoom"
)

// =============================================================================
// Data Access Layer
// =============================================================================

// Job store implementations
var _ recovery.JobStore = (*jobs.Repository)(nil)
var _ recovery.StuckJobStore = (*jobs.Repository)(nil)
var _ http.JobReader = (*jobs.Repository)(nil)
var _ jobwatch.JobGetter = (*jobs.Repository)(nil)
var _ scheduler.ActiveJobFinder = (*jobs.Repository)(nil)

// Webinar store implementations
var _ recovery.WebinarLister = (*database.Database)(nil)
var _ recovery.WebinarStore = (*database.Database)(nil)
var _ recovery.ParticipantStore = (*database.Database)(nil)
var _ recovery.RegistrantStore = (*database.Database)(nil)
var _ zoom.CredentialStore = (*database.Database)(nil)

// =============================================================================
// Upstream Platform
// =============================================================================

var _ zoom.Tokens = (*zoom.TokenSource)(nil)
var _ zoom.TokenInvalidator = (*zoom.TokenSource)(nil)
var _ recovery.CredentialChecker = (*zoom.Client)(nil)
var _ recovery.WebinarSource = (*zoom.Client)(nil)
var _ recovery.ParticipantSource = (*zoom.Client)(nil)
var _ recovery.RegistrantSource = (*zoom.Client)(nil)

// =============================================================================
// Recovery and Resync
// =============================================================================

var _ recovery.Recoverer = (*recovery.ParticipantRecoverer)(nil)
var _ recovery.Recoverer = (*recovery.RegistrantRecoverer)(nil)
var _ http.RecoveryRunner = (*recovery.Orchestrator)(nil)
var _ http.StuckJobSweeper = (*recovery.Sweeper)(nil)
var _ http.WebinarDiscoverer = (*recovery.Discoverer)(nil)
var _ http.ChunkProcessor = (*chunked.Processor)(nil)
var _ chunked.ChunkProcessor = (*chunked.Processor)(nil)
var _ scheduler.ResyncStarter = (*chunked.Processor)(nil)

// =============================================================================
// Background Tasks
// =============================================================================

var _ http.TaskEnqueuer = (*tasks.Client)(nil)
var _ http.TaskStatusReader = (*tasks.Client)(nil)
var _ scheduler.TaskEnqueuer = (*tasks.Client)(nil)
var _ tasks.RecoveryRunner = (*recovery.Orchestrator)(nil)
var _ tasks.ChunkDriver = (*chunked.Driver)(nil)
var _ tasks.ChunkProgressReader = (*chunked.Processor)(nil)
var _ tasks.StuckJobSweeper = (*recovery.Sweeper)(nil)
