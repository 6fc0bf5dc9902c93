package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/webinarsync/internal/chunked"
	"github.com/mrlokans/webinarsync/internal/database/jobs"
	"github.com/mrlokans/webinarsync/internal/entities"
	"github.com/mrlokans/webinarsync/internal/jobwatch"
)

const defaultJobListLimit = 20

// JobsController serves job status for polling clients.
type JobsController struct {
	jobs    JobReader
	sweeper StuckJobSweeper
	watcher *jobwatch.Watcher
}

// NewJobsController creates a JobsController. watcher may be nil, which
// disables the streaming endpoint.
func NewJobsController(reader JobReader, sweeper StuckJobSweeper, watcher *jobwatch.Watcher) *JobsController {
	return &JobsController{jobs: reader, sweeper: sweeper, watcher: watcher}
}

// JobResponse is a job row plus its derived progress.
type JobResponse struct {
	*entities.SyncJob
	Chunk *chunked.ChunkProgress `json:"chunk_progress,omitempty"`
	Stage string                 `json:"stage_message,omitempty"`
}

func newJobResponse(job *entities.SyncJob) JobResponse {
	resp := JobResponse{SyncJob: job}
	md := job.Metadata
	switch {
	case md.Chunk != nil:
		progress := chunked.ProgressOf(md.Chunk)
		resp.Chunk = &progress
		resp.Stage = md.Chunk.StageMessage
	case md.Resync != nil:
		resp.Stage = md.Resync.StageMessage
	case md.Registration != nil:
		resp.Stage = md.Registration.StageMessage
	}
	return resp
}

// GetJob handles GET /api/jobs/:id
func (jc *JobsController) GetJob(c *gin.Context) {
	job, err := jc.jobs.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, jobs.ErrJobNotFound) {
		respondNotFound(c, "job")
		return
	}
	if err != nil {
		respondInternalError(c, err, "get job")
		return
	}
	c.JSON(http.StatusOK, newJobResponse(job))
}

// ListJobs handles GET /api/jobs?organization_id=...&limit=...
func (jc *JobsController) ListJobs(c *gin.Context) {
	organizationID := c.Query("organization_id")
	if organizationID == "" {
		respondBadRequest(c, "organization_id is required")
		return
	}
	limit := defaultJobListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondBadRequest(c, "invalid limit")
			return
		}
		limit = n
	}

	list, err := jc.jobs.ListForOrganization(c.Request.Context(), organizationID, limit)
	if err != nil {
		respondInternalError(c, err, "list jobs")
		return
	}
	resp := make([]JobResponse, 0, len(list))
	for i := range list {
		resp = append(resp, newJobResponse(&list[i]))
	}
	c.JSON(http.StatusOK, gin.H{"jobs": resp})
}

// WatchJob handles GET /api/jobs/:id/watch
// Streams the job as server-sent events until it completes or fails.
func (jc *JobsController) WatchJob(c *gin.Context) {
	if jc.watcher == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "job watching is not enabled"})
		return
	}

	updates := jc.watcher.Watch(c.Request.Context(), c.Param("id"))
	c.Stream(func(w io.Writer) bool {
		u, ok := <-updates
		if !ok {
			return false
		}
		if u.Err != nil {
			c.SSEvent("error", ErrorResponse{Error: u.Err.Error()})
			return !errors.Is(u.Err, jobs.ErrJobNotFound)
		}
		c.SSEvent("job", newJobResponse(u.Job))
		return true
	})
}

// OrganizationRequest names the organization an operation applies to.
type OrganizationRequest struct {
	OrganizationID string `json:"organization_id"`
}

// Sweep handles POST /api/jobs/sweep
func (jc *JobsController) Sweep(c *gin.Context) {
	var req OrganizationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid request body: "+err.Error())
			return
		}
	}

	report, err := jc.sweeper.Sweep(c.Request.Context(), req.OrganizationID)
	if err != nil {
		respondInternalError(c, err, "sweep stuck jobs")
		return
	}
	if report.Reset == nil {
		report.Reset = []string{}
	}
	c.JSON(http.StatusOK, report)
}
