package http

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/webinarsync/internal/entities"
	"github.com/mrlokans/webinarsync/internal/recovery"
	"github.com/mrlokans/webinarsync/internal/tasks"
)

// RecoveryController triggers attendee and registration recovery runs.
type RecoveryController struct {
	runner RecoveryRunner
	resync ChunkProcessor
	queue  TaskEnqueuer
}

// NewRecoveryController creates a RecoveryController. resync and queue may be
// nil, which disables background runs.
func NewRecoveryController(runner RecoveryRunner, resync ChunkProcessor, queue TaskEnqueuer) *RecoveryController {
	return &RecoveryController{runner: runner, resync: resync, queue: queue}
}

// RecoveryRequest is the request body for the recovery endpoints.
type RecoveryRequest struct {
	OrganizationID string           `json:"organization_id"`
	UserID         string           `json:"user_id"`
	Kind           entities.JobKind `json:"kind,omitempty"`
	WebinarIDs     []uint           `json:"webinar_ids,omitempty"`
}

// RunResponse wraps the output of a synchronous run.
type RunResponse struct {
	Success bool `json:"success"`
	*recovery.RunOutput
}

// RecoverAttendees handles POST /api/recovery/attendees
func (rc *RecoveryController) RecoverAttendees(c *gin.Context) {
	rc.run(c, entities.JobKindAttendeeRecovery)
}

// RecoverRegistrations handles POST /api/recovery/registrations
func (rc *RecoveryController) RecoverRegistrations(c *gin.Context) {
	rc.run(c, entities.JobKindRegistrationRecovery)
}

func (rc *RecoveryController) run(c *gin.Context, kind entities.JobKind) {
	var req RecoveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	// The job outlives a disconnected client; entities are bounded by their own timeouts.
	out, err := rc.runner.Run(context.WithoutCancel(c.Request.Context()), recovery.RunRequest{
		OrganizationID: req.OrganizationID,
		UserID:         req.UserID,
		Kind:           kind,
		OnlyWebinarIDs: req.WebinarIDs,
	})
	if err != nil {
		var details any
		if out != nil {
			details = out
		}
		respondRecoveryError(c, err, details)
		return
	}

	c.JSON(http.StatusOK, RunResponse{Success: true, RunOutput: out})
}

// RunInBackground handles POST /api/recovery/background
// Creates the job up front and returns its id; a worker runs it.
func (rc *RecoveryController) RunInBackground(c *gin.Context) {
	if rc.queue == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "task queue is not enabled"})
		return
	}

	var req RecoveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if !req.Kind.Valid() {
		respondBadRequest(c, "kind must be one of mass_resync, attendee_recovery, registration_recovery")
		return
	}

	ctx := c.Request.Context()
	var jobID string
	var task backlite.Task

	if req.Kind == entities.JobKindMassResync {
		if rc.resync == nil {
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "chunked resync is not enabled"})
			return
		}
		resp, err := rc.resync.Start(ctx, req.OrganizationID, req.UserID)
		if err != nil {
			respondRecoveryError(c, err, nil)
			return
		}
		if resp.Completed {
			c.JSON(http.StatusOK, AcceptedResponse{Success: true, JobID: resp.JobID, Message: resp.Progress.StageMessage})
			return
		}
		jobID = resp.JobID
		task = tasks.MassResyncTask{JobID: jobID, OrganizationID: req.OrganizationID, UserID: req.UserID}
	} else {
		job, err := rc.runner.Prepare(ctx, recovery.RunRequest{
			OrganizationID: req.OrganizationID,
			UserID:         req.UserID,
			Kind:           req.Kind,
			OnlyWebinarIDs: req.WebinarIDs,
		})
		if err != nil {
			respondRecoveryError(c, err, nil)
			return
		}
		jobID = job.ID
		task = tasks.RecoveryRunTask{JobID: jobID}
	}

	taskID, err := rc.queue.Enqueue(ctx, task)
	if err != nil {
		respondInternalError(c, err, "enqueue "+string(req.Kind))
		return
	}
	log.Printf("Recovery: queued %s job %s as task %s", req.Kind, jobID, taskID)

	c.JSON(http.StatusAccepted, AcceptedResponse{
		Success: true,
		JobID:   jobID,
		TaskID:  taskID,
		Message: "recovery queued",
	})
}
