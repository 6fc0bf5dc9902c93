package http

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/webinarsync/internal/chunked"
	"github.com/mrlokans/webinarsync/internal/database/jobs"
	"github.com/mrlokans/webinarsync/internal/recovery"
)

// --- Response Types ---

// ErrorResponse is the standard error response format for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`    // machine-readable error class
	Details any    `json:"details,omitempty"` // partial run output, when there is one
}

// AcceptedResponse is returned when work was handed to the task queue.
type AcceptedResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"job_id"`
	TaskID  string `json:"task_id,omitempty"`
	Message string `json:"message"`
}

// --- Error Response Helpers ---

// respondBadRequest sends a 400 Bad Request response.
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message})
}

// respondNotFound sends a 404 Not Found response.
func respondNotFound(c *gin.Context, resource string) {
	c.JSON(http.StatusNotFound, ErrorResponse{Error: resource + " not found"})
}

// respondInternalError logs the error and sends a 500 Internal Server Error response.
// The actual error is logged but not exposed to the client.
func respondInternalError(c *gin.Context, err error, context string) {
	log.Printf("Internal error (%s): %v", context, err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}

// respondRecoveryError maps a recovery or resync error onto a status code and
// a message the user can act on. details is attached as-is when not nil.
func respondRecoveryError(c *gin.Context, err error, details any) {
	status := statusForError(err)
	message := err.Error()
	if status >= http.StatusInternalServerError || status == http.StatusFailedDependency {
		log.Printf("Recovery request failed: %v", err)
		message = recovery.UserMessage(err)
	}
	c.JSON(status, ErrorResponse{
		Error:   message,
		Code:    string(recovery.Classify(err)),
		Details: details,
	})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, recovery.ErrOrganizationRequired),
		errors.Is(err, recovery.ErrUnsupportedKind),
		errors.Is(err, chunked.ErrChunkOutOfRange),
		errors.Is(err, chunked.ErrNotChunkedJob):
		return http.StatusBadRequest
	case errors.Is(err, jobs.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, chunked.ErrChunkOutOfOrder),
		errors.Is(err, chunked.ErrChunkInProgress),
		errors.Is(err, jobs.ErrVersionConflict),
		errors.Is(err, jobs.ErrInvalidTransition):
		return http.StatusConflict
	}

	switch recovery.Classify(err) {
	case recovery.ClassCredential:
		return http.StatusFailedDependency
	case recovery.ClassTransient:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
