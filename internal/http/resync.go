package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/webinarsync/internal/chunked"
)

// ResyncController exposes the chunked mass resync. Clients call ProcessChunk
// repeatedly, passing the job id returned by the first call, until the
// response reports completion.
type ResyncController struct {
	processor ChunkProcessor
}

func NewResyncController(processor ChunkProcessor) *ResyncController {
	return &ResyncController{processor: processor}
}

// ProcessChunk handles POST /api/resync/chunk
func (rc *ResyncController) ProcessChunk(c *gin.Context) {
	var req chunked.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	// A chunk runs to its checkpoint even if the client goes away.
	resp, err := rc.processor.ProcessChunk(context.WithoutCancel(c.Request.Context()), req)
	if err != nil {
		if resp != nil {
			// The job failed while running the chunk; report what was done.
			c.JSON(statusForError(err), resp)
			return
		}
		respondRecoveryError(c, err, nil)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Progress handles GET /api/resync/:id
func (rc *ResyncController) Progress(c *gin.Context) {
	resp, err := rc.processor.Progress(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondRecoveryError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, resp)
}
