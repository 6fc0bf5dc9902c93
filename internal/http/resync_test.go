package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/webinarsync/internal/chunked"
	"github.com/mrlokans/webinarsync/internal/database/jobs"
	"github.com/mrlokans/webinarsync/internal/recovery"
)

type fakeChunks struct {
	start    *chunked.Response
	chunk    *chunked.Response
	err      error
	requests []chunked.Request
	ctxErr   error
}

func (f *fakeChunks) Start(_ context.Context, organizationID, _ string) (*chunked.Response, error) {
	if organizationID == "" {
		return nil, recovery.ErrOrganizationRequired
	}
	return f.start, f.err
}

func (f *fakeChunks) ProcessChunk(ctx context.Context, req chunked.Request) (*chunked.Response, error) {
	f.requests = append(f.requests, req)
	f.ctxErr = ctx.Err()
	return f.chunk, f.err
}

func (f *fakeChunks) Progress(_ context.Context, jobID string) (*chunked.Response, error) {
	if jobID != "resync-1" {
		return nil, jobs.ErrJobNotFound
	}
	return f.chunk, nil
}

func resyncRouter(processor ChunkProcessor) *gin.Engine {
	controller := NewResyncController(processor)
	router := gin.New()
	router.POST("/api/resync/chunk", controller.ProcessChunk)
	router.GET("/api/resync/:id", controller.Progress)
	return router
}

func TestResyncController_ProcessChunk(t *testing.T) {
	t.Run("returns chunk progress", func(t *testing.T) {
		chunks := &fakeChunks{chunk: &chunked.Response{
			Success: true,
			JobID:   "resync-1",
			Progress: chunked.ChunkProgress{
				CurrentChunk:       1,
				TotalChunks:        2,
				ProcessedWebinars:  5,
				TotalWebinars:      8,
				ProgressPercentage: 63,
			},
			ChunkResults: []recovery.Result{{WebinarID: 1, Success: true}},
		}}
		router := resyncRouter(chunks)

		w := post(router, "/api/resync/chunk", `{"organization_id": "org-1", "job_id": "resync-1", "chunk_index": 0}`)

		assert.Equal(t, http.StatusOK, w.Code)
		require.Len(t, chunks.requests, 1)
		assert.Equal(t, chunked.Request{OrganizationID: "org-1", JobID: "resync-1", ChunkIndex: 0}, chunks.requests[0])

		var body chunked.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.True(t, body.Success)
		assert.Equal(t, 63, body.Progress.ProgressPercentage)
		assert.Len(t, body.ChunkResults, 1)
	})

	t.Run("out of order chunk is a conflict", func(t *testing.T) {
		chunks := &fakeChunks{err: fmt.Errorf("%w: got 3, expected 1", chunked.ErrChunkOutOfOrder)}
		router := resyncRouter(chunks)

		w := post(router, "/api/resync/chunk", `{"organization_id": "org-1", "job_id": "resync-1", "chunk_index": 3}`)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "out of order")
	})

	t.Run("failed chunk reports the job state", func(t *testing.T) {
		chunks := &fakeChunks{
			chunk: &chunked.Response{Success: false, JobID: "resync-1", Error: "reconnect your account"},
			err:   fmt.Errorf("%w: token rejected", recovery.ErrCredentials),
		}
		router := resyncRouter(chunks)

		w := post(router, "/api/resync/chunk", `{"organization_id": "org-1", "job_id": "resync-1", "chunk_index": 1}`)

		assert.Equal(t, http.StatusFailedDependency, w.Code)
		var body chunked.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.False(t, body.Success)
		assert.Equal(t, "resync-1", body.JobID)
	})
}

func TestResyncController_ChunkSurvivesClientDisconnect(t *testing.T) {
	chunks := &fakeChunks{chunk: &chunked.Response{Success: true, JobID: "resync-1"}}
	router := resyncRouter(chunks)

	postCancelled(router, "/api/resync/chunk", `{"organization_id":"org-1","job_id":"resync-1","chunk_index":1}`)

	require.Len(t, chunks.requests, 1)
	assert.NoError(t, chunks.ctxErr)
}

func TestResyncController_Progress(t *testing.T) {
	chunks := &fakeChunks{chunk: &chunked.Response{Success: true, JobID: "resync-1", Completed: true}}
	router := resyncRouter(chunks)

	t.Run("returns progress of a known job", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/resync/resync-1", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"completed":true`)
	})

	t.Run("unknown job is not found", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/resync/nope", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
