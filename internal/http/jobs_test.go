package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/webinarsync/internal/database/jobs"
	"github.com/mrlokans/webinarsync/internal/entities"
	"github.com/mrlokans/webinarsync/internal/jobwatch"
	"github.com/mrlokans/webinarsync/internal/recovery"
)

func setupJobsController(t *testing.T) (*jobs.Repository, *gin.Engine) {
	t.Helper()
	db := setupTestDB(t)
	repo := jobs.NewRepository(db.DB)
	controller := NewJobsController(repo, recovery.NewSweeper(repo, 30*time.Minute), jobwatch.New(repo, jobwatch.DefaultInterval))

	router := gin.New()
	router.GET("/api/jobs", controller.ListJobs)
	router.GET("/api/jobs/:id", controller.GetJob)
	router.GET("/api/jobs/:id/watch", controller.WatchJob)
	router.POST("/api/jobs/sweep", controller.Sweep)
	return repo, router
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestJobsController_GetJob(t *testing.T) {
	t.Run("returns chunked job with derived progress", func(t *testing.T) {
		repo, router := setupJobsController(t)
		job := jobs.NewJob("org-1", "u-1", entities.JobKindMassResync)
		job.Metadata.Chunk.TotalChunks = 4
		job.Metadata.Chunk.CurrentChunk = 1
		job.Metadata.Chunk.TotalWebinars = 20
		job.Metadata.Chunk.ProcessedWebinars = 5
		job.Metadata.Chunk.StageMessage = "Processed chunk 1 of 4"
		job, err := repo.Create(context.Background(), job)
		require.NoError(t, err)

		w := get(router, "/api/jobs/"+job.ID)

		assert.Equal(t, http.StatusOK, w.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, job.ID, body["id"])
		assert.Equal(t, "pending", body["status"])
		assert.Equal(t, "Processed chunk 1 of 4", body["stage_message"])

		progress, ok := body["chunk_progress"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, float64(25), progress["progress_percentage"])
	})

	t.Run("recovery job has no chunk progress", func(t *testing.T) {
		repo, router := setupJobsController(t)
		job, err := repo.Create(context.Background(), jobs.NewJob("org-1", "u-1", entities.JobKindAttendeeRecovery))
		require.NoError(t, err)

		w := get(router, "/api/jobs/"+job.ID)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotContains(t, w.Body.String(), "chunk_progress")
	})

	t.Run("unknown job is not found", func(t *testing.T) {
		_, router := setupJobsController(t)

		w := get(router, "/api/jobs/does-not-exist")

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestJobsController_ListJobs(t *testing.T) {
	repo, router := setupJobsController(t)
	ctx := context.Background()
	for range 3 {
		_, err := repo.Create(ctx, jobs.NewJob("org-1", "u-1", entities.JobKindAttendeeRecovery))
		require.NoError(t, err)
	}
	_, err := repo.Create(ctx, jobs.NewJob("org-2", "u-2", entities.JobKindAttendeeRecovery))
	require.NoError(t, err)

	t.Run("lists jobs of one organization", func(t *testing.T) {
		w := get(router, "/api/jobs?organization_id=org-1")

		assert.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Jobs []map[string]any `json:"jobs"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Len(t, body.Jobs, 3)
	})

	t.Run("honours limit", func(t *testing.T) {
		w := get(router, "/api/jobs?organization_id=org-1&limit=2")

		var body struct {
			Jobs []map[string]any `json:"jobs"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Len(t, body.Jobs, 2)
	})

	t.Run("requires organization", func(t *testing.T) {
		w := get(router, "/api/jobs")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects invalid limit", func(t *testing.T) {
		w := get(router, "/api/jobs?organization_id=org-1&limit=-1")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

// watch uses a recorder that supports CloseNotify, which gin's Stream needs.
func watch(router *gin.Engine, path string) *gin.TestResponseRecorder {
	w := gin.CreateTestResponseRecorder()
	req, _ := http.NewRequest("GET", path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestJobsController_WatchJob(t *testing.T) {
	t.Run("streams a finished job and closes", func(t *testing.T) {
		repo, router := setupJobsController(t)
		ctx := context.Background()
		job, err := repo.Create(ctx, jobs.NewJob("org-1", "u-1", entities.JobKindAttendeeRecovery))
		require.NoError(t, err)
		require.NoError(t, repo.Transition(ctx, job, entities.JobStatusRunning))
		require.NoError(t, repo.Transition(ctx, job, entities.JobStatusCompleted))

		w := watch(router, "/api/jobs/"+job.ID+"/watch")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "event:job")
		assert.Contains(t, w.Body.String(), `"status":"completed"`)
	})

	t.Run("streams an error for an unknown job", func(t *testing.T) {
		_, router := setupJobsController(t)

		w := watch(router, "/api/jobs/missing/watch")

		assert.Contains(t, w.Body.String(), "event:error")
		assert.Contains(t, w.Body.String(), "not found")
	})
}

func TestJobsController_Sweep(t *testing.T) {
	t.Run("resets jobs running past the threshold", func(t *testing.T) {
		repo, router := setupJobsController(t)
		ctx := context.Background()

		stuck, err := repo.Create(ctx, jobs.NewJob("org-1", "u-1", entities.JobKindMassResync))
		require.NoError(t, err)
		require.NoError(t, repo.Transition(ctx, stuck, entities.JobStatusRunning))
		old := time.Now().Add(-time.Hour)
		stuck.StartedAt = &old
		require.NoError(t, repo.Update(ctx, stuck))

		fresh, err := repo.Create(ctx, jobs.NewJob("org-1", "u-1", entities.JobKindAttendeeRecovery))
		require.NoError(t, err)
		require.NoError(t, repo.Transition(ctx, fresh, entities.JobStatusRunning))

		w := post(router, "/api/jobs/sweep", `{"organization_id": "org-1"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		var report recovery.SweepReport
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
		assert.Equal(t, 1, report.Found)
		assert.Equal(t, []string{stuck.ID}, report.Reset)

		reloaded, err := repo.Get(ctx, stuck.ID)
		require.NoError(t, err)
		assert.Equal(t, entities.JobStatusPending, reloaded.Status)

		untouched, err := repo.Get(ctx, fresh.ID)
		require.NoError(t, err)
		assert.Equal(t, entities.JobStatusRunning, untouched.Status)
	})

	t.Run("accepts an empty body", func(t *testing.T) {
		_, router := setupJobsController(t)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/jobs/sweep", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, strings.Contains(w.Body.String(), `"reset":[]`))
	})
}
