package http

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"
	"github.com/stretchr/testify/assert"
)

type fakeTaskStatus map[string]backlite.TaskStatus

func (f fakeTaskStatus) Status(_ context.Context, taskID string) (backlite.TaskStatus, error) {
	if taskID == "broken" {
		return backlite.TaskStatusNotFound, errors.New("tasks database is closed")
	}
	status, ok := f[taskID]
	if !ok {
		return backlite.TaskStatusNotFound, nil
	}
	return status, nil
}

func TestTasksController_GetTaskStatus(t *testing.T) {
	controller := NewTasksController(fakeTaskStatus{"t-1": backlite.TaskStatusRunning})
	router := gin.New()
	router.GET("/api/tasks/:id", controller.GetTaskStatus)

	t.Run("reports task status", func(t *testing.T) {
		w := get(router, "/api/tasks/t-1")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"id": "t-1", "status": "running"}`, w.Body.String())
	})

	t.Run("unknown task is reported as not found", func(t *testing.T) {
		w := get(router, "/api/tasks/t-2")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "not_found")
	})

	t.Run("lookup failure is an internal error", func(t *testing.T) {
		w := get(router, "/api/tasks/broken")

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
