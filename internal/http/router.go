package http

import (
	"github.com/gin-gonic/gin"
)

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	health := NewHealthController(cfg.Database, cfg.Version)
	for name, check := range cfg.HealthChecks {
		health.AddCheck(name, check)
	}

	// Health endpoints
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	api := router.Group("/api")

	// Recovery endpoints
	if cfg.Recovery != nil {
		recoveryController := NewRecoveryController(cfg.Recovery, cfg.Resync, cfg.TaskQueue)
		api.POST("/recovery/attendees", recoveryController.RecoverAttendees)
		api.POST("/recovery/registrations", recoveryController.RecoverRegistrations)
		api.POST("/recovery/background", recoveryController.RunInBackground)
	}

	// Webinar discovery
	if cfg.Webinars != nil {
		webinarsController := NewWebinarsController(cfg.Webinars)
		api.POST("/webinars/discover", webinarsController.Discover)
	}

	// Chunked resync endpoints
	if cfg.Resync != nil {
		resyncController := NewResyncController(cfg.Resync)
		api.POST("/resync/chunk", resyncController.ProcessChunk)
		api.GET("/resync/:id", resyncController.Progress)
	}

	// Job status endpoints
	if cfg.Jobs != nil {
		jobsController := NewJobsController(cfg.Jobs, cfg.Sweeper, cfg.Watcher)
		api.GET("/jobs", jobsController.ListJobs)
		api.GET("/jobs/:id", jobsController.GetJob)
		api.GET("/jobs/:id/watch", jobsController.WatchJob)
		if cfg.Sweeper != nil {
			api.POST("/jobs/sweep", jobsController.Sweep)
		}
	}

	// Task status endpoint
	if cfg.TaskStatus != nil {
		tasksController := NewTasksController(cfg.TaskStatus)
		api.GET("/tasks/:id", tasksController.GetTaskStatus)
	}

	return router
}
