package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/webinarsync/internal/config"
	"github.com/mrlokans/webinarsync/internal/database"
	http_controllers "github.com/mrlokans/webinarsync/internal/http"
	"github.com/mrlokans/webinarsync/internal/scheduler"
	"github.com/mrlokans/webinarsync/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	if !cfg.HasZoomCredentials() {
		log.Printf("WARNING: ZOOM_ORGANIZATION_ID, ZOOM_ACCOUNT_ID, ZOOM_CLIENT_ID or ZOOM_CLIENT_SECRET is not set. Only connections already stored in the database can be recovered.")
	}

	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		fmt.Printf("Starting server at %s:%d\n", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// kill (no param) sends SIGTERM, kill -2 is SIGINT
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop background work before the server so running recoveries checkpoint first
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting webinarsync v%s", version)

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	if err := Bootstrap(context.Background(), cfg, db); err != nil {
		log.Fatalf("Failed to store platform connection: %v", err)
	}

	svc := NewServices(cfg, db)
	sweeper := svc.Orchestrator.Sweeper()

	routerCfg := http_controllers.RouterConfig{
		Database: db,
		Version:  version,
		Recovery: svc.Orchestrator,
		Resync:   svc.Chunks,
		Webinars: svc.Discoverer,
		Jobs:     svc.Jobs,
		Sweeper:  sweeper,
		Watcher:  svc.Watcher,
	}

	// Initialize task queue if enabled
	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	var sched *scheduler.Scheduler
	if cfg.Tasks.Enabled {
		taskCfg := tasks.Config{
			Workers:         cfg.Tasks.Workers,
			ReleaseAfter:    cfg.Tasks.ReleaseAfter,
			CleanupInterval: cfg.Tasks.CleanupInterval,
		}

		taskClient, err = tasks.NewClient(cfg.Database.Path, taskCfg)
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()

		taskClient.Register(
			tasks.NewRecoveryRunQueue(svc.Orchestrator),
			tasks.NewMassResyncQueue(svc.Chunks, svc.Driver),
			tasks.NewSweepStuckJobsQueue(sweeper),
		)

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)

		sched = scheduler.NewScheduler(scheduler.Config{
			SweepSchedule:       cfg.Sweep.Schedule,
			ResyncSchedule:      cfg.ScheduledResync.Schedule,
			ResyncOrganizations: cfg.ScheduledResync.Organizations,
		}, taskClient, svc.Chunks, svc.Jobs)
		if err := sched.Start(taskCtx); err != nil {
			log.Printf("WARNING: scheduler not started: %v", err)
			sched = nil
		}

		routerCfg.TaskQueue = taskClient
		routerCfg.TaskStatus = taskClient
	} else {
		log.Printf("WARNING: task queue is disabled. Background recovery and scheduled sweeps are unavailable.")
	}

	if sched != nil {
		routerCfg.HealthChecks = map[string]http_controllers.CheckFunc{
			"scheduler": func(context.Context) error {
				if !sched.IsRunning() {
					return errors.New("not running")
				}
				return nil
			},
		}
	}

	router := http_controllers.NewRouter(routerCfg)

	onShutdown := func(ctx context.Context) {
		if sched != nil {
			sched.Stop()
		}
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
	}

	Serve(router, cfg, onShutdown)
}
