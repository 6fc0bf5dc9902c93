package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/mrlokans/webinarsync/internal/chunked"
	"github.com/mrlokans/webinarsync/internal/config"
	"github.com/mrlokans/webinarsync/internal/database"
	"github.com/mrlokans/webinarsync/internal/database/jobs"
	"github.com/mrlokans/webinarsync/internal/entities"
	"github.com/mrlokans/webinarsync/internal/jobwatch"
	"github.com/mrlokans/webinarsync/internal/pagination"
	"github.com/mrlokans/webinarsync/internal/recovery"
	"github.com/mrlokans/webinarsync/internal/zoom"
)

// Services holds the recovery components shared by the server and the CLI.
type Services struct {
	DB           *database.Database
	Jobs         *jobs.Repository
	Zoom         *zoom.Client
	Discoverer   *recovery.Discoverer
	Orchestrator *recovery.Orchestrator
	Chunks       *chunked.Processor
	Driver       *chunked.Driver
	Watcher      *jobwatch.Watcher
}

// NewServices wires the upstream client, the job store and the recovery
// components from configuration.
func NewServices(cfg *config.Config, db *database.Database) *Services {
	httpClient := &http.Client{Timeout: cfg.Zoom.RequestTimeout}
	tokens := zoom.NewTokenSource(httpClient, cfg.Zoom.TokenURL, db)
	client := zoom.NewClient(tokens, zoom.WithBaseURL(cfg.Zoom.BaseURL), zoom.WithHTTPClient(httpClient))

	walker := pagination.New(cfg.Recovery.PageSize, cfg.Recovery.MaxPages, cfg.Recovery.PageDelay)
	repo := jobs.NewRepository(db.DB)

	orchestrator := recovery.NewOrchestrator(repo, db, client, recovery.Config{
		AttendeeBatchSize:     cfg.Recovery.AttendeeBatchSize,
		RegistrationBatchSize: cfg.Recovery.RegistrationBatchSize,
		InterBatchDelay:       cfg.Recovery.InterBatchDelay,
		EntityTimeout:         cfg.Recovery.EntityTimeout,
		StuckThreshold:        cfg.Sweep.StuckThreshold,
	})
	participants := recovery.NewParticipantRecoverer(client, db, walker)
	orchestrator.Register(entities.JobKindAttendeeRecovery, participants)
	orchestrator.Register(entities.JobKindRegistrationRecovery, recovery.NewRegistrantRecoverer(client, db, walker))

	processor := chunked.NewProcessor(repo, db, client, participants, cfg.Chunked.ChunkSize)

	return &Services{
		DB:           db,
		Jobs:         repo,
		Zoom:         client,
		Discoverer:   recovery.NewDiscoverer(client, db, walker),
		Orchestrator: orchestrator,
		Chunks:       processor,
		Driver:       chunked.NewDriver(processor, cfg.Chunked.MinInterval),
		Watcher:      jobwatch.New(repo, jobwatch.DefaultInterval),
	}
}

// Bootstrap stores the upstream connection given in the environment, if any.
func Bootstrap(ctx context.Context, cfg *config.Config, db *database.Database) error {
	if !cfg.HasZoomCredentials() {
		return nil
	}
	conn := &entities.Connection{
		OrganizationID: cfg.Zoom.OrganizationID,
		AccountID:      cfg.Zoom.AccountID,
		ClientID:       cfg.Zoom.ClientID,
		ClientSecret:   cfg.Zoom.ClientSecret,
	}
	if err := db.SaveConnection(ctx, conn); err != nil {
		return fmt.Errorf("save connection for %s: %w", cfg.Zoom.OrganizationID, err)
	}
	log.Printf("Stored platform connection for organization %s", cfg.Zoom.OrganizationID)
	return nil
}
