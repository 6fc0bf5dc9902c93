package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"gorm.io/gorm/logger"

	"github.com/mrlokans/webinarsync/internal/config"
	"github.com/mrlokans/webinarsync/internal/database"
	"github.com/mrlokans/webinarsync/internal/entrypoint"
)

// openServices loads configuration from the environment, overrides the
// database path when one is given and wires the recovery services.
func openServices(dbPath string, verbose bool) (*entrypoint.Services, func(), error) {
	cfg := config.NewConfig()
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}

	level := logger.Warn
	if verbose {
		level = logger.Info
	}
	db, err := database.NewDatabase(cfg.Database.Path, database.WithLogLevel(level))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := entrypoint.Bootstrap(context.Background(), cfg, db); err != nil {
		db.Close()
		return nil, nil, err
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}
	return entrypoint.NewServices(cfg, db), cleanup, nil
}

// signalContext is cancelled on SIGINT or SIGTERM, so an interrupted run
// marks its job failed instead of leaving it running.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// parseIDs parses a comma separated list of webinar ids.
func parseIDs(raw string) ([]uint, error) {
	var ids []uint
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid webinar id %q", part)
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}
