package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Zoom
		Recovery
		Chunked
		Sweep
		ScheduledResync
		Tasks
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path string
	}
	// Zoom configures the upstream webinar platform. When OrganizationID and
	// the account credentials are set, the connection is stored at startup.
	Zoom struct {
		BaseURL        string
		TokenURL       string
		RequestTimeout time.Duration
		OrganizationID string
		AccountID      string
		ClientID       string
		ClientSecret   string
	}
	Recovery struct {
		AttendeeBatchSize     int
		RegistrationBatchSize int
		InterBatchDelay       time.Duration
		EntityTimeout         time.Duration
		PageSize              int
		MaxPages              int
		PageDelay             time.Duration
	}
	Chunked struct {
		ChunkSize   int
		MinInterval time.Duration
	}
	Sweep struct {
		StuckThreshold time.Duration
		Schedule       string // Cron format: "*/5 * * * *" = every 5 minutes
	}
	ScheduledResync struct {
		Schedule      string // Empty disables scheduled mass resyncs
		Organizations []string
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
)

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8188)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 5)
	v.SetDefault("database_path", DefaultDatabasePath)

	// Upstream platform defaults
	v.SetDefault("zoom_base_url", "https://api.zoom.us/v2")
	v.SetDefault("zoom_token_url", "https://zoom.us/oauth/token")
	v.SetDefault("zoom_request_timeout", "30s")

	// Recovery defaults
	v.SetDefault("recovery_attendee_batch_size", 1)
	v.SetDefault("recovery_registration_batch_size", 3)
	v.SetDefault("recovery_inter_batch_delay", "1500ms")
	v.SetDefault("recovery_entity_timeout", "5m")
	v.SetDefault("recovery_page_size", 300)
	v.SetDefault("recovery_max_pages", 10)
	v.SetDefault("recovery_page_delay", "100ms")

	// Chunked resync defaults
	v.SetDefault("chunked_chunk_size", 5)
	v.SetDefault("chunked_min_interval", "2s")

	// Stuck job sweep defaults
	v.SetDefault("sweep_stuck_threshold", "30m")
	v.SetDefault("sweep_schedule", "*/5 * * * *")

	v.SetDefault("scheduled_resync_schedule", "")
	v.SetDefault("scheduled_resync_organizations", "")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_release_after", "3h")
	v.SetDefault("task_cleanup_interval", "1h")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Zoom: Zoom{
			BaseURL:        v.GetString("ZOOM_BASE_URL"),
			TokenURL:       v.GetString("ZOOM_TOKEN_URL"),
			RequestTimeout: v.GetDuration("ZOOM_REQUEST_TIMEOUT"),
			OrganizationID: v.GetString("ZOOM_ORGANIZATION_ID"),
			AccountID:      v.GetString("ZOOM_ACCOUNT_ID"),
			ClientID:       v.GetString("ZOOM_CLIENT_ID"),
			ClientSecret:   v.GetString("ZOOM_CLIENT_SECRET"),
		},
		Recovery: Recovery{
			AttendeeBatchSize:     v.GetInt("RECOVERY_ATTENDEE_BATCH_SIZE"),
			RegistrationBatchSize: v.GetInt("RECOVERY_REGISTRATION_BATCH_SIZE"),
			InterBatchDelay:       v.GetDuration("RECOVERY_INTER_BATCH_DELAY"),
			EntityTimeout:         v.GetDuration("RECOVERY_ENTITY_TIMEOUT"),
			PageSize:              v.GetInt("RECOVERY_PAGE_SIZE"),
			MaxPages:              v.GetInt("RECOVERY_MAX_PAGES"),
			PageDelay:             v.GetDuration("RECOVERY_PAGE_DELAY"),
		},
		Chunked: Chunked{
			ChunkSize:   v.GetInt("CHUNKED_CHUNK_SIZE"),
			MinInterval: v.GetDuration("CHUNKED_MIN_INTERVAL"),
		},
		Sweep: Sweep{
			StuckThreshold: v.GetDuration("SWEEP_STUCK_THRESHOLD"),
			Schedule:       v.GetString("SWEEP_SCHEDULE"),
		},
		ScheduledResync: ScheduledResync{
			Schedule:      v.GetString("SCHEDULED_RESYNC_SCHEDULE"),
			Organizations: splitList(v.GetString("SCHEDULED_RESYNC_ORGANIZATIONS")),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
	}
}

// HasZoomCredentials reports whether bootstrap credentials were supplied.
func (c *Config) HasZoomCredentials() bool {
	return c.Zoom.OrganizationID != "" && c.Zoom.AccountID != "" && c.Zoom.ClientID != "" && c.Zoom.ClientSecret != ""
}
