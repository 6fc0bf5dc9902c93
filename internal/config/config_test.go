package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, int32(8188), cfg.HTTP.Port)
	assert.Equal(t, DefaultDatabasePath, cfg.Database.Path)
	assert.Equal(t, 1, cfg.Recovery.AttendeeBatchSize)
	assert.Equal(t, 3, cfg.Recovery.RegistrationBatchSize)
	assert.Equal(t, 1500*time.Millisecond, cfg.Recovery.InterBatchDelay)
	assert.Equal(t, 300, cfg.Recovery.PageSize)
	assert.Equal(t, 10, cfg.Recovery.MaxPages)
	assert.Equal(t, 100*time.Millisecond, cfg.Recovery.PageDelay)
	assert.Equal(t, 2*time.Second, cfg.Chunked.MinInterval)
	assert.Equal(t, 30*time.Minute, cfg.Sweep.StuckThreshold)
	assert.Equal(t, "*/5 * * * *", cfg.Sweep.Schedule)
	assert.Empty(t, cfg.ScheduledResync.Schedule)
	assert.True(t, cfg.Tasks.Enabled)
	assert.False(t, cfg.HasZoomCredentials())
}

func TestNewConfig_Environment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("RECOVERY_INTER_BATCH_DELAY", "3s")
	t.Setenv("SCHEDULED_RESYNC_ORGANIZATIONS", "org-1, org-2,,")
	t.Setenv("ZOOM_ORGANIZATION_ID", "org-1")
	t.Setenv("ZOOM_ACCOUNT_ID", "acc")
	t.Setenv("ZOOM_CLIENT_ID", "id")
	t.Setenv("ZOOM_CLIENT_SECRET", "secret")

	cfg := NewConfig()

	assert.Equal(t, int32(9000), cfg.HTTP.Port)
	assert.Equal(t, 3*time.Second, cfg.Recovery.InterBatchDelay)
	assert.Equal(t, []string{"org-1", "org-2"}, cfg.ScheduledResync.Organizations)
	assert.True(t, cfg.HasZoomCredentials())
}
