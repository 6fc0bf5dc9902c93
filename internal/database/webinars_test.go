package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/webinarsync/internal/entities"
)

func setupWebinarsTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(filepath.Join(t.TempDir(), "test.db"), WithLogLevel(logger.Silent))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func saveWebinar(t *testing.T, db *Database, org, externalID string, start time.Time) *entities.Webinar {
	t.Helper()
	w := &entities.Webinar{OrganizationID: org, ExternalID: externalID, Title: "Webinar " + externalID, StartTime: start}
	require.NoError(t, db.SaveWebinar(context.Background(), w))
	return w
}

func participants(keys ...string) []entities.Participant {
	out := make([]entities.Participant, 0, len(keys))
	for _, k := range keys {
		out = append(out, entities.Participant{ExternalKey: k, Name: "Name " + k, JoinTime: time.Now()})
	}
	return out
}

func TestUpsertParticipants(t *testing.T) {
	ctx := context.Background()

	t.Run("storing the same records twice leaves counts unchanged", func(t *testing.T) {
		db := setupWebinarsTestDB(t)
		w := saveWebinar(t, db, "org-1", "100", time.Now())

		n, err := db.UpsertParticipants(ctx, w.ID, participants("a", "b", "c"))
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		_, err = db.UpsertParticipants(ctx, w.ID, participants("a", "b", "c"))
		require.NoError(t, err)

		count, err := db.CountParticipants(ctx, w.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("updates existing rows in place", func(t *testing.T) {
		db := setupWebinarsTestDB(t)
		w := saveWebinar(t, db, "org-1", "100", time.Now())

		_, err := db.UpsertParticipants(ctx, w.ID, participants("a"))
		require.NoError(t, err)
		renamed := participants("a")
		renamed[0].Name = "Renamed"
		_, err = db.UpsertParticipants(ctx, w.ID, renamed)
		require.NoError(t, err)

		var stored entities.Participant
		require.NoError(t, db.DB.Where("webinar_id = ? AND external_key = ?", w.ID, "a").First(&stored).Error)
		assert.Equal(t, "Renamed", stored.Name)
	})

	t.Run("same key under another webinar is a separate row", func(t *testing.T) {
		db := setupWebinarsTestDB(t)
		w1 := saveWebinar(t, db, "org-1", "100", time.Now())
		w2 := saveWebinar(t, db, "org-1", "200", time.Now())

		_, err := db.UpsertParticipants(ctx, w1.ID, participants("a"))
		require.NoError(t, err)
		_, err = db.UpsertParticipants(ctx, w2.ID, participants("a"))
		require.NoError(t, err)

		c1, _ := db.CountParticipants(ctx, w1.ID)
		c2, _ := db.CountParticipants(ctx, w2.ID)
		assert.Equal(t, 1, c1)
		assert.Equal(t, 1, c2)
	})

	t.Run("marks the webinar as synced", func(t *testing.T) {
		db := setupWebinarsTestDB(t)
		w := saveWebinar(t, db, "org-1", "100", time.Now())

		_, err := db.UpsertParticipants(ctx, w.ID, participants("a"))
		require.NoError(t, err)

		reloaded, err := db.GetWebinar(ctx, w.ID)
		require.NoError(t, err)
		assert.NotNil(t, reloaded.LastSyncedAt)
	})

	t.Run("empty input writes nothing", func(t *testing.T) {
		db := setupWebinarsTestDB(t)

		n, err := db.UpsertParticipants(ctx, 1, nil)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestUpsertRegistrants(t *testing.T) {
	ctx := context.Background()
	db := setupWebinarsTestDB(t)
	w := saveWebinar(t, db, "org-1", "100", time.Now())

	regs := []entities.Registrant{
		{ExternalKey: "r1", Email: "one@example.com", Status: "approved"},
		{ExternalKey: "r2", Email: "two@example.com", Status: "approved"},
	}
	_, err := db.UpsertRegistrants(ctx, w.ID, regs)
	require.NoError(t, err)
	_, err = db.UpsertRegistrants(ctx, w.ID, []entities.Registrant{
		{ExternalKey: "r1", Email: "one@example.com", Status: "approved"},
		{ExternalKey: "r2", Email: "two@example.com", Status: "approved"},
	})
	require.NoError(t, err)

	count, err := db.CountRegistrants(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	stored, err := db.GetWebinar(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.RegistrantCount)
}

func TestUpsertRegistrants_KeepsHigherReportedCount(t *testing.T) {
	ctx := context.Background()
	db := setupWebinarsTestDB(t)
	w := &entities.Webinar{OrganizationID: "org-1", ExternalID: "100", Title: "Launch", RegistrantCount: 50}
	require.NoError(t, db.SaveWebinar(ctx, w))

	_, err := db.UpsertRegistrants(ctx, w.ID, []entities.Registrant{
		{ExternalKey: "r1", Email: "one@example.com", Status: "approved"},
	})
	require.NoError(t, err)

	stored, err := db.GetWebinar(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, stored.RegistrantCount)
}

func TestListWebinarsForRecovery(t *testing.T) {
	ctx := context.Background()
	db := setupWebinarsTestDB(t)
	now := time.Now()

	older := saveWebinar(t, db, "org-1", "100", now.Add(-48*time.Hour))
	newer := saveWebinar(t, db, "org-1", "200", now.Add(-24*time.Hour))
	saveWebinar(t, db, "org-2", "300", now)
	require.NoError(t, db.DB.Create(&entities.Webinar{OrganizationID: "org-1", Title: "No upstream id"}).Error)

	_, err := db.UpsertParticipants(ctx, older.ID, participants("a", "b"))
	require.NoError(t, err)
	_, err = db.UpsertRegistrants(ctx, newer.ID, []entities.Registrant{{ExternalKey: "r1", Email: "r@example.com"}})
	require.NoError(t, err)

	t.Run("lists recoverable webinars with stored counts", func(t *testing.T) {
		stats, err := db.ListWebinarsForRecovery(ctx, "org-1", nil)
		require.NoError(t, err)
		require.Len(t, stats, 2)

		// Most recent first
		assert.Equal(t, newer.ID, stats[0].ID)
		assert.Equal(t, 0, stats[0].StoredParticipants)
		assert.Equal(t, 1, stats[0].StoredRegistrants)
		assert.Equal(t, older.ID, stats[1].ID)
		assert.Equal(t, 2, stats[1].StoredParticipants)
	})

	t.Run("restricts to the requested ids", func(t *testing.T) {
		stats, err := db.ListWebinarsForRecovery(ctx, "org-1", []uint{older.ID})
		require.NoError(t, err)
		require.Len(t, stats, 1)
		assert.Equal(t, older.ID, stats[0].ID)
	})

	t.Run("ignores ids of other organizations", func(t *testing.T) {
		stats, err := db.ListWebinarsForRecovery(ctx, "org-2", []uint{older.ID})
		require.NoError(t, err)
		assert.Empty(t, stats)
	})
}

func TestConnections(t *testing.T) {
	ctx := context.Background()
	db := setupWebinarsTestDB(t)

	_, err := db.GetConnection(ctx, "org-1")
	assert.ErrorIs(t, err, ErrConnectionNotFound)

	require.NoError(t, db.SaveConnection(ctx, &entities.Connection{
		OrganizationID: "org-1", AccountID: "acc", ClientID: "id", ClientSecret: "secret",
	}))
	at := time.Now().Truncate(time.Second)
	require.NoError(t, db.TouchConnection(ctx, "org-1", at))

	conn, err := db.GetConnection(ctx, "org-1")
	require.NoError(t, err)
	require.NotNil(t, conn.LastSyncAt)
	assert.True(t, conn.LastSyncAt.Equal(at))
}
