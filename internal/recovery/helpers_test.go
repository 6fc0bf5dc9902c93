package recovery

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/webinarsync/internal/database"
	"github.com/mrlokans/webinarsync/internal/database/jobs"
	"github.com/mrlokans/webinarsync/internal/entities"
	"github.com/mrlokans/webinarsync/internal/pagination"
)

func setupTestDB(t *testing.T) (*database.Database, *jobs.Repository) {
	t.Helper()
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "recovery.db"), database.WithLogLevel(logger.Silent))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, jobs.NewRepository(db.DB)
}

func seedWebinar(t *testing.T, db *database.Database, org, externalID string, registrants int) *entities.Webinar {
	t.Helper()
	w := &entities.Webinar{
		OrganizationID:  org,
		ExternalID:      externalID,
		Title:           "Webinar " + externalID,
		StartTime:       time.Now().Add(-24 * time.Hour),
		RegistrantCount: registrants,
	}
	require.NoError(t, db.SaveWebinar(context.Background(), w))
	return w
}

func fastWalker(pageSize, maxPages int) *pagination.Walker {
	return pagination.New(pageSize, maxPages, time.Nanosecond)
}

type fakeCreds struct {
	err   error
	calls int
}

func (f *fakeCreds) Verify(ctx context.Context, organizationID string) error {
	f.calls++
	return f.err
}

// scriptedRecoverer returns canned outcomes per external id and records call order.
type scriptedRecoverer struct {
	mu     sync.Mutex
	calls  []string
	errs   map[string]error
	panics map[string]bool
	found  int
}

func (s *scriptedRecoverer) Recover(ctx context.Context, organizationID string, target Target) (Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, target.ExternalID)
	err := s.errs[target.ExternalID]
	shouldPanic := s.panics[target.ExternalID]
	s.mu.Unlock()

	if shouldPanic {
		panic(fmt.Sprintf("boom in %s", target.ExternalID))
	}
	if err != nil {
		return Result{}, err
	}
	return Result{
		WebinarID:  target.WebinarID,
		ExternalID: target.ExternalID,
		Title:      target.Title,
		Found:      s.found,
		Stored:     s.found,
		Success:    true,
	}, nil
}

func (s *scriptedRecoverer) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}
