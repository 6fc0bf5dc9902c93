package chunked

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/webinarsync/internal/database"
	"github.com/mrlokans/webinarsync/internal/database/jobs"
	"github.com/mrlokans/webinarsync/internal/entities"
	"github.com/mrlokans/webinarsync/internal/recovery"
	"github.com/mrlokans/webinarsync/internal/zoom"
)

type countingRecoverer struct {
	mu    sync.Mutex
	calls map[uint]int
	fail  map[string]error

	// When set, Recover reports on entered and waits for gate to close.
	entered chan uint
	gate    chan struct{}
}

func (c *countingRecoverer) Recover(ctx context.Context, organizationID string, target recovery.Target) (recovery.Result, error) {
	c.mu.Lock()
	c.calls[target.WebinarID]++
	err := c.fail[target.ExternalID]
	entered, gate := c.entered, c.gate
	c.mu.Unlock()
	if entered != nil {
		entered <- target.WebinarID
		<-gate
	}
	if err != nil {
		return recovery.Result{}, err
	}
	return recovery.Result{WebinarID: target.WebinarID, ExternalID: target.ExternalID, Found: 2, Stored: 2, Success: true}, nil
}

type stubCreds struct{ err error }

func (s stubCreds) Verify(ctx context.Context, organizationID string) error { return s.err }

type fixture struct {
	db        *database.Database
	repo      *jobs.Repository
	recoverer *countingRecoverer
	processor *Processor
}

func setup(t *testing.T, webinars, chunkSize int) *fixture {
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "chunked.db"), database.WithLogLevel(logger.Silent))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	for i := 0; i < webinars; i++ {
		require.NoError(t, db.SaveWebinar(context.Background(), &entities.Webinar{
			OrganizationID: "org-1",
			ExternalID:     fmt.Sprintf("w%d", i),
			Title:          fmt.Sprintf("Webinar %d", i),
			StartTime:      time.Now(),
		}))
	}

	repo := jobs.NewRepository(db.DB)
	rec := &countingRecoverer{calls: map[uint]int{}, fail: map[string]error{}}
	return &fixture{
		db:        db,
		repo:      repo,
		recoverer: rec,
		processor: NewProcessor(repo, db, stubCreds{}, rec, chunkSize),
	}
}

func TestProcessor_Start(t *testing.T) {
	f := setup(t, 7, 3)

	resp, err := f.processor.Start(context.Background(), "org-1", "user-1")
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.False(t, resp.Completed)
	assert.Equal(t, 3, resp.Progress.TotalChunks)
	assert.Equal(t, 7, resp.Progress.TotalWebinars)
	assert.Equal(t, 0, resp.Progress.ProgressPercentage)

	job, err := f.repo.Get(context.Background(), resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, entities.JobStatusRunning, job.Status)
	assert.Len(t, job.Metadata.Chunk.WebinarIDs, 7)
}

func TestProcessor_ProcessesAllChunksOnce(t *testing.T) {
	f := setup(t, 7, 3)
	ctx := context.Background()

	resp, err := f.processor.ProcessChunk(ctx, Request{OrganizationID: "org-1", UserID: "user-1"})
	require.NoError(t, err)
	assert.Len(t, resp.ChunkResults, 3)
	assert.Equal(t, 43, resp.Progress.ProgressPercentage)

	last := resp.Progress.ProgressPercentage
	for !resp.Completed {
		resp, err = f.processor.ProcessChunk(ctx, Request{
			OrganizationID: "org-1",
			JobID:          resp.JobID,
			ChunkIndex:     resp.Progress.CurrentChunk,
		})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, resp.Progress.ProgressPercentage, last)
		last = resp.Progress.ProgressPercentage
	}

	assert.Equal(t, 100, resp.Progress.ProgressPercentage)
	assert.Equal(t, 7, resp.Progress.ProcessedWebinars)
	assert.Equal(t, 7, resp.Progress.Successful)
	assert.Len(t, f.recoverer.calls, 7)
	for id, n := range f.recoverer.calls {
		assert.Equal(t, 1, n, "webinar %d", id)
	}

	job, err := f.repo.Get(ctx, resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, entities.JobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
}

func TestProcessor_RepeatedChunkIsIdempotent(t *testing.T) {
	f := setup(t, 4, 2)
	ctx := context.Background()

	first, err := f.processor.ProcessChunk(ctx, Request{OrganizationID: "org-1"})
	require.NoError(t, err)

	again, err := f.processor.ProcessChunk(ctx, Request{OrganizationID: "org-1", JobID: first.JobID, ChunkIndex: 0})
	require.NoError(t, err)

	assert.Equal(t, first.Progress, again.Progress)
	assert.Empty(t, again.ChunkResults)
	total := 0
	for _, n := range f.recoverer.calls {
		total += n
	}
	assert.Equal(t, 2, total)
}

func TestProcessor_RejectsOutOfOrderChunks(t *testing.T) {
	f := setup(t, 6, 2)
	ctx := context.Background()

	first, err := f.processor.ProcessChunk(ctx, Request{OrganizationID: "org-1"})
	require.NoError(t, err)

	_, err = f.processor.ProcessChunk(ctx, Request{OrganizationID: "org-1", JobID: first.JobID, ChunkIndex: 2})
	assert.ErrorIs(t, err, ErrChunkOutOfOrder)

	_, err = f.processor.ProcessChunk(ctx, Request{OrganizationID: "org-1", JobID: first.JobID, ChunkIndex: 9})
	assert.ErrorIs(t, err, ErrChunkOutOfRange)

	_, err = f.processor.ProcessChunk(ctx, Request{OrganizationID: "org-1", ChunkIndex: 1})
	assert.ErrorIs(t, err, ErrChunkOutOfOrder)
}

func TestProcessor_RejectsForeignJobs(t *testing.T) {
	f := setup(t, 2, 2)
	ctx := context.Background()

	first, err := f.processor.Start(ctx, "org-1", "user-1")
	require.NoError(t, err)

	_, err = f.processor.ProcessChunk(ctx, Request{OrganizationID: "org-2", JobID: first.JobID})
	assert.ErrorIs(t, err, jobs.ErrJobNotFound)

	other, err := f.repo.Create(ctx, jobs.NewJob("org-1", "user-1", entities.JobKindAttendeeRecovery))
	require.NoError(t, err)
	_, err = f.processor.ProcessChunk(ctx, Request{OrganizationID: "org-1", JobID: other.ID})
	assert.ErrorIs(t, err, ErrNotChunkedJob)
}

func TestProcessor_NoWebinarsCompletesImmediately(t *testing.T) {
	f := setup(t, 0, 5)

	resp, err := f.processor.ProcessChunk(context.Background(), Request{OrganizationID: "org-1"})
	require.NoError(t, err)

	assert.True(t, resp.Completed)
	assert.Equal(t, 100, resp.Progress.ProgressPercentage)
}

func TestProcessor_CredentialFailureFailsJob(t *testing.T) {
	f := setup(t, 3, 2)
	f.processor.creds = stubCreds{err: zoom.ErrMissingConnection}

	resp, err := f.processor.ProcessChunk(context.Background(), Request{OrganizationID: "org-1"})

	require.ErrorIs(t, err, recovery.ErrCredentials)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "reconnect your account")

	job, getErr := f.repo.Get(context.Background(), resp.JobID)
	require.NoError(t, getErr)
	assert.Equal(t, entities.JobStatusFailed, job.Status)

	again, err := f.processor.ProcessChunk(context.Background(), Request{OrganizationID: "org-1", JobID: resp.JobID})
	require.NoError(t, err)
	assert.False(t, again.Success)
}

func TestProcessor_EntityFailuresDoNotStopTheJob(t *testing.T) {
	f := setup(t, 4, 2)
	f.recoverer.fail["w1"] = &zoom.ServerError{StatusCode: 500}
	ctx := context.Background()

	resp, err := f.processor.ProcessChunk(ctx, Request{OrganizationID: "org-1"})
	require.NoError(t, err)
	resp, err = f.processor.ProcessChunk(ctx, Request{OrganizationID: "org-1", JobID: resp.JobID, ChunkIndex: 1})
	require.NoError(t, err)

	assert.True(t, resp.Completed)
	assert.Equal(t, 3, resp.Progress.Successful)
	assert.Equal(t, 1, resp.Progress.Failed)
}

func TestProcessor_ResumesSweptJob(t *testing.T) {
	f := setup(t, 4, 2)
	ctx := context.Background()

	first, err := f.processor.ProcessChunk(ctx, Request{OrganizationID: "org-1"})
	require.NoError(t, err)

	job, err := f.repo.Get(ctx, first.JobID)
	require.NoError(t, err)
	require.NoError(t, f.repo.ResetStuck(ctx, job, "reset"))

	resp, err := f.processor.ProcessChunk(ctx, Request{OrganizationID: "org-1", JobID: first.JobID, ChunkIndex: 1})
	require.NoError(t, err)
	assert.True(t, resp.Completed)
	assert.Len(t, f.recoverer.calls, 4)
}

func TestProcessor_ConcurrentCallsProcessAChunkOnce(t *testing.T) {
	f := setup(t, 2, 1)
	ctx := context.Background()

	started, err := f.processor.Start(ctx, "org-1", "user-1")
	require.NoError(t, err)

	f.recoverer.entered = make(chan uint, 1)
	f.recoverer.gate = make(chan struct{})
	req := Request{OrganizationID: "org-1", JobID: started.JobID, ChunkIndex: 0}

	done := make(chan error, 1)
	go func() {
		_, err := f.processor.ProcessChunk(ctx, req)
		done <- err
	}()
	<-f.recoverer.entered

	_, err = f.processor.ProcessChunk(ctx, req)
	assert.ErrorIs(t, err, ErrChunkInProgress)

	close(f.recoverer.gate)
	require.NoError(t, <-done)

	total := 0
	for _, n := range f.recoverer.calls {
		total += n
	}
	assert.Equal(t, 1, total)

	job, err := f.repo.Get(ctx, started.JobID)
	require.NoError(t, err)
	assert.Equal(t, 1, job.Metadata.Chunk.CurrentChunk)
	assert.Nil(t, job.Metadata.Chunk.Claim)
}

func TestProcessor_TakesOverExpiredClaim(t *testing.T) {
	f := setup(t, 2, 1)
	ctx := context.Background()

	started, err := f.processor.Start(ctx, "org-1", "user-1")
	require.NoError(t, err)

	job, err := f.repo.Get(ctx, started.JobID)
	require.NoError(t, err)
	job.Metadata.Chunk.Claim = &entities.ChunkClaim{Index: 0, At: time.Now().Add(-time.Hour)}
	require.NoError(t, f.repo.Update(ctx, job))

	resp, err := f.processor.ProcessChunk(ctx, Request{OrganizationID: "org-1", JobID: started.JobID, ChunkIndex: 0})
	require.NoError(t, err)
	assert.Len(t, resp.ChunkResults, 1)
	assert.Equal(t, 1, resp.Progress.CurrentChunk)
}

func TestProgressOf(t *testing.T) {
	assert.Equal(t, ChunkProgress{}, ProgressOf(nil))

	mid := ProgressOf(&entities.ChunkState{CurrentChunk: 1, TotalChunks: 3, ProcessedWebinars: 1, TotalWebinars: 3})
	assert.Equal(t, 33, mid.ProgressPercentage)

	final := ProgressOf(&entities.ChunkState{CurrentChunk: 3, TotalChunks: 3, ProcessedWebinars: 2, TotalWebinars: 3})
	assert.Equal(t, 100, final.ProgressPercentage)
}
