// Package chunked runs a mass resync as a sequence of small, separately
// requested chunks so that no single request outlives a platform timeout.
//
// The job row is the checkpoint: each chunk records the webinars it processed
// and advances CurrentChunk. Chunks must be requested in order; repeating a
// finished chunk returns the stored progress without doing any work.
package chunked

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/mrlokans/webinarsync/internal/database"
	"github.com/mrlokans/webinarsync/internal/database/jobs"
	"github.com/mrlokans/webinarsync/internal/entities"
	"github.com/mrlokans/webinarsync/internal/recovery"
)

const (
	DefaultChunkSize     = 5
	DefaultEntityTimeout = 2 * time.Minute
)

var (
	// ErrChunkOutOfOrder is returned when a chunk is requested before the previous ones finished.
	ErrChunkOutOfOrder = errors.New("chunk requested out of order")

	// ErrChunkOutOfRange is returned for a chunk index past the last chunk.
	ErrChunkOutOfRange = errors.New("chunk index out of range")

	// ErrNotChunkedJob is returned when the job id belongs to another kind of job.
	ErrNotChunkedJob = errors.New("job is not a chunked resync")

	// ErrChunkInProgress is returned when another caller holds the chunk.
	ErrChunkInProgress = errors.New("chunk is already being processed")
)

// Request asks for one chunk. An empty JobID with ChunkIndex 0 starts a new job.
type Request struct {
	OrganizationID string `json:"organization_id"`
	UserID         string `json:"user_id"`
	JobID          string `json:"job_id,omitempty"`
	ChunkIndex     int    `json:"chunk_index"`
}

// Response reports the outcome of one chunk call.
type Response struct {
	Success      bool              `json:"success"`
	JobID        string            `json:"job_id"`
	Progress     ChunkProgress     `json:"progress"`
	ChunkResults []recovery.Result `json:"chunk_results"`
	Completed    bool              `json:"completed"`
	Error        string            `json:"error,omitempty"`
}

// Processor executes chunks of a mass resync job.
type Processor struct {
	jobs          recovery.JobStore
	webinars      recovery.WebinarLister
	creds         recovery.CredentialChecker
	recoverer     recovery.Recoverer
	chunkSize     int
	entityTimeout time.Duration
	now           func() time.Time
}

func NewProcessor(store recovery.JobStore, webinars recovery.WebinarLister, creds recovery.CredentialChecker, recoverer recovery.Recoverer, chunkSize int) *Processor {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Processor{
		jobs:          store,
		webinars:      webinars,
		creds:         creds,
		recoverer:     recoverer,
		chunkSize:     chunkSize,
		entityTimeout: DefaultEntityTimeout,
		now:           time.Now,
	}
}

// Start creates a running mass resync job over every recoverable webinar of
// the organization, ordered by priority. No chunk is processed.
func (p *Processor) Start(ctx context.Context, organizationID, userID string) (*Response, error) {
	if organizationID == "" {
		return nil, recovery.ErrOrganizationRequired
	}

	job := jobs.NewJob(organizationID, userID, entities.JobKindMassResync)
	job.Metadata.Chunk.ChunkSize = p.chunkSize
	job.Metadata.Chunk.StageMessage = "Checking connection"
	job, err := p.jobs.Create(ctx, job)
	if err != nil {
		return nil, err
	}
	if err := p.jobs.Transition(ctx, job, entities.JobStatusRunning); err != nil {
		return nil, fmt.Errorf("start job: %w", err)
	}

	if err := p.creds.Verify(ctx, organizationID); err != nil {
		return p.fail(ctx, job, fmt.Errorf("%w: %v", recovery.ErrCredentials, err))
	}

	stats, err := p.webinars.ListWebinarsForRecovery(ctx, organizationID, nil)
	if err != nil {
		return p.fail(ctx, job, fmt.Errorf("discover webinars: %w", err))
	}
	targets := recovery.Prioritize(lo.Map(stats, func(w database.WebinarStats, _ int) recovery.Target {
		return recovery.NewTarget(w, entities.JobKindAttendeeRecovery)
	}))

	state := job.Metadata.Chunk
	state.WebinarIDs = lo.Map(targets, func(t recovery.Target, _ int) uint { return t.WebinarID })
	state.TotalWebinars = len(targets)
	state.TotalChunks = (len(targets) + p.chunkSize - 1) / p.chunkSize
	state.StageMessage = fmt.Sprintf("Found %d webinars in %d chunks", state.TotalWebinars, state.TotalChunks)
	job.TotalItems = state.TotalWebinars

	if state.TotalChunks == 0 {
		job.Progress = 100
		state.StageMessage = "No webinars to resync"
		if err := p.jobs.Transition(ctx, job, entities.JobStatusCompleted); err != nil {
			return nil, fmt.Errorf("complete job: %w", err)
		}
		return p.respond(job, nil), nil
	}

	if err := p.jobs.Update(ctx, job); err != nil {
		return nil, fmt.Errorf("checkpoint job: %w", err)
	}
	log.Printf("Resync: started job %s with %d webinars in %d chunks", job.ID, state.TotalWebinars, state.TotalChunks)
	return p.respond(job, nil), nil
}

// ProcessChunk processes one chunk of a job, creating the job first when
// req.JobID is empty.
func (p *Processor) ProcessChunk(ctx context.Context, req Request) (*Response, error) {
	if req.JobID == "" {
		if req.ChunkIndex != 0 {
			return nil, fmt.Errorf("%w: a new job starts at chunk 0", ErrChunkOutOfOrder)
		}
		started, err := p.Start(ctx, req.OrganizationID, req.UserID)
		if err != nil || started.Completed {
			return started, err
		}
		req.JobID = started.JobID
	}

	job, err := p.load(ctx, req)
	if err != nil {
		return nil, err
	}
	state := job.Metadata.Chunk

	switch job.Status {
	case entities.JobStatusCompleted:
		return p.respond(job, nil), nil
	case entities.JobStatusFailed:
		resp := p.respond(job, nil)
		resp.Success = false
		resp.Error = job.Error
		return resp, nil
	case entities.JobStatusPending:
		// Reset by the stuck-job sweep; pick up where the checkpoint left off.
		if err := p.jobs.Transition(ctx, job, entities.JobStatusRunning); err != nil {
			return nil, fmt.Errorf("resume job: %w", err)
		}
	}

	if slices.Contains(state.CompletedChunks, req.ChunkIndex) {
		return p.respond(job, nil), nil
	}
	if req.ChunkIndex < 0 || req.ChunkIndex >= state.TotalChunks {
		return nil, fmt.Errorf("%w: %d of %d", ErrChunkOutOfRange, req.ChunkIndex, state.TotalChunks)
	}
	if req.ChunkIndex != state.CurrentChunk {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrChunkOutOfOrder, req.ChunkIndex, state.CurrentChunk)
	}
	if err := p.claim(ctx, job, req.ChunkIndex); err != nil {
		return nil, err
	}

	results, err := p.runChunk(ctx, job, req.ChunkIndex)
	if err != nil {
		resp, failErr := p.fail(ctx, job, err)
		resp.ChunkResults = results
		return resp, failErr
	}
	return p.respond(job, results), nil
}

// Progress returns the current progress of a chunked job.
func (p *Processor) Progress(ctx context.Context, jobID string) (*Response, error) {
	job, err := p.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Kind != entities.JobKindMassResync || job.Metadata.Chunk == nil {
		return nil, ErrNotChunkedJob
	}
	resp := p.respond(job, nil)
	if job.Status == entities.JobStatusFailed {
		resp.Success = false
		resp.Error = job.Error
	}
	return resp, nil
}

func (p *Processor) load(ctx context.Context, req Request) (*entities.SyncJob, error) {
	job, err := p.jobs.Get(ctx, req.JobID)
	if err != nil {
		return nil, err
	}
	if req.OrganizationID != "" && job.OrganizationID != req.OrganizationID {
		return nil, jobs.ErrJobNotFound
	}
	if job.Kind != entities.JobKindMassResync || job.Metadata.Chunk == nil {
		return nil, ErrNotChunkedJob
	}
	return job, nil
}

// claim records the chunk as taken before anything is fetched upstream. A
// concurrent caller either sees the live claim or loses the version check.
// Claims older than the lease are taken over.
func (p *Processor) claim(ctx context.Context, job *entities.SyncJob, index int) error {
	state := job.Metadata.Chunk
	now := p.now()
	if c := state.Claim; c != nil && c.Index == index && now.Sub(c.At) < p.claimLease() {
		return fmt.Errorf("%w: chunk %d claimed at %s", ErrChunkInProgress, index, c.At.Format(time.RFC3339))
	}

	state.Claim = &entities.ChunkClaim{Index: index, At: now}
	state.StageMessage = fmt.Sprintf("Processing chunk %d of %d", index+1, state.TotalChunks)
	if err := p.jobs.Update(ctx, job); err != nil {
		if errors.Is(err, jobs.ErrVersionConflict) {
			return fmt.Errorf("%w: %w", ErrChunkInProgress, err)
		}
		return fmt.Errorf("claim chunk %d: %w", index, err)
	}
	return nil
}

// claimLease outlives a chunk, whose entities run concurrently under entityTimeout.
func (p *Processor) claimLease() time.Duration {
	return 2 * p.entityTimeout
}

func (p *Processor) runChunk(ctx context.Context, job *entities.SyncJob, index int) ([]recovery.Result, error) {
	state := job.Metadata.Chunk
	start := index * state.ChunkSize
	end := min(start+state.ChunkSize, len(state.WebinarIDs))
	ids := state.WebinarIDs[start:end]

	pending := lo.Filter(ids, func(id uint, _ int) bool { return !slices.Contains(state.ProcessedIDs, id) })

	var results []recovery.Result
	if len(pending) > 0 {
		stats, err := p.webinars.ListWebinarsForRecovery(ctx, job.OrganizationID, pending)
		if err != nil {
			return nil, fmt.Errorf("load chunk %d: %w", index, err)
		}
		byID := lo.SliceToMap(stats, func(w database.WebinarStats) (uint, database.WebinarStats) { return w.ID, w })
		targets := lo.FilterMap(pending, func(id uint, _ int) (recovery.Target, bool) {
			w, ok := byID[id]
			return recovery.NewTarget(w, entities.JobKindAttendeeRecovery), ok
		})
		results = recovery.RecoverBatch(ctx, job.OrganizationID, p.recoverer, targets, p.entityTimeout)
	}

	if credErr := recovery.CredentialFailure(results); credErr != nil {
		return results, fmt.Errorf("%w: %v", recovery.ErrCredentials, credErr)
	}

	for _, r := range results {
		if r.Success {
			state.Successful++
		} else {
			state.Failed++
		}
		log.Printf("Resync: %s", r.LogLine())
	}
	// Webinars deleted since the job started count as processed too.
	state.ProcessedIDs = lo.Union(state.ProcessedIDs, pending)
	state.ProcessedWebinars = len(state.ProcessedIDs)
	state.CompletedChunks = append(state.CompletedChunks, index)
	state.CurrentChunk = index + 1
	state.Claim = nil
	now := p.now()
	state.LastChunkAt = &now
	state.StageMessage = fmt.Sprintf("Processed chunk %d of %d", index+1, state.TotalChunks)

	job.CurrentItem = state.ProcessedWebinars
	job.ErrorCount = state.Failed
	job.Progress = ProgressOf(state).ProgressPercentage

	if done(state) {
		job.Progress = 100
		state.StageMessage = fmt.Sprintf("Resynced %d webinars (%d failed)", state.ProcessedWebinars, state.Failed)
		if err := p.jobs.Transition(ctx, job, entities.JobStatusCompleted); err != nil {
			return results, fmt.Errorf("complete job: %w", err)
		}
		log.Printf("Resync: job %s completed: %s", job.ID, state.StageMessage)
		return results, nil
	}

	if err := p.jobs.Update(ctx, job); err != nil {
		return results, fmt.Errorf("checkpoint chunk %d: %w", index, err)
	}
	return results, nil
}

func (p *Processor) fail(ctx context.Context, job *entities.SyncJob, err error) (*Response, error) {
	if job.Metadata.Chunk != nil {
		job.Metadata.Chunk.StageMessage = recovery.UserMessage(err)
	}
	// A concurrent writer already owns the job; leave it alone.
	if !errors.Is(err, jobs.ErrVersionConflict) {
		if failErr := p.jobs.Fail(context.WithoutCancel(ctx), job, err.Error()); failErr != nil {
			log.Printf("Resync: failed to mark job %s failed: %v", job.ID, failErr)
		}
	}
	log.Printf("Resync: job %s failed: %v", job.ID, err)

	resp := p.respond(job, nil)
	resp.Success = false
	resp.Error = recovery.UserMessage(err)
	return resp, err
}

func (p *Processor) respond(job *entities.SyncJob, results []recovery.Result) *Response {
	if results == nil {
		results = []recovery.Result{}
	}
	return &Response{
		Success:      true,
		JobID:        job.ID,
		Progress:     ProgressOf(job.Metadata.Chunk),
		ChunkResults: results,
		Completed:    job.Status == entities.JobStatusCompleted,
	}
}
