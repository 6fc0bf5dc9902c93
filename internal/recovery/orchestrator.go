package recovery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/samber/lo"
	"github.com/sourcegraph/conc"

	"github.com/mrlokans/webinarsync/internal/database"
	"github.com/mrlokans/webinarsync/internal/database/jobs"
	"github.com/mrlokans/webinarsync/internal/entities"
	"github.com/mrlokans/webinarsync/internal/pagination"
)

const (
	DefaultAttendeeBatchSize     = 1
	DefaultRegistrationBatchSize = 3
	DefaultInterBatchDelay       = 1500 * time.Millisecond
	DefaultEntityTimeout         = 5 * time.Minute
)

// Config tunes the batch loop. Zero values fall back to the defaults.
type Config struct {
	AttendeeBatchSize     int
	RegistrationBatchSize int
	InterBatchDelay       time.Duration
	EntityTimeout         time.Duration
	StuckThreshold        time.Duration
}

func DefaultConfig() Config {
	return Config{
		AttendeeBatchSize:     DefaultAttendeeBatchSize,
		RegistrationBatchSize: DefaultRegistrationBatchSize,
		InterBatchDelay:       DefaultInterBatchDelay,
		EntityTimeout:         DefaultEntityTimeout,
		StuckThreshold:        entities.DefaultStuckThreshold,
	}
}

func (c Config) batchSize(kind entities.JobKind) int {
	switch kind {
	case entities.JobKindRegistrationRecovery:
		if c.RegistrationBatchSize > 0 {
			return c.RegistrationBatchSize
		}
		return DefaultRegistrationBatchSize
	default:
		if c.AttendeeBatchSize > 0 {
			return c.AttendeeBatchSize
		}
		return DefaultAttendeeBatchSize
	}
}

// interBatchDelay falls back to the default for zero.
func (c Config) interBatchDelay() time.Duration {
	if c.InterBatchDelay <= 0 {
		return DefaultInterBatchDelay
	}
	return c.InterBatchDelay
}

func (c Config) entityTimeout() time.Duration {
	if c.EntityTimeout <= 0 {
		return DefaultEntityTimeout
	}
	return c.EntityTimeout
}

// JobStore persists job progress.
type JobStore interface {
	StuckJobStore
	Create(ctx context.Context, job *entities.SyncJob) (*entities.SyncJob, error)
	Get(ctx context.Context, id string) (*entities.SyncJob, error)
	Update(ctx context.Context, job *entities.SyncJob) error
	Transition(ctx context.Context, job *entities.SyncJob, next entities.JobStatus) error
	Fail(ctx context.Context, job *entities.SyncJob, errMsg string) error
}

// WebinarLister discovers the webinars a run works on.
type WebinarLister interface {
	ListWebinarsForRecovery(ctx context.Context, organizationID string, ids []uint) ([]database.WebinarStats, error)
}

// CredentialChecker verifies that an organization can talk to the upstream platform.
type CredentialChecker interface {
	Verify(ctx context.Context, organizationID string) error
}

// RunRequest describes a recovery run. OnlyWebinarIDs restricts the run to
// those webinars, e.g. to retry failures of a previous run.
type RunRequest struct {
	OrganizationID string           `json:"organization_id"`
	UserID         string           `json:"user_id"`
	Kind           entities.JobKind `json:"kind"`
	OnlyWebinarIDs []uint           `json:"webinar_ids,omitempty"`
}

// RunOutput is returned by a run, including partial results when it aborts.
type RunOutput struct {
	JobID       string           `json:"job_id"`
	Kind        entities.JobKind `json:"kind"`
	Results     []Result         `json:"results"`
	Summary     Summary          `json:"summary"`
	Diagnostics Diagnostics      `json:"diagnostics"`
	Message     string           `json:"message"`
}

// Orchestrator runs recovery over an organization's webinars in small
// sequential batches, recovering the webinars of a batch concurrently.
type Orchestrator struct {
	jobs       JobStore
	webinars   WebinarLister
	creds      CredentialChecker
	sweeper    *Sweeper
	recoverers map[entities.JobKind]Recoverer
	cfg        Config
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewOrchestrator(store JobStore, webinars WebinarLister, creds CredentialChecker, cfg Config) *Orchestrator {
	return &Orchestrator{
		jobs:       store,
		webinars:   webinars,
		creds:      creds,
		sweeper:    NewSweeper(store, cfg.StuckThreshold),
		recoverers: make(map[entities.JobKind]Recoverer),
		cfg:        cfg,
		sleep:      pagination.Sleep,
	}
}

// Register sets the recoverer used for jobs of kind.
func (o *Orchestrator) Register(kind entities.JobKind, r Recoverer) {
	o.recoverers[kind] = r
}

// Sweeper returns the stuck-job sweeper the orchestrator runs before each run.
func (o *Orchestrator) Sweeper() *Sweeper {
	return o.sweeper
}

// Run creates a job for req and executes it.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (*RunOutput, error) {
	job, err := o.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return o.Execute(ctx, job)
}

// Prepare validates req and creates the pending job, so the job id can be
// handed out before the run starts.
func (o *Orchestrator) Prepare(ctx context.Context, req RunRequest) (*entities.SyncJob, error) {
	if req.OrganizationID == "" {
		return nil, ErrOrganizationRequired
	}
	if _, ok := o.recoverers[req.Kind]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, req.Kind)
	}

	job := jobs.NewJob(req.OrganizationID, req.UserID, req.Kind)
	switch req.Kind {
	case entities.JobKindAttendeeRecovery:
		job.Metadata.Resync.TargetIDs = req.OnlyWebinarIDs
		job.Metadata.Resync.StageMessage = "Queued"
	case entities.JobKindRegistrationRecovery:
		job.Metadata.Registration.TargetIDs = req.OnlyWebinarIDs
		job.Metadata.Registration.StageMessage = "Queued"
	}
	return o.jobs.Create(ctx, job)
}

// RunJob executes a previously prepared job.
func (o *Orchestrator) RunJob(ctx context.Context, jobID string) (*RunOutput, error) {
	job, err := o.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != entities.JobStatusPending {
		return nil, fmt.Errorf("job %s is %s, expected %s", job.ID, job.Status, entities.JobStatusPending)
	}
	return o.Execute(ctx, job)
}

// Execute drives a pending job to completion. On a run-level error the job is
// marked failed and the output collected so far is returned with the error.
func (o *Orchestrator) Execute(ctx context.Context, job *entities.SyncJob) (*RunOutput, error) {
	out := &RunOutput{JobID: job.ID, Kind: job.Kind, Results: []Result{}}

	recoverer, ok := o.recoverers[job.Kind]
	if !ok {
		return out, fmt.Errorf("%w: %q", ErrUnsupportedKind, job.Kind)
	}

	if _, err := o.sweeper.Sweep(ctx, job.OrganizationID); err != nil {
		log.Printf("Recovery: warning: stuck job sweep failed: %v", err)
	}

	if err := o.jobs.Transition(ctx, job, entities.JobStatusRunning); err != nil {
		return out, fmt.Errorf("start job: %w", err)
	}
	log.Printf("Recovery: starting %s job %s for organization %s", job.Kind, job.ID, job.OrganizationID)

	if err := o.creds.Verify(ctx, job.OrganizationID); err != nil {
		return o.abort(ctx, job, out, fmt.Errorf("%w: %v", ErrCredentials, err))
	}

	stats, err := o.webinars.ListWebinarsForRecovery(ctx, job.OrganizationID, job.Metadata.TargetIDs())
	if err != nil {
		return o.abort(ctx, job, out, fmt.Errorf("discover webinars: %w", err))
	}
	targets := Prioritize(lo.Map(stats, func(w database.WebinarStats, _ int) Target {
		return NewTarget(w, job.Kind)
	}))

	batches := lo.Chunk(targets, o.cfg.batchSize(job.Kind))
	job.TotalItems = len(targets)
	o.record(job, 0, len(batches), out.Summary, fmt.Sprintf("Found %d webinars to recover", len(targets)))
	if err := o.jobs.Update(ctx, job); err != nil {
		return o.abort(ctx, job, out, fmt.Errorf("checkpoint job: %w", err))
	}

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return o.abort(ctx, job, out, fmt.Errorf("recovery cancelled: %w", err))
		}

		results := RecoverBatch(ctx, job.OrganizationID, recoverer, batch, o.cfg.entityTimeout())
		for _, r := range results {
			out.Results = append(out.Results, r)
			out.Summary.Add(r)
			log.Printf("Recovery: %s", r.LogLine())
		}

		job.CurrentItem += len(batch)
		job.Progress = Percentage(job.CurrentItem, job.TotalItems)
		job.ErrorCount = out.Summary.Failed
		o.record(job, i+1, len(batches), out.Summary,
			fmt.Sprintf("Processed batch %d of %d", i+1, len(batches)))
		if err := o.jobs.Update(ctx, job); err != nil {
			return o.abort(ctx, job, out, fmt.Errorf("checkpoint job: %w", err))
		}

		if credErr := CredentialFailure(results); credErr != nil {
			return o.abort(ctx, job, out, fmt.Errorf("%w: %v", ErrCredentials, credErr))
		}

		if i < len(batches)-1 {
			if err := o.sleep(ctx, o.cfg.interBatchDelay()); err != nil {
				return o.abort(ctx, job, out, fmt.Errorf("recovery cancelled: %w", err))
			}
		}
	}

	out.Diagnostics = Diagnose(out.Summary, out.Results)
	out.Message = out.Summary.Message()

	job.Progress = 100
	o.record(job, len(batches), len(batches), out.Summary, out.Message)
	if err := o.jobs.Transition(ctx, job, entities.JobStatusCompleted); err != nil {
		return out, fmt.Errorf("complete job: %w", err)
	}
	log.Printf("Recovery: %s job %s completed: %s", job.Kind, job.ID, out.Message)
	return out, nil
}

// RecoverBatch recovers every target of a batch concurrently, each under its
// own timeout. Entities are settled independently: a failing or panicking
// entity is recorded as failed without affecting the others. Results are in
// batch order regardless of completion order.
func RecoverBatch(ctx context.Context, organizationID string, recoverer Recoverer, batch []Target, timeout time.Duration) []Result {
	results := make([]Result, len(batch))
	settled := make([]bool, len(batch))

	var wg conc.WaitGroup
	for idx, target := range batch {
		wg.Go(func() {
			entityCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			res, err := recoverer.Recover(entityCtx, organizationID, target)
			if err != nil {
				res = failedResult(target, err, res)
			}
			results[idx] = res
			settled[idx] = true
		})
	}

	if recovered := wg.WaitAndRecover(); recovered != nil {
		log.Printf("Recovery: panic while recovering batch: %v", recovered.Value)
		err := fmt.Errorf("recovery panicked: %v", recovered.Value)
		for idx, target := range batch {
			if !settled[idx] {
				results[idx] = failedResult(target, err, Result{})
			}
		}
	}
	return results
}

func (o *Orchestrator) abort(ctx context.Context, job *entities.SyncJob, out *RunOutput, err error) (*RunOutput, error) {
	out.Diagnostics = Diagnose(out.Summary, out.Results)
	out.Message = UserMessage(err)
	job.ErrorCount = out.Summary.Failed
	o.record(job, -1, -1, out.Summary, out.Message)

	// The job must leave running even when ctx is what aborted the run.
	if failErr := o.jobs.Fail(context.WithoutCancel(ctx), job, err.Error()); failErr != nil {
		log.Printf("Recovery: failed to mark job %s failed: %v", job.ID, failErr)
	}
	log.Printf("Recovery: %s job %s failed: %v", job.Kind, job.ID, err)
	return out, err
}

// record copies the running totals into the job metadata. A negative batch
// leaves the batch counters untouched.
func (o *Orchestrator) record(job *entities.SyncJob, batch, totalBatches int, summary Summary, stage string) {
	switch job.Kind {
	case entities.JobKindAttendeeRecovery:
		state := job.Metadata.Resync
		if state == nil {
			state = &entities.ResyncState{}
			job.Metadata = entities.NewResyncMetadata(entities.ResyncState{})
			job.Metadata.Resync = state
		}
		if batch >= 0 {
			state.CurrentBatch, state.TotalBatches = batch, totalBatches
		}
		state.Found, state.Stored = summary.TotalFound, summary.TotalStored
		state.Successful, state.Failed = summary.Successful, summary.Failed
		state.StageMessage = stage
	case entities.JobKindRegistrationRecovery:
		state := job.Metadata.Registration
		if state == nil {
			state = &entities.RegistrationState{}
			job.Metadata = entities.NewRegistrationMetadata(entities.RegistrationState{})
			job.Metadata.Registration = state
		}
		if batch >= 0 {
			state.CurrentBatch, state.TotalBatches = batch, totalBatches
		}
		state.Found, state.Stored, state.Rejected = summary.TotalFound, summary.TotalStored, summary.TotalRejected
		state.Successful, state.Failed = summary.Successful, summary.Failed
		state.StageMessage = stage
	}
}

// CredentialFailure returns the error of the first result that failed on credentials.
func CredentialFailure(results []Result) error {
	for _, r := range results {
		if r.Class == ClassCredential {
			if r.err != nil {
				return r.err
			}
			return errors.New(r.Message)
		}
	}
	return nil
}
