package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/robfig/cron/v3"

	"github.com/mrlokans/webinarsync/internal/chunked"
	"github.com/mrlokans/webinarsync/internal/entities"
	"github.com/mrlokans/webinarsync/internal/tasks"
)

// DefaultSweepSchedule runs the stuck job sweep every five minutes.
const DefaultSweepSchedule = "*/5 * * * *"

// TaskEnqueuer puts work on the background queue.
type TaskEnqueuer interface {
	Enqueue(ctx context.Context, task backlite.Task) (string, error)
}

// ResyncStarter creates a chunked mass resync job.
type ResyncStarter interface {
	Start(ctx context.Context, organizationID, userID string) (*chunked.Response, error)
}

// ActiveJobFinder reports whether an organization already has a running job.
type ActiveJobFinder interface {
	FindActive(ctx context.Context, organizationID string, kind entities.JobKind) (*entities.SyncJob, error)
}

// Config controls what the scheduler runs. An empty ResyncSchedule disables
// scheduled mass resyncs.
type Config struct {
	SweepSchedule       string
	ResyncSchedule      string
	ResyncOrganizations []string
}

// Scheduler enqueues periodic maintenance: the stuck job sweep and, when
// configured, a mass resync per organization.
type Scheduler struct {
	cfg     Config
	queue   TaskEnqueuer
	resync  ResyncStarter
	active  ActiveJobFinder
	timeout time.Duration

	cron      *cron.Cron
	entries   map[string]cron.EntryID
	mu        sync.RWMutex
	isRunning bool
}

// NewScheduler creates a new scheduler instance. resync and active may be nil
// when no resync schedule is configured.
func NewScheduler(cfg Config, queue TaskEnqueuer, resync ResyncStarter, active ActiveJobFinder) *Scheduler {
	if cfg.SweepSchedule == "" {
		cfg.SweepSchedule = DefaultSweepSchedule
	}
	return &Scheduler{
		cfg:     cfg,
		queue:   queue,
		resync:  resync,
		active:  active,
		timeout: time.Minute,
		cron:    cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
		entries: make(map[string]cron.EntryID),
	}
}

// ValidateSchedule checks a five-field cron expression.
func ValidateSchedule(schedule string) error {
	_, err := cron.ParseStandard(schedule)
	return err
}

// Start registers the configured entries and starts the cron loop. The
// scheduler stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	if err := ValidateSchedule(s.cfg.SweepSchedule); err != nil {
		return fmt.Errorf("invalid sweep schedule '%s': %w", s.cfg.SweepSchedule, err)
	}
	id, err := s.cron.AddFunc(s.cfg.SweepSchedule, s.enqueueSweep)
	if err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}
	s.entries["sweep"] = id

	if s.cfg.ResyncSchedule != "" {
		if s.resync == nil {
			return fmt.Errorf("resync schedule set but no resync starter configured")
		}
		if err := ValidateSchedule(s.cfg.ResyncSchedule); err != nil {
			return fmt.Errorf("invalid resync schedule '%s': %w", s.cfg.ResyncSchedule, err)
		}
		id, err := s.cron.AddFunc(s.cfg.ResyncSchedule, s.startResyncs)
		if err != nil {
			return fmt.Errorf("failed to schedule resync: %w", err)
		}
		s.entries["resync"] = id
	}

	s.cron.Start()
	s.isRunning = true
	log.Printf("Scheduler: started (sweep '%s', resync '%s' for %d organizations)",
		s.cfg.SweepSchedule, s.cfg.ResyncSchedule, len(s.cfg.ResyncOrganizations))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop gracefully stops the scheduler, waiting for running entries.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	for name, id := range s.entries {
		s.cron.Remove(id)
		delete(s.entries, name)
	}
	s.isRunning = false
	log.Printf("Scheduler: stopped")
}

// IsRunning returns whether the scheduler is active
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRun returns when the named entry ("sweep" or "resync") fires next.
func (s *Scheduler) NextRun(name string) *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.entries[name]
	if !ok || !s.isRunning {
		return nil
	}
	t := s.cron.Entry(id).Next
	return &t
}

// SweepNow enqueues a sweep immediately.
func (s *Scheduler) SweepNow() {
	s.enqueueSweep()
}

// ResyncNow starts the configured resyncs immediately.
func (s *Scheduler) ResyncNow() {
	s.startResyncs()
}

func (s *Scheduler) enqueueSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.queue.Enqueue(ctx, tasks.SweepStuckJobsTask{}); err != nil {
		log.Printf("Scheduler: failed to enqueue sweep: %v", err)
	}
}

func (s *Scheduler) startResyncs() {
	for _, org := range s.cfg.ResyncOrganizations {
		if err := s.startResync(org); err != nil {
			log.Printf("Scheduler: resync for %s not started: %v", org, err)
		}
	}
}

func (s *Scheduler) startResync(organizationID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if s.active != nil {
		running, err := s.active.FindActive(ctx, organizationID, entities.JobKindMassResync)
		if err != nil {
			return err
		}
		if running != nil {
			log.Printf("Scheduler: resync for %s skipped (job %s still running)", organizationID, running.ID)
			return nil
		}
	}

	resp, err := s.resync.Start(ctx, organizationID, "scheduler")
	if err != nil {
		return err
	}
	if resp.Completed {
		log.Printf("Scheduler: resync for %s has nothing to do", organizationID)
		return nil
	}

	taskID, err := s.queue.Enqueue(ctx, tasks.MassResyncTask{
		JobID:          resp.JobID,
		OrganizationID: organizationID,
		UserID:         "scheduler",
	})
	if err != nil {
		return err
	}
	log.Printf("Scheduler: resync job %s for %s queued as task %s", resp.JobID, organizationID, taskID)
	return nil
}
