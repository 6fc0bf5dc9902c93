// Package jobs provides database operations for long-running sync jobs.
//
// Job rows are the only state shared across a recovery run. Every write goes
// through Update, which bumps Version and fails with ErrVersionConflict when
// another writer got there first.
//
// # Usage
//
//	repo := jobs.NewRepository(db)
//	job, err := repo.Create(ctx, jobs.NewJob("org-1", "user-1", entities.JobKindMassResync))
//	err = repo.Transition(ctx, job, entities.JobStatusRunning)
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mrlokans/webinarsync/internal/entities"
)

var (
	// ErrJobNotFound is returned when no job exists with the requested id.
	ErrJobNotFound = errors.New("sync job not found")

	// ErrVersionConflict is returned when the job was modified by another writer.
	ErrVersionConflict = errors.New("sync job was modified concurrently")

	// ErrInvalidTransition is returned for status changes outside pending -> running -> completed|failed.
	ErrInvalidTransition = errors.New("invalid sync job status transition")
)

// Repository handles all sync job database operations.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository creates a new jobs repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// NewJob builds a pending job with metadata matching its kind.
func NewJob(organizationID, userID string, kind entities.JobKind) *entities.SyncJob {
	job := &entities.SyncJob{
		OrganizationID: organizationID,
		UserID:         userID,
		Kind:           kind,
		Status:         entities.JobStatusPending,
	}
	switch kind {
	case entities.JobKindMassResync:
		job.Metadata = entities.NewChunkMetadata(entities.ChunkState{})
	case entities.JobKindAttendeeRecovery:
		job.Metadata = entities.NewResyncMetadata(entities.ResyncState{})
	case entities.JobKindRegistrationRecovery:
		job.Metadata = entities.NewRegistrationMetadata(entities.RegistrationState{})
	}
	return job
}

// Create inserts a new job. An id is generated when missing.
func (r *Repository) Create(ctx context.Context, job *entities.SyncJob) (*entities.SyncJob, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = entities.JobStatusPending
	}
	if !job.Kind.Valid() {
		return nil, fmt.Errorf("create job: unknown kind %q", job.Kind)
	}
	if job.Metadata.Kind == "" {
		job.Metadata.Kind = job.Kind
	}
	if err := job.Metadata.Validate(); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	job.Version = 1

	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return job, nil
}

// Get returns a job by id.
func (r *Repository) Get(ctx context.Context, id string) (*entities.SyncJob, error) {
	var job entities.SyncJob
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// Update persists progress counters, metadata and status of the job using
// optimistic concurrency on Version. On success job.Version is advanced.
func (r *Repository) Update(ctx context.Context, job *entities.SyncJob) error {
	if err := job.Metadata.Validate(); err != nil {
		return fmt.Errorf("update job %s: %w", job.ID, err)
	}

	now := r.now()
	result := r.db.WithContext(ctx).Model(&entities.SyncJob{}).
		Where("id = ? AND version = ?", job.ID, job.Version).
		Updates(map[string]any{
			"status":       job.Status,
			"progress":     job.Progress,
			"total_items":  job.TotalItems,
			"current_item": job.CurrentItem,
			"error_count":  job.ErrorCount,
			"error":        job.Error,
			"metadata":     job.Metadata,
			"started_at":   job.StartedAt,
			"completed_at": job.CompletedAt,
			"updated_at":   now,
			"version":      gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return fmt.Errorf("update job %s: %w", job.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := r.Get(ctx, job.ID); err != nil {
			return err
		}
		return ErrVersionConflict
	}

	job.Version++
	job.UpdatedAt = now
	return nil
}

// Transition moves the job to next, stamping started/completed timestamps, and persists it.
func (r *Repository) Transition(ctx context.Context, job *entities.SyncJob, next entities.JobStatus) error {
	if !job.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, next)
	}

	now := r.now()
	switch next {
	case entities.JobStatusRunning:
		if job.StartedAt == nil {
			job.StartedAt = &now
		}
	case entities.JobStatusCompleted, entities.JobStatusFailed:
		job.CompletedAt = &now
	}
	job.Status = next
	return r.Update(ctx, job)
}

// Fail marks the job failed with errMsg. Jobs already in a terminal state are left alone.
func (r *Repository) Fail(ctx context.Context, job *entities.SyncJob, errMsg string) error {
	if job.Status.IsTerminal() {
		return nil
	}
	job.Error = errMsg
	return r.Transition(ctx, job, entities.JobStatusFailed)
}

// FindStuck returns running jobs started before cutoff. An empty
// organizationID matches every organization.
func (r *Repository) FindStuck(ctx context.Context, organizationID string, cutoff time.Time) ([]entities.SyncJob, error) {
	var stuck []entities.SyncJob
	query := r.db.WithContext(ctx).
		Where("status = ? AND started_at IS NOT NULL AND started_at < ?", entities.JobStatusRunning, cutoff)
	if organizationID != "" {
		query = query.Where("organization_id = ?", organizationID)
	}
	if err := query.Order("started_at ASC").Find(&stuck).Error; err != nil {
		return nil, fmt.Errorf("find stuck jobs: %w", err)
	}
	return stuck, nil
}

// ResetStuck moves a stuck job back to pending so it can be picked up again.
// The reset is conditional on the job still being running at the same version.
func (r *Repository) ResetStuck(ctx context.Context, job *entities.SyncJob, reason string) error {
	result := r.db.WithContext(ctx).Model(&entities.SyncJob{}).
		Where("id = ? AND version = ? AND status = ?", job.ID, job.Version, entities.JobStatusRunning).
		Updates(map[string]any{
			"status":     entities.JobStatusPending,
			"started_at": nil,
			"error":      reason,
			"updated_at": r.now(),
			"version":    gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return fmt.Errorf("reset job %s: %w", job.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}
	job.Status = entities.JobStatusPending
	job.StartedAt = nil
	job.Error = reason
	job.Version++
	return nil
}

// ListForOrganization returns the most recent jobs of an organization.
func (r *Repository) ListForOrganization(ctx context.Context, organizationID string, limit int) ([]entities.SyncJob, error) {
	var list []entities.SyncJob
	query := r.db.WithContext(ctx).Where("organization_id = ?", organizationID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&list).Error
	return list, err
}

// FindActive returns the running job of the given kind for an organization, if any.
func (r *Repository) FindActive(ctx context.Context, organizationID string, kind entities.JobKind) (*entities.SyncJob, error) {
	var job entities.SyncJob
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND kind = ? AND status = ?", organizationID, kind, entities.JobStatusRunning).
		Order("created_at DESC").
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}
