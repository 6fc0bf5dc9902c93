package entities

import (
	"time"
)

type JobKind string

const (
	JobKindMassResync           JobKind = "mass_resync"
	JobKindAttendeeRecovery     JobKind = "attendee_recovery"
	JobKindRegistrationRecovery JobKind = "registration_recovery"
)

func (k JobKind) Valid() bool {
	switch k {
	case JobKindMassResync, JobKindAttendeeRecovery, JobKindRegistrationRecovery:
		return true
	}
	return false
}

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether no further transitions are expected.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransitionTo enforces pending -> running -> {completed|failed}.
// Resetting a stuck job back to pending is not a regular transition and is
// done by the jobs repository directly.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusRunning || next == JobStatusFailed
	case JobStatusRunning:
		return next == JobStatusRunning || next == JobStatusCompleted || next == JobStatusFailed
	}
	return false
}

// DefaultStuckThreshold is how long a job may stay running before the sweep resets it.
const DefaultStuckThreshold = 30 * time.Minute

type SyncJob struct {
	ID             string      `gorm:"primaryKey;size:36" json:"id"`
	OrganizationID string      `gorm:"index;size:64" json:"organization_id"`
	UserID         string      `gorm:"size:64" json:"user_id"`
	Kind           JobKind     `gorm:"index;size:50" json:"kind"`
	Status         JobStatus   `gorm:"index;size:20" json:"status"`
	Progress       int         `json:"progress"`
	TotalItems     int         `json:"total_items"`
	CurrentItem    int         `json:"current_item"`
	ErrorCount     int         `json:"error_count"`
	Error          string      `gorm:"type:text" json:"error,omitempty"`
	Metadata       JobMetadata `gorm:"type:text" json:"metadata"`
	Version        int         `gorm:"not null;default:1" json:"version"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	StartedAt      *time.Time  `gorm:"index" json:"started_at,omitempty"`
	CompletedAt    *time.Time  `json:"completed_at,omitempty"`
}

func (SyncJob) TableName() string {
	return "sync_jobs"
}

// IsStuck reports whether the job is running but was started longer ago than threshold.
func (j *SyncJob) IsStuck(now time.Time, threshold time.Duration) bool {
	if j.Status != JobStatusRunning || j.StartedAt == nil {
		return false
	}
	return j.StartedAt.Before(now.Add(-threshold))
}
