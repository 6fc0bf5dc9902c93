package entities

import (
	"time"
)

// Webinar is a past webinar known for an organization. ExternalID is the
// upstream webinar id; rows without one cannot be recovered.
type Webinar struct {
	ID              uint          `gorm:"primaryKey" json:"id"`
	OrganizationID  string        `gorm:"index;size:64;uniqueIndex:idx_org_external" json:"organization_id"`
	ExternalID      string        `gorm:"size:64;uniqueIndex:idx_org_external" json:"external_id"`
	UUID            string        `gorm:"size:128" json:"uuid,omitempty"`
	Title           string        `gorm:"size:512" json:"title"`
	StartTime       time.Time     `json:"start_time"`
	Duration        int           `json:"duration"`
	RegistrantCount int           `json:"registrant_count"`
	AttendeeCount   int           `json:"attendee_count"`
	LastSyncedAt    *time.Time    `json:"last_synced_at,omitempty"`
	Participants    []Participant `gorm:"foreignKey:WebinarID" json:"participants,omitempty"`
	Registrants     []Registrant  `gorm:"foreignKey:WebinarID" json:"registrants,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func (Webinar) TableName() string {
	return "webinars"
}

// Participant is one attendance session reported upstream. ExternalKey is
// derived from the upstream participant id and join time so that repeated
// fetches of the same page reconcile onto the same row.
type Participant struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	WebinarID     uint       `gorm:"uniqueIndex:idx_participant_key" json:"webinar_id"`
	ExternalKey   string     `gorm:"size:255;uniqueIndex:idx_participant_key" json:"external_key"`
	ParticipantID string     `gorm:"size:128" json:"participant_id"`
	Name          string     `gorm:"size:255" json:"name"`
	Email         string     `gorm:"index;size:255" json:"email"`
	JoinTime      time.Time  `json:"join_time"`
	LeaveTime     *time.Time `json:"leave_time,omitempty"`
	Duration      int        `json:"duration"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (Participant) TableName() string {
	return "webinar_participants"
}

type Registrant struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	WebinarID    uint      `gorm:"uniqueIndex:idx_registrant_key" json:"webinar_id"`
	ExternalKey  string    `gorm:"size:255;uniqueIndex:idx_registrant_key" json:"external_key"`
	Email        string    `gorm:"index;size:255" json:"email"`
	FirstName    string    `gorm:"size:255" json:"first_name"`
	LastName     string    `gorm:"size:255" json:"last_name"`
	Status       string    `gorm:"size:32" json:"status"`
	RegisteredAt time.Time `json:"registered_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Registrant) TableName() string {
	return "webinar_registrants"
}
