package entities

import (
	"time"
)

// Connection holds the upstream account credentials of an organization.
// Credentials are exchanged for short-lived bearer tokens by the zoom client.
type Connection struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	OrganizationID string     `gorm:"uniqueIndex;size:64" json:"organization_id"`
	AccountID      string     `gorm:"size:128;not null" json:"account_id"`
	ClientID       string     `gorm:"size:128;not null" json:"client_id"`
	ClientSecret   string     `gorm:"type:text;not null" json:"-"`
	LastSyncAt     *time.Time `json:"last_sync_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (Connection) TableName() string {
	return "platform_connections"
}
