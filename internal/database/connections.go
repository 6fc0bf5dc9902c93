package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/webinarsync/internal/entities"
)

// ErrConnectionNotFound is returned when an organization has no upstream account connected.
var ErrConnectionNotFound = errors.New("no platform connection for organization")

// GetConnection returns the upstream credentials for an organization.
func (d *Database) GetConnection(ctx context.Context, organizationID string) (*entities.Connection, error) {
	var conn entities.Connection
	err := d.DB.WithContext(ctx).Where("organization_id = ?", organizationID).First(&conn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrConnectionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

// SaveConnection creates or replaces the credentials of an organization.
func (d *Database) SaveConnection(ctx context.Context, conn *entities.Connection) error {
	return d.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "organization_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"account_id", "client_id", "client_secret", "updated_at"}),
	}).Create(conn).Error
}

// TouchConnection records the time of the last successful sync.
func (d *Database) TouchConnection(ctx context.Context, organizationID string, at time.Time) error {
	return d.DB.WithContext(ctx).Model(&entities.Connection{}).
		Where("organization_id = ?", organizationID).
		Update("last_sync_at", at).Error
}
