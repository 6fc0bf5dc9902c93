package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/webinarsync/internal/entities"
)

const upsertBatchSize = 100

// WebinarStats is a webinar together with how many rows are stored locally.
type WebinarStats struct {
	entities.Webinar
	StoredParticipants int
	StoredRegistrants  int
}

// SaveWebinar creates or updates a webinar keyed by (organization_id, external_id).
func (d *Database) SaveWebinar(ctx context.Context, webinar *entities.Webinar) error {
	return d.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "organization_id"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"uuid", "title", "start_time", "duration", "registrant_count", "attendee_count", "updated_at",
		}),
	}).Create(webinar).Error
}

// GetWebinar returns a webinar by id.
func (d *Database) GetWebinar(ctx context.Context, id uint) (*entities.Webinar, error) {
	var webinar entities.Webinar
	if err := d.DB.WithContext(ctx).First(&webinar, id).Error; err != nil {
		return nil, err
	}
	return &webinar, nil
}

// ListWebinarsForRecovery returns the organization's webinars that have an
// upstream id, along with their locally stored record counts. When ids is not
// empty the result is restricted to those webinars.
func (d *Database) ListWebinarsForRecovery(ctx context.Context, organizationID string, ids []uint) ([]WebinarStats, error) {
	var webinars []entities.Webinar
	query := d.DB.WithContext(ctx).
		Where("organization_id = ? AND external_id <> ''", organizationID).
		Order("start_time DESC")
	if len(ids) > 0 {
		query = query.Where("id IN ?", ids)
	}
	if err := query.Find(&webinars).Error; err != nil {
		return nil, fmt.Errorf("list webinars: %w", err)
	}

	participants, err := d.countBy(ctx, &entities.Participant{}, webinars)
	if err != nil {
		return nil, fmt.Errorf("count participants: %w", err)
	}
	registrants, err := d.countBy(ctx, &entities.Registrant{}, webinars)
	if err != nil {
		return nil, fmt.Errorf("count registrants: %w", err)
	}

	stats := make([]WebinarStats, 0, len(webinars))
	for _, w := range webinars {
		stats = append(stats, WebinarStats{
			Webinar:            w,
			StoredParticipants: participants[w.ID],
			StoredRegistrants:  registrants[w.ID],
		})
	}
	return stats, nil
}

func (d *Database) countBy(ctx context.Context, model any, webinars []entities.Webinar) (map[uint]int, error) {
	counts := make(map[uint]int, len(webinars))
	if len(webinars) == 0 {
		return counts, nil
	}
	ids := make([]uint, 0, len(webinars))
	for _, w := range webinars {
		ids = append(ids, w.ID)
	}

	var rows []struct {
		WebinarID uint
		Total     int
	}
	err := d.DB.WithContext(ctx).Model(model).
		Select("webinar_id, COUNT(*) AS total").
		Where("webinar_id IN ?", ids).
		Group("webinar_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		counts[r.WebinarID] = r.Total
	}
	return counts, nil
}

// UpsertParticipants reconciles participants for a webinar and returns how many
// rows were written. Re-sending the same participants updates rows in place.
func (d *Database) UpsertParticipants(ctx context.Context, webinarID uint, participants []entities.Participant) (int, error) {
	if len(participants) == 0 {
		return 0, nil
	}
	for i := range participants {
		participants[i].WebinarID = webinarID
	}

	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "webinar_id"}, {Name: "external_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "email", "leave_time", "duration", "updated_at"}),
		}).CreateInBatches(participants, upsertBatchSize).Error
		if err != nil {
			return err
		}
		return touchWebinar(tx, webinarID)
	})
	if err != nil {
		return 0, fmt.Errorf("upsert participants for webinar %d: %w", webinarID, err)
	}
	return len(participants), nil
}

// UpsertRegistrants reconciles registrants for a webinar and returns how many rows were written.
func (d *Database) UpsertRegistrants(ctx context.Context, webinarID uint, registrants []entities.Registrant) (int, error) {
	if len(registrants) == 0 {
		return 0, nil
	}
	for i := range registrants {
		registrants[i].WebinarID = webinarID
	}

	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "webinar_id"}, {Name: "external_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"email", "first_name", "last_name", "status", "updated_at"}),
		}).CreateInBatches(registrants, upsertBatchSize).Error
		if err != nil {
			return err
		}
		if err := raiseRegistrantCount(tx, webinarID); err != nil {
			return err
		}
		return touchWebinar(tx, webinarID)
	})
	if err != nil {
		return 0, fmt.Errorf("upsert registrants for webinar %d: %w", webinarID, err)
	}
	return len(registrants), nil
}

// CountParticipants returns the number of stored participants of a webinar.
func (d *Database) CountParticipants(ctx context.Context, webinarID uint) (int, error) {
	var total int64
	err := d.DB.WithContext(ctx).Model(&entities.Participant{}).Where("webinar_id = ?", webinarID).Count(&total).Error
	return int(total), err
}

// CountRegistrants returns the number of stored registrants of a webinar.
func (d *Database) CountRegistrants(ctx context.Context, webinarID uint) (int, error) {
	var total int64
	err := d.DB.WithContext(ctx).Model(&entities.Registrant{}).Where("webinar_id = ?", webinarID).Count(&total).Error
	return int(total), err
}

func touchWebinar(tx *gorm.DB, webinarID uint) error {
	return tx.Model(&entities.Webinar{}).Where("id = ?", webinarID).Update("last_synced_at", time.Now()).Error
}

// raiseRegistrantCount lifts registrant_count to the number of stored
// registrants. A higher count reported upstream is kept.
func raiseRegistrantCount(tx *gorm.DB, webinarID uint) error {
	var stored int64
	if err := tx.Model(&entities.Registrant{}).Where("webinar_id = ?", webinarID).Count(&stored).Error; err != nil {
		return err
	}
	return tx.Model(&entities.Webinar{}).Where("id = ?", webinarID).
		Update("registrant_count", gorm.Expr("MAX(registrant_count, ?)", stored)).Error
}

// UpsertDiscoveredWebinars stores webinars found upstream. Existing rows keep
// their registrant and attendee counts. Returns the number of rows written.
func (d *Database) UpsertDiscoveredWebinars(ctx context.Context, webinars []entities.Webinar) (int, error) {
	if len(webinars) == 0 {
		return 0, nil
	}
	err := d.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "organization_id"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"uuid", "title", "start_time", "duration", "updated_at"}),
	}).CreateInBatches(&webinars, upsertBatchSize).Error
	if err != nil {
		return 0, fmt.Errorf("upsert webinars: %w", err)
	}
	return len(webinars), nil
}
