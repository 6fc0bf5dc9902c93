// Package database provides the data access layer for the application.
//
// # Architecture
//
//	database/
//	├── database.go      # Connection setup, migrations
//	├── webinars.go      # Webinar discovery and idempotent participant/registrant upserts
//	├── connections.go   # Upstream account credentials per organization
//	└── jobs/            # SyncJob persistence (create, update-by-id, stuck-job selection)
//
// # Reconciliation
//
// Participants and registrants are keyed by (webinar_id, external_key) and written
// with ON CONFLICT DO UPDATE, so storing the same upstream page twice leaves the
// row count unchanged:
//
//	db, err := database.NewDatabase("./webinarsync.db")
//	stored, err := db.UpsertParticipants(ctx, webinarID, participants)
//
// # Adding a New Domain
//
//  1. Create a new sub-package: internal/database/<domain>/
//  2. Define a Repository struct with a *gorm.DB field
//  3. Add NewRepository(db *gorm.DB) constructor
//  4. Add compile-time interface check: var _ SomeInterface = (*Repository)(nil)
package database
