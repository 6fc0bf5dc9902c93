// Package interfaces documents the core abstractions used throughout the application.
//
// # Interface Categories
//
// ## Data Access Interfaces
//
//   - JobStore: sync job persistence with optimistic versioning (internal/recovery/orchestrator.go)
//   - StuckJobStore: stuck job selection and reset (internal/recovery/sweep.go)
//   - WebinarLister: recoverable webinars with stored counts (internal/recovery/orchestrator.go)
//   - ParticipantStore, RegistrantStore: idempotent upserts (internal/recovery/reconcile.go)
//
// ## Upstream Interfaces
//
//   - CredentialChecker: verifies an organization's connection (internal/recovery/orchestrator.go)
//   - ParticipantSource, RegistrantSource, WebinarSource: paginated list endpoints
//   - Tokens: bearer token per organization (internal/zoom/client.go)
//
// ## Work Interfaces
//
//   - Recoverer: recovers one webinar (internal/recovery/reconcile.go)
//   - ChunkProcessor: runs one chunk of a mass resync (internal/chunked/driver.go)
//   - TaskEnqueuer: hands work to the background queue (internal/http/stores.go)
//
// # Adding a New Recovery Kind
//
// Add the JobKind and its metadata variant in internal/entities/, then implement
// Recoverer in internal/recovery/:
//
//	type RecordingRecoverer struct {
//		source RecordingSource
//		store  RecordingStore
//		walker *pagination.Walker
//	}
//
//	func (r *RecordingRecoverer) Recover(ctx context.Context, organizationID string, target Target) (Result, error)
//
// Add its compile-time check to checks.go:
//
//	var _ recovery.Recoverer = (*recovery.RecordingRecoverer)(nil)
//
// Register it with the orchestrator in internal/entrypoint/services.go:
//
//	orchestrator.Register(entities.JobKindRecordingRecovery, recordings)
//
// See checks.go for the compile-time checks of every implementation.
package interfaces
