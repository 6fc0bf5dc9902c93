// Package recovery re-fetches webinar participant and registrant data from the
// upstream platform and reconciles it into the local store.
//
// A run sweeps stuck jobs, checks credentials, orders webinars by how much
// data they are missing and then works through them in small batches with a
// pause between batches. Webinars inside a batch are recovered concurrently
// and fail independently; credential problems abort the whole run.
//
// # Usage
//
//	orch := recovery.NewOrchestrator(jobsRepo, db, zoomClient, recovery.DefaultConfig())
//	orch.Register(entities.JobKindAttendeeRecovery, recovery.NewParticipantRecoverer(zoomClient, db, walker))
//	out, err := orch.Run(ctx, recovery.RunRequest{OrganizationID: "org-1", Kind: entities.JobKindAttendeeRecovery})
package recovery
