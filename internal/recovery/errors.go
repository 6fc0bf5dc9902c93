package recovery

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/mrlokans/webinarsync/internal/database"
	"github.com/mrlokans/webinarsync/internal/zoom"
)

// ErrorClass buckets failures by how a run reacts to them.
type ErrorClass string

const (
	// ClassTransient covers HTTP failures, rate limits and timeouts. The entity
	// fails; a later run may succeed.
	ClassTransient ErrorClass = "transient"
	// ClassCredential aborts the whole run: the account must be reconnected.
	ClassCredential ErrorClass = "credential"
	// ClassPartialData marks records rejected as invalid. Counted, never retried.
	ClassPartialData ErrorClass = "partial_data"
	// ClassFatal is anything else that stops a run (e.g. organization lookup failure).
	ClassFatal ErrorClass = "fatal"
)

var (
	// ErrCredentials is returned by a run aborted on an authentication problem.
	ErrCredentials = errors.New("webinar platform credentials are invalid or missing")

	// ErrInvalidRecord marks an upstream record rejected during reconciliation.
	ErrInvalidRecord = errors.New("invalid upstream record")

	// ErrOrganizationRequired is returned when a run is requested without an organization.
	ErrOrganizationRequired = errors.New("organization_id is required")

	// ErrUnsupportedKind is returned for job kinds the orchestrator cannot drive.
	ErrUnsupportedKind = errors.New("unsupported recovery kind")
)

// Classify maps an error onto the recovery error taxonomy.
func Classify(err error) ErrorClass {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrCredentials) || zoom.IsAuthError(err) || errors.Is(err, database.ErrConnectionNotFound) {
		return ClassCredential
	}
	if errors.Is(err, ErrInvalidRecord) {
		return ClassPartialData
	}
	if errors.Is(err, zoom.ErrRateLimited) || errors.Is(err, zoom.ErrNotFound) ||
		errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}
	var serverErr *zoom.ServerError
	var statusErr *zoom.StatusError
	var netErr net.Error
	if errors.As(err, &serverErr) || errors.As(err, &statusErr) || errors.As(err, &netErr) {
		return ClassTransient
	}
	if strings.Contains(err.Error(), "request failed") {
		return ClassTransient
	}
	return ClassFatal
}

// UserMessage turns a run-level error into the notification shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch Classify(err) {
	case ClassCredential:
		return "Your webinar platform connection has expired or is missing. Please reconnect your account and try again."
	case ClassTransient:
		if errors.Is(err, zoom.ErrRateLimited) {
			return "The webinar platform is rate limiting requests. Please wait a few minutes and run recovery again."
		}
		return "The webinar platform could not be reached. Please try again: " + err.Error()
	case ClassPartialData:
		return "Some records were rejected as invalid: " + err.Error()
	}
	return "Recovery failed: " + err.Error()
}
