package recovery

import (
	"errors"
	"fmt"

	"github.com/samber/lo"

	"github.com/mrlokans/webinarsync/internal/zoom"
)

// Diagnostics explains a finished run and suggests what to do next.
type Diagnostics struct {
	DataRecoveryRate int      `json:"data_recovery_rate"`
	Recommendations  []string `json:"recommendations"`
	RetryWebinarIDs  []uint   `json:"retry_webinar_ids,omitempty"`
}

// Diagnose inspects the results of a run.
func Diagnose(summary Summary, results []Result) Diagnostics {
	d := Diagnostics{DataRecoveryRate: summary.DataRecoveryRate()}

	failed := lo.Filter(results, func(r Result, _ int) bool { return !r.Success })
	d.RetryWebinarIDs = lo.Map(failed, func(r Result, _ int) uint { return r.WebinarID })

	credential := lo.CountBy(failed, func(r Result) bool { return r.Class == ClassCredential })
	if credential > 0 {
		d.Recommendations = append(d.Recommendations,
			"Reconnect your webinar platform account; the stored credentials were rejected.")
	}

	rateLimited := lo.CountBy(failed, func(r Result) bool { return errors.Is(r.err, zoom.ErrRateLimited) })
	if rateLimited > 0 {
		d.Recommendations = append(d.Recommendations,
			fmt.Sprintf("%d webinars hit upstream rate limits; retry them later.", rateLimited))
	}

	if other := len(failed) - credential - rateLimited; other > 0 {
		d.Recommendations = append(d.Recommendations,
			fmt.Sprintf("%d webinars failed; rerun recovery for the listed webinar ids.", other))
	}

	if summary.TotalRejected > 0 {
		d.Recommendations = append(d.Recommendations,
			fmt.Sprintf("%d records were rejected as invalid (malformed email or automated attendee).", summary.TotalRejected))
	}

	empty := lo.CountBy(results, func(r Result) bool { return r.Success && r.Found == 0 })
	if empty > 0 {
		d.Recommendations = append(d.Recommendations,
			fmt.Sprintf("%d webinars returned no upstream data; their reports may have expired.", empty))
	}

	short := lo.CountBy(results, func(r Result) bool { return r.Success && r.Expected > 0 && r.Found*2 < r.Expected })
	if short > 0 {
		d.Recommendations = append(d.Recommendations,
			fmt.Sprintf("%d webinars reported far fewer attendees than their registrations suggest.", short))
	}

	truncated := lo.CountBy(results, func(r Result) bool { return r.Truncated })
	if truncated > 0 {
		d.Recommendations = append(d.Recommendations,
			fmt.Sprintf("%d webinars have more pages than one run fetches; run recovery again to continue.", truncated))
	}

	if summary.TotalFound > 0 && d.DataRecoveryRate < 50 {
		d.Recommendations = append(d.Recommendations,
			"Less than half of the upstream records were stored; check the rejected counts.")
	}
	return d
}

// ExpectedAttendees estimates attendance from registrations.
func ExpectedAttendees(registrants int) int {
	return int(float64(registrants)*AttendanceRate + 0.5)
}
