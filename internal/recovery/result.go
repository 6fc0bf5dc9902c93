package recovery

import (
	"fmt"
	"math"

	"github.com/mrlokans/webinarsync/internal/zoom"
)

// Result is the outcome of recovering one webinar. It is created once per
// webinar per pass and not modified after being added to a Summary.
type Result struct {
	WebinarID  uint          `json:"webinar_id"`
	ExternalID string        `json:"external_id"`
	Title      string        `json:"title"`
	Found      int           `json:"found"`
	Stored     int           `json:"stored"`
	Errors     int           `json:"errors"`
	Rejected   int           `json:"rejected"`
	Expected   int           `json:"expected,omitempty"`
	Success    bool          `json:"success"`
	Message    string        `json:"message,omitempty"`
	Class      ErrorClass    `json:"error_class,omitempty"`
	Strategy   zoom.Endpoint `json:"strategy,omitempty"`
	Pages      int           `json:"pages"`
	Truncated  bool          `json:"truncated,omitempty"`

	err error
}

// Err returns the underlying error of a failed result.
func (r Result) Err() error {
	return r.err
}

// LogLine renders the per-webinar line emitted after each batch.
func (r Result) LogLine() string {
	if !r.Success {
		return fmt.Sprintf("✗ %s (%s): %s", r.Title, r.ExternalID, r.Message)
	}
	line := fmt.Sprintf("✓ %s (%s): found %d, stored %d", r.Title, r.ExternalID, r.Found, r.Stored)
	if r.Rejected > 0 {
		line += fmt.Sprintf(", rejected %d", r.Rejected)
	}
	if r.Strategy != "" {
		line += fmt.Sprintf(" via %s", r.Strategy)
	}
	return line
}

// failedResult marks an entity failed, keeping whatever partial counts the
// recoverer reported before the error.
func failedResult(target Target, err error, partial Result) Result {
	r := partial
	r.WebinarID = target.WebinarID
	r.ExternalID = target.ExternalID
	r.Title = target.Title
	r.Errors++
	r.Success = false
	r.Message = err.Error()
	r.Class = Classify(err)
	r.err = err
	return r
}

// Summary aggregates the results of a recovery pass.
type Summary struct {
	TotalWebinars int `json:"total_webinars"`
	TotalFound    int `json:"total_found"`
	TotalStored   int `json:"total_stored"`
	TotalErrors   int `json:"total_errors"`
	TotalRejected int `json:"total_rejected"`
	Successful    int `json:"successful"`
	Failed        int `json:"failed"`
}

// Add folds one result into the summary.
func (s *Summary) Add(r Result) {
	s.TotalWebinars++
	s.TotalFound += r.Found
	s.TotalStored += r.Stored
	s.TotalErrors += r.Errors
	s.TotalRejected += r.Rejected
	if r.Success {
		s.Successful++
	} else {
		s.Failed++
	}
}

// Summarize builds a summary over results.
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		s.Add(r)
	}
	return s
}

// DataRecoveryRate is stored/found as a rounded percentage; 0 when nothing was found.
func (s Summary) DataRecoveryRate() int {
	return Percentage(s.TotalStored, s.TotalFound)
}

// Message reports the outcome, always including counts so an empty run is
// distinguishable from one that never ran.
func (s Summary) Message() string {
	msg := fmt.Sprintf("Recovered %d records across %d webinars (%d found, %d%% recovery rate)",
		s.TotalStored, s.Successful, s.TotalFound, s.DataRecoveryRate())
	if s.Failed > 0 {
		msg += fmt.Sprintf("; %d webinars failed", s.Failed)
	}
	return msg
}

// Percentage returns round(part/total*100) clamped to [0,100], or 0 when total is 0.
func Percentage(part, total int) int {
	if total <= 0 || part <= 0 {
		return 0
	}
	p := int(math.Round(float64(part) / float64(total) * 100))
	if p > 100 {
		return 100
	}
	return p
}
