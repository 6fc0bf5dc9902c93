package recovery

import (
	"math"
	"sort"

	"github.com/mrlokans/webinarsync/internal/database"
	"github.com/mrlokans/webinarsync/internal/entities"
)

const (
	// AttendanceRate is the assumed share of registrants that attend a webinar.
	AttendanceRate = 0.4

	expectedGrowthFactor = 1.5
	expectedFloor        = 10
)

// Target is a webinar selected for recovery together with its gap estimate.
type Target struct {
	WebinarID   uint
	ExternalID  string
	Title       string
	Stored      int
	Registrants int
	Expected    int
	GapPercent  float64
}

// EstimateExpected guesses how many records a webinar should have. The
// registrant count is used as the baseline when known; otherwise the current
// count is scaled up with a floor. This only drives ordering, never correctness.
func EstimateExpected(stored, registrants int) int {
	if registrants > 0 {
		return registrants
	}
	grown := int(math.Ceil(float64(stored) * expectedGrowthFactor))
	if grown < expectedFloor {
		return expectedFloor
	}
	return grown
}

// GapPercent is (expected-stored)/expected clamped to [0,1].
func GapPercent(stored, expected int) float64 {
	if expected <= 0 {
		return 0
	}
	gap := float64(expected-stored) / float64(expected)
	if gap < 0 {
		return 0
	}
	if gap > 1 {
		return 1
	}
	return gap
}

// NewTarget builds a target from stored counts for the given recovery kind.
// For attendee recovery, stored registrants stand in for a lower registrant count.
func NewTarget(w database.WebinarStats, kind entities.JobKind) Target {
	stored := w.StoredParticipants
	registrants := max(w.RegistrantCount, w.StoredRegistrants)
	if kind == entities.JobKindRegistrationRecovery {
		stored = w.StoredRegistrants
		// A count no higher than what is stored says nothing about missing registrations.
		if w.RegistrantCount <= stored {
			registrants = 0
		}
	}
	expected := EstimateExpected(stored, registrants)
	return Target{
		WebinarID:   w.ID,
		ExternalID:  w.ExternalID,
		Title:       w.Title,
		Stored:      stored,
		Registrants: registrants,
		Expected:    expected,
		GapPercent:  GapPercent(stored, expected),
	}
}

// Prioritize orders targets: webinars with nothing stored first, then by
// descending gap percentage. Ties keep webinar id order.
func Prioritize(targets []Target) []Target {
	ordered := make([]Target, len(targets))
	copy(ordered, targets)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if (a.Stored == 0) != (b.Stored == 0) {
			return a.Stored == 0
		}
		if a.GapPercent != b.GapPercent {
			return a.GapPercent > b.GapPercent
		}
		return a.WebinarID < b.WebinarID
	})
	return ordered
}
