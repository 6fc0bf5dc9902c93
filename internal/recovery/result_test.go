package recovery

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummary_DataRecoveryRate(t *testing.T) {
	tests := []struct {
		name   string
		found  int
		stored int
		want   int
	}{
		{"three quarters", 200, 150, 75},
		{"nothing found", 0, 0, 0},
		{"everything stored", 40, 40, 100},
		{"rounds to nearest", 3, 2, 67},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Summary{TotalFound: tt.found, TotalStored: tt.stored}
			assert.Equal(t, tt.want, s.DataRecoveryRate())
		})
	}
}

func TestSummarize(t *testing.T) {
	results := []Result{
		{WebinarID: 1, Found: 10, Stored: 9, Rejected: 1, Success: true},
		{WebinarID: 2, Found: 5, Stored: 5, Success: true},
		failedResult(Target{WebinarID: 3}, errors.New("upstream down"), Result{Found: 2}),
	}

	s := Summarize(results)

	assert.Equal(t, 3, s.TotalWebinars)
	assert.Equal(t, 17, s.TotalFound)
	assert.Equal(t, 14, s.TotalStored)
	assert.Equal(t, 1, s.TotalRejected)
	assert.Equal(t, 1, s.TotalErrors)
	assert.Equal(t, 2, s.Successful)
	assert.Equal(t, 1, s.Failed)
	assert.Contains(t, s.Message(), "Recovered 14 records across 2 webinars")
	assert.Contains(t, s.Message(), "1 webinars failed")
}

func TestSummary_MessageForEmptyRun(t *testing.T) {
	var s Summary
	assert.Equal(t, "Recovered 0 records across 0 webinars (0 found, 0% recovery rate)", s.Message())
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0, Percentage(0, 0))
	assert.Equal(t, 0, Percentage(5, 0))
	assert.Equal(t, 33, Percentage(1, 3))
	assert.Equal(t, 100, Percentage(3, 3))
	assert.Equal(t, 100, Percentage(4, 3))
}

func TestFailedResult_KeepsPartialCounts(t *testing.T) {
	target := Target{WebinarID: 7, ExternalID: "ext-7", Title: "Launch"}
	err := errors.New("store participants: disk full")

	r := failedResult(target, err, Result{Found: 300, Stored: 120, Pages: 1})

	assert.False(t, r.Success)
	assert.Equal(t, 300, r.Found)
	assert.Equal(t, 120, r.Stored)
	assert.Equal(t, 1, r.Errors)
	assert.Equal(t, uint(7), r.WebinarID)
	assert.ErrorIs(t, r.Err(), err)
	assert.Contains(t, r.LogLine(), "✗ Launch (ext-7)")
}
