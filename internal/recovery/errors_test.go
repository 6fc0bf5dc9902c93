package recovery

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mrlokans/webinarsync/internal/database"
	"github.com/mrlokans/webinarsync/internal/zoom"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"nil", nil, ""},
		{"invalid token", fmt.Errorf("list: %w", zoom.ErrInvalidToken), ClassCredential},
		{"missing connection", zoom.ErrMissingConnection, ClassCredential},
		{"no stored connection", database.ErrConnectionNotFound, ClassCredential},
		{"wrapped credentials", fmt.Errorf("%w: expired", ErrCredentials), ClassCredential},
		{"rate limited", fmt.Errorf("fetch page 2: %w", zoom.ErrRateLimited), ClassTransient},
		{"server error", &zoom.ServerError{StatusCode: 502}, ClassTransient},
		{"status error", &zoom.StatusError{StatusCode: 409, Body: "conflict"}, ClassTransient},
		{"deadline", context.DeadlineExceeded, ClassTransient},
		{"invalid record", fmt.Errorf("%w: bad email", ErrInvalidRecord), ClassPartialData},
		{"unknown", errors.New("organization lookup failed"), ClassFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestUserMessage(t *testing.T) {
	assert.Empty(t, UserMessage(nil))
	assert.Contains(t, UserMessage(fmt.Errorf("%w: token revoked", ErrCredentials)), "reconnect your account")
	assert.Contains(t, UserMessage(zoom.ErrRateLimited), "rate limiting")
	assert.Contains(t, UserMessage(&zoom.ServerError{StatusCode: 503}), "could not be reached")
	assert.Contains(t, UserMessage(errors.New("disk full")), "Recovery failed: disk full")
}
