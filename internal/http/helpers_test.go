package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/webinarsync/internal/chunked"
	"github.com/mrlokans/webinarsync/internal/database/jobs"
	"github.com/mrlokans/webinarsync/internal/recovery"
	"github.com/mrlokans/webinarsync/internal/zoom"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"missing organization", recovery.ErrOrganizationRequired, http.StatusBadRequest},
		{"unsupported kind", fmt.Errorf("%w: %q", recovery.ErrUnsupportedKind, "x"), http.StatusBadRequest},
		{"chunk out of range", chunked.ErrChunkOutOfRange, http.StatusBadRequest},
		{"unknown job", jobs.ErrJobNotFound, http.StatusNotFound},
		{"chunk out of order", fmt.Errorf("%w: got 3, expected 1", chunked.ErrChunkOutOfOrder), http.StatusConflict},
		{"concurrent update", jobs.ErrVersionConflict, http.StatusConflict},
		{"chunk in progress", fmt.Errorf("%w: chunk 0", chunked.ErrChunkInProgress), http.StatusConflict},
		{"credentials", fmt.Errorf("%w: token rejected", recovery.ErrCredentials), http.StatusFailedDependency},
		{"rate limited", zoom.ErrRateLimited, http.StatusBadGateway},
		{"anything else", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusForError(tt.err))
		})
	}
}

func TestRespondRecoveryError(t *testing.T) {
	t.Run("credential errors get the reconnect message", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		respondRecoveryError(c, fmt.Errorf("%w: token rejected", recovery.ErrCredentials), nil)

		assert.Equal(t, http.StatusFailedDependency, w.Code)
		var body ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Contains(t, body.Error, "reconnect your account")
		assert.Equal(t, string(recovery.ClassCredential), body.Code)
	})

	t.Run("validation errors keep their message", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		respondRecoveryError(c, recovery.ErrOrganizationRequired, nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "organization_id is required")
		assert.NotContains(t, w.Body.String(), "details")
	})
}
