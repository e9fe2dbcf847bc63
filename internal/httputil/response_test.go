package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/lumacast/pairing-server-go/internal/errors"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]string{"code": "483"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"code":"483"`)
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", apperrors.NotFound("pairing session"), http.StatusNotFound, "NOT_FOUND"},
		{"already paired", apperrors.AlreadyPaired(), http.StatusConflict, "ALREADY_PAIRED"},
		{"invalid credentials", apperrors.InvalidCredentials("host"), http.StatusBadRequest, "INVALID_CREDENTIALS"},
		{"missing required", apperrors.MissingRequired("host"), http.StatusBadRequest, "MISSING_REQUIRED"},
		{"code space exhausted", apperrors.CodeSpaceExhausted(), http.StatusServiceUnavailable, "CODE_SPACE_EXHAUSTED"},
		{"rate limited", apperrors.RateLimitExceeded(), http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED"},
		{"external", apperrors.External("xtream", assert.AnError), http.StatusBadGateway, "EXTERNAL_SERVICE_ERROR"},
		{"plain error becomes internal", assert.AnError, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, tc.err)

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.wantCode)
		})
	}
}
