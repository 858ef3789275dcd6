package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/draftmill/internal/domain"
)

func TestWriteDomainErrorMapping(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		message string
	}{
		{fmt.Errorf("%w: topic is required", domain.ErrValidation), http.StatusBadRequest, "validation failed: topic is required"},
		{domain.ErrInvalidCredentials, http.StatusUnauthorized, "invalid credentials"},
		{domain.ErrPermissionDenied, http.StatusForbidden, "access denied"},
		{domain.ErrLastAdmin, http.StatusConflict, "cannot remove the last active admin"},
		{domain.ErrNotFound, http.StatusNotFound, "not found"},
		{domain.ErrRateLimited, http.StatusTooManyRequests, "too many attempts"},
		{errors.New("driver: bad connection"), http.StatusInternalServerError, "internal error"},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeDomainError(rec, tc.err)

		assert.Equal(t, tc.status, rec.Code, "error %v", tc.err)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, tc.message, body["error"], "error %v", tc.err)
	}
}

func TestWriteDomainErrorNeverLeaksInternals(t *testing.T) {
	rec := httptest.NewRecorder()
	writeDomainError(rec, errors.New("pq: password authentication failed for user postgres"))

	assert.NotContains(t, rec.Body.String(), "postgres")
	assert.Contains(t, rec.Body.String(), "internal error")
}

func TestRequestMeta(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.10:54321"
	r.Header.Set("User-Agent", "draftmill-cli/1.0")

	meta := requestMeta(r)
	assert.Equal(t, "192.0.2.10", meta.IPAddress)
	assert.Equal(t, "draftmill-cli/1.0", meta.UserAgent)

	// A proxy chain wins over the socket address; only the first hop counts.
	r.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	meta = requestMeta(r)
	assert.Equal(t, "203.0.113.5", meta.IPAddress)
}
