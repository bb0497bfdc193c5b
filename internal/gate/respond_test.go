package gate

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inferd/pkg/types"
)

func writeAndDecode(t *testing.T, err error) (int, types.ErrorResponse, string) {
	t.Helper()
	var logBuf bytes.Buffer
	log := zerolog.New(&logBuf)
	rec := httptest.NewRecorder()
	WriteFailure(rec, log, "test_op", err)

	var body types.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	return rec.Code, body, logBuf.String()
}

func TestWriteFailureValidation(t *testing.T) {
	status, body, _ := writeAndDecode(t, NewValidationError("temperature must be between 0.0 and 2.0", "temperature"))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", body.Error.Type)
	assert.Equal(t, "VALIDATION_FAILED", body.Error.Code)
	assert.Equal(t, "temperature", body.Error.Field)
	assert.Equal(t, "temperature must be between 0.0 and 2.0", body.Error.Message)
}

func TestWriteFailureValidationOmitsEmptyField(t *testing.T) {
	var logBuf bytes.Buffer
	rec := httptest.NewRecorder()
	WriteFailure(rec, zerolog.New(&logBuf), "test_op", NewValidationError("Missing required fields: messages", ""))
	assert.NotContains(t, rec.Body.String(), `"field"`)
}

func TestWriteFailureSecurityGenericizesMessage(t *testing.T) {
	status, body, logged := writeAndDecode(t, NewSecurityError("Dangerous pattern detected: <script"))
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "security_error", body.Error.Type)
	assert.Equal(t, "SECURITY_ERROR", body.Error.Code)
	assert.Equal(t, "Security violation detected", body.Error.Message)
	// The matched pattern is logged but never returned.
	assert.Contains(t, logged, "Dangerous pattern detected")
	assert.NotContains(t, body.Error.Message, "script")
}

func TestWriteFailureResource(t *testing.T) {
	status, body, _ := writeAndDecode(t, NewResourceError("Too many concurrent requests", "compute"))
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "resource_error", body.Error.Type)
	assert.Equal(t, "RESOURCE_UNAVAILABLE", body.Error.Code)
	assert.Equal(t, "compute", body.Error.ResourceType)
	assert.Equal(t, "Too many concurrent requests", body.Error.Message)
}

func TestWriteFailureMalformed(t *testing.T) {
	status, body, _ := writeAndDecode(t, NewMalformedError("Invalid JSON format"))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "bad_request", body.Error.Type)
	assert.Equal(t, "INVALID_REQUEST", body.Error.Code)
}

func TestWriteFailureRateLimit(t *testing.T) {
	status, body, _ := writeAndDecode(t, &RateLimitError{Max: 30, Window: 60 * time.Second})
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "rate_limit_error", body.Error.Type)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body.Error.Code)
	assert.Equal(t, "Rate limit exceeded: 30 requests per 60 seconds", body.Error.Message)
}

func TestWriteFailureUnauthorized(t *testing.T) {
	status, body, _ := writeAndDecode(t, &UnauthorizedError{Message: "Invalid API key format"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", body.Error.Type)
	assert.Equal(t, "UNAUTHORIZED", body.Error.Code)
}

func TestWriteFailureUnexpectedHidesDetail(t *testing.T) {
	status, body, logged := writeAndDecode(t, errors.New("pq: connection reset by peer"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal_error", body.Error.Type)
	assert.Equal(t, "INTERNAL_SERVER_ERROR", body.Error.Code)
	assert.Equal(t, "An unexpected error occurred", body.Error.Message)
	// Detail and stack land in the log only.
	assert.Contains(t, logged, "connection reset by peer")
	assert.Contains(t, logged, "goroutine")
	assert.NotContains(t, body.Error.Message, "connection reset")
}

func TestStatusFor(t *testing.T) {
	cases := map[int]error{
		http.StatusBadRequest:          NewValidationError("x", ""),
		http.StatusUnauthorized:        &UnauthorizedError{},
		http.StatusForbidden:           NewSecurityError("x"),
		http.StatusTooManyRequests:     &RateLimitError{Max: 1, Window: time.Second},
		http.StatusServiceUnavailable:  NewResourceError("x", "compute"),
		http.StatusInternalServerError: errors.New("boom"),
	}
	for want, err := range cases {
		assert.Equal(t, want, StatusFor(err))
	}
}
