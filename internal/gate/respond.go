package gate

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"

	"inferd/pkg/types"
)

// Client-visible strings for failure classes whose real detail must never
// leave the process.
const (
	genericSecurityMessage = "Security violation detected"
	genericInternalMessage = "An unexpected error occurred"
)

// WriteFailure translates err into its canonical HTTP status and JSON
// envelope and emits the matching structured log line (4xx at warn, 5xx at
// error with a stack capture). It is the single place that renders failure
// responses; no failure is ever silently dropped.
func WriteFailure(w http.ResponseWriter, log zerolog.Logger, op string, err error) {
	var (
		ve *ValidationError
		se *SecurityError
		re *ResourceError
		me *MalformedError
		rl *RateLimitError
		ue *UnauthorizedError
	)
	switch {
	case errors.As(err, &ve):
		log.Warn().Str("op", op).Str("field", ve.Field).Msg("validation error: " + ve.Message)
		writeJSON(w, http.StatusBadRequest, types.ErrorResponse{Error: types.ErrorDetail{
			Type:    "validation_error",
			Code:    "VALIDATION_FAILED",
			Message: ve.Message,
			Field:   ve.Field,
		}})
	case errors.As(err, &se):
		// The matched pattern goes to the log only.
		log.Warn().Str("op", op).Str("code", se.Code).Msg("security error: " + se.Message)
		writeJSON(w, http.StatusForbidden, types.ErrorResponse{Error: types.ErrorDetail{
			Type:    "security_error",
			Code:    se.Code,
			Message: genericSecurityMessage,
		}})
	case errors.As(err, &rl):
		log.Warn().Str("op", op).Int("max_requests", rl.Max).Dur("window", rl.Window).Msg("rate limit exceeded")
		writeJSON(w, http.StatusTooManyRequests, types.ErrorResponse{Error: types.ErrorDetail{
			Type:    "rate_limit_error",
			Code:    "RATE_LIMIT_EXCEEDED",
			Message: rl.Error(),
		}})
	case errors.As(err, &re):
		log.Error().Str("op", op).Str("resource_type", re.ResourceType).Msg("resource error: " + re.Message)
		writeJSON(w, http.StatusServiceUnavailable, types.ErrorResponse{Error: types.ErrorDetail{
			Type:         "resource_error",
			Code:         "RESOURCE_UNAVAILABLE",
			Message:      re.Message,
			ResourceType: re.ResourceType,
		}})
	case errors.As(err, &me):
		log.Warn().Str("op", op).Msg("bad request: " + me.Message)
		writeJSON(w, http.StatusBadRequest, types.ErrorResponse{Error: types.ErrorDetail{
			Type:    "bad_request",
			Code:    "INVALID_REQUEST",
			Message: me.Message,
		}})
	case errors.As(err, &ue):
		log.Warn().Str("op", op).Msg("unauthorized: " + ue.Message)
		writeJSON(w, http.StatusUnauthorized, types.ErrorResponse{Error: types.ErrorDetail{
			Type:    "unauthorized",
			Code:    "UNAUTHORIZED",
			Message: ue.Message,
		}})
	default:
		// Anything unanticipated: full detail and stack server-side, generic
		// message to the client.
		log.Error().Str("op", op).Err(err).Str("stack", string(debug.Stack())).Msg("unexpected error")
		writeJSON(w, http.StatusInternalServerError, types.ErrorResponse{Error: types.ErrorDetail{
			Type:    "internal_error",
			Code:    "INTERNAL_SERVER_ERROR",
			Message: genericInternalMessage,
		}})
	}
}

// StatusFor returns the HTTP status WriteFailure would use for err. Useful
// for logging and metrics without rendering a response.
func StatusFor(err error) int {
	switch {
	case IsValidation(err), IsMalformed(err):
		return http.StatusBadRequest
	case IsUnauthorized(err):
		return http.StatusUnauthorized
	case IsSecurity(err):
		return http.StatusForbidden
	case IsRateLimit(err):
		return http.StatusTooManyRequests
	case IsResource(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
