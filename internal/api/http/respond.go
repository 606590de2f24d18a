package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"custody-backend/internal/domain"
	"custody-backend/internal/logger"
	"custody-backend/internal/security"

	"github.com/google/uuid"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	callerKey
)

const RequestIDHeader = "X-Request-ID"

func newRequestID() string { return "req_" + uuid.NewString() }

func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// CallerFromContext returns the caller the identity middleware resolved.
func CallerFromContext(ctx context.Context) domain.Caller {
	c, _ := ctx.Value(callerKey).(domain.Caller)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// readJSON decodes an optional body: an empty body leaves dst untouched.
func readJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: malformed request body: %v", domain.ErrInvalidArgument, err)
	}
	return nil
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type errorEnvelope struct {
	RequestID string    `json:"request_id"`
	Error     errorBody `json:"error"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	writeJSON(w, status, errorEnvelope{
		RequestID: requestID(r.Context()),
		Error:     errorBody{Code: code, Message: message, Details: details},
	})
}

// writeServiceError maps the typed failures of the service layer to statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		denied   *domain.PolicyDeniedError
		mismatch *domain.StateMismatchError
	)
	switch {
	case errors.Is(err, security.ErrUnauthenticated):
		writeError(w, r, http.StatusUnauthorized, "unauthenticated", "authentication required", nil)
	case errors.As(err, &denied):
		writeError(w, r, http.StatusForbidden, "policy_denied", denied.Reason, nil)
	case errors.Is(err, domain.ErrPolicyDenied):
		writeError(w, r, http.StatusForbidden, "policy_denied", err.Error(), nil)
	case errors.As(err, &mismatch):
		writeError(w, r, http.StatusConflict, "state_mismatch", err.Error(), map[string]any{
			"current":  mismatch.Current,
			"required": mismatch.Required,
		})
	case errors.Is(err, domain.ErrVersionConflict):
		writeError(w, r, http.StatusConflict, "version_conflict", "asset changed concurrently; reload and retry",
			map[string]any{"retryable": true})
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", "asset not found", nil)
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, r, http.StatusBadRequest, "invalid_argument", err.Error(), nil)
	default:
		logger.ErrorContext(r.Context(), "Request failed", "request_id", requestID(r.Context()), "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal", "internal error", nil)
	}
}

// parseIfMatch reads a pinned version from If-Match. Absent means zero.
func parseIfMatch(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.Header.Get("If-Match"))
	if raw == "" {
		return 0, nil
	}
	raw = strings.TrimPrefix(raw, "W/")
	raw = strings.Trim(raw, `"`)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%w: If-Match must be a positive version", domain.ErrInvalidArgument)
	}
	return v, nil
}

func setVersionHeader(w http.ResponseWriter, a *domain.Asset) {
	w.Header().Set("ETag", strconv.Quote(strconv.FormatInt(a.Version, 10)))
}
