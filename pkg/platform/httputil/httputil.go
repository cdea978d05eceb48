// Package httputil writes JSON responses and maps domain error codes onto
// HTTP status codes.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "peoplehub/pkg/domain-errors"
)

const maxBodyBytes = 1 << 20

// Validatable is implemented by request bodies that normalize and check
// themselves after decoding.
type Validatable interface {
	Validate() error
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes an error body derived from the domain error code. Internal
// failures never leak their message.
func WriteError(w http.ResponseWriter, err error) {
	status, code := StatusFor(err)
	resp := errorResponse{Error: code}
	if status != http.StatusInternalServerError {
		var de *dErrors.Error
		if errors.As(err, &de) {
			resp.ErrorDescription = de.Message
		}
	}
	WriteJSON(w, status, resp)
}

// StatusFor maps an error to its HTTP status and wire error code.
func StatusFor(err error) (int, string) {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeBadRequest:
		return http.StatusBadRequest, "bad_request"
	case dErrors.CodeInvalidInput:
		return http.StatusBadRequest, "invalid_input"
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized, "unauthorized"
	case dErrors.CodeSessionInvalid:
		return http.StatusUnauthorized, "session_invalid"
	case dErrors.CodeAccountDisabled:
		return http.StatusForbidden, "account_disabled"
	case dErrors.CodeNotFound:
		return http.StatusNotFound, "not_found"
	case dErrors.CodeConflict:
		return http.StatusConflict, "conflict"
	case dErrors.CodeLastEmail:
		return http.StatusConflict, "last_email"
	case dErrors.CodeTransient:
		return http.StatusServiceUnavailable, "transient"
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests, "rate_limited"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// DecodeAndPrepare decodes a JSON body into T and validates it. On failure the
// error response is written and ok is false.
func DecodeAndPrepare[T any, PT interface {
	*T
	Validatable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	var req T
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		logger.WarnContext(ctx, "failed to decode request body",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return nil, false
	}
	if err := PT(&req).Validate(); err != nil {
		logger.WarnContext(ctx, "invalid request",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, err)
		return nil, false
	}
	return &req, true
}
