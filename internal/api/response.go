package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/orodjarna/internal/apperr"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string            `json:"error"`
	Code    apperr.Code       `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, errorBody{Error: message})
}

// writeError maps a domain error to its HTTP status. Domain errors carry a
// reason safe to show the operator; anything else is logged and reported as
// an internal error.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := apperr.As(err)
	if e == nil {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path,
			"request_id", RequestID(r.Context()), "error", err)
		jsonResponse(w, http.StatusInternalServerError, errorBody{
			Error: "internal error",
			Code:  apperr.CodeInternal,
		})
		return
	}

	meta := apperr.MetadataFor(e.Code())
	if meta.HTTPStatus >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path,
			"request_id", RequestID(r.Context()), "code", e.Code(), "error", err)
	}
	if meta.Retryable {
		w.Header().Set("Retry-After", "1")
	}

	msg := err.Error()
	if e.Code() == apperr.CodeStoreUnavailable {
		msg = e.Message()
	}
	jsonResponse(w, meta.HTTPStatus, errorBody{Error: msg, Code: e.Code(), Details: e.Details()})
}

// pathID parses the {id} path value.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Newf(apperr.CodeInvalidInput, "invalid id %q", r.PathValue("id"))
	}
	return id, nil
}

// queryInt parses an optional integer query parameter within [lo, hi].
func queryInt(r *http.Request, key string, def, lo, hi int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < lo || v > hi {
		return 0, apperr.Newf(apperr.CodeInvalidInput, "%s must be a number between %d and %d", key, lo, hi)
	}
	return v, nil
}
