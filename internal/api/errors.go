// internal/api/errors.go
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tamzrod/modbus-bridge/internal/bridge"
)

var (
	// ErrCapacityExceeded is returned for bodies that reach the scratch size.
	ErrCapacityExceeded = errors.New("api: request exceeds scratch capacity")
	// ErrMalformedRequest is returned for bodies that are not a valid command.
	ErrMalformedRequest = errors.New("api: malformed request")
	// ErrReceive is returned when the request body cannot be read.
	ErrReceive = errors.New("api: failed to receive request body")
)

// Error codes carried in error bodies beyond the bridge result classes.
const (
	CodeCapacityExceeded = "capacity_exceeded"
	CodeMalformed        = "malformed_request"
	CodeReceive          = "receive_failed"
	CodeRateLimited      = "rate_limited"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// classify maps err to an HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrCapacityExceeded):
		return http.StatusInternalServerError, CodeCapacityExceeded
	case errors.Is(err, ErrReceive):
		return http.StatusInternalServerError, CodeReceive
	case errors.Is(err, ErrMalformedRequest):
		return http.StatusBadRequest, CodeMalformed
	}

	switch code := bridge.Classify(err); code {
	case bridge.ResultInvalidArgument:
		return http.StatusBadRequest, code
	case bridge.ResultNotFound:
		return http.StatusNotFound, code
	case bridge.ResultAccessDenied:
		return http.StatusForbidden, code
	case bridge.ResultTransport:
		return http.StatusBadGateway, code
	case bridge.ResultCanceled:
		return http.StatusServiceUnavailable, code
	default:
		return http.StatusInternalServerError, code
	}
}

// writeJSON encodes v before committing the status, so an unencodable
// reply still turns into an error body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorBody{Error: err.Error(), Code: bridge.ResultInternal})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}
