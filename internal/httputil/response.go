package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/darkden-lab/mqscope/internal/mq"
)

// WriteJSON writes v as JSON with the given HTTP status code.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// WriteError writes a JSON error response with the given status and message.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// WriteMQError maps a broker error onto an HTTP status. The error code is
// included when err is an *mq.Error.
func WriteMQError(w http.ResponseWriter, err error) {
	var mqErr *mq.Error
	if !errors.As(err, &mqErr) {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, StatusFor(mqErr.Type), map[string]string{
		"error": mqErr.Error(),
		"code":  mqErr.Code,
	})
}

// StatusFor returns the HTTP status used for a broker error type.
func StatusFor(t mq.ErrorType) int {
	switch t {
	case mq.ErrorValidation:
		return http.StatusBadRequest
	case mq.ErrorNotFound:
		return http.StatusNotFound
	case mq.ErrorTimeout:
		return http.StatusGatewayTimeout
	case mq.ErrorConnection, mq.ErrorNetwork, mq.ErrorSubscription:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSON decodes the request body into v, writing a 400 on failure.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
