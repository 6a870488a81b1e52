package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/teranos/FINQ/errors"
)

// maxBodyBytes bounds JSON request bodies
const maxBodyBytes = 1 << 20

// errorResponse is the body of every failed request
type errorResponse struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

func newErrorResponse(err error) errorResponse {
	resp := errorResponse{Error: err.Error()}
	if hints := errors.GetAllHints(err); len(hints) > 0 {
		resp.Hint = strings.Join(hints, "; ")
	}
	return resp
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		return errors.Wrap(err, "failed to encode JSON")
	}
	return nil
}

// writeError writes err as a JSON error response, choosing the status from
// the error's kind. Server-side failures are logged.
func (s *FINQServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.requestLogger(r).Errorw("Request failed", "error", err, "status", status)
	} else {
		s.requestLogger(r).Debugw("Request rejected", "error", err, "status", status)
	}
	_ = writeJSON(w, status, newErrorResponse(err))
}

// readJSON decodes a JSON request body into v
func readJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errors.NewInvalidRequestError("invalid request body: %v", err)
	}
	return nil
}
