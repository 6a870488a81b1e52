package server

import (
	"net/http"

	"github.com/teranos/FINQ/errors"
)

// statusFor maps an error to the HTTP status reported to clients
func statusFor(err error) int {
	switch {
	case errors.IsNotFoundError(err):
		return http.StatusNotFound
	case errors.IsInputError(err), errors.Is(err, errors.ErrNoSQL):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, errors.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
