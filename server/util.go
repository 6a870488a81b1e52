package server

import (
	"net/http"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/FINQ/errors"
	"github.com/teranos/FINQ/facts"
	"github.com/teranos/FINQ/logger"
	"github.com/teranos/FINQ/period"
)

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = "X-Request-ID"

// checkOrigin validates an Origin header against the allowed origins.
// Prefix matching allows any port on an allowed host.
func (s *FINQServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	// Requests without an origin (curl, tests, native clients) are allowed
	if origin == "" {
		return true
	}

	for _, allowed := range s.cfg.AllowedOrigins {
		if strings.HasPrefix(origin, allowed) {
			return true
		}
	}
	return false
}

// corsMiddleware adds CORS headers for allowed origins and answers preflight
// requests
func (s *FINQServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && s.checkOrigin(r) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+RequestIDHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestIDMiddleware attaches a request id to the context and response
func (s *FINQServer) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}

func (s *FINQServer) requestLogger(r *http.Request) *zap.SugaredLogger {
	return logger.LoggerFromContext(r.Context(), s.logger).With(
		logger.FieldMethod, r.Method,
		logger.FieldPath, r.URL.Path,
	)
}

// filterFromQuery builds a facts.Filter from query parameters. Unknown
// parameters are ignored.
func filterFromQuery(r *http.Request) (facts.Filter, error) {
	q := r.URL.Query()
	var f facts.Filter

	optional := func(key string) *string {
		if v := strings.TrimSpace(q.Get(key)); v != "" {
			return &v
		}
		return nil
	}
	f.DatasetID = optional("dataset")
	f.Metric = optional("metric")
	f.Category = optional("category")

	var err error
	if f.Start, err = dateParam(q.Get("start"), "start"); err != nil {
		return f, err
	}
	if f.End, err = dateParam(q.Get("end"), "end"); err != nil {
		return f, err
	}
	if f.Limit, err = intParam(q.Get("limit"), "limit", 0); err != nil {
		return f, err
	}
	if f.Offset, err = intParam(q.Get("offset"), "offset", 0); err != nil {
		return f, err
	}
	return f, f.Validate()
}

func dateParam(v, name string) (*civil.Date, error) {
	if v == "" {
		return nil, nil
	}
	d, err := period.ParseDate(v)
	if err != nil {
		return nil, errors.Wrapf(err, "query parameter %s", name)
	}
	return &d, nil
}

func intParam(v, name string, fallback int) (int, error) {
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.NewInvalidRequestError("query parameter %s must be an integer, got %q", name, v)
	}
	return n, nil
}
