// Package server exposes ingestion, fact queries, natural-language
// questions and forecasts over HTTP and WebSocket.
package server

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/teranos/FINQ/ai/tracker"
	"github.com/teranos/FINQ/errors"
	"github.com/teranos/FINQ/facts"
	"github.com/teranos/FINQ/forecast"
	"github.com/teranos/FINQ/ingest"
	"github.com/teranos/FINQ/nlquery"
)

// Config holds server settings
type Config struct {
	Port           int
	AllowedOrigins []string
	SweepInterval  time.Duration // Drop-directory re-scan period (0 = events only)
	ShutdownGrace  time.Duration // Time allowed for in-flight requests on stop
}

// Deps are the collaborators the handlers call. Store and Loader are
// required; a nil Engine, Forecaster, Usage or Watcher disables the
// endpoints or background jobs that need it.
type Deps struct {
	Store      *facts.Store
	Loader     *ingest.Loader
	Engine     nlquery.Answerer
	Sessions   *nlquery.Sessions
	Forecaster *forecast.Forecaster
	Usage      *tracker.UsageTracker
	Watcher    *ingest.DropWatcher
}

// FINQServer serves the FINQ HTTP API
type FINQServer struct {
	cfg      Config
	deps     Deps
	router   *mux.Router
	upgrader websocket.Upgrader
	logger   *zap.SugaredLogger
	state    atomic.Int32

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

// New creates a server. Routes are registered immediately.
func New(cfg Config, deps Deps, logger *zap.SugaredLogger) (*FINQServer, error) {
	if deps.Store == nil || deps.Loader == nil {
		return nil, errors.New("server requires a fact store and a loader")
	}
	if deps.Sessions == nil {
		deps.Sessions = nlquery.NewSessions(nlquery.DefaultHistoryTurns, 30*time.Minute)
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	s := &FINQServer{
		cfg:     cfg,
		deps:    deps,
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  2048,
		WriteBufferSize: 2048,
		CheckOrigin:     s.checkOrigin,
	}
	s.router = s.setupRoutes()
	return s, nil
}

// Handler returns the root HTTP handler
func (s *FINQServer) Handler() http.Handler {
	return s.router
}
