package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-co-op/gocron"
	"golang.org/x/sync/errgroup"

	"github.com/teranos/FINQ/errors"
	"github.com/teranos/FINQ/logger"
)

// ServerState is the lifecycle phase reported by /health
type ServerState int32

const (
	ServerStateStarting ServerState = iota
	ServerStateRunning
	ServerStateDraining
	ServerStateStopped
)

// sessionPruneInterval is how often idle conversation sessions are dropped
const sessionPruneInterval = time.Minute

func (s *FINQServer) getState() ServerState {
	return ServerState(s.state.Load())
}

func (s *FINQServer) setState(newState ServerState) {
	old := ServerState(s.state.Swap(int32(newState)))
	if old != newState {
		s.logger.Debugw("Server state changed", "from", stateString(old), "to", stateString(newState))
	}
}

func stateString(state ServerState) string {
	switch state {
	case ServerStateStarting:
		return "starting"
	case ServerStateRunning:
		return "running"
	case ServerStateDraining:
		return "draining"
	case ServerStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Run listens on the configured port and serves until ctx is done
func (s *FINQServer) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.WithHint(
			errors.Wrapf(err, "listen on %s", addr),
			"choose another port with --port or server.port")
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then drains in-flight requests,
// closes WebSocket conversations and stops background jobs
func (s *FINQServer) Serve(ctx context.Context, ln net.Listener) error {
	s.setState(ServerStateStarting)

	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	scheduler, err := s.startBackgroundJobs(gctx)
	if err != nil {
		_ = ln.Close()
		return err
	}

	g.Go(func() error {
		s.logger.Infow("HTTP server listening", logger.FieldAddress, ln.Addr().String())
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.setState(ServerStateDraining)
		s.logger.Infow("Initiating server shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGrace)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)

		s.closeClients()
		// A sweep job blocked on the drop queue only returns once the watcher is closed
		if s.deps.Watcher != nil {
			if werr := s.deps.Watcher.Close(); werr != nil {
				s.logger.Warnw("Drop watcher close failed", "error", werr)
			}
		}
		scheduler.Stop()
		return errors.Wrap(err, "shutdown")
	})

	s.setState(ServerStateRunning)
	err = g.Wait()
	s.setState(ServerStateStopped)
	s.logger.Infow("Server stopped")
	return err
}

// startBackgroundJobs starts the drop watcher and the scheduled sweep and
// session prune jobs
func (s *FINQServer) startBackgroundJobs(ctx context.Context) (*gocron.Scheduler, error) {
	scheduler := gocron.NewScheduler(time.UTC)

	if _, err := scheduler.Every(sessionPruneInterval).WaitForSchedule().Do(func() {
		if n := s.deps.Sessions.Prune(); n > 0 {
			s.logger.Debugw("Pruned idle sessions", logger.FieldCount, n)
		}
	}); err != nil {
		return nil, errors.Wrap(err, "schedule session prune")
	}

	if w := s.deps.Watcher; w != nil {
		w.Start(ctx)
		s.logger.Infow("Watching drop directory", "dir", w.Dir())

		if s.cfg.SweepInterval > 0 {
			// The first run happens immediately and picks up files dropped while stopped
			if _, err := scheduler.Every(s.cfg.SweepInterval).Do(func() {
				n, err := w.Sweep()
				if err != nil {
					s.logger.Warnw("Drop directory sweep failed", "error", err)
					return
				}
				s.logger.Debugw("Drop directory swept", logger.FieldCount, n)
			}); err != nil {
				return nil, errors.Wrap(err, "schedule drop directory sweep")
			}
		} else if _, err := w.Sweep(); err != nil {
			s.logger.Warnw("Initial drop directory sweep failed", "error", err)
		}
	}

	scheduler.StartAsync()
	return scheduler, nil
}

// closeClients closes every open WebSocket conversation
func (s *FINQServer) closeClients() {
	s.mu.Lock()
	clients := make([]*wsClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	if len(clients) > 0 {
		s.logger.Infow("Closing client connections", logger.FieldCount, len(clients))
	}
	for _, c := range clients {
		c.close()
	}
}
