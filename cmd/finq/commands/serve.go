package commands

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/FINQ/ai/tracker"
	"github.com/teranos/FINQ/am"
	"github.com/teranos/FINQ/forecast"
	"github.com/teranos/FINQ/ingest"
	"github.com/teranos/FINQ/logger"
	"github.com/teranos/FINQ/nlquery"
	"github.com/teranos/FINQ/server"
)

// ServeCmd starts the HTTP and WebSocket server
var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Start the FINQ HTTP and WebSocket server",
	Long: `Start the FINQ server: ingestion, record queries, natural-language
questions (single and conversational), forecasts and usage reports over HTTP,
plus conversations over WebSocket at /ws/converse.

When ingest.drop_dir is set, JSON files dropped there are ingested
automatically.

Press Ctrl+C to stop; in-flight requests are allowed to finish.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	servePort    int
	serveDropDir string
)

func init() {
	ServeCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default: server.port)")
	ServeCmd.Flags().StringVar(&serveDropDir, "drop-dir", "", "Watch this directory for export files (default: ingest.drop_dir)")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Info level by default; a long-running server should say what it does
	verbosity, _ := cmd.Flags().GetCount("verbose")
	if verbosity == 0 {
		if err := logger.Initialize(false, 1); err != nil {
			return err
		}
	}

	cfg, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.DB().Close()

	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	if serveDropDir != "" {
		cfg.Ingest.DropDir = serveDropDir
	}

	log := logger.Logger.Named("server")
	loader := ingest.NewLoader(store, logger.Logger.Named("ingest"))

	deps := server.Deps{
		Store:    store,
		Loader:   loader,
		Sessions: nlquery.NewSessions(cfg.NLQuery.HistoryTurns, time.Duration(cfg.NLQuery.SessionTTLMinutes)*time.Minute),
		Forecaster: forecast.New(store, forecast.Options{
			DefaultPeriods: cfg.Forecast.DefaultPeriods,
			Confidence:     cfg.Forecast.Confidence,
			Logger:         logger.Logger.Named("forecast"),
		}),
		Usage: tracker.NewUsageTracker(store.DB()),
	}

	// Without a model the question endpoints answer 503
	engine, err := newEngine(cfg, store, "nl-query")
	if err != nil {
		log.Warnw("Natural-language queries disabled", "error", err)
	} else {
		deps.Engine = engine
	}

	if cfg.Ingest.DropDir != "" {
		if err := os.MkdirAll(cfg.Ingest.DropDir, am.DefaultDirPermissions); err != nil {
			return err
		}
		watcher, err := ingest.NewDropWatcher(cfg.Ingest.DropDir, cfg.Ingest.DefaultDataset, loader, logger.Logger.Named("drop"))
		if err != nil {
			return err
		}
		deps.Watcher = watcher
	}

	srv, err := server.New(server.Config{
		Port:           cfg.GetServerPort(),
		AllowedOrigins: cfg.GetServerAllowedOrigins(),
		SweepInterval:  time.Duration(cfg.Ingest.SweepIntervalSeconds) * time.Second,
	}, deps, log)
	if err != nil {
		return err
	}

	printStartupBanner(cfg, deps.Engine != nil)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		pterm.Info.Println("Shutting down gracefully...")
	}()

	if err := srv.Run(ctx); err != nil {
		return err
	}
	pterm.Success.Println("Server stopped cleanly")
	return nil
}
