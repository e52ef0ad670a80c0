package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/michaelbrown/decipher/internal/config"
	"github.com/michaelbrown/decipher/internal/explain"
	"github.com/michaelbrown/decipher/internal/metrics"
	"github.com/michaelbrown/decipher/internal/sandbox"
	"github.com/michaelbrown/decipher/internal/server"
	"github.com/michaelbrown/decipher/internal/storage"
	"github.com/michaelbrown/decipher/internal/storage/sqlite"
)

var (
	portFlag      int
	noHistoryFlag bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the decipher HTTP server",
	Long: `Start the decipher HTTP server with the tracing API and WebSocket streaming.

Examples:
  decipher serve
  decipher serve --port 9090
  decipher serve --config ./decipher.yaml --no-history`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().BoolVar(&noHistoryFlag, "no-history", false, "Do not open the history database")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sup, err := newSupervisor(cfg)
	if err != nil {
		return err
	}
	deps := server.Deps{Sandbox: sup}

	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		rec, err := metrics.NewPrometheusRecorder(reg)
		if err != nil {
			return fmt.Errorf("setting up metrics: %w", err)
		}
		sup.Recorder = rec
		deps.Metrics = reg
	}

	if !noHistoryFlag {
		store, err := sqlite.Open(cfg.Storage.DBPath)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()
		deps.Store = store
	}

	deps.Explainer = newExplainer(cfg)
	if deps.Explainer.Enabled() {
		log.Printf("Explanations: %s (%s)", cfg.Explain.BaseURL, cfg.Explain.Model)
	} else {
		log.Println("Explanations: disabled (no explain.base_url)")
	}
	log.Printf("Sandbox: %s launcher, %s default timeout, %d max steps", cfg.Sandbox.Launcher, cfg.Sandbox.DefaultTimeout, cfg.Sandbox.MaxSteps)

	// Determine port
	port := cfg.Server.Port
	if portFlag > 0 {
		port = portFlag
	}

	srv := server.New(cfg, deps)

	// Graceful shutdown on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		srv.Shutdown(context.Background())
	}()

	if err := srv.Start(port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newSupervisor(cfg *config.Config) (*sandbox.Supervisor, error) {
	l, err := cfg.Launcher()
	if err != nil {
		return nil, fmt.Errorf("setting up sandbox: %w", err)
	}
	sup := sandbox.NewSupervisor(l, cfg.Policy())
	if cfg.Sandbox.Grace > 0 {
		sup.Grace = cfg.Sandbox.Grace
	}
	return sup, nil
}

func newExplainer(cfg *config.Config) *explain.Explainer {
	if !cfg.ExplainEnabled() {
		return explain.New(nil, 0)
	}
	c := explain.NewClient(cfg.Explain.BaseURL, cfg.Explain.APIKey, cfg.Explain.Model)
	return explain.New(c, cfg.Explain.Timeout)
}

func openStore() (storage.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return sqlite.Open(cfg.Storage.DBPath)
}
