package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/photosync/backend/internal/api"
	"github.com/photosync/backend/internal/logger"
	"github.com/photosync/backend/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the PhotoSync backup server",
	Long: `Start the HTTP admission surface (classic + StealthCloud endpoints) and
the background maintenance worker scheduler.

All configuration is read from the environment; the recognized variables
are those bound in internal/config.

Examples:
  # Start with default environment configuration
  photosyncd serve

  # Override the log level for one run
  LOG_LEVEL=DEBUG photosyncd serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := bootstrap(cfg)
	if err != nil {
		return err
	}

	logger.Info("PhotoSync backup server starting",
		"dataRoot", a.layout.Root,
		"classicUploadDir", a.layout.UploadDir,
		"cloudDir", a.layout.CloudDir,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := api.NewRouter(*a.router())
	srv := api.NewServer(api.Config{
		Port:        cfg.Port,
		EnableHTTPS: cfg.EnableHTTPS,
		HTTPSPort:   cfg.HTTPSPort,
		TLSCertPath: cfg.TLSCertPath,
		TLSKeyPath:  cfg.TLSKeyPath,
	}, handler)

	serverDone := make(chan error, 1)
	go func() { serverDone <- srv.Start(ctx) }()

	metricsSrv := startMetricsServer(cfg.MetricsPort)

	a.scheduler.Start(ctx)
	logger.Info("Background worker scheduler started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
	case err := <-serverDone:
		if err != nil {
			logger.Error("API server error", "error", err)
		}
	}

	cancel()
	a.scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}

	if a.mirror != nil {
		a.mirror.Stop()
	}

	logger.Info("Server stopped")
	return nil
}

// startMetricsServer serves /metrics on its own port, unless port is 0.
func startMetricsServer(port int) *http.Server {
	if port == 0 {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}

	go func() {
		logger.Info("Metrics server listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server error", "error", err)
		}
	}()

	return srv
}
