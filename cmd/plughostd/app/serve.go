package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	hostapp "github.com/stelliform/plughost/internal/app"
	"github.com/stelliform/plughost/internal/config"
	"github.com/stelliform/plughost/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the plugin host daemon",
	Long: `Start the plugin host daemon and its REST API.

The daemon requires a configuration file (--config) that specifies:
- Plugin modules to install at startup
- Cache, admission and scan settings
- Server and telemetry settings

See examples/ directory for sample configurations.`,
	RunE: runServe,
}

const (
	defaultGracefulTimeout = 30 * time.Second // Kubernetes-friendly shutdown time
	telemetryFlushTimeout  = 5 * time.Second  // Final flush of pending spans and metrics
)

func init() {
	serveCmd.Flags().String("address", "", "Address to listen on (overrides server.address from config)")
	serveCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")

	if err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address")); err != nil {
		slog.Error("Failed to bind address flag", "error", err)
		os.Exit(1)
	}
	if err := viper.BindPFlag("config", serveCmd.Flags().Lookup("config")); err != nil {
		slog.Error("Failed to bind config flag", "error", err)
		os.Exit(1)
	}

	if err := serveCmd.MarkFlagRequired("config"); err != nil {
		slog.Error("Failed to mark config flag as required", "error", err)
		os.Exit(1)
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	configPath := viper.GetString("config")
	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Info("Loaded configuration",
		"path", configPath,
		"instance", cfg.GetInstanceName(),
		"modules", len(cfg.Modules),
	)

	address := viper.GetString("address")
	if address == "" {
		address = cfg.Server.GetAddress()
	}

	tel, err := telemetry.New(ctx, telemetry.WithTelemetryConfig(cfg.Telemetry))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown telemetry", "error", err)
		}
	}()

	hostApp, err := hostapp.NewHostApp(ctx,
		hostapp.WithConfig(cfg),
		hostapp.WithAddress(address),
		hostapp.WithMeterProvider(tel.MeterProvider()),
		hostapp.WithTracerProvider(tel.TracerProvider()),
		hostapp.WithMetricsHandler(tel.PrometheusHandler()),
	)
	if err != nil {
		return fmt.Errorf("failed to build host application: %w", err)
	}

	go func() {
		if err := hostApp.Start(); err != nil {
			slog.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	return hostApp.Stop(defaultGracefulTimeout)
}
