// Package app provides application lifecycle management for the plugin
// host daemon.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/stelliform/plughost/internal/config"
	"github.com/stelliform/plughost/internal/host"
)

// HostApp encapsulates all components needed to run the plugin host
// daemon. It provides lifecycle management and graceful shutdown
// capabilities.
type HostApp struct {
	config     *config.Config
	components *HostComponents
	httpServer *http.Server

	// parserReg is the built-in manifest parser service registration,
	// withdrawn on shutdown.
	parserReg host.Registration

	// Lifecycle management
	ctx        context.Context
	cancelFunc context.CancelFunc
}

// Start populates the component registry and then serves the REST API.
// This method blocks until the HTTP server stops or encounters an
// error.
func (app *HostApp) Start() error {
	// The populator subscribes to module events and performs the
	// initial fill before the server accepts requests.
	if err := app.components.Populator.Start(app.ctx); err != nil {
		return fmt.Errorf("failed to start registry populator: %w", err)
	}

	slog.Info("Server listening", "address", app.httpServer.Addr)
	if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// Stop gracefully stops the application with the given timeout. It
// stops the populator first so the component cache is persisted while
// the module set is still intact, then withdraws the participants and
// shuts down the HTTP server.
func (app *HostApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := app.components.Populator.Stop(shutdownCtx); err != nil {
		slog.Error("Failed to stop registry populator", "error", err)
	}
	app.components.Plugins.Close()

	if app.parserReg != nil {
		if err := app.parserReg.Unregister(); err != nil {
			slog.Debug("Manifest parser service already withdrawn", "error", err)
		}
	}

	if app.cancelFunc != nil {
		app.cancelFunc()
	}

	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("Server shutdown complete")
	return nil
}

// GetConfig returns the application configuration
func (app *HostApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server (useful for testing to get the actual port)
func (app *HostApp) GetHTTPServer() *http.Server {
	return app.httpServer
}
