package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/stelliform/plughost/internal/api"
	"github.com/stelliform/plughost/internal/config"
	"github.com/stelliform/plughost/internal/extension"
	"github.com/stelliform/plughost/internal/filtering"
	"github.com/stelliform/plughost/internal/host"
	"github.com/stelliform/plughost/internal/host/inproc"
	"github.com/stelliform/plughost/internal/identity"
	"github.com/stelliform/plughost/internal/manifest"
	"github.com/stelliform/plughost/internal/plugin"
	"github.com/stelliform/plughost/internal/service"
	"github.com/stelliform/plughost/internal/service/local"
	"github.com/stelliform/plughost/internal/store"
	"github.com/stelliform/plughost/internal/telemetry"
)

const (
	defaultHTTPAddress    = ":8080"
	defaultRequestTimeout = 10 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 15 * time.Second
	defaultIdleTimeout    = 60 * time.Second
)

// HostAppOptions is a function that configures the host app builder
type HostAppOptions func(*hostAppConfig) error

// hostAppConfig builds a HostApp using the builder pattern.
// It supports dependency injection for testing while providing sensible
// defaults for production.
type hostAppConfig struct {
	config *config.Config

	// Optional component overrides (primarily for testing)
	runtime    *inproc.Runtime
	cacheStore extension.CacheStore
	admission  *filtering.Admission

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration

	// Data directory for the persisted component cache
	dataDir string

	// Telemetry components
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	metricsHandler http.Handler
}

func baseConfig(opts ...HostAppOptions) (*hostAppConfig, error) {
	cfg := &hostAppConfig{
		address:        defaultHTTPAddress,
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// NewHostApp assembles a plugin host from the given configuration: the
// module runtime, the component registry and its populator, the
// participant registry and dispatcher, and the HTTP server on top.
// Nothing starts running until Start is called.
func NewHostApp(ctx context.Context, opts ...HostAppOptions) (*HostApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}
	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if cfg.dataDir == "" {
		cfg.dataDir = cfg.config.GetDataDir()
	}
	if err := os.MkdirAll(cfg.dataDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	components, parserReg, err := buildHostComponents(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build host components: %w", err)
	}

	// Ensure cleanup happens on error
	cleanupNeeded := true
	defer func() {
		if cleanupNeeded {
			components.Plugins.Close()
			_ = parserReg.Unregister()
		}
	}()

	// Install the configured modules before the populator starts so the
	// bulk scan and the cache fingerprint cover all of them.
	if err := InstallConfiguredModules(cfg.config, components.Runtime); err != nil {
		return nil, err
	}

	svc, err := local.New(
		components.Runtime,
		components.Components,
		components.Populator,
		components.Plugins,
		components.Dispatcher,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create registry service: %w", err)
	}
	components.RegistryService = svc

	httpServer, err := buildHTTPServer(cfg, svc)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	// Create application context
	appCtx, cancel := context.WithCancel(ctx)

	// Cleanup is now handled by the app, not in defer
	cleanupNeeded = false

	return &HostApp{
		config:     cfg.config,
		components: components,
		httpServer: httpServer,
		parserReg:  parserReg,
		ctx:        appCtx,
		cancelFunc: cancel,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) HostAppOptions {
	return func(cfg *hostAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) HostAppOptions {
	return func(cfg *hostAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, ok := strings.Cut(addr, ":")
		if !ok || port == "" {
			return fmt.Errorf("address is not a valid host:port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid host:port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares sets custom HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) HostAppOptions {
	return func(cfg *hostAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithDataDirectory sets the directory holding the persisted component
// cache, overriding the configured one
func WithDataDirectory(dir string) HostAppOptions {
	return func(cfg *hostAppConfig) error {
		cfg.dataDir = dir
		return nil
	}
}

// WithRuntime allows injecting a pre-built module runtime (for testing)
func WithRuntime(rt *inproc.Runtime) HostAppOptions {
	return func(cfg *hostAppConfig) error {
		cfg.runtime = rt
		return nil
	}
}

// WithCacheStore allows injecting a custom cache store (for testing)
func WithCacheStore(cs extension.CacheStore) HostAppOptions {
	return func(cfg *hostAppConfig) error {
		cfg.cacheStore = cs
		return nil
	}
}

// WithAdmission allows injecting pre-compiled admission rules (for testing)
func WithAdmission(adm *filtering.Admission) HostAppOptions {
	return func(cfg *hostAppConfig) error {
		cfg.admission = adm
		return nil
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider for host and
// HTTP metrics
func WithMeterProvider(mp metric.MeterProvider) HostAppOptions {
	return func(cfg *hostAppConfig) error {
		cfg.meterProvider = mp
		return nil
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider for HTTP
// request tracing
func WithTracerProvider(tp trace.TracerProvider) HostAppOptions {
	return func(cfg *hostAppConfig) error {
		cfg.tracerProvider = tp
		return nil
	}
}

// WithMetricsHandler mounts h on /metrics, typically the Prometheus
// scrape handler
func WithMetricsHandler(h http.Handler) HostAppOptions {
	return func(cfg *hostAppConfig) error {
		cfg.metricsHandler = h
		return nil
	}
}

// buildHostComponents builds the module runtime, component registry,
// populator, participant registry and dispatcher
func buildHostComponents(b *hostAppConfig) (*HostComponents, host.Registration, error) {
	slog.Info("Initializing host components")

	runtime := b.runtime
	if runtime == nil {
		runtime = inproc.New()
	}

	admission := b.admission
	if admission == nil {
		var err error
		admission, err = filtering.NewAdmission(b.config.Admission)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to compile admission rules: %w", err)
		}
	}

	cacheStore := b.cacheStore
	if cacheStore == nil {
		cacheStore = store.NewFileStore(b.dataDir)
	}

	registryMetrics, err := telemetry.NewRegistryMetrics(b.meterProvider)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create registry metrics: %w", err)
	}
	dispatchMetrics, err := telemetry.NewDispatchMetrics(b.meterProvider)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create dispatch metrics: %w", err)
	}

	parser, err := manifest.NewJSONParser()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create manifest parser: %w", err)
	}
	parserReg, err := runtime.Services().Register(manifest.Capability, parser, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to register manifest parser service: %w", err)
	}

	components := extension.NewRegistry()
	populator := extension.NewPopulator(runtime, components,
		extension.WithCacheStore(cacheStore),
		extension.WithCachePolicy(
			b.config.Cache.GetEnabled(),
			b.config.Cache.GetLazyLoading(),
			b.config.Cache.GetCheckTimestamps(),
		),
		extension.WithAdmission(admission),
		extension.WithScanWorkers(b.config.Scan.GetWorkers()),
		extension.WithPopulatorMetrics(registryMetrics),
	)

	// Open before modules are installed so live registrations from
	// auto-started modules are not missed.
	plugins := plugin.NewRegistry(runtime.Services())
	plugins.Open()
	dispatcher := plugin.NewDispatcher(plugins,
		plugin.WithDispatchMetrics(dispatchMetrics),
		plugin.WithDispatchTracing(b.tracerProvider),
	)

	identityCache, err := identity.NewCache(runtime, identity.DefaultCacheSize)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create module identity cache: %w", err)
	}
	factory := extension.NewFactory(runtime, identityCache)

	slog.Info("Host components initialized successfully")
	return &HostComponents{
		Runtime:    runtime,
		Components: components,
		Populator:  populator,
		Plugins:    plugins,
		Dispatcher: dispatcher,
		Factory:    factory,
	}, parserReg, nil
}

// buildHTTPServer builds the HTTP server with router and middleware
func buildHTTPServer(b *hostAppConfig, svc service.RegistryService) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	// Use default middlewares if not provided
	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	if b.tracerProvider != nil {
		b.middlewares = append(
			[]func(http.Handler) http.Handler{telemetry.TracingMiddleware(b.tracerProvider)},
			b.middlewares...,
		)
	}

	// Prepend metrics middleware so it captures all requests, including
	// those cut short by the request timeout.
	if b.meterProvider != nil {
		metricsMiddleware, err := telemetry.MetricsMiddleware(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
		}
		b.middlewares = append(
			[]func(http.Handler) http.Handler{metricsMiddleware},
			b.middlewares...,
		)
		slog.Info("HTTP metrics middleware enabled")
	}

	serverOpts := []api.ServerOption{
		api.WithMiddlewares(b.middlewares...),
	}
	if b.metricsHandler != nil {
		serverOpts = append(serverOpts, api.WithMetricsHandler(b.metricsHandler))
	}

	// Create router with middlewares
	router := api.NewServer(svc, serverOpts...)

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}
