package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// DispatchMetricsMeterName is the name used for the dispatch metrics meter
	DispatchMetricsMeterName = "github.com/stelliform/plughost/dispatch"

	// RegistryMetricsMeterName is the name used for the component registry metrics meter
	RegistryMetricsMeterName = "github.com/stelliform/plughost/registry"
)

// DispatchMetrics holds the OpenTelemetry instruments for notification dispatch
type DispatchMetrics struct {
	dispatchDuration metric.Float64Histogram
	pluginFailures   metric.Int64Counter
}

// NewDispatchMetrics creates a new DispatchMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewDispatchMetrics(provider metric.MeterProvider) (*DispatchMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(DispatchMetricsMeterName)

	dispatchDuration, err := meter.Float64Histogram(
		"plughost_dispatch_duration_seconds",
		metric.WithDescription("Duration of one notification dispatch across the plugin pipeline"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5),
	)
	if err != nil {
		return nil, err
	}

	pluginFailures, err := meter.Int64Counter(
		"plughost_dispatch_plugin_failures_total",
		metric.WithDescription("Number of plugin hook invocations that returned an error or panicked"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	return &DispatchMetrics{
		dispatchDuration: dispatchDuration,
		pluginFailures:   pluginFailures,
	}, nil
}

// RecordDispatch records one completed dispatch and how many plugins it invoked
func (m *DispatchMetrics) RecordDispatch(ctx context.Context, duration time.Duration, invoked int64) {
	if m == nil || m.dispatchDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.Int64("invoked", invoked),
	}

	m.dispatchDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordPluginFailure records a plugin hook failure during dispatch
func (m *DispatchMetrics) RecordPluginFailure(ctx context.Context, pluginID int64) {
	if m == nil || m.pluginFailures == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.Int64("plugin", pluginID),
	}

	m.pluginFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RegistryMetrics holds the OpenTelemetry instruments for the component registry
type RegistryMetrics struct {
	componentsTotal  metric.Int64Gauge
	populateDuration metric.Float64Histogram
}

// NewRegistryMetrics creates a new RegistryMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewRegistryMetrics(provider metric.MeterProvider) (*RegistryMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(RegistryMetricsMeterName)

	componentsTotal, err := meter.Int64Gauge(
		"plughost_registry_components_total",
		metric.WithDescription("Number of components currently in the registry"),
		metric.WithUnit("{component}"),
	)
	if err != nil {
		return nil, err
	}

	populateDuration, err := meter.Float64Histogram(
		"plughost_registry_populate_duration_seconds",
		metric.WithDescription("Duration of registry population in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		return nil, err
	}

	return &RegistryMetrics{
		componentsTotal:  componentsTotal,
		populateDuration: populateDuration,
	}, nil
}

// RecordComponentsTotal records the current number of registered components
func (m *RegistryMetrics) RecordComponentsTotal(ctx context.Context, count int64) {
	if m == nil || m.componentsTotal == nil {
		return
	}

	m.componentsTotal.Record(ctx, count)
}

// RecordPopulateDuration records the duration of one registry population pass
func (m *RegistryMetrics) RecordPopulateDuration(ctx context.Context, path string, duration time.Duration, success bool) {
	if m == nil || m.populateDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("path", path),
		attribute.Bool("success", success),
	}

	m.populateDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
