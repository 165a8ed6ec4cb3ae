package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/stelliform/plughost/internal/telemetry"
)

// dispatchTracerName is the instrumentation scope for dispatch spans.
const dispatchTracerName = "github.com/stelliform/plughost/dispatch"

// Dispatcher feeds configuration changes through the registered plugins in
// ranking order.
type Dispatcher struct {
	registry *Registry
	metrics  *telemetry.DispatchMetrics
	tracer   trace.Tracer
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatchMetrics attaches dispatch instrumentation. A nil metrics
// value is accepted and disables recording.
func WithDispatchMetrics(m *telemetry.DispatchMetrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithDispatchTracing records a span for each dispatch. A nil provider is
// accepted and disables tracing.
func WithDispatchTracing(provider trace.TracerProvider) DispatcherOption {
	return func(d *Dispatcher) {
		if provider != nil {
			d.tracer = provider.Tracer(dispatchTracerName)
		}
	}
}

// NewDispatcher creates a dispatcher over the given registry.
func NewDispatcher(registry *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{registry: registry}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch invokes every plugin that accepts subjectID, in snapshot order,
// passing props to each hook in turn. Hooks run synchronously and may
// mutate props in place, so a plugin observes the edits of every
// higher-ranked plugin before it. A nil props means the subject was
// deleted; no plugin is invoked and Dispatch returns immediately.
//
// A failing or panicking plugin is logged and skipped, never aborting the
// remaining pipeline. Plugins whose backing instance is gone by invocation
// time are skipped silently. The snapshot is taken once at entry, so
// registrations and removals during the dispatch do not affect it.
func (d *Dispatcher) Dispatch(ctx context.Context, subjectID string, props map[string]any) {
	if props == nil {
		return
	}

	start := time.Now()
	dispatchID := uuid.NewString()
	snapshot := d.registry.Snapshot()

	var invoked, failures int64
	if d.tracer != nil {
		var span trace.Span
		ctx, span = d.tracer.Start(ctx, "plugin.dispatch",
			trace.WithAttributes(
				attribute.String("subject", subjectID),
				attribute.String("dispatch_id", dispatchID),
				attribute.Int("participants", len(snapshot)),
			),
		)
		defer func() {
			span.SetAttributes(
				attribute.Int64("invoked", invoked),
				attribute.Int64("failures", failures),
			)
			span.End()
		}()
	}

	for _, p := range snapshot {
		if !p.Accepts(subjectID) {
			continue
		}

		instance := p.Ref.Instance()
		if instance == nil {
			slog.Debug("skipping withdrawn notification plugin",
				"dispatch_id", dispatchID,
				"plugin", p.Ref.ID(),
			)
			continue
		}

		hook, ok := instance.(Plugin)
		if !ok {
			slog.Warn("service registered as notification plugin does not implement the hook",
				"dispatch_id", dispatchID,
				"plugin", p.Ref.ID(),
			)
			continue
		}

		invoked++
		if err := invoke(ctx, hook, subjectID, props); err != nil {
			slog.Error("notification plugin failed",
				"dispatch_id", dispatchID,
				"subject", subjectID,
				"plugin", p.Ref.ID(),
				"ranking", p.Ranking,
				"error", err,
			)
			d.metrics.RecordPluginFailure(ctx, p.Ref.ID())
			failures++
		}
	}

	d.metrics.RecordDispatch(ctx, time.Since(start), invoked)
	slog.Debug("dispatch complete",
		"dispatch_id", dispatchID,
		"subject", subjectID,
		"participants", len(snapshot),
		"invoked", invoked,
		"failures", failures,
	)
}

// invoke runs one hook, converting a panic into an error so a misbehaving
// plugin cannot take down the dispatcher.
func invoke(ctx context.Context, p Plugin, subjectID string, props map[string]any) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("plugin panicked: %v", rec)
		}
	}()
	return p.Modify(ctx, subjectID, props)
}
