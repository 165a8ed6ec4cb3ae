package extension

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stelliform/plughost/internal/filtering"
	"github.com/stelliform/plughost/internal/host"
	"github.com/stelliform/plughost/internal/manifest"
	"github.com/stelliform/plughost/internal/telemetry"
)

// defaultWorkers bounds the bulk scan when no worker count is set.
const defaultWorkers = 4

// Phase is the lifecycle phase of a Populator.
type Phase int

// Populator phases, in the order one pass moves through them. A start
// takes either the CacheHit or the BulkScanning branch, never both.
const (
	PhaseNotStarted Phase = iota
	PhaseSubscribing
	PhaseCacheHit
	PhaseBulkScanning
	PhaseReady
)

// String returns the lowercase phase name.
func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "not_started"
	case PhaseSubscribing:
		return "subscribing"
	case PhaseCacheHit:
		return "cache_hit"
	case PhaseBulkScanning:
		return "bulk_scanning"
	case PhaseReady:
		return "ready"
	default:
		return "unknown"
	}
}

// PopulatorOption configures a Populator.
type PopulatorOption func(*Populator)

// WithCacheStore persists the registry through cs between runs. Without
// a store every start performs a full scan.
func WithCacheStore(cs CacheStore) PopulatorOption {
	return func(p *Populator) {
		p.cache = cs
	}
}

// WithCachePolicy controls cache usage. enabled turns the persisted
// cache on or off; lazyLoading, when off, verifies every restored
// record's manifest still exists instead of trusting the snapshot;
// checkTimestamps ties cache validity to the contributions timestamp.
func WithCachePolicy(enabled, lazyLoading, checkTimestamps bool) PopulatorOption {
	return func(p *Populator) {
		p.cacheEnabled = enabled
		p.lazyLoading = lazyLoading
		p.checkTimestamps = checkTimestamps
	}
}

// WithAdmission filters components through adm before they enter the
// registry.
func WithAdmission(adm *filtering.Admission) PopulatorOption {
	return func(p *Populator) {
		p.admission = adm
	}
}

// WithScanWorkers bounds how many module manifests the bulk scan reads
// concurrently.
func WithScanWorkers(n int) PopulatorOption {
	return func(p *Populator) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithPopulatorMetrics records population metrics through m.
func WithPopulatorMetrics(m *telemetry.RegistryMetrics) PopulatorOption {
	return func(p *Populator) {
		p.metrics = m
	}
}

// Populator fills a Registry from the host runtime. Start subscribes to
// module lifecycle events before anything else, then restores a valid
// persisted cache or bulk-scans the installed modules. Both paths and
// the event handler funnel into the same idempotent registration sink,
// which is what makes the event/scan race benign.
type Populator struct {
	runtime   host.Runtime
	registry  *Registry
	cache     CacheStore
	admission *filtering.Admission
	metrics   *telemetry.RegistryMetrics

	workers         int
	cacheEnabled    bool
	lazyLoading     bool
	checkTimestamps bool

	mu     sync.Mutex
	phase  Phase
	sub    host.Subscription
	parser manifest.Parser
}

// NewPopulator creates a populator filling registry from runtime.
func NewPopulator(runtime host.Runtime, registry *Registry, opts ...PopulatorOption) *Populator {
	p := &Populator{
		runtime:         runtime,
		registry:        registry,
		workers:         defaultWorkers,
		cacheEnabled:    true,
		lazyLoading:     true,
		checkTimestamps: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start populates the registry. It returns once the registry reflects
// every module installed at call time; modules installed later arrive
// through the event subscription. Start fails when no manifest parser
// service is available for a required scan.
func (p *Populator) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.phase != PhaseNotStarted {
		p.mu.Unlock()
		return fmt.Errorf("populator already started")
	}
	p.phase = PhaseSubscribing
	p.mu.Unlock()

	start := time.Now()

	// Subscribe before deciding between cache restore and bulk scan so
	// module transitions in the window are not lost. Events raced
	// against the scan are absorbed by the idempotent sink.
	sub := p.runtime.SubscribeModules(p.handleModuleEvent)
	p.mu.Lock()
	p.sub = sub
	p.mu.Unlock()

	path := "scan"
	if p.restoreFromCache(ctx) {
		path = "cache"
		p.setPhase(PhaseCacheHit)
		p.registry.SetFilledFromCache(true)
	} else {
		p.setPhase(PhaseBulkScanning)
		if err := p.bulkScan(ctx); err != nil {
			p.metrics.RecordPopulateDuration(ctx, path, time.Since(start), false)
			p.teardown()
			return fmt.Errorf("failed to populate component registry: %w", err)
		}
	}

	p.setPhase(PhaseReady)
	p.metrics.RecordPopulateDuration(ctx, path, time.Since(start), true)
	p.metrics.RecordComponentsTotal(ctx, int64(p.registry.Len()))
	slog.Info("component registry populated",
		"path", path,
		"components", p.registry.Len(),
		"duration", time.Since(start))
	return nil
}

// Stop cancels the event subscription, releases the lazily acquired
// manifest parser service, and persists the registry to the cache
// store. Stop is idempotent.
func (p *Populator) Stop(ctx context.Context) error {
	p.mu.Lock()
	sub := p.sub
	stopped := p.sub == nil && p.phase == PhaseNotStarted
	p.sub = nil
	p.parser = nil
	p.phase = PhaseNotStarted
	p.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
	if stopped {
		return nil
	}

	if p.cache != nil && p.cacheEnabled {
		snap := &CacheSnapshot{
			Timestamp:  p.cache.ContributionsTimestamp(p.runtime.Modules()),
			Components: p.registry.Components(),
		}
		if err := p.cache.Save(ctx, snap); err != nil {
			return fmt.Errorf("failed to persist component cache: %w", err)
		}
		slog.Debug("component cache persisted", "components", len(snap.Components))
	}
	return nil
}

// Phase returns the current populator phase.
func (p *Populator) Phase() Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase
}

func (p *Populator) setPhase(ph Phase) {
	p.mu.Lock()
	p.phase = ph
	p.mu.Unlock()
}

// teardown unwinds a failed start.
func (p *Populator) teardown() {
	p.mu.Lock()
	sub := p.sub
	p.sub = nil
	p.parser = nil
	p.phase = PhaseNotStarted
	p.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
}

// restoreFromCache fills the registry from the persisted snapshot.
// Reports false when the cache is disabled, absent, unreadable, or
// stale, in which case the caller falls back to the bulk scan.
func (p *Populator) restoreFromCache(ctx context.Context) bool {
	if p.cache == nil || !p.cacheEnabled {
		return false
	}

	snap, err := p.cache.Load(ctx)
	if err != nil {
		slog.Warn("failed to load component cache", "error", err)
		return false
	}
	if snap == nil {
		return false
	}

	if p.checkTimestamps {
		current := p.cache.ContributionsTimestamp(p.runtime.Modules())
		if current == 0 || current != snap.Timestamp {
			slog.Info("component cache is stale",
				"cached_timestamp", snap.Timestamp,
				"current_timestamp", current)
			return false
		}
	}

	restored := 0
	for _, rec := range snap.Components {
		if !p.lazyLoading {
			if _, err := os.Stat(rec.ManifestPath); err != nil {
				slog.Debug("dropping cached component with missing manifest",
					"component", rec.ID,
					"path", rec.ManifestPath)
				continue
			}
		}
		if p.addRecord(rec) {
			restored++
		}
	}
	slog.Info("component registry restored from cache", "components", restored)
	return true
}

// bulkScan reads the manifest of every installed module through a
// bounded worker pool.
func (p *Populator) bulkScan(ctx context.Context) error {
	modules := p.runtime.Modules()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for _, mod := range modules {
		g.Go(func() error {
			return p.scanModule(ctx, mod)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Debug("bulk manifest scan complete", "modules", len(modules))
	return nil
}

// scanModule registers the components declared by one module's
// manifest. A module without a manifest is skipped. Manifest read or
// parse failures are logged and skipped so one broken module does not
// abort the scan; an unavailable parser service aborts it, since then
// no module can be read at all.
func (p *Populator) scanModule(ctx context.Context, mod host.Module) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if mod.State() == host.StateUninstalled {
		return nil
	}
	path := mod.ManifestPath()
	if path == "" {
		return nil
	}

	parser, err := p.parserService()
	if err != nil {
		return err
	}

	m, err := manifest.Load(path, parser)
	if err != nil {
		slog.Warn("failed to load module manifest",
			"module", mod.Name(),
			"path", path,
			"error", err)
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		slog.Warn("failed to stat module manifest",
			"module", mod.Name(),
			"path", path,
			"error", err)
		return nil
	}
	timestamp := info.ModTime().UnixMilli()

	for _, comp := range m.Components {
		p.registerComponent(mod, path, timestamp, comp)
	}
	return nil
}

// registerComponent is the idempotent registration sink shared by the
// bulk scan and the event handler.
func (p *Populator) registerComponent(mod host.Module, path string, timestamp int64, comp manifest.Component) {
	p.addRecord(ComponentRecord{
		ID:           comp.ID,
		Point:        comp.Point,
		Type:         comp.Type,
		Version:      comp.Version,
		ManifestPath: path,
		Timestamp:    timestamp,
		ModuleID:     mod.ID(),
		ModuleName:   mod.Name(),
		Tags:         comp.Tags(),
		Properties:   comp.Properties,
	})
}

// addRecord applies admission rules and registers the record.
func (p *Populator) addRecord(rec ComponentRecord) bool {
	if ok, reason := p.admission.Admit(rec.ID, rec.Point, rec.Tags); !ok {
		slog.Debug("component rejected by admission rules",
			"component", rec.ID,
			"reason", reason)
		return false
	}
	if p.registry.AddComponent(rec) {
		slog.Debug("component registered",
			"component", rec.ID,
			"module", rec.ModuleName)
		return true
	}
	return false
}

// parserService returns the manifest parser, resolving it from the
// host service registry on first use. The reference is held until Stop.
func (p *Populator) parserService() (manifest.Parser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.parser != nil {
		return p.parser, nil
	}
	for _, ref := range p.runtime.Services().References(manifest.Capability) {
		if parser, ok := ref.Instance().(manifest.Parser); ok {
			p.parser = parser
			return parser, nil
		}
	}
	return nil, ErrNoManifestParser
}

func (p *Populator) handleModuleEvent(ev host.ModuleEvent) {
	switch ev.Type {
	case host.ModuleInstalled, host.ModuleResolved, host.ModuleStarted, host.ModuleUpdated:
		p.absorbModule(ev.Module)
	case host.ModuleUninstalled:
		p.dropModule(ev.Module)
	}
}

// absorbModule registers the components of a module reported by the
// event stream.
func (p *Populator) absorbModule(mod host.Module) {
	if err := p.scanModule(context.Background(), mod); err != nil {
		slog.Warn("failed to absorb module components",
			"module", mod.Name(),
			"error", err)
		return
	}
	p.metrics.RecordComponentsTotal(context.Background(), int64(p.registry.Len()))
}

// dropModule removes every component the module contributed.
func (p *Populator) dropModule(mod host.Module) {
	id := mod.ID()
	removed := 0
	for _, rec := range p.registry.Components() {
		if rec.ModuleID == id && p.registry.RemoveComponent(rec.ID) {
			removed++
		}
	}
	if removed > 0 {
		slog.Debug("module components removed",
			"module", mod.Name(),
			"components", removed)
		p.metrics.RecordComponentsTotal(context.Background(), int64(p.registry.Len()))
	}
}
