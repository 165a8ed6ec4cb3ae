// Package config provides configuration loading and management for the plugin host.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"

	"github.com/stelliform/plughost/internal/telemetry"
)

const (
	// EnvPrefix is the prefix for environment variables consumed by the
	// daemon, e.g. PLUGHOST_LOG_LEVEL.
	EnvPrefix = "PLUGHOST"

	// DefaultInstanceName identifies a host that does not set instanceName
	DefaultInstanceName = "plughost"

	// DefaultDataDir is where cache and state files live when dataDir is unset
	DefaultDataDir = "plughost-data"

	// DefaultServerAddress is the API listen address when server.address is unset
	DefaultServerAddress = ":8080"

	// DefaultScanWorkers bounds the bulk manifest scan when scan.workers is unset
	DefaultScanWorkers = 4
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		// Validate the path to prevent path traversal attacks
		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// InstanceName is the name/identifier for this host instance
	// Defaults to "plughost" if not specified
	InstanceName string `yaml:"instanceName,omitempty"`

	// DataDir is the directory holding the persisted extension cache
	DataDir string `yaml:"dataDir,omitempty"`

	// Modules lists plugin modules installed into the runtime at startup
	Modules []ModuleConfig `yaml:"modules"`

	Cache     *CacheConfig      `yaml:"cache,omitempty"`
	Admission *AdmissionConfig  `yaml:"admission,omitempty"`
	Scan      *ScanConfig       `yaml:"scan,omitempty"`
	Server    *ServerConfig     `yaml:"server,omitempty"`
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// ModuleConfig declares one plugin module to install at startup
type ModuleConfig struct {
	// Name is the module's symbolic name, unique across the configuration
	Name string `yaml:"name"`

	// Version is an optional semantic version reported for the module
	Version string `yaml:"version,omitempty"`

	// Location is the directory containing the module's files, including
	// its manifest
	Location string `yaml:"location"`

	// AutoStart starts the module right after installation
	AutoStart bool `yaml:"autoStart,omitempty"`
}

// CacheConfig controls the persisted extension registry cache
type CacheConfig struct {
	// Enabled turns the cache on; when off every start performs a full scan
	Enabled *bool `yaml:"enabled,omitempty"`

	// LazyLoading defers component detail loading until first access
	LazyLoading *bool `yaml:"lazyLoading,omitempty"`

	// CheckTimestamps invalidates the cache when module manifests changed
	// since it was written
	CheckTimestamps *bool `yaml:"checkTimestamps,omitempty"`
}

// AdmissionConfig defines filtering rules for contributed components
type AdmissionConfig struct {
	Components *PatternRulesConfig `yaml:"components,omitempty"`
	Points     *PatternRulesConfig `yaml:"points,omitempty"`
	Tags       *TagRulesConfig     `yaml:"tags,omitempty"`
}

// PatternRulesConfig defines glob-based include/exclude rules
type PatternRulesConfig struct {
	Include []string `yaml:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`
}

// TagRulesConfig defines exact-match include/exclude rules over component tags
type TagRulesConfig struct {
	Include []string `yaml:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`
}

// ScanConfig controls the bulk manifest scan
type ScanConfig struct {
	// Workers bounds how many module manifests are parsed concurrently
	Workers int `yaml:"workers,omitempty"`
}

// ServerConfig defines API server settings
type ServerConfig struct {
	// Address is the listen address, e.g. ":8080"
	Address string `yaml:"address,omitempty"`
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	// As of now, this is required because there's no other options to load
	// configuration. Once we add more options, we can remove this check.
	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	// Read the entire file into memory
	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML content
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	// Validate the config
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// GetInstanceName returns the instance name, using the default if not specified
func (c *Config) GetInstanceName() string {
	if c.InstanceName == "" {
		return DefaultInstanceName
	}
	return c.InstanceName
}

// GetDataDir returns the data directory, using the default if not specified
func (c *Config) GetDataDir() string {
	if c.DataDir == "" {
		return DefaultDataDir
	}
	return c.DataDir
}

// GetAddress returns the API listen address, using the default if not specified
func (s *ServerConfig) GetAddress() string {
	if s == nil || s.Address == "" {
		return DefaultServerAddress
	}
	return s.Address
}

// GetWorkers returns the bulk scan concurrency bound, using the default if
// not specified
func (s *ScanConfig) GetWorkers() int {
	if s == nil || s.Workers <= 0 {
		return DefaultScanWorkers
	}
	return s.Workers
}

// GetEnabled reports whether the persisted cache is enabled. Defaults to true.
func (c *CacheConfig) GetEnabled() bool {
	if c == nil || c.Enabled == nil {
		return true
	}
	return *c.Enabled
}

// GetLazyLoading reports whether component details load lazily. Defaults to true.
func (c *CacheConfig) GetLazyLoading() bool {
	if c == nil || c.LazyLoading == nil {
		return true
	}
	return *c.LazyLoading
}

// GetCheckTimestamps reports whether cache validity is tied to manifest
// timestamps. Defaults to true.
func (c *CacheConfig) GetCheckTimestamps() bool {
	if c == nil || c.CheckTimestamps == nil {
		return true
	}
	return *c.CheckTimestamps
}

// Validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	moduleNames := make(map[string]bool)
	for i, mod := range c.Modules {
		if err := validateModuleConfig(&mod, i); err != nil {
			return err
		}
		if moduleNames[mod.Name] {
			return fmt.Errorf("module[%d]: duplicate module name '%s'", i, mod.Name)
		}
		moduleNames[mod.Name] = true
	}

	if err := validateAdmission(c.Admission); err != nil {
		return err
	}

	if c.Scan != nil && c.Scan.Workers < 0 {
		return fmt.Errorf("scan.workers must not be negative")
	}

	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	return nil
}

// validateModuleConfig validates a single module declaration
func validateModuleConfig(mod *ModuleConfig, index int) error {
	prefix := fmt.Sprintf("module[%d]", index)

	if mod.Name == "" {
		return fmt.Errorf("%s: name is required", prefix)
	}
	if mod.Location == "" {
		return fmt.Errorf("%s (%s): location is required", prefix, mod.Name)
	}
	if mod.Version != "" {
		if _, err := semver.NewVersion(mod.Version); err != nil {
			return fmt.Errorf("%s (%s): version must be a valid semantic version: %w", prefix, mod.Name, err)
		}
	}

	return nil
}

// validateAdmission checks that every admission pattern compiles, so bad
// globs surface at load time instead of during the scan
func validateAdmission(adm *AdmissionConfig) error {
	if adm == nil {
		return nil
	}

	rules := []struct {
		name     string
		patterns *PatternRulesConfig
	}{
		{"admission.components", adm.Components},
		{"admission.points", adm.Points},
	}

	for _, r := range rules {
		if r.patterns == nil {
			continue
		}
		for _, p := range r.patterns.Include {
			if _, err := glob.Compile(p); err != nil {
				return fmt.Errorf("%s: invalid include pattern '%s': %w", r.name, p, err)
			}
		}
		for _, p := range r.patterns.Exclude {
			if _, err := glob.Compile(p); err != nil {
				return fmt.Errorf("%s: invalid exclude pattern '%s': %w", r.name, p, err)
			}
		}
	}

	return nil
}
