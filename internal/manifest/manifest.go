// Package manifest loads the component descriptors modules contribute.
//
// A module that contributes components ships a plugin.json manifest in
// its install location. Parsing goes through a Parser service resolved
// from the host service registry, so alternative manifest formats can
// be dropped in without touching the populator.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileName is the manifest file a contributing module ships.
const FileName = "plugin.json"

// Capability is the service-registry capability a manifest parser is
// published under.
const Capability = "plughost.manifest.parser"

// Component is one component declaration from a module manifest.
type Component struct {
	// ID is the registry-wide component identifier.
	ID string `json:"id"`
	// Point names the extension point the component plugs into.
	Point string `json:"point"`
	// Type is the executable extension type name, when the component
	// carries one.
	Type string `json:"type,omitempty"`
	// Version is the component version, independent of the module
	// version.
	Version string `json:"version,omitempty"`
	// Description is free-form text for operators.
	Description string `json:"description,omitempty"`
	// Properties carries component configuration, including the
	// plugin ranking and target keys for notification plugins.
	Properties map[string]any `json:"properties,omitempty"`
}

// Tags returns the component's tags from the "tags" property. Both a
// decoded-JSON []any and a plain string slice are accepted; anything else
// yields nil.
func (c *Component) Tags() []string {
	switch v := c.Properties["tags"].(type) {
	case []string:
		return v
	case []any:
		tags := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				tags = append(tags, s)
			}
		}
		if len(tags) == 0 {
			return nil
		}
		return tags
	}
	return nil
}

// Manifest is the plugin.json document a module ships.
type Manifest struct {
	Name       string      `json:"name"`
	Version    string      `json:"version"`
	Components []Component `json:"components,omitempty"`
}

// Parser turns raw manifest bytes into a Manifest.
type Parser interface {
	Parse(data []byte) (*Manifest, error)
}

// Locate returns the path of the manifest inside dir, or "" when the
// directory carries none.
func Locate(dir string) string {
	if dir == "" {
		return ""
	}
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// Load reads the manifest at path and parses it with p.
func Load(path string, p Parser) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return p.Parse(data)
}
