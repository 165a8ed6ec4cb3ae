package helpers

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/onsi/gomega"

	"github.com/stelliform/plughost/internal/manifest"
)

// ComponentSpec describes one contribution in a test module manifest.
type ComponentSpec struct {
	ID          string
	Point       string
	Type        string
	Version     string
	Description string
	Tags        []string
	Properties  map[string]any
}

// WriteModule creates a module directory under baseDir with a manifest
// declaring the given components, and returns the module location.
func WriteModule(baseDir, name, version string, components ...ComponentSpec) string {
	dir := filepath.Join(baseDir, name)
	gomega.Expect(os.MkdirAll(dir, 0750)).To(gomega.Succeed())

	comps := make([]map[string]any, 0, len(components))
	for _, c := range components {
		comp := map[string]any{
			"id":    c.ID,
			"point": c.Point,
		}
		if c.Type != "" {
			comp["type"] = c.Type
		}
		if c.Version != "" {
			comp["version"] = c.Version
		}
		if c.Description != "" {
			comp["description"] = c.Description
		}

		props := make(map[string]any, len(c.Properties)+1)
		for k, v := range c.Properties {
			props[k] = v
		}
		if len(c.Tags) > 0 {
			props["tags"] = c.Tags
		}
		if len(props) > 0 {
			comp["properties"] = props
		}

		comps = append(comps, comp)
	}

	doc := map[string]any{
		"name":    name,
		"version": version,
	}
	if len(comps) > 0 {
		doc["components"] = comps
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	manifestPath := filepath.Join(dir, manifest.FileName)
	gomega.Expect(os.WriteFile(manifestPath, data, 0600)).To(gomega.Succeed())

	return dir
}

// WriteBareModule creates a module directory without a manifest, for
// modules that contribute nothing.
func WriteBareModule(baseDir, name string) string {
	dir := filepath.Join(baseDir, name)
	gomega.Expect(os.MkdirAll(dir, 0750)).To(gomega.Succeed())
	return dir
}
