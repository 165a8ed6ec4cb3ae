package helpers

import (
	"os"
	"path/filepath"

	"github.com/onsi/gomega"
	"gopkg.in/yaml.v3"

	"github.com/stelliform/plughost/internal/config"
)

// WriteConfig marshals cfg to YAML in dir and returns the file path.
// Going through the YAML round trip keeps the tests honest about what a
// deployed configuration file can express.
func WriteConfig(dir string, cfg *config.Config) string {
	data, err := yaml.Marshal(cfg)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	path := filepath.Join(dir, "config.yaml")
	gomega.Expect(os.WriteFile(path, data, 0600)).To(gomega.Succeed())

	return path
}

// HostConfig builds a config installing the given module locations,
// with every module auto-started and named after its directory.
func HostConfig(dataDir string, moduleLocations ...string) *config.Config {
	modules := make([]config.ModuleConfig, 0, len(moduleLocations))
	for _, loc := range moduleLocations {
		modules = append(modules, config.ModuleConfig{
			Name:      filepath.Base(loc),
			Location:  loc,
			AutoStart: true,
		})
	}

	return &config.Config{
		InstanceName: "integration-host",
		DataDir:      dataDir,
		Modules:      modules,
	}
}
