package integration

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	v0 "github.com/stelliform/plughost/internal/api/v0"
	"github.com/stelliform/plughost/internal/config"
	"github.com/stelliform/plughost/test-integration/plughost/helpers"
)

var _ = Describe("Admission Filtering", Label("filtering"), func() {
	var (
		tempDir      string
		serverHelper *helpers.ServerTestHelper
	)

	BeforeEach(func() {
		tempDir = createTempDir("filtering-test-")
		dataDir := filepath.Join(tempDir, "data")

		toolsDir := helpers.WriteModule(tempDir, "org.example.tools", "1.0.0",
			helpers.ComponentSpec{
				ID:    "org.example.tool.format",
				Point: "org.example.tools",
				Tags:  []string{"stable"},
			},
			helpers.ComponentSpec{
				ID:    "org.example.tool.scratch",
				Point: "org.example.tools",
				Tags:  []string{"experimental"},
			},
			helpers.ComponentSpec{
				ID:    "org.example.tool.probe",
				Point: "org.example.internal.diag",
				Tags:  []string{"stable"},
			},
		)
		extrasDir := helpers.WriteModule(tempDir, "com.vendor.extras", "0.9.0",
			helpers.ComponentSpec{
				ID:    "com.vendor.extras.panel",
				Point: "org.example.tools",
			},
		)

		cfg := helpers.HostConfig(dataDir, toolsDir, extrasDir)
		cfg.Admission = &config.AdmissionConfig{
			Components: &config.PatternRulesConfig{
				Include: []string{"org.example.*"},
			},
			Points: &config.PatternRulesConfig{
				Exclude: []string{"org.example.internal.*"},
			},
			Tags: &config.TagRulesConfig{
				Exclude: []string{"experimental"},
			},
		}
		configFile := helpers.WriteConfig(tempDir, cfg)

		serverHelper = helpers.NewServerTestHelper(ctx, configFile, helpers.FreePort(), dataDir)
		Expect(serverHelper.StartServer()).To(Succeed())
		serverHelper.WaitForServerReady(10 * time.Second)
	})

	AfterEach(func() {
		Expect(serverHelper.StopServer()).To(Succeed())
		cleanupTempDir(tempDir)
	})

	It("should admit only components that pass every rule set", func() {
		components := serverHelper.WaitForComponents(1, 5*time.Second)
		Expect(components[0].ID).To(Equal("org.example.tool.format"))
	})

	It("should keep filtered modules installed and active", func() {
		// Admission narrows the component registry, never the module set.
		page := serverHelper.GetModules()
		Expect(page.Count).To(Equal(2))
		for _, mod := range page.Modules {
			Expect(mod.State).To(Equal("active"))
		}
	})

	It("should apply the same rules to modules installed at runtime", func() {
		serverHelper.WaitForComponents(1, 5*time.Second)

		lateDir := helpers.WriteModule(tempDir, "org.example.late", "0.1.0",
			helpers.ComponentSpec{
				ID:    "org.example.late.viewer",
				Point: "org.example.tools",
				Tags:  []string{"stable"},
			},
			helpers.ComponentSpec{
				ID:    "org.example.late.draft",
				Point: "org.example.tools",
				Tags:  []string{"experimental"},
			},
		)

		resp, err := serverHelper.InstallModule(v0.InstallModuleRequest{
			Name:      "org.example.late",
			Location:  lateDir,
			AutoStart: true,
		})
		Expect(err).NotTo(HaveOccurred())
		_ = resp.Body.Close()

		components := serverHelper.WaitForComponents(2, 5*time.Second)

		ids := make([]string, 0, len(components))
		for _, c := range components {
			ids = append(ids, c.ID)
		}
		Expect(ids).To(ConsistOf("org.example.tool.format", "org.example.late.viewer"))
	})
})
