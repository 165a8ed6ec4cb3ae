package integration

import (
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	v0 "github.com/stelliform/plughost/internal/api/v0"
	"github.com/stelliform/plughost/internal/service"
	"github.com/stelliform/plughost/test-integration/plughost/helpers"
)

var _ = Describe("Module Lifecycle", Label("lifecycle"), func() {
	var (
		tempDir      string
		dataDir      string
		serverHelper *helpers.ServerTestHelper
	)

	BeforeEach(func() {
		tempDir = createTempDir("lifecycle-test-")
		dataDir = filepath.Join(tempDir, "data")

		parsersDir := helpers.WriteModule(tempDir, "org.example.parsers", "1.0.0",
			helpers.ComponentSpec{
				ID:      "org.example.parser.json",
				Point:   "org.example.parsers",
				Type:    "org.example.JSONParser",
				Version: "1.0.0",
				Tags:    []string{"parser", "stable"},
			},
			helpers.ComponentSpec{
				ID:    "org.example.parser.yaml",
				Point: "org.example.parsers",
				Tags:  []string{"parser"},
			},
		)
		widgetsDir := helpers.WriteModule(tempDir, "org.example.widgets", "2.0.0",
			helpers.ComponentSpec{
				ID:    "org.example.widget.tree",
				Point: "org.example.widgets",
				Tags:  []string{"ui"},
			},
		)

		configFile := helpers.WriteConfig(tempDir, helpers.HostConfig(dataDir, parsersDir, widgetsDir))

		serverHelper = helpers.NewServerTestHelper(ctx, configFile, helpers.FreePort(), dataDir)
		Expect(serverHelper.StartServer()).To(Succeed())
		serverHelper.WaitForServerReady(10 * time.Second)
	})

	AfterEach(func() {
		Expect(serverHelper.StopServer()).To(Succeed())
		cleanupTempDir(tempDir)
	})

	Context("Health and Version", func() {
		It("should serve the health endpoint", func() {
			resp, err := serverHelper.GetHealth()
			Expect(err).NotTo(HaveOccurred())
			defer func() {
				_ = resp.Body.Close()
			}()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("should report build information", func() {
			resp, err := serverHelper.GetVersion()
			Expect(err).NotTo(HaveOccurred())
			defer func() {
				_ = resp.Body.Close()
			}()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var info map[string]string
			Expect(json.NewDecoder(resp.Body).Decode(&info)).To(Succeed())
			Expect(info).To(HaveKey("version"))
			Expect(info).To(HaveKey("go_version"))
		})
	})

	Context("Scanned Components", func() {
		It("should expose every scanned component over the API", func() {
			components := serverHelper.WaitForComponents(3, 5*time.Second)

			ids := make([]string, 0, len(components))
			for _, c := range components {
				ids = append(ids, c.ID)
			}
			Expect(ids).To(ConsistOf(
				"org.example.parser.json",
				"org.example.parser.yaml",
				"org.example.widget.tree",
			))
		})

		It("should carry module attribution on each record", func() {
			components := serverHelper.WaitForComponents(3, 5*time.Second)

			for _, c := range components {
				Expect(c.ModuleID).To(BeNumerically(">", 0))
				Expect(c.ModuleName).NotTo(BeEmpty())
				Expect(c.ManifestPath).NotTo(BeEmpty())
				Expect(c.Timestamp).To(BeNumerically(">", 0))
			}
		})

		It("should filter by extension point", func() {
			serverHelper.WaitForComponents(3, 5*time.Second)

			page := serverHelper.ListComponents("point=org.example.parsers")
			Expect(page.Components).To(HaveLen(2))
			for _, c := range page.Components {
				Expect(c.Point).To(Equal("org.example.parsers"))
			}
		})

		It("should filter by tag", func() {
			serverHelper.WaitForComponents(3, 5*time.Second)

			page := serverHelper.ListComponents("tag=stable")
			Expect(page.Components).To(HaveLen(1))
			Expect(page.Components[0].ID).To(Equal("org.example.parser.json"))
		})

		It("should page through the registry with limit and cursor", func() {
			serverHelper.WaitForComponents(3, 5*time.Second)

			first := serverHelper.ListComponents("limit=2")
			Expect(first.Components).To(HaveLen(2))
			Expect(first.Metadata.NextCursor).NotTo(BeEmpty())

			second := serverHelper.ListComponents("limit=2&cursor=" + first.Metadata.NextCursor)
			Expect(second.Components).To(HaveLen(1))
			Expect(second.Metadata.NextCursor).To(BeEmpty())

			seen := map[string]bool{}
			for _, c := range append(first.Components, second.Components...) {
				Expect(seen[c.ID]).To(BeFalse(), "component %s served twice", c.ID)
				seen[c.ID] = true
			}
		})

		It("should fetch a single component by id", func() {
			serverHelper.WaitForComponents(3, 5*time.Second)

			resp, err := serverHelper.GetComponent("org.example.widget.tree")
			Expect(err).NotTo(HaveOccurred())
			defer func() {
				_ = resp.Body.Close()
			}()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			data, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring("org.example.widgets"))
		})

		It("should return 404 for an unknown component", func() {
			resp, err := serverHelper.GetComponent("org.example.missing")
			Expect(err).NotTo(HaveOccurred())
			defer func() {
				_ = resp.Body.Close()
			}()

			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Context("Module Management", func() {
		It("should list the installed modules with their state", func() {
			page := serverHelper.GetModules()
			Expect(page.Count).To(Equal(2))

			names := make([]string, 0, len(page.Modules))
			for _, mod := range page.Modules {
				names = append(names, mod.Name)
				Expect(mod.State).To(Equal("active"))
			}
			Expect(names).To(ConsistOf("org.example.parsers", "org.example.widgets"))
		})

		It("should install a module through the API and scan it live", func() {
			serverHelper.WaitForComponents(3, 5*time.Second)

			chartsDir := helpers.WriteModule(tempDir, "org.example.charts", "0.3.0",
				helpers.ComponentSpec{
					ID:    "org.example.chart.bar",
					Point: "org.example.widgets",
					Tags:  []string{"ui", "chart"},
				},
			)

			resp, err := serverHelper.InstallModule(v0.InstallModuleRequest{
				Name:      "org.example.charts",
				Version:   "0.3.0",
				Location:  chartsDir,
				AutoStart: true,
			})
			Expect(err).NotTo(HaveOccurred())
			defer func() {
				_ = resp.Body.Close()
			}()

			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var installed service.ModuleInfo
			Expect(json.NewDecoder(resp.Body).Decode(&installed)).To(Succeed())
			Expect(installed.Name).To(Equal("org.example.charts"))
			Expect(installed.State).To(Equal("active"))

			// The populator picks the new module up through the module
			// event subscription, no rescan or restart involved.
			components := serverHelper.WaitForComponents(4, 5*time.Second)

			var chart bool
			for _, c := range components {
				if c.ID == "org.example.chart.bar" {
					chart = true
					Expect(c.ModuleID).To(Equal(installed.ID))
					Expect(c.ModuleName).To(Equal("org.example.charts"))
				}
			}
			Expect(chart).To(BeTrue(), "live-installed component should be served")
		})

		It("should install a module that contributes nothing", func() {
			serverHelper.WaitForComponents(3, 5*time.Second)

			bareDir := helpers.WriteBareModule(tempDir, "org.example.bare")

			resp, err := serverHelper.InstallModule(v0.InstallModuleRequest{
				Name:      "org.example.bare",
				Location:  bareDir,
				AutoStart: true,
			})
			Expect(err).NotTo(HaveOccurred())
			defer func() {
				_ = resp.Body.Close()
			}()

			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			Expect(serverHelper.GetModules().Count).To(Equal(3))

			Consistently(func() int {
				return len(serverHelper.ListComponents("").Components)
			}, 500*time.Millisecond, 100*time.Millisecond).Should(Equal(3))
		})

		It("should reject an installation without a name", func() {
			resp, err := serverHelper.InstallModule(v0.InstallModuleRequest{
				Location: "/opt/plugins/anonymous",
			})
			Expect(err).NotTo(HaveOccurred())
			defer func() {
				_ = resp.Body.Close()
			}()

			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("should uninstall a module and withdraw its components", func() {
			serverHelper.WaitForComponents(3, 5*time.Second)

			var widgetsID int64
			for _, mod := range serverHelper.GetModules().Modules {
				if mod.Name == "org.example.widgets" {
					widgetsID = mod.ID
				}
			}
			Expect(widgetsID).NotTo(BeZero())

			resp, err := serverHelper.UninstallModule(widgetsID)
			Expect(err).NotTo(HaveOccurred())
			defer func() {
				_ = resp.Body.Close()
			}()

			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))

			serverHelper.WaitForComponents(2, 5*time.Second)

			single, err := serverHelper.GetComponent("org.example.widget.tree")
			Expect(err).NotTo(HaveOccurred())
			defer func() {
				_ = single.Body.Close()
			}()
			Expect(single.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("should return 404 when uninstalling an unknown module", func() {
			resp, err := serverHelper.UninstallModule(9999)
			Expect(err).NotTo(HaveOccurred())
			defer func() {
				_ = resp.Body.Close()
			}()

			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})
})
