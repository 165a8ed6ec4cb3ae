package integration

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stelliform/plughost/internal/config"
	"github.com/stelliform/plughost/internal/store"
	"github.com/stelliform/plughost/test-integration/plughost/helpers"
)

var _ = Describe("Component Cache", Label("cache"), func() {
	var (
		tempDir      string
		dataDir      string
		notesDir     string
		cfg          *config.Config
		configFile   string
		serverHelper *helpers.ServerTestHelper
	)

	boolPtr := func(b bool) *bool { return &b }

	// startHost writes the config on first use so tests can tweak cfg
	// before the daemon ever sees it.
	startHost := func() {
		if configFile == "" {
			configFile = helpers.WriteConfig(tempDir, cfg)
		}
		serverHelper = helpers.NewServerTestHelper(ctx, configFile, helpers.FreePort(), dataDir)
		Expect(serverHelper.StartServer()).To(Succeed())
		serverHelper.WaitForServerReady(10 * time.Second)
	}

	stopHost := func() {
		Expect(serverHelper.StopServer()).To(Succeed())
		serverHelper = nil
	}

	BeforeEach(func() {
		tempDir = createTempDir("cache-test-")
		dataDir = filepath.Join(tempDir, "data")

		notesDir = helpers.WriteModule(tempDir, "org.example.notes", "1.0.0",
			helpers.ComponentSpec{
				ID:    "org.example.notes.editor",
				Point: "org.example.editors",
				Tags:  []string{"stable"},
			},
			helpers.ComponentSpec{
				ID:    "org.example.notes.preview",
				Point: "org.example.viewers",
			},
		)

		cfg = helpers.HostConfig(dataDir, notesDir)
		configFile = ""
		serverHelper = nil
	})

	AfterEach(func() {
		if serverHelper != nil {
			Expect(serverHelper.StopServer()).To(Succeed())
		}
		cleanupTempDir(tempDir)
	})

	It("should persist the component snapshot on shutdown", func() {
		startHost()
		serverHelper.WaitForComponents(2, 5*time.Second)
		stopHost()

		snap, err := store.NewFileStore(dataDir).Load(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(snap).NotTo(BeNil())
		Expect(snap.Timestamp).NotTo(BeZero())

		ids := make([]string, 0, len(snap.Components))
		for _, rec := range snap.Components {
			ids = append(ids, rec.ID)
		}
		Expect(ids).To(ConsistOf("org.example.notes.editor", "org.example.notes.preview"))
	})

	It("should restore the registry from the snapshot on restart", func() {
		startHost()
		serverHelper.WaitForComponents(2, 5*time.Second)
		stopHost()

		startHost()
		components := serverHelper.WaitForComponents(2, 5*time.Second)

		modules := serverHelper.GetModules()
		Expect(modules.Count).To(Equal(1))
		for _, rec := range components {
			Expect(rec.ModuleID).To(Equal(modules.Modules[0].ID))
			Expect(rec.ModuleName).To(Equal("org.example.notes"))
		}
	})

	It("should serve cached components after the module files disappear", func() {
		cfg.Cache = &config.CacheConfig{CheckTimestamps: boolPtr(false)}

		startHost()
		serverHelper.WaitForComponents(2, 5*time.Second)
		stopHost()

		Expect(os.RemoveAll(notesDir)).To(Succeed())

		// Lazy loading trusts the snapshot, so the records survive the
		// disappearance of the manifests they were read from.
		startHost()
		components := serverHelper.WaitForComponents(2, 5*time.Second)

		ids := make([]string, 0, len(components))
		for _, rec := range components {
			ids = append(ids, rec.ID)
		}
		Expect(ids).To(ConsistOf("org.example.notes.editor", "org.example.notes.preview"))
	})

	It("should rescan when a manifest changed while the host was down", func() {
		startHost()
		serverHelper.WaitForComponents(2, 5*time.Second)
		stopHost()

		helpers.WriteModule(tempDir, "org.example.notes", "1.1.0",
			helpers.ComponentSpec{
				ID:      "org.example.notes.editor",
				Point:   "org.example.editors",
				Version: "1.1.0",
				Tags:    []string{"stable"},
			},
			helpers.ComponentSpec{
				ID:    "org.example.notes.preview",
				Point: "org.example.viewers",
			},
			helpers.ComponentSpec{
				ID:    "org.example.notes.outline",
				Point: "org.example.viewers",
			},
		)

		startHost()
		components := serverHelper.WaitForComponents(3, 5*time.Second)

		for _, rec := range components {
			if rec.ID == "org.example.notes.editor" {
				Expect(rec.Version).To(Equal("1.1.0"))
			}
		}
	})

	It("should fall back to a scan when the snapshot is unreadable", func() {
		startHost()
		serverHelper.WaitForComponents(2, 5*time.Second)
		stopHost()

		cachePath := filepath.Join(dataDir, store.CacheFileName)
		Expect(os.WriteFile(cachePath, []byte("{not json"), 0600)).To(Succeed())

		startHost()
		serverHelper.WaitForComponents(2, 5*time.Second)
	})

	It("should not write a snapshot when the cache is disabled", func() {
		cfg.Cache = &config.CacheConfig{Enabled: boolPtr(false)}

		startHost()
		serverHelper.WaitForComponents(2, 5*time.Second)
		stopHost()

		_, err := os.Stat(filepath.Join(dataDir, store.CacheFileName))
		Expect(os.IsNotExist(err)).To(BeTrue())
	})
})
