package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	v0 "github.com/stelliform/plughost/internal/api/v0"
	"github.com/stelliform/plughost/internal/host"
	"github.com/stelliform/plughost/internal/plugin"
	"github.com/stelliform/plughost/test-integration/plughost/helpers"
)

// dispatchLog records plugin invocations across goroutines. The dispatch
// pipeline runs detached from the HTTP request, so assertions poll it.
type dispatchLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *dispatchLog) record(entry string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

func (l *dispatchLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

// recorderPlugin is a notification hook that writes its invocations into a
// shared log. An edit hook, when set, runs against the shared props before
// the invocation is recorded.
type recorderPlugin struct {
	name string
	log  *dispatchLog
	fail bool
	edit func(props map[string]any)
}

func (r *recorderPlugin) Modify(_ context.Context, subjectID string, props map[string]any) error {
	if r.edit != nil {
		r.edit(props)
	}
	r.log.record(r.name + ":" + subjectID)
	if r.fail {
		return fmt.Errorf("%s rejects %s", r.name, subjectID)
	}
	return nil
}

var _ = Describe("Notification Dispatch", Label("notify"), func() {
	var (
		tempDir      string
		serverHelper *helpers.ServerTestHelper
		log          *dispatchLog
	)

	register := func(rec *recorderPlugin, ranking int, targets ...string) host.Registration {
		props := map[string]any{host.PropRanking: ranking}
		if len(targets) > 0 {
			props[host.PropTargets] = targets
		}
		reg, err := serverHelper.Runtime().Services().Register(plugin.Capability, rec, props)
		Expect(err).NotTo(HaveOccurred())
		return reg
	}

	BeforeEach(func() {
		tempDir = createTempDir("notify-test-")
		dataDir := filepath.Join(tempDir, "data")
		configFile := helpers.WriteConfig(tempDir, helpers.HostConfig(dataDir))

		serverHelper = helpers.NewServerTestHelper(ctx, configFile, helpers.FreePort(), dataDir)
		log = &dispatchLog{}
	})

	// Participants register in BeforeEach, against the runtime the server
	// will adopt, so startup finds them already in place.
	JustBeforeEach(func() {
		Expect(serverHelper.StartServer()).To(Succeed())
		serverHelper.WaitForServerReady(10 * time.Second)
	})

	AfterEach(func() {
		Expect(serverHelper.StopServer()).To(Succeed())
		cleanupTempDir(tempDir)
	})

	Context("Ranking Order", func() {
		BeforeEach(func() {
			// Registration order is scrambled on purpose.
			register(&recorderPlugin{name: "low", log: log}, 5)
			register(&recorderPlugin{name: "high", log: log}, 20)
			register(&recorderPlugin{name: "mid", log: log}, 10)
		})

		It("should invoke participants in descending ranking order", func() {
			resp, err := serverHelper.Notify("com.example.editor", map[string]any{"theme": "dark"})
			Expect(err).NotTo(HaveOccurred())
			defer func() {
				_ = resp.Body.Close()
			}()

			Expect(resp.StatusCode).To(Equal(http.StatusAccepted))

			var ack v0.NotifyResponse
			Expect(json.NewDecoder(resp.Body).Decode(&ack)).To(Succeed())
			Expect(ack.ID).NotTo(BeEmpty())
			Expect(ack.Status).To(Equal("accepted"))

			Eventually(log.snapshot, 5*time.Second, 50*time.Millisecond).Should(Equal([]string{
				"high:com.example.editor",
				"mid:com.example.editor",
				"low:com.example.editor",
			}))
		})

		It("should list participants in dispatch order", func() {
			page := serverHelper.GetParticipants()
			Expect(page.Count).To(Equal(3))

			rankings := make([]int, 0, len(page.Participants))
			for _, p := range page.Participants {
				rankings = append(rankings, p.Ranking)
			}
			Expect(rankings).To(Equal([]int{20, 10, 5}))
		})
	})

	Context("Target Filters", func() {
		BeforeEach(func() {
			register(&recorderPlugin{name: "docsOnly", log: log}, 10, "com.example.docs")
			register(&recorderPlugin{name: "everything", log: log}, 5)
		})

		It("should skip participants whose filter excludes the subject", func() {
			resp, err := serverHelper.Notify("com.example.editor", map[string]any{"theme": "dark"})
			Expect(err).NotTo(HaveOccurred())
			_ = resp.Body.Close()

			Eventually(log.snapshot, 5*time.Second, 50*time.Millisecond).Should(
				ContainElement("everything:com.example.editor"))

			resp, err = serverHelper.Notify("com.example.docs", map[string]any{"autosave": true})
			Expect(err).NotTo(HaveOccurred())
			_ = resp.Body.Close()

			Eventually(log.snapshot, 5*time.Second, 50*time.Millisecond).Should(HaveLen(3))
			Expect(log.snapshot()).To(ConsistOf(
				"everything:com.example.editor",
				"docsOnly:com.example.docs",
				"everything:com.example.docs",
			))
		})

		It("should expose the filter through the participants endpoint", func() {
			page := serverHelper.GetParticipants()
			Expect(page.Count).To(Equal(2))

			for _, p := range page.Participants {
				switch p.Ranking {
				case 10:
					Expect(p.Targets).To(ConsistOf("com.example.docs"))
				case 5:
					Expect(p.Targets).To(BeEmpty())
				default:
					Fail(fmt.Sprintf("unexpected participant ranking %d", p.Ranking))
				}
			}
		})
	})

	Context("Failure Isolation", func() {
		BeforeEach(func() {
			register(&recorderPlugin{name: "flaky", log: log, fail: true}, 30)
			register(&recorderPlugin{name: "steady", log: log}, 10)
		})

		It("should keep dispatching past a failing participant", func() {
			resp, err := serverHelper.Notify("com.example.editor", map[string]any{"theme": "dark"})
			Expect(err).NotTo(HaveOccurred())
			_ = resp.Body.Close()

			Eventually(log.snapshot, 5*time.Second, 50*time.Millisecond).Should(Equal([]string{
				"flaky:com.example.editor",
				"steady:com.example.editor",
			}))
		})

		It("should keep a failing participant in rotation", func() {
			for i := 0; i < 2; i++ {
				resp, err := serverHelper.Notify("com.example.editor", map[string]any{"round": i})
				Expect(err).NotTo(HaveOccurred())
				_ = resp.Body.Close()
			}

			Eventually(log.snapshot, 5*time.Second, 50*time.Millisecond).Should(HaveLen(4))
		})
	})

	Context("Prop Propagation", func() {
		BeforeEach(func() {
			register(&recorderPlugin{
				name: "annotator",
				log:  log,
				edit: func(props map[string]any) {
					props["reviewed"] = true
				},
			}, 20)
			register(&recorderPlugin{
				name: "auditor",
				log:  log,
				edit: func(props map[string]any) {
					if reviewed, _ := props["reviewed"].(bool); reviewed {
						log.record("auditor:saw-review")
					}
				},
			}, 10)
		})

		It("should hand one participant's edits to the next", func() {
			resp, err := serverHelper.Notify("com.example.settings", map[string]any{"path": "/etc/app.conf"})
			Expect(err).NotTo(HaveOccurred())
			_ = resp.Body.Close()

			Eventually(log.snapshot, 5*time.Second, 50*time.Millisecond).Should(
				ContainElement("auditor:saw-review"))
		})
	})

	Context("Deletion Notifications", func() {
		BeforeEach(func() {
			register(&recorderPlugin{name: "watcher", log: log}, 10)
		})

		It("should accept a props-less notification without invoking participants", func() {
			resp, err := serverHelper.Notify("com.example.editor", nil)
			Expect(err).NotTo(HaveOccurred())
			_ = resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusAccepted))

			// A follow-up dispatch with props proves the deletion above
			// never reached the participant.
			resp, err = serverHelper.Notify("com.example.editor", map[string]any{"theme": "dark"})
			Expect(err).NotTo(HaveOccurred())
			_ = resp.Body.Close()

			Eventually(log.snapshot, 5*time.Second, 50*time.Millisecond).Should(Equal([]string{
				"watcher:com.example.editor",
			}))
		})
	})

	Context("Live Registration", func() {
		It("should adopt participants that arrive after startup", func() {
			Expect(serverHelper.GetParticipants().Count).To(BeZero())

			reg := register(&recorderPlugin{name: "late", log: log}, 10)

			Eventually(func() int {
				return serverHelper.GetParticipants().Count
			}, 5*time.Second, 50*time.Millisecond).Should(Equal(1))

			resp, err := serverHelper.Notify("com.example.editor", map[string]any{"theme": "dark"})
			Expect(err).NotTo(HaveOccurred())
			_ = resp.Body.Close()

			Eventually(log.snapshot, 5*time.Second, 50*time.Millisecond).Should(
				ContainElement("late:com.example.editor"))

			Expect(reg.Unregister()).To(Succeed())

			Eventually(func() int {
				return serverHelper.GetParticipants().Count
			}, 5*time.Second, 50*time.Millisecond).Should(BeZero())

			before := len(log.snapshot())
			resp, err = serverHelper.Notify("com.example.editor", map[string]any{"theme": "light"})
			Expect(err).NotTo(HaveOccurred())
			_ = resp.Body.Close()

			Consistently(log.snapshot, 500*time.Millisecond, 100*time.Millisecond).Should(HaveLen(before))
		})

		It("should reorder when a participant's ranking changes", func() {
			first := register(&recorderPlugin{name: "first", log: log}, 20)
			register(&recorderPlugin{name: "second", log: log}, 10)

			Eventually(func() int {
				return serverHelper.GetParticipants().Count
			}, 5*time.Second, 50*time.Millisecond).Should(Equal(2))

			Expect(first.SetProperties(map[string]any{host.PropRanking: 5})).To(Succeed())

			Eventually(func() []int {
				page := serverHelper.GetParticipants()
				rankings := make([]int, 0, len(page.Participants))
				for _, p := range page.Participants {
					rankings = append(rankings, p.Ranking)
				}
				return rankings
			}, 5*time.Second, 50*time.Millisecond).Should(Equal([]int{10, 5}))
		})
	})

	Context("Validation", func() {
		It("should reject a notification without a subject", func() {
			resp, err := serverHelper.Notify("", map[string]any{"theme": "dark"})
			Expect(err).NotTo(HaveOccurred())
			defer func() {
				_ = resp.Body.Close()
			}()

			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})
})
