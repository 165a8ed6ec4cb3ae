package helpers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/onsi/gomega"

	v0 "github.com/stelliform/plughost/internal/api/v0"
	hostapp "github.com/stelliform/plughost/internal/app"
	"github.com/stelliform/plughost/internal/config"
	"github.com/stelliform/plughost/internal/extension"
	"github.com/stelliform/plughost/internal/host/inproc"
)

// ServerTestHelper manages the plugin host daemon lifecycle for testing
type ServerTestHelper struct {
	ctx        context.Context
	configPath string
	baseURL    string
	httpClient *http.Client
	app        *hostapp.HostApp
	runtime    *inproc.Runtime
	dataDir    string
	port       int
}

// NewServerTestHelper creates a new server test helper. The host runtime
// is created eagerly so tests can register plugin services on it before
// the server starts.
func NewServerTestHelper(ctx context.Context, configPath string, port int, dataDir string) *ServerTestHelper {
	return &ServerTestHelper{
		ctx:        ctx,
		configPath: configPath,
		baseURL:    fmt.Sprintf("http://127.0.0.1:%d", port),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		runtime: inproc.New(),
		dataDir: dataDir,
		port:    port,
	}
}

// FreePort returns a TCP port that was free at call time.
func FreePort() int {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	port := listener.Addr().(*net.TCPAddr).Port
	gomega.Expect(listener.Close()).To(gomega.Succeed())
	return port
}

// Runtime returns the host runtime backing the server, for registering
// plugin services and inspecting module state directly.
func (s *ServerTestHelper) Runtime() *inproc.Runtime {
	return s.runtime
}

// StartServer starts the plugin host daemon programmatically
func (s *ServerTestHelper) StartServer() error {
	cfg, err := config.LoadConfig(config.WithConfigPath(s.configPath))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	app, err := hostapp.NewHostApp(s.ctx,
		hostapp.WithConfig(cfg),
		hostapp.WithAddress(fmt.Sprintf("127.0.0.1:%d", s.port)),
		hostapp.WithDataDirectory(s.dataDir),
		hostapp.WithRuntime(s.runtime),
	)
	if err != nil {
		return fmt.Errorf("failed to build app: %w", err)
	}

	s.app = app

	// Start the server in a goroutine (non-blocking)
	go func() {
		if err := app.Start(); err != nil {
			// The test will fail when it tries to connect
			fmt.Fprintf(os.Stderr, "Server start failed: %v\n", err)
		}
	}()

	return nil
}

// StopServer gracefully stops the plugin host daemon
func (s *ServerTestHelper) StopServer() error {
	if s.app != nil {
		return s.app.Stop(5 * time.Second)
	}
	return nil
}

// WaitForServerReady waits for the server to report readiness
func (s *ServerTestHelper) WaitForServerReady(timeout time.Duration) {
	gomega.Eventually(func() error {
		resp, err := s.httpClient.Get(s.baseURL + "/readiness")
		if err != nil {
			return err
		}
		defer func() {
			_ = resp.Body.Close()
		}()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("server returned status %d", resp.StatusCode)
		}
		return nil
	}, timeout, 100*time.Millisecond).Should(gomega.Succeed(), "Server should be ready")
}

// ListComponents fetches /api/v0/components with the given raw query and
// decodes the response.
func (s *ServerTestHelper) ListComponents(query string) v0.ComponentListResponse {
	url := s.baseURL + "/api/v0/components"
	if query != "" {
		url += "?" + query
	}

	resp, err := s.httpClient.Get(url)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	gomega.Expect(resp.StatusCode).To(gomega.Equal(http.StatusOK))

	var out v0.ComponentListResponse
	decodeJSON(resp, &out)
	return out
}

// WaitForComponents polls the components endpoint until the registry
// serves exactly n entries.
func (s *ServerTestHelper) WaitForComponents(n int, timeout time.Duration) []extension.ComponentRecord {
	var components []extension.ComponentRecord
	gomega.Eventually(func() int {
		components = s.ListComponents("").Components
		return len(components)
	}, timeout, 100*time.Millisecond).Should(gomega.Equal(n))
	return components
}

// GetComponent makes a GET request to /api/v0/components/{id}
func (s *ServerTestHelper) GetComponent(id string) (*http.Response, error) {
	return s.httpClient.Get(s.baseURL + "/api/v0/components/" + id)
}

// GetParticipants fetches /api/v0/participants and decodes the response.
func (s *ServerTestHelper) GetParticipants() v0.ParticipantListResponse {
	resp, err := s.httpClient.Get(s.baseURL + "/api/v0/participants")
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	gomega.Expect(resp.StatusCode).To(gomega.Equal(http.StatusOK))

	var out v0.ParticipantListResponse
	decodeJSON(resp, &out)
	return out
}

// Notify posts a notification and returns the response.
func (s *ServerTestHelper) Notify(subject string, props map[string]any) (*http.Response, error) {
	body, err := json.Marshal(v0.NotifyRequest{Subject: subject, Props: props})
	if err != nil {
		return nil, err
	}
	return s.httpClient.Post(s.baseURL+"/api/v0/notify", "application/json", bytes.NewReader(body))
}

// GetModules fetches /api/v0/modules and decodes the response.
func (s *ServerTestHelper) GetModules() v0.ModuleListResponse {
	resp, err := s.httpClient.Get(s.baseURL + "/api/v0/modules")
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	gomega.Expect(resp.StatusCode).To(gomega.Equal(http.StatusOK))

	var out v0.ModuleListResponse
	decodeJSON(resp, &out)
	return out
}

// InstallModule posts a module installation request.
func (s *ServerTestHelper) InstallModule(req v0.InstallModuleRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return s.httpClient.Post(s.baseURL+"/api/v0/modules", "application/json", bytes.NewReader(body))
}

// UninstallModule deletes a module by id.
func (s *ServerTestHelper) UninstallModule(id int64) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/api/v0/modules/%d", s.baseURL, id), nil)
	if err != nil {
		return nil, err
	}
	return s.httpClient.Do(req)
}

// GetHealth makes a GET request to /health
func (s *ServerTestHelper) GetHealth() (*http.Response, error) {
	return s.httpClient.Get(s.baseURL + "/health")
}

// GetVersion makes a GET request to /version
func (s *ServerTestHelper) GetVersion() (*http.Response, error) {
	return s.httpClient.Get(s.baseURL + "/version")
}

// GetBaseURL returns the base URL of the server
func (s *ServerTestHelper) GetBaseURL() string {
	return s.baseURL
}

// decodeJSON decodes the response body into v and closes it.
func decodeJSON(resp *http.Response, v any) {
	defer func() {
		_ = resp.Body.Close()
	}()
	gomega.Expect(json.NewDecoder(resp.Body).Decode(v)).To(gomega.Succeed())
}
