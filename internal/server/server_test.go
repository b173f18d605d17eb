package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"pluginhub/internal/config"
	"pluginhub/internal/configuration"
	"pluginhub/internal/database"
	"pluginhub/internal/orchestrations"
	"pluginhub/internal/selection"
)

const entityListingJSON = `{"extractor_name":"tap-github","entity_groups":[
	{"name":"commits","selected":false,"attributes":[{"name":"sha","selected":false},{"name":"message","selected":false}]},
	{"name":"issues","selected":true,"attributes":[{"name":"id","selected":true}]}
]}`

// fakeOrchestrator is an in-memory orchestration service
type fakeOrchestrator struct {
	mu          sync.Mutex
	installed   []string
	failInstall bool
	failListing bool
	saved       []map[string]interface{}
	submitted   []selection.EntityTree
}

func (f *fakeOrchestrator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/plugins/all":
		io.WriteString(w, `{"extractors":["tap-github","tap-gitlab"],"loaders":["target-csv"]}`) //nolint:errcheck,gosec // Test server
	case r.URL.Path == "/plugins/installed":
		plugins := []map[string]string{}
		for _, name := range f.installed {
			plugins = append(plugins, map[string]string{"name": name})
		}
		json.NewEncoder(w).Encode(map[string]interface{}{ //nolint:errcheck,gosec // Test server
			"plugins": map[string]interface{}{"extractors": plugins},
		})
	case r.URL.Path == "/plugins/install":
		var cfg orchestrations.InstallConfig
		json.NewDecoder(r.Body).Decode(&cfg) //nolint:errcheck,gosec // Test server
		if f.failInstall {
			http.Error(w, "pip failed", http.StatusInternalServerError)
			return
		}
		f.installed = append(f.installed, cfg.Name)
		io.WriteString(w, `{}`) //nolint:errcheck,gosec // Test server
	case strings.HasPrefix(r.URL.Path, "/extractors/entities/"):
		if f.failListing {
			http.Error(w, "extractor crashed", http.StatusInternalServerError)
			return
		}
		io.WriteString(w, entityListingJSON) //nolint:errcheck,gosec // Test server
	case strings.HasPrefix(r.URL.Path, "/get/configuration/"):
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/get/configuration/"), "/")
		json.NewEncoder(w).Encode(map[string]interface{}{ //nolint:errcheck,gosec // Test server
			"name":   parts[1],
			"type":   parts[0],
			"config": map[string]interface{}{"user": "octocat"},
		})
	case r.URL.Path == "/save/configuration":
		var record map[string]interface{}
		json.NewDecoder(r.Body).Decode(&record) //nolint:errcheck,gosec // Test server
		f.saved = append(f.saved, record)
		io.WriteString(w, `{}`) //nolint:errcheck,gosec // Test server
	case r.URL.Path == "/select-entities":
		var tree selection.EntityTree
		json.NewDecoder(r.Body).Decode(&tree) //nolint:errcheck,gosec // Test server
		f.submitted = append(f.submitted, tree)
		io.WriteString(w, `{}`) //nolint:errcheck,gosec // Test server
	default:
		http.NotFound(w, r)
	}
}

type fakeOperations struct {
	ops []database.InstallOperation
}

func (f *fakeOperations) List(ctx context.Context, limit int) ([]database.InstallOperation, error) {
	if limit < len(f.ops) {
		return f.ops[:limit], nil
	}
	return f.ops, nil
}

func newTestServer(t *testing.T, orch *fakeOrchestrator) (*Server, *httptest.Server) {
	t.Helper()
	upstream := httptest.NewServer(orch)
	t.Cleanup(upstream.Close)

	sse := NewSSEManager()
	client := orchestrations.NewClient(upstream.URL, 5*time.Second)
	store := configuration.NewStore(client, configuration.Options{Events: sse})
	cfg := &config.Config{ListenAddr: ":0"}

	srv := New(cfg, store, &fakeOperations{}, sse)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func doRequest(t *testing.T, method, url, body string) (*http.Response, string) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, string(data)
}

func TestMethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t, &fakeOrchestrator{})

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/plugins"},
		{http.MethodGet, "/api/plugins/install"},
		{http.MethodGet, "/api/plugins/installed/refresh"},
		{http.MethodPost, "/api/entities"},
		{http.MethodGet, "/api/entities/toggle-group"},
		{http.MethodPut, "/api/configuration/extractor"},
		{http.MethodPost, "/api/version"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			resp, _ := doRequest(t, tt.method, ts.URL+tt.path, "")
			if resp.StatusCode != http.StatusMethodNotAllowed {
				t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusMethodNotAllowed)
			}
		})
	}
}

func TestPluginsRefreshAndStatus(t *testing.T) {
	_, ts := newTestServer(t, &fakeOrchestrator{installed: []string{"tap-gitlab"}})

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/api/plugins?refresh=1", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}
	var plugins PluginsResponse
	if err := json.Unmarshal([]byte(body), &plugins); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !plugins.Plugins.Has(orchestrations.Extractors, "tap-github") {
		t.Errorf("catalog missing tap-github: %v", plugins.Plugins)
	}

	resp, body = doRequest(t, http.MethodPost, ts.URL+"/api/plugins/installed/refresh", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status = %d, body %s", resp.StatusCode, body)
	}

	resp, body = doRequest(t, http.MethodGet, ts.URL+"/api/plugins/status?type=extractors&name=tap-gitlab", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}
	var status PluginStatusResponse
	if err := json.Unmarshal([]byte(body), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !status.Installed || status.Installing {
		t.Errorf("unexpected status: %+v", status)
	}
	if status.DisplayName != "gitlab" || status.ImageURL != "/static/logos/gitlab-logo.png" {
		t.Errorf("unexpected display fields: %+v", status)
	}

	resp, _ = doRequest(t, http.MethodGet, ts.URL+"/api/plugins/status?type=widgets&name=tap-gitlab", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown type status = %d, want 400", resp.StatusCode)
	}
}

func TestInstallPlugin(t *testing.T) {
	tests := []struct {
		name           string
		failInstall    bool
		body           string
		wantStatus     int
		wantInstalled  bool
		wantInstalling bool
	}{
		{
			name:          "successful install refreshes installed plugins",
			body:          `{"name":"tap-github","collectionType":"extractors"}`,
			wantStatus:    http.StatusAccepted,
			wantInstalled: true,
		},
		{
			name:           "failed install stays installing",
			failInstall:    true,
			body:           `{"name":"tap-github","collectionType":"extractors"}`,
			wantStatus:     http.StatusAccepted,
			wantInstalling: true,
		},
		{
			name:       "missing name",
			body:       `{"collectionType":"extractors"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown collection type",
			body:       `{"name":"tap-github","collectionType":"widgets"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed body",
			body:       `{"name":`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, ts := newTestServer(t, &fakeOrchestrator{failInstall: tt.failInstall})

			resp, body := doRequest(t, http.MethodPost, ts.URL+"/api/plugins/install", tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", resp.StatusCode, tt.wantStatus, body)
			}
			srv.installWG.Wait()

			store := srv.store
			if got := store.IsPluginInstalled(orchestrations.Extractors, "tap-github"); got != tt.wantInstalled {
				t.Errorf("installed = %v, want %v", got, tt.wantInstalled)
			}
			if got := store.IsInstallingPlugin(orchestrations.Extractors, "tap-github"); got != tt.wantInstalling {
				t.Errorf("installing = %v, want %v", got, tt.wantInstalling)
			}
		})
	}
}

func TestEntitySelectionFlow(t *testing.T) {
	orch := &fakeOrchestrator{}
	_, ts := newTestServer(t, orch)

	resp, body := doRequest(t, http.MethodPost, ts.URL+"/api/entities/load", `{"extractor":"tap-github"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("load status = %d, body %s", resp.StatusCode, body)
	}

	resp, body = doRequest(t, http.MethodPost, ts.URL+"/api/entities/toggle-group", `{"group":"commits"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("toggle status = %d, body %s", resp.StatusCode, body)
	}
	var entities EntitiesResponse
	if err := json.Unmarshal([]byte(body), &entities); err != nil {
		t.Fatalf("decode: %v", err)
	}
	commits := entities.Entities.Group("commits")
	if commits == nil || !commits.Selected || !commits.Attribute("sha").Selected || !commits.Attribute("message").Selected {
		t.Fatalf("toggle-group did not cascade: %+v", commits)
	}

	resp, body = doRequest(t, http.MethodPost, ts.URL+"/api/entities/toggle-attribute", `{"group":"issues","attribute":"id"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("toggle attribute status = %d, body %s", resp.StatusCode, body)
	}
	if err := json.Unmarshal([]byte(body), &entities); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entities.Entities.Group("issues").Selected {
		t.Errorf("deselecting the only attribute should deselect the group")
	}

	resp, _ = doRequest(t, http.MethodPost, ts.URL+"/api/entities/toggle-group", `{"group":"pulls"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown group status = %d, want 404", resp.StatusCode)
	}

	resp, _ = doRequest(t, http.MethodPost, ts.URL+"/api/entities/select-all", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("select-all status = %d", resp.StatusCode)
	}

	resp, body = doRequest(t, http.MethodPost, ts.URL+"/api/entities/submit", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit status = %d, body %s", resp.StatusCode, body)
	}
	orch.mu.Lock()
	submitted := orch.submitted
	orch.mu.Unlock()
	if len(submitted) != 1 || submitted[0].ExtractorName != "tap-github" {
		t.Fatalf("unexpected submission: %+v", submitted)
	}
	for _, g := range submitted[0].EntityGroups {
		if !g.Selected {
			t.Errorf("group %s not selected after select-all", g.Name)
		}
	}

	resp, body = doRequest(t, http.MethodDelete, ts.URL+"/api/entities", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("clear status = %d", resp.StatusCode)
	}
	if err := json.Unmarshal([]byte(body), &entities); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entities.Entities != nil {
		t.Errorf("expected cleared entities, got %+v", entities.Entities)
	}

	resp, _ = doRequest(t, http.MethodPost, ts.URL+"/api/entities/submit", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("submit without entities status = %d, want 404", resp.StatusCode)
	}
}

func TestEntityListingFailureRaisesFlag(t *testing.T) {
	_, ts := newTestServer(t, &fakeOrchestrator{failListing: true})

	resp, _ := doRequest(t, http.MethodPost, ts.URL+"/api/entities/load", `{"extractor":"tap-github"}`)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}

	_, body := doRequest(t, http.MethodGet, ts.URL+"/api/entities", "")
	var entities EntitiesResponse
	if err := json.Unmarshal([]byte(body), &entities); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !entities.HasError {
		t.Errorf("expected error flag after failed listing")
	}
}

func TestConfigurationRoutes(t *testing.T) {
	orch := &fakeOrchestrator{}
	_, ts := newTestServer(t, orch)

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/api/configuration/extractor/tap-github", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("load status = %d, body %s", resp.StatusCode, body)
	}
	var record map[string]interface{}
	if err := json.Unmarshal([]byte(body), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record["name"] != "tap-github" || record["type"] != "extractors" {
		t.Errorf("unexpected record: %v", record)
	}

	resp, body = doRequest(t, http.MethodGet, ts.URL+"/api/configuration/extractor?format=yaml", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("yaml status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, "name: tap-github") || !strings.Contains(body, "user: octocat") {
		t.Errorf("unexpected yaml: %s", body)
	}

	resp, body = doRequest(t, http.MethodPost, ts.URL+"/api/configuration/extractor", `{"name":"tap-github","config":{"user":"hubot"}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save status = %d, body %s", resp.StatusCode, body)
	}
	orch.mu.Lock()
	saved := len(orch.saved)
	orch.mu.Unlock()
	if saved != 1 {
		t.Errorf("expected one saved record, got %d", saved)
	}

	// Saving does not touch the focused record
	_, body = doRequest(t, http.MethodGet, ts.URL+"/api/configuration/extractor", "")
	if !strings.Contains(body, "octocat") {
		t.Errorf("focused record changed after save: %s", body)
	}

	resp, body = doRequest(t, http.MethodDelete, ts.URL+"/api/configuration/extractor", "")
	if resp.StatusCode != http.StatusOK || strings.TrimSpace(body) != "{}" {
		t.Errorf("clear status = %d, body %s", resp.StatusCode, body)
	}

	resp, _ = doRequest(t, http.MethodGet, ts.URL+"/api/configuration/model/x", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown slot status = %d, want 404", resp.StatusCode)
	}
}

func TestOperationsAndVersion(t *testing.T) {
	_, ts := newTestServer(t, &fakeOrchestrator{})

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/api/operations?limit=10", "")
	if resp.StatusCode != http.StatusOK || strings.TrimSpace(body) != "[]" {
		t.Errorf("operations status = %d, body %s", resp.StatusCode, body)
	}

	resp, _ = doRequest(t, http.MethodGet, ts.URL+"/api/operations?limit=zero", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", resp.StatusCode)
	}

	resp, body = doRequest(t, http.MethodGet, ts.URL+"/api/version", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"version"`) {
		t.Errorf("version status = %d, body %s", resp.StatusCode, body)
	}
}

func TestEventsStream(t *testing.T) {
	srv, ts := newTestServer(t, &fakeOrchestrator{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	// Wait for the connected comment so the client is registered
	if line, err := reader.ReadString('\n'); err != nil || !strings.HasPrefix(line, ": connected") {
		t.Fatalf("unexpected first line %q: %v", line, err)
	}

	srv.store.ClearExtractorConfiguration()

	deadline := time.After(5 * time.Second)
	lines := make(chan string)
	go func() {
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				close(lines)
				return
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatalf("stream closed before event")
			}
			if strings.HasPrefix(line, "event: "+configuration.EventConfigurationCleared) {
				return
			}
		case <-deadline:
			t.Fatalf("no configuration_cleared event received")
		}
	}
}
