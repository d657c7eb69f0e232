package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/marcus/wsmenu/internal/events"
	"github.com/marcus/wsmenu/internal/models"
	"github.com/marcus/wsmenu/internal/serverdb"
)

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
	msgs []any
}

func (p *recordingPublisher) Publish(_ context.Context, key string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	p.msgs = append(p.msgs, v)
	return nil
}

func newTestServer(t *testing.T) (*Server, *serverdb.ServerDB, *recordingPublisher) {
	t.Helper()
	store, err := serverdb.Open(":memory:")
	if err != nil {
		t.Fatalf("open server db: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.UpsertWorkspace(&models.Workspace{ID: "ws-1", Name: "Acme", Type: models.TypeCorporate, Role: models.RoleAdmin}); err != nil {
		t.Fatal(err)
	}

	pub := &recordingPublisher{}
	return NewServer(Config{ListenAddr: ":0"}, store, pub), store, pub
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t)
	w := do(t, s, "GET", "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Header().Get("Content-Type") != "application/json" {
		t.Errorf("content type = %q", w.Header().Get("Content-Type"))
	}
}

func TestGetWorkspace(t *testing.T) {
	s, _, _ := newTestServer(t)

	w := do(t, s, "GET", "/v1/workspaces/ws-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	var ws models.Workspace
	if err := json.NewDecoder(w.Body).Decode(&ws); err != nil {
		t.Fatal(err)
	}
	if ws.Name != "Acme" || ws.Version != 1 {
		t.Errorf("ws = %+v", ws)
	}

	w = do(t, s, "GET", "/v1/workspaces/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing workspace status = %d", w.Code)
	}
	var er ErrorResponse
	json.NewDecoder(w.Body).Decode(&er)
	if er.Error.Code != ErrCodeNotFound {
		t.Errorf("error code = %q", er.Error.Code)
	}
}

func TestListWorkspaces(t *testing.T) {
	s, _, _ := newTestServer(t)
	w := do(t, s, "GET", "/v1/workspaces", nil)
	var resp map[string][]string
	json.NewDecoder(w.Body).Decode(&resp)
	if len(resp["workspaces"]) != 1 || resp["workspaces"][0] != "ws-1" {
		t.Errorf("resp = %v", resp)
	}
}

func TestSetFeaturePublishesEcho(t *testing.T) {
	s, store, pub := newTestServer(t)

	w := do(t, s, "POST", "/v1/workspaces/ws-1/features/tags", SetFeatureRequest{Enabled: true, WriteID: "w-1"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	var env events.Envelope[events.FeatureToggled]
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatal(err)
	}
	if env.Data.Status != events.StatusAccepted || env.Data.WriteID != "w-1" || env.Meta.Type != events.TypeFeatureToggled {
		t.Errorf("env = %+v", env)
	}

	ws, _ := store.GetWorkspace("ws-1")
	if !ws.AreTagsEnabled {
		t.Error("write not stored")
	}

	if len(pub.keys) != 1 || pub.keys[0] != "workspace.ws-1.feature" {
		t.Errorf("published keys = %v", pub.keys)
	}
	snap := s.Metrics().Snapshot()
	if snap.WritesAccepted != 1 || snap.EchoesPublished != 1 {
		t.Errorf("metrics = %+v", snap)
	}
}

func TestSetFeatureErrors(t *testing.T) {
	s, _, _ := newTestServer(t)

	tests := []struct {
		name   string
		path   string
		body   any
		status int
		code   string
	}{
		{"unknown feature", "/v1/workspaces/ws-1/features/teleport", SetFeatureRequest{Enabled: true}, http.StatusBadRequest, ErrCodeUnknownFeature},
		{"unknown workspace", "/v1/workspaces/nope/features/tags", SetFeatureRequest{Enabled: true}, http.StatusNotFound, ErrCodeNotFound},
		{"bad body", "/v1/workspaces/ws-1/features/tags", "not an object", http.StatusBadRequest, ErrCodeBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, "POST", tt.path, tt.body)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			var er ErrorResponse
			json.NewDecoder(w.Body).Decode(&er)
			if er.Error.Code != tt.code {
				t.Errorf("code = %q, want %q", er.Error.Code, tt.code)
			}
		})
	}
}

func TestRandomFailureInjection(t *testing.T) {
	s, _, _ := newTestServer(t)
	s.rand = func() float64 { return 0.1 }
	if err := s.SetFaults(0, 0.5); err != nil {
		t.Fatal(err)
	}

	w := do(t, s, "GET", "/v1/workspaces/ws-1", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	// Health stays outside fault injection.
	if w := do(t, s, "GET", "/healthz", nil); w.Code != http.StatusOK {
		t.Errorf("healthz status = %d", w.Code)
	}
	if s.Metrics().Snapshot().InjectedErrors != 1 {
		t.Error("injected failure not counted")
	}
}

func TestLatencyInjection(t *testing.T) {
	s, _, _ := newTestServer(t)
	s.rand = func() float64 { return 0.5 }
	s.SetFaults(20*time.Millisecond, 0)

	start := time.Now()
	do(t, s, "GET", "/v1/workspaces/ws-1", nil)
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("request took %v, want at least 20ms", elapsed)
	}
}

func TestFaultsEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)

	w := do(t, s, "PUT", "/admin/faults", FaultsConfig{Latency: "50ms", FailRate: 0.25})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	latency, rate := s.faults()
	if latency != 50*time.Millisecond || rate != 0.25 {
		t.Errorf("faults = %v, %v", latency, rate)
	}

	w = do(t, s, "PUT", "/admin/faults", FaultsConfig{FailRate: 2})
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid rate status = %d", w.Code)
	}
}

func TestLoadConfigEnv(t *testing.T) {
	t.Setenv("WSMENU_SERVE_ADDR", ":9999")
	t.Setenv("WSMENU_SERVE_LATENCY", "150ms")
	t.Setenv("WSMENU_SERVE_FAIL_RATE", "0.3")

	cfg := LoadConfig()
	if cfg.ListenAddr != ":9999" || cfg.Latency != 150*time.Millisecond || cfg.FailRate != 0.3 {
		t.Errorf("cfg = %+v", cfg)
	}
}
