// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/avatarchat/internal/catalog"
	"github.com/jeranaias/avatarchat/internal/config"
	"github.com/jeranaias/avatarchat/internal/model"
	"github.com/jeranaias/avatarchat/internal/session"
	"github.com/jeranaias/avatarchat/internal/storage"
)

// =============================================================================
// TEST FIXTURES
// =============================================================================

type stubResponder struct {
	resp    *model.AIResponse
	err     error
	release chan struct{}
}

func (s *stubResponder) GetAIResponse(ctx context.Context, history []*model.Message, settings *config.Settings, attachments []model.Attachment) (*model.AIResponse, error) {
	if s.release != nil {
		<-s.release
	}
	return s.resp, s.err
}

type stubModelSource struct {
	options []model.ModelOption
}

func (s *stubModelSource) FetchModels(ctx context.Context) []model.ModelOption {
	return s.options
}

type stubAgentSource struct {
	online bool
	agents []model.OpenClawAgent

	healthCalls   int
	discoverCalls int
}

func (s *stubAgentSource) Health(ctx context.Context, baseURL string) bool {
	s.healthCalls++
	return s.online
}

func (s *stubAgentSource) DiscoverAgents(ctx context.Context, baseURL string) []model.OpenClawAgent {
	s.discoverCalls++
	return s.agents
}

func newTestServer(t *testing.T, responder session.Responder) *Server {
	t.Helper()
	store, err := storage.NewBlobStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewBlobStoreWithDir: %v", err)
	}
	mgr := session.NewManager(config.Default(), responder, store)
	return NewServer(DefaultPort, mgr)
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

// =============================================================================
// CHAT
// =============================================================================

func TestChatHappyPath(t *testing.T) {
	srv := newTestServer(t, &stubResponder{resp: &model.AIResponse{Content: "hello!"}})
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/chat", `{"message":"hi"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decode[ChatResponse](t, rec)
	if resp.Message == nil || resp.Message.Role != model.RoleAssistant || resp.Message.Content != "hello!" {
		t.Errorf("reply = %+v", resp.Message)
	}
	if resp.Error != "" {
		t.Errorf("unexpected error field: %q", resp.Error)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/history", "")
	hist := decode[struct {
		Messages []*model.Message `json:"messages"`
	}](t, rec)
	if len(hist.Messages) != 2 {
		t.Errorf("history has %d messages, expected 2", len(hist.Messages))
	}
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	srv := newTestServer(t, &stubResponder{resp: &model.AIResponse{Content: "x"}})

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/chat", `{"message":"   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, expected 400", rec.Code)
	}
}

func TestChatBusyReturns429(t *testing.T) {
	release := make(chan struct{})
	srv := newTestServer(t, &stubResponder{resp: &model.AIResponse{Content: "slow"}, release: release})
	h := srv.Handler()

	done := make(chan struct{})
	go func() {
		defer close(done)
		doJSON(t, h, http.MethodPost, "/api/chat", `{"message":"first"}`)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		rec := doJSON(t, h, http.MethodGet, "/health", "")
		health := decode[struct {
			Busy bool `json:"busy"`
		}](t, rec)
		if health.Busy {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first turn never became busy")
		}
		time.Sleep(time.Millisecond)
	}

	rec := doJSON(t, h, http.MethodPost, "/api/chat", `{"message":"second"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("busy send status = %d, expected 429", rec.Code)
	}

	close(release)
	<-done

	rec = doJSON(t, h, http.MethodGet, "/api/history", "")
	hist := decode[struct {
		Messages []*model.Message `json:"messages"`
	}](t, rec)
	if len(hist.Messages) != 2 {
		t.Errorf("rejected send leaked into history: %d messages", len(hist.Messages))
	}
}

func TestChatProviderFailureStillResponds(t *testing.T) {
	srv := newTestServer(t, &stubResponder{err: context.DeadlineExceeded})

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/chat", `{"message":"hi"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[ChatResponse](t, rec)
	if resp.Message == nil || resp.Message.Role != model.RoleSystem {
		t.Errorf("failure reply = %+v", resp.Message)
	}
	if resp.Error == "" {
		t.Error("error field missing on provider failure")
	}
}

// =============================================================================
// BOOTSTRAP
// =============================================================================

func TestBootstrapAppliesAutoLinkOnce(t *testing.T) {
	srv := newTestServer(t, &stubResponder{})
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodGet,
		"/api/bootstrap?provider=openclaw&baseUrl=http%3A%2F%2Flocalhost%3A9100&agentId=claw-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	boot := decode[BootstrapResponse](t, rec)
	if boot.Settings.Provider != config.ProviderOpenClaw {
		t.Errorf("provider = %q", boot.Settings.Provider)
	}
	if boot.Settings.OpenClaw.BaseURL != "http://localhost:9100" {
		t.Errorf("base url = %q", boot.Settings.OpenClaw.BaseURL)
	}
	if len(boot.History) != 1 || boot.History[0].Role != model.RoleSystem {
		t.Fatalf("expected exactly one announcement message, got %+v", boot.History)
	}
	if len(boot.Avatars) == 0 || boot.Avatar.ID == "" {
		t.Errorf("avatar catalog missing: %+v", boot)
	}

	// A plain reload must not announce again.
	rec = doJSON(t, h, http.MethodGet, "/api/bootstrap", "")
	boot = decode[BootstrapResponse](t, rec)
	if len(boot.History) != 1 {
		t.Errorf("plain bootstrap grew history to %d messages", len(boot.History))
	}
	if boot.Settings.Provider != config.ProviderOpenClaw {
		t.Errorf("auto-linked settings did not stick: %q", boot.Settings.Provider)
	}
}

func TestBootstrapIgnoresUnknownProvider(t *testing.T) {
	srv := newTestServer(t, &stubResponder{})

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/bootstrap?provider=mystery&baseUrl=http%3A%2F%2Fx", "")
	boot := decode[BootstrapResponse](t, rec)
	if boot.Settings.Provider != config.ProviderGemini {
		t.Errorf("unknown provider changed settings: %q", boot.Settings.Provider)
	}
	if len(boot.History) != 0 {
		t.Errorf("unknown provider produced an announcement: %+v", boot.History)
	}
}

// =============================================================================
// SETTINGS / AVATAR
// =============================================================================

func TestPutSettingsRoundTrip(t *testing.T) {
	srv := newTestServer(t, &stubResponder{})
	h := srv.Handler()

	next := config.Default()
	next.Provider = config.ProviderOpenRouter
	next.OpenRouter.APIKey = "sk-or-test"
	body, _ := json.Marshal(next)

	rec := doJSON(t, h, http.MethodPut, "/api/settings", string(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, "/api/settings", "")
	got := decode[config.Settings](t, rec)
	if got.Provider != config.ProviderOpenRouter || got.OpenRouter.APIKey != "sk-or-test" {
		t.Errorf("settings = %+v", got)
	}
}

func TestPutSettingsRejectsInvalid(t *testing.T) {
	srv := newTestServer(t, &stubResponder{})

	bad := config.Default()
	bad.Provider = "bogus"
	body, _ := json.Marshal(bad)

	rec := doJSON(t, srv.Handler(), http.MethodPut, "/api/settings", string(body))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, expected 400", rec.Code)
	}
}

func TestSelectAvatar(t *testing.T) {
	srv := newTestServer(t, &stubResponder{})
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/avatar", `{"id":"robot"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/avatar", `{"id":"no-such"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown avatar status = %d, expected 404", rec.Code)
	}
}

// =============================================================================
// CATALOGS
// =============================================================================

func TestModelsLiveFetchPopulatesCache(t *testing.T) {
	cache, err := catalog.Open(t.TempDir() + "/catalog.db")
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	live := []model.ModelOption{{ID: "m1", Name: "Model One"}}
	srv := newTestServer(t, &stubResponder{}).
		WithModelSource(&stubModelSource{options: live}).
		WithCatalogCache(cache)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/models", "")
	resp := decode[struct {
		Models []model.ModelOption `json:"models"`
		Cached bool                `json:"cached"`
	}](t, rec)
	if len(resp.Models) != 1 || resp.Cached {
		t.Errorf("live response = %+v", resp)
	}

	stored, err := cache.Models(context.Background(), cacheSourceModels)
	if err != nil || len(stored) != 1 {
		t.Errorf("cache not populated: %v %v", stored, err)
	}
}

func TestModelsFallsBackToCache(t *testing.T) {
	cache, err := catalog.Open(t.TempDir() + "/catalog.db")
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()
	seeded := []model.ModelOption{{ID: "m1", Name: "Model One"}}
	if err := cache.PutModels(context.Background(), cacheSourceModels, seeded); err != nil {
		t.Fatal(err)
	}

	srv := newTestServer(t, &stubResponder{}).
		WithModelSource(&stubModelSource{}). // degraded: empty fetch
		WithCatalogCache(cache)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/models", "")
	resp := decode[struct {
		Models []model.ModelOption `json:"models"`
		Cached bool                `json:"cached"`
	}](t, rec)
	if len(resp.Models) != 1 || !resp.Cached {
		t.Errorf("fallback response = %+v", resp)
	}
}

func TestAgentsSkippedWithoutBaseURL(t *testing.T) {
	src := &stubAgentSource{agents: []model.OpenClawAgent{{ID: "a1", Name: "Agent"}}}
	srv := newTestServer(t, &stubResponder{}).WithAgentSource(src)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/agents", "")
	resp := decode[struct {
		Agents []model.OpenClawAgent `json:"agents"`
	}](t, rec)
	if len(resp.Agents) != 0 {
		t.Errorf("agents without a configured base URL: %+v", resp.Agents)
	}
	if src.discoverCalls != 0 {
		t.Error("discovery probed despite missing base URL")
	}
}

func TestAgentHealth(t *testing.T) {
	srv := newTestServer(t, &stubResponder{}).WithAgentSource(&stubAgentSource{online: true})
	h := srv.Handler()

	// No base URL configured: offline without probing.
	rec := doJSON(t, h, http.MethodGet, "/api/agent/health", "")
	resp := decode[struct {
		Online bool `json:"online"`
	}](t, rec)
	if resp.Online {
		t.Error("health true without a configured base URL")
	}

	next := config.Default()
	next.Provider = config.ProviderOpenClaw
	next.OpenClaw.BaseURL = "http://localhost:9100"
	body, _ := json.Marshal(next)
	if rec := doJSON(t, h, http.MethodPut, "/api/settings", string(body)); rec.Code != http.StatusOK {
		t.Fatalf("settings update failed: %s", rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, "/api/agent/health", "")
	resp = decode[struct {
		Online bool `json:"online"`
	}](t, rec)
	if !resp.Online {
		t.Error("health false with configured base URL and online stub")
	}
}

// =============================================================================
// MOUTH
// =============================================================================

func TestMouthPulseAndPoll(t *testing.T) {
	srv := newTestServer(t, &stubResponder{})
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/mouth/pulse", `{"value":0.8,"durationMs":50}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[struct {
		Value float64 `json:"value"`
	}](t, rec)
	if resp.Value != 0.8 {
		t.Errorf("value after pulse = %v", resp.Value)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec = doJSON(t, h, http.MethodGet, "/api/mouth", "")
		resp = decode[struct {
			Value float64 `json:"value"`
		}](t, rec)
		if resp.Value == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("mouth never relaxed after pulse")
}

// =============================================================================
// HEALTH
// =============================================================================

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubResponder{})

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}](t, rec)
	if resp.Status != "ok" || resp.Version != Version {
		t.Errorf("health = %+v", resp)
	}
}
