// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/jeranaias/avatarchat/internal/avatar"
	"github.com/jeranaias/avatarchat/internal/catalog"
	"github.com/jeranaias/avatarchat/internal/config"
	"github.com/jeranaias/avatarchat/internal/model"
	"github.com/jeranaias/avatarchat/internal/session"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultPort is the default port for the HTTP server.
	DefaultPort = 8790

	// MaxRequestBodySize bounds chat request bodies. Attachments ride in
	// the body as base64, so this is sized above the raw attachment limit.
	MaxRequestBodySize = 16 * 1024 * 1024

	// Version is the server version.
	Version = "0.1.0"
)

// cacheSourceModels and cacheSourceAgents name the catalog cache buckets.
const (
	cacheSourceModels = "openrouter"
	cacheSourceAgents = "openclaw"
)

// ============================================================================
// COLLABORATOR INTERFACES
// ============================================================================

// ModelSource lists selectable models; satisfied by provider.OpenRouterAdapter.
type ModelSource interface {
	FetchModels(ctx context.Context) []model.ModelOption
}

// AgentSource probes and enumerates agents; satisfied by provider.OpenClawAdapter.
type AgentSource interface {
	Health(ctx context.Context, baseURL string) bool
	DiscoverAgents(ctx context.Context, baseURL string) []model.OpenClawAgent
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the HTTP API server.
type Server struct {
	port    int
	mux     *http.ServeMux
	session *session.Manager
	mouth   *avatar.MouthShape

	models ModelSource
	agents AgentSource
	cache  *catalog.Cache // nil disables catalog caching

	staticDir string
	server    *http.Server
	startTime time.Time
}

// NewServer creates a server around the session manager.
func NewServer(port int, mgr *session.Manager) *Server {
	s := &Server{
		port:      port,
		mux:       http.NewServeMux(),
		session:   mgr,
		mouth:     avatar.NewMouthShape(),
		startTime: time.Now(),
	}
	s.setupRoutes()
	return s
}

// WithModelSource sets the model catalog source.
func (s *Server) WithModelSource(src ModelSource) *Server {
	s.models = src
	return s
}

// WithAgentSource sets the agent probe/discovery source.
func (s *Server) WithAgentSource(src AgentSource) *Server {
	s.agents = src
	return s
}

// WithCatalogCache sets the catalog cache used when live fetches come back
// empty.
func (s *Server) WithCatalogCache(cache *catalog.Cache) *Server {
	s.cache = cache
	return s
}

// WithStaticDir serves the browser front-end from dir at the root path.
func (s *Server) WithStaticDir(dir string) *Server {
	s.staticDir = dir
	return s
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /api/bootstrap", s.handleBootstrap)
	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("GET /api/history", s.handleHistory)
	s.mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	s.mux.HandleFunc("PUT /api/settings", s.handlePutSettings)
	s.mux.HandleFunc("POST /api/avatar", s.handleSelectAvatar)
	s.mux.HandleFunc("GET /api/models", s.handleModels)
	s.mux.HandleFunc("GET /api/agents", s.handleAgents)
	s.mux.HandleFunc("GET /api/agent/health", s.handleAgentHealth)
	s.mux.HandleFunc("POST /api/mouth/pulse", s.handleMouthPulse)
	s.mux.HandleFunc("GET /api/mouth", s.handleMouth)
	s.mux.HandleFunc("GET /health", s.handleHealth)
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	root := http.Handler(s.mux)
	if s.staticDir != "" {
		wrapped := http.NewServeMux()
		wrapped.Handle("/", http.FileServer(http.Dir(s.staticDir)))
		wrapped.Handle("/api/", s.mux)
		wrapped.Handle("/health", s.mux)
		root = wrapped
	}

	return Chain(
		RecoveryMiddleware(),
		LoggingMiddleware(log.Default()),
		CORSMiddleware(),
		RateLimitMiddleware(DefaultRateLimiter()),
	)(root)
}

// ============================================================================
// REQUEST / RESPONSE TYPES
// ============================================================================

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message     string             `json:"message"`
	Attachments []model.Attachment `json:"attachments,omitempty"`
}

// ChatResponse is the body of a successful POST /api/chat.
type ChatResponse struct {
	Message *model.Message `json:"message"`
	Error   string         `json:"error,omitempty"`
}

// BootstrapResponse is the page-load state bundle.
type BootstrapResponse struct {
	Settings *config.Settings `json:"settings"`
	History  []*model.Message `json:"history"`
	Avatars  []avatar.Avatar  `json:"avatars"`
	Avatar   avatar.Avatar    `json:"avatar"`
}

// ============================================================================
// CHAT
// ============================================================================

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request format")
		return
	}
	if strings.TrimSpace(req.Message) == "" && len(req.Attachments) == 0 {
		s.writeError(w, http.StatusBadRequest, "Message must not be empty")
		return
	}
	for i, att := range req.Attachments {
		if err := att.Validate(); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("Attachment %d is invalid: %v", i, err))
			return
		}
	}

	reply, err := s.session.Send(r.Context(), req.Message, req.Attachments)
	if errors.Is(err, session.ErrTurnInFlight) {
		s.writeError(w, http.StatusTooManyRequests, "A reply is already being generated")
		return
	}

	// Provider failures are part of the conversation: the transcript got a
	// system message, the front-end renders it, and the error rides along.
	resp := ChatResponse{Message: reply}
	if err != nil {
		resp.Error = err.Error()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"messages": s.session.History(),
	})
}

// ============================================================================
// BOOTSTRAP
// ============================================================================

// handleBootstrap applies auto-link parameters forwarded from the page URL,
// then returns everything the front-end needs to render: effective
// settings, transcript (including the auto-link announcement, if any), and
// the avatar catalog.
func (s *Server) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	settings := s.session.Settings()

	result := config.ApplyAutoLink(settings, r.URL.Query())
	if result.Applied {
		s.session.SwapSettings(result.Settings)
		s.session.Announce(result.Announcement)
		settings = s.session.Settings()
	}

	current, ok := avatar.Lookup(settings.Scene.AvatarID)
	if !ok {
		current, _ = avatar.Lookup("default")
	}

	s.writeJSON(w, http.StatusOK, BootstrapResponse{
		Settings: settings,
		History:  s.session.History(),
		Avatars:  avatar.Catalog(),
		Avatar:   current,
	})
}

// ============================================================================
// SETTINGS
// ============================================================================

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.session.Settings())
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var settings config.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := s.session.UpdateSettings(&settings); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, s.session.Settings())
}

func (s *Server) handleSelectAvatar(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := s.session.SelectAvatar(req.ID); err != nil {
		if errors.Is(err, session.ErrUnknownAvatar) {
			s.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	selected, _ := avatar.Lookup(req.ID)
	s.writeJSON(w, http.StatusOK, selected)
}

// ============================================================================
// CATALOGS
// ============================================================================

// handleModels returns the model picker catalog. Live fetch first; when it
// degrades to empty, fall back to the last cached snapshot so the picker
// is never needlessly blank.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	options := []model.ModelOption{}
	cached := false

	if s.models != nil {
		options = s.models.FetchModels(r.Context())
	}
	if len(options) > 0 {
		if s.cache != nil {
			if err := s.cache.PutModels(r.Context(), cacheSourceModels, options); err != nil {
				log.Printf("server: model cache write failed: %v", err)
			}
		}
	} else if s.cache != nil {
		if fromCache, err := s.cache.Models(r.Context(), cacheSourceModels); err == nil && len(fromCache) > 0 {
			options = fromCache
			cached = true
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"models": options,
		"cached": cached,
	})
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	agents := []model.OpenClawAgent{}
	cached := false
	baseURL := s.session.Settings().OpenClaw.BaseURL

	if s.agents != nil && baseURL != "" {
		agents = s.agents.DiscoverAgents(r.Context(), baseURL)
	}
	if len(agents) > 0 {
		if s.cache != nil {
			if err := s.cache.PutAgents(r.Context(), cacheSourceAgents, agents); err != nil {
				log.Printf("server: agent cache write failed: %v", err)
			}
		}
	} else if s.cache != nil {
		if fromCache, err := s.cache.Agents(r.Context(), cacheSourceAgents); err == nil && len(fromCache) > 0 {
			agents = fromCache
			cached = true
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"agents": agents,
		"cached": cached,
	})
}

func (s *Server) handleAgentHealth(w http.ResponseWriter, r *http.Request) {
	online := false
	baseURL := s.session.Settings().OpenClaw.BaseURL
	if s.agents != nil && baseURL != "" {
		online = s.agents.Health(r.Context(), baseURL)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"online": online})
}

// ============================================================================
// MOUTH
// ============================================================================

func (s *Server) handleMouthPulse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value      float64 `json:"value"`
		DurationMs int     `json:"durationMs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request format")
		return
	}

	s.mouth.Pulse(req.Value, time.Duration(req.DurationMs)*time.Millisecond)
	s.writeJSON(w, http.StatusOK, map[string]any{"value": s.mouth.Value()})
}

func (s *Server) handleMouth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"value": s.mouth.Value()})
}

// ============================================================================
// HEALTH
// ============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": Version,
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
		"busy":    s.session.Busy(),
	})
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start starts the HTTP server on loopback and blocks until it exits.
func (s *Server) Start() error {
	addr := fmt.Sprintf("127.0.0.1:%d", s.port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("SERVER_START | addr=%s version=%s", addr, Version)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	log.Printf("SERVER_SHUTDOWN | starting graceful shutdown")
	return s.server.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    status,
		},
	})
}
