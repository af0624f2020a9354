// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jeranaias/avatarchat/internal/config"
	"github.com/jeranaias/avatarchat/internal/model"
)

// probeTimeout bounds the best-effort health and discovery probes so a dead
// endpoint cannot stall the UI affordances they feed.
const probeTimeout = 5 * time.Second

// =============================================================================
// WIRE TYPES
// =============================================================================

// openClawRequest is the outgoing agent payload. Only the last history entry
// travels as message; the rest is context in the history array.
type openClawRequest struct {
	Message   string             `json:"message"`
	AgentID   string             `json:"agentId,omitempty"`
	SessionID string             `json:"sessionId"`
	History   []openClawTurn     `json:"history"`
	Files     []model.Attachment `json:"files"`
}

// openClawTurn is a prior turn with attachments stripped.
type openClawTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openClawAgentsEnvelope struct {
	Agents []model.OpenClawAgent `json:"agents"`
}

// =============================================================================
// ADAPTER
// =============================================================================

// OpenClawAdapter talks to a custom agent endpoint. The remote contract is
// not controlled by this system — any compliant or semi-compliant agent
// server may answer — so responses go through the tolerant normalizer in
// normalize.go instead of a fixed schema.
type OpenClawAdapter struct {
	httpClient  *http.Client
	probeClient *http.Client
}

// NewOpenClawAdapter creates an adapter for custom agent endpoints.
func NewOpenClawAdapter() *OpenClawAdapter {
	return &OpenClawAdapter{
		httpClient:  sharedHTTPClient,
		probeClient: &http.Client{Timeout: probeTimeout},
	}
}

// Respond implements Adapter.
//
// Each call generates a fresh sessionId: every send is a new nominal session.
// This statelessness is deliberate; no server-side session semantics are
// assumed.
func (a *OpenClawAdapter) Respond(ctx context.Context, history []*model.Message, settings *config.Settings, attachments []model.Attachment) (*model.AIResponse, error) {
	if settings.OpenClaw.BaseURL == "" {
		return nil, configurationError("agent base URL not configured: add it in settings")
	}
	if len(history) == 0 {
		return nil, configurationError("conversation history is empty")
	}

	last := history[len(history)-1]
	prior := make([]openClawTurn, 0, len(history)-1)
	for _, msg := range history[:len(history)-1] {
		prior = append(prior, openClawTurn{
			Role:    msg.Role.String(),
			Content: msg.Content,
		})
	}

	files := attachments
	if files == nil {
		files = []model.Attachment{}
	}

	reqBody := openClawRequest{
		Message:   last.Content,
		AgentID:   settings.OpenClaw.AgentID,
		SessionID: uuid.New().String(),
		History:   prior,
		Files:     files,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, protocolError(fmt.Sprintf("failed to encode agent request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, settings.OpenClaw.BaseURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, protocolError(fmt.Sprintf("failed to create agent request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if token := settings.OpenClaw.AuthToken; token != "" {
		// Unknown server conventions: send the token both ways
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("X-Api-Key", token)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		log.Printf("openclaw: network failure: %v", err)
		return nil, transportError("failed to connect to agent: check the URL and your network", err)
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return nil, transportError("failed to read agent response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("openclaw: agent returned HTTP %d", resp.StatusCode)
		return nil, protocolError(fmt.Sprintf("agent error (HTTP %d): %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	return normalizeAgentResponse(body), nil
}

// =============================================================================
// HEALTH CHECK
// =============================================================================

// Health probes the agent server: first the base root, then /health,
// returning true on the first 2xx. Never returns an error — a failed probe
// is simply an offline agent.
func (a *OpenClawAdapter) Health(ctx context.Context, baseURL string) bool {
	root := agentRoot(baseURL)
	if root == "" {
		return false
	}

	for _, url := range []string{root, root + "/health"} {
		if a.probe(ctx, url) {
			return true
		}
	}
	return false
}

// probe issues one GET and reports whether the status is 2xx.
func (a *OpenClawAdapter) probe(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := a.probeClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// =============================================================================
// AGENT DISCOVERY
// =============================================================================

// DiscoverAgents lists the agents a server offers, accepting either a bare
// array or an {agents: [...]} envelope. Returns an empty list on any
// failure; discovery feeds a picker, never the chat path.
func (a *OpenClawAdapter) DiscoverAgents(ctx context.Context, baseURL string) []model.OpenClawAgent {
	root := agentRoot(baseURL)
	if root == "" {
		return []model.OpenClawAgent{}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, root+"/agents", nil)
	if err != nil {
		return []model.OpenClawAgent{}
	}

	resp, err := a.probeClient.Do(req)
	if err != nil {
		log.Printf("openclaw: agent discovery failed: %v", err)
		return []model.OpenClawAgent{}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("openclaw: agent discovery returned HTTP %d", resp.StatusCode)
		return []model.OpenClawAgent{}
	}

	body, err := readResponse(resp)
	if err != nil {
		return []model.OpenClawAgent{}
	}

	// Bare array first, then the envelope
	var bare []model.OpenClawAgent
	if err := json.Unmarshal(body, &bare); err == nil {
		return bare
	}

	var envelope openClawAgentsEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Agents != nil {
		return envelope.Agents
	}

	return []model.OpenClawAgent{}
}

// agentRoot strips a trailing /chat segment from the configured base URL,
// yielding the root the auxiliary endpoints hang off.
func agentRoot(baseURL string) string {
	root := strings.TrimSuffix(baseURL, "/")
	root = strings.TrimSuffix(root, "/chat")
	return root
}
