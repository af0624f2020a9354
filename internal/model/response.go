// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// CANONICAL PROVIDER RESPONSE
// =============================================================================

// AIResponse is the canonical result of any provider call, regardless of
// which wire protocol produced it.
//
// Content is never empty: adapters substitute a fallback string (or the raw
// JSON stringification of the body) rather than propagate an empty assistant
// turn. Thoughts is nil when the provider supplied no reasoning trace.
type AIResponse struct {
	Content  string   `json:"content"`
	Thoughts []string `json:"thoughts,omitempty"`
}

// =============================================================================
// AGENT DISCOVERY RESULT
// =============================================================================

// AgentStatus describes the advertised availability of a discovered agent.
type AgentStatus string

const (
	AgentOnline  AgentStatus = "online"
	AgentOffline AgentStatus = "offline"
	AgentBusy    AgentStatus = "busy"
)

// OpenClawAgent is a discovery result from an OpenClaw-compatible server.
// Ephemeral: fetched on demand, never persisted.
type OpenClawAgent struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Status      AgentStatus `json:"status,omitempty"`
}

// ModelOption is one entry of the aggregator model catalog.
type ModelOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
