// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"net/url"
)

// =============================================================================
// URL AUTO-LINK
// =============================================================================

// AutoLinkResult describes the outcome of applying auto-link parameters.
type AutoLinkResult struct {
	// Settings is the effective configuration after the overrides.
	Settings *Settings
	// Applied reports whether a recognized provider parameter was present.
	Applied bool
	// Announcement is a one-line notice for a synthetic system message.
	// Empty when Applied is false.
	Announcement string
}

// ApplyAutoLink overlays page-load query parameters onto the given settings.
//
// A recognized "provider" parameter switches the active provider and routes
// any of the provider-specific parameters present in the query:
//
//	baseUrl   -> openclaw.base_url (URL-decoded by the query parser)
//	agentId   -> openclaw.agent_id
//	authToken -> openclaw.auth_token
//	model     -> gemini.model or openrouter.model, per the selected provider
//
// The input settings are not mutated; the result carries a fresh copy so the
// caller can swap it in wholesale. Without a recognized provider parameter
// the query is ignored entirely, including any stray provider-specific
// parameters.
func ApplyAutoLink(s *Settings, query url.Values) AutoLinkResult {
	providerParam := query.Get("provider")
	if !ValidProvider(providerParam) {
		return AutoLinkResult{Settings: s, Applied: false}
	}

	cfg := s.Clone()
	cfg.Provider = providerParam

	if baseURL := query.Get("baseUrl"); baseURL != "" {
		cfg.OpenClaw.BaseURL = baseURL
	}
	if agentID := query.Get("agentId"); agentID != "" {
		cfg.OpenClaw.AgentID = agentID
	}
	if token := query.Get("authToken"); token != "" {
		cfg.OpenClaw.AuthToken = token
	}
	if model := query.Get("model"); model != "" {
		switch providerParam {
		case ProviderGemini:
			cfg.Gemini.Model = model
		case ProviderOpenRouter:
			cfg.OpenRouter.Model = model
		}
	}

	return AutoLinkResult{
		Settings:     cfg,
		Applied:      true,
		Announcement: announcement(cfg),
	}
}

// announcement builds the one-line auto-configuration notice.
func announcement(cfg *Settings) string {
	switch cfg.Provider {
	case ProviderGemini:
		return fmt.Sprintf("Auto-configuration applied: provider set to %s (model %s).", cfg.Provider, cfg.Gemini.Model)
	case ProviderOpenRouter:
		return fmt.Sprintf("Auto-configuration applied: provider set to %s (model %s).", cfg.Provider, cfg.OpenRouter.Model)
	case ProviderOpenClaw:
		if cfg.OpenClaw.BaseURL != "" {
			return fmt.Sprintf("Auto-configuration applied: provider set to %s (%s).", cfg.Provider, cfg.OpenClaw.BaseURL)
		}
		return fmt.Sprintf("Auto-configuration applied: provider set to %s.", cfg.Provider)
	}
	return ""
}
