// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jeranaias/avatarchat/internal/config"
	"github.com/jeranaias/avatarchat/internal/model"
)

// Configuration constants shared by all adapters.
const (
	// DefaultTimeout is the default timeout for provider requests.
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion attacks.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB limit

	// fallbackReply substitutes for an empty assistant turn. An empty
	// reply is never propagated to the UI.
	fallbackReply = "I didn't catch that. Could you try again?"

	// personaInstruction is the fixed system prompt injected by every
	// adapter that supports one.
	personaInstruction = "You are a friendly 3D avatar assistant. Keep your replies short, warm, and conversational, as they will be spoken aloud."
)

// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
// Shared HTTP client with connection pooling for all provider requests.
// SECURITY: TLS verification required for production
var sharedHTTPClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: false,
		},
	},
	Timeout: DefaultTimeout,
}

// readResponse reads the response body with size limits.
// SECURITY: Response size limit prevents memory exhaustion attacks.
func readResponse(resp *http.Response) ([]byte, error) {
	limitedReader := io.LimitReader(resp.Body, MaxResponseSize)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if int64(len(body)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}

	return body, nil
}

// =============================================================================
// ADAPTER INTERFACE
// =============================================================================

// Adapter translates the canonical chat operation into one provider's wire
// protocol and back. Implementations are pure functions of their inputs:
// they read settings and history but never mutate either.
type Adapter interface {
	Respond(ctx context.Context, history []*model.Message, settings *config.Settings, attachments []model.Attachment) (*model.AIResponse, error)
}

// =============================================================================
// DISPATCHER
// =============================================================================

// Dispatcher is the single entry point for chat turns. It selects the
// adapter for the configured provider and forwards the call transparently:
// no handling of its own, no fallback or retry across providers.
type Dispatcher struct {
	gemini     Adapter
	openRouter Adapter
	openClaw   Adapter
}

// NewDispatcher creates a dispatcher over the default adapters.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		gemini:     NewGeminiAdapter(),
		openRouter: NewOpenRouterAdapter(),
		openClaw:   NewOpenClawAdapter(),
	}
}

// NewDispatcherWithAdapters creates a dispatcher over explicit adapters.
// Used by tests to substitute fakes.
func NewDispatcherWithAdapters(gemini, openRouter, openClaw Adapter) *Dispatcher {
	return &Dispatcher{
		gemini:     gemini,
		openRouter: openRouter,
		openClaw:   openClaw,
	}
}

// GetAIResponse dispatches one chat turn to the active provider.
func (d *Dispatcher) GetAIResponse(ctx context.Context, history []*model.Message, settings *config.Settings, attachments []model.Attachment) (*model.AIResponse, error) {
	switch settings.Provider {
	case config.ProviderGemini:
		return d.gemini.Respond(ctx, history, settings, attachments)
	case config.ProviderOpenRouter:
		return d.openRouter.Respond(ctx, history, settings, attachments)
	case config.ProviderOpenClaw:
		return d.openClaw.Respond(ctx, history, settings, attachments)
	default:
		return nil, configurationError(fmt.Sprintf("unknown provider %q", settings.Provider))
	}
}
