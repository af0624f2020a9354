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
	"sort"
	"strings"

	"github.com/jeranaias/avatarchat/internal/config"
	"github.com/jeranaias/avatarchat/internal/model"
)

// DefaultOpenRouterURL is the base URL for the OpenRouter API.
const DefaultOpenRouterURL = "https://openrouter.ai/api/v1"

// =============================================================================
// WIRE TYPES
// =============================================================================

type openRouterRequest struct {
	Model    string              `json:"model"`
	Messages []openRouterMessage `json:"messages"`
}

// openRouterMessage carries typed content parts. The protocol accepts the
// system role natively, so roles pass through as-is.
type openRouterMessage struct {
	Role    string           `json:"role"`
	Content []openRouterPart `json:"content"`
}

type openRouterPart struct {
	Type     string              `json:"type"`
	Text     string              `json:"text,omitempty"`
	ImageURL *openRouterImageURL `json:"image_url,omitempty"`
}

type openRouterImageURL struct {
	URL string `json:"url"`
}

type openRouterResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type openRouterErrorResponse struct {
	Error struct {
		Code    any    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type openRouterModelsResponse struct {
	Data []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"data"`
}

// =============================================================================
// ADAPTER
// =============================================================================

// OpenRouterAdapter translates chat turns to the OpenRouter chat-completions
// protocol.
type OpenRouterAdapter struct {
	baseURL    string
	httpClient *http.Client
}

// NewOpenRouterAdapter creates an OpenRouter adapter against the production
// endpoint.
func NewOpenRouterAdapter() *OpenRouterAdapter {
	return &OpenRouterAdapter{
		baseURL:    DefaultOpenRouterURL,
		httpClient: sharedHTTPClient,
	}
}

// WithBaseURL sets a custom base URL. Used by tests.
func (a *OpenRouterAdapter) WithBaseURL(url string) *OpenRouterAdapter {
	a.baseURL = strings.TrimSuffix(url, "/")
	return a
}

// Respond implements Adapter.
func (a *OpenRouterAdapter) Respond(ctx context.Context, history []*model.Message, settings *config.Settings, attachments []model.Attachment) (*model.AIResponse, error) {
	// Fail fast before any network I/O
	if settings.OpenRouter.APIKey == "" {
		return nil, configurationError("OpenRouter API key not configured: add it in settings")
	}

	reqBody := openRouterRequest{
		Model:    settings.OpenRouter.Model,
		Messages: buildOpenRouterMessages(history),
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, protocolError(fmt.Sprintf("failed to encode OpenRouter request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, protocolError(fmt.Sprintf("failed to create OpenRouter request: %v", err))
	}
	req.Header.Set("Authorization", "Bearer "+settings.OpenRouter.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, transportError("OpenRouter request failed", err)
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return nil, transportError("failed to read OpenRouter response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, a.handleErrorResponse(resp.StatusCode, body)
	}

	var chatResp openRouterResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, protocolError(fmt.Sprintf("failed to parse OpenRouter response: %v", err))
	}

	// A missing choices shape degrades to the fallback rather than
	// failing the turn; the reply is never empty.
	content := ""
	if len(chatResp.Choices) > 0 {
		content = chatResp.Choices[0].Message.Content
	}
	if content == "" {
		log.Printf("openrouter: empty completion content, substituting fallback")
		content = fallbackReply
	}

	return &model.AIResponse{Content: content}, nil
}

// buildOpenRouterMessages converts history into typed-part messages with the
// persona system message always at position 0. A system message already in
// the caller's history is tolerated, not deduplicated; the upstream protocol
// accepts duplicates.
func buildOpenRouterMessages(history []*model.Message) []openRouterMessage {
	messages := make([]openRouterMessage, 0, len(history)+1)

	messages = append(messages, openRouterMessage{
		Role:    "system",
		Content: []openRouterPart{{Type: "text", Text: personaInstruction}},
	})

	for _, msg := range history {
		parts := []openRouterPart{{Type: "text", Text: msg.Content}}
		for _, att := range msg.Attachments {
			if !att.IsImage() {
				continue
			}
			parts = append(parts, openRouterPart{
				Type:     "image_url",
				ImageURL: &openRouterImageURL{URL: att.DataURI()},
			})
		}
		messages = append(messages, openRouterMessage{
			Role:    msg.Role.String(),
			Content: parts,
		})
	}

	return messages
}

// handleErrorResponse classifies a non-2xx OpenRouter response, preferring
// the nested error.message field when the body carries one.
func (a *OpenRouterAdapter) handleErrorResponse(statusCode int, body []byte) error {
	var apiErr openRouterErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return protocolError(fmt.Sprintf("OpenRouter error (HTTP %d): %s", statusCode, apiErr.Error.Message))
	}
	return protocolError(fmt.Sprintf("OpenRouter error (HTTP %d)", statusCode))
}

// =============================================================================
// MODEL CATALOG
// =============================================================================

// FetchModels retrieves the upstream model list as {id, name} pairs sorted
// by display name (case-sensitive lexicographic). Discovery is best-effort
// and must never block chat: any failure returns an empty list.
func (a *OpenRouterAdapter) FetchModels(ctx context.Context) []model.ModelOption {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/models", nil)
	if err != nil {
		return []model.ModelOption{}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		log.Printf("openrouter: model catalog fetch failed: %v", err)
		return []model.ModelOption{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("openrouter: model catalog fetch returned HTTP %d", resp.StatusCode)
		return []model.ModelOption{}
	}

	body, err := readResponse(resp)
	if err != nil {
		return []model.ModelOption{}
	}

	var listResp openRouterModelsResponse
	if err := json.Unmarshal(body, &listResp); err != nil {
		log.Printf("openrouter: model catalog parse failed: %v", err)
		return []model.ModelOption{}
	}

	options := make([]model.ModelOption, 0, len(listResp.Data))
	for _, m := range listResp.Data {
		options = append(options, model.ModelOption{ID: m.ID, Name: m.Name})
	}

	sort.Slice(options, func(i, j int) bool {
		return options[i].Name < options[j].Name
	})

	return options
}
