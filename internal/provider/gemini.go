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

	"github.com/jeranaias/avatarchat/internal/config"
	"github.com/jeranaias/avatarchat/internal/model"
)

// DefaultGeminiURL is the base URL for the Gemini API.
const DefaultGeminiURL = "https://generativelanguage.googleapis.com"

// =============================================================================
// WIRE TYPES
// =============================================================================

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// =============================================================================
// ADAPTER
// =============================================================================

// GeminiAdapter translates chat turns to the Gemini generateContent protocol.
//
// The protocol has no first-class system role, so system-role history
// messages are dropped (not translated); the persona prompt travels in the
// separate systemInstruction field instead. The full history is sent on
// every call — no server-side session state is assumed.
type GeminiAdapter struct {
	baseURL    string
	httpClient *http.Client
}

// NewGeminiAdapter creates a Gemini adapter against the production endpoint.
func NewGeminiAdapter() *GeminiAdapter {
	return &GeminiAdapter{
		baseURL:    DefaultGeminiURL,
		httpClient: sharedHTTPClient,
	}
}

// WithBaseURL sets a custom base URL. Used by tests.
func (a *GeminiAdapter) WithBaseURL(url string) *GeminiAdapter {
	a.baseURL = strings.TrimSuffix(url, "/")
	return a
}

// Respond implements Adapter.
func (a *GeminiAdapter) Respond(ctx context.Context, history []*model.Message, settings *config.Settings, attachments []model.Attachment) (*model.AIResponse, error) {
	if settings.Gemini.APIKey == "" {
		return nil, configurationError("Gemini API key not configured: add it in settings")
	}

	reqBody := geminiRequest{
		Contents: buildGeminiContents(history),
		SystemInstruction: &geminiContent{
			Parts: []geminiPart{{Text: personaInstruction}},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, protocolError(fmt.Sprintf("failed to encode Gemini request: %v", err))
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", a.baseURL, settings.Gemini.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, protocolError(fmt.Sprintf("failed to create Gemini request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	// SECURITY: Key travels in a header, not the URL, to keep it out of logs
	req.Header.Set("x-goog-api-key", settings.Gemini.APIKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, transportError("Gemini request failed", err)
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return nil, transportError("failed to read Gemini response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, a.handleErrorResponse(resp.StatusCode, body)
	}

	var genResp geminiResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return nil, protocolError(fmt.Sprintf("failed to parse Gemini response: %v", err))
	}

	// Empty text in a successful response is not an error: it is
	// normalized to the fallback so an empty assistant turn never
	// reaches the UI.
	text := extractGeminiText(&genResp)
	if text == "" {
		log.Printf("gemini: empty candidate text, substituting fallback")
		text = fallbackReply
	}

	return &model.AIResponse{Content: text}, nil
}

// buildGeminiContents converts history into the provider-native content list.
func buildGeminiContents(history []*model.Message) []geminiContent {
	contents := make([]geminiContent, 0, len(history))

	for _, msg := range history {
		if msg.Role == model.RoleSystem {
			continue
		}

		role := "user"
		if msg.Role == model.RoleAssistant {
			role = "model"
		}

		parts := []geminiPart{{Text: msg.Content}}
		for _, att := range msg.Attachments {
			// Vision-only input: non-image attachments are silently
			// dropped rather than failing the whole turn
			if !att.IsImage() {
				continue
			}
			parts = append(parts, geminiPart{
				InlineData: &geminiInlineData{
					MimeType: att.Type,
					Data:     att.Payload(),
				},
			})
		}

		contents = append(contents, geminiContent{Role: role, Parts: parts})
	}

	return contents
}

// extractGeminiText pulls the first candidate's concatenated part text.
func extractGeminiText(resp *geminiResponse) string {
	if len(resp.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return strings.TrimSpace(sb.String())
}

// handleErrorResponse classifies a non-2xx Gemini response.
//
// An invalid-key rejection is special-cased into a credential error with a
// clearer message for the operator; everything else is a protocol error
// carrying whatever detail the body provides.
func (a *GeminiAdapter) handleErrorResponse(statusCode int, body []byte) error {
	message := fmt.Sprintf("Gemini error (HTTP %d)", statusCode)

	var apiErr geminiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		message = fmt.Sprintf("Gemini error (HTTP %d): %s", statusCode, apiErr.Error.Message)

		lower := strings.ToLower(apiErr.Error.Message)
		if strings.Contains(lower, "api key not valid") || strings.Contains(lower, "invalid key") {
			return credentialError("Gemini API key is invalid: check the key in settings")
		}
	}

	return protocolError(message)
}
