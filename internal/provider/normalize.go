// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"encoding/json"
	"strings"

	"github.com/jeranaias/avatarchat/internal/model"
)

// =============================================================================
// RESPONSE NORMALIZER
// =============================================================================

// Candidate field names in priority order. Real agent servers use different
// names; the order encodes precedence and must not be reshuffled.
var (
	replyFields = []string{"response", "message", "text", "output"}
)

// normalizeAgentResponse extracts a canonical AIResponse from an arbitrary,
// loosely-specified agent body.
//
// Reply text is the first non-empty string among the candidate fields; if
// none matches, the whole body is serialized as a last resort — the reply is
// never empty. The reasoning trace is, in order: a thoughts array, a steps
// array (non-string elements JSON-stringified), or a scalar reasoning value
// wrapped as a single-element trace. When nothing matches the trace is
// absent (nil), not empty: presence drives the reasoning UI.
func normalizeAgentResponse(body []byte) *model.AIResponse {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		// Not a JSON object at all: the raw body is the reply
		return &model.AIResponse{Content: strings.TrimSpace(string(body))}
	}

	return &model.AIResponse{
		Content:  extractReply(doc, body),
		Thoughts: extractThoughts(doc),
	}
}

// extractReply walks the candidate fields in priority order.
func extractReply(doc map[string]any, body []byte) string {
	for _, field := range replyFields {
		if value, ok := doc[field]; ok {
			if s, ok := value.(string); ok && s != "" {
				return s
			}
		}
	}

	// Last resort: the whole body as a string
	if serialized, err := json.Marshal(doc); err == nil {
		return string(serialized)
	}
	return strings.TrimSpace(string(body))
}

// extractThoughts resolves the reasoning trace candidates.
func extractThoughts(doc map[string]any) []string {
	if value, ok := doc["thoughts"]; ok {
		if arr, ok := value.([]any); ok {
			return stringifyAll(arr)
		}
	}

	if value, ok := doc["steps"]; ok {
		if arr, ok := value.([]any); ok {
			return stringifyAll(arr)
		}
	}

	if value, ok := doc["reasoning"]; ok && value != nil {
		// Scalar only: an array here is not a recognized shape
		if _, isArray := value.([]any); !isArray {
			return []string{stringify(value)}
		}
	}

	return nil
}

// stringifyAll converts trace elements to strings, passing strings through
// and JSON-encoding everything else.
func stringifyAll(values []any) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, stringify(v))
	}
	return out
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(encoded)
}
