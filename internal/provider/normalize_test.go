// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"reflect"
	"testing"
)

func TestNormalizeFieldPriority(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		content string
	}{
		{"response wins over all", `{"response":"R","message":"M","text":"T","output":"O"}`, "R"},
		{"message beats text", `{"message":"M","text":"T"}`, "M"},
		{"text beats output", `{"text":"T","output":"O"}`, "T"},
		{"output alone", `{"output":"O"}`, "O"},
		{"empty string is skipped", `{"response":"","message":"M"}`, "M"},
		{"non-string candidate is skipped", `{"response":42,"message":"M"}`, "M"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := normalizeAgentResponse([]byte(tc.body))
			if resp.Content != tc.content {
				t.Errorf("content = %q, expected %q", resp.Content, tc.content)
			}
		})
	}
}

func TestNormalizeStepsStringified(t *testing.T) {
	resp := normalizeAgentResponse([]byte(`{"text":"hi","steps":[1,"go"]}`))

	if resp.Content != "hi" {
		t.Errorf("content = %q, expected hi", resp.Content)
	}
	if !reflect.DeepEqual(resp.Thoughts, []string{"1", "go"}) {
		t.Errorf("thoughts = %v, expected [1 go]", resp.Thoughts)
	}
}

func TestNormalizeThoughtsBeatSteps(t *testing.T) {
	resp := normalizeAgentResponse([]byte(`{"text":"x","thoughts":["a","b"],"steps":["ignored"]}`))
	if !reflect.DeepEqual(resp.Thoughts, []string{"a", "b"}) {
		t.Errorf("thoughts = %v, expected [a b]", resp.Thoughts)
	}
}

func TestNormalizeScalarReasoning(t *testing.T) {
	resp := normalizeAgentResponse([]byte(`{"text":"x","reasoning":"because"}`))
	if !reflect.DeepEqual(resp.Thoughts, []string{"because"}) {
		t.Errorf("thoughts = %v, expected [because]", resp.Thoughts)
	}

	// An array under reasoning is not a recognized shape
	resp = normalizeAgentResponse([]byte(`{"text":"x","reasoning":["a","b"]}`))
	if resp.Thoughts != nil {
		t.Errorf("array reasoning should yield absent trace, got %v", resp.Thoughts)
	}
}

func TestNormalizeAbsentTraceIsNil(t *testing.T) {
	resp := normalizeAgentResponse([]byte(`{"text":"x"}`))
	if resp.Thoughts != nil {
		t.Errorf("absent trace must be nil, got %v", resp.Thoughts)
	}
}

func TestNormalizeWholeBodyFallback(t *testing.T) {
	resp := normalizeAgentResponse([]byte(`{"foo":"bar"}`))
	if resp.Content != `{"foo":"bar"}` {
		t.Errorf("content = %q, expected whole-body serialization", resp.Content)
	}
}

func TestNormalizeNonObjectBody(t *testing.T) {
	resp := normalizeAgentResponse([]byte("plain text answer"))
	if resp.Content != "plain text answer" {
		t.Errorf("content = %q, expected raw body", resp.Content)
	}
	if resp.Thoughts != nil {
		t.Errorf("non-object body should have no trace")
	}
}

func TestNormalizeObjectSteps(t *testing.T) {
	resp := normalizeAgentResponse([]byte(`{"text":"x","steps":[{"action":"look"}]}`))
	if !reflect.DeepEqual(resp.Thoughts, []string{`{"action":"look"}`}) {
		t.Errorf("thoughts = %v, expected JSON-encoded object element", resp.Thoughts)
	}
}
