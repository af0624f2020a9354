// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jeranaias/avatarchat/internal/model"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	cache, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestModelsRoundTrip(t *testing.T) {
	cache := openTestCache(t)
	ctx := context.Background()

	want := []model.ModelOption{
		{ID: "openai/gpt-4o-mini", Name: "GPT-4o Mini"},
		{ID: "anthropic/claude-3.5-sonnet", Name: "Claude 3.5 Sonnet"},
	}
	if err := cache.PutModels(ctx, "openrouter", want); err != nil {
		t.Fatalf("PutModels: %v", err)
	}

	got, err := cache.Models(ctx, "openrouter")
	if err != nil {
		t.Fatalf("Models: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d models, expected %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("model[%d] = %+v, expected %+v", i, got[i], want[i])
		}
	}
}

func TestPutModelsReplacesSnapshot(t *testing.T) {
	cache := openTestCache(t)
	ctx := context.Background()

	first := []model.ModelOption{
		{ID: "a", Name: "Alpha"},
		{ID: "b", Name: "Bravo"},
	}
	if err := cache.PutModels(ctx, "openrouter", first); err != nil {
		t.Fatal(err)
	}
	second := []model.ModelOption{{ID: "c", Name: "Charlie"}}
	if err := cache.PutModels(ctx, "openrouter", second); err != nil {
		t.Fatal(err)
	}

	got, err := cache.Models(ctx, "openrouter")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "c" {
		t.Errorf("stale entries survived replacement: %+v", got)
	}
}

func TestModelsEmptyCache(t *testing.T) {
	cache := openTestCache(t)

	got, err := cache.Models(context.Background(), "openrouter")
	if err != nil {
		t.Fatalf("empty cache must not error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}

func TestSourcesAreIsolated(t *testing.T) {
	cache := openTestCache(t)
	ctx := context.Background()

	if err := cache.PutModels(ctx, "openrouter", []model.ModelOption{{ID: "x", Name: "X"}}); err != nil {
		t.Fatal(err)
	}
	got, err := cache.Models(ctx, "gemini")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("gemini source must not see openrouter entries: %+v", got)
	}
}

func TestAgentsRoundTrip(t *testing.T) {
	cache := openTestCache(t)
	ctx := context.Background()

	want := []model.OpenClawAgent{
		{ID: "claw-1", Name: "Helper", Description: "general assistant", Status: model.AgentOnline},
		{ID: "claw-2", Name: "Coder", Status: model.AgentBusy},
	}
	if err := cache.PutAgents(ctx, "openclaw", want); err != nil {
		t.Fatalf("PutAgents: %v", err)
	}

	got, err := cache.Agents(ctx, "openclaw")
	if err != nil {
		t.Fatalf("Agents: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d agents, expected 2", len(got))
	}
	if got[0] != want[0] || got[1] != want[1] {
		t.Errorf("agents = %+v, expected %+v", got, want)
	}
}

func TestLastRefreshed(t *testing.T) {
	cache := openTestCache(t)
	ctx := context.Background()

	ts, err := cache.LastRefreshed(ctx, "openrouter")
	if err != nil {
		t.Fatal(err)
	}
	if !ts.IsZero() {
		t.Errorf("unseen source should report zero time, got %v", ts)
	}

	before := time.Now().Add(-time.Second)
	if err := cache.PutModels(ctx, "openrouter", nil); err != nil {
		t.Fatal(err)
	}
	ts, err = cache.LastRefreshed(ctx, "openrouter")
	if err != nil {
		t.Fatal(err)
	}
	if ts.Before(before) {
		t.Errorf("refresh time %v predates the write", ts)
	}
}

func TestOpenSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	ctx := context.Background()

	cache, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := cache.PutModels(ctx, "openrouter", []model.ModelOption{{ID: "m", Name: "M"}}); err != nil {
		t.Fatal(err)
	}
	cache.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	got, err := reopened.Models(ctx, "openrouter")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "m" {
		t.Errorf("cache did not persist across reopen: %+v", got)
	}
}
