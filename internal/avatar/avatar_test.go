// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package avatar

import (
	"sync"
	"testing"
	"time"
)

func TestSetClampsRange(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0.5, 0.5},
		{-1, 0},
		{2.5, 1},
		{0, 0},
		{1, 1},
	}

	for _, tc := range tests {
		m := NewMouthShape()
		m.Set(tc.in)
		if got := m.Value(); got != tc.want {
			t.Errorf("Set(%v): value = %v, expected %v", tc.in, got, tc.want)
		}
	}
}

func TestSetIsIdempotent(t *testing.T) {
	m := NewMouthShape()
	m.Set(0.7)
	m.Set(0.7)
	if got := m.Value(); got != 0.7 {
		t.Errorf("value = %v after repeated identical writes", got)
	}
}

func TestPulseResetsToClosed(t *testing.T) {
	m := NewMouthShape()
	m.Pulse(0.9, 20*time.Millisecond)
	if got := m.Value(); got != 0.9 {
		t.Fatalf("value immediately after pulse = %v, expected 0.9", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.Value() == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("mouth never relaxed back to 0 after pulse")
}

func TestOverlappingPulsesRaceHarmlessly(t *testing.T) {
	m := NewMouthShape()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(v float64) {
			defer wg.Done()
			m.Pulse(v, 10*time.Millisecond)
		}(float64(i%10) / 10)
	}
	wg.Wait()

	// Whatever interleaving happened, the value stays in range and the
	// pending resets eventually close the mouth.
	if v := m.Value(); v < 0 || v > 1 {
		t.Fatalf("value %v escaped [0,1]", v)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.Value() == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("mouth never settled closed")
}

func TestCatalogContainsDefault(t *testing.T) {
	avatars := Catalog()
	if len(avatars) == 0 {
		t.Fatal("catalog is empty")
	}
	if _, ok := Lookup("default"); !ok {
		t.Error("default avatar missing from catalog")
	}
	for _, a := range avatars {
		if a.ID == "" || a.Name == "" || a.ModelPath == "" {
			t.Errorf("incomplete catalog entry: %+v", a)
		}
	}
}

func TestCatalogReturnsCopy(t *testing.T) {
	first := Catalog()
	first[0].Name = "mutated"
	if second := Catalog(); second[0].Name == "mutated" {
		t.Error("catalog exposed its backing slice")
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, ok := Lookup("no-such-avatar"); ok {
		t.Error("Lookup accepted an unknown id")
	}
}
