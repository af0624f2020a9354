// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package avatar

import (
	"sync"
	"time"
)

// DefaultPulseDuration is how long a pulse holds before the mouth
// relaxes back to closed.
const DefaultPulseDuration = 120 * time.Millisecond

// MouthShape is the shared mouth-openness value in [0, 1] that the scene
// polls while speech plays. All methods are safe for concurrent use.
type MouthShape struct {
	mu    sync.Mutex
	value float64
}

// NewMouthShape returns a closed mouth.
func NewMouthShape() *MouthShape {
	return &MouthShape{}
}

// Value returns the current mouth openness.
func (m *MouthShape) Value() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value
}

// Set overwrites the mouth openness, clamped to [0, 1]. Setting the same
// value twice is a no-op the second time.
func (m *MouthShape) Set(value float64) {
	if value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}
	m.mu.Lock()
	m.value = value
	m.mu.Unlock()
}

// Pulse opens the mouth to value and schedules a reset to closed after d
// (DefaultPulseDuration when d <= 0). The reset is fire-and-forget:
// overlapping pulses are not coalesced, and whichever write lands last
// wins. A reset racing a newer pulse just closes the mouth a beat early,
// which the animation tolerates.
func (m *MouthShape) Pulse(value float64, d time.Duration) {
	if d <= 0 {
		d = DefaultPulseDuration
	}
	m.Set(value)
	time.AfterFunc(d, func() {
		m.Set(0)
	})
}
