// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package avatar holds the presentation-side state the browser scene polls:
// the mouth-shape value driving lip animation and the catalog of selectable
// avatar models.
//
// Mouth state is deliberately loose: writes are idempotent overwrites and
// overlapping pulses simply race, with the last write winning. Speech
// playback never blocks on animation bookkeeping.
package avatar
