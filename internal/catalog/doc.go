// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package catalog persists the last successfully fetched model list and
// discovered agent roster in a local SQLite database.
//
// Model and agent lookups against remote providers are best-effort: a
// network failure yields an empty result rather than an error. The cache
// lets the UI keep showing the previous catalog across restarts and
// offline stretches. Entries are replaced wholesale on each successful
// refresh, so the cache always reflects exactly one snapshot per source.
package catalog
