// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides settings loading and resolution for avatarchat.
//
// Settings are resolved by layering, in order of increasing precedence:
//
//  1. Built-in defaults
//  2. Operator config file (~/.avatarchat/config.toml or config.json)
//  3. Persisted settings blob (written by the save action)
//  4. Environment variable overrides
//  5. URL auto-link query parameters (applied per page load, see autolink.go)
//
// Exactly one provider is active at a time; fields for inactive providers are
// preserved so switching back restores prior configuration. Settings are
// replaced wholesale through the save action, never partially mutated while a
// chat turn is in flight.
package config
