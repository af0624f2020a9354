// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package provider implements the backend dispatch and response-normalization
// layer for avatarchat.
//
// A single logical chat operation is translated to one of three structurally
// different wire protocols — Gemini (hosted LLM), OpenRouter (model
// aggregator), or OpenClaw (custom agent endpoint) — and each protocol's
// response is converted back into the canonical AIResponse shape. Adapters
// never leak raw transport errors: every failure crossing an adapter boundary
// is wrapped into a *provider.Error with one of four kinds (configuration,
// transport, protocol, credential) and a stable, user-presentable message.
//
// The Dispatcher selects an adapter by the configured provider name. There is
// no fallback or retry across providers: a provider failure is fatal for that
// turn and surfaced to the caller.
//
// Best-effort operations (agent health check, agent discovery, model catalog
// fetch) never return errors; they degrade to false or an empty list because
// they feed advisory UI affordances, not turn-critical paths.
package provider
