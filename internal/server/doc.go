// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes the HTTP API the browser front-end talks to.
//
// Endpoints:
//   - GET  /api/bootstrap    - Page-load state: auto-link, settings, history
//   - POST /api/chat         - Run one conversational turn
//   - GET  /api/history      - Current transcript
//   - GET  /api/settings     - Active settings
//   - PUT  /api/settings     - Replace settings wholesale
//   - POST /api/avatar       - Switch the active avatar
//   - GET  /api/models       - Model picker catalog (cache fallback)
//   - GET  /api/agents       - Discovered agents (cache fallback)
//   - GET  /api/agent/health - Agent reachability probe
//   - POST /api/mouth/pulse  - Drive the lip-sync value
//   - GET  /api/mouth        - Poll the lip-sync value
//   - GET  /health           - Server health check
//
// Responses are JSON. A send while a turn is already in flight returns
// 429 and leaves the transcript unchanged.
package server
