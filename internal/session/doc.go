// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the conversation state: the transcript, the active
// settings, and the dispatch of user turns to the configured provider.
//
// The manager enforces a single in-flight turn. A second send while one is
// pending is rejected with ErrTurnInFlight and leaves the transcript
// untouched. The user message is always appended before the provider call,
// so a failed turn still shows what was asked; the failure itself lands in
// the transcript as a system message.
package session
