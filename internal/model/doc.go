// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shared by every layer of
// avatarchat: chat messages, attachments, the append-only conversation
// history, and the canonical AI response shape that all provider adapters
// must produce.
//
// A Message is immutable once appended to a History. Corrections are made
// by appending a new Message, never by mutating an existing one.
package model
