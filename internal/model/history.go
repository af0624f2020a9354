// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"sync"
)

// MaxMessages is the maximum number of messages to keep in history.
// When exceeded, old messages are pruned to prevent unbounded memory growth.
const MaxMessages = 1000

// =============================================================================
// HISTORY TYPE
// =============================================================================

// History is the append-only conversation log. Messages are never mutated or
// reordered after being appended; the only structural change besides append
// is pruning of the oldest non-system turns once MaxMessages is exceeded.
//
// History is safe for concurrent use. Reads return snapshot copies of the
// message slice so callers never observe a concurrent append.
type History struct {
	mu       sync.Mutex
	messages []*Message
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{
		messages: make([]*Message, 0),
	}
}

// Append adds a message to the history and returns it.
func (h *History) Append(msg *Message) *Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, msg)
	h.pruneOldMessages()
	return msg
}

// AppendUser creates and appends a user message.
func (h *History) AppendUser(content string, attachments []Attachment) *Message {
	return h.Append(NewUserMessageWithAttachments(content, attachments))
}

// AppendAssistant creates and appends an assistant message from a canonical
// provider response.
func (h *History) AppendAssistant(resp *AIResponse) *Message {
	return h.Append(NewAssistantMessage(resp))
}

// AppendSystem creates and appends a system message.
func (h *History) AppendSystem(content string) *Message {
	return h.Append(NewSystemMessage(content))
}

// Messages returns a snapshot copy of the history.
func (h *History) Messages() []*Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	snapshot := make([]*Message, len(h.messages))
	copy(snapshot, h.messages)
	return snapshot
}

// Last returns the most recent message, or nil if the history is empty.
func (h *History) Last() *Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.messages) == 0 {
		return nil
	}
	return h.messages[len(h.messages)-1]
}

// Len returns the number of messages.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages)
}

// IsEmpty returns true if there are no messages.
func (h *History) IsEmpty() bool {
	return h.Len() == 0
}

// pruneOldMessages removes old turns when the log exceeds MaxMessages.
// System messages are preserved; only the oldest user/assistant turns go.
// Caller must hold h.mu.
func (h *History) pruneOldMessages() {
	if len(h.messages) <= MaxMessages {
		return
	}

	var systemMsgs []*Message
	var otherMsgs []*Message
	for _, msg := range h.messages {
		if msg.Role == RoleSystem {
			systemMsgs = append(systemMsgs, msg)
		} else {
			otherMsgs = append(otherMsgs, msg)
		}
	}

	if len(otherMsgs) > MaxMessages {
		otherMsgs = otherMsgs[len(otherMsgs)-MaxMessages:]
	}

	h.messages = make([]*Message, 0, len(systemMsgs)+len(otherMsgs))
	h.messages = append(h.messages, systemMsgs...)
	h.messages = append(h.messages, otherMsgs...)
}
