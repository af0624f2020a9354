// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/jeranaias/avatarchat/internal/avatar"
	"github.com/jeranaias/avatarchat/internal/config"
	"github.com/jeranaias/avatarchat/internal/model"
	"github.com/jeranaias/avatarchat/internal/storage"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrTurnInFlight is returned by Send while a previous turn is still
// waiting on its provider. The rejected send leaves the transcript
// untouched.
var ErrTurnInFlight = errors.New("a turn is already in flight")

// ErrUnknownAvatar is returned by SelectAvatar for ids not in the catalog.
var ErrUnknownAvatar = errors.New("unknown avatar id")

// =============================================================================
// MANAGER
// =============================================================================

// Responder produces an assistant reply for the given transcript. It is
// satisfied by provider.Dispatcher.
type Responder interface {
	GetAIResponse(ctx context.Context, history []*model.Message, settings *config.Settings, attachments []model.Attachment) (*model.AIResponse, error)
}

// Manager owns the transcript, the active settings, and turn dispatch.
// All methods are safe for concurrent use.
type Manager struct {
	mu        sync.Mutex
	history   *model.History
	settings  *config.Settings
	responder Responder
	store     *storage.BlobStore // nil disables persistence
	busy      bool
}

// NewManager creates a manager around the given settings and responder.
// store may be nil, in which case settings changes are not persisted.
func NewManager(settings *config.Settings, responder Responder, store *storage.BlobStore) *Manager {
	return &Manager{
		history:   model.NewHistory(),
		settings:  settings.Clone(),
		responder: responder,
		store:     store,
	}
}

// =============================================================================
// TURNS
// =============================================================================

// Send runs one conversational turn: append the user message, dispatch to
// the active provider, and append the outcome. It returns the appended
// reply message. While a turn is in flight further sends fail with
// ErrTurnInFlight and append nothing.
//
// The user message is appended before the provider call, so a failed turn
// still shows what was asked. Provider failures are folded into the
// transcript as a system message and also returned to the caller.
func (m *Manager) Send(ctx context.Context, content string, attachments []model.Attachment) (*model.Message, error) {
	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		return nil, ErrTurnInFlight
	}
	m.busy = true
	m.history.AppendUser(content, attachments)
	transcript := m.history.Messages()
	settings := m.settings.Clone()
	m.mu.Unlock()

	resp, err := m.responder.GetAIResponse(ctx, transcript, settings, attachments)

	m.mu.Lock()
	defer func() {
		m.busy = false
		m.mu.Unlock()
	}()

	if err != nil {
		log.Printf("session: turn failed: %v", err)
		msg := m.history.AppendSystem(fmt.Sprintf("Something went wrong: %v", err))
		return msg, err
	}
	return m.history.AppendAssistant(resp), nil
}

// Busy reports whether a turn is currently in flight.
func (m *Manager) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.busy
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// History returns a snapshot of the transcript.
func (m *Manager) History() []*model.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history.Messages()
}

// Announce appends a system message to the transcript, e.g. the
// auto-configuration announcement shown on page load.
func (m *Manager) Announce(content string) *model.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history.AppendSystem(content)
}

// =============================================================================
// SETTINGS
// =============================================================================

// Settings returns a copy of the active settings.
func (m *Manager) Settings() *config.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings.Clone()
}

// UpdateSettings validates and installs new settings wholesale, then
// persists them. The previous settings stay active if validation or
// persistence fails.
func (m *Manager) UpdateSettings(settings *config.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.store != nil {
		if err := settings.SaveToStore(m.store); err != nil {
			return fmt.Errorf("failed to persist settings: %w", err)
		}
	}
	m.settings = settings.Clone()
	return nil
}

// SwapSettings installs new settings without persisting, for reloads that
// originate from the settings file itself.
func (m *Manager) SwapSettings(settings *config.Settings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = settings.Clone()
}

// SelectAvatar switches the active avatar and persists the choice
// immediately.
func (m *Manager) SelectAvatar(id string) error {
	if _, ok := avatar.Lookup(id); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAvatar, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	updated := m.settings.Clone()
	updated.Scene.AvatarID = id
	if m.store != nil {
		if err := updated.SaveToStore(m.store); err != nil {
			return fmt.Errorf("failed to persist avatar selection: %w", err)
		}
	}
	m.settings = updated
	return nil
}
