// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jeranaias/avatarchat/internal/storage"
)

// =============================================================================
// SETTINGS WATCHER
// =============================================================================

// Watcher reloads settings when the persisted blob changes on disk, so edits
// made by an external tool take effect without a restart. Reloaded settings
// are delivered as a complete Settings value; the subscriber swaps them in
// wholesale, matching the save action's replacement semantics.
type Watcher struct {
	store    *storage.BlobStore
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onChange func(*Settings)

	mu      sync.Mutex
	pending time.Time
	dirty   bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewWatcher creates a watcher over the store's settings blob.
// onChange is called with the re-resolved settings after each external edit.
func NewWatcher(store *storage.BlobStore, debounce time.Duration, onChange func(*Settings)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		store:    store,
		watcher:  fsw,
		debounce: debounce,
		onChange: onChange,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Watch starts watching for settings changes.
func (w *Watcher) Watch() error {
	// Watch the directory, not the file: atomic saves replace the file by
	// rename, which drops a watch registered on the old inode.
	if err := w.watcher.Add(w.store.BaseDir); err != nil {
		return err
	}

	go w.processEvents()
	go w.processPending()

	return nil
}

// Close stops watching and releases resources.
func (w *Watcher) Close() error {
	w.cancel()
	return w.watcher.Close()
}

// processEvents marks the settings dirty on relevant filesystem events.
func (w *Watcher) processEvents() {
	settingsFile := SettingsBlobKey + ".json"

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != settingsFile {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.mu.Lock()
				w.pending = time.Now()
				w.dirty = true
				w.mu.Unlock()
			}

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Watch errors are non-fatal; the next event re-arms the reload
		}
	}
}

// processPending reloads the settings after the debounce window elapses.
// Debouncing collapses the event burst an atomic rename produces.
func (w *Watcher) processPending() {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			w.mu.Lock()
			ready := w.dirty && time.Since(w.pending) >= w.debounce
			if ready {
				w.dirty = false
			}
			w.mu.Unlock()

			if ready {
				w.reload()
			}
		}
	}
}

// reload re-resolves the full settings stack and notifies the subscriber.
func (w *Watcher) reload() {
	cfg, err := Resolve(w.store)
	if err != nil {
		// An invalid blob keeps the previous settings in effect
		return
	}
	if w.onChange != nil {
		w.onChange(cfg)
	}
}
