// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides persisted state for the avatarchat service.
//
// The BlobStore keeps opaque JSON blobs under fixed string keys in the
// application data directory. Writes are atomic (temp file + fsync + rename)
// so a crash mid-write never leaves a torn blob on disk. Blobs may contain
// credentials, so files are created with 0600 permissions.
//
// # Usage
//
//	store, err := storage.NewBlobStore()
//	if err != nil { ... }
//
//	// Persist a settings snapshot
//	err = store.Put("settings", data)
//
//	// Read it back
//	data, err := store.Get("settings")
//	if errors.Is(err, storage.ErrBlobNotFound) { ... }
package storage
