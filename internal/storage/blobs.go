// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/jeranaias/avatarchat/internal/util"
)

// =============================================================================
// BLOB STORE
// =============================================================================

// validKey restricts blob keys to filesystem-safe names.
// SECURITY: Prevents path traversal through crafted keys.
var validKey = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// BlobStore persists opaque JSON blobs under fixed string keys.
type BlobStore struct {
	// BaseDir is the directory for stored blobs.
	// Default: ~/.avatarchat/state/
	BaseDir string
}

// NewBlobStore creates a blob store rooted in the user's data directory.
func NewBlobStore() (*BlobStore, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	baseDir := filepath.Join(homeDir, ".avatarchat", "state")
	return NewBlobStoreWithDir(baseDir)
}

// NewBlobStoreWithDir creates a blob store with a custom directory.
func NewBlobStoreWithDir(baseDir string) (*BlobStore, error) {
	// SECURITY: 0700 keeps credential-bearing blobs private to the owner
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, err
	}

	return &BlobStore{BaseDir: baseDir}, nil
}

// =============================================================================
// READ / WRITE OPERATIONS
// =============================================================================

// Put stores a blob under the given key, replacing any existing blob.
func (s *BlobStore) Put(key string, data []byte) error {
	if !validKey.MatchString(key) {
		return ErrInvalidKey
	}

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	return util.AtomicWriteFile(s.filePath(key), data, 0600)
}

// PutJSON marshals v and stores it under the given key.
func (s *BlobStore) PutJSON(key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return s.Put(key, data)
}

// Get retrieves the blob stored under the given key.
func (s *BlobStore) Get(key string) ([]byte, error) {
	if !validKey.MatchString(key) {
		return nil, ErrInvalidKey
	}

	data, err := os.ReadFile(s.filePath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, err
	}
	return data, nil
}

// GetJSON retrieves the blob under key and unmarshals it into v.
func (s *BlobStore) GetJSON(key string, v any) error {
	data, err := s.Get(key)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// Delete removes the blob stored under the given key.
func (s *BlobStore) Delete(key string) error {
	if !validKey.MatchString(key) {
		return ErrInvalidKey
	}

	if err := os.Remove(s.filePath(key)); err != nil {
		if os.IsNotExist(err) {
			return ErrBlobNotFound
		}
		return err
	}
	return nil
}

// Exists reports whether a blob is stored under the given key.
func (s *BlobStore) Exists(key string) bool {
	if !validKey.MatchString(key) {
		return false
	}
	_, err := os.Stat(s.filePath(key))
	return err == nil
}

// List returns all stored blob keys, sorted.
func (s *BlobStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	var keys []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(entry.Name(), ".json"))
	}

	sort.Strings(keys)
	return keys, nil
}

// filePath returns the on-disk path for a blob key.
func (s *BlobStore) filePath(key string) string {
	return filepath.Join(s.BaseDir, key+".json")
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrBlobNotFound is returned when no blob exists under the requested key.
// Use errors.Is(err, ErrBlobNotFound) to check for this error.
var ErrBlobNotFound = &StoreError{Message: "blob not found"}

// ErrInvalidKey is returned for keys that are not filesystem-safe.
var ErrInvalidKey = &StoreError{Message: "invalid blob key"}

// StoreError represents a storage-related error.
// It implements the error interface and can be compared using errors.Is.
type StoreError struct {
	Message string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing store errors.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}
