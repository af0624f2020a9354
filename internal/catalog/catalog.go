// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/avatarchat/internal/model"
)

// =============================================================================
// SCHEMA
// =============================================================================

const schema = `
CREATE TABLE IF NOT EXISTS models (
    id       TEXT NOT NULL,
    name     TEXT NOT NULL,
    source   TEXT NOT NULL,
    position INTEGER NOT NULL,
    PRIMARY KEY (source, id)
);

CREATE TABLE IF NOT EXISTS agents (
    id          TEXT NOT NULL,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL DEFAULT '',
    source      TEXT NOT NULL,
    position    INTEGER NOT NULL,
    PRIMARY KEY (source, id)
);

CREATE TABLE IF NOT EXISTS refreshes (
    source       TEXT PRIMARY KEY,
    refreshed_at INTEGER NOT NULL
);
`

// =============================================================================
// CACHE
// =============================================================================

// Cache stores catalog snapshots in a SQLite database.
type Cache struct {
	db *sql.DB
}

// DefaultPath returns the catalog database location under the user's
// config directory.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".avatarchat", "catalog.db"), nil
}

// Open opens (creating if necessary) the catalog database at path.
func Open(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// =============================================================================
// MODELS
// =============================================================================

// PutModels replaces the cached model list for source with options.
// The stored order is preserved on read.
func (c *Cache) PutModels(ctx context.Context, source string, options []model.ModelOption) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM models WHERE source = ?", source); err != nil {
		return fmt.Errorf("failed to clear models: %w", err)
	}
	for i, opt := range options {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO models (id, name, source, position) VALUES (?, ?, ?, ?)",
			opt.ID, opt.Name, source, i)
		if err != nil {
			return fmt.Errorf("failed to insert model: %w", err)
		}
	}
	if err := c.touch(ctx, tx, source); err != nil {
		return err
	}

	return tx.Commit()
}

// Models returns the cached model list for source, in stored order.
// An empty cache yields an empty slice, not an error.
func (c *Cache) Models(ctx context.Context, source string) ([]model.ModelOption, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT id, name FROM models WHERE source = ? ORDER BY position", source)
	if err != nil {
		return nil, fmt.Errorf("failed to query models: %w", err)
	}
	defer rows.Close()

	options := []model.ModelOption{}
	for rows.Next() {
		var opt model.ModelOption
		if err := rows.Scan(&opt.ID, &opt.Name); err != nil {
			return nil, fmt.Errorf("failed to scan model row: %w", err)
		}
		options = append(options, opt)
	}
	return options, rows.Err()
}

// =============================================================================
// AGENTS
// =============================================================================

// PutAgents replaces the cached agent roster for source with agents.
func (c *Cache) PutAgents(ctx context.Context, source string, agents []model.OpenClawAgent) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM agents WHERE source = ?", source); err != nil {
		return fmt.Errorf("failed to clear agents: %w", err)
	}
	for i, agent := range agents {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO agents (id, name, description, status, source, position) VALUES (?, ?, ?, ?, ?, ?)",
			agent.ID, agent.Name, agent.Description, string(agent.Status), source, i)
		if err != nil {
			return fmt.Errorf("failed to insert agent: %w", err)
		}
	}
	if err := c.touch(ctx, tx, source); err != nil {
		return err
	}

	return tx.Commit()
}

// Agents returns the cached agent roster for source, in stored order.
func (c *Cache) Agents(ctx context.Context, source string) ([]model.OpenClawAgent, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT id, name, description, status FROM agents WHERE source = ? ORDER BY position", source)
	if err != nil {
		return nil, fmt.Errorf("failed to query agents: %w", err)
	}
	defer rows.Close()

	agents := []model.OpenClawAgent{}
	for rows.Next() {
		var agent model.OpenClawAgent
		var status string
		if err := rows.Scan(&agent.ID, &agent.Name, &agent.Description, &status); err != nil {
			return nil, fmt.Errorf("failed to scan agent row: %w", err)
		}
		agent.Status = model.AgentStatus(status)
		agents = append(agents, agent)
	}
	return agents, rows.Err()
}

// =============================================================================
// METADATA
// =============================================================================

// LastRefreshed reports when source was last written. The zero time means
// the source has never been cached.
func (c *Cache) LastRefreshed(ctx context.Context, source string) (time.Time, error) {
	var unix int64
	err := c.db.QueryRowContext(ctx,
		"SELECT refreshed_at FROM refreshes WHERE source = ?", source).Scan(&unix)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query refresh time: %w", err)
	}
	return time.Unix(unix, 0), nil
}

func (c *Cache) touch(ctx context.Context, tx *sql.Tx, source string) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO refreshes (source, refreshed_at) VALUES (?, ?) "+
			"ON CONFLICT(source) DO UPDATE SET refreshed_at = excluded.refreshed_at",
		source, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to record refresh: %w", err)
	}
	return nil
}
