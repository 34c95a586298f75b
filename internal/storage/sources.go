package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Source is a directory or git repository of wordlist files.
type Source struct {
	ID          int64      `json:"id" db:"id"`
	Path        string     `json:"path" db:"path"`
	Type        string     `json:"type" db:"type"`
	LastScanned *time.Time `json:"last_scanned,omitempty" db:"last_scanned"`
}

// Source types.
const (
	SourceLocal = "local"
	SourceGit   = "git"
)

// InsertSource adds a new source to the database.
func (db *DB) InsertSource(ctx context.Context, path, sourceType string) (int64, error) {
	res, err := db.conn.ExecContext(ctx, "INSERT INTO sources (path, type) VALUES (?, ?)", path, sourceType)
	if err != nil {
		return 0, fmt.Errorf("failed to insert source %s: %w", path, err)
	}
	return res.LastInsertId()
}

// GetAllSources retrieves all sources from the database.
func (db *DB) GetAllSources(ctx context.Context) ([]Source, error) {
	var sources []Source
	if err := db.conn.SelectContext(ctx, &sources, "SELECT id, path, type, last_scanned FROM sources ORDER BY id"); err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	return sources, nil
}

// FindSourceByPath returns the source registered at path, or nil if none is.
func (db *DB) FindSourceByPath(ctx context.Context, path string) (*Source, error) {
	var s Source
	err := db.conn.GetContext(ctx, &s, "SELECT id, path, type, last_scanned FROM sources WHERE path = ?", path)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find source by path %s: %w", path, err)
	}
	return &s, nil
}

// DeleteSource removes a source. Its words stay in the vocabulary, detached.
func (db *DB) DeleteSource(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx, "DELETE FROM sources WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete source %d: %w", id, err)
	}
	return expectOne(res, fmt.Sprintf("source %d", id))
}

// UpdateSourceLastScanned updates the last_scanned timestamp for a source.
func (db *DB) UpdateSourceLastScanned(ctx context.Context, id int64, at time.Time) error {
	_, err := db.conn.ExecContext(ctx, "UPDATE sources SET last_scanned = ? WHERE id = ?", at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update last_scanned for source %d: %w", id, err)
	}
	return nil
}
