// Package catalog provides a session-local cache of the remote track catalog.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/soundvault/playerd/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS tracks (
	id               INTEGER PRIMARY KEY,
	title            TEXT NOT NULL DEFAULT '',
	artist           TEXT NOT NULL DEFAULT '',
	album            TEXT NOT NULL DEFAULT '',
	genre            TEXT NOT NULL DEFAULT '',
	duration_ms      INTEGER NOT NULL DEFAULT 0,
	loudness_gain_db REAL
)`

// ErrNotFound is returned when a track is not in the cache
var ErrNotFound = errors.New("track not in cache")

// Cache stores catalog records fetched from the server so the local
// heuristic generator can work when the remote listing is unavailable.
type Cache struct {
	db *sqlx.DB
}

// Open opens (or creates) the catalog cache in the given directory
func Open(cacheDir string) (*Cache, error) {
	db, err := sqlx.Open("sqlite3", filepath.Join(cacheDir, "catalog.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog cache: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create catalog schema: %w", err)
	}

	return &Cache{db: db}, nil
}

// Put upserts a single track
func (c *Cache) Put(ctx context.Context, track types.Track) error {
	_, err := c.db.NamedExecContext(ctx, `
		INSERT INTO tracks (id, title, artist, album, genre, duration_ms, loudness_gain_db)
		VALUES (:id, :title, :artist, :album, :genre, :duration_ms, :loudness_gain_db)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			artist = excluded.artist,
			album = excluded.album,
			genre = excluded.genre,
			duration_ms = excluded.duration_ms,
			loudness_gain_db = excluded.loudness_gain_db`,
		track)
	if err != nil {
		return fmt.Errorf("failed to upsert track %d: %w", track.ID, err)
	}
	return nil
}

// PutAll upserts a batch of tracks in one transaction
func (c *Cache) PutAll(ctx context.Context, tracks []types.Track) error {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, track := range tracks {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO tracks (id, title, artist, album, genre, duration_ms, loudness_gain_db)
			VALUES (:id, :title, :artist, :album, :genre, :duration_ms, :loudness_gain_db)
			ON CONFLICT(id) DO UPDATE SET
				title = excluded.title,
				artist = excluded.artist,
				album = excluded.album,
				genre = excluded.genre,
				duration_ms = excluded.duration_ms,
				loudness_gain_db = excluded.loudness_gain_db`,
			track); err != nil {
			return fmt.Errorf("failed to upsert track %d: %w", track.ID, err)
		}
	}

	return tx.Commit()
}

// Get returns a single cached track
func (c *Cache) Get(ctx context.Context, id int64) (*types.Track, error) {
	var track types.Track
	err := c.db.GetContext(ctx, &track, `SELECT * FROM tracks WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query track %d: %w", id, err)
	}
	return &track, nil
}

// All returns every cached track
func (c *Cache) All(ctx context.Context) ([]types.Track, error) {
	var tracks []types.Track
	if err := c.db.SelectContext(ctx, &tracks, `SELECT * FROM tracks ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list cached tracks: %w", err)
	}
	return tracks, nil
}

// Count returns the number of cached tracks
func (c *Cache) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM tracks`); err != nil {
		return 0, fmt.Errorf("failed to count cached tracks: %w", err)
	}
	return n, nil
}

// Close closes the underlying database
func (c *Cache) Close() error {
	return c.db.Close()
}
