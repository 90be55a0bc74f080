package playback

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dotsetgreg/hoshibot/pkg/logger"
	_ "modernc.org/sqlite"
)

// TrackCache remembers resolved download-mode tracks so repeated
// queries skip the extractor. Best effort: every cache failure
// degrades to a fresh resolution.
type TrackCache struct {
	db *sql.DB
}

func OpenTrackCache(path string) (*TrackCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open track cache: %w", err)
	}
	// Single writer keeps SQLite happy across goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	cache := &TrackCache{db: db}
	if err := cache.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return cache, nil
}

func (c *TrackCache) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS tracks (
			query TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			handle TEXT NOT NULL,
			resolved_at TIMESTAMP NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := c.db.Exec(stmt); err != nil {
			return fmt.Errorf("init track cache: %w", err)
		}
	}
	return nil
}

func (c *TrackCache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func cacheKey(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

func (c *TrackCache) Get(query string) (Track, bool) {
	var track Track
	err := c.db.QueryRow(
		`SELECT title, handle FROM tracks WHERE query = ?`,
		cacheKey(query),
	).Scan(&track.Title, &track.Handle)
	if err != nil {
		if err != sql.ErrNoRows {
			logger.WarnCF("playback", "Track cache read failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return Track{}, false
	}
	track.SourceQuery = query
	return track, true
}

func (c *TrackCache) Put(track Track) {
	_, err := c.db.Exec(
		`INSERT INTO tracks (query, title, handle, resolved_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(query) DO UPDATE SET title = excluded.title, handle = excluded.handle, resolved_at = excluded.resolved_at`,
		cacheKey(track.SourceQuery), track.Title, track.Handle, time.Now().UTC(),
	)
	if err != nil {
		logger.WarnCF("playback", "Track cache write failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (c *TrackCache) Delete(query string) {
	if _, err := c.db.Exec(`DELETE FROM tracks WHERE query = ?`, cacheKey(query)); err != nil {
		logger.WarnCF("playback", "Track cache delete failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
