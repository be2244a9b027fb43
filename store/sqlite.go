package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	_ "modernc.org/sqlite"

	"github.com/kochetovM/aimuzon/model"
)

// SQLiteStore implements Store on a local SQLite file. Favorites are stored
// as the marshaled video item keyed by id, so the schema never chases the
// item shape; recent searches are a plain append log.
type SQLiteStore struct {
	db *sql.DB

	now func() time.Time
}

// NewSQLiteStore opens (or creates) the database at path and prepares the
// schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("store path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare store schema: %w", err)
	}

	log.Info().Str("path", path).Msg("Favorites store opened")
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS favorites (
			video_id TEXT PRIMARY KEY,
			item     TEXT NOT NULL,
			saved_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS recent_searches (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			query       TEXT NOT NULL,
			searched_at TEXT NOT NULL
		);
	`)
	return err
}

// UpsertFavorite saves or replaces a favorite keyed by its video id.
func (s *SQLiteStore) UpsertFavorite(ctx context.Context, v model.VideoItem) error {
	if v.VideoID == "" {
		return fmt.Errorf("favorite requires a video id")
	}

	item, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal favorite %s: %w", v.VideoID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO favorites (video_id, item, saved_at) VALUES (?, ?, ?)
		ON CONFLICT(video_id) DO UPDATE SET item = excluded.item, saved_at = excluded.saved_at
	`, v.VideoID, string(item), s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to upsert favorite %s: %w", v.VideoID, err)
	}
	return nil
}

// DeleteFavorite removes a favorite; absent ids are a no-op.
func (s *SQLiteStore) DeleteFavorite(ctx context.Context, videoID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM favorites WHERE video_id = ?`, videoID)
	if err != nil {
		return fmt.Errorf("failed to delete favorite %s: %w", videoID, err)
	}
	return nil
}

// Favorite returns one favorite by id.
func (s *SQLiteStore) Favorite(ctx context.Context, videoID string) (model.VideoItem, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT item FROM favorites WHERE video_id = ?`, videoID).Scan(&raw)
	if err == sql.ErrNoRows {
		return model.VideoItem{}, false, nil
	}
	if err != nil {
		return model.VideoItem{}, false, fmt.Errorf("failed to read favorite %s: %w", videoID, err)
	}

	var v model.VideoItem
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return model.VideoItem{}, false, fmt.Errorf("corrupt favorite %s: %w", videoID, err)
	}
	return v, true, nil
}

// Favorites returns all favorites, most recently saved first.
func (s *SQLiteStore) Favorites(ctx context.Context) ([]model.VideoItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT item FROM favorites ORDER BY saved_at DESC, video_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	defer rows.Close()

	var out []model.VideoItem
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan favorite: %w", err)
		}
		var v model.VideoItem
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			log.Warn().Err(err).Msg("Skipping corrupt favorite entry")
			continue
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// RecordSearch appends a query to the recent-searches log.
func (s *SQLiteStore) RecordSearch(ctx context.Context, query string) error {
	if query == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO recent_searches (query, searched_at) VALUES (?, ?)`,
		query, s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to record search %q: %w", query, err)
	}
	return nil
}

// RecentSearches returns up to limit distinct queries, newest first. Repeats
// of the same query collapse to the most recent occurrence.
func (s *SQLiteStore) RecentSearches(ctx context.Context, limit int) ([]RecentSearch, error) {
	if limit < 1 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT query, MAX(searched_at) AS latest
		FROM recent_searches
		GROUP BY query
		ORDER BY latest DESC, query
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent searches: %w", err)
	}
	defer rows.Close()

	var out []RecentSearch
	for rows.Next() {
		var rs RecentSearch
		var at string
		if err := rows.Scan(&rs.Query, &at); err != nil {
			return nil, fmt.Errorf("failed to scan recent search: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, at); err == nil {
			rs.SearchedAt = t
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
