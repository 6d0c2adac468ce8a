// Package history keeps a local SQLite record of listened tracks and a
// cache of resolved track metadata.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/marinapotashenkova/SCPlayer/internal/catalog"
)

// ErrNotFound is returned when no fresh cached metadata exists
var ErrNotFound = errors.New("history: not found")

// Store persists plays and cached metadata in SQLite
type Store struct {
	db *sql.DB
}

// Play is one recorded listen
type Play struct {
	ID        int64
	TrackID   catalog.TrackID
	Title     string
	Owner     string
	Duration  time.Duration // track length as reported by the engine
	Played    time.Duration // time actually listened, pauses excluded
	Timestamp time.Time     // when the listen started
}

// Open opens or creates the database at dbPath. ":memory:" is accepted.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection keeps in-memory databases consistent
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA journal_mode = WAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS plays (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			track_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			owner TEXT NOT NULL,
			duration INTEGER NOT NULL,
			played INTEGER NOT NULL,
			timestamp INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_plays_timestamp ON plays(timestamp);

		CREATE TABLE IF NOT EXISTS metadata (
			track_id INTEGER PRIMARY KEY,
			description TEXT NOT NULL DEFAULT '',
			stream_url TEXT NOT NULL,
			fetched_at INTEGER NOT NULL
		);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Add records a play and returns its id
func (s *Store) Add(ctx context.Context, p Play) (int64, error) {
	query := `
		INSERT INTO plays (track_id, title, owner, duration, played, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		int64(p.TrackID),
		p.Title,
		p.Owner,
		int64(p.Duration.Seconds()),
		int64(p.Played.Seconds()),
		p.Timestamp.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert play: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get insert id: %w", err)
	}
	return id, nil
}

// Recent returns up to limit plays, newest first. limit <= 0 returns all.
func (s *Store) Recent(ctx context.Context, limit int) ([]Play, error) {
	query := `
		SELECT id, track_id, title, owner, duration, played, timestamp
		FROM plays
		ORDER BY timestamp DESC, id DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query plays: %w", err)
	}
	defer rows.Close()

	var plays []Play
	for rows.Next() {
		var p Play
		var trackID, durationSecs, playedSecs, ts int64
		if err := rows.Scan(&p.ID, &trackID, &p.Title, &p.Owner, &durationSecs, &playedSecs, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan play: %w", err)
		}
		p.TrackID = catalog.TrackID(trackID)
		p.Duration = time.Duration(durationSecs) * time.Second
		p.Played = time.Duration(playedSecs) * time.Second
		p.Timestamp = time.Unix(ts, 0)
		plays = append(plays, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating plays: %w", err)
	}
	return plays, nil
}

// Count returns the number of recorded plays
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM plays").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count plays: %w", err)
	}
	return n, nil
}

// Cleanup removes plays older than maxAge and metadata fetched more than
// maxAge ago. It returns the number of rows deleted.
func (s *Store) Cleanup(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).Unix()

	var total int64
	for _, query := range []string{
		"DELETE FROM plays WHERE timestamp < ?",
		"DELETE FROM metadata WHERE fetched_at < ?",
	} {
		result, err := s.db.ExecContext(ctx, query, cutoff)
		if err != nil {
			return total, fmt.Errorf("failed to cleanup: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("failed to get rows affected: %w", err)
		}
		total += n
	}
	return total, nil
}

// Metadata returns cached info for id fetched within maxAge, or
// ErrNotFound
func (s *Store) Metadata(ctx context.Context, id catalog.TrackID, maxAge time.Duration) (*catalog.ExtendedInfo, error) {
	cutoff := time.Now().Add(-maxAge).Unix()

	var info catalog.ExtendedInfo
	err := s.db.QueryRowContext(ctx, `
		SELECT description, stream_url
		FROM metadata
		WHERE track_id = ? AND fetched_at >= ?
	`, int64(id), cutoff).Scan(&info.Description, &info.StreamURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query metadata: %w", err)
	}
	return &info, nil
}

// PutMetadata stores info for id, replacing any earlier entry
func (s *Store) PutMetadata(ctx context.Context, id catalog.TrackID, info catalog.ExtendedInfo) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metadata (track_id, description, stream_url, fetched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(track_id) DO UPDATE SET
			description = excluded.description,
			stream_url = excluded.stream_url,
			fetched_at = excluded.fetched_at
	`, int64(id), info.Description, info.StreamURL, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to store metadata: %w", err)
	}
	return nil
}
