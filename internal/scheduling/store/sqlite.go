// Copyright (c) 2025 ManuGH
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ManuGH/vloop/internal/persistence/sqlite"
	"github.com/ManuGH/vloop/internal/scheduling/model"
)

const schemaVersion = 1

// SqliteStore implements Store using SQLite.
type SqliteStore struct {
	db *sql.DB
}

var _ Store = (*SqliteStore)(nil)

// NewSqliteStore opens the scheduling database and runs migrations.
func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	db, err := sqlite.Open(dbPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}

	s := &SqliteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("scheduling store: migration failed: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func (s *SqliteStore) migrate() error {
	var currentVersion int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&currentVersion); err != nil {
		return err
	}
	if currentVersion >= schemaVersion {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	schema := `
	CREATE TABLE IF NOT EXISTS displays (
		display_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at_ms INTEGER NOT NULL,
		last_ping_ms INTEGER,
		liveness TEXT NOT NULL DEFAULT 'offline',
		current_video_id TEXT,
		current_position REAL NOT NULL DEFAULT 0,
		current_playlist_id TEXT,
		timeline_position INTEGER NOT NULL DEFAULT 0,
		last_state_change_ms INTEGER
	);

	CREATE TABLE IF NOT EXISTS playlists (
		playlist_id TEXT PRIMARY KEY,
		display_id TEXT NOT NULL REFERENCES displays(display_id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 0,
		total_blocks INTEGER NOT NULL,
		total_videos INTEGER NOT NULL,
		loop_count INTEGER NOT NULL DEFAULT 0,
		created_at_ms INTEGER NOT NULL,
		updated_at_ms INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_playlists_display ON playlists(display_id, is_active);

	CREATE TABLE IF NOT EXISTS playlist_blocks (
		block_id TEXT PRIMARY KEY,
		playlist_id TEXT NOT NULL REFERENCES playlists(playlist_id) ON DELETE CASCADE,
		search_term TEXT NOT NULL,
		video_count INTEGER NOT NULL CHECK(video_count >= 1),
		fetch_mode TEXT NOT NULL CHECK(fetch_mode IN ('newest', 'random')),
		orientation TEXT NOT NULL CHECK(orientation IN ('mixed', 'wide', 'tall')),
		block_order INTEGER NOT NULL,
		times_played INTEGER NOT NULL DEFAULT 0,
		last_played_at_ms INTEGER
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_blocks_order ON playlist_blocks(playlist_id, block_order);

	CREATE TABLE IF NOT EXISTS timeline_videos (
		entry_id TEXT PRIMARY KEY,
		display_id TEXT NOT NULL REFERENCES displays(display_id) ON DELETE CASCADE,
		playlist_id TEXT NOT NULL,
		block_id TEXT NOT NULL,
		video_id TEXT NOT NULL,
		block_position INTEGER NOT NULL,
		timeline_position INTEGER NOT NULL,
		loop_iteration INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'queued' CHECK(status IN ('queued', 'played')),
		played_at_ms INTEGER,
		video_payload TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_timeline_dispatch ON timeline_videos(display_id, status, timeline_position);
	CREATE INDEX IF NOT EXISTS idx_timeline_block ON timeline_videos(display_id, block_id);

	CREATE TABLE IF NOT EXISTS video_history (
		history_id TEXT PRIMARY KEY,
		display_id TEXT NOT NULL REFERENCES displays(display_id) ON DELETE CASCADE,
		video_id TEXT NOT NULL,
		block_id TEXT NOT NULL,
		loop_iteration INTEGER NOT NULL,
		played_at_ms INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_block ON video_history(display_id, block_id);

	CREATE TABLE IF NOT EXISTS display_commands (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		command_id TEXT NOT NULL UNIQUE,
		display_id TEXT NOT NULL REFERENCES displays(display_id) ON DELETE CASCADE,
		type TEXT NOT NULL,
		payload TEXT,
		enqueued_at_ms INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_commands_display ON display_commands(display_id, seq);
	`

	if _, err := tx.Exec(schema); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

// --- Displays ---

const displayCreateAttempts = 5

// CreateDisplay generates a pairing code and inserts the display, retrying
// on code collision.
func (s *SqliteStore) CreateDisplay(ctx context.Context, name string, now time.Time) (*model.Display, error) {
	for attempt := 0; attempt < displayCreateAttempts; attempt++ {
		code, err := model.NewDisplayCode()
		if err != nil {
			return nil, err
		}

		_, err = s.db.ExecContext(ctx, `
		INSERT INTO displays (display_id, name, created_at_ms, liveness, timeline_position)
		VALUES (?, ?, ?, ?, 0)`,
			code, name, toMS(now), model.LivenessOffline)
		if err != nil {
			if isUniqueViolation(err) {
				continue
			}
			return nil, err
		}

		return &model.Display{
			ID:        code,
			Name:      name,
			CreatedAt: now.Truncate(time.Millisecond),
			Liveness:  model.LivenessOffline,
		}, nil
	}
	return nil, errors.New("store: display code collision retries exhausted")
}

const displayColumns = `
	display_id, name, created_at_ms, last_ping_ms, liveness, current_video_id,
	current_position, current_playlist_id, timeline_position, last_state_change_ms`

// GetDisplay retrieves a display by its pairing code.
func (s *SqliteStore) GetDisplay(ctx context.Context, id string) (*model.Display, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+displayColumns+` FROM displays WHERE display_id = ?`, id)
	d, err := scanDisplay(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDisplayNotFound
	}
	return d, err
}

// ListDisplays returns all displays ordered by creation time.
func (s *SqliteStore) ListDisplays(ctx context.Context) ([]*model.Display, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+displayColumns+` FROM displays ORDER BY created_at_ms, display_id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.Display
	for rows.Next() {
		d, err := scanDisplay(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// RenameDisplay updates the display name.
func (s *SqliteStore) RenameDisplay(ctx context.Context, id, name string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE displays SET name = ? WHERE display_id = ?`, name, id)
	if err != nil {
		return err
	}
	return requireRow(res, ErrDisplayNotFound)
}

// DeleteDisplay removes the display; playlists, blocks, timeline, history
// and commands cascade.
func (s *SqliteStore) DeleteDisplay(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM displays WHERE display_id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res, ErrDisplayNotFound)
}

// RecordPoll persists display-reported state. last_state_change only moves
// when the liveness value actually changed.
func (s *SqliteStore) RecordPoll(ctx context.Context, u PollUpdate) error {
	res, err := s.db.ExecContext(ctx, `
	UPDATE displays SET
		last_ping_ms = ?,
		last_state_change_ms = CASE WHEN liveness <> ? THEN ? ELSE last_state_change_ms END,
		liveness = ?,
		current_video_id = ?,
		current_position = ?
	WHERE display_id = ?`,
		toMS(u.Now), u.Liveness, toMS(u.Now), u.Liveness,
		u.CurrentVideoID, u.CurrentPosition, u.DisplayID)
	if err != nil {
		return err
	}
	return requireRow(res, ErrDisplayNotFound)
}

// SetTimelinePosition pins the display's timeline cursor.
func (s *SqliteStore) SetTimelinePosition(ctx context.Context, displayID string, pos int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE displays SET timeline_position = ? WHERE display_id = ?`, pos, displayID)
	if err != nil {
		return err
	}
	return requireRow(res, ErrDisplayNotFound)
}

// --- Helpers ---

func scanDisplay(scanner interface{ Scan(dest ...any) error }) (*model.Display, error) {
	var d model.Display
	var createdAt int64
	var lastPing, lastStateChange sql.NullInt64
	var currentVideo, currentPlaylist sql.NullString

	err := scanner.Scan(
		&d.ID, &d.Name, &createdAt, &lastPing, &d.Liveness, &currentVideo,
		&d.CurrentPosition, &currentPlaylist, &d.TimelinePosition, &lastStateChange,
	)
	if err != nil {
		return nil, err
	}

	d.CreatedAt = fromMS(createdAt)
	d.LastPing = fromMSPtr(lastPing)
	d.LastStateChange = fromMSPtr(lastStateChange)
	if currentVideo.Valid {
		d.CurrentVideoID = &currentVideo.String
	}
	if currentPlaylist.Valid {
		d.CurrentPlaylistID = &currentPlaylist.String
	}
	return &d, nil
}

func requireRow(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return missing
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func toMS(t time.Time) int64 { return t.UnixMilli() }

func fromMS(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func fromMSPtr(ms sql.NullInt64) *time.Time {
	if !ms.Valid {
		return nil
	}
	t := fromMS(ms.Int64)
	return &t
}
