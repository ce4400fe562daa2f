// Copyright (c) 2025 ManuGH
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ManuGH/vloop/internal/scheduling/model"
)

const playlistColumns = `
	playlist_id, display_id, name, is_active, total_blocks, total_videos,
	loop_count, created_at_ms, updated_at_ms`

// CreatePlaylist persists a playlist with its blocks in one transaction.
// Block order is taken from each block's BlockOrder field.
func (s *SqliteStore) CreatePlaylist(ctx context.Context, p *model.Playlist, blocks []*model.Block) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM displays WHERE display_id = ?`, p.DisplayID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists == 0 {
		return ErrDisplayNotFound
	}

	_, err = tx.ExecContext(ctx, `
	INSERT INTO playlists (
		playlist_id, display_id, name, is_active, total_blocks, total_videos,
		loop_count, created_at_ms, updated_at_ms
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.DisplayID, p.Name, boolToInt(p.IsActive), p.TotalBlocks,
		p.TotalVideos, p.LoopCount, toMS(p.CreatedAt), toMS(p.UpdatedAt))
	if err != nil {
		return err
	}

	for _, b := range blocks {
		_, err = tx.ExecContext(ctx, `
		INSERT INTO playlist_blocks (
			block_id, playlist_id, search_term, video_count, fetch_mode,
			orientation, block_order, times_played
		) VALUES (?, ?, ?, ?, ?, ?, ?, 0)`,
			b.ID, b.PlaylistID, b.SearchTerm, b.VideoCount, b.FetchMode,
			b.Orientation, b.BlockOrder)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetPlaylist retrieves a playlist by id.
func (s *SqliteStore) GetPlaylist(ctx context.Context, id string) (*model.Playlist, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+playlistColumns+` FROM playlists WHERE playlist_id = ?`, id)
	p, err := scanPlaylist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlaylistNotFound
	}
	return p, err
}

// ListPlaylists returns a display's playlists, newest first.
func (s *SqliteStore) ListPlaylists(ctx context.Context, displayID string) ([]*model.Playlist, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+playlistColumns+` FROM playlists WHERE display_id = ?
		 ORDER BY created_at_ms DESC, playlist_id`, displayID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.Playlist
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// RenamePlaylist updates the playlist name.
func (s *SqliteStore) RenamePlaylist(ctx context.Context, id, name string, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE playlists SET name = ?, updated_at_ms = ? WHERE playlist_id = ?`,
		name, toMS(now), id)
	if err != nil {
		return err
	}
	return requireRow(res, ErrPlaylistNotFound)
}

// DeletePlaylist removes a playlist and its blocks. Deleting the active
// playlist also clears the display's active reference and its timeline.
func (s *SqliteStore) DeletePlaylist(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var displayID string
	var active int
	err = tx.QueryRowContext(ctx,
		`SELECT display_id, is_active FROM playlists WHERE playlist_id = ?`, id).
		Scan(&displayID, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrPlaylistNotFound
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM playlists WHERE playlist_id = ?`, id); err != nil {
		return err
	}

	if active != 0 {
		if _, err := tx.ExecContext(ctx, `
		UPDATE displays SET current_playlist_id = NULL, timeline_position = 0
		WHERE display_id = ?`, displayID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM timeline_videos WHERE display_id = ?`, displayID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetActivePlaylist returns the display's single active playlist.
func (s *SqliteStore) GetActivePlaylist(ctx context.Context, displayID string) (*model.Playlist, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+playlistColumns+` FROM playlists
		 WHERE display_id = ? AND is_active = 1`, displayID)
	p, err := scanPlaylist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoActivePlaylist
	}
	return p, err
}

// ActivatePlaylist atomically makes playlistID the display's single active
// playlist: prior active flags are cleared, the display's reference and
// timeline cursor reset, and any stale timeline entries removed. This is the
// only legal path to begin a playlist.
func (s *SqliteStore) ActivatePlaylist(ctx context.Context, displayID, playlistID string, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var owner string
	err = tx.QueryRowContext(ctx,
		`SELECT display_id FROM playlists WHERE playlist_id = ?`, playlistID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrPlaylistNotFound
	}
	if err != nil {
		return err
	}
	if owner != displayID {
		return ErrPlaylistNotFound
	}

	if _, err := tx.ExecContext(ctx, `
	UPDATE playlists SET is_active = 0, updated_at_ms = ?
	WHERE display_id = ? AND is_active = 1`, toMS(now), displayID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
	UPDATE playlists SET is_active = 1, updated_at_ms = ?
	WHERE playlist_id = ?`, toMS(now), playlistID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `
	UPDATE displays SET current_playlist_id = ?, timeline_position = 0
	WHERE display_id = ?`, playlistID, displayID)
	if err != nil {
		return err
	}
	if err := requireRow(res, ErrDisplayNotFound); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM timeline_videos WHERE display_id = ?`, displayID); err != nil {
		return err
	}

	return tx.Commit()
}

// IncrementLoopCount bumps the playlist loop counter and returns the new
// value.
func (s *SqliteStore) IncrementLoopCount(ctx context.Context, playlistID string) (int, error) {
	var loops int
	err := s.db.QueryRowContext(ctx, `
	UPDATE playlists SET loop_count = loop_count + 1 WHERE playlist_id = ?
	RETURNING loop_count`, playlistID).Scan(&loops)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrPlaylistNotFound
	}
	return loops, err
}

// GetBlocks returns a playlist's blocks in block order.
func (s *SqliteStore) GetBlocks(ctx context.Context, playlistID string) ([]*model.Block, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT block_id, playlist_id, search_term, video_count, fetch_mode,
	       orientation, block_order, times_played, last_played_at_ms
	FROM playlist_blocks WHERE playlist_id = ?
	ORDER BY block_order`, playlistID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.Block
	for rows.Next() {
		var b model.Block
		var lastPlayed sql.NullInt64
		err := rows.Scan(
			&b.ID, &b.PlaylistID, &b.SearchTerm, &b.VideoCount, &b.FetchMode,
			&b.Orientation, &b.BlockOrder, &b.TimesPlayed, &lastPlayed,
		)
		if err != nil {
			return nil, err
		}
		b.LastPlayedAt = fromMSPtr(lastPlayed)
		out = append(out, &b)
	}
	return out, rows.Err()
}

func scanPlaylist(scanner interface{ Scan(dest ...any) error }) (*model.Playlist, error) {
	var p model.Playlist
	var active int
	var createdAt, updatedAt int64
	err := scanner.Scan(
		&p.ID, &p.DisplayID, &p.Name, &active, &p.TotalBlocks, &p.TotalVideos,
		&p.LoopCount, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.IsActive = active != 0
	p.CreatedAt = fromMS(createdAt)
	p.UpdatedAt = fromMS(updatedAt)
	return &p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
