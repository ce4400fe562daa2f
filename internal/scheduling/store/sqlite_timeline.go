// Copyright (c) 2025 ManuGH
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ManuGH/vloop/internal/scheduling/model"
)

const timelineColumns = `
	entry_id, display_id, playlist_id, block_id, video_id, block_position,
	timeline_position, loop_iteration, status, played_at_ms, video_payload`

// InsertTimelineEntries appends a batch of queued entries in one transaction.
// Callers assign dense timeline positions before calling.
func (s *SqliteStore) InsertTimelineEntries(ctx context.Context, entries []*model.TimelineEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO timeline_videos (
		entry_id, display_id, playlist_id, block_id, video_id, block_position,
		timeline_position, loop_iteration, status, played_at_ms, video_payload
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range entries {
		payload, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("store: encode payload for %s: %w", e.VideoID, err)
		}
		_, err = stmt.ExecContext(ctx,
			e.ID, e.DisplayID, e.PlaylistID, e.BlockID, e.VideoID,
			e.BlockPosition, e.TimelinePosition, e.LoopIteration,
			model.StatusQueued, string(payload))
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetTimelineEntry retrieves one entry by id.
func (s *SqliteStore) GetTimelineEntry(ctx context.Context, entryID string) (*model.TimelineEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+timelineColumns+` FROM timeline_videos WHERE entry_id = ?`, entryID)
	e, err := scanTimelineEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	return e, err
}

// NextQueued returns the lowest-position queued entry, or ErrEntryNotFound
// when the timeline holds no queued entries.
func (s *SqliteStore) NextQueued(ctx context.Context, displayID string) (*model.TimelineEntry, error) {
	row := s.db.QueryRowContext(ctx, `
	SELECT `+timelineColumns+` FROM timeline_videos
	WHERE display_id = ? AND status = 'queued'
	ORDER BY timeline_position LIMIT 1`, displayID)
	e, err := scanTimelineEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	return e, err
}

// QueuedCount returns the number of queued entries on the display's timeline.
func (s *SqliteStore) QueuedCount(ctx context.Context, displayID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
	SELECT COUNT(*) FROM timeline_videos
	WHERE display_id = ? AND status = 'queued'`, displayID).Scan(&n)
	return n, err
}

// ListQueued returns up to limit queued entries in timeline order. A limit
// of 0 or less returns all of them.
func (s *SqliteStore) ListQueued(ctx context.Context, displayID string, limit int) ([]*model.TimelineEntry, error) {
	if limit <= 0 {
		limit = -1 // sqlite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `
	SELECT `+timelineColumns+` FROM timeline_videos
	WHERE display_id = ? AND status = 'queued'
	ORDER BY timeline_position LIMIT ?`, displayID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.TimelineEntry
	for rows.Next() {
		e, err := scanTimelineEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ClearTimeline removes every timeline entry for the display.
func (s *SqliteStore) ClearTimeline(ctx context.Context, displayID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM timeline_videos WHERE display_id = ?`, displayID)
	return err
}

// MarkEntryPlayed flips an entry queued→played, appends the history row,
// bumps the block's play stats and advances the display cursor past the
// entry, all in one transaction. A second mark of the same entry is a no-op
// reported via Replayed; history gains no duplicate row.
func (s *SqliteStore) MarkEntryPlayed(ctx context.Context, entryID string, now time.Time) (*MarkResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+timelineColumns+` FROM timeline_videos WHERE entry_id = ?`, entryID)
	e, err := scanTimelineEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx, `
	UPDATE timeline_videos SET status = 'played', played_at_ms = ?
	WHERE entry_id = ? AND status = 'queued'`, toMS(now), entryID)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return &MarkResult{Entry: e, Replayed: true}, tx.Commit()
	}

	playedAt := now.Truncate(time.Millisecond)
	e.Status = model.StatusPlayed
	e.PlayedAt = &playedAt

	_, err = tx.ExecContext(ctx, `
	INSERT INTO video_history (history_id, display_id, video_id, block_id, loop_iteration, played_at_ms)
	VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), e.DisplayID, e.VideoID, e.BlockID, e.LoopIteration, toMS(now))
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
	UPDATE playlist_blocks SET times_played = times_played + 1, last_played_at_ms = ?
	WHERE block_id = ?`, toMS(now), e.BlockID)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
	UPDATE displays SET timeline_position = ?
	WHERE display_id = ?`, e.TimelinePosition+1, e.DisplayID)
	if err != nil {
		return nil, err
	}

	return &MarkResult{Entry: e}, tx.Commit()
}

// CountBlockEntries counts the display's timeline entries for one block,
// played and queued alike.
func (s *SqliteStore) CountBlockEntries(ctx context.Context, displayID, blockID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
	SELECT COUNT(*) FROM timeline_videos
	WHERE display_id = ? AND block_id = ?`, displayID, blockID).Scan(&n)
	return n, err
}

// TrimBlockQueued deletes the highest-position queued entries of a block
// until at most target entries remain for it, and reports how many were
// removed. Played entries are never touched.
func (s *SqliteStore) TrimBlockQueued(ctx context.Context, displayID, blockID string, target int) (int, error) {
	total, err := s.CountBlockEntries(ctx, displayID, blockID)
	if err != nil {
		return 0, err
	}
	excess := total - target
	if excess <= 0 {
		return 0, nil
	}

	res, err := s.db.ExecContext(ctx, `
	DELETE FROM timeline_videos WHERE entry_id IN (
		SELECT entry_id FROM timeline_videos
		WHERE display_id = ? AND block_id = ? AND status = 'queued'
		ORDER BY timeline_position DESC LIMIT ?
	)`, displayID, blockID, excess)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// HistoryVideoIDs returns the distinct video ids the display has ever played
// for a block, across all loops.
func (s *SqliteStore) HistoryVideoIDs(ctx context.Context, displayID, blockID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT DISTINCT video_id FROM video_history
	WHERE display_id = ? AND block_id = ?`, displayID, blockID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func scanTimelineEntry(scanner interface{ Scan(dest ...any) error }) (*model.TimelineEntry, error) {
	var e model.TimelineEntry
	var playedAt sql.NullInt64
	var payload string

	err := scanner.Scan(
		&e.ID, &e.DisplayID, &e.PlaylistID, &e.BlockID, &e.VideoID,
		&e.BlockPosition, &e.TimelinePosition, &e.LoopIteration, &e.Status,
		&playedAt, &payload,
	)
	if err != nil {
		return nil, err
	}

	e.PlayedAt = fromMSPtr(playedAt)
	if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
		return nil, fmt.Errorf("store: decode payload for entry %s: %w", e.ID, err)
	}
	return &e, nil
}
