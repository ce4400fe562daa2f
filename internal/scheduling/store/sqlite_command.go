// Copyright (c) 2025 ManuGH
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/ManuGH/vloop/internal/scheduling/model"
)

// EnqueueCommand appends a command to the display's FIFO queue.
func (s *SqliteStore) EnqueueCommand(ctx context.Context, c *model.Command) error {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM displays WHERE display_id = ?`, c.DisplayID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists == 0 {
		return ErrDisplayNotFound
	}

	var payload sql.NullString
	if len(c.Payload) > 0 {
		payload = sql.NullString{String: string(c.Payload), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
	INSERT INTO display_commands (command_id, display_id, type, payload, enqueued_at_ms)
	VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.DisplayID, c.Type, payload, toMS(c.EnqueuedAt))
	return err
}

// DrainCommands removes and returns every pending command for the display in
// enqueue order. The read and the delete share one transaction, and the
// delete is bounded by the highest sequence number read: a command enqueued
// mid-drain survives for the next drain instead of being discarded unseen.
func (s *SqliteStore) DrainCommands(ctx context.Context, displayID string) ([]*model.Command, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
	SELECT seq, command_id, display_id, type, payload, enqueued_at_ms
	FROM display_commands WHERE display_id = ?
	ORDER BY seq`, displayID)
	if err != nil {
		return nil, err
	}

	var out []*model.Command
	var maxSeq int64
	for rows.Next() {
		var c model.Command
		var seq int64
		var payload sql.NullString
		var enqueuedAt int64
		if err := rows.Scan(&seq, &c.ID, &c.DisplayID, &c.Type, &payload, &enqueuedAt); err != nil {
			_ = rows.Close()
			return nil, err
		}
		if payload.Valid {
			c.Payload = json.RawMessage(payload.String)
		}
		c.EnqueuedAt = fromMS(enqueuedAt)
		maxSeq = seq
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	if len(out) > 0 {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM display_commands WHERE display_id = ? AND seq <= ?`,
			displayID, maxSeq); err != nil {
			return nil, err
		}
	}

	return out, tx.Commit()
}
