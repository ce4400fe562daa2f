// Copyright (c) 2025 ManuGH
// SPDX-License-Identifier: MIT

package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ManuGH/vloop/internal/persistence/sqlite"
)

// SqliteStore implements Store over the crawler's SQLite catalog.
type SqliteStore struct {
	db *sql.DB
}

var _ Store = (*SqliteStore)(nil)

// NewSqliteStore opens the catalog database and ensures the schema exists.
// The schema is shared with the external crawler; creating it here keeps
// fresh deployments and tests self-contained.
func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	db, err := sqlite.Open(dbPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}

	s := &SqliteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("catalog store: migration failed: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func (s *SqliteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS creators (
		creator_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		display_name TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS posts (
		video_id TEXT PRIMARY KEY,
		creator_id TEXT NOT NULL REFERENCES creators(creator_id),
		text TEXT NOT NULL,
		posted_at INTEGER NOT NULL,
		permalink TEXT NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		url_source TEXT NOT NULL,
		url_md TEXT NOT NULL DEFAULT '',
		url_thumbnail TEXT NOT NULL DEFAULT '',
		url_gif TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_posts_posted ON posts(posted_at DESC, video_id ASC);
	`
	_, err := s.db.Exec(schema)
	return err
}

const videoColumns = `
	p.video_id, p.creator_id, p.text, p.posted_at, p.permalink,
	p.width, p.height, p.url_source, p.url_md, p.url_thumbnail, p.url_gif,
	c.username, c.display_name`

// matchClause builds the WHERE fragment and args for a substring search with
// negative sub-terms and an orientation filter.
func matchClause(term string, negatives []string, orient Orientation) (string, []any) {
	var sb strings.Builder
	args := []any{term}
	sb.WriteString("instr(lower(p.text), lower(?)) > 0")
	for _, neg := range negatives {
		sb.WriteString(" AND instr(lower(p.text), lower(?)) = 0")
		args = append(args, neg)
	}
	switch orient {
	case OrientationWide:
		sb.WriteString(" AND p.width > p.height")
	case OrientationTall:
		sb.WriteString(" AND p.height > p.width")
	}
	return sb.String(), args
}

// MatchCount implements Store.
func (s *SqliteStore) MatchCount(ctx context.Context, term string, negatives []string, orient Orientation) (int, error) {
	where, args := matchClause(term, negatives, orient)
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts p WHERE "+where, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: count: %v", ErrUnavailable, err)
	}
	return n, nil
}

// Newest implements Store.
func (s *SqliteStore) Newest(ctx context.Context, term string, negatives []string, orient Orientation, exclude []string, limit int) ([]Video, error) {
	where, args := matchClause(term, negatives, orient)

	query := `SELECT ` + videoColumns + `
	FROM posts p JOIN creators c ON c.creator_id = p.creator_id
	WHERE ` + where
	if len(exclude) > 0 {
		query += " AND p.video_id NOT IN (" + placeholders(len(exclude)) + ")"
		for _, id := range exclude {
			args = append(args, id)
		}
	}
	query += " ORDER BY p.posted_at DESC, p.video_id ASC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", ErrUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	var out []Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrUnavailable, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", ErrUnavailable, err)
	}
	return out, nil
}

// At implements Store.
func (s *SqliteStore) At(ctx context.Context, term string, negatives []string, orient Orientation, offset int) (*Video, error) {
	where, args := matchClause(term, negatives, orient)
	query := `SELECT ` + videoColumns + `
	FROM posts p JOIN creators c ON c.creator_id = p.creator_id
	WHERE ` + where + `
	ORDER BY p.posted_at DESC, p.video_id ASC LIMIT 1 OFFSET ?`
	args = append(args, offset)

	row := s.db.QueryRowContext(ctx, query, args...)
	v, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: probe: %v", ErrUnavailable, err)
	}
	return &v, nil
}

// UpsertCreator is the ingest surface used by the crawler (and tests).
func (s *SqliteStore) UpsertCreator(ctx context.Context, creatorID, username, displayName string) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO creators (creator_id, username, display_name)
	VALUES (?, ?, ?)
	ON CONFLICT(creator_id) DO UPDATE SET
		username = excluded.username,
		display_name = excluded.display_name
	`, creatorID, username, displayName)
	return err
}

// UpsertPost is the ingest surface used by the crawler (and tests).
func (s *SqliteStore) UpsertPost(ctx context.Context, v Video) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO posts (
		video_id, creator_id, text, posted_at, permalink, width, height,
		url_source, url_md, url_thumbnail, url_gif
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(video_id) DO UPDATE SET
		creator_id = excluded.creator_id,
		text = excluded.text,
		posted_at = excluded.posted_at,
		permalink = excluded.permalink,
		width = excluded.width,
		height = excluded.height,
		url_source = excluded.url_source,
		url_md = excluded.url_md,
		url_thumbnail = excluded.url_thumbnail,
		url_gif = excluded.url_gif
	`, v.ID, v.CreatorID, v.Text, v.PostedAt, v.Permalink, v.Width, v.Height,
		v.URLSource, v.URLMD, v.URLThumbnail, v.URLGIF)
	return err
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func scanVideo(scanner interface{ Scan(dest ...any) error }) (Video, error) {
	var v Video
	err := scanner.Scan(
		&v.ID, &v.CreatorID, &v.Text, &v.PostedAt, &v.Permalink,
		&v.Width, &v.Height, &v.URLSource, &v.URLMD, &v.URLThumbnail, &v.URLGIF,
		&v.CreatorUsername, &v.CreatorDisplayName,
	)
	return v, err
}
