// Copyright (c) 2025 ManuGH
// SPDX-License-Identifier: MIT

// Package store persists all mutable scheduling state. It is the single
// source of truth; no other component keeps authoritative state in memory.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ManuGH/vloop/internal/scheduling/model"
)

var (
	ErrDisplayNotFound  = errors.New("store: display not found")
	ErrPlaylistNotFound = errors.New("store: playlist not found")
	ErrEntryNotFound    = errors.New("store: timeline entry not found")
	ErrNoActivePlaylist = errors.New("store: no active playlist")
)

// PollUpdate carries the display-reported state written on every poll.
type PollUpdate struct {
	DisplayID       string
	Liveness        model.Liveness
	CurrentVideoID  *string
	CurrentPosition float64
	Now             time.Time
}

// MarkResult reports the outcome of a mark-played write.
type MarkResult struct {
	Entry    *model.TimelineEntry
	Replayed bool // entry was already played; nothing changed
}

// Store is the scheduling persistence interface. All methods are safe for
// concurrent use; multi-step writes run in a single transaction.
type Store interface {
	// Displays
	CreateDisplay(ctx context.Context, name string, now time.Time) (*model.Display, error)
	GetDisplay(ctx context.Context, id string) (*model.Display, error)
	ListDisplays(ctx context.Context) ([]*model.Display, error)
	RenameDisplay(ctx context.Context, id, name string) error
	DeleteDisplay(ctx context.Context, id string) error
	RecordPoll(ctx context.Context, u PollUpdate) error
	SetTimelinePosition(ctx context.Context, displayID string, pos int) error

	// Playlists and blocks
	CreatePlaylist(ctx context.Context, p *model.Playlist, blocks []*model.Block) error
	GetPlaylist(ctx context.Context, id string) (*model.Playlist, error)
	ListPlaylists(ctx context.Context, displayID string) ([]*model.Playlist, error)
	RenamePlaylist(ctx context.Context, id, name string, now time.Time) error
	DeletePlaylist(ctx context.Context, id string) error
	GetActivePlaylist(ctx context.Context, displayID string) (*model.Playlist, error)
	ActivatePlaylist(ctx context.Context, displayID, playlistID string, now time.Time) error
	IncrementLoopCount(ctx context.Context, playlistID string) (int, error)
	GetBlocks(ctx context.Context, playlistID string) ([]*model.Block, error)

	// Timeline
	InsertTimelineEntries(ctx context.Context, entries []*model.TimelineEntry) error
	GetTimelineEntry(ctx context.Context, entryID string) (*model.TimelineEntry, error)
	NextQueued(ctx context.Context, displayID string) (*model.TimelineEntry, error)
	QueuedCount(ctx context.Context, displayID string) (int, error)
	ListQueued(ctx context.Context, displayID string, limit int) ([]*model.TimelineEntry, error)
	ClearTimeline(ctx context.Context, displayID string) error
	MarkEntryPlayed(ctx context.Context, entryID string, now time.Time) (*MarkResult, error)
	CountBlockEntries(ctx context.Context, displayID, blockID string) (int, error)
	TrimBlockQueued(ctx context.Context, displayID, blockID string, target int) (int, error)

	// History
	HistoryVideoIDs(ctx context.Context, displayID, blockID string) ([]string, error)

	// Commands
	EnqueueCommand(ctx context.Context, c *model.Command) error
	DrainCommands(ctx context.Context, displayID string) ([]*model.Command, error)

	Close() error
}
