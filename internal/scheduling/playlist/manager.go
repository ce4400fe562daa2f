// Copyright (c) 2025 ManuGH
// SPDX-License-Identifier: MIT

// Package playlist manages playlist and block definitions for displays:
// creation, activation, renaming and deletion. It owns validation of block
// specs; the timeline engine consumes the blocks it persists.
package playlist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ManuGH/vloop/internal/catalog"
	"github.com/ManuGH/vloop/internal/clock"
	"github.com/ManuGH/vloop/internal/log"
	"github.com/ManuGH/vloop/internal/scheduling/model"
	"github.com/ManuGH/vloop/internal/scheduling/store"
)

// ErrInvalidBlocks reports a malformed block specification.
var ErrInvalidBlocks = errors.New("playlist: invalid block specification")

// BlockSpec is the operator-supplied definition of one block. Order within
// the slice becomes block_order.
type BlockSpec struct {
	SearchTerm  string
	VideoCount  int
	FetchMode   string
	Orientation string
}

// Manager provides playlist CRUD and activation on top of the store.
type Manager struct {
	store store.Store
	clock clock.Clock
	log   zerolog.Logger
}

// NewManager constructs a Manager.
func NewManager(st store.Store, clk clock.Clock) *Manager {
	return &Manager{
		store: st,
		clock: clk,
		log:   log.WithComponent("playlist"),
	}
}

// Create validates the block specs and persists a new inactive playlist for
// the display. The new playlist's id is returned.
func (m *Manager) Create(ctx context.Context, displayID, name string, specs []BlockSpec) (*model.Playlist, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: no blocks", ErrInvalidBlocks)
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: empty playlist name", ErrInvalidBlocks)
	}

	now := m.clock.Now()
	p := &model.Playlist{
		ID:          uuid.NewString(),
		DisplayID:   displayID,
		Name:        name,
		TotalBlocks: len(specs),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	blocks := make([]*model.Block, 0, len(specs))
	for i, spec := range specs {
		if strings.TrimSpace(spec.SearchTerm) == "" {
			return nil, fmt.Errorf("%w: block %d has an empty search term", ErrInvalidBlocks, i)
		}
		if spec.VideoCount < 1 {
			return nil, fmt.Errorf("%w: block %d video count %d", ErrInvalidBlocks, i, spec.VideoCount)
		}
		mode, err := catalog.ParseFetchMode(spec.FetchMode)
		if err != nil {
			return nil, fmt.Errorf("%w: block %d: %s", ErrInvalidBlocks, i, err)
		}
		orient, err := catalog.ParseOrientation(spec.Orientation)
		if err != nil {
			return nil, fmt.Errorf("%w: block %d: %s", ErrInvalidBlocks, i, err)
		}

		blocks = append(blocks, &model.Block{
			ID:          uuid.NewString(),
			PlaylistID:  p.ID,
			SearchTerm:  strings.TrimSpace(spec.SearchTerm),
			VideoCount:  spec.VideoCount,
			FetchMode:   mode,
			Orientation: orient,
			BlockOrder:  i,
		})
		p.TotalVideos += spec.VideoCount
	}

	if err := m.store.CreatePlaylist(ctx, p, blocks); err != nil {
		return nil, err
	}

	m.log.Info().
		Str("event", "playlist.created").
		Str("display_id", displayID).
		Str("playlist_id", p.ID).
		Int("blocks", p.TotalBlocks).
		Int("videos", p.TotalVideos).
		Msg("playlist created")
	return p, nil
}

// Activate makes playlistID the display's single active playlist. Any prior
// active playlist is deactivated, the display's timeline cursor resets and
// stale timeline entries are dropped; the next poll populates loop 0.
func (m *Manager) Activate(ctx context.Context, displayID, playlistID string) error {
	if err := m.store.ActivatePlaylist(ctx, displayID, playlistID, m.clock.Now()); err != nil {
		return err
	}
	m.log.Info().
		Str("event", "playlist.activated").
		Str("display_id", displayID).
		Str("playlist_id", playlistID).
		Msg("playlist activated")
	return nil
}

// Get returns one playlist by id.
func (m *Manager) Get(ctx context.Context, playlistID string) (*model.Playlist, error) {
	return m.store.GetPlaylist(ctx, playlistID)
}

// List returns the display's playlists, newest first.
func (m *Manager) List(ctx context.Context, displayID string) ([]*model.Playlist, error) {
	return m.store.ListPlaylists(ctx, displayID)
}

// Blocks returns the playlist's blocks in block order.
func (m *Manager) Blocks(ctx context.Context, playlistID string) ([]*model.Block, error) {
	return m.store.GetBlocks(ctx, playlistID)
}

// Rename updates the playlist name.
func (m *Manager) Rename(ctx context.Context, playlistID, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty playlist name", ErrInvalidBlocks)
	}
	return m.store.RenamePlaylist(ctx, playlistID, name, m.clock.Now())
}

// Delete removes a playlist. Deleting the active playlist also clears the
// display's active reference and its timeline.
func (m *Manager) Delete(ctx context.Context, playlistID string) error {
	if err := m.store.DeletePlaylist(ctx, playlistID); err != nil {
		return err
	}
	m.log.Info().
		Str("event", "playlist.deleted").
		Str("playlist_id", playlistID).
		Msg("playlist deleted")
	return nil
}
