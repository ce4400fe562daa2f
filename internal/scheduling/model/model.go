// Copyright (c) 2025 ManuGH
// SPDX-License-Identifier: MIT

// Package model defines the scheduling domain records: displays, playlists,
// blocks, timeline entries, play history and operator commands.
package model

import (
	"encoding/json"
	"time"

	"github.com/ManuGH/vloop/internal/catalog"
)

// Display is one remote playback client, identified by its pairing code.
type Display struct {
	ID                string // 6-char upper-alphanumeric pairing code
	Name              string
	CreatedAt         time.Time
	LastPing          *time.Time
	Liveness          Liveness
	CurrentVideoID    *string
	CurrentPosition   float64 // seconds into the current video
	CurrentPlaylistID *string
	TimelinePosition  int
	LastStateChange   *time.Time
}

// Online reports whether the display pinged within the given threshold.
func (d *Display) Online(now time.Time, threshold time.Duration) bool {
	return d.LastPing != nil && now.Sub(*d.LastPing) <= threshold
}

// Playlist is an ordered list of blocks bound to a single display.
// At most one playlist per display is active.
type Playlist struct {
	ID          string
	DisplayID   string
	Name        string
	IsActive    bool
	TotalBlocks int
	TotalVideos int // sum of block video counts
	LoopCount   int // completed loops
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Block is a named catalog search within a playlist.
type Block struct {
	ID           string
	PlaylistID   string
	SearchTerm   string
	VideoCount   int
	FetchMode    catalog.FetchMode
	Orientation  catalog.Orientation
	BlockOrder   int // dense 0..TotalBlocks-1 within the playlist
	TimesPlayed  int
	LastPlayedAt *time.Time
}

// TimelineEntry is one queued or played slot of a display's timeline.
// Entries are created during population and only ever mutated by the
// queued→played status transition.
type TimelineEntry struct {
	ID               string
	DisplayID        string
	PlaylistID       string
	BlockID          string
	VideoID          string
	BlockPosition    int // index within the block's produced sequence
	TimelinePosition int // dense 0..k-1 within the loop
	LoopIteration    int
	Status           EntryStatus
	PlayedAt         *time.Time
	Payload          VideoPayload
}

// HistoryEntry records one completed playback. History is never deleted by
// the engine; it drives per-block cross-loop non-repetition.
type HistoryEntry struct {
	ID            string
	DisplayID     string
	VideoID       string
	BlockID       string
	LoopIteration int
	PlayedAt      time.Time
}

// Command is one pending operator instruction for a display.
type Command struct {
	ID         string
	DisplayID  string
	Type       CommandType
	Payload    json.RawMessage // optional, e.g. seek position
	EnqueuedAt time.Time
}

// VideoPayload is the closed denormalized record captured at population time.
// It is sufficient for playback without re-reading the catalog; fields the
// catalog may add later are not part of this contract.
type VideoPayload struct {
	VideoID            string `json:"video_id"`
	Text               string `json:"text"`
	Permalink          string `json:"permalink"`
	URLSource          string `json:"url_source"`
	URLMD              string `json:"url_md,omitempty"`
	URLThumbnail       string `json:"url_thumbnail,omitempty"`
	Width              int    `json:"width"`
	Height             int    `json:"height"`
	CreatorID          string `json:"creator_id"`
	CreatorUsername    string `json:"creator_username"`
	CreatorDisplayName string `json:"creator_display_name,omitempty"`
}

// PayloadFromVideo captures the playback payload for a catalog video.
func PayloadFromVideo(v catalog.Video) VideoPayload {
	return VideoPayload{
		VideoID:            v.ID,
		Text:               v.Text,
		Permalink:          v.Permalink,
		URLSource:          v.URLSource,
		URLMD:              v.URLMD,
		URLThumbnail:       v.URLThumbnail,
		Width:              v.Width,
		Height:             v.Height,
		CreatorID:          v.CreatorID,
		CreatorUsername:    v.CreatorUsername,
		CreatorDisplayName: v.CreatorDisplayName,
	}
}
