// Copyright (c) 2025 ManuGH
// SPDX-License-Identifier: MIT

package timeline

import "github.com/ManuGH/vloop/internal/scheduling/model"

// Progress is the read-only projection of a display's place in its active
// playlist. Ratios are computed from the configured per-block video counts,
// not from produced entries, so a short block still reports sensible
// progress.
type Progress struct {
	PlaylistID    string  `json:"playlist_id"`
	PlaylistName  string  `json:"playlist_name"`
	LoopCount     int     `json:"loop_count"`
	TotalBlocks   int     `json:"total_blocks"`
	TotalVideos   int     `json:"total_videos"`
	Position      int     `json:"timeline_position"`
	BlockIndex    int     `json:"current_block_index"`
	BlockPosition int     `json:"position_in_block"`
	BlockProgress float64 `json:"block_progress"` // 0..1
}

// DeriveProgress locates the block owning the display's timeline position
// and computes in-block progress. Blocks must be in block order. A position
// past the configured total clamps to the final block's end.
func DeriveProgress(p *model.Playlist, blocks []*model.Block, position int) Progress {
	out := Progress{
		PlaylistID:   p.ID,
		PlaylistName: p.Name,
		LoopCount:    p.LoopCount,
		TotalBlocks:  p.TotalBlocks,
		TotalVideos:  p.TotalVideos,
		Position:     position,
	}
	if len(blocks) == 0 {
		return out
	}

	offset := 0
	for i, b := range blocks {
		if position < offset+b.VideoCount || i == len(blocks)-1 {
			out.BlockIndex = i
			out.BlockPosition = position - offset
			if out.BlockPosition > b.VideoCount {
				out.BlockPosition = b.VideoCount
			}
			if b.VideoCount > 0 {
				out.BlockProgress = float64(out.BlockPosition) / float64(b.VideoCount)
			}
			return out
		}
		offset += b.VideoCount
	}
	return out
}
