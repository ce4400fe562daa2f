// Copyright (c) 2025 ManuGH
// SPDX-License-Identifier: MIT

// Package timeline populates, advances and rolls over per-display video
// timelines. A timeline is one loop's worth of entries drawn block by block
// from the catalog; history keeps videos from repeating for the same block
// across loops.
package timeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ManuGH/vloop/internal/catalog"
	"github.com/ManuGH/vloop/internal/clock"
	"github.com/ManuGH/vloop/internal/log"
	"github.com/ManuGH/vloop/internal/metrics"
	"github.com/ManuGH/vloop/internal/scheduling/model"
	"github.com/ManuGH/vloop/internal/scheduling/store"
)

// Selector is the slice of the catalog search service the engine needs.
type Selector interface {
	Select(ctx context.Context, req catalog.SelectRequest) ([]catalog.Video, error)
}

// Config tunes the engine.
type Config struct {
	// CatalogTimeout bounds each per-block catalog selection. Default 10s.
	CatalogTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.CatalogTimeout <= 0 {
		c.CatalogTimeout = 10 * time.Second
	}
	return c
}

// Engine is the timeline lifecycle controller. Mark-played and rollover for
// the same display are serialized through a per-display lock; the store's
// idempotent status transition covers races the lock cannot see.
type Engine struct {
	store   store.Store
	catalog Selector
	clock   clock.Clock
	cfg     Config
	locks   *keyedMutex
	log     zerolog.Logger
}

// NewEngine constructs an Engine.
func NewEngine(st store.Store, sel Selector, clk clock.Clock, cfg Config) *Engine {
	return &Engine{
		store:   st,
		catalog: sel,
		clock:   clk,
		cfg:     cfg.withDefaults(),
		locks:   newKeyedMutex(),
		log:     log.WithComponent("timeline"),
	}
}

// Populate builds one full loop of timeline entries for the display. Blocks
// are processed in block order; each block's selection excludes every video
// the display has already played for that block. Returns the number of
// entries created.
//
// The caller ensures prior entries for the display are gone: rollover clears
// them, and activation starts from an empty timeline.
func (e *Engine) Populate(ctx context.Context, displayID, playlistID string, loopIteration int) (int, error) {
	blocks, err := e.store.GetBlocks(ctx, playlistID)
	if err != nil {
		return 0, err
	}

	position := 0
	total := 0
	for _, b := range blocks {
		videos, err := e.selectForBlock(ctx, displayID, b)
		if err != nil {
			if errors.Is(err, catalog.ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
				// Degrade: the loop stays short, the next rollover retries.
				e.log.Warn().
					Str("event", "timeline.populate.block_skipped").
					Str("display_id", displayID).
					Str("block_id", b.ID).
					Err(err).
					Msg("catalog unavailable during population")
				continue
			}
			return total, err
		}

		entries := make([]*model.TimelineEntry, 0, len(videos))
		for i, v := range videos {
			entries = append(entries, &model.TimelineEntry{
				ID:               uuid.NewString(),
				DisplayID:        displayID,
				PlaylistID:       playlistID,
				BlockID:          b.ID,
				VideoID:          v.ID,
				BlockPosition:    i,
				TimelinePosition: position,
				LoopIteration:    loopIteration,
				Status:           model.StatusQueued,
				Payload:          model.PayloadFromVideo(v),
			})
			position++
		}
		if err := e.store.InsertTimelineEntries(ctx, entries); err != nil {
			return total, err
		}
		total += len(entries)
	}

	metrics.AddTimelineEntriesPopulated(total)
	e.log.Info().
		Str("event", "timeline.populated").
		Str("display_id", displayID).
		Str("playlist_id", playlistID).
		Int("loop", loopIteration).
		Int("entries", total).
		Msg("timeline populated")
	return total, nil
}

func (e *Engine) selectForBlock(ctx context.Context, displayID string, b *model.Block) ([]catalog.Video, error) {
	played, err := e.store.HistoryVideoIDs(ctx, displayID, b.ID)
	if err != nil {
		return nil, err
	}
	exclude := make(map[string]struct{}, len(played))
	for _, id := range played {
		exclude[id] = struct{}{}
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.CatalogTimeout)
	defer cancel()

	return e.catalog.Select(ctx, catalog.SelectRequest{
		Term:        b.SearchTerm,
		Count:       b.VideoCount,
		Mode:        b.FetchMode,
		Orientation: b.Orientation,
		Exclude:     exclude,
	})
}

// Next returns the queued entry with the smallest timeline position, or nil
// when the timeline has no queued entries. Pure read.
func (e *Engine) Next(ctx context.Context, displayID string) (*model.TimelineEntry, error) {
	entry, err := e.store.NextQueued(ctx, displayID)
	if errors.Is(err, store.ErrEntryNotFound) {
		return nil, nil
	}
	return entry, err
}

// MarkPlayed transitions an entry queued→played, records history, bumps the
// block's stats and advances the display cursor. Replaying an already-played
// entry changes nothing. When the transition empties the timeline, the loop
// rolls over before returning.
func (e *Engine) MarkPlayed(ctx context.Context, entryID string) (*store.MarkResult, error) {
	entry, err := e.store.GetTimelineEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.lock(entry.DisplayID)
	defer unlock()

	res, err := e.store.MarkEntryPlayed(ctx, entryID, e.clock.Now())
	if err != nil {
		metrics.IncMarkPlayed("error")
		return nil, err
	}
	if res.Replayed {
		metrics.IncMarkPlayed("replay")
		return res, nil
	}
	metrics.IncMarkPlayed("ok")

	queued, err := e.store.QueuedCount(ctx, entry.DisplayID)
	if err != nil {
		return res, err
	}
	if queued == 0 {
		if _, err := e.rolloverLocked(ctx, entry.DisplayID); err != nil {
			return res, err
		}
	}
	return res, nil
}

// Rollover concludes the current loop and populates the next one: the loop
// counter moves, stale entries are dropped, the cursor resets and population
// runs once. Returns the number of entries the new loop holds. A display
// without an active playlist is a no-op.
//
// A cursor still at zero means the current loop never dispatched anything:
// its population came up empty, and rolling over again would only re-query
// the catalog and inflate the loop counter on every poll. That state is a
// no-op here; it ends when an operator edits the blocks or activates a
// playlist.
func (e *Engine) Rollover(ctx context.Context, displayID string) (int, error) {
	unlock := e.locks.lock(displayID)
	defer unlock()

	d, err := e.store.GetDisplay(ctx, displayID)
	if err != nil {
		return 0, err
	}
	if d.TimelinePosition == 0 {
		return 0, nil
	}
	return e.rolloverLocked(ctx, displayID)
}

func (e *Engine) rolloverLocked(ctx context.Context, displayID string) (int, error) {
	p, err := e.store.GetActivePlaylist(ctx, displayID)
	if errors.Is(err, store.ErrNoActivePlaylist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	nextLoop, err := e.store.IncrementLoopCount(ctx, p.ID)
	if err != nil {
		metrics.IncRollover("error")
		return 0, err
	}
	if err := e.store.ClearTimeline(ctx, displayID); err != nil {
		metrics.IncRollover("error")
		return 0, err
	}
	if err := e.store.SetTimelinePosition(ctx, displayID, 0); err != nil {
		metrics.IncRollover("error")
		return 0, err
	}

	n, err := e.Populate(ctx, displayID, p.ID, nextLoop)
	if err != nil {
		metrics.IncRollover("error")
		return n, err
	}
	if n == 0 {
		metrics.IncRollover("empty")
	} else {
		metrics.IncRollover("ok")
	}

	e.log.Info().
		Str("event", "timeline.rollover").
		Str("display_id", displayID).
		Str("playlist_id", p.ID).
		Int("loop", nextLoop).
		Int("entries", n).
		Msg("loop rolled over")
	return n, nil
}

// EnsurePopulated populates loop 0 for a freshly activated playlist whose
// timeline is still empty and whose loop counter has never moved. Polls call
// it opportunistically so activation itself stays cheap.
func (e *Engine) EnsurePopulated(ctx context.Context, displayID string) error {
	p, err := e.store.GetActivePlaylist(ctx, displayID)
	if errors.Is(err, store.ErrNoActivePlaylist) {
		return nil
	}
	if err != nil {
		return err
	}
	if p.LoopCount > 0 {
		return nil
	}

	unlock := e.locks.lock(displayID)
	defer unlock()

	queued, err := e.store.QueuedCount(ctx, displayID)
	if err != nil {
		return err
	}
	if queued > 0 {
		return nil
	}
	d, err := e.store.GetDisplay(ctx, displayID)
	if err != nil {
		return err
	}
	// A cursor past zero means loop 0 already ran and drained; rollover owns
	// that case.
	if d.TimelinePosition > 0 {
		return nil
	}

	_, err = e.Populate(ctx, displayID, p.ID, 0)
	return err
}

// ResetBlocksToTarget trims over-populated blocks of the current timeline
// back to their configured video counts by deleting the highest-position
// queued entries per block. It never adds entries; it is the recovery path
// for lowering a live block's video count.
func (e *Engine) ResetBlocksToTarget(ctx context.Context, displayID, playlistID string) (int, error) {
	unlock := e.locks.lock(displayID)
	defer unlock()

	blocks, err := e.store.GetBlocks(ctx, playlistID)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, b := range blocks {
		n, err := e.store.TrimBlockQueued(ctx, displayID, b.ID, b.VideoCount)
		if err != nil {
			return removed, fmt.Errorf("trim block %s: %w", b.ID, err)
		}
		removed += n
	}

	if removed > 0 {
		e.log.Info().
			Str("event", "timeline.reset_to_target").
			Str("display_id", displayID).
			Str("playlist_id", playlistID).
			Int("removed", removed).
			Msg("trimmed over-populated blocks")
	}
	return removed, nil
}
