// Copyright (c) 2025 ManuGH
// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/vloop/internal/metrics"
	"github.com/ManuGH/vloop/internal/scheduling/model"
	"github.com/ManuGH/vloop/internal/scheduling/store"
	"github.com/ManuGH/vloop/internal/scheduling/timeline"
)

type pollRequest struct {
	Status         string   `json:"status"`
	CurrentVideoID *string  `json:"currentVideoId"`
	Position       *float64 `json:"position"`
}

type commandJSON struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type nextVideoJSON struct {
	ID               string             `json:"id"` // timeline entry id
	VideoID          string             `json:"video_id"`
	TimelinePosition int                `json:"timeline_position"`
	BlockPosition    int                `json:"block_position"`
	BlockID          string             `json:"block_id"`
	LoopIteration    int                `json:"loop_iteration"`
	VideoData        model.VideoPayload `json:"video_data"`
}

type pollResponse struct {
	DisplayName string             `json:"displayName"`
	Commands    []commandJSON      `json:"commands"`
	NextVideo   *nextVideoJSON     `json:"nextVideo"`
	Progress    *timeline.Progress `json:"progress"`
}

// handlePoll services one display tick: record reported state, hand over
// pending commands, auto-mark a finished video, and return the next queued
// entry. Catalog trouble degrades to nextVideo null; the display retries on
// its next tick.
func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	displayID := chi.URLParam(r, "displayID")

	var req pollRequest
	if err := decodeBody(r, s.cfg.MaxBodyBytes, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, ErrInvalidInput)
		return
	}

	// Pre-update state: the stored current_video_id identifies what the
	// display was last told to play.
	display, err := s.store.GetDisplay(ctx, displayID)
	if err != nil {
		metrics.IncPoll("unknown_display")
		writeStoreError(w, err)
		return
	}

	var position float64
	if req.Position != nil {
		position = *req.Position
	}
	if err := s.store.RecordPoll(ctx, store.PollUpdate{
		DisplayID:       displayID,
		Liveness:        model.ParseLiveness(req.Status),
		CurrentVideoID:  req.CurrentVideoID,
		CurrentPosition: position,
		Now:             s.clock.Now(),
	}); err != nil {
		metrics.IncPoll("error")
		writeStoreError(w, err)
		return
	}

	cmds, err := s.commands.Drain(ctx, displayID)
	if err != nil {
		metrics.IncPoll("error")
		writeStoreError(w, err)
		return
	}

	// A display that reports no current video after we handed it one has
	// finished that video: complete the head entry before computing next.
	if req.CurrentVideoID == nil && display.CurrentVideoID != nil {
		s.autoMarkFinished(ctx, displayID, *display.CurrentVideoID)
	}

	if err := s.engine.EnsurePopulated(ctx, displayID); err != nil {
		s.log.Warn().
			Str("event", "poll.populate_degraded").
			Str("display_id", displayID).
			Err(err).
			Msg("initial population failed; returning empty step")
	}

	next, err := s.nextWithRollover(ctx, displayID)
	if err != nil {
		// Catalog failures degrade to an empty step rather than a 5xx.
		s.log.Warn().
			Str("event", "poll.next_degraded").
			Str("display_id", displayID).
			Err(err).
			Msg("next-video lookup failed; returning empty step")
		next = nil
	}

	resp := pollResponse{
		DisplayName: display.Name,
		Commands:    make([]commandJSON, 0, len(cmds)),
		Progress:    s.deriveProgress(ctx, displayID),
	}
	for _, c := range cmds {
		resp.Commands = append(resp.Commands, commandJSON{
			ID: c.ID, Type: string(c.Type), Payload: c.Payload,
		})
	}
	if next != nil {
		resp.NextVideo = &nextVideoJSON{
			ID:               next.ID,
			VideoID:          next.VideoID,
			TimelinePosition: next.TimelinePosition,
			BlockPosition:    next.BlockPosition,
			BlockID:          next.BlockID,
			LoopIteration:    next.LoopIteration,
			VideoData:        next.Payload,
		}
	}

	metrics.IncPoll("ok")
	metrics.ObservePollDuration(time.Since(start).Seconds())
	writeJSON(w, http.StatusOK, resp)
}

// autoMarkFinished marks the head queued entry played when it matches the
// video the display just finished. Mismatches mean the head already moved
// (an explicit mark-played won the race); nothing to do then.
func (s *Server) autoMarkFinished(ctx context.Context, displayID, finishedVideoID string) {
	head, err := s.engine.Next(ctx, displayID)
	if err != nil || head == nil || head.VideoID != finishedVideoID {
		return
	}
	if _, err := s.engine.MarkPlayed(ctx, head.ID); err != nil {
		s.log.Warn().
			Str("event", "poll.auto_mark_failed").
			Str("display_id", displayID).
			Str("entry_id", head.ID).
			Err(err).
			Msg("auto mark-played failed")
	}
}

// nextWithRollover dispatches the next entry, rolling the loop over once if
// the timeline is drained.
func (s *Server) nextWithRollover(ctx context.Context, displayID string) (*model.TimelineEntry, error) {
	next, err := s.engine.Next(ctx, displayID)
	if err != nil {
		return nil, err
	}
	if next != nil {
		return next, nil
	}
	if _, err := s.engine.Rollover(ctx, displayID); err != nil {
		return nil, err
	}
	return s.engine.Next(ctx, displayID)
}

// deriveProgress is best-effort: a display without an active playlist polls
// with progress null.
func (s *Server) deriveProgress(ctx context.Context, displayID string) *timeline.Progress {
	p, err := s.store.GetActivePlaylist(ctx, displayID)
	if err != nil {
		return nil
	}
	blocks, err := s.store.GetBlocks(ctx, p.ID)
	if err != nil {
		return nil
	}
	d, err := s.store.GetDisplay(ctx, displayID)
	if err != nil {
		return nil
	}
	progress := timeline.DeriveProgress(p, blocks, d.TimelinePosition)
	return &progress
}

type markPlayedRequest struct {
	TimelineVideoID string `json:"timelineVideoId"`
}

// handleMarkPlayed lets the display report completion independently of the
// poll cycle. Replays succeed idempotently.
func (s *Server) handleMarkPlayed(w http.ResponseWriter, r *http.Request) {
	var req markPlayedRequest
	if err := decodeBody(r, s.cfg.MaxBodyBytes, &req); err != nil || req.TimelineVideoID == "" {
		writeAPIError(w, http.StatusBadRequest, ErrInvalidInput)
		return
	}

	res, err := s.engine.MarkPlayed(r.Context(), req.TimelineVideoID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"replayed": res.Replayed,
	})
}

// handleGetDisplay returns the display's liveness snapshot.
func (s *Server) handleGetDisplay(w http.ResponseWriter, r *http.Request) {
	d, err := s.store.GetDisplay(r.Context(), chi.URLParam(r, "displayID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, displayJSON(d, s.clock.Now(), s.cfg.OnlineThreshold))
}

func displayJSON(d *model.Display, now time.Time, threshold time.Duration) map[string]any {
	var lastPing *string
	if d.LastPing != nil {
		v := d.LastPing.UTC().Format(time.RFC3339)
		lastPing = &v
	}
	return map[string]any{
		"id":                  d.ID,
		"name":                d.Name,
		"liveness":            string(d.Liveness),
		"online":              d.Online(now, threshold),
		"last_ping":           lastPing,
		"current_playlist_id": d.CurrentPlaylistID,
		"timeline_position":   d.TimelinePosition,
	}
}

// decodeBody decodes a JSON body with a size cap, tolerating an empty body.
func decodeBody(r *http.Request, maxBytes int64, v any) error {
	defer func() { _ = r.Body.Close() }()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}
