// Copyright (c) 2025 ManuGH
// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/vloop/internal/catalog"
	"github.com/ManuGH/vloop/internal/scheduling/model"
	"github.com/ManuGH/vloop/internal/scheduling/playlist"
)

type createDisplayRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateDisplay(w http.ResponseWriter, r *http.Request) {
	var req createDisplayRequest
	if err := decodeBody(r, s.cfg.MaxBodyBytes, &req); err != nil || strings.TrimSpace(req.Name) == "" {
		writeAPIError(w, http.StatusBadRequest, ErrInvalidInput)
		return
	}

	d, err := s.store.CreateDisplay(r.Context(), strings.TrimSpace(req.Name), s.clock.Now())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.log.Info().
		Str("event", "display.created").
		Str("display_id", d.ID).
		Msg("display created")
	writeJSON(w, http.StatusCreated, displayJSON(d, s.clock.Now(), s.cfg.OnlineThreshold))
}

func (s *Server) handleListDisplays(w http.ResponseWriter, r *http.Request) {
	displays, err := s.store.ListDisplays(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	now := s.clock.Now()
	out := make([]map[string]any, 0, len(displays))
	for _, d := range displays {
		out = append(out, displayJSON(d, now, s.cfg.OnlineThreshold))
	}
	writeJSON(w, http.StatusOK, map[string]any{"displays": out})
}

type renameRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleRenameDisplay(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := decodeBody(r, s.cfg.MaxBodyBytes, &req); err != nil || strings.TrimSpace(req.Name) == "" {
		writeAPIError(w, http.StatusBadRequest, ErrInvalidInput)
		return
	}
	if err := s.store.RenameDisplay(r.Context(), chi.URLParam(r, "displayID"), strings.TrimSpace(req.Name)); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDeleteDisplay(w http.ResponseWriter, r *http.Request) {
	displayID := chi.URLParam(r, "displayID")
	if err := s.store.DeleteDisplay(r.Context(), displayID); err != nil {
		writeStoreError(w, err)
		return
	}
	s.log.Info().
		Str("event", "display.deleted").
		Str("display_id", displayID).
		Msg("display deleted")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type blockSpecJSON struct {
	SearchTerm  string `json:"searchTerm"`
	VideoCount  int    `json:"videoCount"`
	FetchMode   string `json:"fetchMode"`
	Orientation string `json:"orientation"`
}

type createPlaylistRequest struct {
	Name   string          `json:"name"`
	Blocks []blockSpecJSON `json:"blocks"`
}

func (s *Server) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var req createPlaylistRequest
	if err := decodeBody(r, s.cfg.MaxBodyBytes, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, ErrInvalidInput)
		return
	}

	specs := make([]playlist.BlockSpec, 0, len(req.Blocks))
	for _, b := range req.Blocks {
		specs = append(specs, playlist.BlockSpec{
			SearchTerm:  b.SearchTerm,
			VideoCount:  b.VideoCount,
			FetchMode:   b.FetchMode,
			Orientation: b.Orientation,
		})
	}

	p, err := s.playlists.Create(r.Context(), chi.URLParam(r, "displayID"), req.Name, specs)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, playlistJSON(p))
}

func (s *Server) handleListPlaylists(w http.ResponseWriter, r *http.Request) {
	list, err := s.playlists.List(r.Context(), chi.URLParam(r, "displayID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(list))
	for _, p := range list {
		out = append(out, playlistJSON(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"playlists": out})
}

func (s *Server) handleGetPlaylist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := s.playlists.Get(ctx, chi.URLParam(r, "playlistID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	blocks, err := s.playlists.Blocks(ctx, p.ID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	body := playlistJSON(p)
	bs := make([]map[string]any, 0, len(blocks))
	for _, b := range blocks {
		bs = append(bs, map[string]any{
			"id":           b.ID,
			"searchTerm":   b.SearchTerm,
			"videoCount":   b.VideoCount,
			"fetchMode":    string(b.FetchMode),
			"orientation":  string(b.Orientation),
			"blockOrder":   b.BlockOrder,
			"timesPlayed":  b.TimesPlayed,
			"lastPlayedAt": b.LastPlayedAt,
		})
	}
	body["blocks"] = bs
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleRenamePlaylist(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := decodeBody(r, s.cfg.MaxBodyBytes, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, ErrInvalidInput)
		return
	}
	if err := s.playlists.Rename(r.Context(), chi.URLParam(r, "playlistID"), req.Name); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDeletePlaylist(w http.ResponseWriter, r *http.Request) {
	if err := s.playlists.Delete(r.Context(), chi.URLParam(r, "playlistID")); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleActivatePlaylist(w http.ResponseWriter, r *http.Request) {
	displayID := chi.URLParam(r, "displayID")
	playlistID := chi.URLParam(r, "playlistID")
	if err := s.playlists.Activate(r.Context(), displayID, playlistID); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleResetBlocks(w http.ResponseWriter, r *http.Request) {
	removed, err := s.engine.ResetBlocksToTarget(r.Context(),
		chi.URLParam(r, "displayID"), chi.URLParam(r, "playlistID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "removed": removed})
}

// handleCatalogCount lets operators size a search term before building a
// block. Counts come from the same TTL cache the scheduler uses, so the
// answer may lag catalog ingestion by up to the TTL.
func (s *Server) handleCatalogCount(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("term")
	orientRaw := r.URL.Query().Get("orientation")
	if orientRaw == "" {
		orientRaw = "mixed"
	}
	orient, err := catalog.ParseOrientation(orientRaw)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	n, err := s.search.Count(r.Context(), term, orient)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"term":        term,
		"orientation": string(orient),
		"count":       n,
	})
}

type enqueueCommandRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (s *Server) handleEnqueueCommand(w http.ResponseWriter, r *http.Request) {
	var req enqueueCommandRequest
	if err := decodeBody(r, s.cfg.MaxBodyBytes, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, ErrInvalidInput)
		return
	}
	c, err := s.commands.Enqueue(r.Context(), chi.URLParam(r, "displayID"), req.Type, req.Payload)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":   c.ID,
		"type": string(c.Type),
	})
}

// handleQueuePreview returns the next N queued entries for operator preview.
func (s *Server) handleQueuePreview(w http.ResponseWriter, r *http.Request) {
	displayID := chi.URLParam(r, "displayID")
	if _, err := s.store.GetDisplay(r.Context(), displayID); err != nil {
		writeStoreError(w, err)
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeAPIError(w, http.StatusBadRequest, ErrInvalidInput)
			return
		}
		limit = n
	}

	entries, err := s.store.ListQueued(r.Context(), displayID, limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	out := make([]nextVideoJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, nextVideoJSON{
			ID:               e.ID,
			VideoID:          e.VideoID,
			TimelinePosition: e.TimelinePosition,
			BlockPosition:    e.BlockPosition,
			BlockID:          e.BlockID,
			LoopIteration:    e.LoopIteration,
			VideoData:        e.Payload,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"queue": out})
}

func playlistJSON(p *model.Playlist) map[string]any {
	return map[string]any{
		"id":          p.ID,
		"name":        p.Name,
		"displayId":   p.DisplayID,
		"isActive":    p.IsActive,
		"totalBlocks": p.TotalBlocks,
		"totalVideos": p.TotalVideos,
		"loopCount":   p.LoopCount,
		"createdAt":   p.CreatedAt.UTC().Format(time.RFC3339),
	}
}
