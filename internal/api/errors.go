// Copyright (c) 2025 ManuGH
// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/vloop/internal/catalog"
	"github.com/ManuGH/vloop/internal/log"
	"github.com/ManuGH/vloop/internal/scheduling/command"
	"github.com/ManuGH/vloop/internal/scheduling/playlist"
	"github.com/ManuGH/vloop/internal/scheduling/store"
)

// APIError is the structured error body every non-2xx response carries.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string { return e.Message }

var (
	ErrDisplayNotFound = &APIError{
		Code:    "DISPLAY_NOT_FOUND",
		Message: "Display not found",
	}
	ErrPlaylistNotFound = &APIError{
		Code:    "PLAYLIST_NOT_FOUND",
		Message: "Playlist not found",
	}
	ErrEntryNotFound = &APIError{
		Code:    "TIMELINE_ENTRY_NOT_FOUND",
		Message: "Timeline entry not found",
	}
	ErrInvalidInput = &APIError{
		Code:    "INVALID_INPUT",
		Message: "Invalid request payload",
	}
	ErrCatalogUnavailable = &APIError{
		Code:    "CATALOG_UNAVAILABLE",
		Message: "Catalog temporarily unavailable",
	}
	ErrInternal = &APIError{
		Code:    "INTERNAL",
		Message: "Internal server error",
	}
)

// writeJSON writes a JSON response with the given status code. Headers are
// already sent if encoding fails, so the error is only logged.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger := log.WithComponent("api")
		logger.Error().
			Err(err).
			Int("status", code).
			Msg("failed to encode JSON response")
	}
}

func writeAPIError(w http.ResponseWriter, status int, apiErr *APIError) {
	writeJSON(w, status, map[string]*APIError{"error": apiErr})
}

// writeStoreError maps domain errors onto the HTTP taxonomy. Unmapped errors
// become opaque 500s; the detail stays in the log.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrDisplayNotFound):
		writeAPIError(w, http.StatusNotFound, ErrDisplayNotFound)
	case errors.Is(err, store.ErrPlaylistNotFound), errors.Is(err, store.ErrNoActivePlaylist):
		writeAPIError(w, http.StatusNotFound, ErrPlaylistNotFound)
	case errors.Is(err, store.ErrEntryNotFound):
		writeAPIError(w, http.StatusNotFound, ErrEntryNotFound)
	case errors.Is(err, catalog.ErrInvalidArgument),
		errors.Is(err, playlist.ErrInvalidBlocks),
		errors.Is(err, command.ErrUnknownType):
		writeAPIError(w, http.StatusBadRequest, &APIError{
			Code:    ErrInvalidInput.Code,
			Message: err.Error(),
		})
	case errors.Is(err, catalog.ErrUnavailable):
		writeAPIError(w, http.StatusServiceUnavailable, ErrCatalogUnavailable)
	default:
		logger := log.WithComponent("api")
		logger.Error().Err(err).Msg("unhandled error")
		writeAPIError(w, http.StatusInternalServerError, ErrInternal)
	}
}
