// Copyright (c) 2025 ManuGH
// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/vloop/internal/catalog"
	"github.com/ManuGH/vloop/internal/scheduling/store"
)

func decodeAPIError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var body struct {
		Error APIError `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error
}

func TestWriteStoreErrorMapping(t *testing.T) {
	cases := map[string]struct {
		err    error
		status int
		code   string
	}{
		"display not found":   {store.ErrDisplayNotFound, http.StatusNotFound, "DISPLAY_NOT_FOUND"},
		"playlist not found":  {store.ErrPlaylistNotFound, http.StatusNotFound, "PLAYLIST_NOT_FOUND"},
		"invalid argument":    {catalog.ErrInvalidArgument, http.StatusBadRequest, "INVALID_INPUT"},
		"catalog unavailable": {catalog.ErrUnavailable, http.StatusServiceUnavailable, "CATALOG_UNAVAILABLE"},
		"unmapped":            {errors.New("disk on fire"), http.StatusInternalServerError, "INTERNAL"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeStoreError(rec, tc.err)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, decodeAPIError(t, rec).Code)
		})
	}
}

func TestWriteStoreErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	writeStoreError(rec, errors.New("secret connection string"))
	apiErr := decodeAPIError(t, rec)
	assert.Equal(t, "INTERNAL", apiErr.Code)
	assert.NotContains(t, apiErr.Message, "secret")
}
