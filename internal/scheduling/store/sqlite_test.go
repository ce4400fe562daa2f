// Copyright (c) 2025 ManuGH
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/vloop/internal/catalog"
	"github.com/ManuGH/vloop/internal/scheduling/model"
)

func newTestStore(t *testing.T) *SqliteStore {
	t.Helper()
	s, err := NewSqliteStore(filepath.Join(t.TempDir(), "sched.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustCreateDisplay(t *testing.T, s *SqliteStore, name string) *model.Display {
	t.Helper()
	d, err := s.CreateDisplay(context.Background(), name, time.Now())
	require.NoError(t, err)
	return d
}

func testPlaylist(displayID string, blocks int) (*model.Playlist, []*model.Block) {
	now := time.Now()
	p := &model.Playlist{
		ID:          uuid.NewString(),
		DisplayID:   displayID,
		Name:        "evening rotation",
		TotalBlocks: blocks,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	var bs []*model.Block
	for i := 0; i < blocks; i++ {
		b := &model.Block{
			ID:          uuid.NewString(),
			PlaylistID:  p.ID,
			SearchTerm:  fmt.Sprintf("term%d", i),
			VideoCount:  3,
			FetchMode:   catalog.FetchNewest,
			Orientation: catalog.OrientationMixed,
			BlockOrder:  i,
		}
		p.TotalVideos += b.VideoCount
		bs = append(bs, b)
	}
	return p, bs
}

func mustCreatePlaylist(t *testing.T, s *SqliteStore, displayID string, blocks int) (*model.Playlist, []*model.Block) {
	t.Helper()
	p, bs := testPlaylist(displayID, blocks)
	require.NoError(t, s.CreatePlaylist(context.Background(), p, bs))
	return p, bs
}

func testEntry(d *model.Display, p *model.Playlist, b *model.Block, videoID string, pos int) *model.TimelineEntry {
	return &model.TimelineEntry{
		ID:               uuid.NewString(),
		DisplayID:        d.ID,
		PlaylistID:       p.ID,
		BlockID:          b.ID,
		VideoID:          videoID,
		BlockPosition:    pos,
		TimelinePosition: pos,
		LoopIteration:    0,
		Status:           model.StatusQueued,
		Payload:          model.VideoPayload{VideoID: videoID, Width: 1920, Height: 1080},
	}
}

func TestCreateDisplayGeneratesCode(t *testing.T) {
	s := newTestStore(t)

	d := mustCreateDisplay(t, s, "lobby")
	assert.Regexp(t, regexp.MustCompile(`^[A-Z0-9]{6}$`), d.ID)
	assert.Equal(t, model.LivenessOffline, d.Liveness)

	got, err := s.GetDisplay(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, "lobby", got.Name)
	assert.Equal(t, 0, got.TimelinePosition)
	assert.Nil(t, got.LastPing)
}

func TestGetDisplayNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetDisplay(context.Background(), "ZZZZZZ")
	assert.ErrorIs(t, err, ErrDisplayNotFound)
}

func TestRecordPollUpdatesStateChangeOnTransitionOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	d := mustCreateDisplay(t, s, "lobby")

	t0 := time.Now()
	vid := "v1"
	require.NoError(t, s.RecordPoll(ctx, PollUpdate{
		DisplayID: d.ID, Liveness: model.LivenessPlaying,
		CurrentVideoID: &vid, CurrentPosition: 12.5, Now: t0,
	}))

	got, err := s.GetDisplay(ctx, d.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastStateChange)
	first := *got.LastStateChange
	assert.Equal(t, model.LivenessPlaying, got.Liveness)
	assert.InDelta(t, 12.5, got.CurrentPosition, 0.001)

	// Same liveness again: ping moves, state change does not.
	require.NoError(t, s.RecordPoll(ctx, PollUpdate{
		DisplayID: d.ID, Liveness: model.LivenessPlaying,
		CurrentVideoID: &vid, CurrentPosition: 14.0, Now: t0.Add(time.Second),
	}))
	got, err = s.GetDisplay(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, first, *got.LastStateChange)

	// Transition to paused moves it.
	require.NoError(t, s.RecordPoll(ctx, PollUpdate{
		DisplayID: d.ID, Liveness: model.LivenessPaused,
		CurrentVideoID: &vid, CurrentPosition: 14.0, Now: t0.Add(2 * time.Second),
	}))
	got, err = s.GetDisplay(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, got.LastStateChange.After(first))
}

func TestRenameAndDeleteDisplay(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	d := mustCreateDisplay(t, s, "lobby")

	require.NoError(t, s.RenameDisplay(ctx, d.ID, "foyer"))
	got, err := s.GetDisplay(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "foyer", got.Name)

	require.NoError(t, s.DeleteDisplay(ctx, d.ID))
	_, err = s.GetDisplay(ctx, d.ID)
	assert.ErrorIs(t, err, ErrDisplayNotFound)
	assert.ErrorIs(t, s.RenameDisplay(ctx, d.ID, "x"), ErrDisplayNotFound)
}

func TestCreatePlaylistRequiresDisplay(t *testing.T) {
	s := newTestStore(t)

	p, bs := testPlaylist("NOPE99", 1)
	err := s.CreatePlaylist(context.Background(), p, bs)
	assert.ErrorIs(t, err, ErrDisplayNotFound)
}

func TestPlaylistRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	d := mustCreateDisplay(t, s, "lobby")
	p, bs := mustCreatePlaylist(t, s, d.ID, 2)

	got, err := s.GetPlaylist(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
	assert.Equal(t, 2, got.TotalBlocks)
	assert.Equal(t, 6, got.TotalVideos)
	assert.False(t, got.IsActive)

	blocks, err := s.GetBlocks(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, bs[0].ID, blocks[0].ID)
	assert.Equal(t, bs[1].ID, blocks[1].ID)
	assert.Equal(t, 0, blocks[0].BlockOrder)

	list, err := s.ListPlaylists(ctx, d.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestActivatePlaylistDeactivatesSiblingAndClearsTimeline(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	d := mustCreateDisplay(t, s, "lobby")
	p1, b1 := mustCreatePlaylist(t, s, d.ID, 1)
	p2, _ := mustCreatePlaylist(t, s, d.ID, 1)

	require.NoError(t, s.ActivatePlaylist(ctx, d.ID, p1.ID, time.Now()))
	require.NoError(t, s.InsertTimelineEntries(ctx, []*model.TimelineEntry{
		testEntry(d, p1, b1[0], "v1", 0),
	}))
	require.NoError(t, s.SetTimelinePosition(ctx, d.ID, 1))

	require.NoError(t, s.ActivatePlaylist(ctx, d.ID, p2.ID, time.Now()))

	active, err := s.GetActivePlaylist(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, p2.ID, active.ID)

	old, err := s.GetPlaylist(ctx, p1.ID)
	require.NoError(t, err)
	assert.False(t, old.IsActive)

	got, err := s.GetDisplay(ctx, d.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CurrentPlaylistID)
	assert.Equal(t, p2.ID, *got.CurrentPlaylistID)
	assert.Equal(t, 0, got.TimelinePosition)

	n, err := s.QueuedCount(ctx, d.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestActivatePlaylistWrongDisplay(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	d1 := mustCreateDisplay(t, s, "a")
	d2 := mustCreateDisplay(t, s, "b")
	p, _ := mustCreatePlaylist(t, s, d1.ID, 1)

	err := s.ActivatePlaylist(ctx, d2.ID, p.ID, time.Now())
	assert.ErrorIs(t, err, ErrPlaylistNotFound)
}

func TestDeleteActivePlaylistClearsDisplayReference(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	d := mustCreateDisplay(t, s, "lobby")
	p, bs := mustCreatePlaylist(t, s, d.ID, 1)
	require.NoError(t, s.ActivatePlaylist(ctx, d.ID, p.ID, time.Now()))
	require.NoError(t, s.InsertTimelineEntries(ctx, []*model.TimelineEntry{
		testEntry(d, p, bs[0], "v1", 0),
	}))

	require.NoError(t, s.DeletePlaylist(ctx, p.ID))

	got, err := s.GetDisplay(ctx, d.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CurrentPlaylistID)

	n, err := s.QueuedCount(ctx, d.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = s.GetActivePlaylist(ctx, d.ID)
	assert.ErrorIs(t, err, ErrNoActivePlaylist)
}

func TestIncrementLoopCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	d := mustCreateDisplay(t, s, "lobby")
	p, _ := mustCreatePlaylist(t, s, d.ID, 1)

	n, err := s.IncrementLoopCount(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.IncrementLoopCount(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.IncrementLoopCount(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrPlaylistNotFound)
}

func TestTimelineOrderingAndNextQueued(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	d := mustCreateDisplay(t, s, "lobby")
	p, bs := mustCreatePlaylist(t, s, d.ID, 1)

	var entries []*model.TimelineEntry
	for i := 0; i < 3; i++ {
		entries = append(entries, testEntry(d, p, bs[0], fmt.Sprintf("v%d", i), i))
	}
	require.NoError(t, s.InsertTimelineEntries(ctx, entries))

	next, err := s.NextQueued(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "v0", next.VideoID)
	assert.Equal(t, "v0", next.Payload.VideoID)
	assert.Equal(t, 1920, next.Payload.Width)

	queued, err := s.ListQueued(ctx, d.ID, 0)
	require.NoError(t, err)
	require.Len(t, queued, 3)
	for i, e := range queued {
		assert.Equal(t, i, e.TimelinePosition)
	}

	limited, err := s.ListQueued(ctx, d.ID, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestMarkEntryPlayedIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	d := mustCreateDisplay(t, s, "lobby")
	p, bs := mustCreatePlaylist(t, s, d.ID, 1)
	e := testEntry(d, p, bs[0], "v0", 0)
	require.NoError(t, s.InsertTimelineEntries(ctx, []*model.TimelineEntry{e}))

	res, err := s.MarkEntryPlayed(ctx, e.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.Equal(t, model.StatusPlayed, res.Entry.Status)
	require.NotNil(t, res.Entry.PlayedAt)

	// Second mark: no-op, no duplicate history.
	res, err = s.MarkEntryPlayed(ctx, e.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, res.Replayed)

	hist, err := s.HistoryVideoIDs(ctx, d.ID, bs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"v0"}, hist)

	blocks, err := s.GetBlocks(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, blocks[0].TimesPlayed)
	assert.NotNil(t, blocks[0].LastPlayedAt)

	got, err := s.GetDisplay(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TimelinePosition)

	_, err = s.MarkEntryPlayed(ctx, uuid.NewString(), time.Now())
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestMarkEntryPlayedCursorTracksEntry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	d := mustCreateDisplay(t, s, "lobby")
	p, bs := mustCreatePlaylist(t, s, d.ID, 1)
	e0 := testEntry(d, p, bs[0], "v0", 0)
	e1 := testEntry(d, p, bs[0], "v1", 1)
	require.NoError(t, s.InsertTimelineEntries(ctx, []*model.TimelineEntry{e0, e1}))

	for i, e := range []*model.TimelineEntry{e0, e1} {
		_, err := s.MarkEntryPlayed(ctx, e.ID, time.Now())
		require.NoError(t, err)

		got, err := s.GetDisplay(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, i+1, got.TimelinePosition)
	}
}

func TestTrimBlockQueued(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	d := mustCreateDisplay(t, s, "lobby")
	p, bs := mustCreatePlaylist(t, s, d.ID, 1)

	var entries []*model.TimelineEntry
	for i := 0; i < 5; i++ {
		entries = append(entries, testEntry(d, p, bs[0], fmt.Sprintf("v%d", i), i))
	}
	require.NoError(t, s.InsertTimelineEntries(ctx, entries))
	_, err := s.MarkEntryPlayed(ctx, entries[0].ID, time.Now())
	require.NoError(t, err)

	// 5 total, 1 played. Target 3 removes the two highest queued positions.
	removed, err := s.TrimBlockQueued(ctx, d.ID, bs[0].ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	queued, err := s.ListQueued(ctx, d.ID, 0)
	require.NoError(t, err)
	require.Len(t, queued, 2)
	assert.Equal(t, "v1", queued[0].VideoID)
	assert.Equal(t, "v2", queued[1].VideoID)

	// Already at target: nothing to do.
	removed, err = s.TrimBlockQueued(ctx, d.ID, bs[0].ID, 3)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestCommandFIFODrain(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	d := mustCreateDisplay(t, s, "lobby")

	seek, _ := json.Marshal(map[string]float64{"position": 30})
	cmds := []*model.Command{
		{ID: uuid.NewString(), DisplayID: d.ID, Type: model.CommandPause, EnqueuedAt: time.Now()},
		{ID: uuid.NewString(), DisplayID: d.ID, Type: model.CommandSeek, Payload: seek, EnqueuedAt: time.Now()},
		{ID: uuid.NewString(), DisplayID: d.ID, Type: model.CommandPlay, EnqueuedAt: time.Now()},
	}
	for _, c := range cmds {
		require.NoError(t, s.EnqueueCommand(ctx, c))
	}

	got, err := s.DrainCommands(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, model.CommandPause, got[0].Type)
	assert.Equal(t, model.CommandSeek, got[1].Type)
	assert.JSONEq(t, `{"position":30}`, string(got[1].Payload))
	assert.Equal(t, model.CommandPlay, got[2].Type)

	// Queue is now empty.
	got, err = s.DrainCommands(ctx, d.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDrainCommandsDeletesOnlyDelivered(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	d := mustCreateDisplay(t, s, "lobby")

	require.NoError(t, s.EnqueueCommand(ctx, &model.Command{
		ID: uuid.NewString(), DisplayID: d.ID, Type: model.CommandPause, EnqueuedAt: time.Now(),
	}))

	got, err := s.DrainCommands(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)

	// A command enqueued after the drain read its snapshot must not be
	// swallowed by that drain's delete.
	late := &model.Command{
		ID: uuid.NewString(), DisplayID: d.ID, Type: model.CommandMute, EnqueuedAt: time.Now(),
	}
	require.NoError(t, s.EnqueueCommand(ctx, late))

	got, err = s.DrainCommands(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, late.ID, got[0].ID)
	assert.Equal(t, model.CommandMute, got[0].Type)
}

func TestEnqueueCommandUnknownDisplay(t *testing.T) {
	s := newTestStore(t)

	err := s.EnqueueCommand(context.Background(), &model.Command{
		ID: uuid.NewString(), DisplayID: "NOPE99", Type: model.CommandPlay, EnqueuedAt: time.Now(),
	})
	assert.ErrorIs(t, err, ErrDisplayNotFound)
}

func TestDeleteDisplayCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	d := mustCreateDisplay(t, s, "lobby")
	p, bs := mustCreatePlaylist(t, s, d.ID, 1)
	require.NoError(t, s.InsertTimelineEntries(ctx, []*model.TimelineEntry{
		testEntry(d, p, bs[0], "v0", 0),
	}))
	require.NoError(t, s.EnqueueCommand(ctx, &model.Command{
		ID: uuid.NewString(), DisplayID: d.ID, Type: model.CommandPlay, EnqueuedAt: time.Now(),
	}))

	require.NoError(t, s.DeleteDisplay(ctx, d.ID))

	_, err := s.GetPlaylist(ctx, p.ID)
	assert.ErrorIs(t, err, ErrPlaylistNotFound)
	n, err := s.QueuedCount(ctx, d.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}
