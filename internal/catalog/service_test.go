// Copyright (c) 2025 ManuGH
// SPDX-License-Identifier: MIT

package catalog

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *SqliteStore) {
	t.Helper()
	st, err := NewSqliteStore(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	svc := NewService(st, ServiceConfig{Rand: rand.NewSource(42)})
	return svc, st
}

func seed(t *testing.T, st *SqliteStore, videos ...Video) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.UpsertCreator(ctx, "c1", "creator", "Creator"))
	for _, v := range videos {
		if v.CreatorID == "" {
			v.CreatorID = "c1"
		}
		require.NoError(t, st.UpsertPost(ctx, v))
	}
}

func wide(id, text string, postedAt int64) Video {
	return Video{
		ID: id, Text: text, PostedAt: postedAt, Permalink: "https://x.test/" + id,
		Width: 1920, Height: 1080, URLSource: "https://cdn.test/" + id + ".mp4",
	}
}

func tall(id, text string, postedAt int64) Video {
	v := wide(id, text, postedAt)
	v.Width, v.Height = 1080, 1920
	return v
}

func TestSelectNewestOrderAndTieBreak(t *testing.T) {
	svc, st := newTestService(t)
	seed(t, st,
		wide("b", "sunset at the pier", 100),
		wide("a", "sunset at the pier", 100), // same instant, id breaks the tie
		wide("c", "sunset over hills", 200),
		wide("d", "unrelated clip", 300),
	)

	got, err := svc.Select(context.Background(), SelectRequest{
		Term: "sunset", Count: 5, Mode: FetchNewest, Orientation: OrientationMixed,
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "a", got[1].ID)
	assert.Equal(t, "b", got[2].ID)
}

func TestSelectRoundTripsFullRecord(t *testing.T) {
	svc, st := newTestService(t)
	want := Video{
		ID: "v1", CreatorID: "c1", Text: "golden sunset", PostedAt: 100,
		Permalink: "https://x.test/v1", Width: 1920, Height: 1080,
		URLSource: "https://cdn.test/v1.mp4", URLMD: "https://cdn.test/v1-md.mp4",
		URLThumbnail: "https://cdn.test/v1.jpg", URLGIF: "https://cdn.test/v1.gif",
		CreatorUsername: "creator", CreatorDisplayName: "Creator",
	}
	seed(t, st, want)

	got, err := svc.Select(context.Background(), SelectRequest{
		Term: "sunset", Count: 1, Mode: FetchNewest, Orientation: OrientationMixed,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	if diff := cmp.Diff(want, got[0]); diff != "" {
		t.Errorf("video mismatch (-want +got):\n%s", diff)
	}
}

func TestSelectExclusionIsHardFilter(t *testing.T) {
	svc, st := newTestService(t)
	seed(t, st,
		wide("v1", "city lights", 100),
		wide("v2", "city lights", 200),
		wide("v3", "city lights", 300),
	)

	got, err := svc.Select(context.Background(), SelectRequest{
		Term: "city", Count: 5, Mode: FetchNewest, Orientation: OrientationMixed,
		Exclude: map[string]struct{}{"v2": {}, "v3": {}},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "v1", got[0].ID)
}

func TestNegativeSubTerms(t *testing.T) {
	svc, st := newTestService(t)
	seed(t, st,
		wide("v1", "city lights at night", 100),
		wide("v2", "city lights at dawn", 200),
	)

	got, err := svc.Select(context.Background(), SelectRequest{
		Term: "city -night", Count: 5, Mode: FetchNewest, Orientation: OrientationMixed,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "v2", got[0].ID)
}

func TestCaseInsensitiveMatch(t *testing.T) {
	svc, st := newTestService(t)
	seed(t, st, wide("v1", "SUNSET Boulevard", 100))

	got, err := svc.Select(context.Background(), SelectRequest{
		Term: "sunset", Count: 1, Mode: FetchNewest, Orientation: OrientationMixed,
	})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestOrientationFilterPurity(t *testing.T) {
	svc, st := newTestService(t)
	var videos []Video
	for i := 0; i < 7; i++ {
		videos = append(videos, wide(fmt.Sprintf("w%d", i), "city view", int64(100+i)))
	}
	for i := 0; i < 3; i++ {
		videos = append(videos, tall(fmt.Sprintf("t%d", i), "city view", int64(200+i)))
	}
	seed(t, st, videos...)

	got, err := svc.Select(context.Background(), SelectRequest{
		Term: "city", Count: 10, Mode: FetchNewest, Orientation: OrientationTall,
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, v := range got {
		assert.Greater(t, v.Height, v.Width)
		assert.Equal(t, OrientationTall, v.Orientation())
	}

	got, err = svc.Select(context.Background(), SelectRequest{
		Term: "city", Count: 10, Mode: FetchNewest, Orientation: OrientationWide,
	})
	require.NoError(t, err)
	require.Len(t, got, 7)
	for _, v := range got {
		assert.Greater(t, v.Width, v.Height)
	}
}

func TestSelectRandomNoDuplicates(t *testing.T) {
	svc, st := newTestService(t)
	var videos []Video
	for i := 0; i < 20; i++ {
		videos = append(videos, wide(fmt.Sprintf("v%02d", i), "dogs playing", int64(100+i)))
	}
	seed(t, st, videos...)

	got, err := svc.Select(context.Background(), SelectRequest{
		Term: "dogs", Count: 8, Mode: FetchRandom, Orientation: OrientationMixed,
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(got), 8)

	seen := make(map[string]struct{})
	for _, v := range got {
		_, dup := seen[v.ID]
		assert.False(t, dup, "duplicate id %s", v.ID)
		seen[v.ID] = struct{}{}
	}
}

func TestSelectRandomRespectsExclusion(t *testing.T) {
	svc, st := newTestService(t)
	seed(t, st,
		wide("v1", "aurora sky", 100),
		wide("v2", "aurora sky", 200),
		wide("v3", "aurora sky", 300),
	)

	got, err := svc.Select(context.Background(), SelectRequest{
		Term: "aurora", Count: 3, Mode: FetchRandom, Orientation: OrientationMixed,
		Exclude: map[string]struct{}{"v1": {}, "v2": {}},
	})
	require.NoError(t, err)
	for _, v := range got {
		assert.Equal(t, "v3", v.ID)
	}
}

func TestSelectRandomEmptyUniverse(t *testing.T) {
	svc, _ := newTestService(t)

	got, err := svc.Select(context.Background(), SelectRequest{
		Term: "nothing", Count: 3, Mode: FetchRandom, Orientation: OrientationMixed,
	})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSelectValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Select(ctx, SelectRequest{Term: "  ", Count: 1, Mode: FetchNewest, Orientation: OrientationMixed})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.Select(ctx, SelectRequest{Term: "-only -negatives", Count: 1, Mode: FetchNewest, Orientation: OrientationMixed})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.Select(ctx, SelectRequest{Term: "x", Count: 0, Mode: FetchNewest, Orientation: OrientationMixed})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.Select(ctx, SelectRequest{Term: "x", Count: 1, Mode: "oldest", Orientation: OrientationMixed})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.Select(ctx, SelectRequest{Term: "x", Count: 1, Mode: FetchNewest, Orientation: "square"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCountShortTermFloor(t *testing.T) {
	svc, _ := newTestService(t)

	n, err := svc.Count(context.Background(), "a", OrientationMixed)
	require.NoError(t, err)
	assert.Equal(t, shortTermCountFloor, n)
}

func TestCountIsCachedPerTermAndOrientation(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	seed(t, st, wide("v1", "sunset", 100), tall("v2", "sunset", 200))

	n, err := svc.Count(ctx, "sunset", OrientationMixed)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = svc.Count(ctx, "sunset", OrientationTall)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// New rows do not show through the cache until the TTL lapses.
	seed(t, st, wide("v3", "sunset", 300))
	n, err = svc.Count(ctx, "sunset", OrientationMixed)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	stats := svc.CountCacheStats()
	assert.GreaterOrEqual(t, stats.Hits, int64(1))
}

func TestParseTerm(t *testing.T) {
	positive, negatives, err := parseTerm("city -night -rain lights")
	require.NoError(t, err)
	assert.Equal(t, "city lights", positive)
	assert.Equal(t, []string{"night", "rain"}, negatives)

	_, _, err = parseTerm("   ")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestParseEnums(t *testing.T) {
	o, err := ParseOrientation("wide")
	require.NoError(t, err)
	assert.Equal(t, OrientationWide, o)
	_, err = ParseOrientation("diagonal")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	m, err := ParseFetchMode("random")
	require.NoError(t, err)
	assert.Equal(t, FetchRandom, m)
	_, err = ParseFetchMode("oldest")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestVideoOrientationDerivation(t *testing.T) {
	assert.Equal(t, OrientationWide, Video{Width: 2, Height: 1}.Orientation())
	assert.Equal(t, OrientationTall, Video{Width: 1, Height: 2}.Orientation())
	assert.Equal(t, OrientationMixed, Video{Width: 1, Height: 1}.Orientation())
}
