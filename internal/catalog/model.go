// Copyright (c) 2025 ManuGH
// SPDX-License-Identifier: MIT

// Package catalog exposes the indexed post catalog: a read view over crawled
// video posts plus the search service the scheduler selects videos through.
package catalog

import "fmt"

// Orientation filters videos by aspect: wide (width>height), tall
// (height>width) or mixed (no filter).
type Orientation string

const (
	OrientationMixed Orientation = "mixed"
	OrientationWide  Orientation = "wide"
	OrientationTall  Orientation = "tall"
)

// ParseOrientation maps a wire string onto an Orientation.
func ParseOrientation(s string) (Orientation, error) {
	switch Orientation(s) {
	case OrientationMixed, OrientationWide, OrientationTall:
		return Orientation(s), nil
	}
	return "", fmt.Errorf("%w: orientation %q", ErrInvalidArgument, s)
}

// FetchMode selects how videos are drawn from the matching universe.
type FetchMode string

const (
	FetchNewest FetchMode = "newest"
	FetchRandom FetchMode = "random"
)

// ParseFetchMode maps a wire string onto a FetchMode.
func ParseFetchMode(s string) (FetchMode, error) {
	switch FetchMode(s) {
	case FetchNewest, FetchRandom:
		return FetchMode(s), nil
	}
	return "", fmt.Errorf("%w: fetch mode %q", ErrInvalidArgument, s)
}

// Video is one indexed post joined with its creator. The catalog is read-only
// to the scheduler; records are denormalized into timeline entries at
// population time and never re-read for playback.
type Video struct {
	ID        string
	CreatorID string
	Text      string
	PostedAt  int64 // epoch seconds
	Permalink string
	Width     int
	Height    int

	URLSource    string
	URLMD        string
	URLThumbnail string
	URLGIF       string

	CreatorUsername    string
	CreatorDisplayName string
}

// Orientation derives the aspect class of the video.
func (v Video) Orientation() Orientation {
	switch {
	case v.Width > v.Height:
		return OrientationWide
	case v.Height > v.Width:
		return OrientationTall
	default:
		return OrientationMixed // square, unused downstream
	}
}
