// Copyright (c) 2025 ManuGH
// SPDX-License-Identifier: MIT

package catalog

import "context"

// Store is the read view over the post catalog. The crawler that fills the
// catalog lives outside this process and writes through the same schema.
type Store interface {
	// MatchCount returns the size of the matching universe for the given
	// substring term, negative sub-terms and orientation filter.
	MatchCount(ctx context.Context, term string, negatives []string, orient Orientation) (int, error)

	// Newest returns up to limit matches ordered by posted_at descending,
	// ties broken by video_id ascending. Excluded ids are filtered in the
	// query so the limit applies to the remaining universe.
	Newest(ctx context.Context, term string, negatives []string, orient Orientation, exclude []string, limit int) ([]Video, error)

	// At returns the single match at the given offset of the matching
	// universe in newest-first order, or nil when the offset is past the
	// end. Used by random-offset sampling probes.
	At(ctx context.Context, term string, negatives []string, orient Orientation, offset int) (*Video, error)

	Close() error
}
