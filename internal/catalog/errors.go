// Copyright (c) 2025 ManuGH
// SPDX-License-Identifier: MIT

package catalog

import "errors"

var (
	// ErrInvalidArgument marks malformed search input (empty term,
	// non-positive count, unknown enum value).
	ErrInvalidArgument = errors.New("catalog: invalid argument")

	// ErrUnavailable marks a transient failure of the catalog read view.
	// No partial results accompany it.
	ErrUnavailable = errors.New("catalog: unavailable")
)
