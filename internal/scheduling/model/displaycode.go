// Copyright (c) 2025 ManuGH
// SPDX-License-Identifier: MIT

package model

import (
	"crypto/rand"
	"fmt"
)

const displayCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DisplayCodeLength is the size of a display pairing code.
const DisplayCodeLength = 6

// NewDisplayCode generates a human-readable pairing code: a uniform pick of
// six characters from [A-Z0-9]. Collisions are handled by the caller
// retrying the insert.
func NewDisplayCode() (string, error) {
	// 252 is the largest multiple of 36 that fits a byte; rejecting bytes at
	// or above it keeps every alphabet character equally likely.
	const limit = 252

	code := make([]byte, 0, DisplayCodeLength)
	buf := make([]byte, DisplayCodeLength)
	for len(code) < DisplayCodeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("display code: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			code = append(code, displayCodeAlphabet[int(b)%len(displayCodeAlphabet)])
			if len(code) == DisplayCodeLength {
				break
			}
		}
	}
	return string(code), nil
}
