// Copyright (c) 2025 ManuGH
// SPDX-License-Identifier: MIT

package model

// Liveness is the display-reported playback state.
type Liveness string

const (
	LivenessOffline Liveness = "offline"
	LivenessIdle    Liveness = "idle"
	LivenessLoading Liveness = "loading"
	LivenessPlaying Liveness = "playing"
	LivenessPaused  Liveness = "paused"
)

// ParseLiveness clamps a wire string to the allowed set. Unknown values map
// to idle so a misbehaving display cannot poison stored state.
func ParseLiveness(s string) Liveness {
	switch Liveness(s) {
	case LivenessOffline, LivenessIdle, LivenessLoading, LivenessPlaying, LivenessPaused:
		return Liveness(s)
	}
	return LivenessIdle
}

// EntryStatus is the lifecycle state of a timeline entry.
type EntryStatus string

const (
	StatusQueued EntryStatus = "queued"
	StatusPlayed EntryStatus = "played"
)

// CommandType enumerates operator commands a display understands.
type CommandType string

const (
	CommandPlay   CommandType = "play"
	CommandPause  CommandType = "pause"
	CommandMute   CommandType = "mute"
	CommandUnmute CommandType = "unmute"
	CommandNext   CommandType = "next"
	CommandSeek   CommandType = "seek"
)

// ValidCommandType reports whether s names a known command.
func ValidCommandType(s string) bool {
	switch CommandType(s) {
	case CommandPlay, CommandPause, CommandMute, CommandUnmute, CommandNext, CommandSeek:
		return true
	}
	return false
}
