// Copyright (c) 2025 ManuGH
// SPDX-License-Identifier: MIT

// Package command implements the operator-to-display command channel: a
// per-display FIFO drained destructively by the next poll. Delivery is
// at-least-once; the display deduplicates where it matters.
package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ManuGH/vloop/internal/clock"
	"github.com/ManuGH/vloop/internal/log"
	"github.com/ManuGH/vloop/internal/metrics"
	"github.com/ManuGH/vloop/internal/scheduling/model"
	"github.com/ManuGH/vloop/internal/scheduling/store"
)

// ErrUnknownType reports a command type outside the allowed set.
var ErrUnknownType = errors.New("command: unknown command type")

// Queue appends and drains operator commands.
type Queue struct {
	store store.Store
	clock clock.Clock
	log   zerolog.Logger
}

// NewQueue constructs a Queue.
func NewQueue(st store.Store, clk clock.Clock) *Queue {
	return &Queue{
		store: st,
		clock: clk,
		log:   log.WithComponent("command"),
	}
}

// Enqueue appends a command for the display. No deduplication: repeated
// enqueues yield repeated deliveries in order.
func (q *Queue) Enqueue(ctx context.Context, displayID, cmdType string, payload json.RawMessage) (*model.Command, error) {
	if !model.ValidCommandType(cmdType) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, cmdType)
	}

	c := &model.Command{
		ID:         uuid.NewString(),
		DisplayID:  displayID,
		Type:       model.CommandType(cmdType),
		Payload:    payload,
		EnqueuedAt: q.clock.Now(),
	}
	if err := q.store.EnqueueCommand(ctx, c); err != nil {
		return nil, err
	}

	metrics.IncCommandEnqueued(cmdType)
	q.log.Debug().
		Str("event", "command.enqueued").
		Str("display_id", displayID).
		Str("type", cmdType).
		Msg("command enqueued")
	return c, nil
}

// Drain removes and returns every pending command for the display in FIFO
// order. Commands gone from the queue are the display's responsibility; a
// failed delivery after a successful drain loses them.
func (q *Queue) Drain(ctx context.Context, displayID string) ([]*model.Command, error) {
	cmds, err := q.store.DrainCommands(ctx, displayID)
	if err != nil {
		return nil, err
	}
	if len(cmds) > 0 {
		metrics.AddCommandsDelivered(len(cmds))
	}
	return cmds, nil
}
