// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sink

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("sink: closed")

// Sink accepts commands for the user interface.
type Sink interface {
	Submit(command Command) error
}

// Queue is an unbounded FIFO Sink with one consumer. Submit never
// blocks.
type Queue struct {
	mu      sync.Mutex
	pending []Command
	closed  bool

	// ready holds one token while pending is non-empty or the queue
	// is closed.
	ready chan struct{}
}

// NewQueue returns an empty open queue.
func NewQueue() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

// Submit appends command to the queue.
func (q *Queue) Submit(command Command) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.pending = append(q.pending, command)
	q.signal()
	return nil
}

// Close stops accepting commands. Commands already queued are still
// delivered by Next. Close is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.signal()
}

// Next blocks until a command is available and returns it. It returns
// ErrClosed once the queue is closed and drained, or the context error.
func (q *Queue) Next(ctx context.Context) (Command, error) {
	for {
		q.mu.Lock()
		if len(q.pending) > 0 {
			command := q.pending[0]
			q.pending[0] = nil
			q.pending = q.pending[1:]
			if len(q.pending) > 0 || q.closed {
				q.signal()
			}
			q.mu.Unlock()
			return command, nil
		}
		if q.closed {
			q.signal()
			q.mu.Unlock()
			return nil, ErrClosed
		}
		q.mu.Unlock()

		select {
		case <-q.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Drain removes and returns every queued command without blocking.
func (q *Queue) Drain() []Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	commands := q.pending
	q.pending = nil
	return commands
}

// Len returns the number of queued commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// signal leaves a wakeup token for Next. Caller holds q.mu.
func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Emit submits command and logs a failure. A closed sink means the
// interface has shut down, so ErrClosed is logged at debug level.
func Emit(ctx context.Context, logger *slog.Logger, target Sink, command Command) {
	err := target.Submit(command)
	switch {
	case err == nil:
	case errors.Is(err, ErrClosed):
		logger.DebugContext(ctx, "dropping command for closed sink", "command", commandName(command))
	default:
		logger.WarnContext(ctx, "submitting command failed", "command", commandName(command), "error", err)
	}
}

func commandName(command Command) string {
	switch command.(type) {
	case FinishLogin:
		return "finish_login"
	case LoginFailed:
		return "login_failed"
	case AddOrUpdateRoom:
		return "add_or_update_room"
	case SetActiveRoom:
		return "set_active_room"
	case AppendEvent:
		return "append_event"
	case PrependEvent:
		return "prepend_event"
	case RemoveEvent:
		return "remove_event"
	case MarkFailed:
		return "mark_failed"
	case SetPaginating:
		return "set_paginating"
	case SetDisplayName:
		return "set_display_name"
	default:
		return "unknown"
	}
}
