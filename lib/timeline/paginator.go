// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrPaginationInFlight is returned by Next while another page
	// request for the same cursor is running.
	ErrPaginationInFlight = errors.New("timeline: pagination already in flight")

	// ErrHistoryExhausted is returned by Next once the start of the
	// room has been reached.
	ErrHistoryExhausted = errors.New("timeline: no older history")

	errNotStarted = errors.New("timeline: Fetch without a successful TryStart")
)

// Page is one batch of older history.
type Page struct {
	// Entries are newest first, as the server returns them for a
	// backward request. Prepending them in order keeps the timeline
	// chronological.
	Entries []Entry

	// End is the token for the next older page. Empty, or equal to the
	// token the page was requested from, means the start of the room
	// has been reached.
	End string
}

// FetchFunc requests up to limit events older than from. An empty from
// starts at the newest event.
type FetchFunc func(ctx context.Context, from string, limit int) (Page, error)

// Paginator is a resumable backward cursor over one room's history.
type Paginator struct {
	fetch FetchFunc
	limit int

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	from      string
	inFlight  bool
	exhausted bool

	// started is set once a page has been fetched.
	started bool
}

// NewPaginator returns a cursor that starts at from and fetches limit
// events per page. Requests run under a context derived from parent and
// are cancelled by Close.
func NewPaginator(parent context.Context, from string, limit int, fetch FetchFunc) *Paginator {
	ctx, cancel := context.WithCancel(parent)
	return &Paginator{
		fetch:  fetch,
		limit:  limit,
		ctx:    ctx,
		cancel: cancel,
		from:   from,
	}
}

// TryStart claims the cursor for one page request. It fails with
// ErrPaginationInFlight if a request is already running and with
// ErrHistoryExhausted at the start of the room. A successful TryStart
// must be followed by exactly one Fetch.
func (p *Paginator) TryStart() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inFlight {
		return ErrPaginationInFlight
	}
	if p.exhausted {
		return ErrHistoryExhausted
	}
	if err := p.ctx.Err(); err != nil {
		return err
	}
	p.inFlight = true
	return nil
}

// Fetch performs the request claimed by TryStart and releases the
// claim. On failure the cursor is left where it was so the same page can
// be requested again.
func (p *Paginator) Fetch() (Page, error) {
	p.mu.Lock()
	if !p.inFlight {
		p.mu.Unlock()
		return Page{}, errNotStarted
	}
	from := p.from
	p.mu.Unlock()

	page, err := p.fetch(p.ctx, from, p.limit)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight = false
	if err != nil {
		return Page{}, err
	}
	// A page may hold no displayable entries and still lead further
	// back; only a missing or unchanged token ends the history.
	if page.End == "" || page.End == from {
		p.exhausted = true
	}
	p.started = true
	p.from = page.End
	return page, nil
}

// Next claims the cursor and fetches the next older page.
func (p *Paginator) Next() (Page, error) {
	if err := p.TryStart(); err != nil {
		return Page{}, err
	}
	return p.Fetch()
}

// Seed moves the starting point to from if no page has been fetched yet
// and no request is running. It reports whether the cursor moved.
func (p *Paginator) Seed(from string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.inFlight || from == "" {
		return false
	}
	p.from = from
	return true
}

// InFlight reports whether a page request is running.
func (p *Paginator) InFlight() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight
}

// Exhausted reports whether the start of the room has been reached.
func (p *Paginator) Exhausted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exhausted
}

// Close cancels any running request. Later calls to Next fail.
func (p *Paginator) Close() {
	p.cancel()
}
