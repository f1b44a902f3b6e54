package session

import (
	"context"
	"sync"
	"time"
)

// DefaultSuggestionDelay is the quiet period after the last keystroke
// before suggestions are fetched.
const DefaultSuggestionDelay = 300 * time.Millisecond

// FetchFunc runs a scheduled fetch. ticket identifies the schedule call
// that produced it; pass it to Debouncer.Current before applying results.
// ctx is canceled as soon as the fetch is superseded.
type FetchFunc func(ctx context.Context, ticket uint64, key, text string)

// Debouncer delays a fetch until input has been quiet for a fixed delay.
// At most one fetch is scheduled or in flight at a time; scheduling again
// or canceling supersedes the previous one.
type Debouncer struct {
	delay time.Duration
	fetch FetchFunc

	mu       sync.Mutex
	timer    *time.Timer
	cancel   context.CancelFunc
	ticket   uint64
	inFlight bool
	closed   bool
}

// NewDebouncer creates a debouncer. A non-positive delay uses
// DefaultSuggestionDelay.
func NewDebouncer(delay time.Duration, fetch FetchFunc) *Debouncer {
	if delay <= 0 {
		delay = DefaultSuggestionDelay
	}
	return &Debouncer{delay: delay, fetch: fetch}
}

// Schedule supersedes any pending or running fetch and schedules a new one
// for key and text. It returns the ticket of the new fetch, or 0 after Close.
func (d *Debouncer) Schedule(key, text string) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0
	}
	d.supersedeLocked()
	ticket := d.ticket

	d.timer = time.AfterFunc(d.delay, func() {
		d.run(ticket, key, text)
	})
	return ticket
}

// Cancel supersedes any pending or running fetch without scheduling another.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.supersedeLocked()
}

// Close cancels outstanding work and makes further Schedule calls no-ops.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.supersedeLocked()
	d.closed = true
}

// Current reports whether ticket belongs to the latest schedule call and
// has not been canceled since.
func (d *Debouncer) Current(ticket uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.closed && ticket != 0 && ticket == d.ticket
}

// Pending reports whether a fetch is waiting for its delay or running.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil || d.inFlight
}

// supersedeLocked stops the timer, cancels a running fetch and advances
// the ticket. Caller holds d.mu.
func (d *Debouncer) supersedeLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.inFlight = false
	d.ticket++
}

func (d *Debouncer) run(ticket uint64, key, text string) {
	d.mu.Lock()
	if d.closed || ticket != d.ticket {
		d.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.timer = nil
	d.cancel = cancel
	d.inFlight = true
	d.mu.Unlock()

	d.fetch(ctx, ticket, key, text)

	d.mu.Lock()
	if ticket == d.ticket {
		d.cancel = nil
		d.inFlight = false
	}
	d.mu.Unlock()
	cancel()
}
