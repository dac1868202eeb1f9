package tui

import (
	"sync"

	"tinyme-go/internal/jobs"
)

// Feed forwards registry events to a channel the Model reads from.
type Feed struct {
	mu     sync.Mutex
	ch     chan jobs.Event
	done   chan struct{}
	closed bool
	unsub  func()
}

// NewFeed subscribes to reg. Call Close once the work is finished; the
// channel is closed after the last forwarded event.
func NewFeed(reg *jobs.Registry, buffer int) *Feed {
	f := &Feed{
		ch:   make(chan jobs.Event, buffer),
		done: make(chan struct{}),
	}
	f.unsub = reg.Subscribe(f.forward)
	return f
}

// Events is the channel handed to NewModel.
func (f *Feed) Events() <-chan jobs.Event {
	return f.ch
}

func (f *Feed) forward(ev jobs.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	select {
	case f.ch <- ev:
	case <-f.done:
	}
}

// Close unsubscribes and closes the channel. A reader that stopped early does
// not block it.
func (f *Feed) Close() {
	f.unsub()
	close(f.done)
	f.mu.Lock()
	f.closed = true
	close(f.ch)
	f.mu.Unlock()
}
