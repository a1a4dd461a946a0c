// Package ingest implements the event ingest buffer: a bounded ring
// of correlated events that backs the correlation engine, anomaly
// detector and predictor. The buffer evicts its oldest half on
// overflow rather than growing without bound, and hands out immutable
// snapshots so analytics passes never race a concurrent append.
package ingest

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a single correlated event accepted into the buffer. It
// mirrors the canonical CorrelatedEvent shape shared across the
// correlation, RCA, anomaly and prediction components.
type Event struct {
	ID        string
	Platform  string
	EventType string
	Severity  string
	Entities  []string
	Timestamp time.Time
	Details   map[string]any
}

// Buffer is a bounded, mutex-protected ring of events.
type Buffer struct {
	mu       sync.RWMutex
	capacity int
	evictTo  int
	events   []Event
}

// New constructs a Buffer with the given hard capacity and the size
// it is trimmed to on overflow (spec defaults: 10000 and 5000).
func New(capacity, evictTo int) *Buffer {
	return &Buffer{capacity: capacity, evictTo: evictTo}
}

// Append adds ev to the buffer, minting an id if ev.ID is empty. If
// appending would exceed capacity, the oldest events are evicted so
// that the buffer holds evictTo events once ev is appended.
func (b *Buffer) Append(ev Event) Event {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) >= b.capacity {
		overflow := len(b.events) - b.evictTo + 1
		if overflow > 0 && overflow <= len(b.events) {
			b.events = append([]Event(nil), b.events[overflow:]...)
		}
	}
	b.events = append(b.events, ev)
	return ev
}

// Snapshot returns an immutable copy of every event currently held.
// Callers may read the returned slice freely without holding any lock.
func (b *Buffer) Snapshot() []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

// Len reports the current number of buffered events.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events)
}

// Since returns every buffered event with Timestamp >= cutoff, in
// insertion order.
func (b *Buffer) Since(cutoff time.Time) []Event {
	snap := b.Snapshot()
	out := snap[:0:0]
	for _, ev := range snap {
		if !ev.Timestamp.Before(cutoff) {
			out = append(out, ev)
		}
	}
	return out
}
