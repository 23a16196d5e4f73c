// Package framelatch contains a frame-ready latch.
package framelatch

import (
	"sync/atomic"
)

// Latch tracks whether a new image has been produced since the last pickup.
// Multiple signals between two pickups collapse into a single one.
type Latch struct {
	pending atomic.Bool
}

// Initialize sets the initial state of the latch.
func (l *Latch) Initialize(pending bool) {
	l.pending.Store(pending)
}

// Signal marks a new image as available.
// It can be called from any goroutine.
func (l *Latch) Signal() {
	l.pending.Store(true)
}

// ConsumeIfReady clears the latch and reports whether an image was pending.
func (l *Latch) ConsumeIfReady() bool {
	return l.pending.CompareAndSwap(true, false)
}
