// Package simulator contains stand-ins for the video decoder and its output surface.
package simulator

import (
	"sync/atomic"
)

// Surface is the decoder output surface.
// It holds the latest surfaced image and notifies its consumer
// every time a new one is available.
type Surface struct {
	OnFrameAvailable func()

	latest atomic.Int64
}

// Publish surfaces a new image with the given native timestamp.
func (s *Surface) Publish(timestamp int64) {
	s.latest.Store(timestamp)
	if s.OnFrameAvailable != nil {
		s.OnFrameAvailable()
	}
}

// LatchImage implements correlator.ImageSource.
func (s *Surface) LatchImage() int64 {
	return s.latest.Load()
}
