// Package correlator binds latched video frames to their display times.
package correlator

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bluenviron/framesync/internal/clockorigin"
	"github.com/bluenviron/framesync/internal/correlation"
	"github.com/bluenviron/framesync/internal/framelatch"
	"github.com/bluenviron/framesync/internal/logger"
)

// ImageSource is a surface that receives decoded images.
type ImageSource interface {
	// LatchImage binds the most recent image and returns its native timestamp.
	// When no new image is available, it returns the timestamp of the image
	// latched previously.
	LatchImage() int64
}

// Stats are correlator statistics.
type Stats struct {
	Mode            Mode
	Table           correlation.Stats
	Ticks           uint64
	Frames          uint64
	Matched         uint64
	Fallbacks       uint64
	LastDisplayTime int64
}

// Correlator binds images latched by the render loop to display times
// delivered by the metadata path.
//
// OnFrameAvailable, OnDisplayTime and UpdateAndGetDisplayTime can be called
// from three different goroutines and never block each other.
// UpdateAndGetDisplayTime must be called by a single goroutine.
type Correlator struct {
	Mode                  Mode
	Source                ImageSource
	MaxEntries            int
	MaxAge                time.Duration
	ShardCount            int
	ImageTimestampDivisor int64
	InitiallyPending      bool
	Parent                logger.Writer

	latch           framelatch.Latch
	table           *correlation.Table
	displayOrigin   clockorigin.Origin
	unmatchedLogger logger.Writer

	lastDisplayTime atomic.Int64
	ticks           atomic.Uint64
	frames          atomic.Uint64
	matched         atomic.Uint64
	fallbacks       atomic.Uint64
}

// Initialize initializes Correlator.
func (c *Correlator) Initialize() error {
	if c.Source == nil {
		return fmt.Errorf("image source not provided")
	}

	if c.ImageTimestampDivisor < 0 {
		return fmt.Errorf("invalid image timestamp divisor: %d", c.ImageTimestampDivisor)
	}
	if c.ImageTimestampDivisor == 0 {
		c.ImageTimestampDivisor = 1
	}

	c.table = &correlation.Table{
		MaxEntries: c.MaxEntries,
		MaxAge:     c.MaxAge,
		ShardCount: c.ShardCount,
	}
	err := c.table.Initialize()
	if err != nil {
		return err
	}

	c.latch.Initialize(c.InitiallyPending)
	c.unmatchedLogger = logger.NewLimitedLogger(c)

	c.Log(logger.Debug, "created (mode=%v, max entries=%d, max age=%v, shards=%d)",
		c.Mode, c.table.MaxEntries, c.MaxAge, c.table.ShardCount)

	return nil
}

// Close closes Correlator.
func (c *Correlator) Close() {
	c.Log(logger.Debug, "destroyed (%d entries discarded)", c.table.Len())
}

// Log implements logger.Writer.
func (c *Correlator) Log(level logger.Level, format string, args ...any) {
	c.Parent.Log(level, "[correlator] "+format, args...)
}

// OnFrameAvailable is called when a new image has been produced.
func (c *Correlator) OnFrameAvailable() {
	c.latch.Signal()
}

// OnDisplayTime is called when the display time of a frame is received.
func (c *Correlator) OnDisplayTime(framePTS int64, displayTime int64) {
	if c.Mode == ModePassthrough {
		return
	}

	c.table.Record(framePTS, displayTime)

	orig, _ := c.table.Origin()
	c.Log(logger.Debug, "received display time: pts=%d displayTime=%d", framePTS-orig, displayTime)
}

// UpdateAndGetDisplayTime latches the newest image, if any, and returns the
// time at which the current image has to be displayed.
// When no image has ever been bound to a display time, it returns zero.
func (c *Correlator) UpdateAndGetDisplayTime() int64 {
	c.ticks.Add(1)

	if !c.latch.ConsumeIfReady() {
		return c.lastDisplayTime.Load()
	}

	c.frames.Add(1)
	pts := c.Source.LatchImage() / c.ImageTimestampDivisor

	if c.Mode == ModePassthrough {
		c.lastDisplayTime.Store(pts)
		return pts
	}

	displayTime, ok := c.table.Resolve(pts)
	if !ok {
		c.fallbacks.Add(1)
		last := c.lastDisplayTime.Load()
		c.unmatchedLogger.Log(logger.Warn, "no display time for frame with timestamp %d, reusing %d", pts, last)
		return last
	}

	c.matched.Add(1)
	orig := c.displayOrigin.Init(displayTime)
	c.Log(logger.Debug, "draw: pts=%d displayTime=%d", pts, displayTime-orig)

	c.lastDisplayTime.Store(displayTime)
	return displayTime
}

// Stats returns correlator statistics.
func (c *Correlator) Stats() Stats {
	return Stats{
		Mode:            c.Mode,
		Table:           c.table.Stats(),
		Ticks:           c.ticks.Load(),
		Frames:          c.frames.Load(),
		Matched:         c.matched.Load(),
		Fallbacks:       c.fallbacks.Load(),
		LastDisplayTime: c.lastDisplayTime.Load(),
	}
}
