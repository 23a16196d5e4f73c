// Package renderloop contains the render loop.
package renderloop

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bluenviron/framesync/internal/logger"
)

type loopCorrelator interface {
	UpdateAndGetDisplayTime() int64
}

// Loop calls the correlator once per display refresh.
type Loop struct {
	RefreshRate float64
	Correlator  loopCorrelator
	Parent      logger.Writer

	ctx       context.Context
	ctxCancel func()
	ticks     atomic.Uint64
	repeated  atomic.Uint64

	done chan struct{}
}

// Initialize initializes Loop.
func (l *Loop) Initialize() error {
	if l.RefreshRate <= 0 {
		return fmt.Errorf("invalid refresh rate: %v", l.RefreshRate)
	}

	l.ctx, l.ctxCancel = context.WithCancel(context.Background())
	l.done = make(chan struct{})

	l.Log(logger.Info, "started at %.2f Hz", l.RefreshRate)

	go l.run()

	return nil
}

// Close closes Loop.
func (l *Loop) Close() {
	l.Log(logger.Info, "closing")
	l.ctxCancel()
	<-l.done
}

// Log implements logger.Writer.
func (l *Loop) Log(level logger.Level, format string, args ...interface{}) {
	l.Parent.Log(level, "[render] "+format, args...)
}

// Ticks returns the number of rendered ticks.
func (l *Loop) Ticks() uint64 {
	return l.ticks.Load()
}

// Repeated returns the number of ticks that reused the previous display time.
func (l *Loop) Repeated() uint64 {
	return l.repeated.Load()
}

func (l *Loop) run() {
	defer close(l.done)

	ticker := time.NewTicker(time.Duration(float64(time.Second) / l.RefreshRate))
	defer ticker.Stop()

	var prev int64

	for {
		select {
		case <-ticker.C:
			displayTime := l.Correlator.UpdateAndGetDisplayTime()
			n := l.ticks.Add(1)

			if n > 1 && displayTime == prev {
				l.repeated.Add(1)
			} else {
				l.Log(logger.Debug, "tick %d: display time %d (%+d)", n, displayTime, displayTime-prev)
			}
			prev = displayTime

		case <-l.ctx.Done():
			return
		}
	}
}
