// Package counterdumper contains a counter that periodically reports its value.
package counterdumper

import (
	"sync/atomic"
	"time"
)

const (
	defaultPeriod = 1 * time.Second
)

// CounterDumper accumulates events and periodically reports how many occurred
// since the previous report. Nothing is reported when no event occurred.
type CounterDumper struct {
	Period   time.Duration
	OnReport func(v uint64)

	counter atomic.Uint64

	terminate chan struct{}
	done      chan struct{}
}

// Start starts the counter.
func (c *CounterDumper) Start() {
	if c.Period == 0 {
		c.Period = defaultPeriod
	}

	c.terminate = make(chan struct{})
	c.done = make(chan struct{})

	go c.run()
}

// Stop stops the counter.
// Events that have not been reported yet are reported before returning.
func (c *CounterDumper) Stop() {
	close(c.terminate)
	<-c.done
}

// Increase increases the counter value by 1.
func (c *CounterDumper) Increase() {
	c.counter.Add(1)
}

func (c *CounterDumper) report() {
	v := c.counter.Swap(0)
	if v != 0 {
		c.OnReport(v)
	}
}

func (c *CounterDumper) run() {
	defer close(c.done)

	t := time.NewTicker(c.Period)
	defer t.Stop()

	for {
		select {
		case <-c.terminate:
			c.report()
			return

		case <-t.C:
			c.report()
		}
	}
}
