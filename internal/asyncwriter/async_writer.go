// Package asyncwriter contains an asynchronous callback queue.
package asyncwriter

import (
	"fmt"

	"github.com/bluenviron/gortsplib/v4/pkg/ringbuffer"

	"github.com/bluenviron/framesync/internal/logger"
)

// Writer runs queued callbacks on a dedicated goroutine.
type Writer struct {
	// queue size. It must be a power of two.
	QueueSize int
	Parent    logger.Writer

	buffer    *ringbuffer.RingBuffer
	errLogger logger.Writer

	// out
	err chan error
}

// Initialize initializes Writer.
func (w *Writer) Initialize() error {
	var err error
	w.buffer, err = ringbuffer.New(uint64(w.QueueSize))
	if err != nil {
		return err
	}

	w.errLogger = logger.NewLimitedLogger(w.Parent)
	w.err = make(chan error)

	return nil
}

// Start starts the writer routine.
func (w *Writer) Start() {
	go w.run()
}

// Stop stops the writer routine.
func (w *Writer) Stop() {
	w.buffer.Close()
	<-w.err
}

// Error returns whenever there's an error.
func (w *Writer) Error() chan error {
	return w.err
}

func (w *Writer) run() {
	w.err <- w.runInner()
	close(w.err)
}

func (w *Writer) runInner() error {
	for {
		cb, ok := w.buffer.Pull()
		if !ok {
			return fmt.Errorf("terminated")
		}

		err := cb.(func() error)()
		if err != nil {
			return err
		}
	}
}

// Push appends a callback to the queue.
// It returns false when the queue is full and the callback has been discarded.
func (w *Writer) Push(cb func() error) bool {
	ok := w.buffer.Push(cb)
	if !ok {
		w.errLogger.Log(logger.Warn, "write queue is full")
	}
	return ok
}
