// Package confwatcher contains a configuration watcher.
package confwatcher

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	minIntervalBetweenEvents = 1 * time.Second
	additionalWait           = 10 * time.Millisecond
)

// ConfWatcher is a configuration file watcher.
type ConfWatcher struct {
	FilePath string

	inner       *fsnotify.Watcher
	absFilePath string

	// out
	signal chan struct{}
	done   chan struct{}
}

// Initialize initializes ConfWatcher.
func (w *ConfWatcher) Initialize() error {
	absFilePath, err := filepath.Abs(w.FilePath)
	if err != nil {
		return err
	}

	_, err = os.Stat(absFilePath)
	if err != nil {
		return err
	}

	w.inner, err = fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// watch the parent directory in order to survive
	// file replacements performed by editors.
	err = w.inner.Add(filepath.Dir(absFilePath))
	if err != nil {
		w.inner.Close() //nolint:errcheck
		return err
	}

	w.absFilePath = absFilePath
	w.signal = make(chan struct{})
	w.done = make(chan struct{})

	go w.run()

	return nil
}

// Close closes a ConfWatcher.
func (w *ConfWatcher) Close() {
	go func() {
		for range w.signal {
		}
	}()
	w.inner.Close() //nolint:errcheck
	<-w.done
}

func (w *ConfWatcher) run() {
	defer close(w.done)
	defer close(w.signal)

	var lastSignal time.Time

	for {
		select {
		case event, ok := <-w.inner.Events:
			if !ok {
				return
			}

			if (event.Op & (fsnotify.Write | fsnotify.Create)) == 0 {
				continue
			}

			currentPath, err := filepath.EvalSymlinks(w.absFilePath)
			if err != nil {
				// file has been removed, wait until it is created again
				continue
			}

			eventPath, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}

			eventPath, err = filepath.EvalSymlinks(eventPath)
			if err != nil || eventPath != currentPath {
				continue
			}

			if time.Since(lastSignal) < minIntervalBetweenEvents {
				continue
			}

			// wait some additional time to avoid EOF
			time.Sleep(additionalWait)
			lastSignal = time.Now()

			w.signal <- struct{}{}

		case _, ok := <-w.inner.Errors:
			if !ok {
				return
			}
		}
	}
}

// Watch returns a channel that is written when the configuration file changes.
func (w *ConfWatcher) Watch() chan struct{} {
	return w.signal
}
