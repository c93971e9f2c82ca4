// Package watcher wires filesystem change notifications to cache
// invalidation.
package watcher

import (
	"sync"
	"time"

	"genport/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow coalesces bursts of events (editor save storms, git
// checkouts) into a single invalidation.
const debounceWindow = 200 * time.Millisecond

// Invalidator receives change notifications. cache.SearchCache and
// ignore.Policy both satisfy it through small adapters or directly.
type Invalidator interface {
	Clear()
}

// Watcher watches directories and clears the given invalidators on change.
type Watcher struct {
	fsw     *fsnotify.Watcher
	targets []Invalidator

	mu     sync.Mutex
	timer  *time.Timer
	closed bool
	done   chan struct{}
}

// New starts a watcher. Call Close when done.
func New(targets ...Invalidator) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:     fsw,
		targets: targets,
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Add begins watching a directory. Non-recursive; callers add the
// directories they care about.
func (w *Watcher) Add(dir string) error {
	return w.fsw.Add(dir)
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				w.scheduleInvalidate()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Warn("watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) scheduleInvalidate() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(debounceWindow, w.invalidate)
}

func (w *Watcher) invalidate() {
	for _, t := range w.targets {
		t.Clear()
	}
	logging.Debug("search caches invalidated")
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	close(w.done)
	w.mu.Unlock()
	return w.fsw.Close()
}
