// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package document

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/AleutianMDP/services/mdp/spec"
)

// BuildResult is one rebuild of a watched document.
type BuildResult struct {
	Path          string
	Specification *spec.Specification
	Err           error
	Time          time.Time
}

// BuildHandler receives every rebuild. It is called from a single goroutine.
type BuildHandler func(BuildResult)

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	// DebounceWindow is how long to wait for more writes before rebuilding.
	// Default: 100ms
	DebounceWindow time.Duration

	// Logger receives watch errors. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultWatcherOptions returns sensible defaults.
func DefaultWatcherOptions() WatcherOptions {
	return WatcherOptions{DebounceWindow: 100 * time.Millisecond}
}

// Watcher rebuilds a document file whenever it changes on disk.
//
// # Description
//
// The parent directory is watched rather than the file itself, so editors
// that save by rename-and-replace still trigger a rebuild. Bursts of events
// are collapsed by a debounce window.
//
// # Thread Safety
//
// Safe for concurrent use. The handler is called from a single goroutine.
type Watcher struct {
	path     string
	handler  BuildHandler
	debounce time.Duration
	logger   *slog.Logger
	watcher  *fsnotify.Watcher

	events   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu       sync.Mutex
	watching bool
}

// NewWatcher creates a watcher for the document at path.
//
// # Inputs
//
//   - path: Document file. Its directory must exist.
//   - handler: Called with each rebuild.
//   - opts: Optional configuration (nil uses defaults).
func NewWatcher(path string, handler BuildHandler, opts *WatcherOptions) (*Watcher, error) {
	if opts == nil {
		defaults := DefaultWatcherOptions()
		opts = &defaults
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := opts.DebounceWindow
	if debounce <= 0 {
		debounce = DefaultWatcherOptions().DebounceWindow
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		path:     abs,
		handler:  handler,
		debounce: debounce,
		logger:   logger.With(slog.String("component", "mdp_watcher"), slog.String("path", abs)),
		watcher:  fw,
		events:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}, nil
}

// Start builds the document once, then rebuilds it on every change until
// ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.path), err)
	}

	w.rebuild(ctx)

	w.wg.Add(2)
	go w.processEvents(ctx)
	go w.debounceLoop(ctx)
	return nil
}

// Stop stops watching and waits for the handler goroutine to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
		w.wg.Wait()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			select {
			case w.events <- struct{}{}:
			default:
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	defer w.wg.Done()
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case <-w.events:
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			timer, timerC = nil, nil
			w.rebuild(ctx)
		}
	}
}

func (w *Watcher) rebuild(ctx context.Context) {
	result := BuildResult{Path: w.path, Time: time.Now()}
	d, err := LoadFile(w.path)
	if err == nil {
		result.Specification, err = d.Build(ctx)
	}
	result.Err = err

	if err != nil {
		w.logger.Info("document rebuild failed", slog.String("error", err.Error()))
	} else {
		w.logger.Debug("document rebuilt", slog.Int("states", result.Specification.NumStates()))
	}
	if w.handler != nil {
		w.handler(result)
	}
}
