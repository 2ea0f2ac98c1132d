package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultReloadDelay is how long the watcher waits for writes to settle.
const DefaultReloadDelay = 200 * time.Millisecond

// ReloadFunc receives a freshly parsed script after its file changed.
type ReloadFunc func(*Script) error

// Watcher re-parses a script file whenever it changes on disk.
type Watcher struct {
	parser  *ScriptParser
	path    string
	delay   time.Duration
	logger  zerolog.Logger
	watcher *fsnotify.Watcher

	mu     sync.Mutex
	timer  *time.Timer
	closed bool
}

// NewWatcher creates a watcher for the script at path. A zero delay selects
// DefaultReloadDelay.
func NewWatcher(parser *ScriptParser, path string, delay time.Duration, logger zerolog.Logger) *Watcher {
	if delay <= 0 {
		delay = DefaultReloadDelay
	}
	return &Watcher{
		parser: parser,
		path:   filepath.Clean(path),
		delay:  delay,
		logger: logger.With().Str("component", "script-watcher").Logger(),
	}
}

// Watch starts watching and calls reloadFn with every valid new version of
// the script. Invalid versions are logged and skipped. Watching stops when
// ctx is done or Close is called.
//
// The parent directory is watched rather than the file itself so that
// editors that replace the file on save keep triggering reloads.
func (w *Watcher) Watch(ctx context.Context, reloadFn ReloadFunc) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}
	w.watcher = watcher

	go w.processEvents(ctx, reloadFn)

	w.logger.Info().Str("path", w.path).Msg("Started watching script")
	return nil
}

// processEvents processes file system events and triggers reloads.
func (w *Watcher) processEvents(ctx context.Context, reloadFn ReloadFunc) {
	for {
		select {
		case <-ctx.Done():
			_ = w.Close()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			w.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Script file changed")
			w.schedule(ctx, reloadFn)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

// schedule debounces reloads.
func (w *Watcher) schedule(ctx context.Context, reloadFn ReloadFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, func() {
		if err := w.triggerReload(ctx, reloadFn); err != nil {
			w.logger.Error().Err(err).Msg("Failed to reload script")
		}
	})
}

// triggerReload re-parses the script and hands it to reloadFn.
func (w *Watcher) triggerReload(ctx context.Context, reloadFn ReloadFunc) error {
	if ctx.Err() != nil {
		return nil
	}

	script, err := w.parser.Load(ctx, w.path)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", w.path, err)
	}
	if err := reloadFn(script); err != nil {
		return fmt.Errorf("failed to apply reloaded script: %w", err)
	}

	w.logger.Info().Str("path", w.path).Msg("Script reloaded")
	return nil
}

// Close stops watching. It is safe to call more than once.
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
	w.mu.Unlock()

	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}
