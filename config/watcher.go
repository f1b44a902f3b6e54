package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultReloadDebounce collects bursts of writes into one reload.
const DefaultReloadDebounce = 500 * time.Millisecond

// Watcher reloads a config file when it changes and hands every valid
// result to a callback. Invalid files are logged and skipped.
type Watcher struct {
	path     string
	onChange func(*Config)
	load     func(path string) (*Config, error)
	debounce time.Duration
	logger   *slog.Logger
	watcher  *fsnotify.Watcher

	pendingMu sync.Mutex
	pending   bool
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets how long to wait for more writes before reloading.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLoadFunc replaces LoadFromFile, e.g. with a Loader that applies the
// user and project layers underneath.
func WithLoadFunc(load func(path string) (*Config, error)) WatcherOption {
	return func(w *Watcher) {
		if load != nil {
			w.load = load
		}
	}
}

// WithWatcherLogger sets the logger.
func WithWatcherLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWatcher creates a watcher for the config file at path.
func NewWatcher(path string, onChange func(*Config), opts ...WatcherOption) (*Watcher, error) {
	if onChange == nil {
		return nil, errors.New("onChange is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:     abs,
		onChange: onChange,
		load:     LoadFromFile,
		debounce: DefaultReloadDebounce,
		logger:   slog.Default(),
		watcher:  fsw,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("component", "config-watcher", "path", abs)
	return w, nil
}

// Start watches the file's directory, since editors often replace the file
// rather than write to it.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch config directory: %w", err)
	}

	go w.processEvents(ctx)

	w.logger.Info("Config watcher started", "debounce", w.debounce)
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) processEvents(ctx context.Context) {
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", "error", err)

		case <-ticker.C:
			w.flushPending()
		}
	}
}

func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	w.pendingMu.Lock()
	w.pending = true
	w.pendingMu.Unlock()
}

func (w *Watcher) flushPending() {
	w.pendingMu.Lock()
	pending := w.pending
	w.pending = false
	w.pendingMu.Unlock()

	if !pending {
		return
	}

	cfg, err := w.load(w.path)
	if err != nil {
		w.logger.Warn("Failed to reload config", "error", err)
		return
	}
	if err := cfg.Validate(); err != nil {
		w.logger.Warn("Ignoring invalid config", "error", err)
		return
	}

	w.logger.Info("Config reloaded", "model", cfg.Model.Name, "provider", cfg.Model.Provider)
	w.onChange(cfg)
}
