package schema

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrWatcherRunning is returned when Watch is called twice.
var ErrWatcherRunning = errors.New("schema watcher already running")

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	// Dir is the schema directory to watch.
	Dir string

	// Debounce is the quiet period after the last change before reloading.
	Debounce time.Duration
}

// DefaultWatcherConfig returns a 200ms debounce configuration for dir.
func DefaultWatcherConfig(dir string) *WatcherConfig {
	return &WatcherConfig{Dir: dir, Debounce: 200 * time.Millisecond}
}

// Reloader is implemented by Registry.
type Reloader interface {
	Reload() error
}

// Watcher reloads a registry when YAML files in its directory change.
type Watcher struct {
	config   *WatcherConfig
	target   Reloader
	logger   *slog.Logger
	fsw      *fsnotify.Watcher
	debounce *debouncer

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher creates a watcher reloading target.
func NewWatcher(config *WatcherConfig, target Reloader, logger *slog.Logger) (*Watcher, error) {
	if config == nil || config.Dir == "" {
		return nil, fmt.Errorf("%w: watcher needs a directory", ErrInvalidSchema)
	}
	if config.Debounce <= 0 {
		config.Debounce = 200 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &Watcher{
		config:   config,
		target:   target,
		logger:   logger.With("component", "schema.watcher"),
		fsw:      fsw,
		debounce: newDebouncer(config.Debounce),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Watch blocks until ctx is cancelled or Stop is called, reloading the
// target after each debounced batch of changes.
func (w *Watcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return ErrWatcherRunning
	}
	w.running = true
	w.mu.Unlock()
	defer close(w.doneCh)

	if err := w.fsw.Add(w.config.Dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.config.Dir, err)
	}
	w.logger.Info("schema watcher started", "dir", w.config.Dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("schema watcher events channel closed")
			}
			if !relevant(event) {
				continue
			}
			w.logger.Debug("schema file changed", "path", event.Name, "op", event.Op.String())
			w.debounce.trigger(func() {
				if err := w.target.Reload(); err != nil {
					w.logger.Error("schema reload failed", "error", err)
				}
			})
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("schema watcher errors channel closed")
			}
			w.logger.Error("schema watcher error", "error", err)
		}
	}
}

// Stop stops a running watcher and releases its resources.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	running := w.running
	w.running = false
	w.mu.Unlock()

	if running {
		close(w.stopCh)
		<-w.doneCh
	}
	w.debounce.stop()
	return w.fsw.Close()
}

func relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// debouncer runs the last triggered callback after a quiet period.
type debouncer struct {
	interval time.Duration
	mu       sync.Mutex
	timer    *time.Timer
	stopped  bool
}

func newDebouncer(interval time.Duration) *debouncer {
	return &debouncer{interval: interval}
}

func (d *debouncer) trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, fn)
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
