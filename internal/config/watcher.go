package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// DefaultPollInterval is how often the watcher re-checks the config file.
const DefaultPollInterval = 2 * time.Second

// ReloadFunc receives the previous and the freshly loaded config together
// with the computed [ConfigDiff]. It is only invoked for reloads that change
// at least one config value; rewrites that only touch formatting or comments
// are absorbed silently.
type ReloadFunc func(old, new *Config, diff ConfigDiff)

// Watcher polls a config file and reports semantic changes through a
// [ReloadFunc]. Polling keeps the dependency surface flat and survives
// editors that replace the file instead of writing it in place.
//
// A reload that fails to parse or validate never replaces the current
// config: the watcher logs the failure and keeps serving the last good one.
type Watcher struct {
	path     string
	interval time.Duration
	onReload ReloadFunc

	mu       sync.Mutex
	current  *Config
	done     chan struct{}
	stopOnce sync.Once

	// last seen file state, used to cheaply skip unchanged files
	lastMtime time.Time
	lastHash  [sha256.Size]byte
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. Non-positive values keep
// [DefaultPollInterval].
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher loads the config at path and starts polling it for changes in a
// background goroutine. The initial load must succeed; afterwards the watcher
// only ever moves from one valid config to the next.
func NewWatcher(path string, onReload ReloadFunc, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: DefaultPollInterval,
		onReload: onReload,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	snap, err := w.load()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.current = snap.cfg
	w.lastHash = snap.hash
	w.lastMtime = snap.mtime

	go w.poll()
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop ends polling. Idempotent.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
	})
}

func (w *Watcher) poll() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.check()
		}
	}
}

// check is one poll pass: bail out early on unchanged mtime, reload on a
// content change, and fire the callback only when the diff is non-empty.
func (w *Watcher) check() {
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config watcher: cannot stat file", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	unchanged := info.ModTime().Equal(w.lastMtime)
	w.mu.Unlock()
	if unchanged {
		return
	}

	snap, err := w.load()
	if err != nil {
		slog.Warn("config watcher: keeping previous config, reload failed",
			"path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	if snap.hash == w.lastHash {
		// Touched, not changed.
		w.lastMtime = snap.mtime
		w.mu.Unlock()
		return
	}

	old := w.current
	diff := Diff(old, snap.cfg)
	w.current = snap.cfg
	w.lastHash = snap.hash
	w.lastMtime = snap.mtime
	w.mu.Unlock()

	if diff.Empty() {
		slog.Debug("config watcher: file rewritten without value changes", "path", w.path)
		return
	}
	slog.Info("config watcher: configuration reloaded",
		"path", w.path, "changed", diff.Paths)

	if w.onReload != nil {
		w.onReload(old, snap.cfg, diff)
	}
}

// snapshot ties a parsed config to the file content it came from.
type snapshot struct {
	cfg   *Config
	hash  [sha256.Size]byte
	mtime time.Time
}

// load reads, parses, and validates the watched file in one pass, hashing the
// raw bytes so rewrites with identical content are recognised.
func (w *Watcher) load() (snapshot, error) {
	f, err := os.Open(w.path)
	if err != nil {
		return snapshot{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return snapshot{}, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return snapshot{}, err
	}

	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return snapshot{}, err
	}
	return snapshot{cfg: cfg, hash: sha256.Sum256(data), mtime: info.ModTime()}, nil
}
