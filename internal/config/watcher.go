package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Watcher monitors the config file for changes and calls a callback when a
// valid new version appears. It polls rather than using fsnotify to keep
// dependencies minimal; an invalid edit keeps the previous config active.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *Config)

	mu       sync.Mutex
	current  *Config
	done     chan struct{}
	stopOnce sync.Once

	lastMtime time.Time
	lastHash  [sha256.Size]byte
}

// WatcherOption configures a [Watcher] or [FileWatcher].
type WatcherOption func(*watcherSettings)

type watcherSettings struct {
	interval time.Duration
}

// WithInterval sets the polling interval. The default is 5 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(s *watcherSettings) {
		if d > 0 {
			s.interval = d
		}
	}
}

// NewWatcher creates a config file watcher. It loads the initial config
// immediately and starts polling in a background goroutine.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	settings := watcherSettings{interval: 5 * time.Second}
	for _, opt := range opts {
		opt(&settings)
	}

	w := &Watcher{
		path:     path,
		interval: settings.interval,
		onChange: onChange,
		done:     make(chan struct{}),
	}

	cfg, hash, mtime, err := w.loadAndHash()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.current = cfg
	w.lastHash = hash
	w.lastMtime = mtime

	go w.poll()
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop stops the file watcher.
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

// check reads the config file and, if it has changed and is valid, calls
// onChange and updates the current config.
func (w *Watcher) check() {
	// Cheap mtime check first so unchanged files are not re-hashed.
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config watcher: cannot stat file", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	mtime := w.lastMtime
	w.mu.Unlock()

	if info.ModTime().Equal(mtime) {
		return
	}

	cfg, hash, newMtime, err := w.loadAndHash()
	if err != nil {
		slog.Warn("config watcher: failed to load config, keeping current", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	if hash == w.lastHash {
		// File was touched but content is identical.
		w.lastMtime = newMtime
		w.mu.Unlock()
		return
	}

	old := w.current
	w.current = cfg
	w.lastHash = hash
	w.lastMtime = newMtime
	w.mu.Unlock()

	slog.Info("config watcher: configuration reloaded", "path", w.path)

	// Invoke the callback outside the lock so it can safely call Current().
	if w.onChange != nil {
		w.onChange(old, cfg)
	}
}

// loadAndHash reads the config file, parses and validates it, and returns
// the config alongside the file's SHA-256 hash and modification time.
func (w *Watcher) loadAndHash() (*Config, [sha256.Size]byte, time.Time, error) {
	var zeroHash [sha256.Size]byte

	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, zeroHash, time.Time{}, err
	}
	info, err := os.Stat(w.path)
	if err != nil {
		return nil, zeroHash, time.Time{}, err
	}

	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, zeroHash, time.Time{}, err
	}
	return cfg, sha256.Sum256(data), info.ModTime(), nil
}

// FileWatcher polls a single plain file (the persona prompt) and calls
// onChange with the new content when it changes. A vanished file is logged
// and the last content kept.
type FileWatcher struct {
	path     string
	interval time.Duration
	onChange func(data []byte)

	done     chan struct{}
	stopOnce sync.Once

	lastHash [sha256.Size]byte
}

// NewFileWatcher creates a content watcher for path. The initial content is
// read immediately but onChange fires only for subsequent changes.
func NewFileWatcher(path string, onChange func(data []byte), opts ...WatcherOption) (*FileWatcher, error) {
	settings := watcherSettings{interval: 5 * time.Second}
	for _, opt := range opts {
		opt(&settings)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: file watcher initial read %q: %w", path, err)
	}

	w := &FileWatcher{
		path:     path,
		interval: settings.interval,
		onChange: onChange,
		done:     make(chan struct{}),
		lastHash: sha256.Sum256(data),
	}
	go w.poll()
	return w, nil
}

// Stop stops the file watcher.
func (w *FileWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
	})
}

func (w *FileWatcher) poll() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			data, err := os.ReadFile(w.path)
			if err != nil {
				slog.Warn("file watcher: cannot read file", "path", w.path, "err", err)
				continue
			}
			hash := sha256.Sum256(data)
			if hash == w.lastHash {
				continue
			}
			w.lastHash = hash
			slog.Info("file watcher: content changed", "path", w.path)
			if w.onChange != nil {
				w.onChange(data)
			}
		}
	}
}
