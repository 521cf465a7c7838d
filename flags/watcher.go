package flags

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/courtside/rsvpd/errors"
)

// Watcher watches a TOML flag file and delivers discrete per-flag updates
// to registered callbacks. Only flags whose value actually changed are
// delivered; rapid file writes are debounced.
type Watcher struct {
	path           string
	watcher        *fsnotify.Watcher
	callbacks      []func(Update)
	mu             sync.Mutex
	debounceTimer  *time.Timer
	debouncePeriod time.Duration
	last           map[string]interface{}
	logger         *zap.SugaredLogger
}

// NewWatcher creates a flag-file watcher. The file must exist; callers
// treat a failure here as best-effort and fall back to defaults.
func NewWatcher(path string, log *zap.SugaredLogger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}

	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, errors.Wrapf(err, "failed to watch flag file %s", path)
	}

	return &Watcher{
		path:           path,
		watcher:        fw,
		callbacks:      make([]func(Update), 0),
		debouncePeriod: 500 * time.Millisecond, // Debounce rapid file changes
		last:           make(map[string]interface{}),
		logger:         log,
	}, nil
}

// OnUpdate registers a callback invoked for each changed flag
func (w *Watcher) OnUpdate(cb func(Update)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Start reads the current flag values, delivers them, and begins
// watching for changes
func (w *Watcher) Start() {
	w.reload()
	go w.watchLoop()
	w.logger.Infow("Flag watcher started", "path", w.path)
}

// Stop closes the underlying file watcher
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.mu.Unlock()
	w.watcher.Close()
}

// watchLoop monitors file system events
func (w *Watcher) watchLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				w.scheduleReload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warnw("Flag watcher error", "error", err)
		}
	}
}

// scheduleReload debounces reloads so editors writing the file in
// multiple events trigger a single re-read
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debouncePeriod, w.reload)
}

// reload re-reads the flag file and delivers updates for changed flags
func (w *Watcher) reload() {
	v := viper.New()
	v.SetConfigFile(w.path)
	v.SetConfigType("toml")
	v.SetDefault(FlagTestMode, false)
	v.SetDefault(FlagTimeOffset, 0)

	if err := v.ReadInConfig(); err != nil {
		w.logger.Warnw("Failed to read flag file, keeping current flags",
			"path", w.path,
			"error", err)
		return
	}

	current := map[string]interface{}{
		FlagTestMode:   v.GetBool(FlagTestMode),
		FlagTimeOffset: v.GetInt(FlagTimeOffset),
	}

	w.mu.Lock()
	var changed []Update
	for flag, value := range current {
		if prev, seen := w.last[flag]; !seen || prev != value {
			changed = append(changed, Update{Flag: flag, Value: value})
			w.last[flag] = value
		}
	}
	callbacks := make([]func(Update), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	for _, u := range changed {
		for _, cb := range callbacks {
			cb(u)
		}
	}
}
