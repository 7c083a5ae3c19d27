package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultReloadDebounce is how long the watcher waits after the last write
// before reloading
const DefaultReloadDebounce = 500 * time.Millisecond

// ChangeFunc receives every successfully reloaded and validated config
type ChangeFunc func(cfg *Config)

// WatcherOptions configures a Watcher
type WatcherOptions struct {
	Path     string
	Debounce time.Duration
	Logger   zerolog.Logger
	OnChange ChangeFunc
	// OnError is told about reloads that failed to load or validate
	OnError func(err error)
}

// Watcher reloads the config file when it changes on disk
type Watcher struct {
	path     string
	loader   *Loader
	debounce time.Duration
	logger   zerolog.Logger
	onChange ChangeFunc
	onError  func(err error)

	watcher  *fsnotify.Watcher
	done     chan struct{}
	wg       sync.WaitGroup
	timerMu  sync.Mutex
	timer    *time.Timer
	stopOnce sync.Once
}

// NewWatcher creates a watcher for the config file at opts.Path
func NewWatcher(opts WatcherOptions) (*Watcher, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("config path is required")
	}
	if opts.OnChange == nil {
		return nil, fmt.Errorf("change handler is required")
	}
	if opts.Debounce == 0 {
		opts.Debounce = DefaultReloadDebounce
	}

	abs, err := filepath.Abs(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	return &Watcher{
		path:     abs,
		loader:   NewLoader(abs),
		debounce: opts.Debounce,
		logger:   opts.Logger.With().Str("component", "config_watcher").Logger(),
		onChange: opts.OnChange,
		onError:  opts.OnError,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. The directory is watched rather than the file so
// that editors which replace the file are seen too.
func (w *Watcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch config directory: %w", err)
	}
	w.watcher = watcher

	w.wg.Add(1)
	go w.eventLoop()

	w.logger.Info().Str("path", w.path).Msg("Config watcher started")
	return nil
}

// Stop stops watching and cancels any pending reload
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)

		w.timerMu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.timerMu.Unlock()

		if w.watcher != nil {
			err = w.watcher.Close()
		}
		w.wg.Wait()
		w.logger.Info().Msg("Config watcher stopped")
	})
	return err
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.scheduleReload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Config watcher error")

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.done:
			return
		default:
			w.reload()
		}
	})
}

// reload loads and validates the file and notifies the subscriber. A bad
// file leaves the running config untouched.
func (w *Watcher) reload() {
	cfg, err := w.loader.Load()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		w.logger.Error().Err(err).Msg("Config reload rejected")
		if w.onError != nil {
			w.onError(err)
		}
		return
	}

	w.onChange(cfg)
	w.logger.Info().Msg("Config reloaded")
}
