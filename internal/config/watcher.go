package config

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ReloadFunc receives the freshly loaded config and the clamp adjustments
// that were applied to it. Called from the watcher goroutine; the host
// loop is expected to hand the config to the engines between frames.
type ReloadFunc func(cfg *Config, adjusted []string)

// Watcher reloads the config file when it changes on disk so tuning can
// be adjusted against a live avatar.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	onReload ReloadFunc
	log      zerolog.Logger
	mu       sync.Mutex
	done     chan struct{}
}

// NewWatcher creates a watcher for the given config file path and starts
// its watch loop. The file's directory is watched so editor save
// strategies (rename-and-replace) are still observed.
func NewWatcher(path string, log zerolog.Logger, onReload ReloadFunc) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	w := &Watcher{
		watcher:  fsw,
		path:     abs,
		onReload: onReload,
		log:      log,
		done:     make(chan struct{}),
	}

	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, err
	}

	go w.watchLoop()

	return w, nil
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("config watcher error")
		}
	}
}

func (w *Watcher) reload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	cfg, err := Load(w.path)
	if err != nil {
		w.log.Warn().Err(err).Str("path", w.path).Msg("config reload failed, keeping previous")
		return
	}
	adjusted := cfg.Clamp()
	for _, a := range adjusted {
		w.log.Warn().Str("adjustment", a).Msg("config value clamped")
	}
	w.log.Info().Str("path", w.path).Msg("config reloaded")
	w.onReload(cfg, adjusted)
}

// Stop shuts the watcher down.
func (w *Watcher) Stop() {
	close(w.done)
	w.watcher.Close()
}
