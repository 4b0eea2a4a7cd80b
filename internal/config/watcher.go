package config

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Dynamic holds the settings that may change while the service runs.
// Everything else requires a restart.
type Dynamic struct {
	LogLevel          string   `yaml:"log_level"`
	ExtraBlockedHosts []string `yaml:"extra_blocked_hosts"`
}

// DynamicHandler is invoked with the new values after a successful reload.
type DynamicHandler func(Dynamic)

// Watcher hot-reloads the dynamic subset of the config file. It parses
// only the keys it understands; a malformed file keeps the last good
// values.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	logger   *zap.Logger
	handlers []DynamicHandler

	mu      sync.RWMutex
	current Dynamic
	stopCh  chan struct{}
}

// NewWatcher creates a watcher for the given config file.
func NewWatcher(path string, initial Dynamic, logger *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		path:    path,
		watcher: fsw,
		logger:  logger,
		current: initial,
		stopCh:  make(chan struct{}),
	}, nil
}

// OnChange registers a handler. Register before Start.
func (w *Watcher) OnChange(h DynamicHandler) {
	w.handlers = append(w.handlers, h)
}

// Current returns the last successfully loaded dynamic values.
func (w *Watcher) Current() Dynamic {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Start begins watching the config file's directory. Watching the
// directory rather than the file survives editor rename-and-replace.
func (w *Watcher) Start() error {
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	go w.loop()
	w.logger.Info("Config watcher started", zap.String("path", w.path))
	return nil
}

// Stop ends the watch loop.
func (w *Watcher) Stop() {
	close(w.stopCh)
	w.watcher.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Config watch error", zap.Error(err))
		}
	}
}

// dynamicFile mirrors the config file layout for the dynamic keys.
type dynamicFile struct {
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
	Pipeline struct {
		ExtraBlockedHosts []string `yaml:"extra_blocked_hosts"`
	} `yaml:"pipeline"`
}

func (w *Watcher) reload() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		w.logger.Warn("Config reload read failed", zap.Error(err))
		return
	}
	var file dynamicFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		w.logger.Warn("Config reload parse failed, keeping previous values", zap.Error(err))
		return
	}

	next := Dynamic{
		LogLevel:          file.Logging.Level,
		ExtraBlockedHosts: file.Pipeline.ExtraBlockedHosts,
	}

	w.mu.Lock()
	changed := next.LogLevel != w.current.LogLevel ||
		!equalStrings(next.ExtraBlockedHosts, w.current.ExtraBlockedHosts)
	w.current = next
	w.mu.Unlock()

	if !changed {
		return
	}
	w.logger.Info("Dynamic config reloaded",
		zap.String("log_level", next.LogLevel),
		zap.Int("extra_blocked_hosts", len(next.ExtraBlockedHosts)),
	)
	for _, h := range w.handlers {
		h(next)
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
