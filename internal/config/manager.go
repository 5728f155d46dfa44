package config

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Manager owns the live Config and reloads it on REHASH or on-disk
// change, mirroring the teacher's Config.Reload but guarding the swap
// with a mutex since handlers read the config from request goroutines
// while a watcher goroutine may be replacing it concurrently.
type Manager struct {
	mu  sync.RWMutex
	cfg *Config

	watcher *fsnotify.Watcher
	onReload []func(*Config)
}

// NewManager loads path once and returns a Manager wrapping it.
func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Manager{cfg: cfg}, nil
}

// WrapManager builds a Manager around an already-constructed Config with
// no backing file, so Reload/Watch are no-ops until cfg.Source is set.
// Used by tests and by embedders that build their Config programmatically
// rather than from disk.
func WrapManager(cfg *Config) *Manager {
	return &Manager{cfg: cfg}
}

// Get returns the current configuration. Callers must not mutate it.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// OnReload registers a callback invoked after every successful Reload,
// used by cmd/ircd to re-apply logging settings and reload MOTD lines, and
// by internal/server to refresh the server/network names, the connection
// password, and the internal/peer link table from the new document.
func (m *Manager) OnReload(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReload = append(m.onReload, fn)
}

// Reload re-reads the configuration from its original source, matching
// the teacher's Config.Reload("") no-new-source call. On parse failure
// the previous configuration is kept live, so a typo in the file never
// takes down a running server via REHASH.
func (m *Manager) Reload() error {
	m.mu.RLock()
	source := m.cfg.Source
	m.mu.RUnlock()
	if source == "" {
		return nil
	}

	cfg, err := Load(source)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.cfg = cfg
	hooks := append([]func(*Config){}, m.onReload...)
	m.mu.Unlock()

	for _, fn := range hooks {
		fn(cfg)
	}
	return nil
}

// Watch starts an fsnotify watch on the config file's directory and
// calls Reload whenever the file is written or recreated (editors
// typically rename-and-replace rather than write in place, so the
// directory is watched rather than the file itself). It runs until
// stop is closed.
func (m *Manager) Watch(stop <-chan struct{}) error {
	if m.Get().Source == "" {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	m.watcher = w

	dir := filepath.Dir(m.Get().Source)
	if err := w.Add(dir); err != nil {
		w.Close()
		return err
	}

	target := filepath.Base(m.Get().Source)
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != target {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := m.Reload(); err != nil {
					logrus.WithError(err).Warn("config: reload after file change failed")
				} else {
					logrus.Info("config: reloaded after file change")
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logrus.WithError(err).Warn("config: watcher error")
			case <-stop:
				return
			}
		}
	}()
	return nil
}
