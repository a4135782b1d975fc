package config

import (
	"errors"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/jmurray2011/hoard/internal/logging"
)

// ErrNoConfigFile is returned by Watch when no config file was loaded.
var ErrNoConfigFile = errors.New("no config file to watch")

// Manager holds the current Config and reloads it when the file changes.
type Manager struct {
	v         *viper.Viper
	log       logging.Logger
	mu        sync.RWMutex
	cfg       *Config
	callbacks []func(*Config)
	watching  bool
}

// NewManager wraps a viper instance that has already been through Setup.
func NewManager(v *viper.Viper, log logging.Logger) *Manager {
	if log == nil {
		log = logging.Default()
	}
	return &Manager{
		v:   v,
		log: log.WithField("component", "config"),
	}
}

// Load reads the config file, if any, and validates the result.
func (m *Manager) Load() error {
	if err := Read(m.v); err != nil {
		return err
	}
	cfg, err := Load(m.v)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.cfg == nil {
		d := Defaults()
		return &d
	}
	c := *m.cfg
	c.Serve.Allow = append([]string(nil), m.cfg.Serve.Allow...)
	return &c
}

// ConfigFileUsed returns the path of the loaded config file, if any.
func (m *Manager) ConfigFileUsed() string {
	return m.v.ConfigFileUsed()
}

// OnConfigChange registers a callback run after every successful reload.
func (m *Manager) OnConfigChange(callback func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// Reload re-reads the config file. An invalid file leaves the current
// configuration in place and callbacks are not run.
func (m *Manager) Reload() error {
	if err := m.v.ReadInConfig(); err != nil {
		return err
	}
	cfg, err := Load(m.v)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.cfg = cfg
	callbacks := make([]func(*Config), len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mu.Unlock()

	for _, callback := range callbacks {
		c := *cfg
		callback(&c)
	}
	return nil
}

// Watch reloads the configuration whenever the config file is written.
func (m *Manager) Watch() error {
	if m.ConfigFileUsed() == "" {
		return ErrNoConfigFile
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.watching {
		return nil
	}

	m.v.OnConfigChange(func(e fsnotify.Event) {
		m.log.Debug("config file changed: %s (%s)", e.Name, e.Op)
		if err := m.Reload(); err != nil {
			m.log.Warn("keeping previous config: %v", err)
			return
		}
		m.log.Info("reloaded %s", e.Name)
	})
	m.v.WatchConfig()

	m.watching = true
	return nil
}
