package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Manager owns the on-disk JSON config and notifies a callback when the file
// changes. Components read a snapshot via Get at construction time.
type Manager struct {
	path         string
	mu           sync.RWMutex
	cfg          Config
	watcher      *fsnotify.Watcher
	debounce     time.Duration
	onChange     func(Config)
	suppressSelf atomic.Bool
	applyEnv     bool
	logger       *zap.Logger
}

type managerOptions struct {
	configPath string
	debounce   time.Duration
	applyEnv   bool
	logger     *zap.Logger
}

type ManagerOption func(*managerOptions)

func NewManager(opts ...ManagerOption) (*Manager, error) {
	options := managerOptions{
		debounce: 300 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = zap.NewNop()
	}

	configPath := options.configPath
	if configPath == "" {
		var err error
		configPath, err = defaultConfigPath()
		if err != nil {
			return nil, err
		}
	}

	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	cfg, err := loadOrCreateConfig(configPath)
	if err != nil {
		return nil, err
	}
	if options.applyEnv {
		_ = godotenv.Load()
		cfg.loadFromEnv()
	}

	return &Manager{
		path:     configPath,
		cfg:      cfg,
		debounce: options.debounce,
		applyEnv: options.applyEnv,
		logger:   options.logger,
	}, nil
}

func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) Path() string {
	return m.path
}

// Set changes one top-level key of the config file, named by its JSON tag.
// Keys holding strings or durations take value verbatim; other keys decode
// value as JSON. Environment overrides are never written to the file.
func (m *Manager) Set(key, value string) error {
	var onDisk Config
	if err := loadConfigFromFile(m.path, &onDisk); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	updated, err := setField(onDisk, key, value)
	if err != nil {
		return err
	}
	return m.update(onDisk, updated)
}

func (m *Manager) update(onDisk, newCfg Config) error {
	if err := newCfg.Validate(); err != nil {
		return err
	}
	if reflect.DeepEqual(onDisk, newCfg) {
		return nil
	}

	m.suppressSelf.Store(true)
	defer time.AfterFunc(m.debounce, func() { m.suppressSelf.Store(false) })

	if err := writeConfigFile(m.path, newCfg); err != nil {
		m.suppressSelf.Store(false)
		return err
	}

	if m.applyEnv {
		newCfg.loadFromEnv()
	}
	m.applyConfig(newCfg)
	return nil
}

func setField(cfg Config, key, value string) (Config, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return cfg, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return cfg, err
	}
	current, ok := fields[key]
	if !ok {
		return cfg, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}

	if len(current) > 0 && current[0] == '"' {
		fields[key], _ = json.Marshal(value)
	} else {
		if !json.Valid([]byte(value)) {
			return cfg, fmt.Errorf("config: %s: %q is not a valid value", key, value)
		}
		fields[key] = json.RawMessage(value)
	}

	if data, err = json.Marshal(fields); err != nil {
		return cfg, err
	}
	var out Config
	if err := json.Unmarshal(data, &out); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", key, err)
	}
	return out, nil
}

func (m *Manager) Watch(ctx context.Context, onChange func(Config)) error {
	m.mu.Lock()
	m.onChange = onChange
	if m.watcher != nil {
		m.mu.Unlock()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.watcher = watcher
	debounce := m.debounce
	configPath := m.path
	m.mu.Unlock()

	configDir := filepath.Dir(configPath)
	if err := watcher.Add(configDir); err != nil {
		return fmt.Errorf("watch config dir: %w", err)
	}

	go m.watchLoop(ctx, watcher, configPath, debounce)
	return nil
}

func (m *Manager) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, configPath string, debounce time.Duration) {
	defer watcher.Close()

	var timerMu sync.Mutex
	var timer *time.Timer
	trigger := func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounce, m.reloadFromDisk)
		timerMu.Unlock()
	}

	for {
		select {
		case evt, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !m.isConfigEvent(evt, configPath) {
				continue
			}
			if m.suppressSelf.Load() {
				continue
			}
			trigger()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				m.logger.Warn("config watcher error", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) isConfigEvent(evt fsnotify.Event, configPath string) bool {
	if filepath.Clean(evt.Name) != filepath.Clean(configPath) {
		return false
	}
	return evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func (m *Manager) reloadFromDisk() {
	var cfg Config
	if err := loadConfigFromFile(m.path, &cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg = *DefaultConfigWithRoot(filepath.Dir(m.path))
			if err := writeConfigFile(m.path, cfg); err != nil {
				m.logger.Error("config recreate failed", zap.Error(err))
				return
			}
		} else {
			m.logger.Error("config reload failed", zap.Error(err))
			return
		}
	}
	if m.applyEnv {
		cfg.loadFromEnv()
	}
	if err := cfg.Validate(); err != nil {
		m.logger.Error("config validation failed", zap.Error(err))
		return
	}

	m.mu.RLock()
	current := m.cfg
	m.mu.RUnlock()
	if reflect.DeepEqual(current, cfg) {
		return
	}
	m.applyConfig(cfg)
}

func (m *Manager) applyConfig(cfg Config) {
	m.mu.Lock()
	m.cfg = cfg
	cb := m.onChange
	m.mu.Unlock()

	if cb != nil {
		cb(cfg)
	}
}

func loadOrCreateConfig(path string) (Config, error) {
	var cfg Config
	if _, err := os.Stat(path); err == nil {
		if err := loadConfigFromFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return Config{}, err
		}
		return cfg, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("stat config: %w", err)
	}

	cfg = *DefaultConfigWithRoot(filepath.Dir(path))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	if err := writeConfigFile(path, cfg); err != nil {
		return Config{}, fmt.Errorf("write initial config: %w", err)
	}

	return cfg, nil
}

// loadConfigFromFile decodes over the defaults so fields missing from older
// files keep their default values.
func loadConfigFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	*cfg = *DefaultConfigWithRoot(filepath.Dir(path))
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func defaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir, err = os.Getwd()
		if err != nil {
			return "", err
		}
	}
	dir = filepath.Join(dir, "FinCortex")
	return filepath.Join(dir, "config.json"), nil
}

func writeConfigFile(path string, cfg Config) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), "cfg-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	encoder := json.NewEncoder(tmpFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(&cfg); err != nil {
		tmpFile.Close()
		_ = os.Remove(tmpFile.Name())
		return fmt.Errorf("encode config: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		_ = os.Remove(tmpFile.Name())
		return fmt.Errorf("flush config: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		_ = os.Remove(tmpFile.Name())
		return fmt.Errorf("close temp config: %w", err)
	}
	return os.Rename(tmpFile.Name(), path)
}

func WithConfigDir(dir string) ManagerOption {
	return func(o *managerOptions) {
		if dir == "" {
			return
		}
		o.configPath = filepath.Join(dir, "config.json")
	}
}

func WithConfigPath(path string) ManagerOption {
	return func(o *managerOptions) {
		if path != "" {
			o.configPath = path
		}
	}
}

// WithEnvOverrides applies .env and process environment values on top of the
// file contents. The overrides are kept in memory and not written back.
func WithEnvOverrides() ManagerOption {
	return func(o *managerOptions) {
		o.applyEnv = true
	}
}

func WithLogger(logger *zap.Logger) ManagerOption {
	return func(o *managerOptions) {
		o.logger = logger
	}
}

// SetLogger replaces the logger used for watch and reload messages. Call it
// before Watch.
func (m *Manager) SetLogger(logger *zap.Logger) {
	if logger != nil {
		m.logger = logger
	}
}
