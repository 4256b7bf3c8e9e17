package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/justyntemme/filetree/internal/fs"
)

// Config holds all user-configurable settings loaded from config.json
type Config struct {
	Tree    TreeConfig    `json:"tree" mapstructure:"tree"`
	FS      FSConfig      `json:"fs" mapstructure:"fs"`
	Store   StoreConfig   `json:"store" mapstructure:"store"`
	Events  EventsConfig  `json:"events" mapstructure:"events"`
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`
}

// TreeConfig holds tree behavior settings
type TreeConfig struct {
	AutoOpenLast  bool   `json:"autoOpenLast" mapstructure:"autoOpenLast"`
	CompactChains bool   `json:"compactChains" mapstructure:"compactChains"`
	ShowDotfiles  bool   `json:"showDotfiles" mapstructure:"showDotfiles"`
	NameOrder     string `json:"nameOrder" mapstructure:"nameOrder"` // "fold" | "exact" | "collate"
	Locale        string `json:"locale" mapstructure:"locale"`       // Used by "collate"
}

// FSConfig holds listing worker settings
type FSConfig struct {
	Workers int `json:"workers" mapstructure:"workers"`
}

// StoreConfig holds the sqlite database location
type StoreConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// EventsConfig holds root-changed publishing settings
type EventsConfig struct {
	NATSURL string `json:"natsURL" mapstructure:"natsURL"` // Empty disables NATS
	Subject string `json:"subject" mapstructure:"subject"`
}

// MetricsConfig holds the prometheus listener address
type MetricsConfig struct {
	Addr string `json:"addr" mapstructure:"addr"` // Empty disables the server
}

// Manager handles loading, saving, and accessing configuration
type Manager struct {
	mu       sync.RWMutex
	config   *Config
	path     string
	parseErr error // Stores parsing error if config failed to load
}

// NewManager creates a configuration manager for path. An empty path uses
// FILETREE_CONFIG or ConfigPath().
func NewManager(path string) *Manager {
	if path == "" {
		path = os.Getenv("FILETREE_CONFIG")
	}
	if path == "" {
		path = ConfigPath()
	}
	return &Manager{
		config: DefaultConfig(),
		path:   path,
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Tree: TreeConfig{
			AutoOpenLast:  true,
			CompactChains: true,
			ShowDotfiles:  true,
			NameOrder:     "fold",
			Locale:        "en",
		},
		FS: FSConfig{
			Workers: 4,
		},
		Store: StoreConfig{
			Path: DefaultDBPath(),
		},
		Events: EventsConfig{
			Subject: "filetree.root",
		},
	}
}

// ConfigPath returns the config file path: ~/.config/filetree/config.json
func ConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "filetree", "config.json")
}

// DefaultDBPath returns <UserConfigDir>/filetree/filetree.db
func DefaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "filetree", "filetree.db")
}

// Path returns the file the manager reads and writes.
func (m *Manager) Path() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.path
}

func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("tree.autoOpenLast", c.Tree.AutoOpenLast)
	v.SetDefault("tree.compactChains", c.Tree.CompactChains)
	v.SetDefault("tree.showDotfiles", c.Tree.ShowDotfiles)
	v.SetDefault("tree.nameOrder", c.Tree.NameOrder)
	v.SetDefault("tree.locale", c.Tree.Locale)
	v.SetDefault("fs.workers", c.FS.Workers)
	v.SetDefault("store.path", c.Store.Path)
	v.SetDefault("events.natsURL", c.Events.NATSURL)
	v.SetDefault("events.subject", c.Events.Subject)
	v.SetDefault("metrics.addr", c.Metrics.Addr)
}

// Load reads the configuration from the config file and FILETREE_* env vars.
// If the file doesn't exist, creates it with defaults.
// If parsing fails, stores the error and returns defaults.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.parseErr = nil

	configDir := filepath.Dir(m.path)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		log.Printf("Config: failed to create directory %s: %v", configDir, err)
		return err
	}

	if _, err := os.Stat(m.path); errors.Is(err, os.ErrNotExist) {
		log.Printf("Config: creating default config at %s", m.path)
		m.config = DefaultConfig()
		if saveErr := m.saveUnlocked(); saveErr != nil {
			log.Printf("Config: failed to save default config: %v", saveErr)
			return saveErr
		}
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetConfigType("json")
	v.SetConfigFile(m.path)
	v.SetEnvPrefix("FILETREE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var parseErr viper.ConfigParseError
		if !errors.As(err, &parseErr) {
			log.Printf("Config: failed to read %s: %v", m.path, err)
			return err
		}
		// Keep defaults plus env; the error is shown to the user
		log.Printf("Config: JSON parse error: %v", err)
		m.parseErr = err
		v = viper.New()
		setDefaults(v, DefaultConfig())
		v.SetEnvPrefix("FILETREE")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	if _, err := fs.ParseNameOrder(cfg.Tree.NameOrder); err != nil {
		log.Printf("Config: %v, using fold", err)
		cfg.Tree.NameOrder = "fold"
	}

	m.config = &cfg
	return nil
}

// saveUnlocked saves config without acquiring lock (caller must hold lock)
func (m *Manager) saveUnlocked() error {
	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0o644)
}

// Get returns a copy of the current configuration
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config == nil {
		return *DefaultConfig()
	}
	return *m.config
}

// ParseError returns the parsing error if config failed to load
func (m *Manager) ParseError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.parseErr
}

// SetShowDotfiles updates the show dotfiles setting
func (m *Manager) SetShowDotfiles(show bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.Tree.ShowDotfiles = show
	return m.saveUnlocked()
}

// SetCompactChains updates the single-chain compaction setting
func (m *Manager) SetCompactChains(on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.Tree.CompactChains = on
	return m.saveUnlocked()
}

// SetAutoOpenLast updates the auto-open last folder setting
func (m *Manager) SetAutoOpenLast(on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.Tree.AutoOpenLast = on
	return m.saveUnlocked()
}

// SetNameOrder updates the name ordering policy: fold, exact or collate.
func (m *Manager) SetNameOrder(order string) error {
	if _, err := fs.ParseNameOrder(order); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.Tree.NameOrder = order
	return m.saveUnlocked()
}

// FSOptions returns the listing options derived from the tree settings.
func (c Config) FSOptions() fs.Options {
	order, _ := fs.ParseNameOrder(c.Tree.NameOrder)
	return fs.Options{
		Order:        order,
		Locale:       c.Tree.Locale,
		ShowDotfiles: c.Tree.ShowDotfiles,
	}
}

// GenerateConfig backs up the config at path and writes a fresh default.
// Returns the backup path if a backup was created, or empty string if no
// existing config.
func GenerateConfig(path string) (backupPath string, err error) {
	if path == "" {
		path = ConfigPath()
	}

	if _, err := os.Stat(path); err == nil {
		timestamp := time.Now().Format("20060102-150405")
		backupPath = filepath.Join(filepath.Dir(path), "config.backup."+timestamp+".json")

		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read existing config: %w", err)
		}
		if err := os.WriteFile(backupPath, data, 0o644); err != nil {
			return "", fmt.Errorf("failed to write backup: %w", err)
		}
	}

	m := &Manager{config: DefaultConfig(), path: path}
	if err := m.saveUnlocked(); err != nil {
		return backupPath, fmt.Errorf("failed to write config: %w", err)
	}
	return backupPath, nil
}
