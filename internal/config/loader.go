package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	configDir  = ".morvo"
	configFile = "config.json"
	dbFile     = "morvo.db"
)

// Loader manages reading and writing the config file.
type Loader struct {
	mu       sync.RWMutex
	config   *Config
	filePath string
	dataDir  string
}

// NewLoader creates a loader that stores config in ~/.morvo/config.json.
func NewLoader() (*Loader, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(home, configDir)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return &Loader{
		filePath: filepath.Join(dir, configFile),
		dataDir:  dir,
	}, nil
}

// NewLoaderAt creates a loader for an explicit config path. Files ending in
// .yaml or .yml are read and written as YAML, everything else as JSON.
func NewLoaderAt(path string) *Loader {
	return &Loader{
		filePath: path,
		dataDir:  filepath.Dir(path),
	}
}

// Load reads the config from disk and applies environment overrides.
// If the file doesn't exist, defaults are used.
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cfg, err := l.readFile()
	if err != nil {
		return nil, err
	}

	applyEnv(cfg)
	if cfg.Store.Path == "" {
		cfg.Store.Path = filepath.Join(l.dataDir, dbFile)
	}

	l.config = cfg
	return cfg, nil
}

// LoadFile returns defaults overlaid with the file contents only, without
// environment overrides. It is what Save may safely write back.
func (l *Loader) LoadFile() (*Config, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.readFile()
}

func (l *Loader) readFile() (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(l.filePath)
	switch {
	case err == nil:
		if err := l.decode(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", l.filePath, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to disk.
func (l *Loader) Save(cfg *Config) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := l.encode(cfg)
	if err != nil {
		return err
	}

	l.config = cfg
	return os.WriteFile(l.filePath, data, 0600)
}

// Get returns the currently loaded config (or defaults if not loaded yet).
func (l *Loader) Get() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.config == nil {
		return Defaults()
	}
	return l.config
}

// FilePath returns the config file path.
func (l *Loader) FilePath() string {
	return l.filePath
}

func (l *Loader) isYAML() bool {
	ext := strings.ToLower(filepath.Ext(l.filePath))
	return ext == ".yaml" || ext == ".yml"
}

func (l *Loader) decode(data []byte, cfg *Config) error {
	if l.isYAML() {
		return yaml.Unmarshal(data, cfg)
	}
	return json.Unmarshal(data, cfg)
}

func (l *Loader) encode(cfg *Config) ([]byte, error) {
	if l.isYAML() {
		return yaml.Marshal(cfg)
	}
	return json.MarshalIndent(cfg, "", "  ")
}

// applyEnv overlays deployment environment variables on top of the file config.
func applyEnv(cfg *Config) {
	cfg.Server.Addr = envOrDefault("MORVO_ADDR", cfg.Server.Addr)
	cfg.Store.Path = envOrDefault("MORVO_DB_PATH", cfg.Store.Path)
	cfg.Store.Driver = envOrDefault("MORVO_DB_DRIVER", cfg.Store.Driver)
	cfg.LLM.Provider = envOrDefault("MORVO_LLM_PROVIDER", cfg.LLM.Provider)
	cfg.LLM.Model = envOrDefault("MORVO_LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.TimeoutSecs = envIntOrDefault("MORVO_LLM_TIMEOUT_SECS", cfg.LLM.TimeoutSecs)

	if cfg.LLM.APIKey == "" {
		switch cfg.LLM.Provider {
		case "anthropic":
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "openai", "openrouter":
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}

	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		if cfg.Channels.Telegram == nil {
			cfg.Channels.Telegram = &TelegramConfig{}
		}
		cfg.Channels.Telegram.Token = token
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
