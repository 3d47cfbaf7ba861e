package config

import (
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// GlobalConfig holds global tessera settings from ~/.tessera/config.yaml.
type GlobalConfig struct {
	Store StoreConfig `yaml:"store"`
	Debug DebugConfig `yaml:"debug"`
}

// StoreConfig holds index store settings.
type StoreConfig struct {
	// Path is the SQLite database location.
	Path string `yaml:"path"`
}

// DebugConfig holds debug log settings.
type DebugConfig struct {
	// RetentionDays is how long daily debug log files are kept.
	RetentionDays int `yaml:"retention_days"`
}

// DefaultGlobalConfig returns the default global configuration.
func DefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		Store: StoreConfig{
			Path: filepath.Join(GlobalConfigDir(), "tessera.db"),
		},
		Debug: DebugConfig{
			RetentionDays: 7,
		},
	}
}

// LoadGlobal reads ~/.tessera/config.yaml and applies environment overrides.
func LoadGlobal() (*GlobalConfig, error) {
	cfg := DefaultGlobalConfig()

	// Try to load from file
	configPath := filepath.Join(GlobalConfigDir(), "config.yaml")
	if data, err := os.ReadFile(configPath); err == nil {
		_ = yaml.Unmarshal(data, cfg) // Ignore unmarshal errors, use defaults
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = filepath.Join(GlobalConfigDir(), "tessera.db")
	}
	if cfg.Debug.RetentionDays <= 0 {
		cfg.Debug.RetentionDays = 7
	}

	// Apply environment overrides
	if path := os.Getenv("TESSERA_STORE_PATH"); path != "" {
		cfg.Store.Path = path
	}
	if days := os.Getenv("TESSERA_DEBUG_RETENTION_DAYS"); days != "" {
		if n, err := strconv.Atoi(days); err == nil && n > 0 {
			cfg.Debug.RetentionDays = n
		}
	}

	return cfg, nil
}

// GlobalConfigDir returns the path to ~/.tessera.
func GlobalConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".tessera")
	}
	return filepath.Join(homeDir, ".tessera")
}
