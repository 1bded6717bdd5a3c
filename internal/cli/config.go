package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/maskatlas/pkg/store"
)

// Config is the optional TOML configuration file loaded from
// ~/.config/maskatlas/config.toml (or $XDG_CONFIG_HOME/maskatlas/config.toml).
// Every field has a working zero value, so a missing file is not an error.
type Config struct {
	// Store selects the metadata backend: inline, redis, mongo or image.
	Store string `toml:"store"`

	// Table is the hash/collection name for the redis and mongo backends.
	Table string `toml:"table"`

	// Dir overrides the default atlas directory.
	Dir string `toml:"dir"`

	Redis RedisConfig `toml:"redis"`
	Mongo MongoConfig `toml:"mongo"`
}

// RedisConfig holds connection details for the redis backend.
type RedisConfig struct {
	Addr string `toml:"addr"`
}

// MongoConfig holds connection details for the mongo backend.
type MongoConfig struct {
	URI      string `toml:"uri"`
	Database string `toml:"database"`
}

// configPath returns the config file path using XDG standard
// (~/.config/maskatlas/config.toml).
func configPath() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// loadConfig reads the config file at path. A missing file yields the zero
// config; a malformed file is an error, since silently ignoring it would mask
// typos in backend settings.
func loadConfig(path string) (Config, error) {
	var cfg Config
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// loadDefaultConfig loads the config from the standard location.
func loadDefaultConfig() (Config, error) {
	path, err := configPath()
	if err != nil {
		return Config{}, nil
	}
	return loadConfig(path)
}

// storeConfig converts the file config into a store configuration.
// The method string is taken as-is; store.Open validates it.
func (c Config) storeConfig() store.Config {
	return store.Config{
		Method:    store.Method(c.Store),
		Table:     c.Table,
		RedisAddr: c.Redis.Addr,
		MongoURI:  c.Mongo.URI,
		MongoDB:   c.Mongo.Database,
	}
}
