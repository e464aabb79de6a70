// Package config loads the bridge configuration.
//
// Values are layered: built-in defaults, then an optional TOML file, then
// environment variables prefixed with WASM_BRIDGE_. The result is validated
// once; the router is built from it and never reads configuration again.
//
//	small_buffer_size = 10240
//	large_buffer_size = 102400
//	resource_dir      = "./resources"
//	log_level         = "info"
//
//	[battle]
//	initial_health = 300
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/wippyai/wasm-bridge/battle"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/logging"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "WASM_BRIDGE_"

// Buffer tiers.
const (
	DefaultSmallBufferSize = 10240
	DefaultLargeBufferSize = 102400
)

// Config is the complete bridge configuration.
type Config struct {
	LogLevel    string `toml:"log_level" env:"LOG_LEVEL"`
	ResourceDir string `toml:"resource_dir" env:"RESOURCE_DIR"`
	// ResourceCacheSize bounds the number of cached resources; 0 disables caching.
	ResourceCacheSize int             `toml:"resource_cache_size" env:"RESOURCE_CACHE_SIZE"`
	BytePoolSize      int             `toml:"byte_pool_size" env:"BYTE_POOL_SIZE"`
	RecordPoolSize    int             `toml:"record_pool_size" env:"RECORD_POOL_SIZE"`
	Seed              uint64          `toml:"seed" env:"SEED"`
	Battle            battle.Settings `toml:"battle" envPrefix:"BATTLE_"`
	SmallBufferSize   uint32          `toml:"small_buffer_size" env:"SMALL_BUFFER_SIZE"`
	LargeBufferSize   uint32          `toml:"large_buffer_size" env:"LARGE_BUFFER_SIZE"`
	WatchResources    bool            `toml:"watch_resources" env:"WATCH_RESOURCES"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		SmallBufferSize:   DefaultSmallBufferSize,
		LargeBufferSize:   DefaultLargeBufferSize,
		BytePoolSize:      32,
		RecordPoolSize:    64,
		ResourceCacheSize: 128,
		LogLevel:          "info",
		Battle:            battle.DefaultSettings(),
	}
}

// Load builds a Config from defaults, the TOML file at path (skipped when
// path is empty) and the process environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := ApplyFile(&cfg, path); err != nil {
			return cfg, err
		}
	}
	if err := ApplyEnv(&cfg, nil); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// ApplyFile overlays the TOML file at path. Keys absent from the file keep
// their current values.
func ApplyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.New(errors.PhaseConfig, errors.KindNotFound).
			Path(path).
			Cause(err).
			Detail("read config file").
			Build()
	}
	return ApplyTOML(cfg, data)
}

// ApplyTOML overlays a TOML document.
func ApplyTOML(cfg *Config, data []byte) error {
	if err := toml.Unmarshal(data, cfg); err != nil {
		return errors.InvalidFormat(errors.PhaseConfig, "parse config", err)
	}
	return nil
}

// ApplyEnv overlays environment variables. A nil environ reads the process
// environment.
func ApplyEnv(cfg *Config, environ map[string]string) error {
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return errors.InvalidFormat(errors.PhaseConfig, "parse env", err)
	}
	return nil
}

// Level returns the parsed log level.
func (c Config) Level() logging.Level {
	l, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return logging.LevelInfo
	}
	return l
}

// Validate checks every field.
func (c Config) Validate() error {
	switch {
	case c.SmallBufferSize == 0:
		return errors.InvalidArgument(errors.PhaseConfig, "small_buffer_size must be positive", c.SmallBufferSize)
	case c.LargeBufferSize < c.SmallBufferSize:
		return errors.InvalidArgument(errors.PhaseConfig,
			fmt.Sprintf("large_buffer_size %d below small_buffer_size %d", c.LargeBufferSize, c.SmallBufferSize),
			c.LargeBufferSize)
	case c.BytePoolSize < 0 || c.RecordPoolSize < 0 || c.ResourceCacheSize < 0:
		return errors.InvalidArgument(errors.PhaseConfig, "pool and cache sizes must not be negative", nil)
	case c.WatchResources && c.ResourceDir == "":
		return errors.InvalidArgument(errors.PhaseConfig, "watch_resources needs resource_dir", nil)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return c.Battle.Validate()
}
