// Package config loads formulacalc settings from TOML and builds the logger
// they describe.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vogtb/go-spreadsheet/packages/formula"
)

const (
	DefaultAddr     = ":8080"
	DefaultLogLevel = "info"
)

type Config struct {
	Engine EngineConfig `toml:"engine"`
	Log    LogConfig    `toml:"log"`
	Server ServerConfig `toml:"server"`
	Store  StoreConfig  `toml:"store"`
}

type EngineConfig struct {
	// CacheLimit is the number of parsed formulas kept before the expression
	// cache is flushed
	CacheLimit int `toml:"cache_limit"`
}

type LogConfig struct {
	// Level is a zap level name, or "off"
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type StoreConfig struct {
	// Path of the bbolt file; empty keeps cells in memory only
	Path string `toml:"path"`
}

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		Engine: EngineConfig{CacheLimit: formula.DefaultCacheLimit},
		Log:    LogConfig{Level: DefaultLogLevel},
		Server: ServerConfig{Addr: DefaultAddr},
	}
}

// Load reads path over the defaults. an empty path returns the defaults.
// keys the file sets that Config does not know are errors.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	meta, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		return cfg, fmt.Errorf("config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return cfg, cfg.Validate()
}

// Validate reports every invalid setting
func (c Config) Validate() error {
	var errs error
	if c.Engine.CacheLimit <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("engine.cache_limit must be positive, got %d", c.Engine.CacheLimit))
	}
	if _, err := c.Log.level(); err != nil && !errors.Is(err, errLoggingOff) {
		errs = multierr.Append(errs, err)
	}
	if c.Server.Addr == "" {
		errs = multierr.Append(errs, errors.New("server.addr must not be empty"))
	}
	return errs
}

var errLoggingOff = errors.New("logging off")

func (l LogConfig) level() (zapcore.Level, error) {
	if strings.EqualFold(l.Level, "off") {
		return zapcore.InfoLevel, errLoggingOff
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return level, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// Logger builds the configured zap logger
func (c Config) Logger() (*zap.Logger, error) {
	level, err := c.Log.level()
	if errors.Is(err, errLoggingOff) {
		return zap.NewNop(), nil
	}
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

// EngineOptions returns the engine options the configuration implies
func (c Config) EngineOptions() []formula.Option {
	return []formula.Option{formula.WithCacheLimit(c.Engine.CacheLimit)}
}
