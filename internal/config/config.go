// Package config loads server settings from defaults, an optional config
// file, BLUNDERBOARD_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the server reads.
const EnvPrefix = "BLUNDERBOARD"

type Config struct {
	Addr     string         `mapstructure:"addr"`
	Log      LogConfig      `mapstructure:"log"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	ECODir   string         `mapstructure:"eco_dir"`
	CORS     CORSConfig     `mapstructure:"cors"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type EngineConfig struct {
	Path    string        `mapstructure:"path"`
	HashMB  int           `mapstructure:"hash_mb"`
	Threads int           `mapstructure:"threads"`
	Nice    int           `mapstructure:"nice"`
	Grace   time.Duration `mapstructure:"grace"`
}

type AnalysisConfig struct {
	AnalyzeTime  time.Duration `mapstructure:"analyze_time"`
	BotTime      time.Duration `mapstructure:"bot_time"`
	CacheEntries int           `mapstructure:"cache_entries"`
	DefaultElo   int           `mapstructure:"default_elo"`
	MinElo       int           `mapstructure:"min_elo"`
	MaxElo       int           `mapstructure:"max_elo"`
}

type ArchiveConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	UserAgent   string        `mapstructure:"user_agent"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Concurrency int           `mapstructure:"concurrency"`
	RedisURL    string        `mapstructure:"redis_url"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":5000")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("engine.path", "stockfish")
	v.SetDefault("engine.hash_mb", 64)
	v.SetDefault("engine.threads", 1)
	v.SetDefault("engine.nice", 0)
	v.SetDefault("engine.grace", 2*time.Second)

	v.SetDefault("analysis.analyze_time", 100*time.Millisecond)
	v.SetDefault("analysis.bot_time", 500*time.Millisecond)
	v.SetDefault("analysis.cache_entries", 100000)
	v.SetDefault("analysis.default_elo", 1200)
	v.SetDefault("analysis.min_elo", 1320)
	v.SetDefault("analysis.max_elo", 3190)

	v.SetDefault("archive.base_url", "https://api.chess.com/pub")
	v.SetDefault("archive.user_agent", "blunderboard/1.0")
	v.SetDefault("archive.timeout", 15*time.Second)
	v.SetDefault("archive.concurrency", 4)
	v.SetDefault("archive.redis_url", "")
	v.SetDefault("archive.cache_ttl", time.Hour)

	v.SetDefault("eco_dir", "")
	v.SetDefault("cors.allowed_origins", []string{"*"})
}

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"addr":          "addr",
	"log-level":     "log.level",
	"log-format":    "log.format",
	"stockfish":     "engine.path",
	"engine-hash":   "engine.hash_mb",
	"engine-thread": "engine.threads",
	"analyze-time":  "analysis.analyze_time",
	"bot-time":      "analysis.bot_time",
	"cache-entries": "analysis.cache_entries",
	"eco-dir":       "eco_dir",
	"redis-url":     "archive.redis_url",
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "config file (toml, yaml or json)")
	fs.String("addr", "", "listen address")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("log-format", "", "log format (console, json)")
	fs.String("stockfish", "", "path to Stockfish executable")
	fs.Int("engine-hash", 0, "Stockfish hash MB")
	fs.Int("engine-thread", 0, "Stockfish threads")
	fs.Duration("analyze-time", 0, "engine time per analysed position")
	fs.Duration("bot-time", 0, "engine time per bot move")
	fs.Int("cache-entries", 0, "evaluation cache size (0 disables)")
	fs.String("eco-dir", "", "directory containing ECO .tsv files")
	fs.String("redis-url", "", "redis URL for the archive cache (empty = disabled)")
	return fs
}

// Load builds the configuration for the given command-line arguments
// (without the program name).
func Load(args []string) (*Config, error) {
	fs := newFlagSet("blunderboard")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("engine.path", EnvPrefix+"_ENGINE_PATH", "STOCKFISH_PATH"); err != nil {
		return nil, err
	}

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Engine.Path == "" {
		errs = append(errs, errors.New("engine.path is empty"))
	}
	if c.Analysis.AnalyzeTime <= 0 {
		errs = append(errs, fmt.Errorf("analysis.analyze_time must be positive, got %s", c.Analysis.AnalyzeTime))
	}
	if c.Analysis.BotTime <= 0 {
		errs = append(errs, fmt.Errorf("analysis.bot_time must be positive, got %s", c.Analysis.BotTime))
	}
	if c.Engine.Grace < 0 {
		errs = append(errs, fmt.Errorf("engine.grace must not be negative, got %s", c.Engine.Grace))
	}
	if c.Analysis.CacheEntries < 0 {
		errs = append(errs, fmt.Errorf("analysis.cache_entries must not be negative"))
	}
	if c.Analysis.MinElo > c.Analysis.MaxElo {
		errs = append(errs, fmt.Errorf("analysis.min_elo %d above max_elo %d", c.Analysis.MinElo, c.Analysis.MaxElo))
	}
	if c.Archive.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("archive.concurrency must be at least 1, got %d", c.Archive.Concurrency))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
