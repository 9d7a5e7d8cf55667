// Package config loads engine settings from files and the environment and
// assembles a ready-to-use Executor from them.
//
// Settings are resolved by viper with this precedence: explicit file >
// environment variables (DAGFLOW_ prefix, dots as underscores) > defaults.
// A typical dagflow.yaml:
//
//	maxWorkers: 8
//	logLevel: debug
//	stateStore:
//	  backend: redis
//	  addr: localhost:6379
//	  keyPrefix: "dagflow:"
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dagflow-io/dagflow/flow"
	"github.com/dagflow-io/dagflow/flow/store"
)

// StateStoreConfig selects and configures the persistence backend.
type StateStoreConfig struct {
	// Backend is one of "none", "memory", "redis", "sqlite".
	Backend string `mapstructure:"backend"`

	// Redis settings.
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"keyPrefix"`
	Timeout   time.Duration `mapstructure:"timeout"`

	// Path is the SQLite database file.
	Path string `mapstructure:"path"`
}

// Config is the full engine configuration.
type Config struct {
	MaxWorkers int              `mapstructure:"maxWorkers"`
	LogLevel   string           `mapstructure:"logLevel"`
	StateStore StateStoreConfig `mapstructure:"stateStore"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("maxWorkers", flow.DefaultMaxWorkers)
	v.SetDefault("logLevel", "info")
	v.SetDefault("stateStore.backend", "none")
	v.SetDefault("stateStore.addr", "localhost:6379")
	v.SetDefault("stateStore.timeout", 5*time.Second)
	v.SetDefault("stateStore.path", "dagflow.db")
	v.SetEnvPrefix("DAGFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configuration from the given file, or from defaults and the
// environment alone when path is empty.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Build assembles an Executor from the configuration.
//
// An unreachable store backend does not fail the build: the engine logs one
// warning and runs without persistence, matching the executor's own
// best-effort treatment of the store at runtime. A misconfigured backend
// name is a hard error.
func (c *Config) Build(ctx context.Context) (*flow.Executor, error) {
	level, err := flow.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logLevel: %w", err)
	}
	logger := flow.NewLogger(level)

	st, err := c.buildStore(ctx)
	if err != nil {
		return nil, err
	}
	if st == nil {
		logger.Warning("state store unavailable, running without persistence",
			map[string]any{"backend": c.StateStore.Backend})
		st = flow.NewNopStore()
	} else {
		logger.AttachStore(st)
	}

	return flow.NewExecutor(
		flow.WithMaxWorkers(c.MaxWorkers),
		flow.WithLogger(logger),
		flow.WithStore(st),
	), nil
}

// buildStore returns (nil, nil) when the configured backend exists but is
// unreachable, so Build can degrade instead of failing.
func (c *Config) buildStore(ctx context.Context) (flow.StateStore, error) {
	s := c.StateStore
	switch strings.ToLower(s.Backend) {
	case "", "none":
		return flow.NewNopStore(), nil
	case "memory":
		return store.NewMemStore(), nil
	case "redis":
		rs, err := store.NewRedisStore(ctx, store.RedisOptions{
			Addr:      s.Addr,
			Password:  s.Password,
			DB:        s.DB,
			KeyPrefix: s.KeyPrefix,
			Timeout:   s.Timeout,
		})
		if err != nil {
			return nil, nil
		}
		return rs, nil
	case "sqlite":
		ss, err := store.NewSQLiteStore(s.Path)
		if err != nil {
			return nil, nil
		}
		return ss, nil
	default:
		return nil, fmt.Errorf("unknown stateStore backend: %q", s.Backend)
	}
}
