// Package config loads the server configuration from an optional YAML file
// and environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Override store backends.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

const (
	defaultListenAddr   = ":8080"
	defaultEnginePath   = "stockfish"
	defaultOverrideFile = "persona_overrides.json"
	defaultSQLitePath   = "data/personas.db"
	defaultRedisKey     = "chess-persona:overrides"
	defaultEngineTime   = 350 * time.Millisecond
	defaultSessionIdle  = 2 * time.Hour
	minMaxIdle          = time.Second
)

type Config struct {
	ListenAddr string         `yaml:"listen_addr"`
	Engine     EngineConfig   `yaml:"engine"`
	Overrides  OverrideConfig `yaml:"overrides"`
	Admin      AdminConfig    `yaml:"admin"`
	Sessions   SessionConfig  `yaml:"sessions"`
	Logging    LoggingConfig  `yaml:"logging"`
}

type EngineConfig struct {
	Path string `yaml:"path"`
	// Mode is "multipv" (ranked lines) or "bestmove" (single best only).
	Mode       string        `yaml:"mode"`
	PoolSize   int           `yaml:"pool_size"`
	EngineTime time.Duration `yaml:"engine_time"`
}

type OverrideConfig struct {
	Store       string `yaml:"store"`
	File        string `yaml:"file"`
	SQLitePath  string `yaml:"sqlite_path"`
	DatabaseDSN string `yaml:"database_dsn"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisKey    string `yaml:"redis_key"`
}

type AdminConfig struct {
	// PasswordHash is a bcrypt hash; empty leaves override mutation open.
	PasswordHash string `yaml:"password_hash"`
}

type SessionConfig struct {
	MaxIdle         time.Duration `yaml:"max_idle"`
	BatchConcurrent int           `yaml:"batch_concurrency"`
}

type LoggingConfig struct {
	Debug bool `yaml:"debug"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		ListenAddr: defaultListenAddr,
		Engine: EngineConfig{
			Path:       defaultEnginePath,
			Mode:       "multipv",
			PoolSize:   1,
			EngineTime: defaultEngineTime,
		},
		Overrides: OverrideConfig{
			Store:      StoreFile,
			File:       defaultOverrideFile,
			SQLitePath: defaultSQLitePath,
			RedisKey:   defaultRedisKey,
		},
		Sessions: SessionConfig{
			MaxIdle:         defaultSessionIdle,
			BatchConcurrent: 2,
		},
	}
}

// Load reads path (if non-empty) over the defaults, then applies env
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// FromEnv loads the file named by PERSONA_CONFIG, if any.
func FromEnv() (Config, error) {
	return Load(strings.TrimSpace(os.Getenv("PERSONA_CONFIG")))
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str("LISTEN_ADDR", &c.ListenAddr)
	str("STOCKFISH_PATH", &c.Engine.Path)
	str("ENGINE_MODE", &c.Engine.Mode)
	str("OVERRIDE_FILE", &c.Overrides.File)
	str("OVERRIDE_SQLITE_PATH", &c.Overrides.SQLitePath)
	str("DATABASE_URL", &c.Overrides.DatabaseDSN)
	str("OVERRIDE_DATABASE_DSN", &c.Overrides.DatabaseDSN)
	str("OVERRIDE_REDIS_ADDR", &c.Overrides.RedisAddr)
	str("ADMIN_PASSWORD_HASH", &c.Admin.PasswordHash)
	if v := strings.ToLower(strings.TrimSpace(getenv("OVERRIDE_STORE"))); v != "" {
		c.Overrides.Store = normalizeStore(v)
	}
	if v := strings.TrimSpace(getenv("ENGINE_POOL_SIZE")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ENGINE_POOL_SIZE: %w", err)
		}
		c.Engine.PoolSize = n
	}
	if v := strings.TrimSpace(getenv("DEBUG")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DEBUG: %w", err)
		}
		c.Logging.Debug = b
	}
	return nil
}

func normalizeStore(raw string) string {
	switch raw {
	case "mem":
		return StoreMemory
	case "json":
		return StoreFile
	case "postgresql", "pg", "db":
		return StorePostgres
	default:
		return raw
	}
}

func (c Config) validate() error {
	if c.ListenAddr == "" {
		return errors.New("listen_addr must be set")
	}
	switch c.Engine.Mode {
	case "", "multipv", "bestmove":
	default:
		return fmt.Errorf("invalid engine mode %q (supported: multipv, bestmove)", c.Engine.Mode)
	}
	if c.Engine.PoolSize <= 0 {
		return fmt.Errorf("engine pool_size must be > 0, got %d", c.Engine.PoolSize)
	}
	if c.Engine.EngineTime < 0 {
		return fmt.Errorf("engine_time must be >= 0")
	}
	if c.Sessions.MaxIdle < 0 || c.Sessions.BatchConcurrent < 0 {
		return fmt.Errorf("session limits must be >= 0")
	}
	if c.Sessions.MaxIdle > 0 && c.Sessions.MaxIdle < minMaxIdle {
		return fmt.Errorf("sessions.max_idle must be 0 (never prune) or >= %s, got %s", minMaxIdle, c.Sessions.MaxIdle)
	}
	switch c.Overrides.Store {
	case StoreMemory:
	case StoreFile:
		if c.Overrides.File == "" {
			return errors.New("overrides.file must be set for the file store")
		}
	case StoreSQLite:
		if c.Overrides.SQLitePath == "" {
			return errors.New("overrides.sqlite_path must be set for the sqlite store")
		}
	case StorePostgres:
		if c.Overrides.DatabaseDSN == "" {
			return errors.New("overrides.database_dsn must be set for the postgres store")
		}
	case StoreRedis:
		if c.Overrides.RedisAddr == "" {
			return errors.New("overrides.redis_addr must be set for the redis store")
		}
	default:
		return fmt.Errorf("invalid override store %q (supported: %s, %s, %s, %s, %s)",
			c.Overrides.Store, StoreMemory, StoreFile, StoreSQLite, StorePostgres, StoreRedis)
	}
	return nil
}
