package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Cache backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config represents the global ~/.wpp/config.toml.
type Config struct {
	DefaultSession string `toml:"default_session"`
	Log            Log    `toml:"log"`
	Cache          Cache  `toml:"cache"`
	Puppet         Puppet `toml:"puppet"`
}

// Log configures the daemon log file.
type Log struct {
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// Cache selects where the per-user namespaces live.
type Cache struct {
	Backend       string `toml:"backend"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPoolSize int    `toml:"redis_pool_size"`
}

// Puppet tunes the adapter.
type Puppet struct {
	UserName         string   `toml:"user_name"`
	RequestTimeout   Duration `toml:"request_timeout"`
	LogoutGrace      Duration `toml:"logout_grace"`
	SyncInterval     Duration `toml:"sync_interval"`
	BatteryThreshold int      `toml:"battery_threshold"`
	LoginBatchSize   int      `toml:"login_batch_size"`
	ReadyBatchSize   int      `toml:"ready_batch_size"`
	HistoryLimit     int      `toml:"history_limit"`
	SendRate         float64  `toml:"send_rate"`
	SendBurst        int      `toml:"send_burst"`
}

// Duration is a time.Duration written as "30s" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Log: Log{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
			Compress:   true,
		},
		Cache: Cache{
			Backend:       BackendSQLite,
			RedisAddr:     "127.0.0.1:6379",
			RedisPoolSize: 10,
		},
		Puppet: Puppet{
			RequestTimeout:   Duration{30 * time.Second},
			LogoutGrace:      Duration{30 * time.Second},
			SyncInterval:     Duration{5 * time.Minute},
			BatteryThreshold: 0,
			LoginBatchSize:   500,
			ReadyBatchSize:   100,
			HistoryLimit:     200,
			SendRate:         1,
			SendBurst:        5,
		},
	}
}

// Load reads config from the given path on top of Default. Returns error if file missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, falling back to Default when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Validate rejects values the daemon cannot run with.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case BackendSQLite, BackendRedis:
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.Cache.Backend == BackendRedis && c.Cache.RedisAddr == "" {
		return errors.New("redis backend needs redis_addr")
	}
	if c.Puppet.RequestTimeout.Duration <= 0 {
		return errors.New("request_timeout must be positive")
	}
	if c.Puppet.BatteryThreshold < 0 || c.Puppet.BatteryThreshold > 100 {
		return fmt.Errorf("battery_threshold %d out of range 0-100", c.Puppet.BatteryThreshold)
	}
	return nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
