// Package config loads weekly-stars configuration from built-in defaults,
// an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all configuration for weekly-stars.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Log       LogConfig       `mapstructure:"log"`
	Challenge ChallengeConfig `mapstructure:"challenge"`
	Backup    BackupConfig    `mapstructure:"backup"`
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Addr       string `mapstructure:"addr"`
	CORSOrigin string `mapstructure:"cors_origin"`
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	// Backend is one of memory, postgres, sqlite, mongo.
	Backend       string `mapstructure:"backend"`
	PostgresURL   string `mapstructure:"postgres_url"`
	SQLitePath    string `mapstructure:"sqlite_path"`
	MongoURI      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database"`
}

// LedgerConfig holds household rules.
type LedgerConfig struct {
	SafeSeed        int    `mapstructure:"safe_seed"`
	AutoWeeklyReset bool   `mapstructure:"auto_weekly_reset"`
	ResetAllRewards string `mapstructure:"reset_all_rewards"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ChallengeConfig holds quiz generation settings.
type ChallengeConfig struct {
	// Generator is simple or anthropic.
	Generator       string `mapstructure:"generator"`
	AnthropicModel  string `mapstructure:"anthropic_model"`
	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
	CacheSize       int    `mapstructure:"cache_size"`
}

// BackupConfig holds backup destinations. S3 wins when a bucket is set.
type BackupConfig struct {
	Dir string   `mapstructure:"dir"`
	S3  S3Config `mapstructure:"s3"`
}

// S3Config locates backups in an S3 bucket.
type S3Config struct {
	Bucket   string `mapstructure:"bucket"`
	Region   string `mapstructure:"region"`
	Prefix   string `mapstructure:"prefix"`
	Endpoint string `mapstructure:"endpoint"`
}

var backends = []string{"memory", "postgres", "sqlite", "mongo"}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	ok := false
	for _, b := range backends {
		ok = ok || c.Storage.Backend == b
	}
	if !ok {
		return fmt.Errorf("storage.backend must be one of %s, got %q", strings.Join(backends, ", "), c.Storage.Backend)
	}
	if c.Ledger.SafeSeed < 0 {
		return fmt.Errorf("ledger.safe_seed must not be negative, got %d", c.Ledger.SafeSeed)
	}
	switch c.Ledger.ResetAllRewards {
	case "unclaim", "keep", "delete":
	default:
		return fmt.Errorf("ledger.reset_all_rewards must be unclaim, keep or delete, got %q", c.Ledger.ResetAllRewards)
	}
	switch c.Challenge.Generator {
	case "simple", "anthropic":
	default:
		return fmt.Errorf("challenge.generator must be simple or anthropic, got %q", c.Challenge.Generator)
	}
	return nil
}

// Loader keeps the viper instance around so the file can be watched.
type Loader struct {
	v *viper.Viper
}

// Load reads configuration with this precedence (highest first):
//  1. Environment variables (STARS_*, PORT, DATABASE_URL, ANTHROPIC_API_KEY)
//  2. The file at path, or ./stars.yaml, or the user config file
//  3. Built-in defaults
func Load(path string) (*Config, *Loader, error) {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("stars")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(getUserConfigDir())
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, &Loader{v: v}, nil
}

// LoadFromPath loads configuration from a specific file (for testing).
// The environment is ignored.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return decode(v)
}

// File returns the config file in use, or "" when running on defaults.
func (l *Loader) File() string {
	return l.v.ConfigFileUsed()
}

// Watch calls onChange with the re-read configuration every time the
// config file changes. Invalid edits are reported through onError and
// otherwise ignored.
func (l *Loader) Watch(onChange func(*Config), onError func(error)) {
	if l.File() == "" {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(l.v)
		if err != nil {
			onError(fmt.Errorf("reload %s: %w", e.Name, err))
			return
		}
		onChange(cfg)
	})
	l.v.WatchConfig()
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Challenge.AnthropicAPIKey = os.ExpandEnv(cfg.Challenge.AnthropicAPIKey)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("STARS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.BindEnv("server.addr", "STARS_SERVER_ADDR")
	v.BindEnv("storage.postgres_url", "STARS_STORAGE_POSTGRES_URL", "DATABASE_URL")
	v.BindEnv("challenge.anthropic_api_key", "STARS_CHALLENGE_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("STARS_SERVER_ADDR") == "" {
		v.SetDefault("server.addr", ":"+port)
	}
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.cors_origin", d.Server.CORSOrigin)

	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.postgres_url", "")
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.mongo_uri", d.Storage.MongoURI)
	v.SetDefault("storage.mongo_database", d.Storage.MongoDatabase)

	v.SetDefault("ledger.safe_seed", d.Ledger.SafeSeed)
	v.SetDefault("ledger.auto_weekly_reset", d.Ledger.AutoWeeklyReset)
	v.SetDefault("ledger.reset_all_rewards", d.Ledger.ResetAllRewards)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("challenge.generator", d.Challenge.Generator)
	v.SetDefault("challenge.anthropic_model", d.Challenge.AnthropicModel)
	v.SetDefault("challenge.anthropic_api_key", "")
	v.SetDefault("challenge.cache_size", d.Challenge.CacheSize)

	v.SetDefault("backup.dir", d.Backup.Dir)
	v.SetDefault("backup.s3.bucket", "")
	v.SetDefault("backup.s3.region", "")
	v.SetDefault("backup.s3.prefix", d.Backup.S3.Prefix)
	v.SetDefault("backup.s3.endpoint", "")
}

// getUserConfigDir returns the XDG config directory for weekly-stars.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "weekly-stars")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "weekly-stars")
	}
	return filepath.Join(home, ".config", "weekly-stars")
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:       ":8080",
			CORSOrigin: "*",
		},
		Storage: StorageConfig{
			Backend:       "memory",
			SQLitePath:    "stars.db",
			MongoURI:      "mongodb://localhost:27017",
			MongoDatabase: "weekly_stars",
		},
		Ledger: LedgerConfig{
			SafeSeed:        3,
			ResetAllRewards: "unclaim",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Challenge: ChallengeConfig{
			Generator:      "simple",
			AnthropicModel: "claude-sonnet-4-20250514",
			CacheSize:      128,
		},
		Backup: BackupConfig{
			Dir: "backups",
			S3:  S3Config{Prefix: "weekly-stars/"},
		},
	}
}
