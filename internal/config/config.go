// Package config loads application configuration from a YAML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root of the application configuration.
type Config struct {
	Logging     LoggingConfig     `mapstructure:"logging"`
	Log         LogConfig         `mapstructure:"log"`
	Definitions DefinitionsConfig `mapstructure:"definitions"`
	Session     SessionConfig     `mapstructure:"session"`
	Overlay     OverlayConfig     `mapstructure:"overlay"`
	Database    DatabaseConfig    `mapstructure:"database"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LogConfig locates the combat log files to follow.
type LogConfig struct {
	// Dir is the game's combat log directory; the newest file is followed.
	Dir string `mapstructure:"dir"`
	// PollInterval is how often the tail loop checks for new lines.
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// DefinitionsConfig locates the boss/effect/timer definition files.
type DefinitionsConfig struct {
	Dir string `mapstructure:"dir"`
}

// SessionConfig tunes the live session pipeline.
type SessionConfig struct {
	// TickInterval drives timer expiry and effect tombstone purging between
	// log lines.
	TickInterval time.Duration `mapstructure:"tick_interval"`
}

// OverlayConfig controls the WebSocket snapshot server the overlay UI
// connects to.
type OverlayConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
	// SnapshotInterval is how often state snapshots are pushed to clients.
	SnapshotInterval time.Duration `mapstructure:"snapshot_interval"`
}

// DatabaseConfig holds PostgreSQL connection settings for the optional
// encounter recorder.
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// DSN renders the config as a pgx connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// Load reads configuration from the given file. Missing file is not an
// error; defaults plus RAIDWATCH_* environment overrides apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("RAIDWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("log.poll_interval", 250*time.Millisecond)

	v.SetDefault("definitions.dir", "definitions")

	v.SetDefault("session.tick_interval", 100*time.Millisecond)

	v.SetDefault("overlay.enabled", false)
	v.SetDefault("overlay.address", "127.0.0.1:8734")
	v.SetDefault("overlay.snapshot_interval", 250*time.Millisecond)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "raidwatch")
	v.SetDefault("database.database", "raidwatch")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 4)
}
