package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Player   PlayerConfig   `mapstructure:"player"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Advanced AdvancedConfig `mapstructure:"advanced"`
}

// APIConfig holds settings for the site's REST backend
type APIConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Token      string        `mapstructure:"token"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// PlayerConfig holds playback settings
type PlayerConfig struct {
	LoadUserConfig bool `mapstructure:"load_user_config"`
	Fullscreen     bool `mapstructure:"fullscreen"`
	Volume         int  `mapstructure:"volume"`
}

// DatabaseConfig holds settings for the local sqlite store
type DatabaseConfig struct {
	Path           string `mapstructure:"path"`
	MaxConnections int    `mapstructure:"max_connections"`
	WALMode        bool   `mapstructure:"wal_mode"`
	AutoVacuum     bool   `mapstructure:"auto_vacuum"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // text or json
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
	Color      bool   `mapstructure:"color"`
}

// AdvancedConfig holds settings that most users never touch
type AdvancedConfig struct {
	Debug     bool            `mapstructure:"debug"`
	Clipboard ClipboardConfig `mapstructure:"clipboard"`
}

// ClipboardConfig allows overriding the system clipboard tool
type ClipboardConfig struct {
	Command string `mapstructure:"command"`
}

// GetConfigDir returns the directory where the config file lives
func GetConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "aniview")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "aniview"
	}
	return filepath.Join(home, ".config", "aniview")
}

// getStateDir returns the directory for logs and the local database
func getStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return os.TempDir()
	}
	return filepath.Join(home, ".local", "state")
}

// InitializeDirs creates the config and state directories if missing
func InitializeDirs() error {
	dirs := []string{
		GetConfigDir(),
		filepath.Join(getStateDir(), "aniview"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// SetDefaults registers default values on the given viper instance
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8080")
	v.SetDefault("api.token", "")
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("api.max_retries", 3)

	v.SetDefault("player.load_user_config", false)
	v.SetDefault("player.fullscreen", false)
	v.SetDefault("player.volume", 0)

	v.SetDefault("database.path", filepath.Join(getStateDir(), "aniview", "aniview.db"))
	v.SetDefault("database.max_connections", 4)
	v.SetDefault("database.wal_mode", true)
	v.SetDefault("database.auto_vacuum", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", filepath.Join(getStateDir(), "aniview", "aniview.log"))
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 14)
	v.SetDefault("logging.compress", true)
	v.SetDefault("logging.color", true)

	v.SetDefault("advanced.debug", false)
	v.SetDefault("advanced.clipboard.command", "")
}

// Load reads the configuration from the given file, falling back to the
// default location. The returned viper instance is used for hot reload.
func Load(cfgFile string) (*Config, *viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(GetConfigDir())
	}

	v.SetEnvPrefix("ANIVIEW")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults apply
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, v, nil
}

// SaveDefaultConfig writes a config file populated with defaults
func SaveDefaultConfig(path string) error {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	return v.WriteConfigAs(path)
}
