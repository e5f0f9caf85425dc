package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ---------------------------------------------------------------------------
// Environment variable constants
// ---------------------------------------------------------------------------

const (
	EnvPrefix = "RAGCHAT"
	EnvConfig = "RAGCHAT_CONFIG" // path to custom config file
	EnvFile   = ".env"
)

// Defaults
const (
	DefaultBackendURL     = "http://localhost:8000"
	DefaultRequestTimeout = 2 * time.Minute
	DefaultStore          = "file"
	DefaultProvider       = "openai"
	DefaultLogLevel       = "warn"
	DefaultLogFormat      = "text"
	HistoryFileName       = "chat_history"
)

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

// Config holds all configuration for ragchat.
type Config struct {
	// --- Backend ---
	BackendURL     string        `mapstructure:"backend_url" json:"backend_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" json:"request_timeout"` // 0 = no timeout

	// --- Session defaults ---
	Provider string `mapstructure:"provider" json:"provider"`
	Model    string `mapstructure:"model" json:"model,omitempty"` // overrides the last used model

	// --- Persistence ---
	DataDir     string `mapstructure:"data_dir" json:"data_dir"`
	Store       string `mapstructure:"store" json:"store"` // "file" | "sqlite"
	HistoryFile string `mapstructure:"history_file" json:"history_file,omitempty"`

	// --- Logging ---
	LogLevel  string `mapstructure:"log_level" json:"log_level"`
	LogFormat string `mapstructure:"log_format" json:"log_format"`
	Verbose   bool   `mapstructure:"verbose" json:"verbose"`

	// File the config was read from, if any
	configFile string
}

// Load reads configuration from defaults, config files, a .env file and
// RAGCHAT_* environment variables, in increasing order of precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", EnvFile, err)
	}

	v := viper.New()

	// Set defaults
	v.SetDefault("backend_url", DefaultBackendURL)
	v.SetDefault("request_timeout", DefaultRequestTimeout)
	v.SetDefault("data_dir", GetConfigDir())
	v.SetDefault("store", DefaultStore)
	v.SetDefault("provider", DefaultProvider)
	v.SetDefault("model", "")
	v.SetDefault("history_file", "")
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("log_format", DefaultLogFormat)
	v.SetDefault("verbose", false)

	// Config file locations (precedence: custom > project > home)
	if customConfig := os.Getenv(EnvConfig); customConfig != "" {
		v.SetConfigFile(customConfig)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(GetConfigDir())
		v.SetConfigName("ragchat")
		v.SetConfigType("yaml")
	}

	// Environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	config.configFile = v.ConfigFileUsed()

	config.normalize()
	return &config, nil
}

func (c *Config) normalize() {
	c.BackendURL = strings.TrimRight(strings.TrimSpace(c.BackendURL), "/")
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	c.DataDir = expandHome(c.DataDir)
	if c.HistoryFile == "" && c.DataDir != "" {
		c.HistoryFile = filepath.Join(c.DataDir, HistoryFileName)
	}
	c.HistoryFile = expandHome(c.HistoryFile)
	if c.Verbose {
		c.LogLevel = "debug"
	}
}

// ApplyVerbose raises logging to debug level. Used by the --verbose flag.
func (c *Config) ApplyVerbose() {
	c.Verbose = true
	c.LogLevel = "debug"
}

// ConfigFile returns the path of the config file that was read, or "".
func (c *Config) ConfigFile() string {
	return c.configFile
}

// GetConfigDir returns the ragchat config directory
func GetConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ragchat"
	}
	return filepath.Join(home, ".config", "ragchat")
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// String returns a human-readable representation
func (c *Config) String() string {
	return fmt.Sprintf("Config{Backend: %s, Provider: %s, Model: %s, Store: %s}", c.BackendURL, c.Provider, c.Model, c.Store)
}
