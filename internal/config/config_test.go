package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test from an empty directory with a fake home so no
// real config or .env file is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(EnvConfig, "")
	for _, key := range []string{"BACKEND_URL", "REQUEST_TIMEOUT", "DATA_DIR", "STORE", "PROVIDER", "MODEL", "LOG_LEVEL", "LOG_FORMAT", "HISTORY_FILE", "VERBOSE"} {
		t.Setenv(EnvPrefix+"_"+key, "")
		os.Unsetenv(EnvPrefix + "_" + key)
	}
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return home
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultBackendURL, cfg.BackendURL)
	assert.Equal(t, DefaultRequestTimeout, cfg.RequestTimeout)
	assert.Equal(t, filepath.Join(home, ".config", "ragchat"), cfg.DataDir)
	assert.Equal(t, "file", cfg.Store)
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, "", cfg.Model)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, filepath.Join(cfg.DataDir, HistoryFileName), cfg.HistoryFile)
	assert.Equal(t, "", cfg.ConfigFile())
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFile(t *testing.T) {
	isolate(t)
	yaml := "backend_url: http://rag.internal:9000/\nrequest_timeout: 30s\nstore: SQLite\nmodel: gpt-x\n"
	require.NoError(t, os.WriteFile("ragchat.yaml", []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://rag.internal:9000", cfg.BackendURL)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "sqlite", cfg.Store)
	assert.Equal(t, "gpt-x", cfg.Model)
	assert.NotEmpty(t, cfg.ConfigFile())
}

func TestLoadCustomConfigFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: anthropic\ndata_dir: ~/rag\n"), 0644))
	t.Setenv(EnvConfig, path)

	cfg, err := Load()
	require.NoError(t, err)

	home, _ := os.UserHomeDir()
	assert.Equal(t, "anthropic", cfg.Provider)
	assert.Equal(t, filepath.Join(home, "rag"), cfg.DataDir)
	assert.Equal(t, path, cfg.ConfigFile())
}

func TestLoadEnvOverridesFile(t *testing.T) {
	isolate(t)
	require.NoError(t, os.WriteFile("ragchat.yaml", []byte("provider: anthropic\n"), 0644))
	t.Setenv("RAGCHAT_PROVIDER", "xai")
	t.Setenv("RAGCHAT_VERBOSE", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "xai", cfg.Provider)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadDotEnv(t *testing.T) {
	isolate(t)
	require.NoError(t, os.WriteFile(EnvFile, []byte("RAGCHAT_BACKEND_URL=https://rag.example.com\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("RAGCHAT_BACKEND_URL") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://rag.example.com", cfg.BackendURL)
}

func TestLoadBrokenConfigFile(t *testing.T) {
	isolate(t)
	require.NoError(t, os.WriteFile("ragchat.yaml", []byte("backend_url: [unterminated\n"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			BackendURL: "http://localhost:8000",
			DataDir:    "/tmp/ragchat",
			Store:      "file",
			LogFormat:  "text",
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"empty backend", func(c *Config) { c.BackendURL = "" }, "backend_url"},
		{"bad scheme", func(c *Config) { c.BackendURL = "ftp://host" }, "backend_url"},
		{"no host", func(c *Config) { c.BackendURL = "http://" }, "backend_url"},
		{"negative timeout", func(c *Config) { c.RequestTimeout = -time.Second }, "request_timeout"},
		{"unknown store", func(c *Config) { c.Store = "redis" }, "store"},
		{"empty data dir", func(c *Config) { c.DataDir = "" }, "data_dir"},
		{"unknown log format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
	}

	require.NoError(t, valid().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.field, verrs[0].Field)
			assert.Contains(t, err.Error(), "configuration validation failed")
		})
	}
}

func TestApplyVerbose(t *testing.T) {
	cfg := &Config{LogLevel: "warn"}
	cfg.ApplyVerbose()
	assert.True(t, cfg.Verbose)
	assert.Equal(t, "debug", cfg.LogLevel)
}
