package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, err := range e {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errors ValidationErrors

	// Validate backend URL
	if c.BackendURL == "" {
		errors = append(errors, ValidationError{
			Field:   "backend_url",
			Message: "backend URL must be specified",
		})
	} else if u, err := url.Parse(c.BackendURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "backend_url",
			Message: fmt.Sprintf("'%s' is not an http(s) URL", c.BackendURL),
		})
	}

	// Validate timeout
	if c.RequestTimeout < 0 {
		errors = append(errors, ValidationError{
			Field:   "request_timeout",
			Message: "must be non-negative (0 disables the timeout)",
		})
	}

	// Validate store
	validStores := []string{"file", "sqlite"}
	if !contains(validStores, c.Store) {
		errors = append(errors, ValidationError{
			Field:   "store",
			Message: fmt.Sprintf("unknown store '%s', valid: %s", c.Store, strings.Join(validStores, ", ")),
		})
	}

	// Validate data dir
	if c.DataDir == "" {
		errors = append(errors, ValidationError{
			Field:   "data_dir",
			Message: "data directory must be specified",
		})
	}

	// Validate log format
	validFormats := []string{"text", "json"}
	if !contains(validFormats, c.LogFormat) {
		errors = append(errors, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("unknown log format '%s', valid: %s", c.LogFormat, strings.Join(validFormats, ", ")),
		})
	}

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// GetConfigPrecedence returns a description of config source precedence
func GetConfigPrecedence() string {
	return `Configuration is loaded in the following order (later sources override earlier):

1. Built-in defaults
2. The first config file found: $RAGCHAT_CONFIG, ./ragchat.yaml, ~/.config/ragchat/ragchat.yaml
3. Environment variables (RAGCHAT_BACKEND_URL, RAGCHAT_STORE, ...), including a ./.env file
4. Command-line flags (--backend, --provider, --model, --verbose)
`
}
