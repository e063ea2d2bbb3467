// Package config loads settings for the feedback CLI and the reference backend.
//
// Values are layered, lowest precedence first:
//
//  1. DefaultConfig, so both binaries run out of the box against localhost.
//  2. An optional YAML file (missing files are not an error).
//  3. An optional .env file in the working directory, loaded into the process
//     environment. Variables that are already set are left alone.
//  4. Environment variables such as FEEDBACK_API_BASE_URL or PORT.
//
// Validate is run last so that a bad value fails at startup rather than on the
// first submission.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/bluefermion/marketfeedback/internal/model"
)

// Config is the full configuration for both binaries.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Feedback FeedbackConfig `yaml:"feedback"`
	User     UserConfig     `yaml:"user"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

// APIConfig points the client at the feedback backend.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Prefix  string        `yaml:"prefix"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// FeedbackConfig selects the dialog's policy variant.
type FeedbackConfig struct {
	StrictComment   bool          `yaml:"strict_comment"`
	EditAfterSubmit bool          `yaml:"edit_after_submit"`
	LegacyAliases   bool          `yaml:"legacy_aliases"`
	ResetDelay      time.Duration `yaml:"reset_delay"`
	Endpoint        string        `yaml:"endpoint"`
}

// UserConfig identifies the acting user. An empty ID means anonymous.
type UserConfig struct {
	ID   string `yaml:"id"`
	Role string `yaml:"role"`
}

// ServerConfig configures the reference backend.
type ServerConfig struct {
	Port   string `yaml:"port"`
	DBPath string `yaml:"db_path"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	File        string `yaml:"file"`  // empty means stderr
	Development bool   `yaml:"development"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8080",
			Timeout: 15 * time.Second,
		},
		Feedback: FeedbackConfig{
			EditAfterSubmit: true,
			ResetDelay:      300 * time.Millisecond,
			Endpoint:        "/feedback",
		},
		Server: ServerConfig{
			Port:   "8080",
			DBPath: "feedback.db",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (may be empty),
// .env and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes c as YAML to path.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides. Unset or empty
// variables leave the current value in place.
func (c *Config) applyEnvOverrides() error {
	str := map[string]*string{
		"FEEDBACK_API_BASE_URL": &c.API.BaseURL,
		"FEEDBACK_API_PREFIX":   &c.API.Prefix,
		"FEEDBACK_API_TOKEN":    &c.API.Token,
		"FEEDBACK_ENDPOINT":     &c.Feedback.Endpoint,
		"FEEDBACK_USER_ID":      &c.User.ID,
		"FEEDBACK_USER_ROLE":    &c.User.Role,
		"PORT":                  &c.Server.Port,
		"FEEDBACK_DB_PATH":      &c.Server.DBPath,
		"LOG_LEVEL":             &c.Log.Level,
		"LOG_FILE":              &c.Log.File,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	flags := map[string]*bool{
		"FEEDBACK_STRICT_COMMENT":    &c.Feedback.StrictComment,
		"FEEDBACK_EDIT_AFTER_SUBMIT": &c.Feedback.EditAfterSubmit,
		"FEEDBACK_LEGACY_ALIASES":    &c.Feedback.LegacyAliases,
		"LOG_DEVELOPMENT":            &c.Log.Development,
	}
	for key, dst := range flags {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		*dst = b
	}

	durations := map[string]*time.Duration{
		"FEEDBACK_API_TIMEOUT": &c.API.Timeout,
		"FEEDBACK_RESET_DELAY": &c.Feedback.ResetDelay,
	}
	for key, dst := range durations {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		*dst = d
	}
	return nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid API base URL %q (want http(s)://host[:port])", c.API.BaseURL)
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("invalid API timeout: %s", c.API.Timeout)
	}
	if c.Feedback.ResetDelay < 0 {
		return fmt.Errorf("invalid reset delay: %s", c.Feedback.ResetDelay)
	}
	if c.Feedback.Endpoint == "" {
		return errors.New("feedback endpoint must not be empty")
	}
	if c.User.Role != "" && !model.IsUserType(c.User.Role) {
		return fmt.Errorf("invalid user role: %s (valid: %v)", c.User.Role, model.UserTypes)
	}
	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid server port: %q", c.Server.Port)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	return nil
}
