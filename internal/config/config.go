// Package config provides configuration parsing and validation for rendezcode.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete session configuration.
type Config struct {
	Relay   RelayConfig   `yaml:"relay"`
	Log     LogConfig     `yaml:"log"`
	Session SessionConfig `yaml:"session"`
}

// RelayConfig points at the untrusted rendezvous relay.
type RelayConfig struct {
	// URL is the relay base URL. Must end with "/".
	URL string `yaml:"url"`

	// AppID scopes the protocol so unrelated applications sharing a
	// relay cannot accidentally interoperate.
	AppID string `yaml:"app_id"`
}

// LogConfig mirrors the internal/logging options.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// SessionConfig tunes the protocol's timing and code shape.
type SessionConfig struct {
	// PollInterval is how often the long-poll loop re-checks the relay
	// while waiting for the peer.
	PollInterval time.Duration `yaml:"poll_interval"`

	// Timeout bounds how long a session will wait for the peer before
	// failing with Timeout.
	Timeout time.Duration `yaml:"timeout"`

	// NumWords is how many wordlist words follow the channel-id in a
	// generated code.
	NumWords int `yaml:"num_words"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Relay: RelayConfig{
			URL: "https://relay.rendezcode.example/",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Session: SessionConfig{
			PollInterval: 500 * time.Millisecond,
			Timeout:      180 * time.Second,
			NumWords:     2,
		},
	}
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes, starting from Default and
// overlaying whatever the document specifies.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// envVarRegex matches ${VAR} or $VAR patterns.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars replaces environment variable references with their values.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		var name string
		if strings.HasPrefix(match, "${") {
			name = match[2 : len(match)-1]
		} else {
			name = match[1:]
		}

		if idx := strings.Index(name, ":-"); idx != -1 {
			varName := name[:idx]
			defaultVal := name[idx+2:]
			if val, ok := os.LookupEnv(varName); ok {
				return val
			}
			return defaultVal
		}

		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Relay.URL == "" {
		errs = append(errs, "relay.url is required")
	} else if !strings.HasSuffix(c.Relay.URL, "/") {
		errs = append(errs, "relay.url must end with /")
	}
	if c.Relay.AppID == "" {
		errs = append(errs, "relay.app_id is required")
	}

	if !isValidLogLevel(c.Log.Level) {
		errs = append(errs, fmt.Sprintf("invalid log.level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}
	if !isValidLogFormat(c.Log.Format) {
		errs = append(errs, fmt.Sprintf("invalid log.format: %s (must be text or json)", c.Log.Format))
	}

	if c.Session.PollInterval <= 0 {
		errs = append(errs, "session.poll_interval must be positive")
	}
	if c.Session.Timeout <= 0 {
		errs = append(errs, "session.timeout must be positive")
	}
	if c.Session.NumWords < 2 {
		errs = append(errs, "session.num_words must be at least 2")
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func isValidLogFormat(format string) bool {
	switch format {
	case "text", "json":
		return true
	default:
		return false
	}
}

// String returns a YAML representation of the config, safe to log: the
// app_id is not a secret, and no other field here ever is.
func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}
