// Package config loads the process configuration once at startup.
//
// Sources, lowest precedence first: built-in defaults, an optional YAML
// file, an optional .env file (never overriding variables already set), and
// the process environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultHost     = "0.0.0.0"
	DefaultPort     = 8080
	DefaultLogLevel = "info"
)

// Config is the whole process configuration. It is immutable after Load.
type Config struct {
	Jenkins  JenkinsConfig `yaml:"jenkins"`
	HTTP     HTTPConfig    `yaml:"http"`
	LogLevel string        `yaml:"log_level"`
}

// JenkinsConfig holds the single remote endpoint and its credentials.
type JenkinsConfig struct {
	URL       string `yaml:"url"`
	Username  string `yaml:"username"`
	Token     string `yaml:"token"`
	VerifySSL *bool  `yaml:"verify_ssl"`
}

// HTTPConfig controls the HTTP front-end listener.
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Error reports required settings that are absent. It is fatal at startup.
type Error struct {
	Missing []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("missing required configuration: %s must be set", strings.Join(e.Missing, ", "))
}

// Load builds the configuration from defaults, the YAML file at path (if
// non-empty), and the environment, then validates it.
func Load(path string) (Config, error) {
	cfg := Config{
		HTTP:     HTTPConfig{Host: DefaultHost, Port: DefaultPort},
		LogLevel: DefaultLogLevel,
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := env("JENKINS_URL"); v != "" {
		c.Jenkins.URL = v
	}
	if v := env("JENKINS_USERNAME"); v != "" {
		c.Jenkins.Username = v
	}
	if v := env("JENKINS_TOKEN"); v != "" {
		c.Jenkins.Token = v
	}
	if v := env("JENKINS_VERIFY_SSL"); v != "" {
		b, ok := parseBool(v)
		if !ok {
			return fmt.Errorf("JENKINS_VERIFY_SSL: invalid boolean %q", v)
		}
		c.Jenkins.VerifySSL = &b
	}
	if v := env("HOST"); v != "" {
		c.HTTP.Host = v
	}
	if v := env("PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 65535 {
			return fmt.Errorf("PORT: invalid port %q", v)
		}
		c.HTTP.Port = n
	}
	if v := env("JENKINS_MCP_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	return nil
}

// Validate returns *Error listing every absent required setting.
func (c Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Jenkins.URL) == "" {
		missing = append(missing, "JENKINS_URL")
	}
	if strings.TrimSpace(c.Jenkins.Username) == "" {
		missing = append(missing, "JENKINS_USERNAME")
	}
	if strings.TrimSpace(c.Jenkins.Token) == "" {
		missing = append(missing, "JENKINS_TOKEN")
	}
	if len(missing) > 0 {
		return &Error{Missing: missing}
	}
	return nil
}

// VerifyTLS reports whether Jenkins certificates are verified. Defaults to true.
func (c Config) VerifyTLS() bool {
	return c.Jenkins.VerifySSL == nil || *c.Jenkins.VerifySSL
}

// Redacted returns a copy with the token masked, for log lines.
func (c Config) Redacted() Config {
	if c.Jenkins.Token != "" {
		c.Jenkins.Token = "****"
	}
	return c
}

// Addr is the HTTP listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func parseBool(v string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	default:
		return false, false
	}
}
