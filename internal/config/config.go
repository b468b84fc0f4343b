// Package config loads depsync settings from built-in defaults, the environment,
// an optional YAML or TOML file and finally CLI overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/depsync/internal/foundation/errors"
)

// Config represents the complete depsync configuration.
type Config struct {
	CheckoutRoot string         `yaml:"checkout_root" toml:"checkout_root"`
	BuildRoot    string         `yaml:"build_root" toml:"build_root"`
	Defaults     DefaultsConfig `yaml:"defaults" toml:"defaults"`
	Git          GitConfig      `yaml:"git" toml:"git"`
	Install      InstallConfig  `yaml:"install" toml:"install"`
	Staleness    string         `yaml:"staleness" toml:"staleness"` // e.g. "24h"
	Jobs         int            `yaml:"jobs" toml:"jobs"`
	Metrics      MetricsConfig  `yaml:"metrics" toml:"metrics"`
	History      HistoryConfig  `yaml:"history" toml:"history"`
	Logging      LoggingConfig  `yaml:"logging" toml:"logging"`
}

// DefaultsConfig controls the values filled in for manifest lines that omit a URL or ref.
type DefaultsConfig struct {
	Owner string `yaml:"owner" toml:"owner"`
	Ref   string `yaml:"ref" toml:"ref"`
	// URLTemplate supports the {owner} and {name} placeholders.
	URLTemplate string `yaml:"url_template" toml:"url_template"`
}

// GitConfig holds repository synchronization settings.
type GitConfig struct {
	Timeout           string           `yaml:"timeout" toml:"timeout"`
	Depth             int              `yaml:"depth" toml:"depth"`
	Token             string           `yaml:"token" toml:"token"`
	SSHKeyPath        string           `yaml:"ssh_key_path" toml:"ssh_key_path"`
	MaxRetries        int              `yaml:"max_retries" toml:"max_retries"`
	RetryBackoff      RetryBackoffMode `yaml:"retry_backoff" toml:"retry_backoff"`
	RetryInitialDelay string           `yaml:"retry_initial_delay" toml:"retry_initial_delay"`
	RetryMaxDelay     string           `yaml:"retry_max_delay" toml:"retry_max_delay"`
}

// InstallConfig selects and tunes the requirement installer.
type InstallConfig struct {
	Installer string `yaml:"installer" toml:"installer"` // auto|uv|pip
	Python    string `yaml:"python" toml:"python"`
	Timeout   string `yaml:"timeout" toml:"timeout"`
	Skip      bool   `yaml:"skip" toml:"skip"`
}

type MetricsConfig struct {
	TextFile string `yaml:"textfile" toml:"textfile"`
}

type HistoryConfig struct {
	Path string `yaml:"path" toml:"path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"` // text|json|pretty
}

// Load builds a configuration from the environment and, when path is not empty, the
// given YAML or TOML file. ${VAR} references in the file are expanded using getenv.
func Load(path string, getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := FromEnv(getenv)
	if path != "" {
		if err := cfg.mergeFile(path, getenv); err != nil {
			return nil, err
		}
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string, getenv func(string) string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.ConfigError("configuration file not found").WithContext("path", path).Build()
		}
		return errors.WrapError(err, errors.CategoryConfig, "failed to read configuration file").
			Fatal().WithContext("path", path).Build()
	}
	expanded := os.Expand(string(data), getenv)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		_, err = toml.Decode(expanded, c)
	case ".yaml", ".yml", "":
		err = yaml.Unmarshal([]byte(expanded), c)
	default:
		return errors.ConfigError("unsupported configuration file format").WithContext("path", path).Build()
	}
	if err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "failed to decode configuration file").
			Fatal().WithContext("path", path).Build()
	}
	return nil
}

// StalenessDuration returns the full-refresh threshold.
func (c *Config) StalenessDuration() time.Duration {
	return parseDuration(c.Staleness, DefaultStaleness)
}

// TimeoutDuration returns the per-operation git timeout.
func (g GitConfig) TimeoutDuration() time.Duration {
	return parseDuration(g.Timeout, DefaultGitTimeout)
}

// TimeoutDuration returns the per-manifest installer timeout.
func (i InstallConfig) TimeoutDuration() time.Duration {
	return parseDuration(i.Timeout, DefaultInstallTimeout)
}

// DefaultURL renders the conventional source location for a project.
func (d DefaultsConfig) DefaultURL(name string) string {
	tmpl := d.URLTemplate
	if tmpl == "" {
		tmpl = DefaultURLTemplate
	}
	return strings.NewReplacer("{owner}", d.Owner, "{name}", name).Replace(tmpl)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// String renders a short human summary used in startup logs.
func (c *Config) String() string {
	return fmt.Sprintf("checkout_root=%s build_root=%s owner=%s ref=%s jobs=%d installer=%s",
		c.CheckoutRoot, c.BuildRoot, c.Defaults.Owner, c.Defaults.Ref, c.Jobs, c.Install.Installer)
}
