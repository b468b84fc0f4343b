package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	DefaultOwner          = "OCA"
	DefaultRef            = "8.0"
	DefaultURLTemplate    = "https://github.com/{owner}/{name}.git"
	DefaultStaleness      = 24 * time.Hour
	DefaultGitTimeout     = 10 * time.Minute
	DefaultInstallTimeout = 30 * time.Minute
	DefaultInstaller      = "auto"
	DefaultPython         = "python"
)

// Environment variables understood by FromEnv.
const (
	EnvDepsDir     = "DEPS_DIR"
	EnvBuildDir    = "TRAVIS_BUILD_DIR"
	EnvVersion     = "VERSION"
	EnvToken       = "GITHUB_TOKEN"
	EnvOwner       = "DEPSYNC_OWNER"
	EnvInstaller   = "DEPSYNC_INSTALLER"
	EnvJobs        = "DEPSYNC_JOBS"
	EnvStaleness   = "DEPSYNC_STALENESS"
	EnvLogLevel    = "DEPSYNC_LOG_LEVEL"
	EnvLogFormat   = "DEPSYNC_LOG_FORMAT"
	EnvHistory     = "DEPSYNC_HISTORY"
	EnvMetricsFile = "DEPSYNC_METRICS_FILE"
)

// FromEnv returns the built-in defaults overlaid with environment values.
func FromEnv(getenv func(string) string) *Config {
	cfg := &Config{
		CheckoutRoot: getenv(EnvDepsDir),
		BuildRoot:    getenv(EnvBuildDir),
		Defaults: DefaultsConfig{
			Owner:       firstNonEmpty(getenv(EnvOwner), DefaultOwner),
			Ref:         firstNonEmpty(getenv(EnvVersion), DefaultRef),
			URLTemplate: DefaultURLTemplate,
		},
		Git: GitConfig{
			Token:        getenv(EnvToken),
			RetryBackoff: RetryBackoffLinear,
		},
		Install: InstallConfig{
			Installer: firstNonEmpty(getenv(EnvInstaller), DefaultInstaller),
			Python:    DefaultPython,
		},
		Staleness: getenv(EnvStaleness),
		Jobs:      1,
		Metrics:   MetricsConfig{TextFile: getenv(EnvMetricsFile)},
		History:   HistoryConfig{Path: getenv(EnvHistory)},
		Logging: LoggingConfig{
			Level:  firstNonEmpty(getenv(EnvLogLevel), "info"),
			Format: firstNonEmpty(getenv(EnvLogFormat), "text"),
		},
	}
	if n, err := strconv.Atoi(getenv(EnvJobs)); err == nil && n > 0 {
		cfg.Jobs = n
	}
	if cfg.CheckoutRoot == "" {
		home := getenv("HOME")
		if home == "" {
			home, _ = os.UserHomeDir()
		}
		cfg.CheckoutRoot = filepath.Join(home, "dependencies")
	}
	if cfg.BuildRoot == "" {
		if wd, err := os.Getwd(); err == nil {
			cfg.BuildRoot = wd
		}
	}
	return cfg
}

// normalize fills values a config file may have blanked out.
func (c *Config) normalize() {
	if c.Defaults.Owner == "" {
		c.Defaults.Owner = DefaultOwner
	}
	if c.Defaults.Ref == "" {
		c.Defaults.Ref = DefaultRef
	}
	if c.Defaults.URLTemplate == "" {
		c.Defaults.URLTemplate = DefaultURLTemplate
	}
	if c.Install.Installer == "" {
		c.Install.Installer = DefaultInstaller
	}
	if c.Install.Python == "" {
		c.Install.Python = DefaultPython
	}
	if c.Jobs <= 0 {
		c.Jobs = 1
	}
	if mode := NormalizeRetryBackoff(string(c.Git.RetryBackoff)); mode != "" {
		c.Git.RetryBackoff = mode
	} else {
		c.Git.RetryBackoff = RetryBackoffLinear
	}
	if abs, err := filepath.Abs(c.CheckoutRoot); err == nil && c.CheckoutRoot != "" {
		c.CheckoutRoot = abs
	}
	if abs, err := filepath.Abs(c.BuildRoot); err == nil && c.BuildRoot != "" {
		c.BuildRoot = abs
	}
}

// Finalize re-applies normalization after CLI overrides have been written into c.
func (c *Config) Finalize() error {
	c.normalize()
	return c.Validate()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
