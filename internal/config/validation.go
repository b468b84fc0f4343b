package config

import (
	"strings"

	"git.home.luguber.info/inful/depsync/internal/foundation/errors"
)

var (
	validInstallers = map[string]bool{"auto": true, "uv": true, "pip": true}
	validFormats    = map[string]bool{"text": true, "json": true, "pretty": true}
	validLevels     = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
)

// Validate checks the invariants every command relies on.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.CheckoutRoot) == "" {
		return errors.ValidationError("checkout root is required").WithContext("field", "checkout_root").Build()
	}
	if strings.TrimSpace(c.BuildRoot) == "" {
		return errors.ValidationError("build root is required").WithContext("field", "build_root").Build()
	}
	if !strings.Contains(c.Defaults.URLTemplate, "{name}") {
		return errors.ValidationError("url template must contain {name}").
			WithContext("field", "defaults.url_template").
			WithContext("value", c.Defaults.URLTemplate).
			Build()
	}
	if !validInstallers[strings.ToLower(c.Install.Installer)] {
		return errors.ValidationError("unknown installer").
			WithContext("field", "install.installer").
			WithContext("value", c.Install.Installer).
			Build()
	}
	if c.Git.Depth < 0 {
		return errors.ValidationError("git depth cannot be negative").WithContext("field", "git.depth").Build()
	}
	if c.Git.MaxRetries < 0 {
		return errors.ValidationError("git max_retries cannot be negative").WithContext("field", "git.max_retries").Build()
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return errors.ValidationError("unknown log format").
			WithContext("field", "logging.format").
			WithContext("value", c.Logging.Format).
			Build()
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return errors.ValidationError("unknown log level").
			WithContext("field", "logging.level").
			WithContext("value", c.Logging.Level).
			Build()
	}
	return nil
}
