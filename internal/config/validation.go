package config

import (
	"time"

	ferrors "git.home.luguber.info/inful/bakery/internal/foundation/errors"
)

// Validate checks the configuration for values that would make the panel
// unusable. A missing bucket is not an error here: build-only operation is
// a supported mode, and the publish path performs its own bucket check.
func (c *Config) Validate() error {
	if c.Admin.Port < 1 || c.Admin.Port > 65535 {
		return ferrors.ConfigError("admin port out of range").
			WithContext("port", c.Admin.Port).
			Build()
	}
	if c.Build.Command == "" {
		return ferrors.ConfigError("build command must not be empty").Build()
	}
	if c.Build.OutputDir == "" {
		return ferrors.ConfigError("build output directory must not be empty").Build()
	}
	if c.Schedule.Interval != "" {
		if _, err := time.ParseDuration(c.Schedule.Interval); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid schedule interval").
				WithContext("interval", c.Schedule.Interval).
				Build()
		}
	}
	return nil
}

// ScheduleInterval returns the parsed rebuild interval, zero when disabled.
func (c *Config) ScheduleInterval() time.Duration {
	if c.Schedule.Interval == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Schedule.Interval)
	if err != nil {
		return 0
	}
	return d
}
