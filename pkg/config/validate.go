package config

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Validate checks the loaded configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(&c.Quota,
		validation.Field(&c.Quota.FreeLimit, validation.Min(0)),
		validation.Field(&c.Quota.TimeZone, validation.By(validTimeZone)),
	); err != nil {
		return fmt.Errorf("quota: %w", err)
	}

	if err := validation.ValidateStruct(&c.Watermark,
		validation.Field(&c.Watermark.Alpha, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.Watermark.FontScale, validation.Min(0.1), validation.Max(10.0)),
	); err != nil {
		return fmt.Errorf("watermark: %w", err)
	}

	if err := validation.ValidateStruct(&c.Capture,
		validation.Field(&c.Capture.ScanQuality, validation.Required, validation.Min(0.01), validation.Max(1.0)),
		validation.Field(&c.Capture.ImportQuality, validation.Required, validation.Min(0.01), validation.Max(1.0)),
		validation.Field(&c.Capture.ImportDPI, validation.Required, validation.Min(36.0), validation.Max(600.0)),
		validation.Field(&c.Capture.Workers, validation.Min(1)),
	); err != nil {
		return fmt.Errorf("capture: %w", err)
	}

	if err := validation.ValidateStruct(&c.Export,
		validation.Field(&c.Export.ScratchDir, validation.Required),
		validation.Field(&c.Export.SignedURLSecret, validation.Required),
	); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	if c.Summary.Enabled {
		if err := validation.ValidateStruct(&c.Summary,
			validation.Field(&c.Summary.ProjectID, validation.Required),
			validation.Field(&c.Summary.Region, validation.Required),
			validation.Field(&c.Summary.Model, validation.Required),
			validation.Field(&c.Summary.TargetWords, validation.Min(0)),
		); err != nil {
			return fmt.Errorf("summary: %w", err)
		}
	}

	return validation.ValidateStruct(&c.JWT,
		validation.Field(&c.JWT.Secret, validation.Required),
	)
}

// Location resolves the configured time zone used for streak day boundaries.
func (q QuotaConfig) Location() *time.Location {
	if q.TimeZone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(q.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}

func validTimeZone(value interface{}) error {
	name, _ := value.(string)
	if name == "" {
		return nil
	}
	if _, err := time.LoadLocation(name); err != nil {
		return fmt.Errorf("unknown time zone %q", name)
	}
	return nil
}
