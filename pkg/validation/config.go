package validation

import (
	"errors"
	"fmt"
	"time"
)

// ConfigValidator collects every problem with a config struct so an operator
// sees them all in one run instead of fixing them one restart at a time.
type ConfigValidator struct {
	name   string
	errors []error
}

// NewConfigValidator starts a validator whose messages are prefixed with name.
func NewConfigValidator(name string) *ConfigValidator {
	return &ConfigValidator{name: name}
}

func (cv *ConfigValidator) addf(field, format string, args ...any) {
	cv.errors = append(cv.errors, fmt.Errorf("%s.%s: "+format, append([]any{cv.name, field}, args...)...))
}

// RangeInt rejects values outside [min, max].
func (cv *ConfigValidator) RangeInt(field string, value, min, max int) *ConfigValidator {
	if value < min || value > max {
		cv.addf(field, "value %d is outside range [%d, %d]", value, min, max)
	}
	return cv
}

// MinDuration rejects durations shorter than min.
func (cv *ConfigValidator) MinDuration(field string, value, min time.Duration) *ConfigValidator {
	if value < min {
		cv.addf(field, "duration %v is below minimum %v", value, min)
	}
	return cv
}

// OneOf rejects values not in allowed.
func (cv *ConfigValidator) OneOf(field, value string, allowed []string) *ConfigValidator {
	for _, a := range allowed {
		if value == a {
			return cv
		}
	}
	cv.addf(field, "value %q must be one of %v", value, allowed)
	return cv
}

// Custom records fn's error against field, keeping it matchable with errors.Is.
func (cv *ConfigValidator) Custom(field string, fn func() error) *ConfigValidator {
	if err := fn(); err != nil {
		cv.errors = append(cv.errors, fmt.Errorf("%s.%s: %w", cv.name, field, err))
	}
	return cv
}

// Validate returns nil, or every collected error joined.
func (cv *ConfigValidator) Validate() error {
	return errors.Join(cv.errors...)
}

// DefaultOrInt substitutes def for an unset (non-positive) value.
func DefaultOrInt(value, def int) int {
	if value <= 0 {
		return def
	}
	return value
}

// DefaultOrDuration substitutes def for an unset (non-positive) duration.
func DefaultOrDuration(value, def time.Duration) time.Duration {
	if value <= 0 {
		return def
	}
	return value
}
