package split

import (
	"fmt"
)

// ConfigError reports an invalid configuration property. It is never
// retryable, the configuration has to be fixed.
type ConfigError struct {
	Property string
	Value    string
	Err      error
}

func newConfigError(property, value string, err error) *ConfigError {
	return &ConfigError{Property: property, Value: value, Err: err}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Property, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
