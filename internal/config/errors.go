package config

import (
	"fmt"

	"github.com/rohmanhakim/crawlkit/pkg/failure"
)

type ConfigErrorCause string

const (
	ErrCauseFileUnreadable ConfigErrorCause = "config file unreadable"
	ErrCauseDecodeFailure  ConfigErrorCause = "config decode failure"
	ErrCauseInvalidValue   ConfigErrorCause = "invalid config value"
	ErrCauseMissingSeed    ConfigErrorCause = "missing seed url"
)

// ConfigError is fatal at startup: a run never starts on a broken config.
type ConfigError struct {
	Message string
	Cause   ConfigErrorCause
	Field   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s", e.Cause)
}

func (e *ConfigError) Severity() failure.Severity {
	return failure.SeverityFatal
}

func (e *ConfigError) Kind() failure.Kind {
	return failure.KindConfigError
}
