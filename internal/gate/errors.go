package gate

import (
	"errors"
	"fmt"
)

// Kind classifies gate configuration errors
type Kind int

const (
	// MissingConfiguration means the directive carried no argument
	MissingConfiguration Kind = iota + 1
	// InvalidConfiguration means the argument did not parse
	InvalidConfiguration
)

func (k Kind) String() string {
	switch k {
	case MissingConfiguration:
		return "missing configuration"
	case InvalidConfiguration:
		return "invalid configuration"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Sentinels for errors.Is
var (
	ErrMissingConfiguration = errors.New("missing configuration")
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// ConfigError is returned when a gate argument is absent or malformed.
// Both kinds are fatal for the file being expanded.
type ConfigError struct {
	Kind    Kind
	Message string
	Err     error // underlying cause, e.g. *condition.ParseError
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels
func (e *ConfigError) Is(target error) bool {
	switch target {
	case ErrMissingConfiguration:
		return e.Kind == MissingConfiguration
	case ErrInvalidConfiguration:
		return e.Kind == InvalidConfiguration
	}
	return false
}

func missing(msg string) *ConfigError {
	return &ConfigError{Kind: MissingConfiguration, Message: msg}
}

func invalid(msg string, cause error) *ConfigError {
	return &ConfigError{Kind: InvalidConfiguration, Message: msg, Err: cause}
}
