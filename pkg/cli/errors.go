package cli

import (
	"errors"
	"fmt"
)

// Exit codes returned by the recordguard command.
const (
	ExitOK       = 0
	ExitError    = 1
	ExitInvalid  = 2
	ExitUsage    = 64
	ExitConfig   = 78
	ExitCanceled = 130
)

// ConfigError represents an error in configuration.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// InvalidRecordsError reports that a run completed but some records did
// not pass validation. It maps to ExitInvalid so scripts can tell a
// rejected input from a broken run.
type InvalidRecordsError struct {
	Invalid int
	Total   int
}

func (e *InvalidRecordsError) Error() string {
	return fmt.Sprintf("%d of %d records failed validation", e.Invalid, e.Total)
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var invalid *InvalidRecordsError
	if errors.As(err, &invalid) {
		return ExitInvalid
	}
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return ExitConfig
	}
	if errors.Is(err, ErrCanceled) {
		return ExitCanceled
	}
	return ExitError
}

// ErrCanceled is returned when a command stops on a shutdown signal.
var ErrCanceled = errors.New("canceled")
