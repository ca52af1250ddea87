package runtime

import (
	"errors"
	"fmt"
)

// Exit codes reported by RuntimeError.Code. These double as process
// exit codes for the CLI, so they stay clear of the shell-reserved
// range and match what the automation engine itself reports where a
// counterpart exists.
const (
	// CodeGeneric is the catch-all failure code.
	CodeGeneric = 1

	// CodeInvalidConfig reports unusable runtime configuration, such
	// as a conflicting environment variable.
	CodeInvalidConfig = 2

	// CodeMissingEngine reports that the engine executable could not
	// be found or its version could not be determined.
	CodeMissingEngine = 4

	// CodeOptionsError mirrors the engine's own exit code for invalid
	// command line options.
	CodeOptionsError = 5

	// CodeInvalidPrerequisites reports unmet content requirements,
	// such as a collection below its minimum required version.
	CodeInvalidPrerequisites = 10
)

// RuntimeError represents a classified runtime failure with command
// context.
// nolint:revive // RuntimeError is intentionally named to distinguish from standard errors
type RuntimeError struct {
	// Code is the exit code classifying the failure.
	Code int `json:"code"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Command is the command line that failed, if applicable.
	Command string `json:"command,omitempty"`

	// Stdout is the captured standard output of the failed command.
	Stdout string `json:"stdout,omitempty"`

	// Stderr is the captured standard error of the failed command.
	Stderr string `json:"stderr,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Command != "" {
		return fmt.Sprintf("[%d] %s (command=%s)%s", e.Code, e.Message, e.Command, e.unwrapSuffix())
	}
	return fmt.Sprintf("[%d] %s%s", e.Code, e.Message, e.unwrapSuffix())
}

// Unwrap returns the underlying error for error chain inspection.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func (e *RuntimeError) unwrapSuffix() string {
	if e.Err != nil {
		return ": " + e.Err.Error()
	}
	return ""
}

// Is implements error equality checking for errors.Is.
func (e *RuntimeError) Is(target error) bool {
	t, ok := target.(*RuntimeError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCommand attaches the failing command line to an error.
func (e *RuntimeError) WithCommand(command string) *RuntimeError {
	e.Command = command
	return e
}

// WithOutput attaches captured process output to an error.
func (e *RuntimeError) WithOutput(stdout, stderr string) *RuntimeError {
	e.Stdout = stdout
	e.Stderr = stderr
	return e
}

// NewGenericError creates an error with the catch-all code.
func NewGenericError(message string, err error) *RuntimeError {
	return &RuntimeError{Code: CodeGeneric, Message: message, Err: err}
}

// NewInvalidConfigError creates an error for unusable configuration.
func NewInvalidConfigError(message string, err error) *RuntimeError {
	return &RuntimeError{Code: CodeInvalidConfig, Message: message, Err: err}
}

// NewMissingEngineError creates an error for an absent or broken
// engine installation.
func NewMissingEngineError(message string, err error) *RuntimeError {
	return &RuntimeError{Code: CodeMissingEngine, Message: message, Err: err}
}

// NewInvalidPrerequisitesError creates an error for unmet content
// requirements.
func NewInvalidPrerequisitesError(message string, err error) *RuntimeError {
	return &RuntimeError{Code: CodeInvalidPrerequisites, Message: message, Err: err}
}

// ExitCode extracts the classification code from an error chain,
// falling back to the generic code.
func ExitCode(err error) int {
	var e *RuntimeError
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeGeneric
}

// IsMissingEngine reports whether the error chain carries the missing
// engine code.
func IsMissingEngine(err error) bool {
	var e *RuntimeError
	return errors.As(err, &e) && e.Code == CodeMissingEngine
}

// IsInvalidPrerequisites reports whether the error chain carries the
// unmet prerequisites code.
func IsInvalidPrerequisites(err error) bool {
	var e *RuntimeError
	return errors.As(err, &e) && e.Code == CodeInvalidPrerequisites
}
