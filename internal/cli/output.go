package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/roach88/isaac/internal/config"
	"github.com/roach88/isaac/internal/ir"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Check failure (scenarios failed, invalid config, unmergeable inputs)
	ExitCommandError = 2 // Command error (missing files, unreadable input)
)

// Error codes reported for failures that carry no ir.ErrorCode.
const (
	ErrCodeGeneric     = "E_COMMAND"
	ErrCodeFileRead    = "E_FILE_READ"
	ErrCodeFileWrite   = "E_FILE_WRITE"
	ErrCodeConfig      = "E_CONFIG"
	ErrCodeTestFailed  = "E_TEST_FAILED"
	ErrCodeInvalidFlag = "E_INVALID_FLAG"
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// errorCode returns the ir error code carried by err, an E_* code for
// file system and configuration errors, or fallback.
func errorCode(err error, fallback string) string {
	var e *ir.Error
	if errors.As(err, &e) {
		return string(e.Code)
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return ErrCodeFileRead
	}
	var configErr *config.ValidationError
	if errors.As(err, &configErr) {
		return ErrCodeConfig
	}
	return fallback
}

// exitCodeFor maps chronicle errors to exit codes. Rejected data
// (unmergeable, corrupt or unsupported input) is a check failure; anything
// else is a command error.
func exitCodeFor(err error) int {
	switch {
	case ir.IsUnmergeable(err), ir.IsCorruptRecord(err), ir.IsUnsupportedFormat(err):
		return ExitFailure
	default:
		return ExitCommandError
	}
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // ir error code or E_* command code
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err and returns the ExitError the command should return.
func (f *OutputFormatter) Fail(message string, err error) error {
	code := errorCode(err, ErrCodeGeneric)
	_ = f.Error(code, fmt.Sprintf("%s: %v", message, err), nil)
	return WrapExitError(exitCodeFor(err), message, err)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
