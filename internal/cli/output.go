package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // verification failed
	ExitCommandError = 2 // bad arguments, unreachable database
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
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

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error, ExitFailure by default.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// report is the JSON shape of every verify command
type report struct {
	Status string `json:"status"` // "ok" or "failed"
	Data   any    `json:"data"`
}

type formatter struct {
	format string
	w      io.Writer
}

// emit writes data as JSON, or the text lines in text mode
func (f *formatter) emit(valid bool, data any, lines ...string) error {
	if f.format == "json" {
		status := "ok"
		if !valid {
			status = "failed"
		}
		enc := json.NewEncoder(f.w)
		enc.SetIndent("", "  ")
		return enc.Encode(report{Status: status, Data: data})
	}
	for _, l := range lines {
		if _, err := fmt.Fprintln(f.w, l); err != nil {
			return err
		}
	}
	return nil
}
