package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/engine"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/rules"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/vault"
)

// Process exit codes.
const (
	ExitSuccess      = 0 // the command did what was asked
	ExitFailure      = 1 // the archive said no: invalid document, rejected action, failed scenario, divergent replay
	ExitCommandError = 2 // the command could not run: bad arguments, unreadable file or database
)

// Response statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ExitError carries the process exit code of a failed command. Commands
// print their own report before returning one, so main only exits.
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

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError returns an ExitError wrapping err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the exit code carried by err, or ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter writes command reports as text or as a JSON envelope.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; falls back to Writer
	Verbose   bool
}

// CLIResponse is the JSON envelope of every command.
type CLIResponse struct {
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError describes a failed command. Entity and Reason are filled when
// the failure came from the archive itself: a rejected action, a
// structural error or a broken rule file.
type CLIError struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Entity  string       `json:"entity,omitempty"`
	Reason  ir.ErrorCode `json:"reason,omitempty"`
	Field   string       `json:"field,omitempty"`
	Rules   []string     `json:"rules,omitempty"`
}

// errorOf builds a CLIError, pulling the entity, reason and rule positions
// out of err when it is one of the archive's error types.
func errorOf(code, message string, err error) *CLIError {
	out := &CLIError{Code: code, Message: message}
	if err == nil {
		return out
	}
	out.Message = fmt.Sprintf("%s: %v", message, err)

	var de *engine.DispatchError
	var ve *vault.Error
	var le *rules.LoadError
	var ves rules.ValidationErrors
	switch {
	case errors.As(err, &de):
		out.Entity, out.Reason, out.Field = de.EntityID, de.Code, de.Field
	case errors.As(err, &ve):
		out.Entity, out.Reason = ve.EntityID, ve.Code
	case errors.As(err, &le):
		out.Rules = []string{le.Error()}
	case errors.As(err, &ves):
		for _, e := range ves {
			out.Rules = append(out.Rules, e.Error())
		}
	}
	return out
}

// Error reports a failure. In text mode the archive details are printed
// only with --verbose.
func (f *OutputFormatter) Error(code, message string, err error) error {
	cliErr := errorOf(code, message, err)
	if f.Format == "json" {
		return f.JSON(StatusError, nil, cliErr)
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", cliErr.Code, cliErr.Message)
	if !f.Verbose {
		return nil
	}
	if cliErr.Reason != "" {
		fmt.Fprintf(f.Writer, "  reason: %s\n", cliErr.Reason)
	}
	if cliErr.Entity != "" {
		fmt.Fprintf(f.Writer, "  entity: %s\n", cliErr.Entity)
	}
	if cliErr.Field != "" {
		fmt.Fprintf(f.Writer, "  field: %s\n", cliErr.Field)
	}
	for _, r := range cliErr.Rules {
		fmt.Fprintf(f.Writer, "  %s\n", r)
	}
	return nil
}

// Fail reports a failure and returns it as an ExitError with exitCode.
func (f *OutputFormatter) Fail(exitCode int, code, message string, err error) error {
	_ = f.Error(code, message, err)
	return WrapExitError(exitCode, code+": "+message, err)
}

// JSON writes an indented CLIResponse.
func (f *OutputFormatter) JSON(status string, data any, cliErr *CLIError) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(CLIResponse{Status: status, Data: data, Error: cliErr})
}

// VerboseLog writes a diagnostic line when --verbose is set. It goes to
// ErrWriter so JSON on Writer stays parseable.
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
