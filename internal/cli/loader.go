package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/engine"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/rules"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/store"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/validate"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeReadFailed   = "E002" // File read error
	ErrCodeDecodeFailed = "E003" // Document is not IIIF Presentation 3 JSON
	ErrCodeRulesFailed  = "E004" // Rules file failed to load
	ErrCodeNotFound     = "E005" // Path not found
	ErrCodeScriptFailed = "E006" // Action script malformed
	ErrCodeWriteFailed  = "E007" // File write error
	ErrCodeStoreFailed  = "E008" // Database open/read/write error
	ErrCodeNoSnapshot   = "E009" // Database holds no snapshot

	// Document and action failures
	ErrCodeInvalidDocument = "E101" // Validation reported errors
	ErrCodeActionRejected  = "E102" // One or more actions were rejected
	ErrCodeNonDeterminism  = "E103" // Replay produced different results
	ErrCodeTestFailed      = "E104" // One or more scenarios failed
)

// LoadError represents an error that occurred while loading an input file.
type LoadError struct {
	Code    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error { return e.Err }

// LoadDocument reads and decodes a IIIF Presentation 3 document.
func LoadDocument(path string) (*ir.Node, error) {
	data, err := readInput(path, "document")
	if err != nil {
		return nil, err
	}
	root, err := ir.DecodeDocument(data)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeDecodeFailed, Message: fmt.Sprintf("decoding %s", path), Err: err}
	}
	return root, nil
}

// LoadScript reads and parses a YAML action script.
func LoadScript(path string) ([]engine.Action, error) {
	data, err := readInput(path, "script")
	if err != nil {
		return nil, err
	}
	actions, err := engine.ParseScript(data)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScriptFailed, Message: fmt.Sprintf("parsing %s", path), Err: err}
	}
	return actions, nil
}

// LoadRules returns the rule table selected by --rules, or the built-in
// tables when the flag is empty.
func LoadRules(path string) (*rules.Table, error) {
	if path == "" {
		return rules.Default(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("rules file not found: %s", path)}
	}
	t, err := rules.LoadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeRulesFailed, Message: fmt.Sprintf("loading rules %s", path), Err: err}
	}
	return t, nil
}

// newValidator builds a validator from the --rules flag.
func newValidator(opts *RootOptions) (*validate.Validator, error) {
	t, err := LoadRules(opts.Rules)
	if err != nil {
		return nil, err
	}
	return validate.New(t), nil
}

// openStore opens an existing database. Unlike store.Open it refuses to
// create a new file, so a typo in the path is reported instead of yielding
// an empty history.
func openStore(path string) (*store.Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("database not found: %s", path)}
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeStoreFailed, Message: "opening database", Err: err}
	}
	return st, nil
}

func readInput(path, what string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("%s not found: %s", what, path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeReadFailed, Message: fmt.Sprintf("reading %s", path), Err: err}
	}
	return data, nil
}

// failLoad reports a loader error as a command error (exit code 2).
func failLoad(f *OutputFormatter, err error) error {
	var le *LoadError
	if errors.As(err, &le) {
		return f.Fail(ExitCommandError, le.Code, le.Message, le.Err)
	}
	return f.Fail(ExitCommandError, ErrCodeGeneric, "command failed", err)
}
