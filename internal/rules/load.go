package rules

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var schemaSource []byte

//go:embed rules.cue
var defaultSource []byte

// LoadError describes a CUE compile or schema failure with its source position.
type LoadError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var defaultTable = sync.OnceValues(func() (*Table, error) {
	return Parse("rules.cue", defaultSource)
})

// Default returns the embedded rule tables. The result is shared; callers
// must not modify it.
func Default() *Table {
	t, err := defaultTable()
	if err != nil {
		panic(fmt.Sprintf("rules: embedded tables are invalid: %v", err))
	}
	return t
}

// LoadFile reads and parses a CUE rules file.
func LoadFile(path string) (*Table, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	return Parse(path, src)
}

// Parse compiles CUE source, unifies it with the rule schema, and decodes
// the result into a Table. Cross-reference problems (unknown behavior in a
// disjoint set, default outside its set, ...) are collected and reported
// together.
func Parse(filename string, src []byte) (*Table, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	unified := schema.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var doc document
	if err := unified.Decode(&doc); err != nil {
		return nil, formatCUEError(err)
	}

	t, errs := build(doc)
	if len(errs) > 0 {
		return nil, errs
	}
	return t, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &LoadError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
