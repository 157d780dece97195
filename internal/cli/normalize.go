package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/vault"
)

// NormalizeOptions holds flags for the normalize command.
type NormalizeOptions struct {
	*RootOptions
	Out    string
	Record bool // write the normalized record instead of the document
}

// NormalizeResult summarizes a normalization.
type NormalizeResult struct {
	Root        string          `json:"root"`
	Entities    int             `json:"entities"`
	ByKind      map[ir.Kind]int `json:"byKind"`
	Warnings    []vault.Warning `json:"warnings"`
	Fingerprint string          `json:"fingerprint"`
	// RoundTrip is true when denormalizing reproduces the input tree.
	RoundTrip bool   `json:"roundTrip"`
	Written   string `json:"written,omitempty"`
}

// NewNormalizeCommand creates the normalize command.
func NewNormalizeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NormalizeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "normalize <document.json>",
		Short: "Normalize a document into the entity store",
		Long: `Normalize a IIIF Presentation 3 document and report the result.

Prints entity counts per type, normalization warnings (dropped dangling
references, duplicate IDs) and the state fingerprint, and checks that
denormalizing reproduces the input.

With --out the denormalized document is written to a file; with --record
the normalized store record is written instead, as canonical JSON.

Examples:
  iiifvault normalize book.json
  iiifvault normalize book.json --out clean.json
  iiifvault normalize book.json --out book.record.json --record`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNormalize(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "write the result to a file")
	cmd.Flags().BoolVar(&opts.Record, "record", false, "write the normalized record instead of the document")

	return cmd
}

func runNormalize(opts *NormalizeOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	root, err := LoadDocument(path)
	if err != nil {
		return failLoad(formatter, err)
	}

	s := vault.Normalize(root)
	result := NormalizeResult{
		Root:     s.RootID(),
		Entities: s.Len(),
		ByKind:   make(map[ir.Kind]int),
		Warnings: s.Warnings(),
	}
	if result.Warnings == nil {
		result.Warnings = []vault.Warning{}
	}
	for _, kind := range ir.Kinds {
		if n := len(s.EntitiesOfKind(kind)); n > 0 {
			result.ByKind[kind] = n
		}
	}
	if result.Fingerprint, err = vault.Fingerprint(s); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "fingerprinting state", err)
	}

	out := vault.Denormalize(s)
	before, err := ir.TreeFingerprint(root)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "fingerprinting input", err)
	}
	after, err := ir.TreeFingerprint(out)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "fingerprinting output", err)
	}
	result.RoundTrip = before == after

	if opts.Out != "" {
		var data []byte
		if opts.Record {
			data, err = ir.MarshalCanonical(vault.Export(s).Canonical())
		} else {
			data, err = ir.EncodeDocument(out)
		}
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, "encoding output", err)
		}
		if err := os.WriteFile(opts.Out, data, 0644); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing %s", opts.Out), err)
		}
		result.Written = opts.Out
		formatter.VerboseLog("Wrote %d bytes to %s", len(data), opts.Out)
	}

	if opts.Format == "json" {
		return formatter.JSON(StatusOK, result, nil)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Root: %s\n", result.Root)
	fmt.Fprintf(w, "Entities: %d\n", result.Entities)
	for _, kind := range ir.Kinds {
		if n := result.ByKind[kind]; n > 0 {
			fmt.Fprintf(w, "  %-15s %d\n", kind, n)
		}
	}
	fmt.Fprintf(w, "Fingerprint: %s\n", result.Fingerprint)
	if result.RoundTrip {
		fmt.Fprintln(w, "✓ Round trip reproduces the input")
	} else {
		fmt.Fprintln(w, "✗ Round trip differs from the input")
	}
	if len(result.Warnings) > 0 {
		fmt.Fprintf(w, "Warnings (%d):\n", len(result.Warnings))
		for _, warn := range result.Warnings {
			fmt.Fprintf(w, "  %s %s: %s\n", warn.Code, warn.EntityID, warn.Message)
		}
	}
	if result.Written != "" {
		fmt.Fprintf(w, "Wrote %s\n", result.Written)
	}
	return nil
}
