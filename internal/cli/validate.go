package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/validate"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/vault"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool             `json:"valid"`
	Entities int              `json:"entities"`
	Errors   []validate.Issue `json:"errors"`
	Warnings []validate.Issue `json:"warnings"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <document.json>",
		Short: "Validate a IIIF document",
		Long: `Validate a IIIF Presentation 3 document without editing it.

Checks identity, shape, hierarchy and behavior rules for every resource,
and reports references that point outside the document.

Exit codes:
  0 - No errors (warnings allowed)
  1 - One or more errors
  2 - Command error (missing file, malformed JSON, bad rules file)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	v, err := newValidator(opts)
	if err != nil {
		return failLoad(formatter, err)
	}
	root, err := LoadDocument(path)
	if err != nil {
		return failLoad(formatter, err)
	}

	result := ValidateDocument(v, root)
	formatter.VerboseLog("Validated %d entities in %s", result.Entities, path)

	if opts.Format == "json" {
		if !result.Valid {
			if err := formatter.JSON(StatusError, result, &CLIError{
				Code:    ErrCodeInvalidDocument,
				Message: result.Errors[0].Error(),
			}); err != nil {
				return err
			}
			return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
		}
		return formatter.JSON(StatusOK, result, nil)
	}

	w := formatter.Writer
	if !result.Valid {
		fmt.Fprintln(w, "✗ Validation failed")
		fmt.Fprintln(w)
		printIssues(w, result.Errors)
		printIssues(w, result.Warnings)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
	}
	fmt.Fprintf(w, "✓ Document valid (%d entities, %d warning(s))\n", result.Entities, len(result.Warnings))
	if opts.Verbose {
		printIssues(w, result.Warnings)
	}
	return nil
}

// ValidateDocument validates a decoded tree. Issues are grouped by level
// and ordered by entity ID.
func ValidateDocument(v *validate.Validator, root *ir.Node) ValidationResult {
	result := ValidationResult{Errors: []validate.Issue{}, Warnings: []validate.Issue{}}
	if root == nil {
		result.Valid = true
		return result
	}

	report := v.ValidateTree(root)
	ids := make([]string, 0, len(report))
	for id := range report {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		result.Errors = append(result.Errors, validate.Errors(report[id])...)
		result.Warnings = append(result.Warnings, validate.Warnings(report[id])...)
	}

	result.Entities = vault.Normalize(root).Len()

	result.Valid = len(result.Errors) == 0
	return result
}

func printIssues(w io.Writer, issues []validate.Issue) {
	for _, issue := range issues {
		fmt.Fprintf(w, "  %s %s\n", issue.Level, issue.EntityID)
		fmt.Fprintf(w, "    %s\n", issue.Error())
	}
}
