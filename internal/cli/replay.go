package cli

import (
	"fmt"
	"reflect"
	"time"

	"github.com/spf13/cobra"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/engine"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/testutil"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/validate"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/vault"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Runs int
	At   string // RFC3339 instant the clock is frozen at
}

// ReplayRun is the outcome of one replay pass.
type ReplayRun struct {
	Fingerprint string          `json:"fingerprint"`
	Outcomes    []ActionOutcome `json:"outcomes"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Actions       int         `json:"actions"`
	Runs          []ReplayRun `json:"runs"`
	Deterministic bool        `json:"deterministic"`
	// Divergence describes the first difference from run 0.
	Divergence string `json:"divergence,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <document.json> <script.yaml>",
		Short: "Replay a script and verify determinism",
		Long: `Replay an action script against a document several times and verify
that every run produces the same outcomes and the same state fingerprint.

The clock is frozen for all runs, so trash timestamps are identical.

Exit codes:
  0 - All runs agree
  1 - Runs diverged
  2 - Command error (missing file, malformed script, etc.)

Examples:
  iiifvault replay book.json edits.yaml
  iiifvault replay book.json edits.yaml --runs 5
  iiifvault replay book.json edits.yaml --at 2024-01-15T10:00:00Z --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Runs, "runs", 2, "number of replay passes")
	cmd.Flags().StringVar(&opts.At, "at", "", "RFC3339 instant to freeze the clock at (default: now)")

	return cmd
}

func runReplay(opts *ReplayOptions, docPath, scriptPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Runs < 2 {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("--runs must be at least 2, got %d", opts.Runs), nil)
	}
	at := time.Now().UTC()
	if opts.At != "" {
		t, err := time.Parse(time.RFC3339, opts.At)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, "parsing --at", err)
		}
		at = t
	}

	root, err := LoadDocument(docPath)
	if err != nil {
		return failLoad(formatter, err)
	}
	actions, err := LoadScript(scriptPath)
	if err != nil {
		return failLoad(formatter, err)
	}
	v, err := newValidator(opts.RootOptions)
	if err != nil {
		return failLoad(formatter, err)
	}

	result := ReplayResult{Actions: len(actions), Deterministic: true}
	for i := 0; i < opts.Runs; i++ {
		run, err := replayOnce(v, root, actions, at)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, "fingerprinting state", err)
		}
		formatter.VerboseLog("run %d: %s", i, run.Fingerprint)
		result.Runs = append(result.Runs, run)
		if i > 0 && result.Deterministic {
			if msg := diverges(result.Runs[0], run); msg != "" {
				result.Deterministic = false
				result.Divergence = fmt.Sprintf("run %d: %s", i, msg)
			}
		}
	}

	var failure error
	if !result.Deterministic {
		failure = NewExitError(ExitFailure, fmt.Sprintf("%s: %s", ErrCodeNonDeterminism, result.Divergence))
	}

	if opts.Format == "json" {
		if failure != nil {
			if err := formatter.JSON(StatusError, result, &CLIError{
				Code:    ErrCodeNonDeterminism,
				Message: result.Divergence,
			}); err != nil {
				return err
			}
			return failure
		}
		return formatter.JSON(StatusOK, result, nil)
	}

	w := formatter.Writer
	if failure != nil {
		fmt.Fprintf(w, "✗ Replay diverged: %s\n", result.Divergence)
		return failure
	}
	fmt.Fprintf(w, "✓ %d runs of %d action(s) agree\n", len(result.Runs), result.Actions)
	fmt.Fprintf(w, "Fingerprint: %s\n", result.Runs[0].Fingerprint)
	return nil
}

// replayOnce normalizes root afresh and replays actions through a
// stateless dispatcher.
func replayOnce(v *validate.Validator, root *ir.Node, actions []engine.Action, at time.Time) (ReplayRun, error) {
	d := engine.NewDispatcher(v, testutil.NewFixedClock(at))
	final, results := d.Replay(vault.Normalize(root), actions)

	run := ReplayRun{Outcomes: make([]ActionOutcome, len(results))}
	for i, res := range results {
		run.Outcomes[i] = describeOutcome(i, actions[i], res)
	}
	fp, err := vault.Fingerprint(final)
	if err != nil {
		return ReplayRun{}, err
	}
	run.Fingerprint = fp
	return run, nil
}

func diverges(want, got ReplayRun) string {
	for i := range want.Outcomes {
		if !reflect.DeepEqual(want.Outcomes[i], got.Outcomes[i]) {
			return fmt.Sprintf("action %d (%s) outcome differs", i, want.Outcomes[i].Action)
		}
	}
	if want.Fingerprint != got.Fingerprint {
		return fmt.Sprintf("fingerprint %s != %s", got.Fingerprint, want.Fingerprint)
	}
	return ""
}
