package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/engine"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/store"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/vault"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	DB     string
	Resume bool
	Out    string
}

// ActionOutcome is the reported result of one action.
type ActionOutcome struct {
	Index    int      `json:"index"`
	Action   string   `json:"action"`
	Success  bool     `json:"success"`
	Code     string   `json:"code,omitempty"`
	Error    string   `json:"error,omitempty"`
	Entities []string `json:"entities,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Notes    []string `json:"notes,omitempty"`
}

// ApplyResult summarizes an apply run.
type ApplyResult struct {
	Applied     int             `json:"applied"`
	Rejected    int             `json:"rejected"`
	Outcomes    []ActionOutcome `json:"outcomes"`
	Fingerprint string          `json:"fingerprint"`
	Entities    int             `json:"entities"`
	Trash       int             `json:"trash"`
	Snapshot    int64           `json:"snapshot,omitempty"`
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply [document.json] <script.yaml>",
		Short: "Apply an action script to a document",
		Long: `Apply a YAML action script to a document.

Each action is validated and applied in order. A rejected action is
reported and skipped; the actions after it still run.

With --db the resulting state and the provenance log are checkpointed to a
SQLite database. With --resume the session starts from the newest snapshot
in --db instead of a document.

Examples:
  iiifvault apply book.json edits.yaml
  iiifvault apply book.json edits.yaml --db session.db
  iiifvault apply edits.yaml --db session.db --resume
  iiifvault apply book.json edits.yaml --out edited.json`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "SQLite database to checkpoint into")
	cmd.Flags().BoolVar(&opts.Resume, "resume", false, "start from the newest snapshot in --db")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "write the resulting document to a file")

	return cmd
}

func runApply(opts *ApplyOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := context.Background()

	switch {
	case opts.Resume && opts.DB == "":
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "--resume requires --db", nil)
	case opts.Resume && len(args) != 1:
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "--resume takes only a script argument", nil)
	case !opts.Resume && len(args) != 2:
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "apply needs a document and a script", nil)
	}
	scriptPath := args[len(args)-1]

	actions, err := LoadScript(scriptPath)
	if err != nil {
		return failLoad(formatter, err)
	}
	table, err := LoadRules(opts.Rules)
	if err != nil {
		return failLoad(formatter, err)
	}

	var st *store.Store
	if opts.DB != "" {
		if opts.Resume {
			st, err = openStore(opts.DB)
			if err != nil {
				return failLoad(formatter, err)
			}
		} else if st, err = store.Open(opts.DB); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, "opening database", err)
		}
		defer st.Close()
	}

	eng := engine.New(nil,
		engine.WithRules(table),
		engine.WithLogger(newLogger(opts.RootOptions, cmd)),
	)
	if opts.Resume {
		sess, err := st.Resume(ctx)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, "resuming session", err)
		}
		if sess.Snapshot.Seq == 0 {
			return formatter.Fail(ExitCommandError, ErrCodeNoSnapshot, fmt.Sprintf("%s holds no snapshot", opts.DB), store.ErrNoSnapshot)
		}
		eng.Load(sess.Snapshot.State)
		if _, err := eng.Provenance().ImportHistory(sess.Provenance); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, "importing provenance", err)
		}
		formatter.VerboseLog("Resumed snapshot %d (%d entities, %d provenance entries)",
			sess.Snapshot.Seq, sess.Snapshot.EntityCount, len(sess.Provenance))
	} else {
		root, err := LoadDocument(args[0])
		if err != nil {
			return failLoad(formatter, err)
		}
		for _, w := range eng.LoadDocument(root) {
			formatter.VerboseLog("normalize: %s %s: %s", w.Code, w.EntityID, w.Message)
		}
	}

	result := ApplyResult{Outcomes: make([]ActionOutcome, 0, len(actions))}
	for i, res := range eng.DispatchAll(actions) {
		outcome := describeOutcome(i, actions[i], res)
		if outcome.Success {
			result.Applied++
		} else {
			result.Rejected++
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}

	final := eng.State()
	result.Entities = final.Len()
	result.Trash = final.TrashLen()
	if result.Fingerprint, err = vault.Fingerprint(final); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "fingerprinting state", err)
	}

	if st != nil {
		snap, err := st.Checkpoint(ctx, final, eng.Provenance(), eng.Clock())
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, "checkpointing session", err)
		}
		result.Snapshot = snap.Seq
	}

	if opts.Out != "" {
		data, err := ir.EncodeDocument(vault.Denormalize(final))
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, "encoding document", err)
		}
		if err := os.WriteFile(opts.Out, data, 0644); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing %s", opts.Out), err)
		}
	}

	var rejected error
	if result.Rejected > 0 {
		rejected = NewExitError(ExitFailure, fmt.Sprintf("%s: %d action(s) rejected", ErrCodeActionRejected, result.Rejected))
	}

	if opts.Format == "json" {
		if rejected != nil {
			if err := formatter.JSON(StatusError, result, &CLIError{
				Code:    ErrCodeActionRejected,
				Message: fmt.Sprintf("%d action(s) rejected", result.Rejected),
			}); err != nil {
				return err
			}
			return rejected
		}
		return formatter.JSON(StatusOK, result, nil)
	}

	printApply(formatter, result)
	return rejected
}

func describeOutcome(i int, a engine.Action, res engine.Result) ActionOutcome {
	out := ActionOutcome{Index: i, Action: a.Type(), Success: res.Success}
	if !res.Success {
		out.Code = string(engine.CodeOf(res.Err))
		out.Error = res.Err.Error()
		return out
	}
	for _, ec := range res.Changes {
		out.Entities = append(out.Entities, ec.EntityID)
	}
	for _, w := range res.Warnings {
		out.Warnings = append(out.Warnings, w.Error())
	}
	out.Notes = res.Notes
	return out
}

func printApply(f *OutputFormatter, result ApplyResult) {
	w := f.Writer
	for _, o := range result.Outcomes {
		if !o.Success {
			fmt.Fprintf(w, "✗ [%d] %s: %s\n", o.Index, o.Action, o.Error)
			continue
		}
		fmt.Fprintf(w, "✓ [%d] %s (%d entities)\n", o.Index, o.Action, len(o.Entities))
		for _, msg := range o.Warnings {
			fmt.Fprintf(w, "    warning: %s\n", msg)
		}
		for _, note := range o.Notes {
			fmt.Fprintf(w, "    healed: %s\n", note)
		}
	}
	fmt.Fprintf(w, "\nApplied %d, rejected %d\n", result.Applied, result.Rejected)
	fmt.Fprintf(w, "State: %d entities, %d in trash, fingerprint %s\n", result.Entities, result.Trash, result.Fingerprint)
	if result.Snapshot > 0 {
		fmt.Fprintf(w, "Checkpointed snapshot %d\n", result.Snapshot)
	}
}
