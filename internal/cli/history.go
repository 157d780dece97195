package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/provenance"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Entity    string
	Since     string
	Action    string
	Property  string
	Limit     int
	Snapshots bool
}

// HistoryResult is the JSON payload of the history command.
type HistoryResult struct {
	Entries   []provenance.Entry `json:"entries,omitempty"`
	Snapshots []store.Snapshot   `json:"snapshots,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history <session.db>",
		Short: "Query the provenance log of a session database",
		Long: `Query the provenance log stored by "apply --db".

Entries are listed oldest first. Filters combine; --limit keeps only the
most recent matches. With --snapshots the saved snapshots are listed
instead.

Examples:
  iiifvault history session.db
  iiifvault history session.db --entity https://example.org/iiif/book
  iiifvault history session.db --property behavior --since 2024-01-01T00:00:00Z
  iiifvault history session.db --snapshots`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Entity, "entity", "", "only entries for this entity ID")
	cmd.Flags().StringVar(&opts.Since, "since", "", "only entries at or after this RFC3339 instant")
	cmd.Flags().StringVar(&opts.Action, "action", "", "only entries recorded by this action type")
	cmd.Flags().StringVar(&opts.Property, "property", "", "only entries changing this property")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "keep only the most recent N entries")
	cmd.Flags().BoolVar(&opts.Snapshots, "snapshots", false, "list saved snapshots instead of provenance")

	return cmd
}

func runHistory(opts *HistoryOptions, dbPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := context.Background()

	filter := store.ProvenanceFilter{
		EntityID: opts.Entity,
		Action:   opts.Action,
		Property: opts.Property,
		Limit:    opts.Limit,
	}
	if opts.Since != "" {
		since, err := time.Parse(time.RFC3339, opts.Since)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, "parsing --since", err)
		}
		filter.Since = since
	}
	if opts.Limit < 0 {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("--limit must not be negative, got %d", opts.Limit), nil)
	}

	st, err := openStore(dbPath)
	if err != nil {
		return failLoad(formatter, err)
	}
	defer st.Close()

	if opts.Snapshots {
		snaps, err := st.ListSnapshots(ctx)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, "listing snapshots", err)
		}
		if opts.Format == "json" {
			return formatter.JSON(StatusOK, HistoryResult{Snapshots: snaps}, nil)
		}
		printSnapshots(formatter, snaps)
		return nil
	}

	entries, err := st.QueryProvenance(ctx, filter)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, "querying provenance", err)
	}
	formatter.VerboseLog("%d matching entries", len(entries))

	if opts.Format == "json" {
		if entries == nil {
			entries = []provenance.Entry{}
		}
		return formatter.JSON(StatusOK, HistoryResult{Entries: entries}, nil)
	}
	printEntries(formatter, entries)
	return nil
}

func printEntries(f *OutputFormatter, entries []provenance.Entry) {
	w := f.Writer
	if len(entries) == 0 {
		fmt.Fprintln(w, "No provenance entries.")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%s  #%-4d %-18s %s\n", e.Timestamp.Format(time.RFC3339), e.Seq, e.Action, e.EntityID)
		fmt.Fprintf(w, "    %s\n", strings.Join(e.Properties(), ", "))
	}
	fmt.Fprintf(w, "\n%d entries\n", len(entries))
}

func printSnapshots(f *OutputFormatter, snaps []store.Snapshot) {
	w := f.Writer
	if len(snaps) == 0 {
		fmt.Fprintln(w, "No snapshots.")
		return
	}
	for _, s := range snaps {
		fmt.Fprintf(w, "#%-4d %s  %d entities, %d in trash  %s\n",
			s.Seq, s.SavedAt.Format(time.RFC3339), s.EntityCount, s.TrashCount, s.Fingerprint)
	}
}
