package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/clock"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/store"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/trash"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/vault"
)

// TrashOptions holds flags for the trash command.
type TrashOptions struct {
	*RootOptions
	Cleanup       bool
	Empty         bool
	RetentionDays int
}

// TrashResult is the JSON payload of the trash command.
type TrashResult struct {
	Stats   trash.Stats           `json:"stats"`
	Entries []vault.TrashedEntity `json:"entries"`
	Purged  []string              `json:"purged,omitempty"`
	// Snapshot is the seq of the snapshot saved after a purge.
	Snapshot int64 `json:"snapshot,omitempty"`
}

// NewTrashCommand creates the trash command.
func NewTrashCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TrashOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trash <session.db>",
		Short: "Inspect or purge the trash of a session database",
		Long: `Show the trash of the newest snapshot in a session database.

With --cleanup entries older than the retention window are purged; with
--empty every entry is purged. Either saves a new snapshot.

Examples:
  iiifvault trash session.db
  iiifvault trash session.db --cleanup
  iiifvault trash session.db --cleanup --retention-days 7
  iiifvault trash session.db --empty`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrash(opts, args[0], clock.System{}, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Cleanup, "cleanup", false, "purge entries older than the retention window")
	cmd.Flags().BoolVar(&opts.Empty, "empty", false, "purge every entry")
	cmd.Flags().IntVar(&opts.RetentionDays, "retention-days", trash.DefaultRetentionDays, "retention window for --cleanup")

	return cmd
}

func runTrash(opts *TrashOptions, dbPath string, c clock.Clock, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := context.Background()

	if opts.Cleanup && opts.Empty {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "--cleanup and --empty are mutually exclusive", nil)
	}
	if opts.RetentionDays < 0 {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("--retention-days must not be negative, got %d", opts.RetentionDays), nil)
	}

	st, err := openStore(dbPath)
	if err != nil {
		return failLoad(formatter, err)
	}
	defer st.Close()

	snap, err := st.LoadLatestSnapshot(ctx)
	if errors.Is(err, store.ErrNoSnapshot) {
		return formatter.Fail(ExitCommandError, ErrCodeNoSnapshot, fmt.Sprintf("%s holds no snapshot", dbPath), err)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, "loading snapshot", err)
	}

	now := c.Now()
	state := snap.State
	var result TrashResult
	switch {
	case opts.Cleanup:
		state, result.Purged = trash.Cleanup(state, opts.RetentionDays, now)
	case opts.Empty:
		state, result.Purged = trash.EmptyTrash(state)
	}
	if len(result.Purged) > 0 {
		saved, _, err := st.SaveSnapshot(ctx, state, now)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, "saving snapshot", err)
		}
		result.Snapshot = saved.Seq
		formatter.VerboseLog("Purged %d entries, saved snapshot %d", len(result.Purged), saved.Seq)
	}
	sort.Strings(result.Purged)

	result.Stats = trash.GetStats(state, now)
	result.Entries = state.TrashEntries()
	if result.Entries == nil {
		result.Entries = []vault.TrashedEntity{}
	}

	if opts.Format == "json" {
		return formatter.JSON(StatusOK, result, nil)
	}

	w := formatter.Writer
	for _, id := range result.Purged {
		fmt.Fprintf(w, "Purged %s\n", id)
	}
	if result.Stats.ItemCount == 0 {
		fmt.Fprintln(w, "Trash is empty.")
		return nil
	}
	fmt.Fprintf(w, "Trash: %d item(s), %d expiring soon\n", result.Stats.ItemCount, result.Stats.ExpiringSoon)
	for _, kind := range ir.Kinds {
		if n := result.Stats.ItemsByType[kind]; n > 0 {
			fmt.Fprintf(w, "  %-15s %d\n", kind, n)
		}
	}
	for _, e := range result.Entries {
		age := int(now.Sub(e.TrashedAt) / (24 * time.Hour))
		fmt.Fprintf(w, "  %s %s (from %s, %d day(s) ago)\n", e.Kind, e.ID, e.OriginalParentID, age)
	}
	return nil
}
