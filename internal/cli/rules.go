package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/rules"
)

// RulesOptions holds flags for the rules command.
type RulesOptions struct {
	*RootOptions
	Kind string
}

// SlotRule lists the kinds a parent may hold in one slot.
type SlotRule struct {
	Parent  ir.Kind   `json:"parent"`
	Slot    ir.Slot   `json:"slot"`
	Allowed []ir.Kind `json:"allowed"`
	Limit   int       `json:"limit,omitempty"`
}

// RulesResult is the JSON payload of the rules command.
type RulesResult struct {
	Behaviors    []rules.Behavior    `json:"behaviors"`
	DisjointSets []rules.DisjointSet `json:"disjointSets"`
	Hierarchy    []SlotRule          `json:"hierarchy"`
}

// NewRulesCommand creates the rules command.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RulesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Print the behavior and hierarchy rules",
		Long: `Print the rule tables used for validation: behavior tokens and the
types they are valid for, mutually exclusive behavior sets, and which
child types each type may hold per slot.

Use --rules to inspect a custom CUE rules file.

Examples:
  iiifvault rules
  iiifvault rules --kind Manifest
  iiifvault rules --rules custom.cue --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRules(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only rules for this entity type")

	return cmd
}

func runRules(opts *RulesOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	table, err := LoadRules(opts.Rules)
	if err != nil {
		return failLoad(formatter, err)
	}

	kinds := ir.Kinds
	if opts.Kind != "" {
		k, ok := parseKind(opts.Kind)
		if !ok {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("unknown type %q", opts.Kind), nil)
		}
		kinds = []ir.Kind{k}
	}

	result := RulesResult{
		Behaviors:    []rules.Behavior{},
		DisjointSets: table.DisjointSets(),
		Hierarchy:    []SlotRule{},
	}
	for _, b := range table.Behaviors() {
		if opts.Kind == "" || validFor(b, kinds[0]) {
			result.Behaviors = append(result.Behaviors, b)
		}
	}
	for _, parent := range kinds {
		for _, slot := range table.SlotsFor(parent) {
			result.Hierarchy = append(result.Hierarchy, SlotRule{
				Parent:  parent,
				Slot:    slot,
				Allowed: table.AllowedChildren(parent, slot),
				Limit:   table.SlotLimit(parent, slot),
			})
		}
	}

	if opts.Format == "json" {
		return formatter.JSON(StatusOK, result, nil)
	}

	w := formatter.Writer
	fmt.Fprintln(w, "Behaviors:")
	category := ""
	for _, b := range result.Behaviors {
		if b.Category != category {
			category = b.Category
			fmt.Fprintf(w, "  [%s]\n", category)
		}
		fmt.Fprintf(w, "    %-22s %s\n", b.Token, joinKinds(b.ValidFor))
	}
	fmt.Fprintln(w, "\nDisjoint sets:")
	for _, set := range result.DisjointSets {
		def := ""
		if set.Default != "" {
			def = fmt.Sprintf(" (default %s)", set.Default)
		}
		fmt.Fprintf(w, "  %-12s %s%s\n", set.Name, strings.Join(set.Members, " | "), def)
	}
	fmt.Fprintln(w, "\nHierarchy:")
	for _, r := range result.Hierarchy {
		limit := ""
		if r.Limit > 0 {
			limit = fmt.Sprintf(" (max %d)", r.Limit)
		}
		fmt.Fprintf(w, "  %s.%s -> %s%s\n", r.Parent, r.Slot, joinKinds(r.Allowed), limit)
	}
	return nil
}

func parseKind(name string) (ir.Kind, bool) {
	for _, k := range ir.Kinds {
		if strings.EqualFold(string(k), name) {
			return k, true
		}
	}
	return "", false
}

func validFor(b rules.Behavior, kind ir.Kind) bool {
	for _, k := range b.ValidFor {
		if k == kind {
			return true
		}
	}
	return false
}

func joinKinds(kinds []ir.Kind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, ", ")
}
