package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wilson323/zk-agent-sub004/internal/rules"
)

func newRulesCommand(global *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect, validate, and exercise detection rules",
	}
	cmd.AddCommand(newRulesListCommand(global))
	cmd.AddCommand(newRulesCheckCommand(global))
	cmd.AddCommand(newRulesTestCommand(global))
	return cmd
}

func newRulesListCommand(global *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the rules currently admitted to the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(global.ConfigPath, global.RulesPath, global.Verbose)
			if err != nil {
				return err
			}
			defer app.Close()

			all := app.Catalog.All()
			sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSEVERITY\tCATEGORY\tENABLED\tNAME")
			for _, r := range all {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", r.ID, r.Severity, r.Category, r.Enabled, r.Name)
			}
			return tw.Flush()
		},
	}
}

// newRulesCheckCommand runs the full admission pipeline against a rule file
// without touching the live catalog.
func newRulesCheckCommand(global *GlobalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "check <rules-file-or-dir>",
		Short: "Validate rule definitions without admitting them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(global.ConfigPath, global.RulesPath, global.Verbose)
			if err != nil {
				return err
			}
			defer app.Close()

			specs, err := rules.LoadSpecs(args[0])
			if err != nil {
				return err
			}
			if len(specs) == 0 {
				return fmt.Errorf("no rules found at %s", args[0])
			}

			out := cmd.OutOrStdout()
			rejected := 0
			for _, spec := range specs {
				rep := app.Validator.Admit(spec.Rule(), spec.Tests)
				if !rep.Accepted {
					rejected++
				}
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					if err := enc.Encode(map[string]any{"rule_id": spec.ID, "report": rep}); err != nil {
						return err
					}
					continue
				}
				status := "accepted"
				if !rep.Accepted {
					status = "rejected"
				}
				fmt.Fprintf(out, "%s: %s (complexity %s, %.2fms)\n",
					spec.ID, status, rep.Performance.ComplexityBucket, rep.Performance.ExecutionTimeMs)
				for _, e := range rep.Errors {
					fmt.Fprintf(out, "  error: %s\n", e)
				}
				for _, w := range rep.Warnings {
					fmt.Fprintf(out, "  warning: %s\n", w)
				}
				for _, s := range rep.Suggestions {
					fmt.Fprintf(out, "  suggestion: %s\n", s)
				}
			}
			if rejected > 0 {
				return &ExitError{Code: 2, Message: fmt.Sprintf("%d of %d rule(s) rejected", rejected, len(specs))}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit one JSON report per rule")
	return cmd
}

// newRulesTestCommand runs one admitted rule against a sample file and
// reports match count plus execution cost.
func newRulesTestCommand(global *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test <rule-id> <sample-file>",
		Short: "Run a catalog rule against sample text",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(global.ConfigPath, global.RulesPath, global.Verbose)
			if err != nil {
				return err
			}
			defer app.Close()

			rule, ok := app.Catalog.Get(args[0])
			if !ok {
				return fmt.Errorf("rule %s not in catalog", args[0])
			}
			sample, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}

			outcome, err := app.Validator.Test(rule, string(sample))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d match(es) in %.2fms (%d bytes allocated)\n",
				rule.ID, outcome.Matches, outcome.ExecutionTimeMs, outcome.MemoryDeltaBytes)
			return nil
		},
	}
	return cmd
}
