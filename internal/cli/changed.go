package cli

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wilson323/zk-agent-sub004/internal/model"
	"github.com/wilson323/zk-agent-sub004/internal/orchestrator"
)

type changedOptions struct {
	Base        string
	MaxCritical int
	MaxHigh     int
}

// newChangedCommand gates the files touched since a git base ref. Meant for
// pre-merge hooks: blocking findings exit non-zero, warnings do not.
func newChangedCommand(global *GlobalOptions) *cobra.Command {
	opts := &changedOptions{}
	defaults := orchestrator.DefaultThresholds()

	cmd := &cobra.Command{
		Use:   "changed",
		Short: "Scan only the files changed since a git base ref",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(global.ConfigPath, global.RulesPath, global.Verbose)
			if err != nil {
				return err
			}
			defer app.Close()

			changes, err := gitChanges(opts.Base)
			if err != nil {
				return err
			}
			if len(changes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no changed files")
				return nil
			}

			cfg := app.Orchestrator.CreateConfig(model.ScanConfig{
				Name:    "changed",
				Enabled: true,
				Thresholds: model.Thresholds{
					Critical: opts.MaxCritical,
					High:     opts.MaxHigh,
					Medium:   defaults.Medium,
				},
			})

			res, err := app.Orchestrator.ScanChangedFiles(cmd.Context(), changes, cfg.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, w := range res.Warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			for _, f := range res.BlockedFiles {
				fmt.Fprintf(out, "blocked: %s\n", f)
			}
			if !res.Passed {
				return &ExitError{Code: 2, Message: fmt.Sprintf("%d changed file(s) blocked", len(res.BlockedFiles))}
			}
			fmt.Fprintf(out, "%d changed file(s) passed\n", len(changes))
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Base, "base", "HEAD", "Git ref to diff against")
	cmd.Flags().IntVar(&opts.MaxCritical, "max-critical", defaults.Critical, "Critical violation threshold per file")
	cmd.Flags().IntVar(&opts.MaxHigh, "max-high", defaults.High, "High violation threshold per file")

	return cmd
}

// gitChanges shells out to git for the changed-file list and reads current
// content from the working tree. Deleted files carry no content.
func gitChanges(base string) ([]orchestrator.FileChange, error) {
	out, err := exec.Command("git", "diff", "--name-status", "--no-renames", base).Output()
	if err != nil {
		return nil, fmt.Errorf("git diff against %s: %w", base, err)
	}

	var changes []orchestrator.FileChange
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		status, path := parts[0], parts[len(parts)-1]
		change := orchestrator.FileChange{Path: path, Status: changeStatus(status)}
		if change.Status != "deleted" {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read changed file %s: %w", path, err)
			}
			change.Content = string(data)
		}
		changes = append(changes, change)
	}
	return changes, sc.Err()
}

func changeStatus(letter string) string {
	switch {
	case strings.HasPrefix(letter, "A"):
		return "added"
	case strings.HasPrefix(letter, "D"):
		return "deleted"
	case strings.HasPrefix(letter, "M"):
		return "modified"
	default:
		return "modified"
	}
}
