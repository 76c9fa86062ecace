package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wilson323/zk-agent-sub004/internal/model"
	"github.com/wilson323/zk-agent-sub004/internal/orchestrator"
	"github.com/wilson323/zk-agent-sub004/internal/report"
	"github.com/wilson323/zk-agent-sub004/internal/review"
)

type scanOptions struct {
	ConfigID         string
	Include          []string
	Exclude          []string
	MaxCritical      int
	MaxHigh          int
	MaxMedium        int
	MaxRisk          float64
	Format           string
	OutputPath       string
	CreateReviews    bool
	SecurityReport   string
	ComplianceReport string
}

func newScanCommand(global *GlobalOptions) *cobra.Command {
	opts := &scanOptions{}
	defaults := orchestrator.DefaultThresholds()

	cmd := &cobra.Command{
		Use:   "scan [target]",
		Short: "Scan a file tree and gate against thresholds",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "."
			if len(args) == 1 {
				target = args[0]
			}

			app, err := buildApp(global.ConfigPath, global.RulesPath, global.Verbose)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			start := time.Now().UTC()

			cfg := app.Orchestrator.CreateConfig(model.ScanConfig{
				ID:              opts.ConfigID,
				Name:            "cli",
				Enabled:         true,
				IncludePatterns: opts.Include,
				ExcludePatterns: opts.Exclude,
				Thresholds: model.Thresholds{
					Critical:  opts.MaxCritical,
					High:      opts.MaxHigh,
					Medium:    opts.MaxMedium,
					RiskScore: opts.MaxRisk,
				},
			})

			files, err := orchestrator.LoadDir(target)
			if err != nil {
				return fmt.Errorf("load target %s: %w", target, err)
			}

			set, err := app.Orchestrator.ScanFileSet(ctx, files, cfg.ID)
			if err != nil {
				return err
			}

			if opts.CreateReviews {
				createReviews(app, set)
			}
			if err := writeOutput(set, opts.Format, opts.OutputPath, cmd.OutOrStdout()); err != nil {
				return err
			}
			if err := writeSideReports(app, start, opts); err != nil {
				return err
			}

			if !set.Passed {
				return &ExitError{Code: 2, Message: "scan failed threshold gating"}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.ConfigID, "config-id", "", "Scan config id to report under (generated if empty)")
	cmd.Flags().StringSliceVar(&opts.Include, "include", nil, "Include glob patterns")
	cmd.Flags().StringSliceVar(&opts.Exclude, "exclude", nil, "Exclude glob patterns (exclude wins)")
	cmd.Flags().IntVar(&opts.MaxCritical, "max-critical", defaults.Critical, "Critical violation threshold")
	cmd.Flags().IntVar(&opts.MaxHigh, "max-high", defaults.High, "High violation threshold")
	cmd.Flags().IntVar(&opts.MaxMedium, "max-medium", defaults.Medium, "Medium violation threshold")
	cmd.Flags().Float64Var(&opts.MaxRisk, "max-risk", defaults.RiskScore, "Mean risk score threshold")
	cmd.Flags().StringVar(&opts.Format, "format", "human", "Output format: human|json|sarif")
	cmd.Flags().StringVar(&opts.OutputPath, "output", "", "Output file path (default stdout)")
	cmd.Flags().BoolVar(&opts.CreateReviews, "create-reviews", false, "Open review entries for files with violations")
	cmd.Flags().StringVar(&opts.SecurityReport, "security-report", "", "Also write a security report JSON to this path")
	cmd.Flags().StringVar(&opts.ComplianceReport, "compliance-report", "", "Also write a compliance report JSON to this path")

	return cmd
}

func createReviews(app *App, set orchestrator.SetResult) {
	reviewID := model.NewID("review")
	actor := model.AuditActor{ID: "codesentinel", Name: "codesentinel", Role: "automation"}
	for _, r := range set.Results {
		if len(r.Violations) == 0 {
			continue
		}
		entry := app.Tracker.Create(reviewID, r, actor)
		app.Logger.Info("review entry created",
			zap.String("entry_id", entry.ID),
			zap.String("file", r.FilePath))
	}
}

func writeOutput(set orchestrator.SetResult, format string, outputPath string, stdout io.Writer) error {
	w := stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return report.Write(set, format, w)
}

func writeSideReports(app *App, start time.Time, opts *scanOptions) error {
	end := time.Now().UTC()
	if opts.SecurityReport != "" {
		sec := report.BuildSecurity(app.Threat.EventsBetween(start, end), start, end)
		if err := writeJSONFile(opts.SecurityReport, sec); err != nil {
			return err
		}
	}
	if opts.ComplianceReport != "" {
		audits := app.Tracker.Audit().Query(review.AuditQuery{From: start, To: end})
		comp := report.BuildCompliance(app.Tracker.Entries(), audits, start, end)
		if err := writeJSONFile(opts.ComplianceReport, comp); err != nil {
			return err
		}
	}
	return nil
}

func writeJSONFile(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
