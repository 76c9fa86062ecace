package cli

import "github.com/spf13/cobra"

// BuildVersion is overridden by release tooling (e.g. goreleaser).
var BuildVersion = "0.1.0-dev"

// GlobalOptions are shared flags across commands.
type GlobalOptions struct {
	ConfigPath string
	RulesPath  string
	Verbose    bool
}

func NewRootCommand() *cobra.Command {
	opts := &GlobalOptions{}

	cmd := &cobra.Command{
		Use:           "codesentinel",
		Short:         "Security code scanning and review orchestration",
		Long:          "codesentinel statically inspects source text for security weaknesses, scores risk, correlates security events into threats, and drives the review workflow on top of the findings.",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", ".codesentinel/config.yaml", "Engine config file path")
	cmd.PersistentFlags().StringVar(&opts.RulesPath, "rules", "", "Path to custom rule files")
	cmd.PersistentFlags().BoolVar(&opts.Verbose, "verbose", false, "Enable verbose logging")

	cmd.AddCommand(
		newScanCommand(opts),
		newChangedCommand(opts),
		newRulesCommand(opts),
		newDetectCommand(opts),
		newCICommand(opts),
		newVersionCommand(),
	)

	return cmd
}
