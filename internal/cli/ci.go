package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wilson323/zk-agent-sub004/internal/ciconfig"
	"github.com/wilson323/zk-agent-sub004/internal/model"
	"github.com/wilson323/zk-agent-sub004/internal/orchestrator"
)

func newCICommand(global *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ci",
		Short: "Generate CI pipeline integration files",
	}
	cmd.AddCommand(newCIGenerateCommand(global))
	return cmd
}

func newCIGenerateCommand(global *GlobalOptions) *cobra.Command {
	var (
		platform string
		configID string
		outDir   string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a scan step for a CI platform",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := model.ScanConfig{
				ID:         configID,
				Name:       "ci",
				Enabled:    true,
				Thresholds: orchestrator.DefaultThresholds(),
			}
			if configID == "" {
				cfg.ID = model.NewID("config")
			}

			artifact, err := ciconfig.Generate(cfg, platform)
			if err != nil {
				return err
			}

			path := filepath.Join(outDir, artifact.Filename)
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
			}
			if err := os.WriteFile(path, []byte(artifact.Content), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&platform, "platform", "github-actions", "Target platform: github-actions|shell")
	cmd.Flags().StringVar(&configID, "config-id", "", "Scan config id the pipeline invokes (generated if empty)")
	cmd.Flags().StringVar(&outDir, "out", ".", "Directory to write the artifact under")

	return cmd
}
