package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wilson323/zk-agent-sub004/internal/threat"
)

// newDetectCommand runs the front-line request heuristics against a single
// request described by flags. Useful for tuning patterns and wiring gateways.
func newDetectCommand(global *GlobalOptions) *cobra.Command {
	req := threat.RequestContext{}
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Evaluate one request against the threat heuristics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(global.ConfigPath, global.RulesPath, global.Verbose)
			if err != nil {
				return err
			}
			defer app.Close()

			res := app.Threat.Detect(req)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(res); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(out, "risk score: %.1f\n", res.RiskScore)
				for _, t := range res.Threats {
					fmt.Fprintf(out, "threat: %s\n", t)
				}
			}
			if res.Blocked {
				return &ExitError{Code: 2, Message: "request blocked"}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&req.SourceIP, "source-ip", "", "Request source address")
	cmd.Flags().StringVar(&req.UserAgent, "user-agent", "", "Request user agent")
	cmd.Flags().StringVar(&req.UserID, "user-id", "", "Authenticated user id, if any")
	cmd.Flags().StringVar(&req.Path, "path", "/", "Request path")
	cmd.Flags().StringVar(&req.Query, "query", "", "Raw query string")
	cmd.Flags().StringVar(&req.Body, "body", "", "Request body text")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the result as JSON")

	return cmd
}
