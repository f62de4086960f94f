package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/taskview/pkg/status"
)

func newPersistCmd(a *app) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "persist",
		Short: "Write every configured status_outputs view file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, layout, err := a.load()
			if err != nil {
				return err
			}
			if len(cfg.StatusOutputs) == 0 {
				a.logger.Info("No status_outputs configured")
				return nil
			}
			agg := status.NewAggregator(layout, cfg, a.logger)
			written, err := agg.Persist(cfg.StatusOutputs)
			if !quiet {
				for _, path := range written {
					fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
				}
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&quiet, "quiet", false, "Suppress informational output")
	return cmd
}
