package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/taskview/pkg/model"
	"github.com/harrisonrobin/taskview/pkg/sources"
	"github.com/harrisonrobin/taskview/pkg/status"
)

func newAggregateCmd(a *app) *cobra.Command {
	var (
		statusFlags []string
		listSources bool
	)
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Show tasks tagged [i], [b], [w], [d] or [x] grouped by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := model.ParseStatusList(statusFlags)
			if err != nil {
				return &UsageError{Err: err}
			}
			cfg, layout, err := a.load()
			if err != nil {
				return err
			}
			agg := status.NewAggregator(layout, cfg, a.logger)
			if listSources {
				writeSources(cmd.OutOrStdout(), agg.ListSources())
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), agg.Render(statuses))
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&statusFlags, "status", "s", nil, "Filter by status (comma separated), e.g. --status blocked,in-progress")
	cmd.Flags().BoolVar(&listSources, "list-sources", false, "Print the files being scanned and exit")
	return cmd
}

func newSourcesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the resolved source files and why any were skipped",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, layout, err := a.load()
			if err != nil {
				return err
			}
			agg := status.NewAggregator(layout, cfg, a.logger)
			writeSources(cmd.OutOrStdout(), agg.ListSources())
			return nil
		},
	}
}

func writeSources(w io.Writer, res *sources.Resolution) {
	for _, e := range res.Entries {
		name := e.Spec.Pattern
		if e.Outcome != sources.MatchedZero {
			name = res.DisplayID(e.Spec)
		}
		if e.Reason != "" {
			fmt.Fprintf(w, "%-12s %s (%s)\n", e.Outcome, name, e.Reason)
			continue
		}
		fmt.Fprintf(w, "%-12s %s\n", e.Outcome, name)
	}
}
