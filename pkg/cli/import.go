package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/taskview/pkg/config"
	"github.com/harrisonrobin/taskview/pkg/importer"
	"github.com/harrisonrobin/taskview/pkg/model"
)

type importOptions struct {
	section         string
	statusFlags     []string
	dryRun          bool
	allowDuplicates bool
	targets         []string
	allConfigured   bool
	quiet           bool

	// set when the flag was given explicitly
	sectionSet bool
	statusSet  bool
}

func newImportCmd(a *app) *cobra.Command {
	opts := &importOptions{}
	cmd := &cobra.Command{
		Use:   "import [source]",
		Short: "Copy tagged tasks from an external file into the today list",
		Long: `Copy tagged tasks from an external file into the today list.

source is a path, an extra_files alias (file name or stem) or the name of a
configured import target. A configured target named here still honours an
explicit --section (which switches it to a fixed section) and --status.
Use --target or --all-configured to run targets from the config unchanged.
Lines already present anywhere in the today file are skipped unless
--allow-duplicates is set.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, layout, err := a.load()
			if err != nil {
				return err
			}
			opts.sectionSet = cmd.Flags().Changed("section")
			opts.statusSet = cmd.Flags().Changed("status")
			targets, err := selectTargets(cfg, args, opts)
			if err != nil {
				return err
			}

			engine, err := importer.NewEngine(layout.Root, cfg, a.logger)
			if err != nil {
				return err
			}
			results, runErr := engine.ImportAll(targets, opts.dryRun)

			out := cmd.OutOrStdout()
			inserted := 0
			for _, res := range results {
				if res.Applied {
					inserted += len(res.Proposed)
				}
				if !opts.quiet {
					importer.WritePlan(out, res, opts.dryRun)
				}
			}
			switch {
			case opts.dryRun:
			case opts.quiet && inserted > 0:
				fmt.Fprintf(out, "[import] Inserted %d task(s).\n", inserted)
			case !opts.quiet && inserted > 0:
				fmt.Fprintf(out, "Imported %d task(s) total.\n", inserted)
			case !opts.quiet:
				fmt.Fprintln(out, "No tasks imported.")
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&opts.section, "section", model.DefaultImportSection, "Destination section for a manual source, or a fixed section overriding a configured target")
	cmd.Flags().StringArrayVarP(&opts.statusFlags, "status", "s", nil, "Statuses to import (comma separated, default transfer)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Preview the insertions without modifying the today file")
	cmd.Flags().BoolVar(&opts.allowDuplicates, "allow-duplicates", false, "Insert tasks even if the today file already has them")
	cmd.Flags().StringArrayVar(&opts.targets, "target", nil, "Name of a configured import target (repeatable)")
	cmd.Flags().BoolVar(&opts.allConfigured, "all-configured", false, "Run every configured import target")
	cmd.Flags().BoolVar(&opts.quiet, "quiet", false, "Suppress informational output")
	return cmd
}

// selectTargets assembles the targets to run, in the order --all-configured,
// --target, then the positional source. A name is only run once; a
// positional target with an explicit --section or --status replaces an
// earlier selection of the same name.
func selectTargets(cfg *config.Config, args []string, opts *importOptions) ([]model.ImportTarget, error) {
	var selected []model.ImportTarget
	seen := make(map[string]bool)
	add := func(t model.ImportTarget) {
		if seen[t.Name] {
			return
		}
		seen[t.Name] = true
		if opts.allowDuplicates {
			t.AllowDuplicates = true
		}
		selected = append(selected, t)
	}
	// replace swaps in an overridden copy of an already selected target
	replace := func(t model.ImportTarget) {
		if opts.allowDuplicates {
			t.AllowDuplicates = true
		}
		for i := range selected {
			if selected[i].Name == t.Name {
				selected[i] = t
			}
		}
	}

	if opts.allConfigured {
		for _, t := range cfg.ImportTargets {
			add(t)
		}
	}
	for _, name := range opts.targets {
		t, ok := cfg.FindTarget(name)
		if !ok {
			return nil, &importer.ImportError{Target: name, Err: errors.New("unknown target")}
		}
		add(t)
	}

	if len(args) == 1 {
		statuses, err := model.ParseStatusList(opts.statusFlags)
		if err != nil {
			return nil, &UsageError{Err: err}
		}
		if t, ok := cfg.FindTarget(args[0]); ok {
			if opts.sectionSet {
				section := strings.TrimSpace(opts.section)
				if section == "" {
					return nil, &UsageError{Err: errors.New("--section must not be empty")}
				}
				t.Strategy = model.SectionFixed
				t.Section = section
			}
			if opts.statusSet && len(statuses) > 0 {
				t.Statuses = statuses
			}
			if (opts.sectionSet || opts.statusSet) && seen[t.Name] {
				replace(t)
			} else {
				add(t)
			}
		} else {
			add(model.ImportTarget{
				Name:     "manual:" + args[0],
				Source:   args[0],
				Strategy: model.SectionFixed,
				Section:  opts.section,
				Statuses: statuses,
				TagStyle: model.TagStrip,
			})
		}
	}

	if len(selected) == 0 {
		return nil, &UsageError{Err: errors.New("no import targets specified; provide a source or use --target/--all-configured")}
	}
	return selected, nil
}
