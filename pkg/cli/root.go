package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harrisonrobin/taskview/pkg/config"
	"github.com/harrisonrobin/taskview/pkg/logging"
	"github.com/harrisonrobin/taskview/pkg/sources"
)

// UsageError marks bad command-line input, such as an unknown status.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }

func (e *UsageError) Unwrap() error { return e.Err }

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	var cfgErr *config.ConfigError
	var usageErr *UsageError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &cfgErr), errors.As(err, &usageErr):
		return 2
	default:
		return 1
	}
}

// app carries the global flags and the logger shared by subcommands.
type app struct {
	root       string
	configPath string
	verbose    bool
	logger     *zap.Logger
}

// load reads the configuration fresh for this invocation.
func (a *app) load() (*config.Config, sources.Layout, error) {
	root := a.root
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, sources.Layout{}, fmt.Errorf("failed to get working directory: %w", err)
		}
		root = cwd
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, sources.Layout{}, err
	}

	path := a.configPath
	if path == "" {
		path = filepath.Join(root, config.FileName)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, sources.Layout{}, err
	}
	for _, key := range cfg.Unknown {
		a.logger.Debug("Ignoring unknown config key", zap.String("key", key), zap.String("path", path))
	}
	return cfg, sources.DefaultLayout(root), nil
}

// NewRootCmd builds the command tree. A fresh tree per invocation keeps flag
// state from leaking between runs.
func NewRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	rootCmd := &cobra.Command{
		Use:   "taskview",
		Short: "Aggregate and import status-tagged tasks across plain-text lists",
		Long: `taskview scans the workspace task lists for lines tagged [i] in-progress,
[b] blocked, [w] waiting, [d] delegated, [x] done and [t] transfer.

It prints them grouped by status, writes configured view files, and copies
tagged lines from external files into the today list without duplicates.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			quiet, _ := cmd.Flags().GetBool("quiet")
			logger, err := logging.New(a.verbose, quiet)
			if err != nil {
				return fmt.Errorf("failed to build logger: %w", err)
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.root, "root", "", "Workspace root (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default: <root>/"+config.FileName+")")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newAggregateCmd(a))
	rootCmd.AddCommand(newSourcesCmd(a))
	rootCmd.AddCommand(newPersistCmd(a))
	rootCmd.AddCommand(newImportCmd(a))
	return rootCmd
}

// Execute runs the command line and reports any error on stderr.
func Execute(version string) error {
	rootCmd := NewRootCmd()
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
