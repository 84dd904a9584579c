// Package cli implements the poolplan command tree.
package cli

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RootOptions holds global flags and process collaborators shared by all
// commands.
type RootOptions struct {
	Verbose    bool
	Format     string
	ConfigPath string

	// Getenv resolves environment overrides; os.Getenv when nil.
	Getenv func(string) string
	// Logger is built from Verbose before each command unless preset.
	Logger *zap.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the poolplan root command.
func NewRootCommand(opts *RootOptions) *cobra.Command {
	if opts == nil {
		opts = &RootOptions{}
	}
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}
	built := false
	cmd := &cobra.Command{
		Use:   "poolplan",
		Short: "Plan stock-sample pool creation for siRNA pool libraries",
		Long: `poolplan computes transfer volumes, the destination layout and the buffer
worklists for a pool-creation request, persists the resulting plan and
publishes the worklists as CSV artifacts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if opts.Logger != nil {
				return nil
			}
			config := zap.NewProductionConfig()
			if opts.Verbose {
				config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			logger, err := config.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			opts.Logger = logger
			built = true
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if built && opts.Logger != nil {
				_ = opts.Logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging and stage traces on stderr")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "YAML configuration file")

	cmd.AddCommand(NewPlanCommand(opts))
	cmd.AddCommand(NewShapeCommand(opts))
	return cmd
}
