// Package cli provides the crudmap command-line interface.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/crudmap/internal/cli/commands"
	"github.com/leapstack-labs/crudmap/internal/config"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var (
		cfgFile string
		cfg     *config.Config
		logger  *slog.Logger
	)

	rootCmd := &cobra.Command{
		Use:   "crudmap",
		Short: "crudmap - CRUD audit for legacy source trees",
		Long: `crudmap statically audits a legacy source tree and reports, per file and
per database table, which Create/Read/Update/Delete operations the code
performs, following string-built SQL through variables, constants and
function calls.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			var err error
			cfg, err = config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			logger = newLogger(cmd.ErrOrStderr(), cfg.Verbose)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./crudmap.yaml)")
	rootCmd.PersistentFlags().String("source-dir", "", "root of the audited source tree")
	rootCmd.PersistentFlags().String("views-file", "", "newline-delimited list of view names")
	rootCmd.PersistentFlags().String("procedures-file", "", "newline-delimited list of execution-call names")
	rootCmd.PersistentFlags().Int("workers", 0, "per-file analysis parallelism")
	rootCmd.PersistentFlags().Int("candidate-cap", 0, "max literal candidates per resolved value")
	rootCmd.PersistentFlags().Int("sweep-cap", 0, "max call-graph propagation sweeps")
	rootCmd.PersistentFlags().Int("statement-budget", 0, "max bytes per classified SQL candidate")
	rootCmd.PersistentFlags().Int64("max-file-size", 0, "skip files larger than this many bytes")
	rootCmd.PersistentFlags().StringP("output", "o", "", "output format: table, csv or json")
	rootCmd.PersistentFlags().String("state-path", "", "path to the run-history database")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")

	getCfg := func() *config.Config { return cfg }
	getLogger := func() *slog.Logger { return logger }

	rootCmd.AddCommand(commands.NewAuditCommand(getCfg, getLogger))
	rootCmd.AddCommand(commands.NewRunsCommand(getCfg))
	rootCmd.AddCommand(commands.NewVersionCommand(Version, GitCommit))

	return rootCmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
