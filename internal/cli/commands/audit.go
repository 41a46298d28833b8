// Package commands implements the crudmap subcommands.
package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/crudmap/internal/config"
	"github.com/leapstack-labs/crudmap/internal/report"
	"github.com/leapstack-labs/crudmap/internal/state"
	"github.com/leapstack-labs/crudmap/internal/walker"
	"github.com/leapstack-labs/crudmap/pkg/audit"
	"github.com/leapstack-labs/crudmap/pkg/crud"
)

// NewAuditCommand creates the audit command, the main entry point: walk the
// tree, analyze every unit and render the per-file CRUD report.
func NewAuditCommand(getCfg func() *config.Config, getLogger func() *slog.Logger) *cobra.Command {
	var noState bool

	cmd := &cobra.Command{
		Use:   "audit [dir]",
		Short: "Audit a source tree for per-file, per-table CRUD operations",
		Long: `Walk the configured source tree, statically resolve string-built SQL in
every file, classify it per table, propagate effects across function calls
and report which tables each file creates, reads, updates or deletes.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getCfg()
			logger := getLogger()
			if len(args) == 1 {
				cfg.SourceDir = args[0]
			}

			views, err := config.LoadNameList(cfg.ViewsFile)
			if err != nil {
				return err
			}
			procs, err := config.LoadNameList(cfg.ProceduresFile)
			if err != nil {
				return err
			}
			logger.Debug("name lists loaded", "views", len(views), "procedures", len(procs))

			walked, err := walker.Collect(walker.Options{
				Root:        cfg.SourceDir,
				Extensions:  cfg.Extensions,
				MaxFileSize: cfg.MaxFileSize,
				Logger:      logger,
			})
			if err != nil {
				return err
			}
			logger.Info("collected source units", "units", len(walked.Units), "skipped", walked.Skipped)

			var store *state.Store
			var runID string
			if !noState && cfg.StatePath != "" {
				store = state.NewStore()
				if err := store.Open(cfg.StatePath); err != nil {
					return err
				}
				defer store.Close()
				if err := store.Migrate(); err != nil {
					return err
				}
				run, err := store.CreateRun(cfg.SourceDir)
				if err != nil {
					return err
				}
				runID = run.ID
			}

			auditor := audit.New(audit.Options{
				ViewNames:       views,
				ProcedureNames:  procs,
				CandidateCap:    cfg.CandidateCap,
				SweepCap:        cfg.SweepCap,
				StatementBudget: cfg.StatementBudget,
				Workers:         cfg.Workers,
			})
			res, err := auditor.Run(cmd.Context(), walked.Units)
			if err != nil {
				if store != nil {
					_ = store.CompleteRun(runID, len(walked.Units), 0, 0, 0, err.Error())
				}
				return err
			}
			logger.Info("analysis complete",
				"files", len(res.Files), "functions", res.Functions, "sweeps", res.Sweeps)

			diags := append(walked.Diagnostics, res.Diagnostics...)
			logDiagnostics(logger, diags)

			if store != nil {
				count, err := store.SaveFindings(runID, res.Files)
				if err != nil {
					return err
				}
				if err := store.CompleteRun(runID, len(res.Files), res.Functions, res.Sweeps, count, ""); err != nil {
					return err
				}
				logger.Debug("run persisted", "run_id", runID, "findings", count)
			}

			return report.Render(cmd.OutOrStdout(), res.Files, cfg.Output)
		},
	}

	cmd.Flags().BoolVar(&noState, "no-state", false, "do not record this run in the state database")
	return cmd
}

func logDiagnostics(logger *slog.Logger, diags []crud.Diagnostic) {
	for _, d := range diags {
		switch d.Severity {
		case crud.SeverityWarning:
			logger.Warn(d.Message, "unit", d.Unit)
		default:
			logger.Debug(d.Message, "unit", d.Unit)
		}
	}
}
