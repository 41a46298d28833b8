package commands

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/crudmap/internal/config"
	"github.com/leapstack-labs/crudmap/internal/state"
)

// NewRunsCommand creates the runs command group: listing past audit runs
// and showing a stored run's findings.
func NewRunsCommand(getCfg func() *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded audit runs",
	}
	cmd.AddCommand(newRunsListCommand(getCfg))
	cmd.AddCommand(newRunsShowCommand(getCfg))
	return cmd
}

func openStore(cfg *config.Config) (*state.Store, error) {
	if cfg.StatePath == "" {
		return nil, fmt.Errorf("no state database configured")
	}
	store := state.NewStore()
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func newRunsListCommand(getCfg func() *config.Config) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(getCfg())
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "(no runs)")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"ID", "Source", "Status", "Started", "Files", "Findings"})
			for _, r := range runs {
				t.AppendRow(table.Row{
					r.ID, r.SourceDir, string(r.Status),
					r.StartedAt.Format("2006-01-02 15:04:05"),
					r.Files, r.Findings,
				})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list")
	return cmd
}

func newRunsShowCommand(getCfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a recorded run's findings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(getCfg())
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.GetRun(args[0])
			if err != nil {
				return err
			}
			findings, err := store.GetFindings(run.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Run %s  %s  %s\n", run.ID, run.SourceDir, run.Status)
			if run.Error != "" {
				_, _ = fmt.Fprintf(out, "Error: %s\n", run.Error)
			}

			t := table.NewWriter()
			t.SetOutputMirror(out)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"File", "Table", "CRUD", "Annotations"})
			for _, f := range findings {
				t.AppendRow(table.Row{f.File, f.Table, f.Ops, strings.ReplaceAll(f.Annotations, ",", ", ")})
			}
			t.Render()
			_, _ = fmt.Fprintf(out, "(%d findings)\n", len(findings))
			return nil
		},
	}
}
