package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/layerforge/layerforge/internal/adapters/outbound/taskstore"
	"github.com/layerforge/layerforge/internal/adapters/outbound/tui"
)

func newHistoryCmd(g *globalFlags) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history [path]",
		Short: "List past generation runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd, g, args)
			if err != nil {
				return err
			}
			defer app.Close()

			runs, err := app.History.Load(app.ProjectPath)
			if err != nil {
				return fmt.Errorf("loading history: %w", err)
			}
			if jsonOutput {
				return renderJSON(cmd, runs)
			}
			fmt.Fprint(cmd.OutOrStdout(), tui.RenderHistory(runs))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output history as JSON")
	cmd.AddCommand(newHistoryShowCmd(g))
	cmd.AddCommand(newHistoryStatusCmd(g))

	return cmd
}

func newHistoryShowCmd(g *globalFlags) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id> [path]",
		Short: "Show the full report of one run",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd, g, args[1:])
			if err != nil {
				return err
			}
			defer app.Close()

			report, err := app.History.Get(app.ProjectPath, args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return renderJSON(cmd, report)
			}
			fmt.Fprint(cmd.OutOrStdout(), tui.RenderReport(report))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the report as JSON")

	return cmd
}

func newHistoryStatusCmd(g *globalFlags) *cobra.Command {
	var (
		runID      string
		jsonOutput bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "status [path]",
		Short: "Show live run status from the task store",
		Long:  "List the most recent runs, or with --run show one run's layers as they progress.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd, g, args)
			if err != nil {
				return err
			}
			defer app.Close()

			store, err := app.Tasks()
			if err != nil {
				return err
			}

			var runs []taskstore.RunStatus
			if runID != "" {
				run, err := store.Run(runID)
				if err != nil {
					return err
				}
				runs = []taskstore.RunStatus{*run}
			} else if runs, err = store.Recent(limit); err != nil {
				return err
			}

			if jsonOutput {
				return renderJSON(cmd, runs)
			}
			writeRunStatus(cmd.OutOrStdout(), runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "Run id to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status as JSON")
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of recent runs to list")

	return cmd
}

func writeRunStatus(w io.Writer, runs []taskstore.RunStatus) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %-9s  %s  %s\n", r.ID, r.Status, r.StartedAt.Local().Format(time.DateTime), r.Keyword)
		for _, l := range r.Layers {
			line := fmt.Sprintf("  %-20s %-16s %-10s turns=%d", l.Layer, l.Action, l.Status, l.Turns)
			if len(l.WrittenFiles) > 0 {
				line += "  " + strings.Join(l.WrittenFiles, ", ")
			}
			if l.Error != "" {
				line += "  error: " + l.Error
			}
			fmt.Fprintln(w, line)
		}
	}
}
