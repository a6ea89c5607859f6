package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/layerforge/layerforge/internal/adapters/outbound/tui"
)

func newScanCmd(g *globalFlags) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "scan [path]",
		Short: "Classify the project's source units into layers",
		Long:  "Scan a Java, Kotlin or Go project and report its source units by architectural layer with the inferred root namespace.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd, g, args)
			if err != nil {
				return err
			}
			defer app.Close()

			st := app.Scanner.Scan(app.ProjectPath, app.Config.Scan)
			if jsonOutput {
				return renderJSON(cmd, st)
			}
			fmt.Fprint(cmd.OutOrStdout(), tui.RenderStructure(st))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output structure as JSON")

	return cmd
}
