package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/layerforge/layerforge/internal/adapters/outbound/tui"
)

func newDecideCmd(g *globalFlags) *cobra.Command {
	var (
		feature    featureFlags
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "decide [path]",
		Short: "Show where each layer of a feature would go",
		Long:  "Scan the project and ask the model, per layer, whether the feature enhances an existing unit or creates a new one. No file is touched.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd, g, args)
			if err != nil {
				return err
			}
			defer app.Close()

			f, err := feature.request(app.ProjectPath)
			if err != nil {
				return err
			}
			decider, err := app.Decider(cmd.Context())
			if err != nil {
				return err
			}
			st := app.Scanner.Scan(app.ProjectPath, app.Config.Scan)
			decisions := decider.Decide(cmd.Context(), st, f)

			if jsonOutput {
				return renderJSON(cmd, decisions)
			}
			fmt.Fprint(cmd.OutOrStdout(), tui.RenderStructure(st))
			fmt.Fprint(cmd.OutOrStdout(), tui.RenderDecisions(decisions))
			return nil
		},
	}

	feature.register(cmd)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output decisions as JSON")

	return cmd
}
