package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/layerforge/layerforge/internal/adapters/outbound/tui"
	"github.com/layerforge/layerforge/internal/application"
	"github.com/layerforge/layerforge/internal/domain"
)

func newGenerateCmd(g *globalFlags) *cobra.Command {
	var (
		feature    featureFlags
		layerList  string
		parallel   bool
		jsonOutput bool
		strict     bool
	)

	cmd := &cobra.Command{
		Use:   "generate [path]",
		Short: "Generate a feature layer by layer",
		Long: "Run the full pipeline: scan, decide placement, then let the model edit files for each layer in dependency order " +
			"(dto, entity, data_access, domain_service, external_client, application_service, controller). " +
			"Every overwritten file is backed up first.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			layers, err := domain.ParseLayers(layerList)
			if err != nil {
				return err
			}

			app, err := openApp(cmd, g, args)
			if err != nil {
				return err
			}
			defer app.Close()

			f, err := feature.request(app.ProjectPath)
			if err != nil {
				return err
			}
			pipeline, err := app.Pipeline(cmd.Context())
			if err != nil {
				return err
			}
			report, err := pipeline.Run(cmd.Context(), f, application.RunOptions{
				Layers:   layers,
				Parallel: parallel,
			})
			if err != nil {
				return err
			}

			if jsonOutput {
				if err := renderJSON(cmd, report); err != nil {
					return err
				}
			} else {
				fmt.Fprint(cmd.OutOrStdout(), tui.RenderReport(report))
			}

			if strict && !report.Success {
				return fmt.Errorf("run %s committed no changes", report.ID)
			}
			return nil
		},
	}

	feature.register(cmd)
	cmd.Flags().StringVar(&layerList, "layers", "", "Comma-separated layers to generate (default: all)")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "Generate the selected layers concurrently")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the run report as JSON")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when no layer committed a change")

	return cmd
}
