package cli

import (
	"github.com/spf13/cobra"

	"github.com/layerforge/layerforge/internal/bootstrap"
)

var (
	version = "dev"
	commit  = "none"
)

// globalFlags are the persistent flags shared by every project command.
type globalFlags struct {
	model   string
	verbose bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	cmd := &cobra.Command{
		Use:   "layerforge",
		Short: "Layer-by-layer feature edits driven by a language model",
		Long: "layerforge scans an existing code base, decides where each layer of a requested feature belongs, " +
			"and lets a language model edit those files inside a sandbox, one layer at a time.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&g.model, "model", "",
		"Model override as provider[:name], e.g. ollama:qwen2.5-coder or scripted:run.yaml (env "+bootstrap.ModelEnv+")")
	cmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Log debug records to stderr")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newScanCmd(g))
	cmd.AddCommand(newDecideCmd(g))
	cmd.AddCommand(newGenerateCmd(g))
	cmd.AddCommand(newHistoryCmd(g))
	cmd.AddCommand(newMCPCmd(g))
	return cmd
}

// NewRootCmdForTest returns the root command for testing.
func NewRootCmdForTest() *cobra.Command {
	return newRootCmd()
}

func Execute() error {
	return newRootCmd().Execute()
}

// openApp wires the project at the optional path argument.
func openApp(cmd *cobra.Command, g *globalFlags, args []string) (*bootstrap.App, error) {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	return bootstrap.New(bootstrap.Options{
		ProjectPath:   path,
		ModelOverride: g.model,
		Verbose:       g.verbose,
		Stderr:        cmd.ErrOrStderr(),
	})
}
