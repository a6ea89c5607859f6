package cli

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	mcpadapter "github.com/layerforge/layerforge/internal/adapters/inbound/mcp"
)

func newMCPCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "MCP server commands",
		Long:  "Commands for running the layerforge MCP (Model Context Protocol) server.",
	}
	cmd.AddCommand(newMCPServeCmd(g))
	return cmd
}

func newMCPServeCmd(g *globalFlags) *cobra.Command {
	var projectPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start layerforge MCP server (stdio)",
		Long:  "Start the layerforge MCP server using stdio transport so coding assistants can scan the project, plan placement and run generation.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectPath == "" {
				projectPath = "."
			}
			// Logs must stay off stdout, which carries the protocol.
			app, err := openApp(cmd, g, []string{projectPath})
			if err != nil {
				return err
			}
			defer app.Close()

			mcpadapter.ServerVersion = version
			return server.ServeStdio(mcpadapter.NewLayerforgeMCPServer(app))
		},
	}

	cmd.Flags().StringVar(&projectPath, "path", "", "Project path (defaults to current working directory)")

	return cmd
}
