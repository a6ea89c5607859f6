package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/layerforge/layerforge/internal/bootstrap"
)

// ServerVersion is reported to MCP clients during initialization.
var ServerVersion = "0.1.0"

// NewLayerforgeMCPServer creates an MCP server with every layerforge tool and
// resource registered against app's project.
func NewLayerforgeMCPServer(app *bootstrap.App) *server.MCPServer {
	s := server.NewMCPServer(
		"layerforge",
		ServerVersion,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
	)

	h := &handlers{app: app}
	registerTools(s, h)
	registerResources(s, h)

	return s
}
