package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const structureURI = "layerforge://structure"

// registerResources registers all layerforge MCP resources on the given server.
func registerResources(s *server.MCPServer, h *handlers) {
	// 1. layerforge://structure - classified project structure
	s.AddResource(
		mcplib.NewResource(
			structureURI,
			"Project Structure",
			mcplib.WithResourceDescription("Source units grouped by architectural layer, with the inferred root namespace"),
			mcplib.WithMIMEType("application/json"),
		),
		h.handleStructureResource,
	)

	// 2. layerforge://runs/{id} - one stored run report (resource template)
	s.AddResourceTemplate(
		mcplib.NewResourceTemplate(
			"layerforge://runs/{id}",
			"Run Report",
			mcplib.WithTemplateDescription("Full report of a past generation run"),
			mcplib.WithTemplateMIMEType("application/json"),
		),
		h.handleRunResource,
	)
}

func (h *handlers) handleStructureResource(_ context.Context, _ mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	data, err := json.MarshalIndent(h.scan(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling structure: %w", err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      structureURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (h *handlers) handleRunResource(_ context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	// Populated by template matching.
	id := argString(request.Params.Arguments["id"])
	if id == "" {
		return nil, fmt.Errorf("run id is required")
	}

	report, err := h.app.History.Get(h.app.ProjectPath, id)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling run: %w", err)
	}

	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// argString accepts both a plain value and the []string form template
// arguments may arrive in.
func argString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []string:
		if len(t) > 0 {
			return t[0]
		}
	}
	return ""
}
