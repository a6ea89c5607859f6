package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	appconfig "github.com/layerforge/layerforge/internal/adapters/outbound/config"
	"github.com/layerforge/layerforge/internal/application"
	"github.com/layerforge/layerforge/internal/bootstrap"
	"github.com/layerforge/layerforge/internal/domain"
)

type handlers struct {
	app *bootstrap.App
}

// registerTools registers all layerforge MCP tools on the given server.
func registerTools(s *server.MCPServer, h *handlers) {
	// 1. layerforge_scan
	s.AddTool(
		mcplib.NewTool("layerforge_scan",
			mcplib.WithDescription("Scan the project and return its classified layers and root namespace as JSON"),
		),
		h.handleScan,
	)

	// 2. layerforge_decide
	s.AddTool(
		mcplib.NewTool("layerforge_decide",
			mcplib.WithDescription("Decide, per layer, whether a feature enhances an existing unit or creates a new one. Writes nothing."),
			mcplib.WithString("keyword", mcplib.Required(), mcplib.Description("Short feature name, e.g. 'order refund'")),
			mcplib.WithString("description", mcplib.Description("What the feature does")),
			mcplib.WithString("route", mcplib.Description("Feature route, e.g. 'POST /orders/{id}/refund'")),
		),
		h.handleDecide,
	)

	// 3. layerforge_generate
	s.AddTool(
		mcplib.NewTool("layerforge_generate",
			mcplib.WithDescription("Run the full pipeline: scan, decide, then edit files layer by layer. Returns the run report."),
			mcplib.WithString("keyword", mcplib.Required(), mcplib.Description("Short feature name")),
			mcplib.WithString("description", mcplib.Description("What the feature does")),
			mcplib.WithString("route", mcplib.Description("Feature route")),
			mcplib.WithString("layers", mcplib.Description("Comma-separated layers to generate (default: all)")),
			mcplib.WithString("spec", mcplib.Description("Parameter spec YAML file, relative to the project root")),
			mcplib.WithBoolean("parallel", mcplib.Description("Generate the selected layers concurrently")),
		),
		h.handleGenerate,
	)

	// 4. layerforge_history
	s.AddTool(
		mcplib.NewTool("layerforge_history",
			mcplib.WithDescription("List past runs, or return one full run report when id is given"),
			mcplib.WithString("id", mcplib.Description("Run id")),
		),
		h.handleHistory,
	)

	// 5. layerforge_run_status
	s.AddTool(
		mcplib.NewTool("layerforge_run_status",
			mcplib.WithDescription("Return the live status of a run and its layers from the task store"),
			mcplib.WithString("id", mcplib.Required(), mcplib.Description("Run id")),
		),
		h.handleRunStatus,
	)
}

func (h *handlers) scan() *domain.ProjectStructure {
	return h.app.Scanner.Scan(h.app.ProjectPath, h.app.Config.Scan)
}

func (h *handlers) feature(request mcplib.CallToolRequest) (domain.FeatureRequest, error) {
	keyword, err := request.RequireString("keyword")
	if err != nil {
		return domain.FeatureRequest{}, err
	}
	return domain.FeatureRequest{
		ProjectPath: h.app.ProjectPath,
		Keyword:     keyword,
		Description: request.GetString("description", ""),
		Route:       request.GetString("route", ""),
	}, nil
}

func (h *handlers) handleScan(_ context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	return jsonResult(h.scan())
}

func (h *handlers) handleDecide(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	f, err := h.feature(request)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	decider, err := h.app.Decider(ctx)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return jsonResult(decider.Decide(ctx, h.scan(), f))
}

func (h *handlers) handleGenerate(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	f, err := h.feature(request)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	if specPath := request.GetString("spec", ""); specPath != "" {
		if !filepath.IsAbs(specPath) {
			specPath = filepath.Join(h.app.ProjectPath, specPath)
		}
		if f.Parameters, err = appconfig.LoadParameterSpec(specPath); err != nil {
			return errorResult(err.Error()), nil
		}
	}
	layers, err := domain.ParseLayers(request.GetString("layers", ""))
	if err != nil {
		return errorResult(err.Error()), nil
	}

	pipeline, err := h.app.Pipeline(ctx)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	report, err := pipeline.Run(ctx, f, application.RunOptions{
		Layers:   layers,
		Parallel: request.GetBool("parallel", false),
	})
	if err != nil {
		return errorResult(fmt.Sprintf("generate failed: %v", err)), nil
	}
	return jsonResult(report)
}

func (h *handlers) handleHistory(_ context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	if id := strings.TrimSpace(request.GetString("id", "")); id != "" {
		report, err := h.app.History.Get(h.app.ProjectPath, id)
		if err != nil {
			return errorResult(err.Error()), nil
		}
		return jsonResult(report)
	}
	runs, err := h.app.History.Load(h.app.ProjectPath)
	if err != nil {
		return errorResult(fmt.Sprintf("loading history: %v", err)), nil
	}
	if runs == nil {
		runs = []domain.RunSummary{}
	}
	return jsonResult(runs)
}

func (h *handlers) handleRunStatus(_ context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return errorResult(err.Error()), nil
	}
	store, err := h.app.Tasks()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	status, err := store.Run(id)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return jsonResult(status)
}

// jsonResult marshals v to indented JSON and returns it as text content.
func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.NewTextContent(string(data))},
	}, nil
}

// errorResult returns a tool result that indicates an error occurred.
func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.NewTextContent(msg)},
		IsError: true,
	}
}
