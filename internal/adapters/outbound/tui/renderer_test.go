package tui_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/layerforge/layerforge/internal/adapters/outbound/tui"
	"github.com/layerforge/layerforge/internal/domain"
)

func sampleStructure() *domain.ProjectStructure {
	return &domain.ProjectStructure{
		RootNamespace: "com.acme.shop",
		Language:      "java",
		SourceRoots:   []string{"src/main/java"},
		Controllers: []domain.SourceUnit{
			{TypeName: "OrderController", Path: "src/main/java/com/acme/shop/interfaces/rest/OrderController.java"},
		},
		DataAccess: []domain.SourceUnit{
			{TypeName: "OrderMapper", Path: "src/main/java/com/acme/shop/infrastructure/mapper/OrderMapper.java"},
		},
		Resources:    []string{"src/main/resources/mapper/OrderMapper.xml"},
		Unclassified: 1,
		Warnings:     []string{"analyzing Broken.java: syntax error"},
	}
}

func sampleReport() *domain.RunReport {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return &domain.RunReport{
		ID:         "run-42",
		Feature:    domain.FeatureRequest{Keyword: "order refund"},
		Success:    true,
		CommitHash: "0123456789abcdef",
		DirtyFiles: []string{"pom.xml"},
		Results: []domain.GenerationResult{
			{Layer: domain.LayerDTO, Success: true, Termination: domain.TerminationCompleted,
				Decision:     domain.LayerDecision{Action: domain.ActionCreateNew},
				WrittenFiles: []string{"dto/OrderRefundRequest.java"}},
			{Layer: domain.LayerController, Termination: domain.TerminationFailed,
				Decision: domain.LayerDecision{Action: domain.ActionEnhanceExisting},
				Error:    "turn 1: model transport failure"},
			{Layer: domain.LayerExternalClient, Termination: domain.TerminationSkipped,
				Decision: domain.LayerDecision{Action: domain.ActionSkip}},
		},
		StartedAt:  start,
		FinishedAt: start.Add(90 * time.Second),
	}
}

func TestRenderStructure(t *testing.T) {
	out := tui.RenderStructure(sampleStructure())
	assert.Contains(t, out, "com.acme.shop")
	assert.Contains(t, out, "2 units")
	for _, layer := range domain.LayerOrder {
		assert.Contains(t, out, string(layer))
	}
	assert.Contains(t, out, "OrderController")
	assert.Contains(t, out, "interfaces/rest/OrderController.java")
	assert.NotContains(t, out, "src/main/java/com")
	assert.Contains(t, out, "1 files")
	assert.Contains(t, out, "syntax error")
}

func TestRenderStructure_Empty(t *testing.T) {
	out := tui.RenderStructure(&domain.ProjectStructure{})
	assert.Contains(t, out, "no root namespace")
	assert.Contains(t, out, "0 units")
}

func TestRenderDecisions(t *testing.T) {
	d := domain.Decisions{
		Fallback: true,
		Warning:  "model call failed",
		ByLayer: map[domain.Layer]domain.LayerDecision{
			domain.LayerController: {Layer: domain.LayerController, Action: domain.ActionEnhanceExisting,
				Target: "OrderController", Path: "rest/OrderController.java", Rationale: "order routes"},
			domain.LayerDTO: {Layer: domain.LayerDTO, Action: domain.ActionCreateNew,
				Target: "OrderRefundRequest", RequestType: "OrderRefundRequest", ResponseType: "OrderRefundResponse"},
		},
	}
	out := tui.RenderDecisions(d)
	assert.Contains(t, out, "fallback")
	assert.Contains(t, out, "model call failed")
	assert.Contains(t, out, "enhance")
	assert.Contains(t, out, "OrderRefundResponse")
	assert.Contains(t, out, "order routes")
	assert.Less(t, strings.Index(out, "OrderRefundRequest"), strings.Index(out, "OrderController"), "dto is listed before controller")
}

func TestRenderReport(t *testing.T) {
	out := tui.RenderReport(sampleReport())
	assert.Contains(t, out, "order refund")
	assert.Contains(t, out, "success")
	assert.Contains(t, out, "1m30s")
	assert.Contains(t, out, "dto/OrderRefundRequest.java")
	assert.Contains(t, out, "model transport failure")
	assert.Contains(t, out, "0123456")
	assert.Contains(t, out, "1 uncommitted changes")
	assert.Contains(t, out, "run-42")
}

func TestRenderReport_NothingCommitted(t *testing.T) {
	r := sampleReport()
	r.Success = false
	assert.Contains(t, tui.RenderReport(r), "no changes committed")
}

func TestRenderHistory(t *testing.T) {
	entries := []domain.RunSummary{
		{ID: "a", Keyword: "order refund", Success: true, LayersOK: 6, LayersTotal: 7,
			WrittenFiles: []string{"a.java", "b.java"}, CommitHash: "abcdef123456",
			StartedAt: time.Date(2026, 2, 25, 10, 0, 0, 0, time.UTC)},
		{ID: "b", Keyword: "user export", LayersTotal: 7,
			StartedAt: time.Date(2026, 2, 26, 11, 30, 0, 0, time.UTC)},
	}
	out := tui.RenderHistory(entries)
	assert.Contains(t, out, "Run History")
	assert.Contains(t, out, "2026-02-25 10:00")
	assert.Contains(t, out, "abcdef1")
	assert.Contains(t, out, "6/7 layers")
	assert.Contains(t, out, "2 files")
	assert.Contains(t, out, "fail")
}

func TestRenderHistory_Empty(t *testing.T) {
	assert.Contains(t, tui.RenderHistory(nil), "No run history found.")
}
