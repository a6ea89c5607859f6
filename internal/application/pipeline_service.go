package application

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/layerforge/layerforge/internal/domain"
)

// ToolFactory binds a FileTool to a project root for one run.
type ToolFactory func(root string) (domain.FileTool, error)

// PipelineDeps wires the coordinator. Git, History and Recorder are optional.
type PipelineDeps struct {
	Scanner      *ScanService
	Decider      *DecisionService
	Orchestrator *Orchestrator
	NewTool      ToolFactory
	ScanConfig   domain.ScanConfig
	Git          domain.GitInfo
	History      domain.RunHistory
	Recorder     domain.RunRecorder
	Logger       *slog.Logger
	Now          func() time.Time
}

// RunOptions narrows or reshapes one run.
type RunOptions struct {
	// Layers limits generation to these layers. Empty means all.
	Layers []domain.Layer
	// Parallel runs the selected layers concurrently.
	Parallel bool
	// Decisions replaces the decision step when non-nil.
	Decisions *domain.Decisions
}

// PipelineService is the coordinator:
// scan → decide → one orchestrator conversation per layer in dependency order → report.
type PipelineService struct {
	deps   PipelineDeps
	logger *slog.Logger
	now    func() time.Time
}

func NewPipelineService(deps PipelineDeps) *PipelineService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &PipelineService{deps: deps, logger: orDiscard(deps.Logger), now: now}
}

// Run executes the whole pipeline. The only error returned is for an invalid
// request; layer failures are reported in the RunReport.
func (p *PipelineService) Run(ctx context.Context, f domain.FeatureRequest, opts RunOptions) (*domain.RunReport, error) {
	if err := validateFeature(f); err != nil {
		return nil, err
	}
	absPath, err := filepath.Abs(f.ProjectPath)
	if err != nil {
		absPath = f.ProjectPath
	}
	f.ProjectPath = absPath

	report := &domain.RunReport{
		ID:          uuid.NewString(),
		ProjectPath: absPath,
		Feature:     f,
		StartedAt:   p.now(),
	}
	log := p.logger.With("run", report.ID)

	// 1. Scan
	st := p.deps.Scanner.Scan(absPath, p.deps.ScanConfig)
	report.RootNamespace = st.RootNamespace

	// 2. Decide
	if opts.Decisions != nil {
		report.Decisions = *opts.Decisions
	} else {
		report.Decisions = p.deps.Decider.Decide(ctx, st, f)
	}
	if report.Decisions.Fallback {
		log.Warn("using default placement", "reason", report.Decisions.Warning)
	}
	p.record(log, "run started", func(r domain.RunRecorder) error { return r.RunStarted(report) })

	// 3. Generate layer by layer
	layers := selectLayers(opts.Layers)
	tool, toolErr := p.deps.NewTool(absPath)
	if toolErr != nil {
		log.Warn("file tool unavailable", "error", toolErr)
	}
	related := report.Decisions.Ordered()

	runLayer := func(layer domain.Layer) domain.GenerationResult {
		dec, ok := report.Decisions.ByLayer[layer]
		if !ok {
			return domain.GenerationResult{Layer: layer, Termination: domain.TerminationSkipped,
				Warning: "no decision for layer"}
		}
		if dec.Action == domain.ActionSkip {
			return domain.GenerationResult{Layer: layer, Decision: dec, Termination: domain.TerminationSkipped}
		}
		p.record(log, "layer started", func(r domain.RunRecorder) error { return r.LayerStarted(report.ID, dec) })
		var res domain.GenerationResult
		switch {
		case toolErr != nil:
			res = domain.GenerationResult{Layer: layer, Decision: dec, Termination: domain.TerminationFailed,
				Error: fmt.Sprintf("opening sandbox: %v", toolErr)}
		case ctx.Err() != nil:
			res = domain.GenerationResult{Layer: layer, Decision: dec, Termination: domain.TerminationFailed,
				Error: fmt.Sprintf("run cancelled: %v", ctx.Err())}
		default:
			res = p.deps.Orchestrator.Run(ctx, LayerTask{
				Structure: st,
				Decision:  dec,
				Feature:   f,
				Related:   related,
				Tool:      tool,
			})
		}
		p.record(log, "layer finished", func(r domain.RunRecorder) error { return r.LayerFinished(report.ID, res) })
		return res
	}

	report.Results = make([]domain.GenerationResult, len(layers))
	if opts.Parallel {
		var wg sync.WaitGroup
		for i, layer := range layers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				report.Results[i] = runLayer(layer)
			}()
		}
		wg.Wait()
	} else {
		for i, layer := range layers {
			report.Results[i] = runLayer(layer)
		}
	}

	for _, r := range report.Results {
		if r.Success {
			report.Success = true
			break
		}
	}

	// 4. Annotate with git state
	if p.deps.Git != nil && p.deps.Git.IsGitRepo(absPath) {
		if hash, err := p.deps.Git.CommitHash(absPath); err == nil {
			report.CommitHash = hash
		}
		if dirty, err := p.deps.Git.DirtyFiles(absPath); err == nil {
			report.DirtyFiles = dirty
		}
	}
	report.FinishedAt = p.now()

	// 5. Persist
	if p.deps.History != nil {
		if err := p.deps.History.Save(absPath, report); err != nil {
			log.Warn("saving run history failed", "error", err)
		}
	}
	p.record(log, "run finished", func(r domain.RunRecorder) error { return r.RunFinished(report) })

	log.Info("run finished",
		"success", report.Success,
		"written", len(report.WrittenFiles()),
		"duration", report.FinishedAt.Sub(report.StartedAt).String())
	return report, nil
}

func (p *PipelineService) record(log *slog.Logger, event string, fn func(domain.RunRecorder) error) {
	if p.deps.Recorder == nil {
		return
	}
	if err := fn(p.deps.Recorder); err != nil {
		log.Warn("recording failed", "event", event, "error", err)
	}
}

// selectLayers keeps LayerOrder while applying an optional filter.
func selectLayers(filter []domain.Layer) []domain.Layer {
	if len(filter) == 0 {
		return domain.LayerOrder
	}
	want := make(map[domain.Layer]bool, len(filter))
	for _, l := range filter {
		want[l] = true
	}
	var out []domain.Layer
	for _, l := range domain.LayerOrder {
		if want[l] {
			out = append(out, l)
		}
	}
	return out
}

func validateFeature(f domain.FeatureRequest) error {
	if strings.TrimSpace(f.ProjectPath) == "" {
		return fmt.Errorf("%w: project path is required", domain.ErrValue)
	}
	if strings.TrimSpace(f.Keyword) == "" {
		return fmt.Errorf("%w: feature keyword is required", domain.ErrValue)
	}
	return nil
}
