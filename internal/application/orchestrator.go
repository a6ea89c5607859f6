package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/layerforge/layerforge/internal/domain"
	"github.com/layerforge/layerforge/internal/domain/repair"
)

// continueNudge is injected when the model stops before writing anything.
const continueNudge = "No file has been written yet. Stop inspecting and call %s now with the complete content for %s."

// OrchestratorOptions tunes the tool-use loop.
type OrchestratorOptions struct {
	MaxTurns        int
	MaxContentBytes int
	Logger          *slog.Logger
	// NoSeedRead disables the synthetic read_file of an enhance target that
	// opens the conversation.
	NoSeedRead bool
}

// Orchestrator drives one layer's conversation: model turn, tool execution,
// repeat, until the model stops or the turn budget runs out.
type Orchestrator struct {
	model      domain.ChatModel
	repair     *repair.Pipeline
	maxTurns   int
	noSeedRead bool
	logger     *slog.Logger
}

func NewOrchestrator(model domain.ChatModel, opts OrchestratorOptions) *Orchestrator {
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = domain.DefaultMaxTurns
	}
	return &Orchestrator{
		model:      model,
		repair:     repair.NewPipeline(opts.MaxContentBytes),
		maxTurns:   opts.MaxTurns,
		noSeedRead: opts.NoSeedRead,
		logger:     orDiscard(opts.Logger),
	}
}

// LayerTask is everything one conversation needs.
type LayerTask struct {
	Structure *domain.ProjectStructure
	Decision  domain.LayerDecision
	Feature   domain.FeatureRequest
	// Related holds the decisions for the other layers so generated code can
	// reference their type names.
	Related []domain.LayerDecision
	Tool    domain.FileTool
}

// conversation is the mutable state of one Run.
type conversation struct {
	messages      []domain.Message
	written       []string
	inspected     map[string]bool
	onlyInspected bool
	guardTarget   string
}

func (c *conversation) recordWrites(paths []string) {
	for _, p := range paths {
		dup := false
		for _, w := range c.written {
			if w == p {
				dup = true
				break
			}
		}
		if !dup {
			c.written = append(c.written, p)
		}
	}
}

// Run executes the conversation for task. It never returns an error: failures
// are reported through the result's Termination and Error fields.
func (o *Orchestrator) Run(ctx context.Context, task LayerTask) domain.GenerationResult {
	dec := task.Decision
	res := domain.GenerationResult{Layer: dec.Layer, Decision: dec}
	log := o.logger.With("layer", string(dec.Layer), "action", string(dec.Action), "path", dec.Path)

	conv := &conversation{
		messages: []domain.Message{
			{Role: domain.RoleSystem, Content: systemPrompt},
			{Role: domain.RoleUser, Content: buildInstruction(task)},
		},
		inspected:     make(map[string]bool),
		onlyInspected: true,
	}
	if dec.Action == domain.ActionEnhanceExisting && dec.Path != "" {
		conv.guardTarget = normalizePath(task.Structure, dec.Path)
		if !o.noSeedRead {
			res.Turns = append(res.Turns, o.seedRead(ctx, task, conv))
		}
	}

	schemas := task.Tool.Schemas()
	for turn := 1; turn <= o.maxTurns; turn++ {
		reply, err := o.model.Chat(ctx, domain.ChatRequest{Messages: conv.messages, Tools: schemas})
		if err != nil {
			if !errors.Is(err, domain.ErrTransport) {
				err = fmt.Errorf("%w: %v", domain.ErrTransport, err)
			}
			log.Warn("model call failed", "turn", turn, "error", err)
			res.Termination = domain.TerminationFailed
			res.Error = fmt.Sprintf("turn %d: %v", turn, err)
			return o.finish(res, conv)
		}

		for i := range reply.ToolCalls {
			if reply.ToolCalls[i].ID == "" {
				reply.ToolCalls[i].ID = "call_" + uuid.NewString()
			}
		}
		ct := domain.ConversationTurn{Index: turn, Reply: reply}
		conv.messages = append(conv.messages, reply.AsMessage())

		if len(reply.ToolCalls) == 0 {
			if len(conv.written) == 0 && (conv.onlyInspected || turn < 2) {
				ct.Nudge = fmt.Sprintf(continueNudge, writeToolFor(dec), targetLabel(dec))
				conv.messages = append(conv.messages, domain.Message{Role: domain.RoleUser, Content: ct.Nudge})
				res.Turns = append(res.Turns, ct)
				log.Debug("model stopped without writing, nudging", "turn", turn)
				continue
			}
			res.Turns = append(res.Turns, ct)
			res.Termination = domain.TerminationCompleted
			if len(conv.written) == 0 {
				res.Warning = "model finished without writing a file"
			}
			return o.finish(res, conv)
		}

		for i := range reply.ToolCalls {
			exec := o.execute(ctx, task, &reply.ToolCalls[i], conv)
			ct.Executions = append(ct.Executions, exec)
			conv.messages = append(conv.messages, toolMessage(exec))
			if exec.Failed() {
				log.Debug("tool call failed", "turn", turn, "tool", exec.Call.Name, "error", exec.Error)
			} else if exec.RepairStage != "" {
				log.Debug("tool arguments repaired", "turn", turn, "tool", exec.Call.Name, "stage", exec.RepairStage)
			}
		}
		res.Turns = append(res.Turns, ct)
	}

	res.Termination = domain.TerminationExhausted
	res.Error = fmt.Errorf("%w after %d turns", domain.ErrTurnBudgetExhausted, o.maxTurns).Error()
	log.Info("turn budget exhausted", "written", len(conv.written))
	return o.finish(res, conv)
}

func (o *Orchestrator) finish(res domain.GenerationResult, conv *conversation) domain.GenerationResult {
	res.WrittenFiles = conv.written
	res.Success = len(conv.written) > 0
	o.logger.Info("layer finished",
		"layer", string(res.Layer),
		"termination", string(res.Termination),
		"success", res.Success,
		"written", len(res.WrittenFiles),
		"turns", len(res.Turns))
	return res
}

// seedRead opens an enhance conversation with a read of the target so the
// model sees the current content before it edits.
func (o *Orchestrator) seedRead(ctx context.Context, task LayerTask, conv *conversation) domain.ConversationTurn {
	call := domain.ToolCall{
		ID:        "seed_" + uuid.NewString(),
		Name:      domain.ToolReadFile,
		Arguments: map[string]any{"file_path": task.Decision.Path},
	}
	exec := o.execute(ctx, task, &call, conv)
	exec.Synthetic = true
	reply := domain.ToolCallReply("", call)
	conv.messages = append(conv.messages, reply.AsMessage(), toolMessage(exec))
	return domain.ConversationTurn{Index: 0, Reply: reply, Executions: []domain.ToolExecution{exec}}
}

// execute parses (repairing if needed) and runs one call. Errors are recorded
// on the returned execution and never abort the conversation.
func (o *Orchestrator) execute(ctx context.Context, task LayerTask, call *domain.ToolCall, conv *conversation) domain.ToolExecution {
	exec := domain.ToolExecution{Call: *call}
	if !domain.IsInspectionTool(call.Name) {
		conv.onlyInspected = false
	}

	args := call.Arguments
	if args == nil {
		parsed, stage, err := o.repair.Parse(call.RawArguments)
		if err != nil {
			exec.Error = fmt.Sprintf("could not parse arguments for %s: %v", call.Name, err)
			return exec
		}
		args, exec.RepairStage = parsed, stage
		call.Arguments = parsed
		exec.Call.Arguments = parsed
	}

	target := ""
	if p, ok := domain.ArgString(args, "file_path"); ok {
		target = normalizePath(task.Structure, p)
	}
	if domain.IsWritingTool(call.Name) && target != "" && target == conv.guardTarget && !conv.inspected[target] {
		exec.Error = fmt.Sprintf("%s is an existing file: call %s on it before %s",
			target, domain.ToolReadFile, call.Name)
		return exec
	}
	out, err := task.Tool.Execute(ctx, call.Name, args)
	if err != nil {
		exec.Error = err.Error()
		return exec
	}
	exec.Output = out.Output
	if target != "" && (call.Name == domain.ToolReadFile || call.Name == domain.ToolFileExists) {
		conv.inspected[target] = true
	}
	if domain.IsWritingTool(call.Name) {
		conv.recordWrites(out.Changed)
	}
	return exec
}

func toolMessage(exec domain.ToolExecution) domain.Message {
	content := exec.Output
	if exec.Failed() {
		content = "error: " + exec.Error
	}
	return domain.Message{
		Role:       domain.RoleTool,
		ToolCallID: exec.Call.ID,
		Name:       exec.Call.Name,
		Content:    content,
	}
}

// normalizePath maps a model-supplied path to the slash-separated,
// root-relative form used for bookkeeping.
func normalizePath(st *domain.ProjectStructure, p string) string {
	p = filepath.ToSlash(strings.TrimSpace(p))
	if st != nil && st.RootPath != "" {
		root := filepath.ToSlash(st.RootPath)
		if p == root {
			return "."
		}
		p = strings.TrimPrefix(p, strings.TrimSuffix(root, "/")+"/")
	}
	return path.Clean(p)
}

func writeToolFor(dec domain.LayerDecision) string {
	if dec.Action == domain.ActionEnhanceExisting {
		return domain.ToolReplaceText + " or " + domain.ToolWriteFile
	}
	return domain.ToolWriteFile
}

func targetLabel(dec domain.LayerDecision) string {
	if dec.Path != "" {
		return dec.Path
	}
	return "the " + string(dec.Layer) + " layer"
}
