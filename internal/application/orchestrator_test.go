package application_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layerforge/layerforge/internal/adapters/outbound/llm"
	"github.com/layerforge/layerforge/internal/adapters/outbound/sandbox"
	"github.com/layerforge/layerforge/internal/application"
	"github.com/layerforge/layerforge/internal/domain"
	"github.com/layerforge/layerforge/internal/domain/repair"
)

const userControllerPath = "src/main/java/app/interfaces/rest/UserController.java"

const userController = `package app.interfaces.rest;

@RestController
public class UserController {
    public String get() {
        return null;
    }
}
`

type layerFixture struct {
	root string
	tool *sandbox.Tool
	st   *domain.ProjectStructure
}

func newLayerFixture(t *testing.T) layerFixture {
	t.Helper()
	root := t.TempDir()
	p := filepath.Join(root, filepath.FromSlash(userControllerPath))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(userController), 0o644))

	tool, err := sandbox.New(root, sandbox.Options{})
	require.NoError(t, err)
	return layerFixture{
		root: root,
		tool: tool,
		st:   &domain.ProjectStructure{RootPath: tool.Root(), RootNamespace: "app", Language: "java"},
	}
}

func (f layerFixture) read(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func (f layerFixture) enhanceTask() application.LayerTask {
	return application.LayerTask{
		Structure: f.st,
		Decision: domain.LayerDecision{
			Layer:     domain.LayerController,
			Action:    domain.ActionEnhanceExisting,
			Target:    "UserController",
			Namespace: "app.interfaces.rest",
			Path:      userControllerPath,
		},
		Feature: domain.FeatureRequest{ProjectPath: f.root, Keyword: "user export"},
		Tool:    f.tool,
	}
}

func (f layerFixture) createTask(rel string) application.LayerTask {
	return application.LayerTask{
		Structure: f.st,
		Decision: domain.LayerDecision{
			Layer:  domain.LayerDTO,
			Action: domain.ActionCreateNew,
			Target: "UserExportRequest",
			Path:   rel,
		},
		Feature: domain.FeatureRequest{ProjectPath: f.root, Keyword: "user export"},
		Tool:    f.tool,
	}
}

func TestOrchestrator_EnhanceStartsWithRead(t *testing.T) {
	f := newLayerFixture(t)
	model := llm.NewScripted(
		llm.Calls(llm.Call(domain.ToolReplaceText, map[string]any{
			"file_path": userControllerPath,
			"old_text":  "        return null;",
			"new_text":  "        return \"user\";",
		})),
		llm.Text("Updated UserController.get."),
	)
	o := application.NewOrchestrator(model, application.OrchestratorOptions{})

	res := o.Run(context.Background(), f.enhanceTask())

	assert.True(t, res.Success)
	assert.Equal(t, domain.TerminationCompleted, res.Termination)
	assert.Equal(t, []string{userControllerPath}, res.WrittenFiles)
	assert.Contains(t, f.read(t, userControllerPath), `return "user";`)

	// The first execution of the conversation is a read of the target.
	require.NotEmpty(t, res.Turns)
	first := res.Turns[0]
	assert.Equal(t, 0, first.Index)
	require.Len(t, first.Executions, 1)
	assert.True(t, first.Executions[0].Synthetic)
	assert.Equal(t, domain.ToolReadFile, first.Executions[0].Call.Name)
	assert.Contains(t, first.Executions[0].Output, "class UserController")

	// The model saw the file content before its first turn.
	reqs := model.Requests()
	require.Len(t, reqs, 2)
	msgs := reqs[0].Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, domain.RoleTool, msgs[3].Role)
	assert.Contains(t, msgs[3].Content, "public class UserController")
	assert.Contains(t, msgs[1].Content, "Read "+userControllerPath+" first")
	assert.NotEmpty(t, reqs[0].Tools)
}

func TestOrchestrator_GuardRequiresReadBeforeWrite(t *testing.T) {
	f := newLayerFixture(t)
	write := llm.Call(domain.ToolWriteFile, map[string]any{
		"file_path": userControllerPath,
		"content":   "package app.interfaces.rest;\n\npublic class UserController {}\n",
	})
	model := llm.NewScripted(
		llm.Calls(write),
		llm.Calls(llm.Call(domain.ToolReadFile, map[string]any{"file_path": userControllerPath})),
		llm.Calls(write),
		llm.Text("done"),
	)
	o := application.NewOrchestrator(model, application.OrchestratorOptions{NoSeedRead: true})

	res := o.Run(context.Background(), f.enhanceTask())

	require.Len(t, res.Turns, 4)
	blocked := res.Turns[0].Executions[0]
	assert.Contains(t, blocked.Error, "call read_file on it before write_file")
	assert.True(t, res.Success)
	assert.Equal(t, []string{userControllerPath}, res.WrittenFiles)
	assert.Equal(t, "package app.interfaces.rest;\n\npublic class UserController {}\n", f.read(t, userControllerPath))
}

// failingReads fails every read_file and delegates everything else.
type failingReads struct {
	domain.FileTool
}

func (f failingReads) Execute(ctx context.Context, name string, args map[string]any) (domain.ToolOutcome, error) {
	if name == domain.ToolReadFile {
		return domain.ToolOutcome{}, errors.New("read failed")
	}
	return f.FileTool.Execute(ctx, name, args)
}

func TestOrchestrator_GuardIgnoresFailedRead(t *testing.T) {
	f := newLayerFixture(t)
	model := llm.NewScripted(
		llm.Calls(llm.Call(domain.ToolReadFile, map[string]any{"file_path": userControllerPath})),
		llm.Calls(llm.Call(domain.ToolWriteFile, map[string]any{"file_path": userControllerPath, "content": "x"})),
		llm.Text("done"),
	)
	o := application.NewOrchestrator(model, application.OrchestratorOptions{NoSeedRead: true})
	task := f.enhanceTask()
	task.Tool = failingReads{FileTool: f.tool}

	res := o.Run(context.Background(), task)

	require.GreaterOrEqual(t, len(res.Turns), 2)
	assert.Equal(t, "read failed", res.Turns[0].Executions[0].Error)
	assert.Contains(t, res.Turns[1].Executions[0].Error, "call read_file on it before write_file")
	assert.False(t, res.Success)
	assert.Equal(t, userController, f.read(t, userControllerPath))
}

func TestOrchestrator_GuardNormalizesAbsolutePaths(t *testing.T) {
	f := newLayerFixture(t)
	abs := filepath.ToSlash(filepath.Join(f.tool.Root(), filepath.FromSlash(userControllerPath)))
	model := llm.NewScripted(
		llm.Calls(llm.Call(domain.ToolWriteFile, map[string]any{"file_path": abs, "content": "x"})),
		llm.Text("done"),
	)
	o := application.NewOrchestrator(model, application.OrchestratorOptions{NoSeedRead: true})

	res := o.Run(context.Background(), f.enhanceTask())

	assert.Contains(t, res.Turns[0].Executions[0].Error, "is an existing file")
	assert.False(t, res.Success)
	assert.Equal(t, userController, f.read(t, userControllerPath))
}

func TestOrchestrator_NudgesWhenModelStopsEarly(t *testing.T) {
	f := newLayerFixture(t)
	target := "src/main/java/app/dto/UserExportRequest.java"
	model := llm.NewScripted(
		llm.Calls(llm.Call(domain.ToolListFiles, map[string]any{"pattern": "**/*.java"})),
		llm.Text("The project uses Spring."),
		llm.Calls(llm.Call(domain.ToolWriteFile, map[string]any{"file_path": target, "content": "class UserExportRequest {}\n"})),
		llm.Text("Created UserExportRequest."),
	)
	o := application.NewOrchestrator(model, application.OrchestratorOptions{})

	res := o.Run(context.Background(), f.createTask(target))

	assert.True(t, res.Success)
	require.Len(t, res.Turns, 4)
	assert.Empty(t, res.Turns[0].Nudge)
	assert.Contains(t, res.Turns[1].Nudge, "call write_file now")
	assert.Contains(t, res.Turns[1].Nudge, target)

	reqs := model.Requests()
	last := reqs[2].Messages[len(reqs[2].Messages)-1]
	assert.Equal(t, domain.RoleUser, last.Role)
	assert.Equal(t, res.Turns[1].Nudge, last.Content)
}

func TestOrchestrator_CompletedWithoutWriteWarns(t *testing.T) {
	f := newLayerFixture(t)
	model := llm.NewScripted(
		llm.Calls(llm.Call(domain.ToolCreateDirectory, map[string]any{"directory": "src/main/java/app/dto"})),
		llm.Text("Directory ready."),
	)
	o := application.NewOrchestrator(model, application.OrchestratorOptions{})

	res := o.Run(context.Background(), f.createTask("src/main/java/app/dto/UserExportRequest.java"))

	assert.False(t, res.Success)
	assert.Equal(t, domain.TerminationCompleted, res.Termination)
	assert.Equal(t, "model finished without writing a file", res.Warning)
	assert.Empty(t, res.WrittenFiles)
}

func TestOrchestrator_RepairsRawNewlines(t *testing.T) {
	f := newLayerFixture(t)
	target := "src/main/java/app/dto/UserExportRequest.java"
	raw := "{\"file_path\": \"" + target + "\", \"content\": \"public class UserExportRequest {\n}\n\"}"
	model := llm.NewScripted(
		llm.Calls(llm.RawCall(domain.ToolWriteFile, raw)),
		llm.Text("done"),
	)
	o := application.NewOrchestrator(model, application.OrchestratorOptions{})

	res := o.Run(context.Background(), f.createTask(target))

	require.True(t, res.Success)
	exec := res.Turns[0].Executions[0]
	assert.Equal(t, repair.StageEscapeControl, exec.RepairStage)
	assert.Equal(t, target, exec.Call.Arguments["file_path"])
	assert.Equal(t, "public class UserExportRequest {\n}\n", f.read(t, target))
}

func TestOrchestrator_UnparseableArgumentsReported(t *testing.T) {
	f := newLayerFixture(t)
	model := llm.NewScripted(
		llm.Calls(llm.RawCall(domain.ToolWriteFile, "write the file please")),
		llm.Text("gave up"),
	)
	o := application.NewOrchestrator(model, application.OrchestratorOptions{})

	res := o.Run(context.Background(), f.createTask("src/main/java/app/dto/UserExportRequest.java"))

	exec := res.Turns[0].Executions[0]
	assert.True(t, strings.HasPrefix(exec.Error, "could not parse arguments for write_file"))
	assert.False(t, res.Success)

	// The error went back to the model as a tool result.
	reqs := model.Requests()
	last := reqs[1].Messages[len(reqs[1].Messages)-1]
	assert.Equal(t, domain.RoleTool, last.Role)
	assert.True(t, strings.HasPrefix(last.Content, "error: "))
	assert.NotEmpty(t, last.ToolCallID)
}

func TestOrchestrator_TransportFailure(t *testing.T) {
	f := newLayerFixture(t)
	model := llm.NewScripted(llm.Fail(errors.New("503 service unavailable")))
	o := application.NewOrchestrator(model, application.OrchestratorOptions{})

	res := o.Run(context.Background(), f.createTask("src/main/java/app/dto/UserExportRequest.java"))

	assert.False(t, res.Success)
	assert.Equal(t, domain.TerminationFailed, res.Termination)
	assert.Contains(t, res.Error, "turn 1")
	assert.Contains(t, res.Error, domain.ErrTransport.Error())
}

func TestOrchestrator_TurnBudgetExhausted(t *testing.T) {
	f := newLayerFixture(t)
	look := llm.Calls(llm.Call(domain.ToolFileExists, map[string]any{"file_path": "pom.xml"}))
	model := llm.NewScripted(look, look, look)
	o := application.NewOrchestrator(model, application.OrchestratorOptions{MaxTurns: 2})

	res := o.Run(context.Background(), f.createTask("src/main/java/app/dto/UserExportRequest.java"))

	assert.Equal(t, domain.TerminationExhausted, res.Termination)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "turn budget exhausted after 2 turns")
	assert.Len(t, res.Turns, 2)
	assert.Equal(t, 1, model.Remaining())
}

func TestOrchestrator_ToolErrorsDoNotAbort(t *testing.T) {
	f := newLayerFixture(t)
	target := "src/main/java/app/dto/UserExportRequest.java"
	model := llm.NewScripted(
		llm.Calls(
			llm.Call(domain.ToolReadFile, map[string]any{"file_path": "../../etc/passwd"}),
			llm.Call("delete_file", map[string]any{"file_path": target}),
		),
		llm.Calls(llm.Call(domain.ToolWriteFile, map[string]any{"file_path": target, "content": "x"})),
		llm.Text("done"),
	)
	o := application.NewOrchestrator(model, application.OrchestratorOptions{})

	res := o.Run(context.Background(), f.createTask(target))

	require.True(t, res.Success)
	execs := res.Turns[0].Executions
	require.Len(t, execs, 2)
	assert.Contains(t, execs[0].Error, domain.ErrPathSafety.Error())
	assert.Contains(t, execs[1].Error, domain.ErrUnknownTool.Error())
	for _, e := range execs {
		assert.True(t, strings.HasPrefix(e.Call.ID, "call_"))
	}
}
