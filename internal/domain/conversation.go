package domain

import (
	"context"
	"encoding/json"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is one function invocation requested by the model. RawArguments keeps
// the payload exactly as the model produced it; Arguments is filled once the
// payload has been parsed (possibly after repair).
type ToolCall struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	RawArguments string         `json:"raw_arguments,omitempty"`
	Arguments    map[string]any `json:"arguments,omitempty"`
}

// Message is one entry in the conversation sent to the model.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ReplyKind tags a Reply.
type ReplyKind string

const (
	ReplyText      ReplyKind = "text"
	ReplyToolCalls ReplyKind = "tool_calls"
)

// Reply is the single shape every model adapter normalizes into.
type Reply struct {
	Kind      ReplyKind  `json:"kind"`
	Text      string     `json:"text,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// TextReply builds a plain text reply.
func TextReply(text string) Reply {
	return Reply{Kind: ReplyText, Text: text}
}

// ToolCallReply builds a reply carrying tool calls and optional accompanying text.
func ToolCallReply(text string, calls ...ToolCall) Reply {
	if len(calls) == 0 {
		return TextReply(text)
	}
	return Reply{Kind: ReplyToolCalls, Text: text, ToolCalls: calls}
}

// AsMessage converts the reply into the assistant message appended to history.
func (r Reply) AsMessage() Message {
	return Message{Role: RoleAssistant, Content: r.Text, ToolCalls: r.ToolCalls}
}

// ToolParam describes one parameter of a tool.
type ToolParam struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Required    bool     `json:"required"`
	Enum        []string `json:"enum,omitempty"`
}

// ToolSchema describes a callable tool surfaced to the model.
type ToolSchema struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Params      []ToolParam `json:"params"`
}

// JSONSchema renders the parameter list as a JSON-schema object.
func (s ToolSchema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Params))
	required := []string{}
	for _, p := range s.Params {
		prop := map[string]any{"type": p.Type, "description": p.Description}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// ChatRequest is one model call.
type ChatRequest struct {
	Messages []Message
	Tools    []ToolSchema
	// JSONMode asks the model for a bare JSON object instead of prose.
	JSONMode bool
}

// ChatModel is the single blocking model call every adapter implements.
type ChatModel interface {
	Name() string
	Chat(ctx context.Context, req ChatRequest) (Reply, error)
}

// ToolOutcome is the successful result of one tool execution.
type ToolOutcome struct {
	Output string `json:"output"`
	// Changed lists project-relative paths the call mutated.
	Changed []string `json:"changed,omitempty"`
}

// FileTool is the sandboxed set of file operations offered to the model.
type FileTool interface {
	Schemas() []ToolSchema
	Execute(ctx context.Context, name string, args map[string]any) (ToolOutcome, error)
}

// ToolExecution records one call and its result inside a turn.
type ToolExecution struct {
	Call        ToolCall `json:"call"`
	Output      string   `json:"output,omitempty"`
	Error       string   `json:"error,omitempty"`
	RepairStage string   `json:"repair_stage,omitempty"`
	Synthetic   bool     `json:"synthetic,omitempty"`
}

// Failed reports whether the call ended with an error.
func (e ToolExecution) Failed() bool { return e.Error != "" }

// ConversationTurn is one model round trip plus the tool executions it triggered.
type ConversationTurn struct {
	Index      int             `json:"index"`
	Reply      Reply           `json:"reply"`
	Executions []ToolExecution `json:"executions,omitempty"`
	Nudge      string          `json:"nudge,omitempty"`
}

// ArgString reads a string argument, tolerating numbers and booleans the model
// sometimes emits for string parameters.
func ArgString(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64, bool, int:
		b, _ := json.Marshal(t)
		return string(b), true
	}
	return "", false
}

// File tool names. Every FileTool implementation exposes this set.
const (
	ToolReadFile        = "read_file"
	ToolWriteFile       = "write_file"
	ToolReplaceText     = "replace_text"
	ToolListFiles       = "list_files"
	ToolFileExists      = "file_exists"
	ToolCreateDirectory = "create_directory"
	ToolBackupFile      = "backup_file"
)

// IsInspectionTool reports whether name only observes the file system.
func IsInspectionTool(name string) bool {
	return name == ToolReadFile || name == ToolListFiles || name == ToolFileExists
}

// IsWritingTool reports whether name commits content to a file.
func IsWritingTool(name string) bool {
	return name == ToolWriteFile || name == ToolReplaceText
}
