package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/layerforge/layerforge/internal/domain"
	"github.com/layerforge/layerforge/internal/domain/repair"
)

const (
	toolCallOpen  = "<tool_call>"
	toolCallClose = "</tool_call>"
)

var (
	fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n(\\{.*?\\})\\s*```")
	nameFieldRe  = regexp.MustCompile(`"name"\s*:\s*"([A-Za-z_][\w]*)"`)
	argsFieldRe  = regexp.MustCompile(`"(?:arguments|parameters|args)"\s*:`)
)

// FormatToolsPrompt renders tool schemas as a system prompt for models
// without native function calling.
func FormatToolsPrompt(schemas []domain.ToolSchema) string {
	var b strings.Builder
	b.WriteString("You can call these tools. To call one, reply with a block of the form\n")
	b.WriteString(toolCallOpen + "\n{\"name\": \"<tool>\", \"arguments\": {...}}\n" + toolCallClose + "\n")
	b.WriteString("You may emit several blocks in one reply. Tool results come back in the next message.\n\n")
	for _, s := range schemas {
		fmt.Fprintf(&b, "## %s\n%s\n", s.Name, s.Description)
		params := append([]domain.ToolParam(nil), s.Params...)
		sort.SliceStable(params, func(i, j int) bool { return params[i].Required && !params[j].Required })
		for _, p := range params {
			req := "optional"
			if p.Required {
				req = "required"
			}
			fmt.Fprintf(&b, "- %s (%s, %s): %s", p.Name, p.Type, req, p.Description)
			if len(p.Enum) > 0 {
				fmt.Fprintf(&b, " One of: %s.", strings.Join(p.Enum, ", "))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatToolCall renders a call in the text protocol, for replaying history.
func FormatToolCall(c domain.ToolCall) string {
	args := c.RawArguments
	if c.Arguments != nil {
		if data, err := json.Marshal(c.Arguments); err == nil {
			args = string(data)
		}
	}
	if strings.TrimSpace(args) == "" {
		args = "{}"
	}
	return fmt.Sprintf("%s\n{\"name\": %q, \"arguments\": %s}\n%s", toolCallOpen, c.Name, args, toolCallClose)
}

// ExtractToolCalls finds text-protocol tool calls in a reply. Arguments are
// returned raw so the caller can repair them. The remaining prose is returned
// with the call blocks removed.
func ExtractToolCalls(text string) ([]domain.ToolCall, string) {
	var calls []domain.ToolCall
	var prose strings.Builder

	rest := text
	for {
		i := strings.Index(rest, toolCallOpen)
		if i < 0 {
			prose.WriteString(rest)
			break
		}
		prose.WriteString(rest[:i])
		rest = rest[i+len(toolCallOpen):]
		body := rest
		if j := strings.Index(rest, toolCallClose); j >= 0 {
			body, rest = rest[:j], rest[j+len(toolCallClose):]
		} else {
			rest = ""
		}
		if c, ok := parseCallBody(body); ok {
			calls = append(calls, c)
		}
	}
	if len(calls) > 0 {
		return calls, strings.TrimSpace(prose.String())
	}

	// Fenced JSON blocks as a fallback.
	remaining := text
	for _, m := range fencedJSONRe.FindAllStringSubmatch(text, -1) {
		if c, ok := parseCallBody(m[1]); ok {
			calls = append(calls, c)
			remaining = strings.Replace(remaining, m[0], "", 1)
		}
	}
	return calls, strings.TrimSpace(remaining)
}

func parseCallBody(body string) (domain.ToolCall, bool) {
	body = strings.TrimSpace(body)
	var wire struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal([]byte(body), &wire); err == nil && wire.Name != "" {
		return domain.ToolCall{Name: wire.Name, RawArguments: string(wire.Arguments)}, true
	}

	// Malformed: recover the name and hand the argument object to repair.
	m := nameFieldRe.FindStringSubmatch(body)
	if m == nil {
		return domain.ToolCall{}, false
	}
	call := domain.ToolCall{Name: m[1]}
	if loc := argsFieldRe.FindStringIndex(body); loc != nil {
		call.RawArguments = repair.ExtractObject(body[loc[1]:])
	}
	return call, true
}
