package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/layerforge/layerforge/internal/domain"
)

type ollamaChatter interface {
	Chat(ctx context.Context, req *api.ChatRequest, fn api.ChatResponseFunc) error
}

// Ollama talks to a local Ollama server. Tool schemas are rendered into the
// system prompt and calls are parsed back out of the reply text, so their
// arguments arrive raw and go through repair.
type Ollama struct {
	client ollamaChatter
	model  string
}

// NewOllama reads OLLAMA_HOST from the environment.
func NewOllama(model string) (*Ollama, error) {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, fmt.Errorf("creating ollama client: %w", err)
	}
	return &Ollama{client: client, model: model}, nil
}

func (o *Ollama) Name() string { return "ollama:" + o.model }

func (o *Ollama) Chat(ctx context.Context, req domain.ChatRequest) (domain.Reply, error) {
	stream := false
	creq := &api.ChatRequest{
		Model:    o.model,
		Messages: toOllamaMessages(req),
		Stream:   &stream,
		Options: map[string]any{
			"temperature": 0.1,
			"num_ctx":     contextWindow(req),
		},
	}
	if req.JSONMode {
		creq.Format = json.RawMessage(`"json"`)
	}

	var content strings.Builder
	err := o.client.Chat(ctx, creq, func(res api.ChatResponse) error {
		content.WriteString(res.Message.Content)
		return nil
	})
	if err != nil {
		return domain.Reply{}, transportError(o.Name(), err)
	}

	if req.JSONMode || len(req.Tools) == 0 {
		return domain.TextReply(content.String()), nil
	}
	calls, prose := ExtractToolCalls(content.String())
	return domain.ToolCallReply(prose, calls...), nil
}

func toOllamaMessages(req domain.ChatRequest) []api.Message {
	out := make([]api.Message, 0, len(req.Messages)+1)
	if len(req.Tools) > 0 && !req.JSONMode {
		out = append(out, api.Message{Role: "system", Content: FormatToolsPrompt(req.Tools)})
	}
	for _, m := range req.Messages {
		switch m.Role {
		case domain.RoleAssistant:
			parts := []string{}
			if m.Content != "" {
				parts = append(parts, m.Content)
			}
			for _, c := range m.ToolCalls {
				parts = append(parts, FormatToolCall(c))
			}
			out = append(out, api.Message{Role: "assistant", Content: strings.Join(parts, "\n")})
		case domain.RoleTool:
			out = append(out, api.Message{
				Role:    "user",
				Content: fmt.Sprintf("Result of %s:\n%s", m.Name, m.Content),
			})
		default:
			out = append(out, api.Message{Role: string(m.Role), Content: m.Content})
		}
	}
	return out
}

// contextWindow sizes num_ctx from a rough four-characters-per-token estimate.
func contextWindow(req domain.ChatRequest) int {
	n := 0
	for _, m := range req.Messages {
		n += len(m.Content)
		for _, c := range m.ToolCalls {
			n += len(c.RawArguments)
		}
	}
	tokens := n/4 + 2048
	if tokens < 8192 {
		return 8192
	}
	return tokens
}
