package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/layerforge/layerforge/internal/domain"
)

// ErrEmptyResponse is returned when the provider answers with no candidate.
var ErrEmptyResponse = errors.New("llm: empty response from model")

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini uses native function calling through the official genai client.
type Gemini struct {
	models contentGenerator
	model  string
}

func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY or GOOGLE_API_KEY must be set", domain.ErrValue)
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &Gemini{models: cli.Models, model: model}, nil
}

func (g *Gemini) Name() string { return "gemini:" + g.model }

func (g *Gemini) Chat(ctx context.Context, req domain.ChatRequest) (domain.Reply, error) {
	system, contents := toGeminiContents(req.Messages)
	cfg := &genai.GenerateContentConfig{SystemInstruction: system}
	if req.JSONMode {
		cfg.ResponseMIMEType = "application/json"
	} else if len(req.Tools) > 0 {
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: toGeminiDeclarations(req.Tools)}}
	}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return domain.Reply{}, transportError(g.Name(), err)
	}
	reply, err := fromGeminiResponse(resp)
	if err != nil {
		return domain.Reply{}, transportError(g.Name(), err)
	}
	return reply, nil
}

// toGeminiContents splits out system messages and maps the rest onto user and
// model turns. Consecutive tool results are merged into one user turn.
func toGeminiContents(msgs []domain.Message) (*genai.Content, []*genai.Content) {
	var systemParts []*genai.Part
	var out []*genai.Content
	for _, m := range msgs {
		switch m.Role {
		case domain.RoleSystem:
			systemParts = append(systemParts, &genai.Part{Text: m.Content})
		case domain.RoleUser:
			out = append(out, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{{Text: m.Content}}})
		case domain.RoleAssistant:
			var parts []*genai.Part
			if m.Content != "" {
				parts = append(parts, &genai.Part{Text: m.Content})
			}
			for _, c := range m.ToolCalls {
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID: c.ID, Name: c.Name, Args: callArgs(c),
				}})
			}
			if len(parts) == 0 {
				parts = []*genai.Part{{Text: ""}}
			}
			out = append(out, &genai.Content{Role: genai.RoleModel, Parts: parts})
		case domain.RoleTool:
			part := &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID: m.ToolCallID, Name: m.Name, Response: toolResponse(m.Content),
			}}
			if n := len(out); n > 0 && isFunctionResponseTurn(out[n-1]) {
				out[n-1].Parts = append(out[n-1].Parts, part)
				continue
			}
			out = append(out, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{part}})
		}
	}
	var system *genai.Content
	if len(systemParts) > 0 {
		system = &genai.Content{Parts: systemParts}
	}
	return system, out
}

func isFunctionResponseTurn(c *genai.Content) bool {
	return c.Role == genai.RoleUser && len(c.Parts) > 0 && c.Parts[0].FunctionResponse != nil
}

func callArgs(c domain.ToolCall) map[string]any {
	if c.Arguments != nil {
		return c.Arguments
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(c.RawArguments), &args); err != nil || args == nil {
		return map[string]any{}
	}
	return args
}

func toolResponse(content string) map[string]any {
	if msg, ok := strings.CutPrefix(content, "error: "); ok {
		return map[string]any{"error": msg}
	}
	return map[string]any{"output": content}
}

func toGeminiDeclarations(schemas []domain.ToolSchema) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(schemas))
	for _, s := range schemas {
		params := &genai.Schema{Type: genai.TypeObject, Properties: map[string]*genai.Schema{}}
		for _, p := range s.Params {
			params.Properties[p.Name] = &genai.Schema{
				Type:        geminiType(p.Type),
				Description: p.Description,
				Enum:        p.Enum,
			}
			if p.Required {
				params.Required = append(params.Required, p.Name)
			}
		}
		decls = append(decls, &genai.FunctionDeclaration{Name: s.Name, Description: s.Description, Parameters: params})
	}
	return decls
}

func geminiType(t string) genai.Type {
	switch t {
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "object":
		return genai.TypeObject
	case "array":
		return genai.TypeArray
	}
	return genai.TypeString
}

func fromGeminiResponse(resp *genai.GenerateContentResponse) (domain.Reply, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return domain.Reply{}, ErrEmptyResponse
	}
	var text strings.Builder
	var calls []domain.ToolCall
	for _, part := range resp.Candidates[0].Content.Parts {
		switch {
		case part.FunctionCall != nil:
			args := part.FunctionCall.Args
			if args == nil {
				args = map[string]any{}
			}
			raw, _ := json.Marshal(args)
			calls = append(calls, domain.ToolCall{
				ID:           part.FunctionCall.ID,
				Name:         part.FunctionCall.Name,
				RawArguments: string(raw),
				Arguments:    args,
			})
		case part.Text != "" && !part.Thought:
			text.WriteString(part.Text)
		}
	}
	return domain.ToolCallReply(text.String(), calls...), nil
}
