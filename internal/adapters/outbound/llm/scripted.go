package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/layerforge/layerforge/internal/domain"
)

// ErrScriptExhausted is returned once every scripted step has been consumed.
var ErrScriptExhausted = errors.New("llm: script exhausted")

// Step is one scripted model answer: a reply or an error.
type Step struct {
	Reply domain.Reply
	Err   error
}

// Text scripts a plain text answer.
func Text(s string) Step { return Step{Reply: domain.TextReply(s)} }

// Calls scripts an answer made of tool calls.
func Calls(calls ...domain.ToolCall) Step { return Step{Reply: domain.ToolCallReply("", calls...)} }

// Fail scripts a failed call.
func Fail(err error) Step { return Step{Err: err} }

// Call builds a tool call with structured arguments.
func Call(name string, args map[string]any) domain.ToolCall {
	return domain.ToolCall{Name: name, Arguments: args}
}

// RawCall builds a tool call whose arguments still need parsing.
func RawCall(name, raw string) domain.ToolCall {
	return domain.ToolCall{Name: name, RawArguments: raw}
}

// Scripted replays a fixed sequence of steps and records every request. It
// backs tests and dry runs.
type Scripted struct {
	mu       sync.Mutex
	name     string
	steps    []Step
	next     int
	requests []domain.ChatRequest
}

func NewScripted(steps ...Step) *Scripted {
	return &Scripted{name: "scripted", steps: steps}
}

func (s *Scripted) Name() string { return s.name }

func (s *Scripted) Chat(ctx context.Context, req domain.ChatRequest) (domain.Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, cloneRequest(req))
	if err := ctx.Err(); err != nil {
		return domain.Reply{}, transportError(s.name, err)
	}
	if s.next >= len(s.steps) {
		return domain.Reply{}, transportError(s.name, ErrScriptExhausted)
	}
	step := s.steps[s.next]
	s.next++
	if step.Err != nil {
		return domain.Reply{}, transportError(s.name, step.Err)
	}
	reply := step.Reply
	reply.ToolCalls = append([]domain.ToolCall(nil), reply.ToolCalls...)
	return reply, nil
}

// Requests returns the requests received so far.
func (s *Scripted) Requests() []domain.ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ChatRequest(nil), s.requests...)
}

// Remaining reports how many steps are left.
func (s *Scripted) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.steps) - s.next
}

func cloneRequest(req domain.ChatRequest) domain.ChatRequest {
	req.Messages = append([]domain.Message(nil), req.Messages...)
	req.Tools = append([]domain.ToolSchema(nil), req.Tools...)
	return req
}

type scriptFile struct {
	Steps []struct {
		Text      string `yaml:"text"`
		Error     string `yaml:"error"`
		ToolCalls []struct {
			Name         string         `yaml:"name"`
			Arguments    map[string]any `yaml:"arguments"`
			RawArguments string         `yaml:"raw_arguments"`
		} `yaml:"tool_calls"`
	} `yaml:"steps"`
}

// LoadScript reads a YAML script:
//
//	steps:
//	  - text: '{"decisions": []}'
//	  - tool_calls:
//	      - name: write_file
//	        arguments: {file_path: a.txt, content: hi}
//	  - error: connection refused
func LoadScript(path string) (*Scripted, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script %s: %w", path, err)
	}
	var f scriptFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing script %s: %w", path, err)
	}
	steps := make([]Step, 0, len(f.Steps))
	for i, st := range f.Steps {
		switch {
		case st.Error != "":
			steps = append(steps, Fail(errors.New(st.Error)))
		case len(st.ToolCalls) > 0:
			calls := make([]domain.ToolCall, 0, len(st.ToolCalls))
			for _, c := range st.ToolCalls {
				if c.Name == "" {
					return nil, fmt.Errorf("%w: script %s step %d: tool call without name", domain.ErrValue, path, i+1)
				}
				call := domain.ToolCall{Name: c.Name, RawArguments: c.RawArguments}
				if c.RawArguments == "" {
					call.Arguments = c.Arguments
					if call.Arguments == nil {
						call.Arguments = map[string]any{}
					}
				}
				calls = append(calls, call)
			}
			step := Calls(calls...)
			step.Reply.Text = st.Text
			steps = append(steps, step)
		default:
			steps = append(steps, Text(st.Text))
		}
	}
	s := NewScripted(steps...)
	s.name = "scripted:" + path
	return s, nil
}
