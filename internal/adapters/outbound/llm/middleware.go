// Package llm adapts model providers to domain.ChatModel and decorates them
// with cross-cutting middleware.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/layerforge/layerforge/internal/domain"
)

// Middleware decorates a ChatModel.
type Middleware func(domain.ChatModel) domain.ChatModel

// Chain applies middlewares left to right: Chain(m, A, B) is A(B(m)).
func Chain(m domain.ChatModel, mws ...Middleware) domain.ChatModel {
	out := m
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			out = mws[i](out)
		}
	}
	return out
}

type modelFunc struct {
	name string
	fn   func(ctx context.Context, req domain.ChatRequest) (domain.Reply, error)
}

func (m modelFunc) Name() string { return m.name }
func (m modelFunc) Chat(ctx context.Context, req domain.ChatRequest) (domain.Reply, error) {
	return m.fn(ctx, req)
}

// transportError tags err as a transport failure unless it already is one.
func transportError(model string, err error) error {
	if err == nil || errors.Is(err, domain.ErrTransport) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrTransport, model, err)
}

// WithTimeout bounds every call. A non-positive d disables the bound. Timeouts
// surface as transport errors.
func WithTimeout(d time.Duration) Middleware {
	return func(next domain.ChatModel) domain.ChatModel {
		if d <= 0 {
			return next
		}
		return modelFunc{name: next.Name(), fn: func(ctx context.Context, req domain.ChatRequest) (domain.Reply, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			reply, err := next.Chat(ctx, req)
			if err != nil {
				return domain.Reply{}, transportError(next.Name(), err)
			}
			return reply, nil
		}}
	}
}

// WithLogging records each call's size, outcome and latency.
func WithLogging(logger *slog.Logger) Middleware {
	return func(next domain.ChatModel) domain.ChatModel {
		if logger == nil {
			return next
		}
		return modelFunc{name: next.Name(), fn: func(ctx context.Context, req domain.ChatRequest) (domain.Reply, error) {
			start := time.Now()
			reply, err := next.Chat(ctx, req)
			attrs := []any{
				"model", next.Name(),
				"messages", len(req.Messages),
				"tools", len(req.Tools),
				"json_mode", req.JSONMode,
				"elapsed", time.Since(start).String(),
			}
			if err != nil {
				logger.Warn("model call failed", append(attrs, "error", err)...)
				return reply, err
			}
			logger.Debug("model call", append(attrs, "kind", string(reply.Kind), "tool_calls", len(reply.ToolCalls))...)
			return reply, nil
		}}
	}
}
