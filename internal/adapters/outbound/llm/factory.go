package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/layerforge/layerforge/internal/domain"
)

// New builds the configured provider wrapped with logging and timeout
// middleware.
func New(ctx context.Context, cfg domain.ModelConfig, logger *slog.Logger) (domain.ChatModel, error) {
	var (
		m   domain.ChatModel
		err error
	)
	switch cfg.Provider {
	case "gemini":
		m, err = NewGemini(ctx, firstNonEmpty(os.Getenv("GEMINI_API_KEY"), os.Getenv("GOOGLE_API_KEY")), cfg.Name)
	case "ollama":
		m, err = NewOllama(cfg.Name)
	case "scripted":
		m, err = LoadScript(cfg.Script)
	default:
		err = fmt.Errorf("%w: unknown model provider %q", domain.ErrValue, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return Chain(m, WithLogging(logger), WithTimeout(cfg.Timeout)), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
