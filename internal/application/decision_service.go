package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/layerforge/layerforge/internal/domain"
	"github.com/layerforge/layerforge/internal/domain/placement"
)

// DecisionService asks the model where each layer of a feature belongs and
// validates the answer against the scanned structure.
type DecisionService struct {
	model  domain.ChatModel
	logger *slog.Logger
}

func NewDecisionService(model domain.ChatModel, logger *slog.Logger) *DecisionService {
	return &DecisionService{model: model, logger: orDiscard(logger)}
}

// Decide always returns a decision for every layer. Model failures and
// unparseable answers degrade to all-create_new defaults with Warning set.
func (s *DecisionService) Decide(ctx context.Context, st *domain.ProjectStructure, f domain.FeatureRequest) domain.Decisions {
	req := domain.ChatRequest{
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: placement.SystemPrompt},
			{Role: domain.RoleUser, Content: placement.BuildPrompt(st, f)},
		},
		JSONMode: true,
	}

	reply, err := s.model.Chat(ctx, req)
	if err != nil {
		s.logger.Warn("placement call failed, using defaults", "model", s.model.Name(), "error", err)
		return placement.Defaults(st, f, fmt.Sprintf("model call failed: %v", err))
	}

	raw, err := placement.ParseAnswer(reply.Text)
	if err != nil {
		s.logger.Warn("placement answer unusable, using defaults", "model", s.model.Name(), "error", err)
		return placement.Defaults(st, f, err.Error())
	}

	d := placement.Validate(st, f, raw)
	for _, dec := range d.Ordered() {
		s.logger.Debug("layer decision",
			"layer", string(dec.Layer), "action", string(dec.Action), "target", dec.Target, "path", dec.Path)
	}
	return d
}
