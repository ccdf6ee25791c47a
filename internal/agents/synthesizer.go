package agents

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"

	"github.com/dyike/FinCortex/consts"
	"github.com/dyike/FinCortex/internal/models"
	"github.com/dyike/FinCortex/internal/utils"
)

type Synthesizer struct {
	caller
}

func NewSynthesizer(m model.BaseChatModel, opts ...Option) (*Synthesizer, error) {
	c, err := newCaller(consts.Stage_Synthesis, m, buildOptions(opts))
	if err != nil {
		return nil, err
	}
	return &Synthesizer{caller: c}, nil
}

// Synthesize writes the final analyst note. When the model fails the note is
// replaced by a dump of every input and the error.
func (s *Synthesizer) Synthesize(ctx context.Context, query, research, market, news string, risk models.RiskResult) string {
	riskText := risk.String()
	note, err := s.call(ctx, utils.PromptSynthesizer, map[string]any{
		"Query":    query,
		"Research": research,
		"Market":   market,
		"News":     news,
		"Risk":     riskText,
	})
	if err != nil {
		s.fallback("synthesis failed", err)
		return fmt.Sprintf("Synthesis LLM failed. Inputs were:\nResearch: %s\nMarket: %s\nNews: %s\nRisk: %s\nError: %v",
			research, market, news, riskText, err)
	}
	return note
}
