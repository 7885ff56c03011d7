package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/sells-group/proposal-cli/internal/config"
	"github.com/sells-group/proposal-cli/internal/llm"
	"github.com/sells-group/proposal-cli/internal/model"
	"github.com/sells-group/proposal-cli/pkg/anthropic"
)

const strategySystemText = "You are a capture manager for government proposals. You turn contract insights into a bid strategy. Return valid JSON matching the requested schema."

const strategyPrompt = `Synthesize a bid strategy from these proposal insights.

Insights:
%s

Return a JSON object with this shape:
{
  "positioning": "...",
  "gap_mitigation": "...",
  "value_proposition": ["..."],
  "win_probability": 0,
  "pricing_strategy": "...",
  "content_strategy": {"key_messages": ["..."], "tone": "...", "structure": "..."}
}

win_probability is a percentage between 0 and 100. positioning must not be empty.`

// StrategyStage turns the insight output into a bid strategy, including the
// content strategy that steers document writing.
func StrategyStage(ctx context.Context, insights *model.Insights, client anthropic.Client, cfg config.AnthropicConfig) (*model.Strategy, model.TokenUsage, error) {
	prompt := fmt.Sprintf(strategyPrompt, formatInsights(insights))

	strategy, usage, err := llm.Generate[model.Strategy](ctx, client, llm.Request{
		Stage:     string(model.StageStrategySynthesis),
		Model:     cfg.SonnetModel,
		MaxTokens: 4096,
		System:    strategySystemText,
		Prompt:    prompt,
	})
	if err != nil {
		return nil, usage, err
	}
	return &strategy, usage, nil
}

func formatInsights(in *model.Insights) string {
	var b strings.Builder
	writeList(&b, "Requirements", in.Requirements)
	writeList(&b, "Gaps", in.Gaps)
	writeList(&b, "Risk factors", in.RiskFactors)
	writeList(&b, "Opportunities", in.Opportunities)
	writeList(&b, "Compliance items", in.Compliance)
	fmt.Fprintf(&b, "NAICS strategy: %s\n", in.Strategic.NAICSStrategy)
	fmt.Fprintf(&b, "Competitive advantage: %s\n", in.Strategic.CompetitiveAdvantage)
	fmt.Fprintf(&b, "Risk mitigation: %s", in.Strategic.RiskMitigation)
	return b.String()
}
