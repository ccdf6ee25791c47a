package utils

import (
	"context"
	"embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

// Prompt names, one per embedded markdown file.
const (
	PromptSummarizer      = "summarizer"
	PromptResearchAnalyst = "research_analyst"
	PromptRiskEvaluator   = "risk_evaluator"
	PromptSynthesizer     = "synthesizer"
	PromptMarketQuant     = "market_quant"
	PromptNewsSentiment   = "news_sentiment"
)

//go:embed prompts
var promptFiles embed.FS

// LoadPrompt loads a prompt from the embedded markdown files
func LoadPrompt(path string) (string, error) {
	content, err := promptFiles.ReadFile(fmt.Sprintf("prompts/%s.md", path))
	if err != nil {
		return "", fmt.Errorf("failed to load prompt %s: %w", path, err)
	}
	return string(content), nil
}

// RenderPrompt loads a prompt and renders it as a Go template with vars.
// Values are inserted verbatim; template actions inside them are not evaluated.
func RenderPrompt(ctx context.Context, path string, vars map[string]any) (string, error) {
	content, err := LoadPrompt(path)
	if err != nil {
		return "", err
	}

	tpl := prompt.FromMessages(schema.GoTemplate, schema.UserMessage(content))
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("render prompt %s: %w", path, err)
	}
	if len(msgs) == 0 {
		return "", fmt.Errorf("render prompt %s: no message produced", path)
	}
	return msgs[0].Content, nil
}
