package utils

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPrompt_AllEmbedded(t *testing.T) {
	for _, name := range []string{
		PromptSummarizer, PromptResearchAnalyst, PromptRiskEvaluator,
		PromptSynthesizer, PromptMarketQuant, PromptNewsSentiment,
	} {
		content, err := LoadPrompt(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, content, name)
	}

	_, err := LoadPrompt("missing")
	require.Error(t, err)
}

func TestRenderPrompt_InsertsValuesVerbatim(t *testing.T) {
	out, err := RenderPrompt(context.Background(), PromptSummarizer, map[string]any{
		"Part":    1,
		"Total":   3,
		"Section": "Revenue grew {{.Part}} percent & margins <fell>.",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "(Part 1 of 3)")
	assert.Contains(t, out, "Revenue grew {{.Part}} percent & margins <fell>.")
}
