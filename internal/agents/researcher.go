package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/retriever"
	"go.uber.org/zap"

	"github.com/dyike/FinCortex/consts"
	"github.com/dyike/FinCortex/internal/metrics"
	"github.com/dyike/FinCortex/internal/models"
	"github.com/dyike/FinCortex/internal/utils"
)

const (
	chunkSeparator      = "\n\n---\n\n"
	noExcerptsFound     = "No relevant filing excerpts were found for this query."
	retrievalFailedText = "No filing excerpts could be retrieved: %v"
)

// ChunkSummarizer condenses one retrieved excerpt.
type ChunkSummarizer interface {
	Summarize(ctx context.Context, text string) string
}

// ResearchAnalyst answers a question from the filings most similar to it.
type ResearchAnalyst struct {
	caller
	retriever  retriever.Retriever
	summarizer ChunkSummarizer
}

func NewResearchAnalyst(m model.BaseChatModel, r retriever.Retriever, s ChunkSummarizer, opts ...Option) (*ResearchAnalyst, error) {
	if r == nil {
		return nil, fmt.Errorf("%s: retriever is required", consts.Stage_Research)
	}
	if s == nil {
		return nil, fmt.Errorf("%s: summarizer is required", consts.Stage_Research)
	}
	c, err := newCaller(consts.Stage_Research, m, buildOptions(opts))
	if err != nil {
		return nil, err
	}
	return &ResearchAnalyst{caller: c, retriever: r, summarizer: s}, nil
}

// Analyze retrieves the k most relevant excerpts, summarizes and tags each
// one, and asks the analyst model for a structured answer. The result is
// never empty; failures are folded into the returned text.
func (a *ResearchAnalyst) Analyze(ctx context.Context, query string, k int) string {
	k = max(k, 0)
	sections := a.sections(ctx, query, k)

	answer, err := a.call(ctx, utils.PromptResearchAnalyst, map[string]any{
		"Query":    query,
		"Sections": sections,
	})
	if err != nil {
		a.fallback("final analysis failed", err)
		return fmt.Sprintf("Final analysis failed: %v. Raw data summarized:\n\n%s", err, sections)
	}
	return answer
}

func (a *ResearchAnalyst) sections(ctx context.Context, query string, k int) string {
	var chunks []models.Chunk
	if k > 0 {
		docs, err := a.retriever.Retrieve(ctx, query, retriever.WithTopK(k))
		if err != nil {
			a.fallback("retrieval failed", err)
			return fmt.Sprintf(retrievalFailedText, err)
		}
		chunks = make([]models.Chunk, 0, len(docs))
		for _, doc := range docs {
			chunks = append(chunks, models.ChunkFromDocument(doc))
		}
	}
	metrics.RetrievedChunks.Observe(float64(len(chunks)))
	a.logger.Debug("retrieved filing excerpts", zap.Int("k", k), zap.Int("count", len(chunks)))
	if len(chunks) == 0 {
		return noExcerptsFound
	}

	parts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		summary := a.summarizer.Summarize(ctx, chunk.Text)
		parts = append(parts, chunk.Tag()+" "+summary)
	}
	return strings.Join(parts, chunkSeparator)
}
