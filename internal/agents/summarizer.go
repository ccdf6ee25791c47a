package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/tmc/langchaingo/textsplitter"
	"go.uber.org/zap"

	"github.com/dyike/FinCortex/consts"
	"github.com/dyike/FinCortex/internal/utils"
)

const (
	DefaultChunkSize    = 2000
	DefaultChunkOverlap = 100
	DefaultMaxSubChunks = 3
)

var summarySeparators = []string{"\n\n", "\n", " ", ""}

type SummarizerConfig struct {
	ChunkSize    int
	ChunkOverlap int
	// MaxSubChunks caps how many sub-chunks are summarized. Text beyond the
	// cap is dropped.
	MaxSubChunks int
}

// Summarizer condenses long filing text by splitting it into sub-chunks and
// summarizing each one with a cheap model.
type Summarizer struct {
	caller
	splitter     textsplitter.RecursiveCharacter
	maxSubChunks int
}

func NewSummarizer(m model.BaseChatModel, cfg SummarizerConfig, opts ...Option) (*Summarizer, error) {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("summarizer: overlap %d must be in [0, %d)", cfg.ChunkOverlap, cfg.ChunkSize)
	}
	if cfg.MaxSubChunks <= 0 {
		cfg.MaxSubChunks = DefaultMaxSubChunks
	}
	c, err := newCaller(consts.Stage_Summarize, m, buildOptions(opts))
	if err != nil {
		return nil, err
	}
	return &Summarizer{
		caller: c,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
			textsplitter.WithSeparators(summarySeparators),
		),
		maxSubChunks: cfg.MaxSubChunks,
	}, nil
}

// Summarize returns one summary fragment per retained sub-chunk joined by a
// single space, in sub-chunk order. A failed sub-chunk contributes
// "Summarization Failed: <error>" and the rest still run. Blank text yields
// an empty string without any model call.
func (s *Summarizer) Summarize(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	subChunks, err := s.splitter.SplitText(text)
	if err != nil {
		s.logger.Warn("split failed, summarizing text as one part", zap.Error(err))
		subChunks = []string{text}
	}
	if len(subChunks) > s.maxSubChunks {
		s.logger.Debug("dropping sub-chunks past the cap",
			zap.Int("kept", s.maxSubChunks),
			zap.Int("dropped", len(subChunks)-s.maxSubChunks))
		subChunks = subChunks[:s.maxSubChunks]
	}

	summaries := make([]string, 0, len(subChunks))
	for i, sub := range subChunks {
		summary, err := s.call(ctx, utils.PromptSummarizer, map[string]any{
			"Part":    i + 1,
			"Total":   len(subChunks),
			"Section": sub,
		})
		if err != nil {
			s.fallback("sub-chunk summarization failed", err)
			summary = fmt.Sprintf("Summarization Failed: %v", err)
		}
		summaries = append(summaries, summary)
	}
	return strings.Join(summaries, " ")
}
