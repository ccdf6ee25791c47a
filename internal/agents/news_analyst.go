package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"go.uber.org/zap"

	"github.com/dyike/FinCortex/consts"
	"github.com/dyike/FinCortex/internal/dataflows"
	"github.com/dyike/FinCortex/internal/models"
	"github.com/dyike/FinCortex/internal/utils"
)

const (
	DefaultNewsLookbackDays = 7
	DefaultNewsMaxResults   = 15
)

// NewsSearcher runs a news search.
type NewsSearcher interface {
	Search(ctx context.Context, params dataflows.NewsSearchParams) ([]models.NewsArticle, error)
}

type NewsConfig struct {
	LookbackDays int
	MaxResults   int
}

type NewsAnalyst struct {
	caller
	search NewsSearcher
	cfg    NewsConfig
}

func NewNewsAnalyst(m model.BaseChatModel, search NewsSearcher, cfg NewsConfig, opts ...Option) (*NewsAnalyst, error) {
	if search == nil {
		return nil, fmt.Errorf("%s: news searcher is required", consts.Stage_News)
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = DefaultNewsLookbackDays
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultNewsMaxResults
	}
	c, err := newCaller(consts.Stage_News, m, buildOptions(opts))
	if err != nil {
		return nil, err
	}
	return &NewsAnalyst{caller: c, search: search, cfg: cfg}, nil
}

// TopHeadlines searches recent news about company and asks the model for the
// main themes and their likely market impact.
func (a *NewsAnalyst) TopHeadlines(ctx context.Context, company string) string {
	company = strings.TrimSpace(company)
	articles, err := a.search.Search(ctx, dataflows.NewsSearchParams{
		Query:        fmt.Sprintf("latest %s stock financial news and headlines", company),
		Symbol:       company,
		LookbackDays: a.cfg.LookbackDays,
		MaxResults:   a.cfg.MaxResults,
	})
	if err != nil {
		a.fallback("news search failed", err)
		return fmt.Sprintf("Error fetching news: %v", err)
	}
	if len(articles) == 0 {
		a.fallback("no news found", ErrEmptyInput)
		return fmt.Sprintf("No relevant news snippets found for %s in the past %d days.", company, a.cfg.LookbackDays)
	}

	headlines := dataflows.FormatHeadlines(articles)
	a.logger.Debug("news search done", zap.String("company", company), zap.Int("articles", len(articles)))

	analysis, err := a.call(ctx, utils.PromptNewsSentiment, map[string]any{
		"Company":   company,
		"Headlines": headlines,
	})
	if err != nil {
		a.fallback("news analysis failed", err)
		return fmt.Sprintf("LLM analysis failed for news sentiment. Raw data:\n%s\nError: %v", headlines, err)
	}
	return analysis
}
