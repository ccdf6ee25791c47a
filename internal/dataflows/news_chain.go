package dataflows

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/dyike/FinCortex/internal/models"
)

// NewsSource is any news backend the news stage can search.
type NewsSource interface {
	Search(ctx context.Context, params NewsSearchParams) ([]models.NewsArticle, error)
}

type namedSource struct {
	name   string
	source NewsSource
}

// NewsChain asks each source in order and returns the first non-empty
// result. An error is returned only when every source failed.
type NewsChain struct {
	sources []namedSource
	logger  *zap.Logger
}

func NewNewsChain(logger *zap.Logger) *NewsChain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NewsChain{logger: logger}
}

// Add appends a source. Nil sources are skipped.
func (c *NewsChain) Add(name string, source NewsSource) *NewsChain {
	if source != nil {
		c.sources = append(c.sources, namedSource{name: name, source: source})
	}
	return c
}

func (c *NewsChain) Len() int { return len(c.sources) }

func (c *NewsChain) Search(ctx context.Context, params NewsSearchParams) ([]models.NewsArticle, error) {
	if len(c.sources) == 0 {
		return nil, errors.New("no news source configured")
	}

	var (
		errs      []error
		succeeded bool
	)
	for _, s := range c.sources {
		articles, err := s.source.Search(ctx, params)
		if err != nil {
			c.logger.Warn("news source failed", zap.String("source", s.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		succeeded = true
		if len(articles) > 0 {
			return articles, nil
		}
		c.logger.Debug("news source returned nothing", zap.String("source", s.name))
	}
	if succeeded {
		return nil, nil
	}
	return nil, errors.Join(errs...)
}
