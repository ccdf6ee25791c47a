package dataflows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/dyike/FinCortex/config"
	"github.com/dyike/FinCortex/internal/models"
)

const DefaultFinnhubURL = "https://finnhub.io/api/v1"

var ErrFinnhubNotConfigured = errors.New("finnhub API key not configured")

func FinnhubConfigured(cfg *config.Config) bool {
	return strings.TrimSpace(cfg.FinnhubAPIKey) != ""
}

// FinnhubClient fetches company news from Finnhub.
type FinnhubClient struct {
	client *resty.Client
	apiKey string
	now    func() time.Time
	logger *zap.Logger
}

type FinnhubOptions struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  *zap.Logger
}

func NewFinnhubClient(opts FinnhubOptions) *FinnhubClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultFinnhubURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultNewsTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(opts.BaseURL, "/"))
	client.SetTimeout(opts.Timeout)

	return &FinnhubClient{
		client: client,
		apiKey: opts.APIKey,
		now:    time.Now,
		logger: opts.Logger,
	}
}

type finnhubNews struct {
	Category string `json:"category"`
	DateTime int64  `json:"datetime"`
	Headline string `json:"headline"`
	ID       int64  `json:"id"`
	Related  string `json:"related"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

// Search returns company news for params.Symbol within the lookback window.
// The free-text query is ignored.
func (fc *FinnhubClient) Search(ctx context.Context, params NewsSearchParams) ([]models.NewsArticle, error) {
	if fc.apiKey == "" {
		return nil, ErrFinnhubNotConfigured
	}
	symbol := strings.ToUpper(strings.TrimSpace(params.Symbol))
	if symbol == "" {
		return nil, fmt.Errorf("finnhub: symbol cannot be empty")
	}
	days := params.LookbackDays
	if days <= 0 {
		days = 7
	}
	to := fc.now()
	from := to.AddDate(0, 0, -days)

	resp, err := fc.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol": symbol,
			"from":   from.Format("2006-01-02"),
			"to":     to.Format("2006-01-02"),
			"token":  fc.apiKey,
		}).
		Get("/company-news")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch news for %s: %w", symbol, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("finnhub API error %d for %s", resp.StatusCode(), symbol)
	}

	var items []finnhubNews
	if err := json.Unmarshal(resp.Body(), &items); err != nil {
		return nil, fmt.Errorf("failed to parse news response: %w", err)
	}

	articles := make([]models.NewsArticle, 0, len(items))
	for _, item := range items {
		if params.MaxResults > 0 && len(articles) >= params.MaxResults {
			break
		}
		if strings.TrimSpace(item.Headline) == "" {
			continue
		}
		articles = append(articles, models.NewsArticle{
			Title:       strings.TrimSpace(item.Headline),
			Description: CleanHTML(item.Summary),
			URL:         item.URL,
			Source:      item.Source,
			PublishedAt: time.Unix(item.DateTime, 0).UTC(),
		})
	}
	fc.logger.Debug("finnhub company news",
		zap.String("symbol", symbol),
		zap.Int("articles", len(articles)))
	return articles, nil
}
