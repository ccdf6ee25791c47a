package dataflows

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/dyike/FinCortex/internal/models"
)

const (
	DefaultGoogleNewsURL = "https://news.google.com/rss"
	defaultNewsTimeout   = 30 * time.Second
)

type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title string    `xml:"title"`
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	PubDate     string    `xml:"pubDate"`
	Source      rssSource `xml:"source"`
}

type rssSource struct {
	URL  string `xml:"url,attr"`
	Text string `xml:",chardata"`
}

// GoogleNewsClient searches the Google News RSS endpoint.
type GoogleNewsClient struct {
	client  *resty.Client
	baseURL string
	logger  *zap.Logger
}

type GoogleNewsOptions struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	Logger    *zap.Logger
}

func NewGoogleNewsClient(opts GoogleNewsOptions) *GoogleNewsClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultGoogleNewsURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultNewsTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	client := resty.New()
	client.SetTimeout(opts.Timeout)
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}
	return &GoogleNewsClient{
		client:  client,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		logger:  opts.Logger,
	}
}

type NewsSearchParams struct {
	Query        string
	// Symbol is the ticker for sources that search by company rather than text.
	Symbol       string
	LookbackDays int
	MaxResults   int
	Language     string
	Country      string
}

// Search returns at most MaxResults articles matching the query published
// within the lookback window.
func (c *GoogleNewsClient) Search(ctx context.Context, params NewsSearchParams) ([]models.NewsArticle, error) {
	if strings.TrimSpace(params.Query) == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}
	searchURL := c.searchURL(params)

	resp, err := c.client.R().SetContext(ctx).Get(searchURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch RSS feed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("HTTP error %d when fetching RSS feed", resp.StatusCode())
	}

	var feed rssFeed
	if err := xml.Unmarshal(resp.Body(), &feed); err != nil {
		return nil, fmt.Errorf("failed to parse RSS XML: %w", err)
	}

	articles := make([]models.NewsArticle, 0, len(feed.Channel.Items))
	for _, item := range feed.Channel.Items {
		if params.MaxResults > 0 && len(articles) >= params.MaxResults {
			break
		}
		articles = append(articles, convertRSSItem(item))
	}
	c.logger.Debug("google news search",
		zap.String("query", params.Query),
		zap.Int("articles", len(articles)))
	return articles, nil
}

func (c *GoogleNewsClient) searchURL(params NewsSearchParams) string {
	lang := params.Language
	if lang == "" {
		lang = "en-US"
	}
	country := params.Country
	if country == "" {
		country = "US"
	}

	q := params.Query
	if params.LookbackDays > 0 {
		q = fmt.Sprintf("%s when:%dd", q, params.LookbackDays)
	}
	v := url.Values{}
	v.Set("q", q)
	v.Set("hl", lang)
	v.Set("gl", country)
	v.Set("ceid", fmt.Sprintf("%s:%s", country, strings.Split(lang, "-")[0]))
	return c.baseURL + "/search?" + v.Encode()
}

func convertRSSItem(item rssItem) models.NewsArticle {
	pubTime, err := time.Parse(time.RFC1123Z, item.PubDate)
	if err != nil {
		pubTime, _ = time.Parse(time.RFC1123, item.PubDate)
	}

	source := strings.TrimSpace(item.Source.Text)
	if source == "" && item.Source.URL != "" {
		if u, err := url.Parse(item.Source.URL); err == nil {
			source = u.Host
		}
	}

	return models.NewsArticle{
		Title:       strings.TrimSpace(item.Title),
		Description: CleanHTML(item.Description),
		URL:         item.Link,
		Source:      source,
		PublishedAt: pubTime,
	}
}

var (
	htmlTagRegex = regexp.MustCompile(`<[^>]*>`)
	spaceRegex   = regexp.MustCompile(`\s+`)
)

// CleanHTML extracts readable text from an HTML fragment.
func CleanHTML(content string) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err == nil {
		if text := strings.TrimSpace(doc.Text()); text != "" {
			return spaceRegex.ReplaceAllString(text, " ")
		}
	}
	text := htmlTagRegex.ReplaceAllString(content, "")
	return strings.TrimSpace(spaceRegex.ReplaceAllString(text, " "))
}

// FormatHeadlines renders articles as the plain-text block handed to the
// sentiment prompt.
func FormatHeadlines(articles []models.NewsArticle) string {
	var b strings.Builder
	for i, a := range articles {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "- %s", a.Title)
		if a.Source != "" {
			fmt.Fprintf(&b, " (%s", a.Source)
			if !a.PublishedAt.IsZero() {
				fmt.Fprintf(&b, ", %s", a.PublishedAt.Format("2006-01-02"))
			}
			b.WriteString(")")
		}
		if a.Description != "" && a.Description != a.Title {
			fmt.Fprintf(&b, "\n  %s", a.Description)
		}
	}
	return b.String()
}
