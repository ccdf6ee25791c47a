package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/dyike/FinCortex/config"
	"github.com/dyike/FinCortex/internal/metrics"
)

// ErrProvider wraps every failure reported by the embedding API.
var ErrProvider = errors.New("embedding provider error")

// OpenAIEmbedder implements the eino embedding.Embedder interface on top of
// the OpenAI embeddings endpoint.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	logger     *zap.Logger
}

var _ embedding.Embedder = (*OpenAIEmbedder)(nil)

type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	Logger     *zap.Logger
}

func NewOpenAIEmbedder(cfg *Config) *OpenAIEmbedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		logger:     logger,
	}
}

// NewFromConfig builds the embedder described by the application config.
func NewFromConfig(cfg *config.Config, logger *zap.Logger) (*OpenAIEmbedder, error) {
	if err := cfg.RequireEmbeddingCredentials(); err != nil {
		return nil, err
	}
	baseURL := cfg.EmbeddingURL
	if baseURL == "" && cfg.LLMProvider == config.ProviderOpenAI {
		baseURL = cfg.BackendURL
	}
	return NewOpenAIEmbedder(&Config{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    baseURL,
		Model:      cfg.EmbeddingModel,
		Dimensions: cfg.EmbeddingDims,
		Logger:     logger,
	}), nil
}

func (e *OpenAIEmbedder) Model() string {
	return string(e.model)
}

// EmbedStrings returns one vector per input text, in input order.
func (e *OpenAIEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	model := e.model
	options := embedding.GetCommonOptions(&embedding.Options{}, opts...)
	if options.Model != nil && *options.Model != "" {
		model = openai.EmbeddingModel(*options.Model)
	}

	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(string(model), "error").Inc()
		return nil, parseAPIError(err)
	}
	if len(resp.Data) != len(texts) {
		metrics.EmbeddingRequestsTotal.WithLabelValues(string(model), "error").Inc()
		return nil, fmt.Errorf("embedding response has %d vectors for %d inputs: %w", len(resp.Data), len(texts), ErrProvider)
	}
	metrics.EmbeddingRequestsTotal.WithLabelValues(string(model), "success").Inc()
	e.logger.Debug("embedded batch",
		zap.Int("inputs", len(texts)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("took", time.Since(start)))

	out := make([][]float64, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range: %w", d.Index, ErrProvider)
		}
		vec := make([]float64, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float64(v)
		}
		out[d.Index] = vec
	}
	return out, nil
}

func parseAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("embedding API error %d: %s: %w", reqErr.HTTPStatusCode, string(reqErr.Body), ErrProvider)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, ErrProvider)
	}
	return fmt.Errorf("embedding request failed: %v: %w", err, ErrProvider)
}
