package graph

import (
	"context"
	"errors"
	"io"

	"github.com/cloudwego/eino/components/model"
	"go.uber.org/zap"

	"github.com/dyike/FinCortex/config"
	"github.com/dyike/FinCortex/internal/agents"
	"github.com/dyike/FinCortex/internal/cache"
	"github.com/dyike/FinCortex/internal/dataflows"
	"github.com/dyike/FinCortex/internal/embedding"
	"github.com/dyike/FinCortex/internal/llm"
	"github.com/dyike/FinCortex/internal/logger"
	"github.com/dyike/FinCortex/internal/vectorstore"
)

// Build wires every stage from cfg. Missing credentials and a missing
// document index are fatal. The returned closer releases market data
// connections.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger, opts ...PipelineOption) (*Pipeline, io.Closer, error) {
	log = logger.OrNop(log)
	agentOpts := []agents.Option{
		agents.WithTimeout(cfg.LLMTimeout.Std()),
		agents.WithLogger(log),
	}

	analyst, err := llm.NewChatModel(ctx, cfg, llm.RoleAnalyst)
	if err != nil {
		return nil, nil, err
	}
	summarizerModel, err := llm.NewChatModel(ctx, cfg, llm.RoleSummarizer)
	if err != nil {
		return nil, nil, err
	}
	light, err := llm.NewChatModel(ctx, cfg, llm.RoleLight)
	if err != nil {
		return nil, nil, err
	}

	embedder, err := embedding.NewFromConfig(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	store, err := vectorstore.Load(cfg.IndexPath, embedder)
	if err != nil {
		return nil, nil, err
	}
	log.Info("document store loaded",
		zap.String("path", store.Path()),
		zap.Int("chunks", store.Len()),
		zap.String("model", store.Model()))

	closers := closerList{}
	var longport dataflows.MarketSource
	if dataflows.LongportConfigured(cfg) {
		lp, err := dataflows.NewLongportClient(cfg)
		if err != nil {
			log.Warn("longport unavailable, using yahoo for every symbol", zap.Error(err))
		} else {
			longport = lp
			closers = append(closers, lp)
		}
	}
	var market agents.MarketData = dataflows.NewMarketRouter(dataflows.NewYahooClient(), longport, log)
	if ttl := cfg.MarketCacheTTL.Std(); ttl > 0 {
		market = cache.NewMarketDataCache(market, ttl, log)
	}
	news := dataflows.NewNewsChain(log).
		Add("google", dataflows.NewGoogleNewsClient(dataflows.GoogleNewsOptions{
			UserAgent: cfg.NewsUserAgent,
			Logger:    log,
		}))
	if dataflows.FinnhubConfigured(cfg) {
		news.Add("finnhub", dataflows.NewFinnhubClient(dataflows.FinnhubOptions{
			APIKey: cfg.FinnhubAPIKey,
			Logger: log,
		}))
	}

	stages, err := buildStages(cfg, analyst, summarizerModel, light, store, market, news, agentOpts)
	if err != nil {
		_ = closers.Close()
		return nil, nil, err
	}

	p, err := NewPipeline(ctx, stages, append([]PipelineOption{WithLogger(log)}, opts...)...)
	if err != nil {
		_ = closers.Close()
		return nil, nil, err
	}
	return p, closers, nil
}

func buildStages(
	cfg *config.Config,
	analyst, summarizerModel, light model.BaseChatModel,
	store *vectorstore.Store,
	market agents.MarketData,
	news agents.NewsSearcher,
	opts []agents.Option,
) (Stages, error) {
	summarizer, err := agents.NewSummarizer(summarizerModel, agents.SummarizerConfig{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		MaxSubChunks: cfg.MaxSubChunks,
	}, opts...)
	if err != nil {
		return Stages{}, err
	}
	research, err := agents.NewResearchAnalyst(analyst, store, summarizer, opts...)
	if err != nil {
		return Stages{}, err
	}
	marketAnalyst, err := agents.NewMarketAnalyst(light, market, cfg.MarketPeriodDays, opts...)
	if err != nil {
		return Stages{}, err
	}
	newsAnalyst, err := agents.NewNewsAnalyst(light, news, agents.NewsConfig{
		LookbackDays: cfg.NewsLookbackDays,
		MaxResults:   cfg.NewsMaxResults,
	}, opts...)
	if err != nil {
		return Stages{}, err
	}
	risk, err := agents.NewRiskEvaluator(light, opts...)
	if err != nil {
		return Stages{}, err
	}
	synth, err := agents.NewSynthesizer(light, opts...)
	if err != nil {
		return Stages{}, err
	}
	return Stages{
		Research:  research,
		Market:    marketAnalyst,
		News:      newsAnalyst,
		Risk:      risk,
		Synthesis: synth,
	}, nil
}

type closerList []io.Closer

func (c closerList) Close() error {
	var errs []error
	for _, closer := range c {
		errs = append(errs, closer.Close())
	}
	return errors.Join(errs...)
}
