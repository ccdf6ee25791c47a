package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dyike/FinCortex/consts"
	"github.com/dyike/FinCortex/internal/logger"
	"github.com/dyike/FinCortex/internal/models"
)

const GraphName = "FinCortex-Analysis"

const prepareNode = "prepare"

var ErrInvalidRequest = errors.New("invalid analysis request")

type Researcher interface {
	Analyze(ctx context.Context, query string, k int) string
}

type MarketAnalyzer interface {
	AnalyzeTicker(ctx context.Context, ticker string) string
}

type NewsAnalyzer interface {
	TopHeadlines(ctx context.Context, company string) string
}

type RiskEvaluator interface {
	ComputeRisk(ctx context.Context, research, market, news string) models.RiskResult
}

type Synthesizer interface {
	Synthesize(ctx context.Context, query, research, market, news string, risk models.RiskResult) string
}

// Recorder persists finished reports.
type Recorder interface {
	Record(ctx context.Context, report *models.AnalysisReport) error
}

// Stages are the five analysis steps run by a Pipeline.
type Stages struct {
	Research  Researcher
	Market    MarketAnalyzer
	News      NewsAnalyzer
	Risk      RiskEvaluator
	Synthesis Synthesizer
}

func (s Stages) validate() error {
	switch {
	case s.Research == nil:
		return errors.New("research stage is required")
	case s.Market == nil:
		return errors.New("market stage is required")
	case s.News == nil:
		return errors.New("news stage is required")
	case s.Risk == nil:
		return errors.New("risk stage is required")
	case s.Synthesis == nil:
		return errors.New("synthesis stage is required")
	}
	return nil
}

type PipelineOption func(*Pipeline)

func WithRecorder(r Recorder) PipelineOption {
	return func(p *Pipeline) {
		p.recorder = r
	}
}

func WithLogger(l *zap.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger.OrNop(l)
	}
}

// Pipeline runs research, market and news concurrently, then risk over all
// three, then synthesis.
type Pipeline struct {
	stages   Stages
	runnable compose.Runnable[*models.AnalysisRequest, *models.AnalysisReport]
	callback callbacks.Handler
	recorder Recorder
	logger   *zap.Logger
}

func NewPipeline(ctx context.Context, stages Stages, opts ...PipelineOption) (*Pipeline, error) {
	if err := stages.validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{stages: stages, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	p.callback = NewLoggerCallback(p.logger)

	runnable, err := p.compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile analysis graph: %w", err)
	}
	p.runnable = runnable
	return p, nil
}

func (p *Pipeline) compile(ctx context.Context) (compose.Runnable[*models.AnalysisRequest, *models.AnalysisReport], error) {
	g := compose.NewGraph[*models.AnalysisRequest, *models.AnalysisReport](
		compose.WithGenLocalState(func(context.Context) *models.AnalysisState {
			return &models.AnalysisState{}
		}),
	)

	nodes := []struct {
		key  string
		add  func() error
		from []string
	}{
		{prepareNode, func() error {
			return g.AddLambdaNode(prepareNode, compose.InvokableLambda(p.prepare))
		}, []string{compose.START}},
		{consts.ResearchAnalyst, func() error {
			return g.AddLambdaNode(consts.ResearchAnalyst, compose.InvokableLambda(p.research),
				compose.WithNodeName(consts.Agent_ResearchAnalyst), compose.WithOutputKey(consts.OutputResearch))
		}, []string{prepareNode}},
		{consts.MarketAnalyst, func() error {
			return g.AddLambdaNode(consts.MarketAnalyst, compose.InvokableLambda(p.market),
				compose.WithNodeName(consts.Agent_MarketAnalyst), compose.WithOutputKey(consts.OutputMarket))
		}, []string{prepareNode}},
		{consts.NewsAnalyst, func() error {
			return g.AddLambdaNode(consts.NewsAnalyst, compose.InvokableLambda(p.news),
				compose.WithNodeName(consts.Agent_NewsAnalyst), compose.WithOutputKey(consts.OutputNews))
		}, []string{prepareNode}},
		{consts.RiskEvaluator, func() error {
			return g.AddLambdaNode(consts.RiskEvaluator, compose.InvokableLambda(p.risk),
				compose.WithNodeName(consts.Agent_RiskEvaluator))
		}, []string{consts.ResearchAnalyst, consts.MarketAnalyst, consts.NewsAnalyst}},
		{consts.Synthesizer, func() error {
			return g.AddLambdaNode(consts.Synthesizer, compose.InvokableLambda(p.synthesize),
				compose.WithNodeName(consts.Agent_Synthesizer))
		}, []string{consts.RiskEvaluator}},
	}

	for _, n := range nodes {
		if err := n.add(); err != nil {
			return nil, fmt.Errorf("add node %s: %w", n.key, err)
		}
	}
	for _, n := range nodes {
		for _, from := range n.from {
			if err := g.AddEdge(from, n.key); err != nil {
				return nil, fmt.Errorf("add edge %s -> %s: %w", from, n.key, err)
			}
		}
	}
	if err := g.AddEdge(consts.Synthesizer, compose.END); err != nil {
		return nil, err
	}

	return g.Compile(ctx,
		compose.WithGraphName(GraphName),
		compose.WithNodeTriggerMode(compose.AllPredecessor),
	)
}

// Run executes one analysis. Stage failures are already folded into the
// report text, so an error means the run itself could not complete, for
// example because ctx was cancelled.
func (p *Pipeline) Run(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisReport, error) {
	req.Query = strings.TrimSpace(req.Query)
	req.Company = strings.TrimSpace(req.Company)
	if req.Query == "" || req.Company == "" {
		return nil, fmt.Errorf("%w: query and company are required", ErrInvalidRequest)
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.K = max(req.K, 0)

	l := p.logger.With(zap.String("request_id", req.ID), zap.String("company", req.Company))
	ctx = logger.ContextWithLogger(ctx, l)
	l.Info("analysis started", zap.String("query", req.Query), zap.Int("k", req.K))

	report, err := p.runnable.Invoke(ctx, &req, compose.WithCallbacks(p.callback))
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = fmt.Errorf("analysis cancelled: %w", ctxErr)
	}
	if err != nil {
		l.Error("analysis aborted", zap.Error(err))
		return nil, err
	}

	l.Info("analysis finished",
		zap.Duration("duration", report.Duration),
		zap.Int("risk_score", report.Risk.Assessment.RiskScore),
		zap.Bool("risk_fallback", report.Risk.IsFallback()))

	if p.recorder != nil {
		if err := p.recorder.Record(ctx, report); err != nil {
			l.Warn("could not record analysis", zap.Error(err))
		}
	}
	return report, nil
}

func (p *Pipeline) prepare(ctx context.Context, req *models.AnalysisRequest) (*models.AnalysisRequest, error) {
	err := compose.ProcessState(ctx, func(_ context.Context, s *models.AnalysisState) error {
		fresh := models.NewAnalysisState(req)
		*s = *fresh
		return nil
	})
	return req, err
}

func (p *Pipeline) research(ctx context.Context, req *models.AnalysisRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	out := p.stages.Research.Analyze(ctx, req.Query, req.K)
	return out, compose.ProcessState(ctx, func(_ context.Context, s *models.AnalysisState) error {
		s.Research = out
		return nil
	})
}

func (p *Pipeline) market(ctx context.Context, req *models.AnalysisRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	out := p.stages.Market.AnalyzeTicker(ctx, req.Company)
	return out, compose.ProcessState(ctx, func(_ context.Context, s *models.AnalysisState) error {
		s.Market = out
		return nil
	})
}

func (p *Pipeline) news(ctx context.Context, req *models.AnalysisRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	out := p.stages.News.TopHeadlines(ctx, req.Company)
	return out, compose.ProcessState(ctx, func(_ context.Context, s *models.AnalysisState) error {
		s.News = out
		return nil
	})
}

func (p *Pipeline) risk(ctx context.Context, in map[string]any) (models.RiskResult, error) {
	if err := ctx.Err(); err != nil {
		return models.RiskResult{}, err
	}
	research, market, news := stringOf(in, consts.OutputResearch), stringOf(in, consts.OutputMarket), stringOf(in, consts.OutputNews)
	out := p.stages.Risk.ComputeRisk(ctx, research, market, news)
	return out, compose.ProcessState(ctx, func(_ context.Context, s *models.AnalysisState) error {
		s.Risk = out
		return nil
	})
}

func (p *Pipeline) synthesize(ctx context.Context, risk models.RiskResult) (*models.AnalysisReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var snapshot models.AnalysisState
	err := compose.ProcessState(ctx, func(_ context.Context, s *models.AnalysisState) error {
		if s.Request == nil {
			return errors.New("analysis state has no request")
		}
		snapshot = *s
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := p.stages.Synthesis.Synthesize(ctx, snapshot.Request.Query, snapshot.Research, snapshot.Market, snapshot.News, risk)

	var report *models.AnalysisReport
	err = compose.ProcessState(ctx, func(_ context.Context, s *models.AnalysisState) error {
		s.Synthesis = out
		report = s.Report()
		return nil
	})
	return report, err
}

func stringOf(in map[string]any, key string) string {
	s, _ := in[key].(string)
	return s
}
