package agents

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/components/model"
	"go.uber.org/zap"

	"github.com/dyike/FinCortex/internal/llm"
	"github.com/dyike/FinCortex/internal/metrics"
	"github.com/dyike/FinCortex/internal/utils"
)

type options struct {
	timeout time.Duration
	logger  *zap.Logger
}

type Option func(*options)

// WithTimeout bounds every model call made by the agent.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// caller renders embedded prompts and sends them to one chat model.
type caller struct {
	stage   string
	model   model.BaseChatModel
	timeout time.Duration
	logger  *zap.Logger
}

func newCaller(stage string, m model.BaseChatModel, o options) (caller, error) {
	if m == nil {
		return caller{}, errors.New(stage + ": chat model is required")
	}
	return caller{
		stage:   stage,
		model:   m,
		timeout: o.timeout,
		logger:  o.logger.With(zap.String("stage", stage)),
	}, nil
}

func (c caller) call(ctx context.Context, promptName string, vars map[string]any) (string, error) {
	prompt, err := utils.RenderPrompt(ctx, promptName, vars)
	if err != nil {
		return "", err
	}
	return llm.Invoke(ctx, c.model, c.stage, c.timeout, prompt)
}

// fallback logs and counts a stage output replaced by fallback text.
func (c caller) fallback(msg string, err error) {
	kind := errorKind(err)
	metrics.Fallback(c.stage, kind)
	c.logger.Warn(msg, zap.String("kind", kind), zap.Error(err))
}
