package graph

import (
	"context"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"go.uber.org/zap"

	"github.com/dyike/FinCortex/internal/logger"
)

type nodeStartKey struct{}

// NewLoggerCallback logs node start, end and error events with the node
// duration. The request logger in ctx is preferred over base.
func NewLoggerCallback(base *zap.Logger) callbacks.Handler {
	base = logger.OrNop(base)
	loggerFor := func(ctx context.Context, info *callbacks.RunInfo) *zap.Logger {
		l := logger.FromContextOr(ctx, base)
		if info != nil {
			l = l.With(zap.String("node", info.Name), zap.String("component", string(info.Component)))
		}
		return l
	}
	elapsed := func(ctx context.Context) time.Duration {
		if start, ok := ctx.Value(nodeStartKey{}).(time.Time); ok {
			return time.Since(start)
		}
		return 0
	}

	return callbacks.NewHandlerBuilder().
		OnStartFn(func(ctx context.Context, info *callbacks.RunInfo, _ callbacks.CallbackInput) context.Context {
			loggerFor(ctx, info).Debug("node started")
			return context.WithValue(ctx, nodeStartKey{}, time.Now())
		}).
		OnEndFn(func(ctx context.Context, info *callbacks.RunInfo, _ callbacks.CallbackOutput) context.Context {
			loggerFor(ctx, info).Info("node finished", zap.Duration("duration", elapsed(ctx)))
			return ctx
		}).
		OnErrorFn(func(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
			loggerFor(ctx, info).Error("node failed", zap.Duration("duration", elapsed(ctx)), zap.Error(err))
			return ctx
		}).
		Build()
}
