package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/FinCortex/consts"
	"github.com/dyike/FinCortex/internal/metrics"
)

// Invoke sends prompt as a single user message and returns the reply text.
// There is exactly one attempt. A positive timeout bounds the call; expiry is
// reported as ErrModelTimeout. Other failures wrap ErrModelInvocation, and a
// blank reply is ErrEmptyResponse.
func Invoke(ctx context.Context, m model.BaseChatModel, stage string, timeout time.Duration, prompt string) (string, error) {
	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	msg, err := m.Generate(callCtx, []*schema.Message{schema.UserMessage(prompt)})
	metrics.LLMCallDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			metrics.LLMCallsTotal.WithLabelValues(stage, consts.Status_Timeout).Inc()
			return "", fmt.Errorf("%w after %s", ErrModelTimeout, timeout)
		}
		metrics.LLMCallsTotal.WithLabelValues(stage, consts.Status_Error).Inc()
		return "", fmt.Errorf("%w: %w", ErrModelInvocation, err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		metrics.LLMCallsTotal.WithLabelValues(stage, consts.Status_Error).Inc()
		return "", ErrEmptyResponse
	}

	metrics.LLMCallsTotal.WithLabelValues(stage, consts.Status_Success).Inc()
	return msg.Content, nil
}

// Kind maps an error to a short label used in logs and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrModelTimeout):
		return "timeout"
	case errors.Is(err, ErrEmptyResponse):
		return "empty_response"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "invocation"
	}
}
