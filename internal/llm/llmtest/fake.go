// Package llmtest provides a scripted chat model for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Responder produces the reply for one prompt.
type Responder func(ctx context.Context, prompt string) (string, error)

// FakeChatModel answers Generate calls through a Responder and records every
// prompt it receives. It is safe for concurrent use.
type FakeChatModel struct {
	respond Responder

	mu      sync.Mutex
	prompts []string
}

var _ model.BaseChatModel = (*FakeChatModel)(nil)

func New(respond Responder) *FakeChatModel {
	return &FakeChatModel{respond: respond}
}

// Reply returns a model that always answers text.
func Reply(text string) *FakeChatModel {
	return New(func(context.Context, string) (string, error) { return text, nil })
}

// Fail returns a model whose calls always fail with err.
func Fail(err error) *FakeChatModel {
	return New(func(context.Context, string) (string, error) { return "", err })
}

// Sequence answers with replies in order and repeats the last one.
func Sequence(replies ...string) *FakeChatModel {
	var mu sync.Mutex
	i := 0
	return New(func(context.Context, string) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(replies) == 0 {
			return "", errors.New("no scripted reply")
		}
		r := replies[min(i, len(replies)-1)]
		i++
		return r, nil
	})
}

func (f *FakeChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	prompt := ""
	if len(input) > 0 {
		prompt = input[len(input)-1].Content
	}
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := f.respond(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return schema.AssistantMessage(out, nil), nil
}

func (f *FakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// Prompts returns a copy of the prompts received so far.
func (f *FakeChatModel) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.prompts))
	copy(out, f.prompts)
	return out
}

func (f *FakeChatModel) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}
