package llm

import "errors"

var (
	// ErrModelInvocation covers transport, auth and quota failures of a model call.
	ErrModelInvocation = errors.New("model invocation failed")
	// ErrModelTimeout is returned when a single call exceeds its deadline.
	ErrModelTimeout = errors.New("model call timed out")
	// ErrEmptyResponse is returned when the model answers with no content.
	ErrEmptyResponse = errors.New("model returned an empty response")
)
