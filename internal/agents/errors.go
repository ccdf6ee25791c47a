package agents

import (
	"errors"

	"github.com/dyike/FinCortex/internal/llm"
)

// Model call failures, shared with the llm package.
var (
	ErrModelInvocation = llm.ErrModelInvocation
	ErrModelTimeout    = llm.ErrModelTimeout
	ErrEmptyResponse   = llm.ErrEmptyResponse
)

// Risk response failures.
var (
	ErrNoJSONObject    = errors.New("response did not contain a JSON object")
	ErrMalformedJSON   = errors.New("response contained malformed JSON")
	ErrSchemaViolation = errors.New("risk assessment violates schema")
)

// ErrEmptyInput marks blank input that a stage skips without a model call.
var ErrEmptyInput = errors.New("empty input")

// errorKind labels err for logs and fallback metrics.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrNoJSONObject):
		return "no_json"
	case errors.Is(err, ErrMalformedJSON):
		return "malformed_json"
	case errors.Is(err, ErrSchemaViolation):
		return "schema"
	case errors.Is(err, ErrEmptyInput):
		return "empty_input"
	default:
		return llm.Kind(err)
	}
}
