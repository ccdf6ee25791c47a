package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/tidwall/gjson"

	"github.com/dyike/FinCortex/consts"
	"github.com/dyike/FinCortex/internal/models"
	"github.com/dyike/FinCortex/internal/utils"
)

// RiskEvaluator turns the three analyst outputs into a validated
// RiskAssessment.
type RiskEvaluator struct {
	caller
}

func NewRiskEvaluator(m model.BaseChatModel, opts ...Option) (*RiskEvaluator, error) {
	c, err := newCaller(consts.Stage_Risk, m, buildOptions(opts))
	if err != nil {
		return nil, err
	}
	return &RiskEvaluator{caller: c}, nil
}

// ComputeRisk returns either the assessment parsed from the model reply or
// the fixed fallback carrying the failure reason. It never returns a
// partially filled assessment.
func (e *RiskEvaluator) ComputeRisk(ctx context.Context, research, market, news string) models.RiskResult {
	reply, err := e.call(ctx, utils.PromptRiskEvaluator, map[string]any{
		"Research": research,
		"Market":   market,
		"News":     news,
		"Schema":   RiskSchema(),
	})
	if err != nil {
		e.fallback("risk model call failed", err)
		return models.FallbackRisk(err)
	}

	assessment, err := ParseRiskResponse(reply)
	if err != nil {
		e.fallback("risk response rejected", err)
		return models.FallbackRisk(err)
	}
	return models.ValidatedRisk(assessment)
}

var riskSchema = sync.OnceValue(func() string {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	s := r.Reflect(&models.RiskAssessment{})
	s.Version = ""
	s.ID = ""
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		panic(fmt.Sprintf("marshal risk schema: %v", err))
	}
	return string(b)
})

// RiskSchema returns the JSON Schema the risk prompt asks the model to follow.
func RiskSchema() string {
	return riskSchema()
}

type riskPayload struct {
	RiskScore        *float64 `json:"risk_score" validate:"required,gte=0,lte=100"`
	RiskDrivers      []string `json:"risk_drivers" validate:"required,min=1,max=5,unique,dive,required"`
	ConfidenceLevel  *string  `json:"confidence_level" validate:"required,oneof=High Medium Low"`
	QuantitativeFlag *string  `json:"quantitative_flag" validate:"required"`
}

var riskValidator = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
})

// ParseRiskResponse extracts and validates the assessment in a model reply.
// The whole trimmed reply is tried first, then the balanced {...} span opened
// by the first brace. It is a pure function of its input.
func ParseRiskResponse(reply string) (models.RiskAssessment, error) {
	raw, err := extractJSONObject(strings.TrimSpace(reply))
	if err != nil {
		return models.RiskAssessment{}, err
	}

	var p riskPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return models.RiskAssessment{}, fmt.Errorf("%w: field %s: expected %s, got %s",
				ErrSchemaViolation, typeErr.Field, typeErr.Type, typeErr.Value)
		}
		return models.RiskAssessment{}, fmt.Errorf("%w: %w", ErrMalformedJSON, err)
	}
	if err := riskValidator().Struct(p); err != nil {
		return models.RiskAssessment{}, fmt.Errorf("%w: %s", ErrSchemaViolation, describeValidation(err))
	}
	if *p.RiskScore != math.Trunc(*p.RiskScore) {
		return models.RiskAssessment{}, fmt.Errorf("%w: risk_score must be an integer, got %v",
			ErrSchemaViolation, *p.RiskScore)
	}

	return models.RiskAssessment{
		RiskScore:        int(*p.RiskScore),
		RiskDrivers:      p.RiskDrivers,
		ConfidenceLevel:  models.ConfidenceLevel(*p.ConfidenceLevel),
		QuantitativeFlag: *p.QuantitativeFlag,
	}, nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "riskPayload.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s (value %v)", field, fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

// extractJSONObject returns the JSON object embedded in text. Only the span
// opened by the first '{' is considered; later spans are never tried.
func extractJSONObject(text string) (string, error) {
	if strings.HasPrefix(text, "{") && gjson.Valid(text) {
		return text, nil
	}

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", ErrNoJSONObject
	}
	end := matchBrace(text, start)
	if end < 0 {
		return "", ErrNoJSONObject
	}
	span := text[start : end+1]
	if !gjson.Valid(span) {
		var v any
		return "", fmt.Errorf("%w: %v", ErrMalformedJSON, json.Unmarshal([]byte(span), &v))
	}
	return span, nil
}

// matchBrace returns the index of the brace closing the one at start, or -1.
// Braces inside JSON strings are ignored.
func matchBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
