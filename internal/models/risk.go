package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "High"
	ConfidenceMedium ConfidenceLevel = "Medium"
	ConfidenceLow    ConfidenceLevel = "Low"
)

// RiskAssessment is the structured output of the risk stage.
type RiskAssessment struct {
	RiskScore        int             `json:"risk_score" jsonschema:"minimum=0,maximum=100" jsonschema_description:"Overall risk score from 0 (low risk) to 100 (high risk)."`
	RiskDrivers      []string        `json:"risk_drivers" jsonschema:"minItems=1,maxItems=5,uniqueItems=true" jsonschema_description:"The top 5 most critical risk factors identified."`
	ConfidenceLevel  ConfidenceLevel `json:"confidence_level" jsonschema:"enum=High,enum=Medium,enum=Low" jsonschema_description:"Confidence level for the assessment."`
	QuantitativeFlag string          `json:"quantitative_flag" jsonschema_description:"A simple, data-driven flag (e.g. MA_Crossover_Bearish, Price_Above_MA_Bullish, Neutral, Error)."`
}

const (
	FallbackRiskScore        = 75
	FallbackQuantitativeFlag = "Error"
)

var fallbackRiskDrivers = []string{
	"Risk calculation failed due to error.",
	"Manual review required.",
	"High LLM error risk.",
	"Data integrity concern.",
	"Returning default risk.",
}

// FallbackAssessment returns a fresh copy of the fixed assessment used when
// model output cannot be trusted.
func FallbackAssessment() RiskAssessment {
	return RiskAssessment{
		RiskScore:        FallbackRiskScore,
		RiskDrivers:      slices.Clone(fallbackRiskDrivers),
		ConfidenceLevel:  ConfidenceLow,
		QuantitativeFlag: FallbackQuantitativeFlag,
	}
}

// RiskResult is either a validated assessment or the fallback assessment
// together with the reason validation failed. Callers always get the same
// shape; Error is set if and only if the fallback path was taken.
type RiskResult struct {
	Assessment RiskAssessment
	Error      string
	cause      error
}

func ValidatedRisk(a RiskAssessment) RiskResult {
	return RiskResult{Assessment: a}
}

func FallbackRisk(cause error) RiskResult {
	if cause == nil {
		cause = errors.New("unknown risk evaluation failure")
	}
	return RiskResult{
		Assessment: FallbackAssessment(),
		Error:      fmt.Sprintf("Error in Risk Agent LLM or parsing: %v", cause),
		cause:      cause,
	}
}

func (r RiskResult) IsFallback() bool {
	return r.Error != ""
}

// Cause returns the underlying error of a fallback result.
func (r RiskResult) Cause() error {
	return r.cause
}

type riskResultJSON struct {
	RiskAssessment
	Error string `json:"error,omitempty"`
}

func (r RiskResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(riskResultJSON{RiskAssessment: r.Assessment, Error: r.Error})
}

func (r *RiskResult) UnmarshalJSON(data []byte) error {
	var raw riskResultJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Assessment = raw.RiskAssessment
	r.Error = raw.Error
	r.cause = nil
	if raw.Error != "" {
		r.cause = errors.New(raw.Error)
	}
	return nil
}

// String renders the result as indented JSON, the form handed to the
// synthesis prompt.
func (r RiskResult) String() string {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", r.Assessment)
	}
	return string(data)
}
