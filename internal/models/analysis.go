package models

import "time"

const DefaultTopK = 4

// AnalysisRequest is the input to one pipeline run.
type AnalysisRequest struct {
	ID      string `json:"id,omitempty"`
	Query   string `json:"query"`
	Company string `json:"company"`
	K       int    `json:"k"`
}

// AnalysisReport collects every stage output of a run.
type AnalysisReport struct {
	ID        string        `json:"id"`
	Query     string        `json:"query"`
	Company   string        `json:"company"`
	K         int           `json:"k"`
	Research  string        `json:"research"`
	Market    string        `json:"market"`
	News      string        `json:"news"`
	Risk      RiskResult    `json:"risk"`
	Synthesis string        `json:"synthesis"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// AnalysisState is the graph-local state of a run. Parallel nodes write to
// disjoint fields through compose.ProcessState.
type AnalysisState struct {
	Request   *AnalysisRequest
	StartedAt time.Time
	Research  string
	Market    string
	News      string
	Risk      RiskResult
	Synthesis string
}

func NewAnalysisState(req *AnalysisRequest) *AnalysisState {
	return &AnalysisState{
		Request:   req,
		StartedAt: time.Now(),
	}
}

func (s *AnalysisState) Report() *AnalysisReport {
	report := &AnalysisReport{
		Research:  s.Research,
		Market:    s.Market,
		News:      s.News,
		Risk:      s.Risk,
		Synthesis: s.Synthesis,
		StartedAt: s.StartedAt,
		Duration:  time.Since(s.StartedAt),
	}
	if s.Request != nil {
		report.ID = s.Request.ID
		report.Query = s.Request.Query
		report.Company = s.Request.Company
		report.K = s.Request.K
	}
	return report
}
