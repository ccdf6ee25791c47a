package consts

const (
	Agent_ResearchAnalyst = "Research Analyst"
	Agent_MarketAnalyst   = "Market Analyst"
	Agent_NewsAnalyst     = "News Analyst"
	Agent_RiskEvaluator   = "Risk Evaluator"
	Agent_Synthesizer     = "Synthesizer"
)

// Stage labels used in metrics and logs
const (
	Stage_Summarize = "summarize"
	Stage_Research  = "research"
	Stage_Market    = "market"
	Stage_News      = "news"
	Stage_Risk      = "risk"
	Stage_Synthesis = "synthesis"
)

const (
	Status_Success = "success"
	Status_Error   = "error"
	Status_Timeout = "timeout"
)
