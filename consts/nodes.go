package consts

// Graph node keys
const (
	ResearchAnalyst = "research_analyst"
	MarketAnalyst   = "market_analyst"
	NewsAnalyst     = "news_analyst"
	RiskEvaluator   = "risk_evaluator"
	Synthesizer     = "synthesizer"
)

// Output keys used to merge the parallel analyst branches
const (
	OutputResearch = "research"
	OutputMarket   = "market"
	OutputNews     = "news"
)
