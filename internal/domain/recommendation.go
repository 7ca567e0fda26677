package domain

import "time"

// Stance is the structured per-ticker advice block of a recommendation.
type Stance struct {
	Ticker        string
	Name          string
	AllocationPct int
	Rationale     string
}

// Recommendation is the run's final output. When the deep model's reply does
// not follow the requested structure, SummaryText still carries the raw text
// and the structured fields stay empty; a human reviews the output regardless.
type Recommendation struct {
	GeneratedAt   time.Time
	RunID         string
	SummaryText   string
	Action        string
	RiskLevel     string
	Confidence    float64
	Stances       []Stance
	KeyFactors    []string
	Risks         []string
	SupportingRef []string // content hashes of articles that passed the filter
	ModelUsed     string
	RawOutput     string
	Structured    bool
}

// RunStatus enumerates run-log terminal states.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// RunLog is the per-run audit row, updated as stages complete.
type RunLog struct {
	RunID            string
	StartedAt        time.Time
	FinishedAt       time.Time
	Status           RunStatus
	ArticlesFetched  int
	ArticlesNew      int
	ArticlesKept     int
	QuotesResolved   int
	RecommendationID int64
	Error            string
}
