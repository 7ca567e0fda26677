package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"InvestRadar/internal/domain"
	"InvestRadar/internal/ports"
)

// Engine is the deep-model pass producing the structured recommendation.
type Engine struct {
	client      ports.ModelClient
	model       string
	temperature float64
	logger      *slog.Logger
	now         func() time.Time
}

// NewEngine wires the shared model client with the heavier analysis model.
func NewEngine(client ports.ModelClient, model string, temperature float64, logger *slog.Logger) *Engine {
	return &Engine{
		client:      client,
		model:       model,
		temperature: temperature,
		logger:      logger,
		now:         time.Now,
	}
}

type analysisAsset struct {
	Ticker        string `json:"ticker"`
	Name          string `json:"name"`
	AllocationPct int    `json:"allocation_pct"`
	Rationale     string `json:"rationale"`
}

type analysisOutput struct {
	Date           string `json:"date"`
	MarketSummary  string `json:"market_summary"`
	Recommendation struct {
		Action     string          `json:"action"`
		Assets     []analysisAsset `json:"assets"`
		RiskLevel  string          `json:"risk_level"`
		Confidence float64         `json:"confidence"`
	} `json:"recommendation"`
	Justification string   `json:"justification"`
	KeyFactors    []string `json:"key_factors"`
	Risks         []string `json:"risks"`
}

// Generate builds the combined prompt from the filtered articles, the quote
// set, and prior recommendations, then decodes the model's reply best-effort.
// Unreachable backend or an empty reply is fatal; a reply that does not
// follow the requested structure is still captured raw as a partial success,
// since a human reviews the output regardless.
func (e *Engine) Generate(ctx context.Context, runID string, kept []domain.FilterResult, quotes []domain.Quote, history []domain.Recommendation) (domain.Recommendation, error) {
	prompt := buildAnalysisPrompt(kept, quotes, history, e.now().UTC())

	raw, err := e.client.Complete(ctx, e.model, prompt, ports.CompletionOptions{
		System:      analysisSystemPrompt,
		Temperature: e.temperature,
		JSONFormat:  true,
		MaxTokens:   2048,
	})
	if err != nil {
		return domain.Recommendation{}, fmt.Errorf("deep analysis: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		return domain.Recommendation{}, fmt.Errorf("deep analysis: empty response from %s", e.model)
	}

	rec := domain.Recommendation{
		GeneratedAt: e.now().UTC(),
		RunID:       runID,
		ModelUsed:   e.model,
		RawOutput:   raw,
		SummaryText: strings.TrimSpace(raw),
	}
	for _, r := range kept {
		rec.SupportingRef = append(rec.SupportingRef, r.Article.ContentHash)
	}

	output, ok := decodeAnalysis(raw)
	if !ok {
		e.warn("analysis output did not follow requested structure, keeping raw text", "run_id", runID)
		return rec, nil
	}

	rec.Structured = true
	rec.SummaryText = strings.TrimSpace(output.MarketSummary + "\n\n" + output.Justification)
	rec.Action = output.Recommendation.Action
	rec.RiskLevel = output.Recommendation.RiskLevel
	rec.Confidence = output.Recommendation.Confidence
	rec.KeyFactors = output.KeyFactors
	rec.Risks = output.Risks
	for _, a := range output.Recommendation.Assets {
		rec.Stances = append(rec.Stances, domain.Stance{
			Ticker:        a.Ticker,
			Name:          a.Name,
			AllocationPct: a.AllocationPct,
			Rationale:     a.Rationale,
		})
	}

	e.info("recommendation generated", "run_id", runID, "action", rec.Action)
	return rec, nil
}

// decodeAnalysis is a best-effort decode: fenced JSON is tolerated, and the
// result only counts as structured when the core fields are present.
func decodeAnalysis(raw string) (analysisOutput, bool) {
	var output analysisOutput
	if err := json.Unmarshal([]byte(stripFences(raw)), &output); err != nil {
		return analysisOutput{}, false
	}
	if output.MarketSummary == "" || output.Recommendation.Action == "" {
		return analysisOutput{}, false
	}
	return output, true
}

func (e *Engine) info(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Info(msg, args...)
	}
}

func (e *Engine) warn(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}
