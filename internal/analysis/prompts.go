package analysis

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"InvestRadar/internal/domain"
)

const filterSystemPrompt = `You are a financial news classifier. Analyze the given article and output JSON.
Only output valid JSON, no extra text.`

const filterPromptTemplate = `Classify this financial article. Output JSON with these fields:
- relevance (0-10): how relevant to investment decisions
- sentiment: "bullish", "bearish", or "neutral"
- tickers: list of mentioned stock/ETF tickers
- key_facts: list of 1-3 key facts

Example output:
{"relevance": 7, "sentiment": "bullish", "tickers": ["AAPL", "SPY"],
"key_facts": ["Apple revenue beat estimates by 5%%"]}

Article title: %s
Article content: %s

Output JSON:`

const analysisSystemPrompt = `You are an investment analyst. Given filtered financial articles and market data, ` +
	`produce a monthly investment recommendation. Think step by step. Output valid JSON only.`

const analysisPromptTemplate = `Based on the following data, produce a monthly investment recommendation.

## Market Data
%s

## Key Articles (filtered by relevance)
%s

## Previous Recommendations Summary
%s

Think step by step about:
1. Current market conditions and trends
2. Key risks and opportunities
3. Asset allocation considering risk level

Output JSON with this exact structure:
{
  "date": "%s",
  "market_summary": "2-3 sentence overview",
  "recommendation": {
    "action": "BUY or HOLD or REBALANCE",
    "assets": [
      {
        "ticker": "VWCE.DE",
        "name": "Vanguard FTSE All-World ETF",
        "allocation_pct": 60,
        "rationale": "reason for this allocation"
      }
    ],
    "risk_level": "LOW or MEDIUM or HIGH",
    "confidence": 0.75
  },
  "justification": "Detailed paragraph explaining reasoning",
  "key_factors": ["factor1", "factor2"],
  "risks": ["risk1", "risk2"]
}

Produce your recommendation JSON:`

// filterPromptBodyLimit bounds the article body included in the cheap pass.
const filterPromptBodyLimit = 500

func buildFilterPrompt(article domain.Article) string {
	return fmt.Sprintf(filterPromptTemplate, article.Title,
		truncateBytes(article.Body, filterPromptBodyLimit))
}

// truncateBytes cuts s to at most limit bytes without splitting a rune.
func truncateBytes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

func buildAnalysisPrompt(kept []domain.FilterResult, quotes []domain.Quote, history []domain.Recommendation, date time.Time) string {
	return fmt.Sprintf(analysisPromptTemplate,
		formatQuotes(quotes),
		formatArticles(kept),
		formatHistory(history),
		date.Format("2006-01-02"),
	)
}

func formatQuotes(quotes []domain.Quote) string {
	if len(quotes) == 0 {
		return "No market data available."
	}
	lines := make([]string, 0, len(quotes))
	for _, q := range quotes {
		change := "n/a"
		if q.ChangePct != nil {
			change = q.ChangePct.StringFixed(1) + "%"
		}
		lines = append(lines, fmt.Sprintf("- %s: $%s, 1m change: %s (via %s)",
			q.Ticker, q.Price.StringFixed(2), change, q.SourceUsed))
	}
	return strings.Join(lines, "\n")
}

const articleExcerptLimit = 200

func formatArticles(kept []domain.FilterResult) string {
	if len(kept) == 0 {
		return "No articles available."
	}
	lines := make([]string, 0, len(kept))
	for _, r := range kept {
		sentiment := r.Sentiment
		if sentiment == "" {
			sentiment = "unknown"
		}
		excerpt := truncateBytes(r.Article.Body, articleExcerptLimit)
		lines = append(lines, fmt.Sprintf("- [%s] [%s] %s: %s",
			r.Article.Source, sentiment, r.Article.Title, excerpt))
	}
	return strings.Join(lines, "\n")
}

func formatHistory(history []domain.Recommendation) string {
	if len(history) == 0 {
		return "No previous recommendations available."
	}
	lines := make([]string, 0, len(history))
	for _, rec := range history {
		assets := make([]string, 0, len(rec.Stances))
		for _, s := range rec.Stances {
			assets = append(assets, fmt.Sprintf("%s (%d%%)", s.Ticker, s.AllocationPct))
		}
		assetStr := strings.Join(assets, ", ")
		if assetStr == "" {
			assetStr = "N/A"
		}
		lines = append(lines, fmt.Sprintf("- %s: %s (confidence: %.0f%%, risk: %s). Assets: %s",
			rec.GeneratedAt.Format("2006-01-02"), rec.Action, rec.Confidence*100, rec.RiskLevel, assetStr))
	}
	return strings.Join(lines, "\n")
}
