package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"InvestRadar/internal/domain"
)

func structuredRec() domain.Recommendation {
	return domain.Recommendation{
		GeneratedAt: time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC),
		SummaryText: "Markets are calm.",
		Action:      "HOLD",
		RiskLevel:   "MEDIUM",
		Confidence:  0.7,
		Stances: []domain.Stance{
			{Ticker: "VWCE.DE", Name: "All-World ETF", AllocationPct: 70, Rationale: "broad exposure"},
			{Ticker: "AGGH.DE", Name: "Aggregate Bond", AllocationPct: 30, Rationale: "ballast"},
		},
		Risks:         []string{"rate surprise"},
		SupportingRef: []string{"h1", "h2", "h3"},
		ModelUsed:     "mistral:7b",
		Structured:    true,
	}
}

func TestFormatDigestStructured(t *testing.T) {
	t.Parallel()

	msg := FormatDigest(structuredRec())

	assert.Contains(t, msg, "2026-08-01")
	assert.Contains(t, msg, "Action: *HOLD* | Risk: MEDIUM | Confidence: 70%")
	assert.Contains(t, msg, "- VWCE.DE (All-World ETF): 70%, broad exposure")
	assert.Contains(t, msg, "- rate surprise")
	assert.Contains(t, msg, "_model: mistral:7b, sources: 3_")
	assert.NotContains(t, msg, "review manually")
}

func TestFormatDigestUnstructured(t *testing.T) {
	t.Parallel()

	msg := FormatDigest(domain.Recommendation{
		GeneratedAt: time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC),
		SummaryText: "free-form model text",
	})

	assert.Contains(t, msg, "free-form model text")
	assert.Contains(t, msg, "review manually")
	assert.NotContains(t, msg, "Allocation")
}

func TestPublishRecommendation(t *testing.T) {
	t.Parallel()

	var gotPath, gotChat, gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotPath = r.URL.Path
		gotChat = r.FormValue("chat_id")
		gotText = r.FormValue("text")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier("token123", "chat456")
	n.apiBase = srv.URL

	err := n.PublishRecommendation(context.Background(), structuredRec())
	require.NoError(t, err)
	assert.Equal(t, "/bottoken123/sendMessage", gotPath)
	assert.Equal(t, "chat456", gotChat)
	assert.Contains(t, gotText, "Monthly Investment Recommendation")
}

func TestPublishRecommendationServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewNotifier("token", "chat")
	n.apiBase = srv.URL

	err := n.PublishRecommendation(context.Background(), structuredRec())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram")
}

func TestPublishRecommendationMisconfigured(t *testing.T) {
	t.Parallel()

	n := NewNotifier("", "")
	err := n.PublishRecommendation(context.Background(), structuredRec())
	require.Error(t, err)
}
