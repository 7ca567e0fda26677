package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"InvestRadar/internal/domain"
	"InvestRadar/internal/ports"
)

// Notifier delivers the monthly recommendation to a Telegram chat via bot API.
type Notifier struct {
	botToken string
	chatID   string
	client   *http.Client
	apiBase  string
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(botToken, chatID string) *Notifier {
	return &Notifier{
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 10 * time.Second},
		apiBase:  "https://api.telegram.org",
	}
}

// PublishRecommendation posts a Markdown digest of the recommendation.
func (n *Notifier) PublishRecommendation(ctx context.Context, rec domain.Recommendation) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", FormatDigest(rec))
	form.Set("parse_mode", "Markdown")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}

	return nil
}

// FormatDigest renders the recommendation as a chat message. Unstructured
// output gets the raw summary so the reviewer still sees everything.
func FormatDigest(rec domain.Recommendation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Monthly Investment Recommendation* (%s)\n\n",
		rec.GeneratedAt.Format("2006-01-02"))

	if !rec.Structured {
		b.WriteString(rec.SummaryText)
		b.WriteString("\n\n_Model output was unstructured; review manually._")
		return b.String()
	}

	fmt.Fprintf(&b, "Action: *%s* | Risk: %s | Confidence: %.0f%%\n\n",
		rec.Action, rec.RiskLevel, rec.Confidence*100)
	b.WriteString(rec.SummaryText)

	if len(rec.Stances) > 0 {
		b.WriteString("\n\n*Allocation*\n")
		for _, s := range rec.Stances {
			fmt.Fprintf(&b, "- %s (%s): %d%%, %s\n", s.Ticker, s.Name, s.AllocationPct, s.Rationale)
		}
	}

	if len(rec.Risks) > 0 {
		b.WriteString("\n*Risks*\n")
		for _, r := range rec.Risks {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}

	fmt.Fprintf(&b, "\n_model: %s, sources: %d_", rec.ModelUsed, len(rec.SupportingRef))
	return b.String()
}
