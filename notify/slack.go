package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"procureagent"
)

type SlackClient struct {
	webhookURL string
	httpClient procureagent.HTTPClient
}

func NewSlackClient(webhookURL string, httpClient procureagent.HTTPClient) *SlackClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &SlackClient{
		webhookURL: webhookURL,
		httpClient: httpClient,
	}
}

func (c *SlackClient) PostMessage(ctx context.Context, channel string, message string) error {
	payload, err := json.Marshal(map[string]any{
		"channel": channel,
		"text":    message,
	})
	if err != nil {
		return err
	}
	return post(ctx, c.httpClient, c.webhookURL, payload)
}

// SlackSink posts the final report and per-vendor session results to a channel.
// Screening and strategy events are too chatty for a channel and are skipped.
type SlackSink struct {
	client  *SlackClient
	channel string
}

func NewSlackSink(client *SlackClient, channel string) *SlackSink {
	return &SlackSink{client: client, channel: channel}
}

func (s *SlackSink) Notify(ctx context.Context, event procureagent.ProgressEvent) error {
	var text string
	switch event.Type {
	case procureagent.EventReportReady:
		if event.Report == nil {
			return nil
		}
		text = FormatReport(*event.Report)
	case procureagent.EventSessionComplete:
		if event.Offer == nil {
			return nil
		}
		o := event.Offer
		text = fmt.Sprintf("Negotiation with *%s* ended: %s after %d turns (%s)", o.VendorName, o.Outcome, o.Turns, o.Summary)
	default:
		return nil
	}
	return s.client.PostMessage(ctx, s.channel, text)
}

// FormatReport renders a report as Slack mrkdwn.
func FormatReport(r procureagent.FinalComparisonReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Procurement run %s*\n", r.RunID)
	if r.RecommendedVendorID == procureagent.NoRecommendation {
		fmt.Fprintf(&b, "No recommendation: %s\n", r.Reason)
	} else {
		fmt.Fprintf(&b, "Recommended: *%s*. %s\n", r.RecommendedVendorName, r.Reason)
	}
	for _, c := range r.Comparisons {
		fmt.Fprintf(&b, "%d. %s: $%.2f (score %.2f, +%.2f vs best, %s)\n", c.Rank, c.VendorName, c.Price, c.Score, c.DeltaToBest, c.Status)
	}
	if len(r.NoOffer) > 0 {
		fmt.Fprintf(&b, "No offer: %s\n", strings.Join(r.NoOffer, ", "))
	}
	if r.MarketSummary != "" {
		b.WriteString(r.MarketSummary + "\n")
	}
	if r.HumanAction != "" {
		fmt.Fprintf(&b, "_Next step: %s_", r.HumanAction)
	}
	return strings.TrimRight(b.String(), "\n")
}
