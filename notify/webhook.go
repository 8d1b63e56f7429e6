package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"procureagent"
)

// WebhookSink posts each event as JSON to a URL.
type WebhookSink struct {
	url        string
	httpClient procureagent.HTTPClient
}

func NewWebhookSink(url string, httpClient procureagent.HTTPClient) *WebhookSink {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &WebhookSink{url: url, httpClient: httpClient}
}

func (s *WebhookSink) Notify(ctx context.Context, event procureagent.ProgressEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return post(ctx, s.httpClient, s.url, payload)
}

func post(ctx context.Context, httpClient procureagent.HTTPClient, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("failed to post message: %s", resp.Status)
	}

	return nil
}
