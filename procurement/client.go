// Package procurement talks to the remote procurement API: the vendor directory and the
// conversation transport used to negotiate with each vendor.
package procurement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"procureagent"
)

// StatusError is a non-2xx response from the procurement API.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Permanent reports whether retrying the request cannot help.
func (e *StatusError) Permanent() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != http.StatusTooManyRequests
}

// ID accepts identifiers the API sends either as numbers or strings.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid id %s", b)
	}
	*id = ID(n.String())
	return nil
}

type wireDocument struct {
	Filename    string `json:"filename"`
	MediaType   string `json:"media_type"`
	ContentType string `json:"content_type"`
}

type wireVendor struct {
	ID                ID             `json:"id"`
	Name              string         `json:"name"`
	Description       string         `json:"description"`
	BehavioralPrompt  string         `json:"behavioral_prompt"`
	Category          []string       `json:"category"`
	Rating            *float64       `json:"rating"`
	Documents         []wireDocument `json:"documents"`
	RelevantProductID string         `json:"relevant_product_id"`
}

func (w wireVendor) vendor() procureagent.Vendor {
	v := procureagent.Vendor{
		ID:                string(w.ID),
		Name:              w.Name,
		Description:       w.Description,
		BehavioralProfile: w.BehavioralPrompt,
		Categories:        w.Category,
		MatchedProductID:  w.RelevantProductID,
	}
	if w.Rating != nil {
		v.Rating = *w.Rating
	}
	for _, d := range w.Documents {
		if d.Filename == "" {
			continue
		}
		mt := d.MediaType
		if mt == "" {
			mt = d.ContentType
		}
		v.Documents = append(v.Documents, procureagent.DocumentRef{Filename: d.Filename, MediaType: mt})
	}
	return v
}

// Client is a thin HTTP client; retries live in Retrying.
type Client struct {
	baseURL    string
	teamID     string
	httpClient procureagent.HTTPClient
}

func NewClient(baseURL, teamID string, httpClient procureagent.HTTPClient) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		teamID:     teamID,
		httpClient: httpClient,
	}
}

// ListVendors returns the vendor pool in directory order.
func (c *Client) ListVendors(ctx context.Context, teamID string) ([]procureagent.Vendor, error) {
	endpoint := c.baseURL + "/vendors/"
	if teamID != "" {
		endpoint += "?" + url.Values{"team_id": {teamID}}.Encode()
	}

	slog.Info("PROCUREMENT_API: Fetching vendors", "url", endpoint)

	var wire []wireVendor
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, "", &wire); err != nil {
		return nil, err
	}

	vendors := make([]procureagent.Vendor, 0, len(wire))
	for _, w := range wire {
		vendors = append(vendors, w.vendor())
	}
	slog.Info("PROCUREMENT_API: Fetched vendors", "count", len(vendors))
	return vendors, nil
}

func (c *Client) GetVendor(ctx context.Context, vendorID string) (procureagent.Vendor, error) {
	endpoint := c.baseURL + "/vendors/" + url.PathEscape(vendorID)

	var w wireVendor
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, "", &w); err != nil {
		return procureagent.Vendor{}, err
	}
	return w.vendor(), nil
}

func (c *Client) CreateConversation(ctx context.Context, vendorID, title string) (string, error) {
	endpoint := c.baseURL + "/conversations/?" + url.Values{"team_id": {c.teamID}}.Encode()
	payload, err := json.Marshal(map[string]string{"vendor_id": vendorID, "title": title})
	if err != nil {
		return "", err
	}

	var resp struct {
		ID             ID `json:"id"`
		ConversationID ID `json:"conversation_id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, endpoint, payload, "application/json", &resp); err != nil {
		return "", err
	}

	id := string(resp.ID)
	if id == "" {
		id = string(resp.ConversationID)
	}
	if id == "" {
		return "", fmt.Errorf("create conversation for vendor %s: response carried no id", vendorID)
	}
	slog.Info("PROCUREMENT_API: Conversation created", "vendor_id", vendorID, "conversation_id", id)
	return id, nil
}

// SendMessage posts text as the multipart field "content" and returns the vendor's reply.
func (c *Client) SendMessage(ctx context.Context, conversationID, text string) (string, error) {
	endpoint := c.baseURL + "/messages/" + url.PathEscape(conversationID)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("content", text); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	var resp struct {
		ConversationResponse string `json:"conversation_response"`
		Content              string `json:"content"`
	}
	if err := c.doJSON(ctx, http.MethodPost, endpoint, body.Bytes(), w.FormDataContentType(), &resp); err != nil {
		return "", err
	}

	reply := resp.ConversationResponse
	if reply == "" {
		reply = resp.Content
	}
	if reply == "" {
		slog.Warn("PROCUREMENT_API: Empty vendor reply", "conversation_id", conversationID)
	}
	slog.Info("PROCUREMENT_API: Received vendor reply", "conversation_id", conversationID, "reply_len", len(reply))
	return reply, nil
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, payload []byte, contentType string, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Method: method, URL: endpoint, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &DecodeError{URL: endpoint, Err: err}
	}
	return nil
}

// DecodeError is a 2xx response whose body is not the expected JSON.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode response from %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
