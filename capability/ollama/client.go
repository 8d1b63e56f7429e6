package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"procureagent"
	"procureagent/capability"
)

type options struct {
	Temperature   float64 `json:"temperature,omitempty"`
	TopP          float64 `json:"top_p,omitempty"`
	RepeatPenalty float64 `json:"repeat_penalty,omitempty"`
	NumCtx        int     `json:"num_ctx,omitempty"`
}

type Client struct {
	endpoint   string
	model      string
	httpClient procureagent.HTTPClient
	options    options
}

type ClientOpts struct {
	BaseEndpoint string
	ModelID      string
	HTTPClient   procureagent.HTTPClient
}

func NewClient(opts ClientOpts) (*Client, error) {
	if strings.TrimSpace(opts.ModelID) == "" {
		return nil, fmt.Errorf("model id is required")
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Client{
		model:      opts.ModelID,
		httpClient: opts.HTTPClient,
		endpoint:   strings.TrimRight(opts.BaseEndpoint, "/") + "/api/chat",
		options: options{
			Temperature:   0.2,
			TopP:          0.9,
			RepeatPenalty: 1.05,
			NumCtx:        16384, // raise if the machine can handle longer vendor documents
		},
	}, nil
}

type wireMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  [][]byte `json:"images,omitempty"`
}

type wireResponse struct {
	Message wireMessage `json:"message"`
	// other metadata omitted but available
}

type wireRequest struct {
	Model    string        `json:"model"`
	Messages []wireMessage `json:"messages"`
	Format   any           `json:"format,omitempty"`
	Stream   bool          `json:"stream"`
	Options  options       `json:"options,omitempty"`
}

// Attachable keeps the documents a local model can read: text inline and images natively.
func Attachable(docs []procureagent.Document) []procureagent.Document {
	var out []procureagent.Document
	for _, d := range docs {
		if isImage(d) || isText(d) {
			out = append(out, d)
			continue
		}
		slog.Warn("LLM_CLIENT: Skipping document the local model cannot read", "filename", d.Filename, "media_type", d.MediaType)
	}
	return out
}

// Structured asks for a JSON answer constrained by the tool's input schema and decodes it into v.
func (c *Client) Structured(ctx context.Context, p capability.Prompt, docs []procureagent.Document, tool capability.Tool, v any) error {
	content, err := c.chat(ctx, c.messages(p, docs), tool.InputSchema)
	if err != nil {
		return err
	}
	return capability.Decode([]byte(content), v)
}

// Text returns the model's free-form answer.
func (c *Client) Text(ctx context.Context, p capability.Prompt) (string, error) {
	content, err := c.chat(ctx, c.messages(p, nil), nil)
	if err != nil {
		return "", err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("model returned no text")
	}
	return content, nil
}

func (c *Client) messages(p capability.Prompt, docs []procureagent.Document) []wireMessage {
	var msgs []wireMessage
	if sp := strings.TrimSpace(p.System); sp != "" {
		msgs = append(msgs, wireMessage{Role: "system", Content: sp})
	}

	user := wireMessage{Role: "user"}
	var b strings.Builder
	for _, d := range Attachable(docs) {
		if isImage(d) {
			user.Images = append(user.Images, d.Data)
			continue
		}
		fmt.Fprintf(&b, "--- %s ---\n%s\n--- end of %s ---\n\n", d.Filename, d.Data, d.Filename)
	}
	b.WriteString(p.User)
	user.Content = b.String()
	return append(msgs, user)
}

func (c *Client) chat(ctx context.Context, msgs []wireMessage, format any) (string, error) {
	slog.Info("LLM_CLIENT: Invoked", "model", c.model, "messages_len", len(msgs), "structured", format != nil)

	reqBody := wireRequest{
		Model:    c.model,
		Messages: msgs,
		Format:   format,
		Stream:   false,
		Options:  c.options,
	}
	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(reqBytes))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("LLM_CLIENT: %s: %s", resp.Status, string(body))
	}

	var wr wireResponse
	if err := json.Unmarshal(body, &wr); err != nil {
		return "", fmt.Errorf("failed to decode ollama response: %w", err)
	}
	slog.Info("LLM_CLIENT: Ollama invoke succeeded", "content_len", len(wr.Message.Content))
	return wr.Message.Content, nil
}

func isImage(d procureagent.Document) bool {
	return strings.HasPrefix(d.MediaType, "image/")
}

func isText(d procureagent.Document) bool {
	mt := strings.ToLower(d.MediaType)
	switch {
	case strings.HasPrefix(mt, "text/"), strings.Contains(mt, "json"), strings.Contains(mt, "yaml"):
		return utf8.Valid(d.Data)
	}
	return false
}
