package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"procureagent"
	"procureagent/capability"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"
)

const (
	// defaultModelID is an inference profile ID, not the foundation model's ID.
	// See https://docs.aws.amazon.com/bedrock/latest/userguide/inference-profiles.html.
	defaultModelID = "us.anthropic.claude-sonnet-4-20250514-v1:0"

	defaultMaxTokens = 1024
	defaultTopP      = 0.9
)

type bedrockRuntimeClient interface {
	Converse(context.Context, *bedrockruntime.ConverseInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

type LLMOptions struct {
	ModelID     string
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

type LLMClient struct {
	brc  bedrockRuntimeClient
	opts LLMOptions
}

// NewLLMClient fills in a missing model, token limit and top_p. Temperature is used as
// given, so zero means deterministic sampling.
func NewLLMClient(brc bedrockRuntimeClient, opts LLMOptions) *LLMClient {
	if opts.ModelID == "" {
		opts.ModelID = defaultModelID
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.TopP == 0 {
		opts.TopP = defaultTopP
	}
	return &LLMClient{
		brc:  brc,
		opts: opts,
	}
}

// Structured forces the model to answer by calling tool and decodes the tool input into v.
func (c *LLMClient) Structured(ctx context.Context, p capability.Prompt, docs []procureagent.Document, tool capability.Tool, v any) error {
	spec, err := buildToolSpec(tool)
	if err != nil {
		return err
	}

	in := c.input(p, docs)
	in.ToolConfig = &types.ToolConfiguration{
		Tools: []types.Tool{&types.ToolMemberToolSpec{Value: spec}},
		ToolChoice: &types.ToolChoiceMemberTool{
			Value: types.SpecificToolChoice{Name: aws.String(tool.Name)},
		},
	}

	out, err := c.converse(ctx, in)
	if err != nil {
		return err
	}

	raw, ok, err := toolInputFromOutput(out, tool.Name)
	if err != nil {
		return fmt.Errorf("failed to parse tool input: %w", err)
	}
	if !ok {
		// Some models answer in text despite the forced tool choice.
		text := textFromOutput(out)
		if text == "" {
			return fmt.Errorf("model did not call %s", tool.Name)
		}
		slog.Warn("LLM_CLIENT: Model answered in text instead of calling tool", "tool", tool.Name)
		raw = []byte(text)
	}

	if err := capability.Decode(raw, v); err != nil {
		return err
	}
	slog.Info("LLM_CLIENT: Extracted tool input", "tool", tool.Name, "input_len", len(raw))
	return nil
}

// Text returns the model's free-form answer.
func (c *LLMClient) Text(ctx context.Context, p capability.Prompt) (string, error) {
	out, err := c.converse(ctx, c.input(p, nil))
	if err != nil {
		return "", err
	}
	text := textFromOutput(out)
	if text == "" {
		return "", fmt.Errorf("model returned no text")
	}
	slog.Info("LLM_CLIENT: Extracted text", "text_len", len(text))
	return text, nil
}

func (c *LLMClient) input(p capability.Prompt, docs []procureagent.Document) *bedrockruntime.ConverseInput {
	msg := types.Message{Role: types.ConversationRoleUser}
	for _, d := range docs {
		block, ok := contentBlock(d)
		if !ok {
			slog.Warn("LLM_CLIENT: Skipping unsupported document", "filename", d.Filename, "media_type", d.MediaType)
			continue
		}
		msg.Content = append(msg.Content, block)
		slog.Info("LLM_CLIENT: Added document content", "filename", d.Filename, "bytes", len(d.Data))
	}
	msg.Content = append(msg.Content, &types.ContentBlockMemberText{Value: p.User})

	in := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(c.opts.ModelID),
		Messages: []types.Message{msg},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(c.opts.MaxTokens),
			Temperature: aws.Float32(c.opts.Temperature),
			TopP:        aws.Float32(c.opts.TopP),
		},
	}
	if p.System != "" {
		in.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: p.System}}
	}
	return in
}

func (c *LLMClient) converse(ctx context.Context, in *bedrockruntime.ConverseInput) (*bedrockruntime.ConverseOutput, error) {
	slog.Info("LLM_CLIENT: Invoked", "model_id", c.opts.ModelID, "content_blocks", len(in.Messages[0].Content))

	out, err := c.brc.Converse(ctx, in)
	if err != nil {
		attrs := []any{"error", err}
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			attrs = append(attrs, "error_code", apiErr.ErrorCode(), "fault", apiErr.ErrorFault().String())
		}
		slog.Error("LLM_CLIENT: Bedrock invoke failed", attrs...)
		return nil, err
	}

	attrs := []any{"stop_reason", out.StopReason}
	if out.Metrics != nil {
		attrs = append(attrs, "latency_ms", aws.ToInt64(out.Metrics.LatencyMs))
	}
	if out.Usage != nil {
		attrs = append(attrs,
			"input_tokens", aws.ToInt32(out.Usage.InputTokens),
			"output_tokens", aws.ToInt32(out.Usage.OutputTokens))
	}
	slog.Info("LLM_CLIENT: Bedrock invoke succeeded", attrs...)

	switch out.StopReason {
	case "max_tokens":
		slog.Warn("LLM_CLIENT: Model hit MaxTokens limit; consider increasing MaxTokens")
		return nil, fmt.Errorf("model hit MaxTokens limit; consider increasing MaxTokens")
	case "guardrail_intervened", "content_filtered":
		slog.Warn("LLM_CLIENT: Model response blocked by Bedrock safety filters")
		return nil, fmt.Errorf("model response blocked by Bedrock safety filters")
	}
	return out, nil
}

// buildToolSpec round-trips the schema through JSON so the document system sees plain maps.
func buildToolSpec(t capability.Tool) (types.ToolSpecification, error) {
	schemaJSON, err := json.Marshal(t.InputSchema)
	if err != nil {
		return types.ToolSpecification{}, fmt.Errorf("failed to marshal tool schema for %s: %w", t.Name, err)
	}

	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return types.ToolSpecification{}, fmt.Errorf("failed to unmarshal tool schema for %s: %w", t.Name, err)
	}

	return types.ToolSpecification{
		Name:        aws.String(t.Name),
		Description: aws.String(t.Description),
		InputSchema: &types.ToolInputSchemaMemberJson{
			Value: document.NewLazyDocument(schemaMap),
		},
	}, nil
}

var documentFormats = map[string]types.DocumentFormat{
	"application/pdf":    types.DocumentFormatPdf,
	"application/msword": types.DocumentFormatDoc,
	"text/csv":           types.DocumentFormatCsv,
	"text/plain":         types.DocumentFormatTxt,
	"text/markdown":      types.DocumentFormatMd,
	"text/html":          types.DocumentFormatHtml,

	"application/vnd.ms-excel": types.DocumentFormatXls,

	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": types.DocumentFormatDocx,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       types.DocumentFormatXlsx,
}

var imageFormats = map[string]types.ImageFormat{
	"image/png":  types.ImageFormatPng,
	"image/jpeg": types.ImageFormatJpeg,
	"image/gif":  types.ImageFormatGif,
	"image/webp": types.ImageFormatWebp,
}

func contentBlock(d procureagent.Document) (types.ContentBlock, bool) {
	mt := strings.ToLower(strings.TrimSpace(strings.Split(d.MediaType, ";")[0]))
	if f, ok := documentFormats[mt]; ok {
		return &types.ContentBlockMemberDocument{
			Value: types.DocumentBlock{
				Format: f,
				Name:   aws.String(documentName(d.Filename)),
				Source: &types.DocumentSourceMemberBytes{Value: d.Data},
			},
		}, true
	}
	if f, ok := imageFormats[mt]; ok {
		return &types.ContentBlockMemberImage{
			Value: types.ImageBlock{
				Format: f,
				Source: &types.ImageSourceMemberBytes{Value: d.Data},
			},
		}, true
	}
	return nil, false
}

var (
	invalidNameChars = regexp.MustCompile(`[^A-Za-z0-9\s\-\(\)\[\]]`)
	repeatedSpaces   = regexp.MustCompile(`\s+`)
)

// documentName strips characters Bedrock rejects in document names.
func documentName(filename string) string {
	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	name = invalidNameChars.ReplaceAllString(name, " ")
	name = strings.TrimSpace(repeatedSpaces.ReplaceAllString(name, " "))
	if name == "" {
		return "document"
	}
	return name
}

// toolInputFromOutput returns the JSON input of the first call to the named tool.
func toolInputFromOutput(out *bedrockruntime.ConverseOutput, name string) ([]byte, bool, error) {
	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok || msg == nil {
		return nil, false, nil
	}
	for _, cb := range msg.Value.Content {
		tu, ok := cb.(*types.ContentBlockMemberToolUse)
		if !ok || tu == nil || aws.ToString(tu.Value.Name) != name {
			continue
		}
		if tu.Value.Input == nil {
			return []byte("{}"), true, nil
		}
		raw, err := tu.Value.Input.MarshalSmithyDocument()
		if err != nil {
			return nil, false, err
		}
		return raw, true, nil
	}
	return nil, false, nil
}

// textFromOutput joins the assistant's text blocks.
func textFromOutput(out *bedrockruntime.ConverseOutput) string {
	if out == nil || out.Output == nil {
		return ""
	}
	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok || msg == nil {
		return ""
	}
	var texts []string
	for _, cb := range msg.Value.Content {
		if t, ok := cb.(*types.ContentBlockMemberText); ok && t != nil && strings.TrimSpace(t.Value) != "" {
			texts = append(texts, strings.TrimSpace(t.Value))
		}
	}
	return strings.Join(texts, "\n")
}
