package bedrock

import (
	"context"
	"errors"
	"testing"

	"procureagent"
	"procureagent/capability"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBedrockClient implements bedrockRuntimeClient for testing
type mockBedrockClient struct {
	response *bedrockruntime.ConverseOutput
	err      error
	input    *bedrockruntime.ConverseInput
}

func (m *mockBedrockClient) Converse(ctx context.Context, input *bedrockruntime.ConverseInput, opts ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	m.input = input
	return m.response, m.err
}

func toolUseOutput(name string, input map[string]any) *bedrockruntime.ConverseOutput {
	return &bedrockruntime.ConverseOutput{
		StopReason: "tool_use",
		Output: &types.ConverseOutputMemberMessage{
			Value: types.Message{
				Content: []types.ContentBlock{
					&types.ContentBlockMemberToolUse{
						Value: types.ToolUseBlock{
							ToolUseId: aws.String("tool-1"),
							Name:      aws.String(name),
							Input:     document.NewLazyDocument(input),
						},
					},
				},
			},
		},
		Usage:   &types.TokenUsage{InputTokens: aws.Int32(10), OutputTokens: aws.Int32(20)},
		Metrics: &types.ConverseMetrics{LatencyMs: aws.Int64(100)},
	}
}

func textOutput(stop types.StopReason, text string) *bedrockruntime.ConverseOutput {
	return &bedrockruntime.ConverseOutput{
		StopReason: stop,
		Output: &types.ConverseOutputMemberMessage{
			Value: types.Message{
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: text}},
			},
		},
	}
}

func TestNewLLMClient(t *testing.T) {
	tests := []struct {
		name     string
		input    LLMOptions
		expected LLMOptions
	}{
		{
			name:  "empty options uses defaults",
			input: LLMOptions{},
			expected: LLMOptions{
				ModelID:   defaultModelID,
				MaxTokens: defaultMaxTokens,
				TopP:      defaultTopP,
			},
		},
		{
			name:     "custom options preserved",
			input:    LLMOptions{ModelID: "custom-model", MaxTokens: 2048, Temperature: 0.5, TopP: 0.8},
			expected: LLMOptions{ModelID: "custom-model", MaxTokens: 2048, Temperature: 0.5, TopP: 0.8},
		},
		{
			name:  "partial options with defaults",
			input: LLMOptions{ModelID: "custom-model", MaxTokens: 2048, Temperature: 0.2},
			expected: LLMOptions{
				ModelID:     "custom-model",
				MaxTokens:   2048,
				Temperature: 0.2,
				TopP:        defaultTopP,
			},
		},
		{
			name:  "zero temperature preserved",
			input: LLMOptions{Temperature: 0, TopP: 0.5},
			expected: LLMOptions{
				ModelID:   defaultModelID,
				MaxTokens: defaultMaxTokens,
				TopP:      0.5,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockClient := &mockBedrockClient{}
			client := NewLLMClient(mockClient, tt.input)

			assert.Equal(t, tt.expected, client.opts)
			assert.Equal(t, mockClient, client.brc)
		})
	}
}

func TestLLMClient_Structured(t *testing.T) {
	tests := []struct {
		name          string
		response      *bedrockruntime.ConverseOutput
		err           error
		expected      capability.MatchAnswer
		expectedError string
	}{
		{
			name: "tool use response",
			response: toolUseOutput("record_vendor_match", map[string]any{
				"suitable": true, "product_id": "ARD-UNO-R3", "reasoning": "catalog lists it",
			}),
			expected: capability.MatchAnswer{Suitable: true, ProductID: "ARD-UNO-R3", Reasoning: "catalog lists it"},
		},
		{
			name:     "text answer instead of tool call",
			response: textOutput("end_turn", "```json\n{\"suitable\": false, \"reasoning\": \"furniture only\"}\n```"),
			expected: capability.MatchAnswer{Suitable: false, Reasoning: "furniture only"},
		},
		{
			name:          "no answer at all",
			response:      textOutput("end_turn", "  "),
			expectedError: "model did not call record_vendor_match",
		},
		{
			name:          "max tokens error",
			response:      &bedrockruntime.ConverseOutput{StopReason: "max_tokens"},
			expectedError: "model hit MaxTokens limit",
		},
		{
			name:          "safety filter error",
			response:      &bedrockruntime.ConverseOutput{StopReason: "content_filtered"},
			expectedError: "model response blocked by Bedrock safety filters",
		},
		{
			name:          "invoke error",
			err:           errors.New("throttled"),
			expectedError: "throttled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewLLMClient(&mockBedrockClient{response: tt.response, err: tt.err}, LLMOptions{})

			var got capability.MatchAnswer
			err := client.Structured(context.Background(), capability.Prompt{System: "sys", User: "hi"}, nil, capability.MatchTool(), &got)

			if tt.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestLLMClient_StructuredRequest(t *testing.T) {
	mockClient := &mockBedrockClient{response: toolUseOutput("record_vendor_match", map[string]any{"suitable": false, "reasoning": "no"})}
	client := NewLLMClient(mockClient, LLMOptions{})
	docs := []procureagent.Document{
		{Filename: "catalog_2025.pdf", MediaType: "application/pdf", Data: []byte("%PDF")},
		{Filename: "photo.png", MediaType: "image/png", Data: []byte{0x89}},
		{Filename: "blob.bin", MediaType: "application/octet-stream", Data: []byte{0}},
	}

	var got capability.MatchAnswer
	require.NoError(t, client.Structured(context.Background(), capability.Prompt{System: "sys", User: "hi"}, docs, capability.MatchTool(), &got))

	in := mockClient.input
	require.NotNil(t, in)
	assert.Equal(t, defaultModelID, aws.ToString(in.ModelId))
	require.NotNil(t, in.InferenceConfig)
	assert.Equal(t, float32(0), aws.ToFloat32(in.InferenceConfig.Temperature))
	require.Len(t, in.System, 1)

	choice, ok := in.ToolConfig.ToolChoice.(*types.ToolChoiceMemberTool)
	require.True(t, ok)
	assert.Equal(t, "record_vendor_match", aws.ToString(choice.Value.Name))
	require.Len(t, in.ToolConfig.Tools, 1)

	content := in.Messages[0].Content
	require.Len(t, content, 3)
	doc, ok := content[0].(*types.ContentBlockMemberDocument)
	require.True(t, ok)
	assert.Equal(t, types.DocumentFormatPdf, doc.Value.Format)
	assert.Equal(t, "catalog 2025", aws.ToString(doc.Value.Name))
	_, ok = content[1].(*types.ContentBlockMemberImage)
	assert.True(t, ok)
	text, ok := content[2].(*types.ContentBlockMemberText)
	require.True(t, ok)
	assert.Equal(t, "hi", text.Value)
}

func TestLLMClient_Text(t *testing.T) {
	mockClient := &mockBedrockClient{response: textOutput("end_turn", " Could you do 2,400? ")}
	client := NewLLMClient(mockClient, LLMOptions{})

	got, err := client.Text(context.Background(), capability.Prompt{User: "draft"})
	require.NoError(t, err)
	assert.Equal(t, "Could you do 2,400?", got)
	assert.Nil(t, mockClient.input.ToolConfig)
	assert.Empty(t, mockClient.input.System)

	mockClient.response = textOutput("end_turn", "")
	_, err = client.Text(context.Background(), capability.Prompt{User: "draft"})
	assert.Error(t, err)
}

func TestDocumentName(t *testing.T) {
	tests := map[string]string{
		"data/acme_catalog.v2.pdf": "acme catalog v2",
		"price list (2025).csv":    "price list (2025)",
		"___.pdf":                  "document",
	}
	for in, want := range tests {
		assert.Equal(t, want, documentName(in), in)
	}
}
