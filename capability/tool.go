// Package capability holds what every text-understanding backend shares: prompts, the
// structured-answer schemas and tolerant decoding of model answers into domain types.
package capability

import "github.com/modelcontextprotocol/go-sdk/jsonschema"

// Tool is a structured answer the model is made to give by calling it.
type Tool struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	InputSchema *jsonschema.Schema `json:"input_schema"`
}

var zero = 0.0

func MatchTool() Tool {
	return Tool{
		Name:        "record_vendor_match",
		Description: "Record whether the vendor can deliver the order and which catalog product matches it.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"suitable":   {Type: "boolean", Description: "true only if a specific matching product was found"},
				"product_id": {Type: "string", Description: "exact product id from the vendor documents; required when suitable"},
				"reasoning":  {Type: "string", Description: "one sentence explaining the decision"},
			},
			Required: []string{"suitable", "reasoning"},
		},
	}
}

func StrategyTool() Tool {
	return Tool{
		Name:        "record_strategy",
		Description: "Record the negotiation strategy for this vendor.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"objective": {Type: "string"},
				"price_targets": {
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"anchor":    {Type: "number", Minimum: &zero, Description: "opening price, total for the whole quantity"},
						"target":    {Type: "number", Minimum: &zero, Description: "price we aim to close at"},
						"walk_away": {Type: "number", Minimum: &zero, Description: "highest acceptable total price"},
						"currency":  {Type: "string"},
					},
					Required: []string{"anchor", "target", "walk_away"},
				},
				"tone":             {Type: "string"},
				"approach":         {Type: "string"},
				"arguments":        {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
				"concessions":      {Type: "array", Items: &jsonschema.Schema{Type: "string"}, Description: "in the order we are willing to give them"},
				"opening_message":  {Type: "string", Description: "first message to the vendor, plain text, no subject line"},
				"assumptions":      {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
				"behavioral_notes": {Type: "string"},
			},
			Required: []string{"objective", "price_targets", "tone", "opening_message"},
		},
	}
}

func ClassifyTool() Tool {
	return Tool{
		Name:        "record_reply_classification",
		Description: "Record how the vendor's latest reply should be read.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"sentiment": {
					Type: "string",
					Enum: []any{"flexible", "firm", "deal_agreed", "refused", "info_needed", "neutral"},
				},
				"suggested_action": {
					Type: "string",
					Enum: []any{"continue", "accept", "walk_away", "clarify"},
				},
				"extracted_price": {Type: "number", Minimum: &zero, Description: "total price currently offered for the full quantity, if stated"},
			},
			Required: []string{"sentiment", "suggested_action"},
		},
	}
}

func ExtractTool() Tool {
	return Tool{
		Name:        "record_deal",
		Description: "Record the final terms reached in the negotiation transcript.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"final_price":   {Type: "number", Minimum: &zero, Description: "final total price for the full quantity"},
				"list_price":    {Type: "number", Minimum: &zero, Description: "first quoted total price"},
				"bundled_items": {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
				"summary":       {Type: "string", Description: "one line deal summary"},
				"deal_status": {
					Type: "string",
					Enum: []any{"finalized", "in_progress", "walked_away", "no_deal"},
				},
				"delivery_days": {Type: "integer", Minimum: &zero},
				"payment_terms": {Type: "string"},
			},
			Required: []string{"summary", "deal_status"},
		},
	}
}
