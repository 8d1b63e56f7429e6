package capability

import (
	"encoding/json"
	"testing"

	"procureagent"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumberDecoding(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want *float64
	}{
		{name: "number", in: `2500`, want: ptr(2500)},
		{name: "decimal", in: `2499.5`, want: ptr(2499.5)},
		{name: "dollar string", in: `"$2,500.00"`, want: ptr(2500)},
		{name: "currency suffix", in: `"1800 USD"`, want: ptr(1800)},
		{name: "null", in: `null`, want: nil},
		{name: "empty string", in: `""`, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n Number
			require.NoError(t, json.Unmarshal([]byte(tt.in), &n))
			if tt.want == nil {
				assert.Nil(t, n.Value)
				return
			}
			require.NotNil(t, n.Value)
			assert.InDelta(t, *tt.want, *n.Value, 1e-9)
		})
	}

	var n Number
	assert.Error(t, json.Unmarshal([]byte(`"call us"`), &n))
}

func TestClassificationNormalizes(t *testing.T) {
	var a ClassifyAnswer
	require.NoError(t, Decode([]byte(`{"sentiment":" FIRM ","suggested_action":"haggle","extracted_price":"$2,900"}`), &a))

	got := a.Classification()
	assert.Equal(t, procureagent.SentimentFirm, got.Sentiment)
	assert.Equal(t, procureagent.ActionContinue, got.SuggestedAction)
	require.NotNil(t, got.ExtractedPrice)
	assert.InDelta(t, 2900, *got.ExtractedPrice, 1e-9)

	require.NoError(t, Decode([]byte(`{"sentiment":"angry","suggested_action":"accept","extracted_price":0}`), &a))
	got = a.Classification()
	assert.Equal(t, procureagent.SentimentNeutral, got.Sentiment)
	assert.Equal(t, procureagent.ActionAccept, got.SuggestedAction)
	assert.Nil(t, got.ExtractedPrice)
}

func TestDealExtraction(t *testing.T) {
	raw := "Here you go:\n```json\n{\"final_price\": 2450, \"list_price\": \"3,000\", \"bundled_items\": [\"USB cables\"], \"summary\": \" 150 boards \", \"deal_status\": \"Finalized\", \"delivery_days\": 13.6, \"payment_terms\": \"Net 30\"}\n```"
	var a DealAnswer
	require.NoError(t, Decode([]byte(raw), &a))

	got := a.Extraction()
	require.NotNil(t, got.FinalPrice)
	assert.InDelta(t, 2450, *got.FinalPrice, 1e-9)
	require.NotNil(t, got.ListPrice)
	assert.InDelta(t, 3000, *got.ListPrice, 1e-9)
	assert.Equal(t, "finalized", got.DealStatus)
	assert.Equal(t, "150 boards", got.Summary)
	require.NotNil(t, got.DeliveryDays)
	assert.Equal(t, 14, *got.DeliveryDays)
	assert.Equal(t, []string{"USB cables"}, got.BundledItems)

	require.NoError(t, Decode([]byte(`{"summary":"nothing","deal_status":"maybe"}`), &a))
	got = a.Extraction()
	assert.Nil(t, got.FinalPrice)
	assert.Nil(t, got.DeliveryDays)
	assert.Equal(t, "no_deal", got.DealStatus)
}

func TestDealExtractionDeliveryDays(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want *int
	}{
		{name: "rounded", in: `6.5`, want: intPtr(7)},
		{name: "huge", in: `1e300`, want: intPtr(maxDeliveryDays)},
		{name: "just under cap", in: `3649.2`, want: intPtr(3649)},
		{name: "infinite string", in: `"Inf"`, want: intPtr(maxDeliveryDays)},
		{name: "not a number", in: `"NaN"`, want: nil},
		{name: "negative", in: `-3`, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a DealAnswer
			require.NoError(t, Decode([]byte(`{"delivery_days": `+tt.in+`}`), &a))

			got := a.Extraction().DeliveryDays
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestDecodeRejectsProse(t *testing.T) {
	var a MatchAnswer
	assert.Error(t, Decode([]byte("I could not decide."), &a))
}

func TestStrategyAnswerPlan(t *testing.T) {
	var a StrategyAnswer
	require.NoError(t, Decode([]byte(`{
		"objective": "buy boards",
		"price_targets": {"anchor": "2100", "target": 2400, "walk_away": 2850, "currency": "USD"},
		"tone": "friendly",
		"opening_message": "Hello"
	}`), &a))

	plan := a.Plan("v1")
	assert.Equal(t, "v1", plan.VendorID)
	assert.InDelta(t, 2100, plan.PriceTargets.Anchor, 1e-9)
	assert.InDelta(t, 2850, plan.PriceTargets.WalkAway, 1e-9)
	assert.NoError(t, plan.Check())
}

func TestPrompts(t *testing.T) {
	order := procureagent.OrderRequirement{
		Item:         "Arduino boards",
		Quantity:     procureagent.Quantity{Min: 100, Max: 200, Preferred: 150},
		Budget:       3000,
		Requirements: procureagent.Requirements{Mandatory: []string{"genuine"}},
	}
	vendor := procureagent.Vendor{ID: "v1", Name: "Maker Supply", BehavioralProfile: "hard bargainer"}

	p := MatchPrompt(procureagent.MatchRequest{Vendor: vendor, Order: order}, false)
	assert.Contains(t, p.User, "No documents could be loaded")
	assert.Contains(t, p.User, "100-200 units (preferred: 150)")
	assert.Contains(t, p.System, "ONE specific product ID")

	p = MatchPrompt(procureagent.MatchRequest{Vendor: vendor, Order: order, Documents: []procureagent.Document{{Filename: "catalog.pdf"}}}, true)
	assert.Contains(t, p.User, "Attached documents: catalog.pdf")

	p = StrategyPrompt(procureagent.StrategyRequest{Vendor: vendor, Order: order})
	assert.Contains(t, p.User, "anchor 2100.00, target 2400.00, walk-away 2850.00 USD")
	assert.Contains(t, p.User, "Behavioral profile: hard bargainer")

	p = ExtractPrompt(procureagent.ExtractRequest{Vendor: vendor, Order: order})
	assert.Contains(t, p.User, "(no messages were exchanged)")

	p = MessagePrompt(procureagent.MessageRequest{
		Vendor:      vendor,
		Order:       order,
		Phase:       procureagent.PhaseTrade,
		Tactics:     []string{"trade concessions"},
		Constraints: []string{"never exceed 2850.00 USD"},
		History:     []procureagent.Turn{{Index: 0, Phase: procureagent.PhaseOpening, Sent: "hi", Reply: "$3000"}},
		Last:        procureagent.NeutralClassification(),
	})
	assert.Contains(t, p.User, "- never exceed 2850.00 USD")
	assert.Contains(t, p.User, "[turn 0, OPENING] VENDOR: $3000")
}

func TestToolsRequireFields(t *testing.T) {
	for _, tool := range []Tool{MatchTool(), StrategyTool(), ClassifyTool(), ExtractTool()} {
		t.Run(tool.Name, func(t *testing.T) {
			assert.Equal(t, "object", tool.InputSchema.Type)
			assert.NotEmpty(t, tool.InputSchema.Required)
			for _, name := range tool.InputSchema.Required {
				assert.Contains(t, tool.InputSchema.Properties, name)
			}
		})
	}
}

func ptr(v float64) *float64 { return &v }
func intPtr(v int) *int { return &v }
