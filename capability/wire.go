package capability

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"procureagent"
)

// Number decodes a model-supplied number that may arrive as a JSON number, a string such as
// "$2,500.00", or null.
type Number struct {
	Value *float64
}

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		n.Value = nil
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.NewReplacer("$", "", ",", "", "€", "", "USD", "", "EUR", "").Replace(s)
		s = strings.TrimSpace(s)
		if s == "" {
			n.Value = nil
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("not a number: %q", s)
		}
		n.Value = &f
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	n.Value = &f
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if n.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*n.Value)
}

func (n Number) positive() *float64 {
	if n.Value == nil || !(*n.Value > 0) {
		return nil
	}
	v := *n.Value
	return &v
}

type MatchAnswer struct {
	Suitable  bool   `json:"suitable"`
	ProductID string `json:"product_id"`
	Reasoning string `json:"reasoning"`
}

func (a MatchAnswer) Result() procureagent.MatchResult {
	return procureagent.MatchResult{
		Suitable:  a.Suitable,
		ProductID: strings.TrimSpace(a.ProductID),
		Reasoning: a.Reasoning,
	}
}

type StrategyAnswer struct {
	Objective    string `json:"objective"`
	PriceTargets struct {
		Anchor   Number `json:"anchor"`
		Target   Number `json:"target"`
		WalkAway Number `json:"walk_away"`
		Currency string `json:"currency"`
	} `json:"price_targets"`
	Tone            string   `json:"tone"`
	Approach        string   `json:"approach"`
	Arguments       []string `json:"arguments"`
	Concessions     []string `json:"concessions"`
	OpeningMessage  string   `json:"opening_message"`
	Assumptions     []string `json:"assumptions"`
	BehavioralNotes string   `json:"behavioral_notes"`
}

func (a StrategyAnswer) Plan(vendorID string) procureagent.StrategyPlan {
	val := func(n Number) float64 {
		if n.Value == nil {
			return 0
		}
		return *n.Value
	}
	return procureagent.StrategyPlan{
		VendorID:  vendorID,
		Objective: a.Objective,
		PriceTargets: procureagent.PriceTargets{
			Anchor:   val(a.PriceTargets.Anchor),
			Target:   val(a.PriceTargets.Target),
			WalkAway: val(a.PriceTargets.WalkAway),
			Currency: a.PriceTargets.Currency,
		},
		Tone:            a.Tone,
		Approach:        a.Approach,
		Arguments:       a.Arguments,
		Concessions:     a.Concessions,
		OpeningMessage:  a.OpeningMessage,
		Assumptions:     a.Assumptions,
		BehavioralNotes: a.BehavioralNotes,
	}
}

type ClassifyAnswer struct {
	Sentiment       string `json:"sentiment"`
	SuggestedAction string `json:"suggested_action"`
	ExtractedPrice  Number `json:"extracted_price"`
}

// Classification normalizes the answer. Unknown labels become neutral and continue.
func (a ClassifyAnswer) Classification() procureagent.ReplyClassification {
	out := procureagent.NeutralClassification()
	switch s := procureagent.Sentiment(strings.ToLower(strings.TrimSpace(a.Sentiment))); s {
	case procureagent.SentimentFlexible, procureagent.SentimentFirm, procureagent.SentimentDealAgreed,
		procureagent.SentimentRefused, procureagent.SentimentInfoNeeded, procureagent.SentimentNeutral:
		out.Sentiment = s
	}
	switch act := procureagent.Action(strings.ToLower(strings.TrimSpace(a.SuggestedAction))); act {
	case procureagent.ActionContinue, procureagent.ActionAccept, procureagent.ActionWalkAway, procureagent.ActionClarify:
		out.SuggestedAction = act
	}
	out.ExtractedPrice = a.ExtractedPrice.positive()
	return out
}

// maxDeliveryDays caps a delivery estimate at ten years.
const maxDeliveryDays = 3650

type DealAnswer struct {
	FinalPrice   Number   `json:"final_price"`
	ListPrice    Number   `json:"list_price"`
	BundledItems []string `json:"bundled_items"`
	Summary      string   `json:"summary"`
	DealStatus   string   `json:"deal_status"`
	DeliveryDays Number   `json:"delivery_days"`
	PaymentTerms string   `json:"payment_terms"`
}

func (a DealAnswer) Extraction() procureagent.DealExtraction {
	out := procureagent.DealExtraction{
		FinalPrice:   a.FinalPrice.positive(),
		ListPrice:    a.ListPrice.positive(),
		BundledItems: a.BundledItems,
		Summary:      strings.TrimSpace(a.Summary),
		DealStatus:   string(procureagent.ParseOfferStatus(a.DealStatus)),
		PaymentTerms: strings.TrimSpace(a.PaymentTerms),
	}
	if d := a.DeliveryDays.positive(); d != nil {
		days := maxDeliveryDays
		if *d < maxDeliveryDays {
			days = int(*d + 0.5)
		}
		out.DeliveryDays = &days
	}
	return out
}

// Decode unmarshals a model answer, tolerating a markdown code fence or prose around
// the JSON object.
func Decode(raw []byte, v any) error {
	s := strings.TrimSpace(string(raw))
	if start, end := strings.Index(s, "{"), strings.LastIndex(s, "}"); start >= 0 && end > start {
		s = s[start : end+1]
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("failed to decode model answer: %w", err)
	}
	return nil
}
