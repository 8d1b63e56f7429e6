// Package mock is a deterministic, offline capability built on keyword and pattern rules.
// It is, of course, no match for a real model and only serves to exercise the negotiation
// flow end to end without network access.
package mock

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"procureagent"
)

var (
	pricePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\$\s*([0-9,]+\.?[0-9]*)`),
		regexp.MustCompile(`(?i)([0-9,]+\.?[0-9]*)\s*(?:USD|dollars|EUR|euros)`),
		regexp.MustCompile(`(?i)(?:price|total|cost).*?([0-9,]+\.?[0-9]*)`),
	}
	daysPattern  = regexp.MustCompile(`(?i)(\d+)\s*(?:business\s+)?days?`)
	weeksPattern = regexp.MustCompile(`(?i)(\d+)\s*weeks?`)
	netPattern   = regexp.MustCompile(`(?i)net\s*(\d+)`)
	skuPattern   = regexp.MustCompile(`\b[A-Z][A-Z0-9]+(?:-[A-Z0-9]+)+\b`)
)

var (
	dealWords    = []string{"deal", "agreed", "accept", "confirm", "sounds good"}
	refusedWords = []string{"not interested", "decline", "unable to", "no longer", "out of stock", "cannot supply"}
	firmWords    = []string{"final", "firm", "best price", "lowest", "no further", "non-negotiable"}
	flexWords    = []string{"discount", "flexible", "can offer", "could offer", "reduce", "willing"}
)

type Capability struct{}

func NewCapability() *Capability {
	return &Capability{}
}

// MatchVendor finds the order item in the vendor's profile or text documents.
func (c *Capability) MatchVendor(_ context.Context, req procureagent.MatchRequest) (procureagent.MatchResult, error) {
	words := keywords(req.Order.Item)
	profile := strings.ToLower(strings.Join(append([]string{req.Vendor.Name, req.Vendor.Description}, req.Vendor.Categories...), " "))

	for _, d := range req.Documents {
		if !strings.HasPrefix(d.MediaType, "text/") {
			continue
		}
		for _, line := range strings.Split(string(d.Data), "\n") {
			if !containsAny(strings.ToLower(line), words) {
				continue
			}
			if sku := skuPattern.FindString(line); sku != "" {
				slog.Info("LLM_CLIENT: Mock matched product", "vendor_id", req.Vendor.ID, "product_id", sku)
				return procureagent.MatchResult{
					Suitable:  true,
					ProductID: sku,
					Reasoning: fmt.Sprintf("%s lists %s in %s", req.Vendor.Name, sku, d.Filename),
				}, nil
			}
		}
	}

	if containsAny(profile, words) {
		return procureagent.MatchResult{
			Suitable:  true,
			ProductID: "MOCK-" + strings.ToUpper(req.Vendor.ID),
			Reasoning: fmt.Sprintf("%s profile mentions %s", req.Vendor.Name, req.Order.Item),
		}, nil
	}
	return procureagent.MatchResult{
		Suitable:  false,
		Reasoning: fmt.Sprintf("no product matching %s found for %s", req.Order.Item, req.Vendor.Name),
	}, nil
}

func (c *Capability) DraftStrategy(_ context.Context, req procureagent.StrategyRequest) (procureagent.StrategyPlan, error) {
	o := req.Order
	currency := o.Currency
	if currency == "" {
		currency = "USD"
	}
	tone := "professional"
	if strings.Contains(strings.ToLower(req.Vendor.BehavioralProfile), "aggressive") {
		tone = "firm"
	}
	return procureagent.StrategyPlan{
		VendorID:  req.Vendor.ID,
		Objective: fmt.Sprintf("Secure %d units of %s at or below %.2f %s", o.Quantity.Preferred, o.Item, o.Budget*0.80, currency),
		PriceTargets: procureagent.PriceTargets{
			Anchor:   o.Budget * 0.70,
			Target:   o.Budget * 0.80,
			WalkAway: o.Budget * 0.95,
			Currency: currency,
		},
		Tone:        tone,
		Approach:    "collaborative",
		Arguments:   []string{"volume commitment", "repeat business"},
		Concessions: []string{"faster payment", "flexible delivery date"},
		OpeningMessage: fmt.Sprintf("Hello %s team, we would like to purchase %d units of %s. Could you share your best total price, delivery time and payment terms?",
			req.Vendor.Name, o.Quantity.Preferred, o.Item),
		Assumptions:     []string{"prices are totals for the full quantity"},
		BehavioralNotes: req.Vendor.BehavioralProfile,
	}, nil
}

// ClassifyReply applies keyword rules in priority order: refusal, deal, firmness,
// questions, flexibility.
func (c *Capability) ClassifyReply(_ context.Context, req procureagent.ClassifyRequest) (procureagent.ReplyClassification, error) {
	text := strings.ToLower(req.Reply)
	out := procureagent.NeutralClassification()
	out.ExtractedPrice = ExtractPrice(req.Reply)

	switch {
	case containsAny(text, refusedWords):
		out.Sentiment, out.SuggestedAction = procureagent.SentimentRefused, procureagent.ActionWalkAway
	case containsAny(text, dealWords):
		out.Sentiment, out.SuggestedAction = procureagent.SentimentDealAgreed, procureagent.ActionAccept
	case containsAny(text, firmWords):
		out.Sentiment = procureagent.SentimentFirm
	case strings.Contains(text, "?"):
		out.Sentiment, out.SuggestedAction = procureagent.SentimentInfoNeeded, procureagent.ActionClarify
	case containsAny(text, flexWords):
		out.Sentiment = procureagent.SentimentFlexible
	}
	return out, nil
}

// ExtractDeal reads prices, delivery and payment terms from the vendor's replies.
func (c *Capability) ExtractDeal(_ context.Context, req procureagent.ExtractRequest) (procureagent.DealExtraction, error) {
	out := procureagent.DealExtraction{
		DealStatus: string(procureagent.StatusNoDeal),
		Summary:    fmt.Sprintf("No price agreed with %s", req.Vendor.Name),
	}

	var last string
	for _, t := range req.Transcript {
		if t.Reply == "" {
			continue
		}
		last = t.Reply
		if p := ExtractPrice(t.Reply); p != nil {
			if out.ListPrice == nil {
				out.ListPrice = p
			}
			out.FinalPrice = p
		}
		if d := ExtractDeliveryDays(t.Reply); d != nil {
			out.DeliveryDays = d
		}
		if terms := ExtractPaymentTerms(t.Reply); terms != "" {
			out.PaymentTerms = terms
		}
	}

	if out.FinalPrice == nil {
		return out, nil
	}
	out.DealStatus = string(procureagent.StatusInProgress)
	if containsAny(strings.ToLower(last), dealWords) {
		out.DealStatus = string(procureagent.StatusFinalized)
	}
	out.Summary = fmt.Sprintf("%d %s for $%.2f", req.Order.Quantity.Preferred, req.Order.Item, *out.FinalPrice)
	return out, nil
}

// GenerateMessage moves from anchor to target over the trade phase and offers the target
// at close.
func (c *Capability) GenerateMessage(_ context.Context, req procureagent.MessageRequest) (string, error) {
	t := req.Plan.PriceTargets
	qty := req.Order.Quantity.Preferred

	switch {
	case req.Last.Sentiment == procureagent.SentimentInfoNeeded:
		return fmt.Sprintf("Happy to clarify: we need %d units of %s, delivered as soon as possible. What total price can you offer?", qty, req.Order.Item), nil
	case req.Phase == procureagent.PhaseClose:
		return fmt.Sprintf("We are ready to close today at %.2f %s for %d units. Can you confirm?", t.Target, t.Currency, qty), nil
	default:
		step := float64(len(req.History))
		offer := t.Anchor + (t.Target-t.Anchor)*min(step/5, 1)
		return fmt.Sprintf("Thank you. Considering our volume, could you do %.2f %s for %d units?", offer, t.Currency, qty), nil
	}
}

// ExtractPrice returns the first positive price in text, or nil.
func ExtractPrice(text string) *float64 {
	for _, re := range pricePatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
			if err == nil && v > 0 {
				return &v
			}
		}
	}
	return nil
}

func ExtractDeliveryDays(text string) *int {
	if m := daysPattern.FindStringSubmatch(text); m != nil {
		if d, err := strconv.Atoi(m[1]); err == nil && d > 0 {
			return &d
		}
	}
	if m := weeksPattern.FindStringSubmatch(text); m != nil {
		if w, err := strconv.Atoi(m[1]); err == nil && w > 0 {
			d := w * 7
			return &d
		}
	}
	return nil
}

func ExtractPaymentTerms(text string) string {
	if m := netPattern.FindStringSubmatch(text); m != nil {
		return "Net " + m[1]
	}
	lower := strings.ToLower(text)
	if strings.Contains(lower, "advance") || strings.Contains(lower, "upfront") {
		return "Advance payment"
	}
	return ""
}

func keywords(item string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(item)) {
		w = strings.TrimSuffix(strings.Trim(w, ".,;:()"), "s")
		if len(w) > 3 {
			out = append(out, w)
		}
	}
	return out
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
