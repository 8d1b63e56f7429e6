package capability

import (
	"fmt"
	"strings"

	"procureagent"
)

// Prompt is a system instruction plus the user turn that goes with it.
type Prompt struct {
	System string
	User   string
}

const matchSystemPrompt = `You are a procurement analyst screening vendors for a purchase order.

GOAL:
Decide whether this vendor sells a product that satisfies the order. Find ONE specific product ID in the vendor documents that matches the requested item and every mandatory requirement.

RULES:
- Be strict. A vendor whose categories merely sound related is NOT suitable.
- Only report a product_id that appears verbatim in the vendor documents.
- If no specific product matches, set suitable to false and leave product_id empty.
- Keep reasoning to one sentence.`

const noDocumentsNote = `No documents could be loaded for this vendor. Judge only from the vendor description and categories and be strict: without evidence of a matching product, the vendor is not suitable.`

const strategySystemPrompt = `You are a procurement strategist preparing a negotiation with one vendor.

GOAL:
Produce a negotiation plan for buying the order from this vendor.

PRICE TARGETS (all prices are TOTAL prices for the whole quantity, never per unit):
- anchor: about 70% of the budget
- target: about 80% of the budget
- walk_away: at most 95% of the budget
- anchor <= target <= walk_away

GUIDANCE:
- Adapt tone and approach to the vendor's behavioral profile.
- List arguments that give us leverage and concessions in the order we would give them.
- The opening message is sent verbatim: plain text, no subject line, no placeholders, and it must state the item, the quantity and the mandatory requirements, then ask for pricing.
- List the assumptions you made.`

const classifySystemPrompt = `You are reading a vendor's reply during a procurement negotiation.

Classify the reply:
- sentiment: flexible (willing to move), firm (holding position), deal_agreed (vendor accepts or confirms the deal), refused (vendor declines to sell or ends the conversation), info_needed (vendor asks us a question), neutral (anything else)
- suggested_action: continue, accept, walk_away or clarify
- extracted_price: the TOTAL price currently offered for the full quantity if the reply states one. Convert a per-unit price to a total using the quantity under discussion. Omit it when no price is stated.`

const extractSystemPrompt = `You are closing the books on a finished procurement negotiation.

Read the full transcript and record the final terms:
- final_price: the last TOTAL price the vendor committed to for the full quantity. Omit it when the vendor never committed to a price.
- list_price: the first TOTAL price the vendor quoted.
- bundled_items: anything included at no extra cost.
- deal_status: finalized if both sides agreed, in_progress if terms were still moving, walked_away if we left, no_deal otherwise.
- delivery_days and payment_terms if they were stated.
- summary: one line describing the deal.`

const messageSystemPrompt = `You are a procurement negotiator writing the next message to a vendor.

RULES:
- Write only the message body: plain text, no subject line, no placeholders, no signature block.
- Follow the tactics for the current phase and never break the constraints.
- Never reveal our budget, target or walk-away price.
- Keep it under 120 words.`

// MatchPrompt builds the screening prompt. Documents travel separately; loaded tells the
// model whether any are attached.
func MatchPrompt(req procureagent.MatchRequest, loaded bool) Prompt {
	var b strings.Builder
	writeOrder(&b, req.Order)
	b.WriteString("\nVENDOR:\n")
	writeVendor(&b, req.Vendor)
	if loaded {
		names := make([]string, 0, len(req.Documents))
		for _, d := range req.Documents {
			names = append(names, d.Filename)
		}
		fmt.Fprintf(&b, "\nAttached documents: %s\n", strings.Join(names, ", "))
	} else {
		b.WriteString("\n" + noDocumentsNote + "\n")
	}
	return Prompt{System: matchSystemPrompt, User: b.String()}
}

func StrategyPrompt(req procureagent.StrategyRequest) Prompt {
	var b strings.Builder
	writeOrder(&b, req.Order)
	b.WriteString("\nVENDOR:\n")
	writeVendor(&b, req.Vendor)
	if req.Vendor.MatchedProductID != "" {
		fmt.Fprintf(&b, "Matched product: %s\n", req.Vendor.MatchedProductID)
	}
	fmt.Fprintf(&b, "\nBudget guide: anchor %.2f, target %.2f, walk-away %.2f %s\n",
		req.Order.Budget*0.70, req.Order.Budget*0.80, req.Order.Budget*0.95, currency(req.Order))
	return Prompt{System: strategySystemPrompt, User: b.String()}
}

func ClassifyPrompt(req procureagent.ClassifyRequest) Prompt {
	var b strings.Builder
	fmt.Fprintf(&b, "Item: %s\nQuantity: %s\n", req.Order.Item, req.Order.QuantityString())
	fmt.Fprintf(&b, "Vendor: %s\n", req.Vendor.Name)
	if len(req.History) > 0 {
		b.WriteString("\nCONVERSATION SO FAR:\n")
		writeTranscript(&b, req.History)
	}
	fmt.Fprintf(&b, "\nLATEST VENDOR REPLY:\n%s\n", req.Reply)
	return Prompt{System: classifySystemPrompt, User: b.String()}
}

func ExtractPrompt(req procureagent.ExtractRequest) Prompt {
	var b strings.Builder
	fmt.Fprintf(&b, "Item: %s\nQuantity: %s\nVendor: %s\n", req.Order.Item, req.Order.QuantityString(), req.Vendor.Name)
	b.WriteString("\nTRANSCRIPT:\n")
	if len(req.Transcript) == 0 {
		b.WriteString("(no messages were exchanged)\n")
	}
	writeTranscript(&b, req.Transcript)
	return Prompt{System: extractSystemPrompt, User: b.String()}
}

func MessagePrompt(req procureagent.MessageRequest) Prompt {
	var b strings.Builder
	fmt.Fprintf(&b, "Vendor: %s\nItem: %s\nQuantity: %s\n", req.Vendor.Name, req.Order.Item, req.Order.QuantityString())
	fmt.Fprintf(&b, "Tone: %s\nApproach: %s\n", req.Plan.Tone, req.Plan.Approach)
	if len(req.Plan.Arguments) > 0 {
		fmt.Fprintf(&b, "Arguments: %s\n", strings.Join(req.Plan.Arguments, "; "))
	}
	if len(req.Plan.Concessions) > 0 {
		fmt.Fprintf(&b, "Concessions we can offer: %s\n", strings.Join(req.Plan.Concessions, "; "))
	}
	if req.Plan.BehavioralNotes != "" {
		fmt.Fprintf(&b, "Vendor behavior: %s\n", req.Plan.BehavioralNotes)
	}
	fmt.Fprintf(&b, "\nPHASE: %s\nTACTICS:\n", req.Phase)
	for _, t := range req.Tactics {
		fmt.Fprintf(&b, "- %s\n", t)
	}
	b.WriteString("CONSTRAINTS:\n")
	for _, c := range req.Constraints {
		fmt.Fprintf(&b, "- %s\n", c)
	}
	fmt.Fprintf(&b, "\nLast reply read as: %s, suggested action %s\n", req.Last.Sentiment, req.Last.SuggestedAction)
	b.WriteString("\nCONVERSATION SO FAR:\n")
	writeTranscript(&b, req.History)
	b.WriteString("\nWrite the next message.")
	return Prompt{System: messageSystemPrompt, User: b.String()}
}

func writeOrder(b *strings.Builder, o procureagent.OrderRequirement) {
	b.WriteString("ORDER:\n")
	fmt.Fprintf(b, "Item: %s\n", o.Item)
	fmt.Fprintf(b, "Quantity: %s\n", o.QuantityString())
	fmt.Fprintf(b, "Budget: %.2f %s (total)\n", o.Budget, currency(o))
	if len(o.Requirements.Mandatory) > 0 {
		fmt.Fprintf(b, "Mandatory requirements: %s\n", strings.Join(o.Requirements.Mandatory, "; "))
	}
	if len(o.Requirements.Optional) > 0 {
		fmt.Fprintf(b, "Optional requirements: %s\n", strings.Join(o.Requirements.Optional, "; "))
	}
	if o.Urgency != "" {
		fmt.Fprintf(b, "Urgency: %s\n", o.Urgency)
	}
}

func writeVendor(b *strings.Builder, v procureagent.Vendor) {
	fmt.Fprintf(b, "Name: %s (id %s)\n", v.Name, v.ID)
	if v.Description != "" {
		fmt.Fprintf(b, "Description: %s\n", v.Description)
	}
	if len(v.Categories) > 0 {
		fmt.Fprintf(b, "Categories: %s\n", strings.Join(v.Categories, ", "))
	}
	if v.Rating > 0 {
		fmt.Fprintf(b, "Rating: %.1f\n", v.Rating)
	}
	if v.BehavioralProfile != "" {
		fmt.Fprintf(b, "Behavioral profile: %s\n", v.BehavioralProfile)
	}
}

func writeTranscript(b *strings.Builder, turns []procureagent.Turn) {
	for _, t := range turns {
		fmt.Fprintf(b, "[turn %d, %s] US: %s\n", t.Index, t.Phase, t.Sent)
		if t.Reply != "" {
			fmt.Fprintf(b, "[turn %d, %s] VENDOR: %s\n", t.Index, t.Phase, t.Reply)
		}
	}
}

func currency(o procureagent.OrderRequirement) string {
	if o.Currency == "" {
		return "USD"
	}
	return o.Currency
}
