package negotiation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"procureagent"
)

const (
	fallbackAnchorRatio   = 0.70
	fallbackTargetRatio   = 0.80
	fallbackWalkAwayRatio = 0.95
)

// Planner drafts one StrategyPlan per relevant vendor.
type Planner struct {
	capability procureagent.Capability
	detailer   procureagent.VendorDetailer
}

// NewPlanner builds a planner. detailer may be nil.
func NewPlanner(capability procureagent.Capability, detailer procureagent.VendorDetailer) *Planner {
	return &Planner{capability: capability, detailer: detailer}
}

// Plan always returns a usable plan. Capability failures and invalid drafts are replaced by
// FallbackPlan.
func (p *Planner) Plan(ctx context.Context, vendor procureagent.Vendor, order procureagent.OrderRequirement) procureagent.StrategyPlan {
	vendor = p.enrich(ctx, vendor)

	plan, err := p.capability.DraftStrategy(ctx, procureagent.StrategyRequest{Vendor: vendor, Order: order})
	if err == nil {
		plan.VendorID = vendor.ID
		if plan.PriceTargets.Currency == "" {
			plan.PriceTargets.Currency = order.Currency
		}
		err = plan.Check()
	}
	if err != nil {
		slog.Warn("STRATEGIST: using fallback plan", "vendor_id", vendor.ID, "error", err)
		return FallbackPlan(vendor, order)
	}

	slog.Info("STRATEGIST: plan ready",
		"vendor_id", vendor.ID,
		"anchor", plan.PriceTargets.Anchor,
		"target", plan.PriceTargets.Target,
		"walk_away", plan.PriceTargets.WalkAway,
		"tone", plan.Tone,
	)
	return plan
}

// enrich replaces the listed vendor record with the detailed one when available.
func (p *Planner) enrich(ctx context.Context, vendor procureagent.Vendor) procureagent.Vendor {
	if p.detailer == nil {
		return vendor
	}
	detailed, err := p.detailer.GetVendor(ctx, vendor.ID)
	if err != nil {
		slog.Warn("STRATEGIST: vendor details unavailable", "vendor_id", vendor.ID, "error", err)
		return vendor
	}
	if detailed.BehavioralProfile != "" {
		vendor.BehavioralProfile = detailed.BehavioralProfile
	}
	if vendor.Description == "" {
		vendor.Description = detailed.Description
	}
	return vendor
}

// FallbackPlan is the deterministic budget-based plan.
func FallbackPlan(vendor procureagent.Vendor, order procureagent.OrderRequirement) procureagent.StrategyPlan {
	return procureagent.StrategyPlan{
		VendorID:  vendor.ID,
		Objective: fmt.Sprintf("Secure %s at or below %.2f %s", order.Item, order.Budget*fallbackTargetRatio, order.Currency),
		PriceTargets: procureagent.PriceTargets{
			Anchor:   order.Budget * fallbackAnchorRatio,
			Target:   order.Budget * fallbackTargetRatio,
			WalkAway: order.Budget * fallbackWalkAwayRatio,
			Currency: order.Currency,
		},
		Tone:           "professional",
		Approach:       "collaborative",
		Arguments:      []string{"competitive pricing", "volume commitment"},
		Concessions:    []string{"payment terms", "delivery timeline"},
		OpeningMessage: fallbackOpening(vendor, order),
		Assumptions:    []string{"vendor pricing is negotiable"},
		Fallback:       true,
	}
}

func fallbackOpening(vendor procureagent.Vendor, order procureagent.OrderRequirement) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s team, we are looking to purchase %d units of %s.", vendor.Name, order.Quantity.Preferred, order.Item)
	if len(order.Requirements.Mandatory) > 0 {
		fmt.Fprintf(&b, " Requirements: %s.", strings.Join(order.Requirements.Mandatory, ", "))
	}
	b.WriteString(" Could you share your best pricing, delivery time and payment terms for this quantity?")
	return b.String()
}
