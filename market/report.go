package market

import (
	"fmt"
	"log/slog"
	"strings"

	"procureagent"
)

const (
	humanActionNoOffers = "Review negotiation logs and consider alternative suppliers"
	humanActionDecide   = "Review the recommendation and confirm your selection to proceed with purchase"
)

// Report builds the final recommendation. Offers appear in comparisons only when valid;
// vendors without a valid offer are listed in NoOffer.
func Report(offers []procureagent.OfferSnapshot, order procureagent.OrderRequirement) procureagent.FinalComparisonReport {
	valid := ValidOffers(offers)

	var noOffer []string
	for _, o := range offers {
		if !o.Valid() {
			noOffer = append(noOffer, o.VendorID)
		}
	}

	if len(valid) == 0 {
		slog.Warn("MARKET: no valid offers for final report", "vendors", len(offers))
		return procureagent.FinalComparisonReport{
			RecommendedVendorID:   procureagent.NoRecommendation,
			RecommendedVendorName: "None",
			Reason:                "No valid offers received",
			Comparisons:           []procureagent.VendorComparison{},
			NoOffer:               noOffer,
			MarketSummary:         "no offers",
			HumanAction:           humanActionNoOffers,
		}
	}

	bench := ComputeBenchmarks(valid)
	ranked := rank(valid, bench.BestPrice)

	comparisons := make([]procureagent.VendorComparison, len(ranked))
	for i, s := range ranked {
		comparisons[i] = procureagent.VendorComparison{
			VendorID:    s.offer.VendorID,
			VendorName:  s.offer.VendorName,
			Rank:        i + 1,
			Score:       s.score,
			Price:       s.offer.Price,
			DeltaToBest: round2(s.offer.Price - bench.BestPrice),
			Status:      s.offer.Status,
			Summary:     OfferSummary(s.offer),
		}
	}

	best := ranked[0].offer
	var reason string
	if best.Price <= order.Budget {
		reason = fmt.Sprintf("Best Value Option: %s (Within Budget)", OfferSummary(best))
	} else {
		reason = fmt.Sprintf("Best Available Option: %s", OfferSummary(best))
	}
	if best.Status == procureagent.StatusFinalized {
		reason += " - DEAL AGREED"
	}

	worst := valid[0].Price
	for _, o := range valid {
		worst = max(worst, o.Price)
	}

	slog.Info("MARKET: final recommendation", "vendor", best.VendorName, "reason", reason)

	return procureagent.FinalComparisonReport{
		RecommendedVendorID:   best.VendorID,
		RecommendedVendorName: best.VendorName,
		Reason:                reason,
		Comparisons:           comparisons,
		NoOffer:               noOffer,
		MarketSummary:         fmt.Sprintf("Evaluated %d vendors. Price range: $%.2f - $%.2f", len(valid), bench.BestPrice, worst),
		HumanAction:           humanActionDecide,
	}
}

// OfferSummary prefers the negotiated summary and falls back to the price and bundle.
func OfferSummary(o procureagent.OfferSnapshot) string {
	if s := strings.TrimSpace(o.Summary); s != "" {
		return s
	}
	currency := o.Currency
	if currency == "" {
		currency = "USD"
	}
	var items string
	if len(o.BundledItems) > 0 {
		items = " (" + strings.Join(o.BundledItems, ", ") + ")"
	}
	return fmt.Sprintf("Offer of %s %.2f%s", currency, o.Price, items)
}
