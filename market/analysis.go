// Package market turns the final offers of all negotiation sessions into benchmarks,
// a deterministic ranking, per-vendor guidance and the buyer-facing report.
//
// Every function here is pure: the same offers and order always produce the same result.
package market

import (
	"fmt"
	"log/slog"
	"slices"

	"procureagent"
)

const (
	walkawayBudgetFactor = 1.1
	highPressureDelta    = 15.0
	mediumPressureDelta  = 5.0
	competitiveDelta     = 0.05
)

type scored struct {
	offer procureagent.OfferSnapshot
	score float64
}

// ValidOffers keeps offers with a positive price, preserving input order.
func ValidOffers(offers []procureagent.OfferSnapshot) []procureagent.OfferSnapshot {
	valid := make([]procureagent.OfferSnapshot, 0, len(offers))
	for _, o := range offers {
		if o.Valid() {
			valid = append(valid, o)
		}
	}
	return valid
}

// ComputeBenchmarks derives best, median and spread over valid offers.
func ComputeBenchmarks(valid []procureagent.OfferSnapshot) procureagent.Benchmarks {
	if len(valid) == 0 {
		return procureagent.Benchmarks{}
	}

	prices := make([]float64, len(valid))
	for i, o := range valid {
		prices[i] = o.Price
	}
	slices.Sort(prices)

	best, worst := prices[0], prices[len(prices)-1]
	median := best
	if n := len(prices); n > 1 {
		if n%2 == 1 {
			median = prices[n/2]
		} else {
			median = (prices[n/2-1] + prices[n/2]) / 2
		}
	}

	var spread float64
	if best > 0 {
		spread = round2((worst - best) / best * 100)
	}

	return procureagent.Benchmarks{
		BestPrice:     best,
		MedianPrice:   median,
		SpreadPercent: spread,
		TotalVendors:  len(valid),
	}
}

// rank scores valid offers and orders them by score, highest first. Ties keep input order.
func rank(valid []procureagent.OfferSnapshot, bestPrice float64) []scored {
	out := make([]scored, len(valid))
	for i, o := range valid {
		out[i] = scored{offer: o, score: Score(o, bestPrice)}
	}
	slices.SortStableFunc(out, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		default:
			return 0
		}
	})
	return out
}

// DeltaPercent is the distance of price above best, as a percentage of best.
func DeltaPercent(price, bestPrice float64) float64 {
	if bestPrice <= 0 {
		return 0
	}
	return (price - bestPrice) / bestPrice * 100
}

// Override computes negotiation guidance for a vendor at the given rank.
func Override(rank int, price, bestPrice, budget float64) procureagent.VendorOverride {
	if rank == 1 {
		return procureagent.VendorOverride{
			PressureLevel:  procureagent.PressureLow,
			SuggestedMove:  "You have the best offer. Can you provide any additional value or services?",
			ReferencePrice: bestPrice,
		}
	}

	delta := DeltaPercent(price, bestPrice)
	switch {
	case budget > 0 && price > budget*walkawayBudgetFactor:
		return procureagent.VendorOverride{
			PressureLevel:       procureagent.PressureHigh,
			SuggestedMove:       fmt.Sprintf("Your price of $%.2f significantly exceeds our budget. We may need to consider other options.", price),
			WalkawayRecommended: true,
			ReferencePrice:      bestPrice,
		}
	case delta > highPressureDelta:
		return procureagent.VendorOverride{
			PressureLevel:  procureagent.PressureHigh,
			SuggestedMove:  fmt.Sprintf("We have an offer at $%.2f. To move forward, we need you to match or beat this price.", bestPrice),
			ReferencePrice: bestPrice,
		}
	case delta > mediumPressureDelta:
		return procureagent.VendorOverride{
			PressureLevel:  procureagent.PressureMedium,
			SuggestedMove:  fmt.Sprintf("Your offer is competitive, but we have a better price at $%.2f. Can you improve your terms?", bestPrice),
			ReferencePrice: bestPrice,
		}
	default:
		return procureagent.VendorOverride{
			PressureLevel:  procureagent.PressureLow,
			SuggestedMove:  fmt.Sprintf("You're very close to the best offer at $%.2f. Any improvement would be appreciated.", bestPrice),
			ReferencePrice: bestPrice,
		}
	}
}

func rankingReason(rank int, price, bestPrice float64) string {
	delta := price - bestPrice
	switch {
	case rank == 1:
		return fmt.Sprintf("Best overall offer: $%.2f", price)
	case delta < bestPrice*competitiveDelta:
		return fmt.Sprintf("Competitive: $%.2f ($%.2f above best)", price, delta)
	default:
		return fmt.Sprintf("Higher price: $%.2f ($%.2f above best)", price, delta)
	}
}

// Analyze benchmarks and ranks the offers. Offers without a positive price are ignored.
func Analyze(offers []procureagent.OfferSnapshot, order procureagent.OrderRequirement) procureagent.MarketAnalysis {
	valid := ValidOffers(offers)
	if len(valid) == 0 {
		slog.Info("MARKET: no valid offers", "offers", len(offers))
		return procureagent.MarketAnalysis{
			Rankings:        []procureagent.Ranking{},
			VendorOverrides: map[string]procureagent.VendorOverride{},
			Summary:         "No valid offers received",
		}
	}

	bench := ComputeBenchmarks(valid)
	slog.Info("MARKET: benchmarks",
		"best", bench.BestPrice,
		"median", bench.MedianPrice,
		"spread_percent", bench.SpreadPercent,
		"vendors", bench.TotalVendors,
	)

	ranked := rank(valid, bench.BestPrice)
	rankings := make([]procureagent.Ranking, len(ranked))
	overrides := make(map[string]procureagent.VendorOverride, len(ranked))
	for i, s := range ranked {
		r := i + 1
		rankings[i] = procureagent.Ranking{
			VendorID:   s.offer.VendorID,
			VendorName: s.offer.VendorName,
			Rank:       r,
			Score:      s.score,
			Price:      s.offer.Price,
			Reason:     rankingReason(r, s.offer.Price, bench.BestPrice),
		}
		overrides[s.offer.VendorID] = Override(r, s.offer.Price, bench.BestPrice, order.Budget)
		slog.Debug("MARKET: ranked", "rank", r, "vendor", s.offer.VendorName, "score", s.score, "price", s.offer.Price)
	}

	var summary string
	if bench.BestPrice <= order.Budget {
		summary = fmt.Sprintf("MARKET STATUS: SUCCESS. Best offer is $%.2f (Budget: $%.2f).", bench.BestPrice, order.Budget)
	} else {
		summary = fmt.Sprintf("MARKET STATUS: EXCEEDS BUDGET. Best offer is $%.2f (Budget: $%.2f).", bench.BestPrice, order.Budget)
	}

	return procureagent.MarketAnalysis{
		Benchmarks:      bench,
		Rankings:        rankings,
		VendorOverrides: overrides,
		Summary:         summary,
	}
}
