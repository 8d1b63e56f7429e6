package market

import (
	"math"
	"strings"

	"procureagent"
)

const (
	priceWeight    = 0.6
	deliveryWeight = 0.25
	paymentWeight  = 0.15

	unknownDeliveryScore = 50.0
	unknownPaymentScore  = 50.0
)

// Score rates an offer on a 0-100 scale against the best valid price.
func Score(offer procureagent.OfferSnapshot, bestPrice float64) float64 {
	var score float64
	if offer.Price > 0 && bestPrice > 0 {
		score += priceWeight * PriceScore(offer.Price, bestPrice)
	}
	score += deliveryWeight * DeliveryScore(offer.DeliveryDays)
	score += paymentWeight * PaymentScore(offer.PaymentTerms)
	return round2(score)
}

func PriceScore(price, bestPrice float64) float64 {
	return math.Min(100, 100*bestPrice/price)
}

// DeliveryScore loses three points per day. Missing or zero days count as unknown.
func DeliveryScore(days *int) float64 {
	if days == nil || *days <= 0 {
		return unknownDeliveryScore
	}
	return math.Max(0, 100-3*float64(*days))
}

// PaymentScore maps free-form payment terms to a score by substring.
func PaymentScore(terms string) float64 {
	t := strings.ToLower(terms)
	switch {
	case strings.Contains(t, "net 30"), strings.Contains(t, "30 days"):
		return 80
	case strings.Contains(t, "net 60"), strings.Contains(t, "60 days"):
		return 60
	case strings.Contains(t, "advance"), strings.Contains(t, "upfront"):
		return 40
	default:
		return unknownPaymentScore
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
