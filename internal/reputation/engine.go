// Package reputation derives a seller's rating and badges from accumulated
// statistics. Evaluate is a pure function so the policy can be unit-tested
// without any storage.
package reputation

import "github.com/keystone-market/backend/internal/models"

// Policy holds the tunable thresholds and weights. Values are loaded from
// config; zero-value fields should never be used directly, call DefaultPolicy.
type Policy struct {
	RefundWeight      float64 // rating penalty per 100% refund rate
	DisputeLossWeight float64 // rating penalty per 100% dispute-loss rate
	ReplacementWeight float64 // rating penalty per 100% replacement rate

	NewMaxOrders        int   // below this the seller is "new"
	TrustedMinRating    int
	TrustedMinOrders    int
	HighVolumeMinOrders int
	TopSellerMinRevenue int64 // minor units
	RiskyMaxRate        float64 // refund or dispute-loss rate above this is "risky"
}

func DefaultPolicy() Policy {
	return Policy{
		RefundWeight:        40,
		DisputeLossWeight:   30,
		ReplacementWeight:   10,
		NewMaxOrders:        5,
		TrustedMinRating:    80,
		TrustedMinOrders:    20,
		HighVolumeMinOrders: 100,
		TopSellerMinRevenue: 1_000_000,
		RiskyMaxRate:        0.3,
	}
}

type Result struct {
	Rating int
	Badges []string
}

// Evaluate recomputes rating and derived badges from stats. The verified badge
// and the blocked flag are admin facts and are never produced here; callers
// merge them at read time.
func Evaluate(stats models.SellerStats, p Policy) Result {
	refundRate := rate(stats.RefundsCount, stats.TotalOrders)
	lossRate := rate(stats.DisputesLost, max(stats.DisputesCount, 1))
	replacementRate := rate(stats.ReplacementsCount, stats.TotalOrders)

	rating := 100.0
	rating -= p.RefundWeight * refundRate
	rating -= p.DisputeLossWeight * lossRate
	rating -= p.ReplacementWeight * replacementRate
	if rating < 0 {
		rating = 0
	}
	if rating > 100 {
		rating = 100
	}

	res := Result{Rating: int(rating)}

	// Badge order is fixed: volume and revenue badges first, trust and risk
	// last so they read as the dominant signal.
	if stats.TotalOrders < p.NewMaxOrders {
		res.Badges = append(res.Badges, models.BadgeNew)
	}
	if stats.TotalOrders >= p.HighVolumeMinOrders {
		res.Badges = append(res.Badges, models.BadgeHighVolume)
	}
	if stats.TotalRevenueCents >= p.TopSellerMinRevenue {
		res.Badges = append(res.Badges, models.BadgeTopSeller)
	}
	if res.Rating >= p.TrustedMinRating && stats.TotalOrders >= p.TrustedMinOrders {
		res.Badges = append(res.Badges, models.BadgeTrusted)
	}
	if refundRate > p.RiskyMaxRate || lossRate > p.RiskyMaxRate {
		res.Badges = append(res.Badges, models.BadgeRisky)
	}

	return res
}

func rate(n, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(n) / float64(total)
}
