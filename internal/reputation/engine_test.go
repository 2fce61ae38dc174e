package reputation

import (
	"testing"

	"github.com/keystone-market/backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestEvaluateCleanSeller(t *testing.T) {
	stats := models.SellerStats{
		TotalOrders:       50,
		SuccessfulOrders:  50,
		TotalRevenueCents: 250_000,
	}

	res := Evaluate(stats, DefaultPolicy())

	assert.Equal(t, 100, res.Rating)
	assert.Contains(t, res.Badges, models.BadgeTrusted)
	assert.NotContains(t, res.Badges, models.BadgeNew)
	assert.NotContains(t, res.Badges, models.BadgeRisky)
}

func TestEvaluateRefundsLowerRating(t *testing.T) {
	base := models.SellerStats{TotalOrders: 100}

	clean := Evaluate(base, DefaultPolicy())

	withRefunds := base
	withRefunds.RefundsCount = 10
	dinged := Evaluate(withRefunds, DefaultPolicy())

	assert.Less(t, dinged.Rating, clean.Rating)
	// 10% refund rate at weight 40 costs 4 points.
	assert.Equal(t, 96, dinged.Rating)
}

func TestEvaluateDisputeLossesScenario(t *testing.T) {
	// A seller losing most of their disputes drops below the trusted bar even
	// with solid volume.
	stats := models.SellerStats{
		TotalOrders:   100,
		RefundsCount:  20,
		DisputesCount: 10,
		DisputesLost:  8,
	}

	res := Evaluate(stats, DefaultPolicy())

	// 20% refunds x40 = 8, 80% loss rate x30 = 24 -> 100-32 = 68.
	assert.Equal(t, 68, res.Rating)
	assert.NotContains(t, res.Badges, models.BadgeTrusted)
	assert.Contains(t, res.Badges, models.BadgeRisky)
}

func TestEvaluateRatingClampedAtZero(t *testing.T) {
	stats := models.SellerStats{
		TotalOrders:   10,
		RefundsCount:  10,
		DisputesCount: 10,
		DisputesLost:  10,
	}

	res := Evaluate(stats, DefaultPolicy())

	assert.GreaterOrEqual(t, res.Rating, 0)
	assert.Contains(t, res.Badges, models.BadgeRisky)
}

func TestEvaluateBadges(t *testing.T) {
	tests := []struct {
		name    string
		stats   models.SellerStats
		want    []string
		notWant []string
	}{
		{
			name:  "brand new seller",
			stats: models.SellerStats{TotalOrders: 2},
			want:  []string{models.BadgeNew},
		},
		{
			name: "high volume",
			stats: models.SellerStats{
				TotalOrders: 150,
			},
			want:    []string{models.BadgeHighVolume, models.BadgeTrusted},
			notWant: []string{models.BadgeNew},
		},
		{
			name: "top seller by revenue",
			stats: models.SellerStats{
				TotalOrders:       30,
				TotalRevenueCents: 2_000_000,
			},
			want: []string{models.BadgeTopSeller},
		},
		{
			name: "never verified here",
			stats: models.SellerStats{
				TotalOrders: 30,
			},
			notWant: []string{models.BadgeVerified},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Evaluate(tt.stats, DefaultPolicy())
			for _, b := range tt.want {
				assert.Contains(t, res.Badges, b)
			}
			for _, b := range tt.notWant {
				assert.NotContains(t, res.Badges, b)
			}
		})
	}
}

func TestEvaluateBadgeOrderStable(t *testing.T) {
	stats := models.SellerStats{
		TotalOrders:       200,
		TotalRevenueCents: 5_000_000,
	}

	first := Evaluate(stats, DefaultPolicy())
	second := Evaluate(stats, DefaultPolicy())

	assert.Equal(t, first.Badges, second.Badges)
	assert.Equal(t, []string{models.BadgeHighVolume, models.BadgeTopSeller, models.BadgeTrusted}, first.Badges)
}

func TestEvaluateNoOrdersNoPenalty(t *testing.T) {
	res := Evaluate(models.SellerStats{}, DefaultPolicy())

	assert.Equal(t, 100, res.Rating)
	assert.Contains(t, res.Badges, models.BadgeNew)
}
