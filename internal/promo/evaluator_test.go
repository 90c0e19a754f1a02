package promo

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/mygros-backend/pkg/db/models"
	"github.com/angelmondragon/mygros-backend/pkg/enums"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func rule(name, threshold string, active bool) models.PromoRule {
	return models.PromoRule{
		ID:                  uuid.New(),
		Name:                name,
		ThresholdTotalSpent: dec(threshold),
		Active:              active,
	}
}

func TestQualifyingSpendCountsConfirmedAndDelivered(t *testing.T) {
	orders := []SpendOrder{
		{Status: enums.OrderStatusConfirmed, TotalAmount: dec("100")},
		{Status: enums.OrderStatusDelivered, TotalAmount: dec("250.50")},
		{Status: enums.OrderStatusPending, TotalAmount: dec("999")},
		{Status: enums.OrderStatusCancelled, TotalAmount: dec("500")},
		{Status: enums.OrderStatusProcessing, TotalAmount: dec("40")},
		{Status: enums.OrderStatusShipped, TotalAmount: dec("60")},
	}
	assert.True(t, dec("350.50").Equal(QualifyingSpend(orders)))
	assert.True(t, decimal.Zero.Equal(QualifyingSpend(nil)))
}

func TestTierSelection(t *testing.T) {
	tiers := []models.PromoRule{
		rule("Argent", "500", true),
		rule("Bronze", "100", true),
		rule("Retired", "300", false),
		rule("Or", "1000", true),
	}

	cases := []struct {
		name    string
		spend   string
		current string
		next    string
	}{
		{name: "below every tier", spend: "50", current: "", next: "Bronze"},
		{name: "exactly on a threshold", spend: "100", current: "Bronze", next: "Argent"},
		{name: "inactive tier skipped", spend: "350", current: "Bronze", next: "Argent"},
		{name: "between tiers", spend: "750", current: "Argent", next: "Or"},
		{name: "above every tier", spend: "5000", current: "Or", next: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			spend := dec(tc.spend)
			current := CurrentTier(spend, tiers)
			next := NextTier(spend, tiers)
			if tc.current == "" {
				assert.Nil(t, current)
			} else {
				require.NotNil(t, current)
				assert.Equal(t, tc.current, current.Name)
			}
			if tc.next == "" {
				assert.Nil(t, next)
			} else {
				require.NotNil(t, next)
				assert.Equal(t, tc.next, next.Name)
			}
		})
	}
}

func TestEvaluateBetweenTiers(t *testing.T) {
	tiers := []models.PromoRule{rule("Bronze", "100", true), rule("Argent", "500", true)}
	orders := []SpendOrder{
		{Status: enums.OrderStatusConfirmed, TotalAmount: dec("200")},
		{Status: enums.OrderStatusDelivered, TotalAmount: dec("250")},
		{Status: enums.OrderStatusCancelled, TotalAmount: dec("1000")},
	}

	eval := Evaluate(orders, tiers)

	assert.True(t, dec("450").Equal(eval.Spend))
	require.NotNil(t, eval.Current)
	assert.Equal(t, "Bronze", eval.Current.Name)
	require.NotNil(t, eval.Next)
	assert.Equal(t, "Argent", eval.Next.Name)
	require.NotNil(t, eval.Remaining)
	assert.True(t, dec("50").Equal(*eval.Remaining))
	assert.True(t, dec("90").Equal(eval.Progress))

	require.Len(t, eval.Tiers, 2)
	assert.Equal(t, "Bronze", eval.Tiers[0].Name)
	assert.True(t, eval.Tiers[0].Unlocked)
	assert.Equal(t, "Argent", eval.Tiers[1].Name)
	assert.False(t, eval.Tiers[1].Unlocked)
}

func TestEvaluateTopTier(t *testing.T) {
	tiers := []models.PromoRule{rule("Bronze", "100", true)}
	eval := Evaluate([]SpendOrder{{Status: enums.OrderStatusDelivered, TotalAmount: dec("150")}}, tiers)

	require.NotNil(t, eval.Current)
	assert.Nil(t, eval.Next)
	assert.Nil(t, eval.Remaining)
	assert.True(t, hundred.Equal(eval.Progress))
}

func TestEvaluateNoSpend(t *testing.T) {
	tiers := []models.PromoRule{rule("Bronze", "300", true), rule("Hidden", "10", false)}
	eval := Evaluate(nil, tiers)

	assert.Nil(t, eval.Current)
	require.NotNil(t, eval.Next)
	assert.Equal(t, "Bronze", eval.Next.Name)
	assert.True(t, dec("300").Equal(*eval.Remaining))
	assert.True(t, decimal.Zero.Equal(eval.Progress))
	require.Len(t, eval.Tiers, 1)
}

func TestEvaluateProgressRounding(t *testing.T) {
	tiers := []models.PromoRule{rule("Bronze", "300", true)}
	eval := Evaluate([]SpendOrder{{Status: enums.OrderStatusConfirmed, TotalAmount: dec("100")}}, tiers)
	assert.Equal(t, "33.33", eval.Progress.StringFixed(2))
}
