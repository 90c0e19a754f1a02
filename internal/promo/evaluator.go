package promo

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/mygros-backend/pkg/db/models"
	"github.com/angelmondragon/mygros-backend/pkg/enums"
)

var hundred = decimal.NewFromInt(100)

// SpendOrder is the slice of an order the evaluator needs.
type SpendOrder struct {
	Status      enums.OrderStatus
	TotalAmount decimal.Decimal
}

// TierProgress is one rule annotated with whether the buyer unlocked it.
type TierProgress struct {
	RuleDTO
	Unlocked bool `json:"unlocked"`
}

// Evaluation is recomputed on every request; nothing is cached per buyer.
type Evaluation struct {
	Spend     decimal.Decimal  `json:"spend"`
	Current   *RuleDTO         `json:"current,omitempty"`
	Next      *RuleDTO         `json:"next,omitempty"`
	Remaining *decimal.Decimal `json:"remaining,omitempty"`
	Progress  decimal.Decimal  `json:"progress_percent"`
	Tiers     []TierProgress   `json:"tiers"`
}

// QualifyingSpend sums total_amount over confirmed and delivered orders.
func QualifyingSpend(orders []SpendOrder) decimal.Decimal {
	total := decimal.Zero
	for _, o := range orders {
		if o.Status.CountsTowardSpend() {
			total = total.Add(o.TotalAmount)
		}
	}
	return total
}

// CurrentTier returns the active rule with the greatest threshold <= spend.
func CurrentTier(spend decimal.Decimal, tiers []models.PromoRule) *models.PromoRule {
	var best *models.PromoRule
	for i := range tiers {
		t := tiers[i]
		if !t.Active || t.ThresholdTotalSpent.GreaterThan(spend) {
			continue
		}
		if best == nil || t.ThresholdTotalSpent.GreaterThan(best.ThresholdTotalSpent) {
			best = &t
		}
	}
	return best
}

// NextTier returns the active rule with the smallest threshold > spend.
func NextTier(spend decimal.Decimal, tiers []models.PromoRule) *models.PromoRule {
	var best *models.PromoRule
	for i := range tiers {
		t := tiers[i]
		if !t.Active || !t.ThresholdTotalSpent.GreaterThan(spend) {
			continue
		}
		if best == nil || t.ThresholdTotalSpent.LessThan(best.ThresholdTotalSpent) {
			best = &t
		}
	}
	return best
}

// Evaluate computes the buyer's tier standing from their orders and the rules.
func Evaluate(orders []SpendOrder, tiers []models.PromoRule) Evaluation {
	spend := QualifyingSpend(orders)
	eval := Evaluation{
		Spend: spend,
		Tiers: make([]TierProgress, 0, len(tiers)),
	}
	if current := CurrentTier(spend, tiers); current != nil {
		dto := newRuleDTO(*current)
		eval.Current = &dto
	}

	eval.Progress = hundred
	if next := NextTier(spend, tiers); next != nil {
		dto := newRuleDTO(*next)
		eval.Next = &dto
		remaining := next.ThresholdTotalSpent.Sub(spend)
		eval.Remaining = &remaining
		eval.Progress = decimal.Min(spend.Div(next.ThresholdTotalSpent).Mul(hundred), hundred).Round(2)
	}

	active := make([]models.PromoRule, 0, len(tiers))
	for _, t := range tiers {
		if t.Active {
			active = append(active, t)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].ThresholdTotalSpent.LessThan(active[j].ThresholdTotalSpent)
	})
	for _, t := range active {
		eval.Tiers = append(eval.Tiers, TierProgress{
			RuleDTO:  newRuleDTO(t),
			Unlocked: !t.ThresholdTotalSpent.GreaterThan(spend),
		})
	}
	return eval
}
