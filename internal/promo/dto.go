package promo

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/mygros-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/mygros-backend/pkg/errors"
)

// RuleDTO is the API view of a promo rule.
type RuleDTO struct {
	ID                     uuid.UUID       `json:"id"`
	Name                   string          `json:"name"`
	ThresholdTotalSpent    decimal.Decimal `json:"threshold_total_spent"`
	DeliveryDiscountAmount decimal.Decimal `json:"delivery_discount_amount"`
	PercentDiscount        decimal.Decimal `json:"percent_discount"`
	Active                 bool            `json:"active"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

func newRuleDTO(m models.PromoRule) RuleDTO {
	return RuleDTO{
		ID:                     m.ID,
		Name:                   m.Name,
		ThresholdTotalSpent:    m.ThresholdTotalSpent,
		DeliveryDiscountAmount: m.DeliveryDiscountAmount,
		PercentDiscount:        m.PercentDiscount,
		Active:                 m.Active,
		CreatedAt:              m.CreatedAt,
		UpdatedAt:              m.UpdatedAt,
	}
}

// RuleInput carries the admin-editable fields of a rule.
type RuleInput struct {
	Name                   string
	ThresholdTotalSpent    decimal.Decimal
	DeliveryDiscountAmount decimal.Decimal
	PercentDiscount        decimal.Decimal
	Active                 bool
}

// RuleUpdate patches a rule; nil fields are left untouched.
type RuleUpdate struct {
	Name                   *string
	ThresholdTotalSpent    *decimal.Decimal
	DeliveryDiscountAmount *decimal.Decimal
	PercentDiscount        *decimal.Decimal
	Active                 *bool
}

type ruleDraft struct {
	Name                   string
	ThresholdTotalSpent    decimal.Decimal
	DeliveryDiscountAmount decimal.Decimal
	PercentDiscount        decimal.Decimal
	Active                 bool
}

func (d ruleDraft) validate() error {
	fields := map[string]string{}
	if d.Name == "" {
		fields["name"] = "required"
	}
	if d.ThresholdTotalSpent.IsNegative() {
		fields["threshold_total_spent"] = "must be >= 0"
	}
	if d.DeliveryDiscountAmount.IsNegative() {
		fields["delivery_discount_amount"] = "must be >= 0"
	}
	if d.PercentDiscount.IsNegative() || d.PercentDiscount.GreaterThan(hundred) {
		fields["percent_discount"] = "must be between 0 and 100"
	}
	if len(fields) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid promo rule").WithDetails(fields)
	}
	return nil
}

func (d ruleDraft) model() models.PromoRule {
	return models.PromoRule{
		Name:                   d.Name,
		ThresholdTotalSpent:    d.ThresholdTotalSpent.Round(2),
		DeliveryDiscountAmount: d.DeliveryDiscountAmount.Round(2),
		PercentDiscount:        d.PercentDiscount.Round(2),
		Active:                 d.Active,
	}
}
