package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/mygros-backend/api/responses"
	"github.com/angelmondragon/mygros-backend/api/validators"
	"github.com/angelmondragon/mygros-backend/internal/promo"
	"github.com/angelmondragon/mygros-backend/pkg/logger"
)

// BuyerPromo evaluates the caller's loyalty tier from their qualifying spend.
func BuyerPromo(svc promo.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "promo")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		eval, err := svc.ForBuyer(r.Context(), actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, eval)
	}
}

func AdminListPromoRules(svc promo.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "promo")
			return
		}
		activeOnly, err := validators.ParseQueryBool(r, "active")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rules, err := svc.ListRules(r.Context(), activeOnly != nil && *activeOnly)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rules)
	}
}

type promoRuleRequest struct {
	Name                   string          `json:"name" validate:"required,max=120"`
	ThresholdTotalSpent    decimal.Decimal `json:"threshold_total_spent"`
	DeliveryDiscountAmount decimal.Decimal `json:"delivery_discount_amount"`
	PercentDiscount        decimal.Decimal `json:"percent_discount"`
	Active                 *bool           `json:"active,omitempty"`
}

type promoRulePatch struct {
	Name                   *string          `json:"name,omitempty" validate:"omitempty,max=120"`
	ThresholdTotalSpent    *decimal.Decimal `json:"threshold_total_spent,omitempty"`
	DeliveryDiscountAmount *decimal.Decimal `json:"delivery_discount_amount,omitempty"`
	PercentDiscount        *decimal.Decimal `json:"percent_discount,omitempty"`
	Active                 *bool            `json:"active,omitempty"`
}

func AdminCreatePromoRule(svc promo.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "promo")
			return
		}
		var body promoRuleRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		active := true
		if body.Active != nil {
			active = *body.Active
		}
		rule, err := svc.CreateRule(r.Context(), promo.RuleInput{
			Name:                   body.Name,
			ThresholdTotalSpent:    body.ThresholdTotalSpent,
			DeliveryDiscountAmount: body.DeliveryDiscountAmount,
			PercentDiscount:        body.PercentDiscount,
			Active:                 active,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, rule)
	}
}

func AdminUpdatePromoRule(svc promo.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "promo")
			return
		}
		id, err := validators.URLParamUUID(r, "ruleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body promoRulePatch
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rule, err := svc.UpdateRule(r.Context(), id, promo.RuleUpdate{
			Name:                   body.Name,
			ThresholdTotalSpent:    body.ThresholdTotalSpent,
			DeliveryDiscountAmount: body.DeliveryDiscountAmount,
			PercentDiscount:        body.PercentDiscount,
			Active:                 body.Active,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rule)
	}
}
