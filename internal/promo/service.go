package promo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/mygros-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/mygros-backend/pkg/errors"
)

const activeThresholdConstraint = "ux_promo_rules_active_threshold"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes the buyer tier view and admin rule management.
type Service interface {
	ForBuyer(ctx context.Context, buyerID uuid.UUID) (*Evaluation, error)
	ListRules(ctx context.Context, activeOnly bool) ([]RuleDTO, error)
	CreateRule(ctx context.Context, input RuleInput) (*RuleDTO, error)
	UpdateRule(ctx context.Context, id uuid.UUID, input RuleUpdate) (*RuleDTO, error)
}

type service struct {
	repo Repository
	tx   txRunner
}

func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("promo repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) ForBuyer(ctx context.Context, buyerID uuid.UUID) (*Evaluation, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	orders, err := s.repo.BuyerSpendOrders(ctx, buyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load buyer spend")
	}
	rules, err := s.repo.ListRules(ctx, true)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load promo rules")
	}
	eval := Evaluate(orders, rules)
	return &eval, nil
}

func (s *service) ListRules(ctx context.Context, activeOnly bool) ([]RuleDTO, error) {
	rules, err := s.repo.ListRules(ctx, activeOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list promo rules")
	}
	out := make([]RuleDTO, 0, len(rules))
	for _, r := range rules {
		out = append(out, newRuleDTO(r))
	}
	return out, nil
}

func (s *service) CreateRule(ctx context.Context, input RuleInput) (*RuleDTO, error) {
	rule := &ruleDraft{
		Name:                   strings.TrimSpace(input.Name),
		ThresholdTotalSpent:    input.ThresholdTotalSpent,
		DeliveryDiscountAmount: input.DeliveryDiscountAmount,
		PercentDiscount:        input.PercentDiscount,
		Active:                 input.Active,
	}
	if err := rule.validate(); err != nil {
		return nil, err
	}
	model := rule.model()

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if model.Active {
			if err := ensureThresholdFree(ctx, repo, model.ThresholdTotalSpent, uuid.Nil); err != nil {
				return err
			}
		}
		if err := repo.CreateRule(ctx, &model); err != nil {
			return mapWriteError(err, "create promo rule")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := newRuleDTO(model)
	return &dto, nil
}

func (s *service) UpdateRule(ctx context.Context, id uuid.UUID, input RuleUpdate) (*RuleDTO, error) {
	var updated RuleDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		rule, err := repo.FindRule(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "promo rule not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load promo rule")
		}

		draft := ruleDraft{
			Name:                   rule.Name,
			ThresholdTotalSpent:    rule.ThresholdTotalSpent,
			DeliveryDiscountAmount: rule.DeliveryDiscountAmount,
			PercentDiscount:        rule.PercentDiscount,
			Active:                 rule.Active,
		}
		if input.Name != nil {
			draft.Name = strings.TrimSpace(*input.Name)
		}
		if input.ThresholdTotalSpent != nil {
			draft.ThresholdTotalSpent = *input.ThresholdTotalSpent
		}
		if input.DeliveryDiscountAmount != nil {
			draft.DeliveryDiscountAmount = *input.DeliveryDiscountAmount
		}
		if input.PercentDiscount != nil {
			draft.PercentDiscount = *input.PercentDiscount
		}
		if input.Active != nil {
			draft.Active = *input.Active
		}
		if err := draft.validate(); err != nil {
			return err
		}
		if draft.Active {
			if err := ensureThresholdFree(ctx, repo, draft.ThresholdTotalSpent, rule.ID); err != nil {
				return err
			}
		}

		rule.Name = draft.Name
		rule.ThresholdTotalSpent = draft.ThresholdTotalSpent
		rule.DeliveryDiscountAmount = draft.DeliveryDiscountAmount
		rule.PercentDiscount = draft.PercentDiscount
		rule.Active = draft.Active
		if err := repo.SaveRule(ctx, rule); err != nil {
			return mapWriteError(err, "update promo rule")
		}
		updated = newRuleDTO(*rule)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func ensureThresholdFree(ctx context.Context, repo Repository, threshold decimal.Decimal, self uuid.UUID) error {
	existing, err := repo.FindActiveByThreshold(ctx, threshold)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check promo threshold")
	}
	if existing.ID == self {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "an active promo rule already uses this threshold").
		WithDetails(map[string]any{"threshold_total_spent": threshold.StringFixed(2)})
}

func mapWriteError(err error, action string) error {
	if db.IsUniqueViolation(err, activeThresholdConstraint) || db.IsUniqueViolation(err, "") {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "an active promo rule already uses this threshold")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
