package promo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/mygros-backend/pkg/db"
	"github.com/angelmondragon/mygros-backend/pkg/db/dbtest"
	"github.com/angelmondragon/mygros-backend/pkg/db/models"
	"github.com/angelmondragon/mygros-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mygros-backend/pkg/errors"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn), db.NewFromConn(conn))
	require.NoError(t, err)
	return svc, conn
}

func seedOrder(t *testing.T, conn *gorm.DB, buyerID uuid.UUID, number int64, status enums.OrderStatus, total string) {
	t.Helper()
	amount := decimal.RequireFromString(total)
	order := models.Order{
		OrderNumber:        number,
		BuyerID:            buyerID,
		Status:             status,
		PaymentMethod:      enums.PaymentMethodCard,
		PaymentStatus:      enums.PaymentStatusPending,
		Subtotal:           amount,
		DeliveryFee:        decimal.Zero,
		TotalAmount:        amount,
		DeliveryZone:       enums.DeliveryZoneLocal,
		DeliveryAddress:    "12 rue des Halles",
		DeliveryCity:       "Lyon",
		DeliveryPostalCode: "69001",
		CreatedAt:          time.Now().UTC(),
	}
	require.NoError(t, conn.Create(&order).Error)
}

func TestForBuyerReadsOnlyQualifyingOrders(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	buyer := uuid.New()
	other := uuid.New()

	seedOrder(t, conn, buyer, 1, enums.OrderStatusConfirmed, "200")
	seedOrder(t, conn, buyer, 2, enums.OrderStatusDelivered, "250")
	seedOrder(t, conn, buyer, 3, enums.OrderStatusPending, "700")
	seedOrder(t, conn, buyer, 4, enums.OrderStatusCancelled, "900")
	seedOrder(t, conn, other, 5, enums.OrderStatusDelivered, "5000")

	_, err := svc.CreateRule(ctx, RuleInput{Name: "Bronze", ThresholdTotalSpent: decimal.NewFromInt(100), Active: true})
	require.NoError(t, err)
	_, err = svc.CreateRule(ctx, RuleInput{Name: "Argent", ThresholdTotalSpent: decimal.NewFromInt(500), PercentDiscount: decimal.NewFromInt(5), Active: true})
	require.NoError(t, err)
	_, err = svc.CreateRule(ctx, RuleInput{Name: "Brouillon", ThresholdTotalSpent: decimal.NewFromInt(400), Active: false})
	require.NoError(t, err)

	eval, err := svc.ForBuyer(ctx, buyer)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(450).Equal(eval.Spend))
	require.NotNil(t, eval.Current)
	assert.Equal(t, "Bronze", eval.Current.Name)
	require.NotNil(t, eval.Next)
	assert.Equal(t, "Argent", eval.Next.Name)
	assert.True(t, decimal.NewFromInt(50).Equal(*eval.Remaining))
	assert.Len(t, eval.Tiers, 2)
}

func TestCreateRuleValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := []RuleInput{
		{Name: "", ThresholdTotalSpent: decimal.NewFromInt(10)},
		{Name: "Neg", ThresholdTotalSpent: decimal.NewFromInt(-1)},
		{Name: "Pct", ThresholdTotalSpent: decimal.NewFromInt(10), PercentDiscount: decimal.NewFromInt(101)},
		{Name: "Fee", ThresholdTotalSpent: decimal.NewFromInt(10), DeliveryDiscountAmount: decimal.NewFromInt(-5)},
	}
	for _, input := range cases {
		_, err := svc.CreateRule(ctx, input)
		require.Error(t, err)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), input.Name)
	}
}

func TestCreateRuleDuplicateActiveThreshold(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateRule(ctx, RuleInput{Name: "Bronze", ThresholdTotalSpent: decimal.NewFromInt(100), Active: true})
	require.NoError(t, err)

	_, err = svc.CreateRule(ctx, RuleInput{Name: "Bronze bis", ThresholdTotalSpent: decimal.NewFromInt(100), Active: true})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	_, err = svc.CreateRule(ctx, RuleInput{Name: "Bronze archive", ThresholdTotalSpent: decimal.NewFromInt(100), Active: false})
	require.NoError(t, err)
}

func TestUpdateRule(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	bronze, err := svc.CreateRule(ctx, RuleInput{Name: "Bronze", ThresholdTotalSpent: decimal.NewFromInt(100), Active: true})
	require.NoError(t, err)
	argent, err := svc.CreateRule(ctx, RuleInput{Name: "Argent", ThresholdTotalSpent: decimal.NewFromInt(500), Active: true})
	require.NoError(t, err)

	pct := decimal.NewFromInt(3)
	updated, err := svc.UpdateRule(ctx, bronze.ID, RuleUpdate{PercentDiscount: &pct})
	require.NoError(t, err)
	assert.True(t, pct.Equal(updated.PercentDiscount))
	assert.Equal(t, "Bronze", updated.Name)

	clash := decimal.NewFromInt(100)
	_, err = svc.UpdateRule(ctx, argent.ID, RuleUpdate{ThresholdTotalSpent: &clash})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	off := false
	deactivated, err := svc.UpdateRule(ctx, argent.ID, RuleUpdate{Active: &off})
	require.NoError(t, err)
	assert.False(t, deactivated.Active)

	active, err := svc.ListRules(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, bronze.ID, active[0].ID)

	all, err := svc.ListRules(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = svc.UpdateRule(ctx, uuid.New(), RuleUpdate{Active: &off})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestNewServiceRequiresDeps(t *testing.T) {
	_, err := NewService(nil, nil)
	assert.Error(t, err)
}
