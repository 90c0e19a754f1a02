package tracking

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/mygros-backend/internal/orders"
	"github.com/angelmondragon/mygros-backend/pkg/config"
	"github.com/angelmondragon/mygros-backend/pkg/db"
	"github.com/angelmondragon/mygros-backend/pkg/db/models"
	"github.com/angelmondragon/mygros-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mygros-backend/pkg/errors"
)

func newOrders(t *testing.T, f *fixture) orders.Service {
	t.Helper()
	schedule, err := orders.NewSchedule(config.DeliveryConfig{
		LocalFee:              "8",
		LocalFreeThreshold:    "200",
		LocalCarrier:          "internal",
		NationalFee:           "15",
		NationalFreeThreshold: "0",
		NationalCarrier:       "colissimo",
	})
	require.NoError(t, err)
	svc, err := orders.NewService(orders.NewRepository(f.conn), db.NewFromConn(f.conn), f.outbox, schedule, nil)
	require.NoError(t, err)
	return svc
}

// placeOrder creates a 73.50€ local order and returns it with its tracking id.
func (f *fixture) placeOrder(t *testing.T, svc orders.Service) (*orders.OrderDTO, uuid.UUID) {
	t.Helper()
	placed, err := svc.Create(context.Background(), orders.PlaceInput{
		BuyerID: uuid.New(),
		Lines: []orders.LineInput{
			{ProductID: uuid.New(), ProductName: "Olives Lucques", Quantity: 3, UnitPrice: decimal.RequireFromString("24.50")},
		},
		Zone:          enums.DeliveryZoneLocal,
		PaymentMethod: enums.PaymentMethodCredit30,
		Address: orders.DeliveryAddress{
			Address:    "8 cours Julien",
			City:       "Marseille",
			PostalCode: "13006",
		},
	})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPending, placed.Status)

	var tracking models.DeliveryTracking
	require.NoError(t, f.conn.Where("order_id = ?", placed.ID).First(&tracking).Error)
	require.Equal(t, enums.TrackingStatusPending, tracking.Status)
	return placed, tracking.ID
}

func (f *fixture) storedOrder(t *testing.T, id uuid.UUID) models.Order {
	t.Helper()
	var o models.Order
	require.NoError(t, f.conn.First(&o, "id = ?", id).Error)
	return o
}

func eventTypes(f *fixture) []enums.OutboxEventType {
	out := make([]enums.OutboxEventType, 0, len(f.outbox.events))
	for _, e := range f.outbox.events {
		out = append(out, e.EventType)
	}
	return out
}

func TestOrderLifecycleAdminDeliversStraightFromPending(t *testing.T) {
	f := newFixture(t, config.TrackingConfig{Policy: "strict", AdminOverride: true})
	ctx := context.Background()
	placed, trackingID := f.placeOrder(t, newOrders(t, f))

	dto, err := f.svc.AdvanceStatus(ctx, AdvanceInput{TrackingID: trackingID, Status: enums.TrackingStatusDelivered, Actor: f.admin})
	require.NoError(t, err)
	assert.Equal(t, enums.TrackingStatusDelivered, dto.Status)

	stored := f.storedOrder(t, placed.ID)
	assert.Equal(t, enums.OrderStatusDelivered, stored.Status)
	require.NotNil(t, stored.ValidatedBy)
	assert.Equal(t, f.admin.UserID, *stored.ValidatedBy)
	assert.True(t, stored.TotalAmount.Equal(stored.Subtotal.Add(stored.DeliveryFee)))

	assert.Equal(t, []enums.OutboxEventType{
		enums.EventOrderCreated,
		enums.EventOrderValidated,
		enums.EventTrackingStatusChanged,
	}, eventTypes(f))
}

func TestOrderLifecycleValidateThenDriverWalk(t *testing.T) {
	f := newFixture(t, config.TrackingConfig{Policy: "strict"})
	ctx := context.Background()
	svc := newOrders(t, f)
	placed, trackingID := f.placeOrder(t, svc)

	_, err := f.svc.AdvanceStatus(ctx, AdvanceInput{TrackingID: trackingID, Status: enums.TrackingStatusConfirmed, Actor: f.driver})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	validated, err := svc.Validate(ctx, orders.ValidateInput{OrderID: placed.ID, ReviewerID: f.admin.UserID, Decision: enums.OrderDecisionApprove})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusConfirmed, validated.Status)

	_, err = f.svc.AssignDriver(ctx, AssignInput{TrackingID: trackingID, DriverID: f.driver.UserID, AdminID: f.admin.UserID})
	require.NoError(t, err)

	walk := []struct {
		step  enums.TrackingStatus
		order enums.OrderStatus
	}{
		{enums.TrackingStatusPreparing, enums.OrderStatusProcessing},
		{enums.TrackingStatusOutForDelivery, enums.OrderStatusShipped},
		{enums.TrackingStatusDelivered, enums.OrderStatusDelivered},
	}
	for _, w := range walk {
		_, err := f.svc.AdvanceStatus(ctx, AdvanceInput{TrackingID: trackingID, Status: w.step, Actor: f.driver})
		require.NoError(t, err, w.step)
		assert.Equal(t, w.order, f.orderStatus(t, placed.ID))
	}

	stored := f.storedOrder(t, placed.ID)
	require.NotNil(t, stored.ValidatedBy)
	assert.Equal(t, f.admin.UserID, *stored.ValidatedBy)
	assert.Equal(t, []enums.OutboxEventType{
		enums.EventOrderCreated,
		enums.EventOrderValidated,
		enums.EventDriverAssigned,
		enums.EventTrackingStatusChanged,
		enums.EventTrackingStatusChanged,
		enums.EventTrackingStatusChanged,
	}, eventTypes(f))
}

func TestOrderLifecycleRejectedOrderStaysParked(t *testing.T) {
	f := newFixture(t, config.TrackingConfig{Policy: "permissive"})
	ctx := context.Background()
	svc := newOrders(t, f)
	placed, trackingID := f.placeOrder(t, svc)

	note := "Client injoignable"
	_, err := svc.Validate(ctx, orders.ValidateInput{OrderID: placed.ID, ReviewerID: f.admin.UserID, Decision: enums.OrderDecisionReject, Note: &note})
	require.NoError(t, err)

	_, err = f.svc.AdvanceStatus(ctx, AdvanceInput{TrackingID: trackingID, Status: enums.TrackingStatusDelivered, Actor: f.admin})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition))
	assert.Equal(t, enums.OrderStatusCancelled, f.orderStatus(t, placed.ID))
}
