package orders

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
	"github.com/angelmondragon/mygros-backend/pkg/outbox"
	"github.com/angelmondragon/mygros-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/mygros-backend/pkg/pagination"
)

type recordingOutbox struct {
	events []outbox.DomainEvent
	err    error
}

func (r *recordingOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

type countingMetrics struct {
	placed    int
	decisions []string
}

func (c *countingMetrics) OrderPlaced() { c.placed++ }
func (c *countingMetrics) OrderDecided(decision string) { c.decisions = append(c.decisions, decision) }

type fixture struct {
	conn    *gorm.DB
	svc     Service
	outbox  *recordingOutbox
	metrics *countingMetrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	f := &fixture{conn: conn, outbox: &recordingOutbox{}, metrics: &countingMetrics{}}
	svc, err := NewService(NewRepository(conn), db.NewFromConn(conn), f.outbox, defaultSchedule(t), f.metrics)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func placeInput(buyer uuid.UUID, zone enums.DeliveryZone, lines ...LineInput) PlaceInput {
	return PlaceInput{
		BuyerID:       buyer,
		Lines:         lines,
		Zone:          zone,
		PaymentMethod: enums.PaymentMethodCredit30,
		Address: DeliveryAddress{
			Address:    "4 quai Saint-Antoine",
			City:       "Lyon",
			PostalCode: "69002",
		},
	}
}

func line(name string, qty int, price string) LineInput {
	return LineInput{ProductID: uuid.New(), ProductName: name, Quantity: qty, UnitPrice: money(price)}
}

func TestCreateOrderLocalFreeShipping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := uuid.New()

	dto, err := f.svc.Create(ctx, placeInput(buyer, enums.DeliveryZoneLocal,
		line("Olives Kalamata 5kg", 10, "12.50"),
		line("Huile d'olive 5L", 5, "19"),
	))
	require.NoError(t, err)

	assert.Equal(t, int64(1), dto.OrderNumber)
	assert.Equal(t, enums.OrderStatusPending, dto.Status)
	assert.Equal(t, enums.PaymentStatusCredit30, dto.PaymentStatus)
	assert.Equal(t, "220.00", dto.Subtotal.StringFixed(2))
	assert.Equal(t, "0.00", dto.DeliveryFee.StringFixed(2))
	assert.Equal(t, "220.00", dto.TotalAmount.StringFixed(2))
	require.Len(t, dto.Items, 2)
	assert.Equal(t, "125.00", dto.Items[0].Subtotal.StringFixed(2))
	require.NotNil(t, dto.Tracking)
	assert.Equal(t, enums.TrackingStatusPending, dto.Tracking.Status)
	assert.Equal(t, "En attente", dto.Tracking.Label)
	assert.Equal(t, "internal", dto.Tracking.Carrier)

	var stored models.Order
	require.NoError(t, f.conn.Preload("Items").Preload("Tracking").First(&stored, "id = ?", dto.ID).Error)
	assert.True(t, stored.TotalAmount.Equal(stored.Subtotal.Add(stored.DeliveryFee)))
	assert.Len(t, stored.Items, 2)
	require.NotNil(t, stored.Tracking)

	require.Len(t, f.outbox.events, 1)
	event := f.outbox.events[0]
	assert.Equal(t, enums.EventOrderCreated, event.EventType)
	assert.Equal(t, enums.AggregateOrder, event.AggregateType)
	payload, ok := event.Data.(payloads.OrderCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, 2, payload.ItemCount)
	assert.Equal(t, 1, f.metrics.placed)
}

func TestCreateOrderNationalFee(t *testing.T) {
	f := newFixture(t)
	dto, err := f.svc.Create(context.Background(), placeInput(uuid.New(), enums.DeliveryZoneNational, line("Pois chiches", 6, "25")))
	require.NoError(t, err)
	assert.Equal(t, "150.00", dto.Subtotal.StringFixed(2))
	assert.Equal(t, "15.00", dto.DeliveryFee.StringFixed(2))
	assert.Equal(t, "165.00", dto.TotalAmount.StringFixed(2))
	assert.Equal(t, "colissimo", dto.Tracking.Carrier)
}

func TestCreateOrderNumbersIncrease(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for want := int64(1); want <= 3; want++ {
		dto, err := f.svc.Create(ctx, placeInput(uuid.New(), enums.DeliveryZoneLocal, line("Sel", 1, "2")))
		require.NoError(t, err)
		assert.Equal(t, want, dto.OrderNumber)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := uuid.New()

	noAddress := placeInput(buyer, enums.DeliveryZoneLocal, line("Sel", 1, "2"))
	noAddress.Address.Address = "  "
	badPayment := placeInput(buyer, enums.DeliveryZoneLocal, line("Sel", 1, "2"))
	badPayment.PaymentMethod = "cheque"

	cases := map[string]PlaceInput{
		"empty lines":     placeInput(buyer, enums.DeliveryZoneLocal),
		"zero quantity":   placeInput(buyer, enums.DeliveryZoneLocal, line("Sel", 0, "2")),
		"negative price":  placeInput(buyer, enums.DeliveryZoneLocal, line("Sel", 1, "-2")),
		"unknown zone":    placeInput(buyer, "international", line("Sel", 1, "2")),
		"missing address": noAddress,
		"unknown payment": badPayment,
	}
	for name, input := range cases {
		_, err := f.svc.Create(ctx, input)
		require.Error(t, err, name)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), name)
	}

	var count int64
	require.NoError(t, f.conn.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, f.outbox.events)
}

func TestCreateOrderRollsBackWhenOutboxFails(t *testing.T) {
	f := newFixture(t)
	f.outbox.err = assert.AnError

	_, err := f.svc.Create(context.Background(), placeInput(uuid.New(), enums.DeliveryZoneLocal, line("Sel", 1, "2")))
	require.Error(t, err)

	var orders, tracking int64
	require.NoError(t, f.conn.Model(&models.Order{}).Count(&orders).Error)
	require.NoError(t, f.conn.Model(&models.DeliveryTracking{}).Count(&tracking).Error)
	assert.Zero(t, orders)
	assert.Zero(t, tracking)
}

func TestValidateApproveCascadesTracking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	placed, err := f.svc.Create(ctx, placeInput(uuid.New(), enums.DeliveryZoneLocal, line("Câpres", 2, "9.90")))
	require.NoError(t, err)
	reviewer := uuid.New()

	dto, err := f.svc.Validate(ctx, ValidateInput{OrderID: placed.ID, ReviewerID: reviewer, Decision: enums.OrderDecisionApprove})
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusConfirmed, dto.Status)
	require.NotNil(t, dto.ValidatedBy)
	assert.Equal(t, reviewer, *dto.ValidatedBy)
	assert.NotNil(t, dto.ValidatedAt)
	require.NotNil(t, dto.Tracking)
	assert.Equal(t, enums.TrackingStatusConfirmed, dto.Tracking.Status)
	assert.Equal(t, 1, dto.Tracking.Step)

	last := f.outbox.events[len(f.outbox.events)-1]
	assert.Equal(t, enums.EventOrderValidated, last.EventType)
	payload := last.Data.(payloads.OrderValidatedEvent)
	assert.Equal(t, enums.OrderDecisionApprove, payload.Decision)
	require.NotNil(t, last.Actor)
	assert.Equal(t, enums.RoleAdmin, last.Actor.Role)
	assert.Equal(t, []string{"approve"}, f.metrics.decisions)

	_, err = f.svc.Validate(ctx, ValidateInput{OrderID: placed.ID, ReviewerID: reviewer, Decision: enums.OrderDecisionReject, Note: ptr("trop tard")})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition))
}

func TestValidateRejectRequiresNote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	placed, err := f.svc.Create(ctx, placeInput(uuid.New(), enums.DeliveryZoneLocal, line("Câpres", 2, "9.90")))
	require.NoError(t, err)

	_, err = f.svc.Validate(ctx, ValidateInput{OrderID: placed.ID, ReviewerID: uuid.New(), Decision: enums.OrderDecisionReject, Note: ptr("   ")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	dto, err := f.svc.Validate(ctx, ValidateInput{OrderID: placed.ID, ReviewerID: uuid.New(), ReviewerRole: enums.RoleCommercial, Decision: enums.OrderDecisionReject, Note: ptr("Rupture de stock")})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, dto.Status)
	require.NotNil(t, dto.AdminNote)
	assert.Equal(t, "Rupture de stock", *dto.AdminNote)
	assert.Equal(t, enums.TrackingStatusPending, dto.Tracking.Status)

	last := f.outbox.events[len(f.outbox.events)-1]
	require.NotNil(t, last.Actor)
	assert.Equal(t, enums.RoleCommercial, last.Actor.Role)
}

func TestValidateUnknownOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Validate(context.Background(), ValidateInput{OrderID: uuid.New(), ReviewerID: uuid.New(), Decision: enums.OrderDecisionApprove})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestGetEnforcesOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := uuid.New()
	placed, err := f.svc.Create(ctx, placeInput(buyer, enums.DeliveryZoneLocal, line("Sel", 1, "2")))
	require.NoError(t, err)

	own, err := f.svc.Get(ctx, Viewer{UserID: buyer, Role: enums.RoleBuyer}, placed.ID)
	require.NoError(t, err)
	assert.Len(t, own.Items, 1)

	_, err = f.svc.Get(ctx, Viewer{UserID: uuid.New(), Role: enums.RoleBuyer}, placed.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.Get(ctx, Viewer{UserID: uuid.New(), Role: enums.RoleAdmin}, placed.ID)
	assert.NoError(t, err)
}

func TestListForBuyerPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := uuid.New()
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		seed(t, f.conn, buyer, int64(i+1), enums.OrderStatusPending, "10", base.Add(time.Duration(i)*time.Minute))
	}
	seed(t, f.conn, uuid.New(), 9, enums.OrderStatusPending, "10", base)

	first, err := f.svc.ListForBuyer(ctx, buyer, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Orders, 2)
	assert.Equal(t, int64(3), first.Orders[0].OrderNumber)
	assert.Equal(t, int64(2), first.Orders[1].OrderNumber)
	require.NotEmpty(t, first.NextCursor)

	second, err := f.svc.ListForBuyer(ctx, buyer, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Orders, 1)
	assert.Equal(t, int64(1), second.Orders[0].OrderNumber)
	assert.Empty(t, second.NextCursor)

	_, err = f.svc.ListForBuyer(ctx, buyer, pagination.Params{Cursor: "%%%"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestListAllFiltersByStatus(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC()
	seed(t, f.conn, uuid.New(), 1, enums.OrderStatusPending, "10", now)
	seed(t, f.conn, uuid.New(), 2, enums.OrderStatusConfirmed, "10", now.Add(time.Second))

	status := enums.OrderStatusPending
	list, err := f.svc.ListAll(context.Background(), pagination.Params{}, AdminListFilters{Status: &status})
	require.NoError(t, err)
	require.Len(t, list.Orders, 1)
	assert.Equal(t, int64(1), list.Orders[0].OrderNumber)

	all, err := f.svc.ListAll(context.Background(), pagination.Params{}, AdminListFilters{})
	require.NoError(t, err)
	assert.Len(t, all.Orders, 2)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	olives := models.Category{Name: "Olives & Condiments", Slug: "olives", Active: true}
	epicerie := models.Category{Name: "Épicerie sèche", Slug: "epicerie", Active: true}
	require.NoError(t, f.conn.Create(&olives).Error)
	require.NoError(t, f.conn.Create(&epicerie).Error)
	olive := models.Product{Name: "Olives vertes", CategoryID: &olives.ID, PricePerUnit: money("10"), Unit: "kg", MOQ: 1, Available: true}
	rice := models.Product{Name: "Riz basmati", CategoryID: &epicerie.ID, PricePerUnit: money("4"), Unit: "kg", MOQ: 1, Available: true}
	require.NoError(t, f.conn.Create(&olive).Error)
	require.NoError(t, f.conn.Create(&rice).Error)

	input := placeInput(uuid.New(), enums.DeliveryZoneNational,
		LineInput{ProductID: olive.ID, ProductName: olive.Name, Quantity: 3, UnitPrice: money("10")},
		LineInput{ProductID: rice.ID, ProductName: rice.Name, Quantity: 5, UnitPrice: money("4")},
	)
	kept, err := f.svc.Create(ctx, input)
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, input)
	require.NoError(t, err)
	dropped, err := f.svc.Create(ctx, input)
	require.NoError(t, err)
	_, err = f.svc.Validate(ctx, ValidateInput{OrderID: kept.ID, ReviewerID: uuid.New(), Decision: enums.OrderDecisionApprove})
	require.NoError(t, err)
	_, err = f.svc.Validate(ctx, ValidateInput{OrderID: dropped.ID, ReviewerID: uuid.New(), Decision: enums.OrderDecisionReject, Note: ptr("doublon")})
	require.NoError(t, err)

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	// two live orders of 50 + 15 delivery each
	assert.Equal(t, "130.00", stats.TotalRevenue.StringFixed(2))
	assert.Equal(t, "60.00", stats.OlivesRevenue.StringFixed(2))
	assert.Equal(t, "40.00", stats.EpicerieRevenue.StringFixed(2))
	assert.Equal(t, int64(1), stats.PendingOrders)
}

func TestNewServiceRequiresDeps(t *testing.T) {
	_, err := NewService(nil, nil, nil, nil, nil)
	assert.Error(t, err)
}

func seed(t *testing.T, conn *gorm.DB, buyer uuid.UUID, number int64, status enums.OrderStatus, total string, createdAt time.Time) {
	t.Helper()
	amount := money(total)
	order := models.Order{
		OrderNumber:        number,
		BuyerID:            buyer,
		Status:             status,
		PaymentMethod:      enums.PaymentMethodCard,
		PaymentStatus:      enums.PaymentStatusPending,
		Subtotal:           amount,
		DeliveryFee:        decimal.Zero,
		TotalAmount:        amount,
		DeliveryZone:       enums.DeliveryZoneLocal,
		DeliveryAddress:    "1 rue Mercière",
		DeliveryCity:       "Lyon",
		DeliveryPostalCode: "69002",
		CreatedAt:          createdAt,
		UpdatedAt:          createdAt,
	}
	require.NoError(t, conn.Create(&order).Error)
}

func ptr[T any](v T) *T {
	return &v
}
