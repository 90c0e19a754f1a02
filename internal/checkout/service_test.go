package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/mygros-backend/internal/cart"
	"github.com/angelmondragon/mygros-backend/internal/orders"
	"github.com/angelmondragon/mygros-backend/pkg/config"
	"github.com/angelmondragon/mygros-backend/pkg/db"
	"github.com/angelmondragon/mygros-backend/pkg/db/dbtest"
	"github.com/angelmondragon/mygros-backend/pkg/db/models"
	"github.com/angelmondragon/mygros-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mygros-backend/pkg/errors"
	"github.com/angelmondragon/mygros-backend/pkg/outbox"
)

type discardOutbox struct{ emitted int }

func (d *discardOutbox) Emit(context.Context, *gorm.DB, outbox.DomainEvent) error {
	d.emitted++
	return nil
}

type fixture struct {
	conn   *gorm.DB
	cart   cart.Service
	svc    Service
	outbox *discardOutbox
}

func newFixture(t *testing.T, locker buyerLocker) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	client := db.NewFromConn(conn)
	schedule, err := orders.NewSchedule(config.DeliveryConfig{
		LocalFee:              "8",
		LocalFreeThreshold:    "200",
		LocalCarrier:          "internal",
		NationalFee:           "15",
		NationalFreeThreshold: "0",
		NationalCarrier:       "colissimo",
	})
	require.NoError(t, err)

	f := &fixture{conn: conn, outbox: &discardOutbox{}}
	orderSvc, err := orders.NewService(orders.NewRepository(conn), client, f.outbox, schedule, nil)
	require.NoError(t, err)
	carts := cart.NewRepository(conn)
	f.cart, err = cart.NewService(carts, client)
	require.NoError(t, err)
	f.svc, err = NewService(client, carts, orderSvc, locker)
	require.NoError(t, err)
	return f
}

func (f *fixture) product(t *testing.T, name, price string) models.Product {
	t.Helper()
	p := models.Product{Name: name, PricePerUnit: decimal.RequireFromString(price), Unit: "kg", MOQ: 1, Available: true}
	require.NoError(t, f.conn.Create(&p).Error)
	return p
}

func checkoutInput() Input {
	return Input{
		Zone:          enums.DeliveryZoneLocal,
		PaymentMethod: enums.PaymentMethodCard,
		Address: orders.DeliveryAddress{
			Address:    "8 boulevard Longchamp",
			City:       "Marseille",
			PostalCode: "13001",
		},
	}
}

func TestExecutePlacesOrderAndClearsCart(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	buyer := Buyer{UserID: uuid.New()}
	olives := f.product(t, "Olives cassées", "12.00")
	feta := f.product(t, "Feta AOP", "9.50")

	_, err := f.cart.AddItem(ctx, buyer.UserID, cart.AddItemInput{ProductID: olives.ID, Quantity: 5})
	require.NoError(t, err)
	_, err = f.cart.AddItem(ctx, buyer.UserID, cart.AddItemInput{ProductID: feta.ID, Quantity: 2})
	require.NoError(t, err)

	// A later catalogue change must not affect the snapshotted order.
	order, err := f.svc.Execute(ctx, buyer, checkoutInput())
	require.NoError(t, err)
	require.NoError(t, f.conn.Model(&models.Product{}).Where("id = ?", olives.ID).Update("price_per_unit", decimal.NewFromInt(99)).Error)

	assert.Equal(t, int64(1), order.OrderNumber)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Equal(t, enums.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, "79.00", order.Subtotal.StringFixed(2))
	assert.Equal(t, "8.00", order.DeliveryFee.StringFixed(2))
	assert.Equal(t, "87.00", order.TotalAmount.StringFixed(2))
	require.Len(t, order.Items, 2)
	assert.Equal(t, 1, f.outbox.emitted)

	var item models.OrderItem
	require.NoError(t, f.conn.Where("order_id = ? AND product_id = ?", order.ID, olives.ID).First(&item).Error)
	assert.Equal(t, "12.00", item.UnitPrice.StringFixed(2))

	emptied, err := f.cart.Load(ctx, buyer.UserID)
	require.NoError(t, err)
	assert.Empty(t, emptied.Items)
}

func TestExecuteEmptyCart(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Execute(context.Background(), Buyer{UserID: uuid.New()}, checkoutInput())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	var count int64
	require.NoError(t, f.conn.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestExecuteRollsBackOnInvalidAddress(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	buyer := Buyer{UserID: uuid.New()}
	p := f.product(t, "Riz basmati", "30")
	_, err := f.cart.AddItem(ctx, buyer.UserID, cart.AddItemInput{ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)

	input := checkoutInput()
	input.Address.City = ""
	_, err = f.svc.Execute(ctx, buyer, input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	still, err := f.cart.Load(ctx, buyer.UserID)
	require.NoError(t, err)
	assert.Len(t, still.Items, 1)
}

func TestExecuteRejectsUnavailableProduct(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	buyer := Buyer{UserID: uuid.New()}
	p := f.product(t, "Harissa", "4")
	_, err := f.cart.AddItem(ctx, buyer.UserID, cart.AddItemInput{ProductID: p.ID, Quantity: 3})
	require.NoError(t, err)
	require.NoError(t, f.conn.Model(&models.Product{}).Where("id = ?", p.ID).Update("available", false).Error)

	_, err = f.svc.Execute(ctx, buyer, checkoutInput())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

type memoryLockStore struct {
	keys     map[string]bool
	released []string
	failWith error
}

func (m *memoryLockStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if m.failWith != nil {
		return false, m.failWith
	}
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memoryLockStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.keys, k)
		m.released = append(m.released, k)
	}
	return nil
}

func (m *memoryLockStore) CartLockKey(userID string) string {
	return "lock:checkout:" + userID
}

func TestExecuteHoldsBuyerLock(t *testing.T) {
	store := &memoryLockStore{keys: map[string]bool{}}
	f := newFixture(t, NewRedisLocker(store, time.Second))
	ctx := context.Background()
	buyer := Buyer{UserID: uuid.New()}
	p := f.product(t, "Thé vert", "18")
	_, err := f.cart.AddItem(ctx, buyer.UserID, cart.AddItemInput{ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)

	store.keys[store.CartLockKey(buyer.UserID.String())] = true
	_, err = f.svc.Execute(ctx, buyer, checkoutInput())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	delete(store.keys, store.CartLockKey(buyer.UserID.String()))
	_, err = f.svc.Execute(ctx, buyer, checkoutInput())
	require.NoError(t, err)
	assert.Equal(t, []string{store.CartLockKey(buyer.UserID.String())}, store.released)
	assert.Empty(t, store.keys)
}

func TestRedisLockerDependencyError(t *testing.T) {
	locker := NewRedisLocker(&memoryLockStore{failWith: errors.New("connection refused")}, 0)
	_, err := locker.Lock(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}
