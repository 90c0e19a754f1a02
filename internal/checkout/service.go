package checkout

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/mygros-backend/internal/cart"
	"github.com/angelmondragon/mygros-backend/internal/orders"
	"github.com/angelmondragon/mygros-backend/pkg/db/models"
	"github.com/angelmondragon/mygros-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mygros-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderPlacer interface {
	Place(ctx context.Context, tx *gorm.DB, input orders.PlaceInput) (*models.Order, error)
}

type buyerLocker interface {
	Lock(ctx context.Context, userID uuid.UUID) (func(), error)
}

// Buyer is the authenticated customer checking out.
type Buyer struct {
	UserID    uuid.UUID
	CompanyID *uuid.UUID
}

// Input is the delivery and payment choice made at checkout.
type Input struct {
	Zone          enums.DeliveryZone
	Address       orders.DeliveryAddress
	PaymentMethod enums.PaymentMethod
	TimeSlot      *enums.TimeSlot
	Notes         *string
}

// Service turns a buyer's cart into an order.
type Service interface {
	Execute(ctx context.Context, buyer Buyer, input Input) (*orders.OrderDTO, error)
}

type service struct {
	tx     txRunner
	carts  cart.CartRepository
	orders orderPlacer
	locker buyerLocker
}

// NewService builds the checkout service. locker may be nil when a single
// API instance runs.
func NewService(tx txRunner, carts cart.CartRepository, placer orderPlacer, locker buyerLocker) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if placer == nil {
		return nil, fmt.Errorf("order placer required")
	}
	return &service{tx: tx, carts: carts, orders: placer, locker: locker}, nil
}

// Execute loads the cart, snapshots catalogue prices, places the order and
// empties the cart in one transaction.
func (s *service) Execute(ctx context.Context, buyer Buyer, input Input) (*orders.OrderDTO, error) {
	if buyer.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if s.locker != nil {
		release, err := s.locker.Lock(ctx, buyer.UserID)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	var placed *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		carts := s.carts.WithTx(tx)
		record, err := carts.FindOrCreate(ctx, buyer.UserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		items, err := carts.ListItems(ctx, record.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart items")
		}
		if len(items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		lines := make([]orders.LineInput, 0, len(items))
		var unavailable []uuid.UUID
		for _, item := range items {
			if item.Product == nil || !item.Product.Available {
				unavailable = append(unavailable, item.ProductID)
				continue
			}
			lines = append(lines, orders.LineInput{
				ProductID:   item.ProductID,
				ProductName: item.Product.Name,
				Quantity:    item.Quantity,
				UnitPrice:   item.Product.PricePerUnit,
			})
		}
		if len(unavailable) > 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart contains unavailable products").
				WithDetails(map[string]any{"product_ids": unavailable})
		}

		order, err := s.orders.Place(ctx, tx, orders.PlaceInput{
			BuyerID:       buyer.UserID,
			CompanyID:     buyer.CompanyID,
			Lines:         lines,
			Zone:          input.Zone,
			Address:       input.Address,
			PaymentMethod: input.PaymentMethod,
			TimeSlot:      input.TimeSlot,
			Notes:         input.Notes,
		})
		if err != nil {
			return err
		}
		if err := carts.ClearItems(ctx, record.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}
		placed = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := orders.NewOrderDTO(*placed)
	return &dto, nil
}
