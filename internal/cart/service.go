package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/mygros-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/mygros-backend/pkg/errors"
)

// MaxLineQuantity caps a single cart line.
const MaxLineQuantity = 10000

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the server-owned cart of a buyer.
type Service interface {
	Load(ctx context.Context, userID uuid.UUID) (*CartDTO, error)
	AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*CartDTO, error)
	UpdateQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) (*CartDTO, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*CartDTO, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	repo CartRepository
	tx   txRunner
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) Load(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	cart, err := s.repo.FindOrCreate(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return s.snapshot(ctx, s.repo, cart)
}

func (s *service) AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*CartDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if err := checkQuantity(input.Quantity); err != nil {
		return nil, err
	}

	var out *CartDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		product, err := repo.FindProduct(ctx, input.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if !product.Available {
			return pkgerrors.New(pkgerrors.CodeValidation, "product is not available").
				WithDetails(map[string]any{"product_id": product.ID})
		}
		cart, err := repo.FindOrCreate(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if err := repo.AddQuantity(ctx, cart.ID, product.ID, input.Quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add cart item")
		}
		out, err = s.snapshot(ctx, repo, cart)
		if err != nil {
			return err
		}
		for _, line := range out.Items {
			if line.ProductID == product.ID && line.Quantity > MaxLineQuantity {
				return pkgerrors.New(pkgerrors.CodeValidation, "quantity exceeds the line limit").
					WithDetails(map[string]any{"max": MaxLineQuantity})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateQuantity sets a line quantity. A quantity below one removes the line.
func (s *service) UpdateQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) (*CartDTO, error) {
	if quantity < 1 {
		return s.RemoveItem(ctx, userID, productID)
	}
	if err := checkQuantity(quantity); err != nil {
		return nil, err
	}
	return s.mutate(ctx, userID, func(repo CartRepository, cart *models.Cart) error {
		n, err := repo.SetQuantity(ctx, cart.ID, productID, quantity)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
		}
		if n == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not in cart")
		}
		return nil
	})
}

func (s *service) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*CartDTO, error) {
	return s.mutate(ctx, userID, func(repo CartRepository, cart *models.Cart) error {
		n, err := repo.DeleteItem(ctx, cart.ID, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
		}
		if n == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not in cart")
		}
		return nil
	})
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	_, err := s.mutate(ctx, userID, func(repo CartRepository, cart *models.Cart) error {
		if err := repo.ClearItems(ctx, cart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}
		return nil
	})
	return err
}

func (s *service) mutate(ctx context.Context, userID uuid.UUID, fn func(repo CartRepository, cart *models.Cart) error) (*CartDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	var out *CartDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.FindOrCreate(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if err := fn(repo, cart); err != nil {
			return err
		}
		out, err = s.snapshot(ctx, repo, cart)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) snapshot(ctx context.Context, repo CartRepository, cart *models.Cart) (*CartDTO, error) {
	items, err := repo.ListItems(ctx, cart.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart items")
	}
	return newCartDTO(cart, items), nil
}

func checkQuantity(quantity int) error {
	if quantity < 1 || quantity > MaxLineQuantity {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be between 1 and 10000").
			WithDetails(map[string]any{"quantity": quantity})
	}
	return nil
}
