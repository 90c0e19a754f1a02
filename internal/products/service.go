package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/mygros-backend/pkg/db"
	"github.com/angelmondragon/mygros-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/mygros-backend/pkg/errors"
	"github.com/angelmondragon/mygros-backend/pkg/pagination"
)

const skuConstraint = "ux_products_sku"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes the catalogue and its admin management.
type Service interface {
	List(ctx context.Context, input ListInput) (*ListResult, error)
	Get(ctx context.Context, id uuid.UUID, includeInactive bool) (*ProductDTO, error)
	ListCategories(ctx context.Context, includeInactive bool) ([]CategoryDTO, error)
	Create(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
	AddImage(ctx context.Context, productID uuid.UUID, url string) (*ProductDTO, error)
}

type service struct {
	repo *Repository
	tx   txRunner
}

func NewService(repo *Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	if _, err := pagination.ParseCursor(input.Pagination.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if slug := strings.TrimSpace(input.Filters.CategorySlug); slug != "" && input.Filters.CategoryID == nil {
		category, err := s.repo.FindCategoryBySlug(ctx, slug)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &ListResult{Products: []ProductDTO{}}, nil
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve category")
		}
		input.Filters.CategoryID = &category.ID
	}

	rows, next, err := s.repo.List(ctx, input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	out := &ListResult{Products: make([]ProductDTO, 0, len(rows))}
	for _, row := range rows {
		out.Products = append(out.Products, newProductDTO(row))
	}
	if next != nil {
		out.NextCursor = pagination.EncodeCursor(*next)
	}
	return out, nil
}

// Get returns one product. Unavailable products are hidden unless
// includeInactive is set.
func (s *service) Get(ctx context.Context, id uuid.UUID, includeInactive bool) (*ProductDTO, error) {
	p, err := s.find(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	if !p.Available && !includeInactive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	dto := newProductDTO(*p)
	return &dto, nil
}

func (s *service) ListCategories(ctx context.Context, includeInactive bool) ([]CategoryDTO, error) {
	rows, err := s.repo.ListCategories(ctx, !includeInactive)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	out := make([]CategoryDTO, 0, len(rows))
	for _, c := range rows {
		out = append(out, newCategoryDTO(c))
	}
	return out, nil
}

func (s *service) Create(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	unit := strings.TrimSpace(input.Unit)
	if unit == "" {
		unit = "kg"
	}
	moq := input.MOQ
	if moq == 0 {
		moq = 1
	}

	var created *models.Product
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := s.ensureCategory(ctx, repo, input.CategoryID); err != nil {
			return err
		}
		p := &models.Product{
			SupplierID:    input.SupplierID,
			CategoryID:    input.CategoryID,
			Name:          strings.TrimSpace(input.Name),
			Description:   input.Description,
			SKU:           input.SKU,
			PricePerUnit:  input.PricePerUnit.Round(2),
			Unit:          unit,
			MOQ:           moq,
			StockQuantity: input.StockQuantity,
			Available:     input.Available,
			Featured:      input.Featured,
			OriginCountry: input.OriginCountry,
		}
		if err := repo.Create(ctx, p); err != nil {
			return mapWriteError(err, "create product")
		}
		for i, url := range input.ImageURLs {
			img := &models.ProductImage{ProductID: p.ID, URL: strings.TrimSpace(url), DisplayOrder: i}
			if err := repo.AddImage(ctx, img); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add product image")
			}
		}
		found, err := s.find(ctx, repo, p.ID)
		if err != nil {
			return err
		}
		created = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := newProductDTO(*created)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	updates, err := input.updates()
	if err != nil {
		return nil, err
	}

	var updated *models.Product
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := s.ensureCategory(ctx, repo, input.CategoryID); err != nil {
			return err
		}
		n, err := repo.Update(ctx, id, updates)
		if err != nil {
			return mapWriteError(err, "update product")
		}
		if n == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		updated, err = s.find(ctx, repo, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	dto := newProductDTO(*updated)
	return &dto, nil
}

// Delete removes a product with its images. Products already ordered are
// kept; they should be marked unavailable instead.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := s.repo.WithTx(tx).Delete(ctx, id)
		if err != nil {
			if db.IsForeignKeyViolation(err) {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "product is referenced by orders")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
		}
		if n == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil
	})
}

func (s *service) AddImage(ctx context.Context, productID uuid.UUID, url string) (*ProductDTO, error) {
	if !validImageURL(url) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "image url must be http(s)")
	}
	var out *models.Product
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.find(ctx, repo, productID); err != nil {
			return err
		}
		order, err := repo.NextImageOrder(ctx, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count product images")
		}
		img := &models.ProductImage{ProductID: productID, URL: strings.TrimSpace(url), DisplayOrder: order}
		if err := repo.AddImage(ctx, img); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add product image")
		}
		out, err = s.find(ctx, repo, productID)
		return err
	})
	if err != nil {
		return nil, err
	}
	dto := newProductDTO(*out)
	return &dto, nil
}

func (s *service) find(ctx context.Context, repo *Repository, id uuid.UUID) (*models.Product, error) {
	p, err := repo.Find(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return p, nil
}

func (s *service) ensureCategory(ctx context.Context, repo *Repository, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	ok, err := repo.CategoryExists(ctx, *id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check category")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, "category not found").
			WithDetails(map[string]any{"category_id": *id})
	}
	return nil
}

func mapWriteError(err error, action string) error {
	if db.IsUniqueViolation(err, skuConstraint) || db.IsUniqueViolation(err, "products.sku") {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "sku already in use")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
