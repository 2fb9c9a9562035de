package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/checkoutcore/internal/domain"
	"github.com/utafrali/checkoutcore/internal/repository"
	apperrors "github.com/utafrali/checkoutcore/pkg/errors"
	"github.com/utafrali/checkoutcore/pkg/pagination"
	"github.com/utafrali/checkoutcore/pkg/validator"
)

// CatalogService administers the products held by the inventory store.
type CatalogService struct {
	inventory repository.InventoryStore
	logger    *slog.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(inventory repository.InventoryStore, logger *slog.Logger) *CatalogService {
	return &CatalogService{inventory: inventory, logger: logger}
}

// UpsertProductInput holds the parameters for creating or replacing a product.
type UpsertProductInput struct {
	Title     string `json:"title" validate:"required,max=255"`
	UnitPrice int64  `json:"unit_price" validate:"gte=0"`
	Stock     int    `json:"stock" validate:"gte=0"`
	Category  string `json:"category" validate:"max=64"`
}

// UpsertProduct creates the product or replaces its title, price, stock and
// category.
func (s *CatalogService) UpsertProduct(ctx context.Context, id string, input *UpsertProductInput) (*domain.Product, error) {
	if !validator.IsIdent(id) {
		return nil, apperrors.InvalidInput("product id must be 1-64 letters, digits or _.:- characters")
	}
	if input == nil {
		return nil, apperrors.InvalidInput("product input is required")
	}
	if err := validator.Validate(input); err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	product := &domain.Product{
		ID:        id,
		Title:     input.Title,
		UnitPrice: input.UnitPrice,
		Stock:     input.Stock,
		Category:  input.Category,
	}
	if err := s.inventory.Upsert(ctx, product); err != nil {
		return nil, fmt.Errorf("upsert product: %w", err)
	}

	s.logger.InfoContext(ctx, "product upserted",
		slog.String("product_id", id),
		slog.Int64("unit_price", input.UnitPrice),
		slog.Int("stock", input.Stock),
	)

	return s.GetProduct(ctx, id)
}

// GetProduct returns a product by ID.
func (s *CatalogService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := s.inventory.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// ListProducts returns one page of products ordered by ID.
func (s *CatalogService) ListProducts(ctx context.Context, params pagination.Params) ([]domain.Product, int, error) {
	if params.PerPage <= 0 {
		params = pagination.DefaultParams()
	}
	products, total, err := s.inventory.List(ctx, params.Offset, params.Limit())
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	return products, total, nil
}

// SetPrice changes a product's unit price. Carts are not touched; the new
// price applies from the next checkout.
func (s *CatalogService) SetPrice(ctx context.Context, productID string, unitPrice int64) error {
	if productID == "" {
		return apperrors.InvalidInput("product id is required")
	}
	if unitPrice < 0 {
		return apperrors.InvalidInput("unit price must be non-negative")
	}
	if err := s.inventory.SetPrice(ctx, productID, unitPrice); err != nil {
		return fmt.Errorf("set price: %w", err)
	}

	s.logger.InfoContext(ctx, "product price set",
		slog.String("product_id", productID),
		slog.Int64("unit_price", unitPrice),
	)
	return nil
}
