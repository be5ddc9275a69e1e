package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/verdana-market/verdana-backend/internal/impact"
	"github.com/verdana-market/verdana-backend/internal/tiers"
	"github.com/verdana-market/verdana-backend/pkg/db/models"
	pkgerrors "github.com/verdana-market/verdana-backend/pkg/errors"
	"github.com/verdana-market/verdana-backend/pkg/pagination"
)

// Service exposes catalog management operations.
type Service interface {
	CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*ProductDetail, error)
	ListProducts(ctx context.Context, params pagination.Params) ([]models.Product, string, error)
	SetEcoScore(ctx context.Context, id uuid.UUID, score int) error
	RestockProduct(ctx context.Context, id uuid.UUID, qty int) (*models.InventoryItem, error)
}

// CreateProductInput holds the validated payload to create a product. The
// per-unit impact figures come from sourced sustainability insights and are
// snapshotted at creation.
type CreateProductInput struct {
	Name                  string
	Description           *string
	PartnerID             uuid.UUID
	PriceCents            int64
	EcoScore              int
	CarbonSavedPerUnit    int64
	WaterSavedPerUnit     int64
	WastePreventedPerUnit int64
	AvailableQty          int
}

// ProductDetail pairs a product with its current stock levels.
type ProductDetail struct {
	Product   models.Product
	Inventory models.InventoryItem
	// UnitImpact is the impact a single purchased unit yields today.
	UnitImpact impact.Totals
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo *Repository
	tx   txRunner
}

// NewService constructs a catalog service instance.
func NewService(repo *Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name required")
	}
	if input.PartnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "partner id required")
	}
	if input.PriceCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	if input.EcoScore < 0 || input.EcoScore > 1000 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "eco score must be between 0 and 1000")
	}
	if input.CarbonSavedPerUnit < 0 || input.WaterSavedPerUnit < 0 || input.WastePreventedPerUnit < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "impact figures cannot be negative")
	}
	if input.AvailableQty < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "available quantity cannot be negative")
	}

	product := &models.Product{
		Name:                  strings.TrimSpace(input.Name),
		Description:           input.Description,
		PartnerID:             input.PartnerID,
		PriceCents:            input.PriceCents,
		EcoScore:              input.EcoScore,
		EcoTier:               tiers.ProductTable.Classify(int64(input.EcoScore)),
		CarbonSavedPerUnit:    input.CarbonSavedPerUnit,
		WaterSavedPerUnit:     input.WaterSavedPerUnit,
		WastePreventedPerUnit: input.WastePreventedPerUnit,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.CreateProduct(ctx, product); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
		}
		item := &models.InventoryItem{ProductID: product.ID, AvailableQty: input.AvailableQty}
		if _, err := repo.UpsertInventory(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create inventory")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*ProductDetail, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", id))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	item, err := s.repo.GetInventoryByProductID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			item = &models.InventoryItem{ProductID: id}
		} else {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory")
		}
	}
	return &ProductDetail{
		Product:    *product,
		Inventory:  *item,
		UnitImpact: impact.ComputeLineImpact(*product, 1),
	}, nil
}

func (s *service) ListProducts(ctx context.Context, params pagination.Params) ([]models.Product, string, error) {
	rows, next, err := s.repo.ListProducts(ctx, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return rows, next, nil
}

func (s *service) SetEcoScore(ctx context.Context, id uuid.UUID, score int) error {
	if score < 0 || score > 1000 {
		return pkgerrors.New(pkgerrors.CodeValidation, "eco score must be between 0 and 1000")
	}
	return s.repo.SetEcoScore(ctx, id, score)
}

func (s *service) RestockProduct(ctx context.Context, id uuid.UUID, qty int) (*models.InventoryItem, error) {
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restock quantity must be positive")
	}
	var item *models.InventoryItem
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		res := tx.WithContext(ctx).
			Model(&models.InventoryItem{}).
			Where("product_id = ?", id).
			Update("available_qty", gorm.Expr("available_qty + ?", qty))
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "restock inventory")
		}
		if res.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("no inventory for product %s", id))
		}
		var loaded models.InventoryItem
		if err := tx.WithContext(ctx).First(&loaded, "product_id = ?", id).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory")
		}
		item = &loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}
