// Package inventory guards stock levels with conditional updates so
// concurrent settlements can never drive quantities negative.
package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/verdana-market/verdana-backend/pkg/db/models"
	pkgerrors "github.com/verdana-market/verdana-backend/pkg/errors"
)

// ReservationRequest asks for qty units of a product to be held.
type ReservationRequest struct {
	CartItemID uuid.UUID
	ProductID  uuid.UUID
	Qty        int
}

// ReservationResult reports the per-request outcome. Reason is set only when
// the reservation failed.
type ReservationResult struct {
	CartItemID uuid.UUID
	ProductID  uuid.UUID
	Qty        int
	Reserved   bool
	Reason     string
}

// Reserve moves available stock into the reserved bucket, one conditional
// update per request. A request that cannot be satisfied is reported in its
// result rather than failing the batch.
func Reserve(ctx context.Context, tx *gorm.DB, requests []ReservationRequest) ([]ReservationResult, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	results := make([]ReservationResult, 0, len(requests))
	for _, req := range requests {
		if req.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if req.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation quantity must be positive")
		}

		res := tx.WithContext(ctx).
			Model(&models.InventoryItem{}).
			Where("product_id = ? AND available_qty >= ?", req.ProductID, req.Qty).
			Updates(map[string]any{
				"available_qty": gorm.Expr("available_qty - ?", req.Qty),
				"reserved_qty":  gorm.Expr("reserved_qty + ?", req.Qty),
			})
		if res.Error != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve inventory")
		}

		result := ReservationResult{
			CartItemID: req.CartItemID,
			ProductID:  req.ProductID,
			Qty:        req.Qty,
			Reserved:   res.RowsAffected == 1,
		}
		if !result.Reserved {
			result.Reason = fmt.Sprintf("insufficient stock for product %s", req.ProductID)
		}
		results = append(results, result)
	}
	return results, nil
}

// Decrement consumes available stock for a settled purchase. The conditional
// WHERE clause is the only thing standing between concurrent settlements and
// negative stock, so a zero row count is a hard stop.
func Decrement(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "decrement quantity must be positive")
	}

	res := tx.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("product_id = ? AND available_qty >= ?", productID, qty).
		Update("available_qty", gorm.Expr("available_qty - ?", qty))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement inventory")
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := tx.WithContext(ctx).
			Model(&models.InventoryItem{}).
			Where("product_id = ?", productID).
			Count(&count).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check inventory item")
		}
		if count == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("no inventory for product %s", productID))
		}
		return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("insufficient stock for product %s", productID))
	}
	return nil
}

// Release returns reserved units to the available pool.
func Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "release quantity must be positive")
	}

	res := tx.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("product_id = ? AND reserved_qty >= ?", productID, qty).
		Updates(map[string]any{
			"available_qty": gorm.Expr("available_qty + ?", qty),
			"reserved_qty":  gorm.Expr("reserved_qty - ?", qty),
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release inventory")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("cannot release %d units of product %s", qty, productID))
	}
	return nil
}
