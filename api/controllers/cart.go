package controllers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/verdana-market/verdana-backend/api/responses"
	"github.com/verdana-market/verdana-backend/api/validators"
	"github.com/verdana-market/verdana-backend/internal/cart"
	"github.com/verdana-market/verdana-backend/internal/products"
	"github.com/verdana-market/verdana-backend/pkg/db/models"
	pkgerrors "github.com/verdana-market/verdana-backend/pkg/errors"
	"github.com/verdana-market/verdana-backend/pkg/logger"
)

type upsertCartItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=99"`
}

// GetCart returns the caller's cart, creating an empty one on first use.
func GetCart(repo *cart.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		c, err := repo.GetOrCreate(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart"))
			return
		}
		responses.WriteSuccess(w, c)
	}
}

// UpsertCartItem adds a product line or overwrites its quantity. The unit
// price is captured from the catalog at write time.
func UpsertCartItem(repo *cart.Repository, productRepo *products.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req upsertCartItemRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := uuidFromString(req.ProductID, "product_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := productRepo.FindByID(r.Context(), productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				err = pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			} else {
				err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		c, err := repo.GetOrCreate(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart"))
			return
		}

		item := models.CartItem{
			ID:             uuid.New(),
			CartID:         c.ID,
			ProductID:      product.ID,
			Quantity:       req.Quantity,
			UnitPriceCents: product.PriceCents,
		}
		if err := repo.UpsertItem(r.Context(), &item); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart item"))
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// RemoveCartItem deletes one product line from the caller's cart.
func RemoveCartItem(repo *cart.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := pathUUID(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		c, err := repo.GetOrCreate(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart"))
			return
		}
		if err := repo.RemoveItem(r.Context(), c.ID, productID); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item"))
			return
		}
		responses.WriteSuccess(w, map[string]any{"removed": true})
	}
}
