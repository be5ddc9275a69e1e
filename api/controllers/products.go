package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/verdana-market/verdana-backend/api/responses"
	"github.com/verdana-market/verdana-backend/api/validators"
	product "github.com/verdana-market/verdana-backend/internal/products"
	"github.com/verdana-market/verdana-backend/pkg/logger"
)

type createProductRequest struct {
	Name                  string    `json:"name" validate:"required,max=200"`
	Description           *string   `json:"description,omitempty"`
	PartnerID             uuid.UUID `json:"partner_id" validate:"required"`
	PriceCents            int64     `json:"price_cents" validate:"required,min=1"`
	EcoScore              int       `json:"eco_score" validate:"min=0,max=1000"`
	CarbonSavedPerUnit    int64     `json:"carbon_saved_per_unit" validate:"min=0"`
	WaterSavedPerUnit     int64     `json:"water_saved_per_unit" validate:"min=0"`
	WastePreventedPerUnit int64     `json:"waste_prevented_per_unit" validate:"min=0"`
	AvailableQty          int       `json:"available_qty" validate:"min=0"`
}

type setEcoScoreRequest struct {
	EcoScore int `json:"eco_score" validate:"min=0,max=1000"`
}

type restockRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

// CreateProduct adds a catalog entry with its initial stock.
func CreateProduct(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createProductRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.CreateProduct(r.Context(), product.CreateProductInput{
			Name:                  req.Name,
			Description:           req.Description,
			PartnerID:             req.PartnerID,
			PriceCents:            req.PriceCents,
			EcoScore:              req.EcoScore,
			CarbonSavedPerUnit:    req.CarbonSavedPerUnit,
			WaterSavedPerUnit:     req.WaterSavedPerUnit,
			WastePreventedPerUnit: req.WastePreventedPerUnit,
			AvailableQty:          req.AvailableQty,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// GetProduct returns one product with its stock and current unit impact.
func GetProduct(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := svc.GetProduct(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

// ListProducts pages the catalog newest first.
func ListProducts(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		products, next, err := svc.ListProducts(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"products":    products,
			"next_cursor": next,
		})
	}
}

// SetEcoScore updates the sustainability rating and re-derives the tier.
// Settled order lines keep their snapshot.
func SetEcoScore(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req setEcoScoreRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.SetEcoScore(r.Context(), id, req.EcoScore); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"eco_score": req.EcoScore})
	}
}

// RestockProduct increases available stock.
func RestockProduct(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req restockRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		inventory, err := svc.RestockProduct(r.Context(), id, req.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, inventory)
	}
}
