package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/verdana-market/verdana-backend/api/responses"
	"github.com/verdana-market/verdana-backend/pkg/db/models"
	"github.com/verdana-market/verdana-backend/api/validators"
	"github.com/verdana-market/verdana-backend/internal/settlement"
	"github.com/verdana-market/verdana-backend/pkg/enums"
	pkgerrors "github.com/verdana-market/verdana-backend/pkg/errors"
	"github.com/verdana-market/verdana-backend/pkg/logger"
	"github.com/verdana-market/verdana-backend/pkg/pagination"
	"github.com/verdana-market/verdana-backend/pkg/types"
)

type transitionStatusRequest struct {
	Status string  `json:"status" validate:"required"`
	Note   *string `json:"note,omitempty"`
}

type orderResponse struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Status      string    `json:"status"`

	SubtotalCents int64 `json:"subtotal_cents"`
	TaxCents      int64 `json:"tax_cents"`
	ShippingCents int64 `json:"shipping_cents"`
	DiscountCents int64  `json:"discount_cents"`
	TotalCents    int64  `json:"total_cents"`
	Total         string `json:"total"`

	CarbonSaved    int64 `json:"carbon_saved"`
	WaterSaved     int64 `json:"water_saved"`
	WastePrevented int64 `json:"waste_prevented"`
	ImpactPoints   int64 `json:"impact_points"`

	Items        []orderLineResponse        `json:"items,omitempty"`
	StatusEvents []orderStatusEventResponse `json:"status_events,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type orderLineResponse struct {
	LineItemID     uuid.UUID `json:"line_item_id"`
	ProductID      uuid.UUID `json:"product_id"`
	Name           string    `json:"name"`
	Qty            int       `json:"qty"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	TotalCents     int64     `json:"total_cents"`
	EcoScore       int       `json:"eco_score"`
	EcoTier        string    `json:"eco_tier"`
	CarbonSaved    int64     `json:"carbon_saved"`
	WaterSaved     int64     `json:"water_saved"`
	WastePrevented int64     `json:"waste_prevented"`
	ImpactPoints   int64     `json:"impact_points"`
}

type orderStatusEventResponse struct {
	FromStatus *string   `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status"`
	Note       *string   `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func newOrderResponse(order *models.Order) orderResponse {
	if order == nil {
		return orderResponse{}
	}
	resp := orderResponse{
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		Status:         string(order.Status),
		SubtotalCents:  order.SubtotalCents,
		TaxCents:       order.TaxCents,
		ShippingCents:  order.ShippingCents,
		DiscountCents:  order.DiscountCents,
		TotalCents:     order.TotalCents,
		Total:          types.DollarsFromCents(order.TotalCents).StringFixed(2),
		CarbonSaved:    order.CarbonSaved,
		WaterSaved:     order.WaterSaved,
		WastePrevented: order.WastePrevented,
		ImpactPoints:   order.ImpactPoints,
		CreatedAt:      order.CreatedAt,
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, orderLineResponse{
			LineItemID:     item.ID,
			ProductID:      item.ProductID,
			Name:           item.Name,
			Qty:            item.Qty,
			UnitPriceCents: item.UnitPriceCents,
			TotalCents:     item.TotalCents,
			EcoScore:       item.EcoScore,
			EcoTier:        item.EcoTier,
			CarbonSaved:    item.CarbonSaved,
			WaterSaved:     item.WaterSaved,
			WastePrevented: item.WastePrevented,
			ImpactPoints:   item.ImpactPoints,
		})
	}
	for _, event := range order.StatusEvents {
		var from *string
		if event.FromStatus != nil {
			value := string(*event.FromStatus)
			from = &value
		}
		resp.StatusEvents = append(resp.StatusEvents, orderStatusEventResponse{
			FromStatus: from,
			ToStatus:   string(event.ToStatus),
			Note:       event.Note,
			CreatedAt:  event.CreatedAt,
		})
	}
	return resp
}

func newOrderResponses(orders []models.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, newOrderResponse(&orders[i]))
	}
	return out
}

// ListOrders returns the caller's orders, newest first, cursor paged.
func ListOrders(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orders, next, err := svc.ListOrders(r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"orders":      newOrderResponses(orders),
			"next_cursor": next,
		})
	}
}

// GetOrder returns one of the caller's orders with its lines and status
// history.
func GetOrder(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := pathUUID(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetOrder(r.Context(), userID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// TransitionOrderStatus appends one status move to the order's history.
func TransitionOrderStatus(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req transitionStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseOrderStatus(req.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		order, err := svc.TransitionStatus(r.Context(), orderID, status, req.Note)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

func uuidFromString(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+field)
	}
	return id, nil
}

func pathUUID(r *http.Request, key string) (uuid.UUID, error) {
	raw := chi.URLParam(r, key)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+key)
	}
	return id, nil
}

func pageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", 0, 0, 100)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: r.URL.Query().Get("cursor"),
	}, nil
}
