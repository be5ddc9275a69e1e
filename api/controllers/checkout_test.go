package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/verdana-market/verdana-backend/api/middleware"
	"github.com/verdana-market/verdana-backend/internal/progression"
	"github.com/verdana-market/verdana-backend/internal/settlement"
	"github.com/verdana-market/verdana-backend/pkg/db/models"
	"github.com/verdana-market/verdana-backend/pkg/enums"
	pkgerrors "github.com/verdana-market/verdana-backend/pkg/errors"
	"github.com/verdana-market/verdana-backend/pkg/logger"
	"github.com/verdana-market/verdana-backend/pkg/pagination"
)

type stubSettlementService struct {
	result *settlement.SettlementResult
	err    error

	gotUserID uuid.UUID
	gotInput  settlement.SettleInput
}

func (s *stubSettlementService) Settle(ctx context.Context, userID uuid.UUID, input settlement.SettleInput) (*settlement.SettlementResult, error) {
	s.gotUserID = userID
	s.gotInput = input
	return s.result, s.err
}

func (s *stubSettlementService) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (s *stubSettlementService) ListOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	return nil, "", pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (s *stubSettlementService) TransitionStatus(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus, note *string) (*models.Order, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "controllers-test", Output: io.Discard})
}

func TestCheckoutSuccess(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	productID := uuid.New()
	svc := &stubSettlementService{
		result: &settlement.SettlementResult{
			Order: &models.Order{
				ID:          uuid.New(),
				UserID:      userID,
				OrderNumber: "VRD-Q3KZM7T2AB",
				Status:      enums.OrderStatusSettled,
				TotalCents:  5616,
			},
			Progression: &progression.Result{Applied: true, ImpactPoints: 124},
		},
	}

	body := `{"lines":[{"product_id":"` + productID.String() + `","quantity":2}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))

	rec := httptest.NewRecorder()
	Checkout(svc, testLogger())(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, userID, svc.gotUserID)
	require.Len(t, svc.gotInput.Lines, 1)
	require.Equal(t, 2, svc.gotInput.Lines[0].Quantity)

	var envelope struct {
		Data struct {
			Order struct {
				OrderNumber string `json:"order_number"`
			} `json:"order"`
			Progression struct {
				ImpactPoints int64 `json:"impact_points"`
			} `json:"progression"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Equal(t, "VRD-Q3KZM7T2AB", envelope.Data.Order.OrderNumber)
	require.Equal(t, int64(124), envelope.Data.Progression.ImpactPoints)
}

func TestCheckoutRequiresAuth(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{"lines":[]}`))
	rec := httptest.NewRecorder()
	Checkout(&stubSettlementService{}, testLogger())(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckoutRejectsEmptyLines(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{"lines":[]}`))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))

	rec := httptest.NewRecorder()
	Checkout(&stubSettlementService{}, testLogger())(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
