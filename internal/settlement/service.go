package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/verdana-market/verdana-backend/internal/cart"
	"github.com/verdana-market/verdana-backend/internal/groups"
	"github.com/verdana-market/verdana-backend/internal/impact"
	"github.com/verdana-market/verdana-backend/internal/inventory"
	"github.com/verdana-market/verdana-backend/internal/products"
	"github.com/verdana-market/verdana-backend/internal/progression"
	"github.com/verdana-market/verdana-backend/pkg/config"
	"github.com/verdana-market/verdana-backend/pkg/db"
	"github.com/verdana-market/verdana-backend/pkg/db/models"
	"github.com/verdana-market/verdana-backend/pkg/enums"
	pkgerrors "github.com/verdana-market/verdana-backend/pkg/errors"
	"github.com/verdana-market/verdana-backend/pkg/logger"
	"github.com/verdana-market/verdana-backend/pkg/metrics"
	"github.com/verdana-market/verdana-backend/pkg/outbox"
	"github.com/verdana-market/verdana-backend/pkg/outbox/payloads"
	"github.com/verdana-market/verdana-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// SettleLine is one requested order line.
type SettleLine struct {
	ProductID          uuid.UUID
	Quantity           int
	UnitPriceOverrides *int64
}

// SettleInput is the checkout payload for one settlement.
type SettleInput struct {
	Lines           []SettleLine
	DiscountCents   int64
	ShippingAddress *string
	BillingAddress  *string
	PaymentMethod   *string
}

// SettlementResult assembles the response from the three updated aggregates.
type SettlementResult struct {
	Order       *models.Order
	Event       payloads.SettlementEvent
	Progression *progression.Result
	Groups      []groups.GroupOutcome
}

// Service is the order settlement coordinator.
type Service interface {
	Settle(ctx context.Context, userID uuid.UUID, input SettleInput) (*SettlementResult, error)
	GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, string, error)
	TransitionStatus(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus, note *string) (*models.Order, error)
}

type service struct {
	repo       *Repository
	products   *products.Repository
	cart       *cart.Repository
	tx         txRunner
	outbox     outboxPublisher
	dispatcher Dispatcher
	cfg        config.SettlementConfig
	logg       *logger.Logger
	metrics    *metrics.SettlementMetrics
}

// NewService builds the settlement coordinator with its collaborators.
func NewService(
	repo *Repository,
	productRepo *products.Repository,
	cartRepo *cart.Repository,
	tx txRunner,
	outboxSvc outboxPublisher,
	dispatcher Dispatcher,
	cfg config.SettlementConfig,
	logg *logger.Logger,
	settlementMetrics *metrics.SettlementMetrics,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("settlement repository required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:       repo,
		products:   productRepo,
		cart:       cartRepo,
		tx:         tx,
		outbox:     outboxSvc,
		dispatcher: dispatcher,
		cfg:        cfg,
		logg:       logg,
		metrics:    settlementMetrics,
	}, nil
}

// Settle converts one confirmed order into the persisted order record plus a
// durable settlement event, then synchronously delivers the event to the user
// ledger and the group propagator. The event outlives any downstream failure,
// so an incomplete delivery is finished by the outbox replay.
func (s *service) Settle(ctx context.Context, userID uuid.UUID, input SettleInput) (*SettlementResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order has no lines")
	}
	for _, line := range input.Lines {
		if line.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required on every line")
		}
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be positive")
		}
		if line.UnitPriceOverrides != nil && *line.UnitPriceOverrides < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price override cannot be negative")
		}
	}
	if input.DiscountCents < 0 {
		input.DiscountCents = 0
	}

	var (
		order *models.Order
		event payloads.SettlementEvent
	)

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		productRepo := s.products.WithTx(tx)

		ids := make([]uuid.UUID, 0, len(input.Lines))
		for _, line := range input.Lines {
			ids = append(ids, line.ProductID)
		}
		catalog, err := productRepo.FindByIDs(ctx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
		}
		for _, line := range input.Lines {
			if _, ok := catalog[line.ProductID]; !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", line.ProductID))
			}
		}

		for _, line := range input.Lines {
			if err := inventory.Decrement(ctx, tx, line.ProductID, line.Quantity); err != nil {
				return err
			}
		}

		items := make([]models.OrderLineItem, 0, len(input.Lines))
		summaryLines := make([]impact.Line, 0, len(input.Lines))
		lineImpacts := make([]payloads.LineImpact, 0, len(input.Lines))
		lineTotals := make([]impact.Totals, 0, len(input.Lines))
		for _, line := range input.Lines {
			p := catalog[line.ProductID]

			unitPrice := p.PriceCents
			if line.UnitPriceOverrides != nil {
				unitPrice = *line.UnitPriceOverrides
			}
			lineImpact := impact.ComputeLineImpact(p, line.Quantity)
			lineTotals = append(lineTotals, lineImpact)
			summaryLines = append(summaryLines, impact.Line{Quantity: line.Quantity, UnitPriceCents: unitPrice})

			items = append(items, models.OrderLineItem{
				ID:             uuid.New(),
				ProductID:      p.ID,
				PartnerID:      p.PartnerID,
				Name:           p.Name,
				Qty:            line.Quantity,
				UnitPriceCents: unitPrice,
				TotalCents:     unitPrice * int64(line.Quantity),
				EcoScore:       p.EcoScore,
				EcoTier:        p.EcoTier,
				CarbonSaved:    lineImpact.CarbonSaved,
				WaterSaved:     lineImpact.WaterSaved,
				WastePrevented: lineImpact.WastePrevented,
				ImpactPoints:   lineImpact.ImpactPoints,
			})
			lineImpacts = append(lineImpacts, payloads.LineImpact{
				ProductID: p.ID,
				PartnerID: p.PartnerID,
				Quantity:  line.Quantity,
				EcoScore:  p.EcoScore,
				EcoTier:   p.EcoTier,
				Impact: payloads.ImpactTotals{
					CarbonSaved:    lineImpact.CarbonSaved,
					WaterSaved:     lineImpact.WaterSaved,
					WastePrevented: lineImpact.WastePrevented,
					ImpactPoints:   lineImpact.ImpactPoints,
				},
			})
		}

		totals := impact.SumTotals(lineTotals)
		summary := impact.ComputeOrderTotals(summaryLines, impact.Config{
			TaxRateBps:        s.cfg.TaxRateBps,
			FreeShippingCents: s.cfg.FreeShippingCents,
			FlatShippingCents: s.cfg.FlatShippingCents,
		}, input.DiscountCents)

		order, err = s.createOrderWithRetry(ctx, tx, userID, input, items, totals, summary)
		if err != nil {
			return err
		}

		for _, line := range items {
			if err := productRepo.IncrementLifetimeStats(ctx, line.ProductID, line.Qty, line.ImpactPoints); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment product stats")
			}
		}

		if err := s.cart.WithTx(tx).Clear(ctx, userID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}

		event = payloads.SettlementEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			UserID:      userID,
			LineImpacts: lineImpacts,
			TotalImpact: payloads.ImpactTotals{
				CarbonSaved:    totals.CarbonSaved,
				WaterSaved:     totals.WaterSaved,
				WastePrevented: totals.WastePrevented,
				ImpactPoints:   totals.ImpactPoints,
			},
			TotalCents: summary.TotalCents,
			SettledAt:  order.CreatedAt.UTC(),
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderSettled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: &userID},
			Data:          event,
			OccurredAt:    event.SettledAt,
		})
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncFailed()
		}
		return nil, err
	}

	// The order and its event are durable from here. Downstream consumers run
	// in the same request; whatever they fail to apply is completed by the
	// outbox replay, so their error is reported, not rolled back.
	userResult, groupOutcomes, dispatchErr := s.dispatcher.ApplyAll(ctx, event)
	if dispatchErr != nil {
		logCtx := s.logg.WithOrderID(ctx, order.ID.String())
		s.logg.Error(logCtx, "settlement dispatched with incomplete downstream delivery", dispatchErr)
		if s.metrics != nil {
			s.metrics.IncFailed()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, dispatchErr, "settlement delivery incomplete")
	}

	if s.metrics != nil {
		s.metrics.IncSettled()
	}
	return &SettlementResult{
		Order:       order,
		Event:       event,
		Progression: userResult,
		Groups:      groupOutcomes,
	}, nil
}

// createOrderWithRetry inserts the order, regenerating the order number on a
// unique collision. Each attempt runs in a savepoint so a collision does not
// poison the surrounding transaction.
func (s *service) createOrderWithRetry(ctx context.Context, tx *gorm.DB, userID uuid.UUID, input SettleInput, items []models.OrderLineItem, totals impact.Totals, summary impact.Summary) (*models.Order, error) {
	repo := s.repo.WithTx(tx)

	maxRetries := s.cfg.OrderNumberMaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		status := enums.OrderStatusSettled
		order := &models.Order{
			ID:              uuid.New(),
			OrderNumber:     GenerateOrderNumber(s.cfg.OrderNumberPrefix),
			UserID:          userID,
			Status:          status,
			SubtotalCents:   summary.SubtotalCents,
			TaxCents:        summary.TaxCents,
			ShippingCents:   summary.ShippingCents,
			DiscountCents:   summary.DiscountCents,
			TotalCents:      summary.TotalCents,
			CarbonSaved:     totals.CarbonSaved,
			WaterSaved:      totals.WaterSaved,
			WastePrevented:  totals.WastePrevented,
			ImpactPoints:    totals.ImpactPoints,
			ShippingAddress: input.ShippingAddress,
			BillingAddress:  input.BillingAddress,
			PaymentMethod:   input.PaymentMethod,
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		order.Items = items
		order.StatusEvents = []models.OrderStatusEvent{{
			ID:       uuid.New(),
			OrderID:  order.ID,
			ToStatus: status,
		}}

		err := tx.Transaction(func(inner *gorm.DB) error {
			return repo.WithTx(inner).CreateOrder(ctx, order)
		})
		if err == nil {
			return order, nil
		}
		if !db.IsUniqueViolation(err, "ux_orders_order_number") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		logCtx := s.logg.WithUserID(ctx, userID.String())
		s.logg.Warn(logCtx, fmt.Sprintf("order number collision on attempt %d, regenerating", attempt+1))
	}
	return nil, pkgerrors.New(pkgerrors.CodeConflict, "could not allocate a unique order number")
}

func (s *service) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("order %s not found", orderID))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if userID != uuid.Nil && order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
	}
	return order, nil
}

func (s *service) ListOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	rows, next, err := s.repo.ListOrdersByUser(ctx, userID, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return rows, next, nil
}

// TransitionStatus appends one status-history event after a conditional move
// so concurrent transitions can never silently overwrite each other.
func (s *service) TransitionStatus(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus, note *string) (*models.Order, error) {
	if !to.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid status %q", to))
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.GetOrder(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("order %s not found", orderID))
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if !order.Status.CanTransitionTo(to) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot move order from %s to %s", order.Status, to))
		}

		moved, err := repo.TransitionStatus(ctx, orderID, order.Status, to, note)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "transition status")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:    orderID,
				UserID:     order.UserID,
				FromStatus: order.Status,
				ToStatus:   to,
				ChangedAt:  time.Now().UTC(),
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit status event")
		}

		order.Status = to
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
