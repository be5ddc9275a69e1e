package settlement

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/verdana-market/verdana-backend/internal/cart"
	"github.com/verdana-market/verdana-backend/internal/groups"
	"github.com/verdana-market/verdana-backend/internal/products"
	"github.com/verdana-market/verdana-backend/internal/progression"
	"github.com/verdana-market/verdana-backend/pkg/config"
	"github.com/verdana-market/verdana-backend/pkg/db/models"
	"github.com/verdana-market/verdana-backend/pkg/enums"
	pkgerrors "github.com/verdana-market/verdana-backend/pkg/errors"
	"github.com/verdana-market/verdana-backend/pkg/logger"
	"github.com/verdana-market/verdana-backend/pkg/outbox"
)

type gormRunner struct {
	db *gorm.DB
}

func (r gormRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func TestSettleHappyPath(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	stack := newTestStack(t, db)
	ctx := context.Background()

	user := seedUser(t, db)
	p := seedProduct(t, db, seedProductInput{
		PriceCents: 2600,
		EcoScore:   620,
		Carbon:     120,
		Water:      300,
		Waste:      40,
		Stock:      5,
	})
	group := seedGroupWithMember(t, db, user.ID)

	res, err := stack.svc.Settle(ctx, user.ID, SettleInput{
		Lines: []SettleLine{{ProductID: p.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}

	order := res.Order
	if order.Status != enums.OrderStatusSettled {
		t.Fatalf("status = %s, want settled", order.Status)
	}
	if !strings.HasPrefix(order.OrderNumber, "VRD-") {
		t.Fatalf("order number %q missing prefix", order.OrderNumber)
	}
	if order.SubtotalCents != 5200 || order.TaxCents != 416 || order.ShippingCents != 0 {
		t.Fatalf("money breakdown = %d/%d/%d", order.SubtotalCents, order.TaxCents, order.ShippingCents)
	}
	if got := order.SubtotalCents + order.TaxCents + order.ShippingCents - order.DiscountCents; order.TotalCents != got {
		t.Fatalf("total %d does not equal component sum %d", order.TotalCents, got)
	}
	if order.ImpactPoints != 124 || order.CarbonSaved != 240 || order.WaterSaved != 600 || order.WastePrevented != 80 {
		t.Fatalf("order impact = %d pts %d/%d/%d", order.ImpactPoints, order.CarbonSaved, order.WaterSaved, order.WastePrevented)
	}
	if len(order.Items) != 1 || order.Items[0].EcoTier != "Eco Leader" {
		t.Fatalf("line snapshot = %+v", order.Items)
	}

	if res.Progression == nil || !res.Progression.Applied || res.Progression.ImpactPoints != 124 {
		t.Fatalf("progression result = %+v", res.Progression)
	}
	if len(res.Groups) != 1 || res.Groups[0].GroupID != group.ID || res.Groups[0].ContributionCredit != 12 {
		t.Fatalf("group outcomes = %+v", res.Groups)
	}

	var inv models.InventoryItem
	if err := db.Where("product_id = ?", p.ID).First(&inv).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if inv.AvailableQty != 3 {
		t.Fatalf("available qty = %d, want 3", inv.AvailableQty)
	}

	var refreshed models.Product
	if err := db.First(&refreshed, "id = ?", p.ID).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if refreshed.TotalUnitsSold != 2 || refreshed.TotalImpactPoints != 124 {
		t.Fatalf("lifetime stats = %d units %d points", refreshed.TotalUnitsSold, refreshed.TotalImpactPoints)
	}

	var cartItems int64
	if err := db.Model(&models.CartItem{}).Count(&cartItems).Error; err != nil {
		t.Fatalf("count cart items: %v", err)
	}
	if cartItems != 0 {
		t.Fatalf("cart items = %d, want 0", cartItems)
	}

	var events int64
	err = db.Model(&models.OutboxEvent{}).
		Where("event_type = ? AND aggregate_id = ?", enums.EventOrderSettled, order.ID).
		Count(&events).Error
	if err != nil {
		t.Fatalf("count outbox events: %v", err)
	}
	if events != 1 {
		t.Fatalf("outbox events = %d, want 1", events)
	}
}

func TestSettleValidation(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	stack := newTestStack(t, db)
	ctx := context.Background()
	user := seedUser(t, db)

	_, err := stack.svc.Settle(ctx, user.ID, SettleInput{})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("empty order error = %v", err)
	}

	_, err = stack.svc.Settle(ctx, user.ID, SettleInput{
		Lines: []SettleLine{{ProductID: uuid.New(), Quantity: 0}},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("zero quantity error = %v", err)
	}
}

func TestSettleProductNotFound(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	stack := newTestStack(t, db)
	ctx := context.Background()
	user := seedUser(t, db)

	_, err := stack.svc.Settle(ctx, user.ID, SettleInput{
		Lines: []SettleLine{{ProductID: uuid.New(), Quantity: 1}},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unknown product error = %v", err)
	}
}

func TestSettleInsufficientStockRollsBack(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	stack := newTestStack(t, db)
	ctx := context.Background()

	user := seedUser(t, db)
	p := seedProduct(t, db, seedProductInput{PriceCents: 1000, EcoScore: 300, Stock: 2})

	_, err := stack.svc.Settle(ctx, user.ID, SettleInput{
		Lines: []SettleLine{{ProductID: p.ID, Quantity: 3}},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("insufficient stock error = %v", err)
	}

	var orders int64
	if err := db.Model(&models.Order{}).Count(&orders).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orders != 0 {
		t.Fatalf("orders = %d, want 0", orders)
	}
	var inv models.InventoryItem
	if err := db.Where("product_id = ?", p.ID).First(&inv).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if inv.AvailableQty != 2 {
		t.Fatalf("available qty = %d, want untouched 2", inv.AvailableQty)
	}
}

func TestSettleEventReplayIsNoOp(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	stack := newTestStack(t, db)
	ctx := context.Background()

	user := seedUser(t, db)
	p := seedProduct(t, db, seedProductInput{PriceCents: 1500, EcoScore: 400, Stock: 4})

	res, err := stack.svc.Settle(ctx, user.ID, SettleInput{
		Lines: []SettleLine{{ProductID: p.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}

	// Simulate the outbox worker redelivering the same event.
	replay, _, err := stack.dispatcher.ApplyAll(ctx, res.Event)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if replay.Applied {
		t.Fatal("replay must not apply twice")
	}

	var refreshed models.User
	if err := db.First(&refreshed, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	if refreshed.ImpactPoints != 40 || refreshed.TotalOrders != 1 {
		t.Fatalf("counters after replay = %d points %d orders", refreshed.ImpactPoints, refreshed.TotalOrders)
	}
}

func TestTransitionStatusGuardsLifecycle(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	stack := newTestStack(t, db)
	ctx := context.Background()

	user := seedUser(t, db)
	p := seedProduct(t, db, seedProductInput{PriceCents: 1200, EcoScore: 100, Stock: 3})

	res, err := stack.svc.Settle(ctx, user.ID, SettleInput{
		Lines: []SettleLine{{ProductID: p.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	orderID := res.Order.ID

	_, err = stack.svc.TransitionStatus(ctx, orderID, enums.OrderStatusDelivered, nil)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("settled to delivered error = %v", err)
	}

	shipped, err := stack.svc.TransitionStatus(ctx, orderID, enums.OrderStatusShipped, nil)
	if err != nil {
		t.Fatalf("transition to shipped: %v", err)
	}
	if shipped.Status != enums.OrderStatusShipped {
		t.Fatalf("status = %s, want shipped", shipped.Status)
	}

	reloaded, err := stack.svc.GetOrder(ctx, user.ID, orderID)
	if err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if len(reloaded.StatusEvents) != 2 {
		t.Fatalf("status events = %d, want 2", len(reloaded.StatusEvents))
	}
	last := reloaded.StatusEvents[len(reloaded.StatusEvents)-1]
	if last.FromStatus == nil || *last.FromStatus != enums.OrderStatusSettled || last.ToStatus != enums.OrderStatusShipped {
		t.Fatalf("history entry = %+v", last)
	}

	_, err = stack.svc.TransitionStatus(ctx, orderID, enums.OrderStatus("misplaced"), nil)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("invalid status error = %v", err)
	}
}

func TestGetOrderEnforcesOwnership(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	stack := newTestStack(t, db)
	ctx := context.Background()

	user := seedUser(t, db)
	p := seedProduct(t, db, seedProductInput{PriceCents: 900, EcoScore: 50, Stock: 2})

	res, err := stack.svc.Settle(ctx, user.ID, SettleInput{
		Lines: []SettleLine{{ProductID: p.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}

	_, err = stack.svc.GetOrder(ctx, uuid.New(), res.Order.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("foreign order error = %v", err)
	}

	_, err = stack.svc.GetOrder(ctx, user.ID, uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("missing order error = %v", err)
	}
}

type testStack struct {
	svc        Service
	dispatcher Dispatcher
}

func newTestStack(t *testing.T, db *gorm.DB) *testStack {
	t.Helper()

	logg := logger.New(logger.Options{Output: io.Discard})
	runner := gormRunner{db: db}
	outboxSvc := outbox.NewService(outbox.NewRepository(db), logg)

	ledger, err := progression.NewService(progression.NewRepository(db), runner, logg)
	if err != nil {
		t.Fatalf("new progression service: %v", err)
	}
	propagator, err := groups.NewPropagator(groups.NewRepository(db), runner, outboxSvc, logg, 1000)
	if err != nil {
		t.Fatalf("new propagator: %v", err)
	}
	dispatcher, err := NewDispatcher(ledger, propagator, logg)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	cfg := config.SettlementConfig{
		TaxRateBps:            800,
		FreeShippingCents:     5000,
		FlatShippingCents:     599,
		OrderNumberPrefix:     "VRD",
		OrderNumberMaxRetries: 5,
	}
	svc, err := NewService(NewRepository(db), products.NewRepository(db), cart.NewRepository(db), runner, outboxSvc, dispatcher, cfg, logg, nil)
	if err != nil {
		t.Fatalf("new settlement service: %v", err)
	}
	return &testStack{svc: svc, dispatcher: dispatcher}
}

type seedProductInput struct {
	PriceCents int64
	EcoScore   int
	Carbon     int64
	Water      int64
	Waste      int64
	Stock      int
}

func seedProduct(t *testing.T, db *gorm.DB, in seedProductInput) *models.Product {
	t.Helper()

	tier := "Standard"
	switch {
	case in.EcoScore >= 800:
		tier = "Eco Champion"
	case in.EcoScore >= 600:
		tier = "Eco Leader"
	case in.EcoScore >= 400:
		tier = "Eco Friendly"
	case in.EcoScore >= 200:
		tier = "Eco Aware"
	}
	p := &models.Product{
		ID:                    uuid.New(),
		Name:                  "Bamboo Cutlery Set",
		PartnerID:             uuid.New(),
		PriceCents:            in.PriceCents,
		EcoScore:              in.EcoScore,
		EcoTier:               tier,
		CarbonSavedPerUnit:    in.Carbon,
		WaterSavedPerUnit:     in.Water,
		WastePreventedPerUnit: in.Waste,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	inv := &models.InventoryItem{ID: uuid.New(), ProductID: p.ID, AvailableQty: in.Stock}
	if err := db.Create(inv).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}
	return p
}

func seedUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()

	user := &models.User{
		ID:        uuid.New(),
		Email:     uuid.NewString() + "@example.com",
		FirstName: "Maya",
		LastName:  "Osei",
		IsActive:  true,
		Tier:      "Seedling",
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func seedGroupWithMember(t *testing.T, db *gorm.DB, userID uuid.UUID) *models.Group {
	t.Helper()

	group := &models.Group{
		ID:          uuid.New(),
		Name:        "River Cleanup Crew",
		Tier:        "Eco Beginners",
		MaxMembers:  50,
		MemberCount: 1,
	}
	if err := db.Create(group).Error; err != nil {
		t.Fatalf("seed group: %v", err)
	}
	membership := &models.GroupMembership{
		ID:      uuid.New(),
		GroupID: group.ID,
		UserID:  userID,
		Role:    enums.MemberRoleMember,
		Status:  enums.MembershipStatusActive,
	}
	if err := db.Create(membership).Error; err != nil {
		t.Fatalf("seed membership: %v", err)
	}
	return group
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:settlement_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.InventoryItem{},
		&models.Cart{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderLineItem{},
		&models.OrderStatusEvent{},
		&models.ProgressionEntry{},
		&models.UserAchievement{},
		&models.UserMonthlyImpact{},
		&models.Group{},
		&models.GroupMembership{},
		&models.GroupChallenge{},
		&models.GroupActivity{},
		&models.GroupAchievement{},
		&models.ContributionEntry{},
		&models.OutboxEvent{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
