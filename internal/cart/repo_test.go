package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/verdana-market/verdana-backend/pkg/db/models"
)

func TestGetOrCreateIsStable(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := uuid.New()

	first, err := repo.GetOrCreate(ctx, userID)
	if err != nil {
		t.Fatalf("first get or create: %v", err)
	}
	second, err := repo.GetOrCreate(ctx, userID)
	if err != nil {
		t.Fatalf("second get or create: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected stable cart id, got %s then %s", first.ID, second.ID)
	}
}

func TestUpsertItemOverwritesQuantity(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	cart, err := repo.GetOrCreate(ctx, uuid.New())
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	productID := uuid.New()

	if err := repo.UpsertItem(ctx, &models.CartItem{ID: uuid.New(), CartID: cart.ID, ProductID: productID, Quantity: 1, UnitPriceCents: 500}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := repo.UpsertItem(ctx, &models.CartItem{ID: uuid.New(), CartID: cart.ID, ProductID: productID, Quantity: 3, UnitPriceCents: 450}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	var items []models.CartItem
	if err := db.Where("cart_id = ?", cart.ID).Find(&items).Error; err != nil {
		t.Fatalf("load items: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Quantity != 3 || items[0].UnitPriceCents != 450 {
		t.Fatalf("unexpected item state: %+v", items[0])
	}
}

func TestClearRemovesItemsKeepsCart(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := uuid.New()

	cart, err := repo.GetOrCreate(ctx, userID)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	for i := 0; i < 2; i++ {
		item := &models.CartItem{ID: uuid.New(), CartID: cart.ID, ProductID: uuid.New(), Quantity: 1, UnitPriceCents: 100}
		if err := repo.UpsertItem(ctx, item); err != nil {
			t.Fatalf("seed item: %v", err)
		}
	}

	if err := repo.Clear(ctx, userID); err != nil {
		t.Fatalf("clear: %v", err)
	}

	var count int64
	if err := db.Model(&models.CartItem{}).Where("cart_id = ?", cart.ID).Count(&count).Error; err != nil {
		t.Fatalf("count items: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected empty cart, got %d items", count)
	}
	if _, err := repo.GetOrCreate(ctx, userID); err != nil {
		t.Fatalf("cart row should survive clear: %v", err)
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:cart_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Cart{}, &models.CartItem{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
