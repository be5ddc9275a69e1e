package progression

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/verdana-market/verdana-backend/pkg/db/models"
	"github.com/verdana-market/verdana-backend/pkg/enums"
	"github.com/verdana-market/verdana-backend/pkg/logger"
	"github.com/verdana-market/verdana-backend/pkg/outbox/payloads"
)

type gormRunner struct {
	db *gorm.DB
}

func (r gormRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func TestApplyEventFirstSettlement(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	user := seedUser(t, db)
	at := time.Date(2026, 8, 14, 10, 30, 0, 0, time.UTC)
	event := settlementEvent(user.ID, 124, at)
	event.LineImpacts = []payloads.LineImpact{{
		ProductID: uuid.New(),
		Quantity:  2,
		EcoScore:  620,
		EcoTier:   "Eco Leader",
		Impact:    payloads.ImpactTotals{ImpactPoints: 124},
	}}

	result, err := svc.ApplyEvent(ctx, event)
	if err != nil {
		t.Fatalf("apply event: %v", err)
	}
	if !result.Applied {
		t.Fatal("expected event to apply")
	}
	if result.ImpactPoints != 124 {
		t.Fatalf("expected 124 points, got %d", result.ImpactPoints)
	}
	if result.CurrentStreak != 1 || result.LongestStreak != 1 {
		t.Fatalf("expected streak 1/1, got %d/%d", result.CurrentStreak, result.LongestStreak)
	}

	var loaded models.User
	if err := db.First(&loaded, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	if loaded.ImpactPoints != 124 || loaded.TotalOrders != 1 {
		t.Fatalf("unexpected counters: points=%d orders=%d", loaded.ImpactPoints, loaded.TotalOrders)
	}

	assertAchievement(t, db, user.ID, enums.AchievementFirstPurchase, true)
	assertAchievement(t, db, user.ID, enums.AchievementFirstEcoProduct, true)

	var bucket models.UserMonthlyImpact
	if err := db.First(&bucket, "user_id = ? AND month = ?", user.ID, "2026-08").Error; err != nil {
		t.Fatalf("load monthly bucket: %v", err)
	}
	if bucket.ImpactPoints != 124 || bucket.OrderCount != 1 {
		t.Fatalf("unexpected bucket: %+v", bucket)
	}
}

func TestApplyEventReplayIsNoOp(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	user := seedUser(t, db)
	event := settlementEvent(user.ID, 200, time.Now().UTC())

	if _, err := svc.ApplyEvent(ctx, event); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	replay, err := svc.ApplyEvent(ctx, event)
	if err != nil {
		t.Fatalf("replay apply: %v", err)
	}
	if replay.Applied {
		t.Fatal("expected replay to be skipped")
	}
	if replay.ImpactPoints != 200 {
		t.Fatalf("replay snapshot should show 200 points, got %d", replay.ImpactPoints)
	}

	var loaded models.User
	if err := db.First(&loaded, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	if loaded.ImpactPoints != 200 || loaded.TotalOrders != 1 {
		t.Fatalf("replay double-credited: points=%d orders=%d", loaded.ImpactPoints, loaded.TotalOrders)
	}
}

func TestApplyEventStreakLaws(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	user := seedUser(t, db)
	day1 := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)

	steps := []struct {
		at          time.Time
		wantCurrent int
		wantLongest int
	}{
		{day1, 1, 1},
		{day1.Add(6 * time.Hour), 1, 1},       // same calendar day
		{day1.AddDate(0, 0, 1), 2, 2},         // next day extends
		{day1.AddDate(0, 0, 2), 3, 3},         // and again
		{day1.AddDate(0, 0, 5), 1, 3},         // gap resets, longest kept
		{day1.AddDate(0, 0, 6), 2, 3},         // rebuild
	}
	for i, step := range steps {
		result, err := svc.ApplyEvent(ctx, settlementEvent(user.ID, 10, step.at))
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if result.CurrentStreak != step.wantCurrent || result.LongestStreak != step.wantLongest {
			t.Fatalf("step %d: expected %d/%d, got %d/%d",
				i, step.wantCurrent, step.wantLongest, result.CurrentStreak, result.LongestStreak)
		}
	}
}

func TestApplyEventTierPromotionIsMonotonic(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	user := seedUser(t, db)

	first, err := svc.ApplyEvent(ctx, settlementEvent(user.ID, 600, time.Now().UTC()))
	if err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if first.Tier != "Eco Conscious" || !first.TierChanged {
		t.Fatalf("expected promotion to Eco Conscious, got %q changed=%v", first.Tier, first.TierChanged)
	}

	second, err := svc.ApplyEvent(ctx, settlementEvent(user.ID, 10, time.Now().UTC()))
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if second.Tier != "Eco Conscious" || second.TierChanged {
		t.Fatalf("tier regressed or flapped: %q changed=%v", second.Tier, second.TierChanged)
	}

	third, err := svc.ApplyEvent(ctx, settlementEvent(user.ID, 1500, time.Now().UTC()))
	if err != nil {
		t.Fatalf("third apply: %v", err)
	}
	if third.Tier != "Green Advocate" {
		t.Fatalf("expected Green Advocate at 2110 points, got %q", third.Tier)
	}
}

func settlementEvent(userID uuid.UUID, points int64, at time.Time) payloads.SettlementEvent {
	return payloads.SettlementEvent{
		OrderID:     uuid.New(),
		OrderNumber: "VRD-TEST",
		UserID:      userID,
		TotalImpact: payloads.ImpactTotals{
			ImpactPoints:   points,
			CarbonSaved:    points * 2,
			WaterSaved:     points * 3,
			WastePrevented: points,
		},
		TotalCents: 1299,
		SettledAt:  at,
	}
}

func seedUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	user := &models.User{
		ID:        uuid.New(),
		Email:     uuid.NewString() + "@example.com",
		FirstName: "Ada",
		LastName:  "Rivers",
		IsActive:  true,
		Tier:      "Seedling",
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func assertAchievement(t *testing.T, db *gorm.DB, userID uuid.UUID, kind enums.AchievementKind, want bool) {
	t.Helper()
	var count int64
	if err := db.Model(&models.UserAchievement{}).
		Where("user_id = ? AND kind = ?", userID, kind).
		Count(&count).Error; err != nil {
		t.Fatalf("count achievements: %v", err)
	}
	if (count == 1) != want {
		t.Fatalf("achievement %s: count=%d want present=%v", kind, count, want)
	}
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "progression-test", Output: io.Discard})
	svc, err := NewService(NewRepository(db), gormRunner{db: db}, logg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:progression_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.UserAchievement{},
		&models.UserMonthlyImpact{},
		&models.ProgressionEntry{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
