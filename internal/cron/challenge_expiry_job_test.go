package cron

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/verdana-market/verdana-backend/internal/groups"
	"github.com/verdana-market/verdana-backend/pkg/db/models"
	"github.com/verdana-market/verdana-backend/pkg/enums"
	"github.com/verdana-market/verdana-backend/pkg/logger"
	"github.com/verdana-market/verdana-backend/pkg/outbox"
)

type expiryTxRunner struct {
	db *gorm.DB
}

func (r expiryTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func TestChallengeExpiryJobExpiresDueChallenges(t *testing.T) {
	t.Parallel()

	db := newExpiryTestDB(t)
	now := time.Date(2026, 8, 20, 6, 0, 0, 0, time.UTC)
	job := newExpiryJob(t, db, now)

	groupID := uuid.New()
	due := seedChallenge(t, db, groupID, now.Add(-2*time.Hour), true)
	future := seedChallenge(t, db, uuid.New(), now.Add(24*time.Hour), true)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	var reloaded models.GroupChallenge
	if err := db.First(&reloaded, "id = ?", due.ID).Error; err != nil {
		t.Fatalf("reload challenge: %v", err)
	}
	if reloaded.IsActive {
		t.Fatal("due challenge should be inactive")
	}
	if reloaded.ExpiredAt == nil || !reloaded.ExpiredAt.Equal(now) {
		t.Fatalf("expired at = %v, want %v", reloaded.ExpiredAt, now)
	}
	if reloaded.CompletedAt != nil {
		t.Fatal("expiry must not stamp completion")
	}

	var untouched models.GroupChallenge
	if err := db.First(&untouched, "id = ?", future.ID).Error; err != nil {
		t.Fatalf("reload future challenge: %v", err)
	}
	if !untouched.IsActive {
		t.Fatal("future challenge should stay active")
	}

	var activities int64
	err := db.Model(&models.GroupActivity{}).
		Where("group_id = ? AND kind = ?", groupID, enums.ActivityChallengeExpired).
		Count(&activities).Error
	if err != nil {
		t.Fatalf("count activities: %v", err)
	}
	if activities != 1 {
		t.Fatalf("expiry activities = %d, want 1", activities)
	}

	var events int64
	err = db.Model(&models.OutboxEvent{}).
		Where("event_type = ? AND aggregate_id = ?", enums.EventChallengeExpired, due.ID).
		Count(&events).Error
	if err != nil {
		t.Fatalf("count outbox events: %v", err)
	}
	if events != 1 {
		t.Fatalf("outbox events = %d, want 1", events)
	}
}

func TestChallengeExpiryJobSkipsAlreadyInactive(t *testing.T) {
	t.Parallel()

	db := newExpiryTestDB(t)
	now := time.Date(2026, 8, 20, 6, 0, 0, 0, time.UTC)
	job := newExpiryJob(t, db, now)

	// Deadline passed but a settlement already completed the challenge.
	challenge := seedChallenge(t, db, uuid.New(), now.Add(-time.Hour), true)
	completedAt := now.Add(-30 * time.Minute)
	err := db.Model(&models.GroupChallenge{}).
		Where("id = ?", challenge.ID).
		Updates(map[string]any{"is_active": false, "completed_at": completedAt}).Error
	if err != nil {
		t.Fatalf("complete challenge: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	var reloaded models.GroupChallenge
	if err := db.First(&reloaded, "id = ?", challenge.ID).Error; err != nil {
		t.Fatalf("reload challenge: %v", err)
	}
	if reloaded.ExpiredAt != nil {
		t.Fatal("completed challenge must not be marked expired")
	}
	var events int64
	if err := db.Model(&models.OutboxEvent{}).Count(&events).Error; err != nil {
		t.Fatalf("count outbox events: %v", err)
	}
	if events != 0 {
		t.Fatalf("outbox events = %d, want 0", events)
	}
}

func newExpiryJob(t *testing.T, db *gorm.DB, now time.Time) *challengeExpiryJob {
	t.Helper()

	logg := logger.New(logger.Options{Output: io.Discard})
	jobIface, err := NewChallengeExpiryJob(ChallengeExpiryJobParams{
		Logger:     logg,
		DB:         expiryTxRunner{db: db},
		Repository: groups.NewRepository(db),
		Outbox:     outbox.NewService(outbox.NewRepository(db), logg),
	})
	if err != nil {
		t.Fatalf("NewChallengeExpiryJob: %v", err)
	}
	job := jobIface.(*challengeExpiryJob)
	job.now = func() time.Time { return now }
	return job
}

func seedChallenge(t *testing.T, db *gorm.DB, groupID uuid.UUID, deadline time.Time, active bool) *models.GroupChallenge {
	t.Helper()

	challenge := &models.GroupChallenge{
		ID:              uuid.New(),
		GroupID:         groupID,
		Name:            "Plastic Free Week",
		TargetMetric:    enums.ChallengeTargetImpactPoints,
		TargetValue:     1000,
		CurrentProgress: 350,
		RewardPoints:    200,
		Deadline:        deadline,
		IsActive:        active,
		CreatedByUserID: uuid.New(),
	}
	if err := db.Create(challenge).Error; err != nil {
		t.Fatalf("seed challenge: %v", err)
	}
	return challenge
}

func newExpiryTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:cron_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&models.Group{},
		&models.GroupChallenge{},
		&models.GroupActivity{},
		&models.OutboxEvent{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
