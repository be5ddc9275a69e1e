package progression

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/verdana-market/verdana-backend/pkg/db"
	"github.com/verdana-market/verdana-backend/pkg/db/models"
	"github.com/verdana-market/verdana-backend/pkg/enums"
	"github.com/verdana-market/verdana-backend/pkg/outbox/payloads"
)

// Repository persists the user progression ledger.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repository to the provided GORM DB.
func NewRepository(gdb *gorm.DB) *Repository {
	return &Repository{db: gdb}
}

// WithTx scopes the repository to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// InsertEntry records the (user, order) ledger guard. ErrAlreadyApplied-style
// handling is left to the caller via db.IsUniqueViolation.
func (r *Repository) InsertEntry(ctx context.Context, entry *models.ProgressionEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// EntryExists reports whether the order was already applied to the user.
func (r *Repository) EntryExists(ctx context.Context, userID, orderID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ProgressionEntry{}).
		Where("user_id = ? AND order_id = ?", userID, orderID).
		Count(&count).Error
	return count > 0, err
}

// GetUser loads the user row without locking.
func (r *Repository) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// LockUser loads the user row under FOR UPDATE so streak and tier decisions
// see a stable snapshot for the duration of the transaction. sqlite has no
// row locks; its single-writer model covers the tests.
func (r *Repository) LockUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	q := r.db.WithContext(ctx)
	if r.db.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var user models.User
	if err := q.First(&user, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// IncrementCounters advances the cumulative aggregate by atomic deltas.
func (r *Repository) IncrementCounters(ctx context.Context, userID uuid.UUID, totals payloads.ImpactTotals, spentCents int64) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"impact_points":     gorm.Expr("impact_points + ?", totals.ImpactPoints),
			"carbon_saved":      gorm.Expr("carbon_saved + ?", totals.CarbonSaved),
			"water_saved":       gorm.Expr("water_saved + ?", totals.WaterSaved),
			"waste_prevented":   gorm.Expr("waste_prevented + ?", totals.WastePrevented),
			"total_orders":      gorm.Expr("total_orders + 1"),
			"total_spent_cents": gorm.Expr("total_spent_cents + ?", spentCents),
		}).Error
}

// UpdateStreak overwrites the streak triple.
func (r *Repository) UpdateStreak(ctx context.Context, userID uuid.UUID, current, longest int, lastPurchase time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"current_streak":     current,
			"longest_streak":     longest,
			"last_purchase_date": lastPurchase,
		}).Error
}

// PromoteTier sets the tier label and its transition timestamp. Monotonicity
// is decided by the caller from the locked row.
func (r *Repository) PromoteTier(ctx context.Context, userID uuid.UUID, tier string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"tier":            tier,
			"tier_changed_at": at,
		}).Error
}

// StampAchievement inserts a first-time achievement. A replayed stamp hits
// the unique index and reports false without error.
func (r *Repository) StampAchievement(ctx context.Context, userID uuid.UUID, kind enums.AchievementKind, at time.Time) (bool, error) {
	err := r.db.WithContext(ctx).Create(&models.UserAchievement{
		ID:       uuid.New(),
		UserID:   userID,
		Kind:     kind,
		EarnedAt: at,
	}).Error
	if err != nil {
		if db.IsUniqueViolation(err, "ux_user_achievements_user_kind") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// AddMonthlyImpact folds the event's points into the month bucket, creating
// it on first purchase of the month.
func (r *Repository) AddMonthlyImpact(ctx context.Context, userID uuid.UUID, month string, points int64) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "month"}},
			DoUpdates: clause.Assignments(map[string]any{
				"impact_points": gorm.Expr("impact_points + ?", points),
				"order_count":   gorm.Expr("order_count + 1"),
			}),
		}).
		Create(&models.UserMonthlyImpact{
			ID:           uuid.New(),
			UserID:       userID,
			Month:        month,
			ImpactPoints: points,
			OrderCount:   1,
		}).Error
}
