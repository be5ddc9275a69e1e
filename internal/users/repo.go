package users

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/verdana-market/verdana-backend/pkg/db/models"
)

// Repository exposes user-related persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Create inserts a new user and returns the persisted model.
func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByEmail retrieves the user matching the provided email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ListAchievements returns the user's achievements newest first.
func (r *Repository) ListAchievements(ctx context.Context, userID uuid.UUID) ([]models.UserAchievement, error) {
	var rows []models.UserAchievement
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("earned_at DESC").
		Find(&rows).Error
	return rows, err
}

// ListMonthlyImpact returns up to months of recent monthly buckets, most
// recent month first.
func (r *Repository) ListMonthlyImpact(ctx context.Context, userID uuid.UUID, months int) ([]models.UserMonthlyImpact, error) {
	if months <= 0 {
		months = 12
	}
	var rows []models.UserMonthlyImpact
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("month DESC").
		Limit(months).
		Find(&rows).Error
	return rows, err
}
