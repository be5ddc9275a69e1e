package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/verdana-market/verdana-backend/pkg/db/models"
)

// UserDTO is the transport shape of a user profile with its progression
// aggregate.
type UserDTO struct {
	ID               uuid.UUID  `json:"id"`
	Email            string     `json:"email"`
	FirstName        string     `json:"first_name"`
	LastName         string     `json:"last_name"`
	IsActive         bool       `json:"is_active"`
	ImpactPoints     int64      `json:"impact_points"`
	CarbonSaved      int64      `json:"carbon_saved"`
	WaterSaved       int64      `json:"water_saved"`
	WastePrevented   int64      `json:"waste_prevented"`
	TotalOrders      int64      `json:"total_orders"`
	TotalSpentCents  int64      `json:"total_spent_cents"`
	Tier             string     `json:"tier"`
	TierChangedAt    *time.Time `json:"tier_changed_at,omitempty"`
	CurrentStreak    int        `json:"current_streak"`
	LongestStreak    int        `json:"longest_streak"`
	LastPurchaseDate *string    `json:"last_purchase_date,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email     string
	FirstName string
	LastName  string
	IsActive  *bool
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}

	var lastPurchase *string
	if u.LastPurchaseDate != nil {
		formatted := u.LastPurchaseDate.UTC().Format("2006-01-02")
		lastPurchase = &formatted
	}

	return &UserDTO{
		ID:               u.ID,
		Email:            u.Email,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		IsActive:         u.IsActive,
		ImpactPoints:     u.ImpactPoints,
		CarbonSaved:      u.CarbonSaved,
		WaterSaved:       u.WaterSaved,
		WastePrevented:   u.WastePrevented,
		TotalOrders:      u.TotalOrders,
		TotalSpentCents:  u.TotalSpent,
		Tier:             u.Tier,
		TierChangedAt:    u.TierChangedAt,
		CurrentStreak:    u.CurrentStreak,
		LongestStreak:    u.LongestStreak,
		LastPurchaseDate: lastPurchase,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	isActive := true
	if c.IsActive != nil {
		isActive = *c.IsActive
	}

	return &models.User{
		ID:        uuid.New(),
		Email:     c.Email,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		IsActive:  isActive,
		Tier:      "Seedling",
	}
}
