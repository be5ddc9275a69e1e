package progression

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/verdana-market/verdana-backend/internal/tiers"
	"github.com/verdana-market/verdana-backend/pkg/db"
	"github.com/verdana-market/verdana-backend/pkg/db/models"
	"github.com/verdana-market/verdana-backend/pkg/enums"
	pkgerrors "github.com/verdana-market/verdana-backend/pkg/errors"
	"github.com/verdana-market/verdana-backend/pkg/logger"
	"github.com/verdana-market/verdana-backend/pkg/outbox/payloads"
)

// ecoAchievementMinRank is the lowest product tier rank that counts as an
// eco product for the first_eco_product stamp ("Eco Aware" and above).
var ecoAchievementMinRank = tiers.ProductTable.Rank("Eco Aware")

// Result is the user's progression snapshot after one settlement event.
type Result struct {
	// Applied is false when the order was already folded into the ledger and
	// the event was a replay.
	Applied         bool
	ImpactPoints    int64
	Tier            string
	TierChanged     bool
	CurrentStreak   int
	LongestStreak   int
	NewAchievements []enums.AchievementKind
}

// Service is the user progression ledger. One settlement event moves the
// cumulative counters, streak, tier, achievements and monthly history in a
// single transaction guarded by the (user, order) ledger entry.
type Service interface {
	ApplyEvent(ctx context.Context, event payloads.SettlementEvent) (*Result, error)
	Snapshot(ctx context.Context, event payloads.SettlementEvent) (*Result, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo *Repository
	tx   txRunner
	logg *logger.Logger
}

// NewService constructs the progression ledger service.
func NewService(repo *Repository, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("progression repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, logg: logg}, nil
}

// ApplyEvent folds one settlement event into the user's aggregate. Replays
// are detected by the ledger entry's unique index and return the current
// snapshot with Applied=false.
func (s *service) ApplyEvent(ctx context.Context, event payloads.SettlementEvent) (*Result, error) {
	result := &Result{Applied: true}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		entry := &models.ProgressionEntry{
			ID:           uuid.New(),
			UserID:       event.UserID,
			OrderID:      event.OrderID,
			ImpactPoints: event.TotalImpact.ImpactPoints,
		}
		if err := repo.InsertEntry(ctx, entry); err != nil {
			if db.IsUniqueViolation(err, "ux_progression_entries_user_order") {
				result.Applied = false
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert progression entry")
		}

		user, err := repo.LockUser(ctx, event.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("user %s not found", event.UserID))
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock user")
		}

		if err := repo.IncrementCounters(ctx, event.UserID, event.TotalImpact, event.TotalCents); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment user counters")
		}

		current, longest := advanceStreak(user.CurrentStreak, user.LongestStreak, user.LastPurchaseDate, event.SettledAt)
		if err := repo.UpdateStreak(ctx, event.UserID, current, longest, dateOf(event.SettledAt)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update streak")
		}
		result.CurrentStreak = current
		result.LongestStreak = longest

		newPoints := user.ImpactPoints + event.TotalImpact.ImpactPoints
		result.ImpactPoints = newPoints
		result.Tier = user.Tier
		newTier := tiers.UserTable.Classify(newPoints)
		if tiers.UserTable.Rank(newTier) > tiers.UserTable.Rank(user.Tier) {
			if err := repo.PromoteTier(ctx, event.UserID, newTier, event.SettledAt); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "promote tier")
			}
			result.Tier = newTier
			result.TierChanged = true
			stamped, err := repo.StampAchievement(ctx, event.UserID, enums.AchievementTierPromotion, event.SettledAt)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stamp tier promotion")
			}
			if stamped {
				result.NewAchievements = append(result.NewAchievements, enums.AchievementTierPromotion)
			}
		}

		if user.TotalOrders == 0 {
			stamped, err := repo.StampAchievement(ctx, event.UserID, enums.AchievementFirstPurchase, event.SettledAt)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stamp first purchase")
			}
			if stamped {
				result.NewAchievements = append(result.NewAchievements, enums.AchievementFirstPurchase)
			}
		}
		if hasEcoLine(event.LineImpacts) {
			stamped, err := repo.StampAchievement(ctx, event.UserID, enums.AchievementFirstEcoProduct, event.SettledAt)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stamp first eco product")
			}
			if stamped {
				result.NewAchievements = append(result.NewAchievements, enums.AchievementFirstEcoProduct)
			}
		}

		month := event.SettledAt.UTC().Format("2006-01")
		if err := repo.AddMonthlyImpact(ctx, event.UserID, month, event.TotalImpact.ImpactPoints); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add monthly impact")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.Applied {
		logCtx := s.logg.WithOrderID(s.logg.WithUserID(ctx, event.UserID.String()), event.OrderID.String())
		s.logg.Info(logCtx, "progression event already applied, skipping")
		return s.Snapshot(ctx, event)
	}
	return result, nil
}

// Snapshot reads the user's current progression without mutating anything.
// Used to assemble replay responses.
func (s *service) Snapshot(ctx context.Context, event payloads.SettlementEvent) (*Result, error) {
	user, err := s.repo.GetUser(ctx, event.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("user %s not found", event.UserID))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return &Result{
		Applied:       false,
		ImpactPoints:  user.ImpactPoints,
		Tier:          user.Tier,
		CurrentStreak: user.CurrentStreak,
		LongestStreak: user.LongestStreak,
	}, nil
}

func hasEcoLine(lines []payloads.LineImpact) bool {
	for _, line := range lines {
		if tiers.ProductTable.Rank(line.EcoTier) >= ecoAchievementMinRank {
			return true
		}
	}
	return false
}
