package groups

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/verdana-market/verdana-backend/pkg/db/models"
	"github.com/verdana-market/verdana-backend/pkg/enums"
	"github.com/verdana-market/verdana-backend/pkg/outbox/payloads"
	"github.com/verdana-market/verdana-backend/pkg/pagination"
)

// Repository persists groups, memberships, challenges and the activity log.
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

// CreateGroup inserts a new group row.
func (r *Repository) CreateGroup(ctx context.Context, group *models.Group) error {
	return r.db.WithContext(ctx).Create(group).Error
}

// GetGroup loads one group.
func (r *Repository) GetGroup(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	var group models.Group
	if err := r.db.WithContext(ctx).First(&group, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

// LockGroup loads the group row under FOR UPDATE on postgres so tier
// decisions see a stable point total.
func (r *Repository) LockGroup(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	q := r.db.WithContext(ctx)
	if r.db.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var group models.Group
	if err := q.First(&group, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

// FindActiveMembershipsByUser returns every active membership of the user.
func (r *Repository) FindActiveMembershipsByUser(ctx context.Context, userID uuid.UUID) ([]models.GroupMembership, error) {
	var rows []models.GroupMembership
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, enums.MembershipStatusActive).
		Order("joined_at ASC").
		Find(&rows).Error
	return rows, err
}

// GetMembership loads the membership row regardless of status.
func (r *Repository) GetMembership(ctx context.Context, groupID, userID uuid.UUID) (*models.GroupMembership, error) {
	var row models.GroupMembership
	err := r.db.WithContext(ctx).
		First(&row, "group_id = ? AND user_id = ?", groupID, userID).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// CreateMembership inserts a membership row.
func (r *Repository) CreateMembership(ctx context.Context, m *models.GroupMembership) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// ReactivateMembership flips a removed membership back to active.
func (r *Repository) ReactivateMembership(ctx context.Context, id uuid.UUID, role enums.MemberRole, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.GroupMembership{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":    enums.MembershipStatusActive,
			"role":      role,
			"joined_at": at,
			"left_at":   nil,
		}).Error
}

// DeactivateMembership marks the membership removed.
func (r *Repository) DeactivateMembership(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.GroupMembership{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":  enums.MembershipStatusRemoved,
			"left_at": at,
		}).Error
}

// SetMembershipRole updates the member's role.
func (r *Repository) SetMembershipRole(ctx context.Context, id uuid.UUID, role enums.MemberRole) error {
	return r.db.WithContext(ctx).
		Model(&models.GroupMembership{}).
		Where("id = ?", id).
		Update("role", role).Error
}

// ClaimMemberSlot increments member_count only while capacity remains. A zero
// row count means the group is full.
func (r *Repository) ClaimMemberSlot(ctx context.Context, groupID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Group{}).
		Where("id = ? AND member_count < max_members", groupID).
		Update("member_count", gorm.Expr("member_count + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ReleaseMemberSlot decrements member_count, never below zero.
func (r *Repository) ReleaseMemberSlot(ctx context.Context, groupID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Group{}).
		Where("id = ? AND member_count > 0", groupID).
		Update("member_count", gorm.Expr("member_count - 1")).Error
}

// IncrementGroupCounters advances the group aggregate by atomic deltas.
func (r *Repository) IncrementGroupCounters(ctx context.Context, groupID uuid.UUID, totals payloads.ImpactTotals, spentCents int64) error {
	return r.db.WithContext(ctx).
		Model(&models.Group{}).
		Where("id = ?", groupID).
		Updates(map[string]any{
			"impact_points":     gorm.Expr("impact_points + ?", totals.ImpactPoints),
			"carbon_saved":      gorm.Expr("carbon_saved + ?", totals.CarbonSaved),
			"water_saved":       gorm.Expr("water_saved + ?", totals.WaterSaved),
			"waste_prevented":   gorm.Expr("waste_prevented + ?", totals.WastePrevented),
			"total_orders":      gorm.Expr("total_orders + 1"),
			"total_spent_cents": gorm.Expr("total_spent_cents + ?", spentCents),
		}).Error
}

// SetGroupTier overwrites the tier label. Monotonicity is decided by the
// caller from the locked row.
func (r *Repository) SetGroupTier(ctx context.Context, groupID uuid.UUID, tier string) error {
	return r.db.WithContext(ctx).
		Model(&models.Group{}).
		Where("id = ?", groupID).
		Update("tier", tier).Error
}

// CreditContribution adds points to one active membership.
func (r *Repository) CreditContribution(ctx context.Context, groupID, userID uuid.UUID, points int64) error {
	return r.db.WithContext(ctx).
		Model(&models.GroupMembership{}).
		Where("group_id = ? AND user_id = ? AND status = ?", groupID, userID, enums.MembershipStatusActive).
		Update("contribution_points", gorm.Expr("contribution_points + ?", points)).Error
}

// CreditAllActiveMembers pays the challenge reward to every active member in
// one statement.
func (r *Repository) CreditAllActiveMembers(ctx context.Context, groupID uuid.UUID, points int64) (int, error) {
	res := r.db.WithContext(ctx).
		Model(&models.GroupMembership{}).
		Where("group_id = ? AND status = ?", groupID, enums.MembershipStatusActive).
		Update("contribution_points", gorm.Expr("contribution_points + ?", points))
	return int(res.RowsAffected), res.Error
}

// InsertContributionEntry records the (group, order) propagation guard.
func (r *Repository) InsertContributionEntry(ctx context.Context, entry *models.ContributionEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// GetActiveChallenge returns the group's single active challenge, or
// gorm.ErrRecordNotFound.
func (r *Repository) GetActiveChallenge(ctx context.Context, groupID uuid.UUID) (*models.GroupChallenge, error) {
	var row models.GroupChallenge
	err := r.db.WithContext(ctx).
		First(&row, "group_id = ? AND is_active = ?", groupID, true).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// CreateChallenge inserts a challenge row. The partial unique index on
// (group_id) WHERE is_active backs the at-most-one-active invariant.
func (r *Repository) CreateChallenge(ctx context.Context, challenge *models.GroupChallenge) error {
	return r.db.WithContext(ctx).Create(challenge).Error
}

// AdvanceChallengeProgress adds delta to an active challenge's progress. The
// is_active predicate keeps late events from moving a settled challenge.
func (r *Repository) AdvanceChallengeProgress(ctx context.Context, challengeID uuid.UUID, delta int64) error {
	return r.db.WithContext(ctx).
		Model(&models.GroupChallenge{}).
		Where("id = ? AND is_active = ?", challengeID, true).
		Update("current_progress", gorm.Expr("current_progress + ?", delta)).Error
}

// GetChallenge reloads a challenge row.
func (r *Repository) GetChallenge(ctx context.Context, challengeID uuid.UUID) (*models.GroupChallenge, error) {
	var row models.GroupChallenge
	if err := r.db.WithContext(ctx).First(&row, "id = ?", challengeID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// CompleteChallenge conditionally flips is_active. Exactly one concurrent
// caller sees true; everyone else must treat the loss as a no-op.
func (r *Repository) CompleteChallenge(ctx context.Context, challengeID uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.GroupChallenge{}).
		Where("id = ? AND is_active = ?", challengeID, true).
		Updates(map[string]any{
			"is_active":    false,
			"completed_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ExpireChallenge conditionally deactivates a past-deadline challenge.
func (r *Repository) ExpireChallenge(ctx context.Context, challengeID uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.GroupChallenge{}).
		Where("id = ? AND is_active = ?", challengeID, true).
		Updates(map[string]any{
			"is_active":  false,
			"expired_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// FindDueChallenges lists active challenges whose deadline has passed.
func (r *Repository) FindDueChallenges(ctx context.Context, now time.Time, limit int) ([]models.GroupChallenge, error) {
	var rows []models.GroupChallenge
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND deadline < ?", true, now).
		Order("deadline ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// InsertAchievement records the completed challenge. The unique index on
// challenge_id is the second line of defense for exactly-once completion.
func (r *Repository) InsertAchievement(ctx context.Context, achievement *models.GroupAchievement) error {
	return r.db.WithContext(ctx).Create(achievement).Error
}

// AppendActivity appends one audit entry. The log is append-only; nothing in
// the engine updates or deletes rows.
func (r *Repository) AppendActivity(ctx context.Context, activity *models.GroupActivity) error {
	return r.db.WithContext(ctx).Create(activity).Error
}

// CountActiveMembers returns the current active membership count.
func (r *Repository) CountActiveMembers(ctx context.Context, groupID uuid.UUID) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.GroupMembership{}).
		Where("group_id = ? AND status = ?", groupID, enums.MembershipStatusActive).
		Count(&count).Error
	return int(count), err
}

// Leaderboard lists active members by contribution points.
func (r *Repository) Leaderboard(ctx context.Context, groupID uuid.UUID, limit int) ([]models.GroupMembership, error) {
	if limit <= 0 {
		limit = pagination.NormalizeLimit(limit)
	}
	var rows []models.GroupMembership
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND status = ?", groupID, enums.MembershipStatusActive).
		Order("contribution_points DESC, joined_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ListActivities returns a cursor page of the activity log, newest first.
func (r *Repository) ListActivities(ctx context.Context, groupID uuid.UUID, params pagination.Params) ([]models.GroupActivity, string, error) {
	pageSize := pagination.NormalizeLimit(params.Limit)
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}

	qb := r.db.WithContext(ctx).Where("group_id = ?", groupID)
	if cursor != nil {
		qb = qb.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.GroupActivity
	if err := qb.Order("created_at DESC, id DESC").Limit(pageSize + 1).Find(&rows).Error; err != nil {
		return nil, "", err
	}

	hasMore := len(rows) > pageSize
	if hasMore {
		rows = rows[:pageSize]
	}
	next := ""
	if len(rows) > 0 {
		last := rows[len(rows)-1]
		next = pagination.NextCursor(hasMore, last.CreatedAt, last.ID)
	}
	return rows, next, nil
}
