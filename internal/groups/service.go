package groups

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/verdana-market/verdana-backend/pkg/db"
	"github.com/verdana-market/verdana-backend/pkg/db/models"
	"github.com/verdana-market/verdana-backend/pkg/enums"
	pkgerrors "github.com/verdana-market/verdana-backend/pkg/errors"
	"github.com/verdana-market/verdana-backend/pkg/outbox"
	"github.com/verdana-market/verdana-backend/pkg/outbox/payloads"
	"github.com/verdana-market/verdana-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CreateGroupInput is the payload to open a new group.
type CreateGroupInput struct {
	Name        string
	Description *string
	MaxMembers  int
}

// StartChallengeInput is the payload to start a group challenge.
type StartChallengeInput struct {
	Name         string
	Description  *string
	TargetMetric enums.ChallengeTargetMetric
	TargetValue  int64
	RewardPoints int64
	Deadline     time.Time
}

// Service exposes group lifecycle operations. Every state change appends one
// activity-log entry.
type Service interface {
	CreateGroup(ctx context.Context, creatorID uuid.UUID, input CreateGroupInput) (*models.Group, error)
	GetGroup(ctx context.Context, groupID uuid.UUID) (*models.Group, error)
	JoinGroup(ctx context.Context, groupID, userID uuid.UUID) (*models.GroupMembership, error)
	LeaveGroup(ctx context.Context, groupID, userID uuid.UUID) error
	ChangeRole(ctx context.Context, groupID, actorID, targetUserID uuid.UUID, role enums.MemberRole) error
	StartChallenge(ctx context.Context, groupID, userID uuid.UUID, input StartChallengeInput) (*models.GroupChallenge, error)
	Leaderboard(ctx context.Context, groupID uuid.UUID, limit int) ([]models.GroupMembership, error)
	ActivityFeed(ctx context.Context, groupID uuid.UUID, params pagination.Params) ([]models.GroupActivity, string, error)
}

type service struct {
	repo   *Repository
	tx     txRunner
	outbox outboxPublisher
}

// NewService constructs the group lifecycle service.
func NewService(repo *Repository, tx txRunner, outboxSvc outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("groups repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: outboxSvc}, nil
}

func (s *service) CreateGroup(ctx context.Context, creatorID uuid.UUID, input CreateGroupInput) (*models.Group, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "group name required")
	}
	if creatorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "creator id required")
	}
	maxMembers := input.MaxMembers
	if maxMembers <= 0 {
		maxMembers = 50
	}

	now := time.Now().UTC()
	group := &models.Group{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		MaxMembers:  maxMembers,
		MemberCount: 1,
		Tier:        "Eco Beginners",
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateGroup(ctx, group); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create group")
		}
		membership := &models.GroupMembership{
			ID:       uuid.New(),
			GroupID:  group.ID,
			UserID:   creatorID,
			Role:     enums.MemberRoleLeader,
			Status:   enums.MembershipStatusActive,
			JoinedAt: now,
		}
		if err := repo.CreateMembership(ctx, membership); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create leader membership")
		}
		if err := s.appendMemberActivity(ctx, repo, group.ID, creatorID, enums.ActivityMemberJoined, "Group created"); err != nil {
			return err
		}
		return s.emitJoined(ctx, tx, group.ID, creatorID, enums.MemberRoleLeader, now)
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

func (s *service) GetGroup(ctx context.Context, groupID uuid.UUID) (*models.Group, error) {
	group, err := s.repo.GetGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("group %s not found", groupID))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load group")
	}
	return group, nil
}

func (s *service) JoinGroup(ctx context.Context, groupID, userID uuid.UUID) (*models.GroupMembership, error) {
	now := time.Now().UTC()
	var membership *models.GroupMembership

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		existing, err := repo.GetMembership(ctx, groupID, userID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
		}
		if existing != nil && existing.Status == enums.MembershipStatusActive {
			return pkgerrors.New(pkgerrors.CodeConflict, "user is already a member of this group")
		}

		claimed, err := repo.ClaimMemberSlot(ctx, groupID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim member slot")
		}
		if !claimed {
			if _, gerr := repo.GetGroup(ctx, groupID); errors.Is(gerr, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("group %s not found", groupID))
			}
			return pkgerrors.New(pkgerrors.CodeConflict, "group is full")
		}

		if existing != nil {
			if err := repo.ReactivateMembership(ctx, existing.ID, enums.MemberRoleMember, now); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reactivate membership")
			}
			existing.Status = enums.MembershipStatusActive
			existing.Role = enums.MemberRoleMember
			existing.JoinedAt = now
			existing.LeftAt = nil
			membership = existing
		} else {
			membership = &models.GroupMembership{
				ID:       uuid.New(),
				GroupID:  groupID,
				UserID:   userID,
				Role:     enums.MemberRoleMember,
				Status:   enums.MembershipStatusActive,
				JoinedAt: now,
			}
			if err := repo.CreateMembership(ctx, membership); err != nil {
				if db.IsUniqueViolation(err, "ux_group_memberships_group_user") {
					return pkgerrors.New(pkgerrors.CodeConflict, "user is already a member of this group")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create membership")
			}
		}

		if err := s.appendMemberActivity(ctx, repo, groupID, userID, enums.ActivityMemberJoined, "Member joined the group"); err != nil {
			return err
		}
		return s.emitJoined(ctx, tx, groupID, userID, enums.MemberRoleMember, now)
	})
	if err != nil {
		return nil, err
	}
	return membership, nil
}

func (s *service) LeaveGroup(ctx context.Context, groupID, userID uuid.UUID) error {
	now := time.Now().UTC()

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		membership, err := repo.GetMembership(ctx, groupID, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "membership not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
		}
		if membership.Status != enums.MembershipStatusActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "membership is not active")
		}
		if membership.Role == enums.MemberRoleLeader {
			active, err := repo.CountActiveMembers(ctx, groupID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count active members")
			}
			if active > 1 {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "leader must transfer the role before leaving")
			}
		}

		if err := repo.DeactivateMembership(ctx, membership.ID, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate membership")
		}
		if err := repo.ReleaseMemberSlot(ctx, groupID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release member slot")
		}
		if err := s.appendMemberActivity(ctx, repo, groupID, userID, enums.ActivityMemberLeft, "Member left the group"); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventGroupMemberLeft,
			AggregateType: enums.AggregateGroup,
			AggregateID:   groupID,
			Actor:         &outbox.ActorRef{UserID: &userID, GroupID: &groupID},
			Data:          payloads.GroupMemberLeftEvent{GroupID: groupID, UserID: userID, LeftAt: now},
			OccurredAt:    now,
		})
	})
}

func (s *service) ChangeRole(ctx context.Context, groupID, actorID, targetUserID uuid.UUID, role enums.MemberRole) error {
	if !role.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid role %q", role))
	}
	if actorID == targetUserID {
		return pkgerrors.New(pkgerrors.CodeValidation, "cannot change own role")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		actor, err := repo.GetMembership(ctx, groupID, actorID)
		if err != nil || actor.Status != enums.MembershipStatusActive || actor.Role != enums.MemberRoleLeader {
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load actor membership")
			}
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the group leader can change roles")
		}

		target, err := repo.GetMembership(ctx, groupID, targetUserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "target membership not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load target membership")
		}
		if target.Status != enums.MembershipStatusActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "target membership is not active")
		}

		// Leadership is a transfer: promoting the target demotes the actor so
		// exactly one leader remains.
		if role == enums.MemberRoleLeader {
			if err := repo.SetMembershipRole(ctx, actor.ID, enums.MemberRoleMember); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "demote previous leader")
			}
		}
		if err := repo.SetMembershipRole(ctx, target.ID, role); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set target role")
		}

		message := fmt.Sprintf("Role changed to %s", role)
		return s.appendMemberActivity(ctx, repo, groupID, targetUserID, enums.ActivityRoleChanged, message)
	})
}

func (s *service) StartChallenge(ctx context.Context, groupID, userID uuid.UUID, input StartChallengeInput) (*models.GroupChallenge, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "challenge name required")
	}
	if !input.TargetMetric.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid target metric %q", input.TargetMetric))
	}
	if input.TargetValue <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "target value must be positive")
	}
	if input.RewardPoints < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reward points cannot be negative")
	}
	now := time.Now().UTC()
	if !input.Deadline.After(now) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deadline must be in the future")
	}

	challenge := &models.GroupChallenge{
		ID:              uuid.New(),
		GroupID:         groupID,
		Name:            strings.TrimSpace(input.Name),
		Description:     input.Description,
		TargetMetric:    input.TargetMetric,
		TargetValue:     input.TargetValue,
		RewardPoints:    input.RewardPoints,
		Deadline:        input.Deadline.UTC(),
		IsActive:        true,
		CreatedByUserID: userID,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		membership, err := repo.GetMembership(ctx, groupID, userID)
		if err != nil || membership.Status != enums.MembershipStatusActive ||
			(membership.Role != enums.MemberRoleLeader && membership.Role != enums.MemberRoleModerator) {
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
			}
			return pkgerrors.New(pkgerrors.CodeForbidden, "only leaders and moderators can start challenges")
		}

		if _, err := repo.GetActiveChallenge(ctx, groupID); err == nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "group already has an active challenge")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check active challenge")
		}

		if err := repo.CreateChallenge(ctx, challenge); err != nil {
			if db.IsUniqueViolation(err, "ux_group_challenges_one_active") {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "group already has an active challenge")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create challenge")
		}

		activity := &models.GroupActivity{
			ID:      uuid.New(),
			GroupID: groupID,
			UserID:  &userID,
			Kind:    enums.ActivityChallengeStarted,
			Message: fmt.Sprintf("Challenge %q started: reach %d %s by %s", challenge.Name, challenge.TargetValue, challenge.TargetMetric, challenge.Deadline.Format("2006-01-02")),
		}
		if err := repo.AppendActivity(ctx, activity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append challenge activity")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventChallengeStarted,
			AggregateType: enums.AggregateChallenge,
			AggregateID:   challenge.ID,
			Actor:         &outbox.ActorRef{UserID: &userID, GroupID: &groupID},
			Data: payloads.ChallengeStartedEvent{
				ChallengeID:  challenge.ID,
				GroupID:      groupID,
				Name:         challenge.Name,
				TargetMetric: challenge.TargetMetric,
				TargetValue:  challenge.TargetValue,
				Deadline:     challenge.Deadline,
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	return challenge, nil
}

func (s *service) Leaderboard(ctx context.Context, groupID uuid.UUID, limit int) ([]models.GroupMembership, error) {
	if _, err := s.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	rows, err := s.repo.Leaderboard(ctx, groupID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load leaderboard")
	}
	return rows, nil
}

func (s *service) ActivityFeed(ctx context.Context, groupID uuid.UUID, params pagination.Params) ([]models.GroupActivity, string, error) {
	if _, err := s.GetGroup(ctx, groupID); err != nil {
		return nil, "", err
	}
	rows, next, err := s.repo.ListActivities(ctx, groupID, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load activity feed")
	}
	return rows, next, nil
}

func (s *service) appendMemberActivity(ctx context.Context, repo *Repository, groupID, userID uuid.UUID, kind enums.GroupActivityType, message string) error {
	activity := &models.GroupActivity{
		ID:      uuid.New(),
		GroupID: groupID,
		UserID:  &userID,
		Kind:    kind,
		Message: message,
	}
	if err := repo.AppendActivity(ctx, activity); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append activity")
	}
	return nil
}

func (s *service) emitJoined(ctx context.Context, tx *gorm.DB, groupID, userID uuid.UUID, role enums.MemberRole, at time.Time) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventGroupMemberJoined,
		AggregateType: enums.AggregateGroup,
		AggregateID:   groupID,
		Actor:         &outbox.ActorRef{UserID: &userID, GroupID: &groupID},
		Data:          payloads.GroupMemberJoinedEvent{GroupID: groupID, UserID: userID, Role: role, JoinedAt: at},
		OccurredAt:    at,
	})
}
