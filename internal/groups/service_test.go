package groups

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/verdana-market/verdana-backend/pkg/db/models"
	"github.com/verdana-market/verdana-backend/pkg/enums"
	pkgerrors "github.com/verdana-market/verdana-backend/pkg/errors"
	"github.com/verdana-market/verdana-backend/pkg/logger"
	"github.com/verdana-market/verdana-backend/pkg/outbox"
	"github.com/verdana-market/verdana-backend/pkg/pagination"
)

func newTestGroupService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "groups-test", Output: io.Discard})
	outboxSvc := outbox.NewService(outbox.NewRepository(db), logg)
	svc, err := NewService(NewRepository(db), gormRunner{db: db}, outboxSvc)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestCreateGroupSeedsLeader(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestGroupService(t, db)
	ctx := context.Background()
	creator := uuid.New()

	group, err := svc.CreateGroup(ctx, creator, CreateGroupInput{Name: "Trail Stewards"})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if group.MemberCount != 1 || group.MaxMembers != 50 || group.Tier != "Eco Beginners" {
		t.Fatalf("unexpected group defaults: %+v", group)
	}

	var membership models.GroupMembership
	if err := db.First(&membership, "group_id = ? AND user_id = ?", group.ID, creator).Error; err != nil {
		t.Fatalf("load membership: %v", err)
	}
	if membership.Role != enums.MemberRoleLeader || membership.Status != enums.MembershipStatusActive {
		t.Fatalf("unexpected leader membership: %+v", membership)
	}
	assertActivityCount(t, db, group.ID, enums.ActivityMemberJoined, 1)
}

func TestJoinGroupRejectsDuplicatesAndFullGroups(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestGroupService(t, db)
	ctx := context.Background()

	group, err := svc.CreateGroup(ctx, uuid.New(), CreateGroupInput{Name: "Tiny Circle", MaxMembers: 2})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	joiner := uuid.New()
	if _, err := svc.JoinGroup(ctx, group.ID, joiner); err != nil {
		t.Fatalf("join: %v", err)
	}

	_, err = svc.JoinGroup(ctx, group.ID, joiner)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected duplicate-join conflict, got %v", err)
	}

	_, err = svc.JoinGroup(ctx, group.ID, uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected group-full conflict, got %v", err)
	}
}

func TestLeaveGroupLeaderMustTransfer(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestGroupService(t, db)
	ctx := context.Background()

	leader := uuid.New()
	group, err := svc.CreateGroup(ctx, leader, CreateGroupInput{Name: "Harbor Guild"})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	member := uuid.New()
	if _, err := svc.JoinGroup(ctx, group.ID, member); err != nil {
		t.Fatalf("join: %v", err)
	}

	err = svc.LeaveGroup(ctx, group.ID, leader)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected leader transfer conflict, got %v", err)
	}

	if err := svc.ChangeRole(ctx, group.ID, leader, member, enums.MemberRoleLeader); err != nil {
		t.Fatalf("transfer leadership: %v", err)
	}
	if err := svc.LeaveGroup(ctx, group.ID, leader); err != nil {
		t.Fatalf("leave after transfer: %v", err)
	}

	// exactly one active leader remains
	var leaders int64
	if err := db.Model(&models.GroupMembership{}).
		Where("group_id = ? AND role = ? AND status = ?", group.ID, enums.MemberRoleLeader, enums.MembershipStatusActive).
		Count(&leaders).Error; err != nil {
		t.Fatalf("count leaders: %v", err)
	}
	if leaders != 1 {
		t.Fatalf("expected exactly one leader, got %d", leaders)
	}

	var loaded models.Group
	if err := db.First(&loaded, "id = ?", group.ID).Error; err != nil {
		t.Fatalf("load group: %v", err)
	}
	if loaded.MemberCount != 1 {
		t.Fatalf("expected member count 1, got %d", loaded.MemberCount)
	}
}

func TestStartChallengeRejectsSecondActive(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestGroupService(t, db)
	ctx := context.Background()

	leader := uuid.New()
	group, err := svc.CreateGroup(ctx, leader, CreateGroupInput{Name: "Peak Baggers"})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	input := StartChallengeInput{
		Name:         "Autumn Push",
		TargetMetric: enums.ChallengeTargetImpactPoints,
		TargetValue:  1000,
		RewardPoints: 100,
		Deadline:     time.Now().UTC().Add(30 * 24 * time.Hour),
	}
	if _, err := svc.StartChallenge(ctx, group.ID, leader, input); err != nil {
		t.Fatalf("start challenge: %v", err)
	}

	_, err = svc.StartChallenge(ctx, group.ID, leader, input)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected already-active conflict, got %v", err)
	}

	member := uuid.New()
	if _, err := svc.JoinGroup(ctx, group.ID, member); err != nil {
		t.Fatalf("join: %v", err)
	}
	_, err = svc.StartChallenge(ctx, group.ID, member, input)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden for plain member, got %v", err)
	}
}

func TestLeaderboardAndActivityFeed(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestGroupService(t, db)
	ctx := context.Background()

	leader := uuid.New()
	group, err := svc.CreateGroup(ctx, leader, CreateGroupInput{Name: "Meadow Minders"})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	member := uuid.New()
	if _, err := svc.JoinGroup(ctx, group.ID, member); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := db.Model(&models.GroupMembership{}).
		Where("group_id = ? AND user_id = ?", group.ID, member).
		Update("contribution_points", 40).Error; err != nil {
		t.Fatalf("seed points: %v", err)
	}

	board, err := svc.Leaderboard(ctx, group.ID, 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(board) != 2 || board[0].UserID != member {
		t.Fatalf("unexpected leaderboard order: %+v", board)
	}

	feed, _, err := svc.ActivityFeed(ctx, group.ID, pagination.Params{Limit: 10})
	if err != nil {
		t.Fatalf("activity feed: %v", err)
	}
	if len(feed) != 2 {
		t.Fatalf("expected 2 activity entries, got %d", len(feed))
	}
}
