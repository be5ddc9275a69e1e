package groups

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
	"github.com/verdana-market/verdana-backend/pkg/outbox"
	"github.com/verdana-market/verdana-backend/pkg/outbox/payloads"
)

// ChallengeCompletion summarizes a reward fan-out fired by one settlement.
type ChallengeCompletion struct {
	ChallengeID      uuid.UUID
	Name             string
	RewardPoints     int64
	ParticipantCount int
}

// GroupOutcome is the per-group result of propagating one settlement event.
type GroupOutcome struct {
	GroupID uuid.UUID
	// Applied is false when the (group, order) pair was already credited.
	Applied             bool
	ContributionCredit  int64
	GroupImpactPoints   int64
	GroupTier           string
	ChallengeCompletion *ChallengeCompletion
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Propagator fans one settlement event out to every active group membership
// of the purchasing user.
type Propagator interface {
	Propagate(ctx context.Context, event payloads.SettlementEvent) ([]GroupOutcome, error)
}

type propagator struct {
	repo     *Repository
	tx       txRunner
	outbox   outboxPublisher
	logg     *logger.Logger
	shareBps int
}

// NewPropagator constructs the group challenge propagator. shareBps is the
// member contribution share of the event's impact points, in basis points.
func NewPropagator(repo *Repository, tx txRunner, outboxSvc outboxPublisher, logg *logger.Logger, shareBps int) (Propagator, error) {
	if repo == nil {
		return nil, fmt.Errorf("groups repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if shareBps < 0 || shareBps > 10000 {
		return nil, fmt.Errorf("contribution share out of range: %d", shareBps)
	}
	return &propagator{repo: repo, tx: tx, outbox: outboxSvc, logg: logg, shareBps: shareBps}, nil
}

// Propagate credits each of the user's active groups in its own transaction,
// guarded by the (group, order) contribution entry. A failure in one group
// does not roll back the others; the event replay covers the remainder.
func (p *propagator) Propagate(ctx context.Context, event payloads.SettlementEvent) ([]GroupOutcome, error) {
	memberships, err := p.repo.FindActiveMembershipsByUser(ctx, event.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load memberships")
	}

	outcomes := make([]GroupOutcome, 0, len(memberships))
	for _, membership := range memberships {
		outcome, err := p.propagateToGroup(ctx, membership.GroupID, event)
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, *outcome)
	}
	return outcomes, nil
}

func (p *propagator) propagateToGroup(ctx context.Context, groupID uuid.UUID, event payloads.SettlementEvent) (*GroupOutcome, error) {
	credit := event.TotalImpact.ImpactPoints * int64(p.shareBps) / 10000
	outcome := &GroupOutcome{GroupID: groupID, Applied: true, ContributionCredit: credit}

	err := p.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := p.repo.WithTx(tx)

		entry := &models.ContributionEntry{
			ID:                 uuid.New(),
			GroupID:            groupID,
			OrderID:            event.OrderID,
			UserID:             event.UserID,
			ContributionPoints: credit,
		}
		if err := repo.InsertContributionEntry(ctx, entry); err != nil {
			if db.IsUniqueViolation(err, "ux_contribution_entries_group_order") {
				outcome.Applied = false
				outcome.ContributionCredit = 0
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert contribution entry")
		}

		group, err := repo.LockGroup(ctx, groupID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("group %s not found", groupID))
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock group")
		}

		if err := repo.CreditContribution(ctx, groupID, event.UserID, credit); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit contribution")
		}
		if err := repo.IncrementGroupCounters(ctx, groupID, event.TotalImpact, event.TotalCents); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment group counters")
		}

		newPoints := group.ImpactPoints + event.TotalImpact.ImpactPoints
		outcome.GroupImpactPoints = newPoints
		outcome.GroupTier = group.Tier
		newTier := tiers.GroupTable.Classify(newPoints)
		if tiers.GroupTable.Rank(newTier) > tiers.GroupTable.Rank(group.Tier) {
			if err := repo.SetGroupTier(ctx, groupID, newTier); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "promote group tier")
			}
			outcome.GroupTier = newTier
		}

		userID := event.UserID
		activity := &models.GroupActivity{
			ID:      uuid.New(),
			GroupID: groupID,
			UserID:  &userID,
			Kind:    enums.ActivityPurchaseSettled,
			Message: fmt.Sprintf("Order %s added %d impact points to the group", event.OrderNumber, event.TotalImpact.ImpactPoints),
		}
		if err := repo.AppendActivity(ctx, activity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append purchase activity")
		}

		return p.advanceChallenge(ctx, tx, repo, group, event, outcome)
	})
	if err != nil {
		return nil, err
	}

	if !outcome.Applied {
		logCtx := p.logg.WithGroupID(p.logg.WithOrderID(ctx, event.OrderID.String()), groupID.String())
		p.logg.Info(logCtx, "group contribution already applied, skipping")
	}
	return outcome, nil
}

// advanceChallenge moves the active challenge (if any) and, when the target
// is reached, performs the exactly-once completion fan-out.
func (p *propagator) advanceChallenge(ctx context.Context, tx *gorm.DB, repo *Repository, group *models.Group, event payloads.SettlementEvent, outcome *GroupOutcome) error {
	challenge, err := repo.GetActiveChallenge(ctx, group.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active challenge")
	}

	delta := challengeDelta(challenge.TargetMetric, event)
	if delta > 0 {
		if err := repo.AdvanceChallengeProgress(ctx, challenge.ID, delta); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance challenge progress")
		}
	}

	current, err := repo.GetChallenge(ctx, challenge.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload challenge")
	}
	if current.CurrentProgress < current.TargetValue {
		return nil
	}

	won, err := repo.CompleteChallenge(ctx, challenge.ID, event.SettledAt)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete challenge")
	}
	if !won {
		// another settlement crossed the line first
		return nil
	}

	participants, err := repo.CreditAllActiveMembers(ctx, group.ID, challenge.RewardPoints)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "distribute challenge reward")
	}

	achievement := &models.GroupAchievement{
		ID:               uuid.New(),
		GroupID:          group.ID,
		ChallengeID:      challenge.ID,
		Title:            challenge.Name,
		PointsAwarded:    challenge.RewardPoints,
		ParticipantCount: participants,
		EarnedAt:         event.SettledAt,
	}
	if err := repo.InsertAchievement(ctx, achievement); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert group achievement")
	}

	activity := &models.GroupActivity{
		ID:      uuid.New(),
		GroupID: group.ID,
		Kind:    enums.ActivityChallengeCompleted,
		Message: fmt.Sprintf("Challenge %q completed: %d points awarded to %d members", challenge.Name, challenge.RewardPoints, participants),
	}
	if err := repo.AppendActivity(ctx, activity); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append completion activity")
	}

	if err := p.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventChallengeCompleted,
		AggregateType: enums.AggregateChallenge,
		AggregateID:   challenge.ID,
		Data: payloads.ChallengeCompletedEvent{
			ChallengeID:      challenge.ID,
			GroupID:          group.ID,
			Name:             challenge.Name,
			RewardPoints:     challenge.RewardPoints,
			ParticipantCount: participants,
			CompletedAt:      event.SettledAt,
		},
		OccurredAt: event.SettledAt,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit challenge completed event")
	}

	outcome.ChallengeCompletion = &ChallengeCompletion{
		ChallengeID:      challenge.ID,
		Name:             challenge.Name,
		RewardPoints:     challenge.RewardPoints,
		ParticipantCount: participants,
	}
	return nil
}

// challengeDelta maps a settlement event onto the challenge's target metric.
// Unrecognized metrics leave progress unchanged rather than failing.
func challengeDelta(metric enums.ChallengeTargetMetric, event payloads.SettlementEvent) int64 {
	switch metric {
	case enums.ChallengeTargetImpactPoints:
		return event.TotalImpact.ImpactPoints
	case enums.ChallengeTargetCarbonSaved:
		return event.TotalImpact.CarbonSaved
	case enums.ChallengeTargetGroupPurchases:
		return 1
	default:
		return 0
	}
}
