package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/verdana-market/verdana-backend/internal/groups"
	"github.com/verdana-market/verdana-backend/pkg/db/models"
	"github.com/verdana-market/verdana-backend/pkg/enums"
	"github.com/verdana-market/verdana-backend/pkg/logger"
	"github.com/verdana-market/verdana-backend/pkg/outbox"
	"github.com/verdana-market/verdana-backend/pkg/outbox/payloads"
)

const challengeExpiryBatchSize = 100

type challengeOutbox interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ChallengeExpiryJobParams configure the challenge expiry sweep.
type ChallengeExpiryJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository *groups.Repository
	Outbox     challengeOutbox
	BatchSize  int
}

// NewChallengeExpiryJob builds the job that deactivates group challenges whose
// deadline passed without the target being reached.
func NewChallengeExpiryJob(params ChallengeExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("groups repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = challengeExpiryBatchSize
	}
	return &challengeExpiryJob{
		logg:   params.Logger,
		db:     params.DB,
		repo:   params.Repository,
		outbox: params.Outbox,
		batch:  batch,
		now:    time.Now,
	}, nil
}

type challengeExpiryJob struct {
	logg   *logger.Logger
	db     txRunner
	repo   *groups.Repository
	outbox challengeOutbox
	batch  int
	now    func() time.Time
}

func (j *challengeExpiryJob) Name() string { return "challenge-expiry" }

func (j *challengeExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()

	due, err := j.repo.FindDueChallenges(ctx, now, j.batch)
	if err != nil {
		return fmt.Errorf("find due challenges: %w", err)
	}

	var expired int
	var errs error
	for _, challenge := range due {
		won, err := j.expireOne(ctx, challenge, now)
		if err != nil {
			logCtx := j.logg.WithGroupID(ctx, challenge.GroupID.String())
			j.logg.Error(logCtx, "challenge expiry failed", err)
			errs = multierr.Append(errs, err)
			continue
		}
		if won {
			expired++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"due":     len(due),
		"expired": expired,
	})
	j.logg.Info(logCtx, "challenge expiry sweep complete")
	return errs
}

// expireOne deactivates a single challenge. The conditional flip of is_active
// loses to a settlement that completed the challenge in the meantime, in which
// case the expiry is a no-op.
func (j *challengeExpiryJob) expireOne(ctx context.Context, challenge models.GroupChallenge, now time.Time) (bool, error) {
	var won bool
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.repo.WithTx(tx)

		flipped, err := repo.ExpireChallenge(ctx, challenge.ID, now)
		if err != nil {
			return fmt.Errorf("expire challenge %s: %w", challenge.ID, err)
		}
		if !flipped {
			return nil
		}
		won = true

		current, err := repo.GetChallenge(ctx, challenge.ID)
		if err != nil {
			return fmt.Errorf("reload challenge %s: %w", challenge.ID, err)
		}

		activity := &models.GroupActivity{
			ID:      uuid.New(),
			GroupID: challenge.GroupID,
			Kind:    enums.ActivityChallengeExpired,
			Message: fmt.Sprintf("Challenge %q expired at %d of %d", challenge.Name, current.CurrentProgress, challenge.TargetValue),
		}
		if err := repo.AppendActivity(ctx, activity); err != nil {
			return fmt.Errorf("append expiry activity: %w", err)
		}

		groupID := challenge.GroupID
		return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventChallengeExpired,
			AggregateType: enums.AggregateChallenge,
			AggregateID:   challenge.ID,
			Actor:         &outbox.ActorRef{GroupID: &groupID},
			Data: payloads.ChallengeExpiredEvent{
				ChallengeID:     challenge.ID,
				GroupID:         challenge.GroupID,
				Name:            challenge.Name,
				CurrentProgress: current.CurrentProgress,
				TargetValue:     challenge.TargetValue,
				ExpiredAt:       now,
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		return false, err
	}
	return won, nil
}
