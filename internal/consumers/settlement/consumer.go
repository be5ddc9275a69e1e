package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	settlementsvc "github.com/verdana-market/verdana-backend/internal/settlement"
	"github.com/verdana-market/verdana-backend/pkg/enums"
	"github.com/verdana-market/verdana-backend/pkg/logger"
	"github.com/verdana-market/verdana-backend/pkg/metrics"
	"github.com/verdana-market/verdana-backend/pkg/outbox"
	"github.com/verdana-market/verdana-backend/pkg/outbox/payloads"
)

const consumerName = "settlement-replay"

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer replays order_settled events against the progression ledger and
// the group propagator. Both downstreams are idempotent keyed by order id, so
// a partially applied event is safe to redeliver until every consumer has
// acknowledged it.
type Consumer struct {
	subscription *gcppubsub.Subscriber
	dispatcher   settlementsvc.Dispatcher
	manager      idempotencyChecker
	logg         *logger.Logger
	metrics      *metrics.SettlementMetrics
}

// NewConsumer builds the settlement replay consumer.
func NewConsumer(subscription *gcppubsub.Subscriber, dispatcher settlementsvc.Dispatcher, manager idempotencyChecker, logg *logger.Logger, settlementMetrics *metrics.SettlementMetrics) (*Consumer, error) {
	if subscription == nil {
		return nil, errors.New("settlement subscription is required")
	}
	if dispatcher == nil {
		return nil, errors.New("settlement dispatcher is required")
	}
	if manager == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Consumer{
		subscription: subscription,
		dispatcher:   dispatcher,
		manager:      manager,
		logg:         logg,
		metrics:      settlementMetrics,
	}, nil
}

type processResult struct {
	nack bool
}

// Run consumes settlement messages until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.subscription.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		if c.process(innerCtx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (c *Consumer) process(ctx context.Context, msg *gcppubsub.Message) processResult {
	fields := map[string]any{"message_id": msg.ID}
	logCtx := c.logg.WithFields(ctx, fields)

	eventType, envelope, err := c.buildEnvelope(msg)
	if err != nil {
		fields["error"] = err.Error()
		c.logg.Warn(c.logg.WithFields(ctx, fields), "invalid settlement envelope")
		return processResult{}
	}

	fields["event_id"] = envelope.EventID
	fields["event_type"] = eventType
	fields["occurred_at"] = envelope.OccurredAt.Format(time.RFC3339Nano)
	logCtx = c.logg.WithFields(ctx, fields)

	if eventType != enums.EventOrderSettled {
		c.logg.Info(logCtx, "event not handled by settlement consumer")
		return processResult{}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Warn(logCtx, "invalid event id")
		return processResult{}
	}

	already, err := c.manager.CheckAndMarkProcessed(logCtx, consumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{}
	}

	var event payloads.SettlementEvent
	if err := json.Unmarshal(envelope.Data, &event); err != nil {
		c.logg.Error(logCtx, "failed to decode settlement payload", err)
		return processResult{}
	}

	if _, _, err := c.dispatcher.ApplyAll(logCtx, event); err != nil {
		c.logg.Error(logCtx, "settlement replay failed", err)
		_ = c.manager.Delete(logCtx, consumerName, eventID)
		return processResult{nack: true}
	}

	if c.metrics != nil {
		c.metrics.IncReplayed()
	}
	c.logg.Info(logCtx, "settlement event replayed")
	return processResult{}
}

func (c *Consumer) buildEnvelope(msg *gcppubsub.Message) (enums.OutboxEventType, outbox.PayloadEnvelope, error) {
	var stored outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &stored); err != nil {
		return "", stored, fmt.Errorf("decode payload envelope: %w", err)
	}

	eventType, err := enums.ParseOutboxEventType(strings.TrimSpace(msg.Attributes["event_type"]))
	if err != nil {
		return "", stored, fmt.Errorf("event_type: %w", err)
	}

	if strings.TrimSpace(stored.EventID) == "" {
		stored.EventID = strings.TrimSpace(msg.Attributes["event_id"])
	}
	if stored.EventID == "" {
		return "", stored, errors.New("event_id missing")
	}

	if stored.OccurredAt.IsZero() {
		if created := strings.TrimSpace(msg.Attributes["created_at"]); created != "" {
			if parsed, err := time.Parse(time.RFC3339Nano, created); err == nil {
				stored.OccurredAt = parsed
			}
		}
	}

	return eventType, stored, nil
}
