package outbox

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/verdana-market/verdana-backend/pkg/db/models"
	"github.com/verdana-market/verdana-backend/pkg/enums"
	"github.com/verdana-market/verdana-backend/pkg/logger"
	"github.com/verdana-market/verdana-backend/pkg/outbox/payloads"
)

func TestEmitRecordsActorInEnvelope(t *testing.T) {
	t.Parallel()

	db := newOutboxTestDB(t)
	svc := NewService(NewRepository(db), newOutboxTestLogger())
	userID := uuid.New()
	groupID := uuid.New()
	orderID := uuid.New()

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderSettled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         &ActorRef{UserID: &userID, GroupID: &groupID},
			Data:          payloads.SettlementEvent{OrderID: orderID, UserID: userID},
			Version:       1,
		})
	})
	require.NoError(t, err)

	var row models.OutboxEvent
	require.NoError(t, db.First(&row).Error)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(row.Payload, &envelope))
	require.NotNil(t, envelope.Actor)
	require.NotNil(t, envelope.Actor.UserID)
	require.Equal(t, userID, *envelope.Actor.UserID)
	require.NotNil(t, envelope.Actor.GroupID)
	require.Equal(t, groupID, *envelope.Actor.GroupID)
}

func TestEmitOmitsAbsentActorFields(t *testing.T) {
	t.Parallel()

	db := newOutboxTestDB(t)
	svc := NewService(NewRepository(db), newOutboxTestLogger())
	groupID := uuid.New()

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventChallengeExpired,
			AggregateType: enums.AggregateChallenge,
			AggregateID:   uuid.New(),
			Actor:         &ActorRef{GroupID: &groupID},
			Data:          map[string]any{},
			Version:       1,
		})
	})
	require.NoError(t, err)

	var row models.OutboxEvent
	require.NoError(t, db.First(&row).Error)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(row.Payload, &raw))
	var actor map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw["actor"], &actor))
	require.NotContains(t, actor, "userId")
	require.Contains(t, actor, "groupId")
}

func newOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:outbox_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.OutboxEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newOutboxTestLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "outbox-test", Output: io.Discard})
}
