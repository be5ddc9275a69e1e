package models

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Every model must migrate cleanly on sqlite, which cannot evaluate function
// defaults in DDL. ID generation happens in application code via uuid.New().
func TestAutoMigrateAllModelsOnSQLite(t *testing.T) {
	t.Parallel()

	dsn := "file:models_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	err = db.AutoMigrate(
		&Cart{},
		&CartItem{},
		&ContributionEntry{},
		&Group{},
		&GroupAchievement{},
		&GroupActivity{},
		&GroupChallenge{},
		&GroupMembership{},
		&InventoryItem{},
		&Order{},
		&OrderLineItem{},
		&OrderStatusEvent{},
		&OutboxDLQ{},
		&OutboxEvent{},
		&Product{},
		&ProgressionEntry{},
		&User{},
		&UserAchievement{},
		&UserMonthlyImpact{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	user := &User{ID: uuid.New(), Email: "migrate@example.com", FirstName: "M", LastName: "T"}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("insert user: %v", err)
	}
}
