package settlement

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/verdana-market/verdana-backend/pkg/db/models"
	"github.com/verdana-market/verdana-backend/pkg/enums"
	"github.com/verdana-market/verdana-backend/pkg/pagination"
)

// Repository persists orders and their append-only status history.
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

// CreateOrder inserts the order with its line items and the initial status
// event in one association write.
func (r *Repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// GetOrder loads one order with lines and status history.
func (r *Repository) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("StatusEvents", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByNumber loads one order by its public number.
func (r *Repository) GetOrderByNumber(ctx context.Context, number string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		First(&order, "order_number = ?", number).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrdersByUser returns a cursor page of the user's orders, newest first.
func (r *Repository) ListOrdersByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	pageSize := pagination.NormalizeLimit(params.Limit)
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}

	qb := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if cursor != nil {
		qb = qb.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Order
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

// TransitionStatus moves the order's status conditionally on the current
// value and appends the history event. A zero row count means the order moved
// under us and the caller should re-read.
func (r *Repository) TransitionStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, note *string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	event := models.OrderStatusEvent{
		ID:         uuid.New(),
		OrderID:    orderID,
		FromStatus: &from,
		ToStatus:   to,
		Note:       note,
	}
	if err := r.db.WithContext(ctx).Create(&event).Error; err != nil {
		return false, err
	}
	return true, nil
}
