package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrOrderNotFound is returned when an order is not found.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderVersionConflict is returned when a guarded order update lost a race.
	ErrOrderVersionConflict = errors.New("order was modified concurrently")
)

type OrdersRepository struct {
	db *gorm.DB
}

func NewOrdersRepository(db *gorm.DB) *OrdersRepository {
	return &OrdersRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *OrdersRepository) WithTx(tx *gorm.DB) *OrdersRepository {
	return &OrdersRepository{db: tx}
}

func (r *OrdersRepository) Create(ctx context.Context, order *Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (r *OrdersRepository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	var order Order
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// UpdateGuarded writes fields only if the row still carries the version the caller read,
// and bumps the version. The order passed in is updated to the new version on success.
func (r *OrdersRepository) UpdateGuarded(ctx context.Context, order *Order, fields map[string]any) error {
	fields["version"] = gorm.Expr("version + ?", 1)
	res := r.db.WithContext(ctx).
		Model(&Order{}).
		Where("id = ? AND version = ?", order.ID, order.Version).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("failed to update order: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrOrderVersionConflict
	}
	order.Version++
	return nil
}

// ListExpiredReservations returns pending orders still holding stock past their expiry.
func (r *OrdersRepository) ListExpiredReservations(ctx context.Context, now time.Time, limit int) ([]Order, error) {
	var orders []Order
	if err := r.db.WithContext(ctx).
		Where("status = ? AND stock_reserved = ? AND reservation_expires_at < ?", OrderStatusPending, true, now).
		Order("reservation_expires_at ASC").
		Limit(limit).
		Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list expired reservations: %w", err)
	}
	return orders, nil
}
