package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mytheresa/storefront-engine/models"
)

const sweepBatch = 100

// SweepReport summarizes one expiry pass.
type SweepReport struct {
	Orders   int
	Released int
}

// ExpireReservations releases the stock of pending orders whose reservation expired before now.
// Each order is handled in its own transaction that re-reads the order, so an order confirmed
// or cancelled meanwhile is left alone.
func (l *Ledger) ExpireReservations(ctx context.Context, now time.Time) (SweepReport, error) {
	var report SweepReport

	candidates, err := models.NewOrdersRepository(l.db).ListExpiredReservations(ctx, now, sweepBatch)
	if err != nil {
		return report, err
	}

	var errs []error
	for _, candidate := range candidates {
		var (
			released int
			expired  bool
		)
		err := l.retry(ctx, func() error {
			return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				var err error
				released, expired, err = l.expireOrder(ctx, tx, candidate.ID, now)
				return err
			})
		}, ErrLedgerConflict, models.ErrOrderVersionConflict)
		if err != nil {
			errs = append(errs, fmt.Errorf("order %s: %w", candidate.Number, err))
			continue
		}
		if expired {
			report.Orders++
			report.Released += released
			l.logger.Info("reservation expired",
				zap.String("order_id", candidate.ID.String()),
				zap.String("order_number", candidate.Number),
				zap.Int("released", released))
		}
	}
	return report, errors.Join(errs...)
}

func (l *Ledger) expireOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, now time.Time) (int, bool, error) {
	repo := models.NewOrdersRepository(tx)
	order, err := repo.GetByID(ctx, orderID)
	if err != nil {
		return 0, false, err
	}
	if order.Status != models.OrderStatusPending || !order.StockReserved ||
		order.ReservationExpiresAt == nil || !order.ReservationExpiresAt.Before(now) {
		return 0, false, nil
	}

	released := 0
	for _, d := range DemandOf(order.Items) {
		m, err := l.release(tx, d.Ref, order.ID, d.Units, []MovementOption{Note("reservation expired")})
		if err != nil {
			return 0, false, err
		}
		released += m.Quantity
	}
	if err := repo.UpdateGuarded(ctx, order, map[string]any{
		"stock_reserved":         false,
		"reservation_expires_at": nil,
	}); err != nil {
		return 0, false, err
	}
	return released, true, nil
}

// RunSweeper expires reservations every interval until ctx is done.
func (l *Ledger) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := l.ExpireReservations(ctx, l.now())
			if err != nil {
				l.logger.Error("reservation sweep failed", zap.Error(err))
			}
			if report.Orders > 0 {
				l.logger.Info("reservation sweep finished",
					zap.Int("orders", report.Orders),
					zap.Int("released", report.Released))
			}
		}
	}
}
