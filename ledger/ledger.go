// Package ledger owns the stock counters of products and variations.
//
// Every change is a version guarded update plus an append-only movement row, so
// check-then-act sequences cannot oversell under concurrent callers.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mytheresa/storefront-engine/internal/retry"
	"github.com/mytheresa/storefront-engine/models"
)

const (
	DefaultMaxAttempts = 5
	defaultBackoff     = 10 * time.Millisecond
)

// Ref identifies a stock entity. A nil VariationID means the product itself.
type Ref struct {
	ProductID   uuid.UUID
	VariationID uuid.UUID
}

// RefFor builds a Ref from the optional variation id carried by order items.
func RefFor(productID uuid.UUID, variationID *uuid.UUID) Ref {
	ref := Ref{ProductID: productID}
	if variationID != nil {
		ref.VariationID = *variationID
	}
	return ref
}

func (r Ref) IsVariation() bool {
	return r.VariationID != uuid.Nil
}

func (r Ref) String() string {
	if r.IsVariation() {
		return r.ProductID.String() + "/" + r.VariationID.String()
	}
	return r.ProductID.String()
}

func (r Ref) variationID() *uuid.UUID {
	if !r.IsVariation() {
		return nil
	}
	id := r.VariationID
	return &id
}

// Counters is the stock state of one entity as read by the ledger.
type Counters struct {
	Name          string
	OnHand        int
	Reserved      int
	AllowNegative bool
	Version       int64
}

func (c Counters) Available() int {
	return c.OnHand - c.Reserved
}

type Ledger struct {
	db          *gorm.DB
	logger      *zap.Logger
	maxAttempts int
	backoff     time.Duration
	now         func() time.Time
	bound       bool
}

type Option func(*Ledger)

func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

func WithMaxAttempts(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.maxAttempts = n
		}
	}
}

func WithBackoff(d time.Duration) Option {
	return func(l *Ledger) { l.backoff = d }
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func New(db *gorm.DB, opts ...Option) *Ledger {
	l := &Ledger{
		db:          db,
		logger:      zap.NewNop(),
		maxAttempts: DefaultMaxAttempts,
		backoff:     defaultBackoff,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// WithTx returns a ledger that works inside tx. It never retries on its own:
// a conflict aborts the caller's unit of work, which is retried as a whole.
func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	bound := *l
	bound.db = tx
	bound.bound = true
	return &bound
}

// MovementOption decorates the movement row written by an operation.
type MovementOption func(*models.StockMovement)

// Note attaches a free text note to the movement.
func Note(note string) MovementOption {
	return func(m *models.StockMovement) { m.Note = note }
}

// CheckAvailability reports whether qty units are free right now.
func (l *Ledger) CheckAvailability(ctx context.Context, ref Ref, qty int) (bool, error) {
	c, err := load(l.db.WithContext(ctx), ref)
	if err != nil {
		return false, err
	}
	return c.AllowNegative || c.Available() >= qty, nil
}

func (l *Ledger) Snapshot(ctx context.Context, ref Ref) (Counters, error) {
	return load(l.db.WithContext(ctx), ref)
}

// Reserve holds qty units for an order until ttl elapses. A ttl of zero means 24 hours.
func (l *Ledger) Reserve(ctx context.Context, ref Ref, orderID uuid.UUID, qty int, ttl time.Duration, opts ...MovementOption) (models.StockMovement, error) {
	var movement models.StockMovement
	err := l.run(ctx, func(tx *gorm.DB) error {
		var err error
		movement, err = l.reserve(tx, ref, orderID, qty, ttl, opts)
		return err
	})
	return movement, err
}

func (l *Ledger) reserve(tx *gorm.DB, ref Ref, orderID uuid.UUID, qty int, ttl time.Duration, opts []MovementOption) (models.StockMovement, error) {
	if qty <= 0 {
		return models.StockMovement{}, fmt.Errorf("%w: got %d", ErrInvalidQuantity, qty)
	}
	if ttl <= 0 {
		ttl = models.DefaultReservationTTL
	}
	c, err := load(tx, ref)
	if err != nil {
		return models.StockMovement{}, err
	}
	if !c.AllowNegative && c.Available() < qty {
		return models.StockMovement{}, &InsufficientStockError{Ref: ref, Name: c.Name, Requested: qty, Available: c.Available()}
	}
	if err := update(tx, ref, c, c.OnHand, c.Reserved+qty); err != nil {
		return models.StockMovement{}, err
	}
	expiresAt := l.now().Add(ttl)
	return record(tx, ref, orderID, models.MovementReservation, qty, &expiresAt, opts)
}

// Release returns up to qty reserved units to free stock. Reserved never drops below zero;
// the movement records what was actually released, which is zero when nothing was reserved.
func (l *Ledger) Release(ctx context.Context, ref Ref, orderID uuid.UUID, qty int, opts ...MovementOption) (models.StockMovement, error) {
	var movement models.StockMovement
	err := l.run(ctx, func(tx *gorm.DB) error {
		var err error
		movement, err = l.release(tx, ref, orderID, qty, opts)
		return err
	})
	return movement, err
}

func (l *Ledger) release(tx *gorm.DB, ref Ref, orderID uuid.UUID, qty int, opts []MovementOption) (models.StockMovement, error) {
	if qty <= 0 {
		return models.StockMovement{}, fmt.Errorf("%w: got %d", ErrInvalidQuantity, qty)
	}
	c, err := load(tx, ref)
	if err != nil {
		return models.StockMovement{}, err
	}
	amount := max(min(qty, c.Reserved), 0)
	if amount == 0 {
		l.logger.Warn("release with nothing reserved",
			zap.String("entity", ref.String()),
			zap.String("order_id", orderID.String()),
			zap.Int("requested", qty))
		return record(tx, ref, orderID, models.MovementRelease, 0, nil, opts)
	}
	if err := update(tx, ref, c, c.OnHand, c.Reserved-amount); err != nil {
		return models.StockMovement{}, err
	}
	return record(tx, ref, orderID, models.MovementRelease, amount, nil, opts)
}

// Commit turns qty units into a sale. The order's outstanding reservation on the entity is
// consumed first; anything beyond it must come from free stock. Committing the same order
// and entity twice returns the first sale.
func (l *Ledger) Commit(ctx context.Context, ref Ref, orderID uuid.UUID, qty int, opts ...MovementOption) (models.StockMovement, error) {
	var movement models.StockMovement
	err := l.run(ctx, func(tx *gorm.DB) error {
		var err error
		movement, err = l.commit(tx, ref, orderID, qty, opts)
		return err
	})
	return movement, err
}

func (l *Ledger) commit(tx *gorm.DB, ref Ref, orderID uuid.UUID, qty int, opts []MovementOption) (models.StockMovement, error) {
	if qty <= 0 {
		return models.StockMovement{}, fmt.Errorf("%w: got %d", ErrInvalidQuantity, qty)
	}

	var sale models.StockMovement
	err := whereRef(tx.Model(&models.StockMovement{}), ref).
		Where("order_id = ? AND movement_type = ?", orderID, models.MovementSale).
		Take(&sale).Error
	if err == nil {
		return sale, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.StockMovement{}, fmt.Errorf("failed to look up sale: %w", err)
	}

	c, err := load(tx, ref)
	if err != nil {
		return models.StockMovement{}, err
	}
	held, err := outstanding(tx, ref, orderID)
	if err != nil {
		return models.StockMovement{}, err
	}
	consumed := min(qty, held, c.Reserved)
	if remainder := qty - consumed; !c.AllowNegative && remainder > c.Available() {
		return models.StockMovement{}, &InsufficientStockError{Ref: ref, Name: c.Name, Requested: remainder, Available: c.Available()}
	}
	if err := update(tx, ref, c, c.OnHand-qty, c.Reserved-consumed); err != nil {
		return models.StockMovement{}, err
	}
	return record(tx, ref, orderID, models.MovementSale, qty, nil, opts)
}

// Movements lists the newest movements of one entity.
func (l *Ledger) Movements(ctx context.Context, ref Ref, limit int) ([]models.StockMovement, error) {
	if limit <= 0 {
		limit = 50
	}
	var movements []models.StockMovement
	if err := whereRef(l.db.WithContext(ctx).Model(&models.StockMovement{}), ref).
		Order("created_at DESC").
		Limit(limit).
		Find(&movements).Error; err != nil {
		return nil, fmt.Errorf("failed to list movements: %w", err)
	}
	return movements, nil
}

// run executes fn in a transaction, retrying on conflicts. A bound ledger runs fn once
// inside the caller's transaction.
func (l *Ledger) run(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if l.bound {
		return fn(l.db.WithContext(ctx))
	}
	return l.retry(ctx, func() error {
		return l.db.WithContext(ctx).Transaction(fn)
	}, ErrLedgerConflict)
}

func (l *Ledger) retry(ctx context.Context, fn func() error, retryable ...error) error {
	return retry.Policy{Attempts: l.maxAttempts, Backoff: l.backoff, Logger: l.logger}.Do(ctx, fn, retryable...)
}

func load(tx *gorm.DB, ref Ref) (Counters, error) {
	var product models.Product
	if err := tx.Take(&product, "id = ?", ref.ProductID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Counters{}, fmt.Errorf("%w: product %s", ErrEntityNotFound, ref.ProductID)
		}
		return Counters{}, fmt.Errorf("failed to load product: %w", err)
	}
	if !ref.IsVariation() {
		return Counters{
			Name:          product.Name,
			OnHand:        product.Stock,
			Reserved:      product.ReservedStock,
			AllowNegative: product.AllowNegativeStock,
			Version:       product.Version,
		}, nil
	}

	var v models.ProductVariation
	if err := tx.Take(&v, "id = ? AND product_id = ?", ref.VariationID, ref.ProductID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Counters{}, fmt.Errorf("%w: variation %s", ErrEntityNotFound, ref.VariationID)
		}
		return Counters{}, fmt.Errorf("failed to load variation: %w", err)
	}
	name := product.Name
	if label := v.Label(); label != "" {
		name += " (" + label + ")"
	}
	return Counters{
		Name:          name,
		OnHand:        v.Stock,
		Reserved:      v.ReservedStock,
		AllowNegative: product.AllowNegativeStock,
		Version:       v.Version,
	}, nil
}

func update(tx *gorm.DB, ref Ref, read Counters, onHand, reserved int) error {
	var (
		model any = &models.Product{}
		id        = ref.ProductID
	)
	if ref.IsVariation() {
		model, id = &models.ProductVariation{}, ref.VariationID
	}
	res := tx.Model(model).
		Where("id = ? AND version = ?", id, read.Version).
		Updates(map[string]any{
			"stock":          onHand,
			"reserved_stock": reserved,
			"version":        gorm.Expr("version + ?", 1),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update stock: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrLedgerConflict
	}
	return nil
}

func record(tx *gorm.DB, ref Ref, orderID uuid.UUID, kind models.MovementType, qty int, expiresAt *time.Time, opts []MovementOption) (models.StockMovement, error) {
	m := models.StockMovement{
		ProductID:    ref.ProductID,
		VariationID:  ref.variationID(),
		MovementType: kind,
		Quantity:     qty,
		ExpiresAt:    expiresAt,
	}
	if orderID != uuid.Nil {
		m.OrderID = &orderID
	}
	for _, opt := range opts {
		opt(&m)
	}
	if err := tx.Create(&m).Error; err != nil {
		return models.StockMovement{}, fmt.Errorf("failed to record %s movement: %w", kind, err)
	}
	return m, nil
}

func whereRef(q *gorm.DB, ref Ref) *gorm.DB {
	q = q.Where("product_id = ?", ref.ProductID)
	if ref.IsVariation() {
		return q.Where("variation_id = ?", ref.VariationID)
	}
	return q.Where("variation_id IS NULL")
}

// outstanding is what the order still holds on the entity: reserved minus released.
func outstanding(tx *gorm.DB, ref Ref, orderID uuid.UUID) (int, error) {
	var rows []struct {
		MovementType models.MovementType
		Total        int
	}
	if err := whereRef(tx.Model(&models.StockMovement{}), ref).
		Select("movement_type, SUM(quantity) AS total").
		Where("order_id = ?", orderID).
		Group("movement_type").
		Scan(&rows).Error; err != nil {
		return 0, fmt.Errorf("failed to sum movements: %w", err)
	}
	held := 0
	for _, r := range rows {
		switch r.MovementType {
		case models.MovementReservation:
			held += r.Total
		case models.MovementRelease:
			held -= r.Total
		}
	}
	return max(held, 0), nil
}
