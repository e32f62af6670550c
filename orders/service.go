// Package orders runs the order lifecycle and keeps stock in step with it.
package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	nanoid "github.com/jaevor/go-nanoid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mytheresa/storefront-engine/cart"
	"github.com/mytheresa/storefront-engine/internal/retry"
	"github.com/mytheresa/storefront-engine/ledger"
	"github.com/mytheresa/storefront-engine/models"
	"github.com/mytheresa/storefront-engine/notify"
	"github.com/mytheresa/storefront-engine/pricing"
)

const (
	numberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	numberLength   = 8
)

// EventSink receives status change events after they are committed.
type EventSink interface {
	Dispatch(ctx context.Context, event notify.Event)
}

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// LineRequest selects one order line. Prices and stock units are always worked out
// from the catalog when the order is created.
type LineRequest struct {
	ProductCode string
	VariationID *uuid.UUID
	Color       string
	Size        string
	Mode        models.CatalogMode
	Quantity    int
	GradeMode   models.GradeMode
	Selection   *pricing.CustomSelection
}

// CreateRequest places an order. Status may be empty (pending) or confirmed.
type CreateRequest struct {
	StoreID   uuid.UUID
	Customer  Customer
	OrderType models.OrderType
	Lines     []LineRequest
	Status    models.OrderStatus
}

type Service struct {
	db       *gorm.DB
	orders   *models.OrdersRepository
	stores   *models.StoresRepository
	products *models.ProductsRepository
	builder  *cart.Builder
	ledger   *ledger.Ledger
	events   EventSink
	logger   *zap.Logger
	now      func() time.Time
	ttl      time.Duration
	retry    retry.Policy
	numbers  func() string
	locks    *keyedMutex
}

type Option func(*Service)

func WithEvents(sink EventSink) Option {
	return func(s *Service) { s.events = sink }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithReservationTTL sets the reservation lifetime used when the order's store sets none.
func WithReservationTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithRetry(attempts int, backoff time.Duration) Option {
	return func(s *Service) {
		if attempts > 0 {
			s.retry.Attempts = attempts
		}
		s.retry.Backoff = backoff
	}
}

func WithNumberGenerator(gen func() string) Option {
	return func(s *Service) { s.numbers = gen }
}

// WithBuilder sets the builder that prices order lines.
func WithBuilder(b *cart.Builder) Option {
	return func(s *Service) { s.builder = b }
}

func NewService(db *gorm.DB, l *ledger.Ledger, opts ...Option) (*Service, error) {
	numbers, err := nanoid.CustomASCII(numberAlphabet, numberLength)
	if err != nil {
		return nil, fmt.Errorf("failed to create order number generator: %w", err)
	}
	s := &Service{
		db:       db,
		orders:   models.NewOrdersRepository(db),
		stores:   models.NewStoresRepository(db),
		products: models.NewProductsRepository(db),
		ledger:   l,
		logger:   zap.NewNop(),
		now:      time.Now,
		ttl:      models.DefaultReservationTTL,
		retry:    retry.Policy{Attempts: ledger.DefaultMaxAttempts, Backoff: 10 * time.Millisecond},
		numbers:  numbers,
		locks:    newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.builder == nil {
		s.builder = cart.NewBuilder(nil, s.logger)
	}
	s.retry.Logger = s.logger
	return s, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.orders.GetByID(ctx, id)
}

// Create prices the requested lines from the catalog, checks stock and persists the order.
// A confirmed order, or a pending order of a store that reserves on create, holds its stock
// from the start.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Order, error) {
	if err := validate(&req); err != nil {
		return nil, err
	}

	var store *models.Store
	if req.StoreID != uuid.Nil {
		var err error
		if store, err = s.stores.GetByID(ctx, req.StoreID); err != nil {
			return nil, err
		}
	}
	lines, err := s.price(ctx, req.Lines, store)
	if err != nil {
		return nil, err
	}

	items := make([]models.OrderItem, len(lines))
	for i, l := range lines {
		items[i] = l.Item()
	}
	if err := s.checkStock(ctx, items); err != nil {
		return nil, err
	}
	order := &models.Order{
		ID:            uuid.New(),
		Number:        s.numbers(),
		StoreID:       req.StoreID,
		CustomerName:  req.Customer.Name,
		CustomerEmail: req.Customer.Email,
		CustomerPhone: req.Customer.Phone,
		Status:        req.Status,
		OrderType:     req.OrderType,
		Items:         items,
		TotalAmount:   cart.Total(lines),
	}
	reserve := order.Status == models.OrderStatusConfirmed || (store != nil && store.ReserveOnCreate)

	err = s.retry.Do(ctx, func() error {
		order.StockReserved, order.ReservationExpiresAt = false, nil
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if reserve {
				expiresAt, err := s.reserveAll(ctx, s.ledger.WithTx(tx), order, s.ttlFor(store))
				if err != nil {
					return err
				}
				order.StockReserved, order.ReservationExpiresAt = true, &expiresAt
			}
			return s.orders.WithTx(tx).Create(ctx, order)
		})
	}, ledger.ErrLedgerConflict)
	if err != nil {
		return nil, err
	}

	s.logger.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.Number),
		zap.String("status", string(order.Status)),
		zap.Bool("stock_reserved", order.StockReserved))
	s.emit(ctx, order, "")
	return order, nil
}

func validate(req *CreateRequest) error {
	if len(req.Lines) == 0 {
		return fmt.Errorf("%w: no lines", ErrInvalidOrder)
	}
	if req.OrderType == "" {
		req.OrderType = models.OrderTypeRetail
	}
	if !req.OrderType.Valid() {
		return fmt.Errorf("%w: unknown order type %q", ErrInvalidOrder, req.OrderType)
	}
	switch req.Status {
	case "":
		req.Status = models.OrderStatusPending
	case models.OrderStatusPending, models.OrderStatusConfirmed:
	default:
		return fmt.Errorf("%w: orders start pending or confirmed, not %q", ErrInvalidOrder, req.Status)
	}
	for i, l := range req.Lines {
		if l.ProductCode == "" {
			return fmt.Errorf("%w: line %d has no product code", ErrInvalidOrder, i+1)
		}
		if l.Quantity <= 0 {
			return fmt.Errorf("%w: line %d has no quantity", ErrInvalidOrder, i+1)
		}
	}
	return nil
}

// price builds every line from the stored product, the way the cart does, so the order
// carries the prices and stock units the catalog gives right now.
func (s *Service) price(ctx context.Context, requests []LineRequest, store *models.Store) ([]cart.Line, error) {
	basis := models.TierBasisPerLine
	if store != nil {
		basis = store.TierBasis
	}

	products := make(map[string]*models.Product)
	var lines []cart.Line
	for _, r := range requests {
		p, ok := products[r.ProductCode]
		if !ok {
			var err error
			if p, err = s.products.GetByCode(ctx, r.ProductCode); err != nil {
				return nil, err
			}
			products[r.ProductCode] = p
		}

		req := cart.Request{
			Product:   *p,
			Color:     r.Color,
			Size:      r.Size,
			Mode:      r.Mode,
			Quantity:  r.Quantity,
			GradeMode: r.GradeMode,
			Selection: r.Selection,
			TierBasis: basis,
		}
		if r.VariationID != nil {
			if req.Variation = p.Variation(*r.VariationID); req.Variation == nil {
				return nil, fmt.Errorf("%w: %s on %s", cart.ErrVariationNotFound, r.VariationID, p.Code)
			}
		}
		var err error
		if _, lines, err = s.builder.Add(lines, req); err != nil {
			return nil, err
		}
	}
	return lines, nil
}

// checkStock compares the summed demand per stock entity with what is free.
func (s *Service) checkStock(ctx context.Context, items []models.OrderItem) error {
	for _, d := range ledger.DemandOf(items) {
		c, err := s.ledger.Snapshot(ctx, d.Ref)
		if err != nil {
			return err
		}
		if !c.AllowNegative && c.Available() < d.Units {
			return &ledger.InsufficientStockError{Ref: d.Ref, Name: c.Name, Requested: d.Units, Available: c.Available()}
		}
	}
	return nil
}

// Transition moves the order to status to and applies the stock side effects of the move.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, to models.OrderStatus) (*models.Order, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, to)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	var (
		order    *models.Order
		from     models.OrderStatus
		stockErr error
	)
	err := s.retry.Do(ctx, func() error {
		order, stockErr = nil, nil
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			repo := s.orders.WithTx(tx)
			o, err := repo.GetByID(ctx, id)
			if err != nil {
				return err
			}
			from = o.Status
			if !CanTransition(from, to) {
				return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, from, to)
			}

			fields, err := s.sideEffects(ctx, tx, o, to)
			if err != nil {
				if errors.Is(err, ledger.ErrInsufficientStock) {
					// Compensating releases are kept; the order itself stays as it was.
					stockErr = err
					return nil
				}
				return err
			}
			fields["status"] = to
			if err := repo.UpdateGuarded(ctx, o, fields); err != nil {
				return err
			}
			applyFields(o, fields)
			order = o
			return nil
		})
	}, ledger.ErrLedgerConflict, models.ErrOrderVersionConflict)
	if err != nil {
		return nil, err
	}
	if stockErr != nil {
		s.logger.Warn("order confirmation rejected",
			zap.String("order_id", id.String()),
			zap.Error(stockErr))
		return nil, stockErr
	}

	s.logger.Info("order status changed",
		zap.String("order_id", order.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	s.emit(ctx, order, from)
	return order, nil
}

func (s *Service) sideEffects(ctx context.Context, tx *gorm.DB, o *models.Order, to models.OrderStatus) (map[string]any, error) {
	fields := map[string]any{}
	l := s.ledger.WithTx(tx)

	switch to {
	case models.OrderStatusConfirmed:
		if o.StockReserved {
			break
		}
		store, err := s.storeOf(ctx, tx, o)
		if err != nil {
			return nil, err
		}
		expiresAt, err := s.reserveAll(ctx, l, o, s.ttlFor(store))
		if err != nil {
			return nil, err
		}
		fields["stock_reserved"] = true
		fields["reservation_expires_at"] = expiresAt

	case models.OrderStatusDelivered:
		for _, d := range ledger.DemandOf(o.Items) {
			if _, err := l.Commit(ctx, d.Ref, o.ID, d.Units, ledger.Note("order "+o.Number+" delivered")); err != nil {
				return nil, err
			}
		}
		fields["stock_reserved"] = false
		fields["reservation_expires_at"] = nil

	case models.OrderStatusCancelled:
		if !o.StockReserved {
			break
		}
		for _, d := range ledger.DemandOf(o.Items) {
			if _, err := l.Release(ctx, d.Ref, o.ID, d.Units, ledger.Note("order "+o.Number+" cancelled")); err != nil {
				return nil, err
			}
		}
		fields["stock_reserved"] = false
		fields["reservation_expires_at"] = nil
	}
	return fields, nil
}

// reserveAll reserves the demand of o per stock entity. When one entity is short, the
// entities already reserved are released again and the stock error is returned.
func (s *Service) reserveAll(ctx context.Context, l *ledger.Ledger, o *models.Order, ttl time.Duration) (time.Time, error) {
	demand := ledger.DemandOf(o.Items)
	for i, d := range demand {
		_, err := l.Reserve(ctx, d.Ref, o.ID, d.Units, ttl, ledger.Note("order "+o.Number))
		if err == nil {
			continue
		}
		if !errors.Is(err, ledger.ErrInsufficientStock) {
			return time.Time{}, err
		}
		for _, done := range demand[:i] {
			if _, relErr := l.Release(ctx, done.Ref, o.ID, done.Units, ledger.Note("order "+o.Number+" could not be confirmed")); relErr != nil {
				return time.Time{}, errors.Join(err, relErr)
			}
		}
		return time.Time{}, err
	}
	return s.now().Add(ttl), nil
}

// AttachPayment records the gateway payment id on the order.
func (s *Service) AttachPayment(ctx context.Context, id uuid.UUID, paymentID string) (*models.Order, error) {
	if paymentID == "" {
		return nil, fmt.Errorf("%w: payment id is required", ErrInvalidOrder)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	var order *models.Order
	err := s.retry.Do(ctx, func() error {
		o, err := s.orders.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.orders.UpdateGuarded(ctx, o, map[string]any{"payment_id": paymentID}); err != nil {
			return err
		}
		o.PaymentID = &paymentID
		order = o
		return nil
	}, models.ErrOrderVersionConflict)
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Service) storeOf(ctx context.Context, tx *gorm.DB, o *models.Order) (*models.Store, error) {
	if o.StoreID == uuid.Nil {
		return nil, nil
	}
	store, err := models.NewStoresRepository(tx).GetByID(ctx, o.StoreID)
	if errors.Is(err, models.ErrStoreNotFound) {
		s.logger.Warn("order references a missing store", zap.String("order_id", o.ID.String()))
		return nil, nil
	}
	return store, err
}

func (s *Service) ttlFor(store *models.Store) time.Duration {
	if store != nil && store.ReservationTTLHours > 0 {
		return store.ReservationTTL()
	}
	return s.ttl
}

func (s *Service) emit(ctx context.Context, order *models.Order, old models.OrderStatus) {
	if s.events == nil {
		return
	}
	s.events.Dispatch(ctx, notify.EventFor(order, old, s.now()))
}

func applyFields(o *models.Order, fields map[string]any) {
	if v, ok := fields["status"].(models.OrderStatus); ok {
		o.Status = v
	}
	if v, ok := fields["stock_reserved"].(bool); ok {
		o.StockReserved = v
	}
	if _, ok := fields["reservation_expires_at"]; ok {
		if v, ok := fields["reservation_expires_at"].(time.Time); ok {
			o.ReservationExpiresAt = &v
		} else {
			o.ReservationExpiresAt = nil
		}
	}
}
