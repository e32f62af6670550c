package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderItem is the snapshot of a cart line taken when the order was placed.
type OrderItem struct {
	LineID         string          `json:"line_id"`
	ProductID      uuid.UUID       `json:"product_id"`
	VariationID    *uuid.UUID      `json:"variation_id,omitempty"`
	Name           string          `json:"name"`
	VariationLabel string          `json:"variation_label,omitempty"`
	Quantity       int             `json:"quantity"`
	StockUnits     int             `json:"stock_units"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	LineTotal      decimal.Decimal `json:"line_total"`
	GradeMode      GradeMode       `json:"grade_mode,omitempty"`
}

// Units is how many units of stock the item takes.
func (i OrderItem) Units() int {
	if i.StockUnits > 0 {
		return i.StockUnits
	}
	return i.Quantity
}

// Order is a placed order. Its status only moves through the order state machine.
type Order struct {
	ID                   uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Number               string          `gorm:"uniqueIndex;size:16;not null"`
	StoreID              uuid.UUID       `gorm:"type:uuid;index"`
	CustomerName         string          `gorm:"size:200"`
	CustomerEmail        string          `gorm:"size:200"`
	CustomerPhone        string          `gorm:"size:50"`
	Status               OrderStatus     `gorm:"type:varchar(20);not null;index"`
	OrderType            OrderType       `gorm:"type:varchar(20);not null"`
	Items                []OrderItem     `gorm:"type:jsonb;serializer:json;not null"`
	TotalAmount          decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	StockReserved        bool            `gorm:"not null"`
	ReservationExpiresAt *time.Time      `gorm:"index"`
	PaymentID            *string         `gorm:"size:100"`
	Version              int64           `gorm:"not null;default:0"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (o *Order) TableName() string {
	return "orders"
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// StockMovement is an append-only ledger entry. Rows are never updated.
type StockMovement struct {
	ID           uuid.UUID    `gorm:"type:uuid;primaryKey"`
	ProductID    uuid.UUID    `gorm:"type:uuid;not null;index:idx_movement_entity"`
	VariationID  *uuid.UUID   `gorm:"type:uuid;index:idx_movement_entity"`
	OrderID      *uuid.UUID   `gorm:"type:uuid;index"`
	MovementType MovementType `gorm:"type:varchar(20);not null"`
	Quantity     int          `gorm:"not null"`
	ExpiresAt    *time.Time
	Note         string `gorm:"size:255"`
	CreatedAt    time.Time
}

func (m *StockMovement) TableName() string {
	return "stock_movements"
}

func (m *StockMovement) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
