package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product represents a product in the catalog.
// It carries both price lists, the stock counters of the product itself
// and the variations and quantity tiers attached to it.
type Product struct {
	ID                 uuid.UUID          `gorm:"type:uuid;primaryKey"`
	StoreID            uuid.UUID          `gorm:"type:uuid;index;not null"`
	Code               string             `gorm:"uniqueIndex;not null"`
	Name               string             `gorm:"not null"`
	RetailPrice        decimal.Decimal    `gorm:"type:decimal(10,2);not null;default:0"`
	WholesalePrice     decimal.Decimal    `gorm:"type:decimal(10,2);not null;default:0"`
	MinWholesaleQty    int                `gorm:"not null;default:1"`
	Stock              int                `gorm:"not null;default:0"`
	ReservedStock      int                `gorm:"not null;default:0"`
	AllowNegativeStock bool               `gorm:"not null"`
	IsActive           bool               `gorm:"not null"`
	Version            int64              `gorm:"not null;default:0"`
	Variations         []ProductVariation `gorm:"foreignKey:ProductID"`
	PriceTiers         []PriceTier        `gorm:"foreignKey:ProductID"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (p *Product) TableName() string {
	return "products"
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Variation returns the variation with the given id, or nil.
func (p *Product) Variation(id uuid.UUID) *ProductVariation {
	for i := range p.Variations {
		if p.Variations[i].ID == id {
			return &p.Variations[i]
		}
	}
	return nil
}

// ActiveTiers returns the active price tiers ordered by tier_order.
func (p *Product) ActiveTiers() []PriceTier {
	tiers := make([]PriceTier, 0, len(p.PriceTiers))
	for _, t := range p.PriceTiers {
		if t.IsActive {
			tiers = append(tiers, t)
		}
	}
	sortTiers(tiers)
	return tiers
}
