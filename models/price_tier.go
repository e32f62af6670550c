package models

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrInvalidTiers is returned when a product's active tiers break the tier invariants.
var ErrInvalidTiers = errors.New("invalid price tiers")

// PriceTier is an absolute unit price that applies from MinQuantity units upward.
type PriceTier struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ProductID   uuid.UUID       `gorm:"type:uuid;index;not null"`
	TierOrder   int             `gorm:"not null"`
	TierType    TierType        `gorm:"type:varchar(20);not null"`
	MinQuantity int             `gorm:"not null"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	IsActive    bool            `gorm:"not null"`
}

func (t *PriceTier) TableName() string {
	return "price_tiers"
}

func (t *PriceTier) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// ValidateTiers checks the active tiers of one product: exactly one retail tier,
// and gradual wholesale tiers with strictly increasing minimum quantities.
func ValidateTiers(tiers []PriceTier) error {
	active := make([]PriceTier, 0, len(tiers))
	for _, t := range tiers {
		if t.IsActive {
			active = append(active, t)
		}
	}
	if len(active) == 0 {
		return nil
	}
	sortTiers(active)

	retail := 0
	last := -1
	for _, t := range active {
		switch t.TierType {
		case TierTypeRetail:
			retail++
		case TierTypeGradualWholesale:
			if t.MinQuantity <= last {
				return fmt.Errorf("%w: tier %d min quantity %d does not exceed %d", ErrInvalidTiers, t.TierOrder, t.MinQuantity, last)
			}
			last = t.MinQuantity
		default:
			return fmt.Errorf("%w: unknown tier type %q", ErrInvalidTiers, t.TierType)
		}
		if t.MinQuantity < 1 {
			return fmt.Errorf("%w: tier %d min quantity must be at least 1", ErrInvalidTiers, t.TierOrder)
		}
		if t.Price.IsNegative() {
			return fmt.Errorf("%w: tier %d has a negative price", ErrInvalidTiers, t.TierOrder)
		}
	}
	if retail != 1 {
		return fmt.Errorf("%w: expected exactly one active retail tier, found %d", ErrInvalidTiers, retail)
	}
	return nil
}

func sortTiers(tiers []PriceTier) {
	sort.SliceStable(tiers, func(i, j int) bool {
		if tiers[i].TierOrder != tiers[j].TierOrder {
			return tiers[i].TierOrder < tiers[j].TierOrder
		}
		return tiers[i].MinQuantity < tiers[j].MinQuantity
	})
}
