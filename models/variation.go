package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// FlexibleGradeConfig holds the optional ways a grade may be bought besides the full bundle.
type FlexibleGradeConfig struct {
	AllowHalfGrade              bool            `gorm:"not null"`
	HalfGradeDiscountPercentage decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	AllowCustomMix              bool            `gorm:"not null"`
	CustomMixPriceAdjustment    decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
}

// ProductVariation is a color/size variant of a product with its own stock.
// A grade variation sells a fixed bundle of sizes: GradeSizes[i] comes GradePairs[i] times.
type ProductVariation struct {
	ID              uuid.UUID           `gorm:"type:uuid;primaryKey"`
	ProductID       uuid.UUID           `gorm:"type:uuid;index;not null"`
	SKU             string              `gorm:"size:64"`
	Color           string              `gorm:"size:50"`
	Size            string              `gorm:"size:50"`
	Stock           int                 `gorm:"not null;default:0"`
	ReservedStock   int                 `gorm:"not null;default:0"`
	Version         int64               `gorm:"not null;default:0"`
	PriceAdjustment decimal.Decimal     `gorm:"type:decimal(10,2);not null;default:0"`
	IsActive        bool                `gorm:"not null"`
	IsGrade         bool                `gorm:"not null"`
	GradeSizes      pq.StringArray      `gorm:"type:text[]"`
	GradePairs      pq.Int64Array       `gorm:"type:integer[]"`
	FlexibleGrade   FlexibleGradeConfig `gorm:"embedded"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (v *ProductVariation) TableName() string {
	return "product_variations"
}

func (v *ProductVariation) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// Pairs returns the per-size unit counts of the grade.
func (v ProductVariation) Pairs() []int {
	pairs := make([]int, len(v.GradePairs))
	for i, p := range v.GradePairs {
		pairs[i] = int(p)
	}
	return pairs
}

// TotalPairs is the number of units in one full grade bundle.
func (v ProductVariation) TotalPairs() int {
	total := 0
	for _, p := range v.GradePairs {
		total += int(p)
	}
	return total
}

// HasSize reports whether size is one of the grade sizes.
func (v ProductVariation) HasSize(size string) bool {
	for _, s := range v.GradeSizes {
		if s == size {
			return true
		}
	}
	return false
}

// Label is the human readable name of the variation, e.g. "Black / 38".
func (v ProductVariation) Label() string {
	parts := make([]string, 0, 2)
	if v.Color != "" {
		parts = append(parts, v.Color)
	}
	if v.Size != "" {
		parts = append(parts, v.Size)
	}
	if v.IsGrade && len(v.GradeSizes) > 0 {
		parts = append(parts, "grade "+v.GradeSizes[0]+"-"+v.GradeSizes[len(v.GradeSizes)-1])
	}
	return strings.Join(parts, " / ")
}
