package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mytheresa/storefront-engine/models"
)

// GradeMode is one of FullGrade, HalfGrade or CustomMix.
// Each variant carries only the settings valid for that way of buying a grade.
type GradeMode interface {
	Kind() models.GradeMode
	isGradeMode()
}

// FullGrade sells the whole bundle at the base price per unit.
type FullGrade struct{}

// HalfGrade sells roughly half of every size at a percentage discount.
type HalfGrade struct {
	DiscountPercentage decimal.Decimal
}

// CustomMix sells buyer-chosen quantities per size with a flat unit adjustment.
type CustomMix struct {
	PriceAdjustment decimal.Decimal
	Selection       CustomSelection
}

func (FullGrade) Kind() models.GradeMode { return models.GradeModeFull }
func (HalfGrade) Kind() models.GradeMode { return models.GradeModeHalf }
func (CustomMix) Kind() models.GradeMode { return models.GradeModeCustom }

func (FullGrade) isGradeMode() {}
func (HalfGrade) isGradeMode() {}
func (CustomMix) isGradeMode() {}

// SizeQuantity is one size of a custom mix.
type SizeQuantity struct {
	Size     string `json:"size"`
	Quantity int    `json:"quantity"`
}

// CustomSelection is the buyer's per-size choice for a custom mix.
type CustomSelection struct {
	Sizes      []SizeQuantity `json:"sizes"`
	TotalPairs int            `json:"total_pairs"`
}

// NewCustomSelection builds a selection and its total from per-size quantities.
func NewCustomSelection(sizes ...SizeQuantity) CustomSelection {
	total := 0
	for _, s := range sizes {
		total += s.Quantity
	}
	return CustomSelection{Sizes: sizes, TotalPairs: total}
}

// Validate checks the selection against the sizes of grade v.
func (s CustomSelection) Validate(v models.ProductVariation) error {
	if len(s.Sizes) == 0 {
		return fmt.Errorf("%w: no sizes selected", ErrInvalidSelection)
	}
	seen := make(map[string]bool, len(s.Sizes))
	total := 0
	for _, sq := range s.Sizes {
		if sq.Quantity < 0 {
			return fmt.Errorf("%w: negative quantity for size %q", ErrInvalidSelection, sq.Size)
		}
		if len(v.GradeSizes) > 0 && !v.HasSize(sq.Size) {
			return fmt.Errorf("%w: size %q is not part of the grade", ErrInvalidSelection, sq.Size)
		}
		if seen[sq.Size] {
			return fmt.Errorf("%w: size %q selected twice", ErrInvalidSelection, sq.Size)
		}
		seen[sq.Size] = true
		total += sq.Quantity
	}
	if total <= 0 {
		return fmt.Errorf("%w: selection is empty", ErrInvalidSelection)
	}
	if s.TotalPairs != total {
		return fmt.Errorf("%w: total %d does not match sizes sum %d", ErrInvalidSelection, s.TotalPairs, total)
	}
	return nil
}

// GradeModeFor turns a requested mode into the tagged mode the variation allows.
// It returns ErrGradeConfigurationMissing when the variation does not enable the mode
// or a custom mix has no selection.
func GradeModeFor(v models.ProductVariation, requested models.GradeMode, selection *CustomSelection) (GradeMode, error) {
	cfg := v.FlexibleGrade
	switch requested {
	case "", models.GradeModeFull:
		return FullGrade{}, nil
	case models.GradeModeHalf:
		if !cfg.AllowHalfGrade {
			return nil, fmt.Errorf("%w: half grade is not enabled", ErrGradeConfigurationMissing)
		}
		return HalfGrade{DiscountPercentage: cfg.HalfGradeDiscountPercentage}, nil
	case models.GradeModeCustom:
		if !cfg.AllowCustomMix {
			return nil, fmt.Errorf("%w: custom mix is not enabled", ErrGradeConfigurationMissing)
		}
		if selection == nil {
			return nil, fmt.Errorf("%w: custom mix requires a selection", ErrGradeConfigurationMissing)
		}
		return CustomMix{PriceAdjustment: cfg.CustomMixPriceAdjustment, Selection: *selection}, nil
	}
	return nil, fmt.Errorf("%w: unknown grade mode %q", ErrGradeConfigurationMissing, requested)
}

// HalfGradeCalculator derives the per-size counts of a half grade.
type HalfGradeCalculator func(sizes []string, pairs []int) ([]int, error)

// FloorHalf halves every size count, rounding down.
func FloorHalf(_ []string, pairs []int) ([]int, error) {
	half := make([]int, len(pairs))
	for i, p := range pairs {
		if p < 0 {
			return nil, fmt.Errorf("negative pair count %d at position %d", p, i)
		}
		half[i] = p / 2
	}
	return half, nil
}
