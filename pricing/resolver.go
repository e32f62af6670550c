// Package pricing resolves the unit price and total of a cart line.
// Nothing here performs I/O; callers pass the product data they already hold.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mytheresa/storefront-engine/models"
)

var (
	ErrPriceUnavailable = errors.New("product has neither a retail nor a wholesale price")
	ErrInvalidQuantity  = errors.New("quantity must be positive")
	ErrEmptyGrade       = errors.New("grade has no pairs")
	ErrInvalidSelection = errors.New("invalid custom selection")

	// ErrGradeConfigurationMissing and ErrPriceAnomaly are never returned by Resolve.
	// They are reported as anomalies on the Result while pricing falls back safely.
	ErrGradeConfigurationMissing = errors.New("grade configuration missing")
	ErrPriceAnomaly              = errors.New("price anomaly")
)

// Anomaly is a recovered pricing problem that needs review but must not block checkout.
type Anomaly struct {
	Err    error
	Detail string
}

func (a Anomaly) Error() string {
	return a.Err.Error() + ": " + a.Detail
}

func (a Anomaly) Unwrap() error {
	return a.Err
}

// Input is everything a price depends on.
type Input struct {
	Product   models.Product
	Variation *models.ProductVariation
	Mode      models.CatalogMode
	Tiers     []models.PriceTier
	Grade     models.GradeMode
	Selection *CustomSelection
	Quantity  int
	// TierQuantity is the quantity compared with tier thresholds. Zero means the
	// units priced by this line.
	TierQuantity int
}

// Result is a resolved price.
type Result struct {
	BasePrice decimal.Decimal
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
	// Units is the number of units the total covers: the quantity, or pairs for a grade.
	Units     int
	GradeMode models.GradeMode
	Tier      *models.PriceTier
	Anomalies []Anomaly
}

// Flagged reports whether the result needs review.
func (r Result) Flagged() bool {
	return len(r.Anomalies) > 0
}

type Resolver struct {
	halfGrade HalfGradeCalculator
}

type Option func(*Resolver)

// WithHalfGradeCalculator replaces FloorHalf.
func WithHalfGradeCalculator(calc HalfGradeCalculator) Option {
	return func(r *Resolver) {
		r.halfGrade = calc
	}
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{halfGrade: FloorHalf}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// BasePrice picks the price list for mode, falling back to the other list when the
// preferred price is missing or zero.
func BasePrice(p models.Product, mode models.CatalogMode) (decimal.Decimal, error) {
	preferred, fallback := p.RetailPrice, p.WholesalePrice
	if mode == models.CatalogModeWholesale {
		preferred, fallback = p.WholesalePrice, p.RetailPrice
	}
	if preferred.IsPositive() {
		return preferred, nil
	}
	if fallback.IsPositive() {
		return fallback, nil
	}
	return decimal.Zero, fmt.Errorf("%w: %s", ErrPriceUnavailable, p.Code)
}

// SelectTier returns the active tier with the highest threshold met by quantity.
func SelectTier(tiers []models.PriceTier, quantity int) *models.PriceTier {
	var best *models.PriceTier
	for i := range tiers {
		t := &tiers[i]
		if !t.IsActive || !t.Price.IsPositive() || t.MinQuantity > quantity {
			continue
		}
		if best == nil || t.MinQuantity > best.MinQuantity {
			best = t
		}
	}
	return best
}

func (r *Resolver) Resolve(in Input) (Result, error) {
	base, err := BasePrice(in.Product, in.Mode)
	if err != nil {
		return Result{}, err
	}
	if in.Variation != nil && in.Variation.IsGrade {
		return r.resolveGrade(in, base)
	}
	if in.Quantity <= 0 {
		return Result{}, fmt.Errorf("%w: got %d", ErrInvalidQuantity, in.Quantity)
	}

	res := Result{Units: in.Quantity}
	res.BasePrice, res.Tier = applyTier(base, in.Tiers, tierQuantity(in, in.Quantity))

	unit := res.BasePrice
	if in.Variation != nil {
		unit = unit.Add(in.Variation.PriceAdjustment)
	}
	res.UnitPrice = clamp(unit, &res)
	res.LineTotal = res.UnitPrice.Mul(decimal.NewFromInt(int64(in.Quantity))).Round(2)
	return res, nil
}

func (r *Resolver) resolveGrade(in Input, base decimal.Decimal) (Result, error) {
	v := *in.Variation
	pairs := v.Pairs()
	totalPairs := v.TotalPairs()
	if totalPairs <= 0 {
		return Result{}, fmt.Errorf("%w: variation %s", ErrEmptyGrade, v.ID)
	}

	var res Result
	mode, err := GradeModeFor(v, in.Grade, in.Selection)
	if err != nil {
		res.Anomalies = append(res.Anomalies, anomaly(err, "falling back to full grade"))
		mode = FullGrade{}
	}

	units, unitPrice := totalPairs, func(b decimal.Decimal) decimal.Decimal { return b }
	switch m := mode.(type) {
	case HalfGrade:
		half, err := r.halfPairs(v.GradeSizes, pairs)
		if err != nil {
			res.Anomalies = append(res.Anomalies, anomaly(err, "falling back to full grade"))
			mode = FullGrade{}
			break
		}
		units = half
		factor := decimal.NewFromInt(1).Sub(m.DiscountPercentage.Div(decimal.NewFromInt(100)))
		unitPrice = func(b decimal.Decimal) decimal.Decimal { return b.Mul(factor) }
	case CustomMix:
		if err := m.Selection.Validate(v); err != nil {
			res.Anomalies = append(res.Anomalies, anomaly(fmt.Errorf("%w: %w", ErrGradeConfigurationMissing, err), "falling back to full grade"))
			mode = FullGrade{}
			break
		}
		units = m.Selection.TotalPairs
		unitPrice = func(b decimal.Decimal) decimal.Decimal { return b.Add(m.PriceAdjustment) }
	}

	res.GradeMode = mode.Kind()
	res.Units = units
	res.BasePrice, res.Tier = applyTier(base, in.Tiers, tierQuantity(in, units))
	res.UnitPrice = clamp(unitPrice(res.BasePrice), &res)
	res.LineTotal = res.UnitPrice.Mul(decimal.NewFromInt(int64(units))).Round(2)
	return res, nil
}

// halfPairs runs the half grade calculator and rejects a result that would sell nothing.
func (r *Resolver) halfPairs(sizes []string, pairs []int) (total int, err error) {
	defer func() {
		if p := recover(); p != nil {
			total, err = 0, fmt.Errorf("%w: half grade calculator panicked: %v", ErrGradeConfigurationMissing, p)
		}
	}()

	half, err := r.halfGrade(sizes, pairs)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrGradeConfigurationMissing, err)
	}
	for _, h := range half {
		total += h
	}
	if total <= 0 {
		return 0, fmt.Errorf("%w: half grade is empty", ErrGradeConfigurationMissing)
	}
	return total, nil
}

func applyTier(base decimal.Decimal, tiers []models.PriceTier, quantity int) (decimal.Decimal, *models.PriceTier) {
	if tier := SelectTier(tiers, quantity); tier != nil {
		return tier.Price, tier
	}
	return base, nil
}

func tierQuantity(in Input, units int) int {
	if in.TierQuantity > 0 {
		return in.TierQuantity
	}
	return units
}

func clamp(unit decimal.Decimal, res *Result) decimal.Decimal {
	if unit.IsNegative() {
		res.Anomalies = append(res.Anomalies, anomaly(ErrPriceAnomaly, fmt.Sprintf("unit price %s clamped to zero", unit.StringFixed(2))))
		return decimal.Zero
	}
	return unit.Round(2)
}

func anomaly(err error, detail string) Anomaly {
	return Anomaly{Err: err, Detail: detail}
}
