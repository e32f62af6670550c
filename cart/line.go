package cart

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mytheresa/storefront-engine/models"
	"github.com/mytheresa/storefront-engine/pricing"
)

var (
	ErrInactive          = errors.New("product or variation is not active")
	ErrVariationMismatch = errors.New("variation does not belong to product")
	ErrVariationNotFound = errors.New("variation not found")
)

// Request describes one line the buyer wants to add.
// Variation may be nil; Color and Size are then used to look it up on the product.
type Request struct {
	Product   models.Product
	Variation *models.ProductVariation
	Color     string
	Size      string
	Mode      models.CatalogMode
	Quantity  int
	GradeMode models.GradeMode
	Selection *pricing.CustomSelection
	TierBasis models.TierBasis
	// CartQuantity is the number of units already in the cart, used when TierBasis is cart_aggregate.
	CartQuantity int
}

// Line is a priced cart line.
type Line struct {
	ID             string                   `json:"id"`
	ProductID      uuid.UUID                `json:"product_id"`
	VariationID    *uuid.UUID               `json:"variation_id,omitempty"`
	Name           string                   `json:"name"`
	VariationLabel string                   `json:"variation_label,omitempty"`
	UnitPrice      decimal.Decimal          `json:"unit_price"`
	Quantity       int                      `json:"quantity"`
	LineTotal      decimal.Decimal          `json:"line_total"`
	StockUnits     int                      `json:"stock_units"`
	CatalogMode    models.CatalogMode       `json:"catalog_mode"`
	GradeMode      models.GradeMode         `json:"grade_mode,omitempty"`
	Selection      *pricing.CustomSelection `json:"selection,omitempty"`
	Anomalies      []string                 `json:"anomalies,omitempty"`
}

// Item snapshots the line for an order.
func (l Line) Item() models.OrderItem {
	return models.OrderItem{
		LineID:         l.ID,
		ProductID:      l.ProductID,
		VariationID:    l.VariationID,
		Name:           l.Name,
		VariationLabel: l.VariationLabel,
		Quantity:       l.Quantity,
		StockUnits:     l.StockUnits,
		UnitPrice:      l.UnitPrice,
		LineTotal:      l.LineTotal,
		GradeMode:      l.GradeMode,
	}
}

type Builder struct {
	resolver *pricing.Resolver
	logger   *zap.Logger
}

func NewBuilder(resolver *pricing.Resolver, logger *zap.Logger) *Builder {
	if resolver == nil {
		resolver = pricing.NewResolver()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{resolver: resolver, logger: logger}
}

// MinimumQuantity is the smallest quantity a line of p may carry in mode.
func MinimumQuantity(p models.Product, mode models.CatalogMode) int {
	if mode == models.CatalogModeWholesale && p.MinWholesaleQty > 1 {
		return p.MinWholesaleQty
	}
	return 1
}

func (b *Builder) Build(req Request) (Line, error) {
	p := req.Product
	if !p.IsActive {
		return Line{}, fmt.Errorf("%w: product %s", ErrInactive, p.Code)
	}
	mode := req.Mode
	if mode == "" {
		mode = models.CatalogModeRetail
	}

	v, err := variationFor(req)
	if err != nil {
		return Line{}, err
	}

	quantity := req.Quantity
	if minQty := MinimumQuantity(p, mode); quantity < minQty {
		quantity = minQty
	}
	if v != nil && v.IsGrade {
		quantity = 1
	}

	in := pricing.Input{
		Product:   p,
		Variation: v,
		Mode:      mode,
		Tiers:     p.ActiveTiers(),
		Grade:     req.GradeMode,
		Selection: req.Selection,
		Quantity:  quantity,
	}
	if req.TierBasis == models.TierBasisCartAggregate {
		in.TierQuantity = req.CartQuantity + unitsOf(v, quantity)
	}

	res, err := b.resolver.Resolve(in)
	if err != nil {
		return Line{}, fmt.Errorf("failed to price %s: %w", p.Code, err)
	}

	line := Line{
		ProductID:   p.ID,
		Name:        p.Name,
		UnitPrice:   res.UnitPrice,
		Quantity:    quantity,
		LineTotal:   res.LineTotal,
		StockUnits:  res.Units,
		CatalogMode: mode,
	}
	if v != nil {
		id := v.ID
		line.VariationID = &id
		line.VariationLabel = v.Label()
		if v.IsGrade {
			line.GradeMode = res.GradeMode
			if res.GradeMode == models.GradeModeCustom {
				line.Selection = req.Selection
			}
		}
	}
	line.ID = lineID(p.ID, mode, v, req.Color, req.Size, line.GradeMode)

	for _, a := range res.Anomalies {
		b.logger.Warn("pricing anomaly",
			zap.String("product_code", p.Code),
			zap.String("line_id", line.ID),
			zap.Error(a))
		line.Anomalies = append(line.Anomalies, a.Error())
	}
	return line, nil
}

func variationFor(req Request) (*models.ProductVariation, error) {
	p := req.Product
	v := req.Variation
	if v == nil && (req.Color != "" || req.Size != "") {
		for i := range p.Variations {
			c := &p.Variations[i]
			if c.Color == req.Color && c.Size == req.Size {
				v = c
				break
			}
		}
		if v == nil {
			return nil, fmt.Errorf("%w: %s %s/%s", ErrVariationNotFound, p.Code, req.Color, req.Size)
		}
	}
	if v == nil {
		return nil, nil
	}
	if v.ProductID != p.ID {
		return nil, fmt.Errorf("%w: variation %s, product %s", ErrVariationMismatch, v.ID, p.Code)
	}
	if !v.IsActive {
		return nil, fmt.Errorf("%w: variation %s", ErrInactive, v.ID)
	}
	return v, nil
}

func unitsOf(v *models.ProductVariation, quantity int) int {
	if v != nil && v.IsGrade {
		return v.TotalPairs()
	}
	return quantity
}

// lineID is stable for the same product, mode and variant so repeated adds merge.
func lineID(productID uuid.UUID, mode models.CatalogMode, v *models.ProductVariation, color, size string, grade models.GradeMode) string {
	parts := []string{productID.String(), string(mode)}
	switch {
	case v != nil:
		parts = append(parts, v.ID.String())
	case color != "" || size != "":
		parts = append(parts, color+"-"+size)
	}
	if grade == models.GradeModeHalf || grade == models.GradeModeCustom {
		parts = append(parts, string(grade))
	}
	return strings.Join(parts, "|")
}

// Add builds the line for req against the cart held in lines and merges it in. When the
// line already exists its combined quantity is priced again, so crossing a tier threshold
// re-prices the whole line. It returns the line as it stands in the cart.
func (b *Builder) Add(lines []Line, req Request) (Line, []Line, error) {
	req.CartQuantity = Units(lines)
	line, err := b.Build(req)
	if err != nil {
		return Line{}, nil, err
	}
	i := slices.IndexFunc(lines, func(l Line) bool { return l.ID == line.ID })
	if i < 0 {
		return line, append(lines, line), nil
	}

	existing := lines[i]
	req.CartQuantity = Units(lines) - existing.StockUnits
	if line.GradeMode == "" {
		req.Quantity = existing.Quantity + line.Quantity
	}
	merged, err := b.Build(req)
	if err != nil {
		return Line{}, nil, err
	}
	lines[i] = merged
	return merged, lines, nil
}

// Merge puts line into lines. A line with the same ID takes the incoming price and has its
// quantity increased; grade lines are bundles and replace the existing line instead.
func Merge(lines []Line, line Line) []Line {
	for i := range lines {
		if lines[i].ID != line.ID {
			continue
		}
		if line.GradeMode != "" {
			lines[i] = line
			return lines
		}
		existing := &lines[i]
		existing.Quantity += line.Quantity
		existing.StockUnits += line.StockUnits
		existing.UnitPrice = line.UnitPrice
		existing.LineTotal = existing.UnitPrice.Mul(decimal.NewFromInt(int64(existing.Quantity))).Round(2)
		existing.Anomalies = append(existing.Anomalies, line.Anomalies...)
		return lines
	}
	return append(lines, line)
}

// Units sums the stock units of lines.
func Units(lines []Line) int {
	total := 0
	for _, l := range lines {
		total += l.StockUnits
	}
	return total
}

// Total sums the line totals.
func Total(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.LineTotal)
	}
	return total.Round(2)
}
