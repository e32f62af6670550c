package models

import "fmt"

// CatalogMode selects the price and quantity rule set a cart line is evaluated under.
type CatalogMode string

const (
	CatalogModeRetail    CatalogMode = "retail"
	CatalogModeWholesale CatalogMode = "wholesale"
)

// ParseCatalogMode accepts an empty value as retail.
func ParseCatalogMode(s string) (CatalogMode, error) {
	switch CatalogMode(s) {
	case "", CatalogModeRetail:
		return CatalogModeRetail, nil
	case CatalogModeWholesale:
		return CatalogModeWholesale, nil
	}
	return "", fmt.Errorf("unknown catalog mode %q", s)
}

// GradeMode is how a grade variation is bought.
type GradeMode string

const (
	GradeModeFull   GradeMode = "full"
	GradeModeHalf   GradeMode = "half"
	GradeModeCustom GradeMode = "custom"
)

// ParseGradeMode accepts an empty value as full.
func ParseGradeMode(s string) (GradeMode, error) {
	switch GradeMode(s) {
	case "", GradeModeFull:
		return GradeModeFull, nil
	case GradeModeHalf, GradeModeCustom:
		return GradeMode(s), nil
	}
	return "", fmt.Errorf("unknown grade mode %q", s)
}

type TierType string

const (
	TierTypeRetail           TierType = "retail"
	TierTypeGradualWholesale TierType = "gradual_wholesale"
)

// TierBasis is the store-level choice of which quantity tier thresholds are compared to.
type TierBasis string

const (
	TierBasisPerLine       TierBasis = "per_line"
	TierBasisCartAggregate TierBasis = "cart_aggregate"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusShipping  OrderStatus = "shipping"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderStatuses lists every status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusPreparing,
	OrderStatusShipping,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

func (s OrderStatus) Valid() bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

type OrderType string

const (
	OrderTypeRetail    OrderType = "retail"
	OrderTypeWholesale OrderType = "wholesale"
)

func (t OrderType) Valid() bool {
	return t == OrderTypeRetail || t == OrderTypeWholesale
}

type MovementType string

const (
	MovementReservation MovementType = "reservation"
	MovementSale        MovementType = "sale"
	MovementRelease     MovementType = "release"
)
