package orders

import (
	"errors"
	"slices"

	"github.com/mytheresa/storefront-engine/models"
)

var (
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrUnknownStatus     = errors.New("unknown order status")
	ErrInvalidOrder      = errors.New("invalid order")
)

// transitions lists the statuses each status may move to. Delivered and cancelled are final.
var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPending:   {models.OrderStatusConfirmed, models.OrderStatusCancelled},
	models.OrderStatusConfirmed: {models.OrderStatusPreparing, models.OrderStatusCancelled},
	models.OrderStatusPreparing: {models.OrderStatusShipping, models.OrderStatusCancelled},
	models.OrderStatusShipping:  {models.OrderStatusDelivered},
	models.OrderStatusDelivered: nil,
	models.OrderStatusCancelled: nil,
}

// CanTransition reports whether an order in from may move to to.
func CanTransition(from, to models.OrderStatus) bool {
	return slices.Contains(transitions[from], to)
}

// NextStatuses returns the statuses reachable from s in one step.
func NextStatuses(s models.OrderStatus) []models.OrderStatus {
	return slices.Clone(transitions[s])
}
