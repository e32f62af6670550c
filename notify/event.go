// Package notify delivers order status changes to downstream consumers.
package notify

import (
	"time"

	"github.com/google/uuid"

	"github.com/mytheresa/storefront-engine/models"
)

// Event is emitted after an order changes status. OldStatus is empty for a new order.
type Event struct {
	OrderID     uuid.UUID          `json:"order_id"`
	OrderNumber string             `json:"order_number"`
	StoreID     uuid.UUID          `json:"store_id"`
	OldStatus   models.OrderStatus `json:"old_status"`
	NewStatus   models.OrderStatus `json:"new_status"`
	Items       []models.OrderItem `json:"items"`
	Timestamp   time.Time          `json:"timestamp"`
}

// EventFor builds the event for order moving away from old.
func EventFor(order *models.Order, old models.OrderStatus, at time.Time) Event {
	return Event{
		OrderID:     order.ID,
		OrderNumber: order.Number,
		StoreID:     order.StoreID,
		OldStatus:   old,
		NewStatus:   order.Status,
		Items:       order.Items,
		Timestamp:   at,
	}
}
