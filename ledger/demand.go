package ledger

import "github.com/mytheresa/storefront-engine/models"

// Demand is what an order needs from one stock entity.
type Demand struct {
	Ref   Ref
	Units int
}

// DemandOf sums the units of items per entity, keeping the order in which entities
// first appear. Reservations, sales and releases are tracked per (order, entity), so
// callers must act on the totals rather than item by item.
func DemandOf(items []models.OrderItem) []Demand {
	var demand []Demand
	index := make(map[Ref]int, len(items))
	for _, item := range items {
		ref := RefFor(item.ProductID, item.VariationID)
		if i, ok := index[ref]; ok {
			demand[i].Units += item.Units()
			continue
		}
		index[ref] = len(demand)
		demand = append(demand, Demand{Ref: ref, Units: item.Units()})
	}
	return demand
}
