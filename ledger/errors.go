package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrLedgerConflict means the counters changed between read and write. The caller retries.
	ErrLedgerConflict  = errors.New("stock counters were modified concurrently")
	ErrEntityNotFound  = errors.New("stock entity not found")
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// InsufficientStockError names the entity and how much of it was free.
type InsufficientStockError struct {
	Ref       Ref
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	name := e.Name
	if name == "" {
		name = e.Ref.String()
	}
	return fmt.Sprintf("insufficient stock for %s, available: %d", name, max(e.Available, 0))
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
