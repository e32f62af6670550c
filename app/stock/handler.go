package stock

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/mytheresa/storefront-engine/app/api"
	"github.com/mytheresa/storefront-engine/ledger"
	"github.com/mytheresa/storefront-engine/models"
)

type LedgerReader interface {
	Snapshot(ctx context.Context, ref ledger.Ref) (ledger.Counters, error)
	Movements(ctx context.Context, ref ledger.Ref, limit int) ([]models.StockMovement, error)
}

type Movement struct {
	ID        string              `json:"id"`
	Type      models.MovementType `json:"type"`
	Quantity  int                 `json:"quantity"`
	OrderID   *string             `json:"order_id,omitempty"`
	ExpiresAt *time.Time          `json:"expires_at,omitempty"`
	Note      string              `json:"note,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}

type Response struct {
	Name      string     `json:"name"`
	OnHand    int        `json:"on_hand"`
	Reserved  int        `json:"reserved"`
	Available int        `json:"available"`
	Movements []Movement `json:"movements"`
}

type StockHandler struct {
	ledger LedgerReader
}

func NewStockHandler(l LedgerReader) *StockHandler {
	return &StockHandler{ledger: l}
}

func (h *StockHandler) HandleMovements(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(r.PathValue("productID"))
	if err != nil {
		api.ErrorResponse(w, http.StatusBadRequest, "Invalid product id")
		return
	}

	var variationID *uuid.UUID
	if vStr := r.URL.Query().Get("variation_id"); vStr != "" {
		id, err := uuid.Parse(vStr)
		if err != nil {
			api.ErrorResponse(w, http.StatusBadRequest, "Invalid variation id")
			return
		}
		variationID = &id
	}

	limit := 50
	if lStr := r.URL.Query().Get("limit"); lStr != "" {
		if l, err := strconv.Atoi(lStr); err == nil {
			limit = min(max(l, 1), 200)
		}
	}

	ref := ledger.RefFor(productID, variationID)
	counters, err := h.ledger.Snapshot(r.Context(), ref)
	if err != nil {
		if errors.Is(err, ledger.ErrEntityNotFound) {
			api.ErrorResponse(w, http.StatusNotFound, "Stock entity not found")
			return
		}
		api.ErrorResponse(w, http.StatusInternalServerError, "Failed to read stock")
		return
	}

	movements, err := h.ledger.Movements(r.Context(), ref, limit)
	if err != nil {
		api.ErrorResponse(w, http.StatusInternalServerError, "Failed to list movements")
		return
	}

	resp := Response{
		Name:      counters.Name,
		OnHand:    counters.OnHand,
		Reserved:  counters.Reserved,
		Available: counters.Available(),
		Movements: make([]Movement, len(movements)),
	}
	for i, m := range movements {
		resp.Movements[i] = Movement{
			ID:        m.ID.String(),
			Type:      m.MovementType,
			Quantity:  m.Quantity,
			ExpiresAt: m.ExpiresAt,
			Note:      m.Note,
			CreatedAt: m.CreatedAt,
		}
		if m.OrderID != nil {
			id := m.OrderID.String()
			resp.Movements[i].OrderID = &id
		}
	}

	api.OKResponse(w, resp)
}
