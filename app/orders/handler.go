package orders

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mytheresa/storefront-engine/app/api"
	"github.com/mytheresa/storefront-engine/models"
	domain "github.com/mytheresa/storefront-engine/orders"
	"github.com/mytheresa/storefront-engine/payments"
	"github.com/mytheresa/storefront-engine/pricing"
)

type OrderService interface {
	Create(ctx context.Context, req domain.CreateRequest) (*models.Order, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	Transition(ctx context.Context, id uuid.UUID, to models.OrderStatus) (*models.Order, error)
	AttachPayment(ctx context.Context, id uuid.UUID, paymentID string) (*models.Order, error)
}

type PaymentStatusProvider interface {
	Status(ctx context.Context, paymentID, orderID string, total decimal.Decimal) (payments.Status, error)
}

// LineInput selects an order line. Any price the client sends alongside is ignored.
type LineInput struct {
	ProductCode string                   `json:"product_code"`
	VariationID *uuid.UUID               `json:"variation_id"`
	Color       string                   `json:"color"`
	Size        string                   `json:"size"`
	Mode        string                   `json:"mode"`
	Quantity    int                      `json:"quantity"`
	GradeMode   string                   `json:"grade_mode"`
	Selection   *pricing.CustomSelection `json:"selection"`
}

type OrderResponse struct {
	ID                   string               `json:"id"`
	Number               string               `json:"number"`
	StoreID              *string              `json:"store_id,omitempty"`
	Status               models.OrderStatus   `json:"status"`
	OrderType            models.OrderType     `json:"order_type"`
	Customer             domain.Customer      `json:"customer"`
	Items                []models.OrderItem   `json:"items"`
	Total                decimal.Decimal      `json:"total"`
	StockReserved        bool                 `json:"stock_reserved"`
	ReservationExpiresAt *time.Time           `json:"reservation_expires_at,omitempty"`
	PaymentID            *string              `json:"payment_id,omitempty"`
	NextStatuses         []models.OrderStatus `json:"next_statuses"`
	CreatedAt            time.Time            `json:"created_at"`
}

type PaymentResponse struct {
	OrderID   string          `json:"order_id"`
	PaymentID string          `json:"payment_id"`
	Status    payments.Status `json:"status"`
	Total     decimal.Decimal `json:"total"`
}

type OrderHandler struct {
	service  OrderService
	payments PaymentStatusProvider
}

func NewOrderHandler(service OrderService, payments PaymentStatusProvider) *OrderHandler {
	return &OrderHandler{service: service, payments: payments}
}

func toResponse(o *models.Order) OrderResponse {
	resp := OrderResponse{
		ID:        o.ID.String(),
		Number:    o.Number,
		Status:    o.Status,
		OrderType: o.OrderType,
		Customer: domain.Customer{
			Name:  o.CustomerName,
			Email: o.CustomerEmail,
			Phone: o.CustomerPhone,
		},
		Items:                o.Items,
		Total:                o.TotalAmount,
		StockReserved:        o.StockReserved,
		ReservationExpiresAt: o.ReservationExpiresAt,
		PaymentID:            o.PaymentID,
		NextStatuses:         domain.NextStatuses(o.Status),
		CreatedAt:            o.CreatedAt,
	}
	if resp.NextStatuses == nil {
		resp.NextStatuses = []models.OrderStatus{}
	}
	if o.StoreID != uuid.Nil {
		id := o.StoreID.String()
		resp.StoreID = &id
	}
	return resp
}

func (h *OrderHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var input struct {
		StoreID   *uuid.UUID      `json:"store_id"`
		Customer  domain.Customer `json:"customer"`
		OrderType string          `json:"order_type"`
		Status    string          `json:"status"`
		Lines     []LineInput     `json:"lines"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		api.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	req := domain.CreateRequest{
		Customer:  input.Customer,
		OrderType: models.OrderType(input.OrderType),
		Status:    models.OrderStatus(input.Status),
		Lines:     make([]domain.LineRequest, len(input.Lines)),
	}
	for i, l := range input.Lines {
		mode, err := models.ParseCatalogMode(l.Mode)
		if err != nil {
			api.ErrorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		gradeMode, err := models.ParseGradeMode(l.GradeMode)
		if err != nil {
			api.ErrorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Lines[i] = domain.LineRequest{
			ProductCode: l.ProductCode,
			VariationID: l.VariationID,
			Color:       l.Color,
			Size:        l.Size,
			Mode:        mode,
			Quantity:    l.Quantity,
			GradeMode:   gradeMode,
			Selection:   l.Selection,
		}
	}
	if input.StoreID != nil {
		req.StoreID = *input.StoreID
	}

	order, err := h.service.Create(r.Context(), req)
	if err != nil {
		api.DomainError(w, err, "Failed to create order")
		return
	}
	api.JSONResponse(w, http.StatusCreated, toResponse(order))
}

func (h *OrderHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		api.DomainError(w, err, "Failed to retrieve order")
		return
	}
	api.OKResponse(w, toResponse(order))
}

func (h *OrderHandler) HandleTransition(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var input struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		api.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if input.Status == "" {
		api.ErrorResponse(w, http.StatusBadRequest, "Missing status")
		return
	}

	order, err := h.service.Transition(r.Context(), id, models.OrderStatus(input.Status))
	if err != nil {
		api.DomainError(w, err, "Failed to update order")
		return
	}
	api.OKResponse(w, toResponse(order))
}

func (h *OrderHandler) HandleAttachPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var input struct {
		PaymentID string `json:"payment_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		api.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	order, err := h.service.AttachPayment(r.Context(), id, input.PaymentID)
	if err != nil {
		api.DomainError(w, err, "Failed to attach payment")
		return
	}
	api.OKResponse(w, toResponse(order))
}

func (h *OrderHandler) HandleGetPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		api.DomainError(w, err, "Failed to retrieve order")
		return
	}

	paymentID := ""
	if order.PaymentID != nil {
		paymentID = *order.PaymentID
	}
	status, err := h.payments.Status(r.Context(), paymentID, order.ID.String(), order.TotalAmount)
	if err != nil {
		if errors.Is(err, payments.ErrNoPayment) {
			api.ErrorResponse(w, http.StatusNotFound, "Order has no payment")
			return
		}
		api.ErrorResponse(w, http.StatusBadGateway, "Failed to verify payment")
		return
	}

	api.OKResponse(w, PaymentResponse{
		OrderID:   order.ID.String(),
		PaymentID: paymentID,
		Status:    status,
		Total:     order.TotalAmount,
	})
}

func orderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		api.ErrorResponse(w, http.StatusBadRequest, "Invalid order id")
		return uuid.Nil, false
	}
	return id, true
}
