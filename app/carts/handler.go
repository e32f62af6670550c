package carts

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mytheresa/storefront-engine/app/api"
	"github.com/mytheresa/storefront-engine/cart"
	"github.com/mytheresa/storefront-engine/models"
	"github.com/mytheresa/storefront-engine/pricing"
)

type ProductProvider interface {
	GetByCode(ctx context.Context, code string) (*models.Product, error)
}

type StoreProvider interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Store, error)
}

// AddLineRequest adds one line to the cart the client holds in Lines.
type AddLineRequest struct {
	StoreID     *uuid.UUID               `json:"store_id"`
	ProductCode string                   `json:"product_code"`
	VariationID *uuid.UUID               `json:"variation_id"`
	Color       string                   `json:"color"`
	Size        string                   `json:"size"`
	Mode        string                   `json:"mode"`
	Quantity    int                      `json:"quantity"`
	GradeMode   string                   `json:"grade_mode"`
	Selection   *pricing.CustomSelection `json:"selection"`
	Lines       []cart.Line              `json:"lines"`
}

type CartResponse struct {
	Line  cart.Line       `json:"line"`
	Lines []cart.Line     `json:"lines"`
	Units int             `json:"units"`
	Total decimal.Decimal `json:"total"`
}

type CartHandler struct {
	products ProductProvider
	stores   StoreProvider
	builder  *cart.Builder
}

func NewCartHandler(products ProductProvider, stores StoreProvider, builder *cart.Builder) *CartHandler {
	if builder == nil {
		builder = cart.NewBuilder(nil, nil)
	}
	return &CartHandler{products: products, stores: stores, builder: builder}
}

func (h *CartHandler) HandleAddLine(w http.ResponseWriter, r *http.Request) {
	var input AddLineRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		api.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if input.ProductCode == "" {
		api.ErrorResponse(w, http.StatusBadRequest, "Missing product_code")
		return
	}

	mode, err := models.ParseCatalogMode(input.Mode)
	if err != nil {
		api.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	gradeMode, err := models.ParseGradeMode(input.GradeMode)
	if err != nil {
		api.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	basis := models.TierBasisPerLine
	if input.StoreID != nil {
		store, err := h.stores.GetByID(r.Context(), *input.StoreID)
		if err != nil {
			api.DomainError(w, err, "Failed to load store")
			return
		}
		basis = store.TierBasis
	}

	product, err := h.products.GetByCode(r.Context(), input.ProductCode)
	if err != nil {
		api.DomainError(w, err, "Failed to retrieve product")
		return
	}

	req := cart.Request{
		Product:      *product,
		Color:        input.Color,
		Size:         input.Size,
		Mode:         mode,
		Quantity:     input.Quantity,
		GradeMode:    gradeMode,
		Selection:    input.Selection,
		TierBasis:    basis,
	}
	if input.VariationID != nil {
		req.Variation = product.Variation(*input.VariationID)
		if req.Variation == nil {
			api.ErrorResponse(w, http.StatusNotFound, cart.ErrVariationNotFound.Error())
			return
		}
	}

	line, lines, err := h.builder.Add(input.Lines, req)
	if err != nil {
		api.DomainError(w, err, "Failed to build cart line")
		return
	}

	api.OKResponse(w, CartResponse{
		Line:  line,
		Lines: lines,
		Units: cart.Units(lines),
		Total: cart.Total(lines),
	})
}
