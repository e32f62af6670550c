package products

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/mytheresa/storefront-engine/app/api"
	"github.com/mytheresa/storefront-engine/models"
)

type ProductWriter interface {
	Create(ctx context.Context, product *models.Product) error
	ReplaceTiers(ctx context.Context, productID uuid.UUID, tiers []models.PriceTier) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// TierInput is one price tier. IsActive defaults to true.
type TierInput struct {
	TierOrder   int             `json:"tier_order"`
	TierType    string          `json:"tier_type"`
	MinQuantity int             `json:"min_quantity"`
	Price       decimal.Decimal `json:"price"`
	IsActive    *bool           `json:"is_active"`
}

type VariationInput struct {
	SKU             string          `json:"sku"`
	Color           string          `json:"color"`
	Size            string          `json:"size"`
	Stock           int             `json:"stock"`
	PriceAdjustment decimal.Decimal `json:"price_adjustment"`
	GradeSizes      []string        `json:"grade_sizes"`
	GradePairs      []int64         `json:"grade_pairs"`
}

type CreateRequest struct {
	StoreID            *uuid.UUID       `json:"store_id"`
	Code               string           `json:"code"`
	Name               string           `json:"name"`
	RetailPrice        decimal.Decimal  `json:"retail_price"`
	WholesalePrice     decimal.Decimal  `json:"wholesale_price"`
	MinWholesaleQty    int              `json:"min_wholesale_qty"`
	Stock              int              `json:"stock"`
	AllowNegativeStock bool             `json:"allow_negative_stock"`
	Variations         []VariationInput `json:"variations"`
	Tiers              []TierInput      `json:"tiers"`
}

type TierResponse struct {
	TierOrder   int             `json:"tier_order"`
	TierType    models.TierType `json:"tier_type"`
	MinQuantity int             `json:"min_quantity"`
	Price       decimal.Decimal `json:"price"`
	IsActive    bool            `json:"is_active"`
}

type ProductResponse struct {
	ID             string          `json:"id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	RetailPrice    decimal.Decimal `json:"retail_price"`
	WholesalePrice decimal.Decimal `json:"wholesale_price"`
	Stock          int             `json:"stock"`
	Variations     int             `json:"variations"`
	Tiers          []TierResponse  `json:"tiers"`
}

type ProductHandler struct {
	repo ProductWriter
}

func NewProductHandler(r ProductWriter) *ProductHandler {
	return &ProductHandler{repo: r}
}

func toResponse(p *models.Product) ProductResponse {
	resp := ProductResponse{
		ID:             p.ID.String(),
		Code:           p.Code,
		Name:           p.Name,
		RetailPrice:    p.RetailPrice,
		WholesalePrice: p.WholesalePrice,
		Stock:          p.Stock,
		Variations:     len(p.Variations),
		Tiers:          []TierResponse{},
	}
	for _, t := range p.ActiveTiers() {
		resp.Tiers = append(resp.Tiers, TierResponse{
			TierOrder:   t.TierOrder,
			TierType:    t.TierType,
			MinQuantity: t.MinQuantity,
			Price:       t.Price,
			IsActive:    t.IsActive,
		})
	}
	return resp
}

func toTiers(in []TierInput) []models.PriceTier {
	tiers := make([]models.PriceTier, len(in))
	for i, t := range in {
		tiers[i] = models.PriceTier{
			TierOrder:   t.TierOrder,
			TierType:    models.TierType(t.TierType),
			MinQuantity: t.MinQuantity,
			Price:       t.Price,
			IsActive:    t.IsActive == nil || *t.IsActive,
		}
	}
	return tiers
}

func (h *ProductHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var input CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		api.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if input.Code == "" || input.Name == "" {
		api.ErrorResponse(w, http.StatusBadRequest, "Missing code or name")
		return
	}
	if input.RetailPrice.IsNegative() || input.WholesalePrice.IsNegative() {
		api.ErrorResponse(w, http.StatusBadRequest, "Prices must not be negative")
		return
	}
	if input.Stock < 0 {
		api.ErrorResponse(w, http.StatusBadRequest, "Stock must not be negative")
		return
	}
	if input.MinWholesaleQty < 1 {
		input.MinWholesaleQty = 1
	}

	product := &models.Product{
		Code:               input.Code,
		Name:               input.Name,
		RetailPrice:        input.RetailPrice,
		WholesalePrice:     input.WholesalePrice,
		MinWholesaleQty:    input.MinWholesaleQty,
		Stock:              input.Stock,
		AllowNegativeStock: input.AllowNegativeStock,
		IsActive:           true,
		PriceTiers:         toTiers(input.Tiers),
	}
	if input.StoreID != nil {
		product.StoreID = *input.StoreID
	}
	for _, v := range input.Variations {
		if len(v.GradeSizes) != len(v.GradePairs) {
			api.ErrorResponse(w, http.StatusBadRequest, "Grade sizes and pairs must have the same length")
			return
		}
		product.Variations = append(product.Variations, models.ProductVariation{
			SKU:             v.SKU,
			Color:           v.Color,
			Size:            v.Size,
			Stock:           v.Stock,
			PriceAdjustment: v.PriceAdjustment,
			IsActive:        true,
			IsGrade:         len(v.GradeSizes) > 0,
			GradeSizes:      pq.StringArray(v.GradeSizes),
			GradePairs:      pq.Int64Array(v.GradePairs),
		})
	}

	if err := h.repo.Create(r.Context(), product); err != nil {
		api.DomainError(w, err, "Failed to create product")
		return
	}

	api.JSONResponse(w, http.StatusCreated, toResponse(product))
}

// HandleReplaceTiers swaps the whole tier set of a product. An empty list removes all tiers.
func (h *ProductHandler) HandleReplaceTiers(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		api.ErrorResponse(w, http.StatusBadRequest, "Invalid product id")
		return
	}
	var input struct {
		Tiers []TierInput `json:"tiers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		api.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if err := h.repo.ReplaceTiers(r.Context(), id, toTiers(input.Tiers)); err != nil {
		api.DomainError(w, err, "Failed to replace tiers")
		return
	}

	product, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		api.DomainError(w, err, "Failed to retrieve product")
		return
	}
	api.OKResponse(w, toResponse(product))
}
