package catalog

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/mytheresa/storefront-engine/app/api"
	"github.com/mytheresa/storefront-engine/cart"
	"github.com/mytheresa/storefront-engine/models"
	"github.com/mytheresa/storefront-engine/pricing"
)

type Response struct {
	Total    int       `json:"total"`
	Products []Product `json:"products"`
}

type Product struct {
	Code           string  `json:"code"`
	Name           string  `json:"name"`
	Price          float64 `json:"price"`
	RetailPrice    float64 `json:"retail_price"`
	WholesalePrice float64 `json:"wholesale_price"`
	MinQuantity    int     `json:"min_quantity"`
}

type Variant struct {
	Name  string  `json:"name"`
	SKU   string  `json:"sku"`
	Price float64 `json:"price"`
	Stock int     `json:"stock"`
	// Grade variants only.
	Pairs       int     `json:"pairs,omitempty"`
	BundlePrice float64 `json:"bundle_price,omitempty"`
	HalfGrade   bool    `json:"half_grade,omitempty"`
	CustomMix   bool    `json:"custom_mix,omitempty"`
}

type Tier struct {
	MinQuantity int     `json:"min_quantity"`
	Price       float64 `json:"price"`
}

type ProductDetail struct {
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Mode        string    `json:"mode"`
	Price       float64   `json:"price"`
	MinQuantity int       `json:"min_quantity"`
	Tiers       []Tier    `json:"tiers"`
	Variants    []Variant `json:"variants"`
}

type ProductProvider interface {
	GetFilteredProducts(ctx context.Context, offset, limit int, filters models.ProductFilters) ([]models.Product, int64, error)
	GetByCode(ctx context.Context, code string) (*models.Product, error)
}

type CatalogHandler struct {
	repo     ProductProvider
	resolver *pricing.Resolver
	loads    singleflight.Group
}

func NewCatalogHandler(r ProductProvider, resolver *pricing.Resolver) *CatalogHandler {
	if resolver == nil {
		resolver = pricing.NewResolver()
	}
	return &CatalogHandler{
		repo:     r,
		resolver: resolver,
	}
}

func (h *CatalogHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	// Parse pagination query params
	offset := 0
	limit := 10

	if oStr := r.URL.Query().Get("offset"); oStr != "" {
		if o, err := strconv.Atoi(oStr); err == nil && o >= 0 {
			offset = o
		}
	}

	if lStr := r.URL.Query().Get("limit"); lStr != "" {
		if l, err := strconv.Atoi(lStr); err == nil {
			if l < 1 {
				limit = 1
			} else if l > 100 {
				limit = 100
			} else {
				limit = l
			}
		}
	}

	mode, err := models.ParseCatalogMode(r.URL.Query().Get("mode"))
	if err != nil {
		api.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	// Parse filters
	filters := models.ProductFilters{ActiveOnly: true}

	if storeStr := r.URL.Query().Get("store"); storeStr != "" {
		if id, err := uuid.Parse(storeStr); err == nil {
			filters.StoreID = &id
		}
	}

	if priceStr := r.URL.Query().Get("price_lt"); priceStr != "" {
		if val, err := strconv.ParseFloat(priceStr, 64); err == nil {
			filters.PriceLessThan = &val
		}
	}

	res, total, err := h.repo.GetFilteredProducts(r.Context(), offset, limit, filters)
	if err != nil {
		api.ErrorResponse(w, http.StatusInternalServerError, "failed to get products")
		return
	}

	products := make([]Product, len(res))
	for i, p := range res {
		products[i] = Product{
			Code:           p.Code,
			Name:           p.Name,
			Price:          basePrice(p, mode),
			RetailPrice:    p.RetailPrice.InexactFloat64(),
			WholesalePrice: p.WholesalePrice.InexactFloat64(),
			MinQuantity:    cart.MinimumQuantity(p, mode),
		}
	}

	api.OKResponse(w, Response{
		Total:    int(total),
		Products: products,
	})
}

func (h *CatalogHandler) HandleGetProduct(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	mode, err := models.ParseCatalogMode(r.URL.Query().Get("mode"))
	if err != nil {
		api.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	product, err := h.load(r.Context(), code)
	if err != nil {
		if errors.Is(err, models.ErrProductNotFound) {
			api.ErrorResponse(w, http.StatusNotFound, "Product not found")
			return
		}
		api.ErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve product")
		return
	}

	minQty := cart.MinimumQuantity(*product, mode)
	tiers := product.ActiveTiers()

	// Map response
	variants := make([]Variant, 0, len(product.Variations))
	for _, v := range product.Variations {
		if !v.IsActive {
			continue
		}
		variants = append(variants, h.variant(*product, v, mode, tiers, minQty))
	}

	detailTiers := make([]Tier, len(tiers))
	for i, t := range tiers {
		detailTiers[i] = Tier{MinQuantity: t.MinQuantity, Price: t.Price.InexactFloat64()}
	}

	api.OKResponse(w, ProductDetail{
		Code:        product.Code,
		Name:        product.Name,
		Mode:        string(mode),
		Price:       basePrice(*product, mode),
		MinQuantity: minQty,
		Tiers:       detailTiers,
		Variants:    variants,
	})
}

// load collapses concurrent reads of the same product into one query.
// load collapses concurrent reads of the same code. The shared call must not inherit the
// cancellation of whichever request started it.
func (h *CatalogHandler) load(ctx context.Context, code string) (*models.Product, error) {
	shared := context.WithoutCancel(ctx)
	v, err, _ := h.loads.Do(code, func() (any, error) {
		return h.repo.GetByCode(shared, code)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Product), nil
}

func (h *CatalogHandler) variant(p models.Product, v models.ProductVariation, mode models.CatalogMode, tiers []models.PriceTier, minQty int) Variant {
	out := Variant{
		Name:  v.Label(),
		SKU:   v.SKU,
		Stock: v.Stock - v.ReservedStock,
	}
	res, err := h.resolver.Resolve(pricing.Input{
		Product:   p,
		Variation: &v,
		Mode:      mode,
		Tiers:     tiers,
		Quantity:  minQty,
	})
	if err != nil {
		// No price list set: the variant is shown at zero.
		return out
	}
	out.Price = res.UnitPrice.InexactFloat64()
	if v.IsGrade {
		out.Pairs = res.Units
		out.BundlePrice = res.LineTotal.InexactFloat64()
		out.HalfGrade = v.FlexibleGrade.AllowHalfGrade
		out.CustomMix = v.FlexibleGrade.AllowCustomMix
	}
	return out
}

func basePrice(p models.Product, mode models.CatalogMode) float64 {
	price, err := pricing.BasePrice(p, mode)
	if err != nil {
		return 0
	}
	return price.InexactFloat64()
}
