// Package app wires the HTTP handlers onto one mux.
package app

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mytheresa/storefront-engine/app/carts"
	"github.com/mytheresa/storefront-engine/app/catalog"
	"github.com/mytheresa/storefront-engine/app/orders"
	"github.com/mytheresa/storefront-engine/app/products"
	"github.com/mytheresa/storefront-engine/app/stock"
	"github.com/mytheresa/storefront-engine/app/stores"
	"github.com/mytheresa/storefront-engine/cart"
	"github.com/mytheresa/storefront-engine/ledger"
	"github.com/mytheresa/storefront-engine/models"
	domain "github.com/mytheresa/storefront-engine/orders"
	"github.com/mytheresa/storefront-engine/payments"
	"github.com/mytheresa/storefront-engine/pricing"
)

type Deps struct {
	Products *models.ProductsRepository
	Stores   *models.StoresRepository
	Resolver *pricing.Resolver
	Ledger   *ledger.Ledger
	Orders   *domain.Service
	Payments *payments.Projector
	Logger   *zap.Logger
}

func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	catalogHandler := catalog.NewCatalogHandler(d.Products, d.Resolver)
	storeHandler := stores.NewStoreHandler(d.Stores)
	cartHandler := carts.NewCartHandler(d.Products, d.Stores, cart.NewBuilder(d.Resolver, logger))
	productHandler := products.NewProductHandler(d.Products)
	orderHandler := orders.NewOrderHandler(d.Orders, d.Payments)
	stockHandler := stock.NewStockHandler(d.Ledger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("GET /catalog", catalogHandler.HandleGet)
	mux.HandleFunc("GET /catalog/{code}", catalogHandler.HandleGetProduct)

	mux.HandleFunc("POST /products", productHandler.HandleCreate)
	mux.HandleFunc("PUT /products/{id}/tiers", productHandler.HandleReplaceTiers)

	mux.HandleFunc("GET /stores", storeHandler.HandleGetAll)
	mux.HandleFunc("POST /stores", storeHandler.HandleCreate)

	mux.HandleFunc("POST /cart/lines", cartHandler.HandleAddLine)

	mux.HandleFunc("POST /orders", orderHandler.HandleCreate)
	mux.HandleFunc("GET /orders/{id}", orderHandler.HandleGet)
	mux.HandleFunc("POST /orders/{id}/transitions", orderHandler.HandleTransition)
	mux.HandleFunc("PUT /orders/{id}/payment", orderHandler.HandleAttachPayment)
	mux.HandleFunc("GET /orders/{id}/payment", orderHandler.HandleGetPayment)

	mux.HandleFunc("GET /stock/{productID}/movements", stockHandler.HandleMovements)

	return accessLog(logger, mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func accessLog(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}
