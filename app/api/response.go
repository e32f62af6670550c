package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mytheresa/storefront-engine/cart"
	"github.com/mytheresa/storefront-engine/ledger"
	"github.com/mytheresa/storefront-engine/models"
	"github.com/mytheresa/storefront-engine/orders"
	"github.com/mytheresa/storefront-engine/payments"
	"github.com/mytheresa/storefront-engine/pricing"
)

// OKResponse writes data as a 200 JSON response.
func OKResponse(w http.ResponseWriter, data any) {
	JSONResponse(w, http.StatusOK, data)
}

func JSONResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// ErrorResponse writes {"error": message} with the given status.
func ErrorResponse(w http.ResponseWriter, status int, message string) {
	JSONResponse(w, status, map[string]string{"error": message})
}

// StatusFor maps domain errors onto HTTP statuses.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrInsufficientStock),
		errors.Is(err, orders.ErrInvalidTransition),
		errors.Is(err, ledger.ErrLedgerConflict),
		errors.Is(err, models.ErrOrderVersionConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrProductNotFound),
		errors.Is(err, models.ErrOrderNotFound),
		errors.Is(err, models.ErrStoreNotFound),
		errors.Is(err, ledger.ErrEntityNotFound),
		errors.Is(err, cart.ErrVariationNotFound),
		errors.Is(err, payments.ErrNoPayment):
		return http.StatusNotFound
	case errors.Is(err, orders.ErrInvalidOrder),
		errors.Is(err, orders.ErrUnknownStatus),
		errors.Is(err, cart.ErrInactive),
		errors.Is(err, cart.ErrVariationMismatch),
		errors.Is(err, pricing.ErrPriceUnavailable),
		errors.Is(err, pricing.ErrInvalidQuantity),
		errors.Is(err, pricing.ErrEmptyGrade),
		errors.Is(err, pricing.ErrInvalidSelection),
		errors.Is(err, ledger.ErrInvalidQuantity),
		errors.Is(err, models.ErrInvalidTiers):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// DomainError writes err with its mapped status. Internal errors are replaced by fallback
// so storage details never reach the client.
func DomainError(w http.ResponseWriter, err error, fallback string) {
	status := StatusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = fallback
	}
	ErrorResponse(w, status, message)
}
