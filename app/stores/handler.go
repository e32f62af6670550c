package stores

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mytheresa/storefront-engine/app/api"
	"github.com/mytheresa/storefront-engine/models"
)

type StoreResponse struct {
	ID                  string `json:"id"`
	Code                string `json:"code"`
	Name                string `json:"name"`
	TierBasis           string `json:"tier_basis"`
	ReserveOnCreate     bool   `json:"reserve_on_create"`
	ReservationTTLHours int    `json:"reservation_ttl_hours"`
}

type StoreProvider interface {
	GetAllStores(ctx context.Context) ([]models.Store, error)
	CreateStore(ctx context.Context, store *models.Store) error
}

type StoreHandler struct {
	repo StoreProvider
}

func NewStoreHandler(r StoreProvider) *StoreHandler {
	return &StoreHandler{repo: r}
}

func toResponse(s models.Store) StoreResponse {
	return StoreResponse{
		ID:                  s.ID.String(),
		Code:                s.Code,
		Name:                s.Name,
		TierBasis:           string(s.TierBasis),
		ReserveOnCreate:     s.ReserveOnCreate,
		ReservationTTLHours: s.ReservationTTLHours,
	}
}

func (h *StoreHandler) HandleGetAll(w http.ResponseWriter, r *http.Request) {
	stores, err := h.repo.GetAllStores(r.Context())
	if err != nil {
		api.ErrorResponse(w, http.StatusInternalServerError, "failed to fetch stores")
		return
	}

	response := make([]StoreResponse, len(stores))
	for i, s := range stores {
		response[i] = toResponse(s)
	}

	api.OKResponse(w, response)
}

func (h *StoreHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Code                string `json:"code"`
		Name                string `json:"name"`
		TierBasis           string `json:"tier_basis"`
		ReserveOnCreate     bool   `json:"reserve_on_create"`
		ReservationTTLHours int    `json:"reservation_ttl_hours"`
	}

	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		api.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if input.Code == "" || input.Name == "" {
		api.ErrorResponse(w, http.StatusBadRequest, "Missing code or name")
		return
	}

	basis := models.TierBasis(input.TierBasis)
	switch basis {
	case "", models.TierBasisPerLine, models.TierBasisCartAggregate:
	default:
		api.ErrorResponse(w, http.StatusBadRequest, "Unknown tier basis")
		return
	}
	if input.ReservationTTLHours < 0 {
		api.ErrorResponse(w, http.StatusBadRequest, "Reservation TTL must not be negative")
		return
	}
	if input.ReservationTTLHours == 0 {
		input.ReservationTTLHours = int(models.DefaultReservationTTL.Hours())
	}

	store := &models.Store{
		Code:                input.Code,
		Name:                input.Name,
		TierBasis:           basis,
		ReserveOnCreate:     input.ReserveOnCreate,
		ReservationTTLHours: input.ReservationTTLHours,
	}

	if err := h.repo.CreateStore(r.Context(), store); err != nil {
		api.ErrorResponse(w, http.StatusInternalServerError, "Failed to create store")
		return
	}

	api.JSONResponse(w, http.StatusCreated, toResponse(*store))
}
