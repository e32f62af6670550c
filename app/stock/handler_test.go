package stock

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mytheresa/storefront-engine/internal/testdb"
	"github.com/mytheresa/storefront-engine/ledger"
	"github.com/mytheresa/storefront-engine/models"
)

func get(h *StockHandler, productID, query string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/stock/"+productID+"/movements"+query, nil)
	req.SetPathValue("productID", productID)
	rec := httptest.NewRecorder()
	h.HandleMovements(rec, req)
	return rec
}

func TestHandleMovements(t *testing.T) {
	ctx := context.Background()
	db := testdb.Open(t)
	l := ledger.New(db)

	boot := testdb.Product(t, db, "BOOT", 10)
	black := testdb.Variation(t, db, boot, "Black", "42", 4)
	orderID := uuid.New()

	_, err := l.Reserve(ctx, ledger.RefFor(boot.ID, nil), orderID, 3, time.Hour)
	require.NoError(t, err)
	_, err = l.Release(ctx, ledger.RefFor(boot.ID, nil), orderID, 1)
	require.NoError(t, err)
	_, err = l.Reserve(ctx, ledger.RefFor(boot.ID, &black.ID), orderID, 2, time.Hour)
	require.NoError(t, err)

	testCases := []struct {
		name               string
		productID          string
		query              string
		expectedStatusCode int
		checkResponse      func(t *testing.T, rec *httptest.ResponseRecorder)
	}{
		{
			name:               "Product movements",
			productID:          boot.ID.String(),
			expectedStatusCode: http.StatusOK,
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var resp Response
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
				assert.Equal(t, "Product BOOT", resp.Name)
				assert.Equal(t, 10, resp.OnHand)
				assert.Equal(t, 2, resp.Reserved)
				assert.Equal(t, 8, resp.Available)
				require.Len(t, resp.Movements, 2, "Variation movements are kept apart")

				types := []models.MovementType{resp.Movements[0].Type, resp.Movements[1].Type}
				assert.ElementsMatch(t, []models.MovementType{models.MovementReservation, models.MovementRelease}, types)
				for _, m := range resp.Movements {
					require.NotNil(t, m.OrderID)
					assert.Equal(t, orderID.String(), *m.OrderID)
				}
			},
		},
		{
			name:               "Variation movements",
			productID:          boot.ID.String(),
			query:              "?variation_id=" + black.ID.String(),
			expectedStatusCode: http.StatusOK,
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var resp Response
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
				assert.Equal(t, 2, resp.Available)
				require.Len(t, resp.Movements, 1)
				assert.Equal(t, 2, resp.Movements[0].Quantity)
				assert.NotNil(t, resp.Movements[0].ExpiresAt)
			},
		},
		{
			name:               "Limit",
			productID:          boot.ID.String(),
			query:              "?limit=1",
			expectedStatusCode: http.StatusOK,
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var resp Response
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
				assert.Len(t, resp.Movements, 1)
			},
		},
		{
			name:               "Invalid product id",
			productID:          "boot",
			expectedStatusCode: http.StatusBadRequest,
		},
		{
			name:               "Invalid variation id",
			productID:          boot.ID.String(),
			query:              "?variation_id=black",
			expectedStatusCode: http.StatusBadRequest,
		},
		{
			name:               "Unknown product",
			productID:          uuid.NewString(),
			expectedStatusCode: http.StatusNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			handler := NewStockHandler(l)

			// Act
			rec := get(handler, tc.productID, tc.query)

			// Assert
			assert.Equal(t, tc.expectedStatusCode, rec.Code)
			if tc.checkResponse != nil {
				tc.checkResponse(t, rec)
			}
		})
	}
}
