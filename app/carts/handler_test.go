package carts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mytheresa/storefront-engine/cart"
	"github.com/mytheresa/storefront-engine/models"
)

// --- Mock Repositories ---

type MockProductRepo struct {
	Products       []models.Product
	lastCalledCode string
}

func (m *MockProductRepo) GetByCode(_ context.Context, code string) (*models.Product, error) {
	m.lastCalledCode = code
	for _, p := range m.Products {
		if p.Code == code {
			product := p
			return &product, nil
		}
	}
	return nil, models.ErrProductNotFound
}

type MockStoreRepo struct {
	Stores map[uuid.UUID]models.Store
}

func (m *MockStoreRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Store, error) {
	s, ok := m.Stores[id]
	if !ok {
		return nil, models.ErrStoreNotFound
	}
	return &s, nil
}

// --- Helpers ---

func tieredProduct(code string) models.Product {
	id := uuid.New()
	return models.Product{
		ID:          id,
		Code:        code,
		Name:        "Product " + code,
		RetailPrice: decimal.NewFromFloat(20),
		IsActive:    true,
		PriceTiers: []models.PriceTier{
			{TierOrder: 1, TierType: models.TierTypeRetail, MinQuantity: 1, Price: decimal.NewFromFloat(20), IsActive: true},
			{TierOrder: 2, TierType: models.TierTypeGradualWholesale, MinQuantity: 10, Price: decimal.NewFromFloat(15), IsActive: true},
		},
		Variations: []models.ProductVariation{
			{ID: uuid.New(), ProductID: id, Color: "Red", Size: "M", SKU: code + "-RM", IsActive: true, Stock: 50},
		},
	}
}

func postLine(t *testing.T, h *CartHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/cart/lines", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.HandleAddLine(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var errResp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&errResp))
	return errResp["error"]
}

// --- Tests: POST /cart/lines ---

func TestHandleAddLine(t *testing.T) {
	shirt := tieredProduct("SHIRT")
	inactive := tieredProduct("OLD")
	inactive.IsActive = false
	products := []models.Product{shirt, inactive}

	perLine := uuid.New()
	aggregate := uuid.New()
	stores := map[uuid.UUID]models.Store{
		perLine:   {ID: perLine, Code: "retail", TierBasis: models.TierBasisPerLine},
		aggregate: {ID: aggregate, Code: "b2b", TierBasis: models.TierBasisCartAggregate},
	}

	// A line of some other product already holding eight units.
	existing := cart.Line{
		ID:         "other",
		ProductID:  uuid.New(),
		Name:       "Other",
		UnitPrice:  decimal.NewFromFloat(5),
		Quantity:   8,
		LineTotal:  decimal.NewFromFloat(40),
		StockUnits: 8,
	}
	existingJSON, err := json.Marshal([]cart.Line{existing})
	require.NoError(t, err)

	testCases := []struct {
		name               string
		body               string
		expectedStatusCode int
		checkResponse      func(t *testing.T, rec *httptest.ResponseRecorder)
	}{
		{
			name:               "Success with product line",
			body:               `{"product_code":"SHIRT","quantity":3}`,
			expectedStatusCode: http.StatusOK,
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var resp CartResponse
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
				assert.Equal(t, "20", resp.Line.UnitPrice.String())
				assert.Equal(t, "60", resp.Line.LineTotal.String())
				assert.Len(t, resp.Lines, 1)
				assert.Equal(t, 3, resp.Units)
				assert.Equal(t, "60", resp.Total.String())
			},
		},
		{
			name:               "Variation by color and size",
			body:               `{"product_code":"SHIRT","color":"Red","size":"M","quantity":1}`,
			expectedStatusCode: http.StatusOK,
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var resp CartResponse
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
				require.NotNil(t, resp.Line.VariationID)
				assert.Equal(t, shirt.Variations[0].ID, *resp.Line.VariationID)
				assert.Equal(t, "Red / M", resp.Line.VariationLabel)
			},
		},
		{
			name:               "Per line store ignores the rest of the cart",
			body:               `{"store_id":"` + perLine.String() + `","product_code":"SHIRT","quantity":3,"lines":` + string(existingJSON) + `}`,
			expectedStatusCode: http.StatusOK,
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var resp CartResponse
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
				assert.Equal(t, "20", resp.Line.UnitPrice.String())
				assert.Len(t, resp.Lines, 2)
				assert.Equal(t, 11, resp.Units)
				assert.Equal(t, "100", resp.Total.String())
			},
		},
		{
			name:               "Cart aggregate store counts the whole cart",
			body:               `{"store_id":"` + aggregate.String() + `","product_code":"SHIRT","quantity":3,"lines":` + string(existingJSON) + `}`,
			expectedStatusCode: http.StatusOK,
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var resp CartResponse
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
				assert.Equal(t, "15", resp.Line.UnitPrice.String(), "Eleven units reach the second tier")
				assert.Equal(t, "85", resp.Total.String())
			},
		},
		{
			name:               "Invalid JSON body",
			body:               `{invalid`,
			expectedStatusCode: http.StatusBadRequest,
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.Equal(t, "Invalid JSON body", decodeError(t, rec))
			},
		},
		{
			name:               "Missing product code",
			body:               `{"quantity":1}`,
			expectedStatusCode: http.StatusBadRequest,
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.Equal(t, "Missing product_code", decodeError(t, rec))
			},
		},
		{
			name:               "Unknown catalog mode",
			body:               `{"product_code":"SHIRT","mode":"vip"}`,
			expectedStatusCode: http.StatusBadRequest,
		},
		{
			name:               "Unknown grade mode",
			body:               `{"product_code":"SHIRT","grade_mode":"quarter"}`,
			expectedStatusCode: http.StatusBadRequest,
		},
		{
			name:               "Unknown store",
			body:               `{"store_id":"` + uuid.NewString() + `","product_code":"SHIRT"}`,
			expectedStatusCode: http.StatusNotFound,
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.Equal(t, "store not found", decodeError(t, rec))
			},
		},
		{
			name:               "Product not found",
			body:               `{"product_code":"NOPE"}`,
			expectedStatusCode: http.StatusNotFound,
		},
		{
			name:               "Unknown variation id",
			body:               `{"product_code":"SHIRT","variation_id":"` + uuid.NewString() + `"}`,
			expectedStatusCode: http.StatusNotFound,
		},
		{
			name:               "Unknown color and size",
			body:               `{"product_code":"SHIRT","color":"Blue","size":"XL"}`,
			expectedStatusCode: http.StatusNotFound,
		},
		{
			name:               "Inactive product",
			body:               `{"product_code":"OLD"}`,
			expectedStatusCode: http.StatusBadRequest,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			handler := NewCartHandler(&MockProductRepo{Products: products}, &MockStoreRepo{Stores: stores}, nil)

			// Act
			rec := postLine(t, handler, tc.body)

			// Assert
			assert.Equal(t, tc.expectedStatusCode, rec.Code)
			if tc.checkResponse != nil {
				tc.checkResponse(t, rec)
			}
		})
	}
}

func TestHandleAddLine_MergesRepeatedAdds(t *testing.T) {
	// Arrange
	repo := &MockProductRepo{Products: []models.Product{tieredProduct("SHIRT")}}
	handler := NewCartHandler(repo, &MockStoreRepo{}, nil)

	first := postLine(t, handler, `{"product_code":"SHIRT","quantity":4}`)
	require.Equal(t, http.StatusOK, first.Code)
	var firstResp CartResponse
	require.NoError(t, json.NewDecoder(first.Body).Decode(&firstResp))
	lines, err := json.Marshal(firstResp.Lines)
	require.NoError(t, err)

	// Act
	rec := postLine(t, handler, `{"product_code":"SHIRT","quantity":2,"lines":`+string(lines)+`}`)

	// Assert
	require.Equal(t, http.StatusOK, rec.Code)
	var resp CartResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Lines, 1, "Same product and mode merge into one line")
	assert.Equal(t, 6, resp.Lines[0].Quantity)
	assert.Equal(t, "120", resp.Total.String())
	assert.Equal(t, "SHIRT", repo.lastCalledCode)
}

func TestHandleAddLine_RepeatedAddsCrossTier(t *testing.T) {
	// Arrange
	aggregate := uuid.New()
	stores := &MockStoreRepo{Stores: map[uuid.UUID]models.Store{
		aggregate: {ID: aggregate, Code: "b2b", TierBasis: models.TierBasisCartAggregate},
	}}
	handler := NewCartHandler(&MockProductRepo{Products: []models.Product{tieredProduct("SHIRT")}}, stores, nil)
	body := `{"store_id":"` + aggregate.String() + `","product_code":"SHIRT","quantity":6`

	first := postLine(t, handler, body+`}`)
	require.Equal(t, http.StatusOK, first.Code)
	var firstResp CartResponse
	require.NoError(t, json.NewDecoder(first.Body).Decode(&firstResp))
	require.Equal(t, "120", firstResp.Total.String())
	lines, err := json.Marshal(firstResp.Lines)
	require.NoError(t, err)

	// Act
	rec := postLine(t, handler, body+`,"lines":`+string(lines)+`}`)

	// Assert
	require.Equal(t, http.StatusOK, rec.Code)
	var resp CartResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Lines, 1)
	assert.Equal(t, 12, resp.Lines[0].Quantity)
	assert.Equal(t, "15", resp.Lines[0].UnitPrice.String(), "Twelve units reach the second tier")
	assert.Equal(t, "180", resp.Total.String())
	assert.Equal(t, resp.Lines[0], resp.Line)
}
