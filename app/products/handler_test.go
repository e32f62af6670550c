package products

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mytheresa/storefront-engine/internal/testdb"
	"github.com/mytheresa/storefront-engine/models"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var errResp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&errResp))
	return errResp["error"]
}

// --- Tests: POST /products ---

func TestHandleCreate(t *testing.T) {
	testCases := []struct {
		name               string
		body               string
		expectedStatusCode int
		checkResponse      func(t *testing.T, rec *httptest.ResponseRecorder, repo *models.ProductsRepository)
	}{
		{
			name: "Success with tiers and a grade",
			body: `{"code":"BOOT","name":"Boot","retail_price":"20","stock":10,
				"tiers":[{"tier_order":1,"tier_type":"retail","min_quantity":1,"price":"20"},{"tier_order":2,"tier_type":"gradual_wholesale","min_quantity":10,"price":"16"}],
				"variations":[{"color":"Black","size":"42","stock":4},{"color":"Black","grade_sizes":["40","41"],"grade_pairs":[2,3],"stock":2}]}`,
			expectedStatusCode: http.StatusCreated,
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder, repo *models.ProductsRepository) {
				var resp ProductResponse
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
				assert.Equal(t, "BOOT", resp.Code)
				assert.Equal(t, 2, resp.Variations)
				require.Len(t, resp.Tiers, 2)
				assert.Equal(t, "16", resp.Tiers[1].Price.String())

				stored, err := repo.GetByCode(context.Background(), "BOOT")
				require.NoError(t, err)
				assert.Len(t, stored.ActiveTiers(), 2)
				require.Len(t, stored.Variations, 2)
				grades := 0
				for _, v := range stored.Variations {
					if v.IsGrade {
						grades++
						assert.Equal(t, 5, v.TotalPairs())
					}
				}
				assert.Equal(t, 1, grades)
			},
		},
		{
			name:               "Two retail tiers",
			body:               `{"code":"CAP","name":"Cap","retail_price":"9","tiers":[{"tier_order":1,"tier_type":"retail","min_quantity":1,"price":"9"},{"tier_order":2,"tier_type":"retail","min_quantity":5,"price":"8"}]}`,
			expectedStatusCode: http.StatusBadRequest,
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder, repo *models.ProductsRepository) {
				assert.Contains(t, decodeError(t, rec), "invalid price tiers")
				_, err := repo.GetByCode(context.Background(), "CAP")
				assert.ErrorIs(t, err, models.ErrProductNotFound)
			},
		},
		{
			name:               "Wholesale tiers not increasing",
			body:               `{"code":"CAP","name":"Cap","tiers":[{"tier_order":1,"tier_type":"retail","min_quantity":1,"price":"9"},{"tier_order":2,"tier_type":"gradual_wholesale","min_quantity":10,"price":"8"},{"tier_order":3,"tier_type":"gradual_wholesale","min_quantity":10,"price":"7"}]}`,
			expectedStatusCode: http.StatusBadRequest,
		},
		{
			name:               "Unknown tier type",
			body:               `{"code":"CAP","name":"Cap","tiers":[{"tier_order":1,"tier_type":"vip","min_quantity":1,"price":"9"}]}`,
			expectedStatusCode: http.StatusBadRequest,
		},
		{
			name:               "Missing code",
			body:               `{"name":"Cap"}`,
			expectedStatusCode: http.StatusBadRequest,
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder, _ *models.ProductsRepository) {
				assert.Equal(t, "Missing code or name", decodeError(t, rec))
			},
		},
		{
			name:               "Negative price",
			body:               `{"code":"CAP","name":"Cap","retail_price":"-1"}`,
			expectedStatusCode: http.StatusBadRequest,
		},
		{
			name:               "Grade pairs do not match sizes",
			body:               `{"code":"CAP","name":"Cap","variations":[{"grade_sizes":["40","41"],"grade_pairs":[2]}]}`,
			expectedStatusCode: http.StatusBadRequest,
		},
		{
			name:               "Invalid JSON body",
			body:               `{nope`,
			expectedStatusCode: http.StatusBadRequest,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			repo := models.NewProductsRepository(testdb.Open(t))
			handler := NewProductHandler(repo)
			req := httptest.NewRequest("POST", "/products", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()

			// Act
			handler.HandleCreate(rec, req)

			// Assert
			assert.Equal(t, tc.expectedStatusCode, rec.Code)
			if tc.checkResponse != nil {
				tc.checkResponse(t, rec, repo)
			}
		})
	}
}

// --- Tests: PUT /products/{id}/tiers ---

func TestHandleReplaceTiers(t *testing.T) {
	testCases := []struct {
		name               string
		id                 func(p *models.Product) string
		body               string
		expectedStatusCode int
		expectedTiers      int
	}{
		{
			name:               "Success",
			id:                 func(p *models.Product) string { return p.ID.String() },
			body:               `{"tiers":[{"tier_order":1,"tier_type":"retail","min_quantity":1,"price":"20"},{"tier_order":2,"tier_type":"gradual_wholesale","min_quantity":12,"price":"15"}]}`,
			expectedStatusCode: http.StatusOK,
			expectedTiers:      2,
		},
		{
			name:               "Inactive tiers are kept out of the active set",
			id:                 func(p *models.Product) string { return p.ID.String() },
			body:               `{"tiers":[{"tier_order":1,"tier_type":"retail","min_quantity":1,"price":"20"},{"tier_order":2,"tier_type":"retail","min_quantity":3,"price":"18","is_active":false}]}`,
			expectedStatusCode: http.StatusOK,
			expectedTiers:      1,
		},
		{
			name:               "Empty list removes all tiers",
			id:                 func(p *models.Product) string { return p.ID.String() },
			body:               `{"tiers":[]}`,
			expectedStatusCode: http.StatusOK,
			expectedTiers:      0,
		},
		{
			name:               "Invalid tiers keep the previous set",
			id:                 func(p *models.Product) string { return p.ID.String() },
			body:               `{"tiers":[{"tier_order":1,"tier_type":"gradual_wholesale","min_quantity":2,"price":"10"}]}`,
			expectedStatusCode: http.StatusBadRequest,
			expectedTiers:      1,
		},
		{
			name:               "Unknown product",
			id:                 func(*models.Product) string { return uuid.NewString() },
			body:               `{"tiers":[{"tier_order":1,"tier_type":"retail","min_quantity":1,"price":"20"}]}`,
			expectedStatusCode: http.StatusNotFound,
			expectedTiers:      1,
		},
		{
			name:               "Malformed id",
			id:                 func(*models.Product) string { return "not-a-uuid" },
			body:               `{"tiers":[]}`,
			expectedStatusCode: http.StatusBadRequest,
			expectedTiers:      1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			ctx := context.Background()
			db := testdb.Open(t)
			repo := models.NewProductsRepository(db)
			p := testdb.Product(t, db, "BOOT", 10)
			require.NoError(t, repo.ReplaceTiers(ctx, p.ID, []models.PriceTier{
				{TierOrder: 1, TierType: models.TierTypeRetail, MinQuantity: 1, IsActive: true},
			}))
			handler := NewProductHandler(repo)

			id := tc.id(p)
			req := httptest.NewRequest("PUT", "/products/"+id+"/tiers", strings.NewReader(tc.body))
			req.SetPathValue("id", id)
			rec := httptest.NewRecorder()

			// Act
			handler.HandleReplaceTiers(rec, req)

			// Assert
			assert.Equal(t, tc.expectedStatusCode, rec.Code)
			if rec.Code == http.StatusOK {
				var resp ProductResponse
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
				assert.Len(t, resp.Tiers, tc.expectedTiers)
			}
			stored, err := repo.GetByID(ctx, p.ID)
			require.NoError(t, err)
			assert.Len(t, stored.ActiveTiers(), tc.expectedTiers)
		})
	}
}
