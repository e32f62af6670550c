package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// HTTPVerifier reads payment states from the gateway's REST endpoint
// GET {BaseURL}/payments/{id}?order_id=... answering {"status": "...", "amount": ...}.
// The amount is optional.
type HTTPVerifier struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPVerifier(baseURL string) *HTTPVerifier {
	return &HTTPVerifier{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type verifyResponse struct {
	Status string           `json:"status"`
	Amount *decimal.Decimal `json:"amount"`
}

func (v *HTTPVerifier) Verify(ctx context.Context, paymentID, orderID string) (Verification, error) {
	endpoint := fmt.Sprintf("%s/payments/%s?order_id=%s", v.BaseURL, url.PathEscape(paymentID), url.QueryEscape(orderID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Verification{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := v.Client.Do(req)
	if err != nil {
		return Verification{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Verification{}, fmt.Errorf("gateway answered %s", resp.Status)
	}
	var body verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Verification{}, fmt.Errorf("failed to decode gateway response: %w", err)
	}
	return Verification{Status: body.Status, Paid: body.Amount}, nil
}
