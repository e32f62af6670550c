package payments

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProject(t *testing.T) {
	testCases := []struct {
		gateway  string
		expected Status
	}{
		{"approved", StatusPaid},
		{"APPROVED", StatusPaid},
		{" Paid ", StatusPaid},
		{"in_process", StatusPending},
		{"partially_paid", StatusPartial},
		{"overpaid", StatusOverpaid},
		{"rejected", StatusCancelled},
		{"Canceled", StatusCancelled},
		{"something-new", StatusPending},
		{"", StatusPending},
	}

	for _, tc := range testCases {
		t.Run(tc.gateway, func(t *testing.T) {
			assert.Equal(t, tc.expected, Project(tc.gateway))
		})
	}
}

func TestProjectAmounts(t *testing.T) {
	total := decimal.RequireFromString("100.00")
	testCases := []struct {
		name     string
		gateway  string
		paid     string
		expected Status
	}{
		{name: "exact", gateway: "paid", paid: "100", expected: StatusPaid},
		{name: "short", gateway: "paid", paid: "40", expected: StatusPartial},
		{name: "nothing yet", gateway: "partial", paid: "0", expected: StatusPending},
		{name: "too much", gateway: "approved", paid: "120.50", expected: StatusOverpaid},
		{name: "cancelled ignores amounts", gateway: "rejected", paid: "100", expected: StatusCancelled},
		{name: "pending ignores amounts", gateway: "processing", paid: "100", expected: StatusPending},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ProjectAmounts(tc.gateway, decimal.RequireFromString(tc.paid), total))
		})
	}
}

type mockVerifier struct {
	verification    Verification
	err             error
	lastCalledWith  string
	lastCalledOrder string
}

func (m *mockVerifier) Verify(_ context.Context, paymentID, orderID string) (Verification, error) {
	m.lastCalledWith = paymentID
	m.lastCalledOrder = orderID
	return m.verification, m.err
}

func amount(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestProjectorStatus(t *testing.T) {
	total := decimal.RequireFromString("100.00")
	testCases := []struct {
		name         string
		paymentID    string
		verification Verification
		verifyErr    error
		expected     Status
		expectedErr  string
	}{
		{name: "Gateway without amount", paymentID: "pay_1", verification: Verification{Status: "approved"}, expected: StatusPaid},
		{name: "Paid in full", paymentID: "pay_1", verification: Verification{Status: "approved", Paid: amount("100")}, expected: StatusPaid},
		{name: "Approved but short", paymentID: "pay_1", verification: Verification{Status: "approved", Paid: amount("60")}, expected: StatusPartial},
		{name: "Approved above total", paymentID: "pay_1", verification: Verification{Status: "paid", Paid: amount("130")}, expected: StatusOverpaid},
		{name: "Rejected ignores amount", paymentID: "pay_1", verification: Verification{Status: "rejected", Paid: amount("100")}, expected: StatusCancelled},
		{name: "No payment attached", paymentID: "", expectedErr: ErrNoPayment.Error()},
		{name: "Gateway down", paymentID: "pay_1", verifyErr: errors.New("gateway down"), expectedErr: "gateway down"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			v := &mockVerifier{verification: tc.verification, err: tc.verifyErr}
			p := NewProjector(v)

			// Act
			status, err := p.Status(context.Background(), tc.paymentID, "order_1", total)

			// Assert
			if tc.expectedErr != "" {
				assert.ErrorContains(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, status)
			assert.Equal(t, "pay_1", v.lastCalledWith)
			assert.Equal(t, "order_1", v.lastCalledOrder)
		})
	}
}

func TestHTTPVerifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/payments/pay_1":
			assert.Equal(t, "order_1", r.URL.Query().Get("order_id"))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"approved"}`))
		case "/payments/pay_2":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"approved","amount":"59.90"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	v := NewHTTPVerifier(srv.URL + "/")

	got, err := v.Verify(context.Background(), "pay_1", "order_1")
	require.NoError(t, err)
	assert.Equal(t, "approved", got.Status)
	assert.Nil(t, got.Paid)

	got, err = v.Verify(context.Background(), "pay_2", "order_2")
	require.NoError(t, err)
	require.NotNil(t, got.Paid)
	assert.Equal(t, "59.9", got.Paid.String())

	_, err = v.Verify(context.Background(), "missing", "order_1")
	assert.ErrorContains(t, err, "404")
}
