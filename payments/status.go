// Package payments projects payment gateway states onto the order's payment status.
package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPartial   Status = "partial"
	StatusPaid      Status = "paid"
	StatusOverpaid  Status = "overpaid"
	StatusCancelled Status = "cancelled"
)

var ErrNoPayment = errors.New("order has no payment attached")

var gatewayStatuses = map[string]Status{
	"pending":        StatusPending,
	"created":        StatusPending,
	"processing":     StatusPending,
	"in_process":     StatusPending,
	"authorized":     StatusPending,
	"partial":        StatusPartial,
	"partially_paid": StatusPartial,
	"paid":           StatusPaid,
	"approved":       StatusPaid,
	"succeeded":      StatusPaid,
	"completed":      StatusPaid,
	"overpaid":       StatusOverpaid,
	"cancelled":      StatusCancelled,
	"canceled":       StatusCancelled,
	"rejected":       StatusCancelled,
	"refunded":       StatusCancelled,
	"expired":        StatusCancelled,
	"failed":         StatusCancelled,
}

// Project maps a gateway status onto Status. Unknown values are pending.
func Project(gatewayStatus string) Status {
	if s, ok := gatewayStatuses[strings.ToLower(strings.TrimSpace(gatewayStatus))]; ok {
		return s
	}
	return StatusPending
}

// ProjectAmounts refines a settled gateway status by comparing what was paid with the order total.
func ProjectAmounts(gatewayStatus string, paid, total decimal.Decimal) Status {
	s := Project(gatewayStatus)
	if s != StatusPaid && s != StatusPartial && s != StatusOverpaid {
		return s
	}
	switch paid.Cmp(total) {
	case -1:
		if paid.IsPositive() {
			return StatusPartial
		}
		return StatusPending
	case 1:
		return StatusOverpaid
	}
	return StatusPaid
}

// Verification is what the gateway reports for a payment. Paid is nil when the gateway
// does not report an amount.
type Verification struct {
	Status string
	Paid   *decimal.Decimal
}

// Verifier asks the payment gateway for the current state of a payment.
type Verifier interface {
	Verify(ctx context.Context, paymentID, orderID string) (Verification, error)
}

type Projector struct {
	verifier Verifier
}

func NewProjector(v Verifier) *Projector {
	return &Projector{verifier: v}
}

// Status verifies the payment and projects it onto the order. When the gateway reports the
// amount paid, a settled payment is compared with total.
func (p *Projector) Status(ctx context.Context, paymentID, orderID string, total decimal.Decimal) (Status, error) {
	if paymentID == "" {
		return "", ErrNoPayment
	}
	v, err := p.verifier.Verify(ctx, paymentID, orderID)
	if err != nil {
		return "", fmt.Errorf("failed to verify payment %s: %w", paymentID, err)
	}
	if v.Paid == nil {
		return Project(v.Status), nil
	}
	return ProjectAmounts(v.Status, *v.Paid, total), nil
}
