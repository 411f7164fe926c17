package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pms/billing/internal/domain/payment"
)

// Payment endpoints per route
const (
	paymentPath      = "/payment"
	mpesaExpressPath = "/mpesa/init"
)

// idempotencyHeader carries the per-submission key so the backend can drop replays
const idempotencyHeader = "X-Idempotency-Key"

// PaymentGateway implements payment.Gateway over the backend
type PaymentGateway struct {
	c *Client
}

var _ payment.Gateway = (*PaymentGateway)(nil)

// Payments returns the payment adapter
func (c *Client) Payments() *PaymentGateway {
	return &PaymentGateway{c: c}
}

func routePath(route payment.Route) string {
	if route == payment.RouteExpress {
		return mpesaExpressPath
	}
	return paymentPath
}

// Submit posts a submission to the endpoint of its rail. The express route only
// initiates the payment; completion happens out of band.
func (g *PaymentGateway) Submit(ctx context.Context, sub *payment.Submission, idempotencyKey string) (*payment.Receipt, error) {
	rail := sub.Rail()
	r := request{
		operation: "payments." + string(rail.Route),
		method:    http.MethodPost,
		path:      routePath(rail.Route),
		body: paymentRequest{
			UnitID:        sub.UnitID,
			TenantID:      sub.TenantID,
			Description:   sub.Descriptions,
			Amount:        sub.Amount,
			PaymentMethod: sub.Method.String(),
			Reference:     sub.Reference,
			Phone:         sub.Phone,
			Datetime:      sub.Datetime.UTC().Format(time.RFC3339),
			Notes:         sub.Notes,
		},
	}
	if idempotencyKey != "" {
		r.headers = map[string]string{idempotencyHeader: idempotencyKey}
	}

	body, err := g.c.do(ctx, r)
	if err != nil {
		return nil, err
	}

	receipt := &payment.Receipt{Route: rail.Route}
	if len(bytes.TrimSpace(body)) == 0 {
		return receipt, nil
	}
	// The status check in do already decided acceptance; an unreadable body only
	// costs the receipt details.
	var resp paymentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		g.c.logger.Warn("Accepted payment returned an unreadable receipt",
			zap.String("route", string(rail.Route)),
			zap.Error(err),
		)
		return receipt, nil
	}
	receipt.Message = resp.Message
	receipt.TransactionID = string(resp.TransactionID)
	if receipt.TransactionID == "" {
		receipt.TransactionID = string(resp.PaymentID)
	}
	receipt.CheckoutRequestID = resp.CheckoutRequestID
	if receipt.CheckoutRequestID == "" {
		receipt.CheckoutRequestID = resp.CheckoutRequestIDAlt
	}
	return receipt, nil
}
