package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

// Receipt is the backend acknowledgement of an accepted submission
type Receipt struct {
	Route Route `json:"route"`
	// TransactionID is set by the standard route
	TransactionID string `json:"transaction_id,omitempty"`
	// CheckoutRequestID is set by the express route; completion is asynchronous
	CheckoutRequestID string `json:"checkout_request_id,omitempty"`
	Message           string `json:"message,omitempty"`
}

// Result is what the allocator returns for an accepted payment
type Result struct {
	Receipt       Receipt         `json:"receipt"`
	Method        Method          `json:"payment_method"`
	Amount        decimal.Decimal `json:"amount"`
	SelectedTotal decimal.Decimal `json:"selected_total"`
	Descriptions  []string        `json:"description"`
	// Mismatch is true when the entered amount differs from the selected total
	Mismatch bool `json:"amount_mismatch"`
}

// Gateway is the backend port payments are submitted through. Implementations
// route by the submission's rail.
type Gateway interface {
	Submit(ctx context.Context, sub *Submission, idempotencyKey string) (*Receipt, error)
}
