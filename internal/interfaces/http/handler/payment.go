package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	paymentapp "github.com/pms/billing/internal/application/payment"
	"github.com/pms/billing/internal/domain/payment"
	"github.com/pms/billing/internal/interfaces/http/dto"
)

// PaymentHandler handles payment allocation API endpoints
type PaymentHandler struct {
	BaseHandler
	allocationService *paymentapp.AllocationService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(allocationService *paymentapp.AllocationService) *PaymentHandler {
	return &PaymentHandler{
		allocationService: allocationService,
	}
}

// QuoteRequest represents a selection of bill items to total
type QuoteRequest struct {
	TenantID    string   `json:"tenant_id" binding:"required,max=64"`
	UnitID      string   `json:"unit_id" binding:"required,max=64"`
	BillItemIDs []string `json:"bill_item_ids" binding:"required,min=1,dive,required"`
}

// AllocatePaymentRequest represents one payment against selected bill items.
// Method-specific fields are validated by the payment rail, not here.
type AllocatePaymentRequest struct {
	TenantID      string     `json:"tenant_id" binding:"required,max=64"`
	UnitID        string     `json:"unit_id" binding:"required,max=64"`
	BillItemIDs   []string   `json:"bill_item_ids"`
	PaymentMethod string     `json:"payment_method"`
	Amount        string     `json:"amount"`
	Reference     string     `json:"reference"`
	Phone         string     `json:"phone"`
	Datetime      *time.Time `json:"datetime"`
	Notes         string     `json:"notes"`
}

// PaymentResponse is an accepted payment with the refetched ledger
type PaymentResponse struct {
	payment.Result
	Ledger *LedgerResponse `json:"ledger,omitempty"`
}

// MethodResponse describes one payment rail
type MethodResponse struct {
	Method        payment.Method `json:"method"`
	Label         string         `json:"label"`
	Route         payment.Route  `json:"route"`
	RequiresPhone bool           `json:"requires_phone"`
	Reference     bool           `json:"accepts_reference"`
}

// Methods lists every payment method with the fields it requires
func (h *PaymentHandler) Methods(c *gin.Context) {
	methods := payment.AllMethods()
	out := make([]MethodResponse, 0, len(methods))
	for _, m := range methods {
		rail, _ := payment.RailFor(m)
		out = append(out, MethodResponse{
			Method:        m,
			Label:         rail.Label,
			Route:         rail.Route,
			RequiresPhone: rail.RequiresPhone,
			Reference:     rail.Reference == payment.ReferenceOptional,
		})
	}
	h.Success(c, out)
}

// Quote totals the selected bill items without submitting anything
func (h *PaymentHandler) Quote(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	quote, err := h.allocationService.Quote(c.Request.Context(), req.TenantID, req.UnitID, req.BillItemIDs)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, quote)
}

// Allocate submits one payment. Express payments answer 202 since completion
// is asynchronous.
func (h *PaymentHandler) Allocate(c *gin.Context) {
	var req AllocatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	allocation, err := h.allocationService.Allocate(c.Request.Context(), paymentapp.AllocateRequest{
		TenantID:    req.TenantID,
		UnitID:      req.UnitID,
		BillItemIDs: req.BillItemIDs,
		Method:      payment.Method(strings.ToLower(strings.TrimSpace(req.PaymentMethod))),
		Fields: payment.Fields{
			Amount:    req.Amount,
			Reference: req.Reference,
			Phone:     req.Phone,
			Datetime:  req.Datetime,
			Notes:     req.Notes,
		},
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := PaymentResponse{
		Result: allocation.Result,
		Ledger: newLedgerResponse(allocation.Ledger, false),
	}
	if allocation.Receipt.Route == payment.RouteExpress {
		c.JSON(http.StatusAccepted, dto.NewSuccessResponse(resp))
		return
	}
	h.Created(c, resp)
}
