package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	ledgerapp "github.com/pms/billing/internal/application/ledger"
	"github.com/pms/billing/internal/domain/ledger"
	"github.com/pms/billing/internal/domain/shared"
)

// LedgerHandler handles bill item API endpoints
type LedgerHandler struct {
	BaseHandler
	ledgerService *ledgerapp.LedgerService
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(ledgerService *ledgerapp.LedgerService) *LedgerHandler {
	return &LedgerHandler{
		ledgerService: ledgerService,
	}
}

// TenancyQuery identifies a ledger in the query string
type TenancyQuery struct {
	TenantID   string `form:"tenant_id" binding:"required,max=64"`
	UnitID     string `form:"unit_id" binding:"required,max=64"`
	Applicable bool   `form:"applicable"`
}

func (q TenancyQuery) tenancy() ledgerapp.Tenancy {
	return ledgerapp.Tenancy{TenantID: q.TenantID, UnitID: q.UnitID}
}

// AddBillItemRequest represents a request to add a charge to a tenancy
type AddBillItemRequest struct {
	TenantID string `json:"tenant_id" binding:"required,max=64"`
	UnitID   string `json:"unit_id" binding:"required,max=64"`
	BillType string `json:"bill_type" binding:"required,max=100"`
	Amount   string `json:"amount"`
}

// PatchBillItemRequest represents an override of the expected amount
type PatchBillItemRequest struct {
	TenantID       string `json:"tenant_id" binding:"required,max=64"`
	UnitID         string `json:"unit_id" binding:"required,max=64"`
	AmountExpected string `json:"amount_expected"`
}

// parseAmount parses an operator-entered amount into a field-scoped error
func parseAmount(field, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, shared.NewValidationError(field, ledger.CodeAmountInvalid, "Amount must be a number")
	}
	return d, nil
}

// List serves GET /ledger: the active bill items of a tenancy with derived
// status, totals and the selectable bill types. applicable=true narrows items
// and totals to the applicable ones.
func (h *LedgerHandler) List(c *gin.Context) {
	var q TenancyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}

	l, err := h.ledgerService.List(c.Request.Context(), q.tenancy())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, newLedgerResponse(l, q.Applicable))
}

// Add creates a charge and answers 201 with the refetched ledger
func (h *LedgerHandler) Add(c *gin.Context) {
	var req AddBillItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	l, err := h.ledgerService.Add(c.Request.Context(), ledgerapp.AddBillItemRequest{
		Tenancy:  ledgerapp.Tenancy{TenantID: req.TenantID, UnitID: req.UnitID},
		BillType: req.BillType,
		Amount:   amount,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, newMutationResponse(req.TenantID, req.UnitID, l))
}

// Patch overrides the expected amount of a bill item. The paid amount is never
// sent; the status comes from the refetched ledger.
func (h *LedgerHandler) Patch(c *gin.Context) {
	var req PatchBillItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	amount, err := parseAmount("amount_expected", req.AmountExpected)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	l, err := h.ledgerService.Patch(c.Request.Context(), ledgerapp.PatchBillItemRequest{
		Tenancy:        ledgerapp.Tenancy{TenantID: req.TenantID, UnitID: req.UnitID},
		BillItemID:     c.Param("id"),
		AmountExpected: amount,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, newMutationResponse(req.TenantID, req.UnitID, l))
}

// Delete removes a bill item permanently
func (h *LedgerHandler) Delete(c *gin.Context) {
	var q TenancyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}

	l, err := h.ledgerService.Delete(c.Request.Context(), ledgerapp.DeleteBillItemRequest{
		Tenancy:    q.tenancy(),
		BillItemID: c.Param("id"),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, newMutationResponse(q.TenantID, q.UnitID, l))
}
