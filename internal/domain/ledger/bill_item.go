package ledger

import (
	"encoding/json"
	"strings"

	"github.com/pms/billing/internal/domain/shared"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// BillStatus represents the payment status of a bill item
type BillStatus string

const (
	BillStatusUnpaid  BillStatus = "Unpaid"  // Nothing paid yet
	BillStatusPartial BillStatus = "Partial" // 0 < paid < expected
	BillStatusPaid    BillStatus = "Paid"    // due <= 0, overpayment included
)

// IsValid checks if the status is a valid BillStatus
func (s BillStatus) IsValid() bool {
	switch s {
	case BillStatusUnpaid, BillStatusPartial, BillStatusPaid:
		return true
	}
	return false
}

// String returns the string representation of BillStatus
func (s BillStatus) String() string {
	return string(s)
}

// DeriveStatus computes the status of a bill from its expected and paid amounts
func DeriveStatus(expected, paid decimal.Decimal) BillStatus {
	if expected.Sub(paid).LessThanOrEqual(decimal.Zero) {
		return BillStatusPaid
	}
	if paid.IsPositive() && paid.LessThan(expected) {
		return BillStatusPartial
	}
	return BillStatusUnpaid
}

// Well-known bill types. The set is open: the backend may return others.
const (
	BillTypeRent        = "rent"
	BillTypeWater       = "water"
	BillTypeElectricity = "electricity"
	BillTypeGarbage     = "garbage"
	BillTypeDeposit     = "deposit"
	BillTypeFine        = "fine"
	BillTypeAdHoc       = "ad-hoc"
)

// NormalizeBillType trims and lower-cases a bill type
func NormalizeBillType(billType string) string {
	return cases.Lower(language.English).String(strings.TrimSpace(billType))
}

// DisplayLabel renders a bill type or description for people, e.g. "ad-hoc" -> "Ad-Hoc"
func DisplayLabel(s string) string {
	return cases.Title(language.English).String(strings.TrimSpace(s))
}

// BillItem is one charge line against a tenancy
type BillItem struct {
	ID             string          `json:"bill_item_id"`
	UnitID         string          `json:"unit_id"`
	TenantID       string          `json:"tenant_id"`
	BillType       string          `json:"bill_type"`
	Description    string          `json:"description"`
	AmountExpected decimal.Decimal `json:"amount_expected"`
	AmountPaid     decimal.Decimal `json:"amount_paid"`
	Applicable     bool            `json:"applicable"`
}

// AmountDue returns expected − paid. It is negative for an overpaid bill.
func (b BillItem) AmountDue() decimal.Decimal {
	return b.AmountExpected.Sub(b.AmountPaid)
}

// Status derives the payment status from the current amounts
func (b BillItem) Status() BillStatus {
	return DeriveStatus(b.AmountExpected, b.AmountPaid)
}

// IsOverpaid reports whether more was paid than expected
func (b BillItem) IsOverpaid() bool {
	return b.AmountPaid.GreaterThan(b.AmountExpected)
}

// Key returns the lower-cased label used for deduplication and payment descriptions
func (b BillItem) Key() string {
	if strings.TrimSpace(b.Description) != "" {
		return NormalizeBillType(b.Description)
	}
	return NormalizeBillType(b.BillType)
}

// Label returns the display label of the bill item
func (b BillItem) Label() string {
	return DisplayLabel(b.Key())
}

// WithAmountExpected returns a copy with a new expected amount; paid is untouched
func (b BillItem) WithAmountExpected(expected decimal.Decimal) BillItem {
	b.AmountExpected = expected
	return b
}

// MarshalJSON adds the derived fields, computed at serialization time
func (b BillItem) MarshalJSON() ([]byte, error) {
	type plain BillItem
	return json.Marshal(struct {
		plain
		AmountDue decimal.Decimal `json:"amount_due"`
		Status    BillStatus      `json:"status"`
		Label     string          `json:"label"`
	}{
		plain:     plain(b),
		AmountDue: b.AmountDue(),
		Status:    b.Status(),
		Label:     b.Label(),
	})
}

// Validation codes raised by ledger drafts
const (
	CodeBillTypeRequired = "BILL_TYPE_REQUIRED"
	CodeAmountInvalid    = "AMOUNT_INVALID"
	CodeTenancyRequired  = "TENANCY_REQUIRED"
	CodeBillItemRequired = "BILL_ITEM_REQUIRED"
)

// BillItemDraft is a validated request to add a bill item
type BillItemDraft struct {
	UnitID   string
	TenantID string
	BillType string
	Amount   decimal.Decimal
}

// NewBillItemDraft validates an add-bill-item request
func NewBillItemDraft(unitID, tenantID, billType string, amount decimal.Decimal) (*BillItemDraft, error) {
	var errs shared.ValidationErrors
	if strings.TrimSpace(unitID) == "" {
		errs = append(errs, shared.NewValidationError("unit_id", CodeTenancyRequired, "Unit ID is required"))
	}
	if strings.TrimSpace(tenantID) == "" {
		errs = append(errs, shared.NewValidationError("tenant_id", CodeTenancyRequired, "Tenant ID is required"))
	}
	billType = NormalizeBillType(billType)
	if billType == "" {
		errs = append(errs, shared.NewValidationError("bill_type", CodeBillTypeRequired, "Bill type is required"))
	}
	if amount.IsNegative() {
		errs = append(errs, shared.NewValidationError("amount", CodeAmountInvalid, "Amount cannot be negative"))
	}
	if err := errs.OrNil(); err != nil {
		return nil, err
	}
	return &BillItemDraft{
		UnitID:   strings.TrimSpace(unitID),
		TenantID: strings.TrimSpace(tenantID),
		BillType: billType,
		Amount:   amount,
	}, nil
}

// AmountPatch is a validated manual override of a bill item's expected amount.
// It never carries a paid amount or a status.
type AmountPatch struct {
	BillItemID     string
	AmountExpected decimal.Decimal
}

// NewAmountPatch validates a patch request
func NewAmountPatch(billItemID string, amountExpected decimal.Decimal) (*AmountPatch, error) {
	var errs shared.ValidationErrors
	if strings.TrimSpace(billItemID) == "" {
		errs = append(errs, shared.NewValidationError("bill_item_id", CodeBillItemRequired, "Bill item ID is required"))
	}
	if amountExpected.IsNegative() {
		errs = append(errs, shared.NewValidationError("amount_expected", CodeAmountInvalid, "Expected amount cannot be negative"))
	}
	if err := errs.OrNil(); err != nil {
		return nil, err
	}
	return &AmountPatch{
		BillItemID:     strings.TrimSpace(billItemID),
		AmountExpected: amountExpected,
	}, nil
}
