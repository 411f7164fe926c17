package payment

import (
	"strings"
	"time"

	"github.com/pms/billing/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Validation codes raised by payment submissions
const (
	CodeSelectionEmpty    = "SELECTION_EMPTY"
	CodeMethodInvalid     = "METHOD_INVALID"
	CodeAmountRequired    = "AMOUNT_REQUIRED"
	CodeAmountNotNumeric  = "AMOUNT_NOT_NUMERIC"
	CodeAmountNotPositive = "AMOUNT_NOT_POSITIVE"
	CodePhoneRequired     = "PHONE_REQUIRED"
	CodePhoneInvalid      = "PHONE_INVALID"
	CodeTenancyRequired   = "TENANCY_REQUIRED"
)

// Fields are the method-specific inputs as typed by the operator
type Fields struct {
	Amount    string
	Reference string
	Phone     string
	Datetime  *time.Time
	Notes     string
}

// Submission is a validated, normalized payment ready for the backend.
// Reference is nil for methods whose rail forces it to null; Phone is set only
// for methods that need it.
type Submission struct {
	UnitID       string          `json:"unit_id"`
	TenantID     string          `json:"tenant_id"`
	Descriptions []string        `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
	Method       Method          `json:"payment_method"`
	Reference    *string         `json:"reference"`
	Phone        *string         `json:"phone"`
	Datetime     time.Time       `json:"datetime"`
	Notes        *string         `json:"notes"`
}

// Rail returns the rail the submission is routed through
func (s *Submission) Rail() Rail {
	return Rails[s.Method]
}

// NewSubmission validates fields against the rail of method and normalizes them.
// now is used when no datetime was entered.
func NewSubmission(unitID, tenantID string, sel *Selection, method Method, f Fields, now time.Time) (*Submission, error) {
	checked, errs := checkFields(unitID, tenantID, method, f)
	if sel == nil || sel.IsEmpty() {
		errs = append(shared.ValidationErrors{
			shared.NewValidationError("selection", CodeSelectionEmpty, "Select at least one bill item"),
		}, errs...)
	}
	if err := errs.OrNil(); err != nil {
		return nil, err
	}

	var reference *string
	if checked.rail.Reference == ReferenceOptional {
		reference = optional(f.Reference)
	}

	at := now
	if f.Datetime != nil && !f.Datetime.IsZero() {
		at = *f.Datetime
	}

	return &Submission{
		UnitID:       strings.TrimSpace(unitID),
		TenantID:     strings.TrimSpace(tenantID),
		Descriptions: sel.Descriptions(),
		Amount:       checked.amount,
		Method:       method,
		Reference:    reference,
		Phone:        checked.phone,
		Datetime:     at,
		Notes:        optional(f.Notes),
	}, nil
}

// ValidateFields runs every check of NewSubmission that does not need the selection,
// so a submission can be rejected before the ledger is read.
func ValidateFields(unitID, tenantID string, method Method, f Fields) error {
	_, errs := checkFields(unitID, tenantID, method, f)
	return errs.OrNil()
}

type checkedFields struct {
	rail   Rail
	amount decimal.Decimal
	phone  *string
}

func checkFields(unitID, tenantID string, method Method, f Fields) (checkedFields, shared.ValidationErrors) {
	var (
		out  checkedFields
		errs shared.ValidationErrors
	)

	if strings.TrimSpace(unitID) == "" || strings.TrimSpace(tenantID) == "" {
		errs = append(errs, shared.NewValidationError("tenancy", CodeTenancyRequired, "Unit and tenant are required"))
	}

	rail, ok := RailFor(method)
	if !ok {
		errs = append(errs, shared.NewValidationError("payment_method", CodeMethodInvalid, "Select a payment method"))
	}
	out.rail = rail

	amount, amountErr := parseAmount(f.Amount)
	if amountErr != nil {
		errs = append(errs, amountErr)
	}
	out.amount = amount

	if ok && rail.RequiresPhone {
		p := strings.TrimSpace(f.Phone)
		switch {
		case p == "":
			errs = append(errs, shared.NewValidationError("phone", CodePhoneRequired, "Phone number is required for M-Pesa Express"))
		case !IsKenyanMobile(p):
			errs = append(errs, shared.NewValidationError("phone", CodePhoneInvalid, "Enter a valid Kenyan mobile number"))
		default:
			out.phone = &p
		}
	}
	return out, errs
}

func parseAmount(raw string) (decimal.Decimal, *shared.ValidationError) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, shared.NewValidationError("amount", CodeAmountRequired, "Amount is required")
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, shared.NewValidationError("amount", CodeAmountNotNumeric, "Amount must be a number")
	}
	if !amount.IsPositive() {
		return decimal.Zero, shared.NewValidationError("amount", CodeAmountNotPositive, "Amount must be greater than 0")
	}
	return amount, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
