package metering

import (
	"fmt"
	"strings"
	"time"

	"github.com/pms/billing/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Validation codes raised by the meter billing calculator
const (
	CodeReadingRequired    = "READING_REQUIRED"
	CodeReadingNotNumeric  = "READING_NOT_NUMERIC"
	CodeReadingNegative    = "READING_NEGATIVE"
	CodeReadingBelowPrior  = "READING_BELOW_PREVIOUS"
	CodeUnitPriceInvalid   = "UNIT_PRICE_INVALID"
	CodeMissingTenancy     = "TENANCY_REQUIRED"
	CodeUtilityTypeInvalid = "UTILITY_TYPE_INVALID"
)

// MeterReading is a reading accepted and stored by the backend.
// UnitsConsumed and AmountDue are computed by the backend and read back, never derived locally.
type MeterReading struct {
	ID            string           `json:"meter_reading_id"`
	UnitID        string           `json:"unit_id"`
	TenantID      string           `json:"tenant_id"`
	Utility       UtilityType      `json:"utility"`
	Reading       decimal.Decimal  `json:"meter_reading"`
	UnitPrice     *decimal.Decimal `json:"unit_price"`
	UnitsConsumed decimal.Decimal  `json:"meter_units_consumed"`
	AmountDue     decimal.Decimal  `json:"amount_due"`
	DateRecorded  time.Time        `json:"date_recorded"`
}

// ReadingSubmission is a candidate reading for one tenancy and utility.
// It carries no previous-reading state; validation takes the previous reading as input.
type ReadingSubmission struct {
	Utility   UtilityType
	UnitID    string
	TenantID  string
	Reading   decimal.Decimal
	UnitPrice *decimal.Decimal // nil lets the backend apply its configured default
}

// NewReadingSubmission creates a reading submission with validation of its own fields
func NewReadingSubmission(
	utility UtilityType,
	unitID string,
	tenantID string,
	reading decimal.Decimal,
	unitPrice *decimal.Decimal,
) (*ReadingSubmission, error) {
	var errs shared.ValidationErrors
	if !utility.IsValid() {
		errs = append(errs, shared.NewValidationError("utility", CodeUtilityTypeInvalid,
			fmt.Sprintf("Unsupported utility type %q", utility)))
	}
	if strings.TrimSpace(unitID) == "" {
		errs = append(errs, shared.NewValidationError("unit_id", CodeMissingTenancy, "Unit ID is required"))
	}
	if strings.TrimSpace(tenantID) == "" {
		errs = append(errs, shared.NewValidationError("tenant_id", CodeMissingTenancy, "Tenant ID is required"))
	}
	if reading.IsNegative() {
		errs = append(errs, shared.NewValidationError("meter_reading", CodeReadingNegative,
			"Meter reading cannot be negative"))
	}
	if unitPrice != nil && unitPrice.IsNegative() {
		errs = append(errs, shared.NewValidationError("unit_price", CodeUnitPriceInvalid,
			"Unit price cannot be negative"))
	}
	if err := errs.OrNil(); err != nil {
		return nil, err
	}

	return &ReadingSubmission{
		Utility:   utility,
		UnitID:    strings.TrimSpace(unitID),
		TenantID:  strings.TrimSpace(tenantID),
		Reading:   reading,
		UnitPrice: unitPrice,
	}, nil
}

// ValidateAgainst checks the monotonic invariant: current ≥ previous.
// A violation is rejected, never clamped.
func (s *ReadingSubmission) ValidateAgainst(previous decimal.Decimal) error {
	if s.Reading.LessThan(previous) {
		return shared.NewValidationError("meter_reading", CodeReadingBelowPrior,
			fmt.Sprintf("Current meter reading must be ≥ %s", previous.String()))
	}
	return nil
}

// UnitsConsumed returns current − previous for a reading already validated against previous
func (s *ReadingSubmission) UnitsConsumed(previous decimal.Decimal) decimal.Decimal {
	return s.Reading.Sub(previous)
}

// AmountDue returns consumed units × unit price.
// The second result is false when no unit price was supplied: the backend prices
// the reading with its own default and the calculator never invents one.
func (s *ReadingSubmission) AmountDue(previous decimal.Decimal) (decimal.Decimal, bool) {
	if s.UnitPrice == nil {
		return decimal.Zero, false
	}
	return s.UnitsConsumed(previous).Mul(*s.UnitPrice), true
}

// ParseReading parses an operator-entered reading
func ParseReading(field, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, shared.NewValidationError(field, CodeReadingRequired, "Meter reading is required")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, shared.NewValidationError(field, CodeReadingNotNumeric, "Meter reading must be a number")
	}
	return d, nil
}

// ParseUnitPrice parses an optional operator-entered unit price; blank means "use the default"
func ParseUnitPrice(raw string) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, shared.NewValidationError("unit_price", CodeUnitPriceInvalid, "Unit price must be a number")
	}
	return &d, nil
}
