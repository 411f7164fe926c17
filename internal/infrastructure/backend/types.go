package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pms/billing/internal/domain/ledger"
	"github.com/pms/billing/internal/domain/metering"
	"github.com/shopspring/decimal"
)

// flexID decodes an identifier sent either as a JSON number or a string
type flexID string

// UnmarshalJSON implements json.Unmarshaler
func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

// timeLayouts are the date formats the backend is known to emit
var timeLayouts = []string{
	time.RFC3339Nano,
	http.TimeFormat,
	time.RFC1123,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// flexTime decodes the backend's assorted date formats; null and "" decode to zero
type flexTime struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler
func (f *flexTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		f.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	t, err := parseTime(s)
	if err != nil {
		return err
	}
	f.Time = t
	return nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// envelope is the common response wrapper. Listings carry their records under
// Result; recycle-bin listings use a kind-specific key decoded separately.
type envelope struct {
	Success   *bool           `json:"success"`
	Message   string          `json:"message"`
	Error     string          `json:"error"`
	Result    json.RawMessage `json:"result"`
	Data      json.RawMessage `json:"data"`
	BillTypes []string        `json:"bill_types"`
}

// records returns the record array of a listing, accepting a bare array too
func records(body []byte) (json.RawMessage, *envelope, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return json.RawMessage("[]"), &envelope{}, nil
	}
	if body[0] == '[' {
		return body, &envelope{}, nil
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, nil, fmt.Errorf("decode envelope: %w", err)
	}
	switch {
	case len(env.Result) > 0 && string(env.Result) != "null":
		return env.Result, &env, nil
	case len(env.Data) > 0 && string(env.Data) != "null":
		return env.Data, &env, nil
	}
	return json.RawMessage("[]"), &env, nil
}

type billItemWire struct {
	BillItemID     flexID          `json:"bill_item_id"`
	UnitID         flexID          `json:"unit_id"`
	TenantID       flexID          `json:"tenant_id"`
	BillType       string          `json:"bill_type"`
	Description    string          `json:"description"`
	AmountExpected decimal.Decimal `json:"amount_expected"`
	AmountPaid     decimal.Decimal `json:"amount_paid"`
	Applicable     *bool           `json:"applicable"`
}

func (w billItemWire) toDomain() ledger.BillItem {
	applicable := true
	if w.Applicable != nil {
		applicable = *w.Applicable
	}
	return ledger.BillItem{
		ID:             string(w.BillItemID),
		UnitID:         string(w.UnitID),
		TenantID:       string(w.TenantID),
		BillType:       ledger.NormalizeBillType(w.BillType),
		Description:    strings.TrimSpace(w.Description),
		AmountExpected: w.AmountExpected,
		AmountPaid:     w.AmountPaid,
		Applicable:     applicable,
	}
}

type addBillItemRequest struct {
	UnitID   string          `json:"unit_id"`
	TenantID string          `json:"tenant_id"`
	BillType string          `json:"bill_type"`
	Amount   decimal.Decimal `json:"amount"`
}

type patchBillItemRequest struct {
	BillItemID     string          `json:"bill_item_id"`
	AmountExpected decimal.Decimal `json:"amount_expected"`
}

type deleteBillItemRequest struct {
	BillItemID string `json:"bill_item_id"`
}

type meterReadingWire struct {
	MeterReadingID     flexID              `json:"meter_reading_id"`
	UnitID             flexID              `json:"unit_id"`
	TenantID           flexID              `json:"tenant_id"`
	MeterReading       decimal.Decimal     `json:"meter_reading"`
	UnitPrice          decimal.NullDecimal `json:"unit_price"`
	MeterUnitsConsumed decimal.Decimal     `json:"meter_units_consumed"`
	AmountDue          decimal.Decimal     `json:"amount_due"`
	DateRecorded       flexTime            `json:"date_recorded"`
}

func (w meterReadingWire) toDomain(utility metering.UtilityType) metering.MeterReading {
	r := metering.MeterReading{
		ID:            string(w.MeterReadingID),
		UnitID:        string(w.UnitID),
		TenantID:      string(w.TenantID),
		Utility:       utility,
		Reading:       w.MeterReading,
		UnitsConsumed: w.MeterUnitsConsumed,
		AmountDue:     w.AmountDue,
		DateRecorded:  w.DateRecorded.Time,
	}
	if w.UnitPrice.Valid {
		price := w.UnitPrice.Decimal
		r.UnitPrice = &price
	}
	return r
}

// createReadingRequest leaves unit_price null when absent so the backend applies its default
type createReadingRequest struct {
	MeterReading decimal.Decimal  `json:"meter_reading"`
	UnitPrice    *decimal.Decimal `json:"unit_price"`
	TenantID     string           `json:"tenant_id"`
	UnitID       string           `json:"unit_id"`
}

type paymentRequest struct {
	UnitID        string          `json:"unit_id"`
	TenantID      string          `json:"tenant_id"`
	Description   []string        `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	Reference     *string         `json:"reference"`
	Phone         *string         `json:"phone"`
	Datetime      string          `json:"datetime"`
	Notes         *string         `json:"notes"`
}

type paymentResponse struct {
	Message              string `json:"message"`
	TransactionID        flexID `json:"transaction_id"`
	PaymentID            flexID `json:"payment_id"`
	CheckoutRequestID    string `json:"CheckoutRequestID"`
	CheckoutRequestIDAlt string `json:"checkout_request_id"`
}

type trashActionRequest struct {
	ID     string `json:"id"`
	Action string `json:"action"`
}
