package payment

import (
	"errors"
	"testing"
	"time"

	"github.com/pms/billing/internal/domain/ledger"
	"github.com/pms/billing/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func rentAndWater() []ledger.BillItem {
	return []ledger.BillItem{
		{ID: "1", BillType: "Rent", AmountExpected: dec("10000"), AmountPaid: dec("0")},
		{ID: "2", BillType: "Water", AmountExpected: dec("500"), AmountPaid: dec("200")},
	}
}

func selectionOf(items ...ledger.BillItem) *Selection {
	s := NewSelection()
	s.SelectAll(items)
	return s
}

func TestIsKenyanMobile(t *testing.T) {
	tests := []struct {
		phone string
		want  bool
	}{
		{"0712345678", true},
		{"0112345678", true},
		{"254712345678", true},
		{"+254112345678", true},
		{" 0712345678 ", true},
		{"0812345678", false},
		{"071234567", false},
		{"07123456789", false},
		{"+255712345678", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.phone, func(t *testing.T) {
			assert.Equal(t, tt.want, IsKenyanMobile(tt.phone))
		})
	}
}

func TestRails(t *testing.T) {
	for _, m := range AllMethods() {
		rail, ok := RailFor(m)
		require.True(t, ok, m)
		assert.Equal(t, m, rail.Method)
	}

	assert.Equal(t, RouteExpress, Rails[MethodMpesaExpress].Route)
	assert.True(t, Rails[MethodMpesaExpress].RequiresPhone)
	assert.Equal(t, RouteStandard, Rails[MethodCash].Route)
	assert.Equal(t, ReferenceForcedNull, Rails[MethodCash].Reference)
	assert.Equal(t, ReferenceOptional, Rails[MethodBank].Reference)

	m, err := ParseMethod(" MPESA_EXPRESS ")
	require.NoError(t, err)
	assert.Equal(t, MethodMpesaExpress, m)

	_, err = ParseMethod("cheque")
	assert.True(t, shared.IsValidation(err))
}

func TestNewSubmission_CashScenario(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	sub, err := NewSubmission("12", "7", selectionOf(rentAndWater()...), MethodCash, Fields{
		Amount:    "10300",
		Reference: "RCPT-1",
		Phone:     "0712345678",
	}, now)
	require.NoError(t, err)

	assert.Nil(t, sub.Reference)
	assert.Nil(t, sub.Phone)
	assert.Nil(t, sub.Notes)
	assert.Equal(t, []string{"rent", "water"}, sub.Descriptions)
	assert.True(t, sub.Amount.Equal(dec("10300")))
	assert.Equal(t, now, sub.Datetime)
	assert.Equal(t, RouteStandard, sub.Rail().Route)
}

func TestNewSubmission_ReferencePolicy(t *testing.T) {
	now := time.Now()
	sel := selectionOf(rentAndWater()...)

	bank, err := NewSubmission("12", "7", sel, MethodBank, Fields{Amount: "100", Reference: " TX-9 "}, now)
	require.NoError(t, err)
	require.NotNil(t, bank.Reference)
	assert.Equal(t, "TX-9", *bank.Reference)

	mpesa, err := NewSubmission("12", "7", sel, MethodMpesa, Fields{Amount: "100"}, now)
	require.NoError(t, err)
	assert.Nil(t, mpesa.Reference, "blank optional reference is null")

	express, err := NewSubmission("12", "7", sel, MethodMpesaExpress, Fields{Amount: "100", Reference: "X", Phone: "+254712345678"}, now)
	require.NoError(t, err)
	assert.Nil(t, express.Reference)
	require.NotNil(t, express.Phone)
	assert.Equal(t, "+254712345678", *express.Phone)
}

func TestNewSubmission_Rejections(t *testing.T) {
	now := time.Now()
	sel := selectionOf(rentAndWater()...)

	tests := []struct {
		name   string
		sel    *Selection
		method Method
		fields Fields
		field  string
		code   string
	}{
		{"empty selection", NewSelection(), MethodCash, Fields{Amount: "100"}, "selection", CodeSelectionEmpty},
		{"no method", sel, "", Fields{Amount: "100"}, "payment_method", CodeMethodInvalid},
		{"missing amount", sel, MethodCash, Fields{}, "amount", CodeAmountRequired},
		{"non numeric amount", sel, MethodBank, Fields{Amount: "ten"}, "amount", CodeAmountNotNumeric},
		{"zero amount", sel, MethodBank, Fields{Amount: "0"}, "amount", CodeAmountNotPositive},
		{"express without phone", sel, MethodMpesaExpress, Fields{Amount: "5"}, "phone", CodePhoneRequired},
		{"express with bad phone", sel, MethodMpesaExpress, Fields{Amount: "5", Phone: "0812345678"}, "phone", CodePhoneInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSubmission("12", "7", tt.sel, tt.method, tt.fields, now)
			require.Error(t, err)
			fields := shared.FieldErrors(err)
			require.Len(t, fields, 1)
			assert.Equal(t, tt.field, fields[0].Field)
			assert.Equal(t, tt.code, fields[0].Code)
		})
	}
}

func TestValidateFields(t *testing.T) {
	assert.NoError(t, ValidateFields("12", "7", MethodMpesaExpress, Fields{Amount: "5", Phone: "0712345678"}))

	err := ValidateFields("12", "7", MethodMpesaExpress, Fields{Amount: "5", Phone: "0812345678"})
	require.Error(t, err)
	fields := shared.FieldErrors(err)
	require.Len(t, fields, 1)
	assert.Equal(t, CodePhoneInvalid, fields[0].Code)

	err = ValidateFields("", "7", MethodCash, Fields{})
	assert.Len(t, shared.FieldErrors(err), 2)
}

func TestNewSubmission_AmountMayDifferFromTotal(t *testing.T) {
	sel := selectionOf(rentAndWater()...)
	assert.True(t, sel.Total().Equal(dec("10300")))

	sub, err := NewSubmission("12", "7", sel, MethodCash, Fields{Amount: "50"}, time.Now())
	require.NoError(t, err)
	assert.True(t, sub.Amount.Equal(dec("50")))
}

func TestSelection(t *testing.T) {
	items := rentAndWater()
	sel := NewSelection()

	assert.True(t, sel.Toggle(items[1]))
	assert.True(t, sel.Toggle(items[0]))
	assert.Equal(t, []string{"2", "1"}, sel.IDs())
	assert.Equal(t, []string{"water", "rent"}, sel.Descriptions())

	assert.False(t, sel.Toggle(items[1]))
	assert.True(t, sel.Toggle(items[1]))
	assert.Equal(t, 2, sel.Len(), "double toggle restores the selection")

	sel.SelectAll(items)
	assert.Equal(t, 2, sel.Len())

	sel.Clear()
	assert.True(t, sel.IsEmpty())
	assert.True(t, sel.Total().IsZero())
}

func TestSelection_Refresh(t *testing.T) {
	items := rentAndWater()
	sel := selectionOf(items...)

	fresh := ledger.NewLedger("7", "12", []ledger.BillItem{
		{ID: "2", BillType: "water", AmountExpected: dec("500"), AmountPaid: dec("500")},
	}, nil)
	sel.Refresh(fresh)

	assert.Equal(t, []string{"2"}, sel.IDs())
	assert.True(t, sel.Total().IsZero())
}

func TestForm_HappyPath(t *testing.T) {
	f := NewForm("12", "7")
	f.Selection().SelectAll(rentAndWater())

	require.NoError(t, f.SelectMethod(MethodCash))
	assert.Equal(t, FormStateMethodSelected, f.State())

	require.NoError(t, f.Fill(Fields{Amount: "10300"}, time.Now()))
	assert.Equal(t, FormStateFieldsValid, f.State())

	sub, err := f.Begin()
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, FormStateSubmitting, f.State())

	require.NoError(t, f.Resolve(nil))
	assert.Equal(t, FormStateAccepted, f.State())
	assert.True(t, f.Selection().IsEmpty(), "selection cleared on acceptance")

	f.Reset()
	assert.Equal(t, FormStateIdle, f.State())
	assert.Empty(t, f.Method())
}

func TestForm_RejectedPreservesSelection(t *testing.T) {
	f := NewForm("12", "7")
	f.Selection().SelectAll(rentAndWater())
	require.NoError(t, f.SelectMethod(MethodBank))
	require.NoError(t, f.Fill(Fields{Amount: "100"}, time.Now()))
	_, err := f.Begin()
	require.NoError(t, err)

	backendErr := errors.New("backend said no")
	require.NoError(t, f.Resolve(backendErr))
	assert.Equal(t, FormStateRejected, f.State())
	assert.Equal(t, 2, f.Selection().Len())
	assert.ErrorIs(t, f.Err(), backendErr)

	require.NoError(t, f.Fill(Fields{Amount: "100"}, time.Now()))
	_, err = f.Begin()
	assert.NoError(t, err, "a rejected form can be resubmitted")
}

func TestForm_InvalidFieldsBlockSubmit(t *testing.T) {
	f := NewForm("12", "7")
	require.NoError(t, f.SelectMethod(MethodCash))

	err := f.Fill(Fields{Amount: "100"}, time.Now())
	require.Error(t, err)
	assert.Equal(t, FormStateFieldsInvalid, f.State())
	assert.Equal(t, CodeSelectionEmpty, shared.FieldErrors(err)[0].Code)

	_, err = f.Begin()
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestForm_InvalidTransitions(t *testing.T) {
	f := NewForm("12", "7")

	_, err := f.Begin()
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorIs(t, f.Fill(Fields{}, time.Now()), ErrInvalidTransition)
	assert.ErrorIs(t, f.Resolve(nil), ErrInvalidTransition)
	assert.True(t, shared.IsValidation(f.SelectMethod("cheque")))

	assert.False(t, FormStateAccepted.CanTransitionTo(FormStateMethodSelected))
	assert.False(t, FormStateMethodSelected.CanTransitionTo(FormStateSubmitting))
	assert.True(t, FormStateRejected.CanTransitionTo(FormStateFieldsValid))
}
