package payment

import (
	"fmt"
	"time"

	"github.com/pms/billing/internal/domain/shared"
)

// FormState is the state of a payment form
type FormState string

const (
	FormStateIdle           FormState = "IDLE"
	FormStateMethodSelected FormState = "METHOD_SELECTED"
	FormStateFieldsValid    FormState = "FIELDS_VALID"
	FormStateFieldsInvalid  FormState = "FIELDS_INVALID"
	FormStateSubmitting     FormState = "SUBMITTING"
	FormStateAccepted       FormState = "ACCEPTED"
	FormStateRejected       FormState = "REJECTED"
)

// ErrInvalidTransition is returned when a form operation is not allowed in its current state
var ErrInvalidTransition = shared.NewDomainError("INVALID_TRANSITION", "Operation not allowed in the current form state")

// IsValid checks if the state is a valid FormState
func (s FormState) IsValid() bool {
	switch s {
	case FormStateIdle, FormStateMethodSelected, FormStateFieldsValid, FormStateFieldsInvalid,
		FormStateSubmitting, FormStateAccepted, FormStateRejected:
		return true
	}
	return false
}

// String returns the string representation of FormState
func (s FormState) String() string {
	return string(s)
}

// CanTransitionTo checks if the state can move to target
func (s FormState) CanTransitionTo(target FormState) bool {
	switch s {
	case FormStateIdle:
		return target == FormStateMethodSelected
	case FormStateMethodSelected, FormStateFieldsValid, FormStateFieldsInvalid, FormStateRejected:
		switch target {
		case FormStateMethodSelected, FormStateFieldsValid, FormStateFieldsInvalid:
			return true
		case FormStateSubmitting:
			return s == FormStateFieldsValid
		}
		return false
	case FormStateSubmitting:
		return target == FormStateAccepted || target == FormStateRejected
	case FormStateAccepted:
		return false // reset only
	}
	return false
}

// Form drives one payment from method choice to the backend verdict.
// A rejected form keeps its selection and fields so the operator can correct and resubmit.
type Form struct {
	UnitID   string
	TenantID string

	state      FormState
	method     Method
	fields     Fields
	selection  *Selection
	submission *Submission
	lastErr    error
}

// NewForm creates an idle form for a tenancy
func NewForm(unitID, tenantID string) *Form {
	return &Form{
		UnitID:    unitID,
		TenantID:  tenantID,
		state:     FormStateIdle,
		selection: NewSelection(),
	}
}

// State returns the current state
func (f *Form) State() FormState {
	return f.state
}

// Method returns the selected method
func (f *Form) Method() Method {
	return f.method
}

// Selection returns the bill item selection of the form
func (f *Form) Selection() *Selection {
	return f.selection
}

// Submission returns the last validated submission, if any
func (f *Form) Submission() *Submission {
	return f.submission
}

// Err returns the error that moved the form to FieldsInvalid or Rejected
func (f *Form) Err() error {
	return f.lastErr
}

func (f *Form) moveTo(target FormState) error {
	if !f.state.CanTransitionTo(target) {
		return shared.NewDomainError(ErrInvalidTransition.Code,
			fmt.Sprintf("Cannot transition from %s to %s", f.state, target))
	}
	f.state = target
	return nil
}

// SelectMethod picks the payment rail. Entered fields are kept.
func (f *Form) SelectMethod(m Method) error {
	if !m.IsValid() {
		return shared.NewValidationError("payment_method", CodeMethodInvalid, "Select a payment method")
	}
	if err := f.moveTo(FormStateMethodSelected); err != nil {
		return err
	}
	f.method = m
	f.submission = nil
	f.lastErr = nil
	return nil
}

// Fill validates fields against the selected method and the current selection.
// The form ends in FieldsValid or FieldsInvalid; the validation error is returned.
func (f *Form) Fill(fields Fields, now time.Time) error {
	if f.state == FormStateIdle || f.state == FormStateSubmitting || f.state == FormStateAccepted {
		return shared.NewDomainError(ErrInvalidTransition.Code,
			fmt.Sprintf("Cannot fill fields in state %s", f.state))
	}
	f.fields = fields
	sub, err := NewSubmission(f.UnitID, f.TenantID, f.selection, f.method, fields, now)
	if err != nil {
		f.submission = nil
		f.lastErr = err
		f.state = FormStateFieldsInvalid
		return err
	}
	f.submission = sub
	f.lastErr = nil
	f.state = FormStateFieldsValid
	return nil
}

// Begin moves a valid form to Submitting and returns the submission to send
func (f *Form) Begin() (*Submission, error) {
	if err := f.moveTo(FormStateSubmitting); err != nil {
		return nil, err
	}
	return f.submission, nil
}

// Resolve records the backend verdict for an in-flight submission.
// Success clears the selection and fields; failure preserves both.
func (f *Form) Resolve(err error) error {
	if err != nil {
		if tErr := f.moveTo(FormStateRejected); tErr != nil {
			return tErr
		}
		f.lastErr = err
		return nil
	}
	if tErr := f.moveTo(FormStateAccepted); tErr != nil {
		return tErr
	}
	f.selection.Clear()
	f.fields = Fields{}
	f.lastErr = nil
	return nil
}

// Reset returns the form to Idle. The selection is left as it is.
func (f *Form) Reset() {
	f.state = FormStateIdle
	f.method = ""
	f.fields = Fields{}
	f.submission = nil
	f.lastErr = nil
}
