package payment

import (
	"strings"

	"github.com/pms/billing/internal/domain/shared"
)

// Method is the rail a payment is made through
type Method string

const (
	MethodCash         Method = "cash"
	MethodMpesa        Method = "mpesa"         // M-Pesa paid outside the system, reference captured manually
	MethodMpesaExpress Method = "mpesa_express" // STK push initiated against the tenant's phone
	MethodBank         Method = "bank"
)

// IsValid checks if the method has a rail
func (m Method) IsValid() bool {
	_, ok := Rails[m]
	return ok
}

// String returns the string representation of Method
func (m Method) String() string {
	return string(m)
}

// Route is the backend endpoint family a method is submitted to
type Route string

const (
	// RouteStandard records the payment synchronously
	RouteStandard Route = "standard"
	// RouteExpress initiates an asynchronous mobile-money push
	RouteExpress Route = "express"
)

// ReferencePolicy states what happens to an operator-entered reference
type ReferencePolicy int

const (
	// ReferenceOptional keeps the reference when present
	ReferenceOptional ReferencePolicy = iota
	// ReferenceForcedNull drops the reference whatever the operator typed
	ReferenceForcedNull
)

// Rail describes how one payment method is validated and routed
type Rail struct {
	Method        Method
	Label         string
	Route         Route
	Reference     ReferencePolicy
	RequiresPhone bool
}

// Rails is the method dispatch table. A new method is one entry here.
var Rails = map[Method]Rail{
	MethodCash: {
		Method:    MethodCash,
		Label:     "Cash",
		Route:     RouteStandard,
		Reference: ReferenceForcedNull,
	},
	MethodMpesa: {
		Method:    MethodMpesa,
		Label:     "M-Pesa",
		Route:     RouteStandard,
		Reference: ReferenceOptional,
	},
	MethodMpesaExpress: {
		Method:        MethodMpesaExpress,
		Label:         "M-Pesa Express",
		Route:         RouteExpress,
		Reference:     ReferenceForcedNull,
		RequiresPhone: true,
	},
	MethodBank: {
		Method:    MethodBank,
		Label:     "Bank",
		Route:     RouteStandard,
		Reference: ReferenceOptional,
	},
}

// AllMethods returns every method in display order
func AllMethods() []Method {
	return []Method{MethodCash, MethodMpesa, MethodMpesaExpress, MethodBank}
}

// RailFor returns the rail of a method
func RailFor(m Method) (Rail, bool) {
	r, ok := Rails[m]
	return r, ok
}

// ParseMethod parses a method name case-insensitively
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", shared.NewValidationError("payment_method", CodeMethodInvalid, "Select a payment method")
	}
	return m, nil
}
