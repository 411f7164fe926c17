// Package payment allocates an operator payment against a selection of ledger
// bill items. A submission is validated per payment method before it is handed
// to the billing backend through the Gateway port; the backend owns the actual
// allocation of the amount across the selected items.
package payment
