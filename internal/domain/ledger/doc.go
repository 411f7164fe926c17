// Package ledger models the per-tenancy collection of bill items.
//
// Amount due and payment status are pure functions of the expected and paid
// amounts and are computed at read time; they are never stored. A ledger is a
// snapshot of backend state, rebuilt by refetching after every mutation.
package ledger
