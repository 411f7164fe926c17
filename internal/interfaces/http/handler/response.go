package handler

import "github.com/pms/billing/internal/domain/ledger"

// LedgerResponse is the refetched ledger of a tenancy
type LedgerResponse struct {
	TenantID      string                    `json:"tenant_id"`
	UnitID        string                    `json:"unit_id"`
	Items         []ledger.BillItem         `json:"items"`
	Totals        ledger.Totals             `json:"totals"`
	CountByStatus map[ledger.BillStatus]int `json:"count_by_status"`
	BillTypes     []string                  `json:"bill_types"`
	// Warning is set when a write was applied but the ledger could not be refetched
	Warning       string                    `json:"warning,omitempty"`
}

// staleLedgerWarning tells the client to reload instead of retrying the write
const staleLedgerWarning = "Change applied; the ledger could not be refreshed"

// newMutationResponse renders the ledger after a write. A nil ledger means the
// write was applied but the refetch failed.
func newMutationResponse(tenantID, unitID string, l *ledger.Ledger) *LedgerResponse {
	if l == nil {
		return &LedgerResponse{TenantID: tenantID, UnitID: unitID, Warning: staleLedgerWarning}
	}
	return newLedgerResponse(l, false)
}

// newLedgerResponse renders a ledger. With onlyApplicable the items and
// totals cover the applicable items alone.
func newLedgerResponse(l *ledger.Ledger, onlyApplicable bool) *LedgerResponse {
	if l == nil {
		return nil
	}
	items := l.Items()
	totals := l.Totals()
	if onlyApplicable {
		items = l.Applicable()
		totals = ledger.SumItems(items)
	}
	return &LedgerResponse{
		TenantID:      l.TenantID,
		UnitID:        l.UnitID,
		Items:         items,
		Totals:        totals,
		CountByStatus: l.CountByStatus(),
		BillTypes:     l.BillTypes(),
	}
}
