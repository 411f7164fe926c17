package ledger

import (
	"github.com/shopspring/decimal"
)

// Totals summarises the amounts of a set of bill items
type Totals struct {
	Expected decimal.Decimal `json:"expected"`
	Paid     decimal.Decimal `json:"paid"`
	Due      decimal.Decimal `json:"due"`
}

// SumItems totals the given bill items
func SumItems(items []BillItem) Totals {
	t := Totals{Expected: decimal.Zero, Paid: decimal.Zero, Due: decimal.Zero}
	for _, item := range items {
		t.Expected = t.Expected.Add(item.AmountExpected)
		t.Paid = t.Paid.Add(item.AmountPaid)
		t.Due = t.Due.Add(item.AmountDue())
	}
	return t
}

// Deduplicate keeps the first bill item for each description and drops the rest,
// so the same charge can never be selected twice for one payment
func Deduplicate(items []BillItem) []BillItem {
	seen := make(map[string]struct{}, len(items))
	out := make([]BillItem, 0, len(items))
	for _, item := range items {
		key := item.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

// Ledger is the live set of a tenancy's active bill items
type Ledger struct {
	TenantID  string
	UnitID    string
	items     []BillItem
	billTypes []string
}

// NewLedger builds a ledger snapshot from backend data
func NewLedger(tenantID, unitID string, items []BillItem, billTypes []string) *Ledger {
	types := make([]string, 0, len(billTypes))
	seen := make(map[string]struct{}, len(billTypes))
	for _, bt := range billTypes {
		bt = NormalizeBillType(bt)
		if bt == "" {
			continue
		}
		if _, dup := seen[bt]; dup {
			continue
		}
		seen[bt] = struct{}{}
		types = append(types, bt)
	}
	return &Ledger{
		TenantID:  tenantID,
		UnitID:    unitID,
		items:     Deduplicate(items),
		billTypes: types,
	}
}

// Items returns a copy of the deduplicated bill items in backend order
func (l *Ledger) Items() []BillItem {
	out := make([]BillItem, len(l.items))
	copy(out, l.items)
	return out
}

// Len returns the number of bill items
func (l *Ledger) Len() int {
	return len(l.items)
}

// BillTypes returns the bill types the backend offers for new items
func (l *Ledger) BillTypes() []string {
	out := make([]string, len(l.billTypes))
	copy(out, l.billTypes)
	return out
}

// Applicable returns the items the backend marked as applicable
func (l *Ledger) Applicable() []BillItem {
	applicable, _ := l.GroupByApplicable()
	return applicable
}

// GroupByApplicable splits the items by the backend applicable flag
func (l *Ledger) GroupByApplicable() (applicable, other []BillItem) {
	applicable = make([]BillItem, 0, len(l.items))
	other = make([]BillItem, 0)
	for _, item := range l.items {
		if item.Applicable {
			applicable = append(applicable, item)
		} else {
			other = append(other, item)
		}
	}
	return applicable, other
}

// Find returns the bill item with the given id
func (l *Ledger) Find(id string) (BillItem, bool) {
	for _, item := range l.items {
		if item.ID == id {
			return item, true
		}
	}
	return BillItem{}, false
}

// FindByIDs resolves ids to bill items in the requested order; unknown ids are returned separately
func (l *Ledger) FindByIDs(ids []string) (found []BillItem, missing []string) {
	for _, id := range ids {
		if item, ok := l.Find(id); ok {
			found = append(found, item)
		} else {
			missing = append(missing, id)
		}
	}
	return found, missing
}

// Totals sums every item in the ledger
func (l *Ledger) Totals() Totals {
	return SumItems(l.items)
}

// CountByStatus counts items per derived status
func (l *Ledger) CountByStatus() map[BillStatus]int {
	counts := map[BillStatus]int{
		BillStatusUnpaid:  0,
		BillStatusPartial: 0,
		BillStatusPaid:    0,
	}
	for _, item := range l.items {
		counts[item.Status()]++
	}
	return counts
}
