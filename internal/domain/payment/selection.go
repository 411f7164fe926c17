package payment

import (
	"github.com/pms/billing/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// Selection is the operator-chosen subset of ledger bill items a payment is
// allocated against. Items keep the order in which they were selected.
type Selection struct {
	order []string
	items map[string]ledger.BillItem
}

// NewSelection creates an empty selection
func NewSelection() *Selection {
	return &Selection{items: make(map[string]ledger.BillItem)}
}

// Select adds item unless it is already selected
func (s *Selection) Select(item ledger.BillItem) {
	if _, ok := s.items[item.ID]; ok {
		return
	}
	s.items[item.ID] = item
	s.order = append(s.order, item.ID)
}

// Deselect removes the item with the given id
func (s *Selection) Deselect(id string) {
	if _, ok := s.items[id]; !ok {
		return
	}
	delete(s.items, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Toggle flips the selection of item and reports whether it is now selected
func (s *Selection) Toggle(item ledger.BillItem) bool {
	if s.IsSelected(item.ID) {
		s.Deselect(item.ID)
		return false
	}
	s.Select(item)
	return true
}

// SelectAll selects every given item
func (s *Selection) SelectAll(items []ledger.BillItem) {
	for _, item := range items {
		s.Select(item)
	}
}

// Clear empties the selection
func (s *Selection) Clear() {
	s.order = nil
	s.items = make(map[string]ledger.BillItem)
}

// IsSelected reports whether the item with the given id is selected
func (s *Selection) IsSelected(id string) bool {
	_, ok := s.items[id]
	return ok
}

// Len returns the number of selected items
func (s *Selection) Len() int {
	return len(s.order)
}

// IsEmpty reports whether nothing is selected
func (s *Selection) IsEmpty() bool {
	return len(s.order) == 0
}

// Items returns the selected items in selection order
func (s *Selection) Items() []ledger.BillItem {
	out := make([]ledger.BillItem, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id])
	}
	return out
}

// IDs returns the selected bill item ids in selection order
func (s *Selection) IDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Total sums the amount due of the selected items. It is informational only:
// the submitted amount is entered by the operator and may differ.
func (s *Selection) Total() decimal.Decimal {
	return ledger.SumItems(s.Items()).Due
}

// Descriptions returns the lower-cased labels sent to the backend
func (s *Selection) Descriptions() []string {
	out := make([]string, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id].Key())
	}
	return out
}

// Refresh replaces selected items with their current ledger version and drops
// items the ledger no longer contains
func (s *Selection) Refresh(l *ledger.Ledger) {
	kept := s.order[:0]
	for _, id := range s.order {
		item, ok := l.Find(id)
		if !ok {
			delete(s.items, id)
			continue
		}
		s.items[id] = item
		kept = append(kept, id)
	}
	s.order = kept
}
