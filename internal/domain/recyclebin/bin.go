package recyclebin

import (
	"fmt"

	"github.com/pms/billing/internal/domain/shared"
)

// Bin is the bulk-selection state over the visible page of one kind.
//
// The first restore or delete on an entity arms bulk mode with that entity
// checked. While armed, further clicks toggle entities instead of acting on
// them, and Commit-style callers act on Checked(). Switching kind disarms and
// clears the selection.
type Bin struct {
	kind     Kind
	entities []RecyclableEntity
	armed    bool
	action   Action
	checked  map[string]struct{}
}

// NewBin creates an unarmed bin for a kind
func NewBin(kind Kind) *Bin {
	return &Bin{kind: kind, checked: make(map[string]struct{})}
}

// Kind returns the kind currently shown
func (b *Bin) Kind() Kind {
	return b.kind
}

// Armed reports whether bulk mode is active
func (b *Bin) Armed() bool {
	return b.armed
}

// Action returns the action bulk mode was armed with
func (b *Bin) Action() Action {
	return b.action
}

// Load replaces the visible page. Checks on entities no longer visible are dropped.
func (b *Bin) Load(entities []RecyclableEntity) {
	b.entities = make([]RecyclableEntity, len(entities))
	copy(b.entities, entities)
	visible := make(map[string]struct{}, len(entities))
	for _, e := range b.entities {
		visible[e.ID] = struct{}{}
	}
	for id := range b.checked {
		if _, ok := visible[id]; !ok {
			delete(b.checked, id)
		}
	}
}

// Entities returns the visible page with current check flags
func (b *Bin) Entities() []RecyclableEntity {
	out := make([]RecyclableEntity, len(b.entities))
	for i, e := range b.entities {
		_, e.Checked = b.checked[e.ID]
		out[i] = e
	}
	return out
}

// Len returns the number of visible entities
func (b *Bin) Len() int {
	return len(b.entities)
}

func (b *Bin) visible(id string) bool {
	for _, e := range b.entities {
		if e.ID == id {
			return true
		}
	}
	return false
}

// Arm handles a restore or delete click on id. An unarmed bin arms with id
// checked and reports true; an armed bin toggles id and reports false.
func (b *Bin) Arm(action Action, id string) (bool, error) {
	if !action.IsValid() {
		return false, shared.NewValidationError("action", CodeActionInvalid, "Action must be restore or delete")
	}
	if !b.visible(id) {
		return false, shared.NewDomainError(shared.ErrNotFound.Code, fmt.Sprintf("%s %s is not on the current page", b.kind, id))
	}
	if b.armed {
		b.Toggle(id)
		return false, nil
	}
	b.armed = true
	b.action = action
	b.checked = map[string]struct{}{id: {}}
	return true, nil
}

// Toggle flips the check of a visible entity and reports whether it is now checked
func (b *Bin) Toggle(id string) bool {
	if !b.visible(id) {
		return false
	}
	if _, ok := b.checked[id]; ok {
		delete(b.checked, id)
		return false
	}
	b.checked[id] = struct{}{}
	return true
}

// SelectAll checks every visible entity
func (b *Bin) SelectAll() {
	for _, e := range b.entities {
		b.checked[e.ID] = struct{}{}
	}
}

// DeselectAll unchecks every entity
func (b *Bin) DeselectAll() {
	b.checked = make(map[string]struct{})
}

// Checked returns the checked ids in page order
func (b *Bin) Checked() []string {
	out := make([]string, 0, len(b.checked))
	for _, e := range b.entities {
		if _, ok := b.checked[e.ID]; ok {
			out = append(out, e.ID)
		}
	}
	return out
}

// Disarm leaves bulk mode and clears the selection
func (b *Bin) Disarm() {
	b.armed = false
	b.action = ""
	b.checked = make(map[string]struct{})
}

// SwitchKind shows another kind. The visible page and any armed selection are cleared.
func (b *Bin) SwitchKind(kind Kind) {
	b.kind = kind
	b.entities = nil
	b.Disarm()
}

// Remove drops entities from the visible page and the selection
func (b *Bin) Remove(ids ...string) {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
		delete(b.checked, id)
	}
	kept := b.entities[:0]
	for _, e := range b.entities {
		if _, ok := drop[e.ID]; !ok {
			kept = append(kept, e)
		}
	}
	b.entities = kept
}
