package recyclebin

import (
	"net/http"
	"strings"

	"github.com/pms/billing/internal/domain/shared"
)

// Kind is the type of a soft-deletable entity
type Kind string

const (
	KindProperty Kind = "property"
	KindTenant   Kind = "tenant"
	KindLandlord Kind = "landlord"
)

// IsValid checks if the kind has a descriptor
func (k Kind) IsValid() bool {
	_, ok := Kinds[k]
	return ok
}

// String returns the string representation of Kind
func (k Kind) String() string {
	return string(k)
}

// AllKinds returns every kind in display order
func AllKinds() []Kind {
	return []Kind{KindProperty, KindTenant, KindLandlord}
}

// kindNames maps every accepted spelling, singular or plural, to its kind
var kindNames = map[string]Kind{
	"property":   KindProperty,
	"properties": KindProperty,
	"tenant":     KindTenant,
	"tenants":    KindTenant,
	"landlord":   KindLandlord,
	"landlords":  KindLandlord,
}

// ParseKind parses a kind name, case-insensitive, singular or plural
func ParseKind(s string) (Kind, error) {
	k, ok := kindNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", shared.NewValidationError("kind", CodeKindInvalid, "Kind must be one of property, tenant, landlord")
	}
	return k, nil
}

// Action is a recycle-bin operation
type Action string

const (
	ActionRestore Action = "restore"
	ActionDelete  Action = "delete"
)

// IsValid checks if the action is known
func (a Action) IsValid() bool {
	return a == ActionRestore || a == ActionDelete
}

// ParseAction parses an action name
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	if !a.IsValid() {
		return "", shared.NewValidationError("action", CodeActionInvalid, "Action must be restore or delete")
	}
	return a, nil
}

// RequestSpec describes the backend call for one action on one kind.
// The id travels either in the query string under QueryKey or, when
// BodyAction is set, in a JSON body {"id": ..., "action": BodyAction}.
type RequestSpec struct {
	Method     string
	Path       string
	QueryKey   string
	BodyAction string
}

// CarriesBody reports whether the id is sent in a request body
func (r RequestSpec) CarriesBody() bool {
	return r.BodyAction != ""
}

// Descriptor holds everything that differs between kinds
type Descriptor struct {
	Kind  Kind
	Label string
	// ListPath is the backend listing of soft-deleted entities
	ListPath string
	// Envelope is the JSON key holding the listed records
	Envelope string
	// IDKey is the kind-specific id field of a record
	IDKey string
	// NameKeys are joined with a space to form the display name
	NameKeys []string
	Restore  RequestSpec
	Delete   RequestSpec
}

// Request returns how the backend expects an action to be sent
func (d Descriptor) Request(a Action) RequestSpec {
	if a == ActionRestore {
		return d.Restore
	}
	return d.Delete
}

// Kinds is the kind dispatch table
var Kinds = map[Kind]Descriptor{
	KindProperty: {
		Kind:     KindProperty,
		Label:    "Properties",
		ListPath: "/manage-property/trash",
		Envelope: "properties",
		IDKey:    "property_id",
		NameKeys: []string{"property_name"},
		Restore:  RequestSpec{Method: http.MethodPost, Path: "/manage-property/trash/restore", QueryKey: "id"},
		Delete:   RequestSpec{Method: http.MethodPost, Path: "/manage-property/trash/delete", QueryKey: "id"},
	},
	KindTenant: {
		Kind:     KindTenant,
		Label:    "Tenants",
		ListPath: "/manage-tenant/delete-and-restore-tenant",
		Envelope: "tenants",
		IDKey:    "tenant_id",
		NameKeys: []string{"first_name", "last_name"},
		Restore:  RequestSpec{Method: http.MethodPatch, Path: "/manage-tenant/delete-and-restore-tenant", BodyAction: "restore"},
		Delete:   RequestSpec{Method: http.MethodPost, Path: "/manage-tenant/delete-and-restore-tenant", QueryKey: "tenant_id"},
	},
	KindLandlord: {
		Kind:     KindLandlord,
		Label:    "Landlords",
		ListPath: "/manage-landlord/delete-and-restore-landlord",
		Envelope: "landlords",
		IDKey:    "landlord_id",
		NameKeys: []string{"first_name", "last_name"},
		Restore:  RequestSpec{Method: http.MethodPut, Path: "/manage-landlord/delete-and-restore-landlord", BodyAction: "restore"},
		Delete:   RequestSpec{Method: http.MethodPost, Path: "/manage-landlord/delete-and-restore-landlord", QueryKey: "landlord_id"},
	},
}

// DescriptorFor returns the descriptor of a kind
func DescriptorFor(k Kind) (Descriptor, bool) {
	d, ok := Kinds[k]
	return d, ok
}
