package ledger

import "context"

// Snapshot is the raw active-ledger response of the backend
type Snapshot struct {
	Items     []BillItem
	BillTypes []string
}

// Repository is the backend port for bill items
type Repository interface {
	// ListActive returns the active bill items of a tenancy
	ListActive(ctx context.Context, tenantID, unitID string) (*Snapshot, error)

	// Add creates a bill item
	Add(ctx context.Context, draft *BillItemDraft) error

	// PatchExpected overrides the expected amount of a bill item
	PatchExpected(ctx context.Context, patch *AmountPatch) error

	// Delete removes a bill item permanently
	Delete(ctx context.Context, billItemID string) error
}
