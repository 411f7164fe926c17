package recyclebin

import (
	"context"
	"time"

	"github.com/pms/billing/internal/domain/shared"
)

// Validation codes raised by the recycle bin
const (
	CodeKindInvalid   = "KIND_INVALID"
	CodeActionInvalid = "ACTION_INVALID"
	CodeIDRequired    = "ID_REQUIRED"
	CodeNothingArmed  = "NOTHING_CHECKED"
)

// RecyclableEntity is a soft-deleted record normalized across kinds
type RecyclableEntity struct {
	Kind      Kind       `json:"kind"`
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	DeletedAt *time.Time `json:"deleted_at"`
	Checked   bool       `json:"checked"`
}

// Repository is the backend port of the recycle bin
type Repository interface {
	// ListDeleted returns one page of soft-deleted entities of a kind
	ListDeleted(ctx context.Context, kind Kind, page shared.Page) (*shared.Paginated[RecyclableEntity], error)

	// Restore brings an entity back
	Restore(ctx context.Context, kind Kind, id string) error

	// Delete removes an entity permanently
	Delete(ctx context.Context, kind Kind, id string) error
}

// Apply dispatches an action to the repository
func Apply(ctx context.Context, repo Repository, kind Kind, action Action, id string) error {
	if action == ActionRestore {
		return repo.Restore(ctx, kind, id)
	}
	return repo.Delete(ctx, kind, id)
}
