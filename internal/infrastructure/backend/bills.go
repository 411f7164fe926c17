package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pms/billing/internal/domain/ledger"
)

const billsPath = "/manage-tenant/bills"

// BillStore implements ledger.Repository over the backend
type BillStore struct {
	c *Client
}

var _ ledger.Repository = (*BillStore)(nil)

// Bills returns the bill-item adapter
func (c *Client) Bills() *BillStore {
	return &BillStore{c: c}
}

// ListActive returns the active bill items of a tenancy and the bill-type catalogue
func (b *BillStore) ListActive(ctx context.Context, tenantID, unitID string) (*ledger.Snapshot, error) {
	query := url.Values{
		"tenant_id": {tenantID},
		"unit_id":   {unitID},
	}
	// the backend filters on the presence of a bare "active" flag
	query.Set("active", "")

	body, err := b.c.do(ctx, request{
		operation: "bills.list",
		method:    http.MethodGet,
		path:      billsPath,
		query:     query,
	})
	if err != nil {
		return nil, err
	}

	raw, env, err := records(body)
	if err != nil {
		return nil, fmt.Errorf("decode bills: %w", err)
	}
	var wire []billItemWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("decode bills: %w", err)
	}

	snap := &ledger.Snapshot{
		Items:     make([]ledger.BillItem, 0, len(wire)),
		BillTypes: env.BillTypes,
	}
	for _, w := range wire {
		item := w.toDomain()
		if item.TenantID == "" {
			item.TenantID = tenantID
		}
		if item.UnitID == "" {
			item.UnitID = unitID
		}
		snap.Items = append(snap.Items, item)
	}
	return snap, nil
}

// Add creates a bill item
func (b *BillStore) Add(ctx context.Context, d *ledger.BillItemDraft) error {
	_, err := b.c.do(ctx, request{
		operation: "bills.add",
		method:    http.MethodPost,
		path:      billsPath,
		body: addBillItemRequest{
			UnitID:   d.UnitID,
			TenantID: d.TenantID,
			BillType: d.BillType,
			Amount:   d.Amount,
		},
	})
	return err
}

// PatchExpected overrides the expected amount of a bill item
func (b *BillStore) PatchExpected(ctx context.Context, p *ledger.AmountPatch) error {
	_, err := b.c.do(ctx, request{
		operation: "bills.patch",
		method:    http.MethodPatch,
		path:      billsPath,
		body: patchBillItemRequest{
			BillItemID:     p.BillItemID,
			AmountExpected: p.AmountExpected,
		},
	})
	return err
}

// Delete removes a bill item. The filter travels in the request body.
func (b *BillStore) Delete(ctx context.Context, billItemID string) error {
	_, err := b.c.do(ctx, request{
		operation: "bills.delete",
		method:    http.MethodDelete,
		path:      billsPath,
		body:      deleteBillItemRequest{BillItemID: billItemID},
	})
	return err
}
