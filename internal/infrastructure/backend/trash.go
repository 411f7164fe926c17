package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pms/billing/internal/domain/recyclebin"
	"github.com/pms/billing/internal/domain/shared"
)

// TrashStore implements recyclebin.Repository over the backend
type TrashStore struct {
	c *Client
}

var _ recyclebin.Repository = (*TrashStore)(nil)

// Trash returns the recycle-bin adapter
func (c *Client) Trash() *TrashStore {
	return &TrashStore{c: c}
}

// deletedAtKeys are tried in order for the soft-delete timestamp
var deletedAtKeys = []string{"deleted_at", "deletedAt", "date_deleted"}

// totalKeys are tried in order for the listing total
var totalKeys = []string{"total", "total_count", "count"}

// ListDeleted returns one page of soft-deleted entities, normalised across kinds
func (t *TrashStore) ListDeleted(ctx context.Context, kind recyclebin.Kind, page shared.Page) (*shared.Paginated[recyclebin.RecyclableEntity], error) {
	desc, ok := recyclebin.DescriptorFor(kind)
	if !ok {
		return nil, shared.NewValidationError("kind", recyclebin.CodeKindInvalid, fmt.Sprintf("Unknown entity kind %q", kind))
	}
	page = page.Normalize()

	body, err := t.c.do(ctx, request{
		operation: "trash.list." + string(kind),
		method:    http.MethodGet,
		path:      desc.ListPath,
		query: url.Values{
			"page":     {strconv.Itoa(page.Number)},
			"per_page": {strconv.Itoa(page.Size)},
		},
	})
	if err != nil {
		return nil, err
	}

	rows, total, err := decodeTrash(body, desc.Envelope)
	if err != nil {
		return nil, fmt.Errorf("decode %s trash: %w", kind, err)
	}

	entities := make([]recyclebin.RecyclableEntity, 0, len(rows))
	for _, row := range rows {
		entity, err := normalizeEntity(desc, row)
		if err != nil {
			return nil, fmt.Errorf("decode %s trash: %w", kind, err)
		}
		entities = append(entities, entity)
	}
	if total < int64(len(entities)) {
		total = int64(len(entities))
	}

	result := shared.NewPaginated(entities, total, page.Number, page.Size)
	return &result, nil
}

// Restore brings an entity back
func (t *TrashStore) Restore(ctx context.Context, kind recyclebin.Kind, id string) error {
	return t.apply(ctx, kind, recyclebin.ActionRestore, id)
}

// Delete removes an entity permanently
func (t *TrashStore) Delete(ctx context.Context, kind recyclebin.Kind, id string) error {
	return t.apply(ctx, kind, recyclebin.ActionDelete, id)
}

func (t *TrashStore) apply(ctx context.Context, kind recyclebin.Kind, action recyclebin.Action, id string) error {
	desc, ok := recyclebin.DescriptorFor(kind)
	if !ok {
		return shared.NewValidationError("kind", recyclebin.CodeKindInvalid, fmt.Sprintf("Unknown entity kind %q", kind))
	}
	if strings.TrimSpace(id) == "" {
		return shared.NewValidationError("id", recyclebin.CodeIDRequired, "Entity ID is required")
	}

	shape := desc.Request(action)
	r := request{
		operation: fmt.Sprintf("trash.%s.%s", action, kind),
		method:    shape.Method,
		path:      shape.Path,
	}
	if shape.CarriesBody() {
		r.body = trashActionRequest{ID: id, Action: shape.BodyAction}
	} else {
		r.query = url.Values{shape.QueryKey: {id}}
	}

	_, err := t.c.do(ctx, r)
	return err
}

// decodeTrash extracts the record rows of a kind-specific envelope and the
// reported total, if any. A bare array or a result/data wrapper is accepted too.
func decodeTrash(body []byte, envelopeKey string) ([]map[string]json.RawMessage, int64, error) {
	body = bytes.TrimSpace(body)
	var rows []map[string]json.RawMessage
	if len(body) == 0 {
		return rows, 0, nil
	}
	if body[0] == '[' {
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, 0, err
		}
		return rows, int64(len(rows)), nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, 0, err
	}
	var raw json.RawMessage
	for _, key := range []string{envelopeKey, "result", "data"} {
		if v, ok := obj[key]; ok && string(v) != "null" {
			raw = v
			break
		}
	}
	if raw != nil {
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, 0, fmt.Errorf("envelope %q: %w", envelopeKey, err)
		}
	}

	var total int64
	for _, key := range totalKeys {
		if v, ok := obj[key]; ok {
			var n json.Number
			if err := json.Unmarshal(v, &n); err == nil {
				if parsed, err := n.Int64(); err == nil {
					total = parsed
					break
				}
			}
		}
	}
	return rows, total, nil
}

func normalizeEntity(desc recyclebin.Descriptor, row map[string]json.RawMessage) (recyclebin.RecyclableEntity, error) {
	entity := recyclebin.RecyclableEntity{Kind: desc.Kind}

	for _, key := range []string{desc.IDKey, "id"} {
		if v, ok := row[key]; ok {
			var id flexID
			if err := json.Unmarshal(v, &id); err != nil {
				return entity, fmt.Errorf("%s: %w", key, err)
			}
			if id != "" {
				entity.ID = string(id)
				break
			}
		}
	}
	if entity.ID == "" {
		return entity, fmt.Errorf("record without %s", desc.IDKey)
	}

	parts := make([]string, 0, len(desc.NameKeys))
	for _, key := range desc.NameKeys {
		var s string
		if v, ok := row[key]; ok && json.Unmarshal(v, &s) == nil && strings.TrimSpace(s) != "" {
			parts = append(parts, strings.TrimSpace(s))
		}
	}
	entity.Name = strings.Join(parts, " ")

	for _, key := range deletedAtKeys {
		v, ok := row[key]
		if !ok {
			continue
		}
		var ft flexTime
		if err := json.Unmarshal(v, &ft); err != nil {
			return entity, fmt.Errorf("%s: %w", key, err)
		}
		if !ft.IsZero() {
			at := ft.Time
			entity.DeletedAt = &at
		}
		break
	}
	return entity, nil
}
