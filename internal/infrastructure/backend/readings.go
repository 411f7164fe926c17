package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pms/billing/internal/domain/metering"
)

// ReadingStore implements metering.ReadingRepository over the backend
type ReadingStore struct {
	c *Client
}

var _ metering.ReadingRepository = (*ReadingStore)(nil)

// Readings returns the meter-reading adapter
func (c *Client) Readings() *ReadingStore {
	return &ReadingStore{c: c}
}

func readingsPath(utility metering.UtilityType) string {
	return fmt.Sprintf("/manage-tenant/%s-billing", utility)
}

// ListReadings returns the stored readings of a unit for one utility
func (r *ReadingStore) ListReadings(ctx context.Context, utility metering.UtilityType, unitID string) ([]metering.MeterReading, error) {
	body, err := r.c.do(ctx, request{
		operation: "readings.list",
		method:    http.MethodGet,
		path:      readingsPath(utility),
		query:     url.Values{"unit_id": {unitID}},
	})
	if err != nil {
		return nil, err
	}

	raw, _, err := records(body)
	if err != nil {
		return nil, fmt.Errorf("decode %s readings: %w", utility, err)
	}
	var wire []meterReadingWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("decode %s readings: %w", utility, err)
	}

	readings := make([]metering.MeterReading, 0, len(wire))
	for _, w := range wire {
		readings = append(readings, w.toDomain(utility))
	}
	return readings, nil
}

// CreateReading submits a validated reading
func (r *ReadingStore) CreateReading(ctx context.Context, s *metering.ReadingSubmission) error {
	_, err := r.c.do(ctx, request{
		operation: "readings.create",
		method:    http.MethodPost,
		path:      readingsPath(s.Utility),
		body: createReadingRequest{
			MeterReading: s.Reading,
			UnitPrice:    s.UnitPrice,
			TenantID:     s.TenantID,
			UnitID:       s.UnitID,
		},
	})
	return err
}
