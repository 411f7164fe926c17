package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pms/billing/internal/domain/ledger"
	"github.com/pms/billing/internal/domain/metering"
	"github.com/pms/billing/internal/domain/payment"
	"github.com/pms/billing/internal/domain/recyclebin"
	"github.com/pms/billing/internal/domain/shared"
)

// MockReadingRepository is a mock implementation of metering.ReadingRepository
type MockReadingRepository struct {
	mock.Mock
}

func (m *MockReadingRepository) ListReadings(ctx context.Context, utility metering.UtilityType, unitID string) ([]metering.MeterReading, error) {
	args := m.Called(ctx, utility, unitID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]metering.MeterReading), args.Error(1)
}

func (m *MockReadingRepository) CreateReading(ctx context.Context, submission *metering.ReadingSubmission) error {
	return m.Called(ctx, submission).Error(0)
}

// MockLedgerRepository is a mock implementation of ledger.Repository
type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) ListActive(ctx context.Context, tenantID, unitID string) (*ledger.Snapshot, error) {
	args := m.Called(ctx, tenantID, unitID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Snapshot), args.Error(1)
}

func (m *MockLedgerRepository) Add(ctx context.Context, draft *ledger.BillItemDraft) error {
	return m.Called(ctx, draft).Error(0)
}

func (m *MockLedgerRepository) PatchExpected(ctx context.Context, patch *ledger.AmountPatch) error {
	return m.Called(ctx, patch).Error(0)
}

func (m *MockLedgerRepository) Delete(ctx context.Context, billItemID string) error {
	return m.Called(ctx, billItemID).Error(0)
}

// MockGateway is a mock implementation of payment.Gateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Submit(ctx context.Context, sub *payment.Submission, idempotencyKey string) (*payment.Receipt, error) {
	args := m.Called(ctx, sub, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Receipt), args.Error(1)
}

// MockTrashRepository is a mock implementation of recyclebin.Repository
type MockTrashRepository struct {
	mock.Mock
}

func (m *MockTrashRepository) ListDeleted(ctx context.Context, kind recyclebin.Kind, page shared.Page) (*shared.Paginated[recyclebin.RecyclableEntity], error) {
	args := m.Called(ctx, kind, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.Paginated[recyclebin.RecyclableEntity]), args.Error(1)
}

func (m *MockTrashRepository) Restore(ctx context.Context, kind recyclebin.Kind, id string) error {
	return m.Called(ctx, kind, id).Error(0)
}

func (m *MockTrashRepository) Delete(ctx context.Context, kind recyclebin.Kind, id string) error {
	return m.Called(ctx, kind, id).Error(0)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func stringBody(s string) io.Reader {
	return strings.NewReader(s)
}

// decodeData re-decodes the data field of a success response into out
func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.True(t, envelope.Success, w.Body.String())
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}
