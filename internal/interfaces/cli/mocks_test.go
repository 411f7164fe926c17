package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	ledgerapp "github.com/pms/billing/internal/application/ledger"
	meteringapp "github.com/pms/billing/internal/application/metering"
	paymentapp "github.com/pms/billing/internal/application/payment"
	recyclebinapp "github.com/pms/billing/internal/application/recyclebin"
	"github.com/pms/billing/internal/domain/ledger"
	"github.com/pms/billing/internal/domain/metering"
	"github.com/pms/billing/internal/domain/payment"
	"github.com/pms/billing/internal/domain/recyclebin"
	"github.com/pms/billing/internal/domain/shared"
	"github.com/pms/billing/internal/infrastructure/backend"
)

const testToken = "operator-token"

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

type testBackend struct {
	readings *MockReadingRepository
	ledgers  *MockLedgerRepository
	gateway  *MockGateway
	trash    *MockTrashRepository
}

func newTestBackend() *testBackend {
	return &testBackend{
		readings: new(MockReadingRepository),
		ledgers:  new(MockLedgerRepository),
		gateway:  new(MockGateway),
		trash:    new(MockTrashRepository),
	}
}

func (b *testBackend) app() *App {
	var off shared.InFlightConfig
	log := zap.NewNop()
	return &App{
		Readings:   meteringapp.NewReadingService(b.readings, nil, off, nil, log),
		Ledger:     ledgerapp.NewLedgerService(b.ledgers, nil, off, nil, log),
		Payments:   paymentapp.NewAllocationService(b.ledgers, b.gateway, nil, off, nil, log),
		RecycleBin: recyclebinapp.NewRecycleBinService(b.trash, nil, off, 2, nil, log),
		Token:      testToken,
		Logger:     log,
	}
}

func (b *testBackend) assertExpectations(t *testing.T) {
	t.Helper()
	b.readings.AssertExpectations(t)
	b.ledgers.AssertExpectations(t)
	b.gateway.AssertExpectations(t)
	b.trash.AssertExpectations(t)
}

// run executes billingctl with args and returns everything it printed
func run(app *App, args ...string) (string, error) {
	var out bytes.Buffer
	root := NewRootCmd(app)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// withToken matches a context carrying the operator's bearer token
var withToken = mock.MatchedBy(func(ctx context.Context) bool {
	return backend.TokenFromContext(ctx) == testToken
})

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
