package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pms/billing/internal/domain/ledger"
	"github.com/pms/billing/internal/domain/shared"
	"github.com/pms/billing/internal/infrastructure/cache"
)

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

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var tenancy = Tenancy{TenantID: "7", UnitID: "12"}

func rentAndWater() *ledger.Snapshot {
	return &ledger.Snapshot{
		Items: []ledger.BillItem{
			{ID: "1", BillType: "rent", AmountExpected: dec("10000"), AmountPaid: dec("0"), Applicable: true},
			{ID: "2", BillType: "water", AmountExpected: dec("500"), AmountPaid: dec("500"), Applicable: true},
		},
		BillTypes: []string{"rent", "water", "fine"},
	}
}

func newService(repo ledger.Repository) *LedgerService {
	return NewLedgerService(repo, nil, shared.InFlightConfig{}, nil, zap.NewNop())
}

func TestList(t *testing.T) {
	repo := new(MockLedgerRepository)
	repo.On("ListActive", mock.Anything, "7", "12").Return(rentAndWater(), nil)

	l, err := newService(repo).List(context.Background(), tenancy)
	require.NoError(t, err)

	items := l.Items()
	require.Len(t, items, 2)
	assert.Equal(t, ledger.BillStatusUnpaid, items[0].Status())
	assert.Equal(t, ledger.BillStatusPaid, items[1].Status())
	assert.Equal(t, []string{"rent", "water", "fine"}, l.BillTypes())
}

func TestList_RequiresTenancy(t *testing.T) {
	repo := new(MockLedgerRepository)
	_, err := newService(repo).List(context.Background(), Tenancy{})

	assert.True(t, shared.IsValidation(err))
	assert.Len(t, shared.FieldErrors(err), 2)
	repo.AssertNotCalled(t, "ListActive", mock.Anything, mock.Anything, mock.Anything)
}

func TestAdd_RefetchesLedger(t *testing.T) {
	repo := new(MockLedgerRepository)
	repo.On("Add", mock.Anything, mock.MatchedBy(func(d *ledger.BillItemDraft) bool {
		return d.BillType == "fine" && d.Amount.Equal(dec("250")) && d.TenantID == "7"
	})).Return(nil).Once()

	after := rentAndWater()
	after.Items = append(after.Items, ledger.BillItem{ID: "3", BillType: "fine", AmountExpected: dec("250"), Applicable: true})
	repo.On("ListActive", mock.Anything, "7", "12").Return(after, nil).Once()

	l, err := newService(repo).Add(context.Background(), AddBillItemRequest{
		Tenancy:  tenancy,
		BillType: " Fine ",
		Amount:   dec("250"),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, l.Len())
	repo.AssertExpectations(t)
}

func TestAdd_ValidationBlocksWrite(t *testing.T) {
	repo := new(MockLedgerRepository)
	_, err := newService(repo).Add(context.Background(), AddBillItemRequest{
		Tenancy: tenancy,
		Amount:  dec("-1"),
	})

	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
	repo.AssertNotCalled(t, "Add", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "ListActive", mock.Anything, mock.Anything, mock.Anything)
}

func TestPatch_StatusRederivedFromRefetch(t *testing.T) {
	repo := new(MockLedgerRepository)
	repo.On("PatchExpected", mock.Anything, &ledger.AmountPatch{BillItemID: "1", AmountExpected: dec("4000")}).Return(nil).Once()
	repo.On("ListActive", mock.Anything, "7", "12").Return(&ledger.Snapshot{
		Items: []ledger.BillItem{
			{ID: "1", BillType: "rent", AmountExpected: dec("4000"), AmountPaid: dec("4000")},
		},
	}, nil).Once()

	l, err := newService(repo).Patch(context.Background(), PatchBillItemRequest{
		Tenancy:        tenancy,
		BillItemID:     "1",
		AmountExpected: dec("4000"),
	})
	require.NoError(t, err)

	item, ok := l.Find("1")
	require.True(t, ok)
	assert.Equal(t, ledger.BillStatusPaid, item.Status())
}

func TestDelete(t *testing.T) {
	repo := new(MockLedgerRepository)
	repo.On("Delete", mock.Anything, "2").Return(nil).Once()
	repo.On("ListActive", mock.Anything, "7", "12").Return(&ledger.Snapshot{
		Items: rentAndWater().Items[:1],
	}, nil).Once()

	l, err := newService(repo).Delete(context.Background(), DeleteBillItemRequest{Tenancy: tenancy, BillItemID: " 2 "})
	require.NoError(t, err)
	_, found := l.Find("2")
	assert.False(t, found)
}

func TestDelete_RequiresID(t *testing.T) {
	repo := new(MockLedgerRepository)
	_, err := newService(repo).Delete(context.Background(), DeleteBillItemRequest{Tenancy: tenancy})
	assert.True(t, shared.IsValidation(err))
	repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestMutation_BackendFailureSkipsRefetch(t *testing.T) {
	repo := new(MockLedgerRepository)
	repo.On("Delete", mock.Anything, "1").Return(errors.New("HTTP 500")).Once()

	_, err := newService(repo).Delete(context.Background(), DeleteBillItemRequest{Tenancy: tenancy, BillItemID: "1"})
	require.Error(t, err)
	repo.AssertNotCalled(t, "ListActive", mock.Anything, mock.Anything, mock.Anything)
}

func TestMutation_RefetchFailureStillSucceeds(t *testing.T) {
	repo := new(MockLedgerRepository)
	repo.On("Add", mock.Anything, mock.Anything).Return(nil).Once()
	repo.On("ListActive", mock.Anything, "7", "12").Return(nil, shared.ErrBackendUnavailable).Once()

	l, err := newService(repo).Add(context.Background(), AddBillItemRequest{Tenancy: tenancy, BillType: "rent", Amount: dec("100")})
	require.NoError(t, err, "an applied write is not reported as failed")
	assert.Nil(t, l)
	repo.AssertNumberOfCalls(t, "Add", 1)
}

func TestMutation_InFlightConflict(t *testing.T) {
	repo := new(MockLedgerRepository)
	guard := cache.NewInMemoryInFlightGuard()
	defer guard.Close()

	cfg := shared.DefaultInFlightConfig()
	_, ok, err := guard.Acquire(context.Background(), shared.InFlightKey("ledger.patch", "7", "12"), cfg.TTL)
	require.NoError(t, err)
	require.True(t, ok)

	svc := NewLedgerService(repo, guard, cfg, nil, zap.NewNop())
	_, err = svc.Patch(context.Background(), PatchBillItemRequest{Tenancy: tenancy, BillItemID: "1", AmountExpected: dec("1")})
	assert.ErrorIs(t, err, shared.ErrConflict)

	repo.On("Delete", mock.Anything, "1").Return(nil).Once()
	repo.On("ListActive", mock.Anything, "7", "12").Return(rentAndWater(), nil).Once()
	_, err = svc.Delete(context.Background(), DeleteBillItemRequest{Tenancy: tenancy, BillItemID: "1"})
	require.NoError(t, err, "other operations use their own key")
	repo.AssertNotCalled(t, "PatchExpected", mock.Anything, mock.Anything)
}
