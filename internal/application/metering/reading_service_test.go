package metering

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pms/billing/internal/domain/metering"
	"github.com/pms/billing/internal/domain/shared"
	"github.com/pms/billing/internal/infrastructure/cache"
	"github.com/pms/billing/internal/infrastructure/telemetry"
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

func (m *MockReadingRepository) CreateReading(ctx context.Context, s *metering.ReadingSubmission) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func newService(repo metering.ReadingRepository) *ReadingService {
	return NewReadingService(repo, nil, shared.InFlightConfig{}, nil, zap.NewNop())
}

func TestRecordReading_WaterScenario(t *testing.T) {
	repo := new(MockReadingRepository)
	now := time.Now()

	repo.On("ListReadings", mock.Anything, metering.UtilityWater, "12").Return([]metering.MeterReading{
		{ID: "1", UnitID: "12", Reading: dec("120"), DateRecorded: now.Add(-time.Hour)},
	}, nil).Once()
	repo.On("CreateReading", mock.Anything, mock.MatchedBy(func(s *metering.ReadingSubmission) bool {
		return s.Reading.Equal(dec("150")) && s.UnitPrice.Equal(dec("5")) && s.TenantID == "7"
	})).Return(nil).Once()
	repo.On("ListReadings", mock.Anything, metering.UtilityWater, "12").Return([]metering.MeterReading{
		{ID: "1", UnitID: "12", Reading: dec("120"), DateRecorded: now.Add(-time.Hour)},
		{ID: "2", UnitID: "12", Reading: dec("150"), UnitsConsumed: dec("30"), AmountDue: dec("150"), DateRecorded: now},
	}, nil).Once()

	svc := newService(repo)
	result, err := svc.RecordReading(context.Background(), RecordReadingRequest{
		Utility:   metering.UtilityWater,
		UnitID:    "12",
		TenantID:  "7",
		Reading:   dec("150"),
		UnitPrice: decPtr("5"),
	})
	require.NoError(t, err)

	assert.True(t, result.Previous.Equal(dec("120")))
	assert.True(t, result.UnitsConsumed.Equal(dec("30")))
	require.NotNil(t, result.EstimatedAmount)
	assert.True(t, result.EstimatedAmount.Equal(dec("150")))
	require.NotNil(t, result.Reading)
	assert.Equal(t, "2", result.Reading.ID)
	assert.True(t, result.History.Previous.Equal(dec("150")), "history is refetched after the write")
	repo.AssertExpectations(t)
}

func TestRecordReading_BelowPreviousIsRejectedWithoutWrite(t *testing.T) {
	repo := new(MockReadingRepository)
	repo.On("ListReadings", mock.Anything, metering.UtilityElectricity, "12").Return([]metering.MeterReading{
		{ID: "1", UnitID: "12", Reading: dec("5000")},
	}, nil).Once()

	svc := newService(repo)
	_, err := svc.RecordReading(context.Background(), RecordReadingRequest{
		Utility:  metering.UtilityElectricity,
		UnitID:   "12",
		TenantID: "7",
		Reading:  dec("4999"),
	})

	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
	assert.Equal(t, metering.CodeReadingBelowPrior, shared.FieldErrors(err)[0].Code)
	repo.AssertNotCalled(t, "CreateReading", mock.Anything, mock.Anything)
}

func TestRecordReading_FirstReadingUsesZeroPrevious(t *testing.T) {
	repo := new(MockReadingRepository)
	repo.On("ListReadings", mock.Anything, metering.UtilityWater, "12").Return([]metering.MeterReading{}, nil)
	repo.On("CreateReading", mock.Anything, mock.Anything).Return(nil)

	svc := newService(repo)
	result, err := svc.RecordReading(context.Background(), RecordReadingRequest{
		Utility:  metering.UtilityWater,
		UnitID:   "12",
		TenantID: "7",
		Reading:  dec("40"),
	})
	require.NoError(t, err)
	assert.True(t, result.Previous.IsZero())
	assert.True(t, result.UnitsConsumed.Equal(dec("40")))
	assert.Nil(t, result.EstimatedAmount, "no unit price means the backend default applies")
}

func TestRecordReading_InvalidFieldsNeverReachBackend(t *testing.T) {
	repo := new(MockReadingRepository)
	svc := newService(repo)

	_, err := svc.RecordReading(context.Background(), RecordReadingRequest{
		Utility: metering.UtilityWater,
		Reading: dec("-1"),
	})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
	repo.AssertNotCalled(t, "ListReadings", mock.Anything, mock.Anything, mock.Anything)
}

func TestRecordReading_BackendFailure(t *testing.T) {
	repo := new(MockReadingRepository)
	repo.On("ListReadings", mock.Anything, metering.UtilityWater, "12").Return([]metering.MeterReading{}, nil).Once()
	repo.On("CreateReading", mock.Anything, mock.Anything).Return(errors.New("HTTP 500")).Once()

	metrics := telemetry.NewMetrics(telemetry.DefaultMetricsConfig())
	svc := NewReadingService(repo, nil, shared.InFlightConfig{}, metrics, zap.NewNop())

	_, err := svc.RecordReading(context.Background(), RecordReadingRequest{
		Utility:  metering.UtilityWater,
		UnitID:   "12",
		TenantID: "7",
		Reading:  dec("10"),
	})
	require.Error(t, err)
	assert.False(t, shared.IsValidation(err))
	repo.AssertExpectations(t)
}

func TestRecordReading_RefetchFailureKeepsAcceptedReading(t *testing.T) {
	repo := new(MockReadingRepository)
	repo.On("ListReadings", mock.Anything, metering.UtilityWater, "12").Return([]metering.MeterReading{
		{ID: "1", UnitID: "12", Reading: dec("100")},
	}, nil).Once()
	repo.On("CreateReading", mock.Anything, mock.Anything).Return(nil).Once()
	repo.On("ListReadings", mock.Anything, metering.UtilityWater, "12").Return(nil, errors.New("timeout")).Once()

	svc := newService(repo)
	result, err := svc.RecordReading(context.Background(), RecordReadingRequest{
		Utility:  metering.UtilityWater,
		UnitID:   "12",
		TenantID: "7",
		Reading:  dec("110"),
	})
	require.NoError(t, err)
	assert.True(t, result.History.Previous.Equal(dec("110")))
}

func TestRecordReading_InFlightConflict(t *testing.T) {
	repo := new(MockReadingRepository)
	guard := cache.NewInMemoryInFlightGuard()
	defer guard.Close()

	cfg := shared.DefaultInFlightConfig()
	_, ok, err := guard.Acquire(context.Background(), shared.InFlightKey("meter.water", "12"), cfg.TTL)
	require.NoError(t, err)
	require.True(t, ok)

	svc := NewReadingService(repo, guard, cfg, nil, zap.NewNop())
	_, err = svc.RecordReading(context.Background(), RecordReadingRequest{
		Utility:  metering.UtilityWater,
		UnitID:   "12",
		TenantID: "7",
		Reading:  dec("10"),
	})
	assert.ErrorIs(t, err, shared.ErrConflict)
	repo.AssertNotCalled(t, "ListReadings", mock.Anything, mock.Anything, mock.Anything)
}

func TestHistory_RejectsUnknownUtility(t *testing.T) {
	svc := newService(new(MockReadingRepository))
	_, err := svc.History(context.Background(), "gas", "12")
	assert.True(t, shared.IsValidation(err))
}
