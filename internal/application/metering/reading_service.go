package metering

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/pms/billing/internal/domain/metering"
	"github.com/pms/billing/internal/domain/shared"
	"github.com/pms/billing/internal/infrastructure/logger"
	"github.com/pms/billing/internal/infrastructure/telemetry"
)

// ReadingService records meter readings against the backend.
// It never holds a previous reading between calls: every validation reads
// the latest reading of the (unit, utility) pair fresh from the backend.
type ReadingService struct {
	repo     metering.ReadingRepository
	guard    shared.InFlightGuard
	inflight shared.InFlightConfig
	metrics  *telemetry.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewReadingService creates a new ReadingService
func NewReadingService(
	repo metering.ReadingRepository,
	guard shared.InFlightGuard,
	inflight shared.InFlightConfig,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
) *ReadingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !inflight.Enabled {
		guard = nil
	}
	return &ReadingService{
		repo:     repo,
		guard:    guard,
		inflight: inflight,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// RecordReadingRequest is an operator-entered reading
type RecordReadingRequest struct {
	Utility   metering.UtilityType
	UnitID    string
	TenantID  string
	Reading   decimal.Decimal
	UnitPrice *decimal.Decimal
}

// RecordReadingResult is the outcome of an accepted reading
type RecordReadingResult struct {
	Previous      decimal.Decimal `json:"previous_reading"`
	UnitsConsumed decimal.Decimal `json:"meter_units_consumed"`
	// EstimatedAmount is consumed × unit price when a price was entered; the
	// backend-computed amount on Reading is authoritative
	EstimatedAmount *decimal.Decimal       `json:"estimated_amount,omitempty"`
	Reading         *metering.MeterReading `json:"reading,omitempty"`
	History         *HistoryView           `json:"history"`
}

// HistoryView is the serialisable form of a meter history
type HistoryView struct {
	Utility       metering.UtilityType    `json:"utility"`
	Unit          string                  `json:"unit"`
	UnitID        string                  `json:"unit_id"`
	Previous      decimal.Decimal         `json:"previous_reading"`
	TotalConsumed decimal.Decimal         `json:"total_consumed"`
	TotalBilled   decimal.Decimal         `json:"total_billed"`
	Readings      []metering.MeterReading `json:"readings"`
}

// NewHistoryView renders a history
func NewHistoryView(h *metering.History) *HistoryView {
	return &HistoryView{
		Utility:       h.Utility,
		Unit:          h.Utility.Unit(),
		UnitID:        h.UnitID,
		Previous:      h.Previous(),
		TotalConsumed: h.TotalConsumed(),
		TotalBilled:   h.TotalBilled(),
		Readings:      h.Readings(),
	}
}

// History returns the readings of a unit for one utility, most recent first
func (s *ReadingService) History(ctx context.Context, utility metering.UtilityType, unitID string) (*metering.History, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "metering", "history",
		telemetry.AttrUtility.String(utility.String()),
		telemetry.AttrUnitID.String(unitID),
	)
	defer span.End()

	if !utility.IsValid() {
		err := shared.NewValidationError("utility", metering.CodeUtilityTypeInvalid, "Unsupported utility type")
		telemetry.RecordError(span, err)
		return nil, err
	}

	readings, err := s.repo.ListReadings(ctx, utility, unitID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	h := metering.NewHistory(utility, unitID, readings)
	span.SetAttributes(telemetry.AttrItemCount.Int(h.Len()))
	return h, nil
}

// RecordReading validates a reading against the latest stored reading and submits it.
// A reading below the previous one is rejected without any write.
func (s *ReadingService) RecordReading(ctx context.Context, req RecordReadingRequest) (*RecordReadingResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "metering", "record_reading",
		append(telemetry.Tenancy(req.TenantID, req.UnitID), telemetry.AttrUtility.String(req.Utility.String()))...,
	)
	defer span.End()

	log := logger.FromContextOr(ctx, s.logger)

	var result *RecordReadingResult
	key := shared.InFlightKey("meter."+req.Utility.String(), req.UnitID)
	err := shared.Guarded(ctx, s.guard, key, s.inflight.TTL, func(ctx context.Context) error {
		var err error
		result, err = s.record(ctx, req)
		return err
	})

	s.metrics.IncReading(req.Utility.String(), telemetry.Outcome(err))
	if err != nil {
		telemetry.RecordError(span, err)
		logger.Failure(log, "Meter reading not recorded", err,
			zap.String("utility", req.Utility.String()),
			zap.String("unit_id", req.UnitID),
		)
		return nil, err
	}

	span.AddEvent("meter_reading_recorded", trace.WithAttributes(
		attribute.String("meter_units_consumed", result.UnitsConsumed.String()),
	))
	telemetry.SetOK(span)
	log.Info("Meter reading recorded",
		zap.String("utility", req.Utility.String()),
		zap.String("unit_id", req.UnitID),
		zap.String("reading", req.Reading.String()),
		zap.String("units_consumed", result.UnitsConsumed.String()),
	)
	return result, nil
}

func (s *ReadingService) record(ctx context.Context, req RecordReadingRequest) (*RecordReadingResult, error) {
	sub, err := metering.NewReadingSubmission(req.Utility, req.UnitID, req.TenantID, req.Reading, req.UnitPrice)
	if err != nil {
		return nil, err
	}

	before, err := s.History(ctx, sub.Utility, sub.UnitID)
	if err != nil {
		return nil, err
	}
	previous := before.Previous()
	if err := sub.ValidateAgainst(previous); err != nil {
		return nil, err
	}

	if err := s.repo.CreateReading(ctx, sub); err != nil {
		return nil, err
	}

	result := &RecordReadingResult{
		Previous:      previous,
		UnitsConsumed: sub.UnitsConsumed(previous),
	}
	if amount, priced := sub.AmountDue(previous); priced {
		result.EstimatedAmount = &amount
	}

	// The write succeeded; a failed refetch only leaves the view stale
	after, err := s.History(ctx, sub.Utility, sub.UnitID)
	if err != nil {
		s.logger.Warn("Failed to refresh meter history after write",
			zap.String("utility", sub.Utility.String()),
			zap.String("unit_id", sub.UnitID),
			zap.Error(err),
		)
		before.Splice(metering.MeterReading{
			UnitID:        sub.UnitID,
			TenantID:      sub.TenantID,
			Reading:       sub.Reading,
			UnitPrice:     sub.UnitPrice,
			UnitsConsumed: result.UnitsConsumed,
			DateRecorded:  s.now(),
		})
		after = before
	}
	result.History = NewHistoryView(after)
	result.Reading = after.Latest()
	return result, nil
}
