package ledger

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/pms/billing/internal/domain/ledger"
	"github.com/pms/billing/internal/domain/shared"
	"github.com/pms/billing/internal/infrastructure/logger"
	"github.com/pms/billing/internal/infrastructure/telemetry"
)

// Mutation names used for guard keys and metrics
const (
	OperationAdd    = "add"
	OperationPatch  = "patch"
	OperationDelete = "delete"
)

// LedgerService reads and edits the bill items of a tenancy. Every mutation is
// followed by a refetch so derived fields always reflect backend state.
type LedgerService struct {
	repo     ledger.Repository
	guard    shared.InFlightGuard
	inflight shared.InFlightConfig
	metrics  *telemetry.Metrics
	logger   *zap.Logger
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(
	repo ledger.Repository,
	guard shared.InFlightGuard,
	inflight shared.InFlightConfig,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !inflight.Enabled {
		guard = nil
	}
	return &LedgerService{
		repo:     repo,
		guard:    guard,
		inflight: inflight,
		metrics:  metrics,
		logger:   logger,
	}
}

// Tenancy identifies the ledger being edited
type Tenancy struct {
	TenantID string
	UnitID   string
}

func (t Tenancy) validate() error {
	var errs shared.ValidationErrors
	if strings.TrimSpace(t.TenantID) == "" {
		errs = append(errs, shared.NewValidationError("tenant_id", ledger.CodeTenancyRequired, "Tenant ID is required"))
	}
	if strings.TrimSpace(t.UnitID) == "" {
		errs = append(errs, shared.NewValidationError("unit_id", ledger.CodeTenancyRequired, "Unit ID is required"))
	}
	return errs.OrNil()
}

// AddBillItemRequest adds a charge to a tenancy
type AddBillItemRequest struct {
	Tenancy
	BillType string
	Amount   decimal.Decimal
}

// PatchBillItemRequest overrides the expected amount of one bill item
type PatchBillItemRequest struct {
	Tenancy
	BillItemID     string
	AmountExpected decimal.Decimal
}

// DeleteBillItemRequest removes one bill item
type DeleteBillItemRequest struct {
	Tenancy
	BillItemID string
}

// List returns the active ledger of a tenancy
func (s *LedgerService) List(ctx context.Context, t Tenancy) (*ledger.Ledger, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "list", telemetry.Tenancy(t.TenantID, t.UnitID)...)
	defer span.End()

	if err := t.validate(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	snap, err := s.repo.ListActive(ctx, t.TenantID, t.UnitID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	l := ledger.NewLedger(t.TenantID, t.UnitID, snap.Items, snap.BillTypes)
	span.SetAttributes(telemetry.AttrItemCount.Int(l.Len()))
	return l, nil
}

// Add creates a bill item and returns the refetched ledger
func (s *LedgerService) Add(ctx context.Context, req AddBillItemRequest) (*ledger.Ledger, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "add_bill_item", telemetry.Tenancy(req.TenantID, req.UnitID)...)
	defer span.End()

	span.SetAttributes(
		telemetry.AttrBillType.String(req.BillType),
		telemetry.AttrAmount.String(req.Amount.String()),
	)

	return s.mutate(ctx, span, OperationAdd, req.Tenancy, func(ctx context.Context) error {
		draft, err := ledger.NewBillItemDraft(req.UnitID, req.TenantID, req.BillType, req.Amount)
		if err != nil {
			return err
		}
		return s.repo.Add(ctx, draft)
	})
}

// Patch overrides an expected amount and returns the refetched ledger.
// The paid amount and the status are never sent; status is rederived from the refetch.
func (s *LedgerService) Patch(ctx context.Context, req PatchBillItemRequest) (*ledger.Ledger, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "patch_bill_item", telemetry.Tenancy(req.TenantID, req.UnitID)...)
	defer span.End()

	span.SetAttributes(
		telemetry.AttrBillItemID.String(req.BillItemID),
		telemetry.AttrAmount.String(req.AmountExpected.String()),
	)

	return s.mutate(ctx, span, OperationPatch, req.Tenancy, func(ctx context.Context) error {
		patch, err := ledger.NewAmountPatch(req.BillItemID, req.AmountExpected)
		if err != nil {
			return err
		}
		return s.repo.PatchExpected(ctx, patch)
	})
}

// Delete removes a bill item permanently and returns the refetched ledger
func (s *LedgerService) Delete(ctx context.Context, req DeleteBillItemRequest) (*ledger.Ledger, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "delete_bill_item", telemetry.Tenancy(req.TenantID, req.UnitID)...)
	defer span.End()

	span.SetAttributes(telemetry.AttrBillItemID.String(req.BillItemID))

	return s.mutate(ctx, span, OperationDelete, req.Tenancy, func(ctx context.Context) error {
		if strings.TrimSpace(req.BillItemID) == "" {
			return shared.NewValidationError("bill_item_id", ledger.CodeBillItemRequired, "Bill item ID is required")
		}
		return s.repo.Delete(ctx, strings.TrimSpace(req.BillItemID))
	})
}

// mutate runs one guarded write and refetches the ledger on success.
// A nil ledger with a nil error means the write was applied but the refetch failed.
func (s *LedgerService) mutate(
	ctx context.Context,
	span trace.Span,
	operation string,
	t Tenancy,
	write func(context.Context) error,
) (*ledger.Ledger, error) {
	log := logger.FromContextOr(ctx, s.logger).With(
		zap.String("operation", operation),
		zap.String("tenant_id", t.TenantID),
		zap.String("unit_id", t.UnitID),
	)

	err := t.validate()
	if err == nil {
		key := shared.InFlightKey("ledger."+operation, t.TenantID, t.UnitID)
		err = shared.Guarded(ctx, s.guard, key, s.inflight.TTL, write)
	}
	s.metrics.IncLedgerMutation(operation, telemetry.Outcome(err))
	if err != nil {
		telemetry.RecordError(span, err)
		logger.Failure(log, "Ledger mutation failed", err)
		return nil, err
	}
	log.Info("Ledger mutation applied")

	l, err := s.List(ctx, t)
	if err != nil {
		// the write went through; reporting it as failed would invite a duplicate retry
		span.AddEvent("ledger_refetch_failed")
		logger.Failure(log, "Failed to refetch ledger after mutation", err)
		l = nil
	}
	telemetry.SetOK(span)
	return l, nil
}
