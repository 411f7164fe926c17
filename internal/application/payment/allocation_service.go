package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pms/billing/internal/domain/ledger"
	"github.com/pms/billing/internal/domain/payment"
	"github.com/pms/billing/internal/domain/shared"
	"github.com/pms/billing/internal/infrastructure/logger"
	"github.com/pms/billing/internal/infrastructure/telemetry"
)

// CodeBillItemUnknown is raised when a selected id is not in the active ledger
const CodeBillItemUnknown = "BILL_ITEM_UNKNOWN"

// AllocationService submits one payment against a selection of bill items
type AllocationService struct {
	ledgers  ledger.Repository
	gateway  payment.Gateway
	guard    shared.InFlightGuard
	inflight shared.InFlightConfig
	metrics  *telemetry.Metrics
	logger   *zap.Logger
	now      func() time.Time
	newKey   func() string
}

// NewAllocationService creates a new AllocationService
func NewAllocationService(
	ledgers ledger.Repository,
	gateway payment.Gateway,
	guard shared.InFlightGuard,
	inflight shared.InFlightConfig,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
) *AllocationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !inflight.Enabled {
		guard = nil
	}
	return &AllocationService{
		ledgers:  ledgers,
		gateway:  gateway,
		guard:    guard,
		inflight: inflight,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
		newKey:   uuid.NewString,
	}
}

// AllocateRequest is one payment against the selected bill items of a tenancy
type AllocateRequest struct {
	TenantID    string
	UnitID      string
	BillItemIDs []string
	Method      payment.Method
	Fields      payment.Fields
}

// Allocation is an accepted payment and the refetched ledger
type Allocation struct {
	payment.Result
	// Ledger is nil when the refetch after an accepted payment failed
	Ledger *ledger.Ledger `json:"-"`
}

// Quote is the informational total of a selection
type Quote struct {
	Items        []ledger.BillItem `json:"items"`
	Total        decimal.Decimal   `json:"selected_total"`
	Descriptions []string          `json:"description"`
}

// Quote resolves ids against the active ledger and totals them without submitting anything
func (s *AllocationService) Quote(ctx context.Context, tenantID, unitID string, ids []string) (*Quote, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "quote",
		append(telemetry.Tenancy(tenantID, unitID), telemetry.AttrItemCount.Int(len(ids)))...,
	)
	defer span.End()

	sel, err := s.resolveSelection(ctx, tenantID, unitID, ids)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return &Quote{
		Items:        sel.Items(),
		Total:        sel.Total(),
		Descriptions: sel.Descriptions(),
	}, nil
}

// Allocate validates and submits a payment. Validation failures never reach the
// backend. The selected total is informational: a different amount is accepted
// and flagged as a mismatch.
func (s *AllocationService) Allocate(ctx context.Context, req AllocateRequest) (*Allocation, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "allocate", telemetry.Tenancy(req.TenantID, req.UnitID)...)
	defer span.End()

	span.SetAttributes(
		telemetry.AttrMethod.String(req.Method.String()),
		telemetry.AttrItemCount.Int(len(req.BillItemIDs)),
	)
	log := logger.FromContextOr(ctx, s.logger).With(
		zap.String("tenant_id", req.TenantID),
		zap.String("unit_id", req.UnitID),
		zap.String("payment_method", req.Method.String()),
	)

	var allocation *Allocation
	key := shared.InFlightKey("payment", req.TenantID, req.UnitID)
	err := shared.Guarded(ctx, s.guard, key, s.inflight.TTL, func(ctx context.Context) error {
		var err error
		allocation, err = s.allocate(ctx, req)
		return err
	})

	s.metrics.IncPayment(req.Method.String(), telemetry.Outcome(err))
	if err != nil {
		telemetry.RecordError(span, err)
		logger.Failure(log, "Payment not accepted", err)
		return nil, err
	}

	span.SetAttributes(
		telemetry.AttrRoute.String(string(allocation.Receipt.Route)),
		telemetry.AttrAmount.String(allocation.Amount.String()),
	)
	telemetry.SetOK(span)
	log.Info("Payment accepted",
		zap.String("route", string(allocation.Receipt.Route)),
		zap.String("amount", allocation.Amount.String()),
		zap.String("selected_total", allocation.SelectedTotal.String()),
		zap.Bool("amount_mismatch", allocation.Mismatch),
		zap.String("transaction_id", allocation.Receipt.TransactionID),
		zap.String("checkout_request_id", allocation.Receipt.CheckoutRequestID),
	)
	return allocation, nil
}

func (s *AllocationService) allocate(ctx context.Context, req AllocateRequest) (*Allocation, error) {
	form := payment.NewForm(req.UnitID, req.TenantID)

	// An empty selection is rejected by the form without touching the backend;
	// otherwise the fields are checked before the ledger is read.
	if len(req.BillItemIDs) > 0 {
		if err := payment.ValidateFields(req.UnitID, req.TenantID, req.Method, req.Fields); err != nil {
			return nil, err
		}
		sel, err := s.resolveSelection(ctx, req.TenantID, req.UnitID, req.BillItemIDs)
		if err != nil {
			return nil, err
		}
		form.Selection().SelectAll(sel.Items())
	}

	if err := form.SelectMethod(req.Method); err != nil {
		return nil, err
	}
	if err := form.Fill(req.Fields, s.now()); err != nil {
		return nil, err
	}
	sub, err := form.Begin()
	if err != nil {
		return nil, err
	}

	selectedTotal := form.Selection().Total()
	receipt, submitErr := s.gateway.Submit(ctx, sub, s.newKey())
	if err := form.Resolve(submitErr); err != nil {
		return nil, err
	}
	if submitErr != nil {
		return nil, submitErr
	}
	if receipt == nil {
		receipt = &payment.Receipt{Route: sub.Rail().Route}
	}

	allocation := &Allocation{
		Result: payment.Result{
			Receipt:       *receipt,
			Method:        sub.Method,
			Amount:        sub.Amount,
			SelectedTotal: selectedTotal,
			Descriptions:  sub.Descriptions,
			Mismatch:      !sub.Amount.Equal(selectedTotal),
		},
	}

	snap, err := s.ledgers.ListActive(ctx, req.TenantID, req.UnitID)
	if err != nil {
		logger.FromContextOr(ctx, s.logger).Warn("Failed to refetch ledger after payment", zap.Error(err))
		return allocation, nil
	}
	allocation.Ledger = ledger.NewLedger(req.TenantID, req.UnitID, snap.Items, snap.BillTypes)
	return allocation, nil
}

// resolveSelection maps ids onto the current ledger; unknown ids are a validation failure
func (s *AllocationService) resolveSelection(ctx context.Context, tenantID, unitID string, ids []string) (*payment.Selection, error) {
	if strings.TrimSpace(tenantID) == "" || strings.TrimSpace(unitID) == "" {
		return nil, shared.NewValidationError("tenancy", payment.CodeTenancyRequired, "Unit and tenant are required")
	}
	snap, err := s.ledgers.ListActive(ctx, tenantID, unitID)
	if err != nil {
		return nil, err
	}
	l := ledger.NewLedger(tenantID, unitID, snap.Items, snap.BillTypes)

	found, missing := l.FindByIDs(ids)
	if len(missing) > 0 {
		return nil, shared.NewValidationError("bill_item_ids", CodeBillItemUnknown,
			fmt.Sprintf("Bill items not in the active ledger: %s", strings.Join(missing, ", ")))
	}

	sel := payment.NewSelection()
	sel.SelectAll(found)
	return sel, nil
}
