package recyclebin

import (
	"context"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pms/billing/internal/domain/recyclebin"
	"github.com/pms/billing/internal/domain/shared"
	"github.com/pms/billing/internal/infrastructure/logger"
	"github.com/pms/billing/internal/infrastructure/telemetry"
)

// DefaultBulkConcurrency bounds the per-item requests of one bulk commit
const DefaultBulkConcurrency = 8

// RecycleBinService lists, restores and permanently deletes soft-deleted
// properties, tenants and landlords
type RecycleBinService struct {
	repo        recyclebin.Repository
	guard       shared.InFlightGuard
	inflight    shared.InFlightConfig
	concurrency int
	metrics     *telemetry.Metrics
	logger      *zap.Logger
}

// NewRecycleBinService creates a new RecycleBinService
func NewRecycleBinService(
	repo recyclebin.Repository,
	guard shared.InFlightGuard,
	inflight shared.InFlightConfig,
	concurrency int,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
) *RecycleBinService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !inflight.Enabled {
		guard = nil
	}
	if concurrency <= 0 {
		concurrency = DefaultBulkConcurrency
	}
	return &RecycleBinService{
		repo:        repo,
		guard:       guard,
		inflight:    inflight,
		concurrency: concurrency,
		metrics:     metrics,
		logger:      logger,
	}
}

// BulkResult reports a fully successful bulk commit
type BulkResult struct {
	Kind      recyclebin.Kind   `json:"kind"`
	Action    recyclebin.Action `json:"action"`
	Succeeded []string          `json:"succeeded"`
}

// List returns one page of soft-deleted entities of a kind, none of them checked
func (s *RecycleBinService) List(ctx context.Context, kind recyclebin.Kind, page shared.Page) (*shared.Paginated[recyclebin.RecyclableEntity], error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "recyclebin", "list",
		telemetry.AttrKind.String(kind.String()),
		attribute.Int("page", page.Number),
	)
	defer span.End()

	if !kind.IsValid() {
		err := shared.NewValidationError("kind", recyclebin.CodeKindInvalid, "Kind must be property, tenant or landlord")
		telemetry.RecordError(span, err)
		return nil, err
	}

	result, err := s.repo.ListDeleted(ctx, kind, page.Normalize())
	if err != nil {
		telemetry.RecordError(span, err)
		logger.Failure(logger.FromContextOr(ctx, s.logger), "Failed to list recycle bin", err,
			zap.String("kind", kind.String()))
		return nil, err
	}
	for i := range result.Items {
		result.Items[i].Checked = false
	}
	span.SetAttributes(telemetry.AttrItemCount.Int(len(result.Items)))
	return result, nil
}

// RestoreOne restores a single entity
func (s *RecycleBinService) RestoreOne(ctx context.Context, kind recyclebin.Kind, id string) error {
	return s.applyOne(ctx, kind, recyclebin.ActionRestore, id)
}

// DeleteOne permanently deletes a single entity
func (s *RecycleBinService) DeleteOne(ctx context.Context, kind recyclebin.Kind, id string) error {
	return s.applyOne(ctx, kind, recyclebin.ActionDelete, id)
}

func (s *RecycleBinService) applyOne(ctx context.Context, kind recyclebin.Kind, action recyclebin.Action, id string) error {
	id = strings.TrimSpace(id)
	ctx, span := telemetry.StartServiceSpan(ctx, "recyclebin", string(action),
		telemetry.AttrKind.String(kind.String()),
		telemetry.AttrAction.String(string(action)),
		telemetry.AttrEntityID.String(id),
	)
	defer span.End()

	log := logger.FromContextOr(ctx, s.logger).With(
		zap.String("kind", kind.String()),
		zap.String("action", string(action)),
		zap.String("entity_id", id),
	)

	err := validate(kind, action, []string{id})
	if err == nil {
		key := shared.InFlightKey("trash."+kind.String(), id)
		err = shared.Guarded(ctx, s.guard, key, s.inflight.TTL, func(ctx context.Context) error {
			return recyclebin.Apply(ctx, s.repo, kind, action, id)
		})
	}

	s.metrics.IncRecycleBinOperation(kind.String(), string(action), telemetry.Outcome(err))
	if err != nil {
		telemetry.RecordError(span, err)
		logger.Failure(log, "Recycle bin operation failed", err)
		return err
	}
	telemetry.SetOK(span)
	log.Info("Recycle bin operation applied")
	return nil
}

// CommitBulk fires one request per distinct id concurrently and waits for all
// of them. The batch succeeds only if every request succeeds; otherwise a
// *recyclebin.BatchError attributes each failure to its id.
func (s *RecycleBinService) CommitBulk(ctx context.Context, kind recyclebin.Kind, action recyclebin.Action, ids []string) (*BulkResult, error) {
	ids = distinctIDs(ids)
	ctx, span := telemetry.StartServiceSpan(ctx, "recyclebin", "commit_bulk",
		telemetry.AttrKind.String(kind.String()),
		telemetry.AttrAction.String(string(action)),
		telemetry.AttrItemCount.Int(len(ids)),
	)
	defer span.End()

	log := logger.FromContextOr(ctx, s.logger).With(
		zap.String("kind", kind.String()),
		zap.String("action", string(action)),
		zap.Int("count", len(ids)),
	)

	var result *BulkResult
	err := validate(kind, action, ids)
	if err == nil {
		key := shared.InFlightKey("trash.bulk", kind.String())
		err = shared.Guarded(ctx, s.guard, key, s.inflight.TTL, func(ctx context.Context) error {
			var err error
			result, err = s.fanOut(ctx, kind, action, ids)
			return err
		})
	}

	s.metrics.IncRecycleBinBatch(kind.String(), string(action), telemetry.Outcome(err))
	if err != nil {
		telemetry.RecordError(span, err)
		logger.Failure(log, "Bulk recycle bin commit failed", err)
		return nil, err
	}
	telemetry.SetOK(span)
	log.Info("Bulk recycle bin commit applied")
	return result, nil
}

func (s *RecycleBinService) fanOut(ctx context.Context, kind recyclebin.Kind, action recyclebin.Action, ids []string) (*BulkResult, error) {
	var (
		mu        sync.Mutex
		succeeded = make(map[string]struct{}, len(ids))
		failures  = make(map[string]error)
	)

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			err := recyclebin.Apply(ctx, s.repo, kind, action, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[id] = err
			} else {
				succeeded[id] = struct{}{}
			}
			// every item runs to completion so each failure can be attributed
			return nil
		})
	}
	_ = g.Wait()

	// report in request order
	okIDs := make([]string, 0, len(succeeded))
	batchErr := &recyclebin.BatchError{Kind: kind, Action: action, Total: len(ids)}
	for _, id := range ids {
		if err, failed := failures[id]; failed {
			batchErr.Failures = append(batchErr.Failures, recyclebin.ItemFailure{ID: id, Err: err})
			continue
		}
		okIDs = append(okIDs, id)
	}
	if len(batchErr.Failures) > 0 {
		batchErr.Succeeded = okIDs
		return nil, batchErr
	}
	return &BulkResult{Kind: kind, Action: action, Succeeded: okIDs}, nil
}

// Load fetches a page into bin, keeping checks on entities still visible
func (s *RecycleBinService) Load(ctx context.Context, bin *recyclebin.Bin, page shared.Page) (*shared.Paginated[recyclebin.RecyclableEntity], error) {
	result, err := s.List(ctx, bin.Kind(), page)
	if err != nil {
		return nil, err
	}
	bin.Load(result.Items)
	return result, nil
}

// ApplyOne acts on a single entity of bin and drops it from the page on success
func (s *RecycleBinService) ApplyOne(ctx context.Context, bin *recyclebin.Bin, action recyclebin.Action, id string) error {
	if err := s.applyOne(ctx, bin.Kind(), action, id); err != nil {
		return err
	}
	bin.Remove(strings.TrimSpace(id))
	return nil
}

// Commit runs the armed action on every checked entity of bin. Entities are
// removed from the page and bulk mode is left only when the whole batch
// succeeded; on failure the bin is untouched so the operator can retry.
func (s *RecycleBinService) Commit(ctx context.Context, bin *recyclebin.Bin) (*BulkResult, error) {
	if !bin.Armed() {
		return nil, shared.NewValidationError("selection", recyclebin.CodeNothingArmed, "Bulk mode is not active")
	}
	result, err := s.CommitBulk(ctx, bin.Kind(), bin.Action(), bin.Checked())
	if err != nil {
		return nil, err
	}
	bin.Remove(result.Succeeded...)
	bin.Disarm()
	return result, nil
}

// distinctIDs trims ids and drops repeats, keeping first-seen order. A second
// delete of the same entity would fail with not-found after the first succeeded.
func distinctIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func validate(kind recyclebin.Kind, action recyclebin.Action, ids []string) error {
	var errs shared.ValidationErrors
	if !kind.IsValid() {
		errs = append(errs, shared.NewValidationError("kind", recyclebin.CodeKindInvalid, "Kind must be property, tenant or landlord"))
	}
	if !action.IsValid() {
		errs = append(errs, shared.NewValidationError("action", recyclebin.CodeActionInvalid, "Action must be restore or delete"))
	}
	if len(ids) == 0 {
		errs = append(errs, shared.NewValidationError("ids", recyclebin.CodeNothingArmed, "No entity is checked"))
	}
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			errs = append(errs, shared.NewValidationError("ids", recyclebin.CodeIDRequired, "Entity ID is required"))
			break
		}
	}
	return errs.OrNil()
}
