package application

import (
	"context"
	"fmt"
	"time"

	"github.com/wms-platform/batching-service/internal/domain"
	"github.com/wms-platform/batching-service/pkg/errors"
	"github.com/wms-platform/batching-service/pkg/logging"
)

// BatchApplicationService handles batch allocation, task sequencing,
// unpickable recovery and drop-off use cases
type BatchApplicationService struct {
	repo   domain.BatchRepository
	store  domain.WarehouseStore
	tx     domain.TransactionRunner
	logger *logging.Logger
}

// NewBatchApplicationService creates a new BatchApplicationService
func NewBatchApplicationService(
	repo domain.BatchRepository,
	store domain.WarehouseStore,
	tx domain.TransactionRunner,
	logger *logging.Logger,
) *BatchApplicationService {
	return &BatchApplicationService{
		repo:   repo,
		store:  store,
		tx:     tx,
		logger: logger,
	}
}

// resolveUser resolves the user an allocation call acts for. A nil user
// means the caller acts for themselves; an explicit empty user is a
// request that cannot be attributed and is rejected.
func (s *BatchApplicationService) resolveUser(callerID string, userID *string) (string, error) {
	if userID == nil {
		if callerID == "" {
			return "", &domain.InvalidUserError{}
		}
		return callerID, nil
	}
	if *userID == "" {
		return "", &domain.InvalidUserError{}
	}
	return *userID, nil
}

// GetSingleBatch returns the user's single in-progress batch, or nil
// when the user has none. Finding more than one is an invariant
// violation and is reported, never repaired.
func (s *BatchApplicationService) GetSingleBatch(ctx context.Context, query GetSingleBatchQuery) (*BatchDTO, error) {
	userID, err := s.resolveUser(query.CallerID, query.UserID)
	if err != nil {
		return nil, err
	}

	batches, err := s.repo.FindInProgressByUser(ctx, userID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to find batches for user", "userId", userID)
		return nil, fmt.Errorf("failed to find batches for user: %w", err)
	}

	switch len(batches) {
	case 0:
		return nil, nil
	case 1:
		return ToBatchDTO(batches[0]), nil
	default:
		s.logger.Error("Multiple in-progress batches for one user", "userId", userID, "count", len(batches))
		return nil, &domain.InconsistentStateError{UserID: userID, Count: len(batches)}
	}
}

// CreateBatch allocates a new batch to the user: first their previous
// work is reconciled strictly, then the highest-ranked eligible picking
// is claimed. Returns nil without error when no work is available.
func (s *BatchApplicationService) CreateBatch(ctx context.Context, cmd CreateBatchCommand) (*BatchDTO, error) {
	userID, err := s.resolveUser(cmd.CallerID, cmd.UserID)
	if err != nil {
		return nil, err
	}

	if _, err := s.reconcileUserBatches(ctx, userID, nil, true); err != nil {
		return nil, err
	}

	var batch *domain.Batch
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		picking, err := s.store.NextEligiblePicking(ctx, cmd.TypeID, cmd.Priorities)
		if err != nil {
			return fmt.Errorf("failed to find eligible picking: %w", err)
		}
		if picking == nil {
			return nil
		}

		batch = domain.NewBatch(userID)
		batch.AttachPicking(picking.PickingID)

		if err := s.store.SetPickingBatch(ctx, []string{picking.PickingID}, batch.BatchID); err != nil {
			return fmt.Errorf("failed to assign picking to batch: %w", err)
		}
		if err := s.repo.Save(ctx, batch); err != nil {
			return fmt.Errorf("failed to save batch: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.WithError(err).Error("Failed to create batch", "userId", userID)
		return nil, err
	}

	if batch == nil {
		s.logger.Info("No eligible pickings for new batch", "userId", userID, "typeId", cmd.TypeID)
		return nil, nil
	}

	s.logger.Event(ctx, "batch.created", map[string]any{
		"batchId": batch.BatchID,
		"userId":  userID,
	})

	return ToBatchDTO(batch), nil
}

// ReconcileBatches closes out the user's in-progress batches: not-ready
// pickings are returned to the pool, and batches whose remaining
// pickings are all terminal are completed. In strict mode any picking
// still requiring work aborts the reconcile.
func (s *BatchApplicationService) ReconcileBatches(ctx context.Context, cmd ReconcileBatchesCommand) ([]BatchDTO, error) {
	userID, err := s.resolveUser(cmd.CallerID, cmd.UserID)
	if err != nil {
		return nil, err
	}

	batches, err := s.reconcileUserBatches(ctx, userID, cmd.BatchIDs, cmd.Strict)
	if err != nil {
		return nil, err
	}

	dtos := make([]BatchDTO, 0, len(batches))
	for _, b := range batches {
		dtos = append(dtos, *ToBatchDTO(b))
	}
	return dtos, nil
}

// reconcileUserBatches applies the reconcile pass to the user's
// in-progress batches, optionally restricted to the given batch ids.
func (s *BatchApplicationService) reconcileUserBatches(ctx context.Context, userID string, batchIDs []string, strict bool) ([]*domain.Batch, error) {
	batches, err := s.repo.FindInProgressByUser(ctx, userID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to find batches for user", "userId", userID)
		return nil, fmt.Errorf("failed to find batches for user: %w", err)
	}

	if len(batchIDs) > 0 {
		wanted := make(map[string]struct{}, len(batchIDs))
		for _, id := range batchIDs {
			wanted[id] = struct{}{}
		}
		filtered := batches[:0]
		for _, b := range batches {
			if _, ok := wanted[b.BatchID]; ok {
				filtered = append(filtered, b)
			}
		}
		batches = filtered
	}

	for _, batch := range batches {
		if err := s.reconcileBatch(ctx, batch, strict); err != nil {
			return nil, err
		}
	}
	return batches, nil
}

// reconcileBatch applies one reconcile pass to a single batch inside a
// transaction. Validation (the strict incomplete-work check) happens
// before any mutation so a rejected reconcile leaves the batch intact.
func (s *BatchApplicationService) reconcileBatch(ctx context.Context, batch *domain.Batch, strict bool) error {
	pickings, err := s.store.FindPickingsByBatch(ctx, batch.BatchID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load pickings for batch", "batchId", batch.BatchID)
		return fmt.Errorf("failed to load pickings for batch: %w", err)
	}

	notReady := make([]*domain.Picking, 0)
	incomplete := make([]string, 0)
	for _, p := range pickings {
		switch {
		case p.State.NotReady():
			notReady = append(notReady, p)
		case !p.State.Terminal():
			incomplete = append(incomplete, p.Name)
		}
	}

	if strict && len(incomplete) > 0 {
		return &domain.IncompleteWorkError{PickingNames: incomplete}
	}

	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if len(notReady) > 0 {
			ids := make([]string, 0, len(notReady))
			for _, p := range notReady {
				ids = append(ids, p.PickingID)
				batch.DetachPicking(p.PickingID)
			}
			if err := s.store.SetPickingBatch(ctx, ids, ""); err != nil {
				return fmt.Errorf("failed to release not-ready pickings: %w", err)
			}
		}

		if len(incomplete) == 0 {
			batch.MarkDone()
		}

		if err := s.repo.Save(ctx, batch); err != nil {
			return fmt.Errorf("failed to save batch: %w", err)
		}
		return nil
	})
}

// GetNextTask computes the next unit of work for a batch. An empty task
// (no move lines) means the batch has nothing left to pick.
func (s *BatchApplicationService) GetNextTask(ctx context.Context, query GetNextTaskQuery) (*TaskDTO, error) {
	batch, err := s.findBatch(ctx, query.BatchID)
	if err != nil {
		return nil, err
	}

	pickings, err := s.store.FindPickingsByBatch(ctx, batch.BatchID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load pickings for batch", "batchId", batch.BatchID)
		return nil, fmt.Errorf("failed to load pickings for batch: %w", err)
	}

	assigned := make([]string, 0, len(pickings))
	policies := make(map[string]domain.ScanPolicy, len(pickings))
	for _, p := range pickings {
		if p.State != domain.PickingStateAssigned {
			continue
		}
		assigned = append(assigned, p.PickingID)

		pType, err := s.store.PickingType(ctx, p.TypeID)
		if err != nil {
			return nil, fmt.Errorf("failed to load picking type: %w", err)
		}
		if pType != nil && pType.UserScans != "" {
			policies[p.PickingID] = pType.UserScans
		}
	}

	lines, err := s.store.FindMoveLinesByPickings(ctx, assigned)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load move lines for batch", "batchId", batch.BatchID)
		return nil, fmt.Errorf("failed to load move lines for batch: %w", err)
	}

	task := domain.PlanNextTask(lines, policies, query.SkippedProductIDs)
	return ToTaskDTO(task), nil
}

// MarkUnpickable reports stock that cannot be picked. All validation
// happens up front; only once the report is fully validated are the
// affected lines backordered, the stock sent for investigation and the
// picking re-reserved.
func (s *BatchApplicationService) MarkUnpickable(ctx context.Context, cmd MarkUnpickableCommand) (*BatchDTO, error) {
	batch, err := s.findBatch(ctx, cmd.BatchID)
	if err != nil {
		return nil, err
	}
	if batch.State != domain.BatchStateInProgress {
		return nil, &domain.WrongStateError{BatchID: batch.BatchID, State: batch.State}
	}

	target, err := s.resolveUnpickableTarget(ctx, batch, cmd)
	if err != nil {
		return nil, err
	}

	picking, err := s.store.FindPicking(ctx, target.pickingID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load picking", "pickingId", target.pickingID)
		return nil, fmt.Errorf("failed to load picking: %w", err)
	}
	if picking == nil {
		return nil, &domain.NotInBatchError{PickingID: target.pickingID, BatchID: batch.BatchID}
	}
	if picking.State.Terminal() {
		return nil, &domain.AlreadyCompletedError{PickingID: picking.PickingID, State: picking.State}
	}

	typeID := cmd.TypeID
	if typeID == "" {
		typeID, err = s.store.DefaultInternalTypeID(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve investigation picking type: %w", err)
		}
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.PostNote(ctx, picking.PickingID, cmd.Reason); err != nil {
			return fmt.Errorf("failed to record unpickable reason: %w", err)
		}

		workingID := picking.PickingID
		backordered := false
		if target.partial {
			// Split the affected lines off so the rest of the picking
			// is untouched by the unreserve below.
			bo, err := s.store.Backorder(ctx, picking.PickingID, target.lineIDs)
			if err != nil {
				return fmt.Errorf("failed to backorder unpickable lines: %w", err)
			}
			workingID = bo.PickingID
			backordered = true
		}

		if err := s.store.UnreservePicking(ctx, workingID, cmd.Reason); err != nil {
			return fmt.Errorf("failed to unreserve picking: %w", err)
		}

		group, err := s.store.EnsureGroup(ctx, cmd.Reason)
		if err != nil {
			return fmt.Errorf("failed to resolve procurement group: %w", err)
		}

		investigation, err := s.store.CreatePicking(ctx, domain.PickingSpec{
			QuantIDs:     target.quantIDs,
			LocationID:   target.locationID,
			TypeID:       typeID,
			GroupID:      group.GroupID,
			AllowPartial: target.allowPartial,
		})
		if err != nil {
			return fmt.Errorf("failed to create investigation picking: %w", err)
		}

		state, err := s.store.ReassignPicking(ctx, workingID)
		if err != nil {
			return fmt.Errorf("failed to reassign picking: %w", err)
		}

		if state != domain.PickingStateAssigned {
			// Nothing could be re-reserved: the condemned stock is held
			// by the investigation, so the picking is cancelled and
			// leaves the batch.
			if err := s.store.CancelPicking(ctx, workingID, cmd.Reason); err != nil {
				return fmt.Errorf("failed to cancel picking: %w", err)
			}
			batch.DetachPicking(workingID)
			if err := s.store.SetPickingBatch(ctx, []string{workingID}, ""); err != nil {
				return fmt.Errorf("failed to release picking: %w", err)
			}
		} else if backordered {
			// The split lines reserved again: fold them back into the
			// original picking so the batch keeps one picking.
			if err := s.store.MergeLines(ctx, workingID, picking.PickingID); err != nil {
				return fmt.Errorf("failed to merge backorder lines: %w", err)
			}
			if err := s.store.DeletePicking(ctx, workingID); err != nil {
				return fmt.Errorf("failed to remove merged backorder: %w", err)
			}
		}

		batch.AddDomainEvent(&domain.UnpickableReportedEvent{
			BatchID:       batch.BatchID,
			PickingID:     picking.PickingID,
			Reason:        cmd.Reason,
			ProductID:     target.productID,
			LocationID:    target.locationID,
			Investigation: investigation.PickingID,
			ReportedAt:    time.Now(),
		})

		if done, err := s.batchOutOfWork(ctx, batch); err != nil {
			return err
		} else if done {
			batch.MarkDone()
		}

		return s.repo.Save(ctx, batch)
	})
	if err != nil {
		s.logger.WithError(err).Error("Failed to mark unpickable", "batchId", batch.BatchID)
		return nil, err
	}

	s.logger.Event(ctx, "batch.unpickable", map[string]any{
		"batchId":   batch.BatchID,
		"pickingId": target.pickingID,
		"productId": target.productID,
		"reason":    cmd.Reason,
	})

	return ToBatchDTO(batch), nil
}

// unpickableTarget is the fully validated subject of an unpickable
// report: the move lines affected, the picking they belong to and the
// quants to send for investigation.
type unpickableTarget struct {
	pickingID  string
	productID  string
	locationID string
	lineIDs    []string
	quantIDs   []string
	// partial is true when only some of the picking's outstanding
	// lines are affected, so a backorder split is required.
	partial bool
	// allowPartial is carried onto the investigation picking: product
	// reports may investigate part of a quant, package reports always
	// take the whole package.
	allowPartial bool
}

// resolveUnpickableTarget validates an unpickable report against the
// batch's move lines. It performs no mutation; every rejection leaves
// the warehouse untouched. The checks run in a fixed order: location
// presence, package ambiguity, matching lines, batch membership.
func (s *BatchApplicationService) resolveUnpickableTarget(ctx context.Context, batch *domain.Batch, cmd MarkUnpickableCommand) (*unpickableTarget, error) {
	// A report naming neither a product nor a package would match every
	// outstanding line in the batch.
	if cmd.ProductRef == "" && cmd.PackageName == "" {
		return nil, errors.ErrValidation("an unpickable report must name a product or a package")
	}

	target := &unpickableTarget{}

	var product *domain.Product
	if cmd.ProductRef != "" {
		p, err := s.store.ResolveProduct(ctx, cmd.ProductRef)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve product: %w", err)
		}
		if p == nil {
			return nil, &domain.NoMatchingMoveLinesError{BatchID: batch.BatchID}
		}
		product = p
		target.productID = p.ProductID
		target.allowPartial = true

		if cmd.LocationRef == "" {
			return nil, &domain.MissingLocationError{ProductID: p.ProductID}
		}
	}

	var location *domain.Location
	if cmd.LocationRef != "" {
		loc, err := s.store.ResolveLocation(ctx, cmd.LocationRef)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve location: %w", err)
		}
		if loc == nil {
			return nil, &domain.UnknownLocationError{Ref: cmd.LocationRef}
		}
		location = loc
		target.locationID = loc.LocationID
	}

	var pkg *domain.StockPackage
	if cmd.PackageName != "" {
		pk, err := s.store.ResolvePackage(ctx, cmd.PackageName)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve package: %w", err)
		}
		if pk == nil {
			return nil, &domain.NoMatchingMoveLinesError{BatchID: batch.BatchID}
		}
		pkg = pk
	}

	lines, err := s.store.FindMoveLinesByPickings(ctx, batch.PickingIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load move lines for batch: %w", err)
	}

	matched := make([]domain.MoveLine, 0)
	outstanding := 0
	for _, ml := range lines {
		if ml.Completed() {
			continue
		}
		outstanding++
		if product != nil && ml.ProductID != product.ProductID {
			continue
		}
		if location != nil && ml.LocationID != location.LocationID {
			continue
		}
		if pkg != nil && ml.PackageID != pkg.PackageID {
			continue
		}
		if cmd.LotID != "" && ml.LotID != cmd.LotID {
			continue
		}
		matched = append(matched, ml)
	}

	// A product report that lands on packaged stock needs the package
	// named explicitly: picking one package to condemn is guesswork.
	if product != nil && pkg == nil {
		for _, ml := range matched {
			if ml.PackageID != "" {
				return nil, &domain.AmbiguousPackageError{ProductID: product.ProductID}
			}
		}
	}

	if len(matched) == 0 {
		return nil, &domain.NoMatchingMoveLinesError{BatchID: batch.BatchID}
	}

	pickingID := matched[0].PickingID
	for _, ml := range matched {
		if ml.PickingID != pickingID {
			return nil, &domain.NotInBatchError{PickingID: ml.PickingID, BatchID: batch.BatchID}
		}
		target.lineIDs = append(target.lineIDs, ml.LineID)
	}
	if !batch.HasPicking(pickingID) {
		return nil, &domain.NotInBatchError{PickingID: pickingID, BatchID: batch.BatchID}
	}
	target.pickingID = pickingID
	target.partial = len(matched) < outstanding

	if target.locationID == "" && len(matched) > 0 {
		target.locationID = matched[0].LocationID
	}

	if pkg != nil {
		quants, err := s.store.QuantsForPackage(ctx, pkg.PackageID)
		if err != nil {
			return nil, fmt.Errorf("failed to load quants for package: %w", err)
		}
		for _, q := range quants {
			target.quantIDs = append(target.quantIDs, q.QuantID)
		}
	} else {
		quants, err := s.store.QuantsForLines(ctx, target.lineIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to load quants for move lines: %w", err)
		}
		for _, q := range quants {
			target.quantIDs = append(target.quantIDs, q.QuantID)
		}
	}

	return target, nil
}

// DropOff completes the picked portion of a batch at a destination.
// Started lines are redirected to the drop location, each picking is
// validated (backordering untouched lines first), and unless the user
// continues the batch it is reconciled non-strictly.
func (s *BatchApplicationService) DropOff(ctx context.Context, cmd DropOffCommand) (*BatchDTO, error) {
	batch, err := s.findBatch(ctx, cmd.BatchID)
	if err != nil {
		return nil, err
	}
	if batch.State != domain.BatchStateInProgress {
		return nil, &domain.WrongStateError{BatchID: batch.BatchID, State: batch.State}
	}

	var location *domain.Location
	if cmd.LocationRef != "" {
		location, err = s.store.ResolveLocation(ctx, cmd.LocationRef)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve location: %w", err)
		}
		if location == nil {
			return nil, &domain.UnknownLocationError{Ref: cmd.LocationRef}
		}
	}

	pickings, err := s.store.FindPickingsByBatch(ctx, batch.BatchID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load pickings for batch", "batchId", batch.BatchID)
		return nil, fmt.Errorf("failed to load pickings for batch: %w", err)
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		for _, p := range pickings {
			if p.State.Terminal() || p.State.NotReady() {
				continue
			}

			lines, err := s.store.FindMoveLinesByPickings(ctx, []string{p.PickingID})
			if err != nil {
				return fmt.Errorf("failed to load move lines: %w", err)
			}

			started := make([]string, 0, len(lines))
			untouched := make([]string, 0, len(lines))
			for _, ml := range lines {
				if ml.Started() {
					started = append(started, ml.LineID)
				} else {
					untouched = append(untouched, ml.LineID)
				}
			}
			if len(started) == 0 {
				continue
			}

			if location != nil {
				if err := s.store.SetDestination(ctx, started, location.LocationID); err != nil {
					return fmt.Errorf("failed to set drop-off destination: %w", err)
				}
			}

			validateID := p.PickingID
			if len(untouched) > 0 {
				// Validate only what was picked; the rest stays live on
				// the original picking.
				bo, err := s.store.Backorder(ctx, p.PickingID, started)
				if err != nil {
					return fmt.Errorf("failed to split picked lines: %w", err)
				}
				validateID = bo.PickingID
			}

			if err := s.store.ValidatePicking(ctx, validateID); err != nil {
				return fmt.Errorf("failed to validate picking: %w", err)
			}
		}

		batch.AddDomainEvent(&domain.DropOffCompletedEvent{
			BatchID:       batch.BatchID,
			LocationID:    dropLocationID(location),
			PickingIDs:    append([]string(nil), batch.PickingIDs...),
			ContinueBatch: cmd.ContinueBatch,
			DroppedAt:     time.Now(),
		})

		return s.repo.Save(ctx, batch)
	})
	if err != nil {
		s.logger.WithError(err).Error("Failed to drop off batch", "batchId", batch.BatchID)
		return nil, err
	}

	if !cmd.ContinueBatch {
		// The operator is stepping away: every picking still not
		// terminal, partially picked or not, returns to the pool.
		err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			remaining, err := s.store.FindPickingsByBatch(ctx, batch.BatchID)
			if err != nil {
				return fmt.Errorf("failed to load pickings for batch: %w", err)
			}

			ids := make([]string, 0, len(remaining))
			for _, p := range remaining {
				if p.State.Terminal() {
					continue
				}
				ids = append(ids, p.PickingID)
				batch.DetachPicking(p.PickingID)
			}
			if len(ids) == 0 {
				return nil
			}
			if err := s.store.SetPickingBatch(ctx, ids, ""); err != nil {
				return fmt.Errorf("failed to release pickings: %w", err)
			}
			return s.repo.Save(ctx, batch)
		})
		if err != nil {
			s.logger.WithError(err).Error("Failed to release batch pickings", "batchId", batch.BatchID)
			return nil, err
		}

		if err := s.reconcileBatch(ctx, batch, false); err != nil {
			return nil, err
		}
	}

	s.logger.Event(ctx, "batch.dropoff", map[string]any{
		"batchId":  batch.BatchID,
		"userId":   batch.UserID,
		"continue": cmd.ContinueBatch,
	})

	return ToBatchDTO(batch), nil
}

// IsValidDestination reports whether the location is an acceptable
// drop-off destination for every picking in the batch. An unresolvable
// reference is simply not valid, never an error.
func (s *BatchApplicationService) IsValidDestination(ctx context.Context, query IsValidDestinationQuery) (bool, error) {
	batch, err := s.findBatch(ctx, query.BatchID)
	if err != nil {
		return false, err
	}

	location, err := s.store.ResolveLocation(ctx, query.LocationRef)
	if err != nil {
		return false, fmt.Errorf("failed to resolve location: %w", err)
	}
	if location == nil {
		return false, nil
	}

	for _, pickingID := range batch.PickingIDs {
		ok, err := s.store.IsValidDestination(ctx, pickingID, location.LocationID)
		if err != nil {
			return false, fmt.Errorf("failed to check destination: %w", err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// UnassignUserBatches releases every in-progress batch the user holds:
// outstanding pickings return to the pool and the batches are closed.
// Used when an operator logs out mid-shift.
func (s *BatchApplicationService) UnassignUserBatches(ctx context.Context, cmd UnassignUserBatchesCommand) error {
	userID, err := s.resolveUser(cmd.CallerID, cmd.UserID)
	if err != nil {
		return err
	}

	batches, err := s.repo.FindInProgressByUser(ctx, userID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to find batches for user", "userId", userID)
		return fmt.Errorf("failed to find batches for user: %w", err)
	}

	for _, batch := range batches {
		b := batch
		err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			pickings, err := s.store.FindPickingsByBatch(ctx, b.BatchID)
			if err != nil {
				return fmt.Errorf("failed to load pickings for batch: %w", err)
			}

			ids := make([]string, 0, len(pickings))
			for _, p := range pickings {
				if p.State.Terminal() {
					continue
				}
				ids = append(ids, p.PickingID)
				b.DetachPicking(p.PickingID)
			}
			if len(ids) > 0 {
				if err := s.store.SetPickingBatch(ctx, ids, ""); err != nil {
					return fmt.Errorf("failed to release pickings: %w", err)
				}
			}

			b.MarkDone()
			return s.repo.Save(ctx, b)
		})
		if err != nil {
			s.logger.WithError(err).Error("Failed to unassign batch", "batchId", b.BatchID)
			return err
		}
	}

	s.logger.Info("Released user batches", "userId", userID, "count", len(batches))
	return nil
}

// findBatch loads a batch or returns a not-found error.
func (s *BatchApplicationService) findBatch(ctx context.Context, batchID string) (*domain.Batch, error) {
	batch, err := s.repo.FindByBatchID(ctx, batchID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get batch", "batchId", batchID)
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}
	if batch == nil {
		return nil, errors.ErrNotFoundWithID("batch", batchID)
	}
	return batch, nil
}

// batchOutOfWork reports whether no assigned picking remains in the batch.
func (s *BatchApplicationService) batchOutOfWork(ctx context.Context, batch *domain.Batch) (bool, error) {
	pickings, err := s.store.FindPickingsByBatch(ctx, batch.BatchID)
	if err != nil {
		return false, fmt.Errorf("failed to load pickings for batch: %w", err)
	}
	for _, p := range pickings {
		if !p.State.Terminal() {
			return false, nil
		}
	}
	return true, nil
}

func dropLocationID(loc *domain.Location) string {
	if loc == nil {
		return ""
	}
	return loc.LocationID
}
