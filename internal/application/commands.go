package application

// CreateBatchCommand represents the command to allocate a batch for a user.
// UserID nil means the caller claims the batch for themselves; an empty
// string is rejected.
type CreateBatchCommand struct {
	CallerID   string
	UserID     *string
	TypeID     string
	Priorities []int
}

// ReconcileBatchesCommand represents the command to reconcile a user's
// in-progress batches. Strict makes incomplete pickings an error instead
// of a no-op.
type ReconcileBatchesCommand struct {
	CallerID string
	UserID   *string
	BatchIDs []string
	Strict   bool
}

// GetNextTaskQuery represents the query for the next unit of work in a batch
type GetNextTaskQuery struct {
	BatchID           string
	SkippedProductIDs []string
}

// MarkUnpickableCommand represents the command to report stock as
// unpickable. Exactly one of ProductRef or PackageName must identify the
// affected move lines.
type MarkUnpickableCommand struct {
	BatchID     string
	Reason      string
	ProductRef  string
	LocationRef string
	PackageName string
	LotID       string
	TypeID      string
}

// DropOffCommand represents the command to validate picked stock at a
// destination and optionally release the remaining work.
type DropOffCommand struct {
	BatchID       string
	ContinueBatch bool
	LocationRef   string
}

// GetSingleBatchQuery represents the query for a user's single
// in-progress batch
type GetSingleBatchQuery struct {
	CallerID string
	UserID   *string
}

// IsValidDestinationQuery represents the destination validity check
type IsValidDestinationQuery struct {
	BatchID     string
	LocationRef string
}

// UnassignUserBatchesCommand returns a user's assigned pickings to the pool
type UnassignUserBatchesCommand struct {
	CallerID string
	UserID   *string
}

// CreateTrailerInfoCommand records transport details against a picking
type CreateTrailerInfoCommand struct {
	PickingID  string
	Number     int
	UnitID     string
	License    string
	DriverName string
}

// CancelUnfulfillableCommand cancels sale-order lines that cannot be
// covered by free stock. With no explicit lines the whole open-order set
// is scanned first.
type CancelUnfulfillableCommand struct {
	LineIDs []string
}

// CheckDeliveredCommand re-derives sale-order states from their pickings
type CheckDeliveredCommand struct {
	OrderIDs []string
}
