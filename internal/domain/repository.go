package domain

import "context"

// BatchRepository defines the interface for batch persistence
type BatchRepository interface {
	Save(ctx context.Context, batch *Batch) error
	FindByBatchID(ctx context.Context, batchID string) (*Batch, error)
	FindInProgressByUser(ctx context.Context, userID string) ([]*Batch, error)
	FindByState(ctx context.Context, state BatchState) ([]*Batch, error)
}

// TransactionRunner runs a function within one atomic transaction
// against the underlying store. Every mutating batch operation executes
// under it so partial application is never observable.
type TransactionRunner interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// PickingSpec describes a picking to be created by the warehouse store,
// seeded from the quants implicated by an unpickable report.
type PickingSpec struct {
	QuantIDs     []string
	LocationID   string
	TypeID       string
	GroupID      string
	AllowPartial bool
}

// WarehouseStore is the external warehouse data store the batching core
// operates over. Implementations own pickings, move lines and the
// resolution entities; the core never touches their persistence
// directly.
type WarehouseStore interface {
	// Picking lookup
	FindPicking(ctx context.Context, pickingID string) (*Picking, error)
	FindPickingsByBatch(ctx context.Context, batchID string) ([]*Picking, error)
	// NextEligiblePicking returns the highest-ranked assigned, unbatched
	// picking of the given type, ordered by priority desc, scheduled date
	// asc, picking id asc. Nil when none is eligible.
	NextEligiblePicking(ctx context.Context, typeID string, priorities []int) (*Picking, error)

	// Picking mutations
	SetPickingBatch(ctx context.Context, pickingIDs []string, batchID string) error
	// Backorder splits the given move lines off into a new picking and
	// returns it; the remainder stays on the original.
	Backorder(ctx context.Context, pickingID string, lineIDs []string) (*Picking, error)
	ValidatePicking(ctx context.Context, pickingID string) error
	// UnreservePicking releases the picking's reservation, recording the
	// reason as an audit note.
	UnreservePicking(ctx context.Context, pickingID, reason string) error
	// CancelPicking moves the picking to cancel, recording the reason as
	// an audit note.
	CancelPicking(ctx context.Context, pickingID, reason string) error
	// ReassignPicking re-attempts reservation and returns the resulting state.
	ReassignPicking(ctx context.Context, pickingID string) (PickingState, error)
	// MergeLines relinks all move lines of one picking onto another.
	MergeLines(ctx context.Context, fromPickingID, toPickingID string) error
	DeletePicking(ctx context.Context, pickingID string) error
	CreatePicking(ctx context.Context, spec PickingSpec) (*Picking, error)
	PostNote(ctx context.Context, pickingID, body string) error

	// Move lines
	FindMoveLinesByPickings(ctx context.Context, pickingIDs []string) ([]MoveLine, error)
	SetDestination(ctx context.Context, lineIDs []string, locationID string) error

	// Resolution
	ResolveLocation(ctx context.Context, ref string) (*Location, error)
	IsValidDestination(ctx context.Context, pickingID, locationID string) (bool, error)
	ResolvePackage(ctx context.Context, name string) (*StockPackage, error)
	ResolveProduct(ctx context.Context, ref string) (*Product, error)
	EnsureGroup(ctx context.Context, name string) (*ProcurementGroup, error)

	// Quants
	QuantsForPackage(ctx context.Context, packageID string) ([]Quant, error)
	QuantsForLines(ctx context.Context, lineIDs []string) ([]Quant, error)

	// Picking-type metadata
	PickingType(ctx context.Context, typeID string) (*PickingType, error)
	DefaultInternalTypeID(ctx context.Context) (string, error)
}
