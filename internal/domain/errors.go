package domain

import (
	"fmt"
	"strings"
)

// InvalidUserError is returned when no user id could be resolved for an
// allocation call.
type InvalidUserError struct{}

func (e *InvalidUserError) Error() string {
	return "cannot determine the user"
}

// InconsistentStateError signals a violated invariant: more than one
// in-progress batch exists for a single user. It indicates the data was
// manipulated outside this service and is never resolved silently.
type InconsistentStateError struct {
	UserID string
	Count  int
}

func (e *InconsistentStateError) Error() string {
	return fmt.Sprintf("found %d batches in progress for user %s", e.Count, e.UserID)
}

// IncompleteWorkError is returned when a user requests a new batch while
// still holding pickings that need completing.
type IncompleteWorkError struct {
	PickingNames []string
}

func (e *IncompleteWorkError) Error() string {
	return fmt.Sprintf("user already has pickings that need completing: %s",
		strings.Join(e.PickingNames, ", "))
}

// WrongStateError is returned when an operation is invoked on a batch
// outside its required state.
type WrongStateError struct {
	BatchID string
	State   BatchState
}

func (e *WrongStateError) Error() string {
	return fmt.Sprintf("wrong state %s for batch %s", e.State, e.BatchID)
}

// MissingLocationError is returned when a product is reported unpickable
// without the location needed to identify its move lines.
type MissingLocationError struct {
	ProductID string
}

func (e *MissingLocationError) Error() string {
	return fmt.Sprintf("missing location for unpickable product %s", e.ProductID)
}

// AmbiguousPackageError is returned when a product-only unpickable report
// matches move lines spread over packages: the package name is required
// to disambiguate. Deliberately unsupported rather than guessed.
type AmbiguousPackageError struct {
	ProductID string
}

func (e *AmbiguousPackageError) Error() string {
	return fmt.Sprintf("unpickable product %s is in a package but no package name was provided", e.ProductID)
}

// NoMatchingMoveLinesError is returned when the supplied criteria match
// no outstanding move lines in the batch.
type NoMatchingMoveLinesError struct {
	BatchID string
}

func (e *NoMatchingMoveLinesError) Error() string {
	return fmt.Sprintf("no matching move lines to do in batch %s", e.BatchID)
}

// NotInBatchError is returned when the matched move lines belong to a
// picking outside the target batch, or span multiple pickings.
type NotInBatchError struct {
	PickingID string
	BatchID   string
}

func (e *NotInBatchError) Error() string {
	return fmt.Sprintf("picking %s is not part of batch %s", e.PickingID, e.BatchID)
}

// AlreadyCompletedError is returned when marking unpickable on a picking
// that already reached a terminal state.
type AlreadyCompletedError struct {
	PickingID string
	State     PickingState
}

func (e *AlreadyCompletedError) Error() string {
	return fmt.Sprintf("cannot mark unpickable: picking %s is already %s", e.PickingID, e.State)
}

// UnknownLocationError is returned when a location reference cannot be
// resolved to a location.
type UnknownLocationError struct {
	Ref string
}

func (e *UnknownLocationError) Error() string {
	return fmt.Sprintf("unknown location %q", e.Ref)
}
