package domain

import "time"

// PickingState represents the lifecycle state of a picking
type PickingState string

const (
	PickingStateDraft     PickingState = "draft"
	PickingStateWaiting   PickingState = "waiting"
	PickingStateConfirmed PickingState = "confirmed"
	PickingStateAssigned  PickingState = "assigned"
	PickingStateDone      PickingState = "done"
	PickingStateCancel    PickingState = "cancel"
)

// Terminal reports whether the picking can no longer be worked on.
func (s PickingState) Terminal() bool {
	return s == PickingStateDone || s == PickingStateCancel
}

// NotReady reports whether the picking is not yet actionable. Not-ready
// pickings never block a user and are detached from batches on reconcile.
func (s PickingState) NotReady() bool {
	return s == PickingStateDraft || s == PickingStateWaiting || s == PickingStateConfirmed
}

// PickingKind distinguishes regular picks from internal moves and
// stock-investigation transfers
type PickingKind string

const (
	PickingKindPick          PickingKind = "pick"
	PickingKindInternal      PickingKind = "internal"
	PickingKindInvestigation PickingKind = "investigation"
)

// ScanPolicy is the per-picking-type scan granularity: whether operators
// confirm work one product group at a time or one container at a time
type ScanPolicy string

const (
	ScanByProduct ScanPolicy = "product"
	ScanByPackage ScanPolicy = "package"
)

// Picking is a directive to move stock from source to destination,
// composed of move lines. Owned by the warehouse store; the batching
// core only reassigns batch membership and triggers state-affecting
// operations through the WarehouseStore interface.
type Picking struct {
	PickingID   string       `bson:"pickingId" json:"pickingId"`
	Name        string       `bson:"name" json:"name"`
	Kind        PickingKind  `bson:"kind" json:"kind"`
	TypeID      string       `bson:"typeId" json:"typeId"`
	State       PickingState `bson:"state" json:"state"`
	BatchID     string       `bson:"batchId,omitempty" json:"batchId,omitempty"`
	GroupID     string       `bson:"groupId,omitempty" json:"groupId,omitempty"`
	Priority    int          `bson:"priority" json:"priority"`
	ScheduledAt time.Time    `bson:"scheduledAt" json:"scheduledAt"`
	BackorderOf string       `bson:"backorderOf,omitempty" json:"backorderOf,omitempty"`
}

// MoveLine is the smallest unit of stock movement: a product quantity at
// a source location destined for a destination location, optionally
// inside a package and tracked by lot.
type MoveLine struct {
	LineID         string  `bson:"lineId" json:"lineId"`
	PickingID      string  `bson:"pickingId" json:"pickingId"`
	ProductID      string  `bson:"productId" json:"productId"`
	QtyOrdered     float64 `bson:"qtyOrdered" json:"qtyOrdered"`
	QtyDone        float64 `bson:"qtyDone" json:"qtyDone"`
	LocationID     string  `bson:"locationId" json:"locationId"`
	DestLocationID string  `bson:"destLocationId" json:"destLocationId"`
	PackageID      string  `bson:"packageId,omitempty" json:"packageId,omitempty"`
	LotID          string  `bson:"lotId,omitempty" json:"lotId,omitempty"`
}

// Completed reports whether the full ordered quantity has been picked.
func (ml MoveLine) Completed() bool {
	return ml.QtyOrdered > 0 && ml.QtyDone == ml.QtyOrdered
}

// Started reports whether any quantity has been picked.
func (ml MoveLine) Started() bool {
	return ml.QtyDone > 0
}

// PickingType carries the per-type metadata the planner and the
// unpickable handler need
type PickingType struct {
	TypeID           string      `bson:"typeId" json:"typeId"`
	Name             string      `bson:"name" json:"name"`
	Kind             PickingKind `bson:"kind" json:"kind"`
	UserScans        ScanPolicy  `bson:"userScans" json:"userScans"`
	DefaultDestLocID string      `bson:"defaultDestLocId,omitempty" json:"defaultDestLocId,omitempty"`
}

// Location is a warehouse location resolvable by id, name or barcode
type Location struct {
	LocationID string `bson:"locationId" json:"locationId"`
	Name       string `bson:"name" json:"name"`
	Barcode    string `bson:"barcode,omitempty" json:"barcode,omitempty"`
}

// StockPackage is a physical container of quants
type StockPackage struct {
	PackageID  string `bson:"packageId" json:"packageId"`
	Name       string `bson:"name" json:"name"`
	LocationID string `bson:"locationId,omitempty" json:"locationId,omitempty"`
}

// Product identifies a stocked product
type Product struct {
	ProductID string `bson:"productId" json:"productId"`
	Name      string `bson:"name" json:"name"`
	SKU       string `bson:"sku,omitempty" json:"sku,omitempty"`
}

// Quant is a quantity of a product held at a location, possibly reserved
type Quant struct {
	QuantID    string  `bson:"quantId" json:"quantId"`
	ProductID  string  `bson:"productId" json:"productId"`
	LocationID string  `bson:"locationId" json:"locationId"`
	PackageID  string  `bson:"packageId,omitempty" json:"packageId,omitempty"`
	Quantity   float64 `bson:"quantity" json:"quantity"`
	Reserved   float64 `bson:"reserved" json:"reserved"`
}

// ProcurementGroup groups pickings created for the same cause, e.g.
// repeated investigations of one unpickable reason
type ProcurementGroup struct {
	GroupID string `bson:"groupId" json:"groupId"`
	Name    string `bson:"name" json:"name"`
}
