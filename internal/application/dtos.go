package application

import "time"

// BatchDTO represents a batch in responses
type BatchDTO struct {
	BatchID     string     `json:"batchId"`
	UserID      string     `json:"userId,omitempty"`
	State       string     `json:"state"`
	PickingIDs  []string   `json:"pickingIds"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// TaskDTO represents the next unit of work for an operator
type TaskDTO struct {
	PackageID      string        `json:"packageId,omitempty"`
	ProductID      string        `json:"productId,omitempty"`
	LocationID     string        `json:"locationId,omitempty"`
	MoveLines      []MoveLineDTO `json:"moveLines"`
	NumTasksToPick int           `json:"numTasksToPick"`
	TasksPicked    bool          `json:"tasksPicked"`
}

// MoveLineDTO represents a move line inside a task
type MoveLineDTO struct {
	LineID         string  `json:"lineId"`
	PickingID      string  `json:"pickingId"`
	ProductID      string  `json:"productId"`
	QtyOrdered     float64 `json:"qtyOrdered"`
	QtyDone        float64 `json:"qtyDone"`
	LocationID     string  `json:"locationId"`
	DestLocationID string  `json:"destLocationId"`
	PackageID      string  `json:"packageId,omitempty"`
	LotID          string  `json:"lotId,omitempty"`
}

// TrailerInfoDTO represents trailer details in responses
type TrailerInfoDTO struct {
	TrailerID  string    `json:"trailerId"`
	PickingID  string    `json:"pickingId"`
	Number     int       `json:"number,omitempty"`
	UnitID     string    `json:"unitId,omitempty"`
	License    string    `json:"license,omitempty"`
	DriverName string    `json:"driverName,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ShortageReportDTO summarises an availability scan
type ShortageReportDTO struct {
	LineIDs  []string `json:"lineIds"`
	OrderIDs []string `json:"orderIds"`
}
