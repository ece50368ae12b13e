package domain

import (
	"context"
	"errors"
	"time"
)

// ErrTrailerExists is returned when a second trailer record is created
// for the same picking.
var ErrTrailerExists = errors.New("only one trailer record is allowed per picking")

// TrailerInfo records the transport details of an outbound picking
type TrailerInfo struct {
	TrailerID  string    `bson:"trailerId" json:"trailerId"`
	PickingID  string    `bson:"pickingId" json:"pickingId"`
	Number     int       `bson:"number,omitempty" json:"number,omitempty"`
	UnitID     string    `bson:"unitId,omitempty" json:"unitId,omitempty"`
	License    string    `bson:"license,omitempty" json:"license,omitempty"`
	DriverName string    `bson:"driverName,omitempty" json:"driverName,omitempty"`
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time `bson:"updatedAt" json:"updatedAt"`
}

// TrailerRepository defines the interface for trailer info persistence.
// Implementations enforce the one-record-per-picking constraint.
type TrailerRepository interface {
	Save(ctx context.Context, info *TrailerInfo) error
	FindByPicking(ctx context.Context, pickingID string) (*TrailerInfo, error)
	Delete(ctx context.Context, trailerID string) error
}
