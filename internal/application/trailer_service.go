package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wms-platform/batching-service/internal/domain"
	"github.com/wms-platform/batching-service/pkg/errors"
	"github.com/wms-platform/batching-service/pkg/logging"
)

// TrailerApplicationService manages the transport details attached to
// outbound pickings
type TrailerApplicationService struct {
	trailers domain.TrailerRepository
	store    domain.WarehouseStore
	logger   *logging.Logger
}

// NewTrailerApplicationService creates a new TrailerApplicationService
func NewTrailerApplicationService(
	trailers domain.TrailerRepository,
	store domain.WarehouseStore,
	logger *logging.Logger,
) *TrailerApplicationService {
	return &TrailerApplicationService{
		trailers: trailers,
		store:    store,
		logger:   logger,
	}
}

// CreateTrailerInfo records trailer details for a picking. A picking
// holds at most one trailer record; a second create is rejected.
func (s *TrailerApplicationService) CreateTrailerInfo(ctx context.Context, cmd CreateTrailerInfoCommand) (*TrailerInfoDTO, error) {
	picking, err := s.store.FindPicking(ctx, cmd.PickingID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get picking", "pickingId", cmd.PickingID)
		return nil, fmt.Errorf("failed to get picking: %w", err)
	}
	if picking == nil {
		return nil, errors.ErrNotFoundWithID("picking", cmd.PickingID)
	}

	existing, err := s.trailers.FindByPicking(ctx, cmd.PickingID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing trailer info: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrTrailerExists
	}

	now := time.Now()
	info := &domain.TrailerInfo{
		TrailerID:  "TRL-" + uuid.New().String()[:8],
		PickingID:  cmd.PickingID,
		Number:     cmd.Number,
		UnitID:     cmd.UnitID,
		License:    cmd.License,
		DriverName: cmd.DriverName,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.trailers.Save(ctx, info); err != nil {
		s.logger.WithError(err).Error("Failed to save trailer info", "pickingId", cmd.PickingID)
		return nil, fmt.Errorf("failed to save trailer info: %w", err)
	}

	s.logger.Info("Recorded trailer info", "pickingId", cmd.PickingID, "trailerId", info.TrailerID)
	return ToTrailerInfoDTO(info), nil
}

// GetTrailerInfo retrieves the trailer record for a picking.
func (s *TrailerApplicationService) GetTrailerInfo(ctx context.Context, pickingID string) (*TrailerInfoDTO, error) {
	info, err := s.trailers.FindByPicking(ctx, pickingID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get trailer info", "pickingId", pickingID)
		return nil, fmt.Errorf("failed to get trailer info: %w", err)
	}
	if info == nil {
		return nil, errors.ErrNotFound("trailer info")
	}
	return ToTrailerInfoDTO(info), nil
}
