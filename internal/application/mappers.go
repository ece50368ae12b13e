package application

import "github.com/wms-platform/batching-service/internal/domain"

// ToBatchDTO converts a domain Batch to BatchDTO
func ToBatchDTO(batch *domain.Batch) *BatchDTO {
	if batch == nil {
		return nil
	}

	return &BatchDTO{
		BatchID:     batch.BatchID,
		UserID:      batch.UserID,
		State:       string(batch.State),
		PickingIDs:  append([]string(nil), batch.PickingIDs...),
		CreatedAt:   batch.CreatedAt,
		UpdatedAt:   batch.UpdatedAt,
		CompletedAt: batch.CompletedAt,
	}
}

// ToTaskDTO converts a planned Task to TaskDTO
func ToTaskDTO(task domain.Task) *TaskDTO {
	lines := make([]MoveLineDTO, 0, len(task.MoveLines))
	for _, ml := range task.MoveLines {
		lines = append(lines, ToMoveLineDTO(ml))
	}

	return &TaskDTO{
		PackageID:      task.Key.PackageID,
		ProductID:      task.Key.ProductID,
		LocationID:     task.Key.LocationID,
		MoveLines:      lines,
		NumTasksToPick: task.NumTasksToPick,
		TasksPicked:    task.TasksPicked,
	}
}

// ToMoveLineDTO converts a domain MoveLine to MoveLineDTO
func ToMoveLineDTO(ml domain.MoveLine) MoveLineDTO {
	return MoveLineDTO{
		LineID:         ml.LineID,
		PickingID:      ml.PickingID,
		ProductID:      ml.ProductID,
		QtyOrdered:     ml.QtyOrdered,
		QtyDone:        ml.QtyDone,
		LocationID:     ml.LocationID,
		DestLocationID: ml.DestLocationID,
		PackageID:      ml.PackageID,
		LotID:          ml.LotID,
	}
}

// ToTrailerInfoDTO converts a domain TrailerInfo to TrailerInfoDTO
func ToTrailerInfoDTO(info *domain.TrailerInfo) *TrailerInfoDTO {
	if info == nil {
		return nil
	}

	return &TrailerInfoDTO{
		TrailerID:  info.TrailerID,
		PickingID:  info.PickingID,
		Number:     info.Number,
		UnitID:     info.UnitID,
		License:    info.License,
		DriverName: info.DriverName,
		CreatedAt:  info.CreatedAt,
	}
}
