package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wms-platform/batching-service/internal/domain"
	"github.com/wms-platform/batching-service/pkg/errors"
)

type mockTrailerRepo struct {
	byPicking map[string]*domain.TrailerInfo
	saveFn    func(context.Context, *domain.TrailerInfo) error
}

func newMockTrailerRepo() *mockTrailerRepo {
	return &mockTrailerRepo{byPicking: make(map[string]*domain.TrailerInfo)}
}

func (m *mockTrailerRepo) Save(ctx context.Context, info *domain.TrailerInfo) error {
	if m.saveFn != nil {
		return m.saveFn(ctx, info)
	}
	m.byPicking[info.PickingID] = info
	return nil
}

func (m *mockTrailerRepo) FindByPicking(ctx context.Context, pickingID string) (*domain.TrailerInfo, error) {
	return m.byPicking[pickingID], nil
}

func (m *mockTrailerRepo) Delete(ctx context.Context, trailerID string) error {
	for pickingID, info := range m.byPicking {
		if info.TrailerID == trailerID {
			delete(m.byPicking, pickingID)
		}
	}
	return nil
}

func TestCreateTrailerInfo(t *testing.T) {
	store := newMockStore()
	store.pickings["PICK-1"] = &domain.Picking{PickingID: "PICK-1", State: domain.PickingStateAssigned}
	repo := newMockTrailerRepo()
	service := NewTrailerApplicationService(repo, store, testLogger())

	dto, err := service.CreateTrailerInfo(context.Background(), CreateTrailerInfoCommand{
		PickingID:  "PICK-1",
		Number:     7,
		License:    "AB12 CDE",
		DriverName: "J. Smith",
	})
	require.NoError(t, err)
	require.NotNil(t, dto)
	assert.Contains(t, dto.TrailerID, "TRL-")
	assert.Equal(t, "PICK-1", dto.PickingID)
	assert.Equal(t, 7, dto.Number)
	require.NotNil(t, repo.byPicking["PICK-1"])
}

func TestCreateTrailerInfoUnknownPicking(t *testing.T) {
	service := NewTrailerApplicationService(newMockTrailerRepo(), newMockStore(), testLogger())

	_, err := service.CreateTrailerInfo(context.Background(), CreateTrailerInfoCommand{PickingID: "PICK-missing"})
	require.Error(t, err)
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeNotFound, appErr.Code)
}

func TestCreateTrailerInfoDuplicate(t *testing.T) {
	store := newMockStore()
	store.pickings["PICK-1"] = &domain.Picking{PickingID: "PICK-1", State: domain.PickingStateAssigned}
	repo := newMockTrailerRepo()
	service := NewTrailerApplicationService(repo, store, testLogger())

	_, err := service.CreateTrailerInfo(context.Background(), CreateTrailerInfoCommand{PickingID: "PICK-1"})
	require.NoError(t, err)

	_, err = service.CreateTrailerInfo(context.Background(), CreateTrailerInfoCommand{PickingID: "PICK-1"})
	assert.ErrorIs(t, err, domain.ErrTrailerExists)
}

func TestGetTrailerInfo(t *testing.T) {
	store := newMockStore()
	store.pickings["PICK-1"] = &domain.Picking{PickingID: "PICK-1", State: domain.PickingStateAssigned}
	repo := newMockTrailerRepo()
	service := NewTrailerApplicationService(repo, store, testLogger())

	created, err := service.CreateTrailerInfo(context.Background(), CreateTrailerInfoCommand{
		PickingID: "PICK-1",
		UnitID:    "UNIT-9",
	})
	require.NoError(t, err)

	got, err := service.GetTrailerInfo(context.Background(), "PICK-1")
	require.NoError(t, err)
	assert.Equal(t, created.TrailerID, got.TrailerID)
	assert.Equal(t, "UNIT-9", got.UnitID)
}

func TestGetTrailerInfoMissing(t *testing.T) {
	service := NewTrailerApplicationService(newMockTrailerRepo(), newMockStore(), testLogger())

	_, err := service.GetTrailerInfo(context.Background(), "PICK-1")
	assert.Error(t, err)
}
