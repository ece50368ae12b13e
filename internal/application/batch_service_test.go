package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wms-platform/batching-service/internal/domain"
	"github.com/wms-platform/batching-service/pkg/errors"
	"github.com/wms-platform/batching-service/pkg/logging"
)

type mockBatchRepo struct {
	batches map[string]*domain.Batch

	saveFn           func(context.Context, *domain.Batch) error
	findInProgressFn func(context.Context, string) ([]*domain.Batch, error)
	saveCalls        int
	lastSaved        *domain.Batch
}

func newMockBatchRepo(batches ...*domain.Batch) *mockBatchRepo {
	repo := &mockBatchRepo{batches: make(map[string]*domain.Batch)}
	for _, b := range batches {
		repo.batches[b.BatchID] = b
	}
	return repo
}

func (m *mockBatchRepo) Save(ctx context.Context, batch *domain.Batch) error {
	m.saveCalls++
	m.lastSaved = batch
	if m.saveFn != nil {
		return m.saveFn(ctx, batch)
	}
	m.batches[batch.BatchID] = batch
	return nil
}

func (m *mockBatchRepo) FindByBatchID(ctx context.Context, batchID string) (*domain.Batch, error) {
	return m.batches[batchID], nil
}

func (m *mockBatchRepo) FindInProgressByUser(ctx context.Context, userID string) ([]*domain.Batch, error) {
	if m.findInProgressFn != nil {
		return m.findInProgressFn(ctx, userID)
	}
	var found []*domain.Batch
	for _, b := range m.batches {
		if b.UserID == userID && b.State == domain.BatchStateInProgress {
			found = append(found, b)
		}
	}
	return found, nil
}

func (m *mockBatchRepo) FindByState(ctx context.Context, state domain.BatchState) ([]*domain.Batch, error) {
	var found []*domain.Batch
	for _, b := range m.batches {
		if b.State == state {
			found = append(found, b)
		}
	}
	return found, nil
}

type setBatchCall struct {
	pickingIDs []string
	batchID    string
}

type backorderCall struct {
	pickingID string
	lineIDs   []string
}

// mockStore is an in-memory WarehouseStore. Lookups read the maps;
// mutations only record their calls so tests can assert on ordering
// and arguments without replaying warehouse semantics.
type mockStore struct {
	pickings      map[string]*domain.Picking
	lines         map[string][]domain.MoveLine
	locations     map[string]*domain.Location
	products      map[string]*domain.Product
	packages      map[string]*domain.StockPackage
	pickingTypes  map[string]*domain.PickingType
	invalidDests  map[string]bool
	nextEligible  *domain.Picking
	reassignState domain.PickingState

	setBatchCalls []setBatchCall
	backorders    []backorderCall
	validated     []string
	unreserved    []string
	cancelled     []string
	merged        [][2]string
	deleted       []string
	created       []domain.PickingSpec
	notes         []string
	destCalls     []setBatchCall

	nextEligibleCalls int
}

func newMockStore() *mockStore {
	return &mockStore{
		pickings:      make(map[string]*domain.Picking),
		lines:         make(map[string][]domain.MoveLine),
		locations:     make(map[string]*domain.Location),
		products:      make(map[string]*domain.Product),
		packages:      make(map[string]*domain.StockPackage),
		pickingTypes:  make(map[string]*domain.PickingType),
		invalidDests:  make(map[string]bool),
		reassignState: domain.PickingStateAssigned,
	}
}

func (m *mockStore) mutated() bool {
	return len(m.setBatchCalls) > 0 || len(m.backorders) > 0 || len(m.validated) > 0 ||
		len(m.unreserved) > 0 || len(m.cancelled) > 0 || len(m.merged) > 0 ||
		len(m.deleted) > 0 || len(m.created) > 0 || len(m.notes) > 0 || len(m.destCalls) > 0
}

func (m *mockStore) FindPicking(ctx context.Context, pickingID string) (*domain.Picking, error) {
	return m.pickings[pickingID], nil
}

func (m *mockStore) FindPickingsByBatch(ctx context.Context, batchID string) ([]*domain.Picking, error) {
	var found []*domain.Picking
	for _, p := range m.pickings {
		if p.BatchID == batchID {
			found = append(found, p)
		}
	}
	return found, nil
}

func (m *mockStore) NextEligiblePicking(ctx context.Context, typeID string, priorities []int) (*domain.Picking, error) {
	m.nextEligibleCalls++
	return m.nextEligible, nil
}

func (m *mockStore) SetPickingBatch(ctx context.Context, pickingIDs []string, batchID string) error {
	m.setBatchCalls = append(m.setBatchCalls, setBatchCall{pickingIDs: pickingIDs, batchID: batchID})
	for _, id := range pickingIDs {
		if p, ok := m.pickings[id]; ok {
			p.BatchID = batchID
		}
	}
	return nil
}

func (m *mockStore) Backorder(ctx context.Context, pickingID string, lineIDs []string) (*domain.Picking, error) {
	m.backorders = append(m.backorders, backorderCall{pickingID: pickingID, lineIDs: lineIDs})
	bo := &domain.Picking{
		PickingID:   pickingID + "-BO",
		State:       domain.PickingStateAssigned,
		BackorderOf: pickingID,
	}
	m.pickings[bo.PickingID] = bo
	return bo, nil
}

func (m *mockStore) ValidatePicking(ctx context.Context, pickingID string) error {
	m.validated = append(m.validated, pickingID)
	if p, ok := m.pickings[pickingID]; ok {
		p.State = domain.PickingStateDone
	}
	return nil
}

func (m *mockStore) UnreservePicking(ctx context.Context, pickingID, reason string) error {
	m.unreserved = append(m.unreserved, pickingID)
	return nil
}

func (m *mockStore) CancelPicking(ctx context.Context, pickingID, reason string) error {
	m.cancelled = append(m.cancelled, pickingID)
	if p, ok := m.pickings[pickingID]; ok {
		p.State = domain.PickingStateCancel
	}
	return nil
}

func (m *mockStore) ReassignPicking(ctx context.Context, pickingID string) (domain.PickingState, error) {
	return m.reassignState, nil
}

func (m *mockStore) MergeLines(ctx context.Context, fromPickingID, toPickingID string) error {
	m.merged = append(m.merged, [2]string{fromPickingID, toPickingID})
	return nil
}

func (m *mockStore) DeletePicking(ctx context.Context, pickingID string) error {
	m.deleted = append(m.deleted, pickingID)
	return nil
}

func (m *mockStore) CreatePicking(ctx context.Context, spec domain.PickingSpec) (*domain.Picking, error) {
	m.created = append(m.created, spec)
	return &domain.Picking{
		PickingID: "INV-00000001",
		Kind:      domain.PickingKindInvestigation,
		TypeID:    spec.TypeID,
		State:     domain.PickingStateAssigned,
	}, nil
}

func (m *mockStore) PostNote(ctx context.Context, pickingID, body string) error {
	m.notes = append(m.notes, body)
	return nil
}

func (m *mockStore) FindMoveLinesByPickings(ctx context.Context, pickingIDs []string) ([]domain.MoveLine, error) {
	var found []domain.MoveLine
	for _, id := range pickingIDs {
		found = append(found, m.lines[id]...)
	}
	return found, nil
}

func (m *mockStore) SetDestination(ctx context.Context, lineIDs []string, locationID string) error {
	m.destCalls = append(m.destCalls, setBatchCall{pickingIDs: lineIDs, batchID: locationID})
	return nil
}

func (m *mockStore) ResolveLocation(ctx context.Context, ref string) (*domain.Location, error) {
	return m.locations[ref], nil
}

func (m *mockStore) IsValidDestination(ctx context.Context, pickingID, locationID string) (bool, error) {
	return !m.invalidDests[pickingID], nil
}

func (m *mockStore) ResolvePackage(ctx context.Context, name string) (*domain.StockPackage, error) {
	return m.packages[name], nil
}

func (m *mockStore) ResolveProduct(ctx context.Context, ref string) (*domain.Product, error) {
	return m.products[ref], nil
}

func (m *mockStore) EnsureGroup(ctx context.Context, name string) (*domain.ProcurementGroup, error) {
	return &domain.ProcurementGroup{GroupID: "GRP-1", Name: name}, nil
}

func (m *mockStore) QuantsForPackage(ctx context.Context, packageID string) ([]domain.Quant, error) {
	return []domain.Quant{{QuantID: "QNT-PKG", PackageID: packageID}}, nil
}

func (m *mockStore) QuantsForLines(ctx context.Context, lineIDs []string) ([]domain.Quant, error) {
	quants := make([]domain.Quant, 0, len(lineIDs))
	for _, id := range lineIDs {
		quants = append(quants, domain.Quant{QuantID: "QNT-" + id})
	}
	return quants, nil
}

func (m *mockStore) PickingType(ctx context.Context, typeID string) (*domain.PickingType, error) {
	return m.pickingTypes[typeID], nil
}

func (m *mockStore) DefaultInternalTypeID(ctx context.Context) (string, error) {
	return "TYPE-INT", nil
}

type mockTx struct {
	calls int
}

func (m *mockTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	return fn(ctx)
}

func testLogger() *logging.Logger {
	cfg := logging.DefaultConfig("batching-service-test")
	cfg.Level = logging.LevelError
	return logging.New(cfg)
}

func newTestService(repo *mockBatchRepo, store *mockStore) *BatchApplicationService {
	return NewBatchApplicationService(repo, store, &mockTx{}, testLogger())
}

func inProgressBatch(userID string, pickingIDs ...string) *domain.Batch {
	batch := domain.NewBatch(userID)
	for _, id := range pickingIDs {
		batch.AttachPicking(id)
	}
	batch.ClearDomainEvents()
	return batch
}

func strptr(s string) *string { return &s }

func TestGetSingleBatchNone(t *testing.T) {
	service := newTestService(newMockBatchRepo(), newMockStore())

	dto, err := service.GetSingleBatch(context.Background(), GetSingleBatchQuery{CallerID: "alice"})
	require.NoError(t, err)
	assert.Nil(t, dto)
}

func TestGetSingleBatchOne(t *testing.T) {
	batch := inProgressBatch("alice", "PICK-1")
	service := newTestService(newMockBatchRepo(batch), newMockStore())

	dto, err := service.GetSingleBatch(context.Background(), GetSingleBatchQuery{CallerID: "alice"})
	require.NoError(t, err)
	require.NotNil(t, dto)
	assert.Equal(t, batch.BatchID, dto.BatchID)
	assert.Equal(t, []string{"PICK-1"}, dto.PickingIDs)
}

func TestGetSingleBatchInconsistent(t *testing.T) {
	repo := newMockBatchRepo(inProgressBatch("alice"), inProgressBatch("alice"))
	service := newTestService(repo, newMockStore())

	_, err := service.GetSingleBatch(context.Background(), GetSingleBatchQuery{CallerID: "alice"})
	var inconsistent *domain.InconsistentStateError
	require.ErrorAs(t, err, &inconsistent)
	assert.Equal(t, "alice", inconsistent.UserID)
	assert.Equal(t, 2, inconsistent.Count)
}

func TestGetSingleBatchUserResolution(t *testing.T) {
	tests := []struct {
		name     string
		callerID string
		userID   *string
		wantUser string
		wantErr  bool
	}{
		{name: "nil user falls back to caller", callerID: "alice", userID: nil, wantUser: "alice"},
		{name: "explicit user overrides caller", callerID: "alice", userID: strptr("bob"), wantUser: "bob"},
		{name: "empty explicit user rejected", callerID: "alice", userID: strptr(""), wantErr: true},
		{name: "nil user with no caller rejected", callerID: "", userID: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var askedFor string
			repo := newMockBatchRepo()
			repo.findInProgressFn = func(ctx context.Context, userID string) ([]*domain.Batch, error) {
				askedFor = userID
				return nil, nil
			}
			service := newTestService(repo, newMockStore())

			_, err := service.GetSingleBatch(context.Background(), GetSingleBatchQuery{
				CallerID: tt.callerID,
				UserID:   tt.userID,
			})
			if tt.wantErr {
				var invalid *domain.InvalidUserError
				assert.ErrorAs(t, err, &invalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUser, askedFor)
		})
	}
}

func TestCreateBatchClaimsEligiblePicking(t *testing.T) {
	store := newMockStore()
	store.nextEligible = &domain.Picking{
		PickingID: "PICK-1",
		State:     domain.PickingStateAssigned,
		Priority:  3,
	}
	repo := newMockBatchRepo()
	service := newTestService(repo, store)

	dto, err := service.CreateBatch(context.Background(), CreateBatchCommand{CallerID: "alice", TypeID: "TYPE-PICK"})
	require.NoError(t, err)
	require.NotNil(t, dto)
	assert.Equal(t, "alice", dto.UserID)
	assert.Equal(t, string(domain.BatchStateInProgress), dto.State)
	assert.Equal(t, []string{"PICK-1"}, dto.PickingIDs)

	require.Len(t, store.setBatchCalls, 1)
	assert.Equal(t, []string{"PICK-1"}, store.setBatchCalls[0].pickingIDs)
	assert.Equal(t, dto.BatchID, store.setBatchCalls[0].batchID)
	require.NotNil(t, repo.lastSaved)
	assert.Equal(t, dto.BatchID, repo.lastSaved.BatchID)
}

func TestCreateBatchNoEligibleWork(t *testing.T) {
	repo := newMockBatchRepo()
	service := newTestService(repo, newMockStore())

	dto, err := service.CreateBatch(context.Background(), CreateBatchCommand{CallerID: "alice"})
	require.NoError(t, err)
	assert.Nil(t, dto)
	assert.Zero(t, repo.saveCalls)
}

func TestCreateBatchRejectsEmptyUser(t *testing.T) {
	service := newTestService(newMockBatchRepo(), newMockStore())

	_, err := service.CreateBatch(context.Background(), CreateBatchCommand{CallerID: "alice", UserID: strptr("")})
	var invalid *domain.InvalidUserError
	assert.ErrorAs(t, err, &invalid)
}

func TestCreateBatchBlockedByIncompleteWork(t *testing.T) {
	batch := inProgressBatch("alice", "PICK-1")
	store := newMockStore()
	store.pickings["PICK-1"] = &domain.Picking{
		PickingID: "PICK-1",
		Name:      "PICK/0001",
		State:     domain.PickingStateAssigned,
		BatchID:   batch.BatchID,
	}
	store.nextEligible = &domain.Picking{PickingID: "PICK-2", State: domain.PickingStateAssigned}
	service := newTestService(newMockBatchRepo(batch), store)

	_, err := service.CreateBatch(context.Background(), CreateBatchCommand{CallerID: "alice"})
	var incomplete *domain.IncompleteWorkError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, []string{"PICK/0001"}, incomplete.PickingNames)
	assert.Zero(t, store.nextEligibleCalls)
	assert.Equal(t, domain.BatchStateInProgress, batch.State)
}

func TestCreateBatchCompletesPreviousBatchFirst(t *testing.T) {
	previous := inProgressBatch("alice", "PICK-1")
	store := newMockStore()
	store.pickings["PICK-1"] = &domain.Picking{
		PickingID: "PICK-1",
		State:     domain.PickingStateDone,
		BatchID:   previous.BatchID,
	}
	store.nextEligible = &domain.Picking{PickingID: "PICK-2", State: domain.PickingStateAssigned}
	repo := newMockBatchRepo(previous)
	service := newTestService(repo, store)

	dto, err := service.CreateBatch(context.Background(), CreateBatchCommand{CallerID: "alice"})
	require.NoError(t, err)
	require.NotNil(t, dto)
	assert.Equal(t, domain.BatchStateDone, previous.State)
	assert.NotEqual(t, previous.BatchID, dto.BatchID)
}

func TestReconcileBatchesCompletesFinishedBatch(t *testing.T) {
	batch := inProgressBatch("alice", "PICK-1")
	store := newMockStore()
	store.pickings["PICK-1"] = &domain.Picking{
		PickingID: "PICK-1",
		State:     domain.PickingStateDone,
		BatchID:   batch.BatchID,
	}
	repo := newMockBatchRepo(batch)
	service := newTestService(repo, store)

	dtos, err := service.ReconcileBatches(context.Background(), ReconcileBatchesCommand{CallerID: "alice"})
	require.NoError(t, err)
	require.Len(t, dtos, 1)
	assert.Equal(t, string(domain.BatchStateDone), dtos[0].State)
	assert.Equal(t, domain.BatchStateDone, batch.State)
}

func TestReconcileBatchesReleasesNotReadyPickings(t *testing.T) {
	batch := inProgressBatch("alice", "PICK-1", "PICK-2")
	store := newMockStore()
	store.pickings["PICK-1"] = &domain.Picking{
		PickingID: "PICK-1",
		State:     domain.PickingStateConfirmed,
		BatchID:   batch.BatchID,
	}
	store.pickings["PICK-2"] = &domain.Picking{
		PickingID: "PICK-2",
		State:     domain.PickingStateDone,
		BatchID:   batch.BatchID,
	}
	service := newTestService(newMockBatchRepo(batch), store)

	_, err := service.ReconcileBatches(context.Background(), ReconcileBatchesCommand{CallerID: "alice"})
	require.NoError(t, err)

	require.Len(t, store.setBatchCalls, 1)
	assert.Equal(t, []string{"PICK-1"}, store.setBatchCalls[0].pickingIDs)
	assert.Empty(t, store.setBatchCalls[0].batchID)
	assert.Equal(t, []string{"PICK-2"}, batch.PickingIDs)
	assert.Equal(t, domain.BatchStateDone, batch.State)
}

func TestReconcileBatchesStrictRejectsBeforeMutating(t *testing.T) {
	batch := inProgressBatch("alice", "PICK-1", "PICK-2")
	store := newMockStore()
	store.pickings["PICK-1"] = &domain.Picking{
		PickingID: "PICK-1",
		State:     domain.PickingStateConfirmed,
		BatchID:   batch.BatchID,
	}
	store.pickings["PICK-2"] = &domain.Picking{
		PickingID: "PICK-2",
		Name:      "PICK/0002",
		State:     domain.PickingStateAssigned,
		BatchID:   batch.BatchID,
	}
	repo := newMockBatchRepo(batch)
	service := newTestService(repo, store)

	_, err := service.ReconcileBatches(context.Background(), ReconcileBatchesCommand{CallerID: "alice", Strict: true})
	var incomplete *domain.IncompleteWorkError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, []string{"PICK/0002"}, incomplete.PickingNames)
	assert.False(t, store.mutated())
	assert.Zero(t, repo.saveCalls)
	assert.Equal(t, []string{"PICK-1", "PICK-2"}, batch.PickingIDs)
}

func TestReconcileBatchesNonStrictLeavesIncompleteOpen(t *testing.T) {
	batch := inProgressBatch("alice", "PICK-1")
	store := newMockStore()
	store.pickings["PICK-1"] = &domain.Picking{
		PickingID: "PICK-1",
		State:     domain.PickingStateAssigned,
		BatchID:   batch.BatchID,
	}
	service := newTestService(newMockBatchRepo(batch), store)

	dtos, err := service.ReconcileBatches(context.Background(), ReconcileBatchesCommand{CallerID: "alice"})
	require.NoError(t, err)
	require.Len(t, dtos, 1)
	assert.Equal(t, string(domain.BatchStateInProgress), dtos[0].State)
}

func TestReconcileBatchesFiltersByBatchID(t *testing.T) {
	wanted := inProgressBatch("alice", "PICK-1")
	other := domain.NewBatch("alice")
	other.ClearDomainEvents()
	store := newMockStore()
	store.pickings["PICK-1"] = &domain.Picking{
		PickingID: "PICK-1",
		State:     domain.PickingStateDone,
		BatchID:   wanted.BatchID,
	}
	repo := &mockBatchRepo{batches: map[string]*domain.Batch{wanted.BatchID: wanted, other.BatchID: other}}
	repo.findInProgressFn = func(ctx context.Context, userID string) ([]*domain.Batch, error) {
		return []*domain.Batch{wanted, other}, nil
	}
	service := newTestService(repo, store)

	dtos, err := service.ReconcileBatches(context.Background(), ReconcileBatchesCommand{
		CallerID: "alice",
		BatchIDs: []string{wanted.BatchID},
	})
	require.NoError(t, err)
	require.Len(t, dtos, 1)
	assert.Equal(t, wanted.BatchID, dtos[0].BatchID)
	assert.Equal(t, domain.BatchStateInProgress, other.State)
}

func TestGetNextTaskByProduct(t *testing.T) {
	batch := inProgressBatch("alice", "PICK-1")
	store := newMockStore()
	store.pickings["PICK-1"] = &domain.Picking{
		PickingID: "PICK-1",
		TypeID:    "TYPE-PICK",
		State:     domain.PickingStateAssigned,
		BatchID:   batch.BatchID,
	}
	store.pickingTypes["TYPE-PICK"] = &domain.PickingType{TypeID: "TYPE-PICK", UserScans: domain.ScanByProduct}
	store.lines["PICK-1"] = []domain.MoveLine{
		{LineID: "LINE-2", PickingID: "PICK-1", ProductID: "PROD-B", QtyOrdered: 1, LocationID: "LOC-B"},
		{LineID: "LINE-1", PickingID: "PICK-1", ProductID: "PROD-A", QtyOrdered: 2, LocationID: "LOC-A"},
	}
	service := newTestService(newMockBatchRepo(batch), store)

	task, err := service.GetNextTask(context.Background(), GetNextTaskQuery{BatchID: batch.BatchID})
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, "PROD-A", task.ProductID)
	assert.Equal(t, "LOC-A", task.LocationID)
	require.Len(t, task.MoveLines, 1)
	assert.Equal(t, "LINE-1", task.MoveLines[0].LineID)
	assert.Equal(t, 2, task.NumTasksToPick)
	assert.False(t, task.TasksPicked)
}

func TestGetNextTaskSkipsProducts(t *testing.T) {
	batch := inProgressBatch("alice", "PICK-1")
	store := newMockStore()
	store.pickings["PICK-1"] = &domain.Picking{
		PickingID: "PICK-1",
		TypeID:    "TYPE-PICK",
		State:     domain.PickingStateAssigned,
		BatchID:   batch.BatchID,
	}
	store.lines["PICK-1"] = []domain.MoveLine{
		{LineID: "LINE-1", PickingID: "PICK-1", ProductID: "PROD-A", QtyOrdered: 2, LocationID: "LOC-A"},
		{LineID: "LINE-2", PickingID: "PICK-1", ProductID: "PROD-B", QtyOrdered: 1, LocationID: "LOC-B"},
	}
	service := newTestService(newMockBatchRepo(batch), store)

	task, err := service.GetNextTask(context.Background(), GetNextTaskQuery{
		BatchID:           batch.BatchID,
		SkippedProductIDs: []string{"PROD-A"},
	})
	require.NoError(t, err)
	assert.Equal(t, "PROD-B", task.ProductID)
}

func TestGetNextTaskIgnoresUnassignedPickings(t *testing.T) {
	batch := inProgressBatch("alice", "PICK-1")
	store := newMockStore()
	store.pickings["PICK-1"] = &domain.Picking{
		PickingID: "PICK-1",
		State:     domain.PickingStateConfirmed,
		BatchID:   batch.BatchID,
	}
	store.lines["PICK-1"] = []domain.MoveLine{
		{LineID: "LINE-1", PickingID: "PICK-1", ProductID: "PROD-A", QtyOrdered: 1, LocationID: "LOC-A"},
	}
	service := newTestService(newMockBatchRepo(batch), store)

	task, err := service.GetNextTask(context.Background(), GetNextTaskQuery{BatchID: batch.BatchID})
	require.NoError(t, err)
	assert.Empty(t, task.MoveLines)
}

func TestGetNextTaskUnknownBatch(t *testing.T) {
	service := newTestService(newMockBatchRepo(), newMockStore())

	_, err := service.GetNextTask(context.Background(), GetNextTaskQuery{BatchID: "BATCH-missing"})
	assert.Error(t, err)
}

// unpickableFixture is a batch with one assigned picking holding two
// outstanding lines, one loose and one packaged.
func unpickableFixture() (*domain.Batch, *mockStore) {
	batch := inProgressBatch("alice", "PICK-1")
	store := newMockStore()
	store.pickings["PICK-1"] = &domain.Picking{
		PickingID: "PICK-1",
		State:     domain.PickingStateAssigned,
		BatchID:   batch.BatchID,
	}
	store.lines["PICK-1"] = []domain.MoveLine{
		{LineID: "LINE-1", PickingID: "PICK-1", ProductID: "PROD-A", QtyOrdered: 2, LocationID: "LOC-A"},
		{LineID: "LINE-2", PickingID: "PICK-1", ProductID: "PROD-B", QtyOrdered: 1, LocationID: "LOC-B", PackageID: "PKG-1"},
	}
	store.products["PROD-A"] = &domain.Product{ProductID: "PROD-A"}
	store.products["PROD-B"] = &domain.Product{ProductID: "PROD-B"}
	store.locations["LOC-A"] = &domain.Location{LocationID: "LOC-A"}
	store.locations["LOC-B"] = &domain.Location{LocationID: "LOC-B"}
	store.packages["PKG-1"] = &domain.StockPackage{PackageID: "PKG-1", Name: "PKG-1"}
	return batch, store
}

func TestMarkUnpickableValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		cmd     MarkUnpickableCommand
		wantErr any
	}{
		{
			name:    "neither product nor package",
			cmd:     MarkUnpickableCommand{Reason: "damaged"},
			wantErr: &errors.AppError{},
		},
		{
			name:    "product without location",
			cmd:     MarkUnpickableCommand{Reason: "damaged", ProductRef: "PROD-A"},
			wantErr: &domain.MissingLocationError{},
		},
		{
			name:    "product with package but without location",
			cmd:     MarkUnpickableCommand{Reason: "damaged", ProductRef: "PROD-B", PackageName: "PKG-1"},
			wantErr: &domain.MissingLocationError{},
		},
		{
			name:    "unknown location",
			cmd:     MarkUnpickableCommand{Reason: "damaged", ProductRef: "PROD-A", LocationRef: "LOC-missing"},
			wantErr: &domain.UnknownLocationError{},
		},
		{
			name:    "unknown product",
			cmd:     MarkUnpickableCommand{Reason: "damaged", ProductRef: "PROD-missing", LocationRef: "LOC-A"},
			wantErr: &domain.NoMatchingMoveLinesError{},
		},
		{
			name:    "no lines match",
			cmd:     MarkUnpickableCommand{Reason: "damaged", ProductRef: "PROD-A", LocationRef: "LOC-B"},
			wantErr: &domain.NoMatchingMoveLinesError{},
		},
		{
			name:    "packaged stock without package name",
			cmd:     MarkUnpickableCommand{Reason: "damaged", ProductRef: "PROD-B", LocationRef: "LOC-B"},
			wantErr: &domain.AmbiguousPackageError{},
		},
		{
			name:    "unknown package",
			cmd:     MarkUnpickableCommand{Reason: "damaged", PackageName: "PKG-missing"},
			wantErr: &domain.NoMatchingMoveLinesError{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch, store := unpickableFixture()
			repo := newMockBatchRepo(batch)
			service := newTestService(repo, store)

			cmd := tt.cmd
			cmd.BatchID = batch.BatchID
			_, err := service.MarkUnpickable(context.Background(), cmd)
			require.Error(t, err)
			assert.IsType(t, tt.wantErr, err)
			assert.False(t, store.mutated())
			assert.Zero(t, repo.saveCalls)
		})
	}
}

func TestMarkUnpickableWrongBatchState(t *testing.T) {
	batch, store := unpickableFixture()
	batch.MarkDone()
	service := newTestService(newMockBatchRepo(batch), store)

	_, err := service.MarkUnpickable(context.Background(), MarkUnpickableCommand{
		BatchID:    batch.BatchID,
		Reason:     "damaged",
		ProductRef: "PROD-A",
	})
	var wrongState *domain.WrongStateError
	require.ErrorAs(t, err, &wrongState)
	assert.Equal(t, domain.BatchStateDone, wrongState.State)
}

func TestMarkUnpickableRejectsCrossPickingMatch(t *testing.T) {
	batch, store := unpickableFixture()
	batch.AttachPicking("PICK-2")
	store.pickings["PICK-2"] = &domain.Picking{
		PickingID: "PICK-2",
		State:     domain.PickingStateAssigned,
		BatchID:   batch.BatchID,
	}
	store.lines["PICK-2"] = []domain.MoveLine{
		{LineID: "LINE-3", PickingID: "PICK-2", ProductID: "PROD-A", QtyOrdered: 1, LocationID: "LOC-A"},
	}
	service := newTestService(newMockBatchRepo(batch), store)

	// PROD-A at LOC-A matches lines on two pickings; the report must
	// name one picking's stock, so it is rejected.
	_, err := service.MarkUnpickable(context.Background(), MarkUnpickableCommand{
		BatchID:     batch.BatchID,
		Reason:      "damaged",
		ProductRef:  "PROD-A",
		LocationRef: "LOC-A",
	})
	var notInBatch *domain.NotInBatchError
	require.ErrorAs(t, err, &notInBatch)
	assert.False(t, store.mutated())
}

func TestMarkUnpickableCompletedPicking(t *testing.T) {
	batch, store := unpickableFixture()
	store.pickings["PICK-1"].State = domain.PickingStateDone
	service := newTestService(newMockBatchRepo(batch), store)

	_, err := service.MarkUnpickable(context.Background(), MarkUnpickableCommand{
		BatchID:     batch.BatchID,
		Reason:      "damaged",
		ProductRef:  "PROD-A",
		LocationRef: "LOC-A",
	})
	var completed *domain.AlreadyCompletedError
	require.ErrorAs(t, err, &completed)
	assert.Equal(t, "PICK-1", completed.PickingID)
}

func TestMarkUnpickablePartialBackordersAndMerges(t *testing.T) {
	batch, store := unpickableFixture()
	repo := newMockBatchRepo(batch)
	service := newTestService(repo, store)

	dto, err := service.MarkUnpickable(context.Background(), MarkUnpickableCommand{
		BatchID:     batch.BatchID,
		Reason:      "damaged",
		ProductRef:  "PROD-A",
		LocationRef: "LOC-A",
	})
	require.NoError(t, err)
	require.NotNil(t, dto)

	// Only LINE-1 is affected, so it is split off, unreserved and,
	// once reserved again, folded back into the original picking.
	require.Len(t, store.backorders, 1)
	assert.Equal(t, "PICK-1", store.backorders[0].pickingID)
	assert.Equal(t, []string{"LINE-1"}, store.backorders[0].lineIDs)
	assert.Equal(t, []string{"PICK-1-BO"}, store.unreserved)
	assert.Equal(t, [][2]string{{"PICK-1-BO", "PICK-1"}}, store.merged)
	assert.Equal(t, []string{"PICK-1-BO"}, store.deleted)

	require.Len(t, store.created, 1)
	assert.Equal(t, "TYPE-INT", store.created[0].TypeID)
	assert.Equal(t, "LOC-A", store.created[0].LocationID)
	assert.Equal(t, []string{"QNT-LINE-1"}, store.created[0].QuantIDs)
	assert.True(t, store.created[0].AllowPartial)

	assert.Equal(t, []string{"damaged"}, store.notes)
	assert.Equal(t, []string{"PICK-1"}, batch.PickingIDs)
	assert.Equal(t, string(domain.BatchStateInProgress), dto.State)
}

func TestMarkUnpickableFullReportDetachesWhenUnreservable(t *testing.T) {
	batch := inProgressBatch("alice", "PICK-1")
	store := newMockStore()
	store.pickings["PICK-1"] = &domain.Picking{
		PickingID: "PICK-1",
		State:     domain.PickingStateAssigned,
		BatchID:   batch.BatchID,
	}
	store.lines["PICK-1"] = []domain.MoveLine{
		{LineID: "LINE-1", PickingID: "PICK-1", ProductID: "PROD-A", QtyOrdered: 2, LocationID: "LOC-A"},
	}
	store.products["PROD-A"] = &domain.Product{ProductID: "PROD-A"}
	store.locations["LOC-A"] = &domain.Location{LocationID: "LOC-A"}
	store.reassignState = domain.PickingStateConfirmed
	service := newTestService(newMockBatchRepo(batch), store)

	dto, err := service.MarkUnpickable(context.Background(), MarkUnpickableCommand{
		BatchID:     batch.BatchID,
		Reason:      "missing",
		ProductRef:  "PROD-A",
		LocationRef: "LOC-A",
	})
	require.NoError(t, err)

	// The whole picking was affected: no backorder split, and since
	// nothing could be re-reserved the picking is cancelled and leaves
	// the batch.
	assert.Empty(t, store.backorders)
	assert.Equal(t, []string{"PICK-1"}, store.unreserved)
	assert.Equal(t, []string{"PICK-1"}, store.cancelled)
	assert.Equal(t, domain.PickingStateCancel, store.pickings["PICK-1"].State)
	require.Len(t, store.setBatchCalls, 1)
	assert.Equal(t, []string{"PICK-1"}, store.setBatchCalls[0].pickingIDs)
	assert.Empty(t, store.setBatchCalls[0].batchID)
	assert.Empty(t, dto.PickingIDs)
	// The released picking was the batch's only work, so the batch closes.
	assert.Equal(t, string(domain.BatchStateDone), dto.State)
}

func TestMarkUnpickableByPackage(t *testing.T) {
	batch, store := unpickableFixture()
	service := newTestService(newMockBatchRepo(batch), store)

	_, err := service.MarkUnpickable(context.Background(), MarkUnpickableCommand{
		BatchID:     batch.BatchID,
		Reason:      "crushed",
		PackageName: "PKG-1",
	})
	require.NoError(t, err)

	require.Len(t, store.created, 1)
	assert.Equal(t, []string{"QNT-PKG"}, store.created[0].QuantIDs)
	// Package reports take the whole package, never a partial quantity.
	assert.False(t, store.created[0].AllowPartial)
	require.Len(t, store.backorders, 1)
	assert.Equal(t, []string{"LINE-2"}, store.backorders[0].lineIDs)
}

func TestDropOffSplitsAndValidates(t *testing.T) {
	batch := inProgressBatch("alice", "PICK-1")
	store := newMockStore()
	store.pickings["PICK-1"] = &domain.Picking{
		PickingID: "PICK-1",
		State:     domain.PickingStateAssigned,
		BatchID:   batch.BatchID,
	}
	store.lines["PICK-1"] = []domain.MoveLine{
		{LineID: "LINE-1", PickingID: "PICK-1", ProductID: "PROD-A", QtyOrdered: 2, QtyDone: 2, LocationID: "LOC-A"},
		{LineID: "LINE-2", PickingID: "PICK-1", ProductID: "PROD-B", QtyOrdered: 1, LocationID: "LOC-B"},
	}
	store.locations["GOODS-OUT"] = &domain.Location{LocationID: "LOC-OUT", Name: "GOODS-OUT"}
	service := newTestService(newMockBatchRepo(batch), store)

	dto, err := service.DropOff(context.Background(), DropOffCommand{
		BatchID:       batch.BatchID,
		LocationRef:   "GOODS-OUT",
		ContinueBatch: true,
	})
	require.NoError(t, err)
	require.NotNil(t, dto)
	assert.Equal(t, string(domain.BatchStateInProgress), dto.State)

	require.Len(t, store.destCalls, 1)
	assert.Equal(t, []string{"LINE-1"}, store.destCalls[0].pickingIDs)
	assert.Equal(t, "LOC-OUT", store.destCalls[0].batchID)
	require.Len(t, store.backorders, 1)
	assert.Equal(t, []string{"LINE-1"}, store.backorders[0].lineIDs)
	assert.Equal(t, []string{"PICK-1-BO"}, store.validated)
}

func TestDropOffFullyPickedValidatesInPlace(t *testing.T) {
	batch := inProgressBatch("alice", "PICK-1")
	store := newMockStore()
	store.pickings["PICK-1"] = &domain.Picking{
		PickingID: "PICK-1",
		State:     domain.PickingStateAssigned,
		BatchID:   batch.BatchID,
	}
	store.lines["PICK-1"] = []domain.MoveLine{
		{LineID: "LINE-1", PickingID: "PICK-1", ProductID: "PROD-A", QtyOrdered: 2, QtyDone: 2, LocationID: "LOC-A"},
	}
	service := newTestService(newMockBatchRepo(batch), store)

	dto, err := service.DropOff(context.Background(), DropOffCommand{BatchID: batch.BatchID})
	require.NoError(t, err)

	assert.Empty(t, store.backorders)
	assert.Equal(t, []string{"PICK-1"}, store.validated)
	// Nothing remains to pick and the user did not continue, so the
	// non-strict reconcile closes the batch.
	assert.Equal(t, string(domain.BatchStateDone), dto.State)
}

func TestDropOffReleasesIncompleteWork(t *testing.T) {
	batch := inProgressBatch("alice", "PICK-1")
	store := newMockStore()
	store.pickings["PICK-1"] = &domain.Picking{
		PickingID: "PICK-1",
		State:     domain.PickingStateAssigned,
		BatchID:   batch.BatchID,
	}
	store.lines["PICK-1"] = []domain.MoveLine{
		{LineID: "LINE-1", PickingID: "PICK-1", ProductID: "PROD-A", QtyOrdered: 2, QtyDone: 2, LocationID: "LOC-A"},
		{LineID: "LINE-2", PickingID: "PICK-1", ProductID: "PROD-B", QtyOrdered: 1, LocationID: "LOC-B"},
	}
	service := newTestService(newMockBatchRepo(batch), store)

	dto, err := service.DropOff(context.Background(), DropOffCommand{BatchID: batch.BatchID})
	require.NoError(t, err)

	// The picked line is split off and validated; the half-picked rest
	// returns to the pool so the operator can claim a fresh batch.
	require.Len(t, store.backorders, 1)
	assert.Equal(t, []string{"LINE-1"}, store.backorders[0].lineIDs)
	assert.Equal(t, []string{"PICK-1-BO"}, store.validated)
	require.Len(t, store.setBatchCalls, 1)
	assert.Equal(t, []string{"PICK-1"}, store.setBatchCalls[0].pickingIDs)
	assert.Empty(t, store.setBatchCalls[0].batchID)
	assert.Empty(t, store.pickings["PICK-1"].BatchID)
	assert.Empty(t, dto.PickingIDs)
	assert.Equal(t, string(domain.BatchStateDone), dto.State)
}

func TestDropOffNothingStarted(t *testing.T) {
	batch := inProgressBatch("alice", "PICK-1")
	store := newMockStore()
	store.pickings["PICK-1"] = &domain.Picking{
		PickingID: "PICK-1",
		State:     domain.PickingStateAssigned,
		BatchID:   batch.BatchID,
	}
	store.lines["PICK-1"] = []domain.MoveLine{
		{LineID: "LINE-1", PickingID: "PICK-1", ProductID: "PROD-A", QtyOrdered: 2, LocationID: "LOC-A"},
	}
	service := newTestService(newMockBatchRepo(batch), store)

	dto, err := service.DropOff(context.Background(), DropOffCommand{BatchID: batch.BatchID, ContinueBatch: true})
	require.NoError(t, err)
	assert.Empty(t, store.validated)
	assert.Empty(t, store.backorders)
	assert.Equal(t, string(domain.BatchStateInProgress), dto.State)
}

func TestDropOffUnknownLocation(t *testing.T) {
	batch := inProgressBatch("alice", "PICK-1")
	store := newMockStore()
	service := newTestService(newMockBatchRepo(batch), store)

	_, err := service.DropOff(context.Background(), DropOffCommand{
		BatchID:     batch.BatchID,
		LocationRef: "LOC-missing",
	})
	var unknown *domain.UnknownLocationError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "LOC-missing", unknown.Ref)
	assert.False(t, store.mutated())
}

func TestDropOffWrongState(t *testing.T) {
	batch := inProgressBatch("alice", "PICK-1")
	batch.MarkDone()
	service := newTestService(newMockBatchRepo(batch), newMockStore())

	_, err := service.DropOff(context.Background(), DropOffCommand{BatchID: batch.BatchID})
	var wrongState *domain.WrongStateError
	assert.ErrorAs(t, err, &wrongState)
}

func TestIsValidDestination(t *testing.T) {
	tests := []struct {
		name        string
		locationRef string
		invalidFor  string
		want        bool
	}{
		{name: "all pickings accept", locationRef: "GOODS-OUT", want: true},
		{name: "one picking rejects", locationRef: "GOODS-OUT", invalidFor: "PICK-2", want: false},
		{name: "unresolvable reference", locationRef: "LOC-missing", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch := inProgressBatch("alice", "PICK-1", "PICK-2")
			store := newMockStore()
			store.locations["GOODS-OUT"] = &domain.Location{LocationID: "LOC-OUT", Name: "GOODS-OUT"}
			if tt.invalidFor != "" {
				store.invalidDests[tt.invalidFor] = true
			}
			service := newTestService(newMockBatchRepo(batch), store)

			ok, err := service.IsValidDestination(context.Background(), IsValidDestinationQuery{
				BatchID:     batch.BatchID,
				LocationRef: tt.locationRef,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestUnassignUserBatches(t *testing.T) {
	batch := inProgressBatch("alice", "PICK-1", "PICK-2")
	store := newMockStore()
	store.pickings["PICK-1"] = &domain.Picking{
		PickingID: "PICK-1",
		State:     domain.PickingStateAssigned,
		BatchID:   batch.BatchID,
	}
	store.pickings["PICK-2"] = &domain.Picking{
		PickingID: "PICK-2",
		State:     domain.PickingStateDone,
		BatchID:   batch.BatchID,
	}
	service := newTestService(newMockBatchRepo(batch), store)

	err := service.UnassignUserBatches(context.Background(), UnassignUserBatchesCommand{CallerID: "alice"})
	require.NoError(t, err)

	require.Len(t, store.setBatchCalls, 1)
	assert.Equal(t, []string{"PICK-1"}, store.setBatchCalls[0].pickingIDs)
	assert.Empty(t, store.setBatchCalls[0].batchID)
	assert.Equal(t, domain.BatchStateDone, batch.State)
	assert.Equal(t, []string{"PICK-2"}, batch.PickingIDs)
}

func TestUnassignUserBatchesNoBatches(t *testing.T) {
	service := newTestService(newMockBatchRepo(), newMockStore())

	err := service.UnassignUserBatches(context.Background(), UnassignUserBatchesCommand{CallerID: "alice"})
	assert.NoError(t, err)
}
