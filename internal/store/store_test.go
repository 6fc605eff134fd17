package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"matrix-planner/internal/model"
)

var errRemote = errors.New("remote unavailable")

func zapNop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// fakeTaskRepo is an in-memory TaskPersistence with failure injection.
type fakeTaskRepo struct {
	mu         sync.Mutex
	rows       map[string]model.Task
	failCreate bool
	failUpdate bool
	failDelete bool
	failList   bool
	failBulk   bool
	failClear  bool

	// onCreate and onList run while the store lock is released,
	// simulating events arriving during an in-flight remote call.
	onCreate func()
	onList   func(ownerID string)
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{rows: make(map[string]model.Task)}
}

func (f *fakeTaskRepo) ListByOwner(_ context.Context, ownerID string) ([]model.Task, error) {
	if f.onList != nil {
		f.onList(ownerID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failList {
		return nil, errRemote
	}
	var out []model.Task
	for _, row := range f.rows {
		if row.OwnerID == ownerID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeTaskRepo) Create(_ context.Context, task model.Task) (model.Task, error) {
	if f.onCreate != nil {
		f.onCreate()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return model.Task{}, errRemote
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	task.SubTasks = nil
	f.rows[task.ID] = task
	return task, nil
}

func (f *fakeTaskRepo) Update(_ context.Context, id string, patch model.TaskPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate {
		return errRemote
	}
	row, ok := f.rows[id]
	if !ok {
		return fmt.Errorf("row %s missing", id)
	}
	row.Apply(&patch, row.UpdatedAt)
	f.rows[id] = row
	return nil
}

func (f *fakeTaskRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete {
		return errRemote
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeTaskRepo) BulkInsert(_ context.Context, tasks []model.Task) ([]model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failBulk {
		return nil, errRemote
	}
	stored := make([]model.Task, len(tasks))
	for i, task := range tasks {
		if task.ID == "" {
			task.ID = uuid.NewString()
		}
		f.rows[task.ID] = task
		stored[i] = task
	}
	return stored, nil
}

func (f *fakeTaskRepo) DeleteAllForOwner(_ context.Context, ownerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failClear {
		return errRemote
	}
	for id, row := range f.rows {
		if row.OwnerID == ownerID {
			delete(f.rows, id)
		}
	}
	return nil
}

func (f *fakeTaskRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

// fakeSubRepo is an in-memory SubTaskPersistence with failure injection.
type fakeSubRepo struct {
	mu         sync.Mutex
	rows       map[string]model.SubTask
	failCreate bool
	failUpdate bool
	failDelete bool
}

func newFakeSubRepo() *fakeSubRepo {
	return &fakeSubRepo{rows: make(map[string]model.SubTask)}
}

func (f *fakeSubRepo) ListByOwner(_ context.Context, ownerID string) ([]model.SubTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.SubTask
	for _, row := range f.rows {
		if row.OwnerID == ownerID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeSubRepo) Create(_ context.Context, sub model.SubTask) (model.SubTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return model.SubTask{}, errRemote
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	f.rows[sub.ID] = sub
	return sub, nil
}

func (f *fakeSubRepo) Update(_ context.Context, id string, patch model.SubTaskPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate {
		return errRemote
	}
	row, ok := f.rows[id]
	if !ok {
		return fmt.Errorf("row %s missing", id)
	}
	row.Apply(patch)
	f.rows[id] = row
	return nil
}

func (f *fakeSubRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete {
		return errRemote
	}
	delete(f.rows, id)
	return nil
}

// testClock is an adjustable clock for pinning derived metrics.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	store *Store
	tasks *fakeTaskRepo
	subs  *fakeSubRepo
	clock *testClock
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	opts.Clock = clock.Now
	tasks := newFakeTaskRepo()
	subs := newFakeSubRepo()
	st := New(tasks, subs, zapNop(), nil, opts)
	require.NoError(t, st.SetOwner(context.Background(), "owner-1"))
	return &testEnv{store: st, tasks: tasks, subs: subs, clock: clock}
}

func (e *testEnv) addTask(t *testing.T, input AddTaskInput) model.Task {
	t.Helper()
	task, err := e.store.AddTask(context.Background(), input)
	require.NoError(t, err)
	return task
}

func TestAddTaskDefaults(t *testing.T) {
	env := newTestEnv(t, Options{})

	task := env.addTask(t, AddTaskInput{Title: "Ship", Urgent: true, Important: true})

	assert.Equal(t, model.QuadrantDo, task.Quadrant)
	assert.Equal(t, 0, task.Order)
	assert.Equal(t, model.DefaultEstimatedDuration, task.EstimatedDuration)
	assert.Equal(t, model.StatusPending, task.Status)
	assert.Equal(t, []string{}, task.Tags)
	assert.NotContains(t, task.ID, "local-", "optimistic id must be replaced on confirmation")
	assert.Equal(t, 1, env.tasks.count())
}

func TestAddTaskOrderIncrementsWithinQuadrant(t *testing.T) {
	env := newTestEnv(t, Options{})

	first := env.addTask(t, AddTaskInput{Title: "A", Urgent: true, Important: true})
	second := env.addTask(t, AddTaskInput{Title: "B", Urgent: true, Important: true})
	other := env.addTask(t, AddTaskInput{Title: "C", Urgent: false, Important: true})

	assert.Equal(t, 0, first.Order)
	assert.Equal(t, 1, second.Order)
	assert.Equal(t, 0, other.Order, "other quadrants count separately")
}

func TestAddTaskStrictRollbackOnCreateFailure(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.tasks.failCreate = true

	_, err := env.store.AddTask(context.Background(), AddTaskInput{Title: "Doomed", Urgent: true, Important: true})

	require.ErrorIs(t, err, errRemote)
	assert.Empty(t, env.store.Tasks(), "optimistic record must be removed")
	assert.Equal(t, 0, env.tasks.count())
}

func TestMutationsRequireOwner(t *testing.T) {
	env := newTestEnv(t, Options{})
	require.NoError(t, env.store.SetOwner(context.Background(), ""))

	_, err := env.store.AddTask(context.Background(), AddTaskInput{Title: "X"})
	assert.ErrorIs(t, err, ErrNoOwner)

	_, err = env.store.UpdateTask(context.Background(), "any", model.TaskPatch{})
	assert.ErrorIs(t, err, ErrNoOwner)

	assert.ErrorIs(t, env.store.DeleteTask(context.Background(), "any"), ErrNoOwner)
	assert.ErrorIs(t, env.store.ClearAll(context.Background()), ErrNoOwner)
	assert.Empty(t, env.store.Tasks())
}

func TestUpdateTaskRederivesQuadrant(t *testing.T) {
	env := newTestEnv(t, Options{})
	task := env.addTask(t, AddTaskInput{Title: "Email", Urgent: true, Important: true})

	urgent, important := false, false
	updated, err := env.store.UpdateTask(context.Background(), task.ID, model.TaskPatch{Urgent: &urgent, Important: &important})
	require.NoError(t, err)

	assert.Equal(t, model.QuadrantHold, updated.Quadrant)
	assert.Empty(t, env.store.QuadrantTasks(model.QuadrantDo))
	require.Len(t, env.store.QuadrantTasks(model.QuadrantHold), 1)
}

func TestUpdateTaskStampsCompletedAt(t *testing.T) {
	env := newTestEnv(t, Options{})
	task := env.addTask(t, AddTaskInput{Title: "Review PR", Urgent: true, Important: true})

	completed := model.StatusCompleted
	updated, err := env.store.UpdateTask(context.Background(), task.ID, model.TaskPatch{Status: &completed})
	require.NoError(t, err)

	require.NotNil(t, updated.CompletedAt)
	assert.Equal(t, env.clock.Now(), *updated.CompletedAt)
}

func TestUpdateTaskRollbackOnRemoteFailure(t *testing.T) {
	env := newTestEnv(t, Options{})
	task := env.addTask(t, AddTaskInput{Title: "Original", Urgent: true, Important: true})
	env.tasks.failUpdate = true

	title := "Changed"
	_, err := env.store.UpdateTask(context.Background(), task.ID, model.TaskPatch{Title: &title})

	require.ErrorIs(t, err, errRemote)
	all := env.store.Tasks()
	require.Len(t, all, 1)
	assert.Equal(t, "Original", all[0].Title)
	assert.Equal(t, model.QuadrantDo, all[0].Quadrant)
}

func TestUpdateTaskNotFound(t *testing.T) {
	env := newTestEnv(t, Options{})
	_, err := env.store.UpdateTask(context.Background(), "missing", model.TaskPatch{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMoveToQuadrantDerivesFlags(t *testing.T) {
	env := newTestEnv(t, Options{})
	task := env.addTask(t, AddTaskInput{Title: "Move me"})

	moved, err := env.store.MoveToQuadrant(context.Background(), task.ID, model.QuadrantDelegate)
	require.NoError(t, err)

	assert.Equal(t, model.QuadrantDelegate, moved.Quadrant)
	assert.True(t, moved.Urgent)
	assert.False(t, moved.Important)
}

func TestMoveToQuadrantRejectsUnknown(t *testing.T) {
	env := newTestEnv(t, Options{})
	task := env.addTask(t, AddTaskInput{Title: "Stay"})

	_, err := env.store.MoveToQuadrant(context.Background(), task.ID, "urgentish")
	assert.Error(t, err)
}

func TestDeleteAndUndoWithinWindow(t *testing.T) {
	env := newTestEnv(t, Options{})
	task := env.addTask(t, AddTaskInput{Title: "Delete me", Urgent: true, Important: true})
	_, err := env.store.AddSubTask(context.Background(), task.ID, "step")
	require.NoError(t, err)

	require.NoError(t, env.store.DeleteTask(context.Background(), task.ID))
	assert.Empty(t, env.store.Tasks())
	assert.Equal(t, 0, env.tasks.count())

	restored, err := env.store.UndoDelete(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, restored.ID)
	require.Len(t, restored.SubTasks, 1)

	all := env.store.Tasks()
	require.Len(t, all, 1)
	assert.Equal(t, 1, env.tasks.count(), "undo re-creates the remote row")
}

func TestUndoExpiresAfterWindow(t *testing.T) {
	env := newTestEnv(t, Options{UndoWindow: 5 * time.Second})
	task := env.addTask(t, AddTaskInput{Title: "Gone", Urgent: true, Important: true})

	require.NoError(t, env.store.DeleteTask(context.Background(), task.ID))
	env.clock.Advance(6 * time.Second)

	_, err := env.store.UndoDelete(context.Background(), task.ID)
	assert.ErrorIs(t, err, ErrUndoExpired)
	assert.Empty(t, env.store.Tasks())
}

func TestSweepUndoDropsExpiredEntries(t *testing.T) {
	env := newTestEnv(t, Options{UndoWindow: 5 * time.Second})
	task := env.addTask(t, AddTaskInput{Title: "Swept", Urgent: true, Important: true})

	require.NoError(t, env.store.DeleteTask(context.Background(), task.ID))
	env.clock.Advance(6 * time.Second)
	env.store.SweepUndo()

	_, err := env.store.UndoDelete(context.Background(), task.ID)
	assert.ErrorIs(t, err, ErrUndoExpired)
}

func TestDeleteRollbackOnRemoteFailure(t *testing.T) {
	env := newTestEnv(t, Options{})
	task := env.addTask(t, AddTaskInput{Title: "Sticky", Urgent: true, Important: true})
	env.tasks.failDelete = true

	err := env.store.DeleteTask(context.Background(), task.ID)

	require.ErrorIs(t, err, errRemote)
	all := env.store.Tasks()
	require.Len(t, all, 1)
	assert.Equal(t, task.ID, all[0].ID)

	// The failed delete must not leave an undo entry behind.
	_, err = env.store.UndoDelete(context.Background(), task.ID)
	assert.ErrorIs(t, err, ErrUndoExpired)
}

func TestStaleCreateCompletionIsNoOp(t *testing.T) {
	env := newTestEnv(t, Options{})

	// Delete the optimistic record while its create call is in flight.
	env.tasks.onCreate = func() {
		env.tasks.onCreate = nil
		tasks := env.store.Tasks()
		require.Len(t, tasks, 1)
		require.NoError(t, env.store.DeleteTask(context.Background(), tasks[0].ID))
	}

	_, err := env.store.AddTask(context.Background(), AddTaskInput{Title: "Ephemeral", Urgent: true, Important: true})
	require.NoError(t, err)

	assert.Empty(t, env.store.Tasks(), "completion for a deleted record must not re-insert it")
}

func TestRapidSequentialUpdatesConvergeToLastApplied(t *testing.T) {
	env := newTestEnv(t, Options{})
	task := env.addTask(t, AddTaskInput{Title: "v0", Urgent: true, Important: true})

	for i := 1; i <= 5; i++ {
		title := fmt.Sprintf("v%d", i)
		_, err := env.store.UpdateTask(context.Background(), task.ID, model.TaskPatch{Title: &title})
		require.NoError(t, err)
	}

	all := env.store.Tasks()
	require.Len(t, all, 1)
	assert.Equal(t, "v5", all[0].Title)
}

func TestReorderInQuadrant(t *testing.T) {
	env := newTestEnv(t, Options{})
	a := env.addTask(t, AddTaskInput{Title: "A", Urgent: true, Important: true})
	b := env.addTask(t, AddTaskInput{Title: "B", Urgent: true, Important: true})
	c := env.addTask(t, AddTaskInput{Title: "C", Urgent: true, Important: true})

	env.store.ReorderInQuadrant(context.Background(), model.QuadrantDo, []string{c.ID, a.ID, b.ID})

	got := env.store.QuadrantTasks(model.QuadrantDo)
	require.Len(t, got, 3)
	assert.Equal(t, []string{c.ID, a.ID, b.ID}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestReorderIsIdempotent(t *testing.T) {
	env := newTestEnv(t, Options{})
	a := env.addTask(t, AddTaskInput{Title: "A", Urgent: true, Important: true})
	b := env.addTask(t, AddTaskInput{Title: "B", Urgent: true, Important: true})

	order := []string{b.ID, a.ID}
	env.store.ReorderInQuadrant(context.Background(), model.QuadrantDo, order)
	once := env.store.QuadrantTasks(model.QuadrantDo)
	env.store.ReorderInQuadrant(context.Background(), model.QuadrantDo, order)
	twice := env.store.QuadrantTasks(model.QuadrantDo)

	require.Equal(t, len(once), len(twice))
	for i := range once {
		assert.Equal(t, once[i].ID, twice[i].ID)
		assert.Equal(t, once[i].Order, twice[i].Order)
	}
}

func TestReorderSkipsUnknownAndForeignIDs(t *testing.T) {
	env := newTestEnv(t, Options{})
	a := env.addTask(t, AddTaskInput{Title: "A", Urgent: true, Important: true})
	other := env.addTask(t, AddTaskInput{Title: "Other", Urgent: false, Important: true})

	env.store.ReorderInQuadrant(context.Background(), model.QuadrantDo, []string{"ghost", other.ID, a.ID})

	got := env.store.QuadrantTasks(model.QuadrantDo)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Order, "index within the provided list")
	scheduled := env.store.QuadrantTasks(model.QuadrantSchedule)
	require.Len(t, scheduled, 1)
	assert.Equal(t, 0, scheduled[0].Order, "foreign-quadrant task untouched")
}

func TestReorderRemoteFailureKeepsLocalOrder(t *testing.T) {
	env := newTestEnv(t, Options{})
	a := env.addTask(t, AddTaskInput{Title: "A", Urgent: true, Important: true})
	b := env.addTask(t, AddTaskInput{Title: "B", Urgent: true, Important: true})
	env.tasks.failUpdate = true

	env.store.ReorderInQuadrant(context.Background(), model.QuadrantDo, []string{b.ID, a.ID})

	got := env.store.QuadrantTasks(model.QuadrantDo)
	require.Len(t, got, 2)
	assert.Equal(t, b.ID, got[0].ID, "best-effort reorder keeps the optimistic order")
}

func TestSubTaskLifecycle(t *testing.T) {
	env := newTestEnv(t, Options{})
	task := env.addTask(t, AddTaskInput{Title: "Parent", Urgent: true, Important: true})

	first, err := env.store.AddSubTask(context.Background(), task.ID, "one")
	require.NoError(t, err)
	second, err := env.store.AddSubTask(context.Background(), task.ID, "two")
	require.NoError(t, err)
	assert.Equal(t, 0, first.Order)
	assert.Equal(t, 1, second.Order)
	assert.NotContains(t, first.ID, "local-")

	require.NoError(t, env.store.ToggleSubTask(context.Background(), first.ID, true))
	all := env.store.Tasks()
	require.Len(t, all, 1)
	require.Len(t, all[0].SubTasks, 2)
	assert.True(t, all[0].SubTasks[0].Completed)

	require.NoError(t, env.store.DeleteSubTask(context.Background(), second.ID))
	all = env.store.Tasks()
	require.Len(t, all[0].SubTasks, 1)
}

func TestAddSubTaskRollbackOnFailure(t *testing.T) {
	env := newTestEnv(t, Options{})
	task := env.addTask(t, AddTaskInput{Title: "Parent", Urgent: true, Important: true})
	env.subs.failCreate = true

	_, err := env.store.AddSubTask(context.Background(), task.ID, "doomed")

	require.ErrorIs(t, err, errRemote)
	all := env.store.Tasks()
	require.Len(t, all, 1)
	assert.Empty(t, all[0].SubTasks)
}

func TestToggleSubTaskRollbackOnFailure(t *testing.T) {
	env := newTestEnv(t, Options{})
	task := env.addTask(t, AddTaskInput{Title: "Parent", Urgent: true, Important: true})
	sub, err := env.store.AddSubTask(context.Background(), task.ID, "step")
	require.NoError(t, err)
	env.subs.failUpdate = true

	err = env.store.ToggleSubTask(context.Background(), sub.ID, true)

	require.ErrorIs(t, err, errRemote)
	all := env.store.Tasks()
	assert.False(t, all[0].SubTasks[0].Completed)
}

func TestDeleteSubTaskRollbackOnFailure(t *testing.T) {
	env := newTestEnv(t, Options{})
	task := env.addTask(t, AddTaskInput{Title: "Parent", Urgent: true, Important: true})
	sub, err := env.store.AddSubTask(context.Background(), task.ID, "step")
	require.NoError(t, err)
	env.subs.failDelete = true

	err = env.store.DeleteSubTask(context.Background(), sub.ID)

	require.ErrorIs(t, err, errRemote)
	all := env.store.Tasks()
	require.Len(t, all[0].SubTasks, 1)
}

func TestClearAllRemovesEverything(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.addTask(t, AddTaskInput{Title: "A", Urgent: true, Important: true})
	env.addTask(t, AddTaskInput{Title: "B", Urgent: false, Important: true})

	require.NoError(t, env.store.ClearAll(context.Background()))

	assert.Empty(t, env.store.Tasks())
	assert.Equal(t, 0, env.tasks.count())
}

func TestClearAllRemoteFailureKeepsCollection(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.addTask(t, AddTaskInput{Title: "A", Urgent: true, Important: true})
	env.tasks.failClear = true

	err := env.store.ClearAll(context.Background())

	require.ErrorIs(t, err, errRemote)
	assert.Len(t, env.store.Tasks(), 1)
}

func TestSetOwnerLoadsAndGroupsSubTasks(t *testing.T) {
	env := newTestEnv(t, Options{})
	task := env.addTask(t, AddTaskInput{Title: "Persisted", Urgent: true, Important: true})
	_, err := env.store.AddSubTask(context.Background(), task.ID, "step")
	require.NoError(t, err)

	// Reload the same owner from persistence.
	require.NoError(t, env.store.SetOwner(context.Background(), "owner-1"))

	all := env.store.Tasks()
	require.Len(t, all, 1)
	assert.Equal(t, task.ID, all[0].ID)
	require.Len(t, all[0].SubTasks, 1)
	assert.Equal(t, task.ID, all[0].SubTasks[0].TaskID)
}

func TestSetOwnerEmptyClearsCollection(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.addTask(t, AddTaskInput{Title: "A", Urgent: true, Important: true})

	require.NoError(t, env.store.SetOwner(context.Background(), ""))

	assert.Empty(t, env.store.Tasks())
	assert.Equal(t, "", env.store.Owner())
}

func TestSupersededLoadDoesNotOverwriteNewerOwner(t *testing.T) {
	env := newTestEnv(t, Options{})

	// Seed rows for both owners.
	env.addTask(t, AddTaskInput{Title: "For A", Urgent: true, Important: true})
	require.NoError(t, env.store.SetOwner(context.Background(), "owner-2"))
	env.addTask(t, AddTaskInput{Title: "For B", Urgent: true, Important: true})

	// While owner-1's load is in flight, a switch to owner-2 arrives.
	env.tasks.onList = func(ownerID string) {
		if ownerID != "owner-1" {
			return
		}
		env.tasks.onList = nil
		require.NoError(t, env.store.SetOwner(context.Background(), "owner-2"))
	}

	require.NoError(t, env.store.SetOwner(context.Background(), "owner-1"))

	assert.Equal(t, "owner-2", env.store.Owner())
	all := env.store.Tasks()
	require.Len(t, all, 1)
	assert.Equal(t, "For B", all[0].Title)
}

func TestLoadFailureSurfacesError(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.tasks.failList = true

	err := env.store.SetOwner(context.Background(), "owner-3")

	require.ErrorIs(t, err, errRemote)
	assert.Empty(t, env.store.Tasks())
}
