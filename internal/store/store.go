package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"matrix-planner/internal/model"
)

// TaskPersistence is the row-store contract the store reconciles
// against. Implementations assign canonical ids and may fail with
// transport errors; the store treats any failure uniformly.
type TaskPersistence interface {
	ListByOwner(ctx context.Context, ownerID string) ([]model.Task, error)
	Create(ctx context.Context, task model.Task) (model.Task, error)
	Update(ctx context.Context, id string, patch model.TaskPatch) error
	Delete(ctx context.Context, id string) error
	BulkInsert(ctx context.Context, tasks []model.Task) ([]model.Task, error)
	DeleteAllForOwner(ctx context.Context, ownerID string) error
}

// SubTaskPersistence is the row-store contract for subtasks.
type SubTaskPersistence interface {
	ListByOwner(ctx context.Context, ownerID string) ([]model.SubTask, error)
	Create(ctx context.Context, sub model.SubTask) (model.SubTask, error)
	Update(ctx context.Context, id string, patch model.SubTaskPatch) error
	Delete(ctx context.Context, id string) error
}

// Notifier receives user-facing acknowledgments. Every mutation that can
// fail remotely reports its outcome here so the presentation layer can
// surface it without the store ever panicking across its boundary.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// NopNotifier discards all acknowledgments.
type NopNotifier struct{}

func (NopNotifier) Success(string) {}
func (NopNotifier) Error(string)   {}

// Sentinel errors returned across the store boundary.
var (
	ErrNoOwner         = errors.New("no owner identity set")
	ErrNotFound        = errors.New("task not found")
	ErrInvalidSnapshot = errors.New("invalid snapshot")
	ErrUndoExpired     = errors.New("undo window expired")
)

// Options tune store behavior. The zero value gets sensible defaults.
type Options struct {
	// FocusLimit caps the daily focus list. Default 5.
	FocusLimit int
	// FocusAllQuadrants widens daily focus beyond the do quadrant.
	FocusAllQuadrants bool
	// UndoWindow bounds how long a deleted task stays restorable.
	// Default 10s.
	UndoWindow time.Duration
	// Clock overrides the wall clock, for tests. Default time.Now.
	Clock func() time.Time
}

const (
	defaultFocusLimit = 5
	defaultUndoWindow = 10 * time.Second
)

// deletedTask keeps a removed record restorable for the undo window.
type deletedTask struct {
	task    model.Task
	expires time.Time
}

// Store owns the canonical in-memory task collection for one owner
// identity. Mutations apply optimistically before the persistence
// round-trip and roll back to a snapshot captured at call time when the
// round-trip fails. The mutex is released during persistence calls, and
// every completion path re-checks that its target record still exists,
// so a completion for a since-deleted record is a no-op.
type Store struct {
	mu      sync.Mutex
	tasks   []*model.Task
	ownerID string
	loading bool
	loadGen uint64
	deleted map[string]deletedTask

	taskRepo TaskPersistence
	subRepo  SubTaskPersistence
	log      *zap.SugaredLogger
	notifier Notifier
	opts     Options
}

// New builds a store around the given persistence. The notifier may be
// nil, in which case acknowledgments are discarded.
func New(tasks TaskPersistence, subs SubTaskPersistence, log *zap.SugaredLogger, notifier Notifier, opts Options) *Store {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if opts.FocusLimit <= 0 {
		opts.FocusLimit = defaultFocusLimit
	}
	if opts.UndoWindow <= 0 {
		opts.UndoWindow = defaultUndoWindow
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Store{
		taskRepo: tasks,
		subRepo:  subs,
		log:      log,
		notifier: notifier,
		opts:     opts,
		deleted:  make(map[string]deletedTask),
	}
}

// AddTaskInput is the caller-supplied portion of a new task. A non-empty
// title is the caller's contract; the store does not re-validate it.
type AddTaskInput struct {
	Title             string
	Description       string
	Urgent            bool
	Important         bool
	DueDate           *time.Time
	EstimatedDuration int
	Tags              []string
}

// Owner returns the current owner identity, empty when none is set.
func (s *Store) Owner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ownerID
}

// Loading reports whether a load for the current owner is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// SetOwner switches the owner identity and reloads the collection from
// persistence. An empty owner clears the collection and disables
// mutations. Rapid successive calls are safe: each load carries a
// generation stamp and a late result from a superseded load is dropped.
func (s *Store) SetOwner(ctx context.Context, ownerID string) error {
	s.mu.Lock()
	s.ownerID = ownerID
	s.loadGen++
	gen := s.loadGen
	s.tasks = nil
	s.deleted = make(map[string]deletedTask)
	if ownerID == "" {
		s.loading = false
		s.mu.Unlock()
		return nil
	}
	s.loading = true
	s.mu.Unlock()

	tasks, err := s.taskRepo.ListByOwner(ctx, ownerID)
	var subs []model.SubTask
	if err == nil {
		subs, err = s.subRepo.ListByOwner(ctx, ownerID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.loadGen {
		// A newer SetOwner superseded this load.
		return nil
	}
	s.loading = false
	if err != nil {
		s.notifier.Error("Failed to load tasks")
		return fmt.Errorf("load owner %s: %w", ownerID, err)
	}

	byTask := make(map[string][]model.SubTask)
	for _, sub := range subs {
		byTask[sub.TaskID] = append(byTask[sub.TaskID], sub)
	}
	s.tasks = make([]*model.Task, 0, len(tasks))
	for _, task := range tasks {
		t := task.Clone()
		t.SubTasks = byTask[t.ID]
		if t.Tags == nil {
			// Legacy rows predate tags.
			t.Tags = []string{}
		}
		s.tasks = append(s.tasks, &t)
	}
	return nil
}

// AddTask inserts a task optimistically under a temporary id, then
// persists it and swaps in the canonical record. On persistence failure
// the optimistic record is removed again (strict rollback).
func (s *Store) AddTask(ctx context.Context, input AddTaskInput) (model.Task, error) {
	s.mu.Lock()
	if s.ownerID == "" {
		s.mu.Unlock()
		return model.Task{}, ErrNoOwner
	}
	now := s.opts.Clock()
	quadrant := model.QuadrantFor(input.Urgent, input.Important)
	duration := input.EstimatedDuration
	if duration <= 0 {
		duration = model.DefaultEstimatedDuration
	}
	tags := input.Tags
	if tags == nil {
		tags = []string{}
	}
	task := &model.Task{
		ID:                "local-" + uuid.NewString(),
		OwnerID:           s.ownerID,
		Title:             input.Title,
		Description:       input.Description,
		Urgent:            input.Urgent,
		Important:         input.Important,
		Quadrant:          quadrant,
		DueDate:           input.DueDate,
		EstimatedDuration: duration,
		Status:            model.StatusPending,
		Order:             s.nextOrderLocked(quadrant),
		Tags:              tags,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	s.tasks = append(s.tasks, task)
	tempID := task.ID
	payload := task.Clone()
	s.mu.Unlock()

	payload.ID = "" // persistence assigns the canonical id
	saved, err := s.taskRepo.Create(ctx, payload)

	s.mu.Lock()
	defer s.mu.Unlock()
	idx, current := s.findLocked(tempID)
	if err != nil {
		if current != nil {
			s.removeLocked(idx)
		}
		s.notifier.Error("Failed to save task")
		return model.Task{}, fmt.Errorf("add task: %w", err)
	}
	if current == nil {
		// Deleted (or owner switched) while the create was in flight.
		s.log.Warnw("create completed for missing task", "id", saved.ID)
		return saved, nil
	}
	saved.SubTasks = current.SubTasks
	for i := range saved.SubTasks {
		saved.SubTasks[i].TaskID = saved.ID
	}
	*current = saved
	s.notifier.Success("Task added")
	return current.Clone(), nil
}

// UpdateTask applies the patch optimistically, re-deriving the quadrant
// when either axis changes and stamping CompletedAt on completion, then
// persists the same patch. On failure the record reverts to its
// pre-update snapshot.
func (s *Store) UpdateTask(ctx context.Context, id string, patch model.TaskPatch) (model.Task, error) {
	s.mu.Lock()
	if s.ownerID == "" {
		s.mu.Unlock()
		return model.Task{}, ErrNoOwner
	}
	_, task := s.findLocked(id)
	if task == nil {
		s.mu.Unlock()
		return model.Task{}, fmt.Errorf("update %s: %w", id, ErrNotFound)
	}
	snapshot := task.Clone()
	task.Apply(&patch, s.opts.Clock())
	updated := task.Clone()
	s.mu.Unlock()

	if err := s.taskRepo.Update(ctx, id, patch); err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, current := s.findLocked(id); current != nil {
			*current = snapshot
		}
		s.notifier.Error("Failed to update task")
		return model.Task{}, fmt.Errorf("update task: %w", err)
	}
	s.notifier.Success("Task updated")
	return updated, nil
}

// MoveToQuadrant re-derives the urgency/importance pair from the target
// quadrant and applies it. The translation is lossy on purpose: the
// model has exactly four flag combinations.
func (s *Store) MoveToQuadrant(ctx context.Context, id string, quadrant model.Quadrant) (model.Task, error) {
	if !quadrant.Valid() {
		return model.Task{}, fmt.Errorf("move to %q: unknown quadrant", quadrant)
	}
	urgent, important := quadrant.Flags()
	return s.UpdateTask(ctx, id, model.TaskPatch{Urgent: &urgent, Important: &important})
}

// DeleteTask removes the task and its subtasks immediately and keeps a
// restorable copy for the undo window. A failed remote delete reinserts
// the record.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.ownerID == "" {
		s.mu.Unlock()
		return ErrNoOwner
	}
	idx, task := s.findLocked(id)
	if task == nil {
		s.mu.Unlock()
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}
	snapshot := task.Clone()
	s.removeLocked(idx)
	s.deleted[id] = deletedTask{task: snapshot, expires: s.opts.Clock().Add(s.opts.UndoWindow)}
	s.mu.Unlock()

	if err := s.taskRepo.Delete(ctx, id); err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.deleted, id)
		s.restoreLocked(snapshot)
		s.notifier.Error("Failed to delete task")
		return fmt.Errorf("delete task: %w", err)
	}
	s.notifier.Success("Task deleted")
	return nil
}

// UndoDelete restores a just-deleted task within the undo window and
// re-creates its rows remotely under the original ids.
func (s *Store) UndoDelete(ctx context.Context, id string) (model.Task, error) {
	s.mu.Lock()
	if s.ownerID == "" {
		s.mu.Unlock()
		return model.Task{}, ErrNoOwner
	}
	entry, ok := s.deleted[id]
	if !ok || s.opts.Clock().After(entry.expires) {
		delete(s.deleted, id)
		s.mu.Unlock()
		return model.Task{}, fmt.Errorf("undo %s: %w", id, ErrUndoExpired)
	}
	delete(s.deleted, id)
	s.restoreLocked(entry.task)
	restored := entry.task.Clone()
	s.mu.Unlock()

	if _, err := s.taskRepo.Create(ctx, restored); err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if idx, current := s.findLocked(id); current != nil {
			s.removeLocked(idx)
		}
		s.notifier.Error("Failed to restore task")
		return model.Task{}, fmt.Errorf("undo delete: %w", err)
	}
	for _, sub := range restored.SubTasks {
		if _, err := s.subRepo.Create(ctx, sub); err != nil {
			s.log.Warnw("restore subtask", "task", id, "subtask", sub.ID, "error", err)
		}
	}
	s.notifier.Success("Task restored")
	return restored, nil
}

// SweepUndo drops undo entries whose window has passed. Called
// periodically by the scheduler.
func (s *Store) SweepUndo() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.opts.Clock()
	for id, entry := range s.deleted {
		if now.After(entry.expires) {
			delete(s.deleted, id)
		}
	}
}

// ReorderInQuadrant assigns each task in the quadrant the index of its
// id within orderedIDs. Ids that are absent, or that belong to another
/// quadrant, are skipped: stale drag state is a no-op, not an error.
// Persistence of the new order is best-effort; a failed write is logged
// and not rolled back, since the next reorder self-heals it.
func (s *Store) ReorderInQuadrant(ctx context.Context, quadrant model.Quadrant, orderedIDs []string) {
	position := make(map[string]int, len(orderedIDs))
	for i, id := range orderedIDs {
		position[id] = i
	}

	type orderChange struct {
		id    string
		order int
	}
	var changes []orderChange

	s.mu.Lock()
	if s.ownerID == "" {
		s.mu.Unlock()
		return
	}
	for _, task := range s.tasks {
		if task.Quadrant != quadrant {
			continue
		}
		pos, ok := position[task.ID]
		if !ok || pos == task.Order {
			continue
		}
		task.Order = pos
		changes = append(changes, orderChange{id: task.ID, order: pos})
	}
	s.mu.Unlock()

	for _, change := range changes {
		order := change.order
		if err := s.taskRepo.Update(ctx, change.id, model.TaskPatch{Order: &order}); err != nil {
			s.log.Warnw("persist reorder", "task", change.id, "error", err)
		}
	}
}

// AddSubTask appends a checklist item to the task, optimistically under
// a temporary id, then persists it and swaps in the canonical record.
func (s *Store) AddSubTask(ctx context.Context, taskID, title string) (model.SubTask, error) {
	s.mu.Lock()
	if s.ownerID == "" {
		s.mu.Unlock()
		return model.SubTask{}, ErrNoOwner
	}
	_, task := s.findLocked(taskID)
	if task == nil {
		s.mu.Unlock()
		return model.SubTask{}, fmt.Errorf("add subtask to %s: %w", taskID, ErrNotFound)
	}
	order := 0
	for _, sub := range task.SubTasks {
		if sub.Order >= order {
			order = sub.Order + 1
		}
	}
	sub := model.SubTask{
		ID:        "local-" + uuid.NewString(),
		TaskID:    taskID,
		OwnerID:   s.ownerID,
		Title:     title,
		Order:     order,
		CreatedAt: s.opts.Clock(),
	}
	task.SubTasks = append(task.SubTasks, sub)
	tempID := sub.ID
	payload := sub
	s.mu.Unlock()

	payload.ID = ""
	saved, err := s.subRepo.Create(ctx, payload)

	s.mu.Lock()
	defer s.mu.Unlock()
	_, task = s.findLocked(taskID)
	if task == nil {
		// Owning task vanished while the create was in flight.
		if err == nil {
			s.log.Warnw("subtask create completed for missing task", "task", taskID)
			return saved, nil
		}
		return model.SubTask{}, fmt.Errorf("add subtask: %w", err)
	}
	for i := range task.SubTasks {
		if task.SubTasks[i].ID != tempID {
			continue
		}
		if err != nil {
			task.SubTasks = append(task.SubTasks[:i], task.SubTasks[i+1:]...)
			s.notifier.Error("Failed to save subtask")
			return model.SubTask{}, fmt.Errorf("add subtask: %w", err)
		}
		task.SubTasks[i] = saved
		return saved, nil
	}
	// Temp entry already gone; treat the completion as stale.
	if err != nil {
		return model.SubTask{}, fmt.Errorf("add subtask: %w", err)
	}
	return saved, nil
}

// ToggleSubTask flips (or sets) a subtask's completed flag with the
// usual optimistic/rollback discipline.
func (s *Store) ToggleSubTask(ctx context.Context, subID string, completed bool) error {
	s.mu.Lock()
	if s.ownerID == "" {
		s.mu.Unlock()
		return ErrNoOwner
	}
	task, i := s.findSubLocked(subID)
	if task == nil {
		s.mu.Unlock()
		return fmt.Errorf("toggle subtask %s: %w", subID, ErrNotFound)
	}
	previous := task.SubTasks[i].Completed
	task.SubTasks[i].Completed = completed
	s.mu.Unlock()

	if err := s.subRepo.Update(ctx, subID, model.SubTaskPatch{Completed: &completed}); err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if task, i := s.findSubLocked(subID); task != nil {
			task.SubTasks[i].Completed = previous
		}
		s.notifier.Error("Failed to update subtask")
		return fmt.Errorf("toggle subtask: %w", err)
	}
	return nil
}

// DeleteSubTask removes a checklist item, reinserting it if the remote
// delete fails.
func (s *Store) DeleteSubTask(ctx context.Context, subID string) error {
	s.mu.Lock()
	if s.ownerID == "" {
		s.mu.Unlock()
		return ErrNoOwner
	}
	task, i := s.findSubLocked(subID)
	if task == nil {
		s.mu.Unlock()
		return fmt.Errorf("delete subtask %s: %w", subID, ErrNotFound)
	}
	removed := task.SubTasks[i]
	taskID := task.ID
	task.SubTasks = append(task.SubTasks[:i], task.SubTasks[i+1:]...)
	s.mu.Unlock()

	if err := s.subRepo.Delete(ctx, subID); err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, current := s.findLocked(taskID); current != nil {
			current.SubTasks = append(current.SubTasks, removed)
		}
		s.notifier.Error("Failed to delete subtask")
		return fmt.Errorf("delete subtask: %w", err)
	}
	return nil
}

// ClearAll deletes every task owned by the current identity, remotely
// first and then locally. There is no undo: callers are expected to
// confirm beforehand.
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	if s.ownerID == "" {
		s.mu.Unlock()
		return ErrNoOwner
	}
	owner := s.ownerID
	s.mu.Unlock()

	if err := s.taskRepo.DeleteAllForOwner(ctx, owner); err != nil {
		s.notifier.Error("Failed to clear tasks")
		return fmt.Errorf("clear all: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ownerID == owner {
		s.tasks = nil
		s.deleted = make(map[string]deletedTask)
	}
	s.notifier.Success("All tasks cleared")
	return nil
}

// nextOrderLocked returns 1 + max(order) within the quadrant, or 0 when
// the quadrant is empty.
func (s *Store) nextOrderLocked(quadrant model.Quadrant) int {
	next := 0
	for _, task := range s.tasks {
		if task.Quadrant == quadrant && task.Order >= next {
			next = task.Order + 1
		}
	}
	return next
}

func (s *Store) findLocked(id string) (int, *model.Task) {
	for i, task := range s.tasks {
		if task.ID == id {
			return i, task
		}
	}
	return -1, nil
}

func (s *Store) findSubLocked(subID string) (*model.Task, int) {
	for _, task := range s.tasks {
		for i := range task.SubTasks {
			if task.SubTasks[i].ID == subID {
				return task, i
			}
		}
	}
	return nil, -1
}

func (s *Store) removeLocked(idx int) {
	s.tasks = append(s.tasks[:idx], s.tasks[idx+1:]...)
}

func (s *Store) restoreLocked(snapshot model.Task) {
	restored := snapshot.Clone()
	s.tasks = append(s.tasks, &restored)
}
