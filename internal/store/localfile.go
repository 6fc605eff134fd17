package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"matrix-planner/internal/model"
)

// FileStore is the offline persistence mode: the whole collection lives
// in one JSON file that is read on every call and rewritten after every
// mutation. A missing or malformed file reads as an empty collection.
// It implements both TaskPersistence and SubTaskPersistence.
type FileStore struct {
	mu   sync.Mutex
	path string
}

type fileSnapshot struct {
	Tasks    []model.Task    `json:"tasks"`
	SubTasks []model.SubTask `json:"subtasks"`
}

// NewFileStore persists under path, creating parent directories on the
// first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) ListByOwner(_ context.Context, ownerID string) ([]model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := f.read()
	var out []model.Task
	for _, task := range snap.Tasks {
		if task.OwnerID == ownerID {
			out = append(out, task)
		}
	}
	return out, nil
}

func (f *FileStore) Create(_ context.Context, task model.Task) (model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	task.SubTasks = nil
	snap := f.read()
	snap.Tasks = append(snap.Tasks, task)
	if err := f.write(snap); err != nil {
		return model.Task{}, err
	}
	return task, nil
}

func (f *FileStore) Update(_ context.Context, id string, patch model.TaskPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := f.read()
	for i := range snap.Tasks {
		if snap.Tasks[i].ID != id {
			continue
		}
		applyFilePatch(&snap.Tasks[i], patch)
		return f.write(snap)
	}
	return fmt.Errorf("update task %s: %w", id, ErrNotFound)
}

func (f *FileStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := f.read()
	for i := range snap.Tasks {
		if snap.Tasks[i].ID != id {
			continue
		}
		snap.Tasks = append(snap.Tasks[:i], snap.Tasks[i+1:]...)
		kept := snap.SubTasks[:0]
		for _, sub := range snap.SubTasks {
			if sub.TaskID != id {
				kept = append(kept, sub)
			}
		}
		snap.SubTasks = kept
		return f.write(snap)
	}
	return fmt.Errorf("delete task %s: %w", id, ErrNotFound)
}

func (f *FileStore) BulkInsert(_ context.Context, tasks []model.Task) ([]model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := f.read()
	stored := make([]model.Task, len(tasks))
	for i, task := range tasks {
		if task.ID == "" {
			task.ID = uuid.NewString()
		}
		task.SubTasks = nil
		snap.Tasks = append(snap.Tasks, task)
		stored[i] = task
	}
	if err := f.write(snap); err != nil {
		return nil, err
	}
	return stored, nil
}

func (f *FileStore) DeleteAllForOwner(_ context.Context, ownerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := f.read()
	keptTasks := snap.Tasks[:0]
	for _, task := range snap.Tasks {
		if task.OwnerID != ownerID {
			keptTasks = append(keptTasks, task)
		}
	}
	snap.Tasks = keptTasks
	keptSubs := snap.SubTasks[:0]
	for _, sub := range snap.SubTasks {
		if sub.OwnerID != ownerID {
			keptSubs = append(keptSubs, sub)
		}
	}
	snap.SubTasks = keptSubs
	return f.write(snap)
}

// Subtask side of the adapter.

func (f *FileStore) listSubsByOwner(ownerID string) []model.SubTask {
	snap := f.read()
	var out []model.SubTask
	for _, sub := range snap.SubTasks {
		if sub.OwnerID == ownerID {
			out = append(out, sub)
		}
	}
	return out
}

// SubTasks exposes the subtask half of the adapter as its own value so
// the store can take the two halves as separate dependencies.
func (f *FileStore) SubTasks() SubTaskPersistence {
	return (*fileSubStore)(f)
}

type fileSubStore FileStore

func (f *fileSubStore) ListByOwner(_ context.Context, ownerID string) ([]model.SubTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (*FileStore)(f).listSubsByOwner(ownerID), nil
}

func (f *fileSubStore) Create(_ context.Context, sub model.SubTask) (model.SubTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fs := (*FileStore)(f)
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	snap := fs.read()
	snap.SubTasks = append(snap.SubTasks, sub)
	if err := fs.write(snap); err != nil {
		return model.SubTask{}, err
	}
	return sub, nil
}

func (f *fileSubStore) Update(_ context.Context, id string, patch model.SubTaskPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	fs := (*FileStore)(f)
	snap := fs.read()
	for i := range snap.SubTasks {
		if snap.SubTasks[i].ID != id {
			continue
		}
		snap.SubTasks[i].Apply(patch)
		return fs.write(snap)
	}
	return fmt.Errorf("update subtask %s: %w", id, ErrNotFound)
}

func (f *fileSubStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	fs := (*FileStore)(f)
	snap := fs.read()
	for i := range snap.SubTasks {
		if snap.SubTasks[i].ID != id {
			continue
		}
		snap.SubTasks = append(snap.SubTasks[:i], snap.SubTasks[i+1:]...)
		return fs.write(snap)
	}
	return fmt.Errorf("delete subtask %s: %w", id, ErrNotFound)
}

// read loads the snapshot, treating a missing or corrupt file as empty.
func (f *FileStore) read() fileSnapshot {
	var snap fileSnapshot
	data, err := os.ReadFile(f.path)
	if err != nil {
		return snap
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return fileSnapshot{}
	}
	return snap
}

func (f *FileStore) write(snap fileSnapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if dir := filepath.Dir(f.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	if err := os.WriteFile(f.path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// applyFilePatch mirrors the column mapping of the SQL adapter for the
// file-backed one.
func applyFilePatch(task *model.Task, patch model.TaskPatch) {
	if patch.Title != nil {
		task.Title = *patch.Title
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	if patch.Urgent != nil {
		task.Urgent = *patch.Urgent
	}
	if patch.Important != nil {
		task.Important = *patch.Important
	}
	if patch.Quadrant != nil {
		task.Quadrant = *patch.Quadrant
	}
	if patch.ClearDueDate {
		task.DueDate = nil
	} else if patch.DueDate != nil {
		due := *patch.DueDate
		task.DueDate = &due
	}
	if patch.EstimatedDuration != nil {
		task.EstimatedDuration = *patch.EstimatedDuration
	}
	if patch.Status != nil {
		task.Status = *patch.Status
	}
	if patch.Order != nil {
		task.Order = *patch.Order
	}
	if patch.Tags != nil {
		task.Tags = append([]string(nil), (*patch.Tags)...)
	}
	if patch.CompletedAt != nil {
		completed := *patch.CompletedAt
		task.CompletedAt = &completed
	}
	if patch.UpdatedAt != nil {
		task.UpdatedAt = *patch.UpdatedAt
	}
}
