package store

import (
	"context"
	"encoding/json"
	"fmt"

	"matrix-planner/internal/model"
)

// Export serializes the current collection, subtasks included, as an
// indented JSON array. Import(Export()) reproduces the observable
// fields of every record.
func (s *Store) Export() ([]byte, error) {
	s.mu.Lock()
	tasks := make([]model.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		tasks = append(tasks, task.Clone())
	}
	s.mu.Unlock()

	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export tasks: %w", err)
	}
	return data, nil
}

// Import parses a snapshot produced by Export (or hand-written in the
// same shape), validates it as a whole, persists all records under
// fresh ids and merges them into the collection. Validation is
// all-or-nothing: a single malformed record rejects the entire call
// with no partial mutation. Returns the number of imported tasks.
func (s *Store) Import(ctx context.Context, data []byte) (int, error) {
	s.mu.Lock()
	if s.ownerID == "" {
		s.mu.Unlock()
		return 0, ErrNoOwner
	}
	owner := s.ownerID
	now := s.opts.Clock()
	s.mu.Unlock()

	var records []model.Task
	if err := json.Unmarshal(data, &records); err != nil {
		return 0, fmt.Errorf("%w: expected a JSON array of tasks", ErrInvalidSnapshot)
	}
	for i := range records {
		if records[i].Title == "" {
			return 0, fmt.Errorf("%w: record %d has no title", ErrInvalidSnapshot, i)
		}
		if !records[i].Quadrant.Valid() {
			return 0, fmt.Errorf("%w: record %d has no valid quadrant", ErrInvalidSnapshot, i)
		}
	}

	// Normalize after validation so a rejected call never half-mutates.
	payload := make([]model.Task, len(records))
	subsByIndex := make([][]model.SubTask, len(records))
	for i, record := range records {
		task := record.Clone()
		task.ID = "" // re-key on insert
		task.OwnerID = owner
		// The quadrant is the required field; realign the flags with it
		// when the snapshot disagrees.
		if model.QuadrantFor(task.Urgent, task.Important) != task.Quadrant {
			task.Urgent, task.Important = task.Quadrant.Flags()
		}
		if task.EstimatedDuration <= 0 {
			task.EstimatedDuration = model.DefaultEstimatedDuration
		}
		if task.Status == "" {
			task.Status = model.StatusPending
		}
		if task.Tags == nil {
			task.Tags = []string{}
		}
		if task.CreatedAt.IsZero() {
			task.CreatedAt = now
		}
		if task.UpdatedAt.IsZero() {
			task.UpdatedAt = now
		}
		subsByIndex[i] = task.SubTasks
		task.SubTasks = nil
		payload[i] = task
	}

	stored, err := s.taskRepo.BulkInsert(ctx, payload)
	if err != nil {
		s.notifier.Error("Import failed")
		return 0, fmt.Errorf("import tasks: %w", err)
	}

	for i := range stored {
		for _, sub := range subsByIndex[i] {
			sub.ID = ""
			sub.TaskID = stored[i].ID
			sub.OwnerID = owner
			if sub.CreatedAt.IsZero() {
				sub.CreatedAt = now
			}
			saved, err := s.subRepo.Create(ctx, sub)
			if err != nil {
				s.log.Warnw("import subtask", "task", stored[i].ID, "error", err)
				continue
			}
			stored[i].SubTasks = append(stored[i].SubTasks, saved)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ownerID != owner {
		// Identity changed while the import was in flight; the rows are
		// persisted but belong to the previous owner's view.
		return len(stored), nil
	}
	for i := range stored {
		t := stored[i].Clone()
		s.tasks = append(s.tasks, &t)
	}
	s.notifier.Success(fmt.Sprintf("Imported %d tasks", len(stored)))
	return len(stored), nil
}
