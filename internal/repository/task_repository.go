package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"matrix-planner/internal/model"
)

// TaskRepository handles owner-scoped CRUD for tasks. It plays the role
// of the remote row-store: ids and timestamps assigned here are the
// canonical ones that replace optimistic client values.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// ListByOwner returns every task owned by ownerID, ordered for stable
// intra-quadrant display.
func (r *TaskRepository) ListByOwner(ctx context.Context, ownerID string) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).
		Order("quadrant, sort_order, created_at").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// Create inserts the task and returns the stored row. An empty id is
// replaced with a freshly assigned one; a caller-provided id (import,
// undo restore) is kept.
func (r *TaskRepository) Create(ctx context.Context, task model.Task) (model.Task, error) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	task.SubTasks = nil
	if err := r.db.WithContext(ctx).Create(&task).Error; err != nil {
		return model.Task{}, fmt.Errorf("create task: %w", err)
	}
	return task, nil
}

// Update applies the non-nil fields of the patch to the row.
func (r *TaskRepository) Update(ctx context.Context, id string, patch model.TaskPatch) error {
	updates := taskPatchColumns(patch)
	if len(updates) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&model.Task{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update task %s: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

// Delete removes the task row and its subtask rows.
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", id).Delete(&model.SubTask{}).Error; err != nil {
			return fmt.Errorf("delete subtasks: %w", err)
		}
		if err := tx.Where("id = ?", id).Delete(&model.Task{}).Error; err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		return nil
	})
}

// BulkInsert stores the given tasks in one transaction and returns the
// stored rows with their assigned ids. Nothing is kept on failure.
func (r *TaskRepository) BulkInsert(ctx context.Context, tasks []model.Task) ([]model.Task, error) {
	stored := make([]model.Task, len(tasks))
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, task := range tasks {
			if task.ID == "" {
				task.ID = uuid.NewString()
			}
			task.SubTasks = nil
			if err := tx.Create(&task).Error; err != nil {
				return fmt.Errorf("insert task %q: %w", task.Title, err)
			}
			stored[i] = task
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// DeleteAllForOwner removes every task and subtask owned by ownerID.
func (r *TaskRepository) DeleteAllForOwner(ctx context.Context, ownerID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner_id = ?", ownerID).Delete(&model.SubTask{}).Error; err != nil {
			return fmt.Errorf("delete subtasks: %w", err)
		}
		if err := tx.Where("owner_id = ?", ownerID).Delete(&model.Task{}).Error; err != nil {
			return fmt.Errorf("delete tasks: %w", err)
		}
		return nil
	})
}

// taskPatchColumns maps the patch onto column updates. Every field is
// handled explicitly; nothing passes through untyped.
func taskPatchColumns(patch model.TaskPatch) map[string]interface{} {
	updates := make(map[string]interface{})
	if patch.Title != nil {
		updates["title"] = *patch.Title
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	if patch.Urgent != nil {
		updates["urgent"] = *patch.Urgent
	}
	if patch.Important != nil {
		updates["important"] = *patch.Important
	}
	if patch.Quadrant != nil {
		updates["quadrant"] = *patch.Quadrant
	}
	if patch.ClearDueDate {
		updates["due_date"] = nil
	} else if patch.DueDate != nil {
		updates["due_date"] = *patch.DueDate
	}
	if patch.EstimatedDuration != nil {
		updates["estimated_duration"] = *patch.EstimatedDuration
	}
	if patch.Status != nil {
		updates["status"] = *patch.Status
	}
	if patch.Order != nil {
		updates["sort_order"] = *patch.Order
	}
	if patch.Tags != nil {
		// Map-based updates bypass the gorm serializer, so encode here.
		if encoded, err := json.Marshal(*patch.Tags); err == nil {
			updates["tags"] = string(encoded)
		}
	}
	if patch.CompletedAt != nil {
		updates["completed_at"] = *patch.CompletedAt
	}
	if patch.UpdatedAt != nil {
		updates["updated_at"] = *patch.UpdatedAt
	}
	return updates
}
