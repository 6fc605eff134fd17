package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"matrix-planner/internal/model"
)

// SubTaskRepository handles owner-scoped CRUD for subtasks.
type SubTaskRepository struct {
	db *gorm.DB
}

func NewSubTaskRepository(db *gorm.DB) *SubTaskRepository {
	return &SubTaskRepository{db: db}
}

// ListByOwner returns every subtask owned by ownerID, ordered for
// stable intra-task display.
func (r *SubTaskRepository) ListByOwner(ctx context.Context, ownerID string) ([]model.SubTask, error) {
	var subs []model.SubTask
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).
		Order("task_id, sort_order, created_at").
		Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("list subtasks: %w", err)
	}
	return subs, nil
}

// Create inserts the subtask and returns the stored row. An empty id is
// replaced with a freshly assigned one.
func (r *SubTaskRepository) Create(ctx context.Context, sub model.SubTask) (model.SubTask, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(&sub).Error; err != nil {
		return model.SubTask{}, fmt.Errorf("create subtask: %w", err)
	}
	return sub, nil
}

// Update applies the non-nil fields of the patch to the row.
func (r *SubTaskRepository) Update(ctx context.Context, id string, patch model.SubTaskPatch) error {
	updates := make(map[string]interface{})
	if patch.Title != nil {
		updates["title"] = *patch.Title
	}
	if patch.Completed != nil {
		updates["completed"] = *patch.Completed
	}
	if patch.Order != nil {
		updates["sort_order"] = *patch.Order
	}
	if len(updates) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&model.SubTask{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update subtask: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update subtask %s: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

// Delete removes the subtask row.
func (r *SubTaskRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.SubTask{}).Error; err != nil {
		return fmt.Errorf("delete subtask: %w", err)
	}
	return nil
}
