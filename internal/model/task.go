package model

import "time"

// Status of a task in its workflow.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusHold       Status = "hold"
)

// DefaultEstimatedDuration is assumed when a task is created without a
// positive duration, in minutes.
const DefaultEstimatedDuration = 30

// PresetTags are the suggested labels offered when tagging a task.
var PresetTags = []string{"Work", "Personal", "Health", "Finance", "Learning", "Home"}

// Task represents a single item on the matrix.
type Task struct {
	ID                string     `gorm:"type:varchar(50);primaryKey" json:"id"`
	OwnerID           string     `gorm:"type:varchar(50);index" json:"-"`
	Title             string     `gorm:"type:varchar(200)" json:"title"`
	Description       string     `gorm:"type:text" json:"description,omitempty"`
	Urgent            bool       `json:"urgent"`
	Important         bool       `json:"important"`
	Quadrant          Quadrant   `gorm:"type:varchar(20);index" json:"quadrant"`
	DueDate           *time.Time `json:"dueDate,omitempty"`
	EstimatedDuration int        `gorm:"default:30" json:"estimatedDuration"`
	Status            Status     `gorm:"type:varchar(20);default:pending" json:"status"`
	Order             int        `gorm:"column:sort_order" json:"order"`
	Tags              []string   `gorm:"serializer:json" json:"tags"`
	SubTasks          []SubTask  `gorm:"-" json:"subtasks,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
}

// SubTask is a checklist item owned by exactly one task.
type SubTask struct {
	ID        string    `gorm:"type:varchar(50);primaryKey" json:"id"`
	TaskID    string    `gorm:"type:varchar(50);index" json:"taskId"`
	OwnerID   string    `gorm:"type:varchar(50);index" json:"-"`
	Title     string    `gorm:"type:varchar(200)" json:"title"`
	Completed bool      `gorm:"default:false" json:"completed"`
	Order     int       `gorm:"column:sort_order" json:"order"`
	CreatedAt time.Time `json:"createdAt"`
}

// TaskPatch is a partial task update; nil fields are left untouched.
// Quadrant, CompletedAt and UpdatedAt are derived by Apply and carried
// here only so the persistence layer writes them alongside the caller's
// fields; callers never set them directly.
type TaskPatch struct {
	Title             *string
	Description       *string
	Urgent            *bool
	Important         *bool
	DueDate           *time.Time
	ClearDueDate      bool
	EstimatedDuration *int
	Status            *Status
	Order             *int
	Tags              *[]string

	Quadrant    *Quadrant
	CompletedAt *time.Time
	UpdatedAt   *time.Time
}

// SubTaskPatch is a partial subtask update; nil fields are left untouched.
type SubTaskPatch struct {
	Title     *string
	Completed *bool
	Order     *int
}

// Apply merges the patch into the task. The quadrant is re-derived in
// the same step whenever either axis changes, CompletedAt is stamped on
// the transition to completed, and UpdatedAt is refreshed. The derived
// values are written back into the patch so the same patch can be
// forwarded to persistence.
func (t *Task) Apply(patch *TaskPatch, now time.Time) {
	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.Urgent != nil || patch.Important != nil {
		if patch.Urgent != nil {
			t.Urgent = *patch.Urgent
		}
		if patch.Important != nil {
			t.Important = *patch.Important
		}
		t.Quadrant = QuadrantFor(t.Urgent, t.Important)
		patch.Quadrant = &t.Quadrant
	}
	if patch.ClearDueDate {
		t.DueDate = nil
	} else if patch.DueDate != nil {
		due := *patch.DueDate
		t.DueDate = &due
	}
	if patch.EstimatedDuration != nil {
		t.EstimatedDuration = *patch.EstimatedDuration
	}
	if patch.Status != nil {
		t.Status = *patch.Status
		if t.Status == StatusCompleted {
			completed := now
			t.CompletedAt = &completed
			patch.CompletedAt = t.CompletedAt
		}
	}
	if patch.Order != nil {
		t.Order = *patch.Order
	}
	if patch.Tags != nil {
		t.Tags = append([]string(nil), (*patch.Tags)...)
	}
	t.UpdatedAt = now
	patch.UpdatedAt = &t.UpdatedAt
}

// Apply merges the patch into the subtask.
func (st *SubTask) Apply(patch SubTaskPatch) {
	if patch.Title != nil {
		st.Title = *patch.Title
	}
	if patch.Completed != nil {
		st.Completed = *patch.Completed
	}
	if patch.Order != nil {
		st.Order = *patch.Order
	}
}

// Clone returns a deep copy safe to hold as a rollback snapshot.
func (t Task) Clone() Task {
	out := t
	if t.DueDate != nil {
		due := *t.DueDate
		out.DueDate = &due
	}
	if t.CompletedAt != nil {
		completed := *t.CompletedAt
		out.CompletedAt = &completed
	}
	out.Tags = append([]string(nil), t.Tags...)
	out.SubTasks = append([]SubTask(nil), t.SubTasks...)
	return out
}
