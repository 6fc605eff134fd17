package model

import (
	"math"
	"time"
)

const hoursPerDay = 24

// Metrics carries the values derived from a task at a given instant.
// They are recomputed on every read and never persisted.
type Metrics struct {
	DaysUntilDue *int `json:"daysUntilDue"`
	UrgencyScore int  `json:"urgencyScore"`
	IsOverdue    bool `json:"isOverdue"`
}

// TaskWithMetrics pairs a task with metrics computed at read time.
type TaskWithMetrics struct {
	Task
	Metrics
}

// ComputeMetrics derives due-date distance, overdue state and the
// urgency score used for sorting. The clock is passed in so callers
// control the reference instant.
//
// The score is quadrantWeight*10 plus a due-date penalty of
// max(0, 10-daysUntilDue); tasks without a due date get no penalty term.
func ComputeMetrics(task Task, now time.Time) TaskWithMetrics {
	var m Metrics
	if task.DueDate != nil {
		days := int(math.Ceil(task.DueDate.Sub(now).Hours() / hoursPerDay))
		m.DaysUntilDue = &days
		m.IsOverdue = days < 0 && task.Status != StatusCompleted
		if penalty := 10 - days; penalty > 0 {
			m.UrgencyScore = penalty
		}
	}
	m.UrgencyScore += task.Quadrant.Weight() * 10
	return TaskWithMetrics{Task: task, Metrics: m}
}
