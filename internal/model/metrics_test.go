package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var metricsNow = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func metricsTask(overrides func(*Task)) Task {
	task := Task{
		ID:        "task-1",
		Title:     "Task",
		Urgent:    true,
		Important: true,
		Quadrant:  QuadrantDo,
		Status:    StatusPending,
	}
	if overrides != nil {
		overrides(&task)
	}
	return task
}

func TestComputeMetricsNoDueDate(t *testing.T) {
	m := ComputeMetrics(metricsTask(nil), metricsNow)
	assert.Nil(t, m.DaysUntilDue)
	assert.False(t, m.IsOverdue)
	// Weight only, no due penalty.
	assert.Equal(t, 40, m.UrgencyScore)
}

func TestComputeMetricsOverdue(t *testing.T) {
	due := metricsNow.AddDate(0, 0, -2)
	m := ComputeMetrics(metricsTask(func(task *Task) { task.DueDate = &due }), metricsNow)
	require.NotNil(t, m.DaysUntilDue)
	assert.Equal(t, -2, *m.DaysUntilDue)
	assert.True(t, m.IsOverdue)
	assert.Equal(t, 40+12, m.UrgencyScore)
}

func TestComputeMetricsCompletedNeverOverdue(t *testing.T) {
	due := metricsNow.AddDate(0, 0, -2)
	m := ComputeMetrics(metricsTask(func(task *Task) {
		task.DueDate = &due
		task.Status = StatusCompleted
	}), metricsNow)
	assert.False(t, m.IsOverdue)
}

func TestComputeMetricsPenaltyClampsAtZero(t *testing.T) {
	due := metricsNow.AddDate(0, 0, 30)
	m := ComputeMetrics(metricsTask(func(task *Task) {
		task.DueDate = &due
		task.Quadrant = QuadrantHold
	}), metricsNow)
	assert.Equal(t, 10, m.UrgencyScore)
}

func TestComputeMetricsCloserDueScoresHigher(t *testing.T) {
	previous := 0
	for days := 3; days >= 1; days-- {
		due := metricsNow.AddDate(0, 0, days)
		m := ComputeMetrics(metricsTask(func(task *Task) { task.DueDate = &due }), metricsNow)
		assert.Greater(t, m.UrgencyScore, previous)
		previous = m.UrgencyScore
	}
}
