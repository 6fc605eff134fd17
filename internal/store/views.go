package store

import (
	"math"
	"sort"

	"matrix-planner/internal/model"
)

// QuadrantStats is the per-quadrant slice of Stats.
type QuadrantStats struct {
	Quadrant  model.Quadrant `json:"quadrant"`
	Total     int            `json:"total"`
	Completed int            `json:"completed"`
	Pending   int            `json:"pending"`
}

// Stats aggregates the collection at a point in time.
type Stats struct {
	Total          int             `json:"total"`
	Completed      int             `json:"completed"`
	Overdue        int             `json:"overdue"`
	CompletionRate int             `json:"completionRate"`
	ByQuadrant     []QuadrantStats `json:"byQuadrant"`
}

// Tasks returns the whole collection with metrics computed against the
// current clock, in insertion order.
func (s *Store) Tasks() []model.TaskWithMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.withMetricsLocked(nil)
}

// QuadrantTasks returns the non-completed tasks of one quadrant sorted
// ascending by order. The sort is stable, so order ties keep insertion
// order.
func (s *Store) QuadrantTasks(quadrant model.Quadrant) []model.TaskWithMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.withMetricsLocked(func(t *model.Task) bool {
		return t.Quadrant == quadrant && t.Status != model.StatusCompleted
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// DailyFocus returns the top non-completed tasks by urgency score,
// restricted to the do quadrant unless FocusAllQuadrants is set,
// truncated to FocusLimit. The sort is stable so equal scores keep
// insertion order.
func (s *Store) DailyFocus() []model.TaskWithMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.withMetricsLocked(func(t *model.Task) bool {
		if t.Status == model.StatusCompleted {
			return false
		}
		return s.opts.FocusAllQuadrants || t.Quadrant == model.QuadrantDo
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].UrgencyScore > out[j].UrgencyScore })
	if len(out) > s.opts.FocusLimit {
		out = out[:s.opts.FocusLimit]
	}
	return out
}

// Overdue returns every overdue task, most urgent first.
func (s *Store) Overdue() []model.TaskWithMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.opts.Clock()
	var out []model.TaskWithMetrics
	for _, task := range s.tasks {
		if tm := model.ComputeMetrics(task.Clone(), now); tm.IsOverdue {
			out = append(out, tm)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UrgencyScore > out[j].UrgencyScore })
	return out
}

// Stats aggregates totals, completion rate and overdue count, plus a
// per-quadrant breakdown in display order.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.opts.Clock()

	stats := Stats{ByQuadrant: make([]QuadrantStats, 0, len(model.Quadrants))}
	perQuadrant := make(map[model.Quadrant]*QuadrantStats, len(model.Quadrants))
	for _, q := range model.Quadrants {
		stats.ByQuadrant = append(stats.ByQuadrant, QuadrantStats{Quadrant: q})
		perQuadrant[q] = &stats.ByQuadrant[len(stats.ByQuadrant)-1]
	}

	for _, task := range s.tasks {
		stats.Total++
		qs := perQuadrant[task.Quadrant]
		if qs == nil {
			continue
		}
		qs.Total++
		if task.Status == model.StatusCompleted {
			stats.Completed++
			qs.Completed++
		} else {
			qs.Pending++
		}
		if model.ComputeMetrics(task.Clone(), now).IsOverdue {
			stats.Overdue++
		}
	}
	if stats.Total > 0 {
		stats.CompletionRate = int(math.Round(float64(stats.Completed) / float64(stats.Total) * 100))
	}
	return stats
}

// withMetricsLocked clones the matching tasks and attaches metrics.
func (s *Store) withMetricsLocked(match func(*model.Task) bool) []model.TaskWithMetrics {
	now := s.opts.Clock()
	out := make([]model.TaskWithMetrics, 0, len(s.tasks))
	for _, task := range s.tasks {
		if match != nil && !match(task) {
			continue
		}
		out = append(out, model.ComputeMetrics(task.Clone(), now))
	}
	return out
}
