package service

import (
	"fmt"
	"html"
	"strings"
	"time"

	"matrix-planner/internal/model"
	"matrix-planner/internal/store"
)

// quadrantLabels name the buckets in digest output.
var quadrantLabels = map[model.Quadrant]string{
	model.QuadrantDo:       "Do First",
	model.QuadrantSchedule: "Schedule",
	model.QuadrantDelegate: "Delegate",
	model.QuadrantHold:     "Hold",
}

// ReminderService builds human-readable digests for scheduled
// notifications.
type ReminderService struct {
	store *store.Store
}

func NewReminderService(st *store.Store) *ReminderService {
	return &ReminderService{store: st}
}

// DailyDigest summarizes overdue work and the daily focus list. The
// output uses a small HTML subset accepted by the notification channel.
func (s *ReminderService) DailyDigest(now time.Time) string {
	overdue := s.store.Overdue()
	focus := s.store.DailyFocus()
	stats := s.store.Stats()

	var builder strings.Builder
	builder.WriteString("📋 <b>Daily matrix digest</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format("2006-01-02")))

	builder.WriteString("⚠️ <b>Overdue</b>\n")
	if len(overdue) == 0 {
		builder.WriteString("— nothing overdue\n")
	} else {
		for _, task := range overdue {
			builder.WriteString(formatDigestTask(task))
		}
	}

	builder.WriteString("\n🎯 <b>Daily focus</b>\n")
	if len(focus) == 0 {
		builder.WriteString("— nothing queued\n")
	} else {
		for _, task := range focus {
			builder.WriteString(formatDigestTask(task))
		}
	}

	builder.WriteString(fmt.Sprintf("\n✅ %d of %d done (%d%%)\n",
		stats.Completed, stats.Total, stats.CompletionRate))

	return strings.TrimSpace(builder.String())
}

func formatDigestTask(task model.TaskWithMetrics) string {
	var sb strings.Builder

	icon := "🟢"
	switch {
	case task.IsOverdue:
		icon = "⚠️"
	case task.DaysUntilDue != nil && *task.DaysUntilDue <= 2:
		icon = "⏳"
	}

	title := html.EscapeString(strings.TrimSpace(task.Title))
	sb.WriteString(fmt.Sprintf("%s %s <i>(%s)</i>", icon, title, quadrantLabels[task.Quadrant]))

	if task.DueDate != nil {
		due := task.DueDate.Format("2006-01-02")
		if task.IsOverdue {
			sb.WriteString(fmt.Sprintf("\n   ⏰ due %s — <b>overdue</b>", due))
		} else if task.DaysUntilDue != nil {
			sb.WriteString(fmt.Sprintf("\n   ⏰ due %s · %d day(s) left", due, *task.DaysUntilDue))
		}
	}

	sb.WriteByte('\n')
	return sb.String()
}
