package timeline

import (
	"sort"
	"time"

	"taskline/internal/model"
)

// Linearize orders flexible tasks by urgency and lays them back-to-back
// starting from now truncated to the minute. Each task occupies its own
// remaining duration; one Buffer separates consecutive tasks. Zero-duration
// tasks emit no event but still advance the cursor by the buffer.
//
// now is an explicit parameter so the layout stays a pure function.
func Linearize(tasks []model.Task, now time.Time) []model.TaskEvent {
	ordered := make([]model.Task, len(tasks))
	copy(ordered, tasks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return moreUrgent(ordered[i], ordered[j])
	})

	cursor := now.Truncate(time.Minute)
	events := make([]model.TaskEvent, 0, len(ordered))
	for _, t := range ordered {
		end := cursor.Add(t.Remaining)
		if t.Remaining > 0 {
			events = append(events, model.TaskEvent{
				TaskID: t.ID,
				Title:  t.Name,
				Start:  cursor,
				End:    end,
				Due:    t.DueTime,
			})
		}
		cursor = end.Add(Buffer)
	}
	return events
}

// moreUrgent is the scheduling comparator, applied in this exact precedence:
// risk severity ascending, remaining duration ascending, priority score
// ascending, then id lexical ascending as the deterministic final tie-break.
func moreUrgent(a, b model.Task) bool {
	ra, rb := model.SeverityRank(a.Risk), model.SeverityRank(b.Risk)
	if ra != rb {
		return ra < rb
	}
	if a.Remaining != b.Remaining {
		return a.Remaining < b.Remaining
	}
	if a.PriorityScore != b.PriorityScore {
		return a.PriorityScore < b.PriorityScore
	}
	return a.ID < b.ID
}
