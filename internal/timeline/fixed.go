package timeline

import "taskline/internal/model"

// MaterializeFixed turns fixed-anchor tasks (sleep/commitments) into base
// events anchored at their own declared start time. Output order is
// unspecified; Pack sorts base events before booking around them.
func MaterializeFixed(tasks []model.Task) []model.TaskEvent {
	events := make([]model.TaskEvent, 0, len(tasks))
	for _, t := range tasks {
		if t.Remaining <= 0 {
			continue
		}
		events = append(events, model.TaskEvent{
			TaskID: t.ID,
			Title:  t.Name,
			Start:  t.StartTime,
			End:    t.StartTime.Add(t.Remaining),
			Due:    t.DueTime,
		})
	}
	return events
}
