package timeline

import (
	"time"

	"taskline/internal/model"
)

// PropagateDueRisk groups fragments by task id and, when a task's latest
// fragment ends after its due date, marks every fragment of that task at
// risk with the identical whole-second delay. Fragments of tasks without a
// due date keep the neutral marker. Timing is never altered; this is a pure
// annotation pass over a copy of the input.
func PropagateDueRisk(events []model.TaskEvent) []model.TaskEvent {
	out := make([]model.TaskEvent, len(events))
	copy(out, events)

	type taskSpan struct {
		maxEnd time.Time
		due    time.Time
	}
	spans := make(map[string]*taskSpan)
	for _, e := range out {
		s := spans[e.TaskID]
		if s == nil {
			s = &taskSpan{}
			spans[e.TaskID] = s
		}
		if e.End.After(s.maxEnd) {
			s.maxEnd = e.End
		}
		// All fragments of one task are expected to carry the same due; the
		// first non-zero value wins.
		if s.due.IsZero() && !e.Due.IsZero() {
			s.due = e.Due
		}
	}

	for i := range out {
		s := spans[out[i].TaskID]
		if s.due.IsZero() || !s.maxEnd.After(s.due) {
			continue
		}
		out[i].Marker = model.MarkerRisk
		out[i].DelaySeconds = int64(s.maxEnd.Sub(s.due).Seconds())
	}
	return out
}
