package timeline

import (
	"errors"
	"time"

	appLog "taskline/internal/log"
	"taskline/internal/model"
	"taskline/internal/recur"
)

// ProjectRecurring expands a single event governed by a recurrence rule into
// display occurrences within [from, to] inclusive. Every occurrence is a
// copy of the event shifted to start at the occurrence instant, preserving
// the original duration. When the rule carries no DTSTART the event's own
// start is the anchor.
//
// Parse failure falls back to returning the original, unexpanded event and
// logging the error; it never propagates upward.
func ProjectRecurring(ev model.TaskEvent, rule string, from, to time.Time) []model.TaskEvent {
	occurrences, err := recur.Between(rule, ev.Start, from, to)
	if err != nil && !errors.Is(err, recur.ErrTruncated) {
		appLog.Error("timeline: recurrence projection failed; returning event unexpanded", err,
			"task_id", ev.TaskID, "rrule", rule)
		return []model.TaskEvent{ev}
	}

	dur := ev.End.Sub(ev.Start)
	out := make([]model.TaskEvent, 0, len(occurrences))
	for _, at := range occurrences {
		occ := ev
		occ.Start = at
		occ.End = at.Add(dur)
		out = append(out, occ)
	}
	return out
}
