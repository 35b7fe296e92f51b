package ics

import (
	"errors"
	"time"

	appLog "taskline/internal/log"
	"taskline/internal/model"
	"taskline/internal/recur"
)

// BaseEvents expands commitments into concrete base events intersecting
// [from, to] inclusive. Single commitments pass through when they overlap
// the window; recurring ones are expanded through their RRULE with the
// commitment's own start as the anchor, each occurrence preserving the
// original duration.
//
// A commitment whose rule fails to parse contributes zero events; the error
// is logged and the remaining commitments are unaffected.
func BaseEvents(commitments []Commitment, from, to time.Time) []model.TaskEvent {
	events := make([]model.TaskEvent, 0, len(commitments))

	for _, c := range commitments {
		start, end := c.Start, c.End
		if c.AllDay {
			start, end = dayBounds(start)
		}
		if end.Sub(start) <= 0 {
			continue
		}

		if c.RawRRule == "" {
			if overlaps(start, end, from, to) {
				events = append(events, baseEvent(c, start, end))
			}
			continue
		}

		occurrences, err := recur.Between(c.RawRRule, start, from, to)
		if err != nil && !errors.Is(err, recur.ErrTruncated) {
			appLog.Error("ics: commitment rule parse failed", err, "id", c.Source.ID, "uid", c.UID)
			continue
		}

		dur := end.Sub(start)
		for _, at := range occurrences {
			occStart, occEnd := at, at.Add(dur)
			if c.AllDay {
				occStart, occEnd = dayBounds(at)
			}
			events = append(events, baseEvent(c, occStart, occEnd))
		}
	}
	return events
}

func baseEvent(c Commitment, start, end time.Time) model.TaskEvent {
	return model.TaskEvent{
		TaskID: "ics:" + c.Source.ID + ":" + c.UID,
		Title:  c.Summary,
		Start:  start,
		End:    end,
	}
}

// dayBounds treats an all-day commitment as [date 00:00, next day 00:00) in
// its own timezone.
func dayBounds(t time.Time) (time.Time, time.Time) {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return day, day.Add(24 * time.Hour)
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}
