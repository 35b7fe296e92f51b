package ics

import (
	"testing"
	"time"
)

var day = time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC)

func commitment(uid string, start, end time.Time, rule string) Commitment {
	return Commitment{
		Source:   Source{ID: "cal"},
		UID:      uid,
		Summary:  uid,
		Start:    start,
		End:      end,
		RawRRule: rule,
	}
}

func TestBaseEventsSingleCommitmentInWindow(t *testing.T) {
	c := commitment("standup", day.Add(10*time.Hour), day.Add(10*time.Hour+30*time.Minute), "")

	events := BaseEvents([]Commitment{c}, day, day.Add(24*time.Hour))
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if events[0].TaskID != "ics:cal:standup" {
		t.Errorf("task id = %q", events[0].TaskID)
	}
	if !events[0].Start.Equal(c.Start) || !events[0].End.Equal(c.End) {
		t.Errorf("event = [%v, %v)", events[0].Start, events[0].End)
	}
}

func TestBaseEventsOutsideWindowExcluded(t *testing.T) {
	c := commitment("old", day.AddDate(0, 0, -10), day.AddDate(0, 0, -10).Add(time.Hour), "")

	events := BaseEvents([]Commitment{c}, day, day.Add(24*time.Hour))
	if len(events) != 0 {
		t.Fatalf("events = %d, want 0", len(events))
	}
}

func TestBaseEventsRecurringExpansion(t *testing.T) {
	c := commitment("daily", day.Add(10*time.Hour), day.Add(10*time.Hour+30*time.Minute), "FREQ=DAILY")

	events := BaseEvents([]Commitment{c}, day, day.AddDate(0, 0, 3).Add(-time.Nanosecond))
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	for i, e := range events {
		wantStart := c.Start.AddDate(0, 0, i)
		if !e.Start.Equal(wantStart) {
			t.Errorf("occurrence %d start = %v, want %v", i, e.Start, wantStart)
		}
		if e.End.Sub(e.Start) != 30*time.Minute {
			t.Errorf("occurrence %d duration changed", i)
		}
	}
}

func TestBaseEventsBadRuleContributesNothing(t *testing.T) {
	bad := commitment("bad", day.Add(10*time.Hour), day.Add(11*time.Hour), "FREQ=NOT-A-FREQ")
	good := commitment("good", day.Add(12*time.Hour), day.Add(13*time.Hour), "")

	events := BaseEvents([]Commitment{bad, good}, day, day.Add(24*time.Hour))
	if len(events) != 1 || events[0].TaskID != "ics:cal:good" {
		t.Fatalf("events = %+v, want only the good commitment", events)
	}
}

func TestBaseEventsAllDayBounds(t *testing.T) {
	c := commitment("holiday", day.Add(10*time.Hour), day.Add(11*time.Hour), "")
	c.AllDay = true

	events := BaseEvents([]Commitment{c}, day, day.Add(48*time.Hour))
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if !events[0].Start.Equal(day) || !events[0].End.Equal(day.Add(24*time.Hour)) {
		t.Errorf("all-day bounds = [%v, %v), want whole day", events[0].Start, events[0].End)
	}
}

func TestBaseEventsZeroDurationSkipped(t *testing.T) {
	c := commitment("ping", day.Add(10*time.Hour), day.Add(10*time.Hour), "")

	events := BaseEvents([]Commitment{c}, day, day.Add(24*time.Hour))
	if len(events) != 0 {
		t.Fatalf("events = %d, want 0", len(events))
	}
}
