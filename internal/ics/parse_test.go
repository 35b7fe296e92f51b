package ics

import (
	"strings"
	"testing"
	"time"
)

func icsPayload(lines ...string) []byte {
	all := append([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//taskline//test//EN",
	}, lines...)
	all = append(all, "END:VCALENDAR")
	return []byte(strings.Join(all, "\r\n") + "\r\n")
}

func TestParseTimedEvent(t *testing.T) {
	body := icsPayload(
		"BEGIN:VEVENT",
		"UID:ev-1",
		"SUMMARY:Weekly sync",
		"DTSTART:20250602T100000Z",
		"DTEND:20250602T103000Z",
		"RRULE:FREQ=WEEKLY",
		"END:VEVENT",
	)

	commitments, err := Parse(Source{ID: "cal"}, body)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(commitments) != 1 {
		t.Fatalf("commitments = %d, want 1", len(commitments))
	}

	c := commitments[0]
	if c.UID != "ev-1" || c.Summary != "Weekly sync" {
		t.Errorf("identity = %q / %q", c.UID, c.Summary)
	}
	wantStart := time.Date(2025, time.June, 2, 10, 0, 0, 0, time.UTC)
	if !c.Start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", c.Start, wantStart)
	}
	if c.End.Sub(c.Start) != 30*time.Minute {
		t.Errorf("duration = %v, want 30m", c.End.Sub(c.Start))
	}
	if c.RawRRule != "FREQ=WEEKLY" {
		t.Errorf("rrule = %q", c.RawRRule)
	}
	if c.AllDay {
		t.Error("timed event flagged all-day")
	}
}

func TestParseAllDayDetection(t *testing.T) {
	body := icsPayload(
		"BEGIN:VEVENT",
		"UID:ev-2",
		"SUMMARY:Holiday",
		"DTSTART;VALUE=DATE:20250602",
		"DTEND;VALUE=DATE:20250603",
		"END:VEVENT",
	)

	commitments, err := Parse(Source{ID: "cal"}, body)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(commitments) != 1 || !commitments[0].AllDay {
		t.Fatalf("all-day not detected: %+v", commitments)
	}
}

func TestParseSkipsEventWithoutUID(t *testing.T) {
	body := icsPayload(
		"BEGIN:VEVENT",
		"SUMMARY:anonymous",
		"DTSTART:20250602T100000Z",
		"DTEND:20250602T110000Z",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:ok",
		"SUMMARY:named",
		"DTSTART:20250602T120000Z",
		"DTEND:20250602T130000Z",
		"END:VEVENT",
	)

	commitments, err := Parse(Source{ID: "cal"}, body)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(commitments) != 1 || commitments[0].UID != "ok" {
		t.Fatalf("commitments = %+v, want only the named event", commitments)
	}
}

func TestParseEmptyBody(t *testing.T) {
	if _, err := Parse(Source{ID: "cal"}, nil); err == nil {
		t.Fatal("expected error for empty body")
	}
}
