package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "taskline/internal/log"
)

// Commitment is the normalized representation of a VEVENT from an external
// calendar feed: a fixed, immovable block the scheduler must route around.
// Recurring commitments keep their raw RRULE; expansion happens in base.go.
type Commitment struct {
	Source Source

	UID     string
	Summary string

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule string
}

// Parse parses a single ICS payload into commitments.
//
// It relies on the library's VTIMEZONE/TZID handling for proper time.Time
// values, detects all-day events from the DTSTART value format, and records
// RRULE without expanding it. Malformed VEVENTs are logged and skipped;
// siblings are unaffected.
func Parse(src Source, body []byte) ([]Commitment, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID)
		return nil, err
	}

	commitments := make([]Commitment, 0)
	for _, ve := range cal.Events() {
		c, perr := parseVEvent(src, ve)
		if perr != nil {
			appLog.Error("ics vevent parse failed", perr, "id", src.ID)
			continue
		}
		commitments = append(commitments, c)
	}

	appLog.Info("ics parse completed", "id", src.ID, "commitments", len(commitments))
	return commitments, nil
}

func parseVEvent(src Source, ve *ical.VEvent) (Commitment, error) {
	var out Commitment
	out.Source = src

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uid.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}

	start, _ := ve.GetStartAt()
	end, _ := ve.GetEndAt()
	out.Start = start
	out.End = end

	// All-day: VALUE=DATE parameter or a DTSTART value without a time part.
	if p := ve.GetProperty(ical.ComponentPropertyDtStart); p != nil {
		if params := p.ICalParameters; params != nil {
			if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
				out.AllDay = true
			}
		}
		if !strings.Contains(p.Value, "T") {
			out.AllDay = true
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = p.Value
	}

	return out, nil
}
