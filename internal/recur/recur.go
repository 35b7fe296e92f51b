package recur

import (
	"errors"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// defaultMaxOccurrences is a safety cap to avoid runaway expansions of
// unbounded rules over large windows.
const defaultMaxOccurrences = 5000

// ErrTruncated is returned alongside a non-empty occurrence list when the
// expansion hit the occurrence cap.
var ErrTruncated = errors.New("recur: occurrence cap reached")

// Between computes the occurrence instants of an RFC 5545 recurrence rule
// within [from, to] inclusive.
//
// The rule string may optionally carry a DTSTART line (e.g.
// "DTSTART:20250101T090000Z\nRRULE:FREQ=DAILY"). When it does not, anchor is
// used as the rule's DTSTART. A bare "FREQ=..." body and an "RRULE:"-prefixed
// body are both accepted.
func Between(rule string, anchor time.Time, from, to time.Time) ([]time.Time, error) {
	rule = strings.TrimSpace(rule)
	if rule == "" {
		return nil, errors.New("recur: empty rule")
	}
	if to.Before(from) {
		return nil, errors.New("recur: window end before window start")
	}

	var occurrences []time.Time

	if hasDTStart(rule) {
		set, err := rrule.StrToRRuleSet(rule)
		if err != nil {
			return nil, err
		}
		occurrences = set.Between(from, to, true)
	} else {
		r, err := rrule.StrToRRule(strings.TrimPrefix(rule, "RRULE:"))
		if err != nil {
			return nil, err
		}
		r.DTStart(anchor)
		occurrences = r.Between(from, to, true)
	}

	if len(occurrences) > defaultMaxOccurrences {
		return occurrences[:defaultMaxOccurrences], ErrTruncated
	}
	return occurrences, nil
}

// DayWindow frames the lookup window [today−days @00:00, today+days
// @23:59:59.999] inclusive around now in the given location. days == 0 means
// "today only".
func DayWindow(now time.Time, days int, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	if days < 0 {
		days = 0
	}
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, -days)
	end := time.Date(local.Year(), local.Month(), local.Day(), 23, 59, 59, 999_000_000, loc).AddDate(0, 0, days)
	return start, end
}

func hasDTStart(rule string) bool {
	for _, line := range strings.Split(rule, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "DTSTART") {
			return true
		}
	}
	return false
}
