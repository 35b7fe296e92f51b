package timeline

import (
	"sort"
	"time"

	"taskline/internal/model"
)

const (
	// Buffer is the separation enforced between a scheduled interval and an
	// adjacent base event.
	Buffer = time.Minute

	// DefaultMinFragment is the smallest fragment the packer will ever emit.
	// Smaller gaps are skipped; smaller remainders are discarded.
	DefaultMinFragment = 10 * time.Minute
)

// Pack arranges flexible events into the free time around base events.
//
// Base events pass through unchanged (sorted by start). Each flexible event
// is moved and, where it collides with base events, split into fragments
// that carry the original task id, title and due date. The buffer is
// asymmetric: one Buffer is reserved immediately before a base event, and
// one Buffer is inserted after every emitted fragment or skipped base event.
// A flexible event may end up scheduled for less than its requested duration
// when the remainder falls below minFragment.
//
// Pack is a pure function; inputs are never mutated.
func Pack(base, flexible []model.TaskEvent, minFragment time.Duration) []model.TaskEvent {
	if minFragment <= 0 {
		minFragment = DefaultMinFragment
	}

	sorted := make([]model.TaskEvent, len(base))
	copy(sorted, base)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	out := make([]model.TaskEvent, 0, len(sorted)+len(flexible))
	out = append(out, sorted...)
	for _, ev := range flexible {
		out = append(out, packOne(ev, sorted, minFragment)...)
	}
	return out
}

// packOne runs the booking state machine for a single flexible event. Loop
// state is (cursor, remaining); fragments accumulate append-only.
func packOne(ev model.TaskEvent, base []model.TaskEvent, minFragment time.Duration) []model.TaskEvent {
	remaining := ev.End.Sub(ev.Start)
	if remaining <= 0 {
		// Zero or negative requested duration is a no-op.
		return nil
	}

	cursor := ev.Start
	var frags []model.TaskEvent

	for remaining > 0 {
		cursor = skipBlocked(cursor, base)

		booked := remaining
		if next, ok := nextBase(cursor, base); ok {
			// One Buffer is reserved before the next base event.
			gap := next.Start.Sub(cursor) - Buffer

			// A sub-minimum gap is skipped entirely; no fragment is emitted
			// in it, not even partially.
			if gap < minFragment {
				cursor = next.End.Add(Buffer)
				continue
			}
			if gap < booked {
				booked = gap
			}
		}

		// A remainder shorter than the minimum is discarded, not scheduled.
		if booked < minFragment {
			break
		}

		frag := ev
		frag.Start = cursor
		frag.End = cursor.Add(booked)
		frags = append(frags, frag)

		cursor = frag.End.Add(Buffer)
		remaining -= booked
	}
	return frags
}

// skipBlocked advances the cursor past any base event it falls into. The
// buffer applies only on the start side: a cursor inside
// [base.Start−Buffer, base.End) is blocked. A single advance may land inside
// another base event, so all base events are re-checked until the cursor is
// clear.
func skipBlocked(cursor time.Time, base []model.TaskEvent) time.Time {
	for {
		moved := false
		for _, b := range base {
			if !cursor.Before(b.Start.Add(-Buffer)) && cursor.Before(b.End) {
				cursor = b.End.Add(Buffer)
				moved = true
			}
		}
		if !moved {
			return cursor
		}
	}
}

// nextBase returns the first base event starting strictly after the cursor.
func nextBase(cursor time.Time, base []model.TaskEvent) (model.TaskEvent, bool) {
	for _, b := range base {
		if b.Start.After(cursor) {
			return b, true
		}
	}
	return model.TaskEvent{}, false
}
