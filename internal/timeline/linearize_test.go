package timeline

import (
	"testing"
	"time"

	"taskline/internal/model"
)

func task(id string, risk model.RiskType, remaining time.Duration, score float64) model.Task {
	return model.Task{
		ID:            id,
		Name:          id,
		Type:          model.TypeWork,
		Status:        model.StatusNew,
		Risk:          risk,
		Remaining:     remaining,
		PriorityScore: score,
	}
}

func TestLinearizeOrdering(t *testing.T) {
	tasks := []model.Task{
		task("d", model.RiskLow, 30*time.Minute, 1),
		task("c", model.RiskMedium, 30*time.Minute, 2),
		task("b", model.RiskMedium, 30*time.Minute, 1),
		task("a", model.RiskHigh, 90*time.Minute, 9),
		task("e", "", 30*time.Minute, 1), // absent risk ranks as low
	}
	now := at(9, 0)

	events := Linearize(tasks, now)
	if len(events) != 5 {
		t.Fatalf("events = %d, want 5", len(events))
	}

	// high first, then medium by score, then low by id.
	want := []string{"a", "b", "c", "d", "e"}
	for i, id := range want {
		if events[i].TaskID != id {
			t.Errorf("position %d = %s, want %s", i, events[i].TaskID, id)
		}
	}
}

func TestLinearizeRemainingBreaksTiesBeforeScore(t *testing.T) {
	tasks := []model.Task{
		task("long", model.RiskLow, 2*time.Hour, 0),
		task("short", model.RiskLow, 15*time.Minute, 99),
	}

	events := Linearize(tasks, at(9, 0))
	if events[0].TaskID != "short" {
		t.Errorf("first = %s, want short (remaining time beats priority score)", events[0].TaskID)
	}
}

func TestLinearizeLayout(t *testing.T) {
	tasks := []model.Task{
		task("a", model.RiskHigh, 30*time.Minute, 0),
		task("b", model.RiskLow, 20*time.Minute, 0),
	}
	// 09:00:30 truncates to 09:00.
	now := time.Date(2025, time.June, 2, 9, 0, 30, 0, time.UTC)

	events := Linearize(tasks, now)
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if !events[0].Start.Equal(at(9, 0)) || !events[0].End.Equal(at(9, 30)) {
		t.Errorf("a = [%v, %v), want [09:00, 09:30)", events[0].Start, events[0].End)
	}
	// One buffer minute between consecutive tasks.
	if !events[1].Start.Equal(at(9, 31)) || !events[1].End.Equal(at(9, 51)) {
		t.Errorf("b = [%v, %v), want [09:31, 09:51)", events[1].Start, events[1].End)
	}
}

func TestLinearizeZeroDurationAdvancesCursor(t *testing.T) {
	tasks := []model.Task{
		task("empty", model.RiskHigh, 0, 0),
		task("work", model.RiskLow, 30*time.Minute, 0),
	}

	events := Linearize(tasks, at(9, 0))
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1 (zero-duration task emits nothing)", len(events))
	}
	if !events[0].Start.Equal(at(9, 1)) {
		t.Errorf("start = %v, want 09:01 (cursor still advanced by buffer)", events[0].Start)
	}
}

func TestLinearizeCarriesDue(t *testing.T) {
	tsk := task("a", model.RiskLow, 30*time.Minute, 0)
	tsk.DueTime = at(12, 0)

	events := Linearize([]model.Task{tsk}, at(9, 0))
	if len(events) != 1 || !events[0].Due.Equal(at(12, 0)) {
		t.Fatalf("due not carried through: %+v", events)
	}
}

func TestLinearizeDoesNotMutateInput(t *testing.T) {
	tasks := []model.Task{
		task("z", model.RiskLow, 30*time.Minute, 0),
		task("a", model.RiskHigh, 30*time.Minute, 0),
	}

	Linearize(tasks, at(9, 0))
	if tasks[0].ID != "z" || tasks[1].ID != "a" {
		t.Error("input slice order changed")
	}
}
