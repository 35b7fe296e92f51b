package model

import (
	"strings"
	"time"
)

// TaskType classifies how a task participates in scheduling: "work" tasks
// are flexible and may be moved/split around fixed blocks, "sleep" tasks are
// fixed anchors placed at their own declared start time.
type TaskType string

const (
	TypeWork  TaskType = "work"
	TypeBreak TaskType = "break"
	TypeSleep TaskType = "sleep"
)

// Status is the lifecycle state of a task record.
type Status string

const (
	StatusNew        Status = "new"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCanceled   Status = "canceled"
	StatusBlocked    Status = "blocked"
)

// RiskType is the declared severity of a task. Severity ordering for the
// scheduler is high < medium < low (high sorts first).
type RiskType string

const (
	RiskHigh   RiskType = "high"
	RiskMedium RiskType = "medium"
	RiskLow    RiskType = "low"
)

// SeverityRank maps a RiskType to its comparable rank. Unknown or empty
// values rank as low.
func SeverityRank(r RiskType) int {
	switch r {
	case RiskHigh:
		return 1
	case RiskMedium:
		return 2
	default:
		return 3
	}
}

// Task is a task record: either a recurrence template (non-empty RRule) or a
// concrete schedulable item. Templates are never scheduled themselves; only
// their materialized children are.
type Task struct {
	ID       string
	ParentID string // non-empty for materialized children of a template

	Name   string
	Type   TaskType
	Status Status
	Risk   RiskType

	// Remaining is the duration still owed on this task.
	Remaining time.Duration

	// PriorityScore is a numeric tie-break; lower means more urgent.
	PriorityScore float64

	// StartTime is the absolute anchor. Required for sleep/fixed tasks and
	// for recurrence templates whose rule carries no DTSTART; informational
	// for flexible work tasks.
	StartTime time.Time

	// DueTime is the optional absolute deadline; zero means none.
	DueTime time.Time

	// RRule is an RFC 5545 recurrence rule. Non-empty marks this record as
	// a recurrence template.
	RRule string
}

// IsTemplate reports whether this task is a recurrence template.
func (t Task) IsTemplate() bool {
	return strings.TrimSpace(t.RRule) != ""
}

// Open reports whether the task still wants scheduling.
func (t Task) Open() bool {
	return t.Status != StatusCompleted && t.Status != StatusCanceled
}

// Marker is the visual/risk indicator carried by a fragment. It is not
// business data; only the due-risk pass sets it.
type Marker string

const (
	MarkerNone Marker = ""
	MarkerRisk Marker = "risk"
)

// TaskEvent is one contiguous occupied interval on the timeline. Many
// fragments may share one TaskID when a flexible task is split around fixed
// blocks. Events are created as immutable values; only the due-risk pass
// sets Marker and DelaySeconds, uniformly across all fragments of a task.
type TaskEvent struct {
	TaskID string
	Title  string

	Start time.Time
	End   time.Time // invariant: Start < End

	// Due is carried through from the owning task; zero means none. Used
	// only by the due-risk pass.
	Due time.Time

	// DelaySeconds is the computed overrun in whole seconds, set only when
	// the due-risk pass finds risk.
	DelaySeconds int64

	Marker Marker
}

// Duration returns the occupied length of the event.
func (e TaskEvent) Duration() time.Duration {
	return e.End.Sub(e.Start)
}
