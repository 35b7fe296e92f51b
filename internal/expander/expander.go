// Package expander materializes recurrence templates into concrete child
// task records over a rolling day window. It is the only component that
// performs I/O; the check-then-insert pair per occurrence is a best-effort
// idempotency guard, not a transactional guarantee.
package expander

import (
	"context"
	"errors"
	"time"

	appLog "taskline/internal/log"
	"taskline/internal/model"
	"taskline/internal/recur"
)

// TaskStore is the record-store surface the expander needs. Implementations
// must support exact-timestamp equality lookup for FindChildByStart.
type TaskStore interface {
	ListTemplates(ctx context.Context) ([]model.Task, error)
	FindChildByStart(ctx context.Context, parentID string, start time.Time) (model.Task, bool, error)
	InsertTask(ctx context.Context, t model.Task) error
}

// Options configures one expansion run.
type Options struct {
	// Location frames the lookup window; nil means UTC.
	Location *time.Location

	// LookupDays widens the window by N days on each side of today;
	// 0 means today only.
	LookupDays int

	// Now anchors the window; the zero value means time.Now(). Passed
	// explicitly so runs are testable with fixed clocks.
	Now time.Time
}

// Detail records the outcome for a single occurrence (or a per-template
// failure, in which case Date is zero).
type Detail struct {
	ParentID string    `json:"parentId"`
	Created  bool      `json:"created"`
	Date     time.Time `json:"date"`
	Reason   string    `json:"reason,omitempty"`
}

// Report aggregates one expansion run.
type Report struct {
	Success            bool     `json:"success"`
	Processed          int      `json:"processed"`
	NewChildrenCreated int      `json:"newChildrenCreated"`
	Details            []Detail `json:"details"`
}

// Run expands every recurrence template into missing child records within
// the lookup window. At most one child exists per (parent id, occurrence
// instant) pair, so repeated runs over unchanged state create nothing new.
//
// Failures are isolated per template (bad rule syntax) and per occurrence
// (store errors); each is logged and recorded in the report while the batch
// continues. Only failing to list the templates at all is fatal.
func Run(ctx context.Context, st TaskStore, opt Options) (Report, error) {
	loc := opt.Location
	if loc == nil {
		loc = time.UTC
	}
	now := opt.Now
	if now.IsZero() {
		now = time.Now()
	}

	templates, err := st.ListTemplates(ctx)
	if err != nil {
		return Report{}, err
	}

	from, to := recur.DayWindow(now, opt.LookupDays, loc)
	appLog.Info("expander: run started",
		"templates", len(templates),
		"window_start", from.Format(time.RFC3339),
		"window_end", to.Format(time.RFC3339),
	)

	report := Report{Details: make([]Detail, 0)}
	for _, tpl := range templates {
		report.Processed++

		occurrences, err := recur.Between(tpl.RRule, tpl.StartTime, from, to)
		if err != nil && !errors.Is(err, recur.ErrTruncated) {
			// Rule-parse failure: this template contributes zero
			// occurrences; siblings are unaffected.
			appLog.Error("expander: rule parse failed", err, "template_id", tpl.ID, "rrule", tpl.RRule)
			report.Details = append(report.Details, Detail{
				ParentID: tpl.ID,
				Reason:   "rrule: " + err.Error(),
			})
			continue
		}

		for _, at := range occurrences {
			d := Detail{ParentID: tpl.ID, Date: at}

			_, exists, err := st.FindChildByStart(ctx, tpl.ID, at)
			if err != nil {
				appLog.Error("expander: child lookup failed", err, "template_id", tpl.ID, "occurrence", at.Format(time.RFC3339))
				d.Reason = "lookup: " + err.Error()
				report.Details = append(report.Details, d)
				continue
			}
			if exists {
				d.Reason = "exists"
				report.Details = append(report.Details, d)
				continue
			}

			if err := st.InsertTask(ctx, childOf(tpl, at)); err != nil {
				appLog.Error("expander: child insert failed", err, "template_id", tpl.ID, "occurrence", at.Format(time.RFC3339))
				d.Reason = "insert: " + err.Error()
				report.Details = append(report.Details, d)
				continue
			}

			d.Created = true
			report.NewChildrenCreated++
			report.Details = append(report.Details, d)
		}
	}

	report.Success = true
	appLog.Info("expander: run finished",
		"processed", report.Processed,
		"created", report.NewChildrenCreated,
	)
	return report, nil
}

// childOf clones the template into a concrete instance: identity is left for
// the store to assign, the occurrence instant becomes the start, the rule is
// cleared so the child is never itself treated as a template, and status is
// reset to new.
func childOf(tpl model.Task, at time.Time) model.Task {
	child := tpl
	child.ID = ""
	child.ParentID = tpl.ID
	child.StartTime = at
	child.RRule = ""
	child.Status = model.StatusNew
	return child
}
