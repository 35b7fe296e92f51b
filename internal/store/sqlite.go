package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"taskline/internal/model"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// Store is the task record store backing the recurrence expander and the
// schedule endpoint. Timestamps are persisted as RFC 3339 strings in UTC so
// that the expander's child lookup is an exact-equality match, not a
// tolerance window.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at cfg.Path and
// applies migrations.
func Open(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("store: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const taskColumns = `id, parent_id, name, task_type, status, risk_type,
	remaining_seconds, priority_score, start_time, due_time, rrule`

// InsertTask persists a new task record. A missing id is generated.
func (s *Store) InsertTask(ctx context.Context, t model.Task) error {
	if strings.TrimSpace(t.ID) == "" {
		t.ID = NewID()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks(`+taskColumns+`, created_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.ParentID, t.Name, string(t.Type), string(t.Status), string(t.Risk),
		int64(t.Remaining/time.Second), t.PriorityScore,
		timeCol(t.StartTime), timeCol(t.DueTime), t.RRule,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// GetTask fetches a task by id; ErrNotFound when absent.
func (s *Store) GetTask(ctx context.Context, id string) (model.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Task{}, ErrNotFound
	}
	return t, err
}

// ListTemplates returns all recurrence templates (non-empty rrule).
func (s *Store) ListTemplates(ctx context.Context) ([]model.Task, error) {
	return s.list(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE rrule <> '' ORDER BY id`)
}

// FindChildByStart looks up a materialized child of the given template with
// exactly the given start instant.
func (s *Store) FindChildByStart(ctx context.Context, parentID string, start time.Time) (model.Task, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE parent_id = ? AND start_time = ?`,
		parentID, timeCol(start))
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Task{}, false, nil
	}
	if err != nil {
		return model.Task{}, false, err
	}
	return t, true, nil
}

// ListOpenWork returns flexible work tasks that still want scheduling.
// Templates are excluded; only materialized children and plain tasks
// participate in the timeline.
func (s *Store) ListOpenWork(ctx context.Context) ([]model.Task, error) {
	return s.list(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE task_type = ? AND rrule = '' AND status NOT IN (?, ?)
		 ORDER BY id`,
		string(model.TypeWork), string(model.StatusCompleted), string(model.StatusCanceled))
}

// ListFixed returns fixed-anchor (sleep/commitment) tasks that still apply.
func (s *Store) ListFixed(ctx context.Context) ([]model.Task, error) {
	return s.list(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE task_type = ? AND rrule = '' AND status NOT IN (?, ?)
		 ORDER BY start_time`,
		string(model.TypeSleep), string(model.StatusCompleted), string(model.StatusCanceled))
}

// ListTasks returns all task records ordered by id.
func (s *Store) ListTasks(ctx context.Context) ([]model.Task, error) {
	return s.list(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY id`)
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]model.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(r rowScanner) (model.Task, error) {
	var (
		t                 model.Task
		typ, status, risk string
		remainingSec      int64
		startCol, dueCol  string
	)
	err := r.Scan(&t.ID, &t.ParentID, &t.Name, &typ, &status, &risk,
		&remainingSec, &t.PriorityScore, &startCol, &dueCol, &t.RRule)
	if err != nil {
		return model.Task{}, err
	}
	t.Type = model.TaskType(typ)
	t.Status = model.Status(status)
	t.Risk = model.RiskType(risk)
	t.Remaining = time.Duration(remainingSec) * time.Second
	if t.StartTime, err = colTime(startCol); err != nil {
		return model.Task{}, err
	}
	if t.DueTime, err = colTime(dueCol); err != nil {
		return model.Task{}, err
	}
	return t, nil
}

// timeCol normalizes a timestamp to a canonical UTC string column value.
// The zero time maps to the empty string.
func timeCol(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func colTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, v)
}
