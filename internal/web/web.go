package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"taskline/internal/config"
	"taskline/internal/expander"
	"taskline/internal/ics"
	appLog "taskline/internal/log"
	"taskline/internal/model"
	"taskline/internal/store"
	"taskline/internal/timeline"
)

// Server provides the HTTP API: health, the materialized schedule, the
// manual expander trigger, and the task listing.
type Server struct {
	cfg   *config.Config
	st    *store.Store
	debug bool
	mux   *http.ServeMux

	// In-memory cache for /api/schedule responses to avoid redundant
	// fetch/pack work on every HTTP request.
	scheduleMu    sync.RWMutex
	scheduleCache *scheduleCache
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, st *store.Store, debug bool) *Server {
	s := &Server{
		cfg:   cfg,
		st:    st,
		debug: debug,
		mux:   http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// StartServer starts an HTTP server bound to cfg.Listen.
func StartServer(_ context.Context, cfg *config.Config, st *store.Store, debug bool) error {
	s := NewServer(cfg, st, debug)
	appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen, "debug", debug)
	return http.ListenAndServe(cfg.Listen, s.Handler())
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/schedule", s.handleSchedule)
	s.mux.HandleFunc("/api/expand", s.handleExpand)
	s.mux.HandleFunc("/api/occurrences", s.handleOccurrences)
	s.mux.HandleFunc("/api/tasks", s.handleTasks)
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// An empty username or password counts as disabled.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="taskline", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// fragmentDTO is the JSON view of a scheduled fragment.
type fragmentDTO struct {
	TaskID       string     `json:"task_id"`
	Title        string     `json:"title"`
	Start        time.Time  `json:"start"`
	End          time.Time  `json:"end"`
	Due          *time.Time `json:"due,omitempty"`
	DelaySeconds int64      `json:"delay_seconds,omitempty"`
	Marker       string     `json:"marker,omitempty"`
}

// scheduleResponse is the JSON response shape for /api/schedule.
type scheduleResponse struct {
	Fragments  []fragmentDTO `json:"fragments"`
	RangeStart time.Time     `json:"range_start"`
	RangeEnd   time.Time     `json:"range_end"`
	Timezone   string        `json:"timezone"`
}

// scheduleCache holds a cached /api/schedule response and its timestamp.
type scheduleCache struct {
	resp      scheduleResponse
	updatedAt time.Time
}

// handleSchedule materializes the full timeline: fixed store tasks and ICS
// commitments become base events, open work tasks are linearized into
// flexible events, the packer books fragments around the base events, and
// the due-risk pass annotates overruns.
//
// GET /api/schedule?days=7&backfill=0
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q := r.URL.Query()
	days := parseIntDefault(q.Get("days"), s.cfg.HorizonDays)
	if days <= 0 {
		days = s.cfg.HorizonDays
	}
	backfill := parseIntDefault(q.Get("backfill"), 0)
	if backfill < 0 {
		backfill = 0
	}

	const scheduleCacheTTL = 30 * time.Second
	cacheNow := time.Now()

	s.scheduleMu.RLock()
	sc := s.scheduleCache
	s.scheduleMu.RUnlock()
	if sc != nil && cacheNow.Sub(sc.updatedAt) < scheduleCacheTTL {
		writeJSON(w, http.StatusOK, sc.resp)
		return
	}

	loc := s.cfg.Location()
	now := time.Now().In(loc)
	rangeStart := now.AddDate(0, 0, -backfill)
	rangeEnd := now.AddDate(0, 0, days)

	fixedTasks, err := s.st.ListFixed(ctx)
	if err != nil {
		appLog.Error("api schedule: listing fixed tasks failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load fixed tasks")
		return
	}
	workTasks, err := s.st.ListOpenWork(ctx)
	if err != nil {
		appLog.Error("api schedule: listing work tasks failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load work tasks")
		return
	}

	base := timeline.MaterializeFixed(fixedTasks)
	base = append(base, s.fetchCommitments(ctx, rangeStart, rangeEnd)...)
	flexible := timeline.Linearize(workTasks, now)

	packed := timeline.Pack(base, flexible, s.cfg.MinFragment())
	packed = timeline.PropagateDueRisk(packed)
	sort.SliceStable(packed, func(i, j int) bool {
		return packed[i].Start.Before(packed[j].Start)
	})

	resp := scheduleResponse{
		Fragments:  toDTOs(packed),
		RangeStart: rangeStart,
		RangeEnd:   rangeEnd,
		Timezone:   loc.String(),
	}

	s.scheduleMu.Lock()
	s.scheduleCache = &scheduleCache{resp: resp, updatedAt: time.Now()}
	s.scheduleMu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

// fetchCommitments imports fixed commitments from the configured ICS feeds.
// Feed failures degrade to an empty contribution; the schedule still builds.
func (s *Server) fetchCommitments(ctx context.Context, from, to time.Time) []model.TaskEvent {
	sources := make([]ics.Source, 0, len(s.cfg.ICS))
	for _, c := range s.cfg.ICS {
		if c.URL == "" {
			continue
		}
		id := c.ID
		if id == "" {
			if c.Name != "" {
				id = c.Name
			} else {
				id = c.URL
			}
		}
		sources = append(sources, ics.Source{ID: id, URL: c.URL})
	}
	if len(sources) == 0 {
		return nil
	}

	cacheDir := "/var/lib/taskline/ics-cache"
	if s.debug {
		cacheDir = "./cache/ics-cache"
	}
	fetcher := ics.NewFetcher(cacheDir)

	results, errs := fetcher.FetchAll(ctx, sources)
	if len(errs) > 0 {
		appLog.Warn("api schedule: one or more ICS fetches failed", "error_count", len(errs))
	}

	commitments := make([]ics.Commitment, 0)
	for _, res := range results {
		parsed, err := ics.Parse(res.Source, res.Body)
		if err != nil {
			appLog.Error("api schedule: ICS parse failed", err, "id", res.Source.ID)
			continue
		}
		commitments = append(commitments, parsed...)
	}

	return ics.BaseEvents(commitments, from, to)
}

// handleExpand runs the recurrence expander once and returns its report.
//
// POST /api/expand?days=0
func (s *Server) handleExpand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	days := parseIntDefault(r.URL.Query().Get("days"), s.cfg.LookupDays)
	if days < 0 {
		days = 0
	}

	report, err := expander.Run(r.Context(), s.st, expander.Options{
		Location:   s.cfg.Location(),
		LookupDays: days,
	})
	if err != nil {
		appLog.Error("api expand: run failed", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleOccurrences projects a recurrence template into display occurrences
// without touching the store beyond the template lookup. No children are
// materialized; this is the read-only analog of /api/expand.
//
// GET /api/occurrences?task_id=tpl&days=7
func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("task_id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "task_id is required")
		return
	}
	days := parseIntDefault(r.URL.Query().Get("days"), s.cfg.HorizonDays)
	if days <= 0 {
		days = s.cfg.HorizonDays
	}

	task, err := s.st.GetTask(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no such task")
		return
	}
	if err != nil {
		appLog.Error("api occurrences: task lookup failed", err, "task_id", id)
		writeError(w, http.StatusInternalServerError, "failed to load task")
		return
	}
	if !task.IsTemplate() {
		writeError(w, http.StatusBadRequest, "task has no recurrence rule")
		return
	}

	loc := s.cfg.Location()
	now := time.Now().In(loc)
	rangeEnd := now.AddDate(0, 0, days)

	event := model.TaskEvent{
		TaskID: task.ID,
		Title:  task.Name,
		Start:  task.StartTime,
		End:    task.StartTime.Add(task.Remaining),
		Due:    task.DueTime,
	}
	occurrences := timeline.ProjectRecurring(event, task.RRule, now, rangeEnd)

	writeJSON(w, http.StatusOK, map[string]any{
		"occurrences": toDTOs(occurrences),
		"range_start": now,
		"range_end":   rangeEnd,
	})
}

// taskDTO is the JSON view of a task record.
type taskDTO struct {
	ID            string     `json:"id"`
	ParentID      string     `json:"parent_id,omitempty"`
	Name          string     `json:"name"`
	Type          string     `json:"task_type"`
	Status        string     `json:"status"`
	Risk          string     `json:"risk_type,omitempty"`
	RemainingSec  int64      `json:"remaining_seconds"`
	PriorityScore float64    `json:"priority_score"`
	StartTime     *time.Time `json:"start_time,omitempty"`
	DueTime       *time.Time `json:"due_time,omitempty"`
	RRule         string     `json:"rrule,omitempty"`
}

// handleTasks lists all task records.
//
// GET /api/tasks
func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.st.ListTasks(r.Context())
	if err != nil {
		appLog.Error("api tasks: list failed", err)
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}

	dtos := make([]taskDTO, 0, len(tasks))
	for _, t := range tasks {
		dtos = append(dtos, taskDTO{
			ID:            t.ID,
			ParentID:      t.ParentID,
			Name:          t.Name,
			Type:          string(t.Type),
			Status:        string(t.Status),
			Risk:          string(t.Risk),
			RemainingSec:  int64(t.Remaining / time.Second),
			PriorityScore: t.PriorityScore,
			StartTime:     optTime(t.StartTime),
			DueTime:       optTime(t.DueTime),
			RRule:         t.RRule,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": dtos})
}

func toDTOs(events []model.TaskEvent) []fragmentDTO {
	dtos := make([]fragmentDTO, 0, len(events))
	for _, e := range events {
		dtos = append(dtos, fragmentDTO{
			TaskID:       e.TaskID,
			Title:        e.Title,
			Start:        e.Start,
			End:          e.End,
			Due:          optTime(e.Due),
			DelaySeconds: e.DelaySeconds,
			Marker:       string(e.Marker),
		})
	}
	return dtos
}

func optTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
