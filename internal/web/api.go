package web

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"wstcal/internal/ics"
	appLog "wstcal/internal/log"
	"wstcal/internal/model"
	"wstcal/internal/schedule"
	"wstcal/internal/sink"
	"wstcal/internal/store"
)

const (
	defaultAgendaDays  = 7
	maxAgendaDays      = 366
	maxOccurrencesHTTP = 5000
)

type coursesResponse struct {
	Courses []model.CourseSession `json:"courses"`
	Count   int                   `json:"count"`
	Total   int                   `json:"total"`
	Query   string                `json:"query,omitempty"`
	Sort    schedule.SortState    `json:"sort"`
}

// handleCourses lists the current courses.
//
// GET /api/courses?q=&sort=&dir=asc|desc
func (s *Server) handleCourses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	st := s.current()

	sortState := schedule.SortState{Key: schedule.SortCode, Dir: 1}
	if key := q.Get("sort"); key != "" {
		sortState.Key = key
	}
	if strings.EqualFold(q.Get("dir"), "desc") {
		sortState.Dir = -1
	}

	all := st.Courses()
	courses := schedule.FilterCourses(all, q.Get("q"))
	schedule.SortCourses(courses, sortState)
	if courses == nil {
		courses = []model.CourseSession{}
	}

	writeJSON(w, http.StatusOK, coursesResponse{
		Courses: courses,
		Count:   len(courses),
		Total:   len(all),
		Query:   q.Get("q"),
		Sort:    sortState,
	})
}

type scheduleResponse struct {
	schedule.Model
	Warning      string   `json:"warning,omitempty"`
	Rows         []string `json:"rows"`
	ScheduleName string   `json:"schedule_name,omitempty"`
}

// viewFor builds the requested view state from ?semester= and ?q=.
func (s *Server) viewFor(r *http.Request) (schedule.State, error) {
	q := r.URL.Query()
	st := s.current().WithQuery(q.Get("q"))
	if raw := q.Get("semester"); raw != "" {
		sem, ok := schedule.ParseSemester(raw)
		if !ok {
			return st, errors.New("semester must be first or second")
		}
		st = st.WithSemester(sem)
	}
	return st, nil
}

// handleSchedule returns the week render model.
//
// GET /api/schedule?semester=first|second&q=
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	st, err := s.viewFor(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	m := st.Render(s.engine)

	g := s.engine.Grid()
	rows := make([]string, g.Len())
	for i := range rows {
		rows[i] = g.Label(i)
	}

	writeJSON(w, http.StatusOK, scheduleResponse{
		Model:        m,
		Warning:      m.Warning(),
		Rows:         rows,
		ScheduleName: st.ScheduleName(),
	})
}

// exportRequest resolves the courses and filename for an export. Without
// ?semester= every meeting line is exported.
func (s *Server) exportRequest(r *http.Request) ([]model.CourseSession, string, error) {
	q := r.URL.Query()
	st := s.current()
	courses := schedule.FilterCourses(st.Courses(), q.Get("q"))

	if raw := q.Get("semester"); raw != "" {
		sem, ok := schedule.ParseSemester(raw)
		if !ok {
			return nil, "", errors.New("semester must be first or second")
		}
		courses = s.engine.Classifier().FilterSemester(courses, sem)
	}

	name := strings.TrimSpace(q.Get("name"))
	if name == "" {
		name = st.ScheduleName()
	}
	return courses, ics.ExportFilename(name), nil
}

// handleExportICS downloads the calendar.
//
// GET /api/export.ics?semester=&name=&q=
func (s *Server) handleExportICS(w http.ResponseWriter, r *http.Request) {
	courses, filename, err := s.exportRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	body, n := s.exporter.Export(courses)
	if n == 0 {
		writeError(w, http.StatusUnprocessableEntity, "no events to export")
		return
	}

	w.Header().Set("Content-Type", sink.ContentTypeICS)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

type exportResponse struct {
	Location string `json:"location"`
	Filename string `json:"filename"`
	Events   int    `json:"events"`
}

// handleExportSink writes the calendar to the configured sink.
//
// POST /api/export?semester=&name=&q=
func (s *Server) handleExportSink(w http.ResponseWriter, r *http.Request) {
	if s.sink == nil {
		writeError(w, http.StatusServiceUnavailable, "no export sink configured")
		return
	}
	courses, filename, err := s.exportRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	body, n := s.exporter.Export(courses)
	if n == 0 {
		writeError(w, http.StatusUnprocessableEntity, "no events to export")
		return
	}

	loc, err := s.sink.Put(r.Context(), filename, body, sink.ContentTypeICS)
	if err != nil {
		appLog.Error("export to sink failed", err, "filename", filename)
		writeError(w, http.StatusBadGateway, "failed to write export")
		return
	}
	writeJSON(w, http.StatusCreated, exportResponse{Location: loc, Filename: filename, Events: n})
}

type agendaResponse struct {
	From     string            `json:"from"`
	To       string            `json:"to"`
	Timezone string            `json:"timezone"`
	Entries  []ics.AgendaEntry `json:"entries"`
}

// handleAgenda expands the exported calendar into concrete meetings.
//
// GET /api/agenda?from=YYYY-MM-DD&to=YYYY-MM-DD&semester=
//   - from: first day, default today
//   - to:   last day (inclusive), default from + 7 days
func (s *Server) handleAgenda(w http.ResponseWriter, r *http.Request) {
	loc := s.exporter.Location()
	q := r.URL.Query()

	from := civil.DateOf(s.now().In(loc))
	if raw := q.Get("from"); raw != "" {
		d, err := civil.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
			return
		}
		from = d
	}
	to := from.AddDays(defaultAgendaDays)
	if raw := q.Get("to"); raw != "" {
		d, err := civil.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
			return
		}
		to = d
	}
	if to.Before(from) || to.DaysSince(from) > maxAgendaDays {
		writeError(w, http.StatusBadRequest, "invalid date range")
		return
	}

	resp := agendaResponse{From: from.String(), To: to.String(), Timezone: s.exporter.TZID(), Entries: []ics.AgendaEntry{}}

	courses, _, err := s.exportRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	body, n := s.exporter.Export(courses)
	if n == 0 {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	entries, err := ics.Agenda(body, ics.AgendaConfig{
		DisplayLocation:        loc,
		RangeStart:             from.In(loc),
		RangeEnd:               to.AddDays(1).In(loc).Add(-time.Nanosecond),
		MaxOccurrencesPerEvent: maxOccurrencesHTTP,
	})
	if err != nil {
		appLog.Error("agenda expansion failed", err)
		writeError(w, http.StatusInternalServerError, "failed to expand agenda")
		return
	}
	if entries != nil {
		resp.Entries = entries
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRefresh re-extracts courses from the row source.
//
// POST /api/refresh
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	n, err := s.Refresh(r.Context())
	if err != nil {
		appLog.Error("refresh failed", err)
		writeError(w, http.StatusBadGateway, "failed to load course rows")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"courses": n})
}

type snapshotDTO struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	SavedAt time.Time `json:"savedAt"`
	Courses int       `json:"courses"`
	Meta    string    `json:"meta"`
}

func (s *Server) toDTO(snap model.Snapshot) snapshotDTO {
	return snapshotDTO{
		ID:      snap.ID,
		Name:    snap.Name,
		SavedAt: snap.SavedAt,
		Courses: len(snap.Courses),
		Meta:    store.Meta(snap, s.now()),
	}
}

type schedulesResponse struct {
	Schedules []snapshotDTO `json:"schedules"`
	Max       int           `json:"max"`
	CanSave   bool          `json:"can_save"`
}

// GET /api/schedules
func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	list, err := s.library.List(r.Context())
	if err != nil {
		appLog.Error("list schedules failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load saved schedules")
		return
	}
	dtos := make([]snapshotDTO, 0, len(list))
	for _, snap := range list {
		dtos = append(dtos, s.toDTO(snap))
	}
	writeJSON(w, http.StatusOK, schedulesResponse{
		Schedules: dtos,
		Max:       s.library.Max(),
		CanSave:   store.CanSaveMore(list, s.library.Max()),
	})
}

type saveRequest struct {
	Name string `json:"name"`
}

// handleSaveSchedule snapshots the current course list.
//
// POST /api/schedules {"name": "..."}
func (s *Server) handleSaveSchedule(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	snap, err := s.library.Add(r.Context(), strings.TrimSpace(req.Name), s.current().Courses())
	switch {
	case errors.Is(err, store.ErrLimitReached):
		writeError(w, http.StatusConflict, "saved schedule limit reached")
		return
	case err != nil:
		appLog.Error("save schedule failed", err)
		writeError(w, http.StatusInternalServerError, "failed to save schedule")
		return
	}
	writeJSON(w, http.StatusCreated, s.toDTO(snap))
}

// DELETE /api/schedules/{id}
func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	err := s.library.Delete(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "schedule not found")
	case err != nil:
		appLog.Error("delete schedule failed", err)
		writeError(w, http.StatusInternalServerError, "failed to delete schedule")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleLoadSchedule replaces the current courses with a saved snapshot.
//
// POST /api/schedules/{id}/load
func (s *Server) handleLoadSchedule(w http.ResponseWriter, r *http.Request) {
	snap, err := s.library.Get(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "schedule not found")
		return
	case err != nil:
		appLog.Error("load schedule failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load schedule")
		return
	}
	s.SetCourses(snap.Courses, snap.Name)
	appLog.Info("schedule loaded", "id", snap.ID, "name", snap.Name)
	writeJSON(w, http.StatusOK, s.toDTO(snap))
}
