package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wstcal/internal/config"
	"wstcal/internal/grid"
	"wstcal/internal/ics"
	"wstcal/internal/metrics"
	"wstcal/internal/model"
	"wstcal/internal/schedule"
	"wstcal/internal/sink"
	"wstcal/internal/store"
)

const (
	fall   = "2024-09-03 - 2024-12-06"
	spring = "2025-01-06 - 2025-04-08"
)

func fixtureCourses() []model.CourseSession {
	return []model.CourseSession{
		{Code: "MATH 100", Title: "Calculus", MeetingLines: []string{fall + " | Mon Wed | 11:00 a.m. - 12:00 p.m. | Hugh Dempster Pavilion (DMP)"}},
		{Code: "CPSC 110", Title: "Computation", Instructor: "Kiczales", MeetingLines: []string{fall + " | Mon Wed | 10:00 a.m. - 11:30 a.m."}},
		{Code: "CPSC 210", Title: "Software Construction", MeetingLines: []string{spring + " | Tue Thu | 2:00 p.m. - 3:30 p.m."}},
	}
}

type testEnv struct {
	srv       *Server
	handler   http.Handler
	exportDir string
	loadErr   error
	courses   []model.CourseSession
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Capture.Output = filepath.Join(dir, "preview.png")
	if mutate != nil {
		mutate(cfg)
	}

	engine, err := schedule.NewEngine(grid.Default())
	require.NoError(t, err)
	exporter, err := ics.NewExporter(ics.DefaultTZID, ics.WithClock(func() time.Time {
		return time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)
	}))
	require.NoError(t, err)

	env := &testEnv{exportDir: filepath.Join(dir, "exports"), courses: fixtureCourses()}
	srv, err := NewServer(Deps{
		Config:   cfg,
		Engine:   engine,
		Exporter: exporter,
		Library:  store.NewLibrary(store.NewFileStore(filepath.Join(dir, "schedules.json")), 2),
		Sink:     sink.NewFileSink(env.exportDir),
		Metrics:  metrics.New(),
		Loader: func(context.Context) ([]model.CourseSession, error) {
			if env.loadErr != nil {
				return nil, env.loadErr
			}
			return env.courses, nil
		},
	})
	require.NoError(t, err)
	srv.now = func() time.Time { return time.Date(2024, 9, 10, 12, 0, 0, 0, time.UTC) }

	_, err = srv.Refresh(context.Background())
	require.NoError(t, err)

	env.srv = srv
	env.handler = srv.Handler()
	return env
}

func (e *testEnv) do(t *testing.T, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestNewServerRequiresDeps(t *testing.T) {
	_, err := NewServer(Deps{})
	assert.Error(t, err)
}

func TestHealthAndBasicAuth(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	})

	rec := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/courses", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	req := httptest.NewRequest(http.MethodGet, "/api/courses", nil)
	req.SetBasicAuth("admin", "secret")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCourses(t *testing.T) {
	env := newTestEnv(t, nil)

	var resp coursesResponse
	rec := env.do(t, http.MethodGet, "/api/courses", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &resp)
	require.Equal(t, 3, resp.Count)
	assert.Equal(t, []string{"CPSC 110", "CPSC 210", "MATH 100"}, codes(resp.Courses))

	rec = env.do(t, http.MethodGet, "/api/courses?q=cpsc&sort=title&dir=desc", "")
	decode(t, rec, &resp)
	assert.Equal(t, []string{"CPSC 210", "CPSC 110"}, codes(resp.Courses))
	assert.Equal(t, 3, resp.Total)

	rec = env.do(t, http.MethodGet, "/api/courses?q=nothing-matches", "")
	assert.Contains(t, rec.Body.String(), `"courses":[]`)
}

func codes(cs []model.CourseSession) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Code
	}
	return out
}

func TestSchedule(t *testing.T) {
	env := newTestEnv(t, nil)

	var resp scheduleResponse
	rec := env.do(t, http.MethodGet, "/api/schedule?semester=first", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &resp)
	assert.Equal(t, schedule.First, resp.Semester)
	assert.Equal(t, 4, resp.BlockCount())
	assert.Equal(t, [][]string{{"CPSC 110", "MATH 100"}}, resp.Conflicts)
	assert.Equal(t, "The following classes are in conflict: [CPSC 110, MATH 100]", resp.Warning)
	assert.Len(t, resp.Rows, grid.Default().Len())

	var second scheduleResponse
	rec = env.do(t, http.MethodGet, "/api/schedule?semester=second", "")
	decode(t, rec, &second)
	assert.Equal(t, 2, second.BlockCount())
	assert.Empty(t, second.Conflicts)

	rec = env.do(t, http.MethodGet, "/api/schedule?semester=summer", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportICS(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/export.ics?semester=first&name=Fall/Term", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, sink.ContentTypeICS, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="[WST] Fall-Term.ics"`)
	body := rec.Body.String()
	assert.Contains(t, body, "BEGIN:VCALENDAR")
	assert.Contains(t, body, "SUMMARY:CPSC 110 - Computation")
	assert.NotContains(t, body, "CPSC 210")

	rec = env.do(t, http.MethodGet, "/api/export.ics?q=zzz", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestExportToSink(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/export?name=Spring&semester=second", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp exportResponse
	decode(t, rec, &resp)
	assert.Equal(t, 1, resp.Events)
	assert.Equal(t, "[WST] Spring.ics", resp.Filename)

	data, err := os.ReadFile(filepath.Join(env.exportDir, resp.Filename))
	require.NoError(t, err)
	assert.Contains(t, string(data), "CPSC 210")
}

func TestAgenda(t *testing.T) {
	env := newTestEnv(t, nil)

	var resp agendaResponse
	rec := env.do(t, http.MethodGet, "/api/agenda?from=2024-09-02&to=2024-09-08", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &resp)
	assert.Equal(t, "America/Vancouver", resp.Timezone)
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, "CPSC 110 - Computation", resp.Entries[0].Summary)
	assert.Equal(t, "MATH 100 - Calculus", resp.Entries[1].Summary)
	assert.Equal(t, 4, resp.Entries[0].Start.Day())

	rec = env.do(t, http.MethodGet, "/api/agenda?from=2024-09-08&to=2024-09-01", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/agenda?from=tomorrow", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefresh(t *testing.T) {
	env := newTestEnv(t, nil)
	env.courses = env.courses[:1]

	rec := env.do(t, http.MethodPost, "/api/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"courses":1}`, rec.Body.String())

	env.loadErr = errors.New("upstream down")
	rec = env.do(t, http.MethodPost, "/api/refresh", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Len(t, env.srv.current().Courses(), 1)
}

func TestSavedSchedules(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/schedules", `{"name":"Plan A"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var saved snapshotDTO
	decode(t, rec, &saved)
	assert.Equal(t, "Plan A", saved.Name)
	assert.Equal(t, 3, saved.Courses)
	assert.True(t, strings.HasPrefix(saved.Meta, "3 courses · Saved "), saved.Meta)

	rec = env.do(t, http.MethodPost, "/api/schedules", "")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/schedules", `{"name":"Plan C"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	var list schedulesResponse
	rec = env.do(t, http.MethodGet, "/api/schedules", "")
	decode(t, rec, &list)
	require.Len(t, list.Schedules, 2)
	assert.Equal(t, "Untitled", list.Schedules[0].Name)
	assert.False(t, list.CanSave)
	assert.Equal(t, 2, list.Max)

	env.courses = nil
	_, err := env.srv.Refresh(context.Background())
	require.NoError(t, err)

	rec = env.do(t, http.MethodPost, "/api/schedules/"+saved.ID+"/load", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, env.srv.current().Courses(), 3)
	assert.Equal(t, "Plan A", env.srv.current().ScheduleName())

	rec = env.do(t, http.MethodGet, "/api/export.ics", "")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "[WST] Plan A.ics")

	rec = env.do(t, http.MethodDelete, "/api/schedules/"+saved.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodDelete, "/api/schedules/"+saved.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/schedules/"+saved.ID+"/load", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/schedules", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSchedulePage(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/schedule?semester=first", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `data-ready="true"`)
	assert.Contains(t, body, "CPSC 110")
	assert.Contains(t, body, "block conflict")
	assert.Contains(t, body, "The following classes are in conflict")
}

func TestPreviewAndMetrics(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/preview.png", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, os.WriteFile(env.srv.cfg.Capture.Output, []byte("\x89PNG\r\n\x1a\n"), 0o600))
	rec = env.do(t, http.MethodGet, "/preview.png", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	env.do(t, http.MethodGet, "/api/courses", "")
	rec = env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `wstcal_http_requests_total{method="GET",route="/api/courses",status="200"} 1`)
}
