package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wstcal/internal/grid"
	"wstcal/internal/meeting"
	"wstcal/internal/model"
	"wstcal/internal/schedule"
)

const term = "2024-09-03 - 2024-12-06"

func TestObserverCountsEngineEvents(t *testing.T) {
	obs := New()
	e, err := schedule.NewEngine(grid.Default(), schedule.WithObserver(obs))
	require.NoError(t, err)

	courses := []model.CourseSession{
		{Code: "A", MeetingLines: []string{term + " | Mon | 10:00 a.m. - 11:00 a.m."}},
		{Code: "B", MeetingLines: []string{term + " | Mon | 10:30 a.m. - 11:30 a.m."}},
		{Code: "C", MeetingLines: []string{term + " | Tue"}},
		{Code: "D", MeetingLines: []string{term + " | Tue | 5:00 a.m. - 6:00 a.m."}},
	}
	m := e.Build(courses, schedule.First)
	require.Len(t, m.Conflicts, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(obs.linesSkipped.WithLabelValues(string(meeting.MissingTimeRange))))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.gridMisses))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.conflicts))
	assert.Equal(t, 1, testutil.CollectAndCount(obs.renderSeconds, "wstcal_render_seconds"))
}

func TestObserveHTTPRequestAndHandler(t *testing.T) {
	obs := New()
	obs.ObserveHTTPRequest(http.MethodGet, "/api/schedule", http.StatusOK, 20*time.Millisecond)
	obs.ObserveHTTPRequest(http.MethodGet, "/api/schedule", http.StatusOK, 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(obs.requestTotal.WithLabelValues("GET", "/api/schedule", "200")))

	rec := httptest.NewRecorder()
	obs.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "wstcal_http_requests_total")

	var nilObs *Observer
	rec = httptest.NewRecorder()
	nilObs.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	nilObs.ObserveHTTPRequest("GET", "/", 200, 0)
}

func TestRenderedLabelsUnclassified(t *testing.T) {
	obs := New()
	obs.Rendered("", 0, time.Millisecond)
	n, err := testutil.GatherAndCount(obs.Registry(), "wstcal_render_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
