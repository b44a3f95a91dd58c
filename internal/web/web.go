package web

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"wstcal/internal/config"
	"wstcal/internal/ics"
	appLog "wstcal/internal/log"
	"wstcal/internal/metrics"
	"wstcal/internal/model"
	"wstcal/internal/schedule"
	"wstcal/internal/sink"
	"wstcal/internal/store"
)

// Loader re-extracts the course list from the configured row source.
type Loader func(ctx context.Context) ([]model.CourseSession, error)

// Deps are the collaborators a Server needs. Sink and Metrics are optional.
type Deps struct {
	Config   *config.Config
	Engine   *schedule.Engine
	Exporter *ics.Exporter
	Library  *store.Library
	Sink     sink.Sink
	Metrics  *metrics.Observer
	Loader   Loader
}

// Server provides the HTTP API and the HTML schedule page. It owns the
// current view state (course list and loaded schedule name).
type Server struct {
	cfg      *config.Config
	engine   *schedule.Engine
	exporter *ics.Exporter
	library  *store.Library
	sink     sink.Sink
	metrics  *metrics.Observer
	loader   Loader
	now      func() time.Time

	router *chi.Mux

	mu          sync.RWMutex
	state       schedule.State
	refreshedAt time.Time
}

// NewServer constructs a new Server with an empty course list.
func NewServer(d Deps) (*Server, error) {
	switch {
	case d.Config == nil:
		return nil, errors.New("web: config is required")
	case d.Engine == nil:
		return nil, errors.New("web: engine is required")
	case d.Exporter == nil:
		return nil, errors.New("web: exporter is required")
	case d.Library == nil:
		return nil, errors.New("web: library is required")
	case d.Loader == nil:
		return nil, errors.New("web: loader is required")
	}
	s := &Server{
		cfg:      d.Config,
		engine:   d.Engine,
		exporter: d.Exporter,
		library:  d.Library,
		sink:     d.Sink,
		metrics:  d.Metrics,
		loader:   d.Loader,
		now:      time.Now,
		router:   chi.NewRouter(),
		state:    schedule.NewState(nil),
	}
	s.registerRoutes()
	return s, nil
}

// Handler returns the root http.Handler, with basic auth when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
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
			w.Header().Set("WWW-Authenticate", `Basic realm="wstcal", charset="UTF-8"`)
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

// metricsMiddleware records method, route pattern and status per request.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.ObserveHTTPRequest(r.Method, route, status, time.Since(started))
	})
}

// StartServer listens on cfg.Listen and serves until ctx is cancelled.
func (s *Server) StartServer(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return err
	}
	appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		appLog.Info("shutting down HTTP server", "addr", ln.Addr().String())
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metricsMiddleware)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/schedule", s.handleSchedulePage)
	r.Get("/preview.png", s.handlePreview)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/courses", s.handleCourses)
		r.Get("/schedule", s.handleSchedule)
		r.Get("/export.ics", s.handleExportICS)
		r.Post("/export", s.handleExportSink)
		r.Get("/agenda", s.handleAgenda)
		r.Post("/refresh", s.handleRefresh)

		r.Route("/schedules", func(r chi.Router) {
			r.Get("/", s.handleListSchedules)
			r.Post("/", s.handleSaveSchedule)
			r.Delete("/{id}", s.handleDeleteSchedule)
			r.Post("/{id}/load", s.handleLoadSchedule)
		})
	})
}

// Refresh reloads courses from the row source and resets the loaded
// schedule name. It returns the new course count.
func (s *Server) Refresh(ctx context.Context) (int, error) {
	courses, err := s.loader(ctx)
	if err != nil {
		return 0, err
	}
	s.SetCourses(courses, "")
	appLog.Info("courses refreshed", "courses", len(courses))
	return len(courses), nil
}

// SetCourses replaces the current course list.
func (s *Server) SetCourses(courses []model.CourseSession, scheduleName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = s.state.WithCourses(courses).WithScheduleName(scheduleName)
	s.refreshedAt = s.now()
}

func (s *Server) current() schedule.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handlePreview serves the last captured PNG preview from disk.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, s.cfg.Capture.Output)
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
