package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"wstcal/internal/capture"
	"wstcal/internal/config"
	appLog "wstcal/internal/log"
	"wstcal/internal/schedule"
	"wstcal/internal/sink"
	"wstcal/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	input      string
	semester   string
	name       string
	once       bool
	export     bool
	capture    bool
}

func main() {
	// A missing .env is normal; only the variables it sets matter.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		appLog.Error("failed to read .env", err)
	}

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	conf.ApplyEnv()
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.input != "" {
		conf.Source.URL, conf.Source.Path = "", flags.input
	}
	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	defer appLog.Sync()

	semester := schedule.First
	if flags.semester != "" {
		s, ok := schedule.ParseSemester(flags.semester)
		if !ok {
			appLog.Error("invalid -semester", fmt.Errorf("want first or second, got %q", flags.semester))
			os.Exit(2)
		}
		semester = s
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"days", conf.Days,
		"source", conf.Source.Location() != "",
		"storage", conf.Storage.Backend,
		"export", conf.Export.Backend,
		"refresh", conf.RefreshCron,
		"once", flags.once,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, conf)
	if err != nil {
		appLog.Error("failed to initialize", err)
		os.Exit(1)
	}
	defer a.Close()

	if flags.once {
		err = runOnce(ctx, a, flags, semester)
	} else {
		err = runServer(ctx, a, flags)
	}
	if err != nil {
		appLog.Error("wstcal failed", err)
		os.Exit(1)
	}
	appLog.Info("wstcal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.input, "input", "", "Row table path or URL (overrides config source)")
	flag.StringVar(&cfg.semester, "semester", "", "Semester to render: first or second (default first)")
	flag.StringVar(&cfg.name, "name", "", "Schedule name used for the export filename")
	flag.BoolVar(&cfg.once, "once", false, "Load rows, print the week table and exit")
	flag.BoolVar(&cfg.export, "export", false, "With -once, write the calendar to the export sink")
	flag.BoolVar(&cfg.capture, "capture", false, "Capture the schedule page to PNG (with -once, then exit)")

	flag.Parse()

	return cfg
}

// runOnce prints the week table and conflict warning, optionally exporting
// and capturing, then returns.
func runOnce(ctx context.Context, a *app, flags flagConfig, semester schedule.Semester) error {
	courses, err := a.loadCourses(ctx)
	if err != nil {
		return err
	}

	st := schedule.NewState(courses).WithSemester(semester).WithScheduleName(flags.name)
	m := st.Render(a.engine)
	schedule.WriteTable(os.Stdout, m, a.engine.Grid())
	if w := m.Warning(); w != "" {
		fmt.Fprintln(os.Stdout, w)
	}

	if flags.export {
		loc, err := a.exportCalendar(ctx, courses, semester, flags.name)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		fmt.Fprintln(os.Stdout, "exported:", loc)
	}

	if flags.capture {
		srv, err := newServer(a)
		if err != nil {
			return err
		}
		srv.SetCourses(courses, flags.name)

		// Serve on an ephemeral port just long enough to take the screenshot.
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return err
		}
		serveCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := srv.Serve(serveCtx, ln); err != nil {
				appLog.Error("capture server failed", err)
			}
		}()

		url := fmt.Sprintf("http://%s/schedule?semester=%s", ln.Addr(), semester)
		if err := capturePreview(ctx, a, url); err != nil {
			return err
		}
	}
	return nil
}

func newServer(a *app) (*web.Server, error) {
	return web.NewServer(web.Deps{
		Config:   a.cfg,
		Engine:   a.engine,
		Exporter: a.exporter,
		Library:  a.library,
		Sink:     a.sink,
		Metrics:  a.metrics,
		Loader:   a.loadCourses,
	})
}

// capturePreview screenshots url into the configured preview path and
// publishes a copy to the export sink.
func capturePreview(ctx context.Context, a *app, url string) error {
	png, err := capture.SchedulePNG(ctx, capture.Options{
		URL:        url,
		OutputPath: a.cfg.Capture.Output,
		Width:      a.cfg.Capture.Width,
		Height:     a.cfg.Capture.Height,
	})
	if err != nil {
		return err
	}
	if _, err := a.sink.Put(ctx, "preview.png", png, sink.ContentTypePNG); err != nil {
		appLog.Error("preview publish failed", err)
	}
	return nil
}

// runServer serves the API and schedule page until ctx is cancelled, with a
// cron job re-extracting rows.
func runServer(ctx context.Context, a *app, flags flagConfig) error {
	srv, err := newServer(a)
	if err != nil {
		return err
	}
	if _, err := srv.Refresh(ctx); err != nil {
		// Keep serving; /api/refresh or the next cron run can recover.
		appLog.Error("initial row load failed", err)
	}

	captureURL := "http://" + localAddr(a.cfg.Listen) + "/schedule"
	doCapture := flags.capture || a.cfg.Capture.Enabled

	r := newRefresher(a.cfg.RefreshCron, func(ctx context.Context) {
		if _, err := srv.Refresh(ctx); err != nil {
			appLog.Error("scheduled refresh failed", err)
			return
		}
		if doCapture {
			if err := capturePreview(ctx, a, captureURL); err != nil {
				appLog.Error("scheduled capture failed", err)
			}
		}
	})
	r.Start(ctx)
	defer r.Stop()

	if doCapture {
		go func() {
			// Give the listener a moment before the first capture.
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
			if err := capturePreview(ctx, a, captureURL); err != nil {
				appLog.Error("initial capture failed", err)
			}
		}()
	}

	return srv.StartServer(ctx)
}

// localAddr turns a wildcard listen address into one a local browser can
// reach.
func localAddr(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
