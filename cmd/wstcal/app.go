package main

import (
	"context"
	"fmt"
	"time"

	"wstcal/internal/config"
	"wstcal/internal/grid"
	"wstcal/internal/ics"
	appLog "wstcal/internal/log"
	"wstcal/internal/metrics"
	"wstcal/internal/model"
	"wstcal/internal/rows"
	"wstcal/internal/schedule"
	"wstcal/internal/sink"
	"wstcal/internal/store"
)

// app wires configuration into the engine, exporter and infrastructure.
type app struct {
	cfg      *config.Config
	engine   *schedule.Engine
	exporter *ics.Exporter
	source   rows.Source
	library  *store.Library
	sink     sink.Sink
	metrics  *metrics.Observer
	closers  []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	g, err := grid.New(cfg.Grid.StartHour, cfg.Grid.EndHour, cfg.Grid.SlotMinutes)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, metrics: metrics.New()}

	a.engine, err = schedule.NewEngine(g,
		schedule.WithDays(cfg.DayList()),
		schedule.WithClassifier(schedule.NewClassifier(cfg.Semesters.Months())),
		schedule.WithObserver(schedule.Observers{schedule.LogObserver{}, a.metrics}),
	)
	if err != nil {
		return nil, err
	}

	a.exporter, err = ics.NewExporter(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	a.source = rows.NewSource(cfg.Source.Location(), cfg.Source.CacheDir)

	var backend store.Store
	switch cfg.Storage.Backend {
	case "redis":
		client, err := store.NewRedisClient(ctx, cfg.Storage.RedisAddr, cfg.Storage.RedisPassword, cfg.Storage.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		backend = store.NewRedisStore(client, cfg.Storage.RedisKey)
	default:
		backend = store.NewFileStore(cfg.Storage.Path)
	}
	a.library = store.NewLibrary(backend, cfg.Storage.MaxSchedules)

	switch cfg.Export.Backend {
	case "s3":
		a.sink, err = sink.NewObjectSink(sink.ObjectConfig{
			Endpoint:  cfg.Export.Endpoint,
			Bucket:    cfg.Export.Bucket,
			Prefix:    cfg.Export.Prefix,
			AccessKey: cfg.Export.AccessKey,
			SecretKey: cfg.Export.SecretKey,
			UseSSL:    cfg.Export.UseSSL,
		})
		if err != nil {
			return nil, err
		}
	default:
		a.sink = sink.NewFileSink(cfg.Export.Dir)
	}

	return a, nil
}

// loadCourses fetches the row table and extracts course sessions.
func (a *app) loadCourses(ctx context.Context) ([]model.CourseSession, error) {
	started := time.Now()
	table, err := rows.Load(ctx, a.source)
	if err != nil {
		return nil, fmt.Errorf("load rows from %s: %w", a.source, err)
	}
	courses, stats := rows.Extract(table)
	appLog.Info("rows extracted",
		"source", a.source.String(),
		"rows", stats.Rows,
		"courses", stats.Extracted,
		"skipped", stats.Skipped,
		"duplicates", stats.Duplicates,
		"elapsed", time.Since(started),
	)
	return courses, nil
}

// exportCalendar writes the calendar for courses (limited to semester when
// set) to the sink.
func (a *app) exportCalendar(ctx context.Context, courses []model.CourseSession, semester schedule.Semester, name string) (string, error) {
	courses = a.engine.Classifier().FilterSemester(courses, semester)
	body, n := a.exporter.Export(courses)
	if n == 0 {
		return "", fmt.Errorf("no events to export")
	}
	return a.sink.Put(ctx, ics.ExportFilename(name), body, sink.ContentTypeICS)
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			appLog.Error("close failed", err)
		}
	}
}
