package main

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"

	appLog "wstcal/internal/log"
)

// refresher runs job on a cron schedule. Runs never overlap.
type refresher struct {
	spec string
	job  func(ctx context.Context)
	cron *cron.Cron
	mu   sync.Mutex
}

func newRefresher(spec string, job func(ctx context.Context)) *refresher {
	return &refresher{spec: spec, job: job}
}

// Start schedules the job. An empty cron expression disables refreshing.
func (r *refresher) Start(ctx context.Context) {
	if r.spec == "" {
		appLog.Info("scheduled refresh disabled")
		return
	}
	c := cron.New()
	_, err := c.AddFunc(r.spec, func() { r.runOnce(ctx) })
	if err != nil {
		appLog.Error("invalid refresh cron spec; falling back to @hourly", err, "spec", r.spec)
		c = cron.New()
		_, _ = c.AddFunc("@hourly", func() { r.runOnce(ctx) })
	}
	c.Start()
	r.cron = c
	appLog.Info("scheduled refresh started", "spec", r.spec)
}

func (r *refresher) runOnce(ctx context.Context) {
	if !r.mu.TryLock() {
		appLog.Info("previous refresh still running; skipping")
		return
	}
	defer r.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	r.job(ctx)
}

// Stop waits for a running job to finish.
func (r *refresher) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
}
