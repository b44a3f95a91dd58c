package main

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocalAddr(t *testing.T) {
	assert.Equal(t, "127.0.0.1:8080", localAddr("0.0.0.0:8080"))
	assert.Equal(t, "127.0.0.1:9000", localAddr(":9000"))
	assert.Equal(t, "10.0.0.2:80", localAddr("10.0.0.2:80"))
	assert.Equal(t, "garbage", localAddr("garbage"))
}

func TestRefresherRunOnce(t *testing.T) {
	var runs int32
	r := newRefresher("*/5 * * * *", func(context.Context) { atomic.AddInt32(&runs, 1) })

	r.runOnce(context.Background())
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))

	r.mu.Lock()
	r.runOnce(context.Background())
	r.mu.Unlock()
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.runOnce(ctx)
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
}

func TestRefresherStartStop(t *testing.T) {
	r := newRefresher("", func(context.Context) {})
	r.Start(context.Background())
	assert.Nil(t, r.cron)
	r.Stop()

	r = newRefresher("@every 1h", func(context.Context) {})
	r.Start(context.Background())
	assert.NotNil(t, r.cron)
	r.Stop()
}
