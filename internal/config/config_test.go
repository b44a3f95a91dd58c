package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wstcal/internal/model"
	"wstcal/internal/schedule"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "America/Vancouver", cfg.Timezone)
	assert.Equal(t, GridConfig{StartHour: 8, EndHour: 21, SlotMinutes: 30}, cfg.Grid)
	assert.Equal(t, []string{"08", "09"}, cfg.Semesters.First)
	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.Equal(t, 10, cfg.Storage.MaxSchedules)
	assert.Nil(t, cfg.BasicAuth)
	require.NoError(t, cfg.Validate())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadPartialNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
listen: ":9090"
days: [Mon, Wed, Sat]
grid:
  start_hour: 7
  end_hour: 22
source:
  url: https://example.com/rows.json
storage:
  backend: redis
  redis_addr: localhost:6379
log_level: DEBUG
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, 30, cfg.Grid.SlotMinutes)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "https://example.com/rows.json", cfg.Source.Location())
	assert.Equal(t, []model.Day{model.Monday, model.Wednesday, model.Saturday}, cfg.DayList())
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }},
		{"bad day", func(c *Config) { c.Days = []string{"Mon", "Funday"} }},
		{"inverted grid", func(c *Config) { c.Grid.StartHour, c.Grid.EndHour = 18, 9 }},
		{"uneven slot", func(c *Config) { c.Grid.SlotMinutes = 25 }},
		{"bad month", func(c *Config) { c.Semesters.Second = []string{"13"} }},
		{"bad cron", func(c *Config) { c.RefreshCron = "every tuesday" }},
		{"redis without addr", func(c *Config) { c.Storage.Backend = "redis" }},
		{"unknown storage", func(c *Config) { c.Storage.Backend = "sqlite" }},
		{"s3 without bucket", func(c *Config) { c.Export.Backend = "s3"; c.Export.Endpoint = "s3.local:9000" }},
		{"half basic auth", func(c *Config) { c.BasicAuth = &BasicAuthConfig{Username: "me"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	ok := DefaultConfig()
	ok.RefreshCron = "*/30 * * * *"
	ok.BasicAuth = &BasicAuthConfig{Username: "me", Password: "pw"}
	assert.NoError(t, ok.Validate())
}

func TestSemesterMonths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Semesters.First = []string{"09"}
	months := cfg.Semesters.Months()
	assert.Equal(t, []string{"09"}, months[schedule.First])
	assert.Equal(t, []string{"12", "01"}, months[schedule.Second])
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvRedisAddr, "redis:6379")
	t.Setenv(EnvS3AccessKey, "AK")
	t.Setenv(EnvS3SecretKey, "")

	cfg := DefaultConfig()
	cfg.Export.SecretKey = "from-yaml"
	cfg.ApplyEnv()
	assert.Equal(t, "redis:6379", cfg.Storage.RedisAddr)
	assert.Equal(t, "AK", cfg.Export.AccessKey)
	assert.Equal(t, "from-yaml", cfg.Export.SecretKey)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Listen = "0.0.0.0:8181"
	cfg.BasicAuth = &BasicAuthConfig{Username: "u", Password: "p"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
