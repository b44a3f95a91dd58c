package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"wstcal/internal/model"
	"wstcal/internal/schedule"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the web UI and API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username" validate:"required"`
	Password string `yaml:"password" json:"password" validate:"required"`
}

// GridConfig is the displayed time window of the week view.
type GridConfig struct {
	StartHour   int `yaml:"start_hour" json:"start_hour" validate:"min=0,max=23"`
	EndHour     int `yaml:"end_hour" json:"end_hour" validate:"gtfield=StartHour,max=24"`
	SlotMinutes int `yaml:"slot_minutes" json:"slot_minutes" validate:"min=5,max=60"`
}

// SemesterConfig lists the two-digit start months of each term.
type SemesterConfig struct {
	First  []string `yaml:"first" json:"first" validate:"min=1,dive,month"`
	Second []string `yaml:"second" json:"second" validate:"min=1,dive,month"`
}

// Months converts to the classifier's input.
func (s SemesterConfig) Months() map[schedule.Semester][]string {
	return map[schedule.Semester][]string{
		schedule.First:  append([]string(nil), s.First...),
		schedule.Second: append([]string(nil), s.Second...),
	}
}

// SourceConfig says where the course row table comes from. URL wins over
// Path when both are set.
type SourceConfig struct {
	Path     string `yaml:"path" json:"path"`
	URL      string `yaml:"url,omitempty" json:"url,omitempty" validate:"omitempty,url"`
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
}

// Location is the URL if set, otherwise the path.
func (s SourceConfig) Location() string {
	if s.URL != "" {
		return s.URL
	}
	return s.Path
}

// StorageConfig selects the saved-schedule backend.
type StorageConfig struct {
	Backend       string `yaml:"backend" json:"backend" validate:"oneof=file redis"`
	Path          string `yaml:"path" json:"path" validate:"required_if=Backend file"`
	RedisAddr     string `yaml:"redis_addr,omitempty" json:"redis_addr,omitempty" validate:"required_if=Backend redis"`
	RedisPassword string `yaml:"redis_password,omitempty" json:"-"`
	RedisDB       int    `yaml:"redis_db,omitempty" json:"redis_db,omitempty" validate:"min=0"`
	RedisKey      string `yaml:"redis_key" json:"redis_key"`
	MaxSchedules  int    `yaml:"max_schedules" json:"max_schedules" validate:"min=1,max=100"`
}

// ExportConfig selects where exported calendars and previews are written.
type ExportConfig struct {
	Backend   string `yaml:"backend" json:"backend" validate:"oneof=file s3"`
	Dir       string `yaml:"dir" json:"dir" validate:"required_if=Backend file"`
	Endpoint  string `yaml:"endpoint,omitempty" json:"endpoint,omitempty" validate:"required_if=Backend s3"`
	Bucket    string `yaml:"bucket,omitempty" json:"bucket,omitempty" validate:"required_if=Backend s3"`
	Prefix    string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	AccessKey string `yaml:"access_key,omitempty" json:"-"`
	SecretKey string `yaml:"secret_key,omitempty" json:"-"`
	UseSSL    bool   `yaml:"use_ssl,omitempty" json:"use_ssl,omitempty"`
}

// CaptureConfig controls the headless PNG preview of the schedule page.
type CaptureConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Output  string `yaml:"output" json:"output"`
	Width   int    `yaml:"width" json:"width" validate:"min=200,max=4000"`
	Height  int    `yaml:"height" json:"height" validate:"min=200,max=4000"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the web UI and API.
	Listen string `yaml:"listen" json:"listen" validate:"required"`

	// Timezone is the IANA zone exported calendars are anchored to.
	Timezone string `yaml:"timezone" json:"timezone" validate:"timezone"`

	// Days are the weekday columns, as three-letter abbreviations.
	Days []string `yaml:"days" json:"days" validate:"min=1,dive,weekday"`

	Grid      GridConfig     `yaml:"grid" json:"grid"`
	Semesters SemesterConfig `yaml:"semesters" json:"semesters"`
	Source    SourceConfig   `yaml:"source" json:"source"`

	// RefreshCron re-extracts rows in server mode. Empty disables it.
	RefreshCron string `yaml:"refresh" json:"refresh" validate:"omitempty,cronspec"`

	Storage StorageConfig `yaml:"storage" json:"storage"`
	Export  ExportConfig  `yaml:"export" json:"export"`
	Capture CaptureConfig `yaml:"capture" json:"capture"`

	LogLevel string `yaml:"log_level" json:"log_level" validate:"oneof=debug info error"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

var defaultDays = []string{"Mon", "Tue", "Wed", "Thu", "Fri"}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values so partially-filled configs still
// behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "America/Vancouver"
	}
	if len(c.Days) == 0 {
		c.Days = append([]string(nil), defaultDays...)
	}

	if c.Grid.StartHour == 0 && c.Grid.EndHour == 0 {
		c.Grid.StartHour, c.Grid.EndHour = 8, 21
	}
	if c.Grid.SlotMinutes == 0 {
		c.Grid.SlotMinutes = 30
	}

	if len(c.Semesters.First) == 0 {
		c.Semesters.First = append([]string(nil), schedule.DefaultSemesterMonths[schedule.First]...)
	}
	if len(c.Semesters.Second) == 0 {
		c.Semesters.Second = append([]string(nil), schedule.DefaultSemesterMonths[schedule.Second]...)
	}

	if c.Source.Path == "" && c.Source.URL == "" {
		c.Source.Path = "./var/rows.yaml"
	}
	if c.Source.CacheDir == "" {
		c.Source.CacheDir = "./var/rows-cache"
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = "file"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "./var/schedules.json"
	}
	if c.Storage.RedisKey == "" {
		c.Storage.RedisKey = "wdSavedSchedules"
	}
	if c.Storage.MaxSchedules <= 0 {
		c.Storage.MaxSchedules = 10
	}

	if c.Export.Backend == "" {
		c.Export.Backend = "file"
	}
	if c.Export.Dir == "" {
		c.Export.Dir = "./var/exports"
	}

	if c.Capture.Output == "" {
		c.Capture.Output = "./var/preview.png"
	}
	if c.Capture.Width <= 0 {
		c.Capture.Width = 1280
	}
	if c.Capture.Height <= 0 {
		c.Capture.Height = 900
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		c.LogLevel = "info"
	}
}

// DayList parses Days. Unknown entries are dropped; call Validate first to
// reject them instead.
func (c *Config) DayList() []model.Day {
	days := make([]model.Day, 0, len(c.Days))
	for _, s := range c.Days {
		if d, ok := model.DayFromAbbrev(strings.TrimSpace(s)); ok {
			days = append(days, d)
		}
	}
	return days
}

// Location loads Timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("weekday", validateWeekday)
	_ = v.RegisterValidation("month", validateMonth)
	_ = v.RegisterValidation("cronspec", validateCronSpec)
	return v
}

func validateWeekday(fl validator.FieldLevel) bool {
	_, ok := model.DayFromAbbrev(strings.TrimSpace(fl.Field().String()))
	return ok
}

func validateMonth(fl validator.FieldLevel) bool {
	m := fl.Field().String()
	if len(m) != 2 {
		return false
	}
	return m >= "01" && m <= "12"
}

func validateCronSpec(fl validator.FieldLevel) bool {
	_, err := cron.ParseStandard(fl.Field().String())
	return err == nil
}

// Validate checks struct constraints and that the grid slot width divides
// the window evenly.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	window := (c.Grid.EndHour - c.Grid.StartHour) * 60
	if window%c.Grid.SlotMinutes != 0 {
		return fmt.Errorf("config: slot_minutes %d does not divide %d-%d", c.Grid.SlotMinutes, c.Grid.StartHour, c.Grid.EndHour)
	}
	return nil
}

// Environment variables that override secrets kept out of YAML.
const (
	EnvRedisAddr   = "WSTCAL_REDIS_ADDR"
	EnvS3AccessKey = "WSTCAL_S3_ACCESS_KEY"
	EnvS3SecretKey = "WSTCAL_S3_SECRET_KEY"
)

// ApplyEnv copies non-empty overrides from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvRedisAddr); v != "" {
		c.Storage.RedisAddr = v
	}
	if v := os.Getenv(EnvS3AccessKey); v != "" {
		c.Export.AccessKey = v
	}
	if v := os.Getenv(EnvS3SecretKey); v != "" {
		c.Export.SecretKey = v
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is unmarshalled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically via a temp file + rename, with 0600
// permissions on the result.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".wstcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
