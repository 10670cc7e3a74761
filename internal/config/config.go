// Package config loads settings for the attendance service and CLI.
//
// Values are resolved in order: built-in defaults, an optional YAML file, a
// .env file in the working directory, then ATTENDANCE_* environment variables.
// The result is validated before it is returned.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"attendance-reconciler/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full configuration.
type Config struct {
	AppName   string `yaml:"app_name" validate:"required"`
	LogLevel  string `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `yaml:"log_format" validate:"oneof=text json"`

	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`

	// Run settings, used by `attendance run`.
	Local  LocalConfig  `yaml:"local"`
	Window WindowConfig `yaml:"window"`
	Output OutputConfig `yaml:"output"`
	Join   string       `yaml:"join" validate:"oneof=auto id email none"`
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Addr           string   `yaml:"addr" validate:"required"`
	APIPrefix      string   `yaml:"api_prefix" validate:"required,startswith=/"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	// RequestTimeout bounds one processing request, e.g. "2m".
	RequestTimeout string `yaml:"request_timeout" validate:"required"`
}

// StorageConfig configures where artifacts and run history live.
type StorageConfig struct {
	OutputDir    string `yaml:"output_dir" validate:"required"`
	DatabasePath string `yaml:"database_path" validate:"required"`
}

// LocalConfig points at input files on disk.
type LocalConfig struct {
	AttendanceCSV string `yaml:"attendance_csv"`
	GradebookCSV  string `yaml:"gradebook_csv"`
}

// WindowConfig is the inclusive date window, YYYY-MM-DD.
type WindowConfig struct {
	Start string `yaml:"start" validate:"omitempty,datetime=2006-01-02"`
	End   string `yaml:"end" validate:"omitempty,datetime=2006-01-02"`
}

// OutputConfig controls artifact naming and the optional matrix.
type OutputConfig struct {
	Prefix string `yaml:"prefix"`
	Matrix bool   `yaml:"matrix"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		AppName:   "Attendance Automator API",
		LogLevel:  "info",
		LogFormat: "text",
		Server: ServerConfig{
			Addr:           ":8080",
			APIPrefix:      "/api/v1",
			AllowedOrigins: []string{"http://localhost:5173", "http://127.0.0.1:5173"},
			RequestTimeout: "2m",
		},
		Storage: StorageConfig{
			OutputDir:    "storage/outputs",
			DatabasePath: "storage/attendance.db",
		},
		Output: OutputConfig{Prefix: "attendance", Matrix: true},
		Join:   "auto",
	}
}

// Load builds the configuration. An empty path skips the YAML file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	setString("ATTENDANCE_ADDR", &c.Server.Addr)
	setString("ATTENDANCE_API_PREFIX", &c.Server.APIPrefix)
	setString("ATTENDANCE_OUTPUT_DIR", &c.Storage.OutputDir)
	setString("ATTENDANCE_DB_PATH", &c.Storage.DatabasePath)
	setString("ATTENDANCE_REQUEST_TIMEOUT", &c.Server.RequestTimeout)
	setString("ATTENDANCE_LOG_LEVEL", &c.LogLevel)
	setString("ATTENDANCE_LOG_FORMAT", &c.LogFormat)

	if v, ok := os.LookupEnv("ATTENDANCE_ALLOWED_ORIGINS"); ok {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.Server.AllowedOrigins = origins
	}
}

// Validate checks field constraints and that the request timeout parses.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := time.ParseDuration(c.Server.RequestTimeout); err != nil {
		return fmt.Errorf("invalid config: request_timeout %q: %w", c.Server.RequestTimeout, err)
	}
	return nil
}

// RequestTimeout returns the parsed server request timeout.
func (c *Config) RequestTimeout() time.Duration {
	return utils.ParseDuration(c.Server.RequestTimeout, 2*time.Minute)
}

// Logger builds the slog logger described by log_level and log_format.
func (c *Config) Logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
