package config

import (
	"context"
	"encoding/json"
	"time"
)

// Config represents the complete configuration for watchdeck.
// It provides type-safe access to all configuration values with validation.
type Config struct {
	Server  ServerConfig  `koanf:"server"  validate:"required"`
	Jobs    JobsConfig    `koanf:"jobs"    validate:"required"`
	CLI     CLIConfig     `koanf:"cli"`
	Setup   SetupConfig   `koanf:"setup"`
	Dev     DevConfig     `koanf:"dev"`
	Runtime RuntimeConfig `koanf:"runtime" validate:"required"`
}

// ServerConfig points the client at the remote job service.
type ServerConfig struct {
	URL     string        `koanf:"url"     validate:"required,url" env:"WATCHDECK_SERVER_URL"     flag:"server-url"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"         env:"WATCHDECK_SERVER_TIMEOUT" flag:"timeout"`
}

// JobsConfig contains per-job polling cadence.
type JobsConfig struct {
	ParsePollInterval  time.Duration `koanf:"parse_poll_interval"  validate:"gt=0" env:"WATCHDECK_PARSE_POLL_INTERVAL"  flag:"parse-poll-interval"`
	ExportPollInterval time.Duration `koanf:"export_poll_interval" validate:"gt=0" env:"WATCHDECK_EXPORT_POLL_INTERVAL" flag:"export-poll-interval"`
}

// CLIConfig contains CLI-specific configuration.
type CLIConfig struct {
	UsernameParser   string `koanf:"username_parser"   env:"WATCHDECK_USERNAME_PARSER"   flag:"username-parser"`
	UsernameExporter string `koanf:"username_exporter" env:"WATCHDECK_USERNAME_EXPORTER" flag:"username-exporter"`
	Mode             string `koanf:"mode"              env:"WATCHDECK_MODE"              flag:"mode"     validate:"oneof=auto tui json"`
	Format           string `koanf:"format"            env:"WATCHDECK_FORMAT"            flag:"format"   validate:"oneof=text json"`
	NoColor          bool   `koanf:"no_color"          env:"WATCHDECK_NO_COLOR"          flag:"no-color"`
}

// SetupConfig holds what /settingup needs to authorize a module.
type SetupConfig struct {
	ParserModule   string          `koanf:"parser_module"   env:"WATCHDECK_PARSER_MODULE"   validate:"omitempty,module_name"`
	ExporterModule string          `koanf:"exporter_module" env:"WATCHDECK_EXPORTER_MODULE" validate:"omitempty,module_name"`
	Cookies        SensitiveString `koanf:"cookies"         env:"WATCHDECK_COOKIES"         sensitive:"true"`
}

// DevConfig configures the bundled reference job service.
type DevConfig struct {
	Addr         string        `koanf:"addr"          env:"WATCHDECK_DEV_ADDR"          flag:"addr"       validate:"required"`
	Store        string        `koanf:"store"         env:"WATCHDECK_DEV_STORE"         flag:"store"      validate:"oneof=memory redis"`
	RedisAddr    string        `koanf:"redis_addr"    env:"WATCHDECK_DEV_REDIS_ADDR"    flag:"redis-addr"`
	RedisPrefix  string        `koanf:"redis_prefix"  env:"WATCHDECK_DEV_REDIS_PREFIX"`
	TaskDuration time.Duration `koanf:"task_duration" env:"WATCHDECK_DEV_TASK_DURATION" flag:"task-duration" validate:"gt=0"`
	TaskSteps    int           `koanf:"task_steps"    env:"WATCHDECK_DEV_TASK_STEPS"    flag:"task-steps"    validate:"min=1"`
}

// RuntimeConfig contains runtime behavior configuration.
type RuntimeConfig struct {
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error disabled" env:"WATCHDECK_LOG_LEVEL" flag:"log-level"`
}

// PollInterval returns the configured cadence for the named job, or zero
// when the job is unknown.
func (c *Config) PollInterval(job string) time.Duration {
	switch job {
	case "parse":
		return c.Jobs.ParsePollInterval
	case "export":
		return c.Jobs.ExportPollInterval
	default:
		return 0
	}
}

// Username returns the configured username for a settings module
// ("parser" or "exporter").
func (c *Config) Username(module string) string {
	switch module {
	case "parser":
		return c.CLI.UsernameParser
	case "exporter":
		return c.CLI.UsernameExporter
	default:
		return ""
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL:     "http://localhost:8080",
			Timeout: 30 * time.Second,
		},
		Jobs: JobsConfig{
			ParsePollInterval:  3 * time.Second,
			ExportPollInterval: 3 * time.Second,
		},
		CLI: CLIConfig{
			Mode:   "auto",
			Format: "text",
		},
		Setup: SetupConfig{
			ParserModule:   "animebuff_ru",
			ExporterModule: "animego_org",
		},
		Dev: DevConfig{
			Addr:         "127.0.0.1:8080",
			Store:        "memory",
			RedisAddr:    "localhost:6379",
			RedisPrefix:  "watchdeck:",
			TaskDuration: 30 * time.Second,
			TaskSteps:    10,
		},
		Runtime: RuntimeConfig{
			LogLevel: "info",
		},
	}
}

// SensitiveString is a string whose value is redacted when printed or
// marshaled.
type SensitiveString string

const redacted = "[REDACTED]"

func (s SensitiveString) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

// Value returns the underlying secret.
func (s SensitiveString) Value() string {
	return string(s)
}

func (s SensitiveString) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *SensitiveString) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = SensitiveString(v)
	return nil
}

// Service loads and validates configuration and remembers where each key of
// the last load came from.
type Service interface {
	Load(ctx context.Context, sources ...Source) (*Config, error)
	Validate(config *Config) error
	GetSource(key string) SourceType
}

// Source is a single layer of configuration data.
type Source interface {
	Load() (map[string]any, error)
	Watch(ctx context.Context, callback func()) error
	Type() SourceType
	Close() error
}

// SourceType identifies where a configuration value came from.
type SourceType string

const (
	SourceDefault SourceType = "default"
	SourceYAML    SourceType = "yaml"
	SourceEnv     SourceType = "env"
	SourceCLI     SourceType = "cli"
)

