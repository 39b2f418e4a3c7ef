package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level client configuration.
type Config struct {
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Email        EmailConfig        `yaml:"email"`
	Logger       LoggerConfig       `yaml:"logger"`
	Tracer       TracerConfig       `yaml:"tracer"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Audit        AuditConfig        `yaml:"audit"`
}

// OrchestratorConfig locates the orchestration service and tunes transport.
type OrchestratorConfig struct {
	BaseURL           string `yaml:"base_url"`
	ChatPath          string `yaml:"chat_path"`
	CollaboratorsPath string `yaml:"collaborators_path"`
	FormTeamPath      string `yaml:"form_team_path"`
	EmailPath         string `yaml:"email_path"`
	FacultyLookupPath string `yaml:"faculty_lookup_path"`
	FacultyPatchPath  string `yaml:"faculty_patch_path"`

	// ConnTimeout bounds dialing only. Streams have no overall timeout.
	ConnTimeout time.Duration `yaml:"conn_timeout"`
	// RequestTimeout bounds the non-streaming JSON endpoints.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	Breaker BreakerConfig `yaml:"breaker"`
	Pool    PoolConfig    `yaml:"pool"`
}

// BreakerConfig configures the circuit breaker guarding stream initiation.
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// PoolConfig configures HTTP connection pooling.
type PoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
}

// EmailConfig throttles the justification email side channel.
type EmailConfig struct {
	MaxSendsPerMinute int `yaml:"max_sends_per_minute"`
	Burst             int `yaml:"burst"`
}

// AuditConfig enables the JSONL trail of emails sent and profiles edited.
type AuditConfig struct {
	Path   string        `yaml:"path"`    // empty = disabled
	MaxAge time.Duration `yaml:"max_age"` // 0 = keep forever
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// MetricsConfig holds Prometheus metric settings.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
	Addr      string `yaml:"addr"` // empty = do not serve /metrics

	// ScrapesPerMinute throttles /metrics per client IP. Zero disables it.
	ScrapesPerMinute int `yaml:"scrapes_per_minute"`
	ScrapeBurst      int `yaml:"scrape_burst"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Orchestrator: OrchestratorConfig{
			BaseURL:           "http://localhost:8000",
			ChatPath:          "/api/chat",
			CollaboratorsPath: "/api/find-collaborators",
			FormTeamPath:      "/api/form-team",
			EmailPath:         "/api/send-justification-email",
			FacultyLookupPath: "/api/faculty/lookup",
			FacultyPatchPath:  "/api/faculty",
			ConnTimeout:       30 * time.Second,
			RequestTimeout:    60 * time.Second,
			Breaker: BreakerConfig{
				MaxFailures: 5,
				Timeout:     30 * time.Second,
				Interval:    60 * time.Second,
			},
		},
		Email: EmailConfig{
			MaxSendsPerMinute: 6,
			Burst:             2,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
		Metrics: MetricsConfig{
			Enabled:          false,
			Namespace:        "grantmatch",
			ScrapesPerMinute: 120,
			ScrapeBurst:      10,
		},
	}
}

// Load reads a YAML config file and applies env var overrides. A missing
// file is not an error; defaults are used.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps GRANTMATCH_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GRANTMATCH_ORCHESTRATOR_BASE_URL"); v != "" {
		cfg.Orchestrator.BaseURL = v
	}
	if v := os.Getenv("GRANTMATCH_ORCHESTRATOR_CONN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Orchestrator.ConnTimeout = d
		}
	}
	if v := os.Getenv("GRANTMATCH_ORCHESTRATOR_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Orchestrator.RequestTimeout = d
		}
	}
	if v := os.Getenv("GRANTMATCH_EMAIL_MAX_SENDS_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Email.MaxSendsPerMinute = n
		}
	}
	if v := os.Getenv("GRANTMATCH_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("GRANTMATCH_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("GRANTMATCH_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("GRANTMATCH_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
	if v := os.Getenv("GRANTMATCH_METRICS_ENABLED"); v == "true" {
		cfg.Metrics.Enabled = true
	}
	if v := os.Getenv("GRANTMATCH_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("GRANTMATCH_AUDIT_PATH"); v != "" {
		cfg.Audit.Path = v
	}
}
