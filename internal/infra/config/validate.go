package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateOrchestrator(cfg, ve)
	validateEmail(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	if cfg.Audit.MaxAge < 0 {
		ve.Add("audit.max_age must not be negative")
	}
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateOrchestrator(cfg *Config, ve *ValidationError) {
	o := cfg.Orchestrator
	if o.BaseURL == "" {
		ve.Add("orchestrator.base_url must not be empty")
	} else if u, err := url.Parse(o.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		ve.Add("orchestrator.base_url %q is not an absolute URL", o.BaseURL)
	}

	for _, p := range []struct{ name, value string }{
		{"chat_path", o.ChatPath},
		{"collaborators_path", o.CollaboratorsPath},
		{"form_team_path", o.FormTeamPath},
		{"email_path", o.EmailPath},
		{"faculty_lookup_path", o.FacultyLookupPath},
		{"faculty_patch_path", o.FacultyPatchPath},
	} {
		if !strings.HasPrefix(p.value, "/") {
			ve.Add("orchestrator.%s must start with '/', got %q", p.name, p.value)
		}
	}

	if o.ConnTimeout < 0 {
		ve.Add("orchestrator.conn_timeout must be >= 0")
	}
	if o.RequestTimeout < 0 {
		ve.Add("orchestrator.request_timeout must be >= 0")
	}
	if o.Breaker.Timeout < 0 || o.Breaker.Interval < 0 {
		ve.Add("orchestrator.breaker durations must be >= 0")
	}
}

func validateEmail(cfg *Config, ve *ValidationError) {
	if cfg.Email.MaxSendsPerMinute <= 0 {
		ve.Add("email.max_sends_per_minute must be > 0")
	}
	if cfg.Email.Burst < 0 {
		ve.Add("email.burst must be >= 0")
	}
}

var validLogLevels = map[string]bool{
	"": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true,
}

var validLogFormats = map[string]bool{"": true, "text": true, "json": true}

func validateLogger(cfg *Config, ve *ValidationError) {
	if !validLogLevels[strings.ToLower(cfg.Logger.Level)] {
		ve.Add("logger.level %q is not one of debug, info, warn, error", cfg.Logger.Level)
	}
	if !validLogFormats[strings.ToLower(cfg.Logger.Format)] {
		ve.Add("logger.format %q is not one of text, json", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	switch cfg.Tracer.Exporter {
	case "", "noop", "stdout":
	default:
		ve.Add("tracer.exporter %q is not supported (noop, stdout)", cfg.Tracer.Exporter)
	}
}
