package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"grantmatch/internal/infra/config"
)

// CheckStatus is the outcome of a health check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds the outcome of a single health check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // optional
}

// Check is a named health check.
type Check struct {
	Name string
	Fn   func(ctx context.Context, cfg *config.Config) CheckResult
}

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and orchestrator connectivity",
		// Overrides the root bootstrap so a broken config can still be diagnosed.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			return runDoctor(cmd.Context(), cmd.OutOrStdout(), path)
		},
	}
}

func runDoctor(ctx context.Context, w io.Writer, cfgPath string) error {
	cfg, cfgErr := config.Load(cfgPath)

	checks := []Check{
		{Name: "Config file", Fn: checkConfigFile(cfgPath, cfgErr)},
		{Name: "Orchestrator", Fn: checkOrchestrator},
		{Name: "Audit log", Fn: checkAuditPath},
		{Name: "Metrics listener", Fn: checkMetricsAddr},
	}

	fmt.Fprintln(w, "grantmatch doctor")
	fmt.Fprintln(w, strings.Repeat("=", 50))

	var pass, warn, fail int
	for _, c := range checks {
		r := c.Fn(ctx, cfg)
		r.Name = c.Name
		fmt.Fprintf(w, "  %s %s: %s\n", statusIcon(r.Status), r.Name, r.Message)
		if r.Fix != "" {
			fmt.Fprintf(w, "      Fix: %s\n", r.Fix)
		}
		switch r.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}

	fmt.Fprintln(w, strings.Repeat("-", 50))
	fmt.Fprintf(w, "Results: %d passed, %d warnings, %d failed\n", pass, warn, fail)
	if fail > 0 {
		return fmt.Errorf("%d check(s) failed", fail)
	}
	return nil
}

func statusIcon(s CheckStatus) string {
	switch s {
	case StatusPass, StatusWarn, StatusFail:
		return "[" + string(s) + "]"
	default:
		return "[????]"
	}
}

func checkConfigFile(cfgPath string, cfgErr error) func(context.Context, *config.Config) CheckResult {
	return func(context.Context, *config.Config) CheckResult {
		if cfgErr != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("config error: %v", cfgErr),
				Fix:     "Check the YAML syntax and GRANTMATCH_* environment variables",
			}
		}
		if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("%s not found, using defaults", cfgPath),
			}
		}
		return CheckResult{Status: StatusPass, Message: fmt.Sprintf("loaded %s", cfgPath)}
	}
}

// checkOrchestrator accepts any HTTP response: the base URL has no health
// route, but answering at all proves the service is up.
func checkOrchestrator(ctx context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check, config not loaded"}
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.Orchestrator.BaseURL, nil)
	if err != nil {
		return CheckResult{Status: StatusFail, Message: fmt.Sprintf("bad base_url: %v", err)}
	}
	start := time.Now()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot reach %s: %v", cfg.Orchestrator.BaseURL, err),
			Fix:     "Start the orchestrator or set orchestrator.base_url",
		}
	}
	resp.Body.Close()
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s answered %d in %dms", cfg.Orchestrator.BaseURL, resp.StatusCode, time.Since(start).Milliseconds()),
	}
}

func checkAuditPath(_ context.Context, cfg *config.Config) CheckResult {
	if cfg == nil || cfg.Audit.Path == "" {
		return CheckResult{Status: StatusPass, Message: "disabled"}
	}
	dir := filepath.Dir(cfg.Audit.Path)
	f, err := os.CreateTemp(dir, ".grantmatch-doctor-*")
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("%s is not writable: %v", dir, err),
			Fix:     "Create the directory or change audit.path",
		}
	}
	f.Close()
	os.Remove(f.Name())
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("writing to %s", cfg.Audit.Path)}
}

func checkMetricsAddr(_ context.Context, cfg *config.Config) CheckResult {
	if cfg == nil || !cfg.Metrics.Enabled || cfg.Metrics.Addr == "" {
		return CheckResult{Status: StatusPass, Message: "not served"}
	}
	ln, err := net.Listen("tcp", cfg.Metrics.Addr)
	if err != nil {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("cannot bind %s: %v", cfg.Metrics.Addr, err),
			Fix:     "Pick a free metrics.addr",
		}
	}
	ln.Close()
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("%s is free", cfg.Metrics.Addr)}
}
