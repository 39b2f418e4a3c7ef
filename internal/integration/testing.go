// Package integration exercises the orchestrator client and the session
// controller together over real HTTP.
package integration

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"grantmatch/internal/adapter/orchestrator"
	"grantmatch/internal/infra/config"
	"grantmatch/internal/infra/logger"
	"grantmatch/internal/usecase/stream"
)

// Config holds live-test settings read from the environment.
type Config struct {
	BaseURL      string
	FacultyEmail string
	TestTimeout  time.Duration
}

// LoadConfig reads GRANTMATCH_IT_* variables.
func LoadConfig() *Config {
	return &Config{
		BaseURL:      os.Getenv("GRANTMATCH_IT_BASE_URL"),
		FacultyEmail: os.Getenv("GRANTMATCH_IT_FACULTY_EMAIL"),
		TestTimeout:  2 * time.Minute,
	}
}

// SkipIfNoOrchestrator skips live tests when no service is configured.
func SkipIfNoOrchestrator(t *testing.T, cfg *Config) {
	t.Helper()
	if cfg.BaseURL == "" || cfg.FacultyEmail == "" {
		t.Skip("Skipping live test: GRANTMATCH_IT_BASE_URL and GRANTMATCH_IT_FACULTY_EMAIL not set")
	}
}

// SkipIfShort skips integration tests in short mode.
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// NewTestContext creates a context with timeout for integration tests.
func NewTestContext(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// NewController wires a real client and controller against baseURL.
func NewController(t *testing.T, baseURL string) (*orchestrator.Client, *stream.Controller) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Orchestrator.BaseURL = baseURL
	client := orchestrator.NewClient(cfg.Orchestrator, cfg.Email, logger.Discard())
	ctrl := stream.NewController(client, logger.Discard())
	t.Cleanup(ctrl.CancelAll)
	return client, ctrl
}

// SSEServer replies to every request with the given raw chunks, flushing
// after each so chunk boundaries reach the client.
func SSEServer(t *testing.T, chunks ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		f, _ := w.(http.Flusher)
		for _, c := range chunks {
			fmt.Fprint(w, c)
			if f != nil {
				f.Flush()
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}
