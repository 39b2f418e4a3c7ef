// Package metrics exposes Prometheus counters for stream sessions.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"grantmatch/internal/infra/config"
	"grantmatch/internal/infra/middleware"
)

// Stream records session lifecycle and event counts. A nil *Stream is valid
// and records nothing.
type Stream struct {
	registry        *prometheus.Registry
	sessionsStarted *prometheus.CounterVec
	sessionsEnded   *prometheus.CounterVec
	events          *prometheus.CounterVec
	framesSkipped   prometheus.Counter

	scrapesPerMinute int
	scrapeBurst      int
}

// New registers the stream collectors on a fresh registry. It returns nil
// when metrics are disabled.
func New(cfg config.MetricsConfig) *Stream {
	if !cfg.Enabled {
		return nil
	}
	ns := cfg.Namespace
	reg := prometheus.NewRegistry()

	s := &Stream{
		registry:         reg,
		scrapesPerMinute: cfg.ScrapesPerMinute,
		scrapeBurst:      cfg.ScrapeBurst,
		sessionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "sessions_started_total",
			Help:      "Stream sessions started, by slot.",
		}, []string{"slot"}),
		sessionsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "sessions_finished_total",
			Help:      "Stream sessions that reached a terminal state, by slot and state.",
		}, []string{"slot", "state"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "events_total",
			Help:      "Events delivered to session callbacks, by event type.",
		}, []string{"type"}),
		framesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "frames_skipped_total",
			Help:      "SSE data lines dropped as malformed or outside an event block.",
		}),
	}
	reg.MustRegister(s.sessionsStarted, s.sessionsEnded, s.events, s.framesSkipped)
	return s
}

func (s *Stream) SessionStarted(slot string) {
	if s == nil {
		return
	}
	s.sessionsStarted.WithLabelValues(slot).Inc()
}

func (s *Stream) SessionFinished(slot, state string) {
	if s == nil {
		return
	}
	s.sessionsEnded.WithLabelValues(slot, state).Inc()
}

func (s *Stream) EventDelivered(eventType string) {
	if s == nil {
		return
	}
	s.events.WithLabelValues(eventType).Inc()
}

func (s *Stream) FramesSkipped(n int) {
	if s == nil || n <= 0 {
		return
	}
	s.framesSkipped.Add(float64(n))
}

// Gatherer exposes the underlying registry, mainly for tests.
func (s *Stream) Gatherer() prometheus.Gatherer {
	if s == nil {
		return prometheus.NewRegistry()
	}
	return s.registry
}

// Handler serves /metrics behind the scrape throttle and security headers.
func (s *Stream) Handler(ctx context.Context) http.Handler {
	var perMinute, burst int
	if s != nil {
		perMinute, burst = s.scrapesPerMinute, s.scrapeBurst
	}
	scrape := promhttp.HandlerFor(s.Gatherer(), promhttp.HandlerOpts{})
	mux := http.NewServeMux()
	mux.Handle("/metrics", middleware.SecurityHeaders(middleware.RateLimit(ctx, perMinute, burst)(scrape)))
	return mux
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (s *Stream) Serve(ctx context.Context, addr string, logger *slog.Logger) {
	if s == nil || addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "addr", addr, "error", err)
		}
	}()
}
