// Package orchestrator is the HTTP client for the grant-matching
// orchestration service: multipart request building, SSE decoding, payload
// classification, and the email and faculty side channels.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"grantmatch/internal/domain"
	"grantmatch/internal/infra/config"
	"grantmatch/internal/infra/logger"
	"grantmatch/internal/infra/tracer"
)

// Client talks to one orchestrator deployment.
type Client struct {
	cfg       config.OrchestratorConfig
	http      *http.Client
	breaker   *streamBreaker
	emailRate *rate.Limiter
	audit     domain.AuditLogger
	logger    *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the pooled HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithAuditLogger records emails and faculty edits to al.
func WithAuditLogger(al domain.AuditLogger) Option {
	return func(c *Client) { c.audit = al }
}

// NewClient builds a Client from cfg. A nil logger discards logs.
func NewClient(cfg config.OrchestratorConfig, email config.EmailConfig, log *slog.Logger, opts ...Option) *Client {
	log = logger.OrDiscard(log)

	perMinute := email.MaxSendsPerMinute
	if perMinute <= 0 {
		perMinute = 1
	}
	burst := email.Burst
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		cfg: cfg,
		http: &http.Client{
			// No Timeout: streams stay open until the server finishes.
			Transport: newPooledTransport(cfg.ConnTimeout, cfg.Pool),
		},
		breaker:   newStreamBreaker("orchestrator:"+cfg.BaseURL, cfg.Breaker, log),
		emailRate: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst),
		logger:    log,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Open starts a streaming search. The returned stream reads until the server
// closes the body, a read fails, or ctx is cancelled.
func (c *Client) Open(ctx context.Context, req domain.SearchRequest) (_ domain.EventStream, err error) {
	ctx, span := tracer.StartSpan(ctx, "orchestrator.open")
	defer func() { tracer.Finish(span, err) }()

	p, err := BuildRequest(req)
	if err != nil {
		return nil, err
	}
	url := c.url(c.streamPath(p.Endpoint))
	span.SetAttributes(
		tracer.StringAttr("search.mode", string(req.Mode)),
		tracer.StringAttr("search.endpoint", string(p.Endpoint)),
		tracer.StringAttr("search.thread_id", p.ThreadID),
		tracer.IntAttr("search.faculty", len(req.Faculty)),
		tracer.BoolAttr("search.has_cv", hasCV(req)),
	)

	resp, err := c.breaker.execute(func() (*http.Response, error) {
		return doStreamRequest(ctx, c.http, url, p)
	})
	if err != nil {
		return nil, domain.WrapOp("orchestrator.Open", err)
	}

	c.logger.Debug("stream opened",
		"endpoint", p.Endpoint,
		"thread_id", p.ThreadID,
		"status", resp.StatusCode,
	)
	return NewEventReader(resp.Body), nil
}

func hasCV(req domain.SearchRequest) bool {
	if req.CV != nil {
		return true
	}
	for _, f := range req.Faculty {
		if f.CV != nil {
			return true
		}
	}
	return false
}

func (c *Client) streamPath(e Endpoint) string {
	switch e {
	case EndpointCollaborators:
		return c.cfg.CollaboratorsPath
	case EndpointFormTeam:
		return c.cfg.FormTeamPath
	default:
		return c.cfg.ChatPath
	}
}

// record writes an audit event. Audit failures are logged, never returned.
func (c *Client) record(ctx context.Context, ev domain.AuditEvent) {
	if c.audit == nil {
		return
	}
	if err := c.audit.Log(ctx, ev); err != nil {
		c.logger.Warn("audit write failed", "type", ev.Type, "error", err)
	}
}

func (c *Client) url(path string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + path
}

// jsonCall runs a non-streaming request bounded by RequestTimeout.
func (c *Client) jsonCall(ctx context.Context, op, method, path string, body, out any) error {
	if c.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}
	ctx, span := tracer.StartSpan(ctx, op)
	err := doJSONRequest(ctx, c.http, method, c.url(path), body, out)
	tracer.Finish(span, err)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

var _ domain.EventStreamer = (*Client)(nil)
