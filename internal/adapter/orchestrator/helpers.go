package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"grantmatch/internal/domain"
	"grantmatch/internal/infra/config"
)

// maxResponseBody caps how much of a JSON response we read.
const maxResponseBody = 10 * 1024 * 1024 // 10 MB

// maxErrorBody caps how much of an error response we keep.
const maxErrorBody = 4096

// Default connection pool settings. The orchestrator is one host serving a
// handful of long-lived streams.
const (
	defaultConnTimeout         = 30 * time.Second
	defaultMaxIdleConns        = 20
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 20
	defaultIdleConnTimeout     = 120 * time.Second
)

// newPooledTransport bounds dialing and the TLS handshake only. There is no
// response header or overall timeout: reasoning steps can run for minutes
// before the first byte.
func newPooledTransport(connTimeout time.Duration, pool config.PoolConfig) *http.Transport {
	if connTimeout <= 0 {
		connTimeout = defaultConnTimeout
	}
	maxIdle := pool.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = defaultMaxIdleConns
	}
	maxIdlePerHost := pool.MaxIdleConnsPerHost
	if maxIdlePerHost <= 0 {
		maxIdlePerHost = defaultMaxIdleConnsPerHost
	}
	maxConnsPerHost := pool.MaxConnsPerHost
	if maxConnsPerHost <= 0 {
		maxConnsPerHost = defaultMaxConnsPerHost
	}
	idleTimeout := pool.IdleConnTimeout
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleConnTimeout
	}

	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConns:        maxIdle,
		MaxIdleConnsPerHost: maxIdlePerHost,
		MaxConnsPerHost:     maxConnsPerHost,
		IdleConnTimeout:     idleTimeout,
		ForceAttemptHTTP2:   true,
	}
}

// doStreamRequest posts a multipart body and returns the open response.
// The caller must close the body. Non-2xx responses and empty bodies come
// back as errors.
func doStreamRequest(ctx context.Context, client *http.Client, url string, p *Payload) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(p.Body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", p.ContentType)
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("X-Request-ID", uuid.NewString())

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		defer httpResp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBody))
		return nil, mapHTTPError(httpResp.StatusCode, respBody)
	}
	if httpResp.Body == nil || httpResp.Body == http.NoBody || httpResp.ContentLength == 0 {
		if httpResp.Body != nil {
			httpResp.Body.Close()
		}
		return nil, domain.ErrEmptyBody
	}
	return httpResp, nil
}

// doJSONRequest sends body as JSON and decodes a 2xx response into out.
// out may be nil when the response body is not needed.
func doJSONRequest(ctx context.Context, client *http.Client, method, url string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", uuid.NewString())

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("%w: read response: %w", domain.ErrTransport, err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return mapHTTPError(httpResp.StatusCode, respBody)
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// mapHTTPError maps a status code and body to a *domain.StatusError wrapping
// the matching sentinel.
func mapHTTPError(statusCode int, body []byte) error {
	se := &domain.StatusError{Code: statusCode, Body: strings.TrimSpace(string(body))}
	switch {
	case statusCode == http.StatusTooManyRequests:
		se.Err = domain.ErrRateLimit
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		se.Err = domain.ErrAuthInvalid
	case statusCode == http.StatusNotFound:
		se.Err = domain.ErrNotFound
	case statusCode == http.StatusBadRequest || statusCode == http.StatusUnprocessableEntity:
		se.Err = domain.ErrInvalidInput
	default:
		se.Err = domain.ErrServerStatus
	}
	return se
}

// errorDetail extracts a readable message from an error response body. The
// orchestrator answers with either plain text or {"detail": ...}.
func errorDetail(se *domain.StatusError) string {
	if se.Body == "" {
		return fmt.Sprintf("Server error: %d", se.Code)
	}
	var body struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if json.Unmarshal([]byte(se.Body), &body) == nil {
		if d := looseString(body.Detail); d != "" {
			return d
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return se.Body
}
