package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grantmatch/internal/domain"
	"grantmatch/internal/infra/config"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := config.Defaults()
	cfg.Orchestrator.BaseURL = srv.URL
	cfg.Orchestrator.Breaker.MaxFailures = 2
	cfg.Orchestrator.Breaker.Timeout = time.Minute
	return NewClient(cfg.Orchestrator, config.EmailConfig{MaxSendsPerMinute: 60, Burst: 5}, nil)
}

func singleSearch() domain.SearchRequest {
	return domain.SearchRequest{Mode: domain.ModeSingle, Message: "grants please", Email: "ada@x.edu"}
}

func TestClientOpenStreams(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "ada@x.edu", r.FormValue("email"))

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "event: step_update\ndata: {\"message\":\"working\"}\n\n")
		flusher.Flush()
		fmt.Fprint(w, "event: message\ndata: {\"message\":\"done\",\"results\":[]}\n\n")
		flusher.Flush()
	}))

	stream, err := c.Open(context.Background(), singleSearch())
	require.NoError(t, err)
	defer stream.Close()

	var types []domain.EventType
	for stream.Next() {
		types = append(types, stream.Event().Type)
	}
	require.NoError(t, stream.Err())
	assert.Equal(t, []domain.EventType{domain.EventStepUpdate, domain.EventMessage}, types)
}

func TestClientOpenRoutesByMode(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		fmt.Fprint(w, "event: message\ndata: {}\n\n")
	}))

	for _, mode := range []domain.SearchMode{domain.ModeGroup, domain.ModeCollaborators, domain.ModeFormTeam} {
		s, err := c.Open(context.Background(), domain.SearchRequest{Mode: mode, GrantTitle: "x"})
		require.NoError(t, err)
		s.Close()
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/api/chat", "/api/find-collaborators", "/api/form-team"}, paths)
}

func TestClientOpenServerError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := c.Open(context.Background(), singleSearch())
	require.Error(t, err)
	assert.Equal(t, 500, domain.StatusCodeOf(err))
	assert.ErrorIs(t, err, domain.ErrServerStatus)
}

func TestClientOpenEmptyBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	_, err := c.Open(context.Background(), singleSearch())
	assert.ErrorIs(t, err, domain.ErrEmptyBody)
}

func TestClientOpenInvalidMode(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))

	_, err := c.Open(context.Background(), domain.SearchRequest{Mode: "nope"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, int32(0), calls.Load())
}

func TestHasCV(t *testing.T) {
	cv := &domain.Attachment{Name: "cv.pdf"}
	assert.False(t, hasCV(singleSearch()))
	assert.True(t, hasCV(domain.SearchRequest{Mode: domain.ModeSingle, CV: cv}))
	assert.True(t, hasCV(domain.SearchRequest{Mode: domain.ModeGroup, Faculty: []domain.FacultyInput{{Email: "a@x.edu"}, {Email: "b@x.edu", CV: cv}}}))
}

func TestClientBreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))

	for i := 0; i < 2; i++ {
		_, err := c.Open(context.Background(), singleSearch())
		require.Error(t, err)
		assert.Equal(t, 502, domain.StatusCodeOf(err))
	}
	assert.Equal(t, gobreaker.StateOpen, c.breaker.cb.State())

	_, err := c.Open(context.Background(), singleSearch())
	assert.ErrorIs(t, err, domain.ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClientBreakerIgnoresClientErrors(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad form", http.StatusBadRequest)
	}))

	for i := 0; i < 3; i++ {
		_, err := c.Open(context.Background(), singleSearch())
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	}
	assert.Equal(t, gobreaker.StateClosed, c.breaker.cb.State())
}

func TestCountsAsSuccess(t *testing.T) {
	assert.True(t, countsAsSuccess(nil))
	assert.True(t, countsAsSuccess(fmt.Errorf("x: %w", context.Canceled)))
	assert.True(t, countsAsSuccess(&domain.StatusError{Code: 404, Err: domain.ErrNotFound}))
	assert.False(t, countsAsSuccess(&domain.StatusError{Code: 429, Err: domain.ErrRateLimit}))
	assert.False(t, countsAsSuccess(&domain.StatusError{Code: 503, Err: domain.ErrServerStatus}))
	assert.False(t, countsAsSuccess(errors.New("dial tcp: refused")))
}

func TestMapHTTPError(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{429, domain.ErrRateLimit},
		{401, domain.ErrAuthInvalid},
		{403, domain.ErrAuthInvalid},
		{404, domain.ErrNotFound},
		{422, domain.ErrInvalidInput},
		{500, domain.ErrServerStatus},
		{418, domain.ErrServerStatus},
	}
	for _, tt := range tests {
		err := mapHTTPError(tt.code, []byte(" body \n"))
		assert.ErrorIs(t, err, tt.want, "status %d", tt.code)
		var se *domain.StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, "body", se.Body)
	}
}

func TestErrorDetail(t *testing.T) {
	assert.Equal(t, "Server error: 502", errorDetail(&domain.StatusError{Code: 502}))
	assert.Equal(t, "No faculty found", errorDetail(&domain.StatusError{Code: 404, Body: `{"detail":"No faculty found"}`}))
	assert.Equal(t, "nope", errorDetail(&domain.StatusError{Code: 400, Body: `{"message":"nope"}`}))
	assert.Equal(t, "plain text", errorDetail(&domain.StatusError{Code: 500, Body: "plain text"}))
}

func TestSendJustificationEmail(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/send-justification-email", r.URL.Path)
		var req domain.EmailRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"ada@x.edu"}, req.RecipientEmails)
		fmt.Fprint(w, `{"message":"Queued for delivery"}`)
	}))

	res := c.SendJustificationEmail(context.Background(), domain.EmailRequest{
		RecipientEmails: []string{"ada@x.edu"},
		Title:           "Grant match",
		Content:         "Agency: NSF",
	})
	assert.True(t, res.Success)
	assert.Equal(t, "Queued for delivery", res.Message)
}

func TestSendJustificationEmailDefaultMessage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	res := c.SendJustificationEmail(context.Background(), domain.EmailRequest{
		RecipientEmails: []string{"ada@x.edu"}, Title: "t", Content: "c",
	})
	assert.True(t, res.Success)
	assert.Equal(t, "Email sent!", res.Message)
}

func TestSendJustificationEmailFailure(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "SMTP relay unavailable", http.StatusBadGateway)
	}))
	res := c.SendJustificationEmail(context.Background(), domain.EmailRequest{
		RecipientEmails: []string{"ada@x.edu"}, Title: "t", Content: "c",
	})
	assert.False(t, res.Success)
	assert.Equal(t, "SMTP relay unavailable", res.Message)
}

func TestSendJustificationEmailValidation(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))

	res := c.SendJustificationEmail(context.Background(), domain.EmailRequest{Title: "t", Content: "c"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "at least one recipient")

	res = c.SendJustificationEmail(context.Background(), domain.EmailRequest{
		RecipientEmails: []string{"not-an-email"}, Title: "t", Content: "c",
	})
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "not-an-email is not a valid email address")
	assert.Equal(t, int32(0), calls.Load())
}

func TestSendJustificationEmailRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	cfg := config.Defaults().Orchestrator
	cfg.BaseURL = srv.URL
	c := NewClient(cfg, config.EmailConfig{MaxSendsPerMinute: 1, Burst: 1}, nil)

	req := domain.EmailRequest{RecipientEmails: []string{"ada@x.edu"}, Title: "t", Content: "c"}
	assert.True(t, c.SendJustificationEmail(context.Background(), req).Success)
	res := c.SendJustificationEmail(context.Background(), req)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "Too many emails")
}

func TestLookupFaculty(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/faculty/lookup", r.URL.Path)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["email"] != "ada@x.edu" {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"detail":"No faculty found for that email."}`)
			return
		}
		fmt.Fprint(w, `{"faculty_id":7,"name":"Ada","email":"ada@x.edu","all_keywords":{"research":{"domain":["ml"],"specialization":[{"t":"graphs","w":0.9}]}}}`)
	}))

	p, err := c.LookupFaculty(context.Background(), "  Ada@X.edu ")
	require.NoError(t, err)
	assert.Equal(t, 7, p.FacultyID)
	assert.Equal(t, "graphs", p.AllKeywords.Research.Specialization[0].Term)

	_, err = c.LookupFaculty(context.Background(), "who@x.edu")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, "No faculty found for that email.", domain.DetailOf(err))

	_, err = c.LookupFaculty(context.Background(), " ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPatchFaculty(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		var body map[string]json.RawMessage
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if _, ok := body["all_keywords"]; ok {
			_, hasSource := body["data_from"]
			assert.False(t, hasSource)
			fmt.Fprint(w, `{"ok":true,"faculty":{"email":"ada@x.edu"},"keyword_update_mode":"frontend_override"}`)
			return
		}
		fmt.Fprint(w, `{"ok":false,"faculty":{},"keyword_update_mode":"none","message":"unknown faculty"}`)
	}))

	resp, err := c.PatchFacultyKeywords(context.Background(), domain.FacultyKeywordsPatch{Email: "ada@x.edu"})
	require.NoError(t, err)
	assert.Equal(t, domain.KeywordsFrontendOverride, resp.KeywordUpdateMode)

	url := "https://x.edu/ada"
	_, err = c.PatchFacultySource(context.Background(), domain.FacultySourcePatch{
		Email:    "ada@x.edu",
		DataFrom: &domain.DataFromPatch{InfoSourceURL: &url},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFacultyPatch)
	assert.Equal(t, "unknown faculty", domain.DetailOf(err))

	_, err = c.PatchFacultySource(context.Background(), domain.FacultySourcePatch{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

type memAudit struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (m *memAudit) Log(_ context.Context, ev domain.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *memAudit) Close() error { return nil }

func TestSideEffectsAreAudited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/send-justification-email":
			http.Error(w, "SMTP relay unavailable", http.StatusBadGateway)
		case "/api/faculty":
			fmt.Fprint(w, `{"ok":true,"faculty":{},"keyword_update_mode":"regenerated_from_sources"}`)
		}
	}))
	defer srv.Close()

	al := &memAudit{}
	cfg := config.Defaults().Orchestrator
	cfg.BaseURL = srv.URL
	c := NewClient(cfg, config.EmailConfig{MaxSendsPerMinute: 60, Burst: 5}, nil, WithAuditLogger(al))

	res := c.SendJustificationEmail(context.Background(), domain.EmailRequest{
		RecipientEmails: []string{"ada@x.edu", "lin@x.edu"}, Title: "t", Content: "c",
	})
	require.False(t, res.Success)

	url := "https://x.edu/ada"
	_, err := c.PatchFacultySource(context.Background(), domain.FacultySourcePatch{
		Email: "ada@x.edu", DataFrom: &domain.DataFromPatch{InfoSourceURL: &url},
	})
	require.NoError(t, err)

	// Validation failures never reach the server and are not audited.
	c.SendJustificationEmail(context.Background(), domain.EmailRequest{Title: "t", Content: "c"})

	require.Len(t, al.events, 2)
	assert.Equal(t, domain.AuditEmailRejected, al.events[0].Type)
	assert.Equal(t, "ada@x.edu,lin@x.edu", al.events[0].Resource)
	assert.Equal(t, "SMTP relay unavailable", al.events[0].Detail["message"])
	assert.Equal(t, domain.AuditFacultyPatched, al.events[1].Type)
	assert.Equal(t, domain.OutcomeSuccess, al.events[1].Outcome)
	assert.Equal(t, "regenerated_from_sources", al.events[1].Detail["keyword_update_mode"])
}
