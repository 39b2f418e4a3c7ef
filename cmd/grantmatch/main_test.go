package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grantmatch/internal/domain"
)

func TestParseMember(t *testing.T) {
	cv := filepath.Join(t.TempDir(), "ada.pdf")
	require.NoError(t, os.WriteFile(cv, []byte("%PDF"), 0o600))

	in, err := parseMember(" ada@x.edu , https://x.edu/ada ," + cv)
	require.NoError(t, err)
	assert.Equal(t, "ada@x.edu", in.Email)
	assert.Equal(t, "https://x.edu/ada", in.ProfileURL)
	require.NotNil(t, in.CV)
	assert.Equal(t, "ada.pdf", in.CV.Name)
	assert.Equal(t, "application/pdf", in.CV.ContentType)

	in, err = parseMember("grace@x.edu")
	require.NoError(t, err)
	assert.Empty(t, in.ProfileURL)
	assert.Nil(t, in.CV)

	_, err = parseMember(",https://x.edu")
	assert.Error(t, err)

	_, err = parseMember("lin@x.edu,,/does/not/exist.pdf")
	assert.Error(t, err)
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf)

	p.handle(domain.StreamEvent{Type: domain.EventStepUpdate, Step: &domain.StepUpdate{Message: "Parsing profile"}})
	p.handle(domain.StreamEvent{Type: domain.EventStepUpdate, Step: &domain.StepUpdate{}})
	p.handle(domain.StreamEvent{Type: "heartbeat"})
	p.handle(domain.StreamEvent{Type: domain.EventRequestInfo, Info: &domain.RequestInfo{
		Message: "Need profile URLs", MissingFields: []string{"a@x.edu", "b@x.edu"},
	}})
	p.handle(domain.StreamEvent{Type: domain.EventMessage, Message: &domain.Message{
		Text:    "Found 1 grant",
		Results: []domain.Grant{{Title: "Ocean AI", Agency: "NSF", Score: 0.5}},
	}})
	p.handle(domain.ErrorEvent("Server error: 500"))

	want := "[1] Parsing profile\n" +
		"Need profile URLs\n" +
		"Missing profile URL for: a@x.edu, b@x.edu\n" +
		"Found 1 grant\n" +
		"\nOcean AI\nAgency: NSF\nScore: 50% match\n" +
		"Error: Server error: 500\n"
	assert.Equal(t, want, buf.String())
}

func TestPrinterGroupHintWithoutMatches(t *testing.T) {
	var buf bytes.Buffer
	newPrinter(&buf).handle(domain.StreamEvent{Type: domain.EventMessage, Message: &domain.Message{Text: "done", Group: true}})
	assert.Equal(t, "done\n\nNo team matches found.\n", buf.String())
}

func runCLI(t *testing.T, h http.Handler, args ...string) (string, error) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	t.Setenv("GRANTMATCH_ORCHESTRATOR_BASE_URL", srv.URL)

	var out bytes.Buffer
	a := &app{}
	root := newRootCmd(a)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "--log-level", "error"}, args...))
	err := root.ExecuteContext(context.Background())
	a.close()
	return out.String(), err
}

func TestSearchCommandStreamsToStdout(t *testing.T) {
	out, err := runCLI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "ada@x.edu", r.FormValue("email"))
		assert.Equal(t, "find grants", r.FormValue("message"))

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: step_update\ndata: {\"message\":\"Searching\"}\n\n")
		fmt.Fprint(w, "event: message\ndata: {\"message\":\"Here you go\",\"results\":[{\"title\":\"Ocean AI\",\"agency\":\"NOAA\",\"score\":0.9}]}\n\n")
	}), "search", "--email", "ada@x.edu", "-m", "find grants")

	require.NoError(t, err)
	assert.Contains(t, out, "[1] Searching\n")
	assert.Contains(t, out, "Here you go\n")
	assert.Contains(t, out, "Ocean AI\nAgency: NOAA\nScore: 90% match")
}

func TestSearchCommandReportsServerError(t *testing.T) {
	out, err := runCLI(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}), "search", "--email", "ada@x.edu")

	require.Error(t, err)
	assert.Contains(t, out, "Error: Server error: 500")
}

func TestGroupCommandRequiresMembers(t *testing.T) {
	_, err := runCLI(t, http.NotFoundHandler(), "group", "-m", "team grants")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--member")
}

func TestEmailCommandRejectsInvalidRecipient(t *testing.T) {
	_, err := runCLI(t, http.NotFoundHandler(), "email", "--to", "not-an-email", "--title", "Match", "--content", "body")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a valid email address")
}

func TestSearchCommandEmailsResults(t *testing.T) {
	var mailed []domain.EmailRequest
	var mu sync.Mutex
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: message\ndata: {\"message\":\"ok\",\"results\":[{\"title\":\"Ocean AI\",\"agency\":\"NOAA\",\"score\":0.9}]}\n\n")
	})
	mux.HandleFunc("/api/send-justification-email", func(w http.ResponseWriter, r *http.Request) {
		var req domain.EmailRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		mailed = append(mailed, req)
		mu.Unlock()
		fmt.Fprint(w, `{"message":"Email sent!"}`)
	})

	out, err := runCLI(t, mux, "search", "--email", "ada@x.edu", "--send-to", "pi@x.edu")
	require.NoError(t, err)
	assert.Contains(t, out, "Ocean AI: Email sent!")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, mailed, 1)
	assert.Equal(t, "Ocean AI", mailed[0].Title)
	assert.Equal(t, []string{"pi@x.edu"}, mailed[0].RecipientEmails)
	assert.Contains(t, mailed[0].Content, "Score: 90% match")
}
