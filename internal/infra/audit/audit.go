// Package audit keeps a JSONL trail of requests that changed state on the
// orchestrator: justification emails and faculty profile edits.
package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"grantmatch/internal/domain"
	"grantmatch/internal/infra/config"
	"grantmatch/internal/infra/tracer"
)

// FileLogger implements domain.AuditLogger by appending JSON lines to a file.
type FileLogger struct {
	mu     sync.Mutex
	file   *os.File
	path   string
	maxAge time.Duration
	now    func() time.Time
}

// Open returns a no-op logger when cfg.Path is empty. Otherwise the file is
// created with 0600 permissions and entries older than cfg.MaxAge are pruned.
func Open(cfg config.AuditConfig) (domain.AuditLogger, error) {
	if cfg.Path == "" {
		return Nop{}, nil
	}
	l, err := NewFileLogger(cfg.Path, cfg.MaxAge)
	if err != nil {
		return nil, err
	}
	if _, err := l.Prune(); err != nil {
		l.Close()
		return nil, err
	}
	return l, nil
}

// NewFileLogger opens path for appending. A zero maxAge keeps everything.
func NewFileLogger(path string, maxAge time.Duration) (*FileLogger, error) {
	f, err := openAppend(path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &FileLogger{file: f, path: path, maxAge: maxAge, now: time.Now}, nil
}

func openAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
}

// Log writes event as one JSON line and mirrors it onto the active span.
func (l *FileLogger) Log(ctx context.Context, event domain.AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return domain.NewDomainError("Audit.Log", domain.ErrAuditWrite, err.Error())
	}

	l.mu.Lock()
	_, err = l.file.Write(append(data, '\n'))
	l.mu.Unlock()
	if err != nil {
		return domain.NewDomainError("Audit.Log", domain.ErrAuditWrite, err.Error())
	}

	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		attrs := make([]attribute.KeyValue, 0, len(event.Detail)+1)
		attrs = append(attrs, tracer.StringAttr("audit.outcome", event.Outcome))
		for k, v := range event.Detail {
			attrs = append(attrs, tracer.StringAttr("audit."+k, v))
		}
		span.AddEvent("audit."+string(event.Type), trace.WithAttributes(attrs...))
	}
	return nil
}

// Close closes the underlying file.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// Prune rewrites the log without entries older than maxAge and reports how
// many were dropped. Lines that do not parse are kept.
func (l *FileLogger) Prune() (removed int, err error) {
	if l.maxAge <= 0 {
		return 0, nil
	}
	cutoff := l.now().Add(-l.maxAge)

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.file.Close(); err != nil {
		return 0, fmt.Errorf("close audit log: %w", err)
	}
	defer func() {
		f, openErr := openAppend(l.path)
		if openErr != nil && err == nil {
			err = fmt.Errorf("reopen audit log: %w", openErr)
		}
		l.file = f
	}()

	kept, removed, err := filterLines(l.path, cutoff)
	if err != nil {
		return 0, err
	}
	if removed == 0 {
		return 0, nil
	}

	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, kept, 0o600); err != nil {
		return 0, fmt.Errorf("write audit log: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("replace audit log: %w", err)
	}
	return removed, nil
}

func filterLines(path string, cutoff time.Time) ([]byte, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("read audit log: %w", err)
	}
	defer f.Close()

	var (
		kept    []byte
		removed int
	)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry struct {
			Timestamp time.Time `json:"timestamp"`
		}
		if json.Unmarshal(line, &entry) == nil && !entry.Timestamp.IsZero() && entry.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, line...)
		kept = append(kept, '\n')
	}
	if err := sc.Err(); err != nil {
		return nil, 0, fmt.Errorf("scan audit log: %w", err)
	}
	return kept, removed, nil
}

// Nop discards audit events.
type Nop struct{}

func (Nop) Log(context.Context, domain.AuditEvent) error { return nil }
func (Nop) Close() error                                 { return nil }
