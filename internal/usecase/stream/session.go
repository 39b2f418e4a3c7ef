package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"

	"grantmatch/internal/domain"
)

// State is a session's lifecycle position.
type State int32

const (
	StateIdle State = iota
	StateRequesting
	StateStreaming
	StateCompleted
	StateCancelled
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether s is a final state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateErrored
}

// Handler receives a session's events, one at a time, in arrival order.
type Handler func(domain.StreamEvent)

// Session is one search stream. It is created by Controller.Start and owns
// its request, cancellation, and decode state.
type Session struct {
	id      string
	slot    string
	req     domain.SearchRequest
	onEvent Handler

	ctx    context.Context
	cancel context.CancelFunc

	cancelled atomic.Bool
	state     atomic.Int32
	done      chan struct{}

	// gate is held from the stopped check through the end of each callback.
	// Cancel acquires it, so it returns only between deliveries.
	gate sync.Mutex
	// gid is the id of the goroutine that runs callbacks, 0 until it starts.
	gid atomic.Uint64

	mu  sync.Mutex
	err error
}

// ID returns the session's unique id.
func (s *Session) ID() string { return s.id }

// Slot returns the slot the session was started on.
func (s *Session) Slot() string { return s.slot }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Done is closed once the session reaches a terminal state and its callback
// has returned for the last time.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the transport error that ended an errored session.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Cancel stops the session and is safe to call more than once, after
// completion, and from inside the session's own callback. From any other
// goroutine it waits for a callback in progress to return, so no callback
// runs once Cancel has returned. It does not wait for the stream to close;
// wait on Done for that.
func (s *Session) Cancel() {
	if s.cancelled.CompareAndSwap(false, true) {
		s.cancel()
	}
	if s.onSessionGoroutine() {
		return
	}
	s.gate.Lock()
	s.gate.Unlock() //nolint:staticcheck // barrier against a running callback
}

func (s *Session) onSessionGoroutine() bool {
	id := s.gid.Load()
	return id != 0 && id == goid()
}

// stopped reports whether the session was cancelled directly or through the
// context it was started with.
func (s *Session) stopped() bool {
	return s.cancelled.Load() || s.ctx.Err() != nil
}

func (s *Session) setState(st State) { s.state.Store(int32(st)) }

func (s *Session) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// transportErrorText renders a transport failure the way the UI shows it.
func transportErrorText(err error) string {
	if code := domain.StatusCodeOf(err); code != 0 {
		return fmt.Sprintf("Server error: %d", code)
	}
	if errors.Is(err, domain.ErrEmptyBody) {
		return "Server error: empty response"
	}
	return "Connection error: " + err.Error()
}

// goid parses the current goroutine id from the "goroutine N [" stack header.
func goid() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}
