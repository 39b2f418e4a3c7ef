// Package stream runs search sessions against the orchestrator and delivers
// their events to UI callbacks, keeping at most one live session per slot.
package stream

import (
	"context"
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"

	"grantmatch/internal/domain"
	"grantmatch/internal/infra/logger"
)

// Recorder receives session metrics. *metrics.Stream implements it.
type Recorder interface {
	SessionStarted(slot string)
	SessionFinished(slot, state string)
	EventDelivered(eventType string)
	FramesSkipped(n int)
}

type nopRecorder struct{}

func (nopRecorder) SessionStarted(string)          {}
func (nopRecorder) SessionFinished(string, string) {}
func (nopRecorder) EventDelivered(string)          {}
func (nopRecorder) FramesSkipped(int)              {}

// skipCounter is implemented by streams that count dropped frames.
type skipCounter interface {
	Skipped() int
}

// Controller starts sessions and tracks the current one per slot. A slot is
// any caller-chosen name for a search surface, e.g. "find-grant".
type Controller struct {
	streamer domain.EventStreamer
	logger   *slog.Logger
	metrics  Recorder

	mu      sync.Mutex
	slots   map[string]*Session
	closing bool
	wg      sync.WaitGroup
}

// Option customizes a Controller.
type Option func(*Controller)

// WithRecorder records session metrics.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) {
		if r != nil {
			c.metrics = r
		}
	}
}

// NewController creates a Controller that opens streams through streamer.
func NewController(streamer domain.EventStreamer, log *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		streamer: streamer,
		logger:   logger.OrDiscard(log),
		metrics:  nopRecorder{},
		slots:    make(map[string]*Session),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start begins a search on slot and returns its session. A session already
// current on slot is cancelled first, and the new request is not sent until
// the old session has fully stopped, so the two never deliver interleaved.
// onEvent is called sequentially from a goroutine owned by the session.
// Cancelling ctx cancels the session.
func (c *Controller) Start(ctx context.Context, slot string, req domain.SearchRequest, onEvent Handler) *Session {
	if onEvent == nil {
		onEvent = func(domain.StreamEvent) {}
	}
	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		id:      ulid.Make().String(),
		slot:    slot,
		req:     req,
		onEvent: onEvent,
		ctx:     sctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		s.cancelled.Store(true)
		cancel()
		s.setState(StateCancelled)
		close(s.done)
		return s
	}
	prev := c.slots[slot]
	c.slots[slot] = s
	c.wg.Add(1)
	c.mu.Unlock()

	if prev != nil {
		prev.Cancel()
		c.logger.Debug("session replaced", "slot", slot, "previous", prev.id, "session", s.id)
	}

	c.metrics.SessionStarted(slot)
	go c.run(s, prev)
	return s
}

// Current returns the live session on slot, or nil.
func (c *Controller) Current(slot string) *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slots[slot]
}

// Cancel cancels the current session on slot, if any.
func (c *Controller) Cancel(slot string) {
	if s := c.Current(slot); s != nil {
		s.Cancel()
	}
}

// CancelAll cancels every live session and waits for them to stop. Later
// calls to Start return an already cancelled session. It must not be called
// from a session callback.
func (c *Controller) CancelAll() {
	c.mu.Lock()
	c.closing = true
	live := make([]*Session, 0, len(c.slots))
	for _, s := range c.slots {
		live = append(live, s)
	}
	c.mu.Unlock()

	for _, s := range live {
		s.Cancel()
	}
	c.wg.Wait()
}

func (c *Controller) run(s *Session, prev *Session) {
	s.gid.Store(goid())
	defer c.wg.Done()
	defer c.finish(s)

	if prev != nil {
		select {
		case <-prev.Done():
		case <-s.ctx.Done():
			return
		}
	}
	if s.stopped() {
		return
	}

	s.setState(StateRequesting)
	es, err := c.streamer.Open(s.ctx, s.req)
	if err != nil {
		if !s.stopped() {
			c.fail(s, "open", err)
		}
		return
	}
	defer es.Close()

	s.setState(StateStreaming)
	c.logger.Debug("session streaming", "slot", s.slot, "session", s.id, "mode", s.req.Mode)

	for es.Next() {
		if !c.deliver(s, es.Event()) {
			break
		}
	}
	if sc, ok := es.(skipCounter); ok {
		if n := sc.Skipped(); n > 0 {
			c.metrics.FramesSkipped(n)
			c.logger.Debug("skipped malformed frames", "slot", s.slot, "session", s.id, "count", n)
		}
	}
	if err := es.Err(); err != nil && !s.stopped() {
		c.fail(s, "read", err)
	}
}

// fail records err on s and reports it as the session's last event.
func (c *Controller) fail(s *Session, phase string, err error) {
	s.setErr(err)
	c.logger.Warn("session failed",
		"slot", s.slot,
		"session", s.id,
		"phase", phase,
		"error_code", domain.ErrorCodeOf(err),
		"retryable", domain.IsRetryableError(err),
		"error", err,
	)
	c.deliver(s, domain.ErrorEvent(transportErrorText(err)))
}

// deliver invokes the callback unless the session has been stopped. It
// reports whether the session may keep delivering.
func (c *Controller) deliver(s *Session, ev domain.StreamEvent) bool {
	s.gate.Lock()
	defer s.gate.Unlock()
	if s.stopped() {
		return false
	}
	func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("session callback panicked",
					"slot", s.slot, "session", s.id, "event", ev.Type, "panic", r)
			}
		}()
		s.onEvent(ev)
	}()
	c.metrics.EventDelivered(eventLabel(ev.Type))
	return !s.stopped()
}

// eventLabel keeps server-chosen event types out of metric label values.
func eventLabel(t domain.EventType) string {
	if t.Known() {
		return string(t)
	}
	return "other"
}

// finish moves s to its terminal state, releases its resources, and frees
// the slot if s still holds it.
func (c *Controller) finish(s *Session) {
	var st State
	switch {
	case s.stopped():
		st = StateCancelled
	case s.Err() != nil:
		st = StateErrored
	default:
		st = StateCompleted
	}
	s.setState(st)
	s.cancel()

	c.mu.Lock()
	if c.slots[s.slot] == s {
		delete(c.slots, s.slot)
	}
	c.mu.Unlock()

	c.metrics.SessionFinished(s.slot, st.String())
	c.logger.Debug("session finished", "slot", s.slot, "session", s.id, "state", st.String())
	close(s.done)
}
