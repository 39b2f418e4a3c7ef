package domain

import "context"

// EventStream is a pull iterator over the classified events of one open
// response body. Next blocks until an event is available or the stream ends.
//
//	for s.Next() {
//		handle(s.Event())
//	}
//	if err := s.Err(); err != nil { ... }
type EventStream interface {
	Next() bool
	Event() StreamEvent
	// Err returns the read error that ended the stream, or nil at a clean
	// end of stream.
	Err() error
	Close() error
}

// EventStreamer opens streaming searches against the orchestrator. A non-nil
// error means the stream could not be opened (network failure, non-2xx
// status, empty body).
type EventStreamer interface {
	Open(ctx context.Context, req SearchRequest) (EventStream, error)
}
