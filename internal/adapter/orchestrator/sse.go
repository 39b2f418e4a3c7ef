package orchestrator

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"

	"grantmatch/internal/domain"
)

var (
	prefixEvent = []byte("event:")
	prefixData  = []byte("data:")
)

// Frame is one decoded event/data pair.
type Frame struct {
	Event string
	Data  json.RawMessage
}

// Decoder reassembles SSE lines across arbitrary chunk boundaries. The zero
// value is ready to use. A Decoder is not safe for concurrent use.
type Decoder struct {
	buf     []byte
	event   string
	skipped int
}

// Feed appends chunk to the pending buffer and returns the frames completed
// by it, in stream order. The trailing partial line stays buffered.
func (d *Decoder) Feed(chunk []byte) []Frame {
	d.buf = append(d.buf, chunk...)

	var frames []Frame
	rest := d.buf
	for {
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			break
		}
		if f, ok := d.line(rest[:i]); ok {
			frames = append(frames, f)
		}
		rest = rest[i+1:]
	}
	n := copy(d.buf, rest)
	d.buf = d.buf[:n]
	return frames
}

// Skipped reports how many data lines were dropped, either because they
// were not valid JSON or because no event type was active.
func (d *Decoder) Skipped() int { return d.skipped }

// Reset discards buffered input and the current event type.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
	d.event = ""
}

func (d *Decoder) line(raw []byte) (Frame, bool) {
	line := bytes.TrimSpace(raw)
	switch {
	case len(line) == 0:
		d.event = ""
	case bytes.HasPrefix(line, prefixEvent):
		d.event = string(bytes.TrimSpace(line[len(prefixEvent):]))
	case bytes.HasPrefix(line, prefixData):
		if d.event == "" {
			d.skipped++
			return Frame{}, false
		}
		payload := bytes.TrimSpace(line[len(prefixData):])
		if !json.Valid(payload) {
			d.skipped++
			return Frame{}, false
		}
		// payload aliases d.buf, which is reused.
		data := make(json.RawMessage, len(payload))
		copy(data, payload)
		return Frame{Event: d.event, Data: data}, true
	}
	// Comments, id: and retry: lines are not used by the orchestrator.
	return Frame{}, false
}

const readChunkSize = 4096

// EventReader is a pull iterator over the classified events of a response
// body. Body reads are its only blocking point.
type EventReader struct {
	body    io.ReadCloser
	dec     Decoder
	chunk   []byte
	pending []domain.StreamEvent
	cur     domain.StreamEvent
	err     error
	eof     bool
}

// NewEventReader wraps body. The reader owns body and closes it on Close.
func NewEventReader(body io.ReadCloser) *EventReader {
	return &EventReader{body: body, chunk: make([]byte, readChunkSize)}
}

// Next advances to the next event, reading more of the body as needed. It
// returns false once the body is exhausted or a read fails.
func (r *EventReader) Next() bool {
	for len(r.pending) == 0 {
		if r.eof {
			return false
		}
		n, err := r.body.Read(r.chunk)
		if n > 0 {
			for _, f := range r.dec.Feed(r.chunk[:n]) {
				r.pending = append(r.pending, Classify(f))
			}
		}
		if err != nil {
			r.eof = true
			if !errors.Is(err, io.EOF) {
				r.err = err
			}
		}
	}
	r.cur = r.pending[0]
	r.pending[0] = domain.StreamEvent{}
	r.pending = r.pending[1:]
	return true
}

// Event returns the event Next advanced to.
func (r *EventReader) Event() domain.StreamEvent { return r.cur }

// Err returns the read error that ended the stream, or nil at a clean end.
func (r *EventReader) Err() error { return r.err }

// Skipped reports how many data lines the decoder dropped so far.
func (r *EventReader) Skipped() int { return r.dec.Skipped() }

// Close releases the body and the decode buffer.
func (r *EventReader) Close() error {
	r.dec.Reset()
	r.pending = nil
	return r.body.Close()
}

var _ domain.EventStream = (*EventReader)(nil)
