package orchestrator

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grantmatch/internal/domain"
)

const sampleStream = "event: step_update\n" +
	"data: {\"message\":\"Fetching profile\",\"node\":\"profile\"}\n" +
	"\n" +
	"event: message\n" +
	"data: {\"message\":\"Résumé parsed — 3 grants ✓\",\"results\":[{\"opportunity_id\":\"g1\",\"title\":\"T\",\"agency\":\"NSF\",\"llm_score\":0.8}]}\n" +
	"\n" +
	"event: request_info\r\n" +
	"data: {\"type\":\"missing_url\",\"message\":\"need urls\",\"emails_missing_osu_url\":[\"a@x.edu\"]}\r\n" +
	"\r\n"

func feedAll(chunks ...[]byte) ([]Frame, int) {
	var d Decoder
	var frames []Frame
	for _, c := range chunks {
		frames = append(frames, d.Feed(c)...)
	}
	return frames, d.Skipped()
}

func TestDecoderWholeStream(t *testing.T) {
	frames, skipped := feedAll([]byte(sampleStream))
	require.Len(t, frames, 3)
	assert.Equal(t, 0, skipped)

	assert.Equal(t, "step_update", frames[0].Event)
	assert.JSONEq(t, `{"message":"Fetching profile","node":"profile"}`, string(frames[0].Data))
	assert.Equal(t, "message", frames[1].Event)
	assert.Equal(t, "request_info", frames[2].Event)
}

func TestDecoderChunkBoundaryInvariance(t *testing.T) {
	raw := []byte(sampleStream)
	want, _ := feedAll(raw)

	// Every two-way split, including inside multi-byte UTF-8 sequences.
	for i := 0; i <= len(raw); i++ {
		got, _ := feedAll(raw[:i], raw[i:])
		require.Equal(t, want, got, "split at byte %d", i)
	}

	// One byte at a time.
	chunks := make([][]byte, len(raw))
	for i := range raw {
		chunks[i] = raw[i : i+1]
	}
	got, _ := feedAll(chunks...)
	assert.Equal(t, want, got)
}

func TestDecoderEventTypePersistsAcrossChunks(t *testing.T) {
	var d Decoder
	assert.Empty(t, d.Feed([]byte("event: message\n")))
	frames := d.Feed([]byte("data: {\"message\":\"later\"}\n"))
	require.Len(t, frames, 1)
	assert.Equal(t, "message", frames[0].Event)
}

func TestDecoderSkipsMalformedData(t *testing.T) {
	raw := "event: message\ndata: {\"message\":\"one\"}\n\n" +
		"event: message\ndata: {not json\n\n" +
		"event: message\ndata: {\"message\":\"two\"}\n\n"

	frames, skipped := feedAll([]byte(raw))
	require.Len(t, frames, 2)
	assert.JSONEq(t, `{"message":"one"}`, string(frames[0].Data))
	assert.JSONEq(t, `{"message":"two"}`, string(frames[1].Data))
	assert.Equal(t, 1, skipped)
}

func TestDecoderDropsDataWithoutEvent(t *testing.T) {
	raw := "data: {\"message\":\"orphan\"}\n" +
		"event: message\n" +
		"\n" +
		"data: {\"message\":\"after reset\"}\n" +
		"event: step_update\n" +
		"data: {\"message\":\"kept\"}\n\n"

	frames, skipped := feedAll([]byte(raw))
	require.Len(t, frames, 1)
	assert.Equal(t, "step_update", frames[0].Event)
	assert.Equal(t, 2, skipped)
}

func TestDecoderMultipleDataLinesInOneBlock(t *testing.T) {
	raw := "event: step_update\ndata: {\"message\":\"a\"}\ndata: {\"message\":\"b\"}\n\n"
	frames, _ := feedAll([]byte(raw))
	require.Len(t, frames, 2)
	assert.Equal(t, "step_update", frames[1].Event)
}

func TestDecoderIgnoresCommentsAndIDs(t *testing.T) {
	raw := ": keepalive\nid: 7\nretry: 100\nevent: message\ndata: {}\n\n"
	frames, skipped := feedAll([]byte(raw))
	require.Len(t, frames, 1)
	assert.Equal(t, 0, skipped)
}

func TestDecoderHoldsPartialLine(t *testing.T) {
	var d Decoder
	assert.Empty(t, d.Feed([]byte("event: message\ndata: {\"message\":")))
	frames := d.Feed([]byte("\"done\"}\n"))
	require.Len(t, frames, 1)
	assert.JSONEq(t, `{"message":"done"}`, string(frames[0].Data))
}

func TestDecoderFrameDataNotAliased(t *testing.T) {
	var d Decoder
	frames := d.Feed([]byte("event: message\ndata: {\"n\":1}\n"))
	require.Len(t, frames, 1)
	d.Feed([]byte("event: message\ndata: {\"n\":2}\n"))
	assert.JSONEq(t, `{"n":1}`, string(frames[0].Data))
}

func TestEventReaderClassifies(t *testing.T) {
	r := NewEventReader(io.NopCloser(strings.NewReader(sampleStream + "event: message\ndata: {\"message\":\"tail\"}")))
	defer r.Close()

	var events []domain.StreamEvent
	for r.Next() {
		events = append(events, r.Event())
	}
	require.NoError(t, r.Err())
	// The unterminated trailing line is dropped.
	require.Len(t, events, 3)

	require.NotNil(t, events[0].Step)
	assert.Equal(t, "profile", events[0].Step.Node)

	require.NotNil(t, events[1].Message)
	require.Len(t, events[1].Message.Results, 1)
	assert.Equal(t, 0.8, events[1].Message.Results[0].Score)

	require.NotNil(t, events[2].Info)
	assert.Equal(t, "missing_url", events[2].Info.Kind)
	assert.Equal(t, []string{"a@x.edu"}, events[2].Info.MissingFields)
}

func TestEventReaderSlowBody(t *testing.T) {
	pr, pw := io.Pipe()
	r := NewEventReader(pr)
	defer r.Close()

	go func() {
		pw.Write([]byte("event: step_update\n"))
		pw.Write([]byte("data: {\"message\":\"one\"}\n\n"))
		pw.Write([]byte("event: message\ndata: {\"message\":\"two\"}\n\n"))
		pw.Close()
	}()

	var texts []string
	for r.Next() {
		ev := r.Event()
		switch {
		case ev.Step != nil:
			texts = append(texts, ev.Step.Message)
		case ev.Message != nil:
			texts = append(texts, ev.Message.Text)
		}
	}
	require.NoError(t, r.Err())
	assert.Equal(t, []string{"one", "two"}, texts)
}

func TestEventReaderReadError(t *testing.T) {
	pr, pw := io.Pipe()
	r := NewEventReader(pr)

	go func() {
		pw.Write([]byte("event: step_update\ndata: {\"message\":\"one\"}\n\n"))
		pw.CloseWithError(errors.New("connection reset"))
	}()

	require.True(t, r.Next())
	assert.False(t, r.Next())
	require.Error(t, r.Err())
	assert.Contains(t, r.Err().Error(), "connection reset")
	require.NoError(t, r.Close())
}

func TestEventReaderCountsSkipped(t *testing.T) {
	r := NewEventReader(io.NopCloser(strings.NewReader("data: {}\nevent: message\ndata: nope\n\n")))
	for r.Next() {
	}
	assert.Equal(t, 2, r.Skipped())
}
