package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainErrorFormat(t *testing.T) {
	err := NewDomainError("Faculty.Lookup", ErrNotFound, "no faculty with that email")
	want := "Faculty.Lookup: no faculty with that email: not found"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDomainErrorFormatNoDetail(t *testing.T) {
	err := NewDomainError("Stream.Open", ErrEmptyBody, "")
	want := "Stream.Open: orchestrator returned an empty body"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDomainErrorUnwrap(t *testing.T) {
	err := NewDomainError("Stream.Open", ErrServerStatus, "500")
	if !errors.Is(err, ErrServerStatus) {
		t.Error("errors.Is should match ErrServerStatus")
	}
}

func TestDetailOf(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewDomainError("Faculty.PatchSource", ErrFacultyPatch, "unknown faculty"))
	assert.Equal(t, "unknown faculty", DetailOf(err))
	assert.Equal(t, "plain", DetailOf(errors.New("plain")))
	assert.Equal(t, "", DetailOf(nil))
}

func TestWrapOpNil(t *testing.T) {
	assert.NoError(t, WrapOp("op", nil))
	err := WrapOp("op", ErrTransport)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, "op: orchestrator transport failed", err.Error())
}

func TestErrorCodeOf(t *testing.T) {
	assert.Equal(t, CodeUnknown, ErrorCodeOf(nil))
	assert.Equal(t, CodeRateLimit, ErrorCodeOf(ErrRateLimit))
	assert.Equal(t, CodeServerStatus, ErrorCodeOf(NewDomainError("Stream.Open", ErrServerStatus, "502")))
	assert.Equal(t, CodeUnknown, ErrorCodeOf(errors.New("something else")))
}

func TestErrorCodeOfPrefersSpecificSentinel(t *testing.T) {
	// A circuit-open failure is also a transport failure; the specific code wins.
	err := fmt.Errorf("%w: %w", ErrCircuitOpen, ErrTransport)
	assert.Equal(t, CodeCircuitOpen, ErrorCodeOf(err))
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, IsRetryableError(fmt.Errorf("x: %w", ErrTransport)))
	assert.True(t, IsRetryableError(ErrCircuitOpen))
	assert.False(t, IsRetryableError(ErrInvalidInput))
}

func TestStatusError(t *testing.T) {
	err := fmt.Errorf("open: %w", &StatusError{Code: 502, Body: "bad gateway", Err: ErrServerStatus})
	assert.Equal(t, 502, StatusCodeOf(err))
	assert.ErrorIs(t, err, ErrServerStatus)
	assert.Equal(t, "open: status 502: bad gateway", err.Error())
	assert.Equal(t, 0, StatusCodeOf(ErrTransport))
	assert.Equal(t, "status 404", (&StatusError{Code: 404, Err: ErrNotFound}).Error())
}
