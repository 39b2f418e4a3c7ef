package domain

import (
	"errors"
	"fmt"
)

// Category sentinels.
var (
	ErrNotFound     = fmt.Errorf("not found")
	ErrInvalidInput = fmt.Errorf("invalid input")
)

// Transport and orchestrator sentinels.
var (
	ErrTransport    = fmt.Errorf("orchestrator transport failed")
	ErrServerStatus = fmt.Errorf("orchestrator returned an error status")
	ErrEmptyBody    = fmt.Errorf("orchestrator returned an empty body")
	ErrCircuitOpen  = fmt.Errorf("orchestrator circuit open")
	ErrRateLimit    = fmt.Errorf("rate limit exceeded")
	ErrAuthInvalid  = fmt.Errorf("authentication failed")

	// Side channel errors.
	ErrFacultyPatch = fmt.Errorf("faculty update failed")
	ErrAuditWrite   = fmt.Errorf("audit write failed")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Faculty.Lookup")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// DetailOf returns the human-readable detail of the outermost DomainError in
// err's chain, or err.Error() when there is none.
func DetailOf(err error) string {
	if err == nil {
		return ""
	}
	var de *DomainError
	if errors.As(err, &de) && de.Detail != "" {
		return de.Detail
	}
	return err.Error()
}

// IsRetryableError reports whether err is a transient error that may succeed on retry.
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTransport)
}

// ErrorCode is a machine-parseable error category for logging and metrics.
type ErrorCode string

const (
	CodeUnknown      ErrorCode = "UNKNOWN"
	CodeNotFound     ErrorCode = "NOT_FOUND"
	CodeInvalidInput ErrorCode = "INVALID_INPUT"
	CodeTransport    ErrorCode = "TRANSPORT"
	CodeServerStatus ErrorCode = "SERVER_STATUS"
	CodeEmptyBody    ErrorCode = "EMPTY_BODY"
	CodeCircuitOpen  ErrorCode = "CIRCUIT_OPEN"
	CodeRateLimit    ErrorCode = "RATE_LIMIT"
	CodeAuthInvalid  ErrorCode = "AUTH_INVALID"
	CodeFacultyPatch ErrorCode = "FACULTY_PATCH"
	CodeAuditWrite   ErrorCode = "AUDIT_WRITE"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
// Specific sentinels are listed before the broad ones they may wrap.
var errorCodeMap = []struct {
	err  error
	code ErrorCode
}{
	{ErrNotFound, CodeNotFound},
	{ErrInvalidInput, CodeInvalidInput},
	{ErrCircuitOpen, CodeCircuitOpen},
	{ErrRateLimit, CodeRateLimit},
	{ErrAuthInvalid, CodeAuthInvalid},
	{ErrEmptyBody, CodeEmptyBody},
	{ErrServerStatus, CodeServerStatus},
	{ErrTransport, CodeTransport},
	{ErrFacultyPatch, CodeFacultyPatch},
	{ErrAuditWrite, CodeAuditWrite},
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It walks the error chain with errors.Is; the first matching sentinel in
// errorCodeMap wins. Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}
	for _, m := range errorCodeMap {
		if errors.Is(err, m.err) {
			return m.code
		}
	}
	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
func (e *DomainError) Code() ErrorCode {
	return ErrorCodeOf(e.Err)
}

// StatusError is a non-2xx response from the orchestrator. Err is the
// sentinel the status maps to.
type StatusError struct {
	Code int
	Body string
	Err  error
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("status %d: %s", e.Code, e.Body)
	}
	return fmt.Sprintf("status %d", e.Code)
}

func (e *StatusError) Unwrap() error { return e.Err }

// StatusCodeOf returns the HTTP status carried by err, or 0 when err holds no
// *StatusError.
func StatusCodeOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}
