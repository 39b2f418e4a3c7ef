package domain

import "encoding/json"

// EventType identifies the kind of frame received from the orchestrator.
// Values outside the known set are passed through unchanged.
type EventType string

const (
	EventStepUpdate  EventType = "step_update"
	EventRequestInfo EventType = "request_info"
	EventMessage     EventType = "message"
)

// Known reports whether t is one of the event types the client understands.
func (t EventType) Known() bool {
	switch t {
	case EventStepUpdate, EventRequestInfo, EventMessage:
		return true
	}
	return false
}

// Severity marks a message event as an error. The zero value is the default.
type Severity string

const (
	SeverityDefault Severity = ""
	SeverityError   Severity = "error"
)

// StreamEvent is one classified frame delivered to a session callback.
// For known types exactly one of Step, Info or Message is set. Unknown
// types carry only Raw.
type StreamEvent struct {
	Type    EventType
	Step    *StepUpdate
	Info    *RequestInfo
	Message *Message

	// Raw is the frame's JSON payload as received. Nil for synthetic events.
	Raw json.RawMessage
}

// StepUpdate is a transient progress note.
type StepUpdate struct {
	Message string `json:"message"`
	Node    string `json:"node,omitempty"`
}

// RequestInfo means the orchestrator needs more input before it can continue.
type RequestInfo struct {
	Kind                 string          `json:"type"`
	Message              string          `json:"message"`
	MissingFields        []string        `json:"emails_missing_osu_url,omitempty"`
	RawOrchestratorState json.RawMessage `json:"orchestrator,omitempty"`
}

// Message is a terminal or semi-terminal payload, possibly carrying results.
type Message struct {
	Text                 string               `json:"message"`
	Severity             Severity             `json:"type,omitempty"`
	Results              []Grant              `json:"results,omitempty"`
	GroupResults         []GroupMatchResult   `json:"groupResults,omitempty"`
	CollaboratorsResult  *CollaboratorsResult `json:"collaboratorsResult,omitempty"`
	FormTeamResult       *FormTeamResult      `json:"formTeamResult,omitempty"`
	RawOrchestratorState json.RawMessage      `json:"orchestrator,omitempty"`
	RawQuery             string               `json:"query,omitempty"`
	Detail               string               `json:"detail,omitempty"`

	// Group is true when the next-action hint marked this as a team result,
	// even if no matches array was present.
	Group bool `json:"-"`
}

// IsError reports whether the message carries error severity.
func (m *Message) IsError() bool {
	return m != nil && m.Severity == SeverityError
}

// ErrorEvent builds the synthetic message used to report transport failures.
func ErrorEvent(text string) StreamEvent {
	return StreamEvent{
		Type:    EventMessage,
		Message: &Message{Text: text, Severity: SeverityError},
	}
}
