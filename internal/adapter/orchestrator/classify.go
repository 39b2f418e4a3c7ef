package orchestrator

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"grantmatch/internal/domain"
)

// probePath is a key path into a decoded JSON object.
type probePath []string

// The orchestrator's envelope has moved between flat, result-nested and
// orchestrator.result-nested layouts. Each table is tried in order and the
// first hit wins; a new layout is one more row.
var (
	nextActionPaths = []probePath{
		{"next_action"},
		{"result", "next_action"},
		{"orchestrator", "result", "next_action"},
	}

	groupMatchPaths = []probePath{
		{"matches"},
		{"result", "matches"},
		{"orchestrator", "result", "matches"},
		{"results"},
	}

	singleMatchPaths = []probePath{
		{"results"},
		{"orchestrator", "result", "recommendation", "recommendations"},
		{"result", "recommendation", "recommendations"},
		{"recommendation", "recommendations"},
		{"orchestrator", "result", "matches"},
		{"result", "matches"},
		{"matches"},
	}
)

// messageEnvelope holds the scalar fields of a message payload.
type messageEnvelope struct {
	Message      string          `json:"message"`
	Type         string          `json:"type"`
	Orchestrator json.RawMessage `json:"orchestrator"`
	Query        json.RawMessage `json:"query"`
	Detail       json.RawMessage `json:"detail"`
}

// Classify turns one frame into a typed event. Unknown event types and
// payloads that are not JSON objects pass through with only Raw set.
func Classify(f Frame) domain.StreamEvent {
	ev := domain.StreamEvent{Type: domain.EventType(f.Event), Raw: f.Data}

	var obj map[string]any
	if err := json.Unmarshal(f.Data, &obj); err != nil || obj == nil {
		return ev
	}

	switch ev.Type {
	case domain.EventStepUpdate:
		var s domain.StepUpdate
		if json.Unmarshal(f.Data, &s) == nil {
			ev.Step = &s
		}
	case domain.EventRequestInfo:
		var ri domain.RequestInfo
		if json.Unmarshal(f.Data, &ri) == nil {
			ev.Info = &ri
		}
	case domain.EventMessage:
		ev.Message = classifyMessage(f.Data, obj)
	}
	return ev
}

func classifyMessage(raw json.RawMessage, obj map[string]any) *domain.Message {
	var env messageEnvelope
	_ = json.Unmarshal(raw, &env)

	msg := &domain.Message{
		Text:                 env.Message,
		RawOrchestratorState: env.Orchestrator,
		RawQuery:             looseString(env.Query),
		Detail:               looseString(env.Detail),
	}
	if env.Type == string(domain.SeverityError) {
		msg.Severity = domain.SeverityError
	}

	hint, holder := firstString(obj, nextActionPaths)
	if strings.HasPrefix(hint, domain.NextActionGroupPrefix) {
		// The hint is final even when no matches array is present.
		msg.Group = true
		if arr := firstArray(obj, groupMatchPaths); arr != nil {
			msg.GroupResults = decodeEach[domain.GroupMatchResult](arr)
		}
	} else if arr := firstArray(obj, singleMatchPaths); arr != nil {
		grants := decodeEach[domain.Grant](arr)
		for i := range grants {
			grants[i].BackfillScore()
		}
		msg.Results = grants
	}

	msg.CollaboratorsResult = decodeValue[domain.CollaboratorsResult](obj["collaboratorsResult"])
	msg.FormTeamResult = decodeValue[domain.FormTeamResult](obj["formTeamResult"])
	switch hint {
	case domain.NextActionCollaborators:
		if msg.CollaboratorsResult == nil {
			msg.CollaboratorsResult = decodeValue[domain.CollaboratorsResult](holder)
		}
	case domain.NextActionTeam:
		if msg.FormTeamResult == nil {
			msg.FormTeamResult = decodeValue[domain.FormTeamResult](holder)
		}
	}
	return msg
}

// lookup walks p through nested objects.
func lookup(obj map[string]any, p probePath) (any, bool) {
	var cur any = obj
	for _, key := range p {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[key]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// firstString returns the first non-empty string found along paths, and the
// object that holds it.
func firstString(obj map[string]any, paths []probePath) (string, any) {
	for _, p := range paths {
		v, ok := lookup(obj, p)
		if !ok {
			continue
		}
		if s, ok := v.(string); ok && s != "" {
			holder, _ := lookup(obj, p[:len(p)-1])
			return s, holder
		}
	}
	return "", nil
}

// firstArray returns the first JSON array found along paths. An empty array
// counts as found.
func firstArray(obj map[string]any, paths []probePath) []any {
	for _, p := range paths {
		v, ok := lookup(obj, p)
		if !ok {
			continue
		}
		if arr, ok := v.([]any); ok {
			return arr
		}
	}
	return nil
}

// idKeys and scoreKeys are coerced before decoding: backends have sent ids
// as numbers and scores as numeric strings.
var (
	idKeys    = []string{"opportunity_id", "grant_id"}
	scoreKeys = []string{"score", "llm_score", "domain_score", "team_score"}
)

// decodeEach converts each object element into T. Non-object elements are
// dropped; fields of the wrong type are left at their zero value.
func decodeEach[T any](arr []any) []T {
	out := make([]T, 0, len(arr))
	for _, el := range arr {
		if v := decodeValue[T](el); v != nil {
			out = append(out, *v)
		}
	}
	return out
}

func decodeValue[T any](v any) *T {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	b, err := json.Marshal(coerceScalars(m))
	if err != nil {
		return nil
	}
	return decodeResult[T](b)
}

// decodeResult decodes a JSON object into T. A type mismatch on one field
// does not reject the object: encoding/json skips that field and fills the
// rest before reporting the first mismatch.
func decodeResult[T any](raw json.RawMessage) *T {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return nil
		}
	}
	return &out
}

// coerceScalars returns a shallow copy of m with numeric ids rendered as
// strings and numeric-string scores parsed as numbers.
func coerceScalars(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	for _, k := range idKeys {
		if n, ok := out[k].(float64); ok {
			out[k] = strconv.FormatFloat(n, 'f', -1, 64)
		}
	}
	for _, k := range scoreKeys {
		if str, ok := out[k].(string); ok {
			if n, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err == nil {
				out[k] = n
			}
		}
	}
	return out
}

// looseString renders a JSON string as its value and anything else as its
// JSON text. FastAPI validation errors put an array in "detail".
func looseString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}
