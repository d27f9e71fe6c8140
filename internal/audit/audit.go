// Package audit defines the append-only security event contract and the
// sinks that receive it. Delivery is fire-and-forget: a slow or failing
// sink must never block or fail the operation that emitted the event.
package audit

import (
	"encoding/json"
	"strings"
	"time"

	"shopdirect.dev/internal/obs"
)

// Event is a structured security event.
type Event struct {
	Timestamp   time.Time      `json:"ts"`
	PrincipalID string         `json:"principal_id,omitempty"`
	Action      string         `json:"action"`
	Decision    string         `json:"decision"`
	Reason      string         `json:"reason_code"`
	Fields      map[string]any `json:"fields,omitempty"`
}

// Sink receives security events.
type Sink interface {
	Emit(e Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Emit(Event) {}

// LogSink writes events as JSON lines to the shared structured logger.
type LogSink struct{}

func (LogSink) Emit(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if strings.TrimSpace(e.Action) == "" {
		e.Action = "unknown"
	}
	entry := map[string]any{
		"ts":     e.Timestamp.Format(time.RFC3339Nano),
		"type":   "audit",
		"action": e.Action,
	}
	if e.PrincipalID != "" {
		entry["principal_id"] = e.PrincipalID
	}
	if e.Decision != "" {
		entry["decision"] = e.Decision
	}
	if e.Reason != "" {
		entry["reason_code"] = e.Reason
	}
	if len(e.Fields) > 0 {
		entry["fields"] = e.Fields
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	obs.Logger().Println(string(data))
}

// Recorder keeps events in memory. Intended for tests.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Emit(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	r.Events = append(r.Events, e)
}

// Last returns the most recent event, if any.
func (r *Recorder) Last() (Event, bool) {
	if len(r.Events) == 0 {
		return Event{}, false
	}
	return r.Events[len(r.Events)-1], true
}
