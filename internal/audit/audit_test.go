package audit

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"shopdirect.dev/internal/obs"
)

func TestLogSinkEmitsJSONLine(t *testing.T) {
	logger := obs.Logger()
	original := logger.Writer()
	logger.SetFlags(0)
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	LogSink{}.Emit(Event{
		Timestamp:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		PrincipalID: "user-42",
		Action:      "auth.login",
		Decision:    "deny",
		Reason:      "bad_password",
		Fields:      map[string]any{"email": "ada@example.com"},
	})

	line := buf.String()
	if line == "" {
		t.Fatal("expected log output")
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["type"] != "audit" {
		t.Fatalf("unexpected type: %v", entry["type"])
	}
	if entry["action"] != "auth.login" {
		t.Fatalf("unexpected action: %v", entry["action"])
	}
	if entry["decision"] != "deny" {
		t.Fatalf("unexpected decision: %v", entry["decision"])
	}
	if entry["reason_code"] != "bad_password" {
		t.Fatalf("unexpected reason: %v", entry["reason_code"])
	}
	if entry["principal_id"] != "user-42" {
		t.Fatalf("unexpected principal: %v", entry["principal_id"])
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["email"] != "ada@example.com" {
		t.Fatalf("fields missing or incorrect: %v", entry["fields"])
	}
}

func TestLogSinkFillsDefaults(t *testing.T) {
	logger := obs.Logger()
	original := logger.Writer()
	logger.SetFlags(0)
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	LogSink{}.Emit(Event{})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["action"] != "unknown" {
		t.Fatalf("expected default action, got %v", entry["action"])
	}
	if entry["ts"] == nil {
		t.Fatal("expected a timestamp")
	}
}
