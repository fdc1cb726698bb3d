package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestSlogAdapterLogsAllocateEvent(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	slogger := slog.New(handler)

	adapter := NewSlogAdapter(slogger)

	adapter.Log(Event{
		Timestamp: time.Now(),
		Kind:      KindAllocate,
		Serial:    "SERIAL_A",
		SessionID: "session-123",
	})

	output := buf.String()
	if output == "" {
		t.Fatal("no output produced")
	}

	var logEntry map[string]any
	if err := json.Unmarshal([]byte(output), &logEntry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}

	if logEntry["kind"] != "ALLOCATE" {
		t.Errorf("kind: got %v, want %q", logEntry["kind"], "ALLOCATE")
	}
	if logEntry["serial"] != "SERIAL_A" {
		t.Errorf("serial: got %v, want %q", logEntry["serial"], "SERIAL_A")
	}
	if logEntry["session_id"] != "session-123" {
		t.Errorf("session_id: got %v, want %q", logEntry["session_id"], "session-123")
	}
}

func TestSlogAdapterLogsDetailFields(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	slogger := slog.New(handler)

	adapter := NewSlogAdapter(slogger)

	adapter.Log(Event{
		Timestamp: time.Now(),
		Kind:      KindFree,
		Serial:    "SERIAL_B",
		Detail:    map[string]string{"postState": "AVAILABLE"},
	})

	output := buf.String()

	var logEntry map[string]any
	if err := json.Unmarshal([]byte(output), &logEntry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}

	if logEntry["postState"] != "AVAILABLE" {
		t.Errorf("postState: got %v, want %q", logEntry["postState"], "AVAILABLE")
	}
}

func TestSlogAdapterIncludesError(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	slogger := slog.New(handler)

	adapter := NewSlogAdapter(slogger)

	adapter.Log(Event{
		Timestamp: time.Now(),
		Kind:      KindProbeDiscard,
		Serial:    "SERIAL_C",
		Err:       "device went offline during stability window",
	})

	output := buf.String()
	if !strings.Contains(output, "device went offline during stability window") {
		t.Error("output does not contain error message")
	}
}

func TestSlogAdapterLogsLegacyToolWarningAtWarnLevel(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	slogger := slog.New(handler)

	adapter := NewSlogAdapter(slogger)
	adapter.Log(Event{Timestamp: time.Now(), Kind: KindAltModeLegacyTool})

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if logEntry["level"] != "WARN" {
		t.Errorf("level: got %v, want WARN", logEntry["level"])
	}
}

func TestSlogAdapterLogsOrdinaryEventAtDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	slogger := slog.New(handler)

	adapter := NewSlogAdapter(slogger)
	adapter.Log(Event{Timestamp: time.Now(), Kind: KindAllocate})

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if logEntry["level"] != "DEBUG" {
		t.Errorf("level: got %v, want DEBUG", logEntry["level"])
	}
}

func TestSlogAdapterInterfaceSatisfaction(t *testing.T) {
	var _ Logger = (*SlogAdapter)(nil)
}
