package telemetry

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLoggerDropsBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelWarn)
	l.Info("should not appear")
	if buf.Len() != 0 {
		t.Fatalf("expected nothing written below configured level, got %q", buf.String())
	}
	l.Warn("should appear")
	if buf.Len() == 0 {
		t.Fatalf("expected warn to be written")
	}
}

func TestLoggerRedactsFieldsAndMessages(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelDebug).WithField("api_key", "api_key: sk_live_1234567890ab")
	l.Info("request sent")

	if strings.Contains(buf.String(), "sk_live_1234567890ab") {
		t.Fatalf("expected secret to be redacted, got %q", buf.String())
	}
}

func TestLoggerWarnCodeIsMachineReadable(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelDebug)
	l.WarnCode("AUTOMATIC_PARALLEL_INDEXING", "step id reused across batches")

	var entry Entry
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected valid JSON entry, got error: %v (body %q)", err, buf.String())
	}
	if entry.Code != "AUTOMATIC_PARALLEL_INDEXING" {
		t.Fatalf("expected code to round trip, got %q", entry.Code)
	}
}

func TestWithComponentTagsEntries(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelDebug).WithComponent("engine")
	l.Info("hello")

	var entry Entry
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry.Component != "engine" {
		t.Fatalf("expected component %q, got %q", "engine", entry.Component)
	}
}
