package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"PostTranslator/internal/domain"
)

func TestLevelFromString(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"error":   slog.LevelError,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"info":    slog.LevelInfo,
		"":        slog.LevelDebug,
		"trace":   slog.LevelDebug,
	}
	for in, want := range cases {
		if got := levelFromString(in); got != want {
			t.Fatalf("levelFromString(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestEventLogWritesJSONLines(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	events := newEventLog(&buf, nil)
	events.Started(7, "en", 120, true)
	events.Completed(domain.CompletedEntry{PostID: 7, Language: "en", TranslationID: 3, Model: "gpt-4o", TokensUsed: 99, TranslatedLength: 80, ProcessingMS: 12.5})
	events.Failed(8, "es", "Invalid API key", "invalid_api_key", 4)
	events.Skipped(9, "de", "post_not_found")

	var lines []map[string]any
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var line map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("line is not JSON: %s", scanner.Text())
		}
		lines = append(lines, line)
	}
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4", len(lines))
	}

	wantMsgs := []string{"translation_started", "translation_completed", "translation_failed", "translation_skipped"}
	for i, want := range wantMsgs {
		if lines[i]["msg"] != want {
			t.Fatalf("line %d msg = %v, want %s", i, lines[i]["msg"], want)
		}
	}
	if lines[0]["force_update"] != true || lines[0]["content_length"] != float64(120) {
		t.Fatalf("started fields = %v", lines[0])
	}
	if lines[1]["ai_model"] != "gpt-4o" || lines[1]["tokens_used"] != float64(99) {
		t.Fatalf("completed fields = %v", lines[1])
	}
	if lines[2]["error_class"] != "invalid_api_key" || lines[2]["level"] != "WARN" {
		t.Fatalf("failed fields = %v", lines[2])
	}
	if lines[3]["reason"] != "post_not_found" {
		t.Fatalf("skipped fields = %v", lines[3])
	}
}

func TestNewEventLogCreatesFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "log", "translation.log")
	events, err := NewEventLog(path, nil)
	if err != nil {
		t.Fatalf("new event log: %v", err)
	}
	events.Skipped(1, "en", "invalid_args")
	if err := events.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Contains(raw, []byte(`"translation_skipped"`)) {
		t.Fatalf("unexpected log content: %s", raw)
	}
}
