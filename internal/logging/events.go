package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"PostTranslator/internal/domain"
	"PostTranslator/internal/ports"
)

// EventLog writes one JSON line per translation lifecycle event.
type EventLog struct {
	logger *slog.Logger
	closer io.Closer
}

var _ ports.TranslationEventLog = (*EventLog)(nil)

// NewEventLog appends to path. A blank path routes events to fallback instead.
func NewEventLog(path string, fallback *slog.Logger) (*EventLog, error) {
	if path == "" {
		if fallback == nil {
			fallback = slog.Default()
		}
		return &EventLog{logger: fallback.With("component", "translation_events")}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("make event log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	return newEventLog(f, f), nil
}

func newEventLog(w io.Writer, closer io.Closer) *EventLog {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	return &EventLog{logger: slog.New(handler), closer: closer}
}

func (l *EventLog) Started(postID int64, language string, contentLength int, forceUpdate bool) {
	l.logger.Info("translation_started",
		"post_id", postID,
		"target_language", language,
		"content_length", contentLength,
		"force_update", forceUpdate,
	)
}

func (l *EventLog) Completed(entry domain.CompletedEntry) {
	l.logger.Info("translation_completed",
		"post_id", entry.PostID,
		"target_language", entry.Language,
		"translation_id", entry.TranslationID,
		"processing_time_ms", entry.ProcessingMS,
		"ai_model", entry.Model,
		"tokens_used", entry.TokensUsed,
		"translated_length", entry.TranslatedLength,
		"force_update", entry.ForceUpdate,
	)
}

func (l *EventLog) Failed(postID int64, language, message, errorClass string, processingMS float64) {
	l.logger.Warn("translation_failed",
		"post_id", postID,
		"target_language", language,
		"error_message", message,
		"error_class", errorClass,
		"processing_time_ms", processingMS,
	)
}

func (l *EventLog) Skipped(postID int64, language, reason string) {
	l.logger.Info("translation_skipped",
		"post_id", postID,
		"target_language", language,
		"reason", reason,
	)
}

// Close releases the log file, if any.
func (l *EventLog) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
