package domain

import (
	"fmt"
	"time"
)

// NotificationStatus is the progress phase pushed to subscribers.
type NotificationStatus string

const (
	NotifyStarted   NotificationStatus = "started"
	NotifyCompleted NotificationStatus = "completed"
	NotifyFailed    NotificationStatus = "failed"
)

// TranslationEvent is published on the topic channel of the translated post.
type TranslationEvent struct {
	PostID            int64              `json:"post_id"`
	TargetLanguage    string             `json:"target_language"`
	Status            NotificationStatus `json:"status"`
	Timestamp         string             `json:"timestamp"`
	Error             string             `json:"error,omitempty"`
	TranslationID     *int64             `json:"translation_id,omitempty"`
	TranslatedContent string             `json:"translated_content,omitempty"`
}

// NewTranslationEvent stamps an event with an RFC 3339 timestamp.
func NewTranslationEvent(postID int64, language string, status NotificationStatus, at time.Time) TranslationEvent {
	return TranslationEvent{
		PostID:         postID,
		TargetLanguage: language,
		Status:         status,
		Timestamp:      at.UTC().Format(time.RFC3339),
	}
}

// TranslationSnapshot is the full translation object sent on the post channel.
type TranslationSnapshot struct {
	Language          string            `json:"language"`
	TranslatedContent string            `json:"translated_content"`
	TranslatedTitle   string            `json:"translated_title,omitempty"`
	SourceLanguage    string            `json:"source_language"`
	Status            TranslationStatus `json:"status"`
	Metadata          Metadata          `json:"metadata"`
}

// PostTranslationEvent is published on the per-post channel once a translation completes.
type PostTranslationEvent struct {
	PostID      int64               `json:"post_id"`
	Translation TranslationSnapshot `json:"translation"`
}

// SnapshotOf copies the user-facing fields of a translation.
func SnapshotOf(t Translation) TranslationSnapshot {
	return TranslationSnapshot{
		Language:          t.Language,
		TranslatedContent: t.TranslatedContent,
		TranslatedTitle:   t.TranslatedTitle,
		SourceLanguage:    t.SourceLanguage,
		Status:            t.Status,
		Metadata:          t.Metadata,
	}
}

// LanguagePromptEvent asks a client to show the language preference dialog.
type LanguagePromptEvent struct {
	UserID int64 `json:"user_id"`
}

// TopicChannel is the realtime channel carrying progress for a topic.
func TopicChannel(topicID int64) string {
	return fmt.Sprintf("/topic/%d/translations", topicID)
}

// PostChannel carries full translation objects for a single post.
func PostChannel(postID int64) string {
	return fmt.Sprintf("/post/%d/translations", postID)
}

// LanguagePromptChannel is the per-user channel for the preference prompt.
func LanguagePromptChannel(userID int64) string {
	return fmt.Sprintf("/language-preference-prompt/%d", userID)
}

// TranslateJobArgs is the payload a queued translation job carries.
type TranslateJobArgs struct {
	PostID         int64  `json:"post_id"`
	TargetLanguage string `json:"target_language"`
	ForceUpdate    bool   `json:"force_update"`
}
