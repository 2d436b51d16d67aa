package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// TranslationStatus enumerates the lifecycle states of a post translation.
type TranslationStatus string

const (
	StatusTranslating TranslationStatus = "translating"
	StatusCompleted   TranslationStatus = "completed"
	StatusFailed      TranslationStatus = "failed"
)

// Valid reports whether the status is one of the known states.
func (s TranslationStatus) Valid() bool {
	switch s {
	case StatusTranslating, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// SourceLanguageAuto marks a source language the provider did not report.
const SourceLanguageAuto = "auto"

const maxLanguageLength = 10

var languageCodeExpr = regexp.MustCompile(`^[a-z]{2}(-[a-zA-Z]{2})?$`)

// ValidLanguageCode accepts two-letter codes with an optional region suffix (en, zh-cn, pt-BR).
func ValidLanguageCode(code string) bool {
	return len(code) <= maxLanguageLength && languageCodeExpr.MatchString(code)
}

// ProviderInfo describes which upstream model produced a translation.
type ProviderInfo struct {
	Provider   string `json:"provider,omitempty"`
	Model      string `json:"model,omitempty"`
	TokensUsed int    `json:"tokens_used,omitempty"`
}

// Metadata carries diagnostic fields for a translation record.
// Updates always go through Merge so earlier fields survive later runs.
type Metadata struct {
	Confidence           *float64      `json:"confidence,omitempty"`
	ProviderInfo         *ProviderInfo `json:"provider_info,omitempty"`
	TranslatingStartedAt *time.Time    `json:"translating_started_at,omitempty"`
	TranslatedAt         *time.Time    `json:"translated_at,omitempty"`
	FailedAt             *time.Time    `json:"failed_at,omitempty"`
	UpdatedAt            *time.Time    `json:"updated_at,omitempty"`
	ProcessingTimeMS     *float64      `json:"processing_time_ms,omitempty"`
	Error                string        `json:"error,omitempty"`
	ErrorClass           string        `json:"error_class,omitempty"`
}

// Merge returns m with every field that is set in patch overriding the original.
func (m Metadata) Merge(patch Metadata) Metadata {
	out := m
	if patch.Confidence != nil {
		out.Confidence = patch.Confidence
	}
	if patch.ProviderInfo != nil {
		out.ProviderInfo = patch.ProviderInfo
	}
	if patch.TranslatingStartedAt != nil {
		out.TranslatingStartedAt = patch.TranslatingStartedAt
	}
	if patch.TranslatedAt != nil {
		out.TranslatedAt = patch.TranslatedAt
	}
	if patch.FailedAt != nil {
		out.FailedAt = patch.FailedAt
	}
	if patch.UpdatedAt != nil {
		out.UpdatedAt = patch.UpdatedAt
	}
	if patch.ProcessingTimeMS != nil {
		out.ProcessingTimeMS = patch.ProcessingTimeMS
	}
	if patch.Error != "" {
		out.Error = patch.Error
	}
	if patch.ErrorClass != "" {
		out.ErrorClass = patch.ErrorClass
	}
	return out
}

// Translation is the persisted translation of one post into one language.
type Translation struct {
	ID                int64
	PostID            int64
	Language          string
	TranslatedContent string
	TranslatedTitle   string
	SourceLanguage    string
	Provider          string
	Status            TranslationStatus
	Metadata          Metadata
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Validate checks the record invariants enforced before every write.
func (t Translation) Validate() error {
	if t.PostID <= 0 {
		return fmt.Errorf("%w: post id is required", ErrInvalidTranslation)
	}
	if !ValidLanguageCode(t.Language) {
		return fmt.Errorf("%w: language %q must be a valid language code", ErrInvalidTranslation, t.Language)
	}
	if !t.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTranslation, t.Status)
	}
	if t.Status == StatusCompleted && strings.TrimSpace(t.TranslatedContent) == "" {
		return fmt.Errorf("%w: completed translation must have content", ErrInvalidTranslation)
	}
	return nil
}

// Confidence returns the stored confidence or zero.
func (t Translation) Confidence() float64 {
	if t.Metadata.Confidence == nil {
		return 0
	}
	return *t.Metadata.Confidence
}
