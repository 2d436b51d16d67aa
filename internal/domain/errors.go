package domain

import (
	"errors"
	"fmt"
)

// Repository sentinels.
var (
	ErrNotFound             = errors.New("not found")
	ErrDuplicateTranslation = errors.New("translation already exists for post and language")
	ErrInvalidTranslation   = errors.New("invalid translation")
	ErrInvalidPreference    = errors.New("invalid language preference")
)

// ErrorKind classifies failures surfaced by the translation core.
type ErrorKind string

const (
	KindInvalidInput        ErrorKind = "invalid_input"
	KindConfig              ErrorKind = "config_error"
	KindRateLimited         ErrorKind = "rate_limited"
	KindContentTooLong      ErrorKind = "content_too_long"
	KindInvalidAPIKey       ErrorKind = "invalid_api_key"
	KindBadRequest          ErrorKind = "bad_request"
	KindProviderUnavailable ErrorKind = "provider_unavailable"
	KindProvider            ErrorKind = "provider_error"
	KindNetwork             ErrorKind = "network_error"
	KindParse               ErrorKind = "parse_error"
)

// Error is a modeled translation failure. Message is safe to show to users.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// NewError builds a modeled error without a cause.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError builds a modeled error around a cause.
func WrapError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a modeled error, or "" for anything else.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind reports whether err is a modeled error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// IsProviderFailure is true for errors originating from the provider's HTTP answer.
func IsProviderFailure(err error) bool {
	switch KindOf(err) {
	case KindInvalidAPIKey, KindBadRequest, KindProviderUnavailable, KindProvider:
		return true
	default:
		return false
	}
}

// ProviderResponded reports whether a provider call produced an HTTP answer.
// Transport and configuration failures never reached the provider.
func ProviderResponded(err error) bool {
	if err == nil || IsProviderFailure(err) {
		return true
	}
	switch KindOf(err) {
	case KindRateLimited, KindParse:
		return true
	default:
		return false
	}
}

// UserMessage returns the message meant for the record metadata and notifications.
func UserMessage(err error) string {
	var de *Error
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
