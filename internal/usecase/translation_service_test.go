package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"PostTranslator/internal/domain"
	"PostTranslator/internal/infrastructure/htmlsanitize"
	"PostTranslator/internal/modelconfig"
	"PostTranslator/internal/ratelimit"
)

func customSettings(maxContent int) TranslationSettings {
	return TranslationSettings{
		PresetModel: modelconfig.CustomKey,
		Model: modelconfig.Settings{Custom: modelconfig.CustomSettings{
			BaseURL:   "http://llm.test",
			ModelName: "qwen",
			MaxTokens: 4000,
			APIKey:    "k",
		}},
		MaxContentLength: maxContent,
	}
}

func newLimiter(limit int) *ratelimit.Limiter {
	window := time.Date(2025, 6, 1, 10, 0, 30, 0, time.UTC)
	return ratelimit.New(ratelimit.NewMemoryStore(nil), limit, ratelimit.WithClock(func() time.Time { return window }))
}

func newService(completer *fakeCompleter, limiter *ratelimit.Limiter, settings TranslationSettings) *TranslationService {
	deps := TranslationServiceDeps{Completer: completer, Settings: settings}
	if limiter != nil {
		deps.Limiter = limiter
	}
	return NewTranslationService(deps)
}

func TestTranslateRespectsCharacterBudget(t *testing.T) {
	t.Parallel()

	completer := (&fakeCompleter{}).reply(`{"translated_content":"<p>ok</p>"}`)
	svc := newService(completer, nil, customSettings(10))
	ctx := context.Background()

	if _, err := svc.Translate(ctx, TranslationRequest{Content: "一二三四五六七八九十", TargetLanguage: "en"}); err != nil {
		t.Fatalf("content at budget: %v", err)
	}

	_, err := svc.Translate(ctx, TranslationRequest{Content: "一二三四五六七八", Title: "标题", TargetLanguage: "en"})
	if err != nil {
		t.Fatalf("content plus title at budget: %v", err)
	}

	before := completer.callCount()
	_, err = svc.Translate(ctx, TranslationRequest{Content: "一二三四五六七八九十", Title: "题", TargetLanguage: "en"})
	if domain.KindOf(err) != domain.KindContentTooLong {
		t.Fatalf("expected content_too_long, got %v", err)
	}
	if completer.callCount() != before {
		t.Fatalf("provider called for oversized content")
	}
}

func TestTranslateValidatesInput(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{}
	svc := newService(completer, nil, customSettings(100))

	cases := []TranslationRequest{
		{Content: "  ", TargetLanguage: "en"},
		{Content: "hola", TargetLanguage: ""},
	}
	for _, req := range cases {
		if _, err := svc.Translate(context.Background(), req); domain.KindOf(err) != domain.KindInvalidInput {
			t.Fatalf("Translate(%+v) = %v, want invalid_input", req, err)
		}
	}
	if completer.callCount() != 0 {
		t.Fatalf("provider called for invalid input")
	}
}

func TestTranslateReportsMissingConfiguration(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{}
	svc := newService(completer, nil, TranslationSettings{PresetModel: "gpt-4o-mini"})

	_, err := svc.Translate(context.Background(), TranslationRequest{Content: "hola", TargetLanguage: "en"})
	if domain.KindOf(err) != domain.KindConfig {
		t.Fatalf("expected config_error, got %v", err)
	}
	if completer.callCount() != 0 {
		t.Fatalf("provider called without configuration")
	}
}

func TestTranslateStopsAtRateLimit(t *testing.T) {
	t.Parallel()

	completer := (&fakeCompleter{}).reply(`{"translated_content":"<p>Hello</p>"}`)
	limiter := newLimiter(1)
	svc := newService(completer, limiter, customSettings(100))
	ctx := context.Background()

	got, err := svc.Translate(ctx, TranslationRequest{Content: "<p>Hola</p>", TargetLanguage: "en"})
	if err != nil {
		t.Fatalf("first translate: %v", err)
	}
	if got.TranslatedContent != "<p>Hello</p>" || got.SourceLanguage != domain.SourceLanguageAuto {
		t.Fatalf("unexpected result: %+v", got)
	}
	if got.ProviderInfo.Provider != "custom" || got.ProviderInfo.Model != "test-model" || got.ProviderInfo.TokensUsed != 12 {
		t.Fatalf("provider info = %+v", got.ProviderInfo)
	}

	_, err = svc.Translate(ctx, TranslationRequest{Content: "<p>Hola</p>", TargetLanguage: "en"})
	if domain.KindOf(err) != domain.KindRateLimited {
		t.Fatalf("expected rate_limited, got %v", err)
	}
	if completer.callCount() != 1 {
		t.Fatalf("calls = %d, want 1", completer.callCount())
	}
}

func TestTranslateTransportErrorIsNotCounted(t *testing.T) {
	t.Parallel()

	completer := (&fakeCompleter{}).fail(domain.NewError(domain.KindNetwork, "Network error"))
	limiter := newLimiter(5)
	svc := newService(completer, limiter, customSettings(100))
	ctx := context.Background()

	_, err := svc.Translate(ctx, TranslationRequest{Content: "hola", TargetLanguage: "en"})
	if domain.KindOf(err) != domain.KindNetwork {
		t.Fatalf("expected network_error, got %v", err)
	}
	if remaining := limiter.RemainingRequests(ctx); remaining != 5 {
		t.Fatalf("remaining = %d, want 5", remaining)
	}
}

func TestTranslateFallsBackToTitleRequest(t *testing.T) {
	t.Parallel()

	completer := (&fakeCompleter{}).
		reply(`Sure! {"translated_content":"<p>Hello</p>"}`).
		reply("  Greetings \n")
	limiter := newLimiter(10)
	svc := newService(completer, limiter, customSettings(100))
	ctx := context.Background()

	got, err := svc.Translate(ctx, TranslationRequest{Content: "<p>你好</p>", Title: "问候", TargetLanguage: "en"})
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if got.TranslatedTitle != "Greetings" {
		t.Fatalf("title = %q", got.TranslatedTitle)
	}
	if completer.callCount() != 2 {
		t.Fatalf("calls = %d, want 2", completer.callCount())
	}
	if !strings.Contains(completer.calls[1].Prompt, "问候") || completer.calls[1].MaxTokens > titleMaxTokens {
		t.Fatalf("unexpected title request: %+v", completer.calls[1])
	}
	if remaining := limiter.RemainingRequests(ctx); remaining != 8 {
		t.Fatalf("remaining = %d, want 8", remaining)
	}
}

func TestTranslateKeepsResultWhenTitleFallbackFails(t *testing.T) {
	t.Parallel()

	completer := (&fakeCompleter{}).
		reply(`{"translated_content":"<p>Hello</p>"}`).
		fail(domain.NewError(domain.KindProviderUnavailable, "Translation service temporarily unavailable"))
	svc := newService(completer, nil, customSettings(100))

	got, err := svc.Translate(context.Background(), TranslationRequest{Content: "<p>你好</p>", Title: "问候", TargetLanguage: "en"})
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if got.TranslatedContent != "<p>Hello</p>" || got.TranslatedTitle != "" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestTranslateParseFailureIsCounted(t *testing.T) {
	t.Parallel()

	completer := (&fakeCompleter{}).reply("I cannot translate this.")
	limiter := newLimiter(3)
	svc := newService(completer, limiter, customSettings(100))
	ctx := context.Background()

	_, err := svc.Translate(ctx, TranslationRequest{Content: "hola", TargetLanguage: "en"})
	if domain.KindOf(err) != domain.KindParse {
		t.Fatalf("expected parse_error, got %v", err)
	}
	if remaining := limiter.RemainingRequests(ctx); remaining != 2 {
		t.Fatalf("remaining = %d, want 2", remaining)
	}
}

func TestTranslateRejectsContentEmptyAfterCleaning(t *testing.T) {
	t.Parallel()

	replies := []string{
		"{\"translated_content\":\"```html\\n```\"}",
		`{"translated_content":"<html><body></body></html>"}`,
	}
	for _, reply := range replies {
		completer := (&fakeCompleter{}).reply(reply)
		svc := NewTranslationService(TranslationServiceDeps{
			Completer: completer,
			Settings:  customSettings(100),
			Sanitize:  htmlsanitize.Clean,
		})

		got, err := svc.Translate(context.Background(), TranslationRequest{Content: "<p>hola</p>", TargetLanguage: "en"})
		if domain.KindOf(err) != domain.KindParse || domain.UserMessage(err) != "No translation in response" {
			t.Fatalf("reply %q: result = %+v, err = %v", reply, got, err)
		}
	}
}
