package usecase

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"PostTranslator/internal/domain"
	"PostTranslator/internal/modelconfig"
	"PostTranslator/internal/parser"
	"PostTranslator/internal/ports"
)

const (
	bodyTemperature       = 0.3
	titleTemperature      = 0.2
	titleMaxTokens        = 128
	rawResponseLogLimit   = 4000
	defaultMaxContentSize = 10000
)

// TranslationSettings selects the model and input limits for the service.
type TranslationSettings struct {
	PresetModel      string
	Model            modelconfig.Settings
	MaxContentLength int
}

// TranslationServiceDeps wires the driven adapters of the translation service.
type TranslationServiceDeps struct {
	Completer ports.ChatCompleter
	Limiter   ports.RequestLimiter
	Settings  TranslationSettings
	// Sanitize post-processes translated HTML; nil keeps model output as is.
	Sanitize func(string) string
	Logger   *slog.Logger
}

// TranslationRequest is the input of a single translation.
type TranslationRequest struct {
	Content        string
	TargetLanguage string
	Title          string
}

// TranslationResult is a successful translation, not yet persisted.
type TranslationResult struct {
	TranslatedContent string
	TranslatedTitle   string
	SourceLanguage    string
	Confidence        float64
	ProviderInfo      domain.ProviderInfo
}

// TranslationService turns post content into a translation through the configured provider.
// It never persists anything.
type TranslationService struct {
	completer ports.ChatCompleter
	limiter   ports.RequestLimiter
	settings  TranslationSettings
	sanitize  func(string) string
	logger    *slog.Logger
}

// NewTranslationService constructs the service.
func NewTranslationService(deps TranslationServiceDeps) *TranslationService {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	settings := deps.Settings
	if settings.MaxContentLength <= 0 {
		settings.MaxContentLength = defaultMaxContentSize
	}
	return &TranslationService{
		completer: deps.Completer,
		limiter:   deps.Limiter,
		settings:  settings,
		sanitize:  deps.Sanitize,
		logger:    logger,
	}
}

// Translate runs validation, configuration, rate and length checks before a
// single provider call, then parses the answer. A missing title triggers one
// best-effort fallback request.
func (s *TranslationService) Translate(ctx context.Context, req TranslationRequest) (TranslationResult, error) {
	if strings.TrimSpace(req.Content) == "" {
		return TranslationResult{}, domain.NewError(domain.KindInvalidInput, "Content not specified")
	}
	if strings.TrimSpace(req.TargetLanguage) == "" {
		return TranslationResult{}, domain.NewError(domain.KindInvalidInput, "Target language not specified")
	}

	cfg, err := modelconfig.Resolve(s.settings.PresetModel, s.settings.Model)
	if err != nil {
		return TranslationResult{}, domain.WrapError(domain.KindConfig, err.Error(), err)
	}

	if s.limiter != nil && !s.limiter.CanMakeRequest(ctx) {
		return TranslationResult{}, domain.NewError(domain.KindRateLimited, "Rate limit exceeded. Please try again later.")
	}

	total := utf8.RuneCountInString(req.Content) + utf8.RuneCountInString(req.Title)
	if budget := cfg.CharBudget(s.settings.MaxContentLength); total > budget {
		return TranslationResult{}, domain.NewError(domain.KindContentTooLong, "Content too long for translation")
	}

	prompt := BuildTranslationPrompt(req.Content, req.TargetLanguage, req.Title)
	completion, err := s.complete(ctx, cfg, prompt, cfg.MaxTokens, bodyTemperature)
	if err != nil {
		return TranslationResult{}, err
	}

	extraction, err := parser.ExtractTranslation(completion.Content)
	if err != nil {
		s.logger.Warn("model output did not match the JSON contract",
			"target_language", req.TargetLanguage,
			"raw", parser.Truncate(completion.Content, rawResponseLogLimit),
		)
		return TranslationResult{}, err
	}

	content := s.clean(extraction.TranslatedText)
	if strings.TrimSpace(content) == "" {
		s.logger.Warn("model output was empty after cleaning",
			"target_language", req.TargetLanguage,
			"raw", parser.Truncate(completion.Content, rawResponseLogLimit),
		)
		return TranslationResult{}, domain.NewError(domain.KindParse, "No translation in response")
	}

	result := TranslationResult{
		TranslatedContent: content,
		TranslatedTitle:   strings.TrimSpace(extraction.TranslatedTitle),
		SourceLanguage:    extraction.SourceLanguage,
		Confidence:        extraction.Confidence,
		ProviderInfo: domain.ProviderInfo{
			Provider:   cfg.Provider,
			Model:      completion.Model,
			TokensUsed: completion.TotalTokens,
		},
	}

	if strings.TrimSpace(req.Title) != "" && result.TranslatedTitle == "" {
		result.TranslatedTitle = s.translateTitle(ctx, cfg, req.Title, req.TargetLanguage)
	}

	return result, nil
}

func (s *TranslationService) translateTitle(ctx context.Context, cfg modelconfig.Config, title, language string) string {
	if s.limiter != nil && !s.limiter.CanMakeRequest(ctx) {
		s.logger.Warn("skipping title fallback, rate limit reached", "target_language", language)
		return ""
	}

	maxTokens := titleMaxTokens
	if cfg.MaxTokens > 0 && cfg.MaxTokens < maxTokens {
		maxTokens = cfg.MaxTokens
	}

	completion, err := s.complete(ctx, cfg, BuildTitlePrompt(title, language), maxTokens, titleTemperature)
	if err != nil {
		s.logger.Warn("title fallback translation failed", "target_language", language, "error", err)
		return ""
	}
	return strings.TrimSpace(completion.Content)
}

func (s *TranslationService) complete(ctx context.Context, cfg modelconfig.Config, prompt string, maxTokens int, temperature float64) (domain.ChatCompletion, error) {
	if s.completer == nil {
		return domain.ChatCompletion{}, domain.NewError(domain.KindConfig, "no chat completer configured")
	}

	completion, err := s.completer.Complete(ctx, domain.ChatRequest{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.ModelName,
		Prompt:      prompt,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})

	if s.limiter != nil && domain.ProviderResponded(err) {
		if recErr := s.limiter.RecordRequest(ctx); recErr != nil {
			s.logger.Warn("rate limiter record failed", "error", recErr)
		}
	}

	return completion, err
}

func (s *TranslationService) clean(html string) string {
	if s.sanitize == nil {
		return html
	}
	return s.sanitize(html)
}
