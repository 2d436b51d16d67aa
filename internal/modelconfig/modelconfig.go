// Package modelconfig resolves the configured model preset into concrete
// provider connection parameters.
package modelconfig

import (
	"errors"
	"fmt"
	"strings"
)

// Provider identifies an upstream LLM vendor.
type Provider string

const (
	ProviderOpenAI   Provider = "openai"
	ProviderXAI      Provider = "xai"
	ProviderDeepSeek Provider = "deepseek"
	ProviderCustom   Provider = "custom"
)

// Tier is a coarse cost/quality label for presets.
type Tier string

const (
	TierLow    Tier = "Low"
	TierMedium Tier = "Medium"
	TierHigh   Tier = "High"
)

// CustomKey selects the externally configured custom provider.
const CustomKey = "custom"

// charsPerToken is the conservative character budget per token for mixed-language content.
const charsPerToken = 3

var (
	ErrUnknownPreset = errors.New("unknown preset model")
	ErrMissingField  = errors.New("missing model configuration field")
)

// Preset is a statically known model choice.
type Preset int

const (
	GPT5 Preset = iota + 1
	GPT5Mini
	GPT5Nano
	GPT4o
	GPT4oMini
	GPT35Turbo
	Grok4
	Grok4FastNonReasoning
	Grok3
	Grok2
	DeepSeekR1
	DeepSeekV3
)

// Descriptor is the static description of a preset.
type Descriptor struct {
	Key             string   `json:"key"`
	Provider        Provider `json:"provider"`
	ModelName       string   `json:"model_name"`
	BaseURL         string   `json:"base_url"`
	MaxTokens       int      `json:"max_tokens"`
	MaxOutputTokens int      `json:"max_output_tokens"`
	Description     string   `json:"description"`
	Tier            Tier     `json:"tier"`
}

const (
	openAIBaseURL   = "https://api.openai.com"
	xaiBaseURL      = "https://api.x.ai"
	deepSeekBaseURL = "https://api.deepseek.com"
)

// presets is ordered by declaration; index i holds Preset(i+1).
var presets = []Descriptor{
	{Key: "gpt-5", Provider: ProviderOpenAI, ModelName: "gpt-5", BaseURL: openAIBaseURL, MaxTokens: 128_000, MaxOutputTokens: 16_000, Description: "OpenAI next-generation flagship model", Tier: TierHigh},
	{Key: "gpt-5-mini", Provider: ProviderOpenAI, ModelName: "gpt-5-mini", BaseURL: openAIBaseURL, MaxTokens: 128_000, MaxOutputTokens: 16_000, Description: "OpenAI GPT-5 cost-effective variant", Tier: TierMedium},
	{Key: "gpt-5-nano", Provider: ProviderOpenAI, ModelName: "gpt-5-nano", BaseURL: openAIBaseURL, MaxTokens: 16_385, MaxOutputTokens: 4_096, Description: "OpenAI GPT-5 lightweight variant", Tier: TierLow},
	{Key: "gpt-4o", Provider: ProviderOpenAI, ModelName: "gpt-4o", BaseURL: openAIBaseURL, MaxTokens: 128_000, MaxOutputTokens: 16_000, Description: "OpenAI flagship multimodal model", Tier: TierHigh},
	{Key: "gpt-4o-mini", Provider: ProviderOpenAI, ModelName: "gpt-4o-mini", BaseURL: openAIBaseURL, MaxTokens: 128_000, MaxOutputTokens: 16_000, Description: "OpenAI cost-effective model", Tier: TierMedium},
	{Key: "gpt-3.5-turbo", Provider: ProviderOpenAI, ModelName: "gpt-3.5-turbo", BaseURL: openAIBaseURL, MaxTokens: 16_385, MaxOutputTokens: 4_096, Description: "OpenAI economical model", Tier: TierLow},
	{Key: "grok-4", Provider: ProviderXAI, ModelName: "grok-4", BaseURL: xaiBaseURL, MaxTokens: 132_000, MaxOutputTokens: 16_000, Description: "xAI flagship model", Tier: TierHigh},
	{Key: "grok-4-fast-non-reasoning", Provider: ProviderXAI, ModelName: "grok-4-fast-non-reasoning", BaseURL: xaiBaseURL, MaxTokens: 2_000_000, MaxOutputTokens: 16_000, Description: "xAI low-latency non-reasoning model", Tier: TierMedium},
	{Key: "grok-3", Provider: ProviderXAI, ModelName: "grok-3", BaseURL: xaiBaseURL, MaxTokens: 131_072, MaxOutputTokens: 16_000, Description: "xAI balanced model", Tier: TierMedium},
	{Key: "grok-2", Provider: ProviderXAI, ModelName: "grok-2", BaseURL: xaiBaseURL, MaxTokens: 128_000, MaxOutputTokens: 16_000, Description: "xAI economical model", Tier: TierLow},
	{Key: "deepseek-r1", Provider: ProviderDeepSeek, ModelName: "deepseek-r1", BaseURL: deepSeekBaseURL, MaxTokens: 64_000, MaxOutputTokens: 16_000, Description: "DeepSeek reasoning model", Tier: TierHigh},
	{Key: "deepseek-v3", Provider: ProviderDeepSeek, ModelName: "deepseek-v3", BaseURL: deepSeekBaseURL, MaxTokens: 64_000, MaxOutputTokens: 16_000, Description: "DeepSeek general model", Tier: TierMedium},
}

// Descriptor returns the static description of the preset.
func (p Preset) Descriptor() Descriptor {
	if p < GPT5 || int(p) > len(presets) {
		return Descriptor{}
	}
	return presets[p-1]
}

func (p Preset) String() string {
	return p.Descriptor().Key
}

// ParsePreset maps a preset key to its enum value.
func ParsePreset(key string) (Preset, error) {
	key = strings.TrimSpace(key)
	for i, d := range presets {
		if d.Key == key {
			return Preset(i + 1), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPreset, key)
}

// CustomSettings are the operator-supplied fields used when the preset is "custom".
type CustomSettings struct {
	Provider        string
	BaseURL         string
	ModelName       string
	MaxTokens       int
	MaxOutputTokens int
	APIKey          string
}

// Settings supplies secrets and custom fields that are not part of the static table.
type Settings struct {
	APIKeys map[Provider]string
	Custom  CustomSettings
	// DefaultMaxOutputTokens is used when neither output nor input token limits are known.
	DefaultMaxOutputTokens int
}

// Config is a fully resolved request configuration.
type Config struct {
	APIKey    string
	BaseURL   string
	ModelName string
	// MaxTokens bounds the completion output.
	MaxTokens int
	Provider  string
	// RawMaxTokens is the model input limit used for character budgeting.
	RawMaxTokens int
	Custom       bool
}

// Resolve turns a preset key (or "custom") into a Config. Blank API key,
// base URL or model name are rejected before any request is built.
func Resolve(key string, settings Settings) (Config, error) {
	var cfg Config

	if strings.TrimSpace(key) == CustomKey {
		custom := settings.Custom
		provider := strings.TrimSpace(custom.Provider)
		if provider == "" {
			provider = string(ProviderCustom)
		}
		cfg = Config{
			APIKey:       strings.TrimSpace(custom.APIKey),
			BaseURL:      strings.TrimSpace(custom.BaseURL),
			ModelName:    strings.TrimSpace(custom.ModelName),
			MaxTokens:    firstPositive(custom.MaxOutputTokens, custom.MaxTokens, settings.DefaultMaxOutputTokens),
			Provider:     provider,
			RawMaxTokens: custom.MaxTokens,
			Custom:       true,
		}
	} else {
		preset, err := ParsePreset(key)
		if err != nil {
			return Config{}, err
		}
		d := preset.Descriptor()
		cfg = Config{
			APIKey:       strings.TrimSpace(settings.APIKeys[d.Provider]),
			BaseURL:      d.BaseURL,
			ModelName:    d.ModelName,
			MaxTokens:    firstPositive(d.MaxOutputTokens, d.MaxTokens, settings.DefaultMaxOutputTokens),
			Provider:     string(d.Provider),
			RawMaxTokens: d.MaxTokens,
		}
	}

	switch {
	case cfg.APIKey == "":
		return Config{}, fmt.Errorf("%w: API key not configured for provider %s", ErrMissingField, cfg.Provider)
	case cfg.BaseURL == "":
		return Config{}, fmt.Errorf("%w: base URL not configured for provider %s", ErrMissingField, cfg.Provider)
	case cfg.ModelName == "":
		return Config{}, fmt.Errorf("%w: model name not configured for provider %s", ErrMissingField, cfg.Provider)
	}

	return cfg, nil
}

// CharBudget returns the maximum number of input characters (content plus title).
// Presets derive it from their token limit; custom providers use maxContentLength verbatim.
func (c Config) CharBudget(maxContentLength int) int {
	if c.Custom || c.RawMaxTokens <= 0 {
		return maxContentLength
	}
	return c.RawMaxTokens * charsPerToken
}

// Filter narrows a preset listing; empty fields match everything.
type Filter struct {
	Provider Provider
	Tier     Tier
}

// List returns preset descriptors in declaration order.
func List(filter Filter) []Descriptor {
	out := make([]Descriptor, 0, len(presets))
	for _, d := range presets {
		if filter.Provider != "" && !strings.EqualFold(string(d.Provider), string(filter.Provider)) {
			continue
		}
		if filter.Tier != "" && !strings.EqualFold(string(d.Tier), string(filter.Tier)) {
			continue
		}
		out = append(out, d)
	}
	return out
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
