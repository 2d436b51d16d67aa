// Package parser turns raw chat-completion responses into translation results.
package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"PostTranslator/internal/domain"
)

const (
	// PlaceholderConfidence is attached to every parsed result; providers report no real score.
	PlaceholderConfidence = 0.95

	errInvalidFormat  = "Invalid response format"
	errNoTranslation  = "No translation in response"
	errParseFailed    = "Failed to parse JSON response"
	unknownAPIError   = "Unknown API error"
	translatedContent = "translated_content"
)

// Strategy names the recovery step that produced a result.
type Strategy string

const (
	StrategyJSON       Strategy = "json"
	StrategyBraceScan  Strategy = "brace_scan"
	StrategyRegexSlice Strategy = "regex"
)

// Extraction is the structured result recovered from model output.
type Extraction struct {
	TranslatedText  string
	TranslatedTitle string
	SourceLanguage  string
	Confidence      float64
	Strategy        Strategy
}

var contentValueExpr = regexp.MustCompile(`(?s)"translated_content"\s*:\s*"((?:[^"\\]|\\.)*)(?:"|\\?$)`)

// ExtractTranslation recovers translated_content (and translated_title when
// available) from model output that may be wrapped in prose or truncated.
func ExtractTranslation(content string) (Extraction, error) {
	content = strings.TrimSpace(content)

	if ext, ok := decodeObject(content); ok {
		ext.Strategy = StrategyJSON
		return withFixedFields(ext), nil
	}

	start := strings.Index(content, "{")
	if start < 0 {
		return Extraction{}, domain.NewError(domain.KindParse, errParseFailed)
	}
	jsonPart := content[start:]

	// Braces inside string values are counted too; such payloads fall through to the regex step.
	if end := matchingBrace(jsonPart); end > 0 {
		if ext, ok := decodeObject(jsonPart[:end+1]); ok {
			ext.Strategy = StrategyBraceScan
			return withFixedFields(ext), nil
		}
	}

	if strings.Contains(content, `"`+translatedContent+`"`) {
		if m := contentValueExpr.FindStringSubmatch(jsonPart); m != nil && strings.TrimSpace(m[1]) != "" {
			return withFixedFields(Extraction{
				TranslatedText: unescapeJSONString(m[1]),
				Strategy:       StrategyRegexSlice,
			}), nil
		}
	}

	return Extraction{}, domain.NewError(domain.KindParse, errParseFailed)
}

func decodeObject(raw string) (Extraction, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return Extraction{}, false
	}

	text, _ := obj[translatedContent].(string)
	if strings.TrimSpace(text) == "" {
		return Extraction{}, false
	}
	title, _ := obj["translated_title"].(string)
	return Extraction{TranslatedText: text, TranslatedTitle: title}, true
}

func matchingBrace(s string) int {
	depth := 0
	for i, r := range s {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func unescapeJSONString(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i == len(s)-1 {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case '"':
			b.WriteByte('"')
		case '\\':
			b.WriteByte('\\')
		case '/':
			b.WriteByte('/')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func withFixedFields(ext Extraction) Extraction {
	ext.SourceLanguage = domain.SourceLanguageAuto
	ext.Confidence = PlaceholderConfidence
	return ext
}

type completionEnvelope struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// ParseCompletion decodes a successful chat-completion body.
func ParseCompletion(body []byte) (domain.ChatCompletion, error) {
	var env completionEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return domain.ChatCompletion{}, domain.WrapError(domain.KindParse, errInvalidFormat, err)
	}
	if len(env.Choices) == 0 {
		return domain.ChatCompletion{}, domain.NewError(domain.KindParse, errInvalidFormat)
	}

	content := strings.TrimSpace(env.Choices[0].Message.Content)
	if content == "" {
		return domain.ChatCompletion{}, domain.NewError(domain.KindParse, errNoTranslation)
	}

	return domain.ChatCompletion{
		Content:     content,
		Model:       env.Model,
		TotalTokens: env.Usage.TotalTokens,
	}, nil
}

// ErrorMessage extracts a human readable message from a provider error body.
// It tries {"error":{"message"}}, {"message"}, {"error":"..."} and plain text in that order.
func ErrorMessage(body []byte) string {
	var decoded any
	if err := json.Unmarshal(body, &decoded); err == nil {
		if obj, ok := decoded.(map[string]any); ok {
			if nested, ok := obj["error"].(map[string]any); ok {
				if msg, ok := nested["message"].(string); ok && msg != "" {
					return msg
				}
			}
			if msg, ok := obj["message"].(string); ok && msg != "" {
				return msg
			}
			if msg, ok := obj["error"].(string); ok && msg != "" {
				return msg
			}
			return unknownAPIError
		}
	}

	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return unknownAPIError
}

// StatusError maps a non-2xx provider status to a modeled error. The provider
// message is kept as the cause for diagnostics.
func StatusError(status int, body []byte) error {
	msg := ErrorMessage(body)
	cause := errors.New(msg)

	switch {
	case status == http.StatusUnauthorized:
		return domain.WrapError(domain.KindInvalidAPIKey, "Invalid API key", cause)
	case status == http.StatusTooManyRequests:
		return domain.WrapError(domain.KindRateLimited, "Rate limit exceeded. Please try again later.", cause)
	case status == http.StatusBadRequest:
		return domain.WrapError(domain.KindBadRequest, "Bad request: "+msg, nil)
	case status >= 500 && status <= 599:
		return domain.WrapError(domain.KindProviderUnavailable, "Provider service temporarily unavailable", cause)
	default:
		return domain.WrapError(domain.KindProvider, fmt.Sprintf("API error: %s", msg), nil)
	}
}

// Truncate shortens s to at most n bytes for logging.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
