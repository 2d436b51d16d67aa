package domain

// ChatRequest is a single-message chat completion call against an OpenAI-compatible API.
type ChatRequest struct {
	BaseURL     string
	APIKey      string
	Model       string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// ChatCompletion is the decoded envelope of a successful completion.
type ChatCompletion struct {
	Content     string
	Model       string
	TotalTokens int
}

// CompletedEntry summarizes a finished translation for the audit log.
type CompletedEntry struct {
	PostID           int64
	Language         string
	TranslationID    int64
	Model            string
	TokensUsed       int
	TranslatedLength int
	ProcessingMS     float64
	ForceUpdate      bool
}
