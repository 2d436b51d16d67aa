package ports

import (
	"context"
	"time"

	"PostTranslator/internal/domain"
)

// PostRepository reads and maintains the local snapshot of host posts.
type PostRepository interface {
	FindPost(ctx context.Context, id int64) (domain.Post, error)
	SavePost(ctx context.Context, post domain.Post) error
	DeletePost(ctx context.Context, id int64) error
}

// TranslationRepository persists translations, unique per (post, language).
type TranslationRepository interface {
	Find(ctx context.Context, postID int64, language string) (domain.Translation, error)
	Create(ctx context.Context, t *domain.Translation) error
	Update(ctx context.Context, t *domain.Translation) error
	ListByPost(ctx context.Context, postID int64) ([]domain.Translation, error)
	Languages(ctx context.Context, postID int64) ([]string, error)
	Delete(ctx context.Context, postID int64, language string) error
	DeleteByPost(ctx context.Context, postID int64) error
}

// PreferenceRepository stores one language preference per user.
type PreferenceRepository interface {
	FindPreference(ctx context.Context, userID int64) (domain.UserLanguagePreference, error)
	SavePreference(ctx context.Context, pref *domain.UserLanguagePreference) error
}

// CounterStore is a shared counter with atomic increment-with-expiry.
type CounterStore interface {
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Get(ctx context.Context, key string) (int64, error)
}

// ChatCompleter sends one prompt to an OpenAI-compatible chat completion endpoint.
type ChatCompleter interface {
	Complete(ctx context.Context, req domain.ChatRequest) (domain.ChatCompletion, error)
}

// Notifier pushes realtime payloads to subscribers of a channel.
type Notifier interface {
	Publish(ctx context.Context, channel string, payload any) error
}

// JobQueue schedules translation jobs for background execution.
type JobQueue interface {
	Enqueue(ctx context.Context, args domain.TranslateJobArgs) (string, error)
	EnqueueIn(ctx context.Context, delay time.Duration, args domain.TranslateJobArgs) (string, error)
	Pending(postID int64) []string
}

// Scheduler controls when recurring maintenance executes.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

// RequestLimiter guards outbound provider calls.
type RequestLimiter interface {
	CanMakeRequest(ctx context.Context) bool
	RecordRequest(ctx context.Context) error
}

// TranslationEventLog writes the structured audit trail of translation jobs.
type TranslationEventLog interface {
	Started(postID int64, language string, contentLength int, forceUpdate bool)
	Completed(entry domain.CompletedEntry)
	Failed(postID int64, language, message, errorClass string, processingMS float64)
	Skipped(postID int64, language, reason string)
}

// CounterPurger removes counters whose window has expired.
type CounterPurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
